package workerpool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
)

func TestExecuteRunsJob(t *testing.T) {
	pool := New(DefaultConfig(), zaptest.NewLogger(t))
	defer pool.Close()

	ran := false
	err := pool.Execute(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestExecutePropagatesJobError(t *testing.T) {
	pool := New(DefaultConfig(), zaptest.NewLogger(t))
	defer pool.Close()

	wantErr := errors.New("bad data")
	err := pool.Execute(context.Background(), func(ctx context.Context) error {
		return wantErr
	})
	assert.Equal(t, wantErr, err)
}

func TestExecuteBusyWhenSaturated(t *testing.T) {
	pool := New(Config{Workers: 1, QueueDepth: 1, ComputeTimeout: time.Minute}, zaptest.NewLogger(t))
	defer pool.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	block := func(ctx context.Context) error {
		once.Do(func() { close(started) })
		<-release
		return nil
	}

	// Occupy the worker and back up the dispatcher and queue behind it.
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Execute(context.Background(), block)
		}()
	}
	<-started

	// Probe with an already-cancelled context so a probe that still finds a
	// queue slot returns immediately instead of waiting on the blocked worker.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	var err error
	deadline := time.Now().Add(5 * time.Second)
	for {
		err = pool.Execute(cancelled, block)
		if apperrors.CodeOf(err) == apperrors.CodeBusy {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue never saturated, last error: %v", err)
		}
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, apperrors.CodeBusy, apperrors.CodeOf(err))

	close(release)
	wg.Wait()
}

func TestExecuteTimesOutLongJob(t *testing.T) {
	pool := New(Config{Workers: 1, QueueDepth: 1, ComputeTimeout: 10 * time.Millisecond}, zaptest.NewLogger(t))
	defer pool.Close()

	err := pool.Execute(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeTimeout, apperrors.CodeOf(err))
}

func TestExecuteRecoversPanic(t *testing.T) {
	pool := New(DefaultConfig(), zaptest.NewLogger(t))
	defer pool.Close()

	err := pool.Execute(context.Background(), func(ctx context.Context) error {
		panic("divide by zero")
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCalculation, apperrors.CodeOf(err))
}

func TestCloseFailsQueuedJobs(t *testing.T) {
	pool := New(Config{Workers: 1, QueueDepth: 4, ComputeTimeout: time.Minute}, zaptest.NewLogger(t))

	release := make(chan struct{})
	started := make(chan struct{})
	go pool.Execute(context.Background(), func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	})
	<-started

	done := make(chan error, 1)
	go func() {
		done <- pool.Execute(context.Background(), func(ctx context.Context) error { return nil })
	}()

	// Give the queued job a moment to land, then shut down.
	time.Sleep(10 * time.Millisecond)
	pool.Close()
	close(release)

	select {
	case err := <-done:
		if err != nil {
			assert.Equal(t, apperrors.CodeConnection, apperrors.CodeOf(err))
		}
	case <-time.After(time.Second):
		t.Fatal("queued job was never resolved after Close")
	}
}
