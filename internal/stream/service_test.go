package stream

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
	"github.com/aistm7/riskstream/pkg/models"
)

type fakeProvider struct {
	mu    sync.Mutex
	calls int
	err   error
	block chan struct{} // when set, RiskMetrics parks here
	began chan struct{} // signalled once per call before blocking
}

func (f *fakeProvider) RiskMetrics(ctx context.Context, accountID string) (*models.RiskMetrics, error) {
	f.mu.Lock()
	f.calls++
	err := f.err
	block := f.block
	began := f.began
	f.mu.Unlock()

	if began != nil {
		began <- struct{}{}
	}
	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return &models.RiskMetrics{Beta: 1.0, RiskLevel: models.RiskLevelLow}, nil
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestService(t *testing.T, provider MetricsProvider) (*Service, *mockClock) {
	clock := newMockClock()
	svc := NewService(Config{
		DefaultInterval: time.Minute,
		MinInterval:     time.Second,
	}, zaptest.NewLogger(t), provider, clock)
	t.Cleanup(svc.Close)
	return svc, clock
}

func receivePush(t *testing.T, sub *Subscription) models.ServerMessage {
	t.Helper()
	select {
	case msg, ok := <-sub.Out():
		require.True(t, ok, "subscription channel closed unexpectedly")
		return msg
	case <-time.After(time.Second):
		t.Fatal("no push arrived")
		return models.ServerMessage{}
	}
}

func TestSubscribeValidation(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{})

	_, err := svc.Subscribe("")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidParameter, apperrors.CodeOf(err))
}

func TestPeriodicPush(t *testing.T) {
	provider := &fakeProvider{}
	svc, clock := newTestService(t, provider)

	sub, err := svc.Subscribe("acct-1")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, sub.Interval())
	clock.waitForTimers(t, 1)

	clock.Advance(time.Minute)
	msg := receivePush(t, sub)
	assert.Equal(t, models.MessageTypeRiskUpdate, msg.Type)
	require.NotNil(t, msg.Data)
	assert.Equal(t, models.RiskLevelLow, msg.Data.RiskLevel)
	assert.Equal(t, clock.Now(), sub.LastPushedAt())

	// Next interval pushes again.
	clock.waitForTimers(t, 1)
	clock.Advance(time.Minute)
	msg = receivePush(t, sub)
	assert.Equal(t, models.MessageTypeRiskUpdate, msg.Type)
}

func TestRequestUpdatePushesImmediately(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider)

	sub, err := svc.Subscribe("acct-1")
	require.NoError(t, err)

	svc.HandleMessage("acct-1", []byte(`{"type":"requestUpdate"}`))

	msg := receivePush(t, sub)
	assert.Equal(t, models.MessageTypeRiskUpdate, msg.Type)
}

func TestMalformedMessagePushesError(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{})

	sub, err := svc.Subscribe("acct-1")
	require.NoError(t, err)

	svc.HandleMessage("acct-1", []byte(`{oops`))

	msg := receivePush(t, sub)
	assert.Equal(t, models.MessageTypeError, msg.Type)
	assert.Equal(t, string(apperrors.CodeInvalidInput), msg.Code)
}

func TestUpdateIntervalBelowFloorRejected(t *testing.T) {
	svc, _ := newTestService(t, &fakeProvider{})

	sub, err := svc.Subscribe("acct-1")
	require.NoError(t, err)

	// 200ms is below the 1s floor.
	svc.HandleMessage("acct-1", []byte(`{"type":"updateInterval","interval":200}`))

	msg := receivePush(t, sub)
	assert.Equal(t, models.MessageTypeError, msg.Type)
	assert.Equal(t, string(apperrors.CodeInvalidParameter), msg.Code)
	assert.Equal(t, time.Minute, sub.Interval(), "rejected interval must not apply")
}

func TestUpdateIntervalAppliesFromNextTick(t *testing.T) {
	provider := &fakeProvider{}
	svc, clock := newTestService(t, provider)

	sub, err := svc.Subscribe("acct-1")
	require.NoError(t, err)
	clock.waitForTimers(t, 1)

	svc.HandleMessage("acct-1", []byte(`{"type":"updateInterval","interval":5000}`))
	assert.Equal(t, 5*time.Second, sub.Interval())
	clock.waitForDeadline(t, clock.Now().Add(5*time.Second))

	clock.Advance(5 * time.Second)
	msg := receivePush(t, sub)
	assert.Equal(t, models.MessageTypeRiskUpdate, msg.Type)
}

func TestUnsubscribeStopsPushes(t *testing.T) {
	provider := &fakeProvider{}
	svc, clock := newTestService(t, provider)

	sub, err := svc.Subscribe("acct-1")
	require.NoError(t, err)
	clock.waitForTimers(t, 1)

	svc.Unsubscribe("acct-1")

	// The channel closes and no tick fires afterwards.
	select {
	case _, ok := <-sub.Out():
		assert.False(t, ok, "expected closed channel, got a push")
	case <-time.After(time.Second):
		t.Fatal("channel was not closed on unsubscribe")
	}
	clock.waitForNoTimers(t)
	calls := provider.callCount()
	clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, provider.callCount(), "no recompute may run after unsubscribe")
}

func TestProviderErrorBecomesErrorPush(t *testing.T) {
	provider := &fakeProvider{err: apperrors.UpstreamData(nil, "historical data unavailable")}
	svc, clock := newTestService(t, provider)

	sub, err := svc.Subscribe("acct-1")
	require.NoError(t, err)
	clock.waitForTimers(t, 1)

	clock.Advance(time.Minute)
	msg := receivePush(t, sub)
	assert.Equal(t, models.MessageTypeError, msg.Type)
	assert.Equal(t, string(apperrors.CodeUpstreamData), msg.Code)
	assert.Equal(t, "historical data unavailable", msg.Message)
}

func TestSlowComputationSkipsTick(t *testing.T) {
	provider := &fakeProvider{
		block: make(chan struct{}),
		began: make(chan struct{}, 4),
	}
	svc, clock := newTestService(t, provider)

	sub, err := svc.Subscribe("acct-1")
	require.NoError(t, err)
	clock.waitForTimers(t, 1)

	// First tick starts a computation that blocks.
	clock.Advance(time.Minute)
	<-provider.began

	// Second tick fires while the first is still computing and is skipped.
	clock.waitForTimers(t, 1)
	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, provider.callCount(), "overlapping tick must be skipped, not queued")

	close(provider.block)
	msg := receivePush(t, sub)
	assert.Equal(t, models.MessageTypeRiskUpdate, msg.Type)
}

func TestSubscribeReplacesExisting(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider)

	first, err := svc.Subscribe("acct-1")
	require.NoError(t, err)
	second, err := svc.Subscribe("acct-1")
	require.NoError(t, err)

	// The first subscription's channel closes on replacement.
	select {
	case _, ok := <-first.Out():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("replaced subscription was not released")
	}

	// Dropping the stale handle must not tear down the live subscription.
	svc.Drop(first)
	svc.HandleMessage("acct-1", []byte(`{"type":"requestUpdate"}`))
	msg := receivePush(t, second)
	assert.Equal(t, models.MessageTypeRiskUpdate, msg.Type)
}

func TestSlowConsumerDropsPushes(t *testing.T) {
	provider := &fakeProvider{}
	svc, _ := newTestService(t, provider)

	sub, err := svc.Subscribe("acct-1")
	require.NoError(t, err)

	// Fill the send queue without draining, then overflow it.
	for i := 0; i < sendQueueSize+5; i++ {
		svc.HandleMessage("acct-1", []byte(`{"type":"requestUpdate"}`))
	}
	require.Eventually(t, func() bool {
		return provider.callCount() == sendQueueSize+5 && len(sub.out) == sendQueueSize
	}, time.Second, time.Millisecond)

	// Only the queue capacity worth of pushes is retained. Holding the
	// subscription mutex keeps stragglers from topping the queue back up
	// while we count.
	sub.mu.Lock()
	defer sub.mu.Unlock()
	drained := 0
	for {
		select {
		case <-sub.Out():
			drained++
		default:
			assert.Equal(t, sendQueueSize, drained)
			return
		}
	}
}
