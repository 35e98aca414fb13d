// Package workerpool bounds the CPU-heavy risk computations. Jobs queue FIFO
// up to a depth limit and run under a concurrency cap, so simulation bursts
// can never starve the connection-handling path.
package workerpool

import (
	"context"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
	"github.com/aistm7/riskstream/pkg/metrics"
)

// Config bounds the pool.
type Config struct {
	Workers        int           // concurrent jobs
	QueueDepth     int           // jobs waiting beyond the running ones
	ComputeTimeout time.Duration // wall-clock budget per job
}

// DefaultConfig returns the standard pool bounds.
func DefaultConfig() Config {
	return Config{
		Workers:        10,
		QueueDepth:     100,
		ComputeTimeout: 30 * time.Second,
	}
}

type job struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// Pool is a bounded-concurrency FIFO job runner.
type Pool struct {
	cfg    Config
	logger *zap.Logger
	sem    *semaphore.Weighted
	queue  chan *job
	stop   chan struct{}
}

// New creates and starts a pool.
func New(cfg Config, logger *zap.Logger) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = DefaultConfig().QueueDepth
	}
	if cfg.ComputeTimeout <= 0 {
		cfg.ComputeTimeout = DefaultConfig().ComputeTimeout
	}
	p := &Pool{
		cfg:    cfg,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(cfg.Workers)),
		queue:  make(chan *job, cfg.QueueDepth),
		stop:   make(chan struct{}),
	}
	go p.dispatch()
	return p
}

// Execute queues fn and waits for it to finish. It fails fast with a Busy
// error when the queue is saturated, and the job itself is bounded by the
// pool's compute timeout.
func (p *Pool) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case p.queue <- j:
		metrics.PoolQueueDepth.Set(float64(len(p.queue)))
	default:
		return apperrors.Busy("compute queue is full (%d jobs waiting)", p.cfg.QueueDepth)
	}

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return apperrors.Timeout("computation exceeded its deadline while queued")
		}
		return ctx.Err()
	}
}

// Close stops the dispatcher. Queued jobs that have not started are failed
// with a connection error; running jobs finish on their own contexts.
func (p *Pool) Close() {
	close(p.stop)
}

// dispatch pulls jobs in FIFO order and runs each under the semaphore.
func (p *Pool) dispatch() {
	for {
		select {
		case <-p.stop:
			p.drain()
			return
		case j := <-p.queue:
			metrics.PoolQueueDepth.Set(float64(len(p.queue)))
			if err := p.sem.Acquire(j.ctx, 1); err != nil {
				j.done <- apperrors.Timeout("computation cancelled before a worker was available")
				continue
			}
			go func(j *job) {
				defer p.sem.Release(1)
				j.done <- p.run(j)
			}(j)
		}
	}
}

func (p *Pool) drain() {
	for {
		select {
		case j := <-p.queue:
			j.done <- apperrors.Connection(nil, "worker pool shut down")
		default:
			return
		}
	}
}

// run executes one job under the compute budget, converting deadline
// overruns and panics into typed errors.
func (p *Pool) run(j *job) (err error) {
	ctx, cancel := context.WithTimeout(j.ctx, p.cfg.ComputeTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("compute job panic recovered",
				zap.Any("panic", r),
				zap.String("stack", string(debug.Stack())))
			err = apperrors.Calculation("computation failed unexpectedly")
		}
	}()

	err = j.fn(ctx)
	if err == nil && ctx.Err() == context.DeadlineExceeded {
		err = apperrors.Timeout("computation exceeded the %s budget", p.cfg.ComputeTimeout)
	}
	if err == context.DeadlineExceeded {
		err = apperrors.Timeout("computation exceeded the %s budget", p.cfg.ComputeTimeout)
	}
	return err
}
