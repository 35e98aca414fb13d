// Package stream owns the live risk feed: one subscription per connected
// account, a periodic recompute+push schedule, on-demand refresh, and
// interval changes. Compute failures for one subscription become typed error
// pushes to that client only; the scheduler and every other subscription
// keep running.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/aistm7/riskstream/pkg/errors"
	"github.com/aistm7/riskstream/pkg/metrics"
	"github.com/aistm7/riskstream/pkg/models"
)

// MetricsProvider computes the risk picture for an account. Satisfied by the
// risk façade service.
type MetricsProvider interface {
	RiskMetrics(ctx context.Context, accountID string) (*models.RiskMetrics, error)
}

// Config holds the streaming parameters.
type Config struct {
	DefaultInterval time.Duration // push cadence for new subscriptions
	MinInterval     time.Duration // floor for updateInterval requests
}

// DefaultConfig returns the standard streaming parameters.
func DefaultConfig() Config {
	return Config{
		DefaultInterval: 60 * time.Second,
		MinInterval:     time.Second,
	}
}

// Subscription is the in-memory state of one connected account. It exists
// only for the lifetime of the connection.
type Subscription struct {
	accountID string
	out       chan models.ServerMessage

	mu           sync.Mutex // serializes pushes and guards the fields below
	interval     time.Duration
	lastPushedAt time.Time
	closed       bool

	computing atomic.Bool // a scheduled recompute is in flight
}

// AccountID returns the subscribed account.
func (sub *Subscription) AccountID() string { return sub.accountID }

// Out is the ordered push channel drained by the transport layer.
func (sub *Subscription) Out() <-chan models.ServerMessage { return sub.out }

// Interval returns the current push cadence.
func (sub *Subscription) Interval() time.Duration {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.interval
}

// LastPushedAt returns the time of the most recent successful push.
func (sub *Subscription) LastPushedAt() time.Time {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	return sub.lastPushedAt
}

// release closes the push channel exactly once.
func (sub *Subscription) release() {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.out)
	}
}

// sendQueueSize bounds per-subscription pushes awaiting the transport. A
// consumer that falls further behind loses the oldest-pending update rather
// than growing the queue.
const sendQueueSize = 16

// Service is the per-client subscription and push scheduler.
type Service struct {
	cfg      Config
	logger   *zap.Logger
	provider MetricsProvider
	clock    Clock
	sched    *Scheduler

	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewService creates the streaming service over the given clock.
func NewService(cfg Config, logger *zap.Logger, provider MetricsProvider, clock Clock) *Service {
	if cfg.DefaultInterval <= 0 {
		cfg.DefaultInterval = DefaultConfig().DefaultInterval
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = DefaultConfig().MinInterval
	}
	return &Service{
		cfg:      cfg,
		logger:   logger,
		provider: provider,
		clock:    clock,
		sched:    NewScheduler(clock, logger),
		subs:     make(map[string]*Subscription),
	}
}

// Subscribe creates a live subscription for the account and schedules the
// periodic recompute+push. A previous subscription for the same account is
// replaced; its pending pushes are discarded.
func (s *Service) Subscribe(accountID string) (*Subscription, error) {
	if accountID == "" {
		return nil, apperrors.InvalidParameter("account id is required")
	}

	sub := &Subscription{
		accountID: accountID,
		out:       make(chan models.ServerMessage, sendQueueSize),
		interval:  s.cfg.DefaultInterval,
	}

	s.mu.Lock()
	old := s.subs[accountID]
	s.subs[accountID] = sub
	s.mu.Unlock()

	if old != nil {
		old.release()
	} else {
		metrics.ActiveSubscriptions.Inc()
	}

	s.sched.Schedule(accountID, s.cfg.DefaultInterval, func() { s.tick(sub) })
	s.logger.Info("risk stream subscription created",
		zap.String("account_id", accountID),
		zap.Duration("interval", s.cfg.DefaultInterval))
	return sub, nil
}

// Unsubscribe cancels the timer and releases the subscription. No push is
// delivered after Unsubscribe returns; in-flight computations finish but
// their results are discarded.
func (s *Service) Unsubscribe(accountID string) {
	s.mu.Lock()
	sub, ok := s.subs[accountID]
	if ok {
		delete(s.subs, accountID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	s.sched.Cancel(accountID)
	sub.release()
	metrics.ActiveSubscriptions.Dec()
	s.logger.Info("risk stream subscription released", zap.String("account_id", accountID))
}

// Drop releases the given subscription only if it is still the live one for
// its account. Transports use it on disconnect so a reconnect's fresh
// subscription is never torn down by the old connection's cleanup.
func (s *Service) Drop(sub *Subscription) {
	s.mu.Lock()
	current := s.subs[sub.accountID]
	if current == sub {
		delete(s.subs, sub.accountID)
	}
	s.mu.Unlock()
	if current != sub {
		return
	}

	s.sched.Cancel(sub.accountID)
	sub.release()
	metrics.ActiveSubscriptions.Dec()
	s.logger.Info("risk stream subscription released", zap.String("account_id", sub.accountID))
}

// HandleMessage dispatches one inbound client message for the account.
// Invalid messages produce an error push, never a disconnect.
func (s *Service) HandleMessage(accountID string, raw []byte) {
	s.mu.RLock()
	sub := s.subs[accountID]
	s.mu.RUnlock()
	if sub == nil {
		return
	}

	msg, err := ParseClientMessage(raw)
	if err != nil {
		s.pushError(sub, err)
		return
	}

	switch msg.Type {
	case models.MessageTypeRequestUpdate:
		// Out-of-band refresh; the periodic timer is not reset.
		go s.computeAndPush(sub)
	case models.MessageTypeUpdateInterval:
		s.updateInterval(sub, time.Duration(msg.Interval)*time.Millisecond)
	}
}

// Close releases every subscription and stops the scheduler.
func (s *Service) Close() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]*Subscription)
	s.mu.Unlock()

	s.sched.CancelAll()
	for _, sub := range subs {
		sub.release()
		metrics.ActiveSubscriptions.Dec()
	}
}

// tick fires on the subscription's schedule. If the previous recompute is
// still running the tick is skipped and logged, never queued: the next tick
// will push fresher data anyway.
func (s *Service) tick(sub *Subscription) {
	if !sub.computing.CompareAndSwap(false, true) {
		metrics.TicksSkipped.Inc()
		s.logger.Warn("skipping scheduled recompute, previous one still running",
			zap.String("account_id", sub.accountID))
		return
	}
	go func() {
		defer sub.computing.Store(false)
		s.computeAndPush(sub)
	}()
}

// updateInterval validates and applies a new push cadence. The change takes
// effect from the next scheduled tick; an in-flight computation is untouched.
func (s *Service) updateInterval(sub *Subscription, interval time.Duration) {
	if err := ValidateInterval(interval, s.cfg.MinInterval); err != nil {
		s.pushError(sub, err)
		return
	}
	sub.mu.Lock()
	sub.interval = interval
	sub.mu.Unlock()
	s.sched.Reschedule(sub.accountID, interval)
	s.logger.Info("risk stream interval updated",
		zap.String("account_id", sub.accountID),
		zap.Duration("interval", interval))
}

func (s *Service) computeAndPush(sub *Subscription) {
	m, err := s.provider.RiskMetrics(context.Background(), sub.accountID)
	if err != nil {
		s.pushError(sub, err)
		return
	}
	s.deliver(sub, models.RiskUpdateMessage(m))
}

func (s *Service) pushError(sub *Subscription, err error) {
	s.deliver(sub, models.ErrorMessage(string(apperrors.CodeOf(err)), apperrors.MessageOf(err)))
}

// deliver sends one message to the subscription's channel. Results for a
// subscription that no longer exists are discarded; a full queue drops the
// message rather than blocking the service.
func (s *Service) deliver(sub *Subscription, msg models.ServerMessage) {
	s.mu.RLock()
	current := s.subs[sub.accountID]
	s.mu.RUnlock()
	if current != sub {
		return
	}

	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return
	}
	select {
	case sub.out <- msg:
		sub.lastPushedAt = s.clock.Now()
		metrics.PushesSent.WithLabelValues(msg.Type).Inc()
	default:
		s.logger.Warn("dropping push for slow stream consumer",
			zap.String("account_id", sub.accountID),
			zap.String("type", msg.Type))
	}
}
