package outbox

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/homewise/internal/email"
	"github.com/dukerupert/homewise/internal/metrics"
	"github.com/dukerupert/homewise/internal/model"
	"github.com/dukerupert/homewise/internal/store"
	"github.com/sethvargo/go-retry"
)

// Sender delivers a rendered message. *email.Client satisfies it.
type Sender interface {
	Send(ctx context.Context, msg email.Message) error
}

type Config struct {
	Interval    time.Duration
	MaxAttempts int
	BatchSize   int
	// Backoff is the delay before the second attempt; later attempts double
	// it up to MaxBackoff.
	Backoff    time.Duration
	MaxBackoff time.Duration
	// SendRetries is how many extra in-process tries a temporary failure gets
	// before the message is rescheduled.
	SendRetries uint64
	SendBackoff time.Duration
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 8
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 25
	}
	if c.Backoff <= 0 {
		c.Backoff = 30 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Hour
	}
	if c.SendBackoff <= 0 {
		c.SendBackoff = 200 * time.Millisecond
	}
	return c
}

// Dispatcher periodically sends due outbox messages.
type Dispatcher struct {
	mu     sync.RWMutex
	store  *store.OutboxStore
	sender Sender
	cfg    Config
	logger *slog.Logger
	kick   chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

func NewDispatcher(st *store.OutboxStore, sender Sender, cfg Config, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:  st,
		sender: sender,
		cfg:    cfg.withDefaults(),
		logger: logger,
		kick:   make(chan struct{}, 1),
		now:    time.Now,
	}
}

// Start begins the dispatch loop.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.mu.Unlock()

	go func() {
		defer close(d.done)
		ticker := time.NewTicker(d.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			case <-d.kick:
			}
			if _, err := d.RunOnce(ctx); err != nil && ctx.Err() == nil {
				d.logger.Error("outbox dispatch failed", "error", err)
			}
		}
	}()
}

// Stop gracefully stops the dispatcher.
func (d *Dispatcher) Stop() {
	d.mu.RLock()
	cancel := d.cancel
	done := d.done
	d.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Kick asks the loop to run now instead of waiting for the next tick.
// It never blocks.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// RunOnce sends every message due now, batch by batch, and returns how many
// were delivered.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	sent := 0
	for {
		msgs, err := d.store.ListDue(ctx, d.now(), d.cfg.BatchSize)
		if err != nil {
			return sent, err
		}
		for _, m := range msgs {
			ok, err := d.deliver(ctx, m)
			if err != nil {
				return sent, err
			}
			if ok {
				sent++
			}
		}
		if len(msgs) < d.cfg.BatchSize {
			return sent, nil
		}
	}
}

// deliver attempts one message and records the outcome. The returned error
// is only set when the outcome could not be stored.
func (d *Dispatcher) deliver(ctx context.Context, m model.OutboxMessage) (bool, error) {
	msg := email.Message{To: m.Recipient, Subject: m.Subject, HTML: m.HTMLBody, Text: m.TextBody}

	backoff := retry.WithMaxRetries(d.cfg.SendRetries, retry.NewExponential(d.cfg.SendBackoff))
	sendErr := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := d.sender.Send(ctx, msg)
		if err != nil && isTemporary(err) {
			return retry.RetryableError(err)
		}
		return err
	})

	attempts := m.Attempts + 1
	log := d.logger.With("outbox_id", m.ID, "kind", m.Kind, "attempt", attempts)

	if sendErr == nil {
		metrics.RecordOutboxDelivery(m.Kind, "sent")
		log.Info("outbox message sent")
		return true, d.store.MarkSent(ctx, m.ID, attempts)
	}

	if attempts >= d.cfg.MaxAttempts {
		metrics.RecordOutboxDelivery(m.Kind, "failed")
		log.Error("outbox message failed permanently", "error", sendErr)
		return false, d.store.MarkFailed(ctx, m.ID, attempts, sendErr.Error())
	}

	next := d.now().Add(d.backoffFor(attempts))
	metrics.RecordOutboxDelivery(m.Kind, "retry")
	log.Warn("outbox message send failed, will retry", "error", sendErr, "next_attempt_at", next)
	return false, d.store.MarkRetry(ctx, m.ID, attempts, sendErr.Error(), next)
}

// backoffFor returns the delay after the given number of failed attempts.
func (d *Dispatcher) backoffFor(attempts int) time.Duration {
	delay := d.cfg.Backoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.cfg.MaxBackoff {
			return d.cfg.MaxBackoff
		}
	}
	return delay
}

func isTemporary(err error) bool {
	var t interface{ Temporary() bool }
	if errors.As(err, &t) {
		return t.Temporary()
	}
	return false
}
