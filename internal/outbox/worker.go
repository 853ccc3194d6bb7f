package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"chorechart/internal/metrics"
)

// Sender delivers a message over one channel
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SenderFunc adapts a function to Sender
type SenderFunc func(ctx context.Context, msg Message) error

func (f SenderFunc) Send(ctx context.Context, msg Message) error { return f(ctx, msg) }

// WorkerConfig configures a Worker
type WorkerConfig struct {
	Workers     int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// OnDeadLetter is called when a message exhausts its attempts
	OnDeadLetter func(msg Message, err error)
}

// Worker drains a Queue with a fixed pool of goroutines
type Worker struct {
	queue   Queue
	senders map[Channel]Sender
	cfg     WorkerConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewWorker creates a worker pool. Zero config values get defaults.
func NewWorker(queue Queue, senders map[Channel]Sender, cfg WorkerConfig, logger *zap.Logger, m *metrics.Metrics) *Worker {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{queue: queue, senders: senders, cfg: cfg, logger: logger, metrics: m}
}

// Run processes messages until ctx is cancelled or the queue is closed
func (w *Worker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Workers; i++ {
		id := i
		g.Go(func() error {
			return w.loop(ctx, id)
		})
	}
	return g.Wait()
}

func (w *Worker) loop(ctx context.Context, id int) error {
	logger := w.logger.With(zap.Int("worker", id))
	for {
		msg, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return nil
			}
			logger.Error("Failed to dequeue outbox message", zap.Error(err))
			if !sleepCtx(ctx, w.cfg.BaseDelay) {
				return nil
			}
			continue
		}
		w.deliver(ctx, logger, msg)
	}
}

func (w *Worker) deliver(ctx context.Context, logger *zap.Logger, msg Message) {
	logger = logger.With(zap.String("message_id", msg.ID), zap.String("channel", string(msg.Channel)))

	sender, ok := w.senders[msg.Channel]
	if !ok {
		w.deadLetter(logger, msg, fmt.Errorf("no sender for channel %q", msg.Channel))
		return
	}

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		lastErr = sender.Send(ctx, msg)
		if lastErr == nil {
			w.metrics.OutboxDelivery(string(msg.Channel), "delivered")
			logger.Debug("Outbox message delivered", zap.Int("attempt", attempt))
			return
		}

		if attempt == w.cfg.MaxAttempts {
			break
		}
		w.metrics.OutboxDelivery(string(msg.Channel), "retry")
		logger.Warn("Outbox delivery failed, retrying", zap.Int("attempt", attempt), zap.Error(lastErr))
		if !sleepCtx(ctx, w.backoff(attempt)) {
			lastErr = ctx.Err()
			break
		}
	}
	w.deadLetter(logger, msg, lastErr)
}

func (w *Worker) deadLetter(logger *zap.Logger, msg Message, err error) {
	w.metrics.OutboxDelivery(string(msg.Channel), "dead_letter")
	logger.Error("Outbox message dropped", zap.Error(err))
	if w.cfg.OnDeadLetter != nil {
		w.cfg.OnDeadLetter(msg, err)
	}
}

// backoff doubles the base delay per attempt up to MaxDelay
func (w *Worker) backoff(attempt int) time.Duration {
	d := w.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= w.cfg.MaxDelay {
			return w.cfg.MaxDelay
		}
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
