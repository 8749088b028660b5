package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/log"
	"github.com/polygonid/attestation-bridge/internal/metrics"
	"github.com/polygonid/attestation-bridge/pkg/queue"
)

// MessageHandler processes one delivery and returns the last stage reached
type MessageHandler interface {
	Handle(ctx context.Context, d queue.Delivery) (domain.Stage, error)
}

// ConsumerConfig holds the consumer loop timings
type ConsumerConfig struct {
	IdlePoll       time.Duration
	ErrorBackoff   time.Duration
	ReportInterval time.Duration
	// MaxDeliveries dead letters a message delivered more times than this. Zero disables it.
	MaxDeliveries int
}

// QueueConsumer is the sequential worker loop: read a batch, handle every message, acknowledge the successful ones.
type QueueConsumer struct {
	stream  queue.Stream
	handler MessageHandler
	tracker *ThroughputTracker
	metrics *metrics.Metrics
	cfg     ConsumerConfig
}

// NewQueueConsumer creates a QueueConsumer
func NewQueueConsumer(stream queue.Stream, handler MessageHandler, tracker *ThroughputTracker, m *metrics.Metrics, cfg ConsumerConfig) *QueueConsumer {
	if tracker == nil {
		tracker = NewThroughputTracker()
	}
	return &QueueConsumer{stream: stream, handler: handler, tracker: tracker, metrics: m, cfg: cfg}
}

// Run ensures the consumer group and polls until ctx is cancelled.
// It only returns an error when the group cannot be created at startup.
func (c *QueueConsumer) Run(ctx context.Context) error {
	if err := c.stream.EnsureGroup(ctx); err != nil {
		return err
	}
	log.Info(ctx, "queue consumer started")

	for ctx.Err() == nil {
		n, err := c.Poll(ctx)
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, queue.ErrGroupMissing):
			log.Warn(ctx, "consumer group missing, recreating it", "err", err)
			if err := c.stream.EnsureGroup(ctx); err != nil {
				log.Error(ctx, "recreating consumer group", "err", err)
				sleep(ctx, c.cfg.ErrorBackoff)
			}
		case err != nil:
			log.Error(ctx, "reading queue", "err", err)
			sleep(ctx, c.cfg.ErrorBackoff)
		case n == 0:
			sleep(ctx, c.cfg.IdlePoll)
		}
		c.tracker.MaybeReport(ctx, c.cfg.ReportInterval)
	}

	log.Info(ctx, "queue consumer stopped", "processed", c.tracker.Total())
	return nil
}

// Poll reads one batch and handles it. It returns how many messages were read.
// An authentication failure against the authority backs off once the batch is done.
func (c *QueueConsumer) Poll(ctx context.Context) (int, error) {
	deliveries, err := c.stream.Read(ctx)
	if err != nil {
		return 0, err
	}

	authFailed := false
	for _, d := range deliveries {
		if ctx.Err() != nil {
			break
		}
		var authErr *domain.AuthError
		if err := c.process(ctx, d); errors.As(err, &authErr) {
			authFailed = true
		}
	}
	if authFailed {
		log.Warn(ctx, "authority authentication failed, backing off", "backoff", c.cfg.ErrorBackoff)
		sleep(ctx, c.cfg.ErrorBackoff)
	}
	return len(deliveries), nil
}

func (c *QueueConsumer) process(ctx context.Context, d queue.Delivery) error {
	start := time.Now()
	defer c.metrics.ObserveMessage(start)
	mctx := log.With(ctx, "messageID", d.ID, "userWallet", d.Fields["user_wallet"], "attempt", d.Attempt)

	if c.cfg.MaxDeliveries > 0 && d.Attempt > c.cfg.MaxDeliveries {
		reason := fmt.Sprintf("delivered %d times, limit is %d", d.Attempt, c.cfg.MaxDeliveries)
		if err := c.stream.DeadLetter(ctx, d, reason); err != nil {
			log.Error(mctx, "dead lettering message", "err", err)
			return err
		}
		log.Error(mctx, "message dead lettered", "reason", reason)
		c.metrics.IncMessage(metrics.OutcomeDeadLetter)
		return nil
	}

	stage, err := c.handler.Handle(ctx, d)
	if err != nil {
		if domain.IsPoison(err) {
			log.Error(mctx, "permanent message failure, left unacknowledged", "stage", stage, "err", err)
			c.metrics.IncMessage(metrics.OutcomePoison)
		} else {
			log.Error(mctx, "message processing failed, left for redelivery", "stage", stage, "err", err)
			c.metrics.IncMessage(metrics.OutcomeRetry)
		}
		return err
	}

	if err := c.stream.Ack(ctx, d); err != nil {
		log.Error(mctx, "acknowledging message", "stage", stage, "err", err)
		c.metrics.IncMessage(metrics.OutcomeRetry)
		return err
	}
	c.tracker.Record()
	c.metrics.IncMessage(metrics.OutcomeAcked)
	log.Info(mctx, "message acknowledged", "stage", stage)
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
