package queue

import (
	"context"
	"errors"
)

// ErrGroupMissing is returned by Read when the consumer group vanished from the broker.
var ErrGroupMissing = errors.New("consumer group missing")

// Delivery is one message handed to this consumer.
type Delivery struct {
	ID     string
	Fields map[string]string
	// Attempt is how many times the message has been delivered, this one included.
	Attempt int
}

// Stream is a durable queue consumed under a named consumer group.
// A message stays pending until acknowledged and is eventually redelivered otherwise.
type Stream interface {
	// EnsureGroup creates the consumer group when missing. It is idempotent.
	EnsureGroup(ctx context.Context) error
	// Read blocks for a bounded time and returns the messages assigned to this consumer.
	// An empty slice with a nil error means the block elapsed without messages.
	Read(ctx context.Context) ([]Delivery, error)
	// Ack marks the message as processed.
	Ack(ctx context.Context, d Delivery) error
	// DeadLetter moves the message out of the group into a dead letter destination and acknowledges it.
	DeadLetter(ctx context.Context, d Delivery, reason string) error
	// Close releases the transport.
	Close() error
}
