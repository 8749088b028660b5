package pubsub

import (
	"context"
	"sync"
)

// Mock is a mock pubsub client that records published events
type Mock struct {
	mu        sync.Mutex
	published map[string][]Message
}

// NewMock returns a new mock pubsub client
func NewMock() *Mock {
	return &Mock{published: make(map[string][]Message)}
}

// Publish mock
func (m *Mock) Publish(_ context.Context, topic string, payload Event) error {
	msg, err := payload.Marshal()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[topic] = append(m.published[topic], msg)
	return nil
}

// Published returns the messages published on topic
func (m *Mock) Published(topic string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.published[topic]...)
}
