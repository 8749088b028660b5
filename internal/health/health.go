package health

import (
	"context"
	"sort"
)

// Status struct
type Status struct {
	pingers map[string]Ping
}

// Ping interface
type Ping interface {
	Ping(ctx context.Context) error
}

// Check is a named dependency to ping.
type Check struct {
	Name string
	Ping Ping
}

// New returns a Health instance
func New(checks ...Check) *Status {
	m := make(map[string]Ping)
	for _, c := range checks {
		if c.Ping != nil {
			m[c.Name] = c.Ping
		}
	}
	return &Status{m}
}

// Status returns whether every registered dependency answers or not
func (h *Status) Status(ctx context.Context) map[string]bool {
	m := make(map[string]bool)

	for key, val := range h.pingers {
		m[key] = true
		if err := val.Ping(ctx); err != nil {
			m[key] = false
		}
	}

	return m
}

// Names returns the registered dependency names in order.
func (h *Status) Names() []string {
	names := make([]string, 0, len(h.pingers))
	for k := range h.pingers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// PingFunc adapts a function to Ping.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }
