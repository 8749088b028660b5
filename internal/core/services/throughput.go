package services

import (
	"context"
	"sync"
	"time"

	"github.com/polygonid/attestation-bridge/internal/log"
)

// ThroughputTracker counts processed messages and periodically logs the rate.
type ThroughputTracker struct {
	mu         sync.Mutex
	now        func() time.Time
	start      time.Time
	lastReport time.Time
	total      uint64
}

// NewThroughputTracker starts counting now.
func NewThroughputTracker() *ThroughputTracker {
	return newThroughputTracker(time.Now)
}

func newThroughputTracker(now func() time.Time) *ThroughputTracker {
	t := now()
	return &ThroughputTracker{now: now, start: t, lastReport: t}
}

// Record counts one processed message.
func (t *ThroughputTracker) Record() {
	t.mu.Lock()
	t.total++
	t.mu.Unlock()
}

// Total returns the messages counted since start.
func (t *ThroughputTracker) Total() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Rate returns the average messages per second since start.
func (t *ThroughputTracker) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate(t.now())
}

func (t *ThroughputTracker) rate(now time.Time) float64 {
	elapsed := now.Sub(t.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(t.total) / elapsed
}

// MaybeReport logs the rate when interval elapsed since the last report and tells whether it did.
func (t *ThroughputTracker) MaybeReport(ctx context.Context, interval time.Duration) bool {
	t.mu.Lock()
	now := t.now()
	if now.Sub(t.lastReport) < interval {
		t.mu.Unlock()
		return false
	}
	t.lastReport = now
	total, rate := t.total, t.rate(now)
	t.mu.Unlock()

	log.Info(ctx, "throughput", "messagesPerSec", rate, "total", total)
	return true
}
