package repositories

import (
	"context"
	"sync"
	"time"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
)

type attestationMemory struct {
	mu      sync.RWMutex
	records map[string]domain.AttestationRecord
	now     func() time.Time
}

// NewAttestationMemory returns a journal that lives in process memory
func NewAttestationMemory() ports.AttestationRepository {
	return &attestationMemory{records: make(map[string]domain.AttestationRecord), now: time.Now}
}

func (r *attestationMemory) Save(_ context.Context, rec *domain.AttestationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	rec.UpdatedAt = now
	if prev, ok := r.records[rec.MessageID]; ok {
		rec.CreatedAt = prev.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	r.records[rec.MessageID] = copyRecord(*rec)
	return nil
}

func (r *attestationMemory) GetByMessageID(_ context.Context, messageID string) (*domain.AttestationRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[messageID]
	if !ok {
		return nil, domain.ErrAttestationNotFound
	}
	out := copyRecord(rec)
	return &out, nil
}

func (r *attestationMemory) Ping(context.Context) error { return nil }

func copyRecord(rec domain.AttestationRecord) domain.AttestationRecord {
	if rec.RecordID != nil {
		id := *rec.RecordID
		rec.RecordID = &id
	}
	if rec.LastError != nil {
		e := *rec.LastError
		rec.LastError = &e
	}
	return rec
}
