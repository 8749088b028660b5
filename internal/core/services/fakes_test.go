package services

import (
	"context"
	"errors"
	"sync"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/pkg/queue"
)

type fakeAuthority struct {
	verdict *domain.VerificationVerdict
	err     error
	calls   []domain.DocumentData
}

func (f *fakeAuthority) Verify(_ context.Context, doc *domain.DocumentData) (*domain.VerificationVerdict, error) {
	f.calls = append(f.calls, *doc)
	if f.err != nil {
		return nil, f.err
	}
	v := *f.verdict
	return &v, nil
}

func (f *fakeAuthority) Ping(context.Context) error { return nil }

type fakeCommitter struct {
	record      *domain.LedgerRecord
	openErr     error
	finalizeErr error
	opened      []uint8
	finalized   []domain.FinalizeRequest
}

func (f *fakeCommitter) OpenRecord(_ context.Context, _ string, didType uint8) (*domain.LedgerRecord, error) {
	f.opened = append(f.opened, didType)
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.record, nil
}

func (f *fakeCommitter) FinalizeRecord(_ context.Context, req domain.FinalizeRequest) error {
	f.finalized = append(f.finalized, req)
	return f.finalizeErr
}

type fakeStream struct {
	mu            sync.Mutex
	batches       [][]queue.Delivery
	readErrs      []error
	ensureErr     error
	ensureCalls   int
	acked         []string
	deadLettered  []string
	onEmptyCancel context.CancelFunc
}

func (f *fakeStream) EnsureGroup(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensureCalls++
	return f.ensureErr
}

func (f *fakeStream) Read(context.Context) ([]queue.Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.readErrs) > 0 {
		err := f.readErrs[0]
		f.readErrs = f.readErrs[1:]
		return nil, err
	}
	if len(f.batches) == 0 {
		if f.onEmptyCancel != nil {
			f.onEmptyCancel()
		}
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeStream) Ack(_ context.Context, d queue.Delivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, d.ID)
	return nil
}

func (f *fakeStream) DeadLetter(_ context.Context, d queue.Delivery, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLettered = append(f.deadLettered, d.ID)
	return nil
}

func (f *fakeStream) Close() error { return nil }

type handlerFunc func(ctx context.Context, d queue.Delivery) (domain.Stage, error)

func (h handlerFunc) Handle(ctx context.Context, d queue.Delivery) (domain.Stage, error) { return h(ctx, d) }

var errLedgerDown = errors.New("ledger proxy unreachable")
