package services

import (
	"context"
	"errors"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/core/event"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	"github.com/polygonid/attestation-bridge/internal/log"
	"github.com/polygonid/attestation-bridge/internal/metrics"
	"github.com/polygonid/attestation-bridge/pkg/pubsub"
	"github.com/polygonid/attestation-bridge/pkg/queue"
)

// PipelineConfig tunes the pipeline policies
type PipelineConfig struct {
	// RegisterRejected opens a ledger record for rejected verdicts too. Rejected records are never finalized.
	RegisterRejected bool
	// EventsTopic receives a verificationCompleted event per terminal message. Empty disables events.
	EventsTopic string
}

// Pipeline runs one queue message through adjudication, signing and the two phase ledger commit.
type Pipeline struct {
	verification ports.VerificationService
	signer       ports.AttestationSigner
	committer    ports.LedgerCommitter
	journal      ports.AttestationRepository
	publisher    pubsub.Publisher
	metrics      *metrics.Metrics
	cfg          PipelineConfig
}

// NewPipeline creates a Pipeline. journal, publisher and m may be nil.
func NewPipeline(
	verification ports.VerificationService,
	signer ports.AttestationSigner,
	committer ports.LedgerCommitter,
	journal ports.AttestationRepository,
	publisher pubsub.Publisher,
	m *metrics.Metrics,
	cfg PipelineConfig,
) *Pipeline {
	return &Pipeline{
		verification: verification,
		signer:       signer,
		committer:    committer,
		journal:      journal,
		publisher:    publisher,
		metrics:      m,
		cfg:          cfg,
	}
}

// Handle processes d and returns the last stage reached. A nil error means d can be acknowledged.
func (p *Pipeline) Handle(ctx context.Context, d queue.Delivery) (domain.Stage, error) {
	ctx = log.With(ctx, "messageID", d.ID, "attempt", d.Attempt)

	prior := p.lookup(ctx, d.ID)
	if prior != nil && prior.Stage.Terminal() {
		log.Info(ctx, "message already processed", "stage", prior.Stage)
		return prior.Stage, nil
	}

	req, err := domain.NewVerificationRequest(d.Fields)
	if err != nil {
		return domain.StageReceived, err
	}
	ctx = log.With(ctx, "userWallet", req.UserWallet)
	code, err := req.DIDCode()
	if err != nil {
		return domain.StageReceived, err
	}
	p.metrics.IncStage(string(domain.StageReceived))

	if prior != nil && prior.Stage == domain.StageRecordOpened && prior.RecordID != nil && prior.Result == domain.ResultVerified {
		log.Info(ctx, "resuming commit of an opened record", "recordID", *prior.RecordID)
		prior.Attempts = d.Attempt
		return p.signAndFinalize(ctx, prior, messageFor(prior))
	}

	rec := &domain.AttestationRecord{
		MessageID:  d.ID,
		UserWallet: req.UserWallet,
		DIDID:      code,
		Stage:      domain.StageReceived,
		Attempts:   d.Attempt,
	}

	adj, err := p.verification.ProcessVerificationRequest(ctx, req)
	if err != nil {
		p.fail(ctx, rec, err)
		return domain.StageReceived, err
	}
	rec.Result = adj.Result
	rec.EvidenceHash = adj.EvidenceHash
	rec.VerifiedAt = adj.VerifiedAt
	p.advance(ctx, rec, domain.StageAdjudicated)

	msg := messageFor(rec)
	didType := p.ledgerDIDType(ctx, code)

	if !msg.Verified() {
		if p.cfg.RegisterRejected {
			record, err := p.committer.OpenRecord(ctx, msg.UserWallet, didType)
			if err != nil {
				p.fail(ctx, rec, err)
				return domain.StageAdjudicated, err
			}
			if record != nil {
				rec.RecordID = &record.ID
			}
		}
		p.advance(ctx, rec, domain.StageRejected)
		p.publish(ctx, rec)
		return domain.StageRejected, nil
	}

	p.advance(ctx, rec, domain.StageVerifiedPendingCommit)
	signature, err := p.signer.Sign(ctx, msg)
	if err != nil {
		p.fail(ctx, rec, err)
		return domain.StageVerifiedPendingCommit, err
	}

	record, err := p.committer.OpenRecord(ctx, msg.UserWallet, didType)
	if err != nil {
		p.fail(ctx, rec, err)
		return domain.StageVerifiedPendingCommit, err
	}
	if record == nil {
		log.Warn(ctx, "ledger record not located, finalize skipped", "err", domain.ErrRecordNotFound)
		reason := domain.ErrRecordNotFound.Error()
		rec.LastError = &reason
		p.advance(ctx, rec, domain.StageCommitIncomplete)
		p.publish(ctx, rec)
		return domain.StageCommitIncomplete, nil
	}
	rec.RecordID = &record.ID
	p.advance(ctx, rec, domain.StageRecordOpened)

	return p.finalize(ctx, rec, msg, signature)
}

func (p *Pipeline) signAndFinalize(ctx context.Context, rec *domain.AttestationRecord, msg domain.AttestationMessage) (domain.Stage, error) {
	signature, err := p.signer.Sign(ctx, msg)
	if err != nil {
		p.fail(ctx, rec, err)
		return domain.StageRecordOpened, err
	}
	return p.finalize(ctx, rec, msg, signature)
}

func (p *Pipeline) finalize(ctx context.Context, rec *domain.AttestationRecord, msg domain.AttestationMessage, signature []byte) (domain.Stage, error) {
	ts, err := msg.VerifiedAtMillis()
	if err != nil {
		p.fail(ctx, rec, err)
		return domain.StageRecordOpened, err
	}
	err = p.committer.FinalizeRecord(ctx, domain.FinalizeRequest{
		RecordID:             *rec.RecordID,
		Verified:             msg.Verified(),
		Signature:            signature,
		SignatureTimestampMs: ts,
		EvidenceHash:         msg.EvidenceHash,
	})
	if err != nil {
		p.fail(ctx, rec, err)
		return domain.StageRecordOpened, err
	}
	rec.LastError = nil
	p.advance(ctx, rec, domain.StageRecordFinalized)
	p.publish(ctx, rec)
	return domain.StageRecordFinalized, nil
}

func (p *Pipeline) ledgerDIDType(ctx context.Context, code uint8) uint8 {
	didType, known := domain.LedgerDIDTypeFor(code)
	if !known {
		log.Warn(ctx, "unknown DID code, falling back to age verification", "didID", code, "ledgerType", didType)
		p.metrics.IncUnknownDIDCode()
	}
	return didType
}

func (p *Pipeline) lookup(ctx context.Context, messageID string) *domain.AttestationRecord {
	if p.journal == nil {
		return nil
	}
	rec, err := p.journal.GetByMessageID(ctx, messageID)
	if err != nil {
		if !errors.Is(err, domain.ErrAttestationNotFound) {
			log.Warn(ctx, "cannot read attestation journal", "err", err)
		}
		return nil
	}
	return rec
}

func (p *Pipeline) advance(ctx context.Context, rec *domain.AttestationRecord, stage domain.Stage) {
	rec.Stage = stage
	p.metrics.IncStage(string(stage))
	log.Debug(ctx, "stage reached", "stage", stage)
	p.save(ctx, rec)
}

func (p *Pipeline) fail(ctx context.Context, rec *domain.AttestationRecord, err error) {
	reason := err.Error()
	rec.LastError = &reason
	p.save(ctx, rec)
}

func (p *Pipeline) save(ctx context.Context, rec *domain.AttestationRecord) {
	if p.journal == nil {
		return
	}
	if err := p.journal.Save(ctx, rec); err != nil {
		log.Warn(ctx, "cannot write attestation journal", "stage", rec.Stage, "err", err)
	}
}

func (p *Pipeline) publish(ctx context.Context, rec *domain.AttestationRecord) {
	if p.publisher == nil || p.cfg.EventsTopic == "" {
		return
	}
	ev := &event.VerificationCompleted{
		MessageID:    rec.MessageID,
		UserWallet:   rec.UserWallet,
		DIDID:        rec.DIDID,
		Result:       rec.Result,
		EvidenceHash: rec.EvidenceHash,
		RecordID:     rec.RecordID,
		Stage:        string(rec.Stage),
		VerifiedAt:   rec.VerifiedAt,
	}
	if err := p.publisher.Publish(ctx, p.cfg.EventsTopic, ev); err != nil {
		log.Error(ctx, "publish verificationCompleted event", "err", err)
	}
}

func messageFor(rec *domain.AttestationRecord) domain.AttestationMessage {
	return domain.AttestationMessage{
		UserWallet:   rec.UserWallet,
		DIDID:        rec.DIDID,
		Result:       rec.Result,
		EvidenceHash: rec.EvidenceHash,
		VerifiedAt:   rec.VerifiedAt,
	}
}
