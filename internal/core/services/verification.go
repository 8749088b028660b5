package services

import (
	"context"
	"time"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	"github.com/polygonid/attestation-bridge/internal/log"
)

type verification struct {
	authority ports.VerificationAuthority
	now       func() time.Time
}

// NewVerification returns the service that adjudicates queued requests against the authority
func NewVerification(authority ports.VerificationAuthority) ports.VerificationService {
	return &verification{authority: authority, now: time.Now}
}

// ProcessVerificationRequest parses the claim, asks the authority and fingerprints the verdict.
// The evidence hash binds the name and date of birth the user asserted, not the authority ones.
func (v *verification) ProcessVerificationRequest(ctx context.Context, req *domain.VerificationRequest) (*domain.Adjudication, error) {
	doc, err := req.ParseDocument()
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "verifying identity", "pan", log.MaskTail(doc.PAN, 4), "type", req.VerificationType)

	verdict, err := v.authority.Verify(ctx, doc)
	if err != nil {
		return nil, err
	}

	hash, err := HashEvidence(domain.NewEvidenceHashInput(verdict, doc.NameAsPerPAN, doc.DateOfBirth))
	if err != nil {
		return nil, err
	}

	verifiedAt := domain.FormatVerifiedAt(verdict.Timestamp)
	if verdict.Timestamp <= 0 {
		log.Warn(ctx, "authority verdict without timestamp, using adjudication time", "transactionID", verdict.TransactionID)
		verifiedAt = domain.FormatVerifiedAt(v.now().UnixMilli())
	}

	adj := &domain.Adjudication{
		Result:       verdict.Result(),
		EvidenceHash: hash,
		VerifiedAt:   verifiedAt,
		Verdict:      verdict,
	}
	log.Info(ctx, "verification adjudicated",
		"result", adj.Result,
		"status", verdict.Data.Status,
		"nameMatch", verdict.Data.NameAsPerPANMatch,
		"dobMatch", verdict.Data.DateOfBirthMatch,
		"transactionID", verdict.TransactionID,
		"evidenceHash", hash)
	return adj, nil
}
