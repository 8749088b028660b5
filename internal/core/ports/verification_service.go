package ports

import (
	"context"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
)

// TokenProvider hands out a valid authority credential
type TokenProvider interface {
	GetValidToken(ctx context.Context) (*domain.Credential, error)
	// Invalidate drops the cached credential so the next call authenticates again.
	Invalidate(ctx context.Context)
}

// VerificationAuthority adjudicates an identity claim
type VerificationAuthority interface {
	Verify(ctx context.Context, doc *domain.DocumentData) (*domain.VerificationVerdict, error)
	Ping(ctx context.Context) error
}

// VerificationService turns a queued request into a classified, fingerprinted verdict
type VerificationService interface {
	ProcessVerificationRequest(ctx context.Context, req *domain.VerificationRequest) (*domain.Adjudication, error)
}
