package ports

import (
	"context"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
)

// AttestationSigner signs attestation messages with the process keypair
type AttestationSigner interface {
	Sign(ctx context.Context, msg domain.AttestationMessage) ([]byte, error)
	Verify(msg domain.AttestationMessage, signature []byte) (bool, error)
	PublicKey() ([]byte, error)
	KeyType() string
}

// AttestationRepository is the journal of processed messages
type AttestationRepository interface {
	Save(ctx context.Context, record *domain.AttestationRecord) error
	GetByMessageID(ctx context.Context, messageID string) (*domain.AttestationRecord, error)
	Ping(ctx context.Context) error
}
