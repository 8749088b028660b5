package services

import (
	"context"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	"github.com/polygonid/attestation-bridge/internal/kms"
)

type attestationSigner struct {
	keyStore kms.KMSType
	keyID    kms.KeyID
}

// NewAttestationSigner signs attestations with keyID. The key is fixed for the process lifetime.
func NewAttestationSigner(keyStore kms.KMSType, keyID kms.KeyID) ports.AttestationSigner {
	return &attestationSigner{keyStore: keyStore, keyID: keyID}
}

// Sign signs the canonical payload of msg
func (s *attestationSigner) Sign(ctx context.Context, msg domain.AttestationMessage) ([]byte, error) {
	return s.keyStore.Sign(ctx, s.keyID, []byte(msg.CanonicalPayload()))
}

// Verify checks a signature made by Sign against the canonical payload of msg
func (s *attestationSigner) Verify(msg domain.AttestationMessage, signature []byte) (bool, error) {
	return s.keyStore.Verify(s.keyID, []byte(msg.CanonicalPayload()), signature)
}

func (s *attestationSigner) PublicKey() ([]byte, error) {
	return s.keyStore.PublicKey(s.keyID)
}

func (s *attestationSigner) KeyType() string {
	return string(s.keyID.Type)
}
