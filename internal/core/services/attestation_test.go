package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/kms"
)

func newTestSigner(t *testing.T, kt kms.KeyType) *attestationSigner {
	t.Helper()
	keyStore, err := kms.Open("")
	require.NoError(t, err)
	keyID, err := keyStore.LoadOrCreateKey(context.Background(), kt)
	require.NoError(t, err)
	return NewAttestationSigner(keyStore, keyID).(*attestationSigner)
}

func TestAttestationSigner(t *testing.T) {
	ctx := context.Background()
	msg := domain.AttestationMessage{
		UserWallet:   "0xabc",
		DIDID:        0,
		Result:       domain.ResultVerified,
		EvidenceHash: "7bc3cf1624c2703b10580527cbd6650cc1c16ed5ffbdc8e5de80615c67b64a9a",
		VerifiedAt:   "2025-01-01T00:00:00.123Z",
	}

	for _, kt := range []kms.KeyType{kms.KeyTypeEd25519, kms.KeyTypeEthereum} {
		t.Run(string(kt), func(t *testing.T) {
			signer := newTestSigner(t, kt)
			assert.Equal(t, string(kt), signer.KeyType())
			pub, err := signer.PublicKey()
			require.NoError(t, err)
			assert.NotEmpty(t, pub)

			sig, err := signer.Sign(ctx, msg)
			require.NoError(t, err)
			ok, err := signer.Verify(msg, sig)
			require.NoError(t, err)
			assert.True(t, ok)

			altered := map[string]domain.AttestationMessage{}
			m := msg
			m.UserWallet = "0xabd"
			altered["wallet"] = m
			m = msg
			m.DIDID = 1
			altered["did"] = m
			m = msg
			m.Result = domain.ResultFailed
			altered["result"] = m
			m = msg
			m.EvidenceHash = "00" + msg.EvidenceHash[2:]
			altered["evidence"] = m
			m = msg
			m.VerifiedAt = "2025-01-01T00:00:00.124Z"
			altered["verifiedAt"] = m

			for name, changed := range altered {
				ok, err := signer.Verify(changed, sig)
				require.NoError(t, err, name)
				assert.False(t, ok, name)
			}
		})
	}
}

func TestAttestationSigner_Ed25519Deterministic(t *testing.T) {
	ctx := context.Background()
	signer := newTestSigner(t, kms.KeyTypeEd25519)
	msg := domain.AttestationMessage{UserWallet: "0xabc", Result: domain.ResultVerified, EvidenceHash: "ff", VerifiedAt: "2025-01-01T00:00:00.000Z"}
	a, err := signer.Sign(ctx, msg)
	require.NoError(t, err)
	b, err := signer.Sign(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}
