package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
)

const scenarioDocument = `{"pan":"HJTPB9891M","name_as_per_pan":"Asha K","date_of_birth":"01/01/1990","consent":"y","reason":"kyc"}`

func validVerdict() *domain.VerificationVerdict {
	return &domain.VerificationVerdict{
		Code:          200,
		Timestamp:     1735689600123,
		TransactionID: "tx-1",
		Data: domain.VerdictData{
			Entity:               "in.co.sandbox.kyc.pan_verification.response",
			PAN:                  "HJTPB9891M",
			Status:               "valid",
			NameAsPerPANMatch:    true,
			DateOfBirthMatch:     true,
			Category:             "individual",
			AadhaarSeedingStatus: "y",
		},
	}
}

func TestVerification_ProcessVerificationRequest(t *testing.T) {
	ctx := context.Background()
	req := &domain.VerificationRequest{UserWallet: "0xabc", DIDID: "0", DocumentData: scenarioDocument}

	t.Run("verified", func(t *testing.T) {
		authority := &fakeAuthority{verdict: validVerdict()}
		adj, err := NewVerification(authority).ProcessVerificationRequest(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, domain.ResultVerified, adj.Result)
		assert.Equal(t, "7bc3cf1624c2703b10580527cbd6650cc1c16ed5ffbdc8e5de80615c67b64a9a", adj.EvidenceHash)
		assert.Equal(t, "2025-01-01T00:00:00.123Z", adj.VerifiedAt)
		require.Len(t, authority.calls, 1)
		assert.Equal(t, "HJTPB9891M", authority.calls[0].PAN)
		assert.Equal(t, "kyc", authority.calls[0].Reason)
	})

	t.Run("name mismatch fails", func(t *testing.T) {
		verdict := validVerdict()
		verdict.Data.NameAsPerPANMatch = false
		adj, err := NewVerification(&fakeAuthority{verdict: verdict}).ProcessVerificationRequest(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, domain.ResultFailed, adj.Result)
		assert.Len(t, adj.EvidenceHash, 64)
	})

	t.Run("hash binds the claimed identity", func(t *testing.T) {
		other := &domain.VerificationRequest{
			UserWallet:   "0xabc",
			DIDID:        "0",
			DocumentData: `{"pan":"HJTPB9891M","name_as_per_pan":"Asha Kumar","date_of_birth":"01/01/1990","consent":"y","reason":"kyc"}`,
		}
		a, err := NewVerification(&fakeAuthority{verdict: validVerdict()}).ProcessVerificationRequest(ctx, req)
		require.NoError(t, err)
		b, err := NewVerification(&fakeAuthority{verdict: validVerdict()}).ProcessVerificationRequest(ctx, other)
		require.NoError(t, err)
		assert.NotEqual(t, a.EvidenceHash, b.EvidenceHash)
	})

	t.Run("missing timestamp falls back to now", func(t *testing.T) {
		verdict := validVerdict()
		verdict.Timestamp = 0
		svc := NewVerification(&fakeAuthority{verdict: verdict}).(*verification)
		svc.now = func() time.Time { return time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC) }
		adj, err := svc.ProcessVerificationRequest(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "2025-02-03T04:05:06.000Z", adj.VerifiedAt)
	})

	t.Run("invalid document is poison and never reaches the authority", func(t *testing.T) {
		authority := &fakeAuthority{verdict: validVerdict()}
		bad := &domain.VerificationRequest{UserWallet: "0xabc", DIDID: "0", DocumentData: "{not json"}
		_, err := NewVerification(authority).ProcessVerificationRequest(ctx, bad)
		assert.True(t, domain.IsPoison(err))
		assert.Empty(t, authority.calls)
	})

	t.Run("authority errors propagate", func(t *testing.T) {
		authErr := &domain.AuthorityUnavailableError{StatusCode: 503, Body: "maintenance"}
		_, err := NewVerification(&fakeAuthority{err: authErr}).ProcessVerificationRequest(ctx, req)
		var target *domain.AuthorityUnavailableError
		require.True(t, errors.As(err, &target))
		assert.False(t, domain.IsPoison(err))
	})
}
