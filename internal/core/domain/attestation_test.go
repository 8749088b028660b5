package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttestationMessage_CanonicalPayload(t *testing.T) {
	msg := AttestationMessage{
		UserWallet:   "0xabc",
		DIDID:        1,
		Result:       ResultVerified,
		EvidenceHash: "ff00",
		VerifiedAt:   "2025-01-01T00:00:00.000Z",
	}
	assert.Equal(t, "0xabc:1:verified:ff00:2025-01-01T00:00:00.000Z", msg.CanonicalPayload())
	assert.True(t, msg.Verified())
}

func TestVerifiedAt(t *testing.T) {
	ms := int64(1735689600123)
	s := FormatVerifiedAt(ms)
	assert.Equal(t, "2025-01-01T00:00:00.123Z", s)

	got, err := AttestationMessage{VerifiedAt: s}.VerifiedAtMillis()
	require.NoError(t, err)
	assert.Equal(t, ms, got)

	t.Run("missing zone is utc", func(t *testing.T) {
		got, err := AttestationMessage{VerifiedAt: "2025-01-01T00:00:00.123"}.VerifiedAtMillis()
		require.NoError(t, err)
		assert.Equal(t, ms, got)
	})

	t.Run("offset", func(t *testing.T) {
		parsed, err := ParseVerifiedAt("2025-01-01T05:30:00+05:30")
		require.NoError(t, err)
		assert.True(t, parsed.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ParseVerifiedAt("yesterday")
		assert.Error(t, err)
	})
}

func TestCredential_IsValid(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c := &Credential{Token: "tok", IssuedAt: now, ExpiresAt: now.Add(CredentialTTL)}
	assert.True(t, c.IsValid(now))
	assert.True(t, c.IsValid(now.Add(21*time.Hour)))
	assert.False(t, c.IsValid(now.Add(22*time.Hour)))
	assert.False(t, c.IsValid(now.Add(30*time.Hour)))

	var nilCred *Credential
	assert.False(t, nilCred.IsValid(now))
}

func TestStage_Terminal(t *testing.T) {
	assert.True(t, StageRejected.Terminal())
	assert.True(t, StageRecordFinalized.Terminal())
	assert.True(t, StageCommitIncomplete.Terminal())
	assert.False(t, StageRecordOpened.Terminal())
	assert.False(t, StageReceived.Terminal())
}
