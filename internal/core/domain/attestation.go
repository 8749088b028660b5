package domain

import (
	"fmt"
	"strings"
	"time"
)

// VerifiedAtLayout is the ISO-8601 layout used for verified_at.
const VerifiedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// AttestationMessage is the statement signed by the worker and committed to the ledger.
type AttestationMessage struct {
	UserWallet   string
	DIDID        uint8
	Result       string
	EvidenceHash string
	VerifiedAt   string
}

// CanonicalPayload is the exact string that gets signed.
func (m AttestationMessage) CanonicalPayload() string {
	return fmt.Sprintf("%s:%d:%s:%s:%s", m.UserWallet, m.DIDID, m.Result, m.EvidenceHash, m.VerifiedAt)
}

// Verified tells whether the message attests a positive verdict.
func (m AttestationMessage) Verified() bool {
	return m.Result == ResultVerified
}

// VerifiedAtMillis returns verified_at as unix milliseconds. A timestamp without zone is read as UTC.
func (m AttestationMessage) VerifiedAtMillis() (int64, error) {
	t, err := ParseVerifiedAt(m.VerifiedAt)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// FormatVerifiedAt renders a unix millisecond timestamp as verified_at.
func FormatVerifiedAt(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(VerifiedAtLayout)
}

// ParseVerifiedAt parses an RFC 3339 timestamp, falling back to UTC when the zone is missing.
func ParseVerifiedAt(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	if !strings.HasSuffix(s, "Z") {
		if t, err2 := time.Parse(time.RFC3339Nano, s+"Z"); err2 == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing verified_at %q: %w", s, err)
}
