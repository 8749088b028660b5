package domain

import "time"

// Credential lifetimes. The authority issues 24h tokens, the cache keeps them for 23h and
// refuses them within one hour of expiry.
const (
	CredentialTTL    = 23 * time.Hour
	CredentialBuffer = time.Hour
)

// Credential is a bearer token issued by the verification authority.
type Credential struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsValid tells whether the credential can still be used at now.
func (c *Credential) IsValid(now time.Time) bool {
	return c != nil && c.Token != "" && now.Add(CredentialBuffer).Before(c.ExpiresAt)
}
