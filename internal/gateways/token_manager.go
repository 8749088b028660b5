package gateways

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	"github.com/polygonid/attestation-bridge/internal/log"
	"github.com/polygonid/attestation-bridge/internal/metrics"
	"github.com/polygonid/attestation-bridge/pkg/cache"
	httpclient "github.com/polygonid/attestation-bridge/pkg/http"
)

const credentialCacheKey = "authority:credential"

// AuthorityCredentials are the API key pair used against the authenticate endpoint
type AuthorityCredentials struct {
	AuthURL   string
	APIKey    string
	APISecret string
}

// TokenManager owns the authority credential. It is safe for concurrent use.
type TokenManager struct {
	mu      sync.Mutex
	conn    *httpclient.Client
	creds   AuthorityCredentials
	cache   cache.Cache
	metrics *metrics.Metrics
	now     func() time.Time
}

type authResponse struct {
	AccessToken string `json:"access_token"`
}

// NewTokenManager creates a TokenManager that keeps the credential in c
func NewTokenManager(conn *httpclient.Client, creds AuthorityCredentials, c cache.Cache, m *metrics.Metrics) *TokenManager {
	return &TokenManager{conn: conn, creds: creds, cache: c, metrics: m, now: time.Now}
}

var _ ports.TokenProvider = (*TokenManager)(nil)

// GetValidToken returns the cached credential while now + 1h is before its expiry and authenticates otherwise.
func (t *TokenManager) GetValidToken(ctx context.Context) (*domain.Credential, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var cred domain.Credential
	if t.cache.Get(ctx, credentialCacheKey, &cred) && cred.IsValid(t.now()) {
		return &cred, nil
	}
	log.Info(ctx, "authority credential missing or about to expire, authenticating")
	return t.authenticate(ctx)
}

// Invalidate drops the cached credential
func (t *TokenManager) Invalidate(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.cache.Delete(ctx, credentialCacheKey); err != nil {
		log.Warn(ctx, "cannot drop authority credential", "err", err)
	}
}

func (t *TokenManager) authenticate(ctx context.Context) (*domain.Credential, error) {
	headers := map[string]string{
		"accept":       "application/json",
		"x-api-key":    t.creds.APIKey,
		"x-api-secret": t.creds.APISecret,
	}
	resp, err := t.conn.Do(ctx, http.MethodPost, t.creds.AuthURL, headers, nil)
	if err != nil {
		t.metrics.IncAuthorityCall("authenticate", 0)
		return nil, &domain.AuthError{Err: errors.WithStack(err)}
	}
	t.metrics.IncAuthorityCall("authenticate", resp.StatusCode)
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &domain.AuthError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var body authResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, &domain.AuthError{StatusCode: resp.StatusCode, Body: string(resp.Body), Err: errors.Wrap(err, "decoding auth response")}
	}
	if body.AccessToken == "" {
		return nil, &domain.AuthError{StatusCode: resp.StatusCode, Body: string(resp.Body), Err: errors.New("no access_token in auth response")}
	}

	now := t.now()
	cred := domain.Credential{
		Token:     body.AccessToken,
		IssuedAt:  now,
		ExpiresAt: now.Add(domain.CredentialTTL),
	}
	if exp, ok := tokenExpiry(body.AccessToken); ok && exp.Before(cred.ExpiresAt) {
		log.Debug(ctx, "credential expiry lowered to the token exp claim", "exp", exp)
		cred.ExpiresAt = exp
	}
	if err := t.cache.Set(ctx, credentialCacheKey, cred, cred.ExpiresAt.Sub(now)); err != nil {
		log.Warn(ctx, "cannot cache authority credential", "err", err)
	}
	t.metrics.IncTokenRefresh()
	log.Info(ctx, "authenticated with the verification authority", "expiresAt", cred.ExpiresAt)
	return &cred, nil
}

// tokenExpiry reads the exp claim of a JWT without verifying it. Opaque tokens report false.
func tokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
