package gateways

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	"github.com/polygonid/attestation-bridge/internal/log"
	"github.com/polygonid/attestation-bridge/internal/metrics"
	httpclient "github.com/polygonid/attestation-bridge/pkg/http"
)

const panVerificationEntity = "in.co.sandbox.kyc.pan_verification.request"

type panVerificationRequest struct {
	Entity       string `json:"@entity"`
	PAN          string `json:"pan"`
	NameAsPerPAN string `json:"name_as_per_pan"`
	DateOfBirth  string `json:"date_of_birth"`
	Consent      string `json:"consent"`
	Reason       string `json:"reason"`
}

type authority struct {
	conn    *httpclient.Client
	baseURL string
	apiKey  string
	tokens  ports.TokenProvider
	metrics *metrics.Metrics
}

// NewAuthority returns the verification authority client
func NewAuthority(conn *httpclient.Client, baseURL, apiKey string, tokens ports.TokenProvider, m *metrics.Metrics) ports.VerificationAuthority {
	return &authority{conn: conn, baseURL: baseURL, apiKey: apiKey, tokens: tokens, metrics: m}
}

// Verify submits the claim and decodes the verdict
func (a *authority) Verify(ctx context.Context, doc *domain.DocumentData) (*domain.VerificationVerdict, error) {
	cred, err := a.tokens.GetValidToken(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(panVerificationRequest{
		Entity:       panVerificationEntity,
		PAN:          doc.PAN,
		NameAsPerPAN: doc.NameAsPerPAN,
		DateOfBirth:  doc.DateOfBirth,
		Consent:      doc.Consent,
		Reason:       doc.Reason,
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	// the authority expects the raw token, without a Bearer prefix
	headers := map[string]string{
		"authorization": cred.Token,
		"x-api-key":     a.apiKey,
		"Content-Type":  "application/json",
	}
	resp, err := a.conn.Do(ctx, http.MethodPost, a.baseURL+"/kyc/pan/verify", headers, body)
	if err != nil {
		a.metrics.IncAuthorityCall("verify", 0)
		return nil, &domain.AuthorityUnavailableError{Err: errors.WithStack(err)}
	}
	a.metrics.IncAuthorityCall("verify", resp.StatusCode)
	log.Debug(ctx, "authority answered", "status", resp.StatusCode)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		a.tokens.Invalidate(ctx)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &domain.AuthorityUnavailableError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	var verdict domain.VerificationVerdict
	if err := json.Unmarshal(resp.Body, &verdict); err != nil {
		return nil, &domain.AuthorityResponseMalformedError{Body: string(resp.Body), Err: err}
	}
	if verdict.Data.Status == "" || verdict.Data.PAN == "" {
		return nil, &domain.AuthorityResponseMalformedError{Body: string(resp.Body), Err: errors.New("verdict lacks data.pan or data.status")}
	}
	return &verdict, nil
}

// Ping makes sure a credential can be obtained
func (a *authority) Ping(ctx context.Context) error {
	_, err := a.tokens.GetValidToken(ctx)
	return err
}
