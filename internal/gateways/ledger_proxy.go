package gateways

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	httpclient "github.com/polygonid/attestation-bridge/pkg/http"
)

type proxyExecutor struct {
	conn    *httpclient.Client
	baseURL string
}

// NewProxyExecutor sends ledger commands to a ledger proxy service
func NewProxyExecutor(conn *httpclient.Client, baseURL string) ports.LedgerExecutor {
	return &proxyExecutor{conn: conn, baseURL: baseURL}
}

// Execute posts cmd to /sui/client/call. A failed command is a result with Success false, not an error.
func (p *proxyExecutor) Execute(ctx context.Context, cmd domain.LedgerCommand) (*domain.LedgerCommandResult, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	resp, err := p.conn.Do(ctx, http.MethodPost, p.baseURL+"/sui/client/call", map[string]string{"Content-Type": "application/json"}, body)
	if err != nil {
		return nil, errors.Wrap(err, "calling ledger proxy")
	}

	var res domain.LedgerCommandResult
	if err := json.Unmarshal(resp.Body, &res); err != nil {
		return nil, &httpclient.StatusError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}
	if resp.StatusCode >= http.StatusBadRequest && res.Stderr == "" {
		res.Success = false
		res.Stderr = string(resp.Body)
	}
	if len(res.CreatedObjects) == 0 {
		res.CreatedObjects = CreatedObjectsFromJSON(res.Stdout)
	}
	return &res, nil
}

// Ping checks the proxy health endpoint
func (p *proxyExecutor) Ping(ctx context.Context) error {
	_, err := p.conn.Get(ctx, p.baseURL+"/health")
	return err
}
