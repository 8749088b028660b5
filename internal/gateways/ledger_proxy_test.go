package gateways

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	httpclient "github.com/polygonid/attestation-bridge/pkg/http"
)

func newTestProxyExecutor(t *testing.T, handler http.HandlerFunc) *proxyExecutor {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	conn := httpclient.NewRetryClient(context.Background(), httpclient.Options{Timeout: 5 * time.Second})
	return NewProxyExecutor(conn, srv.URL).(*proxyExecutor)
}

func TestProxyExecutor_Execute(t *testing.T) {
	ctx := context.Background()
	cmd := domain.LedgerCommand{PackageID: "0xpkg", Module: "did_registry", Function: "start_verification", Args: []string{"0xregistry"}, GasBudget: "10000000"}

	t.Run("posts the command and fills created objects from stdout", func(t *testing.T) {
		p := newTestProxyExecutor(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/sui/client/call", r.URL.Path)
			var got domain.LedgerCommand
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, cmd, got)
			_ = json.NewEncoder(w).Encode(domain.LedgerCommandResult{Success: true, Stdout: jsonOutput})
		})
		res, err := p.Execute(ctx, cmd)
		require.NoError(t, err)
		assert.True(t, res.Success)
		require.Len(t, res.CreatedObjects, 2)
	})

	t.Run("proxy failure answer", func(t *testing.T) {
		p := newTestProxyExecutor(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"success":false,"error":"timeout"}`))
		})
		res, err := p.Execute(ctx, cmd)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Stderr, "timeout")
	})

	t.Run("non json answer", func(t *testing.T) {
		p := newTestProxyExecutor(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("bad gateway"))
		})
		_, err := p.Execute(ctx, cmd)
		var statusErr *httpclient.StatusError
		require.ErrorAs(t, err, &statusErr)
		assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	})
}

func TestProxyExecutor_Ping(t *testing.T) {
	p := newTestProxyExecutor(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status":"healthy","service":"sui-proxy"}`))
	})
	assert.NoError(t, p.Ping(context.Background()))
}
