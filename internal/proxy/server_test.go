package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
)

type fakeCLI struct {
	executed []domain.LedgerCommand
	result   *domain.LedgerCommandResult
	err      error
}

func (f *fakeCLI) Execute(_ context.Context, cmd domain.LedgerCommand) (*domain.LedgerCommandResult, error) {
	f.executed = append(f.executed, cmd)
	return f.result, f.err
}

func (f *fakeCLI) ActiveAddress(context.Context) (*domain.LedgerCommandResult, error) {
	return &domain.LedgerCommandResult{Success: true, Stdout: "0xabc"}, f.err
}

func (f *fakeCLI) Gas(context.Context) (*domain.LedgerCommandResult, error) {
	return &domain.LedgerCommandResult{Success: true, Stdout: "gas coins"}, f.err
}

func do(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestServer_Health(t *testing.T) {
	h := NewServer(&fakeCLI{}).Handler(context.Background())
	rr := do(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"sui-proxy"}`, rr.Body.String())
}

func TestServer_Call(t *testing.T) {
	ctx := context.Background()

	t.Run("runs the command with the default gas budget", func(t *testing.T) {
		cli := &fakeCLI{result: &domain.LedgerCommandResult{
			Success:        true,
			Stdout:         "{}",
			Command:        "sui client call",
			CreatedObjects: []domain.CreatedObject{{ID: "0x5f3a", Type: "0xpkg::did_registry::UserDID"}},
		}}
		h := NewServer(cli).Handler(ctx)
		rr := do(t, h, http.MethodPost, "/sui/client/call", []byte(`{"package_id":"0xpkg","module":"did_registry","function":"start_verification","args":["0xregistry","1"]}`))
		require.Equal(t, http.StatusOK, rr.Code)

		require.Len(t, cli.executed, 1)
		assert.Equal(t, "10000000", cli.executed[0].GasBudget)
		assert.Equal(t, []string{"0xregistry", "1"}, cli.executed[0].Args)

		var res domain.LedgerCommandResult
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Equal(t, []domain.CreatedObject{{ID: "0x5f3a", Type: "0xpkg::did_registry::UserDID"}}, res.CreatedObjects)
		assert.Contains(t, rr.Body.String(), `"returncode":0`)
	})

	t.Run("missing fields", func(t *testing.T) {
		for name, body := range map[string]string{
			"no package":  `{"module":"did_registry","function":"f"}`,
			"no module":   `{"package_id":"0xpkg","function":"f"}`,
			"no function": `{"package_id":"0xpkg","module":"did_registry"}`,
			"not json":    `package`,
		} {
			t.Run(name, func(t *testing.T) {
				cli := &fakeCLI{}
				rr := do(t, NewServer(cli).Handler(ctx), http.MethodPost, "/sui/client/call", []byte(body))
				assert.Equal(t, http.StatusBadRequest, rr.Code)
				assert.Empty(t, cli.executed)
			})
		}
	})

	t.Run("cli failure", func(t *testing.T) {
		cli := &fakeCLI{err: errors.New("sui not found")}
		rr := do(t, NewServer(cli).Handler(ctx), http.MethodPost, "/sui/client/call", []byte(`{"package_id":"0xpkg","module":"m","function":"f"}`))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.JSONEq(t, `{"success":false,"error":"sui not found"}`, rr.Body.String())
	})
}

func TestServer_ClientQueries(t *testing.T) {
	h := NewServer(&fakeCLI{}).Handler(context.Background())

	rr := do(t, h, http.MethodGet, "/sui/client/active-address", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"stdout":"0xabc"`)

	rr = do(t, h, http.MethodGet, "/sui/client/gas", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"success":true`)
}
