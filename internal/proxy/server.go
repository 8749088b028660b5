package proxy

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/polygonid/attestation-bridge/internal/core/domain"
	"github.com/polygonid/attestation-bridge/internal/gateways"
	"github.com/polygonid/attestation-bridge/internal/log"
)

const serviceName = "sui-proxy"

// LedgerCLI is the ledger client tooling fronted by the proxy
type LedgerCLI interface {
	Execute(ctx context.Context, cmd domain.LedgerCommand) (*domain.LedgerCommandResult, error)
	ActiveAddress(ctx context.Context) (*domain.LedgerCommandResult, error)
	Gas(ctx context.Context) (*domain.LedgerCommandResult, error)
}

// Server exposes the ledger CLI over HTTP for hosts without a local CLI
type Server struct {
	cli LedgerCLI
}

// NewServer creates a Server
func NewServer(cli LedgerCLI) *Server {
	return &Server{cli: cli}
}

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Handler returns the routes of the proxy
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		log.ChiMiddleware(ctx),
		middleware.Recoverer,
	)
	mux.Get("/health", s.health)
	mux.Route("/sui/client", func(r chi.Router) {
		r.Get("/active-address", s.activeAddress)
		r.Get("/gas", s.gas)
		r.Post("/call", s.call)
	})
	return mux
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: serviceName})
}

func (s *Server) activeAddress(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.cli.ActiveAddress)
}

func (s *Server) gas(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, s.cli.Gas)
}

func (s *Server) call(w http.ResponseWriter, r *http.Request) {
	var cmd domain.LedgerCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if cmd.PackageID == "" || cmd.Module == "" || cmd.Function == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "package_id, module and function are required"})
		return
	}
	if cmd.GasBudget == "" {
		cmd.GasBudget = gateways.DefaultGasBudget
	}
	log.Info(r.Context(), "executing contract call", "module", cmd.Module, "function", cmd.Function)
	s.respond(w, r, func(ctx context.Context) (*domain.LedgerCommandResult, error) {
		return s.cli.Execute(ctx, cmd)
	})
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, run func(context.Context) (*domain.LedgerCommandResult, error)) {
	res, err := run(r.Context())
	if err != nil {
		log.Error(r.Context(), "ledger command", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
