package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/polygonid/attestation-bridge/internal/buildinfo"
	"github.com/polygonid/attestation-bridge/internal/core/ports"
	"github.com/polygonid/attestation-bridge/internal/health"
	"github.com/polygonid/attestation-bridge/internal/log"
)

// Throughput reports how many messages the worker processed
type Throughput interface {
	Total() uint64
	Rate() float64
}

// Server is the status surface of the attestation worker
type Server struct {
	health     *health.Status
	signer     ports.AttestationSigner
	gatherer   prometheus.Gatherer
	throughput Throughput
}

// NewServer creates a Server. gatherer may be nil to disable /metrics.
func NewServer(h *health.Status, signer ports.AttestationSigner, gatherer prometheus.Gatherer, throughput Throughput) *Server {
	return &Server{health: h, signer: signer, gatherer: gatherer, throughput: throughput}
}

// StatusResponse is the liveness answer
type StatusResponse struct {
	Status            string  `json:"status"`
	Revision          string  `json:"revision,omitempty"`
	MessagesProcessed uint64  `json:"messages_processed"`
	MessagesPerSecond float64 `json:"messages_per_second"`
}

// PublicKeyResponse carries the attestation verification key
type PublicKeyResponse struct {
	KeyType   string `json:"key_type"`
	PublicKey string `json:"public_key"`
}

// Handler returns the routes of the status server
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := chi.NewRouter()
	mux.Use(
		middleware.RequestID,
		log.ChiMiddleware(ctx),
		middleware.Recoverer,
	)
	mux.Get("/status", s.status)
	mux.Get("/health", s.healthCheck)
	mux.Get("/public_key", s.publicKey)
	if s.gatherer != nil {
		mux.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

func (s *Server) status(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{Status: "ok", Revision: buildinfo.Revision()}
	if s.throughput != nil {
		resp.MessagesProcessed = s.throughput.Total()
		resp.MessagesPerSecond = s.throughput.Rate()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	status := s.health.Status(r.Context())
	code := http.StatusOK
	for name, ok := range status {
		if !ok {
			log.Warn(r.Context(), "dependency unhealthy", "dependency", name)
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

func (s *Server) publicKey(w http.ResponseWriter, r *http.Request) {
	pub, err := s.signer.PublicKey()
	if err != nil {
		log.Error(r.Context(), "reading attestation public key", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "public key unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, PublicKeyResponse{KeyType: s.signer.KeyType(), PublicKey: hex.EncodeToString(pub)})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
