package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcomes
const (
	OutcomeAcked      = "acked"
	OutcomeRetry      = "retry"
	OutcomePoison     = "poison"
	OutcomeDeadLetter = "dead_letter"
)

// Metrics tracks the attestation pipeline.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	Messages          *prometheus.CounterVec
	Stages            *prometheus.CounterVec
	AuthorityCalls    *prometheus.CounterVec
	TokenRefreshes    prometheus.Counter
	LedgerCommands    *prometheus.CounterVec
	UnknownDIDCodes   prometheus.Counter
	MessageDuration   prometheus.Histogram
	LedgerCommandTime *prometheus.HistogramVec
}

// New creates the pipeline metrics registered in reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Messages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_messages_total",
			Help: "Queue messages handled, by outcome",
		}, []string{"outcome"}),
		Stages: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_stages_total",
			Help: "Pipeline stages reached",
		}, []string{"stage"}),
		AuthorityCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_authority_calls_total",
			Help: "Verification authority calls, by endpoint and status class",
		}, []string{"endpoint", "status"}),
		TokenRefreshes: f.NewCounter(prometheus.CounterOpts{
			Name: "attestation_token_refreshes_total",
			Help: "Authority credentials obtained",
		}),
		LedgerCommands: f.NewCounterVec(prometheus.CounterOpts{
			Name: "attestation_ledger_commands_total",
			Help: "Ledger commands executed, by function and outcome",
		}, []string{"function", "outcome"}),
		UnknownDIDCodes: f.NewCounter(prometheus.CounterOpts{
			Name: "attestation_unknown_did_codes_total",
			Help: "DID codes that fell back to age verification",
		}),
		MessageDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "attestation_message_duration_seconds",
			Help:    "Time spent processing one queue message",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		LedgerCommandTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "attestation_ledger_command_duration_seconds",
			Help:    "Ledger command latency, by function",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"function"}),
	}
}

// IncMessage records a message outcome.
func (m *Metrics) IncMessage(outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(outcome).Inc()
}

// IncStage records a reached stage.
func (m *Metrics) IncStage(stage string) {
	if m == nil {
		return
	}
	m.Stages.WithLabelValues(stage).Inc()
}

// IncAuthorityCall records an authority call with the status class (2xx, 4xx, 5xx, error).
func (m *Metrics) IncAuthorityCall(endpoint string, statusCode int) {
	if m == nil {
		return
	}
	m.AuthorityCalls.WithLabelValues(endpoint, StatusClass(statusCode)).Inc()
}

// IncTokenRefresh records a new credential.
func (m *Metrics) IncTokenRefresh() {
	if m == nil {
		return
	}
	m.TokenRefreshes.Inc()
}

// ObserveLedgerCommand records a ledger command outcome and its latency.
// Call with time.Now() at the start of the command.
func (m *Metrics) ObserveLedgerCommand(function string, ok bool, start time.Time) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.LedgerCommands.WithLabelValues(function, outcome).Inc()
	m.LedgerCommandTime.WithLabelValues(function).Observe(time.Since(start).Seconds())
}

// IncUnknownDIDCode records a DID code fallback.
func (m *Metrics) IncUnknownDIDCode() {
	if m == nil {
		return
	}
	m.UnknownDIDCodes.Inc()
}

// ObserveMessage records the duration of one message.
// Call with time.Now() at the start of the message.
func (m *Metrics) ObserveMessage(start time.Time) {
	if m == nil {
		return
	}
	m.MessageDuration.Observe(time.Since(start).Seconds())
}

// StatusClass buckets an http status. Zero means the call never got an answer.
func StatusClass(code int) string {
	switch {
	case code == 0:
		return "error"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
