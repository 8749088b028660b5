package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncMessage(OutcomeAcked)
	m.IncMessage(OutcomeAcked)
	m.IncMessage(OutcomePoison)
	m.IncAuthorityCall("verify", 200)
	m.IncAuthorityCall("verify", 503)
	m.ObserveLedgerCommand("start_verification", true, time.Now())
	m.IncUnknownDIDCode()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Messages.WithLabelValues(OutcomeAcked)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Messages.WithLabelValues(OutcomePoison)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthorityCalls.WithLabelValues("verify", "5xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerCommands.WithLabelValues("start_verification", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnknownDIDCodes))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncMessage(OutcomeRetry)
		m.IncStage("received")
		m.IncTokenRefresh()
		m.ObserveMessage(time.Now())
	})
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "error", StatusClass(0))
	assert.Equal(t, "2xx", StatusClass(201))
	assert.Equal(t, "4xx", StatusClass(401))
	assert.Equal(t, "5xx", StatusClass(502))
}
