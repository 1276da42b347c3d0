package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordersUpdateExposedMetrics(t *testing.T) {
	m := New()
	m.RecordTurn("main", "ok", 250*time.Millisecond)
	m.RecordStep("main")
	m.RecordToolCall("Shell", 10*time.Millisecond, false)
	m.RecordToolCall("Shell", 5*time.Millisecond, true)
	m.RecordLLMCall("gpt-5", time.Second, 100, 40)
	m.SetApprovalsPending("main", 2)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNilMetricsIsNoOp(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTurn("main", "ok", time.Second)
		m.RecordStep("main")
		m.RecordToolCall("Shell", time.Second, true)
		m.RecordLLMCall("gpt-5", time.Second, 1, 1)
		m.SetApprovalsPending("main", 1)
	})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
