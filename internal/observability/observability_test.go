package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kagent-go/kagent/internal/metrics"
)

func TestInitGlobalTracerDisabledIsNoop(t *testing.T) {
	tp, err := InitGlobalTracer(context.Background(), TracerConfig{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := StartStepSpan(context.Background(), "main")
	EndSpan(span, nil)
}

func TestInitGlobalTracerEnabledBuildsProvider(t *testing.T) {
	tp, err := InitGlobalTracer(context.Background(), TracerConfig{Enabled: true, ServiceName: "kagent-test", SamplingRate: 1})
	require.NoError(t, err)
	require.NotNil(t, tp)

	ctx, span := StartToolSpan(context.Background(), "Shell")
	EndSpan(span, nil)
	_ = ctx
}

func TestHTTPServerHealthzAndMetrics(t *testing.T) {
	srv := httptest.NewServer(NewHTTPServer(metrics.New()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp2, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}
