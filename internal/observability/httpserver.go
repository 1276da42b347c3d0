package observability

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kagent-go/kagent/internal/metrics"
)

// NewHTTPServer builds a chi router serving /healthz and /metrics in
// Prometheus exposition format; with a nil m, /metrics answers 503
// Service Unavailable. Grounded on
// _examples/kadirpekel-hector/go.mod's chi dependency; hector wires
// chi into its own HTTP transport, this module uses it only for the
// operator-facing observability surface alongside the RPC server.
func NewHTTPServer(m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", m.Handler())

	return r
}
