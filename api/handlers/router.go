package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/flowcanvas/execution"
	"github.com/BaSui01/flowcanvas/internal/metrics"
	"github.com/BaSui01/flowcanvas/persistence"
)

// RouterOptions bundles the dependencies of the HTTP surface.
type RouterOptions struct {
	Store          persistence.GraphStore
	Fetcher        execution.Fetcher
	Mode           execution.Mode
	StreamInterval time.Duration
	Metrics        *metrics.Collector
	Auth           AuthConfig
	Version        string
	Logger         *zap.Logger
}

// NewRouter wires every handler onto a ServeMux and applies the
// middleware stack.
func NewRouter(opts RouterOptions) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	graphs := NewGraphsHandler(opts.Store, opts.Metrics, logger)
	servers := NewServersHandler(opts.Store, logger)
	health := NewHealthHandler(opts.Version, logger)
	health.RegisterCheck(StoreCheck{CheckName: "store", Pinger: opts.Store})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/graphs", graphs.HandleList)
	mux.HandleFunc("GET /api/v1/graphs/{name}", graphs.HandleGet)
	mux.HandleFunc("PUT /api/v1/graphs/{name}", graphs.HandlePut)
	mux.HandleFunc("DELETE /api/v1/graphs/{name}", graphs.HandleDelete)
	mux.HandleFunc("POST /api/v1/graphs/{name}/rename", graphs.HandleRename)
	mux.HandleFunc("GET /api/v1/graphs/{name}/stats", graphs.HandleStats)

	mux.HandleFunc("GET /api/v1/servers", servers.HandleGet)
	mux.HandleFunc("POST /api/v1/servers", servers.HandleAdd)
	mux.HandleFunc("PUT /api/v1/servers/{name}", servers.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/servers/{name}", servers.HandleDelete)

	if opts.Fetcher != nil {
		exec := NewExecutionHandler(opts.Fetcher, opts.Mode, opts.StreamInterval, opts.Metrics, logger)
		mux.HandleFunc("GET /api/v1/executions/{conversation_id}", exec.HandleGet)
		mux.HandleFunc("GET /api/v1/executions/{conversation_id}/stream", exec.HandleStream)
	}

	mux.HandleFunc("GET /healthz", health.HandleHealthz)
	mux.HandleFunc("GET /readyz", health.HandleReadyz)
	mux.Handle("GET /metrics", promhttp.Handler())

	auth := opts.Auth
	if auth.Enabled && len(auth.SkipPaths) == 0 {
		auth.SkipPaths = []string{"/healthz", "/readyz", "/metrics"}
	}

	return Chain(mux,
		RequestLogging(logger),
		RequestMetrics(opts.Metrics),
		JWTAuth(auth, logger),
	)
}
