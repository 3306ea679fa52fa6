package app

import (
	"net/http"
	"time"

	authapi "github.com/onpaws/refresh-token-postgraphile/cmd/internal/auth/api"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func registerHTTP(
	mux *http.ServeMux,
	log Logger,
	cfg Config,
	pools *dbPools,
	registry *prometheus.Registry,
	auth *authapi.Handler,
) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.ReadinessRequireDB && pools == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if pools != nil {
			if err := pools.ping(r.Context(), 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	if cfg.MetricsEnabled && registry != nil {
		mux.Handle(cfg.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorLog: slogPromLogger{log: log},
		}))
	}

	auth.Register(mux)
}

// slogPromLogger adapts slog to promhttp's Println-style error logger.
type slogPromLogger struct {
	log Logger
}

func (l slogPromLogger) Println(v ...interface{}) {
	l.log.Error("metrics.scrape.fail", "err", v)
}
