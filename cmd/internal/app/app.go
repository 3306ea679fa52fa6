// Package app wires the authd runtime: config, logging, subject storage,
// the session service, and the HTTP surface.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/onpaws/refresh-token-postgraphile/cmd/identity"
	authapi "github.com/onpaws/refresh-token-postgraphile/cmd/internal/auth/api"
	"github.com/onpaws/refresh-token-postgraphile/cmd/internal/auth/session"
	"github.com/onpaws/refresh-token-postgraphile/cmd/security/password"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// App is the authd runtime: it owns the HTTP server and its dependencies.
type App struct {
	cfg Config
	log Logger

	pools    *dbPools
	subjects identity.Store
	sessions *session.Service
	registry *prometheus.Registry

	auth    *authapi.Handler
	handler http.Handler
}

// New constructs a fully wired App. Session, auth, and password settings
// are read from the environment by their owning packages.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	pwCfg, err := password.FromEnv()
	if err != nil {
		return nil, err
	}

	return newApp(ctx, cfg, log, sessCfg, authapi.LoadConfigFromEnv(), pwCfg)
}

func newApp(
	ctx context.Context,
	cfg Config,
	log Logger,
	sessCfg session.Config,
	authCfg authapi.Config,
	pwCfg password.Config,
) (*App, error) {
	pools, subjects, err := newSubjectStore(ctx, cfg, log, pwCfg)
	if err != nil {
		return nil, err
	}

	a, err := assemble(cfg, log, pools, subjects, sessCfg, authCfg)
	if err != nil {
		pools.Close()
		return nil, err
	}

	if err := seedDevSubject(ctx, cfg, log, subjects); err != nil {
		pools.Close()
		return nil, err
	}
	return a, nil
}

func assemble(
	cfg Config,
	log Logger,
	pools *dbPools,
	subjects identity.Store,
	sessCfg session.Config,
	authCfg authapi.Config,
) (*App, error) {
	sessions, err := session.NewService(sessCfg, subjects)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auth, err := authapi.NewHandler(log, sessions, authCfg, authapi.WithMetrics(authapi.NewMetrics(registry)))
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:      cfg,
		log:      log,
		pools:    pools,
		subjects: subjects,
		sessions: sessions,
		registry: registry,
		auth:     auth,
	}

	mux := http.NewServeMux()
	registerHTTP(mux, log, cfg, pools, registry, auth)
	a.handler = WithRequestLogging(WithSecurityHeaders(mux), log)

	log.Info("auth.config",
		"issuer", sessCfg.Issuer,
		"audience", sessCfg.Audience,
		"access_ttl", sessCfg.AccessTTL.String(),
		"refresh_ttl", sessCfg.RefreshTTL.String(),
		"refresh_path", authCfg.RefreshPath,
		"cookie_secure", authCfg.CookieSecure,
	)
	return a, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.pools != nil)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		a.Close()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		a.Close()
		return err
	}

	a.Close()
	a.log.Info("server.stopped")
	return nil
}

// Close releases database pools. Safe to call more than once.
func (a *App) Close() {
	a.pools.Close()
	a.pools = nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// newSubjectStore picks Postgres when a database URL is configured and the
// in-memory store otherwise. pools is nil in memory mode.
func newSubjectStore(ctx context.Context, cfg Config, log Logger, pwCfg password.Config) (*dbPools, identity.Store, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nil, identity.NewMemoryStore(pwCfg), nil
	}

	pools, err := openDBPools(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	st, err := identity.NewPostgresStore(pools.elevated, pools.reader,
		identity.WithSchemas(cfg.DBPublicSchema, cfg.DBPrivateSchema),
		identity.WithPasswordConfig(pwCfg),
	)
	if err != nil {
		pools.Close()
		return nil, nil, err
	}

	log.Info("db.enabled.postgres_store",
		"public_schema", cfg.DBPublicSchema,
		"private_schema", cfg.DBPrivateSchema,
		"reader_split", pools.reader != pools.elevated,
	)
	return pools, st, nil
}

// seedDevSubject creates the configured development subject, if any. An
// existing subject with the same email is left untouched.
func seedDevSubject(ctx context.Context, cfg Config, log Logger, subjects identity.Store) error {
	if cfg.DevSubjectEmail == "" && cfg.DevSubjectPassword == "" {
		return nil
	}
	if cfg.DevSubjectEmail == "" || cfg.DevSubjectPassword == "" {
		return errors.New("app: AUTHD_DEV_SUBJECT_EMAIL and AUTHD_DEV_SUBJECT_PASSWORD must be set together")
	}

	sub, err := subjects.CreateSubject(ctx, identity.CreateSubjectInput{
		Email:    cfg.DevSubjectEmail,
		Password: cfg.DevSubjectPassword,
		Role:     cfg.DevSubjectRole,
		Now:      time.Now().UTC(),
	})
	switch {
	case err == nil:
		log.Info("dev.subject.created", "subject_id", sub.ID, "role", sub.Role)
		return nil
	case identity.IsConflict(err):
		log.Info("dev.subject.exists")
		return nil
	default:
		return err
	}
}
