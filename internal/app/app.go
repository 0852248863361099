package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/simp-lee/logger"

	"github.com/simp-lee/catalog/internal/config"
	"github.com/simp-lee/catalog/internal/crud"
	"github.com/simp-lee/catalog/internal/middleware"
	"github.com/simp-lee/catalog/internal/module/category"
	"github.com/simp-lee/catalog/internal/module/subcategory"
)

// App holds the core application dependencies and the HTTP server.
type App struct {
	engine  *gin.Engine
	storage *Storage
	logger  *logger.Logger
	cfg     *config.Config
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

var newHTTPServer = func(addr string, handler http.Handler, timeout time.Duration) httpServer {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if timeout > 0 {
		srv.ReadTimeout = timeout
		srv.WriteTimeout = timeout
	}
	return srv
}

var notifyContext = func(parent context.Context, signals ...os.Signal) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, signals...)
}

// New creates and wires a fully configured App from the given Config.
//
// It sets up logging, connects the storage backend, then builds the
// middleware chain and the resource modules on top of it.
func New(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	success := false

	log, err := config.SetupLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	if cfg.Server.Mode == gin.DebugMode && cfg.Server.Host == "0.0.0.0" {
		log.Warn("insecure server config: debug mode on 0.0.0.0 may expose debug behavior and permissive CORS")
	}
	defer func() {
		if success {
			return
		}
		if err := log.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}()

	storage, err := OpenStorage(context.Background(), &cfg.Database, log.Logger)
	if err != nil {
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	defer func() {
		if success {
			return
		}
		if err := storage.Close(); err != nil {
			slog.Error("storage close error", slog.Any("error", err))
		}
	}()
	log.Info("storage connected", slog.String("driver", storage.Driver))

	engine, err := newEngine(cfg, storage, log.Logger)
	if err != nil {
		return nil, err
	}

	success = true
	return &App{
		engine:  engine,
		storage: storage,
		logger:  log,
		cfg:     cfg,
	}, nil
}

// newEngine builds the gin engine serving storage according to cfg.
func newEngine(cfg *config.Config, storage *Storage, log *slog.Logger) (*gin.Engine, error) {
	if storage == nil {
		return nil, errors.New("storage is nil")
	}

	gin.SetMode(cfg.Server.Mode)
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	corsConfig, err := resolveCORSConfig(cfg.Server.Mode, cfg.Server.CORS)
	if err != nil {
		return nil, err
	}

	var metrics *middleware.Metrics
	chain := []gin.HandlerFunc{
		middleware.Recovery(log),
		middleware.RequestIDWithConfig(middleware.RequestIDConfig{TrustUpstream: false}),
		middleware.Logger(log),
	}
	if cfg.Metrics.Enabled {
		metrics = middleware.NewMetrics(cfg.Metrics.Namespace)
		chain = append(chain, metrics.Middleware())
	}
	chain = append(chain, middleware.CORSWithConfig(corsConfig))
	if cfg.Server.RateLimit.Enabled {
		chain = append(chain, middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimit.RPS,
			Burst:             cfg.Server.RateLimit.Burst,
		}))
	}
	chain = append(chain, middleware.ErrorHandler(log))
	engine.Use(chain...)

	opts := crud.Options{
		DefaultLimit: cfg.API.DefaultLimit,
		MaxLimit:     cfg.API.MaxLimit,
	}
	if cfg.Auth.Enabled {
		opts.Guard = []gin.HandlerFunc{middleware.RequireRole(cfg.Auth.JWTSecret, cfg.Auth.Roles...)}
	}

	if err := RegisterRoutes(engine, &RouteDeps{
		Modules: []Module{
			category.NewModule(storage.Categories, opts),
			subcategory.NewModule(storage.SubCategories, storage.Categories, opts),
		},
		Health:      storage,
		Metrics:     metrics,
		MetricsPath: cfg.Metrics.Path,
	}); err != nil {
		return nil, fmt.Errorf("register routes: %w", err)
	}
	return engine, nil
}

// resolveCORSConfig maps the server CORS settings onto the middleware. In
// release mode an empty allowlist denies cross-origin requests; elsewhere it
// falls back to the permissive defaults.
func resolveCORSConfig(mode string, cc config.CORSConfig) (middleware.CORSConfig, error) {
	out := middleware.DefaultCORSConfig()
	out.AllowCredentials = cc.AllowCredentials

	switch {
	case len(cc.AllowOrigins) > 0:
		out.AllowOrigins = cc.AllowOrigins
	case mode == gin.ReleaseMode:
		out.AllowOrigins = nil
	}
	if len(cc.AllowMethods) > 0 {
		out.AllowMethods = cc.AllowMethods
	}
	if len(cc.AllowHeaders) > 0 {
		out.AllowHeaders = cc.AllowHeaders
	}
	if cc.MaxAge != "" {
		d, err := time.ParseDuration(cc.MaxAge)
		if err != nil {
			return out, fmt.Errorf("invalid server.cors.max_age %q: %w", cc.MaxAge, err)
		}
		out.MaxAge = d
	}
	return out, nil
}

func parseOptionalDuration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Run starts the HTTP server and blocks until a shutdown signal is received.
// In-flight requests get server.shutdown_timeout to finish before the
// storage connection and the logger are closed.
func (a *App) Run() error {
	if a == nil {
		return errors.New("app is nil")
	}
	if a.cfg == nil {
		return errors.New("app config is nil")
	}
	if a.engine == nil {
		return errors.New("app engine is nil")
	}

	log := slog.Default()
	if a.logger != nil {
		log = a.logger.Logger
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	srv := newHTTPServer(addr, a.engine, parseOptionalDuration(a.cfg.Server.Timeout, 0))

	ctx, stop := notifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server started", slog.String("addr", addr), slog.String("mode", a.cfg.Server.Mode))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		runErr = fmt.Errorf("server error: %w", err)
	}

	if runErr == nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(),
			parseOptionalDuration(a.cfg.Server.ShutdownTimeout, 10*time.Second))
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown error", slog.Any("error", err))
		}
	}

	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			log.Error("storage close error", slog.Any("error", err))
		} else {
			log.Info("storage connection closed")
		}
	}

	log.Info("server stopped")
	if a.logger != nil {
		if err := a.logger.Close(); err != nil {
			slog.Error("logger close error", slog.Any("error", err))
		}
	}

	return runErr
}
