package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/ateliemoda/backend-atelie/internal/app"
	"github.com/ateliemoda/backend-atelie/internal/audit"
	"github.com/ateliemoda/backend-atelie/internal/auth"
	"github.com/ateliemoda/backend-atelie/internal/config"
	"github.com/ateliemoda/backend-atelie/internal/consignment"
	"github.com/ateliemoda/backend-atelie/internal/dre"
	"github.com/ateliemoda/backend-atelie/internal/events"
	"github.com/ateliemoda/backend-atelie/internal/finance"
	"github.com/ateliemoda/backend-atelie/internal/health"
	"github.com/ateliemoda/backend-atelie/internal/inventory"
	"github.com/ateliemoda/backend-atelie/internal/obs"
	"github.com/ateliemoda/backend-atelie/internal/ratelimit"
	"github.com/ateliemoda/backend-atelie/internal/reconcile"
	"github.com/ateliemoda/backend-atelie/internal/repo"
	"github.com/ateliemoda/backend-atelie/internal/settlement"
	"github.com/ateliemoda/backend-atelie/internal/stock"
	"github.com/ateliemoda/backend-atelie/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "atelie")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	httpMetrics := obs.NewHTTPMetrics(metricsNamespace, nil, nil)

	if envOrDefault("OBS_ENABLE_TRACING", "true") == "true" {
		ratio, _ := strconv.ParseFloat(envOrDefault("OBS_TRACE_SAMPLING_RATIO", "1"), 64)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "atelie-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: ratio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if src := envOrDefault("MIGRATIONS_URL", "file://migrations"); src != "" {
		if err := app.RunMigrations(src, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "atelie-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	store := repo.NewStore(pool)
	ledger := stock.NewPGLedger(pool)
	bus := events.NewBus(store, logger)
	defer bus.Wait()

	auditSvc := &audit.Service{Recorder: store, Log: logger}
	auditSvc.SubscribeDomainEvents(bus)

	authSvc := &auth.Service{
		Secret:    []byte(cfg.JWTSecret),
		Issuer:    cfg.JWTIssuer,
		AccessTTL: 15 * time.Minute,
	}
	authMW := auth.Middleware{Service: authSvc}

	settlementSvc := &settlement.Service{
		Q:                 store,
		Bus:               bus,
		DefaultCommission: cfg.DefaultCommissionPercent,
	}
	reconcileSvc := &reconcile.Service{
		Q:        store,
		Sessions: &reconcile.RedisStore{R: redisClient, TTL: cfg.ReconcileSessionTTL},
		Ledger:   ledger,
		Bus:      bus,
	}
	consignmentSvc := &consignment.Service{
		Q:                 store,
		Ledger:            ledger,
		DefaultCommission: cfg.DefaultCommissionPercent,
	}
	dreSvc := &dre.Service{Q: store, R: redisClient, TTL: cfg.DreCacheTTL}
	financeSvc := &finance.Service{Q: store, Validate: validator.New()}
	inventorySvc := &inventory.Service{
		Q:     store,
		Cache: inventory.NewCache(redisClient, cfg.InventoryCacheTTL),
	}

	settlementHandler := &settlement.Handler{Svc: settlementSvc}
	reconcileHandler := &reconcile.Handler{Svc: reconcileSvc}
	consignmentHandler := &consignment.Handler{Svc: consignmentSvc}
	dreHandler := &dre.Handler{Svc: dreSvc}
	financeHandler := &finance.Handler{Svc: financeSvc}
	inventoryHandler := &inventory.Handler{Svc: inventorySvc}
	healthHandler := health.Handler{Checker: health.DepChecker{Pool: pool, Redis: redisClient}}

	limiter := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:"},
		Config: ratelimit.Config{
			Key:    ratelimit.TenantKey,
			Window: cfg.RateLimitWindow,
			Max:    cfg.RateLimitMax,
		},
		OnError: func(err error) {
			logger.Error().Err(err).Msg("rate limiter unavailable")
		},
	}

	resolver := tenant.NewResolver(cfg.TenantHeader, cfg.RootDomain, cfg.DefaultTenant)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", cfg.TenantHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(resolver.Middleware)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(tenant.Require)
		r.Use(authMW.RequireAuth)
		r.Use(limiter.Middleware)

		r.Route("/consignments", func(r chi.Router) {
			r.Get("/", consignmentHandler.List)
			r.Post("/", consignmentHandler.Create)
			r.Get("/{id}", consignmentHandler.Get)
			r.Post("/{id}/settlement/preview", settlementHandler.Preview)
			r.Post("/{id}/settlement", settlementHandler.Settle)
		})

		r.Route("/events/{id}/reconciliation", func(r chi.Router) {
			r.Post("/", reconcileHandler.Start)
			r.Get("/", reconcileHandler.Get)
			r.Post("/counts", reconcileHandler.Count)
			r.Post("/notes", reconcileHandler.Notes)
			r.Post("/reveal", reconcileHandler.Reveal)
			r.Post("/review", reconcileHandler.Review)
			r.Post("/reopen", reconcileHandler.Reopen)
			r.Post("/confirm", reconcileHandler.Confirm)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", financeHandler.List)
			r.Post("/", financeHandler.Record)
		})
		r.Get("/reports/dre", dreHandler.Report)
		r.Get("/products", inventoryHandler.List)
	})

	handler := otelhttp.NewHandler(r, "atelie-api")
	server := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("serve http")
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)
	<-stopCh
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown http server")
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
