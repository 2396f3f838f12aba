package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dentaldesk/dentaldesk/internal/config"
	"github.com/dentaldesk/dentaldesk/internal/domain/billing"
	"github.com/dentaldesk/dentaldesk/internal/domain/clinic"
	"github.com/dentaldesk/dentaldesk/internal/domain/clinical"
	"github.com/dentaldesk/dentaldesk/internal/domain/patient"
	"github.com/dentaldesk/dentaldesk/internal/domain/reminder"
	"github.com/dentaldesk/dentaldesk/internal/domain/reporting"
	"github.com/dentaldesk/dentaldesk/internal/domain/scheduling"
	"github.com/dentaldesk/dentaldesk/internal/platform/auth"
	"github.com/dentaldesk/dentaldesk/internal/platform/db"
	"github.com/dentaldesk/dentaldesk/internal/platform/metrics"
	"github.com/dentaldesk/dentaldesk/internal/platform/middleware"
	"github.com/dentaldesk/dentaldesk/internal/platform/notification"
)

const version = "0.1.0"

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		l := newLogger(os.Getenv("ENV"))
		l.Fatal().Err(err).Msg("failed to load config")
	}
	logger := newLogger(cfg.Env)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	e, cache := newServer(cfg, pool, logger)
	interval := cfg.CacheTTL
	if interval <= 0 {
		interval = time.Minute
	}
	cache.StartCleanup(ctx, interval)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

func authMiddleware(cfg *config.Config) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
	}
	if cfg.AuthSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthSigningKey)
	}
	if cfg.IsDev() {
		return auth.DevAuthMiddleware(jwtCfg)
	}
	return auth.JWTMiddleware(jwtCfg)
}

// newServer builds the echo instance with every service wired. It does not
// touch the database until a request arrives.
func newServer(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*echo.Echo, *middleware.ResponseCache) {
	decimal.MarshalJSONWithoutQuotes = true

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	if cfg.MetricsEnabled {
		e.Use(metrics.Middleware())
	}
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", map[string]string{"/patients/import": "10M"}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	if cfg.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler()))
	}

	tx := db.NewTransactor(pool)
	loc := cfg.Location()
	cache := middleware.NewResponseCache(cfg.CacheTTL)

	clinicSvc := clinic.NewService(clinic.NewClinicRepoPG(pool), clinic.NewUserRepoPG(pool), tx)
	patientSvc := patient.NewService(patient.NewRepoPG(pool), tx, cfg.PhoneRegion, logger)
	schedSvc := scheduling.NewService(scheduling.NewRepoPG(pool), tx, clinicSvc, loc, logger)
	clinicalSvc := clinical.NewService(clinical.NewProcedureRepoPG(pool), clinical.NewRecordRepoPG(pool), logger)
	billingSvc := billing.NewService(billing.NewRepoPG(pool), tx, clinicSvc, clinicalSvc, logger)
	reportingSvc := reporting.NewService(reporting.NewRepoPG(pool), clinicSvc, loc, logger)

	patientSvc.SetVisitScheduler(schedSvc)
	patientSvc.SetCache(cache)
	schedSvc.SetVisitRecorder(patientSvc)
	schedSvc.SetCache(cache)
	billingSvc.SetCache(cache)

	gateway := notification.NewGateway(cfg.BulkSMSBaseURL, cfg.BulkSMSTokenID, cfg.BulkSMSTokenSecret, logger)
	dispatcher := reminder.NewDispatcher(reminder.NewRepoPG(pool), gateway, loc, logger)

	// Cron runs without a user session.
	reminder.NewCronHandler(dispatcher, cfg.CronSecret, cfg.IsDev()).RegisterRoutes(e.Group("/api/cron"))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	apiV1 := e.Group("/api/v1", authMiddleware(cfg), clinic.ScopeMiddleware(clinicSvc), middleware.RateLimit(rateLimitCfg))

	clinic.NewHandler(clinicSvc).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	scheduling.NewHandler(schedSvc).RegisterRoutes(apiV1)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(apiV1)
	billing.NewHandler(billingSvc, cache).RegisterRoutes(apiV1)
	reporting.NewHandler(reportingSvc, cache).RegisterRoutes(apiV1)
	reminder.NewHandler(dispatcher).RegisterRoutes(apiV1)

	return e, cache
}
