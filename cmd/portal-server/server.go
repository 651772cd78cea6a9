package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ayush/terminology-portal/internal/config"
	"github.com/ayush/terminology-portal/internal/domain/emr"
	"github.com/ayush/terminology-portal/internal/domain/mapping"
	"github.com/ayush/terminology-portal/internal/domain/terminology"
	"github.com/ayush/terminology-portal/internal/platform/auth"
	"github.com/ayush/terminology-portal/internal/platform/events"
	"github.com/ayush/terminology-portal/internal/platform/fhir"
	"github.com/ayush/terminology-portal/internal/platform/middleware"
)

// defaultRequestBodyLimit applies to every route except bundle submission.
const defaultRequestBodyLimit = "1M"

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.StoreDriver).Msg("failed to open store")
	}
	defer st.close()

	if cfg.SeedSampleData {
		if _, err := seedSampleData(ctx, st, logger); err != nil {
			logger.Error().Err(err).Msg("sample data seeding failed")
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialAMQP(cfg.AMQPURL, events.DefaultQueue, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
		}
		publisher = amqpPublisher
	}
	defer publisher.Close()

	dispatcher := emr.NewDispatcher(cfg.IngestWorkers, logger)

	e := newEcho(cfg, logger)
	apiV1 := e.Group("/api/v1")
	if cfg.RateLimitRPS > 0 {
		apiV1.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimitRPS,
			BurstSize:         cfg.RateLimitBurst,
			IdleTTL:           middleware.DefaultRateLimitConfig().IdleTTL,
		}))
	} else {
		apiV1.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
	}

	registerDomains(apiV1, st, publisher, dispatcher, logger)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
			"store":   st.driver,
		})
	})
	e.GET("/health/db", st.health)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("store", st.driver).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}

	// Submissions accepted before shutdown get the grace period to finish;
	// anything still running after it is cancelled and recorded as failed.
	graceCtx, cancelGrace := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownGraceSeconds)*time.Second)
	defer cancelGrace()
	if err := dispatcher.Shutdown(graceCtx); err != nil {
		logger.Warn().Err(err).Msg("background processing cut short")
	}

	logger.Info().Msg("server stopped")
	return nil
}

func newEcho(cfg *config.Config, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.SecureWithConfig(echomw.SecureConfig{
		XSSProtection:         "0",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		ReferrerPolicy:        "no-referrer",
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, middleware.RequestIDHeader},
		AllowCredentials: true,
	}))
	e.Use(middleware.BodyLimit(defaultRequestBodyLimit, cfg.BodyLimit))

	if cfg.IsDev() && cfg.AuthSigningKey == "" && cfg.AuthJWKSURL == "" && cfg.AuthIssuer == "" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}
	return e
}

// registerDomains wires the terminology, mapping and EMR modules onto api.
func registerDomains(api *echo.Group, st *store, publisher events.Publisher, dispatcher *emr.Dispatcher, logger zerolog.Logger) {
	registry := fhir.DefaultSystemRegistry()

	termSvc := terminology.NewService(st.terms)
	terminology.NewHandler(termSvc).RegisterRoutes(api)

	resolver := mapping.NewResolver(st.mappings, st.terms)
	mapping.NewHandler(resolver, mapping.NewSynthesizer(registry), mapping.NewService(st.mappings)).RegisterRoutes(api)

	processor := emr.NewProcessor(st.submissions, registry, st.terms, st.mappings, publisher, logger)
	emrSvc := emr.NewService(st.submissions, emr.NewRecentCache(emr.DefaultRecentCapacity), processor, dispatcher, logger)
	emr.NewHandler(emrSvc).RegisterRoutes(api)
}
