package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/clinicrx/clinic/internal/config"
	"github.com/clinicrx/clinic/internal/domain/account"
	"github.com/clinicrx/clinic/internal/domain/auditlog"
	"github.com/clinicrx/clinic/internal/domain/dashboard"
	"github.com/clinicrx/clinic/internal/domain/favorite"
	"github.com/clinicrx/clinic/internal/domain/identity"
	"github.com/clinicrx/clinic/internal/domain/patient"
	"github.com/clinicrx/clinic/internal/domain/prescription"
	"github.com/clinicrx/clinic/internal/domain/subscription"
	"github.com/clinicrx/clinic/internal/domain/team"
	"github.com/clinicrx/clinic/internal/domain/template"
	"github.com/clinicrx/clinic/internal/platform/auth"
	"github.com/clinicrx/clinic/internal/platform/blobstore"
	"github.com/clinicrx/clinic/internal/platform/cache"
	"github.com/clinicrx/clinic/internal/platform/db"
	"github.com/clinicrx/clinic/internal/platform/i18n"
	"github.com/clinicrx/clinic/internal/platform/metrics"
	"github.com/clinicrx/clinic/internal/platform/middleware"
	"github.com/clinicrx/clinic/internal/platform/notification"
	"github.com/clinicrx/clinic/internal/platform/render"
	"github.com/clinicrx/clinic/internal/platform/reporting"
	"github.com/clinicrx/clinic/internal/platform/telemetry"
)

// statisticsMaxAge bounds how long dashboard statistics are served from
// memory when nothing invalidates them.
const statisticsMaxAge = 5 * time.Minute

func newLogger(env, level string) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if env == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}

// resolveKey returns value as a key, or a random 32-byte key when value is
// empty. The second return value is true when a random key was generated.
func resolveKey(value string) ([]byte, bool, error) {
	if value != "" {
		return []byte(value), false, nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate key: %w", err)
	}
	return key, true, nil
}

func newCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	if cfg.RedisURL == "" {
		return cache.NewMemoryCache(), nil
	}
	return cache.NewRedisCache(ctx, cfg.RedisURL)
}

func authMiddleware(cfg *config.Config, key []byte, revocations auth.RevocationChecker) echo.MiddlewareFunc {
	jwtCfg := auth.JWTConfig{
		Issuer:      cfg.AuthIssuer,
		Audience:    cfg.AuthAudience,
		SigningKey:  key,
		Revocations: revocations,
		Skipper:     auth.AuthSkipper,
	}
	switch cfg.ResolvedAuthMode() {
	case "development":
		return auth.DevAuthMiddleware(jwtCfg)
	case "external":
		jwtCfg.SigningKey = nil
		jwtCfg.JWKSURL = cfg.AuthJWKSURL
	}
	return auth.JWTMiddleware(jwtCfg)
}

func newEmailSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if cfg.MailMode == "smtp" {
		return notification.NewSMTPSender(notification.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	}
	return notification.NewLogSender(logger)
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "clinic-server",
		ServiceVersion: version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.OTELSampleRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize tracing")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("tracer shutdown failed")
		}
	}()

	kv, err := newCache(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer kv.Close()

	signingKey, random, err := resolveKey(cfg.JWTSigningKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to resolve signing key")
	}
	if random {
		logger.Warn().Msg("JWT_SIGNING_KEY not set; sessions will not survive a restart")
	}

	var store blobstore.Store
	var files *blobstore.MemoryStore
	switch cfg.StorageBackend {
	case "s3":
		s3Store, err := blobstore.NewS3Store(ctx, blobstore.S3Config{
			Bucket:   cfg.StorageBucket,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize object storage")
		}
		store = s3Store
	default:
		storageKey, _, err := resolveKey(cfg.StorageSigningKey)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to resolve storage key")
		}
		files = blobstore.NewMemoryStore(cfg.PublicBaseURL, storageKey)
		store = files
	}

	m := metrics.NewCollector("clinic-server")
	catalog := i18n.New(cfg.DefaultLanguage)

	// Mail
	mailer := notification.NewMailer(notification.NewComposer(catalog), newEmailSender(cfg, logger), logger, m)
	var prescriptionMail notification.Client = mailer
	if cfg.MailFunctionURL != "" {
		prescriptionMail = notification.NewRemoteClient(cfg.MailFunctionURL)
	}

	var rasterizer render.Rasterizer
	if cfg.RenderURL != "" {
		rasterizer = render.NewHTTPRasterizer(cfg.RenderURL)
	} else {
		logger.Warn().Msg("RENDER_URL not set; PDF export is unavailable")
	}
	renderer := render.New(catalog, rasterizer, m)

	// Audit
	recorder := auditlog.NewRecorder(auditlog.NewRepo(pool), cfg.AuditBufferSize, m, logger)
	recorder.Start()
	defer recorder.Close()

	// Identity and accounts
	identityRepo := identity.NewRepo(pool)
	resolver := identity.NewResolver(identityRepo, kv, cfg.IdentityCacheTTL, m, logger)
	identitySvc := identity.NewService(identityRepo, store, resolver)
	identitySvc.SetAuditRecorder(recorder)

	revocations := auth.NewRevocationStore(kv)
	issuer := auth.NewTokenIssuer(signingKey, cfg.AuthIssuer, cfg.AuthAudience, cfg.TokenTTL)
	accountSvc := account.NewService(
		account.NewRepo(pool), identityRepo, issuer, revocations, mailer, catalog,
		nil, pool, account.Config{TrialDays: cfg.TrialDays}, logger,
	)
	accountSvc.SetAuditRecorder(recorder)
	unsubscribe := accountSvc.Events().Subscribe(func(ev account.Event) {
		resolver.Forget(context.Background(), ev.PrincipalID)
	})
	defer unsubscribe()

	// Subscription
	subscriptionSvc := subscription.NewService(subscription.NewRepo(pool), catalog)
	subscriptionSvc.SetAuditRecorder(recorder)

	// Clinic data
	dashboardSvc := dashboard.NewService(reporting.NewPGSource(pool), subscriptionSvc, catalog, statisticsMaxAge)

	patientSvc := patient.NewService(patient.NewRepo(pool), m)
	patientSvc.SetAuditRecorder(recorder)
	patientSvc.SetChangeHook(dashboardSvc.Invalidate)

	prescriptionSvc := prescription.NewService(
		prescription.NewRepo(pool), patientSvc, identitySvc, renderer, prescriptionMail, pool, m,
	)
	prescriptionSvc.SetAuditRecorder(recorder)
	prescriptionSvc.SetChangeHook(dashboardSvc.Invalidate)

	templateSvc := template.NewService(template.NewRepo(pool), pool)
	templateSvc.SetAuditRecorder(recorder)

	favoriteSvc := favorite.NewService(favorite.NewRepo(pool))

	teamSvc := team.NewService(team.NewRepo(pool), accountSvc, identitySvc, mailer, resolver, catalog, pool, logger)
	teamSvc.SetAuditRecorder(recorder)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(m.Middleware())
	e.Use(tp.TracingMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "Accept-Language", "X-Request-ID", auth.DevPrincipalHeader},
	}))
	e.Use(middleware.BodyLimit(middleware.BodyLimits{Default: cfg.BodyLimitBytes, Upload: cfg.UploadLimitBytes}))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, map[string]time.Duration{
		"/pdf":   cfg.RenderTimeout,
		"/email": cfg.RenderTimeout,
	}))

	e.Use(authMiddleware(cfg, signingKey, revocations))
	e.Use(identity.Middleware(resolver))
	e.Use(db.TenantMiddleware(pool))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, db.Check{Name: "cache", Ping: kv.Ping}))
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	if files != nil {
		files.RegisterRoutes(e)
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}

	apiV1 := e.Group("/api/v1", middleware.RateLimit(rateLimitCfg))
	account.NewHandler(accountSvc).RegisterRoutes(apiV1)
	identity.NewHandler(identitySvc).RegisterRoutes(apiV1)
	subscription.NewHandler(subscriptionSvc).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	prescription.NewHandler(prescriptionSvc, catalog,
		subscription.RequireActive(subscriptionSvc, cfg.EnforceSubscription, m, logger),
	).RegisterRoutes(apiV1)
	template.NewHandler(templateSvc).RegisterRoutes(apiV1)
	favorite.NewHandler(favoriteSvc).RegisterRoutes(apiV1)
	team.NewHandler(teamSvc).RegisterRoutes(apiV1)
	auditlog.NewHandler(auditlog.NewService(auditlog.NewRepo(pool), catalog), catalog).RegisterRoutes(apiV1)
	dashboard.NewHandler(dashboardSvc, catalog).RegisterRoutes(apiV1)
	reporting.NewHandler(reporting.NewPGSource(pool), logger, recorder, m).RegisterRoutes(apiV1)

	functions := e.Group("/functions/v1", middleware.RateLimit(rateLimitCfg))
	notification.NewFunctionHandler(mailer, logger).RegisterRoutes(functions)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
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
	logger.Info().Msg("server stopped")
	return nil
}
