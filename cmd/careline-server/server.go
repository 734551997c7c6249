package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/careline/careline/internal/config"
	"github.com/careline/careline/internal/domain/appointment"
	"github.com/careline/careline/internal/domain/assistant"
	"github.com/careline/careline/internal/domain/patient"
	"github.com/careline/careline/internal/domain/prescription"
	"github.com/careline/careline/internal/platform/auth"
	"github.com/careline/careline/internal/platform/blobstore"
	"github.com/careline/careline/internal/platform/db"
	"github.com/careline/careline/internal/platform/docstore"
	"github.com/careline/careline/internal/platform/llm"
	"github.com/careline/careline/internal/platform/metrics"
	"github.com/careline/careline/internal/platform/middleware"
	"github.com/careline/careline/internal/platform/notification"
)

const version = "0.1.0"

// stores bundles the repositories for one STORE_DRIVER.
type stores struct {
	driver        string
	profiles      patient.Repository
	appointments  appointment.Repository
	prescriptions prescription.Repository
	tx            appointment.TxRunner
	pinger        db.Pinger
	close         func()
}

type alwaysUp struct{}

func (alwaysUp) Ping(context.Context) error { return nil }

func memoryStores() *stores {
	return &stores{
		driver:        config.DriverMemory,
		profiles:      patient.NewMemoryRepo(),
		appointments:  appointment.NewMemoryRepo(),
		prescriptions: prescription.NewMemoryRepo(),
		tx:            appointment.NoTx{},
		pinger:        alwaysUp{},
		close:         func() {},
	}
}

func openStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		logger.Info().Msg("connected to postgres")
		return &stores{
			driver:        config.DriverPostgres,
			profiles:      patient.NewRepoPG(pool),
			appointments:  appointment.NewRepoPG(pool),
			prescriptions: prescription.NewRepoPG(pool),
			tx:            db.NewTxRunner(pool),
			pinger:        pool,
			close:         pool.Close,
		}, nil

	case config.DriverMongo:
		store, err := docstore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("database", cfg.MongoDatabase).Msg("connected to mongo")
		database := store.Database()
		return &stores{
			driver:        config.DriverMongo,
			profiles:      patient.NewRepoMongo(database),
			appointments:  appointment.NewRepoMongo(database),
			prescriptions: prescription.NewRepoMongo(database),
			tx:            store,
			pinger:        store,
			close: func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = store.Close(closeCtx)
			},
		}, nil

	case config.DriverMemory:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return memoryStores(), nil
	}
	return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
}

func newBlobStore(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.BlobBackend != config.BlobS3 {
		return blobstore.NewInMemoryStore(), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return blobstore.NewS3Store(s3.NewFromConfig(awsCfg), cfg.S3Bucket, "careline/"), nil
}

func newEmailSender(cfg *config.Config, logger zerolog.Logger) notification.EmailSender {
	if cfg.SendGridAPIKey == "" {
		logger.Warn().Msg("SENDGRID_API_KEY not set; emails are logged instead of sent")
		return notification.NewLogSender(logger)
	}
	return notification.NewSendGridSender(notification.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.NotifyFromEmail,
		FromName:  cfg.NotifyFromName,
	}, logger)
}

func newHistoryStore(cfg *config.Config) (assistant.HistoryStore, func(), error) {
	if cfg.RedisURL == "" {
		return assistant.NewMemoryHistory(), func() {}, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	return assistant.NewRedisHistory(client, otel.Tracer("careline.internal.domain.assistant")), func() { _ = client.Close() }, nil
}

// deps are the collaborators newServer wires into the handlers.
type deps struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	stores   *stores
	blobs    blobstore.Store
	email    notification.EmailSender
	sms      notification.SMSSender
	llm      llm.Client
	history  assistant.HistoryStore
}

func newRegistry() (*prometheus.Registry, *metrics.Metrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg, metrics.New(reg)
}

func newServer(cfg *config.Config, logger zerolog.Logger, d deps) (*echo.Echo, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	m := d.metrics

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Metrics(m))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit("1M", cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	jwtCfg := auth.JWTConfig{
		Issuer:   cfg.AuthIssuer,
		Audience: cfg.AuthAudience,
		JWKSURL:  cfg.AuthJWKSURL,
		Skipper:  auth.AuthSkipper,
	}
	if cfg.AuthDevSigningKey != "" {
		jwtCfg.SigningKey = []byte(cfg.AuthDevSigningKey)
	}
	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		e.Use(auth.JWTMiddleware(jwtCfg))
	}
	e.Use(middleware.Audit(logger))

	// Services
	notifier := notification.NewManager(d.email, d.sms, nil, m)

	profileSvc := patient.NewService(d.stores.profiles, logger)

	apptSvc := appointment.NewService(d.stores.appointments, profileSvc, d.stores.tx, logger)
	apptSvc.SetLocation(loc)
	apptSvc.SetNotifier(notifier)
	apptSvc.SetObserver(m)

	rxSvc := prescription.NewService(d.stores.prescriptions, d.blobs, d.llm, profileSvc, logger)
	chatSvc := assistant.NewService(d.llm, d.history, apptSvc, logger)

	// Routes
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	api := e.Group("/api/v1", middleware.RateLimit(rl))

	patient.NewHandler(profileSvc).RegisterRoutes(api)
	appointment.NewHandler(apptSvc).RegisterRoutes(api)
	prescription.NewHandler(rxSvc).RegisterRoutes(api)
	assistant.NewHandler(chatSvc).RegisterRoutes(api)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(d.stores.driver, d.stores.pinger))
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(d.registry)))

	return e, nil
}
