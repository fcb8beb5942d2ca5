package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/application/shipping"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/domain/carrier"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/carrierapi"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/config"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/logger"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/persistence"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/storage"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/infrastructure/telemetry"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/interfaces/http/handler"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/interfaces/http/middleware"
	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/interfaces/http/router"
)

//	@title			Carrier Gateway API
//	@version		1.0
//	@description	Direct carrier integration gateway: stored OAuth connections, address validation, rating, rate shopping and label purchase against UPS and FedEx REST APIs.

//	@contact.name	API Support
//	@contact.url	https://github.com/buffmasterbran/Shipstaiton-Replacement-sub000

//	@host		localhost:8080
//	@BasePath	/api/v1

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting carrier gateway",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx := context.Background()

	// Telemetry providers. Disabled config yields no-op providers, so the
	// wiring below is unconditional.
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	loggerProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	defer func() {
		if err := loggerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down logger provider", zap.Error(err))
		}
	}()

	// Ship application logs to the collector alongside stdout
	if loggerProvider.IsEnabled() {
		otelCore := telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    cfg.Telemetry.ServiceName,
			LoggerProvider: loggerProvider,
			Level:          zapcore.InfoLevel,
		})
		log = telemetry.NewBridgedLogger(log.Core(), otelCore)
	}

	// Continuous profiling via Pyroscope
	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:             cfg.Telemetry.ProfilingEnabled,
		ServerAddress:       cfg.Telemetry.PyroscopeEndpoint,
		ApplicationName:     cfg.Telemetry.ServiceName,
		ProfileCPU:          true,
		ProfileAllocObjects: true,
		ProfileAllocSpace:   true,
		ProfileInuseObjects: true,
		ProfileInuseSpace:   true,
		ProfileGoroutines:   true,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()
	if profiler.IsEnabled() && tracerProvider.IsEnabled() {
		if err := tracerProvider.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to enable span profiles", zap.Error(err))
		}
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Database observability: query spans plus pool/query metrics
	dbTracingCfg := telemetry.DefaultDBTracingConfig()
	dbTracingCfg.Enabled = cfg.Telemetry.Enabled
	if err := telemetry.NewDBTracingPlugin(dbTracingCfg, log).RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}

	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.Enabled = cfg.Telemetry.Enabled
	dbMetrics, err := telemetry.NewDBMetrics(meterProvider.Meter("database"), dbMetricsCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize database metrics", zap.Error(err))
	}
	if sqlDB, err := db.DB.DB(); err == nil {
		dbMetrics.SetSQLDB(sqlDB)
	}
	dbMetrics.StartPoolStatsCollection(ctx)
	defer dbMetrics.Stop()
	if err := db.DB.Use(telemetry.NewDBMetricsPlugin(dbMetrics, log)); err != nil {
		log.Warn("Failed to register database metrics plugin", zap.Error(err))
	}

	// Carrier clients share one token store so refreshes coalesce per credential
	tokenStore := carrierapi.NewTokenStore()

	upsClient, err := carrierapi.NewUPSClient(&carrierapi.UPSConfig{
		ProductionURL:    cfg.Carrier.UPS.ProductionURL,
		SandboxURL:       cfg.Carrier.UPS.SandboxURL,
		TimeoutSeconds:   cfg.Carrier.UPS.TimeoutSeconds,
		MaxResponseBytes: cfg.Carrier.UPS.MaxResponseBytes,
	}, tokenStore)
	if err != nil {
		log.Fatal("Failed to initialize UPS client", zap.Error(err))
	}

	fedexClient, err := carrierapi.NewFedExClient(&carrierapi.FedExConfig{
		ProductionURL:    cfg.Carrier.FedEx.ProductionURL,
		SandboxURL:       cfg.Carrier.FedEx.SandboxURL,
		TimeoutSeconds:   cfg.Carrier.FedEx.TimeoutSeconds,
		MaxResponseBytes: cfg.Carrier.FedEx.MaxResponseBytes,
	}, tokenStore)
	if err != nil {
		log.Fatal("Failed to initialize FedEx client", zap.Error(err))
	}

	// Label archive: purchased label documents go to object storage when
	// credentials are configured, otherwise labels are returned inline only
	var labelArchive shipping.LabelArchive
	if cfg.Storage.AccessKey != "" {
		s3Archive, err := storage.NewS3LabelArchive(&cfg.Storage)
		if err != nil {
			log.Fatal("Failed to initialize label archive", zap.Error(err))
		}
		labelArchive = s3Archive
		log.Info("Label archive enabled",
			zap.String("bucket", cfg.Storage.Bucket),
			zap.String("endpoint", cfg.Storage.Endpoint),
		)
	} else {
		labelArchive = storage.NewStubLabelArchive()
		log.Info("Label archive disabled, labels returned inline only")
	}

	// Repositories and application services
	connectionRepo := persistence.NewGormConnectionRepository(db.DB)
	carrierRouter := shipping.NewDirectCarrierRouter(
		connectionRepo,
		[]carrier.Client{upsClient, fedexClient},
		labelArchive,
		log,
	)
	connectionService := shipping.NewConnectionService(connectionRepo, log)

	// Carrier business metrics
	carrierMetrics, err := telemetry.NewCarrierMetrics(telemetry.CarrierMetricsConfig{
		Meter:  meterProvider.Meter("carrier"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to initialize carrier metrics", zap.Error(err))
	}
	upsClient.SetMetrics(carrierMetrics)
	fedexClient.SetMetrics(carrierMetrics)

	// Initialize HTTP handlers
	connectionHandler := handler.NewConnectionHandler(connectionService, carrierRouter)
	shippingHandler := handler.NewShippingHandler(carrierRouter).WithMetrics(carrierMetrics)
	systemHandler := handler.NewSystemHandler()

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Recovery - Catch panics
	// 3. Tracing - Server spans, before logging so the trace ID is loggable
	// 4. Logger - Log requests
	// 5. Metrics/Profiling - Request measurements
	// 6. Security - Add security headers
	// 7. CORS - Handle cross-origin requests
	// 8. BodyLimit - Limit request body size
	// 9. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanEnrichment())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       cfg.Telemetry.Enabled,
	}))
	if cfg.Telemetry.ProfilingEnabled {
		engine.Use(middleware.Profiling())
	}
	engine.Use(middleware.Secure())

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, log))

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(connectionHandler).
		Register(shippingHandler)

	systemRoutes := router.NewDomainGroup("system", "/system")
	systemRoutes.GET("/info", systemHandler.GetSystemInfo)
	systemRoutes.GET("/ping", systemHandler.Ping)
	r.Register(systemRoutes)

	r.Setup()

	// Also keep a simple ping at root API level for basic health checks
	engine.GET("/api/v1/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
