package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ceylontrails/tours-backend/internal/cache"
	"github.com/ceylontrails/tours-backend/internal/config"
	"github.com/ceylontrails/tours-backend/internal/database"
	"github.com/ceylontrails/tours-backend/internal/events"
	"github.com/ceylontrails/tours-backend/internal/handlers"
	"github.com/ceylontrails/tours-backend/internal/middleware"
	"github.com/ceylontrails/tours-backend/internal/services"
	"github.com/ceylontrails/tours-backend/pkg/catalog"
	"github.com/ceylontrails/tours-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting CeylonTrails Tours Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Initialize repositories
	bookingRepo := database.NewBookingRepository(db)
	departureRepo := database.NewDepartureRepository(db)
	paymentRepo := database.NewPaymentRepository(db)
	auditRepo := database.NewPaymentAuditRepository(db, logger)

	// Initialize catalog client, with the Redis cache in front when enabled
	var catalogClient catalog.Client = catalog.NewHTTPClient(catalog.Config{
		BaseURL: cfg.Catalog.BaseURL,
		APIKey:  cfg.Catalog.APIKey,
		Timeout: cfg.Catalog.Timeout,
	})
	var tourCache *cache.TourCache
	if cfg.Redis.Enabled {
		tourCache = cache.NewTourCache(cfg.Redis)
		if err := tourCache.Ping(context.Background()); err != nil {
			logger.WithError(err).Warn("Redis unreachable, tour cache disabled")
			tourCache.Close()
			tourCache = nil
		} else {
			catalogClient = cache.NewCachedClient(catalogClient, tourCache, logger)
			logger.Info("Tour cache enabled")
		}
	}

	// Initialize event publisher
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		logger.WithField("topic", cfg.Kafka.Topic).Info("Booking event stream enabled")
	}
	defer publisher.Close()

	// Initialize services
	logger.Info("Initializing services...")
	verifier := jwt.NewVerifier(cfg.JWT.Secret)
	pricingService := services.NewPricingService(cfg.Booking.Currency, logger)
	bookingService := services.NewBookingService(
		bookingRepo,
		departureRepo,
		paymentRepo,
		catalogClient,
		pricingService,
		publisher,
		services.BookingServiceConfig{
			PaymentDeadline:  cfg.Booking.PaymentDeadline,
			MaxActivePerUser: cfg.Booking.MaxActivePerUser,
			ReferenceRetries: cfg.Booking.ReferenceRetries,
			Currency:         cfg.Booking.Currency,
		},
		logger,
	)
	paymentService := services.NewPaymentService(paymentRepo, auditRepo, bookingService, cfg.Payment.WebhookSecret, logger)

	// Start the expiry sweep
	sweepService := services.NewSweepService(bookingService, cfg.Sweep.Interval, cfg.Sweep.BatchSize, logger)
	sweepService.Start()

	// Initialize handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	adminHandler := handlers.NewAdminHandler(bookingService, paymentService, sweepService, logger)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db.Ping))

	v1 := router.Group("/api/v1")
	{
		// Quotes are public: no account needed to price a trip
		v1.POST("/quote", bookingHandler.Quote)

		bookings := v1.Group("/bookings")
		bookings.Use(middleware.AuthMiddleware(verifier))
		{
			bookings.POST("", bookingHandler.Create)
			bookings.GET("", bookingHandler.List)
			bookings.GET("/:id", bookingHandler.Get)
			bookings.GET("/reference/:reference", bookingHandler.GetByReference)
			bookings.PATCH("/:id/cancel", bookingHandler.Cancel)
			bookings.POST("/:id/payment", bookingHandler.SubmitPayment)
		}

		payments := v1.Group("/payments")
		{
			// Webhook authenticates by signature, not bearer token
			payments.POST("/webhook", paymentHandler.Webhook)

			decisions := payments.Group("")
			decisions.Use(middleware.AuthMiddleware(verifier))
			decisions.Use(middleware.RequireRole(middleware.RolePaymentReviewer, middleware.RoleAdmin))
			{
				decisions.POST("/:attempt_id/decision", paymentHandler.Decide)
			}
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(verifier))
		admin.Use(middleware.RequireRole(middleware.RoleAdmin))
		{
			admin.PATCH("/departures/:id/open", adminHandler.SetDepartureOpen)
			admin.GET("/departures/:id/seats", adminHandler.DepartureSeats)
			admin.GET("/reservations/:token", adminHandler.GetReservation)
			admin.GET("/payments/:attempt_id/audits", adminHandler.AttemptAudits)
			admin.GET("/payments/mismatches", adminHandler.AmountMismatches)
			admin.POST("/sweep/run", adminHandler.RunSweep)
			admin.GET("/sweep/status", adminHandler.SweepStatus)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	logger.Info("Stopping expiry sweep...")
	sweepService.Stop()

	if tourCache != nil {
		tourCache.Close()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		entry := logger.WithFields(fields)

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(ping func() error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
