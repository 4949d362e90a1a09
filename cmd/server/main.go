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
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"pricing-api/internal/cache"
	"pricing-api/internal/clients"
	"pricing-api/internal/config"
	"pricing-api/internal/controller"
	"pricing-api/internal/database"
	"pricing-api/internal/messaging"
	"pricing-api/internal/middleware"
	"pricing-api/internal/monitoring"
	"pricing-api/internal/service"
	"pricing-api/internal/worker"
	"pricing-api/pkg/logger"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging)

	ctx := context.Background()
	deps, err := initializeDependencies(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize dependencies: %v", err)
	}
	defer deps.cleanup()

	if err := deps.refresher.Start(ctx); err != nil {
		logrus.Fatalf("Failed to start specification refresher: %v", err)
	}

	server := setupHTTPServer(cfg, deps)

	go func() {
		logrus.WithField("addr", server.Addr).Info("Starting pricing API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("Forced server shutdown")
	}
	logrus.Info("Server stopped")
}

type dependencies struct {
	database       *database.Database
	publisher      messaging.FeeEventPublisher
	metrics        monitoring.MetricsService
	feeService     service.FeeService
	pricingService service.PricingService
	refresher      *worker.SpecRefresher
}

func (d *dependencies) cleanup() {
	if d.refresher != nil {
		d.refresher.Stop()
	}
	if d.publisher != nil {
		d.publisher.Close()
	}
	if d.database != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		d.database.Close(ctx)
	}
}

func initializeDependencies(ctx context.Context, cfg *config.Config) (*dependencies, error) {
	deps := &dependencies{}

	deps.metrics = monitoring.NewMetricsService()

	db, err := database.Initialize(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	deps.database = db

	publisher, err := messaging.NewRabbitMQPublisher(&messaging.PublisherConfig{
		URL:      cfg.RabbitMQ.URL,
		Exchange: cfg.RabbitMQ.Exchange,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	deps.publisher = publisher

	priceCache := cache.NewPriceCache(db.RedisDB, cfg.Redis.PriceTTL)
	marketClient := clients.NewMarketClient(&clients.MarketClientConfig{
		BaseURL: cfg.External.MarketAPI.URL,
		APIKey:  cfg.External.MarketAPI.APIKey,
		Timeout: cfg.External.Timeout,
	}, priceCache)

	usersClient := clients.NewUsersClient(&clients.UsersClientConfig{
		BaseURL: cfg.External.UsersAPI.URL,
		APIKey:  cfg.External.UsersAPI.APIKey,
		Timeout: cfg.External.Timeout,
	})

	specCache := cache.NewSpecCache(db.Repositories.Specification)
	deps.refresher = worker.NewSpecRefresher(
		specCache,
		db.Repositories.RefreshLock,
		deps.metrics,
		cfg.Pricing.RefreshSchedule,
		cfg.Redis.RefreshLock,
	)

	deps.feeService = service.NewFeeService(
		db.Repositories.Fee,
		usersClient,
		publisher,
		deps.metrics,
		&cfg.Pricing,
	)

	deps.pricingService = service.NewPricingService(
		specCache,
		marketClient,
		deps.feeService,
		usersClient,
		deps.metrics,
		&cfg.Pricing,
	)

	return deps, nil
}

func setupHTTPServer(cfg *config.Config, deps *dependencies) *http.Server {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	controller.RegisterValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New())
	router.Use(cors.Default())
	router.Use(middleware.RequestLogging(deps.metrics))

	rateLimiter := middleware.NewRateLimitMiddleware(deps.database.RedisDB, nil)
	router.Use(rateLimiter.Limit())

	router.GET("/health", func(c *gin.Context) {
		if err := deps.database.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   "pricing-api",
			"timestamp": time.Now().UTC(),
		})
	})

	router.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"version": version})
	})

	if cfg.Monitoring.EnableMetrics {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	quoteController := controller.NewQuoteController(deps.pricingService, deps.database.Repositories.Currency)
	feeController := controller.NewFeeController(deps.feeService, deps.database.Repositories.Currency)

	api := router.Group("/api")
	{
		quotes := api.Group("/quotes")
		{
			quotes.POST("", quoteController.GetQuote)
			quotes.GET("/specs", quoteController.GetSpecs)
			quotes.GET("/specs/:symbol", quoteController.GetInSpecs)
			quotes.POST("/validate", quoteController.ValidateInput)
		}

		fees := api.Group("/fees")
		{
			fees.POST("", feeController.CreateFee)
			fees.GET("/user/:userId", feeController.GetUserFee)
			fees.GET("/default", feeController.GetDefaultFee)
			fees.POST("/discount/redeem", feeController.RedeemDiscountCode)
			fees.POST("/grant", feeController.GrantFee)
			fees.POST("/signup/:userId", feeController.ApplySignUpFees)
		}
	}

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}
