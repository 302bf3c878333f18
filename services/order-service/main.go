package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	aws_pkg "github.com/Williethedeveloper/e-commerce-microservices/pkg/aws"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/auth"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/database"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/metrics"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/middleware"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/controllers"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/events"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/idempotency"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/kafka"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/repository"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/routes"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		logger.Initialize(os.Getenv("ENV"))
		logger.Log.Fatal("Config load failed", zap.Error(err))
	}
	logger.Initialize(cfg.Env)
	defer logger.Sync()
	log := logger.Log

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// closers run in reverse order on shutdown
	var closers []func(context.Context) error
	ctx := context.Background()

	// --- Order ledger ---
	ledger, closeLedger, err := openLedger(ctx, cfg, log)
	if err != nil {
		log.Fatal("Order store init failed", zap.String("store", cfg.OrderStore), zap.Error(err))
	}
	closers = append(closers, closeLedger)

	// --- Authentication gate ---
	var verifier auth.Verifier
	if cfg.AuthMode == "jwt" {
		verifier, err = auth.NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			log.Fatal("JWT verifier init failed", zap.Error(err))
		}
	} else {
		verifier = auth.NewHTTPVerifier(cfg.IdentityServiceURL, cfg.AuthTimeout)
	}
	gate := auth.NewGate(verifier, cfg.AuthTimeout)

	// --- Collaborators ---
	reg := metrics.NewRegistry("order-service")
	clientOpts := services.ClientOptions{
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
		Metrics:         reg,
	}
	cartOpts, paymentOpts := clientOpts, clientOpts
	cartOpts.Timeout = cfg.CartTimeout
	paymentOpts.Timeout = cfg.PaymentTimeout
	cartClient := services.NewCartClient(cfg.CartServiceURL, cartOpts)
	paymentClient := services.NewPaymentClient(cfg.PaymentServiceURL, paymentOpts)

	opts := services.Options{
		LedgerTimeout:       cfg.LedgerTimeout,
		PostPaymentAttempts: cfg.PostPaymentAttempts,
		RetryBackoff:        cfg.RetryBackoff,
		Metrics:             reg,
	}

	// --- Idempotency (optional) ---
	if cfg.RedisURL != "" {
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal("Redis connection failed", zap.Error(err))
		}
		opts.Idempotency = idempotency.NewRedisStore(rdb, cfg.IdempotencyTTL, cfg.IdempotencyClaimTTL)
		closers = append(closers, func(context.Context) error { return rdb.Close() })
		log.Info("Idempotency-Key support enabled",
			zap.Duration("ttl", cfg.IdempotencyTTL),
			zap.Duration("claim_ttl", cfg.IdempotencyClaimTTL),
		)
	}

	// --- Order events (optional) ---
	switch cfg.EventsBackend {
	case "sns":
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Fatal("Failed to load AWS config", zap.Error(err))
		}
		opts.Events = events.NewSNSPublisher(aws_pkg.NewSNSClient(awsCfg), cfg.OrderEventsTopic)
	case "kafka":
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.OrderEventsTopic)
		opts.Events = producer
		closers = append(closers, func(context.Context) error { return producer.Close() })
	default:
		opts.Events = events.Nop{}
	}

	orderService := services.NewOrderService(cartClient, paymentClient, ledger, opts)
	orderController := controllers.NewOrderController(orderService)

	// --- HTTP router ---
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(reg))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	routes.RegisterOrderRoutes(r, orderController, gate, middleware.PerMinute(cfg.RateLimitPerMinute))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "order-service", "store": cfg.OrderStore})
	})
	r.GET("/metrics", gin.WrapH(reg.Handler()))

	// --- HTTP server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("Order Service started", zap.String("port", cfg.Port), zap.String("store", cfg.OrderStore))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Initiating graceful shutdown...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", zap.Error(err))
	}
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](shutdownCtx); err != nil {
			log.Error("Resource close error", zap.Error(err))
		}
	}
	log.Info("Order Service stopped")
}

// openLedger connects the configured order store and returns it with its
// close function.
func openLedger(ctx context.Context, cfg *Config, log *zap.Logger) (repository.OrderRepository, func(context.Context) error, error) {
	switch cfg.OrderStore {
	case "mongo":
		client, db, err := database.ConnectMongo(ctx, cfg.MongoURL, cfg.MongoDB, 10*time.Second)
		if err != nil {
			return nil, nil, err
		}
		repo := repository.NewMongoOrderRepository(db.Collection(repository.OrdersCollection))
		if err := repo.EnsureIndexes(ctx); err != nil {
			log.Warn("Mongo index creation failed", zap.Error(err))
		}
		return repo, func(c context.Context) error { return database.CloseMongo(c, client) }, nil

	case "memory":
		log.Warn("Using in-memory order store; orders are lost on restart")
		return repository.NewMemoryOrderRepository(), func(context.Context) error { return nil }, nil

	default:
		db, err := database.ConnectPostgres(ctx, cfg.Postgres, log, &models.Order{})
		if err != nil {
			return nil, nil, err
		}
		return repository.NewGormOrderRepository(db), func(context.Context) error { return database.ClosePostgres(db) }, nil
	}
}
