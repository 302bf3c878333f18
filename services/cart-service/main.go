package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	aws_pkg "github.com/Williethedeveloper/e-commerce-microservices/pkg/aws"
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/config"
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/controllers"
	cartdb "github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/database"
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/reconcile"
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/routes"
	"github.com/Williethedeveloper/e-commerce-microservices/services/cart-service/services"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/auth"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/database"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/metrics"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	// Load environment configuration
	cfg, err := config.Load()
	logger.Initialize(cfg.Env)
	defer logger.Sync()
	log := logger.Log
	if err != nil {
		log.Fatal("Config load failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatal("Redis connection failed", zap.Error(err))
	}
	defer redisClient.Close()

	var verifier auth.Verifier
	if cfg.AuthMode == "jwt" {
		if verifier, err = auth.NewJWTVerifier(cfg.JWTSecret); err != nil {
			log.Fatal("JWT verifier init failed", zap.Error(err))
		}
	} else {
		verifier = auth.NewHTTPVerifier(cfg.IdentityServiceURL, cfg.AuthTimeout)
	}
	gate := auth.NewGate(verifier, cfg.AuthTimeout)

	repo := cartdb.NewCartRepository(redisClient, cfg.CartTTL)
	catalog := services.NewCatalogClient(cfg.CatalogServiceURL, cfg.CatalogTimeout)
	controller := controllers.NewCartController(services.NewCartService(repo, catalog))

	// --- Cart reconciliation (optional) ---
	var source interface{ Run(context.Context) error }
	reconciler := reconcile.NewReconciler(repo)
	switch cfg.EventsBackend {
	case "kafka":
		source = reconcile.NewKafkaSource(cfg.KafkaBrokers, cfg.OrderEventsTopic, cfg.KafkaGroupID, reconciler)
	case "sns":
		awsCfg, err := aws_pkg.LoadAWSConfig(ctx)
		if err != nil {
			log.Fatal("AWS config load failed", zap.Error(err))
		}
		source = reconcile.NewSQSSource(aws_pkg.NewSQSConsumer(awsCfg, cfg.OrderEventsQueue, log), reconciler)
		log.Info("cart reconciler polling", zap.String("queue", cfg.OrderEventsQueue))
	}
	if source != nil {
		go func() {
			if err := source.Run(ctx); err != nil {
				log.Error("Cart reconciler stopped", zap.Error(err))
			}
		}()
	}

	reg := metrics.NewRegistry("cart-service")
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.MetricsMiddleware(reg))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.AllowedOrigins))

	routes.RegisterCartRoutes(router, controller, gate, middleware.PerMinute(cfg.RateLimitPerMinute))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "cart-service"})
	})
	router.GET("/metrics", gin.WrapH(reg.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("Cart Service started", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Shutdown error", zap.Error(err))
	}
	log.Info("Server shutdown complete.")
}
