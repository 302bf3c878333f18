package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/common/database"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/metrics"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/middleware"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/config"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/controllers"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/kafka"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/repository"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/routes"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Initialize(os.Getenv("ENV"))
		logger.Log.Fatal("[PaymentService] Failed to load config", zap.Error(err))
	}
	logger.Initialize(cfg.Env)
	defer logger.Sync()
	log := logger.Log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.ConnectPostgres(ctx, cfg.Postgres, log, &models.Payment{})
	if err != nil {
		log.Fatal("[PaymentService] Failed to connect to DB", zap.Error(err))
	}
	defer database.ClosePostgres(db)

	reg := metrics.NewRegistry("payment-service")
	opts := services.Options{DefaultCurrency: cfg.DefaultCurrency, Metrics: reg}

	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewPaymentEventProducer(cfg.KafkaBrokers, cfg.PaymentEventsTopic)
		defer producer.Close()
		opts.Events = producer
	}

	var charger services.Charger = services.SimulatedCharger{}
	var webhooks controllers.WebhookParser
	if cfg.Backend == "stripe" {
		stripeSvc := services.NewStripeService(cfg.StripeSecretKey, cfg.StripeWebhookKey, cfg.StripeMethod, cfg.StripeAPIURL)
		charger = stripeSvc
		webhooks = stripeSvc
	}
	log.Info("[PaymentService] Charging backend selected", zap.String("backend", charger.Name()))

	svc := services.NewPaymentService(repository.NewGormPaymentRepo(db), charger, opts)
	pc := controllers.NewPaymentController(svc, webhooks)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestID())
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.MetricsMiddleware(reg))
	r.Use(middleware.SecurityHeaders())

	routes.RegisterPaymentRoutes(r, pc, middleware.PerMinute(cfg.RateLimitPerMinute))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "service": "payment-service"})
	})
	r.GET("/metrics", gin.WrapH(reg.Handler()))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("[PaymentService] Running", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("[PaymentService] Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("[PaymentService] Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("[PaymentService] Shutdown error", zap.Error(err))
	}
}
