package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"registration-gateway/internal/config"
	"registration-gateway/internal/handlers"
	"registration-gateway/internal/kafka"
	"registration-gateway/internal/logger"
	"registration-gateway/internal/middleware"
	rediswrap "registration-gateway/internal/redis"
	"registration-gateway/internal/services"
	"registration-gateway/internal/storage"

	"github.com/gin-gonic/gin"
)

var log *logger.Logger

func main() {
	log = logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("ENV", "Error loading .env file, using environment variables")
	}

	log.LogProcess("STARTUP", "Registration Gateway starting up...")

	cfg := config.Load()
	log.Info("CONFIG", "Configuration loaded successfully")

	log.LogProcess("DATABASE", "Initializing MySQL database...")
	store, err := storage.NewMySQLStore(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "Failed to initialize MySQL: "+err.Error())
	}
	defer store.Close()
	log.LogDatabase("INIT", "mysql", "MySQL storage initialized successfully")

	log.LogProcess("KAFKA", "Initializing Kafka producer...")
	kafkaProducer, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.MockMode, log)
	if err != nil {
		log.Fatal("KAFKA", "Failed to create Kafka producer: "+err.Error())
	}
	defer kafkaProducer.Close()
	log.LogKafka("INIT", "producer", "Kafka producer initialized successfully")

	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	log.LogProcess("REDIS", "Redis client initialized")

	log.LogProcess("RAZORPAY", "Initializing Razorpay service...")
	razorpayService, err := services.NewRazorpayService(cfg.Razorpay, log)
	if err != nil {
		log.Fatal("RAZORPAY", "Failed to initialize Razorpay service: "+err.Error())
	}
	log.LogProcess("SERVICE", "Razorpay service initialized")

	registrationService := services.NewRegistrationService(store, razorpayService, kafkaProducer, log)
	log.LogProcess("SERVICE", "Registration service initialized")

	registrationHandler := handlers.NewRegistrationHandler(registrationService)
	webhookHandler := handlers.NewWebhookHandler(razorpayService, registrationService, rediswrap.NewRedis(redisClient), log)
	log.LogProcess("HANDLER", "All handlers initialized")

	if !cfg.Kafka.MockMode {
		log.LogProcess("KAFKA", "Initializing catalog consumer...")
		catalogConsumer, err := kafka.NewCatalogConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID)
		if err != nil {
			log.Fatal("KAFKA", "Failed to create catalog consumer: "+err.Error())
		}
		defer catalogConsumer.Close()

		go func() {
			log.LogKafka("START", "consumer", "Starting catalog consumer goroutine")
			if err := catalogConsumer.ConsumeEvents(context.Background(), registrationService.ProcessCatalogEvent); err != nil {
				log.Error("KAFKA", "Consumer error: "+err.Error())
			}
		}()
	}

	router := setupRouter(cfg, registrationHandler, webhookHandler)
	log.LogProcess("ROUTER", "HTTP router configured")

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.LogProcess("SERVER", "Starting HTTP server on port "+cfg.Server.Port)
		log.Info("STARTUP", "Registration Gateway is ready to accept requests")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "Server failed to start: "+err.Error())
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Warn("SHUTDOWN", "Received shutdown signal, initiating graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("SHUTDOWN", "Server forced to shutdown: "+err.Error())
	}

	log.Info("SHUTDOWN", "Registration Gateway shutdown completed successfully")
}

func setupRouter(cfg *config.Config, registrationHandler *handlers.RegistrationHandler, webhookHandler *handlers.WebhookHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.EnhancedLogger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   "registration-gateway",
			"version":   "1.0.0",
		})
	})

	v1 := router.Group("/api/v1")
	{
		registrations := v1.Group("/registrations")
		registrations.Use(middleware.RateLimit(cfg.RateLimit, log))
		{
			registrations.POST("", registrationHandler.Register)
			registrations.GET("/:id", registrationHandler.GetRegistration)
		}

		v1.POST("/payments/webhook", webhookHandler.HandlePaymentWebhook)
		v1.POST("/checkin", registrationHandler.CheckIn)
	}

	log.LogProcess("ROUTER", "All routes registered successfully")
	return router
}
