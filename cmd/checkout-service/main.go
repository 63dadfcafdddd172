package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-gallery/internal/checkout"
	"ms-gallery/internal/checkout/checkout_api"
	checkoutkafka "ms-gallery/internal/checkout/kafka"
	"ms-gallery/internal/config"
	gallerydb "ms-gallery/internal/gallery/db"
	"ms-gallery/internal/gateway"
	"ms-gallery/internal/kafka"
	"ms-gallery/internal/logger"
	orderdb "ms-gallery/internal/order/db"
	orderredis "ms-gallery/internal/order/redis"
	"ms-gallery/internal/sse"
)

// logPublisher stands in for Kafka when it is disabled; notifications are
// only logged.
type logPublisher struct {
	log *logger.Logger
}

func (p *logPublisher) Publish(topic, key string, value []byte) error {
	p.log.Warn("KAFKA", fmt.Sprintf("Kafka disabled, dropping message for %s (key %s)", topic, key))
	return nil
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", "No .env file found, using environment variables")
	}
	cfg := config.Load()

	// --- PostgreSQL Setup ---
	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN))
	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	defer sqldb.Close()

	if err := pingWithRetry(sqldb, 5, log); err != nil {
		log.Fatal("DATABASE", "Failed to connect to Postgres: "+err.Error())
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())
	log.Info("DATABASE", "Connected to Postgres")

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("REDIS", "Failed to connect to Redis: "+err.Error())
	}
	defer redisClient.Close()
	log.Info("REDIS", "Connected to Redis at "+cfg.Redis.Addr)

	// --- Kafka Setup ---
	var publisher checkoutkafka.Publisher = &logPublisher{log: log}
	if cfg.Kafka.Enabled {
		topics := []string{checkoutkafka.TopicOrderConfirmed, checkoutkafka.TopicOrderFailed}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Fatal("KAFKA", "Failed to ensure topics: "+err.Error())
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers)
		defer producer.Close()
		publisher = producer
		log.Info("KAFKA", "Producer connected")
	} else {
		log.Warn("KAFKA", "Kafka disabled, settlement notifications will not be published")
	}

	// --- Payment Gateway ---
	gw := buildGateway(cfg, log)

	// --- Wire the Checkout Service ---
	orderStore := &orderdb.DB{Bun: bunDB}
	galleryStore := &gallerydb.DB{Bun: bunDB}
	locks := orderredis.NewRedis(redisClient)
	notifier := checkoutkafka.NewNotifier(publisher, log)
	emitter := sse.NewCheckoutEventEmitter()

	service := checkout.NewService(orderStore, galleryStore, locks, gw, notifier, emitter, log, cfg)

	handler := checkout_api.NewHandler(service, log)
	sseHandler := checkout_api.NewSSEHandler(log, emitter, galleryStore)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	handler.RegisterRoutes(r)
	sseHandler.RegisterRoutes(r)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "Gallery checkout service listening on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "HTTP server error: "+err.Error())
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "Shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", "Forced shutdown: "+err.Error())
	}

	// Stop reconciliation loops after the HTTP surface is drained
	service.Shutdown()
	log.Info("SERVER", "Exited gracefully")
}

func buildGateway(cfg *config.Config, log *logger.Logger) gateway.Gateway {
	switch cfg.Gateway.Provider {
	case "mercadopago":
		log.Info("GATEWAY", "Using MercadoPago provider")
		return gateway.NewMercadoPago(
			cfg.Gateway.MercadoPagoBaseURL,
			cfg.Gateway.MercadoPagoToken,
			cfg.Gateway.PaymentMethod,
			cfg.Gateway.RequestTimeout,
			log,
		)
	case "stripe":
		log.Info("GATEWAY", "Using Stripe provider")
		gw, err := gateway.NewStripe(cfg.Gateway.StripeSecretKey, cfg.Gateway.Currency, log)
		if err != nil {
			log.Fatal("GATEWAY", err.Error())
		}
		return gw
	default:
		log.Warn("GATEWAY", "Using simulated provider, payments auto-approve")
		return gateway.NewSimulated(500*time.Millisecond, log)
	}
}

func pingWithRetry(sqldb *sql.DB, attempts int, log *logger.Logger) error {
	var err error
	for i := 1; i <= attempts; i++ {
		if err = sqldb.Ping(); err == nil {
			return nil
		}
		log.Warn("DATABASE", fmt.Sprintf("Postgres not ready (attempt %d/%d): %v", i, attempts, err))
		time.Sleep(2 * time.Second)
	}
	return err
}
