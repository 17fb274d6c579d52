package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	d "github.com/toosale/checkout-service/domain"
	"github.com/toosale/checkout-service/internal/cache"
	"github.com/toosale/checkout-service/internal/gateway"
	"github.com/toosale/checkout-service/internal/httpapi"
	"github.com/toosale/checkout-service/internal/pricing"
	"github.com/toosale/checkout-service/internal/publisher"
	"github.com/toosale/checkout-service/internal/repository"
	"github.com/toosale/checkout-service/internal/service"
	"github.com/toosale/checkout-service/pkg/metrics"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log.Println("checkout-service starting...")

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	httpPort := getEnv("HTTP_PORT", "8080")
	backendURL := getEnv("BACKEND_URL", "http://localhost:3000")
	backendToken := getEnv("BACKEND_TOKEN", "")
	kafkaBrokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	redisAddr := getEnv("REDIS_ADDR", "")
	requestTimeout := 30 * time.Second
	verifyTimeout := 60 * time.Second

	// Database setup
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "checkout")
	migrationsPath := getEnv("MIGRATIONS_PATH", "./internal/repository/migrations")

	port, err := strconv.Atoi(dbPort)
	if err != nil {
		log.Fatalf("Invalid DB_PORT: %v", err)
	}

	creds := &repository.Credentials{
		Host:              dbHost,
		Port:              port,
		User:              dbUser,
		Password:          dbPass,
		DBName:            dbName,
		MigrationsDirPath: migrationsPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	settlement := d.SettlementConfig{
		Asset:          getEnv("SETTLEMENT_ASSET", "USDT"),
		Scheme:         getEnv("SETTLEMENT_SCHEME", "tether"),
		Destination:    getEnv("SETTLEMENT_DESTINATION", ""),
		ConversionRate: mustDecimal(getEnv("SETTLEMENT_RATE", "0.999")),
	}
	if settlement.Destination == "" {
		log.Fatal("SETTLEMENT_DESTINATION must be configured")
	}

	cartClient := gateway.NewCartClient(backendURL, backendToken, requestTimeout)
	orderClient := gateway.NewOrderClient(backendURL, backendToken, requestTimeout)
	verifier := &service.SimulatedVerifier{Delay: 3 * time.Second}

	checkoutService := service.NewCheckoutService(
		repo,
		cartClient,
		orderClient,
		verifier,
		pricing.DefaultPolicy(),
		settlement,
		verifyTimeout,
	)

	var orderCache cache.OrderCache
	if redisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
		orderCache = cache.NewRedisCache(redisClient)
		log.Printf("Order cache enabled at %s", redisAddr)
	}
	summaryService := service.NewSummaryService(orderClient, orderCache, 5*time.Second)

	// Outbox poller publishes order.confirmed events to Kafka.
	pollerCtx, stopPoller := context.WithCancel(context.Background())
	poller := publisher.NewOutboxPoller(repo, strings.Split(kafkaBrokers, ",")...)
	go poller.Run(pollerCtx)
	defer poller.Close()

	srvMetrics := metrics.NewServerMetrics("checkout")
	handler := httpapi.NewCheckoutHandler(checkoutService, summaryService, srvMetrics, requestTimeout)
	router := httpapi.NewRouter(handler, srvMetrics, requestTimeout)

	srv := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * verifyTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Checkout service listening on :%s", httpPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	stopPoller()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}

func mustDecimal(value string) decimal.Decimal {
	dec, err := decimal.NewFromString(value)
	if err != nil {
		log.Fatalf("invalid decimal value %q: %v", value, err)
	}
	return dec
}
