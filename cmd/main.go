/**
 * @description
 * This is the main entry point for the settlement-service. It is responsible for
 * initializing all components of the service, including configuration, exchange
 * rates, the custody gateway client, message brokers, the ledger, the core
 * application service, and the HTTP server. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/redis/go-redis/v9: Optional webhook rate limiting backend.
 * - internal/api, internal/app, internal/config, internal/exchange,
 *   internal/metrics, internal/store: Internal packages for the service.
 * - pkg/chainclient: Client for the custody gateway API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andinopay/settlement-service/internal/api"
	"github.com/andinopay/settlement-service/internal/app"
	"github.com/andinopay/settlement-service/internal/chain"
	"github.com/andinopay/settlement-service/internal/config"
	"github.com/andinopay/settlement-service/internal/exchange"
	"github.com/andinopay/settlement-service/internal/metrics"
	"github.com/andinopay/settlement-service/internal/store"
	"github.com/andinopay/settlement-service/pkg/chainclient"
	rmrabbit "github.com/andinopay/settlement-service/pkg/rabbitmq"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if cfg.ChainGatewayURL == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"chain gateway url must be configured\" env=CHAIN_GATEWAY_URL")
	}
	if cfg.ChainOperatorKey == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"chain operator key must be configured\" env=CHAIN_OPERATOR_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting settlement-service\" port=%s", cfg.ServerPort)

	// Parse the two exchange rates. A malformed rate has to stop the boot:
	// settling at a garbage rate is worse than not settling at all.
	rates, err := exchange.NewProvider(cfg.BobUsdcRateDeposit, cfg.BobUsdcRateWithdrawal)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"invalid exchange rate configuration\" err=%v", err)
	}
	log.Printf("level=info component=bootstrap msg=\"exchange rates loaded\" deposit=%q withdrawal=%q",
		rates.DepositRate().Display(), rates.WithdrawalRate().Display())

	// Initialize the RabbitMQ producer to publish withdrawal events.
	// This service only needs to publish, so we use a producer.
	var producer rmrabbit.Publisher
	rabbitProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rmrabbit.EventProducerFallback{}
	} else {
		defer rabbitProducer.Close()
		producer = rabbitProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Initialize the custody gateway client and the transfer dispatcher.
	gatewayClient := chainclient.NewClient(
		cfg.ChainGatewayURL,
		cfg.ChainOperatorKey,
		time.Duration(cfg.ChainCallTimeoutSeconds)*time.Second,
	)
	dispatcher := chain.NewDispatcher(gatewayClient, cfg.USDCTokenAddress)

	// Optional Redis-backed webhook rate limiting.
	var redisClient *redis.Client
	if cfg.RedisURL == "" {
		log.Println("level=warn component=bootstrap msg=\"redis url missing; webhook rate limiting disabled\" env=REDIS_URL")
	} else {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; webhook rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient = redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelPing()
			if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; webhook rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
				redisClient = nil
			} else {
				defer redisClient.Close()
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Initialize the in-memory withdrawal ledger and Prometheus metrics.
	repository := store.NewMemoryStore()
	settlementMetrics := metrics.NewSettlementMetrics()

	// Initialize the core application service with its dependencies.
	settlementService, err := app.NewService(repository, rates, dispatcher, producer, settlementMetrics)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"service init failed\" err=%v", err)
	}
	settlementService.SetEventExchange(cfg.SettlementEventExchange)
	if redisClient != nil {
		settlementService.SetWebhookRateLimiter(
			app.NewRedisWebhookRateLimiter(redisClient, cfg.RedisRateLimitPrefix),
			cfg.WebhookRateLimitPerMinute,
		)
	}

	// Initialize the API handlers and router.
	handlers := api.NewSettlementHandlers(settlementService)
	router := api.SettlementRoutes(handlers, api.RouterConfig{
		BankWebhookSecret: cfg.BankWebhookSecret,
		InternalAPIKey:    cfg.InternalAPIKey,
	})

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
