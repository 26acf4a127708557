/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * The two exchange rates are independent keys and never fall back to each
 * other: a missing withdrawal rate must not silently reuse the deposit rate,
 * or the operator loses the spread on every withdrawal.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the settlement-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string `mapstructure:"SERVER_PORT"`
	BobUsdcRateDeposit        string `mapstructure:"BOB_USDC_RATE_DEPOSIT"`
	BobUsdcRateWithdrawal     string `mapstructure:"BOB_USDC_RATE_WITHDRAWAL"`
	ChainGatewayURL           string `mapstructure:"CHAIN_GATEWAY_URL"`
	ChainOperatorKey          string `mapstructure:"CHAIN_OPERATOR_KEY"`
	USDCTokenAddress          string `mapstructure:"USDC_TOKEN_ADDRESS"`
	ChainCallTimeoutSeconds   int    `mapstructure:"CHAIN_CALL_TIMEOUT_SECONDS"`
	RabbitMQURL               string `mapstructure:"RABBITMQ_URL"`
	SettlementEventExchange   string `mapstructure:"SETTLEMENT_EVENT_EXCHANGE"`
	BankWebhookSecret         string `mapstructure:"BANK_WEBHOOK_SECRET"`
	InternalAPIKey            string `mapstructure:"INTERNAL_API_KEY"`
	RedisURL                  string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	WebhookRateLimitPerMinute int    `mapstructure:"WEBHOOK_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8084")
	viper.SetDefault("BOB_USDC_RATE_DEPOSIT", "12.60")
	viper.SetDefault("BOB_USDC_RATE_WITHDRAWAL", "12.40")
	viper.SetDefault("CHAIN_CALL_TIMEOUT_SECONDS", 30)
	viper.SetDefault("SETTLEMENT_EVENT_EXCHANGE", "settlement.events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "settlement:rate_limit")
	viper.SetDefault("WEBHOOK_RATE_LIMIT_PER_MINUTE", 120)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("BOB_USDC_RATE_DEPOSIT")
	// BOB_USDC_RATE_WITHDRAWL is a legacy misspelled alias still used in older
	// deployment manifests.
	_ = viper.BindEnv("BOB_USDC_RATE_WITHDRAWAL", "BOB_USDC_RATE_WITHDRAWAL", "BOB_USDC_RATE_WITHDRAWL")
	_ = viper.BindEnv("CHAIN_GATEWAY_URL")
	_ = viper.BindEnv("CHAIN_OPERATOR_KEY")
	_ = viper.BindEnv("USDC_TOKEN_ADDRESS")
	_ = viper.BindEnv("CHAIN_CALL_TIMEOUT_SECONDS")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("SETTLEMENT_EVENT_EXCHANGE")
	_ = viper.BindEnv("BANK_WEBHOOK_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("WEBHOOK_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.BobUsdcRateDeposit = strings.TrimSpace(config.BobUsdcRateDeposit)
	config.BobUsdcRateWithdrawal = strings.TrimSpace(config.BobUsdcRateWithdrawal)
	config.ChainGatewayURL = strings.TrimSpace(config.ChainGatewayURL)
	config.ChainOperatorKey = strings.TrimSpace(config.ChainOperatorKey)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "settlement:rate_limit"
	}

	if config.ChainCallTimeoutSeconds <= 0 {
		config.ChainCallTimeoutSeconds = 30
	}
	if config.WebhookRateLimitPerMinute <= 0 {
		config.WebhookRateLimitPerMinute = 120
	}
	if config.SettlementEventExchange == "" {
		config.SettlementEventExchange = "settlement.events"
	}

	return
}
