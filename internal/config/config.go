package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every environment-driven setting of the process.
type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string
	LogLevel    string
	LogFile     string

	Payment PaymentConfig

	// DatabaseURL selects the postgres store; empty keeps everything in memory.
	DatabaseURL string
	// RedisAddr enables the redis cart cache and cross-process cart lock.
	RedisAddr string

	KafkaBrokers []string
	KafkaTopic   string
}

type PaymentConfig struct {
	// ProviderSecret is the provider API key. Empty selects simulation mode.
	ProviderSecret  string
	ReturnURL       string
	DefaultCurrency string
	// ProviderTimeout bounds every provider call.
	ProviderTimeout time.Duration
	// RequireLive makes startup fail instead of falling back to simulation.
	RequireLive     bool
	SimulationDelay time.Duration
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	timeout, err := getenvDuration("PAYMENT_PROVIDER_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	simDelay, err := getenvDuration("PAYMENT_SIMULATION_DELAY", 500*time.Millisecond)
	if err != nil {
		return nil, err
	}
	requireLive, err := getenvBool("PAYMENT_REQUIRE_LIVE", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		ServiceName: getenvDefault("SERVICE_NAME", "ecommerce"),
		Env:         getenvDefault("ENV", "dev"),
		HTTPAddr:    getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:    os.Getenv("LOG_LEVEL"),
		LogFile:     os.Getenv("LOG_FILE"),
		Payment: PaymentConfig{
			ProviderSecret:  strings.TrimSpace(os.Getenv("PAYMENT_PROVIDER_SECRET")),
			ReturnURL:       os.Getenv("PAYMENT_RETURN_URL"),
			DefaultCurrency: strings.ToLower(getenvDefault("PAYMENT_DEFAULT_CURRENCY", "usd")),
			ProviderTimeout: timeout,
			RequireLive:     requireLive,
			SimulationDelay: simDelay,
		},
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   getenvDefault("KAFKA_TOPIC", "ecommerce.events"),
	}, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
