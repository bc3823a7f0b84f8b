package storefront

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the environment-provided settings a service needs: its store
// connection parameters and the gateway URL used for inter-service calls.
// Nothing else affects core semantics.
type Config struct {
	// RedisAddress is the host:port of the service's Redis store.
	RedisAddress string
	// RedisPassword when the store requires one.
	RedisPassword string
	// RedisDB selects the logical DB owned by this service.
	RedisDB int
	// GatewayURL is the base URL for cross-service calls, e.g. http://gateway:8000.
	GatewayURL string
	// Port the HTTP server listens on.
	Port int
	// Service selects which service(s) this process hosts:
	// ids, stock, payment, order or all.
	Service string
}

// LoadConfig reads configuration from environment variables, applying defaults
// suitable for local development.
func LoadConfig() (Config, error) {
	cfg := Config{
		RedisAddress:  envOr("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		GatewayURL:    envOr("GATEWAY_URL", "http://localhost:8000"),
		Service:       envOr("SERVICE", "all"),
	}
	var err error
	if cfg.RedisDB, err = envIntOr("REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if cfg.Port, err = envIntOr("PORT", 8000); err != nil {
		return cfg, err
	}
	switch cfg.Service {
	case "ids", "stock", "payment", "order", "all":
	default:
		return cfg, fmt.Errorf("unknown SERVICE %q", cfg.Service)
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
