package config

import (
	"os"
)

// Config holds the service configuration
type Config struct {
	// Server settings
	ListenAddr string

	// Path to the SQLite file backing the ledger snapshots. Empty means
	// in-memory-only operation.
	StatePath string

	// Path to the routing config file. If the file does not exist the
	// compiled-in defaults are used.
	RoutingPath string

	// Provider API keys
	BraveAPIKey  string
	SerperAPIKey string
}

// Load creates a new config from environment variables
func Load() *Config {
	return &Config{
		ListenAddr:   getEnv("LISTEN_ADDR", ":8080"),
		StatePath:    os.Getenv("STATE_PATH"),
		RoutingPath:  getEnv("ROUTING_CONFIG", "routing.yaml"),
		BraveAPIKey:  os.Getenv("BRAVE_API_KEY"),
		SerperAPIKey: os.Getenv("SERPER_API_KEY"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
