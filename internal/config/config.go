// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	// APIAddr is the listen address for the session API.
	APIAddr string
	// RelayAddr is the listen address for the standalone relay process.
	RelayAddr string
	// MongoURL is the MongoDB connection string. Empty falls back to the
	// in-memory store (dev only).
	MongoURL string
	// MongoDB is the database name.
	MongoDB string
	// RelayURL, when set, points the API at an external relay's WebSocket
	// endpoint instead of the in-process relay.
	RelayURL string
}

func Load() Config {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	return Config{
		APIAddr:   getenv("API_ADDR", ":3001"),
		RelayAddr: getenv("RELAY_ADDR", ":3002"),
		MongoURL:  os.Getenv("MONGO_URL"),
		MongoDB:   getenv("MONGO_DB", "final-rendezvous-game"),
		RelayURL:  os.Getenv("RELAY_URL"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
