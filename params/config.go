package params

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Node struct {
	// Numeraire is the native settlement asset symbol all books price in.
	Numeraire string
	// DataDir holds the Pebble database. Empty disables persistence.
	DataDir string
	LogFile string
	// Assets pre-registered at startup, "SYMBOL:0xaddr" entries.
	Assets []string
}

type API struct {
	Addr string
}

type Feed struct {
	// Brokers empty disables the Kafka trade feed.
	Brokers []string
	Topic   string
}

type Config struct {
	Node Node
	API  API
	Feed Feed
}

func Default() Config {
	return Config{
		Node: Node{
			Numeraire: "ETH",
			DataDir:   "data/spotdex.db",
			LogFile:   "data/spotdex.log",
		},
		API: API{
			Addr: ":8080",
		},
		Feed: Feed{
			Topic: "spotdex.trades",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if present) and
// environment variables. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	cfg.Node.Numeraire = getEnv("NUMERAIRE", cfg.Node.Numeraire)
	cfg.Node.DataDir = getEnv("DATA_DIR", cfg.Node.DataDir)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)
	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	cfg.Feed.Topic = getEnv("KAFKA_TOPIC", cfg.Feed.Topic)

	// Example: ASSETS="LINK:0x514910...,AAVE:0x7fc6..."
	if assets := os.Getenv("ASSETS"); assets != "" {
		cfg.Node.Assets = strings.Split(assets, ",")
	}
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Feed.Brokers = strings.Split(brokers, ",")
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
