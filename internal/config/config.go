package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr  string
	MachineID string

	// Empty DSN runs without the sales journal and uses in-memory sequences.
	DatabaseDSN   string
	RunMigrations bool

	// Empty URL runs without publishing events or consuming restock commands.
	RabbitMQURL            string
	ConsumeRestockCommands bool

	InitialCoinCount   int
	SeedSampleProducts bool

	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string
}

func Load() Config {
	return Config{
		HTTPAddr:  getenv("HTTP_ADDR", ":8084"),
		MachineID: getenv("MACHINE_ID", "vm-1"),

		DatabaseDSN:   getenv("DATABASE_DSN", ""),
		RunMigrations: envBool("RUN_MIGRATIONS", true),

		RabbitMQURL:            getenv("RABBITMQ_URL", ""),
		ConsumeRestockCommands: envBool("CONSUME_RESTOCK_COMMANDS", true),

		InitialCoinCount:   envInt("INITIAL_COIN_COUNT", 10),
		SeedSampleProducts: envBool("SEED_SAMPLE_PRODUCTS", true),

		ShutdownTimeout: parseDuration(getenv("SHUTDOWN_TIMEOUT", "10s"), 10*time.Second),

		LogLevel:  strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getenv("LOG_FORMAT", "json")),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

func envInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(v string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
