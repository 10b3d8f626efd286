package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort   string
	DatabaseURL  string
	LogJSON      bool
	LogDebug     bool
	LookbackDays int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Print("no .env file, using system environment variables")
	}

	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		LogJSON:      getBoolEnv("LOG_JSON", false),
		LogDebug:     getBoolEnv("LOG_DEBUG", false),
		LookbackDays: getIntEnv("LOOKBACK_DAYS", 7),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("invalid %s value %q, using %v", key, raw, fallback)
		return fallback
	}
	return value
}

func getIntEnv(key string, fallback int) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s value %q, using %d", key, raw, fallback)
		return fallback
	}
	return value
}
