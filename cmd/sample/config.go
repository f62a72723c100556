package main

import (
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	PackageName          string
	PublisherCredentials string
	Workers              int
	CatalogTTL           time.Duration
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoiEnv(log *zap.Logger, key string, def int) int {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("Invalid int env, using default", zap.String("key", key), zap.String("value", v), zap.Int("default", def))
		return def
	}
	return n
}

func durationEnv(log *zap.Logger, key string, def time.Duration) time.Duration {
	v := getenv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn("Invalid duration env, using default", zap.String("key", key), zap.String("value", v), zap.Duration("default", def))
		return def
	}
	return d
}

func LoadConfig(log *zap.Logger) Config {
	return Config{
		PackageName:          getenv("CASHIER_PACKAGE_NAME", "com.example.cashier.sample"),
		PublisherCredentials: getenv("CASHIER_PUBLISHER_CREDENTIALS", ""),
		Workers:              atoiEnv(log, "CASHIER_WORKERS", 2),
		CatalogTTL:           durationEnv(log, "CASHIER_CATALOG_TTL", 10*time.Minute),
	}
}
