package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env      string
	HTTPAddr string

	MongoURI string
	MongoDB  string

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string

	S3Endpoint       string
	S3PublicEndpoint string
	S3AccessKey      string
	S3SecretKey      string
	S3Bucket         string
	S3UseSSL         bool

	SessionTTL       time.Duration
	PresenceTTL      time.Duration
	PresenceInterval time.Duration
	MessageWindow    int
}

// Load parses configuration from the current environment. MONGO_URI and
// KAFKA_BROKERS are optional: without them the service runs on the
// in-memory stores with a purely local change feed. On a malformed
// value Load reports the first error and keeps the default, so the
// returned Config is always usable.
func Load() (Config, error) {
	var loadErr error
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "bchat"),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "bchat.changes"),
		KafkaGroup:       getEnv("KAFKA_GROUP", "bchat-feed"),
		S3Endpoint:       getEnv("S3_ENDPOINT", "http://localhost:9000"),
		S3PublicEndpoint: getEnv("S3_PUBLIC_ENDPOINT", ""),
		S3AccessKey:      getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:      getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:         getEnv("S3_BUCKET", "chat-images"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	sessionTTL, err := parseDurationEnv("SESSION_TTL", 24*time.Hour)
	if err != nil && loadErr == nil {
		loadErr = err
	}
	cfg.SessionTTL = sessionTTL

	presenceTTL, err := parseDurationEnv("PRESENCE_TTL", 5*time.Minute)
	if err != nil && loadErr == nil {
		loadErr = err
	}
	cfg.PresenceTTL = presenceTTL

	presenceInterval, err := parseDurationEnv("PRESENCE_SWEEP_INTERVAL", time.Minute)
	if err != nil && loadErr == nil {
		loadErr = err
	}
	cfg.PresenceInterval = presenceInterval

	window, err := parseIntEnv("MESSAGE_WINDOW", 100)
	if err != nil && loadErr == nil {
		loadErr = err
	}
	cfg.MessageWindow = window

	useSSL, err := parseBoolEnv("S3_USE_SSL", false)
	if err != nil && loadErr == nil {
		loadErr = err
	}
	cfg.S3UseSSL = useSSL
	if cfg.S3PublicEndpoint == "" {
		cfg.S3PublicEndpoint = cfg.S3Endpoint
	}
	return cfg, loadErr
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	var value int
	if _, err := fmt.Sscanf(raw, "%d", &value); err != nil || value <= 0 {
		return def, fmt.Errorf("invalid %s integer: %q", key, raw)
	}
	return value, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return def, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
