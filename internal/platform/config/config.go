// Package config builds service configuration from environment variables so
// main stays lean.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	strutil "kudos/pkg/platform/strings"
)

// Server captures top-level service configuration.
type Server struct {
	Addr          string
	PostgresURL   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	JWTSigningKey string
	// APIKeyHash is a bcrypt hash of the machine-caller API key. Empty
	// disables API-key auth (JWT only).
	APIKeyHash string
	// SnapshotLimit bounds the historical activity fetch at observation
	// start. The recent-activity view keeps fewer entries; the extra
	// headroom seeds the applied-set deeper into history.
	SnapshotLimit int
	LogLevel      slog.Level
}

// RedisConfig captures Redis connection settings. An empty URL means Redis is
// not configured.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig captures Kafka connection settings. Empty Brokers means Kafka
// is not configured and the live stream falls back to Redis pub/sub.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

const defaultSnapshotLimit = 50

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	addr := os.Getenv("KUDOS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("KUDOS_JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Development default - must be overridden in production.
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	snapshotLimit := defaultSnapshotLimit
	if raw := os.Getenv("KUDOS_SNAPSHOT_LIMIT"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			snapshotLimit = n
		}
	}

	var brokers []string
	if raw := os.Getenv("KUDOS_KAFKA_BROKERS"); raw != "" {
		brokers = strutil.DedupeAndTrim(strings.Split(raw, ","))
	}
	topic := os.Getenv("KUDOS_KAFKA_TOPIC")
	if topic == "" {
		topic = "karma.activities"
	}

	return Server{
		Addr:        addr,
		PostgresURL: os.Getenv("KUDOS_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("KUDOS_REDIS_URL"),
			PoolSize:     envInt("KUDOS_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("KUDOS_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka:         KafkaConfig{Brokers: brokers, Topic: topic},
		JWTSigningKey: jwtSigningKey,
		APIKeyHash:    os.Getenv("KUDOS_API_KEY_HASH"),
		SnapshotLimit: snapshotLimit,
		LogLevel:      parseLogLevel(os.Getenv("KUDOS_LOG_LEVEL")),
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			return n
		}
	}
	return fallback
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
