package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr            string
	BranchStore     string
	DatabaseURL     string
	SeedFile        string
	SessionKey      string
	AdminToken      string
	SessionTTL      time.Duration
	WriteTimeout    time.Duration
	RefreshInterval time.Duration

	// RateLimitPerMinute caps session and rate-update requests per client
	// IP; zero disables the limit.
	RateLimitPerMinute int

	Redis           RedisConfig
	Audit           AuditConfig
}

// RedisConfig configures the session store. An empty URL keeps sessions in
// memory.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuditConfig selects the audit sinks besides the log sink.
type AuditConfig struct {
	KafkaBrokers []string
	KafkaTopic   string
	AMQPURL      string
	AMQPExchange string
}

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	sessionKey := os.Getenv("SESSION_SIGNING_KEY")
	if sessionKey == "" {
		// Use a default for development - should be overridden in production
		sessionKey = "dev-secret-key-change-in-production"
	}

	return Server{
		Addr:            getEnv("BRANCHRATE_ADDR", ":8080"),
		BranchStore:     strings.ToLower(getEnv("BRANCH_STORE", StoreMemory)),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SeedFile:        os.Getenv("BRANCH_SEED_FILE"),
		SessionKey:      sessionKey,
		AdminToken:      os.Getenv("BRANCH_API_TOKEN"),
		SessionTTL:      getDuration("SESSION_TTL", 12*time.Hour),
		WriteTimeout:    getDuration("RATE_WRITE_TIMEOUT", 10*time.Second),
		RefreshInterval: getDuration("DIRECTORY_REFRESH_INTERVAL", 0),

		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 120),

		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Audit: AuditConfig{
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			KafkaTopic:   getEnv("KAFKA_AUDIT_TOPIC", "branchrate.audit"),
			AMQPURL:      os.Getenv("AMQP_URL"),
			AMQPExchange: getEnv("AMQP_EXCHANGE", "branchrate.audit"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
