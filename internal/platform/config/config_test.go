package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"BRANCHRATE_ADDR", "BRANCH_STORE", "SESSION_TTL", "RATE_WRITE_TIMEOUT", "KAFKA_BROKERS", "REDIS_URL", "RATE_LIMIT_PER_MINUTE"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, StoreMemory, cfg.BranchStore)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Empty(t, cfg.Audit.KafkaBrokers)
	assert.NotEmpty(t, cfg.SessionKey)
	assert.Equal(t, 120, cfg.RateLimitPerMinute)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BRANCHRATE_ADDR", ":9090")
	t.Setenv("BRANCH_STORE", "Postgres")
	t.Setenv("RATE_WRITE_TIMEOUT", "250ms")
	t.Setenv("REDIS_POOL_SIZE", "notanumber")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")

	cfg := FromEnv()
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, StorePostgres, cfg.BranchStore)
	assert.Equal(t, 250*time.Millisecond, cfg.WriteTimeout)
	assert.Equal(t, 10, cfg.Redis.PoolSize)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Audit.KafkaBrokers)
}
