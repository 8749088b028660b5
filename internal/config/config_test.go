package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("GOVT_API_KEY", "key")
	t.Setenv("GOVT_API_SECRET", "secret")
	t.Setenv("SUI_PACKAGE_ID", "0xpkg")
	t.Setenv("SUI_REGISTRY_ID", "0xreg")
	t.Setenv("SUI_CAP_ID", "0xcap")
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		setRequired(t)
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		require.NoError(t, cfg.Sanitize(ctx))

		assert.Equal(t, "verification_stream", cfg.Redis.StreamName)
		assert.Equal(t, "attestation_processors", cfg.Redis.ConsumerGroup)
		assert.Equal(t, "default", cfg.Redis.Username)
		assert.Equal(t, TransportRedis, cfg.Queue.Transport)
		assert.Equal(t, int64(10), cfg.Queue.BatchSize)
		assert.Equal(t, 5*time.Minute, cfg.Queue.RedeliverAfter)
		assert.Equal(t, "verification_stream:dead", cfg.Redis.DeadLetterStream)
		assert.NotEmpty(t, cfg.Queue.ConsumerName)
		assert.Equal(t, "10000000", cfg.Ledger.GasBudget)
		assert.Equal(t, "https://api.sandbox.co.in", cfg.Authority.BaseURL)
		assert.False(t, cfg.Authority.InsecureSkipVerify)
		assert.True(t, cfg.Ledger.RegisterRejected)
		assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	})

	t.Run("enclave mode forces the loopback authority", func(t *testing.T) {
		setRequired(t)
		t.Setenv("ENCLAVE_MODE", "true")
		t.Setenv("GOVT_API_BASE_URL", "https://example.org")
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		require.NoError(t, cfg.Sanitize(ctx))
		assert.Equal(t, EnclaveAuthorityURL, cfg.Authority.BaseURL)
		assert.Equal(t, EnclaveAuthorityURL+"/authenticate", cfg.Authority.AuthURL)
		assert.True(t, cfg.Authority.InsecureSkipVerify)
	})

	t.Run("missing credentials", func(t *testing.T) {
		setRequired(t)
		t.Setenv("GOVT_API_SECRET", "")
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		assert.Error(t, cfg.Sanitize(ctx))
	})

	t.Run("kafka transport shares the queue settings", func(t *testing.T) {
		setRequired(t)
		t.Setenv("QUEUE_TRANSPORT", "kafka")
		t.Setenv("QUEUE_CONSUMER_NAME", "worker-7")
		t.Setenv("QUEUE_BATCH_SIZE", "25")
		t.Setenv("QUEUE_BLOCK", "3s")
		t.Setenv("QUEUE_REDELIVER_AFTER", "90s")
		t.Setenv("QUEUE_MAX_DELIVERIES", "8")
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		require.NoError(t, cfg.Sanitize(ctx))
		assert.Equal(t, "worker-7", cfg.Queue.ConsumerName)
		assert.Equal(t, int64(25), cfg.Queue.BatchSize)
		assert.Equal(t, 3*time.Second, cfg.Queue.Block)
		assert.Equal(t, 90*time.Second, cfg.Queue.RedeliverAfter)
		assert.Equal(t, int64(8), cfg.Queue.MaxDeliveries)
		assert.Equal(t, "verified-user-data.dead", cfg.Kafka.DeadLetterTopic)
	})

	t.Run("batch size must be positive", func(t *testing.T) {
		setRequired(t)
		t.Setenv("QUEUE_BATCH_SIZE", "0")
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		assert.Error(t, cfg.Sanitize(ctx))
	})

	t.Run("unknown transport", func(t *testing.T) {
		setRequired(t)
		t.Setenv("QUEUE_TRANSPORT", "carrier-pigeon")
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		assert.Error(t, cfg.Sanitize(ctx))
	})

	t.Run("unknown executor", func(t *testing.T) {
		setRequired(t)
		t.Setenv("SUI_EXECUTOR", "rpc")
		cfg, err := Load(ctx, "")
		require.NoError(t, err)
		assert.Error(t, cfg.Sanitize(ctx))
	})
}
