package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RISKPOOL_JWT_SIGNING_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, int64(2000), cfg.InitialReserveRatioBps)
	assert.Equal(t, 256, cfg.PersistBatchSize)
	assert.Equal(t, 200*time.Millisecond, cfg.PersistFlushTimeout)
	assert.False(t, cfg.DevTransfers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("RISKPOOL_JWT_SIGNING_KEY", "test-key")
	t.Setenv("RISKPOOL_HTTP_ADDR", ":9999")
	t.Setenv("RISKPOOL_RESERVE_RATIO_BPS", "3500")
	t.Setenv("RISKPOOL_DEV_TRANSFERS", "true")
	t.Setenv("RISKPOOL_SNAPSHOT_INTERVAL", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.HTTPAddr)
	assert.Equal(t, int64(3500), cfg.InitialReserveRatioBps)
	assert.True(t, cfg.DevTransfers)
	assert.Equal(t, 90*time.Second, cfg.SnapshotInterval)
}

func TestLoad_MissingSigningKey(t *testing.T) {
	t.Setenv("RISKPOOL_JWT_SIGNING_KEY", "")

	_, err := Load()
	require.Error(t, err)
}
