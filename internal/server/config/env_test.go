package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnv(t *testing.T) {
	t.Setenv("SECLEDGER_GRPC_ADDR", ":6000")
	t.Setenv("SECLEDGER_STORAGE", "postgres")
	t.Setenv("SECLEDGER_ASSERTION_TTL", "90s")
	t.Setenv("SECLEDGER_QR_SIZE", "512")
	t.Setenv("SECLEDGER_SYMMETRIC_PAIRING", "false")
	t.Setenv("SECLEDGER_REDIS_ADDR", "redis:6379")
	t.Setenv("SECLEDGER_S3_DOCUMENT_KEY", "k.json")

	var c Config
	c.LoadDefaults()
	require.NotPanics(t, func() { parseEnv(&c) })

	assert.Equal(t, ":6000", c.EndpointAddrGRPC)
	assert.Equal(t, StoragePostgres, c.StorageBackend)
	assert.Equal(t, 90*time.Second, c.AssertionTTL)
	assert.Equal(t, 512, c.QRCodeSize)
	assert.False(t, c.SymmetricPairing)
	assert.Equal(t, "redis:6379", c.RedisAddr)
	assert.Equal(t, "k.json", c.S3DocumentKey)

	// untouched
	assert.Equal(t, ":10000", c.EndpointAddrHTTP)
	assert.True(t, c.ResetOnSetup)
}

func TestParseEnv_MalformedPanics(t *testing.T) {
	t.Setenv("SECLEDGER_QR_SIZE", "big")

	var c Config
	require.Panics(t, func() { parseEnv(&c) })
}
