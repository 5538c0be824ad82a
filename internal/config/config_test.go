package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
username: alice
mining_key: secret
difficulty: MEDIUM
rig_identifier: garage
thread_count: 4
backoff:
  connect: 250ms
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, "secret", cfg.MiningKey)
	assert.Equal(t, "MEDIUM", cfg.Difficulty)
	assert.Equal(t, "garage", cfg.RigIdentifier)
	assert.Equal(t, 4, cfg.ThreadCount)

	// defaults survive a partial file
	assert.Equal(t, TransportTCP, cfg.Transport)
	assert.Equal(t, uint64(100), cfg.SearchMultiplier)
	assert.Equal(t, 250*time.Millisecond, cfg.Backoff.Connect)
	assert.Equal(t, 5*time.Second, cfg.Backoff.Discovery)
	assert.Equal(t, time.Duration(0), cfg.IOTimeout)
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "username: alice\nthread_count: 2\n")
	t.Setenv("DUCO_THREAD_COUNT", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.ThreadCount)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	path := writeConfig(t, "username: alice\nthread_count: 0\n")
	_, err := Load(path)
	assert.ErrorIs(t, err, ErrInvalidThreadCount)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"no username", func(c *Config) { c.Username = " " }, ErrNoUsername},
		{"zero threads", func(c *Config) { c.ThreadCount = 0 }, ErrInvalidThreadCount},
		{"bad transport", func(c *Config) { c.Transport = "udp" }, ErrUnknownTransport},
		{"bad algorithm", func(c *Config) { c.Algorithm = "scrypt" }, ErrUnknownAlgorithm},
		{"zero multiplier", func(c *Config) { c.SearchMultiplier = 0 }, ErrInvalidMultiplier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			cfg.Username = "alice"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestPoolDescription(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, "discovered via https://server.duinocoin.com/getPool", cfg.PoolDescription())
	cfg.PoolAddress = "127.0.0.1:2811"
	assert.Equal(t, "static tcp://127.0.0.1:2811", cfg.PoolDescription())
}
