package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()

	assert.Equal(t, uint32(10), s.MaxSize)
	assert.Equal(t, uint32(0), s.MinSize)
	assert.Equal(t, 30*time.Second, s.ConnectTimeout)
	assert.True(t, s.TestOnAcquire)
	assert.Zero(t, s.MaxLifetime)
	assert.Zero(t, s.IdleTimeout)
}

func TestLoadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	content := `
url: postgres://alice@db.internal/app
max_size: 20
min_size: 4
connect_timeout: 10s
idle_timeout: 5m
test_on_acquire: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://alice@db.internal/app", s.URL)
	assert.Equal(t, uint32(20), s.MaxSize)
	assert.Equal(t, uint32(4), s.MinSize)
	assert.Equal(t, 10*time.Second, s.ConnectTimeout)
	assert.Equal(t, 5*time.Minute, s.IdleTimeout)
	assert.False(t, s.TestOnAcquire)

	// Defaults survive for keys the file does not set.
	assert.Zero(t, s.MaxLifetime)
}

func TestLoadSettingsMissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
