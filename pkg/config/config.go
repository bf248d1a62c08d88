// Package config provides client settings loading for tools built on the
// pool.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Settings holds the connection and pool tuning for a client.
type Settings struct {
	// URL is the database connection URL.
	URL string `mapstructure:"url"`

	// Pool sizing
	MaxSize uint32 `mapstructure:"max_size"`
	MinSize uint32 `mapstructure:"min_size"`

	// Timeouts and lifetimes
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxLifetime    time.Duration `mapstructure:"max_lifetime"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`

	// Checkout behavior
	TestOnAcquire bool `mapstructure:"test_on_acquire"`
}

// DefaultSettings returns settings matching the pool's built-in defaults.
func DefaultSettings() *Settings {
	return &Settings{
		MaxSize:        10,
		MinSize:        0,
		ConnectTimeout: 30 * time.Second,
		TestOnAcquire:  true,
	}
}

// LoadSettings loads settings from a file, with environment variables
// overriding file values.
func LoadSettings(path string) (*Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("SQLX")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	settings := DefaultSettings()
	if err := v.Unmarshal(settings); err != nil {
		return nil, err
	}
	return settings, nil
}
