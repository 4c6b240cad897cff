// Package config resolves settings for the seccli command-line client.
//
// Sources, later ones winning: built-in defaults, an optional config file
// (--config, any format viper understands), SECCLI_* environment variables
// and command-line flags bound by the cli package.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "SECCLI"

// Viper keys. They double as flag names.
const (
	KeyServer  = "server"
	KeyTimeout = "timeout"
)

type Config struct {
	ServerEndpointAddr string
	RequestTimeout     time.Duration
}

// LoadDefaults populates c with defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.RequestTimeout = 10 * time.Second
}

// NewViper returns a viper instance with defaults set and SECCLI_* variables
// bound.
func NewViper() *viper.Viper {
	d := Config{}
	d.LoadDefaults()

	v := viper.New()
	v.SetDefault(KeyServer, d.ServerEndpointAddr)
	v.SetDefault(KeyTimeout, d.RequestTimeout)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads file, if given, into v and resolves the settings.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	c := &Config{
		ServerEndpointAddr: strings.TrimSpace(v.GetString(KeyServer)),
		RequestTimeout:     v.GetDuration(KeyTimeout),
	}
	if c.ServerEndpointAddr == "" {
		return nil, errors.New("server address is empty")
	}
	if c.RequestTimeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive, got %s", c.RequestTimeout)
	}
	return c, nil
}
