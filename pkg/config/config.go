// Package config loads application configuration from a YAML file and the
// PGBASE_ environment, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/edgeflare/pgbase/pkg/rls"
)

// Config holds application-wide configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	PG      PGConfig      `mapstructure:"pg"`
	Auth    AuthConfig    `mapstructure:"auth"`
	RLS     RLSConfig     `mapstructure:"rls"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	ListenAddr    string        `mapstructure:"listenAddr"`
	DefaultSchema string        `mapstructure:"defaultSchema"`
	ShutdownGrace time.Duration `mapstructure:"shutdownGrace"`
}

type PGConfig struct {
	ConnString string `mapstructure:"connString"`
}

type AuthConfig struct {
	// JWTSecret signs access tokens. Empty generates an ephemeral secret
	// at startup, which is only sensible for development.
	JWTSecret      string        `mapstructure:"jwtSecret"`
	AccessTokenTTL time.Duration `mapstructure:"accessTokenTTL"`
	MinPasswordLen int           `mapstructure:"minPasswordLen"`
	HashIterations int           `mapstructure:"hashIterations"`
	// Store is "postgres" or "memory".
	Store string `mapstructure:"store"`
}

type RLSConfig struct {
	Policies []rls.Policy `mapstructure:"policies"`
}

type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listenAddr"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:    ":8080",
			DefaultSchema: "public",
			ShutdownGrace: 10 * time.Second,
		},
		Auth: AuthConfig{
			AccessTokenTTL: time.Hour,
			MinPasswordLen: 8,
			HashIterations: 100_000,
			Store:          "postgres",
		},
		Metrics: MetricsConfig{
			Enabled:    true,
			ListenAddr: ":9090",
		},
	}
}

// Load reads config from file or environment
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("pgbase")
		v.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config"))
		}
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("PGBASE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.PG.ConnString == "" {
		return fmt.Errorf("pg.connString is required")
	}
	switch c.Auth.Store {
	case "postgres", "memory":
	default:
		return fmt.Errorf("auth.store must be postgres or memory, got %q", c.Auth.Store)
	}
	return nil
}
