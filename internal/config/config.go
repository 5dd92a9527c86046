// Package config provides configuration management for the chat server.
package config

import (
	"errors"
	"fmt"
	"net"
)

// Config holds the full server configuration. Values are layered:
// defaults, then the TOML file, then environment variables, then flags.
type Config struct {
	LogLevel string `toml:"log_level"`

	// Addr is the TCP bind address for the framed session channel.
	Addr string `toml:"addr"`
	// UDPAddr is the bind address for the media relay socket.
	UDPAddr string `toml:"udp_addr"`
	// HTTPAddr is the bind address for the HTTPS API.
	HTTPAddr string `toml:"http_addr"`

	Scylla  ScyllaConfig  `toml:"scylla"`
	TLS     TLSConfig     `toml:"tls"`
	JWT     JWTConfig     `toml:"jwt"`
	Media   MediaConfig   `toml:"media"`
	Minio   MinioConfig   `toml:"minio"`
	Limits  LimitsConfig  `toml:"limits"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ScyllaConfig holds the wide-column store settings. The keyspace name
// is fixed by the DDL.
type ScyllaConfig struct {
	URI string `toml:"uri"`
}

// TLSConfig holds certificate paths for the HTTPS API.
type TLSConfig struct {
	CertFile string `toml:"cert_file"`
	KeyFile  string `toml:"key_file"`
}

// JWTConfig holds token settings. The secret must come from configuration;
// there is no built-in default.
type JWTConfig struct {
	Secret string `toml:"secret"`
	// TTL is the token lifetime in seconds.
	TTL int64 `toml:"ttl"`
}

// MediaConfig holds local media storage settings.
type MediaConfig struct {
	// Root is the directory receiving uploaded file payloads.
	Root string `toml:"root"`
}

// MinioConfig holds object-store settings. When disabled, file payloads
// stay on local disk only.
type MinioConfig struct {
	Enabled      bool   `toml:"enabled"`
	Host         string `toml:"host"`
	Port         string `toml:"port"`
	RootUser     string `toml:"root_user"`
	RootPassword string `toml:"root_password"`
}

// LimitsConfig defines resource limits for the server.
type LimitsConfig struct {
	MaxConnections int `toml:"max_connections"`
}

// MetricsConfig holds configuration for Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Address string `toml:"address"`
	Path    string `toml:"path"`
}

// Default returns a Config with sensible default values. The JWT secret
// has no default and must be provided.
func Default() Config {
	return Config{
		LogLevel: "info",
		Addr:     "127.0.0.1:8081",
		UDPAddr:  "127.0.0.1:8083",
		HTTPAddr: "127.0.0.1:8082",
		Scylla: ScyllaConfig{
			URI: "127.0.0.1:9042",
		},
		JWT: JWTConfig{
			TTL: 365 * 24 * 60 * 60,
		},
		Media: MediaConfig{
			Root: "./media",
		},
		Minio: MinioConfig{
			Host: "127.0.0.1",
			Port: "9000",
		},
		Limits: LimitsConfig{
			MaxConnections: 1000,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Address: ":9101",
			Path:    "/metrics",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	for _, addr := range []struct {
		name  string
		value string
	}{
		{"addr", c.Addr},
		{"udp_addr", c.UDPAddr},
		{"http_addr", c.HTTPAddr},
	} {
		if addr.value == "" {
			return fmt.Errorf("%s is required", addr.name)
		}
		if _, _, err := net.SplitHostPort(addr.value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", addr.name, addr.value, err)
		}
	}

	if c.Scylla.URI == "" {
		return errors.New("scylla uri is required")
	}

	if c.JWT.Secret == "" {
		return errors.New("jwt secret is required (set [jwt] secret or JWT_SECRET)")
	}
	if c.JWT.TTL <= 0 {
		return errors.New("jwt ttl must be positive")
	}

	if c.Media.Root == "" {
		return errors.New("media root is required")
	}

	if c.Limits.MaxConnections <= 0 {
		return errors.New("max_connections must be positive")
	}

	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return errors.New("tls cert_file and key_file must be set together")
	}

	if c.Minio.Enabled {
		if c.Minio.Host == "" || c.Minio.Port == "" {
			return errors.New("minio host and port are required when minio is enabled")
		}
		if c.Minio.RootUser == "" || c.Minio.RootPassword == "" {
			return errors.New("minio credentials are required when minio is enabled")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Address == "" {
			return errors.New("metrics address is required when metrics are enabled")
		}
		if c.Metrics.Path == "" {
			return errors.New("metrics path is required when metrics are enabled")
		}
	}

	return nil
}
