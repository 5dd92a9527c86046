package config

import (
	"flag"
	"fmt"
	"os"

	toml "github.com/pelletier/go-toml/v2"
)

// Flags holds command-line flag values.
type Flags struct {
	ConfigPath     string
	LogLevel       string
	Addr           string
	UDPAddr        string
	HTTPAddr       string
	MediaRoot      string
	MaxConnections int
}

// ParseFlags parses command-line flags and returns a Flags struct.
func ParseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", "./nexusd.toml", "Path to configuration file")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&f.Addr, "addr", "", "TCP listen address")
	flag.StringVar(&f.UDPAddr, "udp-addr", "", "UDP relay listen address")
	flag.StringVar(&f.HTTPAddr, "http-addr", "", "HTTPS API listen address")
	flag.StringVar(&f.MediaRoot, "media-root", "", "Directory for uploaded media")
	flag.IntVar(&f.MaxConnections, "max-connections", 0, "Maximum concurrent TCP sessions")

	flag.Parse()
	return f
}

// Load parses a TOML configuration file over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ApplyEnv(cfg), nil
		}
		return cfg, fmt.Errorf("reading config file: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config file: %w", err)
	}

	return ApplyEnv(cfg), nil
}

// ApplyEnv merges environment variables into the config. Environment
// values override file values.
func ApplyEnv(cfg Config) Config {
	setenv := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setenv(&cfg.Scylla.URI, "SCYLLA_URI")
	setenv(&cfg.Addr, "ADDR")
	setenv(&cfg.UDPAddr, "UDP_ADDR")
	setenv(&cfg.HTTPAddr, "HTTP_ADDR")
	setenv(&cfg.TLS.CertFile, "TLS_CERT_PATH")
	setenv(&cfg.TLS.KeyFile, "TLS_KEY_PATH")
	setenv(&cfg.Media.Root, "STORAGE_MEDIA")
	setenv(&cfg.JWT.Secret, "JWT_SECRET")
	setenv(&cfg.Minio.Host, "MINIO_HOST")
	setenv(&cfg.Minio.Port, "MINIO_PORT")
	setenv(&cfg.Minio.RootUser, "MINIO_ROOT_USER")
	setenv(&cfg.Minio.RootPassword, "MINIO_ROOT_PASSWORD")

	if cfg.Minio.RootUser != "" && cfg.Minio.RootPassword != "" {
		cfg.Minio.Enabled = true
	}

	return cfg
}

// ApplyFlags merges command-line flag values into the config.
// Non-zero/non-empty flag values override everything else.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.Addr != "" {
		cfg.Addr = f.Addr
	}
	if f.UDPAddr != "" {
		cfg.UDPAddr = f.UDPAddr
	}
	if f.HTTPAddr != "" {
		cfg.HTTPAddr = f.HTTPAddr
	}
	if f.MediaRoot != "" {
		cfg.Media.Root = f.MediaRoot
	}
	if f.MaxConnections > 0 {
		cfg.Limits.MaxConnections = f.MaxConnections
	}
	return cfg
}

// LoadWithFlags loads configuration from the path specified in flags,
// then applies flag overrides.
func LoadWithFlags(f *Flags) (Config, error) {
	cfg, err := Load(f.ConfigPath)
	if err != nil {
		return cfg, err
	}
	return ApplyFlags(cfg, f), nil
}
