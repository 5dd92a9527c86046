package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Default()
	cfg.JWT.Secret = "s3cret"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Addr != "127.0.0.1:8081" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.UDPAddr != "127.0.0.1:8083" {
		t.Errorf("UDPAddr = %q", cfg.UDPAddr)
	}
	if cfg.HTTPAddr != "127.0.0.1:8082" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.Scylla.URI != "127.0.0.1:9042" {
		t.Errorf("Scylla.URI = %q", cfg.Scylla.URI)
	}
	if cfg.JWT.TTL != 365*24*60*60 {
		t.Errorf("JWT.TTL = %d", cfg.JWT.TTL)
	}
	if cfg.Limits.MaxConnections != 1000 {
		t.Errorf("MaxConnections = %d", cfg.Limits.MaxConnections)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"missing addr", func(c *Config) { c.Addr = "" }, "addr is required"},
		{"bad addr", func(c *Config) { c.Addr = "no-port" }, "invalid addr"},
		{"missing scylla", func(c *Config) { c.Scylla.URI = "" }, "scylla uri"},
		{"missing jwt secret", func(c *Config) { c.JWT.Secret = "" }, "jwt secret"},
		{"zero ttl", func(c *Config) { c.JWT.TTL = 0 }, "jwt ttl"},
		{"missing media root", func(c *Config) { c.Media.Root = "" }, "media root"},
		{"zero max connections", func(c *Config) { c.Limits.MaxConnections = 0 }, "max_connections"},
		{"cert without key", func(c *Config) { c.TLS.CertFile = "cert.pem" }, "tls cert_file and key_file"},
		{"minio without creds", func(c *Config) { c.Minio.Enabled = true }, "minio credentials"},
		{"metrics without address", func(c *Config) {
			c.Metrics.Enabled = true
			c.Metrics.Address = ""
		}, "metrics address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Addr != Default().Addr {
		t.Errorf("Addr = %q, want default", cfg.Addr)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nexusd.toml")
	content := `
log_level = "debug"
addr = "0.0.0.0:9001"

[jwt]
secret = "from-file"
ttl = 3600

[limits]
max_connections = 50
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.Addr != "0.0.0.0:9001" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.JWT.Secret != "from-file" || cfg.JWT.TTL != 3600 {
		t.Errorf("JWT = %+v", cfg.JWT)
	}
	if cfg.Limits.MaxConnections != 50 {
		t.Errorf("MaxConnections = %d", cfg.Limits.MaxConnections)
	}
	// Untouched sections keep their defaults.
	if cfg.UDPAddr != Default().UDPAddr {
		t.Errorf("UDPAddr = %q, want default", cfg.UDPAddr)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("log_level = [broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject malformed TOML")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SCYLLA_URI", "10.0.0.5:9042")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("MINIO_ROOT_USER", "minio")
	t.Setenv("MINIO_ROOT_PASSWORD", "miniopass")

	cfg := ApplyEnv(Default())

	if cfg.Scylla.URI != "10.0.0.5:9042" {
		t.Errorf("Scylla.URI = %q", cfg.Scylla.URI)
	}
	if cfg.JWT.Secret != "from-env" {
		t.Errorf("JWT.Secret = %q", cfg.JWT.Secret)
	}
	if !cfg.Minio.Enabled {
		t.Error("minio should auto-enable when credentials are present")
	}
}

func TestApplyFlags(t *testing.T) {
	cfg := Default()
	flags := &Flags{
		LogLevel:       "debug",
		Addr:           "0.0.0.0:7001",
		MediaRoot:      "/var/media",
		MaxConnections: 7,
	}

	got := ApplyFlags(cfg, flags)

	if got.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", got.LogLevel)
	}
	if got.Addr != "0.0.0.0:7001" {
		t.Errorf("Addr = %q", got.Addr)
	}
	if got.Media.Root != "/var/media" {
		t.Errorf("Media.Root = %q", got.Media.Root)
	}
	if got.Limits.MaxConnections != 7 {
		t.Errorf("MaxConnections = %d", got.Limits.MaxConnections)
	}
	// Unset flags leave the config alone.
	if got.UDPAddr != Default().UDPAddr {
		t.Errorf("UDPAddr = %q, want default", got.UDPAddr)
	}
}
