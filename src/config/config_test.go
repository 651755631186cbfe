package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	qerrors "github.com/lensvol/qotd/src/errors"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantError bool
	}{
		{
			name:      "valid config - default config",
			mutate:    func(*Config) {},
			wantError: false,
		},
		{
			name: "valid config - ipv6 and udp only",
			mutate: func(c *Config) {
				c.ServerConfig.BindAddr = "[::1]:1717"
				c.ServerConfig.DisableStream = true
				c.LogConfig.Level = "debug"
			},
			wantError: false,
		},
		{
			name: "invalid config - bind address without port",
			mutate: func(c *Config) {
				c.ServerConfig.BindAddr = "127.0.0.1"
			},
			wantError: true,
		},
		{
			name: "invalid config - port out of range",
			mutate: func(c *Config) {
				c.ServerConfig.BindAddr = "127.0.0.1:70000"
			},
			wantError: true,
		},
		{
			name: "invalid config - both protocols disabled",
			mutate: func(c *Config) {
				c.ServerConfig.DisableStream = true
				c.ServerConfig.DisableDatagram = true
			},
			wantError: true,
		},
		{
			name: "invalid config - empty index suffix",
			mutate: func(c *Config) {
				c.QuotesConfig.IndexSuffix = ""
			},
			wantError: true,
		},
		{
			name: "invalid config - negative write timeout",
			mutate: func(c *Config) {
				c.ServerConfig.WriteTimeoutMs = -1
			},
			wantError: true,
		},
		{
			name: "invalid config - datagram buffer too large",
			mutate: func(c *Config) {
				c.ServerConfig.DatagramBufferSize = 70000
			},
			wantError: true,
		},
		{
			name: "invalid config - unknown log level",
			mutate: func(c *Config) {
				c.LogConfig.Level = "loud"
			},
			wantError: true,
		},
		{
			name: "invalid config - metrics enabled with bad addr",
			mutate: func(c *Config) {
				c.MetricsConfig.Enabled = true
				c.MetricsConfig.Addr = "nope"
			},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateConfig() error = %v, wantError %v", err, tt.wantError)
			}
			if err != nil && !qerrors.HasCode(err, qerrors.CodeConfig) {
				t.Errorf("ValidateConfig() error code = %v, want %s", err, qerrors.CodeConfig)
			}
		})
	}

	if err := ValidateConfig(nil); err == nil {
		t.Error("ValidateConfig(nil) should error")
	}
}

func TestSetDefaults(t *testing.T) {
	m := &ManagerImpl{config: &Config{}}
	m.SetDefaults()
	cfg := m.Get()

	if cfg.ServerConfig.BindAddr != "127.0.0.1:17" {
		t.Errorf("BindAddr = %s, want 127.0.0.1:17", cfg.ServerConfig.BindAddr)
	}
	if cfg.QuotesConfig.IndexSuffix != ".dat" {
		t.Errorf("IndexSuffix = %s, want .dat", cfg.QuotesConfig.IndexSuffix)
	}
	if cfg.ServerConfig.DatagramBufferSize != 512 {
		t.Errorf("DatagramBufferSize = %d, want 512", cfg.ServerConfig.DatagramBufferSize)
	}
	if cfg.LogConfig.Level != "info" {
		t.Errorf("LogConfig.Level = %s, want info", cfg.LogConfig.Level)
	}
	if cfg.WriteTimeout() != 0 {
		t.Errorf("WriteTimeout() = %v, want 0 to stay 0", cfg.WriteTimeout())
	}
	if DefaultConfig().WriteTimeout() != 10*time.Second {
		t.Errorf("default WriteTimeout() = %v, want 10s", DefaultConfig().WriteTimeout())
	}

	m = &ManagerImpl{}
	m.SetDefaults()
	if m.Get() == nil {
		t.Fatal("SetDefaults() on nil config should install defaults")
	}
}

func TestLoadAndSave(t *testing.T) {
	tempDir := t.TempDir()
	ctx := context.Background()

	tests := []struct {
		name      string
		filename  string
		content   string
		wantBind  string
		wantError bool
	}{
		{
			name:     "valid JSON",
			filename: "config.json",
			content: `{
				"quotes": {"file": "/usr/share/games/fortunes/fortunes"},
				"server": {"bind_addr": "0.0.0.0:1717", "disable_datagram": true},
				"log": {"level": "debug"},
				"metrics": {"enabled": true, "addr": ":9117"}
			}`,
			wantBind:  "0.0.0.0:1717",
			wantError: false,
		},
		{
			name:     "valid YAML",
			filename: "config.yaml",
			content: `
quotes:
  file: /usr/share/games/fortunes/fortunes
  index_suffix: .idx
server:
  bind_addr: "127.0.0.1:2017"
  write_timeout_ms: 500
log:
  level: warn
`,
			wantBind:  "127.0.0.1:2017",
			wantError: false,
		},
		{
			name:      "invalid JSON",
			filename:  "broken.json",
			content:   `{"server": `,
			wantError: true,
		},
		{
			name:      "valid YAML with invalid values",
			filename:  "bad.yml",
			content:   "server:\n  bind_addr: nowhere\n",
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tempDir, tt.filename)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("Failed to write test file: %v", err)
			}

			mgr := NewManager()
			err := mgr.Load(ctx, path)
			if (err != nil) != tt.wantError {
				t.Fatalf("Load() error = %v, wantError %v", err, tt.wantError)
			}
			if tt.wantError {
				return
			}

			cfg := mgr.Get()
			if cfg.ServerConfig.BindAddr != tt.wantBind {
				t.Errorf("BindAddr = %s, want %s", cfg.ServerConfig.BindAddr, tt.wantBind)
			}
			if cfg.QuotesConfig.File != "/usr/share/games/fortunes/fortunes" {
				t.Errorf("QuotesConfig.File = %s", cfg.QuotesConfig.File)
			}

			// Round-trip through Save in the same format.
			savePath := filepath.Join(tempDir, "saved-"+tt.filename)
			if err := mgr.Save(ctx, savePath); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			mgr2 := NewManager()
			if err := mgr2.Load(ctx, savePath); err != nil {
				t.Fatalf("Load() of saved config error = %v", err)
			}
			if *mgr2.Get() != *cfg {
				t.Errorf("saved config = %+v, want %+v", *mgr2.Get(), *cfg)
			}
		})
	}
}

func TestLoadWriteTimeout(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  string
		want     time.Duration
	}{
		{"YAML zero disables deadline", "zero.yaml", "server:\n  write_timeout_ms: 0\n", 0},
		{"JSON zero disables deadline", "zero.json", `{"server": {"write_timeout_ms": 0}}`, 0},
		{"YAML absent keeps default", "absent.yaml", "log:\n  level: debug\n", 10 * time.Second},
		{"JSON absent keeps default", "absent.json", `{"server": {"bind_addr": "127.0.0.1:1017"}}`, 10 * time.Second},
		{"YAML explicit value", "set.yaml", "server:\n  write_timeout_ms: 250\n", 250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.filename)
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("Failed to write test file: %v", err)
			}

			mgr := NewManager()
			if err := mgr.Load(context.Background(), path); err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if got := mgr.Get().WriteTimeout(); got != tt.want {
				t.Errorf("WriteTimeout() = %v, want %v", got, tt.want)
			}

			// A zero must survive Save and reload.
			savePath := filepath.Join(t.TempDir(), "saved-"+tt.filename)
			if err := mgr.Save(context.Background(), savePath); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			mgr2 := NewManager()
			if err := mgr2.Load(context.Background(), savePath); err != nil {
				t.Fatalf("Load() of saved config error = %v", err)
			}
			if got := mgr2.Get().WriteTimeout(); got != tt.want {
				t.Errorf("reloaded WriteTimeout() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFromEnvZeroWriteTimeout(t *testing.T) {
	t.Setenv("QOTD_WRITE_TIMEOUT_MS", "0")

	mgr := NewManager()
	if err := mgr.LoadFromEnv(context.Background()); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if got := mgr.Get().WriteTimeout(); got != 0 {
		t.Errorf("WriteTimeout() = %v, want 0", got)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	mgr := NewManager()
	err := mgr.Load(context.Background(), "/nonexistent/path/config.json")
	if err == nil {
		t.Error("Load() should error on non-existent file")
	}
}

func TestLoadUnsupportedExtension(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "config.txt")
	if err := os.WriteFile(filePath, []byte("some content"), 0o644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	mgr := NewManager()
	if err := mgr.Load(context.Background(), filePath); err == nil {
		t.Error("Load() should error on unsupported file extension")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("QOTD_BIND", "0.0.0.0:1017")
	t.Setenv("QOTD_QUOTES_FILE", "/env/quotes")
	t.Setenv("QOTD_DISABLE_UDP", "true")
	t.Setenv("QOTD_LOG_LEVEL", "trace")
	t.Setenv("QOTD_METRICS_ENABLED", "true")

	mgr := NewManager()
	if err := mgr.LoadFromEnv(context.Background()); err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	cfg := mgr.Get()
	if cfg.ServerConfig.BindAddr != "0.0.0.0:1017" {
		t.Errorf("BindAddr = %s, want 0.0.0.0:1017", cfg.ServerConfig.BindAddr)
	}
	if cfg.QuotesConfig.File != "/env/quotes" {
		t.Errorf("QuotesConfig.File = %s, want /env/quotes", cfg.QuotesConfig.File)
	}
	if !cfg.ServerConfig.DisableDatagram {
		t.Error("DisableDatagram should be true from env")
	}
	if cfg.ServerConfig.DisableStream {
		t.Error("DisableStream should keep its default")
	}
	if cfg.LogConfig.Level != "trace" {
		t.Errorf("LogConfig.Level = %s, want trace", cfg.LogConfig.Level)
	}
	if !cfg.MetricsConfig.Enabled || cfg.MetricsConfig.Addr != "127.0.0.1:9117" {
		t.Errorf("MetricsConfig = %+v", cfg.MetricsConfig)
	}
}

func TestLoadFromEnvBadValue(t *testing.T) {
	t.Setenv("QOTD_WRITE_TIMEOUT_MS", "soon")

	mgr := NewManager()
	if err := mgr.LoadFromEnv(context.Background()); err == nil {
		t.Error("LoadFromEnv() should error on a non-numeric timeout")
	}
}

func TestLoadCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mgr := NewManager()
	if err := mgr.LoadFromEnv(ctx); err == nil {
		t.Error("LoadFromEnv() should honor a canceled context")
	}
	if err := mgr.Save(ctx, filepath.Join(t.TempDir(), "c.json")); err == nil {
		t.Error("Save() should honor a canceled context")
	}
}
