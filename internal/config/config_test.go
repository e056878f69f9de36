package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PORT", "")
	t.Setenv("TIKTOKZONE_LISTEN", "")
	t.Setenv("TIKTOKZONE_LOG_LEVEL", "")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Listen != ":3000" {
		t.Errorf("default listen = %q, want :3000", cfg.Listen)
	}
	if cfg.DefaultProvider != "tikwm" {
		t.Errorf("default provider = %q, want tikwm", cfg.DefaultProvider)
	}
	if cfg.FilenamePrefix != "Freetiktokzone" {
		t.Errorf("default prefix = %q, want Freetiktokzone", cfg.FilenamePrefix)
	}
	if cfg.Timeouts.Form != 8*time.Second || cfg.Timeouts.Stream != 25*time.Second {
		t.Errorf("default timeouts = %+v", cfg.Timeouts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"empty listen", func(c *Config) { c.Listen = "" }, true},
		{"invalid log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"invalid provider", func(c *Config) { c.DefaultProvider = "ytdl" }, true},
		{"provider case-insensitive", func(c *Config) { c.DefaultProvider = "SaveTT" }, false},
		{"prefix with underscore", func(c *Config) { c.FilenamePrefix = "my_site" }, true},
		{"prefix with slash", func(c *Config) { c.FilenamePrefix = "a/b" }, true},
		{"empty prefix", func(c *Config) { c.FilenamePrefix = "" }, true},
		{"http mirror", func(c *Config) { c.MirrorBase = "http://ssstik.io" }, true},
		{"template without id", func(c *Config) { c.WatermarkTemplate = "https://example.com/wm.mp4" }, true},
		{"template not https", func(c *Config) { c.WatermarkTemplate = "http://example.com/{id}.mp4" }, true},
		{"template with username", func(c *Config) { c.WatermarkTemplate = "https://example.com/@{username}/{id}.mp4" }, false},
		{"zero timeout", func(c *Config) { c.Timeouts.API = 0 }, true},
		{"valid snaptik", func(c *Config) { c.DefaultProvider = "snaptik" }, false},
		{"provider alias", func(c *Config) { c.DefaultProvider = "alt2" }, false},
		{"watermark strategy is not a default", func(c *Config) { c.DefaultProvider = "watermark-template" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateCanonicalizesProvider(t *testing.T) {
	for in, want := range map[string]string{"ALT1": "savett", " SnapTik ": "snaptik", "tikwm": "tikwm"} {
		cfg := Default()
		cfg.DefaultProvider = in
		if err := cfg.Validate(); err != nil {
			t.Fatalf("Validate(%q) error: %v", in, err)
		}
		if cfg.DefaultProvider != want {
			t.Errorf("DefaultProvider %q canonicalized to %q, want %q", in, cfg.DefaultProvider, want)
		}
	}
}

func TestLoadFromTOML(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	content := `
listen = ":8080"
log_level = "debug"
default_provider = "savett"
filename_prefix = "Clips"

[timeouts]
page = "5s"
stream = "1m"
`
	appDir := filepath.Join(tmpDir, "tiktokzone")
	if err := os.MkdirAll(appDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(appDir, "config.toml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Listen != ":8080" {
		t.Errorf("listen = %q, want :8080", cfg.Listen)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q, want debug", cfg.LogLevel)
	}
	if cfg.DefaultProvider != "savett" {
		t.Errorf("default_provider = %q, want savett", cfg.DefaultProvider)
	}
	if cfg.FilenamePrefix != "Clips" {
		t.Errorf("filename_prefix = %q, want Clips", cfg.FilenamePrefix)
	}
	if cfg.Timeouts.Page != 5*time.Second {
		t.Errorf("timeouts.page = %s, want 5s", cfg.Timeouts.Page)
	}
	if cfg.Timeouts.Stream != time.Minute {
		t.Errorf("timeouts.stream = %s, want 1m", cfg.Timeouts.Stream)
	}
	if cfg.Timeouts.API != 15*time.Second {
		t.Errorf("unset timeouts.api = %s, want default 15s", cfg.Timeouts.API)
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmpDir)

	appDir := filepath.Join(tmpDir, "tiktokzone")
	os.MkdirAll(appDir, 0755)
	os.WriteFile(filepath.Join(appDir, "config.toml"), []byte(`default_provider = "bogus"`), 0644)

	if _, err := Load(); err == nil {
		t.Error("Load() should reject an unsupported provider")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() should not error on missing file: %v", err)
	}
	if cfg.DefaultProvider != "tikwm" {
		t.Errorf("missing file should return defaults, got provider = %q", cfg.DefaultProvider)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	t.Setenv("TIKTOKZONE_LISTEN", "127.0.0.1:9000")
	t.Setenv("TIKTOKZONE_LOG_LEVEL", "warn")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != "127.0.0.1:9000" || cfg.LogLevel != "warn" {
		t.Errorf("env overrides not applied: listen=%q level=%q", cfg.Listen, cfg.LogLevel)
	}

	t.Setenv("PORT", "4000")
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":4000" {
		t.Errorf("PORT should win, listen = %q", cfg.Listen)
	}
}

func TestExpandDownloadDir(t *testing.T) {
	cfg := Default()
	cfg.DownloadDir = "/tmp/test-downloads"

	dir, err := cfg.ExpandDownloadDir()
	if err != nil {
		t.Fatalf("ExpandDownloadDir() error: %v", err)
	}
	if dir != "/tmp/test-downloads" {
		t.Errorf("got %q, want /tmp/test-downloads", dir)
	}
}
