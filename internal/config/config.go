// Package config handles TOML-based configuration loading and validation.
// Values are layered: defaults < config file < environment < CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"tiktokzone/internal/httputil"
	"tiktokzone/internal/provider"
)

// Config holds all application configuration.
type Config struct {
	Listen            string   `toml:"listen"`
	LogLevel          string   `toml:"log_level"`
	Debug             bool     `toml:"debug"`
	DefaultProvider   string   `toml:"default_provider"`
	FilenamePrefix    string   `toml:"filename_prefix"`
	MirrorBase        string   `toml:"mirror_base"`
	WatermarkTemplate string   `toml:"watermark_template"`
	DownloadDir       string   `toml:"download_dir"`
	Timeouts          Timeouts `toml:"timeouts"`
}

// Timeouts bound each kind of upstream call.
type Timeouts struct {
	Page      time.Duration `toml:"page"`       // content page fetches
	ShortLink time.Duration `toml:"short_link"` // short-link redirect resolution
	Form      time.Duration `toml:"form"`       // token pages of form-based sites
	Submit    time.Duration `toml:"submit"`     // form submissions
	API       time.Duration `toml:"api"`        // JSON API calls
	Stream    time.Duration `toml:"stream"`     // media GETs, until headers arrive
	Image     time.Duration `toml:"image"`      // image re-hosting, until headers arrive
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Listen:            ":3000",
		LogLevel:          "info",
		Debug:             false,
		DefaultProvider:   "tikwm",
		FilenamePrefix:    "Freetiktokzone",
		MirrorBase:        "https://ssstik.io",
		WatermarkTemplate: "https://www.tikwm.com/video/media/wmplay/{id}.mp4",
		DownloadDir:       "~/Videos/tiktokzone",
		Timeouts: Timeouts{
			Page:      15 * time.Second,
			ShortLink: 10 * time.Second,
			Form:      8 * time.Second,
			Submit:    12 * time.Second,
			API:       15 * time.Second,
			Stream:    25 * time.Second,
			Image:     20 * time.Second,
		},
	}
}

// configDir returns the XDG-compliant config directory.
func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "tiktokzone"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "tiktokzone"), nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// Load reads the config file, merges it over defaults and applies
// environment overrides. A missing config file is not an error.
func Load() (*Config, error) {
	cfg := Default()

	path, err := ConfigPath()
	if err == nil {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// applyEnv honours the usual deployment variables. PORT wins over
// TIKTOKZONE_LISTEN since hosting platforms inject it.
func (c *Config) applyEnv() {
	if listen := os.Getenv("TIKTOKZONE_LISTEN"); listen != "" {
		c.Listen = listen
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Listen = ":" + port
	}
	if level := os.Getenv("TIKTOKZONE_LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

// Validate checks config values are within acceptable bounds.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return fmt.Errorf("listen address cannot be empty")
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("unsupported log level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	name := provider.Canonical(c.DefaultProvider)
	if name == "" {
		return fmt.Errorf("unsupported provider %q (valid: %s)", c.DefaultProvider, strings.Join(provider.Names(), ", "))
	}
	c.DefaultProvider = name

	if c.FilenamePrefix == "" || strings.ContainsAny(c.FilenamePrefix, `/\_"`) {
		return fmt.Errorf("filename prefix %q must be non-empty and free of / \\ _ \"", c.FilenamePrefix)
	}

	if err := httputil.ValidateURL(c.MirrorBase); err != nil {
		return fmt.Errorf("mirror_base: %w", err)
	}

	if !strings.Contains(c.WatermarkTemplate, "{id}") {
		return fmt.Errorf("watermark_template must contain {id}")
	}
	if err := httputil.ValidateURL(strings.NewReplacer("{id}", "0", "{username}", "u").Replace(c.WatermarkTemplate)); err != nil {
		return fmt.Errorf("watermark_template: %w", err)
	}

	for name, d := range map[string]time.Duration{
		"page": c.Timeouts.Page, "short_link": c.Timeouts.ShortLink, "form": c.Timeouts.Form,
		"submit": c.Timeouts.Submit, "api": c.Timeouts.API, "stream": c.Timeouts.Stream,
		"image": c.Timeouts.Image,
	} {
		if d <= 0 {
			return fmt.Errorf("timeout %s must be positive, got %s", name, d)
		}
	}

	return nil
}

// ExpandDownloadDir resolves ~ in the download directory path.
func (c *Config) ExpandDownloadDir() (string, error) {
	dir := c.DownloadDir
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding home dir: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}
	return filepath.Abs(dir)
}
