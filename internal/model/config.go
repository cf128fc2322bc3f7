package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// APIConfig holds settings for the remote REST/WebSocket backend.
type APIConfig struct {
	// BaseURL is the root of the backend (e.g., https://api.rihigo.com).
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`

	// PageSize is the number of notifications requested per page.
	PageSize int `mapstructure:"page_size" yaml:"page_size"`

	// Timeout bounds a single REST request.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// RealtimeConfig controls the notification socket reconnection policy.
type RealtimeConfig struct {
	// ReconnectDelay is the fixed delay between reconnect attempts, or the
	// base delay when Backoff is "exponential".
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`

	// Backoff selects the retry policy: "fixed" or "exponential".
	Backoff string `mapstructure:"backoff" yaml:"backoff"`

	// MaxDelay caps exponential backoff.
	MaxDelay time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
}

// ToastConfig holds toast display settings.
type ToastConfig struct {
	Capacity int `mapstructure:"capacity" yaml:"capacity"`
}

// PushConfig holds settings for the device push subscription.
type PushConfig struct {
	// VAPIDPublicKey is the server-supplied application server key.
	VAPIDPublicKey string `mapstructure:"vapid_public_key" yaml:"vapid_public_key"`

	// ListenAddr is where the local push endpoint and metrics listen.
	// Empty disables the listener.
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// LogConfig controls the structured log sink.
type LogConfig struct {
	File  string `mapstructure:"file" yaml:"file"`
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API      APIConfig      `mapstructure:"api" yaml:"api"`
	Realtime RealtimeConfig `mapstructure:"realtime" yaml:"realtime"`
	Toast    ToastConfig    `mapstructure:"toast" yaml:"toast"`
	Push     PushConfig     `mapstructure:"push" yaml:"push"`
	Display  DisplayConfig  `mapstructure:"display" yaml:"display"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`

	// MetricsEnabled exposes /metrics on the local listener.
	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`

	// CachePath is the SQLite file holding the offline notification cache.
	CachePath string `mapstructure:"cache_path" yaml:"cache_path"`
}

// ConfigDir returns ~/.config/rihigo, falling back to the working directory.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "rihigo")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		API: APIConfig{
			BaseURL:  "http://localhost:8080",
			PageSize: 20,
			Timeout:  30 * time.Second,
		},
		Realtime: RealtimeConfig{
			ReconnectDelay: 5 * time.Second,
			Backoff:        "fixed",
			MaxDelay:       time.Minute,
		},
		Toast: ToastConfig{Capacity: 5},
		Push: PushConfig{
			ListenAddr: "127.0.0.1:7788",
		},
		Display: DisplayConfig{Theme: "default"},
		Log: LogConfig{
			File:  filepath.Join(ConfigDir(), "rihigo.log"),
			Level: "info",
		},
		CachePath: filepath.Join(ConfigDir(), "cache.db"),
	}
}

// newViper builds a viper instance with defaults and environment bindings.
func newViper(path string) *viper.Viper {
	d := defaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.page_size", d.API.PageSize)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("realtime.reconnect_delay", d.Realtime.ReconnectDelay)
	v.SetDefault("realtime.backoff", d.Realtime.Backoff)
	v.SetDefault("realtime.max_delay", d.Realtime.MaxDelay)
	v.SetDefault("toast.capacity", d.Toast.Capacity)
	v.SetDefault("push.listen_addr", d.Push.ListenAddr)
	v.SetDefault("display.theme", d.Display.Theme)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("metrics_enabled", false)
	v.SetDefault("cache_path", d.CachePath)

	// PUBLIC_API_URL matches the web front end's environment contract.
	_ = v.BindEnv("api.base_url", "PUBLIC_API_URL")
	_ = v.BindEnv("push.vapid_public_key", "RIHIGO_VAPID_PUBLIC_KEY")

	v.SetEnvPrefix("rihigo")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, defaults and environment overrides apply.
func LoadConfig(path string) (*AppConfig, error) {
	v := newViper(path)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.PageSize <= 0 {
		cfg.API.PageSize = 20
	}
	if cfg.Toast.Capacity <= 0 {
		cfg.Toast.Capacity = 5
	}
	if cfg.Realtime.ReconnectDelay <= 0 {
		cfg.Realtime.ReconnectDelay = 5 * time.Second
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", map[string]interface{}{
		"base_url":  cfg.API.BaseURL,
		"page_size": cfg.API.PageSize,
		"timeout":   cfg.API.Timeout.String(),
	})
	v.Set("realtime", map[string]interface{}{
		"reconnect_delay": cfg.Realtime.ReconnectDelay.String(),
		"backoff":         cfg.Realtime.Backoff,
		"max_delay":       cfg.Realtime.MaxDelay.String(),
	})
	v.Set("toast", cfg.Toast)
	v.Set("push", cfg.Push)
	v.Set("display", cfg.Display)
	v.Set("log", cfg.Log)
	v.Set("metrics_enabled", cfg.MetricsEnabled)
	v.Set("cache_path", cfg.CachePath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
