package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	API      APIConfig      `toml:"api"`
	Realtime RealtimeConfig `toml:"realtime"`
	Tracking TrackingConfig `toml:"tracking"`
	Database DatabaseConfig `toml:"database"`
	Log      LogConfig      `toml:"log"`
}

// APIConfig locates the remote shopping list API.
type APIConfig struct {
	BaseURL   string `toml:"base_url"`
	WSURL     string `toml:"ws_url"`
	TimeoutMS int    `toml:"timeout_ms"`
}

// RealtimeConfig controls the live list connection.
type RealtimeConfig struct {
	AutoReconnect        bool `toml:"auto_reconnect"`
	ReconnectIntervalMS  int  `toml:"reconnect_interval_ms"`
	MaxReconnectAttempts int  `toml:"max_reconnect_attempts"`
	MaxReconnectDelayMS  int  `toml:"max_reconnect_delay_ms"`
	HeartbeatIntervalMS  int  `toml:"heartbeat_interval_ms"`
	MinConnectIntervalMS int  `toml:"min_connect_interval_ms"`
	ErrorNoticeDelayMS   int  `toml:"error_notice_delay_ms"`
}

// TrackingConfig controls the echo suppression windows.
type TrackingConfig struct {
	ActionTTLMS     int `toml:"action_ttl_ms"`
	CreateTTLMS     int `toml:"create_ttl_ms"`
	SweepIntervalMS int `toml:"sweep_interval_ms"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// LogConfig contains logger settings. An empty File logs to stderr.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// Timeout returns the REST request timeout.
func (c APIConfig) Timeout() time.Duration { return ms(c.TimeoutMS) }

// WebSocketURL returns the configured ws_url, or derives one from base_url by swapping the scheme.
func (c APIConfig) WebSocketURL() (string, error) {
	if c.WSURL != "" {
		return strings.TrimRight(c.WSURL, "/"), nil
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", fmt.Errorf("%w: base_url: %v", ErrInvalidConfig, err)
	}

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("%w: unsupported base_url scheme %q", ErrInvalidConfig, u.Scheme)
	}
	return strings.TrimRight(u.String(), "/"), nil
}

func (c RealtimeConfig) ReconnectInterval() time.Duration  { return ms(c.ReconnectIntervalMS) }
func (c RealtimeConfig) MaxReconnectDelay() time.Duration  { return ms(c.MaxReconnectDelayMS) }
func (c RealtimeConfig) HeartbeatInterval() time.Duration  { return ms(c.HeartbeatIntervalMS) }
func (c RealtimeConfig) MinConnectInterval() time.Duration { return ms(c.MinConnectIntervalMS) }
func (c RealtimeConfig) ErrorNoticeDelay() time.Duration   { return ms(c.ErrorNoticeDelayMS) }

func (c TrackingConfig) ActionTTL() time.Duration     { return ms(c.ActionTTLMS) }
func (c TrackingConfig) CreateTTL() time.Duration     { return ms(c.CreateTTLMS) }
func (c TrackingConfig) SweepInterval() time.Duration { return ms(c.SweepIntervalMS) }

// Validate reports the first problem found in the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("%w: api.base_url is required", ErrInvalidConfig)
	}
	if _, err := c.API.WebSocketURL(); err != nil {
		return err
	}

	positive := map[string]int{
		"api.timeout_ms":                  c.API.TimeoutMS,
		"realtime.reconnect_interval_ms":  c.Realtime.ReconnectIntervalMS,
		"realtime.max_reconnect_delay_ms": c.Realtime.MaxReconnectDelayMS,
		"realtime.heartbeat_interval_ms":  c.Realtime.HeartbeatIntervalMS,
		"tracking.action_ttl_ms":          c.Tracking.ActionTTLMS,
		"tracking.create_ttl_ms":          c.Tracking.CreateTTLMS,
		"tracking.sweep_interval_ms":      c.Tracking.SweepIntervalMS,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}

	if c.Realtime.MaxReconnectAttempts < 0 {
		return fmt.Errorf("%w: realtime.max_reconnect_attempts must not be negative", ErrInvalidConfig)
	}
	if c.Realtime.MinConnectIntervalMS < 0 || c.Realtime.ErrorNoticeDelayMS < 0 {
		return fmt.Errorf("%w: realtime intervals must not be negative", ErrInvalidConfig)
	}
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
