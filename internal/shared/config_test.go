package shared

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.API.BaseURL != "http://localhost:8000" {
			t.Errorf("expected base url http://localhost:8000, got %s", config.API.BaseURL)
		}

		if !config.Realtime.AutoReconnect {
			t.Error("expected auto reconnect to be enabled by default")
		}

		if config.Realtime.MaxReconnectAttempts != 5 {
			t.Errorf("expected 5 reconnect attempts, got %d", config.Realtime.MaxReconnectAttempts)
		}

		if got := config.Realtime.MaxReconnectDelay(); got != 30*time.Second {
			t.Errorf("expected max reconnect delay 30s, got %v", got)
		}

		if got := config.Realtime.HeartbeatInterval(); got != 30*time.Second {
			t.Errorf("expected heartbeat interval 30s, got %v", got)
		}

		if got := config.Tracking.ActionTTL(); got != 5*time.Second {
			t.Errorf("expected action ttl 5s, got %v", got)
		}

		if got := config.Tracking.CreateTTL(); got != 3*time.Second {
			t.Errorf("expected create ttl 3s, got %v", got)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("default config should be valid: %v", err)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		if config.Database.Path != DefaultConfig().Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig keeps defaults for missing keys", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		content := `[api]
base_url = "https://lists.example.com"

[realtime]
max_reconnect_attempts = 2
`
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.API.BaseURL != "https://lists.example.com" {
			t.Errorf("expected overridden base url, got %s", config.API.BaseURL)
		}
		if config.Realtime.MaxReconnectAttempts != 2 {
			t.Errorf("expected 2 reconnect attempts, got %d", config.Realtime.MaxReconnectAttempts)
		}
		if config.Realtime.HeartbeatIntervalMS != 30000 {
			t.Errorf("expected default heartbeat to survive, got %d", config.Realtime.HeartbeatIntervalMS)
		}
	})

	t.Run("LoadConfig with missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("LoadConfig with invalid TOML", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[api\nbase_url = "), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		if _, err := LoadConfig(configPath); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("rejects empty base url", func(t *testing.T) {
		config := DefaultConfig()
		config.API.BaseURL = "  "

		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("rejects non-positive intervals", func(t *testing.T) {
		config := DefaultConfig()
		config.Tracking.ActionTTLMS = 0

		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("rejects negative attempts", func(t *testing.T) {
		config := DefaultConfig()
		config.Realtime.MaxReconnectAttempts = -1

		if err := config.Validate(); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestWebSocketURL(t *testing.T) {
	tests := []struct {
		name    string
		api     APIConfig
		want    string
		wantErr bool
	}{
		{name: "http becomes ws", api: APIConfig{BaseURL: "http://localhost:8000"}, want: "ws://localhost:8000"},
		{name: "https becomes wss", api: APIConfig{BaseURL: "https://lists.example.com/"}, want: "wss://lists.example.com"},
		{name: "explicit ws url wins", api: APIConfig{BaseURL: "http://a", WSURL: "wss://b/"}, want: "wss://b"},
		{name: "unknown scheme", api: APIConfig{BaseURL: "ftp://a"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.api.WebSocketURL()
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
