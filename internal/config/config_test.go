package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HTTP_PORT", "")
	t.Setenv("CONFIG_FILE", "")

	cfg := LoadConfig()
	if cfg.HTTPPort != "5001" {
		t.Errorf("expected default HTTP port 5001, got %s", cfg.HTTPPort)
	}
	if cfg.CameraDevice != "0" {
		t.Errorf("expected camera 0, got %s", cfg.CameraDevice)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "8088")
	t.Setenv("RATE_PER_MIN", "not-a-number")
	t.Setenv("CONFIG_FILE", "")

	cfg := LoadConfig()
	if cfg.HTTPPort != "8088" {
		t.Errorf("expected 8088, got %s", cfg.HTTPPort)
	}
	if cfg.RateLimitPerMin != 60 {
		t.Errorf("bad int should fall back to default, got %d", cfg.RateLimitPerMin)
	}
}

func TestLoadConfigFileOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "monitor.yaml")
	content := "http_port: \"9090\"\nmqtt_broker: broker:1883\njpeg_quality: 80\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "")

	cfg := LoadConfig()
	if cfg.HTTPPort != "9090" {
		t.Errorf("expected file port 9090, got %s", cfg.HTTPPort)
	}
	if !cfg.MQTTEnabled() {
		t.Error("expected MQTT enabled from file")
	}
	if cfg.JPEGQuality != 80 {
		t.Errorf("expected quality 80, got %d", cfg.JPEGQuality)
	}
	if cfg.GRPCPort != "50051" {
		t.Errorf("fields missing from the file should keep defaults, got %s", cfg.GRPCPort)
	}
}

func TestValidateRejects(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	cfg := LoadConfig()
	cfg.JPEGQuality = 0
	cfg.HTTPPort = "http"
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error")
	}
}
