package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	t.Setenv("HARVEST_AUTH_SIGNING_KEY", "secret")

	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port: want 8080, got %q", cfg.Port)
	}
	if cfg.DB.Engine != "sqlite" || cfg.DB.Path != "harvest.db" {
		t.Errorf("unexpected db config: %+v", cfg.DB)
	}
	if cfg.Scanner.AutoInterval != time.Hour {
		t.Errorf("auto interval: want 1h, got %v", cfg.Scanner.AutoInterval)
	}
	if cfg.Feed.Source != "simulator" {
		t.Errorf("feed source: want simulator, got %q", cfg.Feed.Source)
	}
	if cfg.Auth.SigningKey != "secret" {
		t.Errorf("signing key not taken from env: %q", cfg.Auth.SigningKey)
	}
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := writeConfig(t, `
port: "9090"
scanner:
  auto_interval: 2h
  timezone: Asia/Kuala_Lumpur
camera:
  url: "http://camera.local/capture"
  timeout: 5s
auth:
  signing_key: from-file
`)
	t.Setenv("HARVEST_VISION_API_KEY", "sk-test")
	t.Setenv("HARVEST_PORT", "7070")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "7070" {
		t.Errorf("env should override port, got %q", cfg.Port)
	}
	if cfg.Scanner.AutoInterval != 2*time.Hour {
		t.Errorf("auto interval: got %v", cfg.Scanner.AutoInterval)
	}
	if cfg.Camera.URL != "http://camera.local/capture" || cfg.Camera.Timeout != 5*time.Second {
		t.Errorf("camera config: %+v", cfg.Camera)
	}
	if cfg.Vision.APIKey != "sk-test" {
		t.Errorf("vision api key: got %q", cfg.Vision.APIKey)
	}
	if cfg.Location().String() != "Asia/Kuala_Lumpur" {
		t.Errorf("location: got %s", cfg.Location())
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"missing signing key", `port: "1"`},
		{"unknown engine", "db:\n  engine: mysql\nauth:\n  signing_key: k\n"},
		{"postgres without dsn", "db:\n  engine: postgres\nauth:\n  signing_key: k\n"},
		{"websocket feed without url", "feed:\n  source: websocket\nauth:\n  signing_key: k\n"},
		{"bad timezone", "scanner:\n  timezone: Mars/Olympus\nauth:\n  signing_key: k\n"},
		{"zero interval", "scanner:\n  auto_interval: 0s\nauth:\n  signing_key: k\n"},
		{"bad cors origin", "http:\n  cors_origins: [\"localhost:5173\"]\nauth:\n  signing_key: k\n"},
		{"write timeout too short", "http:\n  write_timeout: 10s\nauth:\n  signing_key: k\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tc.body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}
