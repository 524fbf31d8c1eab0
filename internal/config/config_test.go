package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
catalog:
  client_id: test-client
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Expected port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if cfg.Catalog.Endpoint != DefaultEndpoint {
		t.Errorf("Expected endpoint %q, got %q", DefaultEndpoint, cfg.Catalog.Endpoint)
	}
	if cfg.Download.MaxConcurrent != DefaultMaxConcurrent {
		t.Errorf("Expected max concurrent %d, got %d", DefaultMaxConcurrent, cfg.Download.MaxConcurrent)
	}
	if cfg.Download.Dir == "" {
		t.Error("Expected a default download dir")
	}
	if cfg.RetryBackoff() != DefaultRetryBackoffSeconds*time.Second {
		t.Errorf("Expected backoff %v, got %v", DefaultRetryBackoffSeconds*time.Second, cfg.RetryBackoff())
	}
	if cfg.WaitingTime() != DefaultWaitingTimeSeconds*time.Second {
		t.Errorf("Expected waiting time %v, got %v", DefaultWaitingTimeSeconds*time.Second, cfg.WaitingTime())
	}
	if cfg.Encode.FFmpegPath != DefaultFFmpegPath {
		t.Errorf("Expected ffmpeg path %q, got %q", DefaultFFmpegPath, cfg.Encode.FFmpegPath)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
catalog:
  endpoint: https://gql.example.test/gql
  client_id: test-client
  oauth_token: secret
download:
  dir: /tmp/vods
  max_concurrent: 4
  retry_budget: 5
  retry_backoff_seconds: 1
  waiting_time_seconds: 30
encode:
  ffmpeg_path: /opt/ffmpeg/bin/ffmpeg
  disabled: true
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Catalog.Endpoint != "https://gql.example.test/gql" {
		t.Errorf("Unexpected endpoint: %q", cfg.Catalog.Endpoint)
	}
	if cfg.Catalog.OAuthToken != "secret" {
		t.Errorf("Unexpected oauth token: %q", cfg.Catalog.OAuthToken)
	}
	if cfg.Download.Dir != "/tmp/vods" {
		t.Errorf("Unexpected download dir: %q", cfg.Download.Dir)
	}
	if cfg.Download.MaxConcurrent != 4 {
		t.Errorf("Expected max concurrent 4, got %d", cfg.Download.MaxConcurrent)
	}
	if cfg.Download.RetryBudget != 5 {
		t.Errorf("Expected retry budget 5, got %d", cfg.Download.RetryBudget)
	}
	if cfg.RetryBackoff() != time.Second {
		t.Errorf("Expected backoff 1s, got %v", cfg.RetryBackoff())
	}
	if cfg.WaitingTime() != 30*time.Second {
		t.Errorf("Expected waiting time 30s, got %v", cfg.WaitingTime())
	}
	if !cfg.Encode.Disabled {
		t.Error("Expected encode to be disabled")
	}
	if cfg.Encode.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Errorf("Unexpected ffmpeg path: %q", cfg.Encode.FFmpegPath)
	}
}

func TestLoadConfigMissingClientID(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 9000
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("Expected error for missing client_id")
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing file")
	}
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("Expected error for malformed YAML")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("test-client")
	if cfg.Catalog.ClientID != "test-client" {
		t.Errorf("Unexpected client id: %q", cfg.Catalog.ClientID)
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Expected port %d, got %d", DefaultServerPort, cfg.Server.Port)
	}
	if cfg.FetchTimeout() != DefaultFetchTimeoutSeconds*time.Second {
		t.Errorf("Expected fetch timeout %v, got %v", DefaultFetchTimeoutSeconds*time.Second, cfg.FetchTimeout())
	}
}
