package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_WithDefaults(t *testing.T) {
	// Load config without a config file (use defaults)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	// Verify some default values
	if cfg.Server.Port != 8095 {
		t.Errorf("Server.Port = %d, want 8095", cfg.Server.Port)
	}

	if cfg.Queue.URL != "nats://localhost:4222" {
		t.Errorf("Queue.URL = %q, want %q", cfg.Queue.URL, "nats://localhost:4222")
	}

	if cfg.Queue.Stream != "CONNECT" {
		t.Errorf("Queue.Stream = %q, want %q", cfg.Queue.Stream, "CONNECT")
	}

	if cfg.Queue.Consumer != "connect-worker" {
		t.Errorf("Queue.Consumer = %q, want %q", cfg.Queue.Consumer, "connect-worker")
	}

	if cfg.Queue.AckWait != 30*time.Second {
		t.Errorf("Queue.AckWait = %v, want 30s", cfg.Queue.AckWait)
	}

	if cfg.Queue.MaxDeliver != -1 {
		t.Errorf("Queue.MaxDeliver = %d, want -1", cfg.Queue.MaxDeliver)
	}

	if cfg.Queue.NakDelay != 5*time.Second {
		t.Errorf("Queue.NakDelay = %v, want 5s", cfg.Queue.NakDelay)
	}

	if cfg.Queue.Cooldown != 10*time.Second {
		t.Errorf("Queue.Cooldown = %v, want 10s", cfg.Queue.Cooldown)
	}

	if cfg.Auth.OAuthHost != "account-d.docusign.com" {
		t.Errorf("Auth.OAuthHost = %q, want %q", cfg.Auth.OAuthHost, "account-d.docusign.com")
	}

	if cfg.Auth.RefreshBuffer != 10*time.Minute {
		t.Errorf("Auth.RefreshBuffer = %v, want 10m", cfg.Auth.RefreshBuffer)
	}

	if cfg.API.BaseURL != "https://demo.docusign.net/restapi" {
		t.Errorf("API.BaseURL = %q, want %q", cfg.API.BaseURL, "https://demo.docusign.net/restapi")
	}

	if cfg.Output.Dir != "output" {
		t.Errorf("Output.Dir = %q, want %q", cfg.Output.Dir, "output")
	}

	if cfg.Output.Prefix != "order_" {
		t.Errorf("Output.Prefix = %q, want %q", cfg.Output.Prefix, "order_")
	}

	if cfg.Fields.BusinessKey != "Sales order" {
		t.Errorf("Fields.BusinessKey = %q, want %q", cfg.Fields.BusinessKey, "Sales order")
	}

	if cfg.Fields.Color != "Light color" {
		t.Errorf("Fields.Color = %q, want %q", cfg.Fields.Color, "Light color")
	}

	if cfg.Actuator.Selector != "all" {
		t.Errorf("Actuator.Selector = %q, want %q", cfg.Actuator.Selector, "all")
	}

	if cfg.Actuator.Token != "" {
		t.Errorf("Actuator.Token = %q, want empty (disabled by default)", cfg.Actuator.Token)
	}

	if !cfg.Harness.Enabled {
		t.Error("Harness.Enabled should be true by default")
	}

	if cfg.Harness.Depth != 5 {
		t.Errorf("Harness.Depth = %d, want 5", cfg.Harness.Depth)
	}

	if cfg.Dedupe.Enabled {
		t.Error("Dedupe.Enabled should be false by default")
	}

	if cfg.Dedupe.URL != "redis://localhost:6379/0" {
		t.Errorf("Dedupe.URL = %q, want %q", cfg.Dedupe.URL, "redis://localhost:6379/0")
	}

	if cfg.Dedupe.TTL != 24*time.Hour {
		t.Errorf("Dedupe.TTL = %v, want 24h", cfg.Dedupe.TTL)
	}

	if cfg.Journal.Enabled {
		t.Error("Journal.Enabled should be false by default")
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}

	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}

	if cfg.BreakMarker != "/break" {
		t.Errorf("BreakMarker = %q, want %q", cfg.BreakMarker, "/break")
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := []byte(`
queue:
  url: nats://queue.internal:4222
  nak_delay: 30s
output:
  dir: /var/lib/connect/orders
  prefix: so_
fields:
  business_key: Order number
harness:
  enabled: false
break_marker: /crash
`)
	if err := os.WriteFile(path, yaml, 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Queue.URL != "nats://queue.internal:4222" {
		t.Errorf("Queue.URL = %q, want file value", cfg.Queue.URL)
	}

	if cfg.Queue.NakDelay != 30*time.Second {
		t.Errorf("Queue.NakDelay = %v, want 30s", cfg.Queue.NakDelay)
	}

	if cfg.Output.Dir != "/var/lib/connect/orders" {
		t.Errorf("Output.Dir = %q, want file value", cfg.Output.Dir)
	}

	if cfg.Output.Prefix != "so_" {
		t.Errorf("Output.Prefix = %q, want %q", cfg.Output.Prefix, "so_")
	}

	if cfg.Fields.BusinessKey != "Order number" {
		t.Errorf("Fields.BusinessKey = %q, want file value", cfg.Fields.BusinessKey)
	}

	if cfg.Harness.Enabled {
		t.Error("Harness.Enabled should be overridden to false")
	}

	if cfg.BreakMarker != "/crash" {
		t.Errorf("BreakMarker = %q, want %q", cfg.BreakMarker, "/crash")
	}

	// Untouched keys keep their defaults
	if cfg.Queue.Stream != "CONNECT" {
		t.Errorf("Queue.Stream = %q, want default", cfg.Queue.Stream)
	}

	if cfg.Fields.Color != "Light color" {
		t.Errorf("Fields.Color = %q, want default", cfg.Fields.Color)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CONNECT_QUEUE_URL", "nats://env.internal:4222")
	t.Setenv("CONNECT_AUTH_INTEGRATION_KEY", "ik-from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Queue.URL != "nats://env.internal:4222" {
		t.Errorf("Queue.URL = %q, want env value", cfg.Queue.URL)
	}

	if cfg.Auth.IntegrationKey != "ik-from-env" {
		t.Errorf("Auth.IntegrationKey = %q, want env value", cfg.Auth.IntegrationKey)
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	// When a specific file path is given and doesn't exist, it should error
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() with non-existent file path should return error")
	}
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("invalid: yaml: : :"), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Error("Load() with invalid YAML should return error")
	}
}

func TestHarnessDir(t *testing.T) {
	cfg := &Config{
		Output:  OutputConfig{Dir: "output"},
		Harness: HarnessConfig{},
	}
	if got := cfg.HarnessDir(); got != "output" {
		t.Errorf("HarnessDir() = %q, want fallback to output dir", got)
	}

	cfg.Harness.Dir = "/tmp/markers"
	if got := cfg.HarnessDir(); got != "/tmp/markers" {
		t.Errorf("HarnessDir() = %q, want explicit dir", got)
	}
}
