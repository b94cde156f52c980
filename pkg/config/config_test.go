package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
environment: test
run_id: run-1
`)
	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Pipeline.MessagingInterval != 2*time.Second {
		t.Fatalf("expected 2s messaging interval, got %v", c.Pipeline.MessagingInterval)
	}
	if c.Pipeline.PersistenceInterval != 60*time.Second {
		t.Fatalf("expected 60s persistence interval, got %v", c.Pipeline.PersistenceInterval)
	}
	if c.Persistence.Backend != "file" {
		t.Fatalf("expected file backend, got %s", c.Persistence.Backend)
	}
	if c.Mode != "backtest" || c.IsLive() {
		t.Fatalf("expected backtest default")
	}
}

func TestValidateRejectsMissingRunID(t *testing.T) {
	path := writeConfig(t, `
environment: test
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for missing run_id")
	}
}

func TestValidateRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, `
environment: test
run_id: run-1
persistence:
  backend: s3
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for unknown persistence backend")
	}
}

func TestValidateKafkaMessagingNeedsBrokers(t *testing.T) {
	path := writeConfig(t, `
environment: test
run_id: run-1
messaging:
  backend: kafka
  topic: insights
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error for missing brokers")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: test
run_id: run-1
`)
	t.Setenv("RUN_ID", "run-override")
	t.Setenv("SYMBOLS", "BTCUSDT,ETHUSDT")
	c, err := LoadWithEnv(path)
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if c.RunID != "run-override" {
		t.Fatalf("expected env override for run_id, got %s", c.RunID)
	}
	if len(c.Feed.Symbols) != 2 {
		t.Fatalf("expected 2 symbols, got %v", c.Feed.Symbols)
	}
}
