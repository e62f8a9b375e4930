package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
env: dev
http:
  address: ":9000"
  timeout: 2s
grpc:
  enabled: true
ledger:
  engine: lmax
  queue_size: 64
  idempotency_ttl: 1m
journal:
  driver: file
  sync: false
metrics:
  enabled: true
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Env != EnvDev || cfg.HTTP.Address != ":9000" || cfg.HTTP.Timeout != 2*time.Second {
		t.Errorf("http = %+v", cfg.HTTP)
	}
	if cfg.HTTP.IdleTimeout != 60*time.Second {
		t.Errorf("IdleTimeout default = %v", cfg.HTTP.IdleTimeout)
	}
	if !cfg.GRPC.Enabled || cfg.GRPC.Address != ":50051" {
		t.Errorf("grpc = %+v", cfg.GRPC)
	}
	if cfg.Ledger.Engine != EngineLMAX || cfg.Ledger.QueueSize != 64 || cfg.Ledger.IdempotencyTTL != time.Minute {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Journal.Driver != JournalFile || cfg.Journal.Path != "data/events.log" || cfg.Journal.SyncEachWrite() {
		t.Errorf("journal = %+v", cfg.Journal)
	}
	if !cfg.Metrics.Enabled {
		t.Error("metrics should be enabled")
	}
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
env = "prod"

[ledger]
engine = "mutex"

[journal]
driver = "mysql"

[mysql]
user = "ledger"
db_name = "points"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if cfg.Env != EnvProd || cfg.Ledger.Engine != EngineMutex {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MySQL.User != "ledger" || cfg.MySQL.Port != 3306 || cfg.MySQL.ConnectRetries != 10 {
		t.Errorf("mysql = %+v", cfg.MySQL)
	}
	if !cfg.Journal.SyncEachWrite() {
		t.Error("SyncEachWrite should default to true")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"unknown engine", "c.yaml", "ledger:\n  engine: disruptor\n"},
		{"unknown driver", "c.yaml", "journal:\n  driver: kafka\n"},
		{"unknown env", "c.yaml", "env: staging\n"},
		{"mysql without db", "c.yaml", "journal:\n  driver: mysql\n"},
		{"bad yaml", "c.yaml", "ledger: [\n"},
		{"unsupported format", "c.json", "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeFile(t, tt.file, tt.content)); err == nil {
				t.Error("Load should fail")
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of missing file should fail")
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.HTTP.Address != ":8000" || cfg.Ledger.Engine != EngineMutex || cfg.Journal.Driver != JournalNone {
		t.Errorf("Default() = %+v", cfg)
	}
}
