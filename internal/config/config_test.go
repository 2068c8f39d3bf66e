package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lanmon.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Listen != ":8080" {
		t.Errorf("expected default listen :8080, got %q", cfg.Listen)
	}
	if cfg.Database.Path != "./lanmon.db" {
		t.Errorf("expected default db path, got %q", cfg.Database.Path)
	}
	if time.Duration(cfg.Scan.Interval) != 60*time.Second {
		t.Errorf("expected 60s scan interval, got %v", time.Duration(cfg.Scan.Interval))
	}
	if cfg.Log.Level != "info" {
		t.Errorf("expected info log level, got %q", cfg.Log.Level)
	}
}

func TestLoadFromPath(t *testing.T) {
	path := writeTempConfig(t, `
listen: ":9000"
database:
  path: /tmp/test.db
scan:
  interval: 2m
  subnet: 10.0.0.0/24
  strategies:
    nmap:
      enabled: false
    pingsweep:
      timeout: 45s
log:
  level: debug
`)

	cfg, loadedPath, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loadedPath != path {
		t.Errorf("expected path %q, got %q", path, loadedPath)
	}
	if cfg.Listen != ":9000" {
		t.Errorf("expected listen :9000, got %q", cfg.Listen)
	}
	if time.Duration(cfg.Scan.Interval) != 2*time.Minute {
		t.Errorf("expected 2m interval, got %v", time.Duration(cfg.Scan.Interval))
	}
	if cfg.Scan.Subnet != "10.0.0.0/24" {
		t.Errorf("expected subnet 10.0.0.0/24, got %q", cfg.Scan.Subnet)
	}
	if cfg.StrategyEnabled("nmap") {
		t.Error("expected nmap strategy disabled")
	}
	if !cfg.StrategyEnabled("arpscan") {
		t.Error("expected unconfigured strategy enabled")
	}
	if got := cfg.StrategyTimeout("pingsweep", 10*time.Second); got != 45*time.Second {
		t.Errorf("expected 45s pingsweep timeout, got %v", got)
	}
	if got := cfg.StrategyTimeout("neighbors", 10*time.Second); got != 10*time.Second {
		t.Errorf("expected fallback timeout, got %v", got)
	}
}

func TestLoadFromPathInvalidYAML(t *testing.T) {
	path := writeTempConfig(t, "listen: [broken")

	if _, _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEffectiveSubnetConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scan.Subnet = "172.16.0.0/16"
	if got := cfg.EffectiveSubnet(); got != "172.16.0.0/16" {
		t.Errorf("expected configured subnet to win, got %q", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "config.yaml")

	cfg := DefaultConfig()
	cfg.Scan.Subnet = "192.168.50.0/24"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, _, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if loaded.Scan.Subnet != "192.168.50.0/24" {
		t.Errorf("expected subnet to round-trip, got %q", loaded.Scan.Subnet)
	}
}
