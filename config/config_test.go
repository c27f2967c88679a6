package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kilianp07/factoryccu/core/model"
)

//nolint:gocyclo
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "ccu"
  username: "user"
  password: "pass"
  qos:
    snapshot: 0
dispatch:
  max_parallel_jobs: 2
  min_battery_percent: 20
layout:
  path: "layout.yaml"
flows:
  path: "flows.yaml"
warehouses:
  warehouses:
    HBW-1:
      BLUE: 3
      RED: 2
metrics:
  sinks:
    - type: "prometheus"
archive:
  type: "sqlite"
  conf:
    path: "jobs.db"
http:
  addr: ":9000"
logging:
  level: "debug"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "ccu"},
		{"username", cfg.MQTT.Username, "user"},
		{"password", cfg.MQTT.Password, "pass"},
		{"qos.snapshot", cfg.MQTT.QoS["snapshot"], byte(0)},
		{"qos.command default", cfg.MQTT.QoS["command"], byte(2)},
		{"max_parallel_jobs", cfg.Dispatch.MaxParallelJobs, 2},
		{"min_battery_percent", cfg.Dispatch.MinBatteryPercent, 20.0},
		{"completed_limit default", cfg.Dispatch.CompletedLimit, 50},
		{"layout", cfg.Layout.Path, "layout.yaml"},
		{"flows", cfg.Flows.Path, "flows.yaml"},
		{"bays", cfg.Warehouses.Warehouses["HBW-1"][model.WorkpieceRed], 2},
		{"default bays", cfg.Warehouses.DefaultBaysPerType, 3},
		{"metrics_sink", len(cfg.Metrics.Sinks) == 1 && cfg.Metrics.Sinks[0].Type == "prometheus", true},
		{"archive", cfg.Archive.Type, "sqlite"},
		{"archive.path", cfg.Archive.Conf["path"], "jobs.db"},
		{"http", cfg.HTTP.Addr, ":9000"},
		{"logging", cfg.Logging.Level, "debug"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"layout":{"path":"l.yaml"},"dispatch":{"max_parallel_jobs":1}}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("K_MQTT__BROKER", "tcp://broker:1883")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.MQTT.Broker != "tcp://broker:1883" {
		t.Fatalf("env override not applied: %s", cfg.MQTT.Broker)
	}
	if cfg.HTTP.Addr != ":8080" || cfg.Logging.Level != "info" {
		t.Fatalf("defaults not applied")
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"no layout":     `{"dispatch":{}}`,
		"bad level":     `{"layout":{"path":"l"},"logging":{"level":"loud"}}`,
		"negative jobs": `{"layout":{"path":"l"},"dispatch":{"max_parallel_jobs":-1}}`,
		"bad bays":      `{"layout":{"path":"l"},"warehouses":{"warehouses":{"HBW-1":{"GREEN":1}}}}`,
		"sample rate":   `{"layout":{"path":"l"},"sentry":{"traces_sample_rate":2}}`,
		"log rotation":  `{"layout":{"path":"l"},"logging":{"file":"ccu.log","max_backups":-1}}`,
	}
	for name, data := range cases {
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatalf("write config: %v", err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
	if _, err := Load(filepath.Join(dir, "config.toml")); err == nil {
		t.Errorf("expected unsupported format error")
	}
}
