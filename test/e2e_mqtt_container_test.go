package test

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/factoryccu/app"
	"github.com/kilianp07/factoryccu/config"
	"github.com/kilianp07/factoryccu/core/factory"
	"github.com/kilianp07/factoryccu/core/jobstatus"
	"github.com/kilianp07/factoryccu/core/model"
	"github.com/kilianp07/factoryccu/test/util"
)

const layoutYAML = `nodes:
  - id: i1
  - id: i2
  - id: i3
  - id: hbw
    serialNumber: HBW-1
    type: HBW
  - id: mill
    serialNumber: MILL-1
    type: MILL
  - id: dps
    serialNumber: DPS-1
    type: DPS
roads:
  - {from: i1, to: i2, length: 100, direction: EAST, bidirectional: true}
  - {from: i2, to: i3, length: 100, direction: EAST, bidirectional: true}
  - {from: i1, to: hbw, length: 100, direction: NORTH, bidirectional: true}
  - {from: i2, to: mill, length: 100, direction: NORTH, bidirectional: true}
  - {from: i3, to: dps, length: 100, direction: NORTH, bidirectional: true}
`

const flowsYAML = `BLUE:
  steps:
    - module: MILL
      command: MILL
`

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return addr
}

func TestProductionJobOverMQTTContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()
	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Skipf("mosquitto unavailable: %v", err)
	}
	defer cleanup()

	dir := t.TempDir()
	layoutPath := filepath.Join(dir, "layout.yaml")
	flowsPath := filepath.Join(dir, "flows.yaml")
	require.NoError(t, os.WriteFile(layoutPath, []byte(layoutYAML), 0o644))
	require.NoError(t, os.WriteFile(flowsPath, []byte(flowsYAML), 0o644))

	addr := freeAddr(t)
	cfg := &config.Config{
		Layout:  config.FileConfig{Path: layoutPath},
		Flows:   config.FileConfig{Path: flowsPath},
		HTTP:    config.HTTPConfig{Addr: addr},
		Archive: factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": filepath.Join(dir, "jobs.db")}},
	}
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "prometheus"}}
	cfg.MQTT.Broker = broker
	cfg.MQTT.ClientID = "ccu-e2e"
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	svc, err := app.New(cfg)
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = svc.Run(runCtx) }()

	waitCtx, waitCancel := context.WithTimeout(ctx, util.HTTPTimeout)
	defer waitCancel()
	require.NoError(t, util.WaitForHTTP(waitCtx, "http://"+addr+"/api/jobs"))

	sim, err := util.NewSimulator(broker, map[string]string{"hbw": "HBW-1", "mill": "MILL-1", "dps": "DPS-1"})
	require.NoError(t, err)
	defer sim.Close()
	require.NoError(t, sim.Await("ccu/pairing/state", 5*time.Second))

	require.NoError(t, sim.ConnectModule("HBW-1", model.ModuleLoad{Type: model.WorkpieceBlue, Position: "A1"}))
	require.NoError(t, sim.ConnectModule("MILL-1"))
	require.NoError(t, sim.ConnectModule("DPS-1"))
	require.NoError(t, sim.ConnectVehicle("FTS-1", "i1"))
	// device reports and the request travel on different topics
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, sim.Publish("ccu/order/request", model.JobRequest{Type: model.JobProduction, WorkpieceType: model.WorkpieceBlue}))

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/jobs?status=FINISHED")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		var out []jobstatus.Status
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return false
		}
		return len(out) == 1 && out[0].StepsFinished == 8
	}, 15*time.Second, 100*time.Millisecond)
	require.Equal(t, 8, sim.Handled())

	metricsCtx, metricsCancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer metricsCancel()
	require.NoError(t, util.WaitForMetric(metricsCtx, "http://"+addr+"/metrics", "jobs_archived_total"))
	require.NoError(t, util.WaitForMetric(metricsCtx, "http://"+addr+"/metrics", `dispatch_jobs_submitted_total{order_type="PRODUCTION"} 1`))
}
