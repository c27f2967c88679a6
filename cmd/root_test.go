package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/factoryccu/config"
)

func TestApplyOverrides(t *testing.T) {
	f := rootCmd.Flags()
	t.Cleanup(func() {
		for _, name := range []string{"broker", "max-parallel-jobs", "log-level"} {
			fl := f.Lookup(name)
			_ = fl.Value.Set(fl.DefValue)
			fl.Changed = false
		}
	})
	cfg := &config.Config{Layout: config.FileConfig{Path: "layout.yaml"}}
	cfg.SetDefaults()

	require.NoError(t, f.Set("broker", "tcp://broker:1883"))
	require.NoError(t, f.Set("max-parallel-jobs", "2"))
	require.NoError(t, applyOverrides(rootCmd, cfg))
	assert.Equal(t, "tcp://broker:1883", cfg.MQTT.Broker)
	assert.Equal(t, 2, cfg.Dispatch.MaxParallelJobs)
	assert.Equal(t, "layout.yaml", cfg.Layout.Path, "unset flags keep the file value")
	assert.Equal(t, "info", cfg.Logging.Level)

	require.NoError(t, f.Set("log-level", "loud"))
	err := applyOverrides(rootCmd, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid flags")
}

func TestRootHelpDescribesOverrides(t *testing.T) {
	for _, name := range []string{"broker", "layout", "flows", "log-level", "http-addr", "max-parallel-jobs", "min-battery"} {
		if rootCmd.Flags().Lookup(name) == nil {
			t.Fatalf("flag %s not registered", name)
		}
	}
	assert.Contains(t, rootCmd.Long, "K_MQTT__BROKER")
}
