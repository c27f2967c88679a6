package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/factoryccu/app"
	"github.com/kilianp07/factoryccu/config"
	"github.com/kilianp07/factoryccu/infra/logger"
)

var cfgPath string

// overrides are applied on top of the loaded configuration when set.
var overrides struct {
	broker     string
	layout     string
	flows      string
	logLevel   string
	httpAddr   string
	maxJobs    int
	minBattery float64
}

var rootCmd = &cobra.Command{
	Use:   "factoryccu",
	Short: "Factory central control unit",
	Long: `factoryccu dispatches production and storage jobs in a modular factory.

It pairs the modules and transport vehicles that report on the MQTT bus,
reserves warehouse stock or bays for each accepted job, plans vehicle routes
over the factory layout and sends module commands and vehicle orders step by
step. Job state is published on the controller topics and served on the
status API next to /metrics.

Configuration is read from the file given with --config. Environment
variables prefixed with K_ override file values (K_MQTT__BROKER sets
mqtt.broker) and the flags below override both.`,
	Example: `  factoryccu -c config.yaml
  factoryccu -c config.yaml --broker tcp://broker:1883 --layout layout.yaml --max-parallel-jobs 2`,
	RunE:         run,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
	f := rootCmd.Flags()
	f.StringVar(&overrides.broker, "broker", "", "MQTT broker URL")
	f.StringVar(&overrides.layout, "layout", "", "factory layout file")
	f.StringVar(&overrides.flows, "flows", "", "production flow file")
	f.StringVar(&overrides.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVar(&overrides.httpAddr, "http-addr", "", "status API listen address")
	f.IntVar(&overrides.maxJobs, "max-parallel-jobs", 0, "production jobs running at once, 0 for unlimited")
	f.Float64Var(&overrides.minBattery, "min-battery", 0, "battery percentage below which vehicles are not dispatched")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyOverrides(cmd, cfg); err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}

// applyOverrides copies the flags given on the command line into cfg and
// validates the result.
func applyOverrides(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("broker") {
		cfg.MQTT.Broker = overrides.broker
	}
	if f.Changed("layout") {
		cfg.Layout.Path = overrides.layout
	}
	if f.Changed("flows") {
		cfg.Flows.Path = overrides.flows
	}
	if f.Changed("log-level") {
		cfg.Logging.Level = overrides.logLevel
	}
	if f.Changed("http-addr") {
		cfg.HTTP.Addr = overrides.httpAddr
	}
	if f.Changed("max-parallel-jobs") {
		cfg.Dispatch.MaxParallelJobs = overrides.maxJobs
	}
	if f.Changed("min-battery") {
		cfg.Dispatch.MinBatteryPercent = overrides.minBattery
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}
