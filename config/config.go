package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/factoryccu/core/dispatch"
	"github.com/kilianp07/factoryccu/core/factory"
	"github.com/kilianp07/factoryccu/core/metrics"
	"github.com/kilianp07/factoryccu/core/reservation"
	"github.com/kilianp07/factoryccu/infra/mqtt"
)

type Config struct {
	MQTT       mqtt.Config          `json:"mqtt"`
	Dispatch   dispatch.Config      `json:"dispatch"`
	Layout     FileConfig           `json:"layout"`
	Flows      FileConfig           `json:"flows"`
	Warehouses reservation.Config   `json:"warehouses"`
	Metrics    metrics.Config       `json:"metrics"`
	Archive    factory.ModuleConfig `json:"archive"`
	Sentry     SentryConfig         `json:"sentry"`
	HTTP       HTTPConfig           `json:"http"`
	Logging    LoggingConfig        `json:"logging"`
}

// FileConfig points at a layout or flow definition file.
type FileConfig struct {
	Path string `json:"path"`
}

// HTTPConfig defines the status API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Token protects the job history endpoint. Empty disables the check.
	Token string `json:"token"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Warehouses.SetDefaults()
	c.Logging.SetDefaults()
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Dispatch.Validate(); err != nil {
		return fmt.Errorf("dispatch: %w", err)
	}
	if err := c.Warehouses.Validate(); err != nil {
		return fmt.Errorf("warehouses: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	if c.Layout.Path == "" {
		return fmt.Errorf("layout.path is required")
	}
	return nil
}
