package logger

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// SetLevel sets the global minimum level. An empty string keeps info.
func SetLevel(level string) error {
	if strings.TrimSpace(level) == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
