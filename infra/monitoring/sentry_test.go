package monitoring

import (
	"errors"
	"fmt"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/factoryccu/config"
	"github.com/kilianp07/factoryccu/core/dispatch"
	coremon "github.com/kilianp07/factoryccu/core/monitoring"
)

func TestNewSentryMonitorDisabled(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	require.IsType(t, coremon.NopMonitor{}, m)
}

func TestNewSentryMonitorInvalidDSN(t *testing.T) {
	_, err := NewSentryMonitor(config.SentryConfig{DSN: "not a dsn"})
	require.Error(t, err)
}

func TestDropExpected(t *testing.T) {
	ev := &sentry.Event{}
	rejected := fmt.Errorf("%w: %w", dispatch.ErrJobRejected, errors.New("no stock"))
	require.Nil(t, dropExpected(ev, &sentry.EventHint{OriginalException: rejected}))
	require.Same(t, ev, dropExpected(ev, &sentry.EventHint{OriginalException: errors.New("boom")}))
	require.Same(t, ev, dropExpected(ev, nil))
}
