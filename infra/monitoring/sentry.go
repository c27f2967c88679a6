package monitoring

import (
	"errors"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/kilianp07/factoryccu/config"
	"github.com/kilianp07/factoryccu/core/dispatch"
	coremon "github.com/kilianp07/factoryccu/core/monitoring"
)

const serviceName = "factoryccu"

// NewSentryMonitor initializes Sentry using the provided configuration and
// returns a Monitor implementation. An empty DSN disables reporting.
func NewSentryMonitor(cfg config.SentryConfig) (coremon.Monitor, error) {
	if cfg.DSN == "" {
		return coremon.NopMonitor{}, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		TracesSampleRate: cfg.TracesSampleRate,
		Release:          cfg.Release,
		ServerName:       cfg.ServerName,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend:       dropExpected,
	})
	if err != nil {
		return nil, err
	}
	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("service", serviceName)
	})
	return &sentryMonitor{}, nil
}

// dropExpected filters rejections that are part of normal operation, such as
// a job request for a workpiece with no stock left.
func dropExpected(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint != nil && hint.OriginalException != nil && expected(hint.OriginalException) {
		return nil
	}
	return event
}

func expected(err error) bool {
	return errors.Is(err, dispatch.ErrJobRejected) || errors.Is(err, dispatch.ErrUnknownJob)
}

type sentryMonitor struct{}

func (s *sentryMonitor) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	if len(tags) == 0 {
		sentry.CaptureException(err)
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		if job, ok := tags["order_id"]; ok {
			scope.SetFingerprint([]string{"{{ default }}", job})
		}
		sentry.CaptureException(err)
	})
}

func (s *sentryMonitor) CapturePanic(v any) {
	sentry.CurrentHub().Recover(v)
}

func (s *sentryMonitor) Flush(timeout time.Duration) { sentry.Flush(timeout) }
