// Package logging configures logrus and forwards errors to Sentry when a DSN
// is configured.
package logging

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/yukikurage/tasko/internal/config"
)

var sentryEnabled bool

// Setup applies the log level and format and initialises Sentry.
func Setup(cfg *config.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.SentryDSN == "" {
		return nil
	}

	env := "development"
	if cfg.IsProduction() {
		env = "production"
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: env,
	}); err != nil {
		return fmt.Errorf("failed to initialise sentry: %w", err)
	}
	sentryEnabled = true
	return nil
}

// Flush waits for buffered Sentry events to be sent.
func Flush() {
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}

// LogError logs an error with structured context and reports it to Sentry.
func LogError(errorType string, err error, fields logrus.Fields) {
	entry := logrus.WithFields(logrus.Fields{
		"error_type": errorType,
		"error":      err.Error(),
	}).WithFields(fields)

	entry.Error("Error occurred")

	if !sentryEnabled {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("error_type", errorType)
		for k, v := range fields {
			scope.SetExtra(k, v)
		}
		sentry.CaptureException(err)
	})
}

// LogEvent logs a domain event and records it as a Sentry breadcrumb.
func LogEvent(eventType string, data logrus.Fields) {
	logrus.WithField("event_type", eventType).WithFields(data).Info("Event occurred")

	if !sentryEnabled {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Type:      "info",
		Category:  eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
}
