package logger

import (
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

// InitSentry enables error reporting when dsn is set. The returned func
// flushes buffered events and is safe to call when reporting is disabled.
func InitSentry(dsn, env, release string) func() {
	if dsn == "" {
		return func() {}
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	})
	if err != nil {
		logrus.WithError(err).Warn("sentry disabled")
		return func() {}
	}
	logrus.WithField("env", env).Info("sentry enabled")
	return func() { sentry.Flush(2 * time.Second) }
}
