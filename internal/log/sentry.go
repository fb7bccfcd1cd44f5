package log

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrylogrus "github.com/getsentry/sentry-go/logrus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const sentryFlushTimeout = 2 * time.Second

// sentryLevels are the log levels forwarded to Sentry as events.
var sentryLevels = []logrus.Level{logrus.ErrorLevel, logrus.FatalLevel, logrus.PanicLevel}

// SentrySettings configures error reporting for a roadwiki process.
type SentrySettings struct {
	DSN            string
	Environment    string
	Release        string
	StorageBackend string
}

// InitSentry forwards roadwiki errors logged through logger to Sentry. Every
// event is tagged with the storage backend in use so failures can be split
// by database. An empty DSN disables reporting and returns a nil hub.
func InitSentry(logger *logrus.Logger, settings SentrySettings) (*sentry.Hub, func(), error) {
	if settings.DSN == "" {
		return nil, func() {}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         settings.DSN,
		Environment: settings.Environment,
		Release:     settings.Release,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "creating sentry client")
	}

	scope := sentry.NewScope()
	scope.SetTag("service", "roadwiki")
	if settings.StorageBackend != "" {
		scope.SetTag("storage_backend", settings.StorageBackend)
	}
	hub := sentry.NewHub(client, scope)

	logger.AddHook(sentrylogrus.NewLogHookFromClient(sentryLevels, client))

	return hub, func() { hub.Flush(sentryFlushTimeout) }, nil
}
