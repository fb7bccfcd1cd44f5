package log

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaultsToInfo(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("")
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestNewLoggerParsesLevelCaseInsensitively(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := NewLogger("chatty")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestNewLoggerWritesJSON(t *testing.T) {
	t.Parallel()

	logger, err := NewLogger("info")
	require.NoError(t, err)

	var buf bytes.Buffer
	logger.SetOutput(&buf)
	WithFields(logger, logrus.Fields{"entity": "User"}).Info("storage backend selected")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "User", line["entity"])
	assert.Equal(t, "storage backend selected", line["msg"])
}

func TestInitSentryWithoutDSNIsNoop(t *testing.T) {
	t.Parallel()

	logger := Discard()
	hub, flush, err := InitSentry(logger, SentrySettings{})
	require.NoError(t, err)
	assert.Nil(t, hub)
	require.NotNil(t, flush)
	flush()
	assert.Empty(t, logger.Hooks)
}

func TestInitSentryAddsHook(t *testing.T) {
	t.Parallel()

	logger := Discard()
	hub, flush, err := InitSentry(logger, SentrySettings{
		DSN:            "https://public@example.com/1",
		Environment:    "test",
		Release:        "roadwiki@test",
		StorageBackend: "badger",
	})
	require.NoError(t, err)
	require.NotNil(t, hub)
	defer flush()

	assert.NotEmpty(t, logger.Hooks[logrus.ErrorLevel])
	assert.Empty(t, logger.Hooks[logrus.WarnLevel])
}

func TestInitSentryTagsStorageBackend(t *testing.T) {
	t.Parallel()

	hub, flush, err := InitSentry(Discard(), SentrySettings{
		DSN:            "https://public@example.com/1",
		StorageBackend: "mongodb",
	})
	require.NoError(t, err)
	defer flush()

	event := hub.Scope().ApplyToEvent(sentry.NewEvent(), nil, hub.Client())
	require.NotNil(t, event)
	assert.Equal(t, "mongodb", event.Tags["storage_backend"])
	assert.Equal(t, "roadwiki", event.Tags["service"])
}

func TestInitSentryRejectsMalformedDSN(t *testing.T) {
	t.Parallel()

	_, _, err := InitSentry(Discard(), SentrySettings{DSN: "::not a dsn"})
	assert.Error(t, err)
}
