// Package storage selects and opens the repository backend named by the
// application settings. Backends register themselves from their own packages.
package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/domain"
)

// Settings supplies the connection descriptor consumed by a backend. The
// connection string format is backend specific and opaque to this package.
type Settings interface {
	ConnectionString() string
	DatabaseName() string
}

// StaticSettings is a fixed Settings value.
type StaticSettings struct {
	Connection string
	Database   string
}

// ConnectionString implements Settings.
func (s StaticSettings) ConnectionString() string { return s.Connection }

// DatabaseName implements Settings.
func (s StaticSettings) DatabaseName() string { return s.Database }

// Options carries the ambient dependencies handed to every backend.
type Options struct {
	Logger *logrus.Logger
}

// Opener constructs a store for the given settings.
type Opener func(ctx context.Context, settings Settings, opts Options) (domain.Store, error)

var (
	registryMu sync.RWMutex
	openers    = make(map[string]Opener)
	aliases    = map[string]string{
		"mongo":      "mongodb",
		"sqlite3":    "sqlite",
		"pg":         "postgres",
		"postgresql": "postgres",
	}
)

// Register makes a backend available under name. It panics on duplicates.
func Register(name string, opener Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()

	key := canonicalName(name)
	if _, exists := openers[key]; exists {
		panic("storage: backend " + key + " already registered")
	}
	openers[key] = opener
}

// Backends lists the registered backend names.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the store selected by settings.DatabaseName. It is meant to be
// called once at startup.
func Open(ctx context.Context, settings Settings, opts Options) (domain.Store, error) {
	if settings == nil {
		return nil, eris.New("storage settings are required")
	}

	name := canonicalName(settings.DatabaseName())
	if name == "" {
		return nil, eris.New("database name is required")
	}

	registryMu.RLock()
	opener, ok := openers[name]
	registryMu.RUnlock()
	if !ok {
		return nil, eris.Errorf("unsupported database %q (registered: %s)", settings.DatabaseName(), strings.Join(Backends(), ", "))
	}

	store, err := opener(ctx, settings, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "opening %s store", name)
	}

	if opts.Logger != nil {
		opts.Logger.WithField("backend", store.Name()).Info("storage backend selected")
	}

	return store, nil
}

func canonicalName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		return alias
	}
	return key
}
