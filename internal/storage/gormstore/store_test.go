package gormstore

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/domain"
	"roadwiki/app/internal/storage"
	"roadwiki/app/internal/storage/storetest"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func setupStore(t *testing.T) *Store {
	t.Helper()

	path := filepath.Join(t.TempDir(), "roadwiki.db")
	store, err := New(DialectSQLite, storage.StaticSettings{Connection: "sqlite://" + path, Database: DialectSQLite}, newTestLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close returned error: %v", err)
		}
	})

	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate returned error: %v", err)
	}

	return store
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) domain.Store {
		return setupStore(t)
	})
}

func TestNewRequiresSettings(t *testing.T) {
	t.Parallel()

	if _, err := New(DialectSQLite, nil, nil); err == nil {
		t.Fatalf("expected error when settings are nil")
	}
	if _, err := New("oracle", storage.StaticSettings{}, nil); err == nil {
		t.Fatalf("expected error for unsupported dialect")
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(Options{Dialect: DialectSQLite}); err == nil {
		t.Fatalf("expected error when DSN is empty")
	}
}

func TestSQLiteDSN(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"sqlite:///tmp/wiki.db": "file:/tmp/wiki.db?",
		"data/wiki.db":          "file:data/wiki.db?",
		"file:wiki.db?mode=ro":  "file:wiki.db?mode=ro",
	}
	for input, prefix := range cases {
		got := sqliteDSN(input, 2*time.Second)
		if !strings.HasPrefix(got, prefix) {
			t.Fatalf("sqliteDSN(%q) = %q, expected prefix %q", input, got, prefix)
		}
	}

	if got := sqliteDSN("wiki.db", 2*time.Second); !strings.Contains(got, "_busy_timeout=2000") {
		t.Fatalf("expected busy timeout in DSN, got %q", got)
	}
}

func TestRegisteredUnderRegistry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "registry.db")
	store, err := storage.Open(context.Background(), storage.StaticSettings{Connection: path, Database: "sqlite3"}, storage.Options{Logger: newTestLogger()})
	if err != nil {
		t.Fatalf("storage.Open returned error: %v", err)
	}
	defer store.Close()

	if store.Name() != DialectSQLite {
		t.Fatalf("expected sqlite backend, got %q", store.Name())
	}
	if err := store.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}
}

func TestUnreachableDatabaseIsStorageUnavailable(t *testing.T) {
	t.Parallel()

	missingDir := filepath.Join(t.TempDir(), "missing", "nested", "wiki.db")
	store, err := New(DialectSQLite, storage.StaticSettings{Connection: missingDir, Database: DialectSQLite}, newTestLogger())
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer store.Close()

	_, err = store.GetUserByUsername(context.Background(), "alice")
	if !domain.IsStorageUnavailable(err) {
		t.Fatalf("expected storage unavailable error, got %v", err)
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	if kind := classify(domain.ErrStorageUnavailable, errString("UNIQUE constraint failed: User.email")); kind != domain.ErrDuplicateKey {
		t.Fatalf("expected duplicate key, got %v", kind)
	}
	if kind := classify(domain.ErrStorageUnavailable, errString(`duplicate key value violates unique constraint "idx_user_email"`)); kind != domain.ErrDuplicateKey {
		t.Fatalf("expected duplicate key for postgres message, got %v", kind)
	}
	if kind := classify(domain.ErrStorageUnavailable, context.DeadlineExceeded); kind != domain.ErrStorageUnavailable {
		t.Fatalf("expected storage unavailable, got %v", kind)
	}
}

type errString string

func (e errString) Error() string { return string(e) }
