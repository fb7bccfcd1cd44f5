package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"roadwiki/app/internal/domain"
)

type namedStore struct {
	domain.Store
	name string
}

func (s namedStore) Name() string { return s.name }

func TestOpenSelectsBackendByAlias(t *testing.T) {
	Register("registry-test-mongodb", func(context.Context, Settings, Options) (domain.Store, error) {
		return namedStore{name: "registry-test-mongodb"}, nil
	})
	aliases["registry-test-mongo"] = "registry-test-mongodb"
	t.Cleanup(func() { delete(aliases, "registry-test-mongo") })

	store, err := Open(context.Background(), StaticSettings{Database: " Registry-Test-Mongo "}, Options{})
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	if store.Name() != "registry-test-mongodb" {
		t.Fatalf("expected aliased backend, got %q", store.Name())
	}
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), StaticSettings{Database: "cassandra"}, Options{})
	if err == nil || !strings.Contains(err.Error(), "unsupported database") {
		t.Fatalf("expected unsupported database error, got %v", err)
	}

	if _, err := Open(context.Background(), StaticSettings{}, Options{}); err == nil {
		t.Fatalf("expected error for empty database name")
	}
	if _, err := Open(context.Background(), nil, Options{}); err == nil {
		t.Fatalf("expected error for nil settings")
	}
}

func TestOpenWrapsOpenerFailure(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	Register("registry-test-failing", func(context.Context, Settings, Options) (domain.Store, error) {
		return nil, cause
	})

	_, err := Open(context.Background(), StaticSettings{Database: "registry-test-failing"}, Options{})
	if !errors.Is(err, cause) {
		t.Fatalf("expected opener error to be wrapped, got %v", err)
	}
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	t.Parallel()

	opener := func(context.Context, Settings, Options) (domain.Store, error) { return nil, nil }
	Register("registry-test-dup", opener)

	defer func() {
		if recover() == nil {
			t.Fatalf("expected duplicate registration to panic")
		}
	}()
	Register("REGISTRY-TEST-DUP", opener)
}
