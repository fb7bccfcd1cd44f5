// Package badgerstore implements domain.Store as an embedded document store on
// BadgerDB. Every entity is a JSON document keyed by collection and id.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/domain"
	"roadwiki/app/internal/metrics"
	"roadwiki/app/internal/storage"
	"roadwiki/app/internal/storage/pool"
)

// Name is the registry name of this backend.
const Name = "badger"

func init() {
	storage.Register(Name, func(ctx context.Context, settings storage.Settings, opts storage.Options) (domain.Store, error) {
		store, err := New(settings, opts.Logger)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	})
}

var (
	errNilEntity    = eris.New("entity is nil")
	errIndexOwned   = eris.New("unique index value belongs to another document")
	errPageMissing  = eris.New("page does not exist")
	errPageIDTaken  = eris.New("page id already in use")
	errVersionTaken = eris.New("page version already exists")
)

// Store persists wiki entities in BadgerDB.
type Store struct {
	settings storage.Settings
	backends *pool.Pool[*backend]
	logger   *logrus.Logger
}

var _ domain.Store = (*Store)(nil)

// New constructs a store. The database is opened on first use.
func New(settings storage.Settings, logger *logrus.Logger) (*Store, error) {
	if settings == nil {
		return nil, eris.New("storage settings are required")
	}
	if _, _, err := location(settings.ConnectionString()); err != nil {
		return nil, err
	}

	open := func(_ context.Context, connection string) (*backend, error) {
		return openBackend(connection, logger)
	}

	return &Store{
		settings: settings,
		backends: pool.New(open, func(b *backend) error { return b.close() }),
		logger:   logger,
	}, nil
}

// Name implements domain.Store.
func (s *Store) Name() string {
	return Name
}

// backend resolves the database for the current connection string.
func (s *Store) backend(ctx context.Context, op, entity string) (*backend, error) {
	if err := ctx.Err(); err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, op, entity, "", err)
	}
	b, err := s.backends.Get(ctx, s.settings.ConnectionString())
	if err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, op, entity, "", err)
	}
	return b, nil
}

func (s *Store) view(ctx context.Context, op, entity, key string, fn func(txn *badger.Txn) error) error {
	b, err := s.backend(ctx, op, entity)
	if err != nil {
		return err
	}
	if err := b.db.View(fn); err != nil {
		return s.fail(domain.ErrStorageUnavailable, op, entity, key, err)
	}
	return nil
}

func (s *Store) update(ctx context.Context, op, entity, key string, fn func(txn *badger.Txn) error) error {
	b, err := s.backend(ctx, op, entity)
	if err != nil {
		return err
	}
	if err := b.db.Update(fn); err != nil {
		return s.fail(domain.ErrStorageUnavailable, op, entity, key, err)
	}
	return nil
}

// Migrate is a no-op: Badger needs no schema and indexes are maintained on write.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.backend(ctx, "Migrate", "schema")
	return err
}

// Ping opens the database if needed and checks it is not closed.
func (s *Store) Ping(ctx context.Context) error {
	b, err := s.backend(ctx, "Ping", "database")
	if err != nil {
		return err
	}
	if b.db.IsClosed() {
		return s.fail(domain.ErrStorageUnavailable, "Ping", "database", "", badger.ErrDBClosed)
	}
	return nil
}

// Wipe drops the documents and indexes of every collection.
func (s *Store) Wipe(ctx context.Context) error {
	b, err := s.backend(ctx, "Wipe", "schema")
	if err != nil {
		return err
	}

	var errs []error
	for _, collection := range domain.Collections {
		if err := b.db.DropPrefix(documentPrefix(collection), indexPrefix(collection)); err != nil {
			errs = append(errs, s.fail(domain.ErrStorageUnavailable, "Wipe", collection, "", err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every open database.
func (s *Store) Close() error {
	return s.backends.Close()
}

func (s *Store) fail(kind error, op, entity, key string, err error) error {
	var storageErr *domain.StorageError
	if errors.As(err, &storageErr) {
		return err
	}

	switch {
	case errors.Is(err, errIndexOwned), errors.Is(err, errVersionTaken), errors.Is(err, errPageIDTaken):
		kind = domain.ErrDuplicateKey
	case errors.Is(err, errPageMissing):
		kind = domain.ErrDataIntegrity
	case errors.Is(err, badger.ErrConflict):
		kind = domain.ErrStorageUnavailable
	}

	metrics.ObserveStorageError(kind)
	if s.logger != nil {
		s.logger.WithFields(logrus.Fields{
			"op":     op,
			"entity": entity,
			"key":    key,
			"error":  err.Error(),
		}).Error("storage operation failed")
	}
	return domain.NewStorageError(kind, op, entity, key, err)
}

// getDocument decodes the document at key into dst. found is false when absent.
func getDocument(txn *badger.Txn, key []byte, dst any) (bool, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	err = item.Value(func(val []byte) error {
		return decode(key, val, dst)
	})
	return err == nil, err
}

func putDocument(txn *badger.Txn, key []byte, doc any) error {
	payload, err := json.Marshal(doc)
	if err != nil {
		return eris.Wrapf(err, "encoding %s", key)
	}
	return txn.Set(key, payload)
}

// scanDocuments decodes every document under prefix, in key order.
func scanDocuments[T any](txn *badger.Txn, prefix []byte, keep func(*T) bool) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := txn.NewIterator(opts)
	defer iter.Close()

	var results []T
	for iter.Rewind(); iter.Valid(); iter.Next() {
		item := iter.Item()
		var doc T
		if err := item.Value(func(val []byte) error {
			return decode(item.Key(), val, &doc)
		}); err != nil {
			return nil, err
		}
		if keep == nil || keep(&doc) {
			results = append(results, doc)
		}
	}
	return results, nil
}

// scanKeys returns the values stored under prefix, used by index lookups.
func scanKeys(txn *badger.Txn, prefix []byte) ([][]byte, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := txn.NewIterator(opts)
	defer iter.Close()

	var values [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		value, err := iter.Item().ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func decode(key, val []byte, dst any) error {
	if err := json.Unmarshal(val, dst); err != nil {
		return domain.NewStorageError(domain.ErrDataIntegrity, "decode", "document", string(key), err)
	}
	return nil
}
