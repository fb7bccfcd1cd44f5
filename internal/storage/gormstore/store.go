// Package gormstore implements domain.Store on a relational database through
// Gorm. SQLite and Postgres are supported.
package gormstore

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"roadwiki/app/internal/domain"
	"roadwiki/app/internal/metrics"
	"roadwiki/app/internal/storage"
	"roadwiki/app/internal/storage/pool"
)

func init() {
	storage.Register(DialectSQLite, opener(DialectSQLite))
	storage.Register(DialectPostgres, opener(DialectPostgres))
}

func opener(dialect string) storage.Opener {
	return func(ctx context.Context, settings storage.Settings, opts storage.Options) (domain.Store, error) {
		store, err := New(dialect, settings, opts.Logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	}
}

var errNilEntity = eris.New("entity is nil")

// Store persists wiki entities in relational tables.
type Store struct {
	dialect  string
	settings storage.Settings
	conns    *pool.Pool[*gorm.DB]
	logger   *logrus.Logger
}

var _ domain.Store = (*Store)(nil)

// New constructs a store. No connection is made until the first operation.
func New(dialect string, settings storage.Settings, logger *logrus.Logger) (*Store, error) {
	if settings == nil {
		return nil, eris.New("storage settings are required")
	}
	if dialect != DialectSQLite && dialect != DialectPostgres {
		return nil, eris.Errorf("unsupported dialect %q", dialect)
	}

	open := func(_ context.Context, dsn string) (*gorm.DB, error) {
		opts := Options{Dialect: dialect, DSN: dsn}
		if dialect == DialectSQLite {
			opts.MaxOpenConns = 1
		}
		return Open(opts)
	}

	return &Store{
		dialect:  dialect,
		settings: settings,
		conns:    pool.New(open, Close),
		logger:   logger,
	}, nil
}

// Name implements domain.Store.
func (s *Store) Name() string {
	return s.dialect
}

// db resolves the connection for the current connection string.
func (s *Store) db(ctx context.Context, op, entity string) (*gorm.DB, error) {
	conn, err := s.conns.Get(ctx, s.settings.ConnectionString())
	if err != nil {
		return nil, s.fail(domain.ErrStorageUnavailable, op, entity, "", err)
	}
	return conn.WithContext(ctx), nil
}

// Migrate creates the tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	db, err := s.db(ctx, "Migrate", "schema")
	if err != nil {
		return err
	}

	logFields := logrus.Fields{"component": "gormstore.migrate", "dialect": s.dialect}
	if s.logger != nil {
		s.logger.WithFields(logFields).Debug("applying schema")
	}

	if err := db.AutoMigrate(models()...); err != nil {
		return s.fail(domain.ErrStorageUnavailable, "Migrate", "schema", "", err)
	}

	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.db(ctx, "Ping", "database")
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return s.fail(domain.ErrStorageUnavailable, "Ping", "database", "", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return s.fail(domain.ErrStorageUnavailable, "Ping", "database", "", err)
	}
	return nil
}

// Wipe drops every table, then recreates the empty schema.
func (s *Store) Wipe(ctx context.Context) error {
	db, err := s.db(ctx, "Wipe", "schema")
	if err != nil {
		return err
	}

	var errs []error
	for _, table := range domain.Collections {
		if err := db.Migrator().DropTable(table); err != nil {
			errs = append(errs, s.fail(domain.ErrStorageUnavailable, "Wipe", table, "", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return s.Migrate(ctx)
}

// Close releases every pooled connection.
func (s *Store) Close() error {
	return s.conns.Close()
}

func (s *Store) fail(kind error, op, entity, key string, err error) error {
	kind = classify(kind, err)
	metrics.ObserveStorageError(kind)
	s.logError(logrus.Fields{"op": op, "entity": entity, "key": key}, err, "storage operation failed")
	return domain.NewStorageError(kind, op, entity, key, err)
}

// classify refines the fallback kind from the driver error.
func classify(fallback, err error) error {
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey), isUniqueViolation(err):
		return domain.ErrDuplicateKey
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return domain.ErrDataIntegrity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return domain.ErrStorageUnavailable
	default:
		return fallback
	}
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

func (s *Store) logError(fields logrus.Fields, err error, message string) {
	if s.logger == nil {
		return
	}

	entry := s.logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
