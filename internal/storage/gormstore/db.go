package gormstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialects understood by Open.
const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Options controls how the relational database connection is initialised.
type Options struct {
	Dialect      string
	DSN          string
	Logger       logger.Interface
	BusyTimeout  time.Duration
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxIdle  time.Duration
	ConnMaxLife  time.Duration
}

// Open establishes a Gorm connection for the configured dialect.
func Open(opts Options) (*gorm.DB, error) {
	if strings.TrimSpace(opts.DSN) == "" {
		return nil, eris.New("connection string is required")
	}

	if opts.BusyTimeout == 0 {
		opts.BusyTimeout = 5 * time.Second
	}

	gormLogger := opts.Logger
	if gormLogger == nil {
		gormLogger = logger.Default.LogMode(logger.Warn)
	}

	var dialector gorm.Dialector
	switch opts.Dialect {
	case DialectSQLite:
		dialector = sqlite.Open(sqliteDSN(opts.DSN, opts.BusyTimeout))
	case DialectPostgres:
		dialector = postgres.Open(opts.DSN)
	default:
		return nil, eris.Errorf("unsupported dialect %q", opts.Dialect)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, eris.Wrapf(err, "opening %s database", opts.Dialect)
	}

	if err := applyConnectionSettings(db, opts); err != nil {
		return nil, err
	}

	if opts.Dialect == DialectSQLite {
		if err := enforcePragmas(db, opts.BusyTimeout); err != nil {
			return nil, err
		}
	}

	return db, nil
}

// sqliteDSN accepts "sqlite://path", "file:path?..." or a bare path.
func sqliteDSN(raw string, busyTimeout time.Duration) string {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "file:") {
		return trimmed
	}

	path := strings.TrimPrefix(trimmed, "sqlite://")
	path = strings.TrimPrefix(path, "sqlite:")
	busyTimeoutMillis := busyTimeout / time.Millisecond
	return fmt.Sprintf("file:%s?_busy_timeout=%d&_foreign_keys=1&_journal_mode=WAL", path, busyTimeoutMillis)
}

func applyConnectionSettings(db *gorm.DB, opts Options) error {
	sqlDB, err := db.DB()
	if err != nil {
		return eris.Wrap(err, "retrieving sql.DB from gorm")
	}

	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}

	if opts.ConnMaxIdle > 0 {
		sqlDB.SetConnMaxIdleTime(opts.ConnMaxIdle)
	}

	if opts.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(opts.ConnMaxLife)
	}

	return nil
}

func enforcePragmas(db *gorm.DB, busyTimeout time.Duration) error {
	timeoutMillis := int(busyTimeout / time.Millisecond)

	if err := db.Exec("PRAGMA foreign_keys = ON;").Error; err != nil {
		return eris.Wrap(err, "enabling foreign keys pragma")
	}

	if err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d;", timeoutMillis)).Error; err != nil {
		return eris.Wrap(err, "configuring busy timeout pragma")
	}

	if err := db.Exec("PRAGMA journal_mode = WAL;").Error; err != nil {
		return eris.Wrap(err, "setting journal mode to WAL")
	}

	return nil
}

// Close releases the underlying database resources.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return eris.Wrap(err, "retrieving sql.DB for close")
	}

	if err := sqlDB.Close(); err != nil {
		return eris.Wrap(err, "closing database connection")
	}

	return nil
}
