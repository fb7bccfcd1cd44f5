package badgerstore

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const (
	memoryLocation           = "memory"
	defaultSequenceBandwidth = 100
)

// backend is one open Badger database plus the sequence handing out page ids.
type backend struct {
	db      *badger.DB
	pageIDs *badger.Sequence
}

// badgerLoggerAdapter adapts logrus to the badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *logrus.Entry
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Debug(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Trace(strings.TrimSpace(fmt.Sprintf(msg, items...)))
}

// location turns a connection string into a directory, or "" for in-memory.
func location(connection string) (path string, inMemory bool, err error) {
	trimmed := strings.TrimSpace(connection)
	trimmed = strings.TrimPrefix(trimmed, "badger://")
	if trimmed == "" {
		return "", false, eris.New("badger connection string needs a directory or \"memory\"")
	}
	if trimmed == memoryLocation {
		return "", true, nil
	}
	return trimmed, false, nil
}

// openBackend opens the database named by connection. Directories are created
// when missing.
func openBackend(connection string, logger *logrus.Logger) (*backend, error) {
	path, inMemory, err := location(connection)
	if err != nil {
		return nil, err
	}

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(path)
		switch {
		case os.IsNotExist(err):
			if err := os.MkdirAll(path, 0o755); err != nil {
				return nil, eris.Wrapf(err, "creating badger directory %s", path)
			}
		case err != nil:
			return nil, eris.Wrapf(err, "inspecting badger directory %s", path)
		case !info.IsDir():
			return nil, eris.Errorf("%s is not a directory", path)
		}
		opts = badger.DefaultOptions(path)
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts.Logger = &badgerLoggerAdapter{logger: logger.WithField("component", "badger")}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, eris.Wrap(err, "opening badger database")
	}

	seq, err := db.GetSequence([]byte(pageIDSequenceKey), defaultSequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "acquiring page id sequence")
	}

	return &backend{db: db, pageIDs: seq}, nil
}

// close releases the sequence lease before closing the database.
func (b *backend) close() error {
	if b == nil {
		return nil
	}
	releaseErr := b.pageIDs.Release()
	if err := b.db.Close(); err != nil {
		return eris.Wrap(err, "closing badger database")
	}
	if releaseErr != nil {
		return eris.Wrap(releaseErr, "releasing page id sequence")
	}
	return nil
}

// nextPageID returns a page id greater than zero.
func (b *backend) nextPageID() (int, error) {
	next, err := b.pageIDs.Next()
	if err != nil {
		return 0, err
	}
	return int(next) + 1, nil
}

// freePageID draws sequence ids until one has no page stored under it, so
// pages saved with explicit ids are never overwritten by AddNewPage.
func (b *backend) freePageID() (int, error) {
	for {
		id, err := b.nextPageID()
		if err != nil {
			return 0, err
		}
		err = b.db.View(func(txn *badger.Txn) error {
			_, err := txn.Get(pageKey(id))
			return err
		})
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
			return id, nil
		case err != nil:
			return 0, err
		}
	}
}
