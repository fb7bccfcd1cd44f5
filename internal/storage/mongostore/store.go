// Package mongostore implements domain.Store on MongoDB. Each entity lives in
// a collection named after its type; the client is resolved from a pool keyed
// by connection string on every operation.
package mongostore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/x/mongo/driver/connstring"

	"roadwiki/app/internal/domain"
	"roadwiki/app/internal/metrics"
	"roadwiki/app/internal/storage"
	"roadwiki/app/internal/storage/pool"
)

// Name is the registry name of this backend.
const Name = "mongodb"

// DefaultDatabase is used when the connection string names no database.
const DefaultDatabase = "roadwiki"

const connectTimeout = 10 * time.Second

func init() {
	storage.Register(Name, func(ctx context.Context, settings storage.Settings, opts storage.Options) (domain.Store, error) {
		store, err := New(settings, opts.Logger)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, err
		}
		return store, nil
	})
}

var errNilEntity = eris.New("entity is nil")

// Store persists wiki entities in MongoDB.
type Store struct {
	settings storage.Settings
	clients  *pool.Pool[*mongo.Client]
	logger   *logrus.Logger
}

var _ domain.Store = (*Store)(nil)

// New constructs a store. No connection is made until the first operation.
func New(settings storage.Settings, logger *logrus.Logger) (*Store, error) {
	if settings == nil {
		return nil, eris.New("storage settings are required")
	}

	return &Store{
		settings: settings,
		clients:  pool.New(connect, disconnect),
		logger:   logger,
	}, nil
}

func connect(ctx context.Context, uri string) (*mongo.Client, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, eris.New("mongodb connection string is required")
	}

	opts := options.Client().ApplyURI(uri).SetConnectTimeout(connectTimeout)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, eris.Wrap(err, "connecting to mongodb")
	}
	return client, nil
}

func disconnect(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// DatabaseFromURI returns the database named in the connection string path.
func DatabaseFromURI(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", eris.Wrap(err, "parsing mongodb connection string")
	}
	if cs.Database == "" {
		return DefaultDatabase, nil
	}
	return cs.Database, nil
}

// Name implements domain.Store.
func (s *Store) Name() string {
	return Name
}

// collection resolves client, database and collection for this operation.
func (s *Store) collection(ctx context.Context, op, name string) (*mongo.Collection, error) {
	db, err := s.database(ctx, op, name)
	if err != nil {
		return nil, err
	}
	return db.Collection(name), nil
}

func (s *Store) database(ctx context.Context, op, entity string) (*mongo.Database, error) {
	uri := s.settings.ConnectionString()
	dbName, err := DatabaseFromURI(uri)
	if err != nil {
		return nil, s.fail(op, entity, "", err)
	}

	client, err := s.clients.Get(ctx, uri)
	if err != nil {
		return nil, s.fail(op, entity, "", err)
	}
	return client.Database(dbName), nil
}

// Migrate creates the unique indexes backing username, email and page versions.
func (s *Store) Migrate(ctx context.Context) error {
	users, err := s.collection(ctx, "Migrate", domain.CollectionUsers)
	if err != nil {
		return err
	}
	_, err = users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: fieldUsername, Value: 1}}, Options: options.Index().SetUnique(true).SetName("ux_username")},
		{Keys: bson.D{{Key: fieldEmail, Value: 1}}, Options: options.Index().SetUnique(true).SetName("ux_email")},
		{Keys: bson.D{{Key: fieldActivationKey, Value: 1}}, Options: options.Index().SetName("ix_activation_key")},
	})
	if err != nil {
		return s.fail("Migrate", domain.CollectionUsers, "", err)
	}

	contents, err := s.collection(ctx, "Migrate", domain.CollectionPageContents)
	if err != nil {
		return err
	}
	_, err = contents.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldPageID, Value: 1}, {Key: fieldVersionNumber, Value: 1}},
		Options: options.Index().SetUnique(true).SetName("ux_page_version"),
	})
	if err != nil {
		return s.fail("Migrate", domain.CollectionPageContents, "", err)
	}

	pages, err := s.collection(ctx, "Migrate", domain.CollectionPages)
	if err != nil {
		return err
	}
	_, err = pages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: fieldTags, Value: 1}},
		Options: options.Index().SetName("ix_tags"),
	})
	if err != nil {
		return s.fail("Migrate", domain.CollectionPages, "", err)
	}

	return nil
}

// Ping checks the primary is reachable.
func (s *Store) Ping(ctx context.Context) error {
	db, err := s.database(ctx, "Ping", "database")
	if err != nil {
		return err
	}
	if err := db.Client().Ping(ctx, readpref.Primary()); err != nil {
		return s.fail("Ping", "database", "", err)
	}
	return nil
}

// Wipe drops every entity collection, then recreates the indexes. Page id
// counters are kept so ids are never reused.
func (s *Store) Wipe(ctx context.Context) error {
	var errs []error
	for _, name := range domain.Collections {
		coll, err := s.collection(ctx, "Wipe", name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := coll.Drop(ctx); err != nil {
			errs = append(errs, s.fail("Wipe", name, "", err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return s.Migrate(ctx)
}

// Close disconnects every pooled client.
func (s *Store) Close() error {
	return s.clients.Close()
}

// classify maps a driver error to a failure kind.
func classify(err error) error {
	switch {
	case mongo.IsDuplicateKeyError(err):
		return domain.ErrDuplicateKey
	case errors.Is(err, errPageMissing):
		return domain.ErrDataIntegrity
	case isDecodeError(err):
		return domain.ErrDataIntegrity
	case isRejectedCommand(err):
		return domain.ErrDataIntegrity
	default:
		// timeouts, network errors, server selection and configuration failures
		return domain.ErrStorageUnavailable
	}
}

// Server error codes that mean the node is stepping down or shutting down.
var transientCommandCodes = map[int32]bool{
	91:    true, // ShutdownInProgress
	189:   true, // PrimarySteppedDown
	10107: true, // NotWritablePrimary
	11600: true, // InterruptedAtShutdown
	11602: true, // InterruptedDueToReplStateChange
	13435: true, // NotPrimaryNoSecondaryOk
	13436: true, // NotPrimaryOrSecondary
}

// isRejectedCommand reports a server-side refusal of a well-delivered command,
// such as conflicting index options or a failed validator.
func isRejectedCommand(err error) bool {
	var cmdErr mongo.CommandError
	if !errors.As(err, &cmdErr) {
		return false
	}
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return false
	}
	if cmdErr.HasErrorLabel("RetryableWriteError") || cmdErr.HasErrorLabel("TransientTransactionError") {
		return false
	}
	return !transientCommandCodes[cmdErr.Code]
}

func isDecodeError(err error) bool {
	var decodeErr *decodeError
	return errors.As(err, &decodeErr)
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "decoding document: " + e.err.Error() }

func (e *decodeError) Unwrap() error { return e.err }

func (s *Store) fail(op, entity, key string, err error) error {
	var storageErr *domain.StorageError
	if errors.As(err, &storageErr) {
		return err
	}

	kind := classify(err)
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

// findAll decodes every document matching filter.
func findAll[D any](ctx context.Context, coll *mongo.Collection, filter bson.D, opts ...*options.FindOptions) ([]D, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []D{}
	if err := cursor.All(ctx, &docs); err != nil {
		if ctx.Err() != nil || mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
			return nil, err
		}
		return nil, &decodeError{err: err}
	}
	return docs, nil
}
