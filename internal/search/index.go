// Package search keeps a vector index of wiki pages. Page text is embedded
// through an OpenAI-compatible endpoint and the vectors are stored in Badger.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/panjf2000/ants/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"roadwiki/app/internal/llm"
)

// MemoryPath opens the index in memory.
const MemoryPath = "memory"

const (
	entryPrefix  = "page/"
	defaultLimit = 10
)

// ErrDisabled is returned by searches when no index is configured.
var ErrDisabled = eris.New("search is not configured")

// Document is the searchable view of a page.
type Document struct {
	PageID int
	Title  string
	Tags   []string
	Text   string
}

// Result is one ranked hit.
type Result struct {
	PageID int     `json:"pageId"`
	Title  string  `json:"title"`
	Score  float32 `json:"score"`
}

// Indexer maintains and queries the page index.
type Indexer interface {
	Index(ctx context.Context, doc Document) error
	Remove(ctx context.Context, pageID int) error
	Search(ctx context.Context, query string, limit int) ([]Result, error)
	// Reindex replaces the index contents with docs.
	Reindex(ctx context.Context, docs []Document) error
	Clear(ctx context.Context) error
	Close() error
}

// Options configures Open.
type Options struct {
	Path     string
	Embedder llm.Embedder
	Logger   *logrus.Logger
	// Workers bounds concurrent embedding requests during Reindex.
	Workers int
}

type entry struct {
	PageID int       `json:"pageId"`
	Title  string    `json:"title"`
	Vector []float32 `json:"vector"`
}

// Index is the Badger-backed Indexer.
type Index struct {
	db       *badger.DB
	embedder llm.Embedder
	logger   *logrus.Logger
	workers  int
}

var _ Indexer = (*Index)(nil)

// Open opens or creates the index at opts.Path.
func Open(opts Options) (*Index, error) {
	if opts.Embedder == nil {
		return nil, eris.New("search embedder is required")
	}

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return nil, eris.New("search index path is required")
	}

	badgerOpts := badger.DefaultOptions(path)
	if path == MemoryPath {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, eris.Wrapf(err, "opening search index at %s", path)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = max(runtime.NumCPU()/2, 1)
	}

	return &Index{db: db, embedder: opts.Embedder, logger: opts.Logger, workers: workers}, nil
}

func entryKey(pageID int) []byte {
	return fmt.Appendf(nil, "%s%020d", entryPrefix, pageID)
}

// Index embeds the page and stores its vector, replacing any earlier entry.
func (i *Index) Index(ctx context.Context, doc Document) error {
	vector, err := i.embedder.EmbedPage(ctx, doc.Title, documentText(doc))
	if err != nil {
		return eris.Wrapf(err, "embedding page %d", doc.PageID)
	}

	raw, err := json.Marshal(entry{PageID: doc.PageID, Title: doc.Title, Vector: vector})
	if err != nil {
		return eris.Wrapf(err, "encoding index entry for page %d", doc.PageID)
	}

	err = i.db.Update(func(txn *badger.Txn) error {
		return txn.Set(entryKey(doc.PageID), raw)
	})
	return eris.Wrapf(err, "storing index entry for page %d", doc.PageID)
}

// Remove drops the page's entry. Removing an unindexed page is not an error.
func (i *Index) Remove(_ context.Context, pageID int) error {
	err := i.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(pageID))
	})
	return eris.Wrapf(err, "removing index entry for page %d", pageID)
}

// Search ranks every indexed page by dot product with the query vector.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = defaultLimit
	}

	vector, err := i.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "embedding query")
	}

	var results []Result
	err = i.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{PrefetchValues: true, Prefix: []byte(entryPrefix)})
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var stored entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return eris.Wrapf(err, "decoding index entry %s", it.Item().Key())
			}

			results = append(results, Result{
				PageID: stored.PageID,
				Title:  stored.Title,
				Score:  dotProduct(vector, stored.Vector),
			})
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "scanning search index")
	}

	slices.SortStableFunc(results, func(a, b Result) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return a.PageID - b.PageID
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Reindex clears the index and embeds docs concurrently. Every document is
// attempted; failures are joined into the returned error.
func (i *Index) Reindex(ctx context.Context, docs []Document) error {
	if err := i.Clear(ctx); err != nil {
		return err
	}

	pool, err := ants.NewPool(i.workers)
	if err != nil {
		return eris.Wrap(err, "creating reindex worker pool")
	}
	defer pool.Release()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, doc := range docs {
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := i.Index(ctx, doc); err != nil {
				record(err)
			}
		})
		if submitErr != nil {
			wg.Done()
			record(eris.Wrapf(submitErr, "scheduling page %d", doc.PageID))
		}
	}
	wg.Wait()

	if i.logger != nil {
		i.logger.WithFields(logrus.Fields{"pages": len(docs), "failures": len(errs)}).Info("search index rebuilt")
	}
	return errors.Join(errs...)
}

// Clear drops every entry and keeps the index open.
func (i *Index) Clear(context.Context) error {
	return eris.Wrap(i.db.DropPrefix([]byte(entryPrefix)), "clearing search index")
}

// Close closes the underlying Badger database.
func (i *Index) Close() error {
	return i.db.Close()
}

func documentText(doc Document) string {
	text := PlainText(doc.Text)
	if len(doc.Tags) > 0 {
		text += "\n\nTags: " + strings.Join(doc.Tags, ", ")
	}
	return text
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// Disabled is the Indexer used when no embedding endpoint is configured.
// Writes are accepted and dropped; searches fail with ErrDisabled.
type Disabled struct{}

var _ Indexer = Disabled{}

func (Disabled) Index(context.Context, Document) error { return nil }
func (Disabled) Remove(context.Context, int) error     { return nil }
func (Disabled) Search(context.Context, string, int) ([]Result, error) {
	return nil, ErrDisabled
}
func (Disabled) Reindex(context.Context, []Document) error { return nil }
func (Disabled) Clear(context.Context) error               { return nil }
func (Disabled) Close() error                              { return nil }
