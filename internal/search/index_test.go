package search

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applog "roadwiki/app/internal/log"
)

// bagOfWordsEmbedder hashes words into a normalised vector so that texts
// sharing words score higher.
type bagOfWordsEmbedder struct {
	mu      sync.Mutex
	calls   int
	failFor string
}

const testDimensions = 64

func (e *bagOfWordsEmbedder) EmbedPage(_ context.Context, title, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.failFor != "" && title == e.failFor {
		return nil, errors.New("embedding endpoint unavailable")
	}
	return embedWords(title + " " + text), nil
}

func (e *bagOfWordsEmbedder) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	return embedWords(query), nil
}

func embedWords(text string) []float32 {
	vector := make([]float32, testDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(word, ".,:")))
		vector[h.Sum32()%testDimensions]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v * v)
	}
	if norm == 0 {
		return vector
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector
}

func openTestIndex(t *testing.T, embedder *bagOfWordsEmbedder) *Index {
	t.Helper()

	index, err := Open(Options{Path: MemoryPath, Embedder: embedder, Logger: applog.Discard(), Workers: 2})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func TestOpenValidatesOptions(t *testing.T) {
	t.Parallel()

	_, err := Open(Options{Path: MemoryPath})
	assert.Error(t, err)

	_, err = Open(Options{Path: " ", Embedder: &bagOfWordsEmbedder{}})
	assert.Error(t, err)
}

func TestSearchRanksByOverlap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	index := openTestIndex(t, &bagOfWordsEmbedder{})

	require.NoError(t, index.Index(ctx, Document{PageID: 1, Title: "Badger storage", Text: "<p>Badger is an embedded key value store.</p>"}))
	require.NoError(t, index.Index(ctx, Document{PageID: 2, Title: "Gardening", Text: "Tomatoes need sun and water."}))
	require.NoError(t, index.Index(ctx, Document{PageID: 3, Title: "Mongo storage", Text: "Documents live in collections.", Tags: []string{"database"}}))

	results, err := index.Search(ctx, "badger embedded store", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].PageID)
	assert.Equal(t, "Badger storage", results[0].Title)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestIndexReplacesAndRemoves(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	index := openTestIndex(t, &bagOfWordsEmbedder{})

	require.NoError(t, index.Index(ctx, Document{PageID: 7, Title: "Draft", Text: "first"}))
	require.NoError(t, index.Index(ctx, Document{PageID: 7, Title: "Final", Text: "second"}))

	results, err := index.Search(ctx, "final", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Final", results[0].Title)

	require.NoError(t, index.Remove(ctx, 7))
	require.NoError(t, index.Remove(ctx, 7))

	results, err = index.Search(ctx, "final", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestReindexReplacesContents(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	embedder := &bagOfWordsEmbedder{}
	index := openTestIndex(t, embedder)

	require.NoError(t, index.Index(ctx, Document{PageID: 99, Title: "Stale", Text: "old"}))

	docs := make([]Document, 0, 20)
	for id := 1; id <= 20; id++ {
		docs = append(docs, Document{PageID: id, Title: "Page", Text: "body"})
	}
	require.NoError(t, index.Reindex(ctx, docs))

	results, err := index.Search(ctx, "page body", 100)
	require.NoError(t, err)
	assert.Len(t, results, 20)
	for _, result := range results {
		assert.NotEqual(t, 99, result.PageID)
	}
	assert.Equal(t, 21, embedder.calls)
}

func TestReindexJoinsFailures(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	index := openTestIndex(t, &bagOfWordsEmbedder{failFor: "Broken"})

	err := index.Reindex(ctx, []Document{
		{PageID: 1, Title: "Fine", Text: "ok"},
		{PageID: 2, Title: "Broken", Text: "nope"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding page 2")

	results, err := index.Search(ctx, "fine", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, results[0].PageID)
}

func TestDisabledIndexer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var indexer Indexer = Disabled{}

	assert.NoError(t, indexer.Index(ctx, Document{PageID: 1, Title: "x"}))
	_, err := indexer.Search(ctx, "x", 1)
	assert.True(t, eris.Is(err, ErrDisabled))
}

func TestPlainTextStripsMarkup(t *testing.T) {
	t.Parallel()

	got := PlainText(`<h1>Title</h1><script>alert(1)</script><p>Some  <b>bold</b>
text</p><style>p{}</style><br/>end`)
	assert.Equal(t, "Title Some bold text end", got)

	assert.Equal(t, "plain words", PlainText("plain   words"))
}
