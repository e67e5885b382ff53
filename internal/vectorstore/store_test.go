package vectorstore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubEmbedder maps known texts to fixed vectors so distances are exact.
type stubEmbedder struct {
	vectors map[string][]float64
	err     error
}

func (s stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, ok := s.vectors[t]
		if !ok {
			return nil, errors.New("unexpected text: " + t)
		}
		out[i] = v
	}
	return out, nil
}

// shortEmbedder returns fewer vectors than inputs.
type shortEmbedder struct{}

func (shortEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	return make([][]float64, len(texts)-1), nil
}

func testLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSeededStore(t *testing.T) *Store {
	t.Helper()
	embedder := stubEmbedder{vectors: map[string][]float64{
		"sales by region":   {1, 0},
		"quarterly revenue": {0, 1},
		"employee handbook": {10, 10},
		"regional sales":    {1, 0.1},
	}}
	store := New(embedder, testLog())
	err := store.Add(context.Background(), []Document{
		{Content: "sales by region", Metadata: map[string]string{"kind": "schema"}},
		{Content: "quarterly revenue"},
		{Content: "employee handbook"},
	})
	require.NoError(t, err)
	return store
}

func TestSearchOrdersByDistance(t *testing.T) {
	store := newSeededStore(t)

	results, err := store.Search(context.Background(), "regional sales", 3)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "sales by region", results[0].Document.Content)
	assert.Equal(t, "quarterly revenue", results[1].Document.Content)
	assert.Equal(t, "employee handbook", results[2].Document.Content)

	// distance to (1,0) is 0.1^2 = 0.01, similarity 1/(1+0.01)
	assert.InDelta(t, 0.01, results[0].Distance, 1e-9)
	assert.InDelta(t, 1/1.01, results[0].Similarity, 1e-9)
	assert.Equal(t, "schema", results[0].Document.Metadata["kind"])
}

func TestSearchTruncatesToK(t *testing.T) {
	store := newSeededStore(t)

	results, err := store.Search(context.Background(), "regional sales", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "sales by region", results[0].Document.Content)
}

func TestSearchDefaultsKToFive(t *testing.T) {
	store := newSeededStore(t)

	results, err := store.Search(context.Background(), "regional sales", 0)
	require.NoError(t, err)
	assert.Len(t, results, 3, "k defaults to five, capped at the index size")
}

func TestSearchEmptyStore(t *testing.T) {
	store := New(stubEmbedder{}, testLog())

	results, err := store.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchPropagatesEmbedderError(t *testing.T) {
	store := newSeededStore(t)
	store.embedder = stubEmbedder{err: errors.New("quota exceeded")}

	_, err := store.Search(context.Background(), "regional sales", 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestAddRejectsVectorCountMismatch(t *testing.T) {
	store := New(shortEmbedder{}, testLog())

	err := store.Add(context.Background(), []Document{{Content: "a"}, {Content: "b"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 vectors for 2 documents")
	assert.Zero(t, store.Len())
}

func TestAddNoDocumentsIsNoop(t *testing.T) {
	store := New(stubEmbedder{err: errors.New("must not be called")}, testLog())

	require.NoError(t, store.Add(context.Background(), nil))
	assert.Zero(t, store.Len())
}

func TestLenGrowsWithAdds(t *testing.T) {
	store := newSeededStore(t)
	assert.Equal(t, 3, store.Len())
}
