// Package vectorstore provides in-memory semantic search over text documents.
// It is an independent subsystem: the agent pipeline does not consult it.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/insightctl/retail-insights/internal/llm"
)

type Document struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type Result struct {
	Document   Document `json:"document"`
	Distance   float64  `json:"distance"`
	Similarity float64  `json:"similarity"`
}

// Store holds documents and their embeddings in a flat index searched by L2
// distance.
type Store struct {
	embedder llm.Embedder
	log      *slog.Logger

	mu      sync.RWMutex
	docs    []Document
	vectors [][]float64
}

func New(embedder llm.Embedder, log *slog.Logger) *Store {
	return &Store{embedder: embedder, log: log}
}

// Add embeds the documents and appends them to the index.
func (s *Store) Add(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed documents: %w", err)
	}
	if len(vectors) != len(docs) {
		return fmt.Errorf("embedder returned %d vectors for %d documents", len(vectors), len(docs))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = append(s.docs, docs...)
	s.vectors = append(s.vectors, vectors...)
	s.log.Info("documents added to vector store", "added", len(docs), "total", len(s.docs))
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Search embeds the query and returns the k closest documents with
// similarity 1/(1+distance).
func (s *Store) Search(ctx context.Context, query string, k int) ([]Result, error) {
	s.mu.RLock()
	empty := len(s.docs) == 0
	s.mu.RUnlock()
	if empty {
		s.log.Warn("no documents in vector store")
		return []Result{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	qv := vectors[0]

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]Result, 0, len(s.docs))
	for i, dv := range s.vectors {
		dist := l2Distance(qv, dv)
		results = append(results, Result{
			Document:   s.docs[i],
			Distance:   dist,
			Similarity: 1 / (1 + dist),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Distance < results[j].Distance })

	if k <= 0 {
		k = 5
	}
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

func l2Distance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var ss float64
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		ss += d * d
	}
	return ss
}
