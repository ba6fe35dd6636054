package rag

import (
	"context"
	"fmt"
)

// DefaultTopK is the number of nearest chunks retrieved per question when no
// explicit count is given.
const DefaultTopK = 5

// Retriever combines an Embedder and a VectorIndex: it embeds the query text
// at retrieval time and delegates the similarity search to the index.
type Retriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// index performs the vector similarity search.
	index VectorIndex

	// defaultTopK is the number of results to return when the caller passes 0.
	defaultTopK int
}

// NewRetriever constructs a Retriever from the given Embedder and VectorIndex.
// defaultTopK sets the fallback result count when Retrieve is called with
// topK=0; it defaults to 5.
func NewRetriever(embedder Embedder, index VectorIndex, defaultTopK int) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = DefaultTopK
	}
	return &Retriever{
		embedder:    embedder,
		index:       index,
		defaultTopK: defaultTopK,
	}, nil
}

// Retrieve embeds the query and returns the top-k nearest matches from the
// document's collection, ordered by ascending distance.
func (r *Retriever) Retrieve(ctx context.Context, documentID, query string, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = r.defaultTopK
	}

	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("rag: embedder returned empty result for query")
	}

	matches, err := r.index.Query(ctx, documentID, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	return matches, nil
}

// FilterBySimilarity drops matches whose similarity (1 - distance) falls below
// minSimilarity, preserving the input order. A threshold of 0 passes every
// non-anti-correlated match, which effectively disables filtering for the
// default configuration.
func FilterBySimilarity(matches []Match, minSimilarity float32) []Match {
	filtered := make([]Match, 0, len(matches))
	for _, m := range matches {
		if m.Similarity() >= minSimilarity {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
