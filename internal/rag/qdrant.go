package rag

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/askdoc/askdoc-go/internal/chunker"
)

// collectionPrefix prefixes every per-document collection name.
const collectionPrefix = "documents_"

// CollectionName returns the deterministic collection name for a document.
// One collection per document keeps retrieval isolated without cross-document
// filtering, though a document_id filter is still applied on every operation.
func CollectionName(documentID string) string {
	return collectionPrefix + documentID
}

// ChunkID returns the deterministic record identifier for a chunk. Retried
// upserts reuse the same id and therefore overwrite instead of duplicating.
func ChunkID(documentID string, chunkIndex int) string {
	return fmt.Sprintf("%s_%d", documentID, chunkIndex)
}

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// VectorSize is the dimensionality of the embeddings stored per collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantIndex implements VectorIndex backed by a Qdrant instance, one
// collection per document.
type QdrantIndex struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this index.
	cfg *QdrantConfig
}

// NewQdrantIndex creates a new QdrantIndex. Collections are created lazily on
// first upsert for each document, so construction only establishes the client.
func NewQdrantIndex(cfg *QdrantConfig) (*QdrantIndex, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	return &QdrantIndex{client: client, cfg: cfg}, nil
}

// Client exposes the underlying Qdrant client for health probes.
func (s *QdrantIndex) Client() *qdrant.Client {
	return s.client
}

// ensureCollection creates the document's collection if it does not exist.
func (s *QdrantIndex) ensureCollection(ctx context.Context, collection string) error {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", collection, err)
	}

	return nil
}

// pointID derives a stable Qdrant point UUID from the logical chunk id.
// Qdrant point ids must be numeric or UUID; hashing the logical id into a
// name-based UUID preserves the overwrite-on-retry semantics.
func pointID(chunkID string) *qdrant.PointId {
	return qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String())
}

// documentFilter restricts a read or delete to points whose document_id
// payload matches, even though collections are already per-document.
func documentFilter(documentID string) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("document_id", documentID),
		},
	}
}

// Upsert writes one record per chunk with its pre-computed embedding.
// The document's collection is created on first write.
func (s *QdrantIndex) Upsert(ctx context.Context, documentID string, chunks []chunker.Chunk, embeddings [][]float32, info DocumentInfo) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("qdrant: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if len(chunks) == 0 {
		return nil
	}

	collection := CollectionName(documentID)
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for i, chunk := range chunks {
		chunkID := ChunkID(documentID, chunk.Index)
		payload := map[string]interface{}{
			"chunk_id":    chunkID,
			"content":     chunk.Content,
			"document_id": documentID,
			"chunk_index": int64(chunk.Index),
			"filename":    info.Filename,
			"file_type":   info.FileType,
		}
		for k, v := range chunk.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      pointID(chunkID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}

	return nil
}

// Query performs a cosine similarity search in the document's collection and
// returns the top-k matches ordered by ascending distance. A missing
// collection yields an empty slice.
func (s *QdrantIndex) Query(ctx context.Context, documentID string, queryVector []float32, k int) ([]Match, error) {
	collection := CollectionName(documentID)

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, nil
	}

	limit := uint64(k)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(queryVector...),
		Filter:         documentFilter(documentID),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: search failed: %w", err)
	}

	matches := make([]Match, 0, len(results))
	for _, r := range results {
		m := payloadToMatch(r.Payload)
		// Qdrant reports cosine similarity; the pipeline works in distance.
		m.Distance = 1 - r.Score
		matches = append(matches, m)
	}

	return matches, nil
}

// GetAll fetches up to limit records for the document, then sorts them by
// chunk_index — the underlying scroll gives no ordering guarantee.
func (s *QdrantIndex) GetAll(ctx context.Context, documentID string, limit int) ([]Record, error) {
	collection := CollectionName(documentID)

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, nil
	}

	scrollLimit := uint32(limit)
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter:         documentFilter(documentID),
		Limit:          &scrollLimit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: scroll failed: %w", err)
	}

	records := make([]Record, 0, len(points))
	for _, p := range points {
		m := payloadToMatch(p.Payload)
		records = append(records, Record{
			ChunkID:  m.ChunkID,
			Content:  m.Content,
			Metadata: m.Metadata,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Metadata.ChunkIndex < records[j].Metadata.ChunkIndex
	})

	return records, nil
}

// Delete removes every record for the document. A missing collection or an
// already-deleted document is not an error.
func (s *QdrantIndex) Delete(ctx context.Context, documentID string) error {
	collection := CollectionName(documentID)

	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		return nil
	}

	_, err = s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points:         qdrant.NewPointsSelectorFilter(documentFilter(documentID)),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}

	// The emptied collection itself is dropped too — best effort; the
	// records are already gone.
	if err := s.client.DeleteCollection(ctx, collection); err != nil {
		return fmt.Errorf("qdrant: drop collection %q: %w", collection, err)
	}

	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (s *QdrantIndex) Close() error {
	return s.client.Close()
}

// payloadToMatch decodes a Qdrant payload map into a Match, separating the
// reserved core fields from the open extension map.
func payloadToMatch(payload map[string]*qdrant.Value) Match {
	var m Match
	if payload == nil {
		return m
	}

	if v, ok := payload["chunk_id"]; ok {
		m.ChunkID = v.GetStringValue()
	}
	if v, ok := payload["content"]; ok {
		m.Content = v.GetStringValue()
	}
	if v, ok := payload["document_id"]; ok {
		m.Metadata.DocumentID = v.GetStringValue()
	}
	if v, ok := payload["chunk_index"]; ok {
		m.Metadata.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload["filename"]; ok {
		m.Metadata.Filename = v.GetStringValue()
	}
	if v, ok := payload["file_type"]; ok {
		m.Metadata.FileType = v.GetStringValue()
	}

	for k, v := range payload {
		if isCoreField(k) {
			continue
		}
		if m.Metadata.Extra == nil {
			m.Metadata.Extra = make(map[string]string)
		}
		m.Metadata.Extra[k] = v.GetStringValue()
	}

	return m
}

// isCoreField reports whether a payload key belongs to the reserved core set.
func isCoreField(key string) bool {
	switch key {
	case "chunk_id", "content", "document_id", "chunk_index", "filename", "file_type":
		return true
	}
	return false
}

// ParseChunkID splits a record identifier back into its document id and chunk
// index. Returns an error for identifiers that do not match the
// "<document_id>_<chunk_index>" shape.
func ParseChunkID(chunkID string) (documentID string, chunkIndex int, err error) {
	i := strings.LastIndex(chunkID, "_")
	if i <= 0 || i == len(chunkID)-1 {
		return "", 0, fmt.Errorf("rag: malformed chunk id %q", chunkID)
	}
	var idx int
	if _, err := fmt.Sscanf(chunkID[i+1:], "%d", &idx); err != nil {
		return "", 0, fmt.Errorf("rag: malformed chunk id %q: %w", chunkID, err)
	}
	return chunkID[:i], idx, nil
}
