// Package vectorstore defines the vector store contract used by the
// indexer and searcher, with two backends: the Qdrant REST API and a
// pgvector-backed Postgres table.
package vectorstore

import "context"

// Condition matches a payload field against an exact value. Nested fields
// use dot paths (e.g. "relationships.team_id").
type Condition struct {
	Field string
	Value any
}

// Filter combines equality conditions: Must entries are ANDed, Should
// entries are ORed. Both may be present; backends honour both
// simultaneously (must AND (should1 OR should2 ...)).
type Filter struct {
	Must   []Condition
	Should []Condition
}

// Empty reports whether the filter constrains nothing.
func (f *Filter) Empty() bool {
	return f == nil || (len(f.Must) == 0 && len(f.Should) == 0)
}

// Point is a document to upsert.
type Point struct {
	ID      uint64
	Vector  []float32
	Payload map[string]any
}

// Hit is a scored search result.
type Hit struct {
	ID      uint64
	Score   float64
	Payload map[string]any
}

// Record is a scrolled document; no vector is returned.
type Record struct {
	ID      uint64
	Payload map[string]any
}

// CollectionInfo summarises the collection state.
type CollectionInfo struct {
	Name        string
	PointsCount int64
	VectorSize  int
	Status      string
}

// Store is the vector store client interface.
type Store interface {
	CreateCollection(ctx context.Context) error
	EnsurePayloadIndices(ctx context.Context) error
	Upsert(ctx context.Context, point Point) error
	Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]Hit, error)
	Scroll(ctx context.Context, filter *Filter, limit int) ([]Record, error)
	Delete(ctx context.Context, id uint64) error
	DeleteCollection(ctx context.Context) error
	CollectionInfo(ctx context.Context) (*CollectionInfo, error)
}

// Payload fields indexed at collection creation.
var indexedFields = []struct {
	Name   string
	Schema string
}{
	{"entity_type", "keyword"},
	{"created_at", "datetime"},
	{"updated_at", "datetime"},
	{"relationships.team_id", "keyword"},
	{"relationships.project_id", "keyword"},
	{"relationships.assigned_to", "keyword"},
}
