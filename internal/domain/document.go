package domain

import "hash/fnv"

// Document payload entity types. The four entity kinds plus the two
// synthetic document types produced by the indexer.
const (
	DocTypeUser       = "user"
	DocTypeTeam       = "team"
	DocTypeProject    = "project"
	DocTypeTask       = "task"
	DocTypeSystemInfo = "system_info"
	DocTypeStatistics = "statistics"
)

// PointID derives the deterministic vector store point id for an entity.
// The same (kind, id) pair always maps to the same 32-bit id, so the store
// holds at most one document per entity.
func PointID(kind, id string) uint64 {
	h := fnv.New32a()
	h.Write([]byte(kind + "-" + id))
	return uint64(h.Sum32())
}

// RetrievedDoc is a search result returned by any retrieval producer.
// Score semantics vary by producer (cosine similarity, BM25 score or RRF
// score); callers must not mix scores from different producers except
// through RRF.
type RetrievedDoc struct {
	ID         uint64
	Score      float64
	Text       string
	EntityType string
	EntityID   string
	Metadata   map[string]any
}

// DocFromPayload converts a raw vector store payload into a RetrievedDoc.
func DocFromPayload(id uint64, score float64, payload map[string]any) RetrievedDoc {
	doc := RetrievedDoc{ID: id, Score: score}
	if s, ok := payload["text"].(string); ok {
		doc.Text = s
	}
	if s, ok := payload["entity_type"].(string); ok {
		doc.EntityType = s
	}
	if s, ok := payload["entity_id"].(string); ok {
		doc.EntityID = s
	}
	if m, ok := payload["metadata"].(map[string]any); ok {
		doc.Metadata = m
	}
	return doc
}
