package indexer

import (
	"sync"

	"github.com/taskorbit/taskchat/internal/domain"
)

type staleEntry struct {
	kind domain.EntityKind
	id   string
}

// staleLog records entities whose last index attempt failed. Entries are
// deduplicated by kind and id.
type staleLog struct {
	mu      sync.Mutex
	entries map[staleEntry]struct{}
}

func newStaleLog() *staleLog {
	return &staleLog{entries: map[staleEntry]struct{}{}}
}

func (s *staleLog) add(kind domain.EntityKind, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[staleEntry{kind: kind, id: id}] = struct{}{}
}

// drain removes and returns all pending entries.
func (s *staleLog) drain() []staleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]staleEntry, 0, len(s.entries))
	for e := range s.entries {
		out = append(out, e)
	}
	s.entries = map[staleEntry]struct{}{}
	return out
}

func (s *staleLog) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
