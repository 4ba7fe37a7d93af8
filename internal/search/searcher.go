// Package search implements dense, sparse and hybrid retrieval over the
// vector collection.
package search

import (
	"context"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/embedding"
	"github.com/taskorbit/taskchat/internal/vectorstore"
)

const (
	// VectorLimit caps dense results per query.
	VectorLimit = 10
	// BM25Limit caps sparse results per query.
	BM25Limit = 10
	// bm25Candidates bounds the scroll used to collect sparse candidates.
	bm25Candidates = 60

	bm25K1 = 1.2
	bm25B  = 0.75

	// RRFK dampens rank contributions in reciprocal rank fusion.
	RRFK = 60
)

// Searcher runs retrieval against the vector store.
type Searcher struct {
	embedder *embedding.Client
	store    vectorstore.Store
}

func NewSearcher(embedder *embedding.Client, store vectorstore.Store) *Searcher {
	return &Searcher{embedder: embedder, store: store}
}

// VectorSearch embeds the query and returns the nearest documents.
func (s *Searcher) VectorSearch(ctx context.Context, query string, filter *vectorstore.Filter) ([]domain.RetrievedDoc, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	hits, err := s.store.Search(ctx, vec, VectorLimit, filter)
	if err != nil {
		return nil, err
	}

	docs := make([]domain.RetrievedDoc, 0, len(hits))
	for _, h := range hits {
		docs = append(docs, domain.DocFromPayload(h.ID, h.Score, h.Payload))
	}
	return docs, nil
}

// BM25Search scores scrolled candidates with a simplified BM25 (no IDF)
// over the document text. Queries with no token longer than 2 chars
// return empty.
func (s *Searcher) BM25Search(ctx context.Context, query string, filter *vectorstore.Filter) ([]domain.RetrievedDoc, error) {
	terms := bm25Tokens(query)
	if len(terms) == 0 {
		return nil, nil
	}

	records, err := s.store.Scroll(ctx, filter, bm25Candidates)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	var totalLen int
	for _, r := range records {
		text, _ := r.Payload["text"].(string)
		totalLen += len(text)
	}
	avgdl := float64(totalLen) / float64(len(records))
	if avgdl == 0 {
		return nil, nil
	}

	var docs []domain.RetrievedDoc
	for _, r := range records {
		text, _ := r.Payload["text"].(string)
		score := bm25Score(strings.ToLower(text), terms, avgdl)
		if score == 0 {
			continue
		}
		docs = append(docs, domain.DocFromPayload(r.ID, score, r.Payload))
	}

	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	if len(docs) > BM25Limit {
		docs = docs[:BM25Limit]
	}
	return docs, nil
}

// bm25Tokens lowercases and splits on whitespace, dropping tokens of
// length <= 2.
func bm25Tokens(query string) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if len(tok) > 2 {
			out = append(out, tok)
		}
	}
	return out
}

// bm25Score computes the simplified per-document score, normalised by
// the number of query terms.
func bm25Score(text string, terms []string, avgdl float64) float64 {
	dl := float64(len(text))
	var sum float64
	for _, term := range terms {
		tf := float64(countOccurrences(text, term))
		if tf == 0 {
			continue
		}
		sum += tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*dl/avgdl))
	}
	return sum / float64(len(terms))
}

func countOccurrences(text, term string) int {
	re, err := regexp.Compile(regexp.QuoteMeta(term))
	if err != nil {
		return strings.Count(text, term)
	}
	return len(re.FindAllStringIndex(text, -1))
}

// RRF fuses ranked lists by summing 1/(k + rank + 1) per appearance,
// keyed by document id. Ties keep first-seen payloads.
func RRF(lists [][]domain.RetrievedDoc, k int) []domain.RetrievedDoc {
	type fused struct {
		doc   domain.RetrievedDoc
		score float64
		seen  int
	}
	byID := map[uint64]*fused{}
	order := 0

	for _, list := range lists {
		for rank, doc := range list {
			f, ok := byID[doc.ID]
			if !ok {
				f = &fused{doc: doc, seen: order}
				order++
				byID[doc.ID] = f
			}
			f.score += 1.0 / float64(k+rank+1)
		}
	}

	out := make([]*fused, 0, len(byID))
	for _, f := range byID {
		out = append(out, f)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].seen < out[j].seen
	})

	docs := make([]domain.RetrievedDoc, len(out))
	for i, f := range out {
		doc := f.doc
		doc.Score = f.score
		docs[i] = doc
	}
	return docs
}

// HybridSearch fans out per query, fusing dense and sparse results
// per query and then globally across queries.
func (s *Searcher) HybridSearch(ctx context.Context, queries []string, filter *vectorstore.Filter) ([]domain.RetrievedDoc, error) {
	perQuery := make([][]domain.RetrievedDoc, len(queries))

	var mu sync.Mutex
	var failed int
	var lastErr error
	legFailed := func(err error) {
		mu.Lock()
		failed++
		lastErr = err
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()

			var dense, sparse []domain.RetrievedDoc
			var inner sync.WaitGroup
			inner.Add(2)
			go func() {
				defer inner.Done()
				docs, err := s.VectorSearch(ctx, q, filter)
				if err != nil {
					log.Printf("search: vector search %q failed: %v", q, err)
					legFailed(err)
					return
				}
				dense = docs
			}()
			go func() {
				defer inner.Done()
				docs, err := s.BM25Search(ctx, q, filter)
				if err != nil {
					log.Printf("search: bm25 search %q failed: %v", q, err)
					legFailed(err)
					return
				}
				sparse = docs
			}()
			inner.Wait()

			perQuery[i] = RRF([][]domain.RetrievedDoc{dense, sparse}, RRFK)
		}(i, q)
	}
	wg.Wait()

	// Partial leg failures degrade gracefully, but when every leg of
	// every query failed there is no retrieval at all and the caller
	// must know.
	if len(queries) > 0 && failed == 2*len(queries) {
		return nil, domain.WrapError(domain.CodeUpstream, "hybrid search failed on all legs", lastErr)
	}

	return RRF(perQuery, RRFK), nil
}
