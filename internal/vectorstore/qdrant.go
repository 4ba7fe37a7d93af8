package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taskorbit/taskchat/internal/domain"
)

const (
	qdrantMaxRetries = 3
	qdrantRetryBase  = 250 * time.Millisecond

	hnswM                = 16
	hnswEfConstruct      = 100
	indexingThreshold    = 10000
	defaultQdrantTimeout = 30 * time.Second
)

// Qdrant is a vector store backed by the Qdrant REST API.
type Qdrant struct {
	baseURL    string
	apiKey     string
	collection string
	vectorSize int
	httpClient *http.Client
}

type QdrantConfig struct {
	BaseURL    string
	APIKey     string
	Collection string
	VectorSize int
	Timeout    time.Duration
}

func NewQdrant(cfg QdrantConfig) *Qdrant {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultQdrantTimeout
	}
	return &Qdrant{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// qdrantFilter renders a Filter into Qdrant's filter JSON.
func qdrantFilter(f *Filter) map[string]any {
	if f.Empty() {
		return nil
	}
	out := map[string]any{}
	render := func(conds []Condition) []map[string]any {
		clauses := make([]map[string]any, 0, len(conds))
		for _, c := range conds {
			clauses = append(clauses, map[string]any{
				"key":   c.Field,
				"match": map[string]any{"value": c.Value},
			})
		}
		return clauses
	}
	if len(f.Must) > 0 {
		out["must"] = render(f.Must)
	}
	if len(f.Should) > 0 {
		out["should"] = render(f.Should)
	}
	return out
}

func (q *Qdrant) CreateCollection(ctx context.Context) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     q.vectorSize,
			"distance": "Cosine",
		},
		"hnsw_config": map[string]any{
			"m":            hnswM,
			"ef_construct": hnswEfConstruct,
		},
		"optimizers_config": map[string]any{
			"indexing_threshold": indexingThreshold,
		},
	}
	return q.do(ctx, http.MethodPut, "/collections/"+q.collection, body, nil)
}

func (q *Qdrant) EnsurePayloadIndices(ctx context.Context) error {
	for _, field := range indexedFields {
		body := map[string]any{
			"field_name":   field.Name,
			"field_schema": field.Schema,
		}
		err := q.do(ctx, http.MethodPut, "/collections/"+q.collection+"/index", body, nil)
		if err != nil && domain.CodeOf(err) != domain.CodeConflict {
			return fmt.Errorf("index %s: %w", field.Name, err)
		}
	}
	return nil
}

func (q *Qdrant) Upsert(ctx context.Context, point Point) error {
	body := map[string]any{
		"points": []map[string]any{
			{
				"id":      point.ID,
				"vector":  point.Vector,
				"payload": point.Payload,
			},
		},
	}
	return q.do(ctx, http.MethodPut, "/collections/"+q.collection+"/points?wait=true", body, nil)
}

type qdrantSearchResult struct {
	Result []struct {
		ID      uint64         `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (q *Qdrant) Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]Hit, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := qdrantFilter(filter); f != nil {
		body["filter"] = f
	}

	var resp qdrantSearchResult
	if err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/search", body, &resp); err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{ID: r.ID, Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

type qdrantScrollResult struct {
	Result struct {
		Points []struct {
			ID      uint64         `json:"id"`
			Payload map[string]any `json:"payload"`
		} `json:"points"`
	} `json:"result"`
}

func (q *Qdrant) Scroll(ctx context.Context, filter *Filter, limit int) ([]Record, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if f := qdrantFilter(filter); f != nil {
		body["filter"] = f
	}

	var resp qdrantScrollResult
	if err := q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/scroll", body, &resp); err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(resp.Result.Points))
	for _, p := range resp.Result.Points {
		records = append(records, Record{ID: p.ID, Payload: p.Payload})
	}
	return records, nil
}

func (q *Qdrant) Delete(ctx context.Context, id uint64) error {
	body := map[string]any{
		"points": []uint64{id},
	}
	return q.do(ctx, http.MethodPost, "/collections/"+q.collection+"/points/delete?wait=true", body, nil)
}

func (q *Qdrant) DeleteCollection(ctx context.Context) error {
	return q.do(ctx, http.MethodDelete, "/collections/"+q.collection, nil, nil)
}

type qdrantCollectionResult struct {
	Result struct {
		Status      string `json:"status"`
		PointsCount int64  `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size int `json:"size"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

func (q *Qdrant) CollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	var resp qdrantCollectionResult
	if err := q.do(ctx, http.MethodGet, "/collections/"+q.collection, nil, &resp); err != nil {
		return nil, err
	}
	return &CollectionInfo{
		Name:        q.collection,
		PointsCount: resp.Result.PointsCount,
		VectorSize:  resp.Result.Config.Params.Vectors.Size,
		Status:      resp.Result.Status,
	}, nil
}

// do performs one REST call with retries. Network errors and 5xx responses
// are retried with exponential backoff; 4xx responses are not.
func (q *Qdrant) do(ctx context.Context, method, path string, body, dest any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < qdrantMaxRetries; attempt++ {
		if attempt > 0 {
			delay := qdrantRetryBase * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return domain.WrapError(domain.CodeTimeout, "vector store call cancelled", ctx.Err())
			case <-time.After(delay):
			}
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if q.apiKey != "" {
			req.Header.Set("api-key", q.apiKey)
		}

		resp, err := q.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}

		switch {
		case resp.StatusCode < 300:
			if dest != nil {
				if err := json.Unmarshal(raw, dest); err != nil {
					return domain.WrapError(domain.CodeUpstream, "malformed vector store response", err)
				}
			}
			return nil
		case resp.StatusCode == http.StatusConflict:
			return domain.NewError(domain.CodeConflict, "vector store conflict")
		case resp.StatusCode == http.StatusNotFound:
			return domain.NewError(domain.CodeNotFound, "collection or point not found")
		case resp.StatusCode < 500:
			return domain.NewError(domain.CodeValidation,
				fmt.Sprintf("vector store rejected request (%d): %s", resp.StatusCode, truncate(string(raw), 256)))
		default:
			lastErr = fmt.Errorf("vector store returned %d: %s", resp.StatusCode, truncate(string(raw), 256))
		}
	}
	return domain.WrapError(domain.CodeUpstream, "vector store unavailable", lastErr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Store = (*Qdrant)(nil)
