package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/taskorbit/taskchat/internal/domain"
)

// PGVector is a vector store backed by a Postgres table with a pgvector
// embedding column and a jsonb payload column. Filters compile to SQL, so
// combined must/should semantics are honoured natively.
type PGVector struct {
	pool       *pgxpool.Pool
	table      string
	vectorSize int
}

var tableNameRe = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

func NewPGVector(pool *pgxpool.Pool, collection string, vectorSize int) (*PGVector, error) {
	if !tableNameRe.MatchString(collection) {
		return nil, domain.NewError(domain.CodeValidation, "collection name must be a valid identifier")
	}
	return &PGVector{pool: pool, table: collection, vectorSize: vectorSize}, nil
}

func (p *PGVector) CreateCollection(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			point_id BIGINT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			indexed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, p.table, p.vectorSize),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
			USING hnsw (embedding vector_cosine_ops) WITH (m = %d, ef_construction = %d)`,
			p.table, p.table, hnswM, hnswEfConstruct),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create collection %s: %w", p.table, err)
		}
	}
	return nil
}

func (p *PGVector) EnsurePayloadIndices(ctx context.Context) error {
	for _, field := range indexedFields {
		name := strings.ReplaceAll(field.Name, ".", "_")
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s ((payload #>> '%s'))`,
			p.table, name, p.table, jsonPath(field.Name))
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("index %s: %w", field.Name, err)
		}
	}
	return nil
}

// jsonPath renders a dotted field name as a jsonb text path literal.
func jsonPath(field string) string {
	return "{" + strings.Join(strings.Split(field, "."), ",") + "}"
}

// filterSQL compiles a Filter into a WHERE fragment and its arguments.
// Argument placeholders start at $startIdx.
func filterSQL(f *Filter, startIdx int) (string, []any) {
	if f.Empty() {
		return "", nil
	}

	var args []any
	cond := func(c Condition) string {
		args = append(args, fmt.Sprintf("%v", c.Value))
		return fmt.Sprintf("payload #>> '%s' = $%d", jsonPath(c.Field), startIdx+len(args)-1)
	}

	var groups []string
	if len(f.Must) > 0 {
		clauses := make([]string, 0, len(f.Must))
		for _, c := range f.Must {
			clauses = append(clauses, cond(c))
		}
		groups = append(groups, "("+strings.Join(clauses, " AND ")+")")
	}
	if len(f.Should) > 0 {
		clauses := make([]string, 0, len(f.Should))
		for _, c := range f.Should {
			clauses = append(clauses, cond(c))
		}
		groups = append(groups, "("+strings.Join(clauses, " OR ")+")")
	}
	return strings.Join(groups, " AND "), args
}

func (p *PGVector) Upsert(ctx context.Context, point Point) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (point_id, embedding, payload, indexed_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (point_id)
		DO UPDATE SET embedding = EXCLUDED.embedding, payload = EXCLUDED.payload, indexed_at = now()`,
		p.table),
		int64(point.ID), pgvector.NewVector(point.Vector), point.Payload,
	)
	if err != nil {
		return domain.WrapError(domain.CodeUpstream, "upsert failed", err)
	}
	return nil
}

func (p *PGVector) Search(ctx context.Context, vector []float32, limit int, filter *Filter) ([]Hit, error) {
	where, args := filterSQL(filter, 2)
	query := fmt.Sprintf(`SELECT point_id, 1 - (embedding <=> $1) AS score, payload FROM %s`, p.table)
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" ORDER BY embedding <=> $1 LIMIT %d", limit)

	queryArgs := append([]any{pgvector.NewVector(vector)}, args...)
	rows, err := p.pool.Query(ctx, query, queryArgs...)
	if err != nil {
		return nil, domain.WrapError(domain.CodeUpstream, "search failed", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var (
			id      int64
			score   float64
			payload map[string]any
		)
		if err := rows.Scan(&id, &score, &payload); err != nil {
			return nil, err
		}
		hits = append(hits, Hit{ID: uint64(id), Score: score, Payload: payload})
	}
	return hits, rows.Err()
}

func (p *PGVector) Scroll(ctx context.Context, filter *Filter, limit int) ([]Record, error) {
	where, args := filterSQL(filter, 1)
	query := fmt.Sprintf(`SELECT point_id, payload FROM %s`, p.table)
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" ORDER BY point_id LIMIT %d", limit)

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapError(domain.CodeUpstream, "scroll failed", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			id      int64
			payload map[string]any
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, err
		}
		records = append(records, Record{ID: uint64(id), Payload: payload})
	}
	return records, rows.Err()
}

func (p *PGVector) Delete(ctx context.Context, id uint64) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE point_id = $1`, p.table), int64(id))
	if err != nil {
		return domain.WrapError(domain.CodeUpstream, "delete failed", err)
	}
	return nil
}

func (p *PGVector) DeleteCollection(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, p.table))
	if err != nil {
		return domain.WrapError(domain.CodeUpstream, "drop collection failed", err)
	}
	return nil
}

func (p *PGVector) CollectionInfo(ctx context.Context) (*CollectionInfo, error) {
	var count int64
	err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, p.table)).Scan(&count)
	if err != nil {
		if strings.Contains(err.Error(), "does not exist") {
			return nil, domain.NewError(domain.CodeNotFound, "collection does not exist")
		}
		return nil, domain.WrapError(domain.CodeUpstream, "collection info failed", err)
	}
	return &CollectionInfo{
		Name:        p.table,
		PointsCount: count,
		VectorSize:  p.vectorSize,
		Status:      "green",
	}, nil
}

var _ Store = (*PGVector)(nil)
