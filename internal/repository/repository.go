// Package repository implements Postgres persistence for the task
// management entities.
package repository

import (
	"context"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// searchPattern builds a case-insensitive ILIKE pattern for a search term.
func searchPattern(term string) string {
	return "%" + term + "%"
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

// listIDs returns every id in a table. The table name is always a
// compile-time literal.
func listIDs(ctx context.Context, db dbtx, table string) ([]string, error) {
	rows, err := db.Query(ctx, `SELECT id FROM `+table+` ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
