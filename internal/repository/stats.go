package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskorbit/taskchat/internal/domain"
)

// StatsRepository aggregates workspace-wide counts for the statistics
// and system overview documents.
type StatsRepository struct {
	db dbtx
}

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: pool}
}

func (r *StatsRepository) Counts(ctx context.Context) (*domain.Counts, error) {
	var c domain.Counts
	err := r.db.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM teams),
			(SELECT count(*) FROM projects),
			(SELECT count(*) FROM tasks),
			(SELECT count(*) FROM tasks WHERE status = 'todo'),
			(SELECT count(*) FROM tasks WHERE status = 'in_progress'),
			(SELECT count(*) FROM tasks WHERE status = 'done'),
			(SELECT count(*) FROM tasks WHERE deadline < now() AND status <> 'done')`,
	).Scan(&c.Users, &c.Teams, &c.Projects, &c.Tasks, &c.TasksTodo, &c.TasksActive, &c.TasksDone, &c.TasksOverdue)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
