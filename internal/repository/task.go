package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskorbit/taskchat/internal/domain"
)

type TaskRepository struct {
	db dbtx
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: pool}
}

func NewTaskRepositoryWithTx(tx pgx.Tx) *TaskRepository {
	return &TaskRepository{db: tx}
}

const taskColumns = `id, title, description, status, assigned_to, deadline, created_at, updated_at`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.AssignedTo, &t.Deadline, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanTaskRows(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO tasks (id, title, description, status, assigned_to, deadline, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.Title, t.Description, t.Status, t.AssignedTo, t.Deadline, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	return scanTask(r.db.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

// GetByIDWithRelations loads the task plus its assignee and the
// assignee's team and project.
func (r *TaskRepository) GetByIDWithRelations(ctx context.Context, id string) (*domain.Task, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.AssignedTo == nil {
		return t, nil
	}

	assignee, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, *t.AssignedTo))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return t, nil
		}
		return nil, err
	}

	if assignee.TeamID != nil {
		team, err := scanTeam(r.db.QueryRow(ctx,
			`SELECT `+teamColumns+` FROM teams WHERE id = $1`, *assignee.TeamID))
		if err != nil && !errors.Is(err, domain.ErrTeamNotFound) {
			return nil, err
		}
		if team != nil && team.ProjectID != nil {
			project, err := scanProject(r.db.QueryRow(ctx,
				`SELECT `+projectColumns+` FROM projects WHERE id = $1`, *team.ProjectID))
			if err != nil && !errors.Is(err, domain.ErrProjectNotFound) {
				return nil, err
			}
			team.Project = project
		}
		assignee.Team = team
	}

	t.Assignee = assignee
	return t, nil
}

func (r *TaskRepository) Update(ctx context.Context, t *domain.Task) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE tasks SET title = $2, description = $3, status = $4, assigned_to = $5, deadline = $6, updated_at = $7
		 WHERE id = $1`,
		t.ID, t.Title, t.Description, t.Status, t.AssignedTo, t.Deadline, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) List(ctx context.Context, page, limit int, search string) ([]*domain.Task, int, error) {
	var total int
	where := ``
	args := []any{}
	if search != "" {
		where = ` WHERE title ILIKE $1`
		args = append(args, searchPattern(search))
	}

	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM tasks`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks`+where+
			` ORDER BY created_at DESC LIMIT `+placeholder(len(args)+1)+` OFFSET `+placeholder(len(args)+2),
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	tasks, err := scanTaskRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func (r *TaskRepository) ListAllIDs(ctx context.Context) ([]string, error) {
	return listIDs(ctx, r.db, "tasks")
}
