package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskorbit/taskchat/internal/domain"
)

type TeamRepository struct {
	db dbtx
}

func NewTeamRepository(pool *pgxpool.Pool) *TeamRepository {
	return &TeamRepository{db: pool}
}

func NewTeamRepositoryWithTx(tx pgx.Tx) *TeamRepository {
	return &TeamRepository{db: tx}
}

const teamColumns = `id, name, owner_id, project_id, created_at, updated_at`

func scanTeam(row pgx.Row) (*domain.Team, error) {
	var t domain.Team
	err := row.Scan(&t.ID, &t.Name, &t.OwnerID, &t.ProjectID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTeamNotFound
		}
		return nil, err
	}
	return &t, nil
}

func scanTeamRows(rows pgx.Rows) ([]*domain.Team, error) {
	defer rows.Close()
	var teams []*domain.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

func (r *TeamRepository) Create(ctx context.Context, t *domain.Team) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO teams (id, name, owner_id, project_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, t.OwnerID, t.ProjectID, t.CreatedAt, t.UpdatedAt,
	)
	return err
}

func (r *TeamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	return scanTeam(r.db.QueryRow(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE id = $1`, id))
}

// GetByIDWithRelations loads the team plus its owner, project and members.
func (r *TeamRepository) GetByIDWithRelations(ctx context.Context, id string) (*domain.Team, error) {
	t, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	owner, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, t.OwnerID))
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}
	t.Owner = owner

	if t.ProjectID != nil {
		project, err := scanProject(r.db.QueryRow(ctx,
			`SELECT `+projectColumns+` FROM projects WHERE id = $1`, *t.ProjectID))
		if err != nil && !errors.Is(err, domain.ErrProjectNotFound) {
			return nil, err
		}
		t.Project = project
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE team_id = $1 ORDER BY name`, id)
	if err != nil {
		return nil, err
	}
	members, err := scanUserRows(rows)
	if err != nil {
		return nil, err
	}
	t.Members = make([]domain.User, len(members))
	for i, m := range members {
		t.Members[i] = *m
	}

	return t, nil
}

func (r *TeamRepository) Update(ctx context.Context, t *domain.Team) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE teams SET name = $2, owner_id = $3, project_id = $4, updated_at = $5 WHERE id = $1`,
		t.ID, t.Name, t.OwnerID, t.ProjectID, t.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

func (r *TeamRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM teams WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTeamNotFound
	}
	return nil
}

func (r *TeamRepository) List(ctx context.Context, page, limit int, search string) ([]*domain.Team, int, error) {
	var total int
	where := ``
	args := []any{}
	if search != "" {
		where = ` WHERE name ILIKE $1`
		args = append(args, searchPattern(search))
	}

	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM teams`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx,
		`SELECT `+teamColumns+` FROM teams`+where+
			` ORDER BY created_at DESC LIMIT `+placeholder(len(args)+1)+` OFFSET `+placeholder(len(args)+2),
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	teams, err := scanTeamRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return teams, total, nil
}

func (r *TeamRepository) ListAllIDs(ctx context.Context) ([]string, error) {
	return listIDs(ctx, r.db, "teams")
}
