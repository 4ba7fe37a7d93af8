package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskorbit/taskchat/internal/domain"
)

type ProjectRepository struct {
	db dbtx
}

func NewProjectRepository(pool *pgxpool.Pool) *ProjectRepository {
	return &ProjectRepository{db: pool}
}

func NewProjectRepositoryWithTx(tx pgx.Tx) *ProjectRepository {
	return &ProjectRepository{db: tx}
}

const projectColumns = `id, name, description, created_at, updated_at`

func scanProject(row pgx.Row) (*domain.Project, error) {
	var p domain.Project
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

func scanProjectRows(rows pgx.Rows) ([]*domain.Project, error) {
	defer rows.Close()
	var projects []*domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *ProjectRepository) Create(ctx context.Context, p *domain.Project) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO projects (id, name, description, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.Name, p.Description, p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	return scanProject(r.db.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// GetByIDWithRelations loads the project plus its teams and each team's
// members.
func (r *ProjectRepository) GetByIDWithRelations(ctx context.Context, id string) (*domain.Project, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+teamColumns+` FROM teams WHERE project_id = $1 ORDER BY name`, id)
	if err != nil {
		return nil, err
	}
	teams, err := scanTeamRows(rows)
	if err != nil {
		return nil, err
	}

	p.Teams = make([]domain.Team, len(teams))
	for i, team := range teams {
		memberRows, err := r.db.Query(ctx,
			`SELECT `+userColumns+` FROM users WHERE team_id = $1 ORDER BY name`, team.ID)
		if err != nil {
			return nil, err
		}
		members, err := scanUserRows(memberRows)
		if err != nil {
			return nil, err
		}
		team.Members = make([]domain.User, len(members))
		for j, m := range members {
			team.Members[j] = *m
		}
		p.Teams[i] = *team
	}

	return p, nil
}

func (r *ProjectRepository) Update(ctx context.Context, p *domain.Project) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE projects SET name = $2, description = $3, updated_at = $4 WHERE id = $1`,
		p.ID, p.Name, p.Description, p.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepository) List(ctx context.Context, page, limit int, search string) ([]*domain.Project, int, error) {
	var total int
	where := ``
	args := []any{}
	if search != "" {
		where = ` WHERE name ILIKE $1`
		args = append(args, searchPattern(search))
	}

	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM projects`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx,
		`SELECT `+projectColumns+` FROM projects`+where+
			` ORDER BY created_at DESC LIMIT `+placeholder(len(args)+1)+` OFFSET `+placeholder(len(args)+2),
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	projects, err := scanProjectRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

func (r *ProjectRepository) ListAllIDs(ctx context.Context) ([]string, error) {
	return listIDs(ctx, r.db, "projects")
}
