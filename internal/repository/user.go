package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskorbit/taskchat/internal/domain"
)

type UserRepository struct {
	db dbtx
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: pool}
}

func NewUserRepositoryWithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

const userColumns = `id, name, email, password_hash, role, team_id, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.TeamID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func scanUserRows(rows pgx.Rows) ([]*domain.User, error) {
	defer rows.Close()
	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, name, email, password_hash, role, team_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.TeamID, u.CreatedAt, u.UpdatedAt,
	)
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetByIDWithRelations loads the user plus its team (and the team's
// project) and assigned tasks, as needed for document rendering.
func (r *UserRepository) GetByIDWithRelations(ctx context.Context, id string) (*domain.User, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if u.TeamID != nil {
		team, err := scanTeam(r.db.QueryRow(ctx,
			`SELECT `+teamColumns+` FROM teams WHERE id = $1`, *u.TeamID))
		if err != nil && !errors.Is(err, domain.ErrTeamNotFound) {
			return nil, err
		}
		if team != nil {
			if team.ProjectID != nil {
				project, err := scanProject(r.db.QueryRow(ctx,
					`SELECT `+projectColumns+` FROM projects WHERE id = $1`, *team.ProjectID))
				if err != nil && !errors.Is(err, domain.ErrProjectNotFound) {
					return nil, err
				}
				team.Project = project
			}
			u.Team = team
		}
	}

	rows, err := r.db.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE assigned_to = $1 ORDER BY created_at`, id)
	if err != nil {
		return nil, err
	}
	tasks, err := scanTaskRows(rows)
	if err != nil {
		return nil, err
	}
	u.Tasks = make([]domain.Task, len(tasks))
	for i, task := range tasks {
		u.Tasks[i] = *task
	}

	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

// EmailTaken reports whether another user already holds the email.
func (r *UserRepository) EmailTaken(ctx context.Context, email, excludeID string) (bool, error) {
	var taken bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1) AND id <> $2)`,
		email, excludeID,
	).Scan(&taken)
	return taken, err
}

func (r *UserRepository) Update(ctx context.Context, u *domain.User) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET name = $2, email = $3, password_hash = $4, role = $5, team_id = $6, updated_at = $7
		 WHERE id = $1`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.TeamID, u.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// List returns a page of users matching the optional name/email search
// term, plus the total match count.
func (r *UserRepository) List(ctx context.Context, page, limit int, search string) ([]*domain.User, int, error) {
	var total int
	where := ``
	args := []any{}
	if search != "" {
		where = ` WHERE name ILIKE $1 OR email ILIKE $1`
		args = append(args, searchPattern(search))
	}

	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	rows, err := r.db.Query(ctx,
		`SELECT `+userColumns+` FROM users`+where+
			` ORDER BY created_at DESC LIMIT `+placeholder(len(args)+1)+` OFFSET `+placeholder(len(args)+2),
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, err
	}
	users, err := scanUserRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// ListAllIDs returns every user id, used for bulk reindexing.
func (r *UserRepository) ListAllIDs(ctx context.Context) ([]string, error) {
	return listIDs(ctx, r.db, "users")
}
