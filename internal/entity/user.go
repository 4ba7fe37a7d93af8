package entity

import (
	"context"
	"time"

	"github.com/taskorbit/taskchat/internal/domain"
)

// UserRepositoryInterface defines the persistence operations the user
// service needs.
type UserRepositoryInterface interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByIDWithRelations(ctx context.Context, id string) (*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, limit int, search string) ([]*domain.User, int, error)
	EmailTaken(ctx context.Context, email, excludeID string) (bool, error)
}

// UserService handles business logic for users.
type UserService struct {
	repo    UserRepositoryInterface
	index   Reindexer
	uuidGen UUIDGenerator
}

func NewUserService(repo UserRepositoryInterface, index Reindexer) *UserService {
	if index == nil {
		index = noopReindexer{}
	}
	return &UserService{repo: repo, index: index, uuidGen: DefaultUUIDGenerator{}}
}

// CreateUserInput is the input for creating a user.
type CreateUserInput struct {
	Name     string  `json:"name" validate:"required"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Role     string  `json:"role"`
	TeamID   *string `json:"teamId"`
}

// UpdateUserInput is the input for updating a user. Nil fields are left
// unchanged; ClearTeam removes the team assignment.
type UpdateUserInput struct {
	Name      *string `json:"name"`
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	Role      *string `json:"role"`
	TeamID    *string `json:"teamId"`
	ClearTeam bool    `json:"clearTeam"`
}

func parseRole(raw string) (domain.Role, error) {
	switch raw {
	case "", string(domain.RoleMember):
		return domain.RoleMember, nil
	case string(domain.RoleAdmin):
		return domain.RoleAdmin, nil
	default:
		return "", domain.ErrInvalidRole
	}
}

func (s *UserService) Create(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	role, err := parseRole(in.Role)
	if err != nil {
		return nil, err
	}

	taken, err := s.repo.EmailTaken(ctx, in.Email, "")
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, domain.ErrEmailTaken
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	u := &domain.User{
		ID:           s.uuidGen.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		TeamID:       in.TeamID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	reindexAfterWrite(ctx, s.index, domain.KindUser, u.ID)
	return u, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return s.repo.GetByIDWithRelations(ctx, id)
}

func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil && *in.Email != u.Email {
		taken, err := s.repo.EmailTaken(ctx, *in.Email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, domain.ErrEmailTaken
		}
		u.Email = *in.Email
	}
	if in.Password != nil {
		if len(*in.Password) < 6 {
			return nil, domain.ErrPasswordTooWeak
		}
		hash, err := HashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		u.PasswordHash = hash
	}
	if in.Role != nil {
		role, err := parseRole(*in.Role)
		if err != nil {
			return nil, err
		}
		u.Role = role
	}
	if in.ClearTeam {
		u.TeamID = nil
	} else if in.TeamID != nil {
		u.TeamID = in.TeamID
	}

	u.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, err
	}

	reindexAfterWrite(ctx, s.index, domain.KindUser, u.ID)
	return u, nil
}

func (s *UserService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	removeAfterDelete(ctx, s.index, domain.KindUser, id)
	return nil
}

func (s *UserService) List(ctx context.Context, page, limit int, search string) ([]*domain.User, int, error) {
	return s.repo.List(ctx, page, limit, search)
}
