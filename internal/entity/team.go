package entity

import (
	"context"
	"time"

	"github.com/taskorbit/taskchat/internal/domain"
)

type TeamRepositoryInterface interface {
	Create(ctx context.Context, t *domain.Team) error
	GetByID(ctx context.Context, id string) (*domain.Team, error)
	GetByIDWithRelations(ctx context.Context, id string) (*domain.Team, error)
	Update(ctx context.Context, t *domain.Team) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, limit int, search string) ([]*domain.Team, int, error)
}

// userLookup verifies referenced users exist.
type userLookup interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
}

type TeamService struct {
	repo    TeamRepositoryInterface
	users   userLookup
	index   Reindexer
	uuidGen UUIDGenerator
}

func NewTeamService(repo TeamRepositoryInterface, users userLookup, index Reindexer) *TeamService {
	if index == nil {
		index = noopReindexer{}
	}
	return &TeamService{repo: repo, users: users, index: index, uuidGen: DefaultUUIDGenerator{}}
}

type CreateTeamInput struct {
	Name      string  `json:"name" validate:"required"`
	OwnerID   string  `json:"ownerId" validate:"required"`
	ProjectID *string `json:"projectId"`
}

type UpdateTeamInput struct {
	Name         *string `json:"name"`
	OwnerID      *string `json:"ownerId"`
	ProjectID    *string `json:"projectId"`
	ClearProject bool    `json:"clearProject"`
}

func (s *TeamService) Create(ctx context.Context, in CreateTeamInput) (*domain.Team, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if _, err := s.users.GetByID(ctx, in.OwnerID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &domain.Team{
		ID:        s.uuidGen.NewString(),
		Name:      in.Name,
		OwnerID:   in.OwnerID,
		ProjectID: in.ProjectID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	reindexAfterWrite(ctx, s.index, domain.KindTeam, t.ID)
	return t, nil
}

func (s *TeamService) Get(ctx context.Context, id string) (*domain.Team, error) {
	return s.repo.GetByIDWithRelations(ctx, id)
}

func (s *TeamService) Update(ctx context.Context, id string, in UpdateTeamInput) (*domain.Team, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		t.Name = *in.Name
	}
	if in.OwnerID != nil {
		if _, err := s.users.GetByID(ctx, *in.OwnerID); err != nil {
			return nil, err
		}
		t.OwnerID = *in.OwnerID
	}
	if in.ClearProject {
		t.ProjectID = nil
	} else if in.ProjectID != nil {
		t.ProjectID = in.ProjectID
	}

	t.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	reindexAfterWrite(ctx, s.index, domain.KindTeam, t.ID)
	return t, nil
}

func (s *TeamService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	removeAfterDelete(ctx, s.index, domain.KindTeam, id)
	return nil
}

func (s *TeamService) List(ctx context.Context, page, limit int, search string) ([]*domain.Team, int, error) {
	return s.repo.List(ctx, page, limit, search)
}
