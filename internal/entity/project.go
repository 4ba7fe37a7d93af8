package entity

import (
	"context"
	"time"

	"github.com/taskorbit/taskchat/internal/domain"
)

type ProjectRepositoryInterface interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	GetByIDWithRelations(ctx context.Context, id string) (*domain.Project, error)
	Update(ctx context.Context, p *domain.Project) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, limit int, search string) ([]*domain.Project, int, error)
}

type ProjectService struct {
	repo    ProjectRepositoryInterface
	index   Reindexer
	uuidGen UUIDGenerator
}

func NewProjectService(repo ProjectRepositoryInterface, index Reindexer) *ProjectService {
	if index == nil {
		index = noopReindexer{}
	}
	return &ProjectService{repo: repo, index: index, uuidGen: DefaultUUIDGenerator{}}
}

type CreateProjectInput struct {
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
}

type UpdateProjectInput struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (s *ProjectService) Create(ctx context.Context, in CreateProjectInput) (*domain.Project, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}

	now := time.Now().UTC()
	p := &domain.Project{
		ID:          s.uuidGen.NewString(),
		Name:        in.Name,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	reindexAfterWrite(ctx, s.index, domain.KindProject, p.ID)
	return p, nil
}

func (s *ProjectService) Get(ctx context.Context, id string) (*domain.Project, error) {
	return s.repo.GetByIDWithRelations(ctx, id)
}

func (s *ProjectService) Update(ctx context.Context, id string, in UpdateProjectInput) (*domain.Project, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Description != nil {
		p.Description = in.Description
	}

	p.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	reindexAfterWrite(ctx, s.index, domain.KindProject, p.ID)
	return p, nil
}

func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	removeAfterDelete(ctx, s.index, domain.KindProject, id)
	return nil
}

func (s *ProjectService) List(ctx context.Context, page, limit int, search string) ([]*domain.Project, int, error) {
	return s.repo.List(ctx, page, limit, search)
}
