package entity

import (
	"context"
	"time"

	"github.com/taskorbit/taskchat/internal/domain"
)

type TaskRepositoryInterface interface {
	Create(ctx context.Context, t *domain.Task) error
	GetByID(ctx context.Context, id string) (*domain.Task, error)
	GetByIDWithRelations(ctx context.Context, id string) (*domain.Task, error)
	Update(ctx context.Context, t *domain.Task) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, limit int, search string) ([]*domain.Task, int, error)
}

type TaskService struct {
	repo    TaskRepositoryInterface
	users   userLookup
	index   Reindexer
	uuidGen UUIDGenerator
}

func NewTaskService(repo TaskRepositoryInterface, users userLookup, index Reindexer) *TaskService {
	if index == nil {
		index = noopReindexer{}
	}
	return &TaskService{repo: repo, users: users, index: index, uuidGen: DefaultUUIDGenerator{}}
}

type CreateTaskInput struct {
	Title       string     `json:"title" validate:"required"`
	Description *string    `json:"description"`
	Status      string     `json:"status"`
	AssignedTo  *string    `json:"assignedTo"`
	Deadline    *time.Time `json:"deadline"`
}

type UpdateTaskInput struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Status        *string    `json:"status"`
	AssignedTo    *string    `json:"assignedTo"`
	Deadline      *time.Time `json:"deadline"`
	ClearAssignee bool       `json:"clearAssignee"`
	ClearDeadline bool       `json:"clearDeadline"`
}

func parseStatus(raw string) (domain.TaskStatus, error) {
	if raw == "" {
		return domain.TaskStatusTodo, nil
	}
	status, ok := domain.NormalizeTaskStatus(raw)
	if !ok {
		return "", domain.ErrInvalidStatus
	}
	return status, nil
}

func (s *TaskService) Create(ctx context.Context, in CreateTaskInput) (*domain.Task, error) {
	if err := validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	status, err := parseStatus(in.Status)
	if err != nil {
		return nil, err
	}
	if in.AssignedTo != nil {
		if _, err := s.users.GetByID(ctx, *in.AssignedTo); err != nil {
			return nil, err
		}
	}

	now := time.Now().UTC()
	t := &domain.Task{
		ID:          s.uuidGen.NewString(),
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		AssignedTo:  in.AssignedTo,
		Deadline:    in.Deadline,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	reindexAfterWrite(ctx, s.index, domain.KindTask, t.ID)
	return t, nil
}

func (s *TaskService) Get(ctx context.Context, id string) (*domain.Task, error) {
	return s.repo.GetByIDWithRelations(ctx, id)
}

func (s *TaskService) Update(ctx context.Context, id string, in UpdateTaskInput) (*domain.Task, error) {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = in.Description
	}
	if in.Status != nil {
		status, err := parseStatus(*in.Status)
		if err != nil {
			return nil, err
		}
		t.Status = status
	}
	if in.ClearAssignee {
		t.AssignedTo = nil
	} else if in.AssignedTo != nil {
		if _, err := s.users.GetByID(ctx, *in.AssignedTo); err != nil {
			return nil, err
		}
		t.AssignedTo = in.AssignedTo
	}
	if in.ClearDeadline {
		t.Deadline = nil
	} else if in.Deadline != nil {
		t.Deadline = in.Deadline
	}

	t.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, t); err != nil {
		return nil, err
	}

	reindexAfterWrite(ctx, s.index, domain.KindTask, t.ID)
	return t, nil
}

func (s *TaskService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	removeAfterDelete(ctx, s.index, domain.KindTask, id)
	return nil
}

func (s *TaskService) List(ctx context.Context, page, limit int, search string) ([]*domain.Task, int, error) {
	return s.repo.List(ctx, page, limit, search)
}
