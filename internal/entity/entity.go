// Package entity implements CRUD services for the task management
// entities, including validation and post-commit index refresh.
package entity

import (
	"context"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/taskorbit/taskchat/internal/domain"
)

var validate = validator.New()

// Reindexer refreshes or removes an entity's search document after a
// committed write. Index failures are logged, never propagated: the
// database commit is the source of truth.
type Reindexer interface {
	Reindex(ctx context.Context, kind domain.EntityKind, id string) error
	Remove(ctx context.Context, kind domain.EntityKind, id string) error
}

// noopReindexer is used when no vector index is attached.
type noopReindexer struct{}

func (noopReindexer) Reindex(ctx context.Context, kind domain.EntityKind, id string) error {
	return nil
}

func (noopReindexer) Remove(ctx context.Context, kind domain.EntityKind, id string) error {
	return nil
}

func reindexAfterWrite(ctx context.Context, r Reindexer, kind domain.EntityKind, id string) {
	if err := r.Reindex(ctx, kind, id); err != nil {
		log.Printf("entity: reindex %s %s failed: %v", kind, id, err)
	}
}

func removeAfterDelete(ctx context.Context, r Reindexer, kind domain.EntityKind, id string) {
	if err := r.Remove(ctx, kind, id); err != nil {
		log.Printf("entity: index removal %s %s failed: %v", kind, id, err)
	}
}

// UUIDGenerator abstracts ID generation for testing.
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator uses google/uuid.
type DefaultUUIDGenerator struct{}

func (DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// validationError converts validator failures into a VALIDATION domain
// error naming the first offending field.
func validationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return domain.NewError(domain.CodeValidation, "invalid field: "+errs[0].Field())
	}
	return domain.NewError(domain.CodeValidation, "invalid input")
}
