// Package indexer keeps the vector collection in sync with the
// relational entities.
package indexer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/taskorbit/taskchat/internal/domain"
	"github.com/taskorbit/taskchat/internal/embedding"
	"github.com/taskorbit/taskchat/internal/telemetry"
	"github.com/taskorbit/taskchat/internal/transform"
	"github.com/taskorbit/taskchat/internal/vectorstore"
)

// Fixed entity ids for the two singleton documents.
const (
	SystemInfoID = "system-info"
	StatisticsID = "statistics"
)

type UserRepository interface {
	GetByIDWithRelations(ctx context.Context, id string) (*domain.User, error)
	ListAllIDs(ctx context.Context) ([]string, error)
}

type TeamRepository interface {
	GetByIDWithRelations(ctx context.Context, id string) (*domain.Team, error)
	ListAllIDs(ctx context.Context) ([]string, error)
}

type ProjectRepository interface {
	GetByIDWithRelations(ctx context.Context, id string) (*domain.Project, error)
	ListAllIDs(ctx context.Context) ([]string, error)
}

type TaskRepository interface {
	GetByIDWithRelations(ctx context.Context, id string) (*domain.Task, error)
	ListAllIDs(ctx context.Context) ([]string, error)
}

type StatsRepository interface {
	Counts(ctx context.Context) (*domain.Counts, error)
}

// Indexer transforms, embeds and upserts entity documents.
type Indexer struct {
	users       UserRepository
	teams       TeamRepository
	projects    ProjectRepository
	tasks       TaskRepository
	stats       StatsRepository
	transformer *transform.Transformer
	embedder    *embedding.Client
	store       vectorstore.Store
	stale       *staleLog
}

func New(
	users UserRepository,
	teams TeamRepository,
	projects ProjectRepository,
	tasks TaskRepository,
	stats StatsRepository,
	transformer *transform.Transformer,
	embedder *embedding.Client,
	store vectorstore.Store,
) *Indexer {
	return &Indexer{
		users:       users,
		teams:       teams,
		projects:    projects,
		tasks:       tasks,
		stats:       stats,
		transformer: transformer,
		embedder:    embedder,
		store:       store,
		stale:       newStaleLog(),
	}
}

// upsert embeds the rendered document and writes the point. The point id
// is derived from kind and entity id, so repeated indexing of the same
// entity overwrites its previous document.
func (ix *Indexer) upsert(ctx context.Context, kind domain.EntityKind, entityID string, res transform.Result, createdAt, updatedAt time.Time) error {
	vec, err := ix.embedder.Embed(ctx, res.Text)
	if err != nil {
		return err
	}

	payload := map[string]any{
		"text":        res.Text,
		"entity_type": string(kind),
		"entity_id":   entityID,
		"point_id":    string(kind) + "-" + entityID,
		"created_at":  createdAt.UTC().Format(time.RFC3339),
		"updated_at":  updatedAt.UTC().Format(time.RFC3339),
	}
	if len(res.Metadata) > 0 {
		payload["metadata"] = res.Metadata
	}
	if len(res.Relationships) > 0 {
		payload["relationships"] = res.Relationships
	}

	return ix.store.Upsert(ctx, vectorstore.Point{
		ID:      domain.PointID(string(kind), entityID),
		Vector:  vec,
		Payload: payload,
	})
}

// skipAbsent turns a not-found fetch into a logged no-op. An entity that
// disappeared between the write and the reindex has nothing to index, and
// retrying would never succeed.
func skipAbsent(kind domain.EntityKind, id string, err error) (bool, error) {
	if err == nil {
		return false, nil
	}
	if domain.CodeOf(err) == domain.CodeNotFound {
		log.Printf("indexer: %s %s not found, skipping", kind, id)
		return true, nil
	}
	return false, err
}

func (ix *Indexer) IndexUser(ctx context.Context, id string) error {
	u, err := ix.users.GetByIDWithRelations(ctx, id)
	if skip, err := skipAbsent(domain.KindUser, id, err); skip || err != nil {
		return err
	}
	return ix.upsert(ctx, domain.KindUser, id, ix.transformer.User(u), u.CreatedAt, u.UpdatedAt)
}

func (ix *Indexer) IndexTeam(ctx context.Context, id string) error {
	t, err := ix.teams.GetByIDWithRelations(ctx, id)
	if skip, err := skipAbsent(domain.KindTeam, id, err); skip || err != nil {
		return err
	}
	return ix.upsert(ctx, domain.KindTeam, id, ix.transformer.Team(t), t.CreatedAt, t.UpdatedAt)
}

func (ix *Indexer) IndexProject(ctx context.Context, id string) error {
	p, err := ix.projects.GetByIDWithRelations(ctx, id)
	if skip, err := skipAbsent(domain.KindProject, id, err); skip || err != nil {
		return err
	}
	return ix.upsert(ctx, domain.KindProject, id, ix.transformer.Project(p), p.CreatedAt, p.UpdatedAt)
}

func (ix *Indexer) IndexTask(ctx context.Context, id string) error {
	t, err := ix.tasks.GetByIDWithRelations(ctx, id)
	if skip, err := skipAbsent(domain.KindTask, id, err); skip || err != nil {
		return err
	}
	return ix.upsert(ctx, domain.KindTask, id, ix.transformer.Task(t), t.CreatedAt, t.UpdatedAt)
}

// IndexSystemInfo writes the workspace overview document. It is the
// retrieval target of help and requirements questions, so it spells out
// which fields each entity needs.
func (ix *Indexer) IndexSystemInfo(ctx context.Context) error {
	c, err := ix.stats.Counts(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	text := fmt.Sprintf(
		"This is a task management system. It currently tracks %d users, %d teams, %d projects and %d tasks. "+
			"Users belong to teams, teams work on projects, and tasks are assigned to users. "+
			"To create a task you need a title; description, assignee, status (todo, in_progress or done) and deadline are optional. "+
			"To create a user you need a name, an email and a password of at least 6 characters; role (admin or member) and team are optional. "+
			"To create a team you need a name, a project and an owner. "+
			"To create a project you need a name; description is optional. "+
			"Updating an entity requires its id or name plus the fields to change; deleting requires only its id or name.",
		c.Users, c.Teams, c.Projects, c.Tasks)

	return ix.upsert(ctx, domain.EntityKind(domain.DocTypeSystemInfo), SystemInfoID, transform.Result{
		Text: text,
		Metadata: map[string]any{
			"users_count":             c.Users,
			"teams_count":             c.Teams,
			"projects_count":          c.Projects,
			"tasks_count":             c.Tasks,
			"task_required_fields":    "title",
			"task_optional_fields":    "description, assignedTo, status, deadline",
			"user_required_fields":    "name, email, password",
			"user_optional_fields":    "role, teamId",
			"team_required_fields":    "name, projectId, ownerId",
			"project_required_fields": "name",
			"project_optional_fields": "description",
		},
	}, now, now)
}

// IndexStatistics writes the task statistics document.
func (ix *Indexer) IndexStatistics(ctx context.Context) error {
	c, err := ix.stats.Counts(ctx)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	text := fmt.Sprintf(
		"Task statistics: %d tasks total. %d to do, %d in progress, %d done. %d tasks are overdue.",
		c.Tasks, c.TasksTodo, c.TasksActive, c.TasksDone, c.TasksOverdue)

	return ix.upsert(ctx, domain.EntityKind(domain.DocTypeStatistics), StatisticsID, transform.Result{
		Text: text,
		Metadata: map[string]any{
			"tasks_total":   c.Tasks,
			"tasks_todo":    c.TasksTodo,
			"tasks_active":  c.TasksActive,
			"tasks_done":    c.TasksDone,
			"tasks_overdue": c.TasksOverdue,
		},
	}, now, now)
}

// Reindex refreshes one entity's document, recording a stale entry on
// failure so the background worker can retry.
func (ix *Indexer) Reindex(ctx context.Context, kind domain.EntityKind, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "Indexer.Reindex", telemetry.SpanAttributes{
		EntityKind: string(kind),
		EntityID:   id,
		Operation:  "reindex",
	})
	defer span.End()

	var err error
	switch kind {
	case domain.KindUser:
		err = ix.IndexUser(ctx, id)
	case domain.KindTeam:
		err = ix.IndexTeam(ctx, id)
	case domain.KindProject:
		err = ix.IndexProject(ctx, id)
	case domain.KindTask:
		err = ix.IndexTask(ctx, id)
	default:
		return domain.NewError(domain.CodeValidation, "unknown entity kind "+string(kind))
	}
	if err != nil {
		ix.stale.add(kind, id)
		return err
	}
	return nil
}

// Remove deletes one entity's document from the collection.
func (ix *Indexer) Remove(ctx context.Context, kind domain.EntityKind, id string) error {
	return ix.store.Delete(ctx, domain.PointID(string(kind), id))
}

// Stats summarises a bulk indexing run.
type Stats struct {
	UsersIndexed    int      `json:"usersIndexed"`
	TeamsIndexed    int      `json:"teamsIndexed"`
	ProjectsIndexed int      `json:"projectsIndexed"`
	TasksIndexed    int      `json:"tasksIndexed"`
	DurationMs      int64    `json:"durationMs"`
	Errors          []string `json:"errors,omitempty"`
}

// IndexAll reindexes every entity plus the system overview and
// statistics documents. Individual failures are collected, not fatal.
func (ix *Indexer) IndexAll(ctx context.Context) (*Stats, error) {
	ctx, span := telemetry.StartSpan(ctx, "Indexer.IndexAll", telemetry.SpanAttributes{
		Operation: "index_all",
	})
	defer span.End()

	start := time.Now()
	stats := &Stats{}

	record := func(kind domain.EntityKind, id string, err error, counter *int) {
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s %s: %v", kind, id, err))
			ix.stale.add(kind, id)
			return
		}
		*counter++
	}

	userIDs, err := ix.users.ListAllIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range userIDs {
		record(domain.KindUser, id, ix.IndexUser(ctx, id), &stats.UsersIndexed)
	}

	teamIDs, err := ix.teams.ListAllIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range teamIDs {
		record(domain.KindTeam, id, ix.IndexTeam(ctx, id), &stats.TeamsIndexed)
	}

	projectIDs, err := ix.projects.ListAllIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range projectIDs {
		record(domain.KindProject, id, ix.IndexProject(ctx, id), &stats.ProjectsIndexed)
	}

	taskIDs, err := ix.tasks.ListAllIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range taskIDs {
		record(domain.KindTask, id, ix.IndexTask(ctx, id), &stats.TasksIndexed)
	}

	if err := ix.IndexSystemInfo(ctx); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("system_info: %v", err))
	}
	if err := ix.IndexStatistics(ctx); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("statistics: %v", err))
	}

	stats.DurationMs = time.Since(start).Milliseconds()
	log.Printf("indexer: full run indexed %d users, %d teams, %d projects, %d tasks in %dms (%d errors)",
		stats.UsersIndexed, stats.TeamsIndexed, stats.ProjectsIndexed, stats.TasksIndexed,
		stats.DurationMs, len(stats.Errors))
	return stats, nil
}

// RetryStale retries every entity whose last index attempt failed. It
// implements the jobs.Processor contract so a background worker can poll
// it.
func (ix *Indexer) ProcessJobs(ctx context.Context) error {
	entries := ix.stale.drain()
	if len(entries) == 0 {
		return nil
	}
	log.Printf("indexer: retrying %d stale documents", len(entries))
	for _, e := range entries {
		if err := ix.Reindex(ctx, e.kind, e.id); err != nil {
			log.Printf("indexer: retry %s %s failed: %v", e.kind, e.id, err)
		}
	}
	return nil
}

// StaleCount reports how many documents are pending a retry.
func (ix *Indexer) StaleCount() int {
	return ix.stale.len()
}
