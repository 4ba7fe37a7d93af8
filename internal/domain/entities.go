package domain

import (
	"strings"
	"time"
)

// Role represents a user's role in the system.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	return r == RoleAdmin || r == RoleMember
}

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "todo"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
)

// ValidTaskStatus reports whether s is one of the known statuses.
func ValidTaskStatus(s TaskStatus) bool {
	return s == TaskStatusTodo || s == TaskStatusInProgress || s == TaskStatusDone
}

// NormalizeTaskStatus maps loose user-facing spellings onto the canonical
// enum. Unknown values return ("", false) so callers can keep their default.
func NormalizeTaskStatus(raw string) (TaskStatus, bool) {
	cleaned := strings.ToLower(strings.TrimSpace(raw))
	cleaned = strings.ReplaceAll(cleaned, " ", "_")
	cleaned = strings.ReplaceAll(cleaned, "-", "_")
	switch cleaned {
	case "todo", "to_do":
		return TaskStatusTodo, true
	case "in_progress", "inprogress":
		return TaskStatusInProgress, true
	case "done", "completed":
		return TaskStatusDone, true
	default:
		return "", false
	}
}

// HumanTaskStatus renders a status for display.
func HumanTaskStatus(s TaskStatus) string {
	switch s {
	case TaskStatusTodo:
		return "To Do"
	case TaskStatusInProgress:
		return "In Progress"
	case TaskStatusDone:
		return "Done"
	default:
		return string(s)
	}
}

// User is a member of the task-management domain. Relations are loaded
// eagerly by the repository for indexing; they may be nil elsewhere.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	TeamID       *string   `json:"teamId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`

	Team  *Team  `json:"team,omitempty"`
	Tasks []Task `json:"tasks,omitempty"`
}

// Team groups users around an optional project.
type Team struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	ProjectID *string   `json:"projectId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Owner   *User    `json:"owner,omitempty"`
	Project *Project `json:"project,omitempty"`
	Members []User   `json:"members,omitempty"`
}

// Project is the top-level grouping entity.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`

	Teams []Team `json:"teams,omitempty"`
}

// Task is a unit of work, optionally assigned and deadlined.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	AssignedTo  *string    `json:"assignedTo,omitempty"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Assignee *User `json:"assignee,omitempty"`
}

// EntityKind names one of the four relational entity kinds.
type EntityKind string

const (
	KindUser    EntityKind = "user"
	KindTeam    EntityKind = "team"
	KindProject EntityKind = "project"
	KindTask    EntityKind = "task"
)

// ValidEntityKind reports whether k names a relational entity.
func ValidEntityKind(k EntityKind) bool {
	switch k {
	case KindUser, KindTeam, KindProject, KindTask:
		return true
	}
	return false
}

// Counts holds aggregate entity counts used by the statistics document.
type Counts struct {
	Users        int
	Teams        int
	Projects     int
	Tasks        int
	TasksTodo    int
	TasksActive  int
	TasksDone    int
	TasksOverdue int
}
