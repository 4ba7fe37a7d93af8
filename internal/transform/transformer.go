// Package transform converts entity snapshots into searchable document
// text and filterable metadata.
package transform

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/taskorbit/taskchat/internal/domain"
)

// maxListed bounds how many related entities are named in document text
// before collapsing to a "plus K more" suffix.
const maxListed = 5

// Result is the searchable rendering of one entity.
type Result struct {
	Text          string
	Metadata      map[string]any
	Relationships map[string]string
}

// Transformer renders entities. The clock is injectable so deadline
// phrasing is deterministic in tests.
type Transformer struct {
	now func() time.Time
}

func New() *Transformer {
	return &Transformer{now: time.Now}
}

func NewWithClock(now func() time.Time) *Transformer {
	return &Transformer{now: now}
}

var secretRe = regexp.MustCompile(`(?i)\b(password|token|api[-_]?key|secret)\b\s*[:=]?\s*\S+`)

// redact replaces secret-bearing tokens with a placeholder.
func redact(s string) string {
	return secretRe.ReplaceAllString(s, "$1 [REDACTED]")
}

// listNames renders up to maxListed names, collapsing the remainder.
func listNames(names []string, label string) string {
	if len(names) == 0 {
		return ""
	}
	if len(names) <= maxListed {
		return strings.Join(names, ", ")
	}
	rest := len(names) - maxListed
	return fmt.Sprintf("%s plus %d more (%d total %ss)",
		strings.Join(names[:maxListed], ", "), rest, len(names), label)
}

// daysUntil computes whole days from now to deadline, negative when past.
func (t *Transformer) daysUntil(deadline time.Time) int {
	return int(deadline.Sub(t.now()).Hours() / 24)
}

// deadlinePhrase renders the human deadline sentence.
func deadlinePhrase(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("Overdue by %d days", -days)
	case days == 0:
		return "Due today"
	case days <= 3:
		return fmt.Sprintf("Due in %d days (urgent)", days)
	default:
		return fmt.Sprintf("Due in %d days", days)
	}
}

// Task renders a task snapshot with its eagerly-loaded assignee.
func (t *Transformer) Task(task *domain.Task) Result {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Task %q has status %s.", task.Title, domain.HumanTaskStatus(task.Status))

	if task.Description != nil && *task.Description != "" {
		fmt.Fprintf(&sb, " Description: %s.", strings.TrimSuffix(*task.Description, "."))
	}

	metadata := map[string]any{
		"task_status": string(task.Status),
		"is_overdue":  false,
		"is_urgent":   false,
	}
	relationships := map[string]string{}

	if task.Assignee != nil {
		fmt.Fprintf(&sb, " Assigned to %s.", task.Assignee.Name)
		metadata["assignee_name"] = task.Assignee.Name
		relationships["assigned_to"] = task.Assignee.ID
		if task.Assignee.Team != nil {
			fmt.Fprintf(&sb, " The assignee is on team %s.", task.Assignee.Team.Name)
			metadata["team_name"] = task.Assignee.Team.Name
			relationships["team_id"] = task.Assignee.Team.ID
			if task.Assignee.Team.Project != nil {
				metadata["project_name"] = task.Assignee.Team.Project.Name
				relationships["project_id"] = task.Assignee.Team.Project.ID
			}
		}
	} else if task.AssignedTo != nil {
		relationships["assigned_to"] = *task.AssignedTo
	} else {
		sb.WriteString(" Unassigned.")
	}

	if task.Deadline != nil {
		days := t.daysUntil(*task.Deadline)
		overdue := days < 0 && task.Status != domain.TaskStatusDone
		urgent := days >= 0 && days <= 3 && task.Status != domain.TaskStatusDone
		fmt.Fprintf(&sb, " %s.", deadlinePhrase(days))
		metadata["days_until_deadline"] = days
		metadata["is_overdue"] = overdue
		metadata["is_urgent"] = urgent
	}

	return Result{
		Text:          redact(sb.String()),
		Metadata:      metadata,
		Relationships: relationships,
	}
}

// User renders a user snapshot with team and assigned tasks.
func (t *Transformer) User(u *domain.User) Result {
	var sb strings.Builder
	fmt.Fprintf(&sb, "User %s (%s) has the role %s.", u.Name, u.Email, u.Role)

	metadata := map[string]any{
		"user_name":   u.Name,
		"user_email":  u.Email,
		"user_role":   string(u.Role),
		"tasks_count": len(u.Tasks),
	}
	relationships := map[string]string{}

	if u.Team != nil {
		fmt.Fprintf(&sb, " Member of team %s.", u.Team.Name)
		metadata["team_name"] = u.Team.Name
		relationships["team_id"] = u.Team.ID
		if u.Team.Project != nil {
			relationships["project_id"] = u.Team.Project.ID
		}
	}

	if len(u.Tasks) > 0 {
		byStatus := map[domain.TaskStatus]int{}
		titles := make([]string, 0, len(u.Tasks))
		for _, task := range u.Tasks {
			byStatus[task.Status]++
			titles = append(titles, task.Title)
		}
		fmt.Fprintf(&sb, " Assigned %d tasks: %d to do, %d in progress, %d done.",
			len(u.Tasks),
			byStatus[domain.TaskStatusTodo],
			byStatus[domain.TaskStatusInProgress],
			byStatus[domain.TaskStatusDone])
		fmt.Fprintf(&sb, " Tasks: %s.", listNames(titles, "task"))
	} else {
		sb.WriteString(" No tasks assigned.")
	}

	return Result{
		Text:          redact(sb.String()),
		Metadata:      metadata,
		Relationships: relationships,
	}
}

// Team renders a team snapshot with owner, project and members.
func (t *Transformer) Team(team *domain.Team) Result {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Team %s.", team.Name)

	metadata := map[string]any{
		"team_name":     team.Name,
		"members_count": len(team.Members),
	}
	relationships := map[string]string{"team_id": team.ID}

	if team.Owner != nil {
		fmt.Fprintf(&sb, " Owned by %s.", team.Owner.Name)
		metadata["owner_name"] = team.Owner.Name
	}
	if team.Project != nil {
		fmt.Fprintf(&sb, " Working on project %s.", team.Project.Name)
		metadata["project_name"] = team.Project.Name
		relationships["project_id"] = team.Project.ID
	}

	if len(team.Members) > 0 {
		names := make([]string, 0, len(team.Members))
		for _, m := range team.Members {
			names = append(names, m.Name)
		}
		fmt.Fprintf(&sb, " Members: %s.", listNames(names, "member"))
	} else {
		sb.WriteString(" No members.")
	}

	return Result{
		Text:          redact(sb.String()),
		Metadata:      metadata,
		Relationships: relationships,
	}
}

// Project renders a project snapshot with its teams.
func (t *Transformer) Project(p *domain.Project) Result {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Project %s.", p.Name)

	if p.Description != nil && *p.Description != "" {
		fmt.Fprintf(&sb, " %s.", strings.TrimSuffix(*p.Description, "."))
	}

	totalMembers := 0
	if len(p.Teams) > 0 {
		names := make([]string, 0, len(p.Teams))
		for _, team := range p.Teams {
			names = append(names, team.Name)
			totalMembers += len(team.Members)
		}
		fmt.Fprintf(&sb, " Teams: %s.", listNames(names, "team"))
		fmt.Fprintf(&sb, " %d members across %d teams.", totalMembers, len(p.Teams))
	} else {
		sb.WriteString(" No teams yet.")
	}

	metadata := map[string]any{
		"project_name":  p.Name,
		"teams_count":   len(p.Teams),
		"total_members": totalMembers,
	}

	return Result{
		Text:          redact(sb.String()),
		Metadata:      metadata,
		Relationships: map[string]string{"project_id": p.ID},
	}
}
