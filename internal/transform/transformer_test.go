package transform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskorbit/taskchat/internal/domain"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() *Transformer {
	return NewWithClock(func() time.Time { return testNow })
}

func strPtr(s string) *string { return &s }

func TestTask_OverdueDeadline(t *testing.T) {
	tr := fixedClock()
	deadline := testNow.Add(-5 * 24 * time.Hour)

	res := tr.Task(&domain.Task{
		ID:       "K1",
		Title:    "Fix login flow",
		Status:   domain.TaskStatusInProgress,
		Deadline: &deadline,
		Assignee: &domain.User{
			ID:   "U1",
			Name: "Sara",
			Team: &domain.Team{ID: "T1", Name: "Backend", Project: &domain.Project{ID: "P1", Name: "Phoenix"}},
		},
	})

	assert.Contains(t, res.Text, `Task "Fix login flow" has status in progress.`)
	assert.Contains(t, res.Text, "Overdue by 5 days")
	assert.Equal(t, true, res.Metadata["is_overdue"])
	assert.Equal(t, false, res.Metadata["is_urgent"])
	assert.Equal(t, -5, res.Metadata["days_until_deadline"])
	assert.Equal(t, "Sara", res.Metadata["assignee_name"])
	assert.Equal(t, "Backend", res.Metadata["team_name"])
	assert.Equal(t, "Phoenix", res.Metadata["project_name"])
	assert.Equal(t, "U1", res.Relationships["assigned_to"])
	assert.Equal(t, "T1", res.Relationships["team_id"])
	assert.Equal(t, "P1", res.Relationships["project_id"])
}

func TestTask_DeadlinePhrasing(t *testing.T) {
	tr := fixedClock()
	cases := []struct {
		days int
		want string
	}{
		{0, "Due today"},
		{2, "Due in 2 days (urgent)"},
		{3, "Due in 3 days (urgent)"},
		{4, "Due in 4 days"},
	}
	for _, tc := range cases {
		deadline := testNow.Add(time.Duration(tc.days) * 24 * time.Hour)
		res := tr.Task(&domain.Task{Title: "t", Status: domain.TaskStatusTodo, Deadline: &deadline})
		assert.Contains(t, res.Text, tc.want)
	}
}

func TestTask_DoneNeverOverdueOrUrgent(t *testing.T) {
	tr := fixedClock()
	deadline := testNow.Add(-48 * time.Hour)

	res := tr.Task(&domain.Task{Title: "shipped", Status: domain.TaskStatusDone, Deadline: &deadline})

	assert.Equal(t, false, res.Metadata["is_overdue"])
	assert.Equal(t, false, res.Metadata["is_urgent"])
}

func TestTask_UnassignedWithoutDeadline(t *testing.T) {
	res := fixedClock().Task(&domain.Task{Title: "orphan", Status: domain.TaskStatusTodo})

	assert.Contains(t, res.Text, "Unassigned.")
	assert.NotContains(t, res.Metadata, "days_until_deadline")
	assert.Empty(t, res.Relationships)
}

func TestTask_RedactsSecrets(t *testing.T) {
	res := fixedClock().Task(&domain.Task{
		Title:       "Rotate creds",
		Status:      domain.TaskStatusTodo,
		Description: strPtr("update password: hunter2 and api_key=sk-12345 in vault"),
	})

	assert.Contains(t, res.Text, "password [REDACTED]")
	assert.Contains(t, res.Text, "api_key [REDACTED]")
	assert.NotContains(t, res.Text, "hunter2")
	assert.NotContains(t, res.Text, "sk-12345")
}

func TestUser_TaskBreakdown(t *testing.T) {
	res := fixedClock().User(&domain.User{
		ID:    "U1",
		Name:  "Omar",
		Email: "omar@example.com",
		Role:  domain.RoleMember,
		Team:  &domain.Team{ID: "T1", Name: "Platform"},
		Tasks: []domain.Task{
			{Title: "a", Status: domain.TaskStatusTodo},
			{Title: "b", Status: domain.TaskStatusInProgress},
			{Title: "c", Status: domain.TaskStatusInProgress},
			{Title: "d", Status: domain.TaskStatusDone},
		},
	})

	assert.Contains(t, res.Text, "User Omar (omar@example.com) has the role member.")
	assert.Contains(t, res.Text, "Member of team Platform.")
	assert.Contains(t, res.Text, "Assigned 4 tasks: 1 to do, 2 in progress, 1 done.")
	assert.Equal(t, 4, res.Metadata["tasks_count"])
	assert.Equal(t, "Platform", res.Metadata["team_name"])
	assert.Equal(t, "T1", res.Relationships["team_id"])
}

func TestUser_NoTasks(t *testing.T) {
	res := fixedClock().User(&domain.User{Name: "Lena", Email: "l@x.io", Role: domain.RoleAdmin})

	assert.Contains(t, res.Text, "No tasks assigned.")
	assert.Equal(t, 0, res.Metadata["tasks_count"])
}

func TestTeam_TruncatesLongMemberList(t *testing.T) {
	members := make([]domain.User, 8)
	for i := range members {
		members[i] = domain.User{Name: string(rune('A' + i))}
	}
	res := fixedClock().Team(&domain.Team{
		ID:      "T1",
		Name:    "Core",
		Owner:   &domain.User{Name: "Dana"},
		Project: &domain.Project{ID: "P1", Name: "Atlas"},
		Members: members,
	})

	assert.Contains(t, res.Text, "Owned by Dana.")
	assert.Contains(t, res.Text, "Working on project Atlas.")
	assert.Contains(t, res.Text, "plus 3 more (8 total members)")
	assert.NotContains(t, res.Text, "F, G, H")
	assert.Equal(t, 8, res.Metadata["members_count"])
	assert.Equal(t, "P1", res.Relationships["project_id"])
}

func TestProject_CountsMembersAcrossTeams(t *testing.T) {
	res := fixedClock().Project(&domain.Project{
		ID:          "P1",
		Name:        "Atlas",
		Description: strPtr("Mapping service."),
		Teams: []domain.Team{
			{Name: "Core", Members: []domain.User{{Name: "a"}, {Name: "b"}}},
			{Name: "Edge", Members: []domain.User{{Name: "c"}}},
		},
	})

	require.Contains(t, res.Text, "Project Atlas.")
	assert.Contains(t, res.Text, "Mapping service.")
	assert.Contains(t, res.Text, "Teams: Core, Edge.")
	assert.Contains(t, res.Text, "3 members across 2 teams.")
	assert.Equal(t, 2, res.Metadata["teams_count"])
	assert.Equal(t, 3, res.Metadata["total_members"])
}

func TestListNames(t *testing.T) {
	assert.Equal(t, "", listNames(nil, "task"))
	assert.Equal(t, "a, b", listNames([]string{"a", "b"}, "task"))
	assert.Equal(t,
		"a, b, c, d, e plus 2 more (7 total tasks)",
		listNames([]string{"a", "b", "c", "d", "e", "f", "g"}, "task"))
}
