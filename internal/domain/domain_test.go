package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPointID(t *testing.T) {
	assert.Equal(t, PointID("task", "K1"), PointID("task", "K1"))
	assert.NotEqual(t, PointID("task", "K1"), PointID("user", "K1"))
	assert.NotEqual(t, PointID("task", "K1"), PointID("task", "K2"))

	// fnv32a output fits in 32 bits even though the point id is a uint64.
	assert.LessOrEqual(t, PointID("project", "P1"), uint64(1)<<32)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "", CodeOf(nil))
	assert.Equal(t, CodeNotFound, CodeOf(ErrTaskNotFound))
	assert.Equal(t, CodeConflict, CodeOf(ErrEmailTaken))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(CodeUpstream, "vector store unavailable", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "UPSTREAM")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestNormalizeTaskStatus(t *testing.T) {
	tests := []struct {
		in   string
		want TaskStatus
		ok   bool
	}{
		{"todo", TaskStatusTodo, true},
		{"To Do", TaskStatusTodo, true},
		{"in progress", TaskStatusInProgress, true},
		{"In-Progress", TaskStatusInProgress, true},
		{"DONE", TaskStatusDone, true},
		{"completed", TaskStatusDone, true},
		{"blocked", "", false},
		{"", "", false},
	}
	for _, tc := range tests {
		got, ok := NormalizeTaskStatus(tc.in)
		assert.Equal(t, tc.ok, ok, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestHumanTaskStatus(t *testing.T) {
	assert.Equal(t, "In Progress", HumanTaskStatus(TaskStatusInProgress))
	assert.Equal(t, "To Do", HumanTaskStatus(TaskStatusTodo))
	assert.Equal(t, "Done", HumanTaskStatus(TaskStatusDone))
	assert.Equal(t, "archived", HumanTaskStatus(TaskStatus("archived")))
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidRole(RoleAdmin))
	assert.False(t, ValidRole(Role("owner")))
	assert.True(t, ValidTaskStatus(TaskStatusDone))
	assert.False(t, ValidTaskStatus(TaskStatus("archived")))
	assert.True(t, ValidEntityKind(KindTeam))
	assert.False(t, ValidEntityKind(EntityKind("org")))
}
