package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterSQL_MustOnly(t *testing.T) {
	where, args := filterSQL(&Filter{
		Must: []Condition{
			{Field: "entity_type", Value: "task"},
			{Field: "metadata.task_status", Value: "done"},
		},
	}, 2)

	assert.Equal(t, "(payload #>> '{entity_type}' = $2 AND payload #>> '{metadata,task_status}' = $3)", where)
	assert.Equal(t, []any{"task", "done"}, args)
}

func TestFilterSQL_ShouldOnly(t *testing.T) {
	where, args := filterSQL(&Filter{
		Should: []Condition{
			{Field: "entity_type", Value: "user"},
			{Field: "entity_type", Value: "team"},
		},
	}, 1)

	assert.Equal(t, "(payload #>> '{entity_type}' = $1 OR payload #>> '{entity_type}' = $2)", where)
	assert.Equal(t, []any{"user", "team"}, args)
}

func TestFilterSQL_MustAndShouldCombined(t *testing.T) {
	where, args := filterSQL(&Filter{
		Must:   []Condition{{Field: "metadata.is_overdue", Value: true}},
		Should: []Condition{{Field: "entity_type", Value: "task"}, {Field: "entity_type", Value: "user"}},
	}, 1)

	assert.Equal(t,
		"(payload #>> '{metadata,is_overdue}' = $1) AND (payload #>> '{entity_type}' = $2 OR payload #>> '{entity_type}' = $3)",
		where)
	assert.Equal(t, []any{"true", "task", "user"}, args)
}

func TestFilterSQL_Empty(t *testing.T) {
	where, args := filterSQL(nil, 1)
	assert.Empty(t, where)
	assert.Nil(t, args)
}

func TestNewPGVector_RejectsBadCollectionName(t *testing.T) {
	_, err := NewPGVector(nil, "bad name; drop", 768)
	require.Error(t, err)

	_, err = NewPGVector(nil, "task_manager", 768)
	require.NoError(t, err)
}
