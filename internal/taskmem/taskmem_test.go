package taskmem

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmate-app/crewmate/internal/tasks"
)

func TestPutGetIsolatedPerProject(t *testing.T) {
	m := New()
	m.Put("p1", []*tasks.Task{{ID: "a", Title: "wire login", Status: tasks.StatusTodo}})
	m.Put("p2", []*tasks.Task{{ID: "b", Title: "draft logo", Status: tasks.StatusDone}})

	require.Len(t, m.Get("p1"), 1)
	assert.Equal(t, "wire login", m.Get("p1")[0].Title)
	assert.Equal(t, "draft logo", m.Get("p2")[0].Title)
	assert.Nil(t, m.Get("p3"))
}

func TestInvalidateDropsOnlyTarget(t *testing.T) {
	m := New()
	m.Put("p1", []*tasks.Task{{ID: "a", Title: "x", Status: tasks.StatusTodo}})
	m.Put("p2", []*tasks.Task{{ID: "b", Title: "y", Status: tasks.StatusTodo}})

	m.Invalidate("p1")
	assert.Nil(t, m.Get("p1"))
	assert.Len(t, m.Get("p2"), 1)
}

func TestFormatByStatusGroupsInFixedOrder(t *testing.T) {
	list := []*tasks.Task{
		{ID: "1", Title: "ship release", Status: tasks.StatusDone},
		{ID: "2", Title: "design schema", Status: tasks.StatusTodo, AssignedTo: "rakoto", Priority: 1},
		{ID: "3", Title: "review API", Status: tasks.StatusReview},
		{ID: "4", Title: "build endpoint", Status: tasks.StatusInProgress},
	}
	names := func(id string) string {
		if id == "rakoto" {
			return "Rakoto"
		}
		return ""
	}

	out := FormatByStatus(list, names)

	todo := strings.Index(out, "📋 To Do")
	prog := strings.Index(out, "🔄 In Progress")
	rev := strings.Index(out, "👀 In Review")
	done := strings.Index(out, "✅ Done")
	require.True(t, todo >= 0 && prog > todo && rev > prog && done > rev, out)

	assert.Contains(t, out, "- design schema (assigned to Rakoto) [high priority]")
	assert.Contains(t, out, "- build endpoint")
}

func TestFormatByStatusEmpty(t *testing.T) {
	assert.Equal(t, "No tasks defined yet.", FormatByStatus(nil, nil))
}

func TestFormatAssigned(t *testing.T) {
	list := []*tasks.Task{
		{ID: "1", Title: "mine", Status: tasks.StatusTodo, AssignedTo: "naina"},
		{ID: "2", Title: "theirs", Status: tasks.StatusTodo, AssignedTo: "rakoto"},
	}
	out := FormatAssigned(list, "naina")
	assert.Contains(t, out, "mine")
	assert.NotContains(t, out, "theirs")

	assert.Equal(t, "No tasks assigned to you yet.", FormatAssigned(list, "rasoa"))
}
