// Package taskmem is the process-local task view used during context
// assembly: a per-project cache of kanban items plus the status-grouped
// text rendering that goes into prompts.
package taskmem

import (
	"fmt"
	"strings"

	"github.com/crewmate-app/crewmate/internal/lru"
	"github.com/crewmate-app/crewmate/internal/tasks"
)

// defaultCapacity bounds how many projects keep a cached task list at
// once; least recently touched projects fall out first.
const defaultCapacity = 256

// statusSection pairs a kanban status with its prompt header.
// Section order is fixed.
var statusSections = []struct {
	status string
	header string
}{
	{tasks.StatusTodo, "📋 To Do"},
	{tasks.StatusInProgress, "🔄 In Progress"},
	{tasks.StatusReview, "👀 In Review"},
	{tasks.StatusDone, "✅ Done"},
}

// Memory caches each project's task list between chat turns. Safe for
// concurrent use; owned by the application context. The cache is LRU
// bounded so idle projects do not pin their task lists forever.
type Memory struct {
	projects *lru.Cache[string, []*tasks.Task]
}

// New creates an empty task memory.
func New() *Memory {
	return &Memory{projects: lru.New[string, []*tasks.Task](defaultCapacity)}
}

// Put replaces the cached task list for a project.
func (m *Memory) Put(projectID string, list []*tasks.Task) {
	cp := make([]*tasks.Task, len(list))
	copy(cp, list)
	m.projects.Put(projectID, cp)
}

// Get returns the cached task list, or nil when the project is not cached.
func (m *Memory) Get(projectID string) []*tasks.Task {
	list, ok := m.projects.Get(projectID)
	if !ok {
		return nil
	}
	cp := make([]*tasks.Task, len(list))
	copy(cp, list)
	return cp
}

// Invalidate drops a project's cache entry.
func (m *Memory) Invalidate(projectID string) {
	m.projects.Delete(projectID)
}

// Reset drops all cached projects. Test/teardown hook.
func (m *Memory) Reset() {
	m.projects.Clear()
}

// FormatByStatus renders a task list grouped by kanban column, fixed
// section order, for prompt consumption. The full list is included with
// no cap. Returns the placeholder when there are no tasks.
func FormatByStatus(list []*tasks.Task, nameFor func(id string) string) string {
	if len(list) == 0 {
		return "No tasks defined yet."
	}

	var b strings.Builder
	for _, sec := range statusSections {
		var lines []string
		for _, t := range list {
			if t.Status != sec.status {
				continue
			}
			line := fmt.Sprintf("- %s", t.Title)
			if t.AssignedTo != "" {
				who := t.AssignedTo
				if nameFor != nil {
					if n := nameFor(t.AssignedTo); n != "" {
						who = n
					}
				}
				line += fmt.Sprintf(" (assigned to %s)", who)
			}
			if t.Priority == 1 {
				line += " [high priority]"
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sec.header + ":\n")
		b.WriteString(strings.Join(lines, "\n"))
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "No tasks defined yet."
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatAssigned renders only the tasks assigned to one teammate.
func FormatAssigned(list []*tasks.Task, teammateID string) string {
	var mine []*tasks.Task
	for _, t := range list {
		if t.AssignedTo == teammateID {
			mine = append(mine, t)
		}
	}
	if len(mine) == 0 {
		return "No tasks assigned to you yet."
	}
	return FormatByStatus(mine, nil)
}
