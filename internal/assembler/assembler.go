// Package assembler builds the instruction context a persona receives
// before generating a reply. Everything here is a pure function of its
// inputs: identical inputs render identical prompt text.
package assembler

import (
	"fmt"
	"strings"

	"github.com/crewmate-app/crewmate/internal/convmem"
	"github.com/crewmate-app/crewmate/internal/persona"
	"github.com/crewmate-app/crewmate/internal/taskmem"
	"github.com/crewmate-app/crewmate/internal/tasks"
)

// Window caps. Truncation drops the oldest entries first.
const (
	SameDayWindow  = 15
	PriorDayWindow = 10
)

// Placeholder strings used when a project has nothing to show yet.
const (
	PlaceholderNoTasks   = "No tasks defined yet."
	PlaceholderNoHistory = "No conversation history."
)

// actionVocabulary marks a message as a potential action item.
var actionVocabulary = []string{
	"todo", "need to", "should", "must", "deadline", "assign",
	"fix", "implement", "deliver", "finish", "review", "ship",
}

// topicVocabulary is the fixed list of project topics mined from
// conversation. Matching is plain substring, not ML.
var topicVocabulary = []string{
	"design", "frontend", "backend", "database", "api", "auth",
	"testing", "deployment", "launch", "budget", "marketing",
	"research", "prototype", "documentation",
}

// Project is the metadata slice the assembler needs.
type Project struct {
	ID           string
	Title        string
	Description  string
	CurrentDay   int
	DurationDays int
}

// Input is everything a context build consumes.
type Input struct {
	// Project is nil when the project was not found; the build then
	// falls back to placeholder text everywhere.
	Project   *Project
	Persona   *persona.Definition
	AllTasks  []*tasks.Task
	SameDay   []convmem.Entry
	PriorDays []convmem.DayEntry
	// NameFor resolves a teammate id to a display name for the board.
	NameFor func(id string) string
}

// Context is the assembled, render-ready view.
type Context struct {
	ProjectLine   string
	TaskBoard     string
	AssignedTasks string
	SameDay       string
	PriorDays     string
	Topics        []string
	ActionItems   []string
}

// Build assembles the context object. Never returns nil fields; a
// missing project yields placeholders instead.
func Build(in Input) Context {
	ctx := Context{
		ProjectLine:   "No project information available.",
		TaskBoard:     PlaceholderNoTasks,
		AssignedTasks: "No tasks assigned to you yet.",
		SameDay:       PlaceholderNoHistory,
		PriorDays:     "",
	}

	if in.Project != nil {
		ctx.ProjectLine = fmt.Sprintf("Project: %s — %s (day %d of %d)",
			in.Project.Title, in.Project.Description,
			in.Project.CurrentDay, in.Project.DurationDays)
	}

	if len(in.AllTasks) > 0 {
		ctx.TaskBoard = taskmem.FormatByStatus(in.AllTasks, in.NameFor)
		if in.Persona != nil {
			ctx.AssignedTasks = taskmem.FormatAssigned(in.AllTasks, in.Persona.ID)
		}
	}

	if len(in.SameDay) > 0 {
		ctx.SameDay = formatSameDay(capEntries(in.SameDay, SameDayWindow))
	}
	if len(in.PriorDays) > 0 {
		ctx.PriorDays = formatPriorDays(capDayEntries(in.PriorDays, PriorDayWindow))
	}

	ctx.Topics, ctx.ActionItems = mineInsights(in.SameDay)
	return ctx
}

// RenderPrompt turns an assembled context into the instruction block
// handed to the provider alongside the raw user message.
func RenderPrompt(p *persona.Definition, ctx Context) string {
	var b strings.Builder

	b.WriteString(p.RenderSystemPrompt())
	b.WriteString("\n\n")
	b.WriteString(ctx.ProjectLine)
	b.WriteString("\n\nTeam task board:\n")
	b.WriteString(ctx.TaskBoard)
	b.WriteString("\n\nYour tasks:\n")
	b.WriteString(ctx.AssignedTasks)
	b.WriteString("\n\nConversation today:\n")
	b.WriteString(ctx.SameDay)
	if ctx.PriorDays != "" {
		b.WriteString("\n\nEarlier days:\n")
		b.WriteString(ctx.PriorDays)
	}
	if len(ctx.Topics) > 0 {
		b.WriteString("\n\nKey topics: ")
		b.WriteString(strings.Join(ctx.Topics, ", "))
	}
	if len(ctx.ActionItems) > 0 {
		b.WriteString("\n\nPossible action items:\n- ")
		b.WriteString(strings.Join(ctx.ActionItems, "\n- "))
	}
	b.WriteString("\n\nReply in character, briefly, as part of the ongoing team chat.")
	return b.String()
}

// capEntries keeps the newest n entries, preserving order.
func capEntries(entries []convmem.Entry, n int) []convmem.Entry {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

func capDayEntries(entries []convmem.DayEntry, n int) []convmem.DayEntry {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

func formatSameDay(entries []convmem.Entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", e.SenderName, e.Content))
	}
	return strings.Join(lines, "\n")
}

func formatPriorDays(entries []convmem.DayEntry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[day %d] %s: %s", e.Day, e.SenderName, e.Content))
	}
	return strings.Join(lines, "\n")
}

// mineInsights scans the same-day window against the fixed
// vocabularies. Topics are the matched keywords, deduped in
// vocabulary order; action items are the matching message contents,
// in conversation order.
func mineInsights(entries []convmem.Entry) (topics, actions []string) {
	seen := make(map[string]bool)
	for _, e := range entries {
		lower := strings.ToLower(e.Content)
		for _, kw := range actionVocabulary {
			if strings.Contains(lower, kw) {
				actions = append(actions, e.Content)
				break
			}
		}
		for _, kw := range topicVocabulary {
			if strings.Contains(lower, kw) {
				seen[kw] = true
			}
		}
	}
	for _, kw := range topicVocabulary {
		if seen[kw] {
			topics = append(topics, kw)
		}
	}
	return topics, actions
}
