// Package orchestrator drives AI reply turns for a chat message: who
// responds, in what order, what each persona says, and what gets
// persisted when generation cannot happen.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewmate-app/crewmate/internal/assembler"
	"github.com/crewmate-app/crewmate/internal/availability"
	"github.com/crewmate-app/crewmate/internal/chat"
	"github.com/crewmate-app/crewmate/internal/convmem"
	"github.com/crewmate-app/crewmate/internal/llm"
	"github.com/crewmate-app/crewmate/internal/metrics"
	"github.com/crewmate-app/crewmate/internal/persona"
	"github.com/crewmate-app/crewmate/internal/projects"
	"github.com/crewmate-app/crewmate/internal/roster"
	"github.com/crewmate-app/crewmate/internal/selector"
	"github.com/crewmate-app/crewmate/internal/taskmem"
	"github.com/crewmate-app/crewmate/internal/tasks"
)

// Turn outcomes.
const (
	OutcomeAsleep            = "asleep"
	OutcomePersisted         = "persisted"
	OutcomeFallbackPersisted = "fallback_persisted"
)

// completer is the generation surface the engine calls.
type completer interface {
	Complete(ctx context.Context, userContent, instructions string, opts llm.Options) (string, error)
}

// Engine runs the per-message turn loop. Turns are strictly sequential;
// each one fully persists before the next starts.
type Engine struct {
	roster    *roster.Registry
	catalog   *persona.Catalog
	policy    availability.Policy
	selector  *selector.Selector
	llm       completer
	chat      *chat.Store
	conv      *convmem.Memory
	tasks     *tasks.Store
	taskCache *taskmem.Memory
	metrics   *metrics.Metrics
	logger    zerolog.Logger

	turnDelay time.Duration
	wordCap   int
	rand      selector.RandSource
	now       func() time.Time

	hydrateMu sync.Mutex
	hydrated  map[string]bool
}

// Options configures an Engine.
type Options struct {
	Roster   *roster.Registry
	Catalog  *persona.Catalog
	Policy   availability.Policy
	Selector *selector.Selector
	LLM      completer
	Chat     *chat.Store
	Conv     *convmem.Memory
	Tasks    *tasks.Store
	Metrics  *metrics.Metrics // optional
	Logger   zerolog.Logger

	// TaskCache bounds repeated task reads during prompt assembly.
	// A fresh cache is created when nil.
	TaskCache *taskmem.Memory

	// TurnDelay is slept between consecutive turns. Zero in tests.
	TurnDelay time.Duration
	// WordCap bounds generated replies; words beyond it are cut on a
	// word boundary and an ellipsis appended.
	WordCap int
	// Rand drives sleep/apology pool picks. Defaults to a fixed pick
	// of the first entry when nil; the caller wires real randomness.
	Rand selector.RandSource
}

// New creates a turn engine.
func New(opts Options) *Engine {
	e := &Engine{
		roster:    opts.Roster,
		catalog:   opts.Catalog,
		policy:    opts.Policy,
		selector:  opts.Selector,
		llm:       opts.LLM,
		chat:      opts.Chat,
		conv:      opts.Conv,
		tasks:     opts.Tasks,
		taskCache: opts.TaskCache,
		metrics:   opts.Metrics,
		logger:    opts.Logger.With().Str("component", "orchestrator").Logger(),
		turnDelay: opts.TurnDelay,
		wordCap:   opts.WordCap,
		rand:      opts.Rand,
		now:       time.Now,
	}
	if e.wordCap <= 0 {
		e.wordCap = 30
	}
	if e.rand == nil {
		e.rand = func() float64 { return 0 }
	}
	if e.taskCache == nil {
		e.taskCache = taskmem.New()
	}
	e.hydrated = make(map[string]bool)
	return e
}

// InvalidateTasks drops the cached task list for a project. Callers
// mutating the kanban board invoke this so the next prompt sees the
// fresh board.
func (e *Engine) InvalidateTasks(projectID string) {
	e.taskCache.Invalidate(projectID)
}

// Response is the result of handling one inbound chat message.
type Response struct {
	Messages     []*chat.Message `json:"messages"`
	ActiveAgents []string        `json:"activeAgents"`
}

// HandleMessage persists the sender's message, selects responders and
// runs their turns in order. Messages persisted before a failing turn
// stay committed; the error reports the failing persona.
func (e *Engine) HandleMessage(ctx context.Context, project *projects.Project, senderUID, senderName, content string) (*Response, error) {
	e.hydrate(ctx, project)

	userMsg, err := e.chat.Append(ctx, project.ID, chat.Message{
		SenderID:   senderUID,
		SenderName: senderName,
		SenderType: roster.TypeHuman,
		Content:    content,
		Day:        project.CurrentDay,
	})
	if err != nil {
		return nil, err
	}
	e.remember(project, userMsg)

	team, err := e.roster.List(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	nowT := e.now()
	var candidates []selector.Candidate
	byID := make(map[string]*roster.Teammate)
	verdicts := make(map[string]availability.Verdict)
	for _, tm := range team {
		if !tm.IsAI() {
			continue
		}
		v := e.policy.Evaluate(tm, nowT, project.CurrentDay)
		byID[tm.ID] = tm
		verdicts[tm.ID] = v
		candidates = append(candidates, selector.Candidate{
			ID:        tm.ID,
			Name:      tm.Name,
			Lead:      tm.Config != nil && tm.Config.Lead,
			Available: v.Available,
		})
	}

	sel := e.selector.Select(content, candidates)
	resp := &Response{Messages: []*chat.Message{userMsg}}

	for i, id := range sel.Responders {
		if i > 0 && e.turnDelay > 0 {
			time.Sleep(e.turnDelay)
		}
		tm := byID[id]
		if tm == nil {
			continue
		}
		msg, outcome, err := e.Turn(ctx, project, tm, verdicts[id], content)
		if err != nil {
			if e.metrics != nil {
				e.metrics.RecordError("orchestrator", "turn_failed")
			}
			// earlier turns stay committed
			return resp, fmt.Errorf("orchestrator: turn for %s: %w", tm.Name, err)
		}
		if e.metrics != nil {
			e.metrics.RecordTurn(id, outcome)
		}
		resp.Messages = append(resp.Messages, msg)
		if outcome != OutcomeAsleep {
			resp.ActiveAgents = append(resp.ActiveAgents, id)
		}
	}
	return resp, nil
}

// Turn runs one persona's reply turn and persists its result. The
// returned outcome is one of the Outcome constants.
func (e *Engine) Turn(ctx context.Context, project *projects.Project, tm *roster.Teammate, verdict availability.Verdict, userContent string) (*chat.Message, string, error) {
	if !verdict.Available {
		msg, err := e.persistSleep(ctx, project, tm, verdict)
		return msg, OutcomeAsleep, err
	}

	prompt := e.buildPrompt(ctx, project, tm)
	text, err := e.llm.Complete(ctx, userContent, prompt, llm.Options{
		MaxTokens:      tm.Config.MaxTokens,
		Temperature:    tm.Config.Temperature,
		ResponseFormat: llm.FormatText,
	})
	if err != nil {
		// reaches here only when every configured provider failed, or
		// none was configured. The turn fails, but the conversation
		// never shows a silent gap: a canned apology is persisted
		// best-effort before the error surfaces.
		apology := e.pick(tm.Config.FallbackResponses)
		if _, perr := e.chat.Append(ctx, project.ID, chat.Message{
			SenderID:   tm.ID,
			SenderName: tm.Name,
			SenderType: roster.TypeAI,
			Content:    apology,
			Day:        project.CurrentDay,
		}); perr != nil {
			e.logger.Error().Err(perr).Str("persona", tm.ID).Msg("apology persist failed")
		}
		return nil, "", err
	}

	outcome := OutcomePersisted
	if strings.TrimSpace(text) == "" {
		text = e.pick(tm.Config.FallbackResponses)
		outcome = OutcomeFallbackPersisted
		e.logger.Warn().Str("persona", tm.ID).Msg("empty generation, persisting fallback reply")
	} else {
		text = TruncateWords(text, e.wordCap)
		text = ensureNamePrefix(text, tm)
	}

	msg, err := e.chat.Append(ctx, project.ID, chat.Message{
		SenderID:   tm.ID,
		SenderName: tm.Name,
		SenderType: roster.TypeAI,
		Content:    text,
		Day:        project.CurrentDay,
	})
	if err != nil {
		return nil, "", err
	}
	e.remember(project, msg)

	// quota and stats writes are best effort, never fail the turn
	if err := e.roster.RecordReply(ctx, project.ID, tm.ID, project.CurrentDay); err != nil {
		e.logger.Error().Err(err).Str("persona", tm.ID).Msg("reply bookkeeping failed")
	}
	return msg, outcome, nil
}

// persistSleep stores a canned sleep message drawn from the persona's
// pool, with the availability detail appended. No quota is consumed.
func (e *Engine) persistSleep(ctx context.Context, project *projects.Project, tm *roster.Teammate, verdict availability.Verdict) (*chat.Message, error) {
	text := e.pick(tm.Config.SleepResponses)
	if verdict.Message != "" {
		text = text + " (" + verdict.Message + ")"
	}
	msg, err := e.chat.Append(ctx, project.ID, chat.Message{
		SenderID:   tm.ID,
		SenderName: tm.Name,
		SenderType: roster.TypeAI,
		Content:    text,
		Day:        project.CurrentDay,
	})
	if err != nil {
		return nil, err
	}
	e.remember(project, msg)
	return msg, nil
}

func (e *Engine) buildPrompt(ctx context.Context, project *projects.Project, tm *roster.Teammate) string {
	def := e.catalog.Get(tm.ID)
	if def == nil {
		// teammate without a catalog entry still gets a minimal identity
		def = &persona.Definition{ID: tm.ID, Name: tm.Name, Role: tm.Role,
			SystemPrompt: "You are {{name}}, the {{role}} on this project."}
	}

	allTasks := e.taskCache.Get(project.ID)
	if allTasks == nil {
		list, err := e.tasks.List(ctx, project.ID)
		if err != nil {
			e.logger.Warn().Err(err).Str("project_id", project.ID).Msg("task list unavailable for prompt")
		} else {
			e.taskCache.Put(project.ID, list)
			allTasks = list
		}
	}

	in := assembler.Input{
		Project: &assembler.Project{
			ID:           project.ID,
			Title:        project.Title,
			Description:  project.Description,
			CurrentDay:   project.CurrentDay,
			DurationDays: project.DurationDays,
		},
		Persona:  def,
		AllTasks: allTasks,
		NameFor: func(id string) string {
			if d := e.catalog.Get(id); d != nil {
				return d.Name
			}
			return ""
		},
		SameDay:   e.conv.History(project.ID, project.CurrentDay, assembler.SameDayWindow),
		PriorDays: e.conv.PriorDays(project.ID, project.CurrentDay, assembler.PriorDayWindow),
	}
	return assembler.RenderPrompt(def, assembler.Build(in))
}

// hydrate rebuilds conversation memory for a project from durable chat
// history. The cache is process-local, so after a restart it starts
// empty; the first message handled for each project reads the stored
// conversation back in, day-tagged, before anything new is recorded.
// Messages stored before day tags existed land on the current day.
func (e *Engine) hydrate(ctx context.Context, project *projects.Project) {
	e.hydrateMu.Lock()
	defer e.hydrateMu.Unlock()
	if e.hydrated[project.ID] {
		return
	}
	e.hydrated[project.ID] = true

	msgs, err := e.chat.List(ctx, project.ID, 0)
	if err != nil {
		e.logger.Warn().Err(err).Str("project_id", project.ID).Msg("conversation memory rebuild failed")
		return
	}
	for _, m := range msgs {
		day := m.Day
		if day <= 0 {
			day = project.CurrentDay
		}
		e.conv.Record(project.ID, day, convmem.Entry{
			SenderID:   m.SenderID,
			SenderName: m.SenderName,
			SenderType: m.SenderType,
			Content:    m.Content,
			Timestamp:  m.Timestamp,
		})
	}
}

func (e *Engine) remember(project *projects.Project, msg *chat.Message) {
	e.conv.Record(project.ID, project.CurrentDay, convmem.Entry{
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		SenderType: msg.SenderType,
		Content:    msg.Content,
		Timestamp:  msg.Timestamp,
	})
}

// pick draws uniformly from a response pool.
func (e *Engine) pick(pool []string) string {
	if len(pool) == 0 {
		return "I'm away from my desk right now."
	}
	idx := int(e.rand() * float64(len(pool)))
	if idx >= len(pool) {
		idx = len(pool) - 1
	}
	return pool[idx]
}

// TruncateWords cuts text to at most limit words on a word boundary and
// appends an ellipsis marker when anything was cut.
func TruncateWords(text string, limit int) string {
	words := strings.Fields(text)
	if len(words) <= limit {
		return strings.TrimSpace(text)
	}
	return strings.Join(words[:limit], " ") + "..."
}

// ensureNamePrefix guarantees the persona is identifiable in its reply:
// when neither its id nor its display name appears (case-insensitively)
// the display name is prepended.
func ensureNamePrefix(text string, tm *roster.Teammate) string {
	lower := strings.ToLower(text)
	if strings.Contains(lower, strings.ToLower(tm.Name)) || strings.Contains(lower, strings.ToLower(tm.ID)) {
		return text
	}
	return tm.Name + ": " + text
}
