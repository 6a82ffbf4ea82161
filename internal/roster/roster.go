// Package roster holds the per-project teammate records: the mutable
// instantiation of a persona (or of the human owner), persisted in the
// document store.
package roster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewmate-app/crewmate/internal/docstore"
	"github.com/crewmate-app/crewmate/internal/persona"
)

// Teammate types.
const (
	TypeHuman = "human"
	TypeAI    = "ai"
)

// Teammate statuses.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Config carries the generation knobs for an AI teammate, snapshotted from
// the persona definition at project-initialization time. Present iff the
// teammate is AI.
type Config struct {
	Lead              bool     `json:"lead,omitempty"`
	IsActive          bool     `json:"isActive"`
	MaxMessagesPerDay int      `json:"maxMessagesPerDay"`
	ActiveHourStart   int      `json:"activeHourStart"`
	ActiveHourEnd     int      `json:"activeHourEnd"`
	ActiveDays        []int    `json:"activeDays,omitempty"`
	Temperature       float64  `json:"temperature"`
	MaxTokens         int      `json:"maxTokens"`
	SystemPrompt      string   `json:"systemPrompt"`
	SleepResponses    []string `json:"sleepResponses"`
	FallbackResponses []string `json:"fallbackResponses"`
}

// State is the mutable per-project runtime state of a teammate.
type State struct {
	Status            string   `json:"status"`
	MessagesLeftToday int      `json:"messagesLeftToday"`
	LastActiveDay     int      `json:"lastActiveDay"`
	LastActive        int64    `json:"lastActive,omitempty"` // unix ms
	CurrentTask       string   `json:"currentTask,omitempty"`
	AssignedTasks     []string `json:"assignedTasks,omitempty"`
}

// Stats accumulates activity counters.
type Stats struct {
	MessagesSent   int `json:"messagesSent"`
	TasksCompleted int `json:"tasksCompleted"`
}

// Teammate is one participant in a project.
type Teammate struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Role   string  `json:"role,omitempty"`
	Avatar string  `json:"avatar,omitempty"`
	Color  string  `json:"color,omitempty"`
	Config *Config `json:"config,omitempty"`
	State  State   `json:"state"`
	Stats  Stats   `json:"stats"`
}

// IsAI reports whether the record is an AI persona instantiation.
func (t *Teammate) IsAI() bool { return t.Type == TypeAI }

// Registry reads and writes teammate records for a project.
type Registry struct {
	ds     docstore.Store
	logger zerolog.Logger
}

// NewRegistry creates a teammate registry over the given document store.
func NewRegistry(ds docstore.Store, logger zerolog.Logger) *Registry {
	return &Registry{
		ds:     ds,
		logger: logger.With().Str("component", "roster").Logger(),
	}
}

func collection(projectID string) string {
	return docstore.Sub("projects", projectID, "teammates")
}

// Initialize creates one record per catalog persona plus one for the owning
// human. Idempotent by existence check: when any teammate records already
// exist the call is a no-op returning 0. The check and the writes are not
// one transaction; a race between them is accepted.
func (r *Registry) Initialize(ctx context.Context, projectID, ownerUID, ownerName string, catalog *persona.Catalog) (int, error) {
	existing, err := r.ds.Query(ctx, collection(projectID), nil, nil, 1)
	if err != nil {
		return 0, fmt.Errorf("roster: check existing: %w", err)
	}
	if len(existing) > 0 {
		r.logger.Debug().Str("project", projectID).Msg("roster already initialized")
		return 0, nil
	}

	count := 0
	for _, def := range catalog.All() {
		tm := fromDefinition(def)
		if err := r.put(ctx, projectID, tm); err != nil {
			return count, err
		}
		count++
	}

	owner := &Teammate{
		ID:   ownerUID,
		Name: ownerName,
		Type: TypeHuman,
		Role: "Owner",
		State: State{
			Status: StatusOnline,
		},
	}
	if err := r.put(ctx, projectID, owner); err != nil {
		return count, err
	}
	count++

	r.logger.Info().Str("project", projectID).Int("teammates", count).Msg("roster initialized")
	return count, nil
}

func fromDefinition(def persona.Definition) *Teammate {
	return &Teammate{
		ID:     def.ID,
		Name:   def.Name,
		Type:   TypeAI,
		Role:   def.Role,
		Avatar: def.Avatar,
		Color:  def.Color,
		Config: &Config{
			Lead:              def.Lead,
			IsActive:          def.IsActive,
			MaxMessagesPerDay: def.MaxMessagesPerDay,
			ActiveHourStart:   def.ActiveHourStart,
			ActiveHourEnd:     def.ActiveHourEnd,
			ActiveDays:        def.ActiveDays,
			Temperature:       def.Temperature,
			MaxTokens:         def.MaxTokens,
			SystemPrompt:      def.RenderSystemPrompt(),
			SleepResponses:    def.SleepResponses,
			FallbackResponses: def.FallbackResponses,
		},
		State: State{
			Status:            StatusOffline,
			MessagesLeftToday: def.MaxMessagesPerDay,
			LastActiveDay:     1,
		},
	}
}

// List returns all teammates of a project.
func (r *Registry) List(ctx context.Context, projectID string) ([]*Teammate, error) {
	snaps, err := r.ds.Query(ctx, collection(projectID), nil, nil, 0)
	if err != nil {
		return nil, fmt.Errorf("roster: list: %w", err)
	}
	out := make([]*Teammate, 0, len(snaps))
	for _, s := range snaps {
		tm, err := decode(s.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, tm)
	}
	return out, nil
}

// Get returns one teammate, or nil when absent.
func (r *Registry) Get(ctx context.Context, projectID, id string) (*Teammate, error) {
	doc, err := r.ds.Get(ctx, collection(projectID), id)
	if err != nil {
		return nil, fmt.Errorf("roster: get: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	return decode(doc)
}

// UpdateState applies patch ops to a teammate record as a read-modify-write.
func (r *Registry) UpdateState(ctx context.Context, projectID, id string, ops []docstore.PatchOp) error {
	if err := r.ds.Update(ctx, collection(projectID), id, ops); err != nil {
		return fmt.Errorf("roster: update %s: %w", id, err)
	}
	return nil
}

// RecordReply charges one reply against an AI teammate's daily quota and
// bumps its activity markers. Independent best-effort write relative to the
// message persist that preceded it.
func (r *Registry) RecordReply(ctx context.Context, projectID, id string, day int) error {
	return r.UpdateState(ctx, projectID, id, []docstore.PatchOp{
		docstore.Increment("state.messagesLeftToday", -1),
		docstore.Increment("stats.messagesSent", 1),
		docstore.SetField("state.lastActiveDay", day),
		docstore.SetField("state.lastActive", time.Now().UnixMilli()),
		docstore.SetField("state.status", StatusOnline),
	})
}

// RefreshDailyQuota refills messagesLeftToday for AI teammates whose
// lastActiveDay predates the current project day.
func (r *Registry) RefreshDailyQuota(ctx context.Context, projectID string, currentDay int) error {
	teammates, err := r.List(ctx, projectID)
	if err != nil {
		return err
	}
	for _, tm := range teammates {
		if !tm.IsAI() || tm.State.LastActiveDay >= currentDay {
			continue
		}
		err := r.UpdateState(ctx, projectID, tm.ID, []docstore.PatchOp{
			docstore.SetField("state.messagesLeftToday", tm.Config.MaxMessagesPerDay),
			docstore.SetField("state.lastActiveDay", currentDay),
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) put(ctx context.Context, projectID string, tm *Teammate) error {
	doc, err := encode(tm)
	if err != nil {
		return err
	}
	if err := r.ds.Set(ctx, collection(projectID), tm.ID, doc, false); err != nil {
		return fmt.Errorf("roster: put %s: %w", tm.ID, err)
	}
	return nil
}

func encode(tm *Teammate) (docstore.Document, error) {
	raw, err := json.Marshal(tm)
	if err != nil {
		return nil, fmt.Errorf("roster: encode: %w", err)
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("roster: encode: %w", err)
	}
	return doc, nil
}

func decode(doc docstore.Document) (*Teammate, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("roster: decode: %w", err)
	}
	var tm Teammate
	if err := json.Unmarshal(raw, &tm); err != nil {
		return nil, fmt.Errorf("roster: decode: %w", err)
	}
	return &tm, nil
}
