// Package tasks manages kanban items for a project.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewmate-app/crewmate/internal/docstore"
)

// Task statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "inprogress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Statuses lists the kanban columns in board order.
var Statuses = []string{StatusTodo, StatusInProgress, StatusReview, StatusDone}

// Task is one kanban item.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	AssignedTo  string `json:"assignedTo,omitempty"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"`
	CreatedAt   int64  `json:"createdAt"`
	CompletedAt int64  `json:"completedAt,omitempty"`
}

// ValidStatus reports whether s names a kanban column.
func ValidStatus(s string) bool {
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// Store reads and writes tasks in the document store.
type Store struct {
	ds     docstore.Store
	logger zerolog.Logger
}

// NewStore creates a task store.
func NewStore(ds docstore.Store, logger zerolog.Logger) *Store {
	return &Store{
		ds:     ds,
		logger: logger.With().Str("component", "tasks").Logger(),
	}
}

func collection(projectID string) string {
	return docstore.Sub("projects", projectID, "tasks")
}

// CreateInput holds the caller-supplied fields of a new task.
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	AssignedTo  string `json:"assignedTo"`
	Status      string `json:"status"`
	Priority    int    `json:"priority"`
}

// Create inserts a new task. Status defaults to todo, priority to 2.
func (s *Store) Create(ctx context.Context, projectID string, in CreateInput) (*Task, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("tasks: title is required")
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	if !ValidStatus(in.Status) {
		return nil, fmt.Errorf("tasks: invalid status %q", in.Status)
	}
	if in.Priority < 1 || in.Priority > 4 {
		in.Priority = 2
	}

	t := &Task{
		Title:       in.Title,
		Description: in.Description,
		AssignedTo:  in.AssignedTo,
		Status:      in.Status,
		Priority:    in.Priority,
		CreatedAt:   time.Now().UnixMilli(),
	}
	doc, err := encode(t)
	if err != nil {
		return nil, err
	}
	id, err := s.ds.Add(ctx, collection(projectID), doc)
	if err != nil {
		return nil, fmt.Errorf("tasks: create: %w", err)
	}
	t.ID = id
	// store the generated id inside the document as well
	if err := s.ds.Update(ctx, collection(projectID), id, []docstore.PatchOp{
		docstore.SetField("id", id),
	}); err != nil {
		return nil, fmt.Errorf("tasks: create: %w", err)
	}
	return t, nil
}

// List returns all tasks of a project, oldest first.
func (s *Store) List(ctx context.Context, projectID string) ([]*Task, error) {
	snaps, err := s.ds.Query(ctx, collection(projectID), nil,
		&docstore.OrderBy{Field: "createdAt"}, 0)
	if err != nil {
		return nil, fmt.Errorf("tasks: list: %w", err)
	}
	out := make([]*Task, 0, len(snaps))
	for _, snap := range snaps {
		t, err := decode(snap.Data)
		if err != nil {
			return nil, err
		}
		t.ID = snap.ID
		out = append(out, t)
	}
	return out, nil
}

// Get returns one task, or nil when absent.
func (s *Store) Get(ctx context.Context, projectID, taskID string) (*Task, error) {
	doc, err := s.ds.Get(ctx, collection(projectID), taskID)
	if err != nil {
		return nil, fmt.Errorf("tasks: get: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	t, err := decode(doc)
	if err != nil {
		return nil, err
	}
	t.ID = taskID
	return t, nil
}

// UpdateInput holds optional field updates. Nil means leave unchanged.
type UpdateInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	AssignedTo  *string `json:"assignedTo"`
	Status      *string `json:"status"`
	Priority    *int    `json:"priority"`
}

// Update applies the provided fields. Any status transition is allowed;
// moving into done stamps completedAt, moving out clears it.
func (s *Store) Update(ctx context.Context, projectID, taskID string, in UpdateInput) (*Task, error) {
	var ops []docstore.PatchOp
	if in.Title != nil {
		ops = append(ops, docstore.SetField("title", *in.Title))
	}
	if in.Description != nil {
		ops = append(ops, docstore.SetField("description", *in.Description))
	}
	if in.AssignedTo != nil {
		ops = append(ops, docstore.SetField("assignedTo", *in.AssignedTo))
	}
	if in.Priority != nil {
		if *in.Priority < 1 || *in.Priority > 4 {
			return nil, fmt.Errorf("tasks: invalid priority %d", *in.Priority)
		}
		ops = append(ops, docstore.SetField("priority", *in.Priority))
	}
	if in.Status != nil {
		if !ValidStatus(*in.Status) {
			return nil, fmt.Errorf("tasks: invalid status %q", *in.Status)
		}
		ops = append(ops, docstore.SetField("status", *in.Status))
		if *in.Status == StatusDone {
			ops = append(ops, docstore.SetField("completedAt", time.Now().UnixMilli()))
		} else {
			ops = append(ops, docstore.SetField("completedAt", int64(0)))
		}
	}
	if len(ops) == 0 {
		return s.Get(ctx, projectID, taskID)
	}
	if err := s.ds.Update(ctx, collection(projectID), taskID, ops); err != nil {
		return nil, fmt.Errorf("tasks: update %s: %w", taskID, err)
	}
	return s.Get(ctx, projectID, taskID)
}

// Delete removes a task.
func (s *Store) Delete(ctx context.Context, projectID, taskID string) error {
	if err := s.ds.Delete(ctx, collection(projectID), taskID); err != nil {
		return fmt.Errorf("tasks: delete %s: %w", taskID, err)
	}
	return nil
}

func encode(t *Task) (docstore.Document, error) {
	raw, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("tasks: encode: %w", err)
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("tasks: encode: %w", err)
	}
	return doc, nil
}

func decode(doc docstore.Document) (*Task, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("tasks: decode: %w", err)
	}
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("tasks: decode: %w", err)
	}
	return &t, nil
}
