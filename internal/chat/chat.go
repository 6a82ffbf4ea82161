// Package chat persists project conversations. Timestamps are assigned
// by the writer, monotonically increasing per project, so message order
// is total by construction.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewmate-app/crewmate/internal/docstore"
)

// Message types.
const (
	TypeMessage = "message"
	TypeSystem  = "system"
)

// Message is one turn in a project conversation. Immutable once stored.
// Day records the project day the message was posted on, so conversation
// memory can be rebuilt into per-day windows after a restart.
type Message struct {
	ID         string `json:"messageId"`
	ProjectID  string `json:"projectId"`
	SenderID   string `json:"senderId"`
	SenderName string `json:"senderName"`
	SenderType string `json:"senderType"`
	Content    string `json:"content"`
	Timestamp  int64  `json:"timestamp"`
	Day        int    `json:"day,omitempty"`
	Type       string `json:"type"`
	InReplyTo  string `json:"inReplyTo,omitempty"`
}

// Store appends and lists chat messages.
type Store struct {
	ds     docstore.Store
	logger zerolog.Logger

	mu   sync.Mutex
	last map[string]int64

	now func() int64
}

// NewStore creates a chat store.
func NewStore(ds docstore.Store, logger zerolog.Logger) *Store {
	return &Store{
		ds:     ds,
		logger: logger.With().Str("component", "chat").Logger(),
		last:   make(map[string]int64),
		now:    func() int64 { return time.Now().UnixMilli() },
	}
}

func collection(projectID string) string {
	return docstore.Sub("projects", projectID, "chats")
}

// nextTimestamp hands out a per-project timestamp strictly greater than
// any it has handed out before, even when the clock has not moved.
func (s *Store) nextTimestamp(projectID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts := s.now()
	if prev := s.last[projectID]; ts <= prev {
		ts = prev + 1
	}
	s.last[projectID] = ts
	return ts
}

// Append stores a message, assigning its id and timestamp. The stored
// message is returned.
func (s *Store) Append(ctx context.Context, projectID string, msg Message) (*Message, error) {
	if msg.Content == "" {
		return nil, fmt.Errorf("chat: content is required")
	}
	if msg.Type == "" {
		msg.Type = TypeMessage
	}
	if msg.Type != TypeMessage && msg.Type != TypeSystem {
		return nil, fmt.Errorf("chat: invalid message type %q", msg.Type)
	}
	msg.ProjectID = projectID
	msg.Timestamp = s.nextTimestamp(projectID)

	doc, err := encode(&msg)
	if err != nil {
		return nil, err
	}
	id, err := s.ds.Add(ctx, collection(projectID), doc)
	if err != nil {
		return nil, fmt.Errorf("chat: append: %w", err)
	}
	msg.ID = id
	if err := s.ds.Update(ctx, collection(projectID), id, []docstore.PatchOp{
		docstore.SetField("messageId", id),
	}); err != nil {
		return nil, fmt.Errorf("chat: append: %w", err)
	}
	return &msg, nil
}

// List returns a project's messages ascending by timestamp. A limit of
// zero means all; a positive limit keeps the most recent messages,
// still in ascending order.
func (s *Store) List(ctx context.Context, projectID string, limit int) ([]*Message, error) {
	snaps, err := s.ds.Query(ctx, collection(projectID), nil,
		&docstore.OrderBy{Field: "timestamp"}, 0)
	if err != nil {
		return nil, fmt.Errorf("chat: list: %w", err)
	}
	out := make([]*Message, 0, len(snaps))
	for _, snap := range snaps {
		m, err := decode(snap.Data)
		if err != nil {
			return nil, err
		}
		m.ID = snap.ID
		out = append(out, m)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ListSince returns messages with timestamps strictly after ts,
// ascending. Used by polling clients.
func (s *Store) ListSince(ctx context.Context, projectID string, ts int64) ([]*Message, error) {
	snaps, err := s.ds.Query(ctx, collection(projectID),
		[]docstore.Filter{{Field: "timestamp", Op: ">", Value: ts}},
		&docstore.OrderBy{Field: "timestamp"}, 0)
	if err != nil {
		return nil, fmt.Errorf("chat: list since %d: %w", ts, err)
	}
	out := make([]*Message, 0, len(snaps))
	for _, snap := range snaps {
		m, err := decode(snap.Data)
		if err != nil {
			return nil, err
		}
		m.ID = snap.ID
		out = append(out, m)
	}
	return out, nil
}

func encode(m *Message) (docstore.Document, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("chat: encode: %w", err)
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("chat: encode: %w", err)
	}
	return doc, nil
}

func decode(doc docstore.Document) (*Message, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("chat: decode: %w", err)
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("chat: decode: %w", err)
	}
	return &m, nil
}
