// Package projects manages project metadata and lifecycle: creation
// seeds the teammate roster, day advancement refreshes daily quotas.
package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/crewmate-app/crewmate/internal/docstore"
	"github.com/crewmate-app/crewmate/internal/persona"
	"github.com/crewmate-app/crewmate/internal/roster"
)

const collection = "projects"

// Project is the metadata record for one collaborative project.
type Project struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	OwnerID      string `json:"ownerId"`
	OwnerName    string `json:"ownerName"`
	CurrentDay   int    `json:"currentDay"`
	DurationDays int    `json:"durationDays"`
	CreatedAt    int64  `json:"createdAt"`
}

// Store owns project records and drives lifecycle transitions.
type Store struct {
	ds      docstore.Store
	roster  *roster.Registry
	catalog *persona.Catalog
	logger  zerolog.Logger
}

// NewStore creates a project store.
func NewStore(ds docstore.Store, reg *roster.Registry, catalog *persona.Catalog, logger zerolog.Logger) *Store {
	return &Store{
		ds:      ds,
		roster:  reg,
		catalog: catalog,
		logger:  logger.With().Str("component", "projects").Logger(),
	}
}

// CreateInput holds the caller-supplied fields of a new project.
type CreateInput struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	DurationDays int    `json:"durationDays"`
}

// Create stores a new project on day 1 and seeds its teammate roster
// from the persona catalog.
func (s *Store) Create(ctx context.Context, in CreateInput, ownerUID, ownerName string) (*Project, error) {
	if in.Title == "" {
		return nil, fmt.Errorf("projects: title is required")
	}
	if in.DurationDays <= 0 {
		in.DurationDays = 14
	}

	p := &Project{
		Title:        in.Title,
		Description:  in.Description,
		OwnerID:      ownerUID,
		OwnerName:    ownerName,
		CurrentDay:   1,
		DurationDays: in.DurationDays,
		CreatedAt:    time.Now().UnixMilli(),
	}
	doc, err := encode(p)
	if err != nil {
		return nil, err
	}
	id, err := s.ds.Add(ctx, collection, doc)
	if err != nil {
		return nil, fmt.Errorf("projects: create: %w", err)
	}
	p.ID = id
	if err := s.ds.Update(ctx, collection, id, []docstore.PatchOp{
		docstore.SetField("id", id),
	}); err != nil {
		return nil, fmt.Errorf("projects: create: %w", err)
	}

	count, err := s.roster.Initialize(ctx, id, ownerUID, ownerName, s.catalog)
	if err != nil {
		return nil, fmt.Errorf("projects: seed roster: %w", err)
	}
	s.logger.Info().Str("project_id", id).Int("teammates", count).Msg("project created")
	return p, nil
}

// Get returns a project, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Project, error) {
	doc, err := s.ds.Get(ctx, collection, id)
	if err != nil {
		return nil, fmt.Errorf("projects: get: %w", err)
	}
	if doc == nil {
		return nil, nil
	}
	p, err := decode(doc)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return p, nil
}

// ListByOwner returns the projects owned by one user, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerUID string) ([]*Project, error) {
	snaps, err := s.ds.Query(ctx, collection,
		[]docstore.Filter{{Field: "ownerId", Op: "==", Value: ownerUID}},
		&docstore.OrderBy{Field: "createdAt", Desc: true}, 0)
	if err != nil {
		return nil, fmt.Errorf("projects: list: %w", err)
	}
	out := make([]*Project, 0, len(snaps))
	for _, snap := range snaps {
		p, err := decode(snap.Data)
		if err != nil {
			return nil, err
		}
		p.ID = snap.ID
		out = append(out, p)
	}
	return out, nil
}

// AdvanceDay moves the project to the next day, capped at the project
// duration, and refills AI daily quotas for teammates whose last
// activity predates the new day. Returns the new current day.
func (s *Store) AdvanceDay(ctx context.Context, id string) (int, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, fmt.Errorf("projects: advance day: project %s not found", id)
	}
	if p.CurrentDay >= p.DurationDays {
		return p.CurrentDay, nil
	}

	day := p.CurrentDay + 1
	if err := s.ds.Update(ctx, collection, id, []docstore.PatchOp{
		docstore.SetField("currentDay", day),
	}); err != nil {
		return 0, fmt.Errorf("projects: advance day: %w", err)
	}
	if err := s.roster.RefreshDailyQuota(ctx, id, day); err != nil {
		// quota refresh failure does not roll the day back
		s.logger.Error().Err(err).Str("project_id", id).Msg("quota refresh failed")
	}
	s.logger.Info().Str("project_id", id).Int("day", day).Msg("advanced project day")
	return day, nil
}

// Delete removes the project record. Subcollections (teammates, chats,
// tasks) are left in place; whole-project cascade is not implemented.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.ds.Delete(ctx, collection, id); err != nil {
		return fmt.Errorf("projects: delete: %w", err)
	}
	return nil
}

func encode(p *Project) (docstore.Document, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("projects: encode: %w", err)
	}
	var doc docstore.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("projects: encode: %w", err)
	}
	return doc, nil
}

func decode(doc docstore.Document) (*Project, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("projects: decode: %w", err)
	}
	var p Project
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("projects: decode: %w", err)
	}
	return &p, nil
}
