// Package persona defines the static AI-teammate archetypes. A Definition is
// immutable; per-project mutable state lives in internal/roster as
// TeammateState, joined by persona ID. The two shapes are never merged.
package persona

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Definition describes one persona archetype.
type Definition struct {
	// ID is the stable persona identifier, e.g. "rasoa".
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Role string `yaml:"role" json:"role"`

	// Display metadata.
	Avatar string `yaml:"avatar" json:"avatar"`
	Color  string `yaml:"color" json:"color"`

	// Lead marks the persona addressed first in mention fallbacks.
	Lead bool `yaml:"lead" json:"lead"`

	// IsActive gates the persona globally; an inactive persona never responds.
	IsActive bool `yaml:"is_active" json:"isActive"`

	// Quota and activity window.
	MaxMessagesPerDay int   `yaml:"max_messages_per_day" json:"maxMessagesPerDay"`
	ActiveHourStart   int   `yaml:"active_hour_start" json:"activeHourStart"` // UTC, inclusive
	ActiveHourEnd     int   `yaml:"active_hour_end" json:"activeHourEnd"`     // UTC, exclusive
	ActiveDays        []int `yaml:"active_days" json:"activeDays"`            // project days; empty = every day

	// Generation knobs.
	Temperature float64 `yaml:"temperature" json:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" json:"maxTokens"`

	// SystemPrompt is the first-person identity injected into the
	// instruction context. Supports {{name}} and {{role}} placeholders.
	SystemPrompt string `yaml:"system_prompt" json:"systemPrompt"`

	// Canned response pools.
	SleepResponses    []string `yaml:"sleep_responses" json:"sleepResponses"`
	FallbackResponses []string `yaml:"fallback_responses" json:"fallbackResponses"`
}

// Validate checks required fields and sets defaults.
func (d *Definition) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("persona: id is required")
	}
	if d.Name == "" {
		return fmt.Errorf("persona %s: name is required", d.ID)
	}
	if d.MaxMessagesPerDay <= 0 {
		d.MaxMessagesPerDay = 20
	}
	if d.MaxTokens <= 0 {
		d.MaxTokens = 120
	}
	if d.Temperature == 0 {
		d.Temperature = 0.7
	}
	if d.ActiveHourEnd == 0 {
		d.ActiveHourEnd = 24
	}
	if len(d.SleepResponses) == 0 {
		d.SleepResponses = []string{d.Name + " is away right now."}
	}
	if len(d.FallbackResponses) == 0 {
		d.FallbackResponses = []string{d.Name + ": Sorry, I lost my train of thought. Could you say that again?"}
	}
	return nil
}

// RenderSystemPrompt expands the placeholders in the system prompt template.
func (d *Definition) RenderSystemPrompt() string {
	s := d.SystemPrompt
	s = strings.ReplaceAll(s, "{{name}}", d.Name)
	s = strings.ReplaceAll(s, "{{role}}", d.Role)
	return s
}

// ActiveOnDay reports whether the persona works on the given project day.
func (d *Definition) ActiveOnDay(day int) bool {
	if len(d.ActiveDays) == 0 {
		return true
	}
	for _, ad := range d.ActiveDays {
		if ad == day {
			return true
		}
	}
	return false
}

// WithinActiveHours reports whether the given UTC hour falls inside the
// persona's working window. Windows may wrap midnight.
func (d *Definition) WithinActiveHours(hour int) bool {
	if d.ActiveHourStart == d.ActiveHourEnd {
		return true
	}
	if d.ActiveHourStart < d.ActiveHourEnd {
		return hour >= d.ActiveHourStart && hour < d.ActiveHourEnd
	}
	return hour >= d.ActiveHourStart || hour < d.ActiveHourEnd
}

// Catalog is an ordered set of persona definitions.
type Catalog struct {
	defs []Definition
}

// NewCatalog validates and wraps a definition list.
func NewCatalog(defs []Definition) (*Catalog, error) {
	seen := make(map[string]bool, len(defs))
	out := make([]Definition, len(defs))
	for i := range defs {
		d := defs[i]
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("persona: duplicate id %q", d.ID)
		}
		seen[d.ID] = true
		out[i] = d
	}
	return &Catalog{defs: out}, nil
}

// Load reads a catalog override from a YAML file, falling back to the
// built-in catalog when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return NewCatalog(Defaults())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("persona: read catalog: %w", err)
	}
	var defs []Definition
	if err := yaml.Unmarshal(raw, &defs); err != nil {
		return nil, fmt.Errorf("persona: parse catalog: %w", err)
	}
	return NewCatalog(defs)
}

// All returns the definitions in catalog order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

// Get returns the definition with the given ID, or nil.
func (c *Catalog) Get(id string) *Definition {
	for i := range c.defs {
		if c.defs[i].ID == id {
			d := c.defs[i]
			return &d
		}
	}
	return nil
}

// ByName returns the definition whose name matches case-insensitively, or nil.
func (c *Catalog) ByName(name string) *Definition {
	for i := range c.defs {
		if strings.EqualFold(c.defs[i].Name, name) {
			d := c.defs[i]
			return &d
		}
	}
	return nil
}

// Lead returns the lead persona, or the first persona when none is marked.
func (c *Catalog) Lead() *Definition {
	for i := range c.defs {
		if c.defs[i].Lead {
			d := c.defs[i]
			return &d
		}
	}
	if len(c.defs) == 0 {
		return nil
	}
	d := c.defs[0]
	return &d
}
