// Package selector decides, per incoming chat message, the ordered set of AI
// teammates that will reply: mention-driven when the message addresses
// someone, probability-driven otherwise. All randomness flows through an
// injectable source so selection is deterministic under test.
package selector

import (
	"strings"
)

// Weighting table names.
const (
	TableDual  = "dual"
	TableMulti = "multi"
)

// Candidate is one AI persona eligible for selection.
type Candidate struct {
	ID        string
	Name      string
	Lead      bool
	Available bool
}

// Result is the ordered selection outcome.
type Result struct {
	// Responders holds teammate IDs in reply order.
	Responders []string

	// Mentioned is true when the message explicitly addressed a teammate.
	Mentioned bool

	// LeadUnavailable is set when the lead persona was mentioned but cannot
	// respond, and the remaining personas were substituted.
	LeadUnavailable bool
}

// RandSource yields uniform values in [0, 1).
type RandSource func() float64

// Selector picks responders using one of the two weighting tables.
type Selector struct {
	table string
	rand  RandSource
}

// New creates a selector. table must be TableDual or TableMulti.
func New(table string, rnd RandSource) *Selector {
	return &Selector{table: table, rand: rnd}
}

// Select analyzes the message and returns the teammates that will reply,
// in order. Candidates arrive with availability already evaluated.
func (s *Selector) Select(content string, candidates []Candidate) Result {
	// a mention token may be the persona's id or its display name
	byName := make(map[string]Candidate, 2*len(candidates))
	for _, c := range candidates {
		byName[strings.ToLower(c.Name)] = c
		byName[strings.ToLower(c.ID)] = c
	}

	var mentioned []Candidate
	seen := make(map[string]bool)
	for _, name := range ParseMentions(content) {
		if c, ok := byName[name]; ok && !seen[c.ID] {
			seen[c.ID] = true
			mentioned = append(mentioned, c)
		}
	}

	if len(mentioned) > 0 {
		return s.selectMentioned(mentioned, candidates)
	}

	pool := available(candidates)
	switch s.table {
	case TableMulti:
		return Result{Responders: s.multiTable(pool)}
	default:
		return Result{Responders: s.dualTable(pool)}
	}
}

// selectMentioned handles the explicit-mention path. A mentioned teammate
// responds even when unavailable (the orchestrator turns that into a sleep
// message), except the lead: a mentioned-but-unavailable lead is substituted
// by the remaining available personas, flagged for the caller.
func (s *Selector) selectMentioned(mentioned, all []Candidate) Result {
	if len(mentioned) == 1 && mentioned[0].Lead && !mentioned[0].Available {
		var subs []string
		for _, c := range all {
			if !c.Lead && c.Available {
				subs = append(subs, c.ID)
			}
		}
		return Result{Responders: subs, Mentioned: true, LeadUnavailable: true}
	}
	ids := make([]string, 0, len(mentioned))
	for _, c := range mentioned {
		ids = append(ids, c.ID)
	}
	return Result{Responders: ids, Mentioned: true}
}

// dualTable implements the two-persona chat surface weighting:
// one available persona replies 85% of the time; with two or more the draw
// partitions [0,1) into 15% both / 40% first alone / 45% second alone
// (a uniformly random persona when the pool exceeds two).
func (s *Selector) dualTable(pool []Candidate) []string {
	switch len(pool) {
	case 0:
		return nil
	case 1:
		if s.rand() < 0.85 {
			return []string{pool[0].ID}
		}
		return nil
	}

	r := s.rand()
	switch {
	case r < 0.15:
		first, second := pool[0].ID, pool[1].ID
		if s.rand() < 0.5 {
			first, second = second, first
		}
		return []string{first, second}
	case r < 0.55:
		return []string{pool[0].ID}
	default:
		if len(pool) == 2 {
			return []string{pool[1].ID}
		}
		idx := int(s.rand() * float64(len(pool)))
		if idx >= len(pool) {
			idx = len(pool) - 1
		}
		return []string{pool[idx].ID}
	}
}

// multiTable implements the multi-agent surface weighting over a lead and
// two teammates: 20% lead alone, 15% teammate A, 15% teammate B, 20% lead
// plus one teammate, 15% two non-lead teammates, 15% all three. Bands are
// checked in that order against a single draw. Selections are trimmed to
// the available pool.
func (s *Selector) multiTable(pool []Candidate) []string {
	if len(pool) == 0 {
		return nil
	}

	lead, others := splitLead(pool)
	if lead == nil {
		lead, others = &pool[0], pool[1:]
	}
	var a, b *Candidate
	if len(others) > 0 {
		a = &others[0]
	}
	if len(others) > 1 {
		b = &others[1]
	}

	r := s.rand()
	var picked []*Candidate
	switch {
	case r < 0.20:
		picked = []*Candidate{lead}
	case r < 0.35:
		picked = []*Candidate{a}
	case r < 0.50:
		picked = []*Candidate{b}
	case r < 0.70:
		picked = []*Candidate{lead, a}
	case r < 0.85:
		picked = []*Candidate{a, b}
	default:
		picked = []*Candidate{lead, a, b}
	}

	var ids []string
	for _, c := range picked {
		if c != nil {
			ids = append(ids, c.ID)
		}
	}
	if len(ids) == 0 {
		ids = []string{pool[0].ID}
	}
	return ids
}

func available(candidates []Candidate) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if c.Available {
			out = append(out, c)
		}
	}
	return out
}

func splitLead(pool []Candidate) (*Candidate, []Candidate) {
	for i := range pool {
		if pool[i].Lead {
			others := make([]Candidate, 0, len(pool)-1)
			others = append(others, pool[:i]...)
			others = append(others, pool[i+1:]...)
			return &pool[i], others
		}
	}
	return nil, pool
}
