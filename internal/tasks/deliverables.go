package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/crewmate-app/crewmate/internal/apperr"
	"github.com/crewmate-app/crewmate/internal/llm"
)

// DeliverableCount is how many items a generation run must produce.
const DeliverableCount = 4

// Deliverable is one suggested kanban item produced by the model.
type Deliverable struct {
	Deliverable string `json:"deliverable"`
}

// completer is the slice of the provider surface the generator needs.
type completer interface {
	Complete(ctx context.Context, userContent, instructions string, opts llm.Options) (string, error)
}

// Generator asks the model for project deliverables and validates the
// strict JSON contract before anything reaches the board.
type Generator struct {
	llm    completer
	logger zerolog.Logger
}

// NewGenerator creates a deliverables generator.
func NewGenerator(c completer, logger zerolog.Logger) *Generator {
	return &Generator{
		llm:    c,
		logger: logger.With().Str("component", "deliverables").Logger(),
	}
}

const deliverablesInstructions = `You are a project planner. Given a project description, propose exactly 4 concrete deliverables.
Respond with ONLY a JSON array of exactly 4 objects. Each object has exactly one key, "deliverable", whose value is a short actionable phrase.
Example: [{"deliverable":"Landing page wireframe"},{"deliverable":"User auth flow"},{"deliverable":"Database schema"},{"deliverable":"Deployment pipeline"}]
No markdown, no commentary, no extra keys.`

// Generate produces exactly four deliverables for the project
// description. A malformed model response is surfaced as an
// *apperr.ParseError carrying the raw text; it is never repaired or
// padded into a partial result.
func (g *Generator) Generate(ctx context.Context, projectName, projectDescription string) ([]Deliverable, error) {
	user := fmt.Sprintf("Project: %s\n\nDescription: %s", projectName, projectDescription)
	raw, err := g.llm.Complete(ctx, user, deliverablesInstructions, llm.Options{
		MaxTokens:      400,
		Temperature:    0.7,
		ResponseFormat: llm.FormatJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("deliverables: %w", err)
	}

	items, err := parseDeliverables(raw)
	if err != nil {
		g.logger.Warn().Err(err).Msg("model returned malformed deliverables")
		return nil, &apperr.ParseError{Raw: raw, Err: err}
	}
	return items, nil
}

// parseDeliverables enforces the strict contract: a JSON array of
// exactly four objects, each holding only the "deliverable" key with a
// non-empty string value. Code fences are stripped before parsing since
// some models wrap JSON despite instructions.
func parseDeliverables(raw string) ([]Deliverable, error) {
	text := stripFences(raw)

	var objs []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &objs); err != nil {
		return nil, fmt.Errorf("not a JSON array of objects: %w", err)
	}
	if len(objs) != DeliverableCount {
		return nil, fmt.Errorf("expected %d items, got %d", DeliverableCount, len(objs))
	}

	out := make([]Deliverable, 0, DeliverableCount)
	for i, obj := range objs {
		if len(obj) != 1 {
			return nil, fmt.Errorf("item %d: expected exactly one key, got %d", i, len(obj))
		}
		rawVal, ok := obj["deliverable"]
		if !ok {
			return nil, fmt.Errorf("item %d: missing %q key", i, "deliverable")
		}
		var val string
		if err := json.Unmarshal(rawVal, &val); err != nil {
			return nil, fmt.Errorf("item %d: deliverable is not a string: %w", i, err)
		}
		if strings.TrimSpace(val) == "" {
			return nil, fmt.Errorf("item %d: deliverable is empty", i)
		}
		out = append(out, Deliverable{Deliverable: val})
	}
	return out, nil
}

// stripFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripFences(s string) string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		first := strings.TrimSpace(text[:nl])
		// drop a language tag like "json" on the opening fence
		if first == "" || !strings.ContainsAny(first, "[{") {
			text = text[nl+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
