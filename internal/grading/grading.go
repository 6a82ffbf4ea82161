// Package grading scores a project submission with the text-completion
// provider. Unlike chat replies there is no canned substitute for a
// grade: provider failures propagate to the caller.
package grading

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/crewmate-app/crewmate/internal/apperr"
	"github.com/crewmate-app/crewmate/internal/llm"
)

// Grade is the structured result of one grading call.
type Grade struct {
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	Strengths    []string `json:"strengths,omitempty"`
	Improvements []string `json:"improvements,omitempty"`
}

type completer interface {
	Complete(ctx context.Context, userContent, instructions string, opts llm.Options) (string, error)
}

// Grader asks the model for a grade and validates the JSON contract.
type Grader struct {
	llm    completer
	logger zerolog.Logger
}

// New creates a grader.
func New(c completer, logger zerolog.Logger) *Grader {
	return &Grader{
		llm:    c,
		logger: logger.With().Str("component", "grading").Logger(),
	}
}

const gradingInstructions = `You are a fair project evaluator. Grade the submission below against the project goals.
Respond with ONLY a JSON object: {"score": <integer 0-100>, "feedback": "<2-3 sentences>", "strengths": ["..."], "improvements": ["..."]}
No markdown, no commentary.`

// Submission is what gets graded.
type Submission struct {
	ProjectTitle       string
	ProjectDescription string
	Content            string
}

// Grade scores a submission. Provider errors are returned as-is; a
// malformed model response becomes an *apperr.ParseError carrying the
// raw text. There is exactly one parse attempt, no repair.
func (g *Grader) Grade(ctx context.Context, sub Submission) (*Grade, error) {
	if strings.TrimSpace(sub.Content) == "" {
		return nil, fmt.Errorf("grading: %w: submission is empty", apperr.ErrInvalidInput)
	}
	user := fmt.Sprintf("Project: %s\nGoals: %s\n\nSubmission:\n%s",
		sub.ProjectTitle, sub.ProjectDescription, sub.Content)

	raw, err := g.llm.Complete(ctx, user, gradingInstructions, llm.Options{
		MaxTokens:      600,
		Temperature:    0.3,
		ResponseFormat: llm.FormatJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("grading: %w", err)
	}

	grade, err := parseGrade(raw)
	if err != nil {
		g.logger.Warn().Err(err).Msg("model returned malformed grade")
		return nil, &apperr.ParseError{Raw: raw, Err: err}
	}
	return grade, nil
}

func parseGrade(raw string) (*Grade, error) {
	text := stripFences(raw)
	var grade Grade
	if err := json.Unmarshal([]byte(text), &grade); err != nil {
		return nil, fmt.Errorf("not a JSON grade object: %w", err)
	}
	if grade.Score < 0 || grade.Score > 100 {
		return nil, fmt.Errorf("score %d out of range", grade.Score)
	}
	if strings.TrimSpace(grade.Feedback) == "" {
		return nil, fmt.Errorf("feedback is empty")
	}
	return &grade, nil
}

func stripFences(s string) string {
	text := strings.TrimSpace(s)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		first := strings.TrimSpace(text[:nl])
		if first == "" || !strings.ContainsAny(first, "[{") {
			text = text[nl+1:]
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
