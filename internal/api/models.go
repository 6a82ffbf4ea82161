package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/crewmate-app/crewmate/internal/availability"
	"github.com/crewmate-app/crewmate/internal/chat"
	"github.com/crewmate-app/crewmate/internal/grading"
	"github.com/crewmate-app/crewmate/internal/projects"
	"github.com/crewmate-app/crewmate/internal/roster"
	"github.com/crewmate-app/crewmate/internal/tasks"
)

// ProblemDetail is the RFC 7807 error body every failure returns.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}

// chatPostRequest is the body of POST /projects/:id/chat.
type chatPostRequest struct {
	Content string `json:"content"`
}

// chatPostResponse returns the user's message plus every AI turn.
type chatPostResponse struct {
	Messages     []*chat.Message `json:"messages"`
	ActiveAgents []string        `json:"activeAgents"`
}

// teammateView pairs a teammate record with its current availability.
type teammateView struct {
	*roster.Teammate
	Availability availability.Verdict `json:"availability"`
}

// chatGetResponse is the body of GET /projects/:id/chat.
type chatGetResponse struct {
	Chats      []*chat.Message `json:"chats"`
	Teammates  []teammateView  `json:"teammates"`
	CurrentDay int             `json:"currentDay"`
}

// projectResponse is the body of GET /projects/:id.
type projectResponse struct {
	Project    *projects.Project `json:"project"`
	Teammates  []teammateView    `json:"teammates"`
	CurrentDay int               `json:"currentDay"`
}

// generateRequest is the body of POST /projects/:id/kanban/generate.
type generateRequest struct {
	Title string `json:"title"`
}

// generateResponse carries exactly four deliverables.
type generateResponse struct {
	Deliverables []tasks.Deliverable `json:"deliverables"`
}

// generateErrorResponse is returned, not thrown, when the model output
// could not be parsed. Raw carries the model's original text.
type generateErrorResponse struct {
	Error string `json:"error"`
	Raw   string `json:"raw"`
}

// gradeRequest is the body of POST /projects/:id/grade.
type gradeRequest struct {
	Content string `json:"content"`
}

// gradeResponse wraps the structured grade.
type gradeResponse struct {
	Grade *grading.Grade `json:"grade"`
}

// dayResponse is the body of POST /projects/:id/day/advance.
type dayResponse struct {
	CurrentDay int `json:"currentDay"`
}
