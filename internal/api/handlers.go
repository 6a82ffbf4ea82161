package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/crewmate-app/crewmate/internal/apperr"
	"github.com/crewmate-app/crewmate/internal/auth"
	"github.com/crewmate-app/crewmate/internal/availability"
	"github.com/crewmate-app/crewmate/internal/chat"
	"github.com/crewmate-app/crewmate/internal/grading"
	"github.com/crewmate-app/crewmate/internal/orchestrator"
	"github.com/crewmate-app/crewmate/internal/projects"
	"github.com/crewmate-app/crewmate/internal/roster"
	"github.com/crewmate-app/crewmate/internal/tasks"
)

// Handlers carries the request handlers and their collaborators.
type Handlers struct {
	projects  *projects.Store
	roster    *roster.Registry
	tasks     *tasks.Store
	chat      *chat.Store
	engine    *orchestrator.Engine
	generator *tasks.Generator
	grader    *grading.Grader
	policy    availability.Policy
	logger    zerolog.Logger
	now       func() time.Time
}

// NewHandlers creates the handler set.
func NewHandlers(
	proj *projects.Store,
	reg *roster.Registry,
	taskStore *tasks.Store,
	chatStore *chat.Store,
	engine *orchestrator.Engine,
	generator *tasks.Generator,
	grader *grading.Grader,
	policy availability.Policy,
	logger zerolog.Logger,
) *Handlers {
	return &Handlers{
		projects:  proj,
		roster:    reg,
		tasks:     taskStore,
		chat:      chatStore,
		engine:    engine,
		generator: generator,
		grader:    grader,
		policy:    policy,
		logger:    logger.With().Str("component", "api").Logger(),
		now:       time.Now,
	}
}

// loadOwnedProject resolves :id to a project the caller owns. A nil
// project means the response has already been written.
func (h *Handlers) loadOwnedProject(c *fiber.Ctx) (*projects.Project, error) {
	id := c.Params("id")
	p, err := h.projects.Get(c.UserContext(), id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, problemResponse(c, fiber.StatusNotFound,
			"project_not_found", "Not Found", "No such project: "+id)
	}
	ident := auth.FromContext(c)
	if ident == nil || p.OwnerID != ident.UID {
		return nil, problemResponse(c, fiber.StatusForbidden,
			"not_project_owner", "Forbidden", "You do not own this project.")
	}
	return p, nil
}

// CreateProject handles POST /api/v1/projects.
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var in projects.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Request body must be JSON.")
	}
	ident := auth.FromContext(c)
	p, err := h.projects.Create(c.UserContext(), in, ident.UID, ident.Name)
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_project", "Bad Request", err.Error())
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// ListProjects handles GET /api/v1/projects.
func (h *Handlers) ListProjects(c *fiber.Ctx) error {
	ident := auth.FromContext(c)
	list, err := h.projects.ListByOwner(c.UserContext(), ident.UID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"projects": list})
}

// GetProject handles GET /api/v1/projects/:id.
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	views, err := h.teammateViews(c, p)
	if err != nil {
		return err
	}
	return c.JSON(projectResponse{Project: p, Teammates: views, CurrentDay: p.CurrentDay})
}

// AdvanceDay handles POST /api/v1/projects/:id/day/advance.
func (h *Handlers) AdvanceDay(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	day, err := h.projects.AdvanceDay(c.UserContext(), p.ID)
	if err != nil {
		return err
	}
	return c.JSON(dayResponse{CurrentDay: day})
}

// PostChat handles POST /api/v1/projects/:id/chat.
func (h *Handlers) PostChat(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	var req chatPostRequest
	if err := c.BodyParser(&req); err != nil || req.Content == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "A non-empty content field is required.")
	}

	ident := auth.FromContext(c)
	resp, err := h.engine.HandleMessage(c.UserContext(), p, ident.UID, ident.Name, req.Content)
	if err != nil {
		if errors.Is(err, apperr.ErrNoProvider) {
			return problemResponse(c, fiber.StatusServiceUnavailable,
				"no_provider", "Service Unavailable", "No text-completion provider is configured.")
		}
		// earlier turns stay committed; report the failed one
		h.logger.Error().Err(err).Str("project_id", p.ID).Msg("chat turn failed")
		return problemResponse(c, fiber.StatusBadGateway,
			"provider_failure", "Bad Gateway", err.Error())
	}
	return c.JSON(chatPostResponse{Messages: resp.Messages, ActiveAgents: resp.ActiveAgents})
}

// GetChat handles GET /api/v1/projects/:id/chat.
func (h *Handlers) GetChat(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	msgs, err := h.chat.List(c.UserContext(), p.ID, 0)
	if err != nil {
		return err
	}
	views, err := h.teammateViews(c, p)
	if err != nil {
		return err
	}
	return c.JSON(chatGetResponse{Chats: msgs, Teammates: views, CurrentDay: p.CurrentDay})
}

func (h *Handlers) teammateViews(c *fiber.Ctx, p *projects.Project) ([]teammateView, error) {
	team, err := h.roster.List(c.UserContext(), p.ID)
	if err != nil {
		return nil, err
	}
	now := h.now()
	views := make([]teammateView, 0, len(team))
	for _, tm := range team {
		views = append(views, teammateView{
			Teammate:     tm,
			Availability: h.policy.Evaluate(tm, now, p.CurrentDay),
		})
	}
	return views, nil
}

// ListTasks handles GET /api/v1/projects/:id/kanban.
func (h *Handlers) ListTasks(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	list, err := h.tasks.List(c.UserContext(), p.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"tasks": list})
}

// CreateTask handles POST /api/v1/projects/:id/kanban.
func (h *Handlers) CreateTask(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	var in tasks.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Request body must be JSON.")
	}
	t, err := h.tasks.Create(c.UserContext(), p.ID, in)
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_task", "Bad Request", err.Error())
	}
	h.engine.InvalidateTasks(p.ID)
	return c.Status(fiber.StatusCreated).JSON(t)
}

// UpdateTask handles PATCH /api/v1/projects/:id/kanban/:taskId.
func (h *Handlers) UpdateTask(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	taskID := c.Params("taskId")
	existing, err := h.tasks.Get(c.UserContext(), p.ID, taskID)
	if err != nil {
		return err
	}
	if existing == nil {
		return problemResponse(c, fiber.StatusNotFound,
			"task_not_found", "Not Found", "No such task: "+taskID)
	}
	var in tasks.UpdateInput
	if err := c.BodyParser(&in); err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "Request body must be JSON.")
	}
	t, err := h.tasks.Update(c.UserContext(), p.ID, taskID, in)
	if err != nil {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_task", "Bad Request", err.Error())
	}
	h.engine.InvalidateTasks(p.ID)
	return c.JSON(t)
}

// DeleteTask handles DELETE /api/v1/projects/:id/kanban/:taskId.
func (h *Handlers) DeleteTask(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	if err := h.tasks.Delete(c.UserContext(), p.ID, c.Params("taskId")); err != nil {
		return err
	}
	h.engine.InvalidateTasks(p.ID)
	return c.SendStatus(fiber.StatusNoContent)
}

// GenerateDeliverables handles POST /api/v1/projects/:id/kanban/generate.
// A malformed model response is a payload, not an error status: the
// client shows the raw text instead of fabricated tasks.
func (h *Handlers) GenerateDeliverables(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	var req generateRequest
	_ = c.BodyParser(&req)
	title := req.Title
	if title == "" {
		title = p.Title
	}

	items, err := h.generator.Generate(c.UserContext(), title, p.Description)
	if err != nil {
		var pe *apperr.ParseError
		if errors.As(err, &pe) {
			return c.JSON(generateErrorResponse{Error: "Invalid AI response", Raw: pe.Raw})
		}
		if errors.Is(err, apperr.ErrNoProvider) {
			return problemResponse(c, fiber.StatusServiceUnavailable,
				"no_provider", "Service Unavailable", "No text-completion provider is configured.")
		}
		return problemResponse(c, fiber.StatusBadGateway,
			"provider_failure", "Bad Gateway", err.Error())
	}
	return c.JSON(generateResponse{Deliverables: items})
}

// GradeSubmission handles POST /api/v1/projects/:id/grade. Provider
// errors propagate; there is no canned substitute for a grade.
func (h *Handlers) GradeSubmission(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	var req gradeRequest
	if err := c.BodyParser(&req); err != nil || req.Content == "" {
		return problemResponse(c, fiber.StatusBadRequest,
			"invalid_body", "Bad Request", "A non-empty content field is required.")
	}

	grade, err := h.grader.Grade(c.UserContext(), grading.Submission{
		ProjectTitle:       p.Title,
		ProjectDescription: p.Description,
		Content:            req.Content,
	})
	if err != nil {
		var pe *apperr.ParseError
		if errors.As(err, &pe) {
			return c.JSON(generateErrorResponse{Error: "Invalid AI response", Raw: pe.Raw})
		}
		if errors.Is(err, apperr.ErrNoProvider) {
			return problemResponse(c, fiber.StatusServiceUnavailable,
				"no_provider", "Service Unavailable", "No text-completion provider is configured.")
		}
		if errors.Is(err, apperr.ErrInvalidInput) {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_submission", "Bad Request", err.Error())
		}
		return problemResponse(c, fiber.StatusBadGateway,
			"provider_failure", "Bad Gateway", err.Error())
	}
	return c.JSON(gradeResponse{Grade: grade})
}

// Teammates handles GET /api/v1/projects/:id/teammates.
func (h *Handlers) Teammates(c *fiber.Ctx) error {
	p, err := h.loadOwnedProject(c)
	if p == nil {
		return err
	}
	views, err := h.teammateViews(c, p)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"teammates": views, "currentDay": p.CurrentDay})
}
