package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crewmate-app/crewmate/internal/apperr"
	"github.com/crewmate-app/crewmate/internal/auth"
	"github.com/crewmate-app/crewmate/internal/availability"
	"github.com/crewmate-app/crewmate/internal/chat"
	"github.com/crewmate-app/crewmate/internal/convmem"
	"github.com/crewmate-app/crewmate/internal/docstore"
	"github.com/crewmate-app/crewmate/internal/grading"
	"github.com/crewmate-app/crewmate/internal/health"
	"github.com/crewmate-app/crewmate/internal/llm"
	"github.com/crewmate-app/crewmate/internal/orchestrator"
	"github.com/crewmate-app/crewmate/internal/persona"
	"github.com/crewmate-app/crewmate/internal/projects"
	"github.com/crewmate-app/crewmate/internal/roster"
	"github.com/crewmate-app/crewmate/internal/selector"
	"github.com/crewmate-app/crewmate/internal/tasks"
)

type stubLLM struct {
	response string
	err      error
}

func (s *stubLLM) Complete(_ context.Context, _, _ string, _ llm.Options) (string, error) {
	return s.response, s.err
}

type testServer struct {
	app *fiber.App
	llm *stubLLM
}

func newTestServer(t *testing.T) *testServer {
	return newTestServerWithConfig(t, ServerConfig{})
}

func newTestServerWithConfig(t *testing.T, cfg ServerConfig) *testServer {
	t.Helper()
	ds := docstore.NewMemoryStore(zerolog.Nop())
	t.Cleanup(func() { ds.Close() })

	logger := zerolog.Nop()
	cat, err := persona.NewCatalog(persona.Defaults())
	require.NoError(t, err)

	reg := roster.NewRegistry(ds, logger)
	proj := projects.NewStore(ds, reg, cat, logger)
	taskStore := tasks.NewStore(ds, logger)
	chatStore := chat.NewStore(ds, logger)
	stub := &stubLLM{response: "sounds good, let me pick that up"}
	policy := availability.AlwaysOn{}

	engine := orchestrator.New(orchestrator.Options{
		Roster:   reg,
		Catalog:  cat,
		Policy:   policy,
		Selector: selector.New(selector.TableDual, func() float64 { return 0.99 }),
		LLM:      stub,
		Chat:     chatStore,
		Conv:     convmem.New(),
		Tasks:    taskStore,
		Logger:   logger,
		WordCap:  30,
	})

	handlers := NewHandlers(proj, reg, taskStore, chatStore, engine,
		tasks.NewGenerator(stub, logger), grading.New(stub, logger), policy, logger)

	checker := health.NewChecker(logger)
	checker.Register("docstore", health.DocstoreCheck(ds))

	srv := NewServer(cfg, handlers, checker, nil, logger)
	return &testServer{app: srv.App(), llm: stub}
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func createProject(t *testing.T, app *fiber.App) string {
	code, raw := doJSON(t, app, "POST", "/api/v1/projects",
		fiber.Map{"title": "Shop", "description": "an online store"})
	require.Equal(t, fiber.StatusCreated, code, string(raw))
	var p projects.Project
	require.NoError(t, json.Unmarshal(raw, &p))
	return p.ID
}

func TestProbes(t *testing.T) {
	ts := newTestServer(t)

	code, _ := doJSON(t, ts.app, "GET", "/healthz", nil)
	assert.Equal(t, fiber.StatusOK, code)

	code, raw := doJSON(t, ts.app, "GET", "/readyz", nil)
	assert.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, string(raw), "ready")
}

func TestProjectLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id := createProject(t, ts.app)

	code, raw := doJSON(t, ts.app, "GET", "/api/v1/projects/"+id, nil)
	require.Equal(t, fiber.StatusOK, code)
	var resp projectResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "Shop", resp.Project.Title)
	assert.Equal(t, 1, resp.CurrentDay)
	assert.Len(t, resp.Teammates, len(persona.Defaults())+1)
	for _, tm := range resp.Teammates {
		if tm.Type == roster.TypeAI {
			assert.True(t, tm.Availability.Available, tm.ID)
		}
	}

	code, raw = doJSON(t, ts.app, "POST", "/api/v1/projects/"+id+"/day/advance", nil)
	require.Equal(t, fiber.StatusOK, code)
	var day dayResponse
	require.NoError(t, json.Unmarshal(raw, &day))
	assert.Equal(t, 2, day.CurrentDay)
}

func TestProjectNotFound(t *testing.T) {
	ts := newTestServer(t)

	code, raw := doJSON(t, ts.app, "GET", "/api/v1/projects/nope", nil)
	assert.Equal(t, fiber.StatusNotFound, code)
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(raw, &problem))
	assert.Equal(t, "project_not_found", problem.Type)
}

func TestChatRoundTrip(t *testing.T) {
	ts := newTestServer(t)
	id := createProject(t, ts.app)

	code, raw := doJSON(t, ts.app, "POST", "/api/v1/projects/"+id+"/chat",
		fiber.Map{"content": "hey @Rasoa can you help"})
	require.Equal(t, fiber.StatusOK, code, string(raw))
	var posted chatPostResponse
	require.NoError(t, json.Unmarshal(raw, &posted))
	require.Len(t, posted.Messages, 2)
	assert.Equal(t, []string{"rasoa"}, posted.ActiveAgents)

	code, raw = doJSON(t, ts.app, "GET", "/api/v1/projects/"+id+"/chat", nil)
	require.Equal(t, fiber.StatusOK, code)
	var got chatGetResponse
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got.Chats, 2)
	assert.Equal(t, "rasoa", got.Chats[1].SenderID)
}

func TestChatRequiresContent(t *testing.T) {
	ts := newTestServer(t)
	id := createProject(t, ts.app)

	code, _ := doJSON(t, ts.app, "POST", "/api/v1/projects/"+id+"/chat", fiber.Map{})
	assert.Equal(t, fiber.StatusBadRequest, code)
}

func TestChatProviderFailure(t *testing.T) {
	ts := newTestServer(t)
	id := createProject(t, ts.app)
	ts.llm.err = apperr.NewProviderError("openai", 500, "boom")

	code, raw := doJSON(t, ts.app, "POST", "/api/v1/projects/"+id+"/chat",
		fiber.Map{"content": "@Rasoa help"})
	assert.Equal(t, fiber.StatusBadGateway, code)
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(raw, &problem))
	assert.Equal(t, "provider_failure", problem.Type)
}

func TestKanbanCRUD(t *testing.T) {
	ts := newTestServer(t)
	id := createProject(t, ts.app)

	code, raw := doJSON(t, ts.app, "POST", "/api/v1/projects/"+id+"/kanban",
		fiber.Map{"title": "wire login", "assignedTo": "rakoto"})
	require.Equal(t, fiber.StatusCreated, code, string(raw))
	var created tasks.Task
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, tasks.StatusTodo, created.Status)

	code, raw = doJSON(t, ts.app, "PATCH", "/api/v1/projects/"+id+"/kanban/"+created.ID,
		fiber.Map{"status": tasks.StatusDone})
	require.Equal(t, fiber.StatusOK, code, string(raw))
	var updated tasks.Task
	require.NoError(t, json.Unmarshal(raw, &updated))
	assert.Equal(t, tasks.StatusDone, updated.Status)
	assert.NotZero(t, updated.CompletedAt)

	code, raw = doJSON(t, ts.app, "GET", "/api/v1/projects/"+id+"/kanban", nil)
	require.Equal(t, fiber.StatusOK, code)
	assert.Contains(t, string(raw), "wire login")

	code, _ = doJSON(t, ts.app, "DELETE", "/api/v1/projects/"+id+"/kanban/"+created.ID, nil)
	assert.Equal(t, fiber.StatusNoContent, code)

	code, _ = doJSON(t, ts.app, "PATCH", "/api/v1/projects/"+id+"/kanban/"+created.ID,
		fiber.Map{"status": tasks.StatusTodo})
	assert.Equal(t, fiber.StatusNotFound, code)
}

func TestGenerateDeliverables(t *testing.T) {
	ts := newTestServer(t)
	id := createProject(t, ts.app)
	ts.llm.response = `[{"deliverable":"Landing page"},{"deliverable":"Auth flow"},{"deliverable":"Data model"},{"deliverable":"CI pipeline"}]`

	code, raw := doJSON(t, ts.app, "POST", "/api/v1/projects/"+id+"/kanban/generate",
		fiber.Map{"title": "Shop"})
	require.Equal(t, fiber.StatusOK, code, string(raw))
	var resp generateResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	require.Len(t, resp.Deliverables, 4)
	assert.Equal(t, "Landing page", resp.Deliverables[0].Deliverable)
}

func TestGenerateDeliverablesMalformed(t *testing.T) {
	ts := newTestServer(t)
	id := createProject(t, ts.app)
	ts.llm.response = "here are some ideas: 1. page"

	code, raw := doJSON(t, ts.app, "POST", "/api/v1/projects/"+id+"/kanban/generate", nil)
	require.Equal(t, fiber.StatusOK, code)
	var resp generateErrorResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, "Invalid AI response", resp.Error)
	assert.Equal(t, "here are some ideas: 1. page", resp.Raw)
}

func TestGradeSubmission(t *testing.T) {
	ts := newTestServer(t)
	id := createProject(t, ts.app)
	ts.llm.response = `{"score": 88, "feedback": "Strong delivery."}`

	code, raw := doJSON(t, ts.app, "POST", "/api/v1/projects/"+id+"/grade",
		fiber.Map{"content": "we shipped the store"})
	require.Equal(t, fiber.StatusOK, code, string(raw))
	var resp gradeResponse
	require.NoError(t, json.Unmarshal(raw, &resp))
	assert.Equal(t, 88, resp.Grade.Score)
}

func TestAuthEnforcedAndOwnershipChecked(t *testing.T) {
	ts := newTestServerWithConfig(t, ServerConfig{Verifier: auth.DevVerifier{}})

	// no token
	code, _ := doJSON(t, ts.app, "GET", "/api/v1/projects", nil)
	assert.Equal(t, fiber.StatusUnauthorized, code)

	authed := func(token, method, path string, body any) (int, []byte) {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, path, &buf)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := ts.app.Test(req, -1)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, raw
	}

	code, raw := authed("dev:u1::Owner", "POST", "/api/v1/projects", fiber.Map{"title": "Mine"})
	require.Equal(t, fiber.StatusCreated, code, string(raw))
	var p projects.Project
	require.NoError(t, json.Unmarshal(raw, &p))

	// another user cannot touch it
	code, raw = authed("dev:u2::Other", "GET", "/api/v1/projects/"+p.ID, nil)
	assert.Equal(t, fiber.StatusForbidden, code)
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(raw, &problem))
	assert.Equal(t, "not_project_owner", problem.Type)
}

func TestGradeProviderFailurePropagates(t *testing.T) {
	ts := newTestServer(t)
	id := createProject(t, ts.app)
	ts.llm.err = apperr.NewProviderError("gemini", 429, "quota")

	code, raw := doJSON(t, ts.app, "POST", "/api/v1/projects/"+id+"/grade",
		fiber.Map{"content": "we shipped"})
	assert.Equal(t, fiber.StatusBadGateway, code)
	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(raw, &problem))
	assert.Equal(t, "provider_failure", problem.Type)
}
