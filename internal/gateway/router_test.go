package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/rahul/sahayak/internal/agent"
	"github.com/rahul/sahayak/internal/observability"
	"github.com/rahul/sahayak/internal/tools"
	"github.com/rahul/sahayak/pkg/config"
)

type fakeLister struct {
	names []string
}

func (f *fakeLister) ListModels(ctx context.Context) ([]string, error) {
	return f.names, nil
}

type cannedLLM struct {
	reply string
}

func (c *cannedLLM) Complete(ctx context.Context, model, prompt, system string) (string, error) {
	return c.reply, nil
}

func testServer(llm agent.CompletionClient) *Server {
	cfg := &config.Config{}
	cfg.Agent.MaxSteps = 10
	cfg.Agent.MaxRetries = 2
	cfg.Agent.BrowserStepLimit = 15
	return &Server{
		Cfg:      cfg,
		LLM:      llm,
		Models:   &fakeLister{names: []string{"alpha", "beta"}},
		Registry: tools.NewRegistry(),
		Prompts:  agent.NewPromptManager("nonexistent"),
		Logger:   observability.NewLogger(),
	}
}

func TestRouter_Models(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testServer(&cannedLLM{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Models) != 2 || body.Models[0] != "alpha" {
		t.Errorf("models = %v", body.Models)
	}
}

func TestRouter_RunsWithoutStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testServer(&cannedLLM{}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status = %d, want 501", w.Code)
	}
}

func TestRouter_ChatValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(testServer(&cannedLLM{}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"nope": true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestRouter_ChatRunsWorkflow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	// The model plans zero steps; the run ends with the empty-plan notice.
	r := NewRouter(testServer(&cannedLLM{reply: "[]"}))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(`{"query": "do nothing"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var body struct {
		Messages []string         `json:"messages"`
		Tasks    []agent.TaskView `json:"tasks"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, m := range body.Messages {
		if strings.Contains(m, "no steps planned") {
			found = true
		}
	}
	if !found {
		t.Errorf("empty-plan notice missing from transcript: %v", body.Messages)
	}
	if body.Tasks == nil {
		t.Error("tasks should marshal as an empty list, not null")
	}
}

func TestCollectObserver(t *testing.T) {
	o := &collectObserver{}
	o.Notify("one")
	o.NotifyTaskList([]agent.TaskView{{Description: "d", Status: "pending"}})

	if msgs := o.Messages(); len(msgs) != 1 || msgs[0] != "one" {
		t.Errorf("Messages = %v", msgs)
	}
	if tasks := o.LastTasks(); len(tasks) != 1 || tasks[0].Status != "pending" {
		t.Errorf("LastTasks = %v", tasks)
	}
}
