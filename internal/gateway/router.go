package gateway

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/rahul/sahayak/internal/agent"
)

// NewRouter wires the HTTP surface: the REST API, the WebSocket endpoint,
// and the static frontend when one is configured.
func NewRouter(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/models", s.handleModels)
		api.POST("/chat", s.handleChat)
		api.GET("/runs", s.handleRuns)
		api.GET("/runs/:id/steps", s.handleRunSteps)
	}
	r.GET("/ws", s.HandleWS)

	if dir := s.Cfg.App.Frontend; dir != "" {
		if _, err := os.Stat(filepath.Join(dir, "index.html")); err == nil {
			fs := http.FileServer(http.Dir(dir))
			r.NoRoute(gin.WrapH(fs))
		}
	}
	return r
}

func (s *Server) handleModels(c *gin.Context) {
	names, err := s.Models.ListModels(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if names == nil {
		names = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"models": names})
}

type chatRequest struct {
	Query        string `json:"query" binding:"required"`
	PlannerModel string `json:"planner_model,omitempty"`
	BrowserModel string `json:"browser_model,omitempty"`
}

// handleChat runs one query to completion and returns the collected
// progress transcript. It exists for clients that cannot hold a WebSocket.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	models := s.defaultModels()
	if req.PlannerModel != "" {
		models.Planner = req.PlannerModel
	}
	if req.BrowserModel != "" {
		models.Browser = req.BrowserModel
	}

	obs := &collectObserver{}
	s.newWorkflow(obs, models).Run(c.Request.Context(), req.Query)

	c.JSON(http.StatusOK, gin.H{
		"messages": obs.Messages(),
		"tasks":    obs.LastTasks(),
	})
}

func (s *Server) handleRuns(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "run history is not configured"})
		return
	}
	runs, err := s.Store.RecentRuns(20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) handleRunSteps(c *gin.Context) {
	if s.Store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "run history is not configured"})
		return
	}
	steps, err := s.Store.RunSteps(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"steps": steps})
}

// collectObserver buffers progress for a request/response client.
type collectObserver struct {
	mu       sync.Mutex
	messages []string
	tasks    []agent.TaskView
}

func (o *collectObserver) Notify(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, text)
}

func (o *collectObserver) NotifyTaskList(tasks []agent.TaskView) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tasks = tasks
}

func (o *collectObserver) Messages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.messages == nil {
		return []string{}
	}
	return o.messages
}

func (o *collectObserver) LastTasks() []agent.TaskView {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tasks == nil {
		return []agent.TaskView{}
	}
	return o.tasks
}
