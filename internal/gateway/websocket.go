package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/rahul/sahayak/internal/agent"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The UI is served from the same process; browsers still send an
	// Origin header, so accept all of them.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSRequest is one inbound client message. Model fields are optional and
// sticky: once set they apply to every later query on the connection.
type WSRequest struct {
	Query        string `json:"query"`
	PlannerModel string `json:"planner_model,omitempty"`
	BrowserModel string `json:"browser_model,omitempty"`
}

// taskListPrefix marks task-status frames so the client can tell them apart
// from plain progress text.
const taskListPrefix = "TASK_LIST_UPDATE:"

// wsObserver streams progress to one WebSocket client. A failed write
// cancels the run's context: there is no point executing for a client that
// is gone.
type wsObserver struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
}

func (o *wsObserver) send(text string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		log.Printf("WebSocket write failed, cancelling run: %v", err)
		o.cancel()
	}
}

func (o *wsObserver) Notify(text string) {
	o.send(text)
}

func (o *wsObserver) NotifyTaskList(tasks []agent.TaskView) {
	if tasks == nil {
		tasks = []agent.TaskView{}
	}
	data, err := json.Marshal(tasks)
	if err != nil {
		log.Printf("Failed to marshal task list: %v", err)
		return
	}
	o.send(taskListPrefix + string(data))
}

// HandleWS owns one client connection: it reads queries, runs each one to
// completion, and streams status back. Model choices persist across
// messages on the same connection.
func (s *Server) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	log.Printf("WebSocket client connected: %s", conn.RemoteAddr())

	models := s.defaultModels()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			return
		}

		var req WSRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			writeText(conn, "Agent error: invalid JSON payload.")
			continue
		}
		if req.PlannerModel != "" {
			models.Planner = req.PlannerModel
		}
		if req.BrowserModel != "" {
			models.Browser = req.BrowserModel
		}
		if strings.TrimSpace(req.Query) == "" {
			writeText(conn, "Agent error: received empty query.")
			continue
		}

		runCtx, cancel := context.WithCancel(c.Request.Context())
		obs := &wsObserver{conn: conn, cancel: cancel}
		s.newWorkflow(obs, models).Run(runCtx, req.Query)
		cancel()
	}
}

func writeText(conn *websocket.Conn, text string) {
	if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
		log.Printf("WebSocket write failed: %v", err)
	}
}
