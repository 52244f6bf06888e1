package observability

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan       EventType = "plan"
	EventTypeStep       EventType = "step"
	EventTypeToolCall   EventType = "tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypeCorrection EventType = "correction"
	EventTypeLLM        EventType = "llm"
	EventTypeError      EventType = "error"
)

// Event is one structured log entry, keyed to the run it belongs to.
type Event struct {
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger emits structured JSON events to stdout. LLM traffic additionally
// goes to a size-rotated JSONL file so prompts can be replayed offline.
type Logger struct {
	mu         sync.Mutex
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 << 20,
	}
}

// Log emits one event. Marshalling failures are reported inline rather than
// dropped so the event stream stays append-only.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		fmt.Printf("{\"type\":\"error\",\"data\":\"unmarshalable event: %v\"}\n", err)
		return
	}
	fmt.Println(string(data))

	if evt.Type == EventTypeLLM {
		l.appendLLMTrace(data)
	}
}

func (l *Logger) appendLLMTrace(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("llm trace: %v", err)
		return
	}
	if info, err := os.Stat(l.llmLogPath); err == nil && info.Size() > l.maxSize {
		// Single-generation rotation: one .old file is enough history.
		old := l.llmLogPath + ".old"
		_ = os.Remove(old)
		_ = os.Rename(l.llmLogPath, old)
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("llm trace: %v", err)
		return
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("llm trace: %v", err)
	}
}

func (l *Logger) LogPlan(runID string, steps int, raw string) {
	l.Log(Event{Type: EventTypePlan, RunID: runID, Data: map[string]any{
		"steps": steps,
		"raw":   raw,
	}})
}

func (l *Logger) LogToolCall(runID, tool, args string) {
	l.Log(Event{Type: EventTypeToolCall, RunID: runID, Data: map[string]string{
		"tool": tool,
		"args": args,
	}})
}

func (l *Logger) LogToolResult(runID, tool, output string, ok bool) {
	l.Log(Event{Type: EventTypeToolResult, RunID: runID, Data: map[string]any{
		"tool":   tool,
		"output": output,
		"ok":     ok,
	}})
}

func (l *Logger) LogCorrection(runID, tool string, attempt int) {
	l.Log(Event{Type: EventTypeCorrection, RunID: runID, Data: map[string]any{
		"tool":    tool,
		"attempt": attempt,
	}})
}

func (l *Logger) LogLLM(runID, model, prompt, response string) {
	l.Log(Event{Type: EventTypeLLM, RunID: runID, Data: map[string]any{
		"model":    model,
		"prompt":   prompt,
		"response": response,
	}})
}

func (l *Logger) LogError(runID, message string) {
	l.Log(Event{Type: EventTypeError, RunID: runID, Data: map[string]string{
		"message": message,
	}})
}
