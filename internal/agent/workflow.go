package agent

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rahul/sahayak/internal/observability"
)

// TaskStatus is monotonic: a task never returns to pending or running once
// it reaches done or error.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskError   TaskStatus = "error"
)

// Task is the runtime record of one planned step. Tasks are created when
// the plan is parsed, mutated only on the run's own execution path, and
// kept in the status list for the lifetime of the run.
type Task struct {
	Description  string
	Status       TaskStatus
	OriginalSpec StepSpec
	FinalSpec    StepSpec
	Result       string
}

// RunStore persists run outcomes for post-hoc inspection. Persistence is
// best-effort: storage errors are logged, never fatal to the run.
type RunStore interface {
	SaveRun(id, query, status, finalAnswer string) error
	SaveStep(runID string, idx int, description, status, result string) error
}

// Workflow owns one end-to-end run: it requests the plan, iterates steps
// through the executor, maintains the live task-status view, enforces the
// global step budget, threads inter-step output, and requests the final
// summarization.
type Workflow struct {
	LLM      CompletionClient
	Prompts  *PromptManager
	Executor *Executor
	Observer Observer
	Logger   *observability.Logger
	Store    RunStore  // optional
	Alerts   Messenger // optional
	Models   ModelSet

	// MaxSteps is the global ceiling on executed steps per run, distinct
	// from the per-step retry budget.
	MaxSteps int
}

// Run executes the workflow for one user query. It always ends by
// publishing a terminal status notice, whichever exit path is taken.
func (w *Workflow) Run(ctx context.Context, userQuery string) {
	runID := uuid.NewString()
	start := time.Now()
	msg := "Agent: workflow finished."
	finalAnswer := ""
	runStatus := "completed"

	defer func() {
		if r := recover(); r != nil {
			msg = fmt.Sprintf("Agent error: unexpected workflow error: %v", r)
			runStatus = "failed"
			w.Logger.LogError(runID, fmt.Sprintf("panic: %v\n%s", r, debug.Stack()))
		}
		w.Observer.Notify(msg)
		if w.Alerts != nil {
			if err := w.Alerts.Send(msg); err != nil {
				log.Printf("Warning: alert delivery failed: %v", err)
			}
		}
		w.saveRun(runID, userQuery, runStatus, finalAnswer)
		log.Printf("[Workflow %s] finished in %s: %s", runID, time.Since(start).Round(time.Millisecond), msg)
	}()

	// 1) Plan.
	w.Observer.Notify("Agent: planning steps...")
	log.Printf("[Workflow %s] planner model: %s", runID, w.Models.Planner)
	rawPlan, err := w.LLM.Complete(ctx, w.Models.Planner, w.planningPrompt(userQuery), w.Prompts.PlannerPrompt())
	if err != nil {
		msg = fmt.Sprintf("Agent error: planning failed: %v", err)
		runStatus = "failed"
		w.Observer.NotifyTaskList(nil)
		return
	}
	if strings.TrimSpace(rawPlan) == "" {
		msg = "Agent error: planning failed: empty response from model."
		runStatus = "failed"
		w.Observer.NotifyTaskList(nil)
		return
	}
	steps, err := ParsePlan(rawPlan)
	if err != nil {
		msg = fmt.Sprintf("Agent error: %v", err)
		runStatus = "failed"
		w.Logger.LogError(runID, err.Error())
		w.Observer.NotifyTaskList(nil)
		return
	}

	// 2) Publish the initial task list.
	tasks := make([]*Task, len(steps))
	for i, s := range steps {
		tasks[i] = &Task{Description: s.Description, Status: TaskPending, OriginalSpec: s}
	}
	w.publishTasks(tasks)
	if len(tasks) == 0 {
		msg = "Agent: no steps planned."
		runStatus = "empty"
		return
	}
	w.Observer.Notify(fmt.Sprintf("Agent: plan ready, %d steps.", len(tasks)))
	w.Logger.LogPlan(runID, len(tasks), rawPlan)

	// 3) Execute steps sequentially, threading output forward.
	lastOutput := noPriorOutput
	executed := 0
	stopped, failed := false, false
	for idx, task := range tasks {
		if ctx.Err() != nil {
			msg = "Agent: run cancelled."
			runStatus = "cancelled"
			stopped = true
			break
		}
		if executed >= w.MaxSteps {
			w.Observer.Notify(fmt.Sprintf("Warning: maximum step count (%d) reached.", w.MaxSteps))
			msg = fmt.Sprintf("Agent: stopped after reaching the %d step limit.", w.MaxSteps)
			runStatus = "stopped"
			stopped = true
			break
		}

		task.Status = TaskRunning
		w.publishTasks(tasks)
		w.Observer.Notify(fmt.Sprintf("Agent: step %d/%d: %s", idx+1, len(tasks), task.Description))

		res := w.Executor.Execute(ctx, runID, w.Models, task.OriginalSpec, lastOutput)
		executed++

		// Re-classify the final result to decide terminal status: the
		// executor may have exhausted retries on a result that should
		// still be recorded precisely.
		parsed := Classify(res.Output)
		stepFailed, _ := w.Executor.Classifier.Judge(parsed)

		task.FinalSpec = res.FinalSpec
		task.Result = res.Output
		if res.FinalSpec.Description != "" {
			task.Description = res.FinalSpec.Description
		}
		if stepFailed {
			task.Status = TaskError
		} else {
			task.Status = TaskDone
		}
		w.publishTasks(tasks)
		w.Observer.Notify(fmt.Sprintf("Agent: step %d finished: %s", idx+1, strings.ToUpper(string(task.Status))))
		w.saveStep(runID, idx, task)

		if task.Status == TaskError {
			failed = true
			msg = fmt.Sprintf("Agent error: step %d failed.", idx+1)
			runStatus = "failed"
			break
		}

		if parsed.Output != "" {
			lastOutput = parsed.Output
		} else if parsed.Raw != "" {
			lastOutput = parsed.Raw
		}
	}

	// 4) Final validation and summarization.
	if failed || stopped {
		return
	}
	w.Observer.Notify("Agent: performing final check and summarization...")
	answer, err := w.LLM.Complete(ctx, w.Models.Planner, w.summaryPrompt(userQuery, lastOutput), w.Prompts.SummarizerPrompt())
	if err != nil || strings.TrimSpace(answer) == "" {
		w.Observer.Notify("Agent warning: final summarization failed.")
		msg = "Agent: workflow completed, but the final summary failed."
		return
	}
	finalAnswer = strings.TrimSpace(answer)
	w.Observer.Notify("Agent: final answer:\n" + finalAnswer)
	w.Logger.LogLLM(runID, w.Models.Planner, "final summarization", finalAnswer)
	msg = "Agent: workflow completed and summarized."
}

func (w *Workflow) planningPrompt(userQuery string) string {
	return fmt.Sprintf(
		"Req: '%s'\n"+
			"Plan as a JSON list [{\"tool\": t, \"description\": d, params...}]. Tools: shell_terminal, code_interpreter, browser.\n"+
			"CRITICAL: escape Python code for JSON ('\\n', '\\\\', '\\\"').\n"+
			"Code context: the previous step result is available in the string variable `previous_step_result`.\n"+
			"Aim for ~%d steps. The final step must present the result. Output ONLY the JSON list.",
		userQuery, w.MaxSteps,
	)
}

func (w *Workflow) summaryPrompt(userQuery, lastOutput string) string {
	return fmt.Sprintf(
		"Original user query: '%s'\n\n"+
			"The final result obtained by the agent's tools is:\n```\n%s\n```\n\n"+
			"Based on the original query and the final result obtained, provide the definitive final answer for the user. "+
			"Format it clearly. If the result seems incomplete or does not fully answer the query, state that clearly instead of hallucinating. "+
			"Directly output the final answer or assessment.",
		userQuery, lastOutput,
	)
}

func (w *Workflow) publishTasks(tasks []*Task) {
	views := make([]TaskView, len(tasks))
	for i, t := range tasks {
		views[i] = TaskView{Description: t.Description, Status: string(t.Status)}
	}
	w.Observer.NotifyTaskList(views)
}

func (w *Workflow) saveStep(runID string, idx int, task *Task) {
	if w.Store == nil {
		return
	}
	if err := w.Store.SaveStep(runID, idx, task.Description, string(task.Status), task.Result); err != nil {
		log.Printf("Warning: failed to persist step %d of run %s: %v", idx, runID, err)
	}
}

func (w *Workflow) saveRun(runID, query, status, finalAnswer string) {
	if w.Store == nil {
		return
	}
	if err := w.Store.SaveRun(runID, query, status, finalAnswer); err != nil {
		log.Printf("Warning: failed to persist run %s: %v", runID, err)
	}
}
