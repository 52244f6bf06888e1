package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/rahul/sahayak/internal/observability"
	"github.com/rahul/sahayak/internal/tools"
)

// noPriorOutput is the placeholder threaded into the first step of a run.
const noPriorOutput = "No output from previous steps."

// contextHintLimit bounds the threaded output passed to the browser
// sub-agent as background context.
const contextHintLimit = 1000

// ModelSet is the per-run model selection. It is passed explicitly instead
// of living in process-global state so concurrent runs cannot interfere.
type ModelSet struct {
	Planner string
	Browser string
}

// StepResult is the outcome of one step's retry loop.
type StepResult struct {
	FinalSpec StepSpec
	Output    string
	Failed    bool
}

// Executor drives a single step: dispatch to the matching tool runner,
// classify the result, and on failure negotiate corrections until the step
// succeeds, the retry budget runs out, or no correction is offered.
type Executor struct {
	Registry   *tools.Registry
	Classifier *Classifier
	Corrector  *Corrector
	Logger     *observability.Logger
	Observer   Observer

	// BrowserStepLimit is the action budget suggested to the browser
	// sub-agent for each dispatched browser step.
	BrowserStepLimit int
}

// Execute runs the step state machine. Runner errors never propagate: they
// are converted into failure-classified result text and re-enter the
// retry/correction path. Unknown or unavailable tools fail locally without
// dispatch and without correction.
func (e *Executor) Execute(ctx context.Context, runID string, models ModelSet, step StepSpec, threadInput string) StepResult {
	current := step
	for attempt := 0; ; {
		if err := ctx.Err(); err != nil {
			return StepResult{FinalSpec: current, Output: fmt.Sprintf("Error: run cancelled: %v", err), Failed: true}
		}

		runner := e.Registry.Get(current.Tool)
		if runner == nil {
			res := fmt.Sprintf("Error: Unknown tool '%s'.", current.Tool)
			e.Observer.Notify("Agent: " + res)
			return StepResult{FinalSpec: current, Output: res, Failed: true}
		}
		if err := e.Registry.Available(current.Tool); err != nil {
			res := fmt.Sprintf("Error: Tool '%s' unavailable: %v", current.Tool, err)
			e.Observer.Notify("Agent: " + res)
			return StepResult{FinalSpec: current, Output: res, Failed: true}
		}

		params, perr := e.prepare(current, models, threadInput)
		if perr != nil {
			res := fmt.Sprintf("Error: %v", perr)
			e.Observer.Notify("Agent: " + res)
			return StepResult{FinalSpec: current, Output: res, Failed: true}
		}

		e.notifyInput(current.Tool, params)
		e.Logger.LogToolCall(runID, current.Tool, paramsJSON(params))

		resultText, err := runner.Invoke(ctx, params, e.Observer)
		if err != nil {
			resultText = fmt.Sprintf("Error: tool '%s' raised: %v", current.Tool, err)
		}

		parsed := Classify(resultText)
		failed, reason := e.Classifier.Judge(parsed)
		e.Observer.Notify(fmt.Sprintf("Tool output (try %d):\n```\n%s\n```", attempt+1, resultText))
		e.Logger.LogToolResult(runID, current.Tool, resultText, !failed)

		if !failed {
			return StepResult{FinalSpec: current, Output: resultText, Failed: false}
		}
		if attempt >= e.Corrector.Ceiling {
			e.Observer.Notify(fmt.Sprintf("Agent: step failed, max retries (%d) reached.", e.Corrector.Ceiling))
			return StepResult{FinalSpec: current, Output: resultText, Failed: true}
		}

		e.Observer.Notify(fmt.Sprintf("Agent: reviewing failure (%s, try %d)...", reason, attempt+1))
		corrected, ok := e.Corrector.Negotiate(ctx, models.Planner, current, reason, resultText, attempt, e.Observer)
		if !ok {
			return StepResult{FinalSpec: current, Output: resultText, Failed: true}
		}
		e.Observer.Notify(fmt.Sprintf("Agent: applying correction (try %d)...", attempt+2))
		e.Logger.LogCorrection(runID, corrected.Tool, attempt+1)
		current = corrected
		attempt++
	}
}

// prepare builds the runner invocation parameters for a step, applying the
// tool-specific shaping: command normalization for shell, threaded-output
// injection for code, and context hint plus step budget for browser.
func (e *Executor) prepare(step StepSpec, models ModelSet, threadInput string) (map[string]any, error) {
	switch step.Tool {
	case tools.NameShell:
		cmdline, err := normalizeCommand(step.Params["command"])
		if err != nil {
			return nil, err
		}
		return map[string]any{"command": cmdline}, nil

	case tools.NameCode:
		code, _ := step.Params["code"].(string)
		if strings.TrimSpace(code) == "" {
			return nil, errors.New("missing 'code' parameter")
		}
		safe := strings.ReplaceAll(threadInput, `"""`, `\"\"\"`)
		prefix := fmt.Sprintf("previous_step_result = \"\"\"%s\"\"\"\n\n", safe)
		log.Printf("[Executor] Injecting previous result (%d bytes) into code step", len(threadInput))
		return map[string]any{"code": prefix + code}, nil

	case tools.NameBrowser:
		input, _ := step.Params["input"].(string)
		if input == "" {
			input, _ = step.Params["browser_input"].(string)
		}
		if strings.TrimSpace(input) == "" {
			return nil, errors.New("missing 'input' parameter for browser")
		}
		hint := threadInput
		if hint == noPriorOutput {
			hint = ""
		}
		if len(hint) > contextHintLimit {
			hint = hint[:contextHintLimit]
		}
		return map[string]any{
			"input":        input,
			"context_hint": hint,
			"step_limit":   e.BrowserStepLimit,
			"model":        models.Browser,
		}, nil
	}
	// Unknown tools are rejected before prepare is reached.
	return step.Params, nil
}

// normalizeCommand accepts the planner's command parameter as either a
// token list or a single string and renders one normalized command line.
func normalizeCommand(v any) (string, error) {
	var raw string
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprintf("%v", p))
		}
		raw = strings.Join(parts, " ")
	case string:
		raw = t
	case nil:
		return "", errors.New("missing 'command' parameter")
	default:
		return "", fmt.Errorf("'command' has unsupported type %T", v)
	}

	tokens, err := shellquote.Split(raw)
	if err != nil {
		return "", fmt.Errorf("parsing command: %v", err)
	}
	if len(tokens) == 0 {
		return "", errors.New("empty command")
	}
	return shellquote.Join(tokens...), nil
}

func (e *Executor) notifyInput(tool string, params map[string]any) {
	e.Observer.Notify(fmt.Sprintf("Tool input (%s): %s", tool, paramsJSON(params)))
}

func paramsJSON(params map[string]any) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return string(data)
}
