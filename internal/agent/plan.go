package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// StepSpec is one planned unit of work produced by the planner model.
// Params holds the tool-specific parameters (command tokens for
// shell_terminal, source text for code_interpreter, an instruction for
// browser) with the "tool" and "description" keys already lifted out.
type StepSpec struct {
	Tool        string
	Description string
	Params      map[string]any
}

// Map rebuilds the wire-shaped object for a step, used when a spec has to
// be echoed back to the model during correction.
func (s StepSpec) Map() map[string]any {
	m := make(map[string]any, len(s.Params)+2)
	for k, v := range s.Params {
		m[k] = v
	}
	m["tool"] = s.Tool
	m["description"] = s.Description
	return m
}

// PlanError reports a plan response that could not be parsed or validated,
// even after repair. It carries the original text for diagnostics.
type PlanError struct {
	Reason string
	Raw    string
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("invalid plan: %s", e.Reason)
}

var fenceRe = regexp.MustCompile("(?ms)^```[a-zA-Z]*\\s*|\\s*```\\s*$")

// ParsePlan turns the planner model's raw response into a validated ordered
// sequence of steps. It strips code fences, attempts strict JSON parsing,
// falls back to structural repair, and accepts either a list of step
// objects or a single step object (wrapped into a one-element list).
func ParsePlan(raw string) ([]StepSpec, error) {
	clean := strings.TrimSpace(fenceRe.ReplaceAllString(raw, ""))
	if clean == "" {
		return nil, &PlanError{Reason: "empty plan response", Raw: raw}
	}

	var v any
	if err := json.Unmarshal([]byte(clean), &v); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(clean)
		if rerr != nil {
			return nil, &PlanError{Reason: fmt.Sprintf("unparseable even after repair: %v", err), Raw: raw}
		}
		if err := json.Unmarshal([]byte(repaired), &v); err != nil {
			return nil, &PlanError{Reason: fmt.Sprintf("repair produced invalid JSON: %v", err), Raw: raw}
		}
	}

	var list []any
	switch t := v.(type) {
	case []any:
		list = t
	case map[string]any:
		if _, ok := t["tool"]; !ok {
			return nil, &PlanError{Reason: "single step object is missing 'tool'", Raw: raw}
		}
		list = []any{t}
	default:
		return nil, &PlanError{Reason: fmt.Sprintf("plan is %T, not a list of steps", v), Raw: raw}
	}

	steps := make([]StepSpec, 0, len(list))
	for i, el := range list {
		m, ok := el.(map[string]any)
		if !ok {
			return nil, &PlanError{Reason: fmt.Sprintf("step %d is not an object", i), Raw: raw}
		}
		step, err := stepFromMap(m, i)
		if err != nil {
			return nil, &PlanError{Reason: err.Error(), Raw: raw}
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// stepFromMap validates one wire-shaped step object. The same rules apply
// to plan elements and to correction replies.
func stepFromMap(m map[string]any, idx int) (StepSpec, error) {
	tool, _ := m["tool"].(string)
	if tool == "" {
		return StepSpec{}, fmt.Errorf("step %d is missing 'tool'", idx)
	}
	desc, _ := m["description"].(string)
	params := make(map[string]any, len(m))
	for k, v := range m {
		if k == "tool" || k == "description" {
			continue
		}
		params[k] = v
	}
	if desc == "" {
		desc = synthesizeDescription(tool, params, idx)
	}
	return StepSpec{Tool: tool, Description: desc, Params: params}, nil
}

// synthesizeDescription builds a description for steps the model left
// unlabeled: the tool name plus a preview of its primary parameter, or a
// generic "step N" fallback.
func synthesizeDescription(tool string, params map[string]any, idx int) string {
	for _, key := range []string{"command", "code", "input"} {
		v, ok := params[key]
		if !ok || v == nil {
			continue
		}
		preview := strings.TrimSpace(fmt.Sprintf("%v", v))
		if preview == "" {
			continue
		}
		if len(preview) > 50 {
			preview = preview[:50]
		}
		return fmt.Sprintf("Run %s (%s...)", tool, preview)
	}
	return fmt.Sprintf("Run %s step %d", tool, idx+1)
}
