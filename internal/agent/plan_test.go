package agent

import (
	"errors"
	"strings"
	"testing"
)

func TestParsePlan_List(t *testing.T) {
	raw := `[
		{"tool": "shell_terminal", "description": "List files", "command": ["ls", "-la"]},
		{"tool": "code_interpreter", "description": "Sum numbers", "code": "print(1+2)"}
	]`
	steps, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan returned error: %v", err)
	}
	if len(steps) != 2 {
		t.Fatalf("expected 2 steps, got %d", len(steps))
	}
	if steps[0].Tool != "shell_terminal" || steps[0].Description != "List files" {
		t.Errorf("unexpected first step: %+v", steps[0])
	}
	if _, ok := steps[0].Params["command"]; !ok {
		t.Error("command parameter was not preserved")
	}
	if _, ok := steps[0].Params["tool"]; ok {
		t.Error("'tool' key leaked into params")
	}
	if steps[1].Params["code"] != "print(1+2)" {
		t.Errorf("code parameter = %v", steps[1].Params["code"])
	}
}

func TestParsePlan_FencedResponse(t *testing.T) {
	raw := "```json\n[{\"tool\": \"browser\", \"description\": \"Look it up\", \"input\": \"find the docs\"}]\n```"
	steps, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan returned error: %v", err)
	}
	if len(steps) != 1 || steps[0].Tool != "browser" {
		t.Fatalf("unexpected steps: %+v", steps)
	}
}

func TestParsePlan_SingleObjectWrapped(t *testing.T) {
	raw := `{"tool": "shell_terminal", "description": "One step", "command": ["pwd"]}`
	steps, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan returned error: %v", err)
	}
	if len(steps) != 1 {
		t.Fatalf("expected single wrapped step, got %d", len(steps))
	}
}

func TestParsePlan_RepairableJSON(t *testing.T) {
	// Trailing comma and single quotes: invalid JSON that the repairer
	// can normalize.
	raw := `[{'tool': 'shell_terminal', 'description': 'List', 'command': ['ls'],},]`
	steps, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan returned error: %v", err)
	}
	if len(steps) != 1 || steps[0].Tool != "shell_terminal" {
		t.Fatalf("unexpected steps: %+v", steps)
	}
}

func TestParsePlan_Errors(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		reason string
	}{
		{"empty", "   ", "empty plan"},
		{"fences only", "```\n```", "empty plan"},
		{"scalar", `"just a string"`, "not a list"},
		{"missing tool in element", `[{"description": "no tool here"}]`, "step 0 is missing 'tool'"},
		{"missing tool at index", `[{"tool": "shell_terminal", "command": ["ls"]}, {"description": "oops"}]`, "step 1 is missing 'tool'"},
		{"non-object element", `[42]`, "step 0 is not an object"},
		{"single object without tool", `{"description": "nope"}`, "missing 'tool'"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan(tt.raw)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			var pe *PlanError
			if !errors.As(err, &pe) {
				t.Fatalf("expected *PlanError, got %T", err)
			}
			if !strings.Contains(pe.Reason, tt.reason) {
				t.Errorf("reason %q does not contain %q", pe.Reason, tt.reason)
			}
		})
	}
}

func TestParsePlan_SynthesizedDescription(t *testing.T) {
	raw := `[
		{"tool": "shell_terminal", "command": "ls -la /tmp"},
		{"tool": "code_interpreter", "other": true}
	]`
	steps, err := ParsePlan(raw)
	if err != nil {
		t.Fatalf("ParsePlan returned error: %v", err)
	}
	if !strings.Contains(steps[0].Description, "shell_terminal") || !strings.Contains(steps[0].Description, "ls -la /tmp") {
		t.Errorf("synthesized description = %q", steps[0].Description)
	}
	if steps[1].Description != "Run code_interpreter step 2" {
		t.Errorf("fallback description = %q", steps[1].Description)
	}
}

func TestStepSpec_MapRoundTrip(t *testing.T) {
	s := StepSpec{
		Tool:        "shell_terminal",
		Description: "List",
		Params:      map[string]any{"command": []any{"ls"}},
	}
	m := s.Map()
	if m["tool"] != "shell_terminal" || m["description"] != "List" {
		t.Errorf("Map() = %v", m)
	}
	if _, ok := m["command"]; !ok {
		t.Error("Map() dropped params")
	}
}
