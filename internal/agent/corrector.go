package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// CompletionClient is the language-model collaborator surface the agent
// consumes. An empty reply is a first-class outcome, not an error.
type CompletionClient interface {
	Complete(ctx context.Context, model, prompt, system string) (string, error)
}

// Corrector asks the planner model to produce one corrected step for a
// failed invocation. It fails soft: any unusable reply is reported as
// "no correction", which the executor treats like exhausted retries.
type Corrector struct {
	LLM     CompletionClient
	Prompts *PromptManager

	// Ceiling is the number of extra attempts allowed beyond the first
	// dispatch of a step.
	Ceiling int
}

// Negotiate builds the correction request for a failed step and validates
// the model's reply with the same structural rules as a single-element
// plan. A missing description is inherited from the original step.
func (c *Corrector) Negotiate(ctx context.Context, model string, step StepSpec, reason, resultText string, attempt int, notify Notifier) (StepSpec, bool) {
	failJSON, err := json.MarshalIndent(step.Map(), "", "  ")
	if err != nil {
		failJSON = []byte(fmt.Sprintf("%v", step.Map()))
	}

	prompt := fmt.Sprintf(
		"Failed step %d/%d:\nTask: %s\nCall:\n```json\n%s\n```\nReason: %s\nOutput:\n```\n%s\n```\n\nProvide ONLY the corrected JSON tool call.",
		attempt+1, c.Ceiling, step.Description, failJSON, reason, resultText,
	)

	reply, err := c.LLM.Complete(ctx, model, prompt, c.Prompts.PlannerPrompt())
	if err != nil {
		notify.Notify(fmt.Sprintf("Warning: correction request failed: %v", err))
		return StepSpec{}, false
	}
	if strings.TrimSpace(reply) == "" {
		notify.Notify("Warning: model gave no correction.")
		return StepSpec{}, false
	}

	corrected, hadDescription, err := parseCorrection(reply)
	if err != nil {
		notify.Notify(fmt.Sprintf("Error parsing correction: %v", err))
		log.Printf("Unusable correction reply: %.200s", reply)
		return StepSpec{}, false
	}
	if !hadDescription {
		corrected.Description = step.Description
	}
	notify.Notify("Agent: received potential correction.")
	return corrected, true
}

// parseCorrection applies the single-step path of the plan parser to a
// correction reply: fence stripping, strict parse, repair fallback, and
// the mapping-with-a-tool-key requirement.
func parseCorrection(reply string) (StepSpec, bool, error) {
	clean := strings.TrimSpace(fenceRe.ReplaceAllString(reply, ""))
	if clean == "" {
		return StepSpec{}, false, fmt.Errorf("empty correction")
	}

	var v any
	if err := json.Unmarshal([]byte(clean), &v); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(clean)
		if rerr != nil {
			return StepSpec{}, false, fmt.Errorf("unparseable correction: %v", err)
		}
		if err := json.Unmarshal([]byte(repaired), &v); err != nil {
			return StepSpec{}, false, fmt.Errorf("unparseable correction after repair: %v", err)
		}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return StepSpec{}, false, fmt.Errorf("correction is %T, not a single step object", v)
	}
	if _, ok := m["tool"].(string); !ok {
		return StepSpec{}, false, fmt.Errorf("correction is missing 'tool'")
	}
	desc, _ := m["description"].(string)
	step, err := stepFromMap(m, 0)
	if err != nil {
		return StepSpec{}, false, err
	}
	return step, desc != "", nil
}
