package agent

import (
	"log"
	"os"
	"path/filepath"
	"strings"
)

// PromptManager loads system prompts from a directory so operators can tune
// them without rebuilding. Missing files fall back to the built-in defaults.
type PromptManager struct {
	Directory string
}

func NewPromptManager(dir string) *PromptManager {
	return &PromptManager{Directory: dir}
}

func (pm *PromptManager) load(name, fallback string) string {
	path := filepath.Join(pm.Directory, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		log.Printf("Warning: prompt file %s is empty, using built-in default", path)
		return fallback
	}
	return text
}

// PlannerPrompt is the system message for planning and self-correction.
func (pm *PromptManager) PlannerPrompt() string {
	return pm.load("planner.md", defaultPlannerPrompt)
}

// SummarizerPrompt is the system message for the final validation pass.
func (pm *PromptManager) SummarizerPrompt() string {
	return pm.load("summarizer.md", defaultSummarizerPrompt)
}

const defaultPlannerPrompt = `You are 'Agent', a highly autonomous AI assistant. You achieve the user's request by planning tool calls, executing them, rigorously analyzing results, and correcting errors.

Available tools:
1. shell_terminal: executes whitelisted shell commands. Parameters: {"command": ["list", "of", "strings"]}. Output contains "Exit Code: X", "Output:", "Errors:".
2. code_interpreter: executes Python code. Parameters: {"code": "python code as a single JSON string"}. The result of the previous successful step is available in the string variable previous_step_result. Output contains "Exit Code: X", "Output:", "Error:".
3. browser: interacts with web pages from a natural-language instruction. Parameters: {"input": "clear instruction for the browser task"}. If the URL is unknown, instruct it to search first.

Planning: output ONLY a valid JSON list of steps. Each step object must include "tool", "description", and the tool-specific parameters. Escape strings properly (especially "code": \n, \\, \").

Analysis: check "Exit Code:" when present (non-zero means failure) and watch for error keywords (Error:, failed, exception, timeout).

Correction: when asked to fix a failed step, output ONLY the single corrected JSON tool call object. No explanations, no markdown fences.`

const defaultSummarizerPrompt = `You are summarizing and validating the final output of an AI agent workflow.`
