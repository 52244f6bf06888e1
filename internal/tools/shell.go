package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/kballard/go-shellquote"
	"github.com/rahul/sahayak/internal/governance"
)

// ShellRunner executes allowlisted shell commands directly (no shell
// interpolation) with a bounded execution time.
type ShellRunner struct {
	Policy  governance.PolicyEngine
	Timeout time.Duration
	Dir     string
}

func NewShellRunner(policy governance.PolicyEngine, timeout time.Duration, workDir string) *ShellRunner {
	return &ShellRunner{Policy: policy, Timeout: timeout, Dir: workDir}
}

func (s *ShellRunner) Name() string {
	return NameShell
}

func (s *ShellRunner) Check() error {
	return nil
}

func (s *ShellRunner) Invoke(ctx context.Context, params map[string]any, notify Notifier) (string, error) {
	command, _ := params["command"].(string)
	if strings.TrimSpace(command) == "" {
		return "Error: Empty command.", nil
	}

	notify.Notify(fmt.Sprintf("Shell: preparing: %s", truncate(command, 50)))

	tokens, err := shellquote.Split(command)
	if err != nil {
		return fmt.Sprintf("Error parsing command: %v", err), nil
	}
	if len(tokens) == 0 {
		return "Error: Empty command.", nil
	}

	res, err := s.Policy.Evaluate(ctx, governance.Request{
		Tool:      NameShell,
		Command:   tokens[0],
		Arguments: command,
	})
	if err != nil {
		return "", err
	}
	if res.Effect == governance.EffectDeny {
		return fmt.Sprintf("Error: Command '%s' not allowed: %s", tokens[0], res.Reason), nil
	}

	cctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, tokens[0], tokens[1:]...)
	if s.Dir != "" {
		cmd.Dir = s.Dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	notify.Notify(fmt.Sprintf("Shell: running: %s", strings.Join(tokens, " ")))
	runErr := cmd.Run()

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("Error: Timeout after %s.", s.Timeout), nil
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			// Command never started (not found, permission, ...).
			return fmt.Sprintf("Error: %v", runErr), nil
		}
	}

	notify.Notify(fmt.Sprintf("Shell: finished (Exit: %d).", exitCode))
	return formatReport(exitCode, stdout.String(), stderr.String()), nil
}
