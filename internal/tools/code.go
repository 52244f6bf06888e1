package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// CodeRunner executes Python snippets in a subprocess. On
// ModuleNotFoundError it can install the missing package via pip and retry
// the script once.
type CodeRunner struct {
	Interpreter string
	Timeout     time.Duration
	AutoInstall bool
}

func NewCodeRunner(interpreter string, timeout time.Duration, autoInstall bool) *CodeRunner {
	return &CodeRunner{Interpreter: interpreter, Timeout: timeout, AutoInstall: autoInstall}
}

func (c *CodeRunner) Name() string {
	return NameCode
}

func (c *CodeRunner) Check() error {
	if _, err := exec.LookPath(c.Interpreter); err != nil {
		return fmt.Errorf("interpreter %q not found in PATH", c.Interpreter)
	}
	return nil
}

var moduleNotFoundRe = regexp.MustCompile(`No module named ['"](.+?)['"]`)
var packageNameRe = regexp.MustCompile(`[^a-zA-Z0-9_\-.]`)

func (c *CodeRunner) Invoke(ctx context.Context, params map[string]any, notify Notifier) (string, error) {
	code, _ := params["code"].(string)
	if strings.TrimSpace(code) == "" {
		return "Error: No Python code provided to execute.", nil
	}

	notify.Notify("Code Interpreter: preparing to run Python code...")

	tmp, err := os.CreateTemp("", "sahayak-*.py")
	if err != nil {
		return fmt.Sprintf("Error: failed to create temporary script: %v", err), nil
	}
	scriptPath := tmp.Name()
	defer os.Remove(scriptPath)

	if _, err := tmp.WriteString(code); err != nil {
		tmp.Close()
		return fmt.Sprintf("Error: failed to write temporary script: %v", err), nil
	}
	if err := tmp.Close(); err != nil {
		return fmt.Sprintf("Error: failed to write temporary script: %v", err), nil
	}

	exitCode, stdout, stderr := c.runScript(ctx, scriptPath, 1, notify)

	if exitCode != 0 && c.AutoInstall && strings.Contains(stderr, "ModuleNotFoundError: No module named") {
		if pkg := parseMissingModule(stderr); pkg != "" {
			notify.Notify(fmt.Sprintf("Code Interpreter: detected missing module '%s', attempting pip install...", pkg))
			if installErr := c.pipInstall(ctx, pkg); installErr == nil {
				notify.Notify(fmt.Sprintf("Code Interpreter: installed '%s', retrying script...", pkg))
				exitCode, stdout, stderr = c.runScript(ctx, scriptPath, 2, notify)
			} else {
				stderr += fmt.Sprintf("\n\n--- Auto-install failed ---\n%v", installErr)
			}
		} else {
			notify.Notify("Code Interpreter: ModuleNotFoundError detected, but could not parse the package name.")
		}
	}

	if exitCode == 0 {
		notify.Notify("Code Interpreter: script executed successfully.")
	} else {
		notify.Notify(fmt.Sprintf("Code Interpreter: script finished with errors (Exit Code: %d).", exitCode))
	}
	return formatCodeReport(exitCode, stdout, stderr), nil
}

func (c *CodeRunner) runScript(ctx context.Context, scriptPath string, attempt int, notify Notifier) (int, string, string) {
	notify.Notify(fmt.Sprintf("Code Interpreter: executing script (attempt %d)...", attempt))

	cctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, c.Interpreter, scriptPath)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		return -1, "", fmt.Sprintf("Error: Python execution timed out after %s.", c.Timeout)
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return -1, "", fmt.Sprintf("Error: failed to run interpreter: %v", runErr)
		}
	}
	return exitCode, stdout.String(), stderr.String()
}

func (c *CodeRunner) pipInstall(ctx context.Context, pkg string) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	cmd := exec.CommandContext(cctx, c.Interpreter, "-m", "pip", "install", pkg)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pip install %s failed: %v: %s", pkg, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func parseMissingModule(stderr string) string {
	m := moduleNotFoundRe.FindStringSubmatch(stderr)
	if m == nil {
		return ""
	}
	return packageNameRe.ReplaceAllString(m[1], "")
}

// formatCodeReport matches the interpreter's historical convention: stderr
// is labeled "Error:" on failure and "Stderr Log:" on success.
func formatCodeReport(exitCode int, stdout, stderr string) string {
	parts := []string{fmt.Sprintf("Exit Code: %d", exitCode)}
	if out := strings.TrimSpace(stdout); out != "" {
		parts = append(parts, "Output:\n"+out)
	}
	if errOut := strings.TrimSpace(stderr); errOut != "" {
		label := "Error:"
		if exitCode == 0 {
			label = "Stderr Log:"
		}
		parts = append(parts, label+"\n"+errOut)
	}
	return strings.Join(parts, "\n")
}
