package tools

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rahul/sahayak/internal/governance"
)

type nopNotifier struct{}

func (nopNotifier) Notify(string) {}

func testPolicy(commands ...string) *governance.ShellPolicy {
	p, err := governance.NewShellPolicy(commands, nil)
	if err != nil {
		panic(err)
	}
	return p
}

func TestShellRunner_Echo(t *testing.T) {
	r := NewShellRunner(testPolicy("echo"), 5*time.Second, "")
	out, err := r.Invoke(context.Background(), map[string]any{"command": "echo hi"}, nopNotifier{})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if !strings.Contains(out, "Exit Code: 0") {
		t.Errorf("missing exit code line: %q", out)
	}
	if !strings.Contains(out, "Output:\nhi") {
		t.Errorf("missing command output: %q", out)
	}
}

func TestShellRunner_DeniedCommand(t *testing.T) {
	r := NewShellRunner(testPolicy("echo"), 5*time.Second, "")
	out, err := r.Invoke(context.Background(), map[string]any{"command": "curl http://example.com"}, nopNotifier{})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if !strings.Contains(out, "not allowed") {
		t.Errorf("expected a denial report, got %q", out)
	}
}

func TestShellRunner_DeniedArguments(t *testing.T) {
	policy, err := governance.NewShellPolicy([]string{"echo"}, []string{`rm\s+-rf`})
	if err != nil {
		t.Fatal(err)
	}
	r := NewShellRunner(policy, 5*time.Second, "")
	out, err := r.Invoke(context.Background(), map[string]any{"command": "echo rm -rf /"}, nopNotifier{})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if !strings.Contains(out, "not allowed") {
		t.Errorf("expected a denial report, got %q", out)
	}
}

func TestShellRunner_EmptyCommand(t *testing.T) {
	r := NewShellRunner(testPolicy(), 5*time.Second, "")
	out, err := r.Invoke(context.Background(), map[string]any{"command": "   "}, nopNotifier{})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if out != "Error: Empty command." {
		t.Errorf("out = %q", out)
	}
}

func TestShellRunner_UnparseableCommand(t *testing.T) {
	r := NewShellRunner(testPolicy("echo"), 5*time.Second, "")
	out, err := r.Invoke(context.Background(), map[string]any{"command": `echo "unterminated`}, nopNotifier{})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if !strings.Contains(out, "Error parsing command") {
		t.Errorf("out = %q", out)
	}
}

func TestShellRunner_NonZeroExit(t *testing.T) {
	r := NewShellRunner(testPolicy("ls"), 5*time.Second, "")
	out, err := r.Invoke(context.Background(), map[string]any{"command": "ls /definitely/not/a/path"}, nopNotifier{})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if strings.Contains(out, "Exit Code: 0") {
		t.Errorf("expected non-zero exit, got %q", out)
	}
	if !strings.Contains(out, "Errors:") {
		t.Errorf("stderr section missing: %q", out)
	}
}
