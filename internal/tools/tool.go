package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Canonical tool names, matching what the planner model is told to emit.
const (
	NameShell   = "shell_terminal"
	NameCode    = "code_interpreter"
	NameBrowser = "browser"
)

// Notifier receives live progress lines from a runner. Implementations are
// best-effort; runners never fail because a notification did.
type Notifier interface {
	Notify(text string)
}

// Runner is one external capability the agent can dispatch a step to.
// Invoke returns a textual report carrying the shared
// "Exit Code:/Output:/Errors:" convention, or an error on infrastructure
// failure (which the executor converts into a failure-classified result).
type Runner interface {
	Name() string
	// Check reports whether the capability is usable on this host. It is
	// probed once at registration.
	Check() error
	Invoke(ctx context.Context, params map[string]any, notify Notifier) (string, error)
}

// Registry manages the set of available runners and their probed
// availability. Steps targeting an unavailable capability get a structured
// "tool unavailable" failure instead of a silent stub.
type Registry struct {
	mu      sync.RWMutex
	runners map[string]Runner
	missing map[string]error
}

func NewRegistry() *Registry {
	return &Registry{
		runners: make(map[string]Runner),
		missing: make(map[string]error),
	}
}

func (r *Registry) Register(rn Runner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runners[rn.Name()] = rn
	if err := rn.Check(); err != nil {
		r.missing[rn.Name()] = err
	} else {
		delete(r.missing, rn.Name())
	}
}

func (r *Registry) Get(name string) Runner {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runners[name]
}

// Available returns nil when the named runner is registered and its
// startup probe passed.
func (r *Registry) Available(name string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.runners[name]; !ok {
		return fmt.Errorf("no runner registered for %q", name)
	}
	if err, ok := r.missing[name]; ok {
		return err
	}
	return nil
}

// Names lists registered runners in stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.runners))
	for n := range r.runners {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// formatReport renders the shared tool-output convention parsed by the
// classifier.
func formatReport(exitCode int, stdout, stderr string) string {
	parts := []string{fmt.Sprintf("Exit Code: %d", exitCode)}
	if out := strings.TrimSpace(stdout); out != "" {
		parts = append(parts, "Output:\n"+out)
	}
	if errOut := strings.TrimSpace(stderr); errOut != "" {
		label := "Errors:"
		if exitCode == 0 {
			label = "Stderr Log:"
		}
		parts = append(parts, label+"\n"+errOut)
	}
	return strings.Join(parts, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
