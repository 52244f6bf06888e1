package governance

import (
	"context"
	"fmt"
	"regexp"
)

// Effect is the outcome class of a policy decision.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes one tool dispatch about to happen. Command is the
// resolved executable name for shell dispatches; Arguments is the full
// command line as written.
type Request struct {
	Tool      string
	Command   string
	Arguments string
}

// Result is the decision for one request.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine decides whether a tool dispatch may proceed.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// ShellPolicy gates dispatches with a command allowlist plus denied
// argument patterns. An empty allowlist permits any command not matched by
// a deny rule.
type ShellPolicy struct {
	allowed     map[string]struct{}
	deniedTools map[string]struct{}
	denied      []*regexp.Regexp
}

// NewShellPolicy compiles the deny patterns up front so a bad pattern is a
// startup error rather than a silent no-op at dispatch time.
func NewShellPolicy(allowedCommands, deniedPatterns []string) (*ShellPolicy, error) {
	p := &ShellPolicy{
		allowed:     make(map[string]struct{}, len(allowedCommands)),
		deniedTools: make(map[string]struct{}),
	}
	for _, c := range allowedCommands {
		p.allowed[c] = struct{}{}
	}
	for _, pat := range deniedPatterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, fmt.Errorf("denied argument pattern %q: %w", pat, err)
		}
		p.denied = append(p.denied, re)
	}
	return p, nil
}

// DenyTool blocks a tool outright regardless of its arguments.
func (p *ShellPolicy) DenyTool(name string) {
	p.deniedTools[name] = struct{}{}
}

func (p *ShellPolicy) Evaluate(ctx context.Context, req Request) (Result, error) {
	if _, blocked := p.deniedTools[req.Tool]; blocked {
		return Result{EffectDeny, fmt.Sprintf("tool '%s' is restricted by policy", req.Tool)}, nil
	}
	if len(p.allowed) > 0 && req.Command != "" {
		if _, ok := p.allowed[req.Command]; !ok {
			return Result{EffectDeny, fmt.Sprintf("command '%s' is not on the allowlist", req.Command)}, nil
		}
	}
	for _, re := range p.denied {
		if re.MatchString(req.Arguments) {
			return Result{EffectDeny, fmt.Sprintf("arguments match restricted pattern %q", re)}, nil
		}
	}
	return Result{EffectAllow, "approved"}, nil
}
