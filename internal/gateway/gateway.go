package gateway

import (
	"context"

	"github.com/rahul/sahayak/internal/agent"
	"github.com/rahul/sahayak/internal/observability"
	"github.com/rahul/sahayak/internal/store"
	"github.com/rahul/sahayak/internal/tools"
	"github.com/rahul/sahayak/pkg/config"
)

// Server bundles the long-lived collaborators every connection shares.
// Workflows are built per request so each one carries its own observer and
// model selection.
type Server struct {
	Cfg      *config.Config
	LLM      agent.CompletionClient
	Models   ModelLister
	Registry *tools.Registry
	Prompts  *agent.PromptManager
	Logger   *observability.Logger
	Store    *store.RunStore
	Alerts   agent.Messenger
}

// ModelLister exposes the backend's model inventory for the UI dropdown.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// newWorkflow assembles a single-run workflow around the given observer and
// per-run model selection.
func (s *Server) newWorkflow(obs agent.Observer, models agent.ModelSet) *agent.Workflow {
	exec := &agent.Executor{
		Registry:         s.Registry,
		Classifier:       agent.NewClassifier(s.Cfg.Agent.FailureKeywords),
		Corrector:        &agent.Corrector{LLM: s.LLM, Prompts: s.Prompts, Ceiling: s.Cfg.Agent.MaxRetries},
		Logger:           s.Logger,
		Observer:         obs,
		BrowserStepLimit: s.Cfg.Agent.BrowserStepLimit,
	}
	wf := &agent.Workflow{
		LLM:      s.LLM,
		Prompts:  s.Prompts,
		Executor: exec,
		Observer: obs,
		Logger:   s.Logger,
		Alerts:   s.Alerts,
		Models:   models,
		MaxSteps: s.Cfg.Agent.MaxSteps,
	}
	if s.Store != nil {
		wf.Store = s.Store
	}
	return wf
}

// defaultModels resolves the configured per-role model names.
func (s *Server) defaultModels() agent.ModelSet {
	return agent.ModelSet{
		Planner: s.Cfg.Models.Planner,
		Browser: s.Cfg.Models.Browser,
	}
}
