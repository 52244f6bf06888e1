package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/rahul/sahayak/internal/observability"
	"github.com/rahul/sahayak/pkg/config"
)

// Client wraps a langchaingo model behind the single-completion interface
// the rest of the agent consumes. The provider is fixed at construction;
// the model is chosen per call so planner and browser can run different
// models on the same backend.
type Client struct {
	model    llms.Model
	provider string
	baseURL  string
	fallback string
	logger   *observability.Logger
}

func NewClient(provider string, cfg config.ProviderConfig, logger *observability.Logger) (*Client, error) {
	c := &Client{
		provider: provider,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		fallback: cfg.Model,
		logger:   logger,
	}

	var err error
	switch provider {
	case "openai":
		opts := []openai.Option{openai.WithToken(cfg.APIKey)}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		c.model, err = openai.New(opts...)
	case "openrouter":
		base := cfg.BaseURL
		if base == "" {
			base = "https://openrouter.ai/api/v1"
		}
		opts := []openai.Option{
			openai.WithToken(cfg.APIKey),
			openai.WithBaseURL(base),
		}
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		c.model, err = openai.New(opts...)
	case "ollama":
		base := cfg.BaseURL
		if base == "" {
			base = "http://localhost:11434"
		}
		c.baseURL = strings.TrimRight(base, "/")
		model := cfg.Model
		if model == "" {
			model = "llama3.2"
		}
		c.model, err = ollama.New(
			ollama.WithModel(model),
			ollama.WithServerURL(base),
		)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s provider: %w", provider, err)
	}
	return c, nil
}

// Complete sends one prompt and returns the model's text reply. An empty
// model falls back to the provider's configured default. An empty reply is
// a normal outcome, not an error.
func (c *Client) Complete(ctx context.Context, model, prompt, system string) (string, error) {
	var messages []llms.MessageContent
	if system != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(system)},
		})
	}
	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(prompt)},
	})

	var opts []llms.CallOption
	if model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	resp, err := c.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", fmt.Errorf("llm completion failed: %w", err)
	}

	var reply string
	if len(resp.Choices) > 0 {
		reply = resp.Choices[0].Content
	}

	if c.logger != nil {
		name := model
		if name == "" {
			name = c.fallback
		}
		c.logger.LogLLM("", name, prompt, reply)
	}
	return reply, nil
}

// ollamaTags mirrors the /api/tags response shape.
type ollamaTags struct {
	Models []struct {
		Name  string `json:"name"`
		Model string `json:"model"`
	} `json:"models"`
}

// ListModels asks the backend which models it can serve. Only Ollama
// exposes an inventory endpoint; other providers report their configured
// default.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if c.provider != "ollama" || c.baseURL == "" {
		if c.fallback == "" {
			return nil, nil
		}
		return []string{c.fallback}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query ollama models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama /api/tags returned %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var tags ollamaTags
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("failed to decode ollama models: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, m := range tags.Models {
		name := m.Name
		if name == "" {
			name = m.Model
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
