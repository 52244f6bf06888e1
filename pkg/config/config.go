package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App       AppConfig                 `json:"app" yaml:"app"`
	Agent     AgentConfig               `json:"agent" yaml:"agent"`
	Models    ModelsConfig              `json:"models" yaml:"models"`
	Providers map[string]ProviderConfig `json:"providers" yaml:"providers"`
	Gateways  map[string]GatewayConfig  `json:"gateways" yaml:"gateways"`
	Memory    MemoryConfig              `json:"memory" yaml:"memory"`
}

type AppConfig struct {
	Name      string `json:"name" yaml:"name"`
	Listen    string `json:"listen" yaml:"listen"`
	Workspace string `json:"workspace" yaml:"workspace"`
	Frontend  string `json:"frontend" yaml:"frontend"`
	Prompts   string `json:"prompts" yaml:"prompts"`
}

// AgentConfig carries the workflow tunables. The retry ceiling and the
// failure keyword set are deliberately configuration, not constants: the
// right values are deployment-specific.
type AgentConfig struct {
	MaxSteps           int      `json:"max_steps" yaml:"max_steps"`
	MaxRetries         int      `json:"max_retries" yaml:"max_retries"`
	BrowserStepLimit   int      `json:"browser_step_limit" yaml:"browser_step_limit"`
	FailureKeywords    []string `json:"failure_keywords" yaml:"failure_keywords"`
	AllowedCommands    []string `json:"allowed_commands" yaml:"allowed_commands"`
	DeniedArgPatterns  []string `json:"denied_arg_patterns" yaml:"denied_arg_patterns"`
	ShellTimeoutSecs   int      `json:"shell_timeout_seconds" yaml:"shell_timeout_seconds"`
	CodeTimeoutSecs    int      `json:"code_timeout_seconds" yaml:"code_timeout_seconds"`
	PythonInterpreter  string   `json:"python_interpreter" yaml:"python_interpreter"`
	AutoInstallModules bool     `json:"auto_install_modules" yaml:"auto_install_modules"`
}

type ModelsConfig struct {
	Planner string `json:"planner" yaml:"planner"`
	Browser string `json:"browser" yaml:"browser"`
}

type ProviderConfig struct {
	APIKey  string `json:"api_key" yaml:"api_key"`
	Model   string `json:"model" yaml:"model"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type GatewayConfig struct {
	Token   string `json:"token" yaml:"token"`
	ChatID  int64  `json:"chat_id" yaml:"chat_id"`
	Enabled bool   `json:"enabled" yaml:"enabled"`
}

type MemoryConfig struct {
	Type string `json:"type" yaml:"type"`
	Path string `json:"path" yaml:"path"`
}

func LoadConfig(path string) *Config {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("failed to open config file: %v", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		log.Fatalf("failed to decode config file: %v", err)
	}

	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.App.Listen == "" {
		c.App.Listen = ":8020"
	}
	if c.App.Prompts == "" {
		c.App.Prompts = "./prompts"
	}
	if c.Agent.MaxSteps <= 0 {
		c.Agent.MaxSteps = 10
	}
	if c.Agent.MaxRetries <= 0 {
		c.Agent.MaxRetries = 2
	}
	if c.Agent.BrowserStepLimit <= 0 {
		c.Agent.BrowserStepLimit = 15
	}
	if c.Agent.ShellTimeoutSecs <= 0 {
		c.Agent.ShellTimeoutSecs = 15
	}
	if c.Agent.CodeTimeoutSecs <= 0 {
		c.Agent.CodeTimeoutSecs = 60
	}
	if c.Agent.PythonInterpreter == "" {
		c.Agent.PythonInterpreter = "python3"
	}
	if len(c.Agent.AllowedCommands) == 0 {
		c.Agent.AllowedCommands = []string{
			"ls", "pwd", "echo", "cat", "grep", "mkdir", "rmdir",
			"touch", "head", "tail", "date",
		}
	}
}

// ShellTimeout and CodeTimeout expose the tunables as durations.
func (c *AgentConfig) ShellTimeout() time.Duration {
	return time.Duration(c.ShellTimeoutSecs) * time.Second
}

func (c *AgentConfig) CodeTimeout() time.Duration {
	return time.Duration(c.CodeTimeoutSecs) * time.Second
}

// GetDefaultProvider returns the first enabled provider
func (c *Config) GetDefaultProvider() (string, ProviderConfig) {
	for name, p := range c.Providers {
		if p.Enabled {
			return name, p
		}
	}
	return "", ProviderConfig{}
}

// GetTelegramConfig returns telegram config if enabled
func (c *Config) GetTelegramConfig() (GatewayConfig, bool) {
	tg, ok := c.Gateways["telegram"]
	if ok && tg.Enabled && tg.Token != "" {
		return tg, true
	}
	return GatewayConfig{}, false
}
