package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_YAMLWithDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
app:
  name: test
providers:
  ollama:
    enabled: true
    model: llama3.2
`)
	cfg := LoadConfig(path)

	if cfg.App.Name != "test" {
		t.Errorf("App.Name = %q", cfg.App.Name)
	}
	if cfg.App.Listen != ":8020" {
		t.Errorf("default listen = %q", cfg.App.Listen)
	}
	if cfg.Agent.MaxSteps != 10 || cfg.Agent.MaxRetries != 2 || cfg.Agent.BrowserStepLimit != 15 {
		t.Errorf("agent defaults = %+v", cfg.Agent)
	}
	if cfg.Agent.PythonInterpreter != "python3" {
		t.Errorf("interpreter default = %q", cfg.Agent.PythonInterpreter)
	}
	if len(cfg.Agent.AllowedCommands) == 0 {
		t.Error("default command allowlist is empty")
	}
	if got := cfg.Agent.ShellTimeout(); got != 15*time.Second {
		t.Errorf("ShellTimeout = %v", got)
	}
	if got := cfg.Agent.CodeTimeout(); got != 60*time.Second {
		t.Errorf("CodeTimeout = %v", got)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{
		"app": {"listen": ":9000"},
		"agent": {"max_steps": 5, "allowed_commands": ["ls"]}
	}`)
	cfg := LoadConfig(path)

	if cfg.App.Listen != ":9000" {
		t.Errorf("Listen = %q", cfg.App.Listen)
	}
	if cfg.Agent.MaxSteps != 5 {
		t.Errorf("MaxSteps = %d", cfg.Agent.MaxSteps)
	}
	if len(cfg.Agent.AllowedCommands) != 1 || cfg.Agent.AllowedCommands[0] != "ls" {
		t.Errorf("configured allowlist was overridden: %v", cfg.Agent.AllowedCommands)
	}
}

func TestGetDefaultProvider(t *testing.T) {
	cfg := &Config{Providers: map[string]ProviderConfig{
		"openai": {Enabled: false, APIKey: "k"},
		"ollama": {Enabled: true, Model: "llama3.2"},
	}}
	name, p := cfg.GetDefaultProvider()
	if name != "ollama" || p.Model != "llama3.2" {
		t.Errorf("GetDefaultProvider = %q, %+v", name, p)
	}

	empty := &Config{}
	if name, _ := empty.GetDefaultProvider(); name != "" {
		t.Errorf("expected no provider, got %q", name)
	}
}

func TestGetTelegramConfig(t *testing.T) {
	cfg := &Config{Gateways: map[string]GatewayConfig{
		"telegram": {Enabled: true, Token: "tok", ChatID: 42},
	}}
	tg, ok := cfg.GetTelegramConfig()
	if !ok || tg.ChatID != 42 {
		t.Errorf("GetTelegramConfig = %+v, %v", tg, ok)
	}

	// Enabled without a token is not usable.
	cfg.Gateways["telegram"] = GatewayConfig{Enabled: true}
	if _, ok := cfg.GetTelegramConfig(); ok {
		t.Error("expected telegram to be disabled without a token")
	}
}
