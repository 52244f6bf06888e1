package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahul/sahayak/internal/agent"
	"github.com/rahul/sahayak/internal/gateway"
	"github.com/rahul/sahayak/internal/governance"
	"github.com/rahul/sahayak/internal/llm"
	"github.com/rahul/sahayak/internal/observability"
	"github.com/rahul/sahayak/internal/store"
	"github.com/rahul/sahayak/internal/tools"
	"github.com/rahul/sahayak/pkg/config"
)

// baselineDenyPatterns are argument patterns refused regardless of the
// configured allowlist.
var baselineDenyPatterns = []string{
	`rm\s+-rf`,
	`mkfs`,
	`shutdown`,
	`reboot`,
}

func main() {
	observability.PrintBanner()

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	cfg := config.LoadConfig(configPath)

	logger := observability.NewLogger()

	// Governance: shell allowlist plus destructive-argument deny rules.
	policy, err := governance.NewShellPolicy(
		cfg.Agent.AllowedCommands,
		append(baselineDenyPatterns, cfg.Agent.DeniedArgPatterns...),
	)
	if err != nil {
		log.Fatalf("invalid shell policy: %v", err)
	}

	// LLM backend.
	providerName, providerCfg := cfg.GetDefaultProvider()
	if providerName == "" {
		log.Fatal("no enabled LLM provider in config")
	}
	client, err := llm.NewClient(providerName, providerCfg, logger)
	if err != nil {
		log.Fatalf("failed to initialize LLM provider: %v", err)
	}
	log.Printf("LLM provider: %s", providerName)

	// Tool runners. Failed probes are logged; the step executor reports
	// them per dispatch.
	registry := tools.NewRegistry()
	registry.Register(tools.NewShellRunner(policy, cfg.Agent.ShellTimeout(), cfg.App.Workspace))
	registry.Register(tools.NewCodeRunner(cfg.Agent.PythonInterpreter, cfg.Agent.CodeTimeout(), cfg.Agent.AutoInstallModules))
	browser := tools.NewBrowserRunner(client, true)
	registry.Register(browser)
	defer browser.Close()
	for _, name := range registry.Names() {
		if err := registry.Available(name); err != nil {
			log.Printf("Warning: tool %q unavailable: %v", name, err)
		}
	}

	// Run history.
	var runStore *store.RunStore
	if cfg.Memory.Path != "" {
		runStore, err = store.NewRunStore(cfg.Memory.Path)
		if err != nil {
			log.Fatalf("failed to open run store at %s: %v", cfg.Memory.Path, err)
		}
		defer runStore.Close()
	}

	// Optional Telegram alerts.
	var alerts agent.Messenger
	if tg, ok := cfg.GetTelegramConfig(); ok {
		notifier, err := gateway.NewTelegramNotifier(tg.Token, tg.ChatID)
		if err != nil {
			log.Printf("Warning: Telegram notifier disabled: %v", err)
		} else {
			alerts = notifier
			log.Println("Telegram alerts enabled")
		}
	}

	server := &gateway.Server{
		Cfg:      cfg,
		LLM:      client,
		Models:   client,
		Registry: registry,
		Prompts:  agent.NewPromptManager(cfg.App.Prompts),
		Logger:   logger,
		Store:    runStore,
		Alerts:   alerts,
	}

	httpServer := &http.Server{
		Addr:    cfg.App.Listen,
		Handler: gateway.NewRouter(server),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("Listening on %s", cfg.App.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}
