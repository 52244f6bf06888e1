package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
	"github.com/kaptinlin/jsonrepair"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// Completer is the slice of the LLM client the browser sub-agent needs.
type Completer interface {
	Complete(ctx context.Context, model, prompt, system string) (string, error)
}

// BrowserRunner drives web tasks from a natural-language instruction: an
// inner LLM loop proposes one JSON action at a time (navigate, click,
// type, read, search, finish) which is executed against a persistent
// chromedp session. The loop is bounded by the step budget suggested in
// the invocation parameters.
type BrowserRunner struct {
	LLM      Completer
	Search   *duckduckgo.Tool
	Headless bool

	// actionTimeout bounds each individual page action.
	actionTimeout time.Duration

	mu            sync.Mutex
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
}

func NewBrowserRunner(llm Completer, headless bool) *BrowserRunner {
	search, err := duckduckgo.New(5, duckduckgo.DefaultUserAgent)
	if err != nil {
		search = nil
	}
	return &BrowserRunner{
		LLM:           llm,
		Search:        search,
		Headless:      headless,
		actionTimeout: 60 * time.Second,
	}
}

func (b *BrowserRunner) Name() string {
	return NameBrowser
}

var chromeCandidates = []string{
	"google-chrome", "google-chrome-stable", "chromium", "chromium-browser",
	"chrome", "headless-shell",
}

func (b *BrowserRunner) Check() error {
	for _, name := range chromeCandidates {
		if _, err := exec.LookPath(name); err == nil {
			return nil
		}
	}
	return fmt.Errorf("no Chrome/Chromium executable found in PATH")
}

func (b *BrowserRunner) initBrowser() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		select {
		case <-b.browserCtx.Done():
			b.cleanup()
		default:
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", b.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	b.allocCtx, b.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	b.browserCtx, b.browserCancel = chromedp.NewContext(b.allocCtx)

	return chromedp.Run(b.browserCtx)
}

func (b *BrowserRunner) cleanup() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.browserCtx = nil
	b.allocCtx = nil
}

// Close tears down the browser session. Safe to call when none is open.
func (b *BrowserRunner) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cleanup()
}

// browserAction is one JSON directive from the browsing model.
type browserAction struct {
	Action   string `json:"action"`
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	Query    string `json:"query,omitempty"`
	Answer   string `json:"answer,omitempty"`
}

const browserSystemPrompt = `You control a web browser one action at a time. Respond with exactly one JSON object, nothing else. Actions:
{"action":"navigate","url":"https://..."} - open a page
{"action":"read"} - extract the readable text of the current page
{"action":"click","selector":"css selector"} - click an element
{"action":"type","selector":"css selector","text":"..."} - type into an element
{"action":"search","query":"..."} - web search when you do not know the URL
{"action":"finish","answer":"..."} - stop and return the final answer/summary
Prefer read over guessing. Finish as soon as you can answer.`

func (b *BrowserRunner) Invoke(ctx context.Context, params map[string]any, notify Notifier) (string, error) {
	instruction, _ := params["input"].(string)
	if strings.TrimSpace(instruction) == "" {
		return "Error: Missing 'input' for browser task.", nil
	}
	model, _ := params["model"].(string)
	contextHint, _ := params["context_hint"].(string)
	stepLimit, _ := params["step_limit"].(int)
	if stepLimit <= 0 {
		stepLimit = 15
	}

	if err := b.initBrowser(); err != nil {
		return "", fmt.Errorf("failed to initialize browser: %v", err)
	}

	header := fmt.Sprintf(
		"You are an autonomous browser agent. Complete the user's task using browser actions. Aim for ~%d actions max. If the task is complex, gather the core information and return a summary.\n",
		stepLimit,
	)
	if contextHint != "" {
		header += fmt.Sprintf("\nContext from previous workflow steps (use if relevant):\n%s\n", contextHint)
	}
	task := header + "\n--- USER TASK ---\n" + strings.TrimSpace(instruction)

	notify.Notify(fmt.Sprintf("Browser: starting task (budget %d actions)...", stepLimit))

	var transcript []string
	for i := 0; i < stepLimit; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Sprintf("Error: browser task cancelled: %v", err), nil
		}

		prompt := task
		if len(transcript) > 0 {
			prompt += "\n\nActions so far:\n" + strings.Join(transcript, "\n")
		}
		prompt += "\n\nNext action (one JSON object):"

		reply, err := b.LLM.Complete(ctx, model, prompt, browserSystemPrompt)
		if err != nil {
			return fmt.Sprintf("Error: browser model failed: %v", err), nil
		}

		action, err := parseBrowserAction(reply)
		if err != nil {
			transcript = append(transcript, fmt.Sprintf("%d. observation: your reply was not a valid JSON action (%v), respond with one JSON object only", i+1, err))
			continue
		}

		if action.Action == "finish" {
			notify.Notify("Browser: task finished.")
			return formatReport(0, action.Answer, ""), nil
		}

		observation := b.perform(ctx, action)
		notify.Notify(fmt.Sprintf("Browser [%d/%d]: %s", i+1, stepLimit, action.Action))
		transcript = append(transcript, fmt.Sprintf("%d. %s -> %s", i+1, describeAction(action), truncate(observation, 4000)))
	}

	return "Error: browser agent reached its action budget without finishing.", nil
}

// perform executes one action and returns the observation fed back to the
// browsing model. Failures are observations, not errors: the model gets a
// chance to recover within its budget.
func (b *BrowserRunner) perform(ctx context.Context, action browserAction) string {
	actionCtx, cancel := context.WithTimeout(b.browserCtx, b.actionTimeout)
	defer cancel()

	switch action.Action {
	case "navigate":
		if action.URL == "" {
			return "error: url is required for navigate"
		}
		if err := chromedp.Run(actionCtx, chromedp.Navigate(action.URL)); err != nil {
			return fmt.Sprintf("error: navigation failed: %v", err)
		}
		return "navigated to " + action.URL

	case "read":
		text, err := b.readPage(actionCtx)
		if err != nil {
			return fmt.Sprintf("error: could not read page: %v", err)
		}
		return "page content:\n" + text

	case "click":
		if action.Selector == "" {
			return "error: selector is required for click"
		}
		if err := chromedp.Run(actionCtx, chromedp.Click(action.Selector, chromedp.ByQuery)); err != nil {
			return fmt.Sprintf("error: click failed: %v", err)
		}
		return "clicked " + action.Selector

	case "type":
		if action.Selector == "" || action.Text == "" {
			return "error: selector and text are required for type"
		}
		if err := chromedp.Run(actionCtx, chromedp.SendKeys(action.Selector, action.Text, chromedp.ByQuery)); err != nil {
			return fmt.Sprintf("error: typing failed: %v", err)
		}
		return "typed text into " + action.Selector

	case "search":
		if b.Search == nil {
			return "error: web search is unavailable, navigate directly instead"
		}
		if action.Query == "" {
			return "error: query is required for search"
		}
		res, err := b.Search.Call(ctx, action.Query)
		if err != nil {
			return fmt.Sprintf("error: search failed: %v", err)
		}
		return "search results:\n" + res

	default:
		return fmt.Sprintf("error: unknown action %q", action.Action)
	}
}

// readPage extracts the main readable content of the current page and
// sanitizes it to plain text.
func (b *BrowserRunner) readPage(actionCtx context.Context) (string, error) {
	var html, location string
	err := chromedp.Run(actionCtx,
		chromedp.Location(&location),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return "", err
	}

	pageURL, err := url.Parse(location)
	if err != nil {
		pageURL = &url.URL{}
	}
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return "", err
	}

	text := bluemonday.StrictPolicy().Sanitize(article.TextContent)
	text = strings.TrimSpace(text)
	if article.Title != "" {
		text = "TITLE: " + article.Title + "\n" + text
	}
	if len(text) > 8000 {
		text = text[:8000] + "\n... (truncated)"
	}
	return text, nil
}

var browserFenceRe = regexp.MustCompile("(?ms)^```[a-zA-Z]*\\s*|\\s*```\\s*$")

func parseBrowserAction(reply string) (browserAction, error) {
	clean := strings.TrimSpace(browserFenceRe.ReplaceAllString(reply, ""))
	if clean == "" {
		return browserAction{}, fmt.Errorf("empty reply")
	}

	var action browserAction
	if err := json.Unmarshal([]byte(clean), &action); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(clean)
		if rerr != nil {
			return browserAction{}, err
		}
		if err := json.Unmarshal([]byte(repaired), &action); err != nil {
			return browserAction{}, err
		}
	}
	if action.Action == "" {
		return browserAction{}, fmt.Errorf("missing 'action'")
	}
	return action, nil
}

func describeAction(a browserAction) string {
	switch a.Action {
	case "navigate":
		return "navigate " + a.URL
	case "click":
		return "click " + a.Selector
	case "type":
		return "type into " + a.Selector
	case "search":
		return "search " + a.Query
	default:
		return a.Action
	}
}
