package tools

import (
	"context"
	"strings"
	"testing"
)

func TestParseBrowserAction(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    string
		wantErr bool
	}{
		{"plain", `{"action":"navigate","url":"https://example.com"}`, "navigate", false},
		{"fenced", "```json\n{\"action\":\"read\"}\n```", "read", false},
		{"repairable", `{'action': 'finish', 'answer': 'done',}`, "finish", false},
		{"missing action", `{"url":"https://example.com"}`, "", true},
		{"empty", "   ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseBrowserAction(tt.reply)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.Action != tt.want {
				t.Errorf("Action = %q, want %q", got.Action, tt.want)
			}
		})
	}
}

func TestDescribeAction(t *testing.T) {
	a := browserAction{Action: "navigate", URL: "https://example.com"}
	if got := describeAction(a); !strings.Contains(got, "https://example.com") {
		t.Errorf("describeAction = %q", got)
	}
	if got := describeAction(browserAction{Action: "read"}); got != "read" {
		t.Errorf("describeAction = %q", got)
	}
}

func TestBrowserRunner_MissingInput(t *testing.T) {
	// Rejected before any browser session is started.
	b := &BrowserRunner{}
	out, err := b.Invoke(context.Background(), map[string]any{}, nopNotifier{})
	if err != nil {
		t.Fatalf("Invoke returned error: %v", err)
	}
	if !strings.Contains(out, "Missing 'input'") {
		t.Errorf("out = %q", out)
	}
}
