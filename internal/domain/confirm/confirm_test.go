package confirm

import "testing"

func TestOutcomeProceed(t *testing.T) {
	proceed := []Outcome{OutcomeProceedOnce, OutcomeProceedAlways, OutcomeProceedAlwaysSession}
	for _, o := range proceed {
		if !o.Proceed() {
			t.Errorf("expected %q to proceed", o)
		}
	}
	for _, o := range []Outcome{OutcomeModifyWithEditor, OutcomeCancel, Outcome("bogus")} {
		if o.Proceed() {
			t.Errorf("expected %q not to proceed", o)
		}
	}
}

func TestNewInfoSuppressesPromptURL(t *testing.T) {
	info := NewInfo("https://example.com/doc", []string{
		"https://example.com/doc",
		"https://example.com/other",
	})
	if len(info.URLs) != 1 || info.URLs[0] != "https://example.com/other" {
		t.Errorf("expected prompt-identical URL suppressed, got %v", info.URLs)
	}
}

func TestNewInfoKeepsDistinctURLs(t *testing.T) {
	info := NewInfo("Fetch the release notes", []string{"https://example.com/notes"})
	if len(info.URLs) != 1 {
		t.Errorf("expected 1 URL, got %v", info.URLs)
	}
}

func TestDetailsKinds(t *testing.T) {
	cases := map[string]Details{
		"exec":           Exec{},
		"edit":           Edit{},
		"info":           Info{},
		"mcp":            Mcp{},
		"ask_user":       AskUser{},
		"exit_plan_mode": ExitPlanMode{},
	}
	for want, d := range cases {
		if got := d.Kind(); got != want {
			t.Errorf("expected kind %q, got %q", want, got)
		}
	}
}
