package service

import (
	"path/filepath"
	"testing"

	"github.com/kestrel-sh/kestrel/internal/domain/policy"
)

func TestNewSessionRejectsUnknownMode(t *testing.T) {
	if _, err := NewSession(policy.ApprovalMode("careful"), "", nil); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestSetModeSwitchesForNextDecision(t *testing.T) {
	s, err := NewSession(policy.ModeDefault, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.SetMode(policy.ModeYolo); err != nil {
		t.Fatal(err)
	}
	if s.Mode() != policy.ModeYolo {
		t.Errorf("expected yolo, got %q", s.Mode())
	}
	if err := s.SetMode(policy.ApprovalMode("nope")); err == nil {
		t.Error("expected error for unknown mode")
	}
	if s.Mode() != policy.ModeYolo {
		t.Error("failed switch must not change the mode")
	}
}

func TestGrantShapesCommandRoot(t *testing.T) {
	s, err := NewSession(policy.ModeDefault, "", nil)
	if err != nil {
		t.Fatal(err)
	}

	s.Grant(policy.CallDescriptor{Tool: "run_shell_command", Command: "git push origin"}, false)

	shapes := s.Grants().Snapshot()
	if len(shapes) != 1 {
		t.Fatalf("expected 1 grant, got %d", len(shapes))
	}
	if shapes[0].Command != "git" {
		t.Errorf("expected grant narrowed to the root command, got %q", shapes[0].Command)
	}
}

func TestPermanentGrantPersistsAcrossSessions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.yaml")

	s, err := NewSession(policy.ModeDefault, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Grant(policy.CallDescriptor{Tool: "run_shell_command", Command: "go test"}, true)

	reloaded, err := NewSession(policy.ModeDefault, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	call := policy.CallDescriptor{Tool: "run_shell_command", Command: "go build ./...", Mutating: true}
	if !reloaded.Grants().Match(call) {
		t.Error("expected persisted grant to survive a new session")
	}
}

func TestSessionGrantDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grants.yaml")

	s, err := NewSession(policy.ModeDefault, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.Grant(policy.CallDescriptor{Tool: "run_shell_command", Command: "make"}, false)

	reloaded, err := NewSession(policy.ModeDefault, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(reloaded.Grants().Snapshot()) != 0 {
		t.Error("session-scoped grant must not be written to disk")
	}
}
