package policy

import "testing"

func TestDecidePlanModeRefusesMutating(t *testing.T) {
	call := CallDescriptor{Tool: "run_shell_command", Command: "rm -rf build", Mutating: true}

	eval := Decide(call, ModePlan, NewGrants())
	if eval.Decision != DecisionDeny {
		t.Fatalf("expected deny in plan mode, got %q", eval.Decision)
	}
	if eval.Reason != PlanDenyReason {
		t.Errorf("expected reason %q, got %q", PlanDenyReason, eval.Reason)
	}
}

func TestDecidePlanModeAllowsReads(t *testing.T) {
	call := CallDescriptor{Tool: "read_file", Path: "main.go", Mutating: false}

	eval := Decide(call, ModePlan, NewGrants())
	if eval.Decision != DecisionAsk {
		t.Errorf("expected ask for non-mutating call in plan mode, got %q", eval.Decision)
	}
}

func TestDecidePlanModeBeatsGrantsAndYolo(t *testing.T) {
	// Plan-mode refusal is evaluated before grants: a granted mutating call
	// is still denied.
	grants := NewGrants(GrantShape{Tool: "run_shell_command"})
	call := CallDescriptor{Tool: "run_shell_command", Command: "ls", Mutating: true}

	eval := Decide(call, ModePlan, grants)
	if eval.Decision != DecisionDeny {
		t.Errorf("expected plan-mode deny to win over grants, got %q", eval.Decision)
	}
}

func TestDecideGrantBeatsMode(t *testing.T) {
	grants := NewGrants(GrantShape{Tool: "run_shell_command", Command: "git"})
	call := CallDescriptor{Tool: "run_shell_command", Command: "git status", Mutating: true}

	eval := Decide(call, ModeDefault, grants)
	if eval.Decision != DecisionAllow {
		t.Fatalf("expected allow via grant, got %q", eval.Decision)
	}
	if eval.Reason != "session grant" {
		t.Errorf("expected reason %q, got %q", "session grant", eval.Reason)
	}
}

func TestDecideYoloAllowsEverything(t *testing.T) {
	call := CallDescriptor{Tool: "run_shell_command", Command: "rm -rf /tmp/x", Mutating: true}

	eval := Decide(call, ModeYolo, NewGrants())
	if eval.Decision != DecisionAllow {
		t.Errorf("expected allow in yolo mode, got %q", eval.Decision)
	}
}

func TestDecideAutoEditOnlyCoversEdits(t *testing.T) {
	grants := NewGrants()

	edit := CallDescriptor{Tool: "write_file", Path: "main.go", Mutating: true, Edit: true}
	if eval := Decide(edit, ModeAutoEdit, grants); eval.Decision != DecisionAllow {
		t.Errorf("expected allow for edit under autoEdit, got %q", eval.Decision)
	}

	exec := CallDescriptor{Tool: "run_shell_command", Command: "make", Mutating: true}
	if eval := Decide(exec, ModeAutoEdit, grants); eval.Decision != DecisionAsk {
		t.Errorf("expected ask for exec under autoEdit, got %q", eval.Decision)
	}
}

func TestDecideDefaultAsksForMutating(t *testing.T) {
	call := CallDescriptor{Tool: "write_file", Path: "main.go", Mutating: true, Edit: true}

	eval := Decide(call, ModeDefault, NewGrants())
	if eval.Decision != DecisionAsk {
		t.Errorf("expected ask in default mode, got %q", eval.Decision)
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	grants := NewGrants(GrantShape{Tool: "run_shell_command", Command: "go"})
	call := CallDescriptor{Tool: "run_shell_command", Command: "go test ./...", Mutating: true}

	first := Decide(call, ModeDefault, grants)
	for i := 0; i < 50; i++ {
		if got := Decide(call, ModeDefault, grants); got != first {
			t.Fatalf("decision changed on iteration %d: %+v vs %+v", i, got, first)
		}
	}
}

func TestApprovalModeDescriptions(t *testing.T) {
	cases := map[ApprovalMode]string{
		ModeDefault:  "Confirm every mutating call unless previously granted",
		ModeAutoEdit: "Auto-approve edits, confirm other mutating calls",
		ModePlan:     "Read-only: refuse all mutating calls",
		ModeYolo:     "Auto-approve everything",
	}
	for mode, want := range cases {
		if got := mode.Description(); got != want {
			t.Errorf("%s: expected %q, got %q", mode, want, got)
		}
	}
}

func TestApprovalModeValid(t *testing.T) {
	for _, mode := range []ApprovalMode{ModeDefault, ModeAutoEdit, ModePlan, ModeYolo} {
		if !mode.Valid() {
			t.Errorf("expected %q to be valid", mode)
		}
	}
	if ApprovalMode("paranoid").Valid() {
		t.Error("expected unknown mode to be invalid")
	}
}
