package tools

import (
	"context"
	"fmt"
	"os"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
)

// ExitPlanMode surfaces a plan document for review. Approving it is the
// user's signal to leave plan mode and start executing.
type ExitPlanMode struct{}

func (t *ExitPlanMode) Name() string        { return "exit_plan_mode" }
func (t *ExitPlanMode) Description() string { return "Present a plan for review before execution" }
func (t *ExitPlanMode) Kind() Kind          { return KindPlan }

func (t *ExitPlanMode) Validate(args map[string]any) error {
	_, err := stringArg(args, "plan_path")
	return err
}

func (t *ExitPlanMode) Confirmation(_ context.Context, args map[string]any) (confirm.Details, error) {
	path, err := stringArg(args, "plan_path")
	if err != nil {
		return nil, err
	}
	return confirm.ExitPlanMode{PlanPath: path}, nil
}

func (t *ExitPlanMode) Execute(_ context.Context, args map[string]any, _ *bus.Resolution, _ func(string)) (toolcall.Result, error) {
	path, err := stringArg(args, "plan_path")
	if err != nil {
		return toolcall.Result{}, err
	}

	summary := fmt.Sprintf("Plan at %s approved", path)
	if data, readErr := os.ReadFile(path); readErr == nil {
		return toolcall.Result{Content: string(data), Display: summary}, nil
	}
	return toolcall.Result{Content: summary, Display: summary}, nil
}
