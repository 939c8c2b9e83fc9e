package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
)

// ReadFile reads a file from the workspace. Read-only: never confirmed,
// allowed even in plan mode.
type ReadFile struct {
	Root string
}

func (t *ReadFile) Name() string        { return "read_file" }
func (t *ReadFile) Description() string { return "Read the contents of a file" }
func (t *ReadFile) Kind() Kind          { return KindRead }

func (t *ReadFile) Validate(args map[string]any) error {
	_, err := stringArg(args, "path")
	return err
}

func (t *ReadFile) Confirmation(context.Context, map[string]any) (confirm.Details, error) {
	return nil, nil
}

func (t *ReadFile) Execute(ctx context.Context, args map[string]any, _ *bus.Resolution, _ func(string)) (toolcall.Result, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return toolcall.Result{}, err
	}
	full := t.resolve(path)

	data, err := os.ReadFile(full)
	if err != nil {
		return toolcall.Result{}, fmt.Errorf("read %s: %w", full, err)
	}
	return toolcall.Result{
		Content: string(data),
		Display: fmt.Sprintf("Read %d bytes from %s", len(data), path),
	}, nil
}

func (t *ReadFile) resolve(path string) string {
	if filepath.IsAbs(path) || t.Root == "" {
		return path
	}
	return filepath.Join(t.Root, path)
}
