package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
)

// WriteFile writes full file contents. Classified as an edit, so auto-edit
// mode approves it without confirmation.
type WriteFile struct {
	Root string
}

func (t *WriteFile) Name() string        { return "write_file" }
func (t *WriteFile) Description() string { return "Create or overwrite a file with new contents" }
func (t *WriteFile) Kind() Kind          { return KindEdit }

func (t *WriteFile) Validate(args map[string]any) error {
	if _, err := stringArg(args, "path"); err != nil {
		return err
	}
	if _, ok := args["content"]; !ok {
		return fmt.Errorf("parameter %q is required", "content")
	}
	if _, ok := args["content"].(string); !ok {
		return fmt.Errorf("parameter %q must be a string", "content")
	}
	return nil
}

func (t *WriteFile) Confirmation(_ context.Context, args map[string]any) (confirm.Details, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return nil, err
	}
	updated, _ := args["content"].(string)

	full := t.resolve(path)
	original := ""
	if data, readErr := os.ReadFile(full); readErr == nil {
		original = string(data)
	}

	return confirm.Edit{
		Path:        full,
		DisplayName: filepath.Base(path),
		Diff:        unifiedDiff(path, original, updated),
		Original:    original,
		Updated:     updated,
	}, nil
}

func (t *WriteFile) Execute(ctx context.Context, args map[string]any, _ *bus.Resolution, _ func(string)) (toolcall.Result, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return toolcall.Result{}, err
	}
	content, _ := args["content"].(string)
	full := t.resolve(path)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return toolcall.Result{}, fmt.Errorf("write %s: %w", full, err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return toolcall.Result{}, fmt.Errorf("write %s: %w", full, err)
	}
	return toolcall.Result{
		Content: fmt.Sprintf("Wrote %d bytes to %s", len(content), path),
		Display: fmt.Sprintf("Wrote %d bytes to %s", len(content), path),
	}, nil
}

func (t *WriteFile) resolve(path string) string {
	if filepath.IsAbs(path) || t.Root == "" {
		return path
	}
	return filepath.Join(t.Root, path)
}

// unifiedDiff renders a minimal unified diff: unchanged prefix and suffix
// lines are trimmed, the differing middle is shown as removals then
// additions.
func unifiedDiff(path, original, updated string) string {
	if original == updated {
		return ""
	}
	oldLines := strings.Split(original, "\n")
	newLines := strings.Split(updated, "\n")

	prefix := 0
	for prefix < len(oldLines) && prefix < len(newLines) && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(oldLines)-prefix && suffix < len(newLines)-prefix &&
		oldLines[len(oldLines)-1-suffix] == newLines[len(newLines)-1-suffix] {
		suffix++
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", path, path)
	fmt.Fprintf(&sb, "@@ -%d,%d +%d,%d @@\n",
		prefix+1, len(oldLines)-prefix-suffix,
		prefix+1, len(newLines)-prefix-suffix)
	for _, line := range oldLines[prefix : len(oldLines)-suffix] {
		sb.WriteString("-" + line + "\n")
	}
	for _, line := range newLines[prefix : len(newLines)-suffix] {
		sb.WriteString("+" + line + "\n")
	}
	return sb.String()
}
