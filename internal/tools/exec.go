package tools

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
)

// Shell runs a shell command in the workspace, streaming output lines as
// partial display updates.
type Shell struct {
	Dir string
}

func (t *Shell) Name() string        { return "run_shell_command" }
func (t *Shell) Description() string { return "Run a shell command and capture its output" }
func (t *Shell) Kind() Kind          { return KindExec }

func (t *Shell) Validate(args map[string]any) error {
	command, err := stringArg(args, "command")
	if err != nil {
		return err
	}
	if strings.ContainsRune(command, 0) {
		return fmt.Errorf("parameter %q contains a null byte", "command")
	}
	return nil
}

func (t *Shell) Confirmation(_ context.Context, args map[string]any) (confirm.Details, error) {
	command, err := stringArg(args, "command")
	if err != nil {
		return nil, err
	}

	commands := splitCommands(command)
	roots := make([]string, 0, len(commands))
	for _, c := range commands {
		if root := rootCommand(c); root != "" {
			roots = append(roots, root)
		}
	}

	details := confirm.Exec{
		Command:         command,
		RootCommands:    roots,
		RedirectsOutput: strings.ContainsAny(command, ">"),
	}
	if len(commands) > 1 {
		details.Commands = commands
	}
	return details, nil
}

func (t *Shell) Execute(ctx context.Context, args map[string]any, _ *bus.Resolution, onPartial func(string)) (toolcall.Result, error) {
	command, err := stringArg(args, "command")
	if err != nil {
		return toolcall.Result{}, err
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = t.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return toolcall.Result{}, fmt.Errorf("shell: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return toolcall.Result{}, fmt.Errorf("shell: start %q: %w", command, err)
	}

	var mu sync.Mutex
	var output strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		mu.Lock()
		output.WriteString(scanner.Text())
		output.WriteString("\n")
		text := output.String()
		mu.Unlock()
		if onPartial != nil && ctx.Err() == nil {
			onPartial(text)
		}
	}

	waitErr := cmd.Wait()
	mu.Lock()
	text := output.String()
	mu.Unlock()

	if ctx.Err() != nil {
		return toolcall.Result{Content: text, Display: text}, ctx.Err()
	}
	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			text = fmt.Sprintf("%sexit status %d\n", text, exitErr.ExitCode())
			return toolcall.Result{Content: text, Display: text}, nil
		}
		return toolcall.Result{Content: text, Display: text}, fmt.Errorf("shell: %w", waitErr)
	}
	return toolcall.Result{Content: text, Display: text}, nil
}

// splitCommands breaks a chained command line into its individual commands.
func splitCommands(command string) []string {
	fields := strings.FieldsFunc(command, func(r rune) bool {
		return r == ';' || r == '|' || r == '&'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if trimmed := strings.TrimSpace(f); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// rootCommand returns the leading binary of one command, for grant matching.
func rootCommand(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
