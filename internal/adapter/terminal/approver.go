// Package terminal implements an interactive approver on a TTY: pending
// confirmations are rendered to the terminal and answered from stdin.
package terminal

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
)

// Interactive reports whether stdin is attached to a terminal, i.e. whether a
// terminal approver can actually prompt anyone.
func Interactive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Approver subscribes to the confirmation bus and answers requests by
// prompting on the terminal. Prompts are serialized: concurrent invocations
// queue for the single keyboard.
type Approver struct {
	bus bus.Bus
	in  *bufio.Reader
	out io.Writer
	log *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
}

// NewApprover creates a terminal approver reading from in and writing to out.
// Nil in/out default to stdin/stderr.
func NewApprover(b bus.Bus, in io.Reader, out io.Writer, log *slog.Logger) *Approver {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	if log == nil {
		log = slog.Default()
	}
	return &Approver{
		bus: b,
		in:  bufio.NewReader(in),
		out: out,
		log: log,
	}
}

// Start attaches the approver to the bus.
func (a *Approver) Start(ctx context.Context) {
	a.unsubscribe = a.bus.Subscribe(func(req *bus.Request) {
		a.handle(ctx, req)
	})
}

// Stop detaches the approver.
func (a *Approver) Stop() {
	if a.unsubscribe != nil {
		a.unsubscribe()
		a.unsubscribe = nil
	}
}

func (a *Approver) handle(_ context.Context, req *bus.Request) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.render(req)

	res, err := a.prompt(req)
	if err != nil {
		a.log.Warn("terminal prompt failed", "request_id", req.ID, "error", err)
		return
	}
	if err := req.Resolve(res); err != nil {
		// Another approver answered first.
		fmt.Fprintf(a.out, "(already resolved elsewhere)\n")
	}
}

func (a *Approver) render(req *bus.Request) {
	fmt.Fprintf(a.out, "\nTool %s requests confirmation:\n", req.ToolName)
	switch d := req.Details.(type) {
	case confirm.Exec:
		fmt.Fprintf(a.out, "  run: %s\n", d.Command)
		if d.RedirectsOutput {
			fmt.Fprintf(a.out, "  (redirects output to a file)\n")
		}
	case confirm.Edit:
		fmt.Fprintf(a.out, "  edit %s\n", d.Path)
		if d.Diff != "" {
			fmt.Fprintln(a.out, d.Diff)
		}
	case confirm.Info:
		fmt.Fprintf(a.out, "  %s\n", d.Prompt)
		for _, u := range d.URLs {
			fmt.Fprintf(a.out, "  %s\n", u)
		}
	case confirm.Mcp:
		fmt.Fprintf(a.out, "  call %s on MCP server %s\n", d.Tool, d.Server)
	case confirm.ExitPlanMode:
		fmt.Fprintf(a.out, "  approve plan %s and leave plan mode\n", d.PlanPath)
	case confirm.AskUser:
		// Questions are rendered by the prompt itself.
	default:
		fmt.Fprintf(a.out, "  %s\n", req.Details.Kind())
	}
}

func (a *Approver) prompt(req *bus.Request) (bus.Resolution, error) {
	if ask, ok := req.Details.(confirm.AskUser); ok {
		return a.promptQuestions(ask)
	}

	for {
		fmt.Fprint(a.out, "[y]es once / [a]lways / [s]ession / [e]dit / [n]o: ")
		line, err := a.in.ReadString('\n')
		if err != nil {
			return bus.Resolution{}, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return bus.Resolution{Outcome: confirm.OutcomeProceedOnce}, nil
		case "a", "always":
			return bus.Resolution{Outcome: confirm.OutcomeProceedAlways}, nil
		case "s", "session":
			return bus.Resolution{Outcome: confirm.OutcomeProceedAlwaysSession}, nil
		case "e", "edit":
			fmt.Fprint(a.out, "new command: ")
			edited, err := a.in.ReadString('\n')
			if err != nil {
				return bus.Resolution{}, err
			}
			return bus.Resolution{
				Outcome: confirm.OutcomeModifyWithEditor,
				Answers: map[string]any{"command": strings.TrimSpace(edited)},
			}, nil
		case "n", "no":
			return bus.Resolution{Outcome: confirm.OutcomeCancel}, nil
		}
		fmt.Fprintln(a.out, "unrecognized answer")
	}
}

func (a *Approver) promptQuestions(ask confirm.AskUser) (bus.Resolution, error) {
	answers := make(map[string]any, len(ask.Questions))
	for _, q := range ask.Questions {
		answer, err := a.promptQuestion(q)
		if err != nil {
			return bus.Resolution{}, err
		}
		key := q.Header
		if key == "" {
			key = q.Question
		}
		answers[key] = answer
	}
	return bus.Resolution{Outcome: confirm.OutcomeProceedOnce, Answers: answers}, nil
}

func (a *Approver) promptQuestion(q confirm.Question) (string, error) {
	fmt.Fprintf(a.out, "\n%s\n", q.Question)
	switch q.Type {
	case confirm.QuestionYesNo:
		fmt.Fprint(a.out, "[y/n]: ")
		line, err := a.in.ReadString('\n')
		if err != nil {
			return "", err
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(line)), "y") {
			return "yes", nil
		}
		return "no", nil

	case confirm.QuestionText:
		fmt.Fprint(a.out, "> ")
		line, err := a.in.ReadString('\n')
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(line), nil

	default: // choice
		for i, opt := range q.Options {
			fmt.Fprintf(a.out, "  %d) %s", i+1, opt.Label)
			if opt.Description != "" {
				fmt.Fprintf(a.out, " — %s", opt.Description)
			}
			fmt.Fprintln(a.out)
		}
		for {
			fmt.Fprint(a.out, "choice: ")
			line, err := a.in.ReadString('\n')
			if err != nil {
				return "", err
			}
			n, err := strconv.Atoi(strings.TrimSpace(line))
			if err == nil && n >= 1 && n <= len(q.Options) {
				return q.Options[n-1].Label, nil
			}
			fmt.Fprintln(a.out, "enter a listed number")
		}
	}
}
