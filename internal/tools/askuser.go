package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kestrel-sh/kestrel/internal/bus"
	"github.com/kestrel-sh/kestrel/internal/domain/confirm"
	"github.com/kestrel-sh/kestrel/internal/domain/toolcall"
)

// AskUser poses up to four questions to the user and returns their answers
// to the model. The questions themselves are the confirmation; the answers
// arrive with the outcome.
type AskUser struct{}

func (t *AskUser) Name() string        { return "ask_user" }
func (t *AskUser) Description() string { return "Ask the user one to four questions" }
func (t *AskUser) Kind() Kind          { return KindAsk }

func (t *AskUser) Validate(args map[string]any) error {
	_, err := parseQuestions(args)
	return err
}

func (t *AskUser) Confirmation(_ context.Context, args map[string]any) (confirm.Details, error) {
	questions, err := parseQuestions(args)
	if err != nil {
		return nil, err
	}
	return confirm.AskUser{Questions: questions}, nil
}

func (t *AskUser) Execute(_ context.Context, _ map[string]any, res *bus.Resolution, _ func(string)) (toolcall.Result, error) {
	var answers map[string]any
	if res != nil {
		answers = res.Answers
	}
	if len(answers) == 0 {
		return toolcall.Result{
			Content: "The user did not provide any answers.",
			Display: "No answers provided",
		}, nil
	}

	data, err := json.Marshal(answers)
	if err != nil {
		return toolcall.Result{}, fmt.Errorf("ask_user: encode answers: %w", err)
	}
	return toolcall.Result{
		Content: string(data),
		Display: fmt.Sprintf("Received %d answer(s)", len(answers)),
	}, nil
}

// parseQuestions decodes the questions parameter through a JSON round-trip
// and validates it against the renderable limits.
func parseQuestions(args map[string]any) ([]confirm.Question, error) {
	raw, ok := args["questions"]
	if !ok {
		return nil, fmt.Errorf("parameter %q is required", "questions")
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("parameter %q is not encodable: %v", "questions", err)
	}
	var questions []confirm.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parameter %q must be an array of questions: %v", "questions", err)
	}

	if err := confirm.ValidateQuestions(questions); err != nil {
		return nil, err
	}
	return questions, nil
}
