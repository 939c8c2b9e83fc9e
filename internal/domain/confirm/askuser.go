package confirm

import "fmt"

// QuestionType selects how a question is answered.
type QuestionType string

const (
	// QuestionChoice presents 2–4 options. It is the default when the type
	// is omitted.
	QuestionChoice QuestionType = "choice"
	QuestionText   QuestionType = "text"
	QuestionYesNo  QuestionType = "yesno"
)

const (
	maxQuestions     = 4
	maxHeaderLen     = 12
	minChoiceOptions = 2
	maxChoiceOptions = 4
)

// Question is a single prompt inside an AskUser confirmation.
type Question struct {
	Question string       `json:"question"`
	Header   string       `json:"header"`
	Type     QuestionType `json:"type,omitempty"`
	Options  []Option     `json:"options,omitempty"`
}

// Option is one selectable answer for a choice question.
type Option struct {
	Label       string `json:"label"`
	Description string `json:"description"`
}

// ValidateQuestions checks the AskUser question set against the limits the
// user-facing layer can render: 1–4 questions, headers of at most 12
// characters, and 2–4 fully-described options for choice questions.
func ValidateQuestions(questions []Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("questions must contain at least 1 item")
	}
	if len(questions) > maxQuestions {
		return fmt.Errorf("questions must contain at most %d items, got %d", maxQuestions, len(questions))
	}
	for i, q := range questions {
		if q.Question == "" {
			return fmt.Errorf("questions[%d]: question text is required", i)
		}
		if len(q.Header) > maxHeaderLen {
			return fmt.Errorf("questions[%d]: header must be at most %d characters, got %d", i, maxHeaderLen, len(q.Header))
		}
		switch q.Type {
		case QuestionText, QuestionYesNo:
			// No options required.
		case QuestionChoice, "":
			if len(q.Options) < minChoiceOptions || len(q.Options) > maxChoiceOptions {
				return fmt.Errorf("questions[%d]: choice questions require %d to %d options, got %d", i, minChoiceOptions, maxChoiceOptions, len(q.Options))
			}
			for j, opt := range q.Options {
				if opt.Label == "" {
					return fmt.Errorf("questions[%d].options[%d]: label is required", i, j)
				}
				if opt.Description == "" {
					return fmt.Errorf("questions[%d].options[%d]: description is required", i, j)
				}
			}
		default:
			return fmt.Errorf("questions[%d]: unknown type %q", i, q.Type)
		}
	}
	return nil
}
