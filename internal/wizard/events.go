package wizard

import (
	"github.com/jonathan/visa-navigator/internal/assessment"
	"github.com/jonathan/visa-navigator/internal/types"
)

// Event is an input to Reduce.
type Event interface {
	// Name identifies the event in logs and metrics.
	Name() string
}

// AnswerGiven upserts the answer to a question.
type AnswerGiven struct {
	QuestionID string
	Value      types.AnswerValue
}

// Next validates the current question and advances, or submits on the last one.
type Next struct{}

// Previous moves back one question.
type Previous struct{}

// JumpTo moves to any active question without validation.
type JumpTo struct {
	Index int
}

// Retry resubmits after a failure.
type Retry struct{}

// SubmitSucceeded delivers the response for a submission attempt.
type SubmitSucceeded struct {
	Attempt  int
	Response *types.AssessmentResponse
}

// SubmitFailed delivers the error for a submission attempt.
type SubmitFailed struct {
	Attempt int
	Err     *assessment.Error
}

func (AnswerGiven) Name() string     { return "answer" }
func (Next) Name() string            { return "next" }
func (Previous) Name() string        { return "previous" }
func (JumpTo) Name() string          { return "jump" }
func (Retry) Name() string           { return "retry" }
func (SubmitSucceeded) Name() string { return "submit_succeeded" }
func (SubmitFailed) Name() string    { return "submit_failed" }

// Command is a side effect requested by Reduce.
type Command interface {
	isCommand()
}

// SubmitCommand asks the caller to submit Request and report the result
// with SubmitSucceeded or SubmitFailed carrying Attempt.
type SubmitCommand struct {
	Attempt int
	Request *types.AssessmentRequest
}

func (SubmitCommand) isCommand() {}
