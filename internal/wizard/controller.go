package wizard

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/jonathan/visa-navigator/internal/assessment"
	"github.com/jonathan/visa-navigator/internal/types"
)

// Submitter sends a completed questionnaire for assessment.
// *assessment.Client satisfies it.
type Submitter interface {
	Submit(ctx context.Context, req *types.AssessmentRequest) (*types.AssessmentResponse, error)
}

// Observer is called after every event with the states before and after it.
// It runs with the controller locked and must not call back into it.
type Observer func(ev Event, before, after State)

// ErrDiscarded is returned by operations on a discarded controller.
var ErrDiscarded = errors.New("wizard discarded")

// Controller owns one wizard instance. It is safe for concurrent use; at most
// one submission is in flight at a time.
type Controller struct {
	mu        sync.Mutex
	state     State
	submitter Submitter
	logger    *slog.Logger
	observers []Observer

	life      context.Context
	cancel    context.CancelFunc
	discarded bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithObserver registers an observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// New creates a controller for route.
func New(route *types.VisaRoute, profile types.UserProfile, submitter Submitter, opts ...Option) *Controller {
	return newController(NewState(route, profile), submitter, opts...)
}

func newController(s State, submitter Submitter, opts ...Option) *Controller {
	c := &Controller{
		state:     s,
		submitter: submitter,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.life, c.cancel = context.WithCancel(context.Background())
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Answer records an answer.
func (c *Controller) Answer(questionID string, value types.AnswerValue) State {
	s, _ := c.dispatch(AnswerGiven{QuestionID: questionID, Value: value})
	return s
}

// Previous moves back one question.
func (c *Controller) Previous() State {
	s, _ := c.dispatch(Previous{})
	return s
}

// JumpTo moves to the active question at index without validation.
func (c *Controller) JumpTo(index int) State {
	s, _ := c.dispatch(JumpTo{Index: index})
	return s
}

// Next advances past the current question. On the last question it submits
// and blocks until the submission resolves. A Next issued while a submission
// is in flight returns the Submitting state without sending anything.
func (c *Controller) Next(ctx context.Context) State {
	return c.run(ctx, Next{})
}

// Retry resubmits after a failure and blocks until the submission resolves.
func (c *Controller) Retry(ctx context.Context) State {
	return c.run(ctx, Retry{})
}

// Discard abandons the wizard. An in-flight submission is cancelled and its
// result dropped.
func (c *Controller) Discard() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discarded = true
	c.cancel()
}

// Discarded reports whether Discard has been called.
func (c *Controller) Discarded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.discarded
}

// Active returns the currently applicable questions.
func (c *Controller) Active() []types.Question {
	return c.State().Active()
}

// Progress returns the progress percentage.
func (c *Controller) Progress() float64 {
	return c.State().Progress()
}

// Estimate returns the heuristic score.
func (c *Controller) Estimate() int {
	return c.State().Estimate()
}

func (c *Controller) run(ctx context.Context, ev Event) State {
	s, cmd := c.dispatch(ev)
	submit, ok := cmd.(SubmitCommand)
	if !ok {
		return s
	}
	return c.execute(ctx, submit)
}

// dispatch applies ev under the lock. Events on a discarded controller are
// ignored.
func (c *Controller) dispatch(ev Event) (State, Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.discarded {
		return c.state, nil
	}
	before := c.state
	after, cmd := Reduce(before, ev)
	c.state = after
	for _, o := range c.observers {
		o(ev, before, after)
	}
	if after.Validation != nil && before.Validation != after.Validation {
		c.logger.Debug("wizard advance blocked", "route", routeID(after), "question", after.Validation.QuestionID)
	}
	return after, cmd
}

func (c *Controller) execute(ctx context.Context, cmd SubmitCommand) State {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.life, cancel)
	defer stop()

	c.logger.Info("submitting assessment", "route", routeID(c.State()), "attempt", cmd.Attempt, "answers", len(cmd.Request.Answers))

	var ev Event
	if c.submitter == nil {
		ev = SubmitFailed{Attempt: cmd.Attempt, Err: &assessment.Error{Kind: assessment.KindService, Message: "no assessment service configured"}}
	} else if resp, err := c.submitter.Submit(ctx, cmd.Request); err != nil {
		ev = SubmitFailed{Attempt: cmd.Attempt, Err: assessment.AsError(err)}
	} else {
		ev = SubmitSucceeded{Attempt: cmd.Attempt, Response: resp}
	}

	if c.Discarded() {
		c.logger.Debug("dropping submission result for discarded wizard", "attempt", cmd.Attempt)
		return c.State()
	}
	s, _ := c.dispatch(ev)
	return s
}

func routeID(s State) string {
	if s.Route == nil {
		return ""
	}
	return s.Route.ID
}
