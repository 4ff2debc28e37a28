package wizard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonathan/visa-navigator/internal/assessment"
	"github.com/jonathan/visa-navigator/internal/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type mockSubmitter struct {
	mock.Mock
}

func (m *mockSubmitter) Submit(ctx context.Context, req *types.AssessmentRequest) (*types.AssessmentResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*types.AssessmentResponse)
	return resp, args.Error(1)
}

// blockingSubmitter holds every submission until released or cancelled.
type blockingSubmitter struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newBlockingSubmitter() *blockingSubmitter {
	return &blockingSubmitter{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (b *blockingSubmitter) Submit(ctx context.Context, _ *types.AssessmentRequest) (*types.AssessmentResponse, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	select {
	case <-b.release:
		return successResponse("asm-blocked"), nil
	case <-ctx.Done():
		return nil, &assessment.Error{Kind: assessment.KindNetwork, Message: "cancelled", Cause: ctx.Err()}
	}
}

type ControllerSuite struct {
	suite.Suite
	ctx context.Context
}

func TestControllerSuite(t *testing.T) {
	suite.Run(t, new(ControllerSuite))
}

func (s *ControllerSuite) SetupTest() {
	s.ctx = context.Background()
}

// atLastQuestion returns a controller positioned on the last question with
// every required answer given.
func (s *ControllerSuite) atLastQuestion(sub Submitter, opts ...Option) *Controller {
	c := New(simpleRoute(), nil, sub, opts...)
	c.Answer("funds", types.BoolValue(true))
	s.Equal(1, c.Next(s.ctx).Index)
	c.Answer("ties", types.ListValue("A"))
	s.Equal(2, c.Next(s.ctx).Index)
	return c
}

func (s *ControllerSuite) TestNextOnLastQuestionCompletes() {
	sub := new(mockSubmitter)
	sub.On("Submit", mock.Anything, mock.MatchedBy(func(r *types.AssessmentRequest) bool {
		return r.VisaRoute.ID == "standard-visitor" && len(r.Answers) == 2
	})).Return(successResponse("asm-42"), nil).Once()

	c := s.atLastQuestion(sub)
	state := c.Next(s.ctx)

	s.Equal(PhaseCompleted, state.Phase)
	s.Equal("asm-42", state.AssessmentID())
	sub.AssertExpectations(s.T())
}

func (s *ControllerSuite) TestExpiredSessionIsAuthenticationFailure() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"JWT expired"}`))
	}))
	defer srv.Close()

	client := assessment.NewClient(srv.URL, assessment.StaticToken("expired-token"))
	c := s.atLastQuestion(client)
	state := c.Next(s.ctx)

	s.Equal(PhaseFailed, state.Phase)
	s.Require().NotNil(state.Failure)
	s.Equal(assessment.KindAuthentication, state.Failure.Kind)
	s.NotEqual(assessment.KindNetwork, state.Failure.Kind)
	s.Equal(2, state.Index)
}

func (s *ControllerSuite) TestFailureThenUserRetry() {
	sub := new(mockSubmitter)
	sub.On("Submit", mock.Anything, mock.Anything).
		Return(nil, &assessment.Error{Kind: assessment.KindNetwork, Message: "offline"}).Once()
	sub.On("Submit", mock.Anything, mock.Anything).
		Return(successResponse("asm-retry"), nil).Once()

	c := s.atLastQuestion(sub)
	state := c.Next(s.ctx)
	s.Equal(PhaseFailed, state.Phase)
	s.True(state.Failure.Retryable())
	s.Equal(c.Estimate(), state.Estimate(), "estimate stays available while failed")

	state = c.Retry(s.ctx)
	s.Equal(PhaseCompleted, state.Phase)
	s.Equal("asm-retry", state.AssessmentID())
	sub.AssertNumberOfCalls(s.T(), "Submit", 2)
}

func (s *ControllerSuite) TestConcurrentNextSendsOneRequest() {
	sub := newBlockingSubmitter()
	c := s.atLastQuestion(sub)

	var wg sync.WaitGroup
	var final State
	wg.Add(1)
	go func() {
		defer wg.Done()
		final = c.Next(s.ctx)
	}()

	<-sub.started
	second := c.Next(s.ctx)
	s.Equal(PhaseSubmitting, second.Phase)
	s.Equal(PhaseSubmitting, c.State().Phase)

	close(sub.release)
	wg.Wait()

	s.Equal(int32(1), sub.calls.Load())
	s.Equal(PhaseCompleted, final.Phase)
}

func (s *ControllerSuite) TestDiscardDropsInFlightResult() {
	sub := newBlockingSubmitter()
	c := s.atLastQuestion(sub)

	done := make(chan State, 1)
	go func() { done <- c.Next(s.ctx) }()
	<-sub.started

	c.Discard()

	select {
	case state := <-done:
		s.Equal(PhaseSubmitting, state.Phase, "result after discard is not applied")
	case <-time.After(5 * time.Second):
		s.FailNow("submission was not cancelled by Discard")
	}
	s.True(c.Discarded())

	after := c.Answer("notes", types.StringValue("ignored"))
	s.Equal(PhaseSubmitting, after.Phase)
}

func (s *ControllerSuite) TestObserverSeesEveryEvent() {
	var names []string
	c := New(simpleRoute(), nil, nil, WithObserver(func(ev Event, _, _ State) {
		names = append(names, ev.Name())
	}))

	c.Answer("funds", types.BoolValue(false))
	c.Next(s.ctx)
	c.Previous()
	c.JumpTo(2)

	s.Equal([]string{"answer", "next", "previous", "jump"}, names)
}

func (s *ControllerSuite) TestNoSubmitterFails() {
	c := s.atLastQuestion(nil)
	state := c.Next(s.ctx)
	s.Equal(PhaseFailed, state.Phase)
	s.Equal(assessment.KindService, state.Failure.Kind)
}

func (s *ControllerSuite) TestDerivedValues() {
	c := New(simpleRoute(), nil, nil)
	s.Len(c.Active(), 3)
	s.InDelta(33.33, c.Progress(), 0.01)
	s.Equal(50, c.Estimate())

	c.Answer("funds", types.BoolValue(true))
	s.Equal(100, c.Estimate())
}
