package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jonathan/visa-navigator/internal/assessment"
	"github.com/jonathan/visa-navigator/internal/localstore"
	"github.com/jonathan/visa-navigator/internal/observability"
	"github.com/jonathan/visa-navigator/internal/types"
	"github.com/jonathan/visa-navigator/internal/wizard"
	"github.com/spf13/cobra"
)

// errQuit ends an interactive wizard with progress kept as a draft.
var errQuit = errors.New("wizard stopped")

var (
	assessAnswers string
	assessProfile string
	assessFresh   bool
)

var assessCmd = &cobra.Command{
	Use:   "assess <route-id>",
	Short: "Answer a route's questionnaire and request an AI assessment",
	Long: `Walk through the active questions of a route and submit the answers for an AI
eligibility assessment. Requires a saved session (see "visa_agent login").

Without --answers the questions are asked interactively. Type ":back" to go to the
previous question, ":jump N" to go to question N and ":quit" to stop; progress is
saved as a draft and resumed next time unless --fresh is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runAssess,
}

func init() {
	assessCmd.Flags().StringVar(&assessAnswers, "answers", "", `JSON answers file ({"question-id": value}); skips the prompts`)
	assessCmd.Flags().StringVar(&assessProfile, "profile", "", "JSON file with applicant profile details passed to the assessment")
	assessCmd.Flags().BoolVar(&assessFresh, "fresh", false, "Ignore any saved draft for this route")
	rootCmd.AddCommand(assessCmd)
}

func runAssess(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	route, err := lookupRoute(args[0])
	if err != nil {
		return err
	}

	var profile types.UserProfile
	if assessProfile != "" {
		data, err := os.ReadFile(assessProfile)
		if err != nil {
			return fmt.Errorf("failed to read profile: %w", err)
		}
		if !json.Valid(data) {
			return fmt.Errorf("profile %s is not valid JSON", assessProfile)
		}
		profile = data
	}

	store, err := openLocalStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	submitter := assessment.NewClient(
		appConfig.ResolvedAssessmentURL(),
		newAuthClient(ctx, store),
		assessment.WithAPIKey(appConfig.APIKey),
		assessment.WithLogger(logger),
	)

	if assessFresh {
		if err := store.DeleteDraft(ctx, route.ID); err != nil {
			return err
		}
	}
	ctrl := resumeDraft(ctx, store, route, submitter)
	if ctrl == nil {
		ctrl = wizard.New(route, profile, submitter, wizard.WithLogger(logger))
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	var st wizard.State
	if assessAnswers != "" {
		answers, err := loadAnswersFile(assessAnswers)
		if err != nil {
			return err
		}
		st, err = runScripted(ctx, ctrl, answers)
		if err != nil {
			saveDraft(ctx, store, ctrl.State())
			return err
		}
	} else {
		st, err = runInteractive(ctx, ctrl, cmd.InOrStdin(), cmd.OutOrStdout())
		if errors.Is(err, errQuit) {
			saveDraft(ctx, store, st)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nProgress saved. Run \"visa_agent assess %s\" to continue.\n", route.ID)
			return nil
		}
		if err != nil {
			saveDraft(ctx, store, ctrl.State())
			return err
		}
	}

	return finishAssessment(ctx, store, st, printer)
}

// resumeDraft restores a saved wizard for route. The current catalog copy of
// the route replaces the one in the draft.
func resumeDraft(ctx context.Context, store *localstore.Store, route *types.VisaRoute, submitter wizard.Submitter) *wizard.Controller {
	data, err := store.LoadDraft(ctx, route.ID)
	if err != nil {
		if !errors.Is(err, localstore.ErrNotFound) {
			logger.Warn("failed to load draft", "route", route.ID, "error", err)
		}
		return nil
	}
	var snap wizard.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("discarding unreadable draft", "route", route.ID, "error", err)
		return nil
	}
	snap.Route = route
	ctrl, err := wizard.Restore(snap, submitter, wizard.WithLogger(logger))
	if err != nil {
		logger.Warn("discarding draft", "route", route.ID, "error", err)
		return nil
	}
	logger.Debug("resumed draft", "route", route.ID, "answers", len(snap.Answers))
	return ctrl
}

func saveDraft(ctx context.Context, store *localstore.Store, st wizard.State) {
	if st.Route == nil || st.Phase == wizard.PhaseCompleted {
		return
	}
	data, err := json.Marshal(st.Snapshot())
	if err == nil {
		err = store.SaveDraft(ctx, st.Route.ID, data)
	}
	if err != nil {
		logger.Warn("failed to save draft", "route", st.Route.ID, "error", err)
	}
}

// runScripted answers every question from answers and advances until the
// wizard submits. A required question left unanswered is an error.
func runScripted(ctx context.Context, ctrl *wizard.Controller, answers []types.Answer) (wizard.State, error) {
	if err := checkAnswers(ctrl.State().Route, answers); err != nil {
		return ctrl.State(), err
	}
	for _, a := range answers {
		ctrl.Answer(a.QuestionID, a.Answer)
	}

	st := ctrl.State()
	if st.Phase == wizard.PhaseFailed {
		return ctrl.Retry(ctx), nil
	}
	for steps := 0; st.Phase == wizard.PhaseAnswering; steps++ {
		if steps > len(st.Route.Questions) {
			return st, fmt.Errorf("wizard did not reach submission")
		}
		st = ctrl.Next(ctx)
		if st.Validation != nil {
			return st, fmt.Errorf("question %s is required but was not answered", st.Validation.QuestionID)
		}
	}
	return st, nil
}

// runInteractive prompts for each active question until the wizard completes
// or fails with a failure the user chooses not to retry.
func runInteractive(ctx context.Context, ctrl *wizard.Controller, in io.Reader, out io.Writer) (wizard.State, error) {
	reader := bufio.NewReader(in)
	read := func(prompt string) (string, error) {
		_, _ = fmt.Fprint(out, prompt)
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", errQuit
		}
		return strings.TrimSpace(line), nil
	}

	for {
		st := ctrl.State()
		switch st.Phase {
		case wizard.PhaseCompleted:
			return st, nil
		case wizard.PhaseFailed:
			_, _ = fmt.Fprintf(out, "\n%s\n", st.Failure.UserMessage())
			if !st.Failure.Retryable() {
				return st, nil
			}
			choice, err := read("[r]etry, [e]dit answers or [q]uit: ")
			if err != nil {
				return st, err
			}
			switch strings.ToLower(choice) {
			case "r", "retry":
				_, _ = fmt.Fprintln(out, "Submitting your answers for assessment...")
				ctrl.Retry(ctx)
			case "e", "edit":
				ctrl.JumpTo(0)
			default:
				return st, errQuit
			}
			continue
		}

		active := st.Active()
		q, ok := st.Current()
		if !ok {
			ctrl.Next(ctx)
			continue
		}

		printQuestion(out, st, q, len(active))
		line, err := read("> ")
		if err != nil {
			return st, err
		}

		switch {
		case line == ":quit" || line == ":q":
			return st, errQuit
		case line == ":back" || line == ":b":
			ctrl.Previous()
			continue
		case strings.HasPrefix(line, ":jump "):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ":jump ")))
			if err != nil {
				_, _ = fmt.Fprintln(out, "Usage: :jump N")
				continue
			}
			ctrl.JumpTo(n - 1)
			continue
		case line != "":
			v, err := parseAnswer(q, line)
			if err != nil {
				_, _ = fmt.Fprintf(out, "  %v\n", err)
				continue
			}
			ctrl.Answer(q.ID, v)
		}

		if next := ctrl.State(); next.Index == len(next.Active())-1 {
			if v, _ := next.Answers.Get(q.ID); v.IsPresent() || !q.Required {
				_, _ = fmt.Fprintln(out, "Submitting your answers for assessment...")
			}
		}
		ctrl.Next(ctx)
	}
}

func printQuestion(out io.Writer, st wizard.State, q types.Question, total int) {
	marker := ""
	if q.Required {
		marker = " *"
	}
	_, _ = fmt.Fprintf(out, "\n[%d/%d] %s%s\n", st.Index+1, total, q.Text, marker)
	if q.HelpText != "" {
		_, _ = fmt.Fprintf(out, "  %s\n", q.HelpText)
	}
	for i, opt := range q.Options {
		_, _ = fmt.Fprintf(out, "  %d) %s\n", i+1, opt)
	}
	switch q.Type {
	case types.QuestionBoolean:
		_, _ = fmt.Fprintln(out, "  (yes/no)")
	case types.QuestionMultiple:
		_, _ = fmt.Fprintln(out, "  (comma-separated choices)")
	}
	if v, ok := st.Answers.Get(q.ID); ok && v.IsPresent() {
		_, _ = fmt.Fprintf(out, "  current answer: %s (press enter to keep)\n", v)
	}
	if st.Validation != nil && st.Validation.QuestionID == q.ID {
		_, _ = fmt.Fprintf(out, "  ! %s\n", st.Validation.Message)
	}
	_, _ = fmt.Fprintf(out, "  estimate so far: %d/100\n", st.Estimate())
}

// parseAnswer converts typed input into a value of the question's type.
// Choices may be given by number or by label.
func parseAnswer(q types.Question, input string) (types.AnswerValue, error) {
	input = strings.TrimSpace(input)
	switch q.Type {
	case types.QuestionBoolean:
		switch strings.ToLower(input) {
		case "y", "yes", "true":
			return types.BoolValue(true), nil
		case "n", "no", "false":
			return types.BoolValue(false), nil
		}
		return types.AnswerValue{}, fmt.Errorf("please answer yes or no")
	case types.QuestionNumber:
		n, err := strconv.ParseFloat(input, 64)
		if err != nil {
			return types.AnswerValue{}, fmt.Errorf("please enter a number")
		}
		return types.NumberValue(n), nil
	case types.QuestionSingle:
		opt, err := matchOption(q.Options, input)
		if err != nil {
			return types.AnswerValue{}, err
		}
		return types.StringValue(opt), nil
	case types.QuestionMultiple:
		var picked []string
		seen := make(map[string]bool)
		for _, part := range strings.Split(input, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			opt, err := matchOption(q.Options, part)
			if err != nil {
				return types.AnswerValue{}, err
			}
			if !seen[opt] {
				seen[opt] = true
				picked = append(picked, opt)
			}
		}
		return types.ListValue(picked...), nil
	default:
		return types.StringValue(input), nil
	}
}

func matchOption(options []string, input string) (string, error) {
	input = strings.TrimSpace(input)
	if n, err := strconv.Atoi(input); err == nil {
		if n >= 1 && n <= len(options) {
			return options[n-1], nil
		}
		return "", fmt.Errorf("choose a number between 1 and %d", len(options))
	}
	for _, opt := range options {
		if strings.EqualFold(opt, input) {
			return opt, nil
		}
	}
	return "", fmt.Errorf("%q is not one of the choices", input)
}

// finishAssessment prints the outcome, records a completed assessment in the
// local history and keeps a failed one as a draft.
func finishAssessment(ctx context.Context, store *localstore.Store, st wizard.State, printer *observability.Printer) error {
	switch st.Phase {
	case wizard.PhaseCompleted:
		printer.PrintAssessment(st.Result)
		raw, err := json.Marshal(st.Result)
		if err != nil {
			return fmt.Errorf("failed to encode assessment: %w", err)
		}
		entry := localstore.AssessmentEntry{
			AssessmentID:      st.Result.AssessmentID,
			RouteID:           st.Route.ID,
			OverallScore:      st.Result.Assessment.OverallScore,
			EligibilityStatus: st.Result.Assessment.EligibilityStatus,
			Estimate:          st.Estimate(),
			Response:          raw,
		}
		if err := store.SaveAssessment(ctx, entry); err != nil {
			logger.Warn("failed to record assessment", "assessment_id", entry.AssessmentID, "error", err)
		}
		if err := store.DeleteDraft(ctx, st.Route.ID); err != nil {
			logger.Warn("failed to delete draft", "route", st.Route.ID, "error", err)
		}
		return nil
	case wizard.PhaseFailed:
		saveDraft(ctx, store, st)
		if st.Failure.Kind == assessment.KindAuthentication {
			return fmt.Errorf("%s Run \"visa_agent login\" and then \"visa_agent assess %s\" to continue", st.Failure.UserMessage(), st.Route.ID)
		}
		return fmt.Errorf("%s", st.Failure.UserMessage())
	default:
		saveDraft(ctx, store, st)
		return fmt.Errorf("assessment was not submitted")
	}
}
