// Package observability provides formatted terminal output for the CLI.
package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/visa-navigator/internal/guides"
	"github.com/jonathan/visa-navigator/internal/localstore"
	"github.com/jonathan/visa-navigator/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// excerptLength bounds guide section previews
	excerptLength = 160
)

// Printer renders routes, questions and results as boxed text.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len([]rune(line)) > boxWidth-4 {
			line = string([]rune(line)[:boxWidth-7]) + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRoutes lists catalog routes grouped in catalog order.
func (p *Printer) PrintRoutes(routes []types.VisaRoute) {
	if len(routes) == 0 {
		return
	}

	var sb strings.Builder
	for i, r := range routes {
		sb.WriteString(fmt.Sprintf("%-22s %s\n", r.ID, r.Name))
		sb.WriteString(fmt.Sprintf("  %s · %s · %s\n", r.Category, r.Difficulty, r.Cost))
		if i < len(routes)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("VISA ROUTES (%d)", len(routes)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintQuestions lists the currently active questions of a route.
func (p *Printer) PrintQuestions(route *types.VisaRoute, active []types.Question) {
	if route == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Processing: %s\n", route.ProcessingTime))
	sb.WriteString(fmt.Sprintf("Questions:  %d active\n\n", len(active)))
	for i, q := range active {
		marker := ""
		if q.Required {
			marker = " *"
		}
		sb.WriteString(fmt.Sprintf("%2d. %s%s\n", i+1, q.Text, marker))
		if len(q.Options) > 0 {
			sb.WriteString(fmt.Sprintf("    [%s]\n", strings.Join(q.Options, " | ")))
		}
	}

	p.printBox(strings.ToUpper(route.Name), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintEstimate outputs the heuristic score with a simple bar.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintEstimate(score, answered, total int) {
	filled := score / 5
	bar := strings.Repeat("█", filled) + strings.Repeat("░", 20-filled)
	fmt.Fprintf(p.out, "Estimate: %s %3d/100  (%d of %d answered)\n", bar, score, answered, total)
}

// PrintAssessment outputs the AI assessment and its action plan.
func (p *Printer) PrintAssessment(resp *types.AssessmentResponse) {
	if resp == nil || resp.Assessment == nil {
		return
	}
	a := resp.Assessment

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Score:   %.0f/100\n", a.OverallScore))
	sb.WriteString(fmt.Sprintf("Status:  %s\n", strings.ReplaceAll(a.EligibilityStatus, "_", " ")))
	if a.Summary != "" {
		sb.WriteString("\n" + a.Summary + "\n")
	}
	writeList(&sb, "Strengths", a.Strengths)
	writeList(&sb, "Gaps", a.Gaps)
	writeList(&sb, "Missing documents", a.MissingDocuments)

	var plan []types.ActionStep
	if len(resp.ActionPlan) > 0 && json.Unmarshal(resp.ActionPlan, &plan) == nil && len(plan) > 0 {
		sb.WriteString("\nAction plan:\n")
		for i, step := range plan {
			sb.WriteString(fmt.Sprintf("  %d. %s", i+1, step.Title))
			if step.Priority != "" {
				sb.WriteString(fmt.Sprintf(" [%s]", step.Priority))
			}
			sb.WriteString("\n")
		}
	}

	if resp.UKVIApplicationURL != "" {
		sb.WriteString("\nApply: " + resp.UKVIApplicationURL + "\n")
	}

	p.printBox("ELIGIBILITY ASSESSMENT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintGuide outputs a short excerpt of every guide section.
func (p *Printer) PrintGuide(g *guides.Guide) {
	if g == nil {
		return
	}

	var sb strings.Builder
	for i, s := range g.Sections {
		title := s.Title
		if title == "" {
			title = s.URL
		}
		sb.WriteString(title + "\n")
		if s.Error != "" {
			sb.WriteString("  unavailable: " + s.Error + "\n")
		} else {
			sb.WriteString("  " + excerpt(s.Text) + "\n")
		}
		if i < len(g.Sections)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox(fmt.Sprintf("GUIDE: %s", strings.ToUpper(g.RouteName)), strings.TrimSuffix(sb.String(), "\n"))
}

// PrintHistory lists saved assessments, newest first.
func (p *Printer) PrintHistory(entries []localstore.AssessmentEntry) {
	if len(entries) == 0 {
		return
	}

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("%s  %-20s %3.0f  %s\n",
			e.CreatedAt.Format("2006-01-02"), e.RouteID, e.OverallScore, e.EligibilityStatus))
	}

	p.printBox("ASSESSMENT HISTORY", strings.TrimSuffix(sb.String(), "\n"))
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString("\n" + title + ":\n")
	count := min(len(items), maxItemsToShow)
	for i := 0; i < count; i++ {
		sb.WriteString(fmt.Sprintf("  • %s\n", items[i]))
	}
	if len(items) > maxItemsToShow {
		sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(items)-maxItemsToShow))
	}
}

func excerpt(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= excerptLength {
		return text
	}
	return string(r[:excerptLength-3]) + "..."
}
