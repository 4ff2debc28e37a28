package main

import (
	"fmt"

	"github.com/jonathan/visa-navigator/internal/catalog"
	"github.com/jonathan/visa-navigator/internal/observability"
	"github.com/jonathan/visa-navigator/internal/questionnaire"
	"github.com/jonathan/visa-navigator/internal/types"
	"github.com/spf13/cobra"
)

var routesCategory string

var routesCmd = &cobra.Command{
	Use:   "routes [route-id]",
	Short: "List visa routes, or show one route's questions",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRoutes,
}

var questionsAnswers string

var questionsCmd = &cobra.Command{
	Use:   "questions <route-id>",
	Short: "Show the active questions of a route for a set of answers",
	Long: `Show the questions that apply to a route. With --answers, questions for other
endorsing bodies and failed showIf conditions are filtered out, as the wizard does.`,
	Args: cobra.ExactArgs(1),
	RunE: runQuestions,
}

var estimateAnswers string

var estimateCmd = &cobra.Command{
	Use:   "estimate <route-id>",
	Short: "Compute the heuristic eligibility estimate for an answers file",
	Long: `Compute the client-side heuristic estimate (0-100) for a JSON answers file of the
form {"question-id": value}. This is not the AI assessment.`,
	Args: cobra.ExactArgs(1),
	RunE: runEstimate,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Route catalog tools",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Validate a route catalog file against the schema and catalog rules",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCatalogValidate,
}

func init() {
	routesCmd.Flags().StringVar(&routesCategory, "category", "", "Only list routes in this category (Work, Education, Family, Visit, Settlement)")
	questionsCmd.Flags().StringVar(&questionsAnswers, "answers", "", "JSON answers file used to filter the questions")
	estimateCmd.Flags().StringVar(&estimateAnswers, "answers", "", "JSON answers file")
	_ = estimateCmd.MarkFlagRequired("answers")

	catalogCmd.AddCommand(catalogValidateCmd)
	rootCmd.AddCommand(routesCmd, questionsCmd, estimateCmd, catalogCmd)
}

func runRoutes(cmd *cobra.Command, args []string) error {
	printer := observability.NewPrinter(cmd.OutOrStdout())
	if len(args) == 1 {
		route, err := lookupRoute(args[0])
		if err != nil {
			return err
		}
		printer.PrintQuestions(route, route.Questions)
		return nil
	}

	cat, err := loadCatalog()
	if err != nil {
		return err
	}
	routes := cat.List()
	if routesCategory != "" {
		routes = cat.ByCategory(types.Category(routesCategory))
	}
	printer.PrintRoutes(routeValues(routes))
	return nil
}

func runQuestions(cmd *cobra.Command, args []string) error {
	route, err := lookupRoute(args[0])
	if err != nil {
		return err
	}
	answers := questionnaire.NewAnswers()
	if questionsAnswers != "" {
		list, err := loadAnswersFile(questionsAnswers)
		if err != nil {
			return err
		}
		answers = questionnaire.NewAnswers(list...)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintQuestions(route, questionnaire.Active(route, answers))
	return nil
}

func runEstimate(cmd *cobra.Command, args []string) error {
	route, err := lookupRoute(args[0])
	if err != nil {
		return err
	}
	list, err := loadAnswersFile(estimateAnswers)
	if err != nil {
		return err
	}
	if err := checkAnswers(route, list); err != nil {
		return err
	}

	answers := questionnaire.NewAnswers(list...)
	active := questionnaire.Active(route, answers)
	answered := 0
	for _, q := range active {
		if v, ok := answers.Get(q.ID); ok && v.IsPresent() {
			answered++
		}
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintEstimate(questionnaire.EstimateScore(active, answers), answered, len(active))
	return nil
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	var (
		cat *catalog.Catalog
		err error
	)
	if len(args) == 1 {
		cat, err = catalog.Load(args[0])
	} else {
		cat, err = loadCatalog()
	}
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "catalog OK: %d routes\n", cat.Len())
	return nil
}
