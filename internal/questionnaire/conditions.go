package questionnaire

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// conditionCostLimit bounds the work a single showIf expression may do.
const conditionCostLimit = 10000

// Conditions compiles and evaluates showIf expressions. Programs are cached
// per expression text. The zero value is not usable; call NewConditions.
type Conditions struct {
	env *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewConditions creates an evaluator whose expressions see a single variable,
// answers, a map from question id to the stored answer.
func NewConditions() (*Conditions, error) {
	env, err := cel.NewEnv(
		cel.Variable("answers", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create condition environment: %w", err)
	}
	return &Conditions{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile parses and type-checks expr, caching the resulting program.
func (c *Conditions) Compile(expr string) (cel.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prg, ok := c.programs[expr]; ok {
		return prg, nil
	}

	ast, iss := c.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", expr, iss.Err())
	}
	out := ast.OutputType()
	if !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("condition %q must evaluate to bool, got %s", expr, out)
	}

	prg, err := c.env.Program(ast, cel.CostLimit(conditionCostLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to build condition %q: %w", expr, err)
	}
	c.programs[expr] = prg
	return prg, nil
}

// Visible evaluates expr against answers. Compile errors, evaluation errors
// (such as a lookup of an unanswered id) and non-boolean results are false.
func (c *Conditions) Visible(expr string, answers *Answers) bool {
	prg, err := c.Compile(expr)
	if err != nil {
		return false
	}
	out, _, err := prg.Eval(map[string]any{"answers": answers.values()})
	if err != nil {
		return false
	}
	visible, ok := out.Value().(bool)
	return ok && visible
}

var (
	defaultConditions     *Conditions
	defaultConditionsErr  error
	defaultConditionsOnce sync.Once
)

func sharedConditions() (*Conditions, error) {
	defaultConditionsOnce.Do(func() {
		defaultConditions, defaultConditionsErr = NewConditions()
	})
	return defaultConditions, defaultConditionsErr
}

// CompileCondition reports whether expr is a valid showIf expression.
func CompileCondition(expr string) error {
	c, err := sharedConditions()
	if err != nil {
		return err
	}
	_, err = c.Compile(expr)
	return err
}
