package condition

import (
	"fmt"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// expression evaluates an expr-lang boolean over lead, email, variables and now.
func (e *Evaluator) expression(condition *models.ConditionData, subject Subject) (bool, error) {
	source, ok := condition.Value.(string)
	if !ok || source == "" {
		return false, fmt.Errorf("%w: expression", ErrMissingField)
	}

	env := map[string]any{
		"lead":      map[string]any{},
		"email":     nil,
		"variables": subject.Variables,
		"now":       e.clock.Now(),
	}

	if subject.Lead != nil {
		env["lead"] = subject.Lead.AsMap()
	}

	if subject.Email != nil {
		env["email"] = subject.Email.AsMap()
	}

	if subject.Variables == nil {
		env["variables"] = map[string]any{}
	}

	program, err := e.program(source)
	if err != nil {
		return false, err
	}

	out, err := vm.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("expression %q failed: %w", source, err)
	}

	result, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", source, out)
	}

	return result, nil
}

// declarations fixes the types programs are compiled against, whatever the subject holds.
var declarations = map[string]any{
	"lead":      map[string]any{},
	"email":     map[string]any{},
	"variables": map[string]any{},
	"now":       time.Time{},
}

func (e *Evaluator) program(source string) (*vm.Program, error) {
	e.mu.RLock()
	program, ok := e.programs[source]
	e.mu.RUnlock()

	if ok {
		return program, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if program, ok := e.programs[source]; ok {
		return program, nil
	}

	program, err := expr.Compile(source, expr.Env(declarations), expr.AllowUndefinedVariables())
	if err != nil {
		return nil, fmt.Errorf("expression %q does not compile: %w", source, err)
	}

	e.programs[source] = program
	e.logger.Debug("compiled expression", "expression", source, "cached", len(e.programs))

	return program, nil
}
