// Package condition evaluates condition nodes against a lead, its latest email and the run variables.
package condition

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/expr-lang/expr/vm"
	"github.com/jonboulle/clockwork"
)

var (
	ErrUnknownConditionType = errors.New("unknown condition type")
	ErrUnknownOperator      = errors.New("unknown operator")
	ErrMissingField         = errors.New("missing required field")
	ErrNoLead               = errors.New("condition needs a lead")
)

// Subject is everything a condition may read.
type Subject struct {
	Lead      *models.Lead
	Email     *models.Email // latest email of the lead, nil when it has none
	Variables map[string]any
}

// Evaluator evaluates conditions. It is safe for concurrent use.
type Evaluator struct {
	logger *slog.Logger
	clock  clockwork.Clock

	mu       sync.RWMutex
	programs map[string]*vm.Program
}

func NewEvaluator(logger *slog.Logger, clock clockwork.Clock) *Evaluator {
	return &Evaluator{
		logger:   logger.With("module", "condition"),
		clock:    clock,
		programs: make(map[string]*vm.Program),
	}
}

// Check evaluates condition and reports configuration errors.
// Callers treat an error as false.
func (e *Evaluator) Check(condition *models.ConditionData, subject Subject) (bool, error) {
	if condition == nil {
		return false, fmt.Errorf("%w: condition", ErrMissingField)
	}

	switch condition.ConditionType {
	case models.ConditionLeadProperty:
		return e.leadProperty(condition, subject)
	case models.ConditionCustomField:
		return e.customField(condition, subject)
	case models.ConditionEmailProperty:
		return e.emailProperty(condition, subject)
	case models.ConditionDateComparison:
		return e.dateComparison(condition, subject)
	case models.ConditionExpression:
		return e.expression(condition, subject)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownConditionType, condition.ConditionType)
	}
}

func (e *Evaluator) leadProperty(condition *models.ConditionData, subject Subject) (bool, error) {
	if subject.Lead == nil {
		return false, ErrNoLead
	}

	if condition.Property == "" {
		return false, fmt.Errorf("%w: property", ErrMissingField)
	}

	actual, found := subject.Lead.Field(condition.Property)

	return compare(condition.Operator, actual, found, condition.Value)
}

func (e *Evaluator) customField(condition *models.ConditionData, subject Subject) (bool, error) {
	if subject.Lead == nil {
		return false, ErrNoLead
	}

	name := strings.TrimPrefix(condition.Property, "customFields.")
	if name == "" {
		return false, fmt.Errorf("%w: property", ErrMissingField)
	}

	actual, found := subject.Lead.CustomField(name)

	return compare(condition.Operator, actual, found, condition.Value)
}

func (e *Evaluator) emailProperty(condition *models.ConditionData, subject Subject) (bool, error) {
	email := subject.Email
	if email == nil {
		return false, nil
	}

	switch condition.Operator {
	case models.OperatorHasSubject:
		return strings.TrimSpace(email.Subject) != "", nil
	case models.OperatorHasBody:
		return strings.TrimSpace(email.Body) != "", nil
	case models.OperatorIsOpened:
		return email.Opened(), nil
	case models.OperatorIsNotOpened:
		return !email.Opened(), nil
	}

	if condition.Property == "" {
		return false, fmt.Errorf("%w: property", ErrMissingField)
	}

	actual, found := email.Field(condition.Property)

	return compare(condition.Operator, actual, found, condition.Value)
}

func (e *Evaluator) dateComparison(condition *models.ConditionData, subject Subject) (bool, error) {
	if subject.Lead == nil {
		return false, ErrNoLead
	}

	if condition.Property == "" {
		return false, fmt.Errorf("%w: property", ErrMissingField)
	}

	raw, found := subject.Lead.Field(condition.Property)
	if !found {
		return false, nil
	}

	date, ok := toTime(raw)
	if !ok {
		return false, fmt.Errorf("property %q is not a date", condition.Property)
	}

	now := e.clock.Now()

	switch condition.Operator {
	case models.OperatorBefore:
		return date.Before(now), nil
	case models.OperatorAfter:
		return date.After(now), nil
	case models.OperatorLessThan, models.OperatorGreaterThan:
		threshold, err := thresholdOf(condition)
		if err != nil {
			return false, err
		}

		elapsed := now.Sub(date).Abs()

		if condition.Operator == models.OperatorLessThan {
			return elapsed < threshold, nil
		}

		return elapsed > threshold, nil
	default:
		return false, fmt.Errorf("%w: %q for date comparison", ErrUnknownOperator, condition.Operator)
	}
}

func thresholdOf(condition *models.ConditionData) (time.Duration, error) {
	if condition.Value == nil {
		return 0, fmt.Errorf("%w: value", ErrMissingField)
	}

	amount := toNumber(condition.Value)
	if math.IsNaN(amount) {
		return 0, fmt.Errorf("date comparison value %v is not numeric", condition.Value)
	}

	var unit time.Duration

	switch condition.Unit {
	case models.UnitMinutes:
		unit = time.Minute
	case models.UnitHours:
		unit = time.Hour
	case models.UnitDays:
		unit = 24 * time.Hour
	case models.UnitWeeks:
		unit = 7 * 24 * time.Hour
	case "":
		return 0, fmt.Errorf("%w: unit", ErrMissingField)
	default:
		return 0, fmt.Errorf("unknown time unit %q", condition.Unit)
	}

	return time.Duration(amount * float64(unit)), nil
}
