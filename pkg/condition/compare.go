package condition

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dukex/leadflow/pkg/models"
	json "github.com/goccy/go-json"
)

// compare applies a generic operator. found is false when the field does not exist.
func compare(operator models.Operator, actual any, found bool, expected any) (bool, error) {
	switch operator {
	case models.OperatorEquals:
		return found && equal(actual, expected), nil
	case models.OperatorNotEquals:
		return !found || !equal(actual, expected), nil
	case models.OperatorContains, models.OperatorNotContains:
		haystack, ok := actual.(string)
		if !ok {
			return false, nil
		}

		needle, ok := expected.(string)
		if !ok {
			return false, nil
		}

		contains := strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
		if operator == models.OperatorContains {
			return contains, nil
		}

		return !contains, nil
	case models.OperatorGreaterThan:
		return toNumber(actual) > toNumber(expected), nil
	case models.OperatorLessThan:
		return toNumber(actual) < toNumber(expected), nil
	case models.OperatorIsSet:
		return isSet(actual, found), nil
	case models.OperatorIsNotSet:
		return !isSet(actual, found), nil
	case "":
		return false, fmt.Errorf("%w: operator", ErrMissingField)
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownOperator, operator)
	}
}

func isSet(value any, found bool) bool {
	if !found || value == nil {
		return false
	}

	if s, ok := value.(string); ok {
		return s != ""
	}

	return true
}

// equal compares numbers numerically and everything else by its printed form.
func equal(actual, expected any) bool {
	if isNumber(actual) && isNumber(expected) {
		return toNumber(actual) == toNumber(expected)
	}

	return fmt.Sprint(actual) == fmt.Sprint(expected)
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, json.Number:
		return true
	default:
		return false
	}
}

// toNumber coerces value to a float. Anything without a numeric reading is NaN,
// so ordered comparisons against it are false.
func toNumber(value any) float64 {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int8:
		return float64(v)
	case int16:
		return float64(v)
	case int32:
		return float64(v)
	case int64:
		return float64(v)
	case uint:
		return float64(v)
	case uint8:
		return float64(v)
	case uint16:
		return float64(v)
	case uint32:
		return float64(v)
	case uint64:
		return float64(v)
	case float32:
		return float64(v)
	case float64:
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return math.NaN()
		}

		return f
	case bool:
		if v {
			return 1
		}

		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return math.NaN()
		}

		return f
	case time.Time:
		return float64(v.UnixMilli())
	default:
		return math.NaN()
	}
}

var dateLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func toTime(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}

		return *v, true
	case string:
		for _, layout := range dateLayouts {
			parsed, err := time.Parse(layout, v)
			if err == nil {
				return parsed, true
			}
		}

		return time.Time{}, false
	default:
		return time.Time{}, false
	}
}
