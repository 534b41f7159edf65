package actions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dukex/leadflow/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_.-]+)\s*\}\}`)

// Render substitutes {{key}} with variables and {{lead.field}} with lead fields.
// Placeholders without a value render as an empty string.
func Render(template string, lead *models.Lead, variables map[string]any) string {
	if !strings.Contains(template, "{{") {
		return template
	}

	var leadValues map[string]any
	if lead != nil {
		leadValues = lead.Placeholders()
	}

	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]

		if field, ok := strings.CutPrefix(key, "lead."); ok {
			return stringify(leadValues[field])
		}

		return stringify(variables[key])
	})
}

func stringify(value any) string {
	if value == nil {
		return ""
	}

	return fmt.Sprint(value)
}
