package actions

import (
	"testing"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	lead := &models.Lead{Name: "Ada Lovelace", Company: "Engines", Score: 70, CustomFields: map[string]any{"plan": "pro"}}
	variables := map[string]any{"source": "webinar", "count": 3}

	testCases := []struct {
		name     string
		template string
		expected string
	}{
		{"no placeholders", "Hello", "Hello"},
		{"variable", "From the {{source}}", "From the webinar"},
		{"lead field", "Hi {{lead.firstName}} at {{ lead.company }}", "Hi Ada at Engines"},
		{"number", "Score {{lead.score}}, seen {{count}} times", "Score 70, seen 3 times"},
		{"custom field", "Plan {{lead.customFields.plan}}", "Plan pro"},
		{"unknown renders empty", "[{{missing}}][{{lead.missing}}]", "[][]"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Render(tc.template, lead, variables))
		})
	}

	assert.Equal(t, "Hi ", Render("Hi {{lead.name}}", nil, nil))
}
