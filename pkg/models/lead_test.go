package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLead_Field(t *testing.T) {
	contacted := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	lead := &Lead{
		ID:              "lead-1",
		Status:          "NEW",
		Score:           42,
		CustomFields:    map[string]any{"industry": "saas", "address": map[string]any{"city": "Lisbon"}},
		LastContactedAt: &contacted,
	}

	value, ok := lead.Field("status")
	require.True(t, ok)
	assert.Equal(t, "NEW", value)

	value, ok = lead.Field("score")
	require.True(t, ok)
	assert.Equal(t, 42, value)

	value, ok = lead.Field("customFields.industry")
	require.True(t, ok)
	assert.Equal(t, "saas", value)

	value, ok = lead.Field("customFields.address.city")
	require.True(t, ok)
	assert.Equal(t, "Lisbon", value)

	value, ok = lead.Field("lastContactedAt")
	require.True(t, ok)
	assert.Equal(t, contacted, value)

	_, ok = lead.Field("customFields.missing")
	assert.False(t, ok)

	_, ok = lead.Field("unknown")
	assert.False(t, ok)
}

func TestLead_ApplyMergesCustomFields(t *testing.T) {
	now := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	status := "QUALIFIED"
	score := 80

	lead := &Lead{
		ID:           "lead-1",
		Status:       "NEW",
		Company:      "Acme",
		Tags:         []string{"inbound"},
		CustomFields: map[string]any{"industry": "saas", "size": 10},
	}

	err := lead.Apply(LeadUpdate{
		Status:       &status,
		Score:        &score,
		Tags:         []string{"hot", "demo"},
		CustomFields: map[string]any{"size": 50, "source": "webinar"},
	}, now)
	require.NoError(t, err)

	assert.Equal(t, "QUALIFIED", lead.Status)
	assert.Equal(t, 80, lead.Score)
	assert.Equal(t, "Acme", lead.Company, "nil fields are untouched")
	assert.Equal(t, []string{"hot", "demo"}, lead.Tags)
	assert.Equal(t, map[string]any{"industry": "saas", "size": 50, "source": "webinar"}, lead.CustomFields)
	assert.Equal(t, now, lead.UpdatedAt)
}

func TestLead_ApplyOnNilCustomFields(t *testing.T) {
	lead := &Lead{ID: "lead-1"}

	require.NoError(t, lead.Apply(LeadUpdate{CustomFields: map[string]any{"category": "HOT"}}, time.Now()))
	assert.Equal(t, "HOT", lead.CustomFields["category"])
}

func TestLeadUpdate_Empty(t *testing.T) {
	assert.True(t, LeadUpdate{}.Empty())

	notes := "called"
	assert.False(t, LeadUpdate{Notes: &notes}.Empty())
}

func TestLead_Placeholders(t *testing.T) {
	lead := &Lead{Name: "Ada Lovelace", Company: "Engines", CustomFields: map[string]any{"plan": "pro"}}

	values := lead.Placeholders()
	assert.Equal(t, "Ada", values["firstName"])
	assert.Equal(t, "Engines", values["company"])
	assert.Equal(t, "pro", values["customFields.plan"])
}

func TestEmail_Field(t *testing.T) {
	opened := time.Now()
	email := &Email{Subject: "Pricing", Body: "Send me a quote", OpenedAt: &opened}

	value, ok := email.Field("subject")
	require.True(t, ok)
	assert.Equal(t, "Pricing", value)

	assert.True(t, email.Opened())
	assert.Equal(t, "pricing\nsend me a quote", email.Text())

	_, ok = email.Field("clickedAt")
	assert.False(t, ok)
}
