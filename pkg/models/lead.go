package models

import (
	"fmt"
	"strings"
	"time"

	"dario.cat/mergo"
)

// LeadCategory is the temperature assigned by the categorize action.
type LeadCategory string

const (
	CategoryHot  LeadCategory = "HOT"
	CategoryWarm LeadCategory = "WARM"
	CategoryCold LeadCategory = "COLD"
	CategoryNew  LeadCategory = "NEW"
)

// Valid reports whether c is a known category.
func (c LeadCategory) Valid() bool {
	switch c {
	case CategoryHot, CategoryWarm, CategoryCold, CategoryNew:
		return true
	default:
		return false
	}
}

// Lead is the CRM record a workflow reads and writes.
type Lead struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Status          string         `json:"status"`
	Score           int            `json:"score"`
	Company         string         `json:"company"`
	Tags            []string       `json:"tags"`
	Notes           string         `json:"notes"`
	CustomFields    map[string]any `json:"customFields"`
	OwnerID         string         `json:"ownerId,omitempty"`
	LastContactedAt *time.Time     `json:"lastContactedAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// Field resolves a named lead field. "customFields.<name>" reaches into custom fields.
// The boolean is false when the field does not exist or holds no value.
func (l *Lead) Field(name string) (any, bool) {
	if rest, ok := strings.CutPrefix(name, "customFields."); ok {
		return l.CustomField(rest)
	}

	switch name {
	case "id":
		return l.ID, true
	case "name":
		return l.Name, true
	case "email":
		return l.Email, true
	case "status":
		return l.Status, true
	case "score":
		return l.Score, true
	case "company":
		return l.Company, true
	case "tags":
		return l.Tags, l.Tags != nil
	case "notes":
		return l.Notes, true
	case "ownerId":
		return l.OwnerID, true
	case "lastContactedAt":
		if l.LastContactedAt == nil {
			return nil, false
		}

		return *l.LastContactedAt, true
	case "createdAt":
		return l.CreatedAt, !l.CreatedAt.IsZero()
	case "updatedAt":
		return l.UpdatedAt, !l.UpdatedAt.IsZero()
	default:
		return nil, false
	}
}

// CustomField resolves a custom field. Dotted names walk nested objects.
func (l *Lead) CustomField(name string) (any, bool) {
	if l.CustomFields == nil || name == "" {
		return nil, false
	}

	var current any = l.CustomFields

	for _, part := range strings.Split(name, ".") {
		object, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = object[part]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// Placeholders flattens the lead into the values available to {{lead.field}} placeholders.
func (l *Lead) Placeholders() map[string]any {
	values := map[string]any{
		"id":      l.ID,
		"name":    l.Name,
		"email":   l.Email,
		"status":  l.Status,
		"score":   l.Score,
		"company": l.Company,
		"notes":   l.Notes,
		"tags":    strings.Join(l.Tags, ", "),
	}

	if first, _, ok := strings.Cut(l.Name, " "); ok {
		values["firstName"] = first
	} else {
		values["firstName"] = l.Name
	}

	for k, v := range l.CustomFields {
		values["customFields."+k] = v
	}

	return values
}

// AsMap exposes the lead to expression conditions.
func (l *Lead) AsMap() map[string]any {
	values := map[string]any{
		"id":           l.ID,
		"name":         l.Name,
		"email":        l.Email,
		"status":       l.Status,
		"score":        l.Score,
		"company":      l.Company,
		"tags":         l.Tags,
		"notes":        l.Notes,
		"customFields": l.CustomFields,
		"createdAt":    l.CreatedAt,
		"updatedAt":    l.UpdatedAt,
	}

	if l.LastContactedAt != nil {
		values["lastContactedAt"] = *l.LastContactedAt
	}

	return values
}

// LeadUpdate is a partial update of a lead.
// Nil fields are untouched, Tags replace the current tags, CustomFields are merged key by key.
type LeadUpdate struct {
	Status          *string
	Score           *int
	Company         *string
	Notes           *string
	Tags            []string
	CustomFields    map[string]any
	LastContactedAt *time.Time
}

// Empty reports whether the update changes nothing.
func (u LeadUpdate) Empty() bool {
	return u.Status == nil && u.Score == nil && u.Company == nil && u.Notes == nil &&
		u.Tags == nil && len(u.CustomFields) == 0 && u.LastContactedAt == nil
}

// Apply applies the update in place.
func (l *Lead) Apply(update LeadUpdate, now time.Time) error {
	if update.Status != nil {
		l.Status = *update.Status
	}

	if update.Score != nil {
		l.Score = *update.Score
	}

	if update.Company != nil {
		l.Company = *update.Company
	}

	if update.Notes != nil {
		l.Notes = *update.Notes
	}

	if update.Tags != nil {
		l.Tags = append([]string{}, update.Tags...)
	}

	if update.LastContactedAt != nil {
		contacted := *update.LastContactedAt
		l.LastContactedAt = &contacted
	}

	if len(update.CustomFields) > 0 {
		if l.CustomFields == nil {
			l.CustomFields = make(map[string]any, len(update.CustomFields))
		}

		fields, _ := copyValue(update.CustomFields).(map[string]any)

		err := mergo.Merge(&l.CustomFields, fields, mergo.WithOverride)
		if err != nil {
			return fmt.Errorf("failed to merge custom fields: %w", err)
		}
	}

	l.UpdatedAt = now

	return nil
}

// Clone returns a copy of the lead that shares no maps or slices with it.
func (l *Lead) Clone() *Lead {
	copied := *l

	if l.CustomFields != nil {
		copied.CustomFields, _ = copyValue(l.CustomFields).(map[string]any)
	}

	if l.Tags != nil {
		copied.Tags = append([]string{}, l.Tags...)
	}

	if l.LastContactedAt != nil {
		contacted := *l.LastContactedAt
		copied.LastContactedAt = &contacted
	}

	return &copied
}

// copyValue deep copies the maps and slices of a decoded JSON value.
func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		copied := make(map[string]any, len(v))
		for key, item := range v {
			copied[key] = copyValue(item)
		}

		return copied
	case []any:
		copied := make([]any, len(v))
		for i, item := range v {
			copied[i] = copyValue(item)
		}

		return copied
	case []string:
		return append([]string{}, v...)
	default:
		return value
	}
}
