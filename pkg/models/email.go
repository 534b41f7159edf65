package models

import (
	"strings"
	"time"
)

// EmailDirection tells whether an email was sent to or received from the lead.
type EmailDirection string

const (
	EmailInbound  EmailDirection = "INBOUND"
	EmailOutbound EmailDirection = "OUTBOUND"
)

// Email is a message exchanged with a lead.
type Email struct {
	ID        string         `json:"id"`
	LeadID    string         `json:"leadId"`
	AccountID string         `json:"accountId,omitempty"`
	MessageID string         `json:"messageId,omitempty"`
	Direction EmailDirection `json:"direction"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Subject   string         `json:"subject"`
	Body      string         `json:"body"`
	SentAt    time.Time      `json:"sentAt"`
	OpenedAt  *time.Time     `json:"openedAt,omitempty"`
	ClickedAt *time.Time     `json:"clickedAt,omitempty"`
}

// Opened reports whether the email has been opened.
func (e *Email) Opened() bool {
	return e.OpenedAt != nil
}

// Field resolves a named email field for condition evaluation.
func (e *Email) Field(name string) (any, bool) {
	switch name {
	case "id":
		return e.ID, true
	case "from":
		return e.From, true
	case "to":
		return e.To, true
	case "subject":
		return e.Subject, true
	case "body":
		return e.Body, true
	case "direction":
		return string(e.Direction), true
	case "sentAt":
		return e.SentAt, !e.SentAt.IsZero()
	case "openedAt":
		if e.OpenedAt == nil {
			return nil, false
		}

		return *e.OpenedAt, true
	case "clickedAt":
		if e.ClickedAt == nil {
			return nil, false
		}

		return *e.ClickedAt, true
	default:
		return nil, false
	}
}

// Text is the lowercase subject and body, used by keyword heuristics.
func (e *Email) Text() string {
	return strings.ToLower(e.Subject + "\n" + e.Body)
}

// AsMap exposes the email to expression conditions.
func (e *Email) AsMap() map[string]any {
	return map[string]any{
		"id":        e.ID,
		"from":      e.From,
		"to":        e.To,
		"subject":   e.Subject,
		"body":      e.Body,
		"direction": string(e.Direction),
		"sentAt":    e.SentAt,
		"opened":    e.Opened(),
	}
}

// EmailAnalysis is the result of analyzing an email.
type EmailAnalysis struct {
	Sentiment   Sentiment `json:"sentiment"`
	Summary     string    `json:"summary"`
	KeyPoints   []string  `json:"keyPoints"`
	ActionItems []string  `json:"actionItems"`
}

// Sentiment of an analyzed email.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
	SentimentNegative Sentiment = "NEGATIVE"
)

// SentAfter orders emails by send time, then by ID. V7 IDs sort by creation time.
func (e *Email) SentAfter(other *Email) bool {
	if e.SentAt.Equal(other.SentAt) {
		return e.ID > other.ID
	}

	return e.SentAt.After(other.SentAt)
}
