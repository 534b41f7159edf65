package dev

import (
	"context"
	"fmt"
	"strings"

	"github.com/dukex/leadflow/pkg/models"
	"github.com/dukex/leadflow/pkg/persistence"
)

var (
	positiveWords = []string{"thank", "great", "interested", "love", "excited", "perfect", "happy", "sounds good"}
	negativeWords = []string{"not interested", "unsubscribe", "disappointed", "problem", "cancel", "angry", "stop"}
	actionWords   = []string{"send", "call", "schedule", "share", "book", "confirm"}
)

// KeywordAnalyzer scores stored emails with keyword lists.
type KeywordAnalyzer struct {
	emails persistence.EmailRepository
}

func NewKeywordAnalyzer(emails persistence.EmailRepository) *KeywordAnalyzer {
	return &KeywordAnalyzer{emails: emails}
}

func (a *KeywordAnalyzer) Analyze(ctx context.Context, emailID string) (*models.EmailAnalysis, error) {
	email, err := a.emails.Get(ctx, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to load email to analyze: %w", err)
	}

	text := email.Text()

	// Negative phrases may contain positive words ("not interested").
	negative := countMatches(text, negativeWords)
	positive := countMatches(strings.ReplaceAll(text, "not interested", ""), positiveWords)

	sentiment := models.SentimentNeutral

	switch {
	case positive > negative:
		sentiment = models.SentimentPositive
	case negative > positive:
		sentiment = models.SentimentNegative
	}

	var keyPoints, actionItems []string

	for _, sentence := range sentences(email.Body) {
		lower := strings.ToLower(sentence)

		if containsAny(lower, actionWords) {
			actionItems = append(actionItems, sentence)
		} else if containsAny(lower, positiveWords) || containsAny(lower, negativeWords) {
			keyPoints = append(keyPoints, sentence)
		}
	}

	summary := email.Subject
	if summary == "" && len(keyPoints) > 0 {
		summary = keyPoints[0]
	}

	return &models.EmailAnalysis{
		Sentiment:   sentiment,
		Summary:     summary,
		KeyPoints:   keyPoints,
		ActionItems: actionItems,
	}, nil
}

func countMatches(text string, words []string) int {
	count := 0

	for _, word := range words {
		if strings.Contains(text, word) {
			count++
		}
	}

	return count
}

func containsAny(text string, words []string) bool {
	return countMatches(text, words) > 0
}

func sentences(body string) []string {
	parts := strings.FieldsFunc(body, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == '\n'
	})

	out := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}

	return out
}
