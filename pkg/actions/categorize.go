package actions

import (
	"fmt"
	"strings"

	"github.com/dukex/leadflow/pkg/models"
)

var (
	negativeKeywords = []string{"unsubscribe", "not interested", "stop emailing", "remove me", "no thanks", "do not contact"}
	interestKeywords = []string{"interested", "pricing", "price", "quote", "demo", "buy", "purchase", "proposal", "trial", "sign up"}
	urgencyKeywords  = []string{"asap", "urgent", "immediately", "today", "as soon as possible", "this week"}
)

// Detection is an auto-detected lead category and why it was chosen.
type Detection struct {
	Category models.LeadCategory
	Reason   string
}

// Detect categorizes a lead from the lowercase text of an email and its sentiment.
// Opt-out phrases win over everything else.
func Detect(text string, sentiment models.Sentiment) Detection {
	text = strings.ToLower(text)

	if negative := matches(text, negativeKeywords); len(negative) > 0 {
		return Detection{Category: models.CategoryCold, Reason: "negative keywords: " + strings.Join(negative, ", ")}
	}

	interest := matches(text, interestKeywords)
	urgency := matches(text, urgencyKeywords)
	positive := sentiment == models.SentimentPositive

	switch {
	case len(interest) >= 2:
		return Detection{Category: models.CategoryHot, Reason: "interest keywords: " + strings.Join(interest, ", ")}
	case len(interest) > 0 && len(urgency) > 0:
		return Detection{
			Category: models.CategoryHot,
			Reason: fmt.Sprintf("interest keywords: %s; urgency keywords: %s",
				strings.Join(interest, ", "), strings.Join(urgency, ", ")),
		}
	case len(interest) > 0 && positive:
		return Detection{
			Category: models.CategoryHot,
			Reason:   fmt.Sprintf("interest keywords: %s; positive sentiment", strings.Join(interest, ", ")),
		}
	case len(interest) > 0:
		return Detection{Category: models.CategoryWarm, Reason: "interest keywords: " + strings.Join(interest, ", ")}
	case len(urgency) > 0:
		return Detection{Category: models.CategoryWarm, Reason: "urgency keywords: " + strings.Join(urgency, ", ")}
	case positive:
		return Detection{Category: models.CategoryWarm, Reason: "positive sentiment"}
	case sentiment == models.SentimentNegative:
		return Detection{Category: models.CategoryCold, Reason: "negative sentiment"}
	default:
		return Detection{Category: models.CategoryNew, Reason: "no buying signals"}
	}
}

func matches(text string, keywords []string) []string {
	var found []string

	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			found = append(found, keyword)
		}
	}

	return found
}
