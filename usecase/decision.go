package usecase

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/satriahrh/cocoa-fruit/haggle/domain"
)

var camelJoinRegex = regexp.MustCompile(`([a-z])([A-Z])`)

// FixSpacing inserts a space wherever a lowercase letter runs straight into an
// uppercase one, e.g. "priceIs" becomes "price Is".
func FixSpacing(text string) string {
	return camelJoinRegex.ReplaceAllString(text, "$1 $2")
}

// ParseDecision reads the seller's decision out of generated prose. "accept" wins
// over "reject"; anything else is a counteroffer whose amount is the token after the
// last "$". ok reports whether a counteroffer amount could be parsed.
func ParseDecision(text string) (decision domain.Decision, offer float64, ok bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "accept"):
		return domain.DecisionAccept, 0, false
	case strings.Contains(lower, "reject"):
		return domain.DecisionReject, 0, false
	}

	offer, ok = trailingDollarAmount(text)
	return domain.DecisionCounteroffer, offer, ok
}

func trailingDollarAmount(text string) (float64, bool) {
	idx := strings.LastIndex(text, "$")
	if idx < 0 {
		return 0, false
	}
	fields := strings.Fields(text[idx+1:])
	if len(fields) == 0 {
		return 0, false
	}
	token := strings.TrimRight(fields[0], `.,!?;:)"'*`)
	token = strings.ReplaceAll(token, ",", "")
	v, err := strconv.ParseFloat(token, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, false
	}
	return v, true
}

// SentimentLabel buckets a polarity score.
func SentimentLabel(score float64) domain.Sentiment {
	switch {
	case score > 0.05:
		return domain.SentimentPositive
	case score < -0.05:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}
