package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satriahrh/cocoa-fruit/haggle/domain"
)

func TestFixSpacing(t *testing.T) {
	tests := map[string]string{
		"Great offerI can do $95":  "Great offer I can do $95",
		"thanksAlexLet's talk":     "thanks Alex Let's talk",
		"already spaced Out":       "already spaced Out",
		"USA made":                 "USA made",
		"":                         "",
		"I cannotAccept that, Sam": "I cannot Accept that, Sam",
	}
	for in, want := range tests {
		assert.Equal(t, want, FixSpacing(in), in)
	}
}

func TestParseDecision(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		decision domain.Decision
		offer    float64
		ok       bool
	}{
		{"accept", "Deal! I accept your offer of $90.", domain.DecisionAccept, 0, false},
		{"accept case-insensitive", "ACCEPTED", domain.DecisionAccept, 0, false},
		{"accept wins over reject", "I reject nothing and accept $85", domain.DecisionAccept, 0, false},
		{"reject", "I have to Reject that, sorry.", domain.DecisionReject, 0, false},
		{"counter", "How about we meet at $95 today", domain.DecisionCounteroffer, 95, true},
		{"counter last dollar wins", "Not $85, but $92.50", domain.DecisionCounteroffer, 92.5, true},
		{"counter trailing punctuation", "Could you do $93?", domain.DecisionCounteroffer, 93, true},
		{"counter no dollar", "Let's keep talking", domain.DecisionCounteroffer, 0, false},
		{"counter dollar at end", "I'll go down to $", domain.DecisionCounteroffer, 0, false},
		{"counter non-numeric", "that costs $lots", domain.DecisionCounteroffer, 0, false},
		{"counter NaN", "make it $NaN", domain.DecisionCounteroffer, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, offer, ok := ParseDecision(tt.text)
			assert.Equal(t, tt.decision, decision)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.offer, offer)
		})
	}
}

func TestSentimentLabel(t *testing.T) {
	assert.Equal(t, domain.SentimentPositive, SentimentLabel(0.06))
	assert.Equal(t, domain.SentimentPositive, SentimentLabel(1))
	assert.Equal(t, domain.SentimentNeutral, SentimentLabel(0.05))
	assert.Equal(t, domain.SentimentNeutral, SentimentLabel(0))
	assert.Equal(t, domain.SentimentNeutral, SentimentLabel(-0.05))
	assert.Equal(t, domain.SentimentNegative, SentimentLabel(-0.06))
}
