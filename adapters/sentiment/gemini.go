package sentiment

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/satriahrh/cocoa-fruit/haggle/adapters/llm"
	"github.com/satriahrh/cocoa-fruit/haggle/domain"
)

var numberRegex = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Gemini asks a text model to rate the transcript. Calls are bounded by the
// same retry policy as reply generation.
type Gemini struct {
	model domain.Llm
	retry llm.RetryPolicy
}

func NewGemini(model domain.Llm, retry llm.RetryPolicy) *Gemini {
	return &Gemini{model: model, retry: retry}
}

func (g *Gemini) ScorePolarity(ctx context.Context, text string) (float64, error) {
	prompt := fmt.Sprintf(`Rate the overall sentiment of the customer in this sales conversation.
Reply with a single number between -1 (very negative) and 1 (very positive), and nothing else.

Conversation:
%s`, text)

	reply, attempts, err := g.retry.Do(ctx, func(ctx context.Context) (string, error) {
		return g.model.Generate(ctx, prompt)
	})
	if err != nil {
		return 0, fmt.Errorf("score polarity after %d attempt(s): %w", attempts, err)
	}
	m := numberRegex.FindString(reply)
	if m == "" {
		return 0, fmt.Errorf("score polarity: no number in reply %q", reply)
	}
	score, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, fmt.Errorf("score polarity: %w", err)
	}
	return clamp(score), nil
}
