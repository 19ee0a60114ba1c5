package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/haggle/domain"
	"github.com/satriahrh/cocoa-fruit/haggle/utils/log"
)

// Negotiator is a domain.ResponseGenerator backed by a text model.
type Negotiator struct {
	llm    domain.Llm
	hasher domain.Hasher
	retry  RetryPolicy
}

func NewNegotiator(llm domain.Llm, hasher domain.Hasher, retry RetryPolicy) *Negotiator {
	return &Negotiator{llm: llm, hasher: hasher, retry: retry}
}

func (n *Negotiator) Generate(ctx context.Context, nc domain.NegotiationContext) (string, error) {
	prompt := BuildNegotiationPrompt(nc)
	logger := log.WithCtx(ctx).With(zap.String("prompt_hash", n.hasher.Hash([]byte(prompt))))

	text, attempts, err := n.retry.Do(ctx, func(ctx context.Context) (string, error) {
		return n.llm.Generate(ctx, prompt)
	})
	if err != nil {
		logger.Error("negotiation reply failed", zap.Int("attempts", attempts), zap.Error(err))
		return "", fmt.Errorf("negotiation reply after %d attempt(s): %w", attempts, err)
	}
	if attempts > 1 {
		logger.Info("negotiation reply recovered after retry", zap.Int("attempts", attempts))
	}
	logger.Debug("negotiation reply generated", zap.Int("length", len(text)))
	return text, nil
}
