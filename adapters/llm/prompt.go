package llm

import (
	"fmt"
	"strconv"

	"github.com/satriahrh/cocoa-fruit/haggle/domain"
)

// BuildNegotiationPrompt renders the seller persona prompt for one turn.
func BuildNegotiationPrompt(nc domain.NegotiationContext) string {
	return fmt.Sprintf(`You are a skilled negotiator representing a supplier in a price negotiation for a %s.
The product's cost price is $%s, and the desired selling price is $%s.
Current offer: $%s
Customer's counteroffer: $%s
Negotiation history:
%s
Customer's sentiment: %s

Decide whether to accept the counteroffer, reject it, or propose a new price.
If you accept, use the word "accept". If you reject, use the word "reject".
If you counter, end your reply with the new price written as $<amount>.
Never go below the cost price and never above the desired selling price.

Respond in a conversational, human-like tone addressing the customer as %s. Maintain a natural and clear formatting with appropriate spacing between words.`,
		nc.Product,
		price(nc.CostFloor),
		price(nc.ListPrice),
		price(nc.CurrentOffer),
		price(nc.CustomerOffer),
		nc.Transcript,
		nc.Sentiment,
		nc.CustomerName,
	)
}

func price(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
