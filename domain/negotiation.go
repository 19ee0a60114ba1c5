package domain

import (
	"context"
	"time"
)

// Phase is the stage a negotiation session is in.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseInquired    Phase = "inquired"
	PhaseNegotiating Phase = "negotiating"
	PhaseClosed      Phase = "closed"
)

type Decision string

const (
	DecisionAccept       Decision = "accept"
	DecisionReject       Decision = "reject"
	DecisionCounteroffer Decision = "counteroffer"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// NegotiationContext is everything the response generator gets to see for one turn.
type NegotiationContext struct {
	Product       string    `json:"product"`
	ListPrice     float64   `json:"list_price"`
	CostFloor     float64   `json:"cost_floor"`
	CurrentOffer  float64   `json:"current_offer"`
	CustomerOffer float64   `json:"customer_offer"`
	Transcript    string    `json:"transcript"`
	Sentiment     Sentiment `json:"sentiment"`
	CustomerName  string    `json:"customer_name"`
}

// ResponseGenerator writes the seller's reply for a negotiation turn. The text is
// expected, but not guaranteed, to carry "accept" or "reject" and a "$<amount>" token.
type ResponseGenerator interface {
	Generate(ctx context.Context, nc NegotiationContext) (string, error)
}

// SentimentScorer returns a polarity in [-1, 1] for the given text.
type SentimentScorer interface {
	ScorePolarity(ctx context.Context, text string) (float64, error)
}

// TurnResult is the outcome of one negotiation turn.
type TurnResult struct {
	Decision  Decision  `json:"decision"`
	NewOffer  float64   `json:"new_offer"`
	Response  string    `json:"response"`
	Sentiment Sentiment `json:"sentiment"`
}

// Summary is the read-only progress view of a session.
type Summary struct {
	InitialOffer float64 `json:"initial_offer"`
	CurrentOffer float64 `json:"current_offer"`
	Delta        float64 `json:"delta"`
	Progress     float64 `json:"progress"`
	Phase        Phase   `json:"phase"`

	// Display renderings, e.g. "-10.00" and "50.00%".
	DeltaText    string `json:"delta_text"`
	ProgressText string `json:"progress_text"`
}

// TurnEvent is published after every committed turn.
type TurnEvent struct {
	SessionID string      `json:"session_id"`
	BuyerID   string      `json:"buyer_id"`
	Phase     Phase       `json:"phase"`
	Result    *TurnResult `json:"result,omitempty"`
	Summary   Summary     `json:"summary"`
	Timestamp time.Time   `json:"timestamp"`
}
