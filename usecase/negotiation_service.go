package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/cocoa-fruit/haggle/domain"
	"github.com/satriahrh/cocoa-fruit/haggle/utils/log"
)

// TurnsTopic carries a domain.TurnEvent after every committed turn, routed by session id.
const TurnsTopic = "negotiation.turns"

// TurnReply is what the buyer gets back for one message.
type TurnReply struct {
	SessionID string             `json:"session_id"`
	Text      string             `json:"text"`
	Result    *domain.TurnResult `json:"result,omitempty"`
	Summary   domain.Summary     `json:"summary"`
	// Failed is set when an external service broke the turn. Nothing was committed
	// and the buyer may resend the same message.
	Failed bool `json:"failed,omitempty"`
}

type NegotiationService struct {
	store     *SessionStore
	generator domain.ResponseGenerator
	scorer    domain.SentimentScorer
	broker    domain.MessageBroker
	pricing   Pricing
	product   string
	now       func() time.Time
}

type Option func(*NegotiationService)

// WithBroker publishes turn events to b.
func WithBroker(b domain.MessageBroker) Option {
	return func(s *NegotiationService) { s.broker = b }
}

func WithProduct(name string) Option {
	return func(s *NegotiationService) { s.product = name }
}

func NewNegotiationService(
	store *SessionStore,
	generator domain.ResponseGenerator,
	scorer domain.SentimentScorer,
	pricing Pricing,
	opts ...Option,
) *NegotiationService {
	s := &NegotiationService{
		store:     store,
		generator: generator,
		scorer:    scorer,
		pricing:   pricing,
		product:   "smartphone",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts a new session for buyerID.
func (s *NegotiationService) Open(ctx context.Context, buyerID string) *Session {
	sess := s.store.Create(buyerID, s.pricing)
	ctx = log.WithBuyer(log.WithSession(ctx, sess.ID), buyerID)
	log.WithCtx(ctx).Info("session opened")
	return sess
}

// Welcome is the banner shown when a session opens.
func (s *NegotiationService) Welcome() string {
	return fmt.Sprintf("Negotiate the price of a product. The starting price is $%s.", formatPrice(s.pricing.ListPrice))
}

func (s *NegotiationService) Session(id string) (*Session, error) {
	return s.store.Get(id)
}

// Summary is the progress view of a session.
func (s *NegotiationService) Summary(sessionID string) (domain.Summary, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return domain.Summary{}, err
	}
	return sess.Summary(), nil
}

// Transcript returns the session's messages in the order they were added.
func (s *NegotiationService) Transcript(sessionID string) ([]domain.ChatMessage, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Messages(), nil
}

// Close tears a session down.
func (s *NegotiationService) Close(ctx context.Context, id string) error {
	if !s.store.Delete(id) {
		return ErrSessionNotFound
	}
	log.WithCtx(log.WithSession(ctx, id)).Info("session closed")
	return nil
}

// Sweep evicts sessions idle longer than ttl.
func (s *NegotiationService) Sweep(ctx context.Context, ttl time.Duration) int {
	evicted := s.store.Sweep(ttl)
	if len(evicted) > 0 {
		log.WithCtx(ctx).Info("evicted idle sessions", zap.Strings("session_ids", evicted))
	}
	return len(evicted)
}

// Submit runs one buyer message through the negotiation. The only error is
// ErrSessionNotFound; every other failure is turned into a reply.
func (s *NegotiationService) Submit(ctx context.Context, sessionID, text string) (TurnReply, error) {
	sess, err := s.store.Get(sessionID)
	if err != nil {
		return TurnReply{}, err
	}
	ctx = log.WithBuyer(log.WithSession(ctx, sess.ID), sess.BuyerID)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch(s.now())

	text = strings.TrimSpace(text)
	if text == "" {
		return TurnReply{
			SessionID: sess.ID,
			Text:      clarificationReply(sess.state.customerName),
			Summary:   sess.summaryLocked(),
		}, nil
	}

	draft := sess.state.clone()
	draft.append(domain.UserRole, text)
	if draft.customerName == DefaultCustomerName {
		if name, ok := ExtractName(text); ok {
			draft.customerName = name
		}
	}

	var (
		reply  string
		result *domain.TurnResult
	)
	switch {
	case DetectGratitude(text):
		reply = fmt.Sprintf("You're welcome, %s! Let me know if you have any more questions.", draft.customerName)

	case draft.phase != domain.PhaseNegotiating && DetectGeneralInquiry(text):
		if draft.phase == domain.PhaseClosed {
			draft.currentOffer = sess.Pricing.ListPrice
		}
		draft.phase = domain.PhaseInquired
		reply = s.openingQuote(sess.Pricing)

	default:
		offer, ok := ExtractOffer(text)
		if !ok {
			log.WithCtx(ctx).Debug("no offer found in message")
			reply = clarificationReply(draft.customerName)
			break
		}

		res, err := s.negotiate(ctx, sess.Pricing, &draft, offer)
		if err != nil {
			log.WithCtx(ctx).Error("negotiation turn failed", zap.Error(err))
			return TurnReply{
				SessionID: sess.ID,
				Text:      fmt.Sprintf("Sorry %s, I couldn't work out a reply just now. Please try again in a moment.", sess.state.customerName),
				Summary:   sess.summaryLocked(),
				Failed:    true,
			}, nil
		}
		result = &res
		reply = fmt.Sprintf("Decision: %s\nNew offer: $%s\n\n%s", res.Decision, formatPrice(res.NewOffer), res.Response)
	}

	draft.append(domain.AssistantRole, reply)
	sess.state = draft
	summary := sess.summaryLocked()

	fields := []zap.Field{zap.String("phase", string(summary.Phase)), zap.Float64("current_offer", summary.CurrentOffer)}
	if result != nil {
		fields = append(fields, zap.String("decision", string(result.Decision)), zap.String("sentiment", string(result.Sentiment)))
	}
	log.WithCtx(ctx).Info("turn committed", fields...)

	s.publish(ctx, sess, result, summary)

	return TurnReply{
		SessionID: sess.ID,
		Text:      reply,
		Result:    result,
		Summary:   summary,
	}, nil
}

// negotiate scores the transcript, asks the generator for a reply and applies the
// parsed decision to draft.
func (s *NegotiationService) negotiate(ctx context.Context, pricing Pricing, draft *sessionState, customerOffer float64) (domain.TurnResult, error) {
	if draft.phase == domain.PhaseClosed {
		draft.currentOffer = pricing.ListPrice
	}
	transcript := draft.transcript()

	score, err := s.scorer.ScorePolarity(ctx, transcript)
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("score sentiment: %w", err)
	}
	sentiment := SentimentLabel(clamp(score, -1, 1))

	text, err := s.generator.Generate(ctx, domain.NegotiationContext{
		Product:       s.product,
		ListPrice:     pricing.ListPrice,
		CostFloor:     pricing.CostFloor,
		CurrentOffer:  draft.currentOffer,
		CustomerOffer: customerOffer,
		Transcript:    transcript,
		Sentiment:     sentiment,
		CustomerName:  draft.customerName,
	})
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("generate response: %w", err)
	}
	text = FixSpacing(text)

	decision, proposed, ok := ParseDecision(text)
	newOffer := draft.currentOffer
	switch decision {
	case domain.DecisionAccept:
		if customerOffer < pricing.CostFloor {
			// Never sell below cost, whatever the generator says. The generated
			// acceptance would contradict the counteroffer, so it is replaced.
			decision = domain.DecisionCounteroffer
			newOffer = pricing.CostFloor
			text = fmt.Sprintf("Sorry %s, I can't go that low. The lowest I can do is $%s.", draft.customerName, formatPrice(pricing.CostFloor))
		} else {
			newOffer = math.Min(customerOffer, draft.currentOffer)
		}
	case domain.DecisionCounteroffer:
		if ok {
			newOffer = clamp(proposed, pricing.CostFloor, draft.currentOffer)
		} else {
			log.WithCtx(ctx).Debug("no counteroffer amount in generated reply")
		}
	}

	draft.currentOffer = newOffer
	if decision == domain.DecisionCounteroffer {
		draft.phase = domain.PhaseNegotiating
	} else {
		draft.phase = domain.PhaseClosed
	}

	return domain.TurnResult{
		Decision:  decision,
		NewOffer:  newOffer,
		Response:  text,
		Sentiment: sentiment,
	}, nil
}

func (s *NegotiationService) openingQuote(p Pricing) string {
	return fmt.Sprintf(
		"Hey there! Thanks for your interest in our %s. It's a fantastic pick! Our standard price is $%s, but I'm here to negotiate. What are you thinking?",
		s.product, formatPrice(p.ListPrice),
	)
}

func (s *NegotiationService) publish(ctx context.Context, sess *Session, result *domain.TurnResult, summary domain.Summary) {
	if s.broker == nil {
		return
	}
	payload, err := json.Marshal(domain.TurnEvent{
		SessionID: sess.ID,
		BuyerID:   sess.BuyerID,
		Phase:     summary.Phase,
		Result:    result,
		Summary:   summary,
		Timestamp: s.now(),
	})
	if err != nil {
		log.WithCtx(ctx).Error("marshal turn event", zap.Error(err))
		return
	}
	if err := s.broker.Publish(ctx, TurnsTopic, sess.ID, payload); err != nil {
		log.WithCtx(ctx).Warn("publish turn event", zap.Error(err))
	}
}

func clarificationReply(name string) string {
	return fmt.Sprintf("Hey %s, I didn't catch the offer. Could you please mention the price you're thinking of?", name)
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
