package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satriahrh/cocoa-fruit/haggle/domain"
)

type stubGenerator struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   []domain.NegotiationContext
}

func (g *stubGenerator) Generate(_ context.Context, nc domain.NegotiationContext) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, nc)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "", nil
	}
	reply := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return reply, nil
}

type stubScorer struct {
	score float64
	err   error
	texts []string
}

func (s *stubScorer) ScorePolarity(_ context.Context, text string) (float64, error) {
	s.texts = append(s.texts, text)
	return s.score, s.err
}

type recordingBroker struct {
	mu        sync.Mutex
	published []domain.Message
}

func (b *recordingBroker) Publish(_ context.Context, topic, routingKey string, message []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, domain.Message{Topic: topic, RoutingKey: routingKey, Payload: message})
	return nil
}

func (b *recordingBroker) Subscribe(context.Context, string, string) (<-chan domain.Message, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBroker) Close() error { return nil }

var testPricing = Pricing{ListPrice: 100, CostFloor: 80}

func newTestService(gen *stubGenerator, scorer *stubScorer, opts ...Option) (*NegotiationService, *Session) {
	svc := NewNegotiationService(NewSessionStore(), gen, scorer, testPricing, opts...)
	return svc, svc.Open(context.Background(), "buyer-1")
}

func submit(t *testing.T, svc *NegotiationService, sess *Session, text string) TurnReply {
	t.Helper()
	reply, err := svc.Submit(context.Background(), sess.ID, text)
	require.NoError(t, err)
	return reply
}

func TestSubmit_GreetingWithInquiry(t *testing.T) {
	gen := &stubGenerator{}
	svc, sess := newTestService(gen, &stubScorer{})

	reply := submit(t, svc, sess, "hi I'm Alex, what's your best price?")

	assert.Equal(t, "Alex", sess.CustomerName())
	assert.Equal(t, domain.PhaseInquired, sess.Phase())
	assert.Contains(t, reply.Text, "$100")
	assert.Contains(t, reply.Text, "What are you thinking?")
	assert.Nil(t, reply.Result)
	assert.Empty(t, gen.calls)
	assert.Equal(t, 100.0, reply.Summary.CurrentOffer)
}

func TestSubmit_RejectKeepsOffer(t *testing.T) {
	gen := &stubGenerator{replies: []string{"Sorry Alex, I must reject $90. The best I can do is $98."}}
	scorer := &stubScorer{score: -0.4}
	svc, sess := newTestService(gen, scorer)
	sess.state.phase = domain.PhaseNegotiating

	reply := submit(t, svc, sess, "I'll give you $90")

	require.Len(t, gen.calls, 1)
	nc := gen.calls[0]
	assert.Equal(t, 90.0, nc.CustomerOffer)
	assert.Equal(t, 100.0, nc.CurrentOffer)
	assert.Equal(t, 100.0, nc.ListPrice)
	assert.Equal(t, 80.0, nc.CostFloor)
	assert.Equal(t, domain.SentimentNegative, nc.Sentiment)
	assert.Equal(t, "I'll give you $90", nc.Transcript)
	assert.Equal(t, []string{"I'll give you $90"}, scorer.texts)

	require.NotNil(t, reply.Result)
	assert.Equal(t, domain.DecisionReject, reply.Result.Decision)
	assert.Equal(t, 100.0, reply.Result.NewOffer)
	assert.True(t, strings.HasPrefix(reply.Text, "Decision: reject\nNew offer: $100\n\n"))
	assert.Equal(t, domain.PhaseClosed, sess.Phase())
	assert.Equal(t, 100.0, sess.CurrentOffer())
}

func TestSubmit_GratitudeAnyPhase(t *testing.T) {
	for _, phase := range []domain.Phase{domain.PhaseIdle, domain.PhaseInquired, domain.PhaseNegotiating, domain.PhaseClosed} {
		t.Run(string(phase), func(t *testing.T) {
			gen := &stubGenerator{}
			svc, sess := newTestService(gen, &stubScorer{})
			sess.state.phase = phase
			sess.state.customerName = "Alex"
			sess.state.currentOffer = 92

			reply := submit(t, svc, sess, "thanks so much, $90 was fair")

			assert.Equal(t, "You're welcome, Alex! Let me know if you have any more questions.", reply.Text)
			assert.Equal(t, phase, sess.Phase())
			assert.Equal(t, 92.0, sess.CurrentOffer())
			assert.Empty(t, gen.calls)
		})
	}
}

func TestSubmit_NoNumberAsksForPrice(t *testing.T) {
	gen := &stubGenerator{}
	svc, sess := newTestService(gen, &stubScorer{})
	sess.state.phase = domain.PhaseNegotiating
	sess.state.currentOffer = 95

	reply := submit(t, svc, sess, "maybe")

	assert.Equal(t, "Hey Customer, I didn't catch the offer. Could you please mention the price you're thinking of?", reply.Text)
	assert.Equal(t, 95.0, sess.CurrentOffer())
	assert.Equal(t, domain.PhaseNegotiating, sess.Phase())
	assert.Empty(t, gen.calls)
	assert.Len(t, sess.Messages(), 2)
}

func TestSubmit_CounterWithoutAmountKeepsOffer(t *testing.T) {
	gen := &stubGenerator{replies: []string{"Hmm, let's keep talking about it."}}
	svc, sess := newTestService(gen, &stubScorer{})
	sess.state.phase = domain.PhaseNegotiating
	sess.state.currentOffer = 96

	reply := submit(t, svc, sess, "85?")

	require.NotNil(t, reply.Result)
	assert.Equal(t, domain.DecisionCounteroffer, reply.Result.Decision)
	assert.Equal(t, 96.0, reply.Result.NewOffer)
	assert.Equal(t, 96.0, sess.CurrentOffer())
	assert.Equal(t, domain.PhaseNegotiating, sess.Phase())
}

func TestSubmit_CounterofferUpdatesOffer(t *testing.T) {
	gen := &stubGenerator{replies: []string{"That's a bit low for me,Sam. How about we meet at $94"}}
	svc, sess := newTestService(gen, &stubScorer{score: 0.3})

	reply := submit(t, svc, sess, "hey my name is Sam, would you take 85")

	require.NotNil(t, reply.Result)
	assert.Equal(t, domain.DecisionCounteroffer, reply.Result.Decision)
	assert.Equal(t, 94.0, reply.Result.NewOffer)
	assert.Equal(t, domain.SentimentPositive, reply.Result.Sentiment)
	assert.Equal(t, "Sam", gen.calls[0].CustomerName)
	assert.Equal(t, domain.PhaseNegotiating, sess.Phase())
	assert.InDelta(t, 0.3, reply.Summary.Progress, 1e-9)
	assert.Equal(t, "-6.00", reply.Summary.DeltaText)
	assert.Equal(t, "30.00%", reply.Summary.ProgressText)
}

func TestSubmit_RepairsSpacingBeforeParsing(t *testing.T) {
	gen := &stubGenerator{replies: []string{"Alright,SamI canAccept that price."}}
	svc, sess := newTestService(gen, &stubScorer{})
	sess.state.phase = domain.PhaseNegotiating

	reply := submit(t, svc, sess, "$90 final")

	require.NotNil(t, reply.Result)
	assert.Equal(t, domain.DecisionAccept, reply.Result.Decision)
	assert.Equal(t, 90.0, reply.Result.NewOffer)
	assert.Equal(t, "Alright,Sam I can Accept that price.", reply.Result.Response)
	assert.Equal(t, domain.PhaseClosed, sess.Phase())
}

func TestSubmit_OfferClamping(t *testing.T) {
	tests := []struct {
		name      string
		generated string
		customer  string
		current   float64
		decision  domain.Decision
		offer     float64
	}{
		{"counter below floor", "I could go to $60", "50", 95, domain.DecisionCounteroffer, 80},
		{"counter above current", "Actually it's $120 now", "90", 95, domain.DecisionCounteroffer, 95},
		{"accept below floor", "I accept!", "$50", 95, domain.DecisionCounteroffer, 80},
		{"accept above current", "I accept!", "$99", 95, domain.DecisionAccept, 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{replies: []string{tt.generated}}
			svc, sess := newTestService(gen, &stubScorer{})
			sess.state.phase = domain.PhaseNegotiating
			sess.state.currentOffer = tt.current

			reply := submit(t, svc, sess, tt.customer)

			require.NotNil(t, reply.Result)
			assert.Equal(t, tt.decision, reply.Result.Decision)
			assert.Equal(t, tt.offer, reply.Result.NewOffer)
			assert.GreaterOrEqual(t, reply.Summary.Progress, 0.0)
			assert.LessOrEqual(t, reply.Summary.Progress, 1.0)
		})
	}
}

func TestSubmit_AcceptBelowFloorRepliesWithFloor(t *testing.T) {
	gen := &stubGenerator{replies: []string{"I accept!"}}
	svc, sess := newTestService(gen, &stubScorer{})
	sess.state.phase = domain.PhaseNegotiating
	sess.state.customerName = "Alex"

	reply := submit(t, svc, sess, "$50")

	require.NotNil(t, reply.Result)
	assert.Equal(t, domain.DecisionCounteroffer, reply.Result.Decision)
	assert.NotContains(t, strings.ToLower(reply.Result.Response), "accept")
	assert.Equal(t, "Decision: counteroffer\nNew offer: $80\n\nSorry Alex, I can't go that low. The lowest I can do is $80.", reply.Text)
	assert.Equal(t, domain.PhaseNegotiating, sess.Phase())
}

func TestSubmit_PriorityOrder(t *testing.T) {
	tests := []struct {
		name  string
		phase domain.Phase
		text  string
		reply string
		after domain.Phase
	}{
		{"inquiry beats offer when idle", domain.PhaseIdle, "what's your best price for 85?", "Our standard price is $100", domain.PhaseInquired},
		{"inquiry beats offer when inquired", domain.PhaseInquired, "interested in buying at 85", "Our standard price is $100", domain.PhaseInquired},
		{"gratitude beats inquiry", domain.PhaseIdle, "thanks, what's your best price?", "You're welcome, Customer!", domain.PhaseIdle},
		{"gratitude beats offer", domain.PhaseNegotiating, "thank you, 85 then", "You're welcome, Customer!", domain.PhaseNegotiating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &stubGenerator{replies: []string{"How about $90"}}
			svc, sess := newTestService(gen, &stubScorer{})
			sess.state.phase = tt.phase

			reply := submit(t, svc, sess, tt.text)

			assert.Contains(t, reply.Text, tt.reply)
			assert.Nil(t, reply.Result)
			assert.Empty(t, gen.calls)
			assert.Equal(t, tt.after, sess.Phase())
			assert.Equal(t, 100.0, sess.CurrentOffer())
		})
	}
}

func TestSubmit_ExternalFailureLeavesSessionUntouched(t *testing.T) {
	tests := []struct {
		name   string
		gen    *stubGenerator
		scorer *stubScorer
	}{
		{"generator down", &stubGenerator{err: errors.New("503 unavailable")}, &stubScorer{}},
		{"scorer down", &stubGenerator{}, &stubScorer{err: errors.New("dial tcp: refused")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, sess := newTestService(tt.gen, tt.scorer)
			submit(t, svc, sess, "hi I'm Alex, what's your best price?")
			before := sess.state.clone()

			reply := submit(t, svc, sess, "ok 85 then")

			assert.True(t, reply.Failed)
			assert.Contains(t, reply.Text, "Please try again")
			assert.Equal(t, before, sess.state)
			assert.Equal(t, domain.PhaseInquired, reply.Summary.Phase)
		})
	}
}

func TestSubmit_ClosedIsSoftTerminal(t *testing.T) {
	gen := &stubGenerator{replies: []string{"I accept $90."}}
	svc, sess := newTestService(gen, &stubScorer{})
	sess.state.phase = domain.PhaseNegotiating

	submit(t, svc, sess, "90")
	require.Equal(t, domain.PhaseClosed, sess.Phase())
	require.Equal(t, 90.0, sess.CurrentOffer())

	reply := submit(t, svc, sess, "what's your best price for another one?")

	assert.Equal(t, domain.PhaseInquired, sess.Phase())
	assert.Equal(t, 100.0, sess.CurrentOffer())
	assert.Contains(t, reply.Text, "$100")
}

func TestSubmit_InquiryDuringNegotiationIsAnOffer(t *testing.T) {
	gen := &stubGenerator{replies: []string{"How about $97"}}
	svc, sess := newTestService(gen, &stubScorer{})
	sess.state.phase = domain.PhaseNegotiating

	reply := submit(t, svc, sess, "what's your best price? I'd say 85")

	require.NotNil(t, reply.Result)
	assert.Equal(t, 97.0, reply.Result.NewOffer)
	assert.Len(t, gen.calls, 1)
}

func TestSubmit_NameOnlyResolvedOnce(t *testing.T) {
	svc, sess := newTestService(&stubGenerator{}, &stubScorer{})

	submit(t, svc, sess, "hello my name is Kim")
	submit(t, svc, sess, "hey I'm Lee")

	assert.Equal(t, "Kim", sess.CustomerName())
}

func TestSubmit_TranscriptIsChronological(t *testing.T) {
	gen := &stubGenerator{replies: []string{"Let's say $95"}}
	svc, sess := newTestService(gen, &stubScorer{})

	submit(t, svc, sess, "what's your best price?")
	submit(t, svc, sess, "I'll give you $85")

	require.Len(t, gen.calls, 1)
	lines := strings.Split(gen.calls[0].Transcript, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "what's your best price?", lines[0])
	assert.Equal(t, "I'll give you $85", lines[2])

	msgs := sess.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, domain.UserRole, msgs[0].Role)
	assert.Equal(t, domain.AssistantRole, msgs[1].Role)
	assert.Equal(t, domain.AssistantRole, msgs[3].Role)
}

func TestSubmit_EmptyMessage(t *testing.T) {
	svc, sess := newTestService(&stubGenerator{}, &stubScorer{})

	reply := submit(t, svc, sess, "   ")

	assert.Contains(t, reply.Text, "I didn't catch the offer")
	assert.Empty(t, sess.Messages())
}

func TestSubmit_UnknownSession(t *testing.T) {
	svc := NewNegotiationService(NewSessionStore(), &stubGenerator{}, &stubScorer{}, testPricing)

	_, err := svc.Submit(context.Background(), "nope", "hi")

	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSubmit_PublishesTurnEvents(t *testing.T) {
	broker := &recordingBroker{}
	gen := &stubGenerator{replies: []string{"Meet me at $92"}}
	svc, sess := newTestService(gen, &stubScorer{}, WithBroker(broker), WithProduct("tablet"))

	reply := submit(t, svc, sess, "what's your best price?")
	assert.Contains(t, reply.Text, "our tablet")
	submit(t, svc, sess, "88")

	require.Len(t, broker.published, 2)
	msg := broker.published[1]
	assert.Equal(t, TurnsTopic, msg.Topic)
	assert.Equal(t, sess.ID, msg.RoutingKey)

	var event domain.TurnEvent
	require.NoError(t, json.Unmarshal(msg.Payload, &event))
	assert.Equal(t, sess.ID, event.SessionID)
	assert.Equal(t, "buyer-1", event.BuyerID)
	require.NotNil(t, event.Result)
	assert.Equal(t, 92.0, event.Result.NewOffer)
	assert.Equal(t, "tablet", gen.calls[0].Product)
}

func TestSessionsAreIsolated(t *testing.T) {
	gen := &stubGenerator{replies: []string{"Fine, $90 it is then, counter at $90"}}
	svc := NewNegotiationService(NewSessionStore(), gen, &stubScorer{}, testPricing)
	a := svc.Open(context.Background(), "a")
	b := svc.Open(context.Background(), "b")

	submit(t, svc, a, "85")

	assert.Equal(t, 90.0, a.CurrentOffer())
	assert.Equal(t, 100.0, b.CurrentOffer())
	assert.Empty(t, b.Messages())
}

func TestWelcomeAndClose(t *testing.T) {
	svc, sess := newTestService(&stubGenerator{}, &stubScorer{})

	assert.Equal(t, "Negotiate the price of a product. The starting price is $100.", svc.Welcome())
	require.NoError(t, svc.Close(context.Background(), sess.ID))
	assert.ErrorIs(t, svc.Close(context.Background(), sess.ID), ErrSessionNotFound)
	_, err := svc.Session(sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSummaryAndTranscript(t *testing.T) {
	gen := &stubGenerator{replies: []string{"Let's say $90"}}
	svc, sess := newTestService(gen, &stubScorer{})
	submit(t, svc, sess, "85")

	summary, err := svc.Summary(sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 90.0, summary.CurrentOffer)
	assert.Equal(t, "50.00%", summary.ProgressText)

	transcript, err := svc.Transcript(sess.ID)
	require.NoError(t, err)
	require.Len(t, transcript, 2)
	assert.Equal(t, "85", transcript[0].Content)

	_, err = svc.Summary("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Transcript("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSweep(t *testing.T) {
	store := NewSessionStore()
	clock := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	svc := NewNegotiationService(store, &stubGenerator{}, &stubScorer{}, testPricing)
	svc.now = store.now

	stale := svc.Open(context.Background(), "a")
	clock = clock.Add(20 * time.Minute)
	fresh := svc.Open(context.Background(), "b")
	clock = clock.Add(15 * time.Minute)

	assert.Equal(t, 1, svc.Sweep(context.Background(), 30*time.Minute))
	_, err := store.Get(stale.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = store.Get(fresh.ID)
	assert.NoError(t, err)
}
