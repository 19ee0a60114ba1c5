package usecase

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/satriahrh/cocoa-fruit/haggle/domain"
)

const DefaultCustomerName = "Customer"

// Pricing bounds a negotiation.
type Pricing struct {
	ListPrice float64
	CostFloor float64
}

// sessionState is the mutable part of a session. Turns work on a copy and swap it in
// only when they complete, so a failed turn leaves the session untouched.
type sessionState struct {
	messages     []domain.ChatMessage
	customerName string
	phase        domain.Phase
	currentOffer float64
}

func (s sessionState) clone() sessionState {
	s.messages = append([]domain.ChatMessage(nil), s.messages...)
	return s
}

func (s *sessionState) append(role domain.Role, content string) {
	s.messages = append(s.messages, domain.ChatMessage{Role: role, Content: content})
}

func (s sessionState) transcript() string {
	parts := make([]string, len(s.messages))
	for i, m := range s.messages {
		parts[i] = m.Content
	}
	return strings.Join(parts, "\n")
}

// Session is one buyer's negotiation. Turns on a session are serialised.
type Session struct {
	ID        string
	BuyerID   string
	Pricing   Pricing
	CreatedAt time.Time

	mu       sync.Mutex
	state    sessionState
	lastSeen atomic.Int64
}

func newSession(id, buyerID string, pricing Pricing, now time.Time) *Session {
	s := &Session{
		ID:        id,
		BuyerID:   buyerID,
		Pricing:   pricing,
		CreatedAt: now,
		state: sessionState{
			customerName: DefaultCustomerName,
			phase:        domain.PhaseIdle,
			currentOffer: pricing.ListPrice,
		},
	}
	s.touch(now)
	return s
}

func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ChatMessage(nil), s.state.messages...)
}

func (s *Session) CustomerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.customerName
}

func (s *Session) Phase() domain.Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.phase
}

func (s *Session) CurrentOffer() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.currentOffer
}

func (s *Session) Summary() domain.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaryLocked()
}

func (s *Session) summaryLocked() domain.Summary {
	delta := s.state.currentOffer - s.Pricing.ListPrice
	progress := Progress(s.Pricing.ListPrice, s.state.currentOffer, s.Pricing.CostFloor)
	return domain.Summary{
		InitialOffer: s.Pricing.ListPrice,
		CurrentOffer: s.state.currentOffer,
		Delta:        delta,
		Progress:     progress,
		Phase:        s.state.phase,
		DeltaText:    fmt.Sprintf("%+.2f", delta),
		ProgressText: fmt.Sprintf("%.2f%%", progress*100),
	}
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

func (s *Session) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, s.lastSeen.Load()))
}
