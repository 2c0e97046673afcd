package session

import (
	"context"
	"sync"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/progress"
)

// CardLoader fetches the ordered cards a user should study.
type CardLoader interface {
	GetCards(ctx context.Context, userID int64, mode domain.Mode, deckID int64) ([]domain.CardWithProgress, error)
}

// ProgressSink receives the server's progress records and accepted reviews.
type ProgressSink interface {
	PutProgress(ctx context.Context, p domain.CardProgress) error
	PutProgressBatch(ctx context.Context, cards []domain.CardWithProgress) error
	AppendReview(ctx context.Context, r domain.ReviewLog) error
}

// Session is one ordered run through the cards of a (mode, deck) pair.
// The card order is fixed when the session loads and the index only grows.
type Session struct {
	ID        string
	Mode      domain.Mode
	DeckID    int64
	StartedAt time.Time

	mu    sync.Mutex
	cards []domain.CardWithProgress
	index int
}

// Len returns the number of cards in the session.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cards)
}

// Index returns the current position, in [0, Len()].
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Complete reports whether every card has been reviewed.
func (s *Session) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index >= len(s.cards)
}

// Progress returns the display metrics for the current position.
func (s *Session) Progress() progress.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return progress.Compute(s.index, len(s.cards))
}

// Cards returns a copy of the session's card sequence.
func (s *Session) Cards() []domain.CardWithProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.CardWithProgress, len(s.cards))
	copy(out, s.cards)
	return out
}

// current returns the card at the index together with the index.
func (s *Session) current() (domain.CardWithProgress, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index >= len(s.cards) {
		return domain.CardWithProgress{}, s.index, ErrSessionComplete
	}
	return s.cards[s.index], s.index, nil
}

// advanceFrom moves past index only if the session is still on it.
func (s *Session) advanceFrom(index int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != index || s.index >= len(s.cards) {
		return s.index, false
	}
	s.index++
	return s.index, true
}

// replaceProgress swaps in the server's progress for the card at index.
func (s *Session) replaceProgress(index int, p *domain.CardProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.cards) || p == nil {
		return
	}
	cp := *p
	s.cards[index].Progress = &cp
}
