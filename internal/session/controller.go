// Package session sequences the cards of a study session and submits reviews.
package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/progress"
)

// EventKind identifies a session lifecycle event.
type EventKind int

const (
	Started EventKind = iota
	Advanced
	Completed
)

// Event is delivered to an Observer after the controller changes state.
type Event struct {
	Kind    EventKind
	Session *Session
	Index   int
}

// Observer is notified of session lifecycle events.
type Observer func(Event)

// Controller owns the active session: its card sequence and position.
// Starting a new session replaces the previous one.
type Controller struct {
	loader   CardLoader
	userID   int64
	sink     ProgressSink
	observer Observer
	logger   *slog.Logger

	mu      sync.Mutex
	current *Session
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithCache caches progress records that arrive with loaded cards.
func WithCache(sink ProgressSink) ControllerOption {
	return func(c *Controller) { c.sink = sink }
}

// WithObserver registers a lifecycle observer.
func WithObserver(o Observer) ControllerOption {
	return func(c *Controller) { c.observer = o }
}

// WithControllerLogger sets the controller's logger.
func WithControllerLogger(l *slog.Logger) ControllerOption {
	return func(c *Controller) { c.logger = l }
}

// NewController creates a controller that loads cards for userID.
func NewController(loader CardLoader, userID int64, opts ...ControllerOption) *Controller {
	c := &Controller{
		loader: loader,
		userID: userID,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserID returns the identity this controller studies as.
func (c *Controller) UserID() int64 {
	return c.userID
}

// Start loads the cards for mode and deckID and makes them the active session.
// An unknown mode is a *ValidationError and nothing is requested. A zero-card
// result is an *EmptyDeckError; any transport or backend failure is a
// *LoadError. On failure the previous session, if any, stays active.
func (c *Controller) Start(ctx context.Context, mode domain.Mode, deckID int64) (*Session, error) {
	if !mode.Valid() {
		return nil, &ValidationError{Field: "mode", Value: strconv.Quote(string(mode)), Reason: "must be learn or recap"}
	}

	cards, err := c.loader.GetCards(ctx, c.userID, mode, deckID)
	if err != nil {
		c.logger.Warn("failed to load cards", "mode", mode, "deck_id", deckID, "error", err)
		return nil, &LoadError{Mode: mode, DeckID: deckID, Err: err}
	}
	if len(cards) == 0 {
		return nil, &EmptyDeckError{Mode: mode, DeckID: deckID}
	}

	sess := &Session{
		ID:        uuid.NewString(),
		Mode:      mode,
		DeckID:    deckID,
		StartedAt: time.Now(),
		cards:     cards,
	}

	if c.sink != nil {
		if err := c.sink.PutProgressBatch(ctx, cards); err != nil {
			c.logger.Warn("failed to cache loaded progress", "session_id", sess.ID, "error", err)
		}
	}

	c.mu.Lock()
	previous := c.current
	c.current = sess
	c.mu.Unlock()

	if previous != nil {
		c.logger.Debug("session replaced", "previous_session_id", previous.ID, "session_id", sess.ID)
	}
	c.logger.Info("session started", "session_id", sess.ID, "mode", mode, "deck_id", deckID, "cards", len(cards))
	c.notify(Event{Kind: Started, Session: sess})
	return sess, nil
}

// Current returns the active session or nil.
func (c *Controller) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// CurrentCard returns the card at the current index. Once the session is
// exhausted it returns ErrSessionComplete.
func (c *Controller) CurrentCard() (domain.CardWithProgress, error) {
	sess := c.Current()
	if sess == nil {
		return domain.CardWithProgress{}, ErrNoSession
	}
	card, _, err := sess.current()
	return card, err
}

// Advance moves to the next card. It is a no-op once the session is complete
// or when no session is active. It reports whether the index moved.
func (c *Controller) Advance() bool {
	sess := c.Current()
	if sess == nil {
		return false
	}
	return c.advanceFrom(sess, sess.Index())
}

// Progress returns the display metrics of the active session.
func (c *Controller) Progress() (progress.Snapshot, error) {
	sess := c.Current()
	if sess == nil {
		return progress.Snapshot{}, ErrNoSession
	}
	return sess.Progress(), nil
}

// End discards the active session.
func (c *Controller) End() {
	c.mu.Lock()
	sess := c.current
	c.current = nil
	c.mu.Unlock()
	if sess != nil {
		c.logger.Info("session ended", "session_id", sess.ID, "index", sess.Index(), "cards", sess.Len())
	}
}

// advanceFrom advances sess past index only while sess is still the active
// session and still positioned at index. Results for superseded sessions are
// dropped here.
func (c *Controller) advanceFrom(sess *Session, index int) bool {
	c.mu.Lock()
	if c.current != sess {
		c.mu.Unlock()
		return false
	}
	next, moved := sess.advanceFrom(index)
	c.mu.Unlock()

	if !moved {
		return false
	}
	c.notify(Event{Kind: Advanced, Session: sess, Index: next})
	if next >= sess.Len() {
		c.logger.Info("session completed", "session_id", sess.ID, "cards", next)
		c.notify(Event{Kind: Completed, Session: sess, Index: next})
	}
	return true
}

func (c *Controller) notify(e Event) {
	if c.observer != nil {
		c.observer(e)
	}
}
