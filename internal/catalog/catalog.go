// Package catalog keeps the list of decks a user can study and which one is
// active.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/session"
)

// DeckSource fetches decks from the backend.
type DeckSource interface {
	ListDecks(ctx context.Context) ([]domain.Deck, error)
	GetDeck(ctx context.Context, deckID int64) (*domain.Deck, error)
}

// Catalog is a read-only view of the backend's decks.
type Catalog struct {
	source DeckSource
	logger *slog.Logger

	mu     sync.RWMutex
	decks  []domain.Deck
	active *domain.Deck
}

// New creates an empty catalog. Call Refresh to populate it.
func New(source DeckSource, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{source: source, logger: logger}
}

// Refresh reloads the deck list. On failure the previous list is kept.
func (c *Catalog) Refresh(ctx context.Context) ([]domain.Deck, error) {
	decks, err := c.source.ListDecks(ctx)
	if err != nil {
		return nil, &session.LoadError{Op: "list decks", Err: err}
	}

	c.mu.Lock()
	c.decks = decks
	if c.active != nil && !containsDeck(decks, c.active.ID) {
		c.logger.Info("active deck no longer listed", "deck_id", c.active.ID)
		c.active = nil
	}
	c.mu.Unlock()

	c.logger.Debug("deck catalog refreshed", "decks", len(decks))
	return c.Decks(), nil
}

// Decks returns a copy of the last loaded deck list.
func (c *Catalog) Decks() []domain.Deck {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Deck, len(c.decks))
	copy(out, c.decks)
	return out
}

// Select makes deckID the active deck. Decks missing from the loaded list are
// looked up individually so a deck id typed on the command line still works.
func (c *Catalog) Select(ctx context.Context, deckID int64) (domain.Deck, error) {
	c.mu.RLock()
	var found *domain.Deck
	for i := range c.decks {
		if c.decks[i].ID == deckID {
			d := c.decks[i]
			found = &d
			break
		}
	}
	c.mu.RUnlock()

	if found == nil {
		d, err := c.source.GetDeck(ctx, deckID)
		if err != nil {
			return domain.Deck{}, &session.LoadError{Op: "get deck", DeckID: deckID, Err: err}
		}
		if d == nil {
			return domain.Deck{}, &session.LoadError{Op: "get deck", DeckID: deckID, Err: fmt.Errorf("deck %d not found", deckID)}
		}
		found = d
	}

	c.mu.Lock()
	c.active = found
	c.mu.Unlock()
	return *found, nil
}

// Active returns the active deck, if one has been selected.
func (c *Catalog) Active() (domain.Deck, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.active == nil {
		return domain.Deck{}, false
	}
	return *c.active, true
}

func containsDeck(decks []domain.Deck, id int64) bool {
	for _, d := range decks {
		if d.ID == id {
			return true
		}
	}
	return false
}
