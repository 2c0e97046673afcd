package session

import (
	"errors"
	"fmt"

	"github.com/conorfennell/knolstudy/internal/domain"
)

var (
	// ErrSessionComplete is returned by CurrentCard once every card has been reviewed.
	ErrSessionComplete = errors.New("session complete")
	// ErrNoSession is returned when no session has been started.
	ErrNoSession = errors.New("no active session")
	// ErrCardNotCurrent is wrapped in a SubmissionError when a review targets a
	// card that is not the current card of the active session.
	ErrCardNotCurrent = errors.New("card is not the current card")
)

// LoadError is a transport or backend failure while fetching decks or cards.
// The caller may retry.
type LoadError struct {
	Op     string
	Mode   domain.Mode
	DeckID int64
	Err    error
}

func (e *LoadError) Error() string {
	if e.Mode != "" {
		return fmt.Sprintf("%s: %s cards for deck %d: %v", e.op(), e.Mode, e.DeckID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.op(), e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func (e *LoadError) op() string {
	if e.Op == "" {
		return "load cards"
	}
	return e.Op
}

// EmptyDeckError reports that the deck has no cards for the requested mode.
// It is an empty state, not a failure worth retrying.
type EmptyDeckError struct {
	Mode   domain.Mode
	DeckID int64
}

func (e *EmptyDeckError) Error() string {
	return fmt.Sprintf("deck %d has no cards to %s", e.DeckID, e.Mode)
}

// ValidationError rejects user input before anything is sent upstream.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v: %s", e.Field, e.Value, e.Reason)
}

// SubmissionError means a review was not accepted. The session did not advance
// and the same card remains current.
type SubmissionError struct {
	CardID int64
	Err    error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit review for card %d: %v", e.CardID, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
