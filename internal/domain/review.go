package domain

import (
	"fmt"
	"time"
)

// Mode selects which cards a session draws from.
type Mode string

const (
	// Learn covers cards never seen or still below the recall threshold.
	Learn Mode = "learn"
	// Recap covers cards the user already recalls with confidence.
	Recap Mode = "recap"
)

// Valid reports whether m is one of the two known modes.
func (m Mode) Valid() bool {
	return m == Learn || m == Recap
}

// Opposite returns the other mode.
func (m Mode) Opposite() Mode {
	if m == Learn {
		return Recap
	}
	return Learn
}

// ParseMode converts user or config input into a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, Learn, Recap)
	}
	return m, nil
}

// Review is a single confidence submission for a card.
type Review struct {
	UserID     int64   `json:"user_id" validate:"gt=0"`
	CardID     int64   `json:"card_id" validate:"gt=0"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// ReviewLog records a review accepted by the backend.
type ReviewLog struct {
	UserID     int64
	CardID     int64
	Confidence float64
	SessionID  string
	Timestamp  time.Time
}
