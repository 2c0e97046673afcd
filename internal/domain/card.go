package domain

import "time"

// Card represents a single question-answer entry belonging to a deck.
type Card struct {
	ID        int64     `json:"id"`
	DeckID    int64     `json:"deck_id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	CreatedAt time.Time `json:"created_at"`
}

// CardProgress is the server-owned scheduling state of one card for one user.
// The client never computes it; it is replaced wholesale by whatever the
// backend returns after a review.
type CardProgress struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"user_id"`
	CardID          int64      `json:"card_id"`
	ConfidenceScore float64    `json:"confidence_score"`
	ReviewCount     int        `json:"review_count"`
	LastReviewedAt  *time.Time `json:"last_reviewed_at"`
}

// CardWithProgress is a card as delivered for a study session.
// Progress is nil for cards the user has never reviewed.
type CardWithProgress struct {
	Card     Card          `json:"card"`
	Progress *CardProgress `json:"progress"`
}

// CardDraft is a card parsed from a markdown source that has not been created
// upstream yet.
type CardDraft struct {
	Question string
	Answer   string
	Context  string
	Hash     string
}

// NewCard is the payload for creating a card in a deck.
type NewCard struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer" validate:"required"`
}
