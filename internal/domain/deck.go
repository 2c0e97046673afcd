package domain

import "time"

// Deck is a named collection of cards.
type Deck struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary returns the description or an empty string.
func (d Deck) Summary() string {
	if d.Description == nil {
		return ""
	}
	return *d.Description
}

// NewDeck is the payload for creating a deck.
type NewDeck struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	OwnerID     int64  `json:"owner_id" validate:"gt=0"`
}

// User is the identity record returned by the backend.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// NewUser is the payload for creating a user.
type NewUser struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
}
