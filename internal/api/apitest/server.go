// Package apitest provides an in-memory fake of the flashcard backend for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

const (
	// RecapThreshold is the confidence at which a card moves from learn to recap.
	RecapThreshold = 0.8
	// carryWeight is the share of the previous confidence kept on a repeat review.
	carryWeight = 0.7
)

// Server holds the fake backend's state and the httptest server serving it.
type Server struct {
	*httptest.Server

	router *http.ServeMux

	mu       sync.Mutex
	nextID   int64
	users    map[int64]domain.User
	decks    map[int64]domain.Deck
	cards    map[int64]domain.Card
	order    []int64
	progress map[[2]int64]*domain.CardProgress

	reviewCalls int
	cardCalls   int
	failReviews int
	failCards   int
	reviewGate  chan struct{}
}

// NewServer starts a fake backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		router:   http.NewServeMux(),
		users:    make(map[int64]domain.User),
		decks:    make(map[int64]domain.Deck),
		cards:    make(map[int64]domain.Card),
		progress: make(map[[2]int64]*domain.CardProgress),
	}
	s.routes()
	s.Server = httptest.NewServer(s.router)
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /decks/{$}", s.handleListDecks())
	s.router.HandleFunc("POST /decks/{$}", s.handleCreateDeck())
	s.router.HandleFunc("GET /decks/{deckID}", s.handleGetDeck())
	s.router.HandleFunc("POST /decks/{deckID}/cards", s.handleCreateCard())
	s.router.HandleFunc("POST /users/{$}", s.handleCreateUser())
	s.router.HandleFunc("GET /users/{userID}/cards", s.handleGetUserCards())
	s.router.HandleFunc("POST /reviews", s.handlePostReview())
}

// AddUser seeds a user and returns it.
func (s *Server) AddUser(username string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := domain.User{ID: s.id(), Username: username, Email: username + "@example.com", CreatedAt: time.Now().UTC()}
	s.users[u.ID] = u
	return u
}

// AddDeck seeds a deck owned by ownerID with n cards and returns it.
func (s *Server) AddDeck(title string, ownerID int64, n int) domain.Deck {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := domain.Deck{ID: s.id(), Title: title, OwnerID: ownerID, CreatedAt: time.Now().UTC()}
	s.decks[d.ID] = d
	for i := 0; i < n; i++ {
		s.addCard(d.ID, fmt.Sprintf("Question %d", i+1), fmt.Sprintf("Answer %d", i+1))
	}
	return d
}

// SetProgress seeds a progress record for a user and card.
func (s *Server) SetProgress(userID, cardID int64, confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	s.progress[[2]int64{userID, cardID}] = &domain.CardProgress{
		ID: s.id(), UserID: userID, CardID: cardID,
		ConfidenceScore: confidence, ReviewCount: 1, LastReviewedAt: &now,
	}
}

// Cards returns the cards of a deck in creation order.
func (s *Server) Cards(deckID int64) []domain.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Card
	for _, id := range s.order {
		if c := s.cards[id]; c.DeckID == deckID {
			out = append(out, c)
		}
	}
	return out
}

// Progress returns the stored progress for a user and card, if any.
func (s *Server) Progress(userID, cardID int64) (domain.CardProgress, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.progress[[2]int64{userID, cardID}]
	if !ok {
		return domain.CardProgress{}, false
	}
	return *p, true
}

// ReviewCalls counts POST /reviews requests received.
func (s *Server) ReviewCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reviewCalls
}

// CardCalls counts GET /users/{id}/cards requests received.
func (s *Server) CardCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cardCalls
}

// FailNextReviews makes the next n review submissions answer 503.
func (s *Server) FailNextReviews(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReviews = n
}

// FailNextCardLoads makes the next n card loads answer 503.
func (s *Server) FailNextCardLoads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCards = n
}

// HoldReviews makes review handlers wait until the returned function is called.
// The review is recorded before the handler blocks, as a real backend would.
func (s *Server) HoldReviews() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.reviewGate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.reviewGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

func (s *Server) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Server) addCard(deckID int64, question, answer string) domain.Card {
	c := domain.Card{ID: s.id(), DeckID: deckID, Question: question, Answer: answer, CreatedAt: time.Now().UTC()}
	s.cards[c.ID] = c
	s.order = append(s.order, c.ID)
	return c
}

// handleListDecks returns every deck, optionally filtered by owner_id.
func (s *Server) handleListDecks() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var owner int64
		if v := r.URL.Query().Get("owner_id"); v != "" {
			owner, _ = strconv.ParseInt(v, 10, 64)
		}
		s.mu.Lock()
		decks := make([]domain.Deck, 0, len(s.decks))
		for id := int64(1); id <= s.nextID; id++ {
			if d, ok := s.decks[id]; ok && (owner == 0 || d.OwnerID == owner) {
				decks = append(decks, d)
			}
		}
		s.mu.Unlock()
		respondJSON(w, http.StatusOK, decks)
	}
}

// handleGetDeck returns one deck or 404.
func (s *Server) handleGetDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "deckID")
		if !ok {
			return
		}
		s.mu.Lock()
		d, found := s.decks[id]
		s.mu.Unlock()
		if !found {
			respondDetail(w, http.StatusNotFound, "Deck not found")
			return
		}
		respondJSON(w, http.StatusOK, d)
	}
}

// handleCreateDeck creates a deck for an existing owner.
func (s *Server) handleCreateDeck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.NewDeck
		if !decodeJSON(w, r, &req) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.users[req.OwnerID]; !ok {
			respondDetail(w, http.StatusNotFound, "Owner not found")
			return
		}
		d := domain.Deck{ID: s.id(), Title: req.Title, OwnerID: req.OwnerID, CreatedAt: time.Now().UTC()}
		if req.Description != "" {
			desc := req.Description
			d.Description = &desc
		}
		s.decks[d.ID] = d
		respondJSON(w, http.StatusCreated, d)
	}
}

// handleCreateCard adds a card to an existing deck.
func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deckID, ok := pathID(w, r, "deckID")
		if !ok {
			return
		}
		var req domain.NewCard
		if !decodeJSON(w, r, &req) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.decks[deckID]; !ok {
			respondDetail(w, http.StatusNotFound, "Deck not found")
			return
		}
		respondJSON(w, http.StatusCreated, s.addCard(deckID, req.Question, req.Answer))
	}
}

// handleCreateUser rejects duplicate usernames or emails with 400.
func (s *Server) handleCreateUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.NewUser
		if !decodeJSON(w, r, &req) {
			return
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, u := range s.users {
			if u.Username == req.Username || u.Email == req.Email {
				respondDetail(w, http.StatusBadRequest, "Username or email already exists")
				return
			}
		}
		u := domain.User{ID: s.id(), Username: req.Username, Email: req.Email, CreatedAt: time.Now().UTC()}
		s.users[u.ID] = u
		respondJSON(w, http.StatusCreated, u)
	}
}

// handleGetUserCards filters a deck's cards by mode using the user's progress.
func (s *Server) handleGetUserCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(w, r, "userID")
		if !ok {
			return
		}
		mode := domain.Mode(r.URL.Query().Get("mode"))
		if !mode.Valid() {
			respondDetail(w, http.StatusUnprocessableEntity, "mode must be learn or recap")
			return
		}
		var deckID int64
		if v := r.URL.Query().Get("deck_id"); v != "" {
			deckID, _ = strconv.ParseInt(v, 10, 64)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		s.cardCalls++
		if s.failCards > 0 {
			s.failCards--
			respondDetail(w, http.StatusServiceUnavailable, "card store unavailable")
			return
		}
		if _, ok := s.users[userID]; !ok {
			respondDetail(w, http.StatusNotFound, "User not found")
			return
		}
		if deckID != 0 {
			if _, ok := s.decks[deckID]; !ok {
				respondDetail(w, http.StatusNotFound, "Deck not found")
				return
			}
		}

		result := []domain.CardWithProgress{}
		for _, id := range s.order {
			c := s.cards[id]
			if deckID != 0 && c.DeckID != deckID {
				continue
			}
			var p *domain.CardProgress
			if stored, ok := s.progress[[2]int64{userID, c.ID}]; ok {
				cp := *stored
				p = &cp
			}
			switch mode {
			case domain.Learn:
				if p == nil || p.ConfidenceScore < RecapThreshold {
					result = append(result, domain.CardWithProgress{Card: c, Progress: p})
				}
			case domain.Recap:
				if p != nil && p.ConfidenceScore >= RecapThreshold {
					result = append(result, domain.CardWithProgress{Card: c, Progress: p})
				}
			}
		}
		respondJSON(w, http.StatusOK, result)
	}
}

// handlePostReview records a review and returns the updated progress.
func (s *Server) handlePostReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.Review
		if !decodeJSON(w, r, &req) {
			return
		}

		s.mu.Lock()
		s.reviewCalls++
		if s.failReviews > 0 {
			s.failReviews--
			s.mu.Unlock()
			respondDetail(w, http.StatusServiceUnavailable, "review store unavailable")
			return
		}
		if req.Confidence < 0 || req.Confidence > 1 {
			s.mu.Unlock()
			respondDetail(w, http.StatusUnprocessableEntity, "confidence must be between 0 and 1")
			return
		}
		if _, ok := s.cards[req.CardID]; !ok {
			s.mu.Unlock()
			respondDetail(w, http.StatusNotFound, "Card not found")
			return
		}

		key := [2]int64{req.UserID, req.CardID}
		now := time.Now().UTC()
		p, ok := s.progress[key]
		if !ok {
			p = &domain.CardProgress{ID: s.id(), UserID: req.UserID, CardID: req.CardID, ConfidenceScore: req.Confidence}
			s.progress[key] = p
		} else {
			p.ConfidenceScore = carryWeight*p.ConfidenceScore + (1-carryWeight)*req.Confidence
		}
		p.ReviewCount++
		p.LastReviewedAt = &now
		out := *p
		gate := s.reviewGate
		s.mu.Unlock()

		if gate != nil {
			<-gate
		}
		respondJSON(w, http.StatusCreated, out)
	}
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "invalid "+name)
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondDetail(w, http.StatusUnprocessableEntity, "invalid json")
		return false
	}
	return true
}

func respondDetail(w http.ResponseWriter, status int, detail string) {
	respondJSON(w, status, map[string]string{"detail": detail})
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
