// Package api is the transport client for the flashcard backend's REST contract.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// RequestIDHeader carries a per-request id so backend logs can be correlated.
const RequestIDHeader = "X-Request-ID"

// Client talks JSON over HTTP to the backend. It holds no user identity;
// callers pass the active user id on every call that needs one.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	timeout  time.Duration
	validate *validator.Validate
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the request timeout. It applies to a copy of the
// *http.Client, so a client passed to WithHTTPClient is never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", baseURL)
	}

	c := &Client{
		baseURL:  u,
		http:     &http.Client{Timeout: 15 * time.Second},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c, nil
}

// ListDecks fetches every deck. GET /decks/
func (c *Client) ListDecks(ctx context.Context) ([]domain.Deck, error) {
	var decks []domain.Deck
	if err := c.do(ctx, http.MethodGet, "/decks/", nil, nil, &decks); err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	return decks, nil
}

// GetDeck fetches one deck. GET /decks/{deckId}
func (c *Client) GetDeck(ctx context.Context, deckID int64) (*domain.Deck, error) {
	var deck domain.Deck
	path := "/decks/" + strconv.FormatInt(deckID, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &deck); err != nil {
		return nil, fmt.Errorf("get deck %d: %w", deckID, err)
	}
	return &deck, nil
}

// GetCards fetches the cards a user should study in mode for a deck.
// GET /users/{userId}/cards?mode=&deck_id=
func (c *Client) GetCards(ctx context.Context, userID int64, mode domain.Mode, deckID int64) ([]domain.CardWithProgress, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("get cards: unknown mode %q", mode)
	}
	query := url.Values{}
	query.Set("mode", string(mode))
	query.Set("deck_id", strconv.FormatInt(deckID, 10))

	var cards []domain.CardWithProgress
	path := "/users/" + strconv.FormatInt(userID, 10) + "/cards"
	if err := c.do(ctx, http.MethodGet, path, query, nil, &cards); err != nil {
		return nil, fmt.Errorf("get %s cards for deck %d: %w", mode, deckID, err)
	}
	return cards, nil
}

// SubmitReview posts a confidence rating and returns the updated progress.
// POST /reviews
func (c *Client) SubmitReview(ctx context.Context, review domain.Review) (*domain.CardProgress, error) {
	if err := c.validate.Struct(review); err != nil {
		return nil, fmt.Errorf("submit review: %w", err)
	}
	var progress domain.CardProgress
	if err := c.do(ctx, http.MethodPost, "/reviews", nil, review, &progress); err != nil {
		return nil, fmt.Errorf("submit review for card %d: %w", review.CardID, err)
	}
	return &progress, nil
}

// CreateUser registers a user. POST /users/
func (c *Client) CreateUser(ctx context.Context, in domain.NewUser) (*domain.User, error) {
	if err := c.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	var user domain.User
	if err := c.do(ctx, http.MethodPost, "/users/", nil, in, &user); err != nil {
		return nil, fmt.Errorf("create user %s: %w", in.Username, err)
	}
	return &user, nil
}

// CreateDeck creates a deck. POST /decks/
func (c *Client) CreateDeck(ctx context.Context, in domain.NewDeck) (*domain.Deck, error) {
	if err := c.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("create deck: %w", err)
	}
	var deck domain.Deck
	if err := c.do(ctx, http.MethodPost, "/decks/", nil, in, &deck); err != nil {
		return nil, fmt.Errorf("create deck %q: %w", in.Title, err)
	}
	return &deck, nil
}

// CreateCard adds a card to a deck. POST /decks/{deckId}/cards
func (c *Client) CreateCard(ctx context.Context, deckID int64, in domain.NewCard) (*domain.Card, error) {
	if err := c.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("create card: %w", err)
	}
	var card domain.Card
	path := "/decks/" + strconv.FormatInt(deckID, 10) + "/cards"
	if err := c.do(ctx, http.MethodPost, path, nil, in, &card); err != nil {
		return nil, fmt.Errorf("create card in deck %d: %w", deckID, err)
	}
	return &card, nil
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "path", path, "request_id", requestID, "error", err)
		return err
	}
	defer resp.Body.Close()
	c.logger.Debug("request done",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"elapsed", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
