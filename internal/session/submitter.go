package session

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// ReviewPoster sends a review upstream and returns the server's updated progress.
type ReviewPoster interface {
	SubmitReview(ctx context.Context, review domain.Review) (*domain.CardProgress, error)
}

// Result describes what happened to an accepted review.
type Result struct {
	Review   domain.Review
	Progress *domain.CardProgress
	// Advanced is false when the session the review was bound to had been
	// replaced, or had already moved on, by the time the backend answered.
	Advanced bool
}

// Submitter validates confidence ratings, submits them, and advances the
// session they were made in. It holds no session state of its own.
type Submitter struct {
	ctrl     *Controller
	poster   ReviewPoster
	sink     ProgressSink
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// SubmitterOption configures a Submitter.
type SubmitterOption func(*Submitter)

// WithSink stores accepted progress and reviews.
func WithSink(sink ProgressSink) SubmitterOption {
	return func(s *Submitter) { s.sink = sink }
}

// WithSubmitterLogger sets the submitter's logger.
func WithSubmitterLogger(l *slog.Logger) SubmitterOption {
	return func(s *Submitter) { s.logger = l }
}

// NewSubmitter creates a submitter that reviews as ctrl's user.
func NewSubmitter(ctrl *Controller, poster ReviewPoster, opts ...SubmitterOption) *Submitter {
	s := &Submitter{
		ctrl:     ctrl,
		poster:   poster,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParseConfidence converts typed input into a confidence value.
func ParseConfidence(input string) (float64, error) {
	trimmed := strings.TrimSpace(input)
	v, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, &ValidationError{Field: "confidence", Value: strconv.Quote(trimmed), Reason: "not a number"}
	}
	if err := validateConfidence(v); err != nil {
		return 0, err
	}
	return v, nil
}

func validateConfidence(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &ValidationError{Field: "confidence", Value: v, Reason: "not a number"}
	}
	if v < 0 || v > 1 {
		return &ValidationError{Field: "confidence", Value: v, Reason: "must be between 0 and 1"}
	}
	return nil
}

// Submit rates card with confidence.
//
// Invalid confidence is a *ValidationError and nothing is sent. A card that is
// not the current card of the active session is rejected with a
// *SubmissionError wrapping ErrCardNotCurrent. A backend or transport failure
// is a *SubmissionError and the session stays on the card. On acceptance the
// returned progress replaces the cached copy and the session advances by one,
// unless it was superseded while the request was in flight.
func (s *Submitter) Submit(ctx context.Context, card domain.Card, confidence float64) (*Result, error) {
	if err := validateConfidence(confidence); err != nil {
		return nil, err
	}
	review := domain.Review{UserID: s.ctrl.UserID(), CardID: card.ID, Confidence: confidence}
	if err := s.validate.Struct(review); err != nil {
		return nil, toValidationError(err)
	}

	sess := s.ctrl.Current()
	if sess == nil {
		return nil, &SubmissionError{CardID: card.ID, Err: ErrNoSession}
	}
	current, index, err := sess.current()
	if err != nil {
		return nil, &SubmissionError{CardID: card.ID, Err: ErrCardNotCurrent}
	}
	if current.Card.ID != card.ID {
		return nil, &SubmissionError{CardID: card.ID, Err: ErrCardNotCurrent}
	}

	updated, err := s.poster.SubmitReview(ctx, review)
	if err != nil {
		s.logger.Warn("review rejected", "session_id", sess.ID, "card_id", card.ID, "error", err)
		return nil, &SubmissionError{CardID: card.ID, Err: err}
	}

	sess.replaceProgress(index, updated)
	s.record(ctx, sess, review, updated)

	advanced := s.ctrl.advanceFrom(sess, index)
	if !advanced {
		s.logger.Debug("stale review result dropped", "session_id", sess.ID, "card_id", card.ID, "index", index)
	} else {
		s.logger.Debug("review accepted", "session_id", sess.ID, "card_id", card.ID, "confidence", confidence)
	}
	return &Result{Review: review, Progress: updated, Advanced: advanced}, nil
}

// record writes the accepted review to the sink. The sink is a cache, so
// failures are logged and do not fail the submission.
func (s *Submitter) record(ctx context.Context, sess *Session, review domain.Review, updated *domain.CardProgress) {
	if s.sink == nil {
		return
	}
	if updated != nil {
		if err := s.sink.PutProgress(ctx, *updated); err != nil {
			s.logger.Warn("failed to cache progress", "card_id", review.CardID, "error", err)
		}
	}
	entry := domain.ReviewLog{
		UserID:     review.UserID,
		CardID:     review.CardID,
		Confidence: review.Confidence,
		SessionID:  sess.ID,
		Timestamp:  s.now(),
	}
	if err := s.sink.AppendReview(ctx, entry); err != nil {
		s.logger.Warn("failed to log review", "card_id", review.CardID, "error", err)
	}
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{Field: fe.Field(), Value: fe.Value(), Reason: "failed " + fe.Tag() + " check"}
	}
	return &ValidationError{Field: "review", Value: nil, Reason: err.Error()}
}
