package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB is a local cache of server-owned progress records and accepted reviews.
// Nothing here is authoritative; the backend is.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// PutProgress replaces the cached copy of a progress record.
func (db *DB) PutProgress(ctx context.Context, p domain.CardProgress) error {
	var last sql.NullTime
	if p.LastReviewedAt != nil {
		last = sql.NullTime{Time: p.LastReviewedAt.UTC(), Valid: true}
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO card_progress (user_id, card_id, progress_id, confidence_score, review_count, last_reviewed_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, card_id) DO UPDATE SET
			progress_id = excluded.progress_id,
			confidence_score = excluded.confidence_score,
			review_count = excluded.review_count,
			last_reviewed_at = excluded.last_reviewed_at,
			cached_at = excluded.cached_at
	`,
		p.UserID,
		p.CardID,
		p.ID,
		p.ConfidenceScore,
		p.ReviewCount,
		last,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to cache progress for card %d: %w", p.CardID, err)
	}
	return nil
}

// PutProgressBatch caches every non-nil progress attached to cards in one transaction.
func (db *DB) PutProgressBatch(ctx context.Context, cards []domain.CardWithProgress) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin progress batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO card_progress (user_id, card_id, progress_id, confidence_score, review_count, last_reviewed_at, cached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, card_id) DO UPDATE SET
			progress_id = excluded.progress_id,
			confidence_score = excluded.confidence_score,
			review_count = excluded.review_count,
			last_reviewed_at = excluded.last_reviewed_at,
			cached_at = excluded.cached_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare progress batch: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, c := range cards {
		p := c.Progress
		if p == nil {
			continue
		}
		var last sql.NullTime
		if p.LastReviewedAt != nil {
			last = sql.NullTime{Time: p.LastReviewedAt.UTC(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, p.UserID, p.CardID, p.ID, p.ConfidenceScore, p.ReviewCount, last, now); err != nil {
			return fmt.Errorf("failed to cache progress for card %d: %w", p.CardID, err)
		}
	}
	return tx.Commit()
}

// FindProgress returns the cached progress for a user and card, or nil if none.
func (db *DB) FindProgress(ctx context.Context, userID, cardID int64) (*domain.CardProgress, error) {
	var p domain.CardProgress
	var last sql.NullTime
	row := db.conn.QueryRowContext(ctx, `
		SELECT progress_id, user_id, card_id, confidence_score, review_count, last_reviewed_at
		FROM card_progress WHERE user_id = ? AND card_id = ?
	`, userID, cardID)

	err := row.Scan(&p.ID, &p.UserID, &p.CardID, &p.ConfidenceScore, &p.ReviewCount, &last)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Not cached
		}
		return nil, fmt.Errorf("failed to find progress for card %d: %w", cardID, err)
	}
	if last.Valid {
		t := last.Time
		p.LastReviewedAt = &t
	}
	return &p, nil
}

// AppendReview records a review the backend accepted.
func (db *DB) AppendReview(ctx context.Context, r domain.ReviewLog) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO review_log (user_id, card_id, confidence, session_id, reviewed_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.UserID, r.CardID, r.Confidence, r.SessionID, r.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("failed to log review for card %d: %w", r.CardID, err)
	}
	return nil
}

// ReviewsSince returns a user's accepted reviews at or after since, oldest first.
func (db *DB) ReviewsSince(ctx context.Context, userID int64, since time.Time) ([]domain.ReviewLog, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT user_id, card_id, confidence, session_id, reviewed_at
		FROM review_log
		WHERE user_id = ? AND reviewed_at >= ?
		ORDER BY id
	`, userID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews for user %d: %w", userID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var r domain.ReviewLog
		if err := rows.Scan(&r.UserID, &r.CardID, &r.Confidence, &r.SessionID, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan review row: %w", err)
		}
		logs = append(logs, r)
	}
	return logs, rows.Err()
}
