package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("Open() returned an unexpected error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestProgressReplacedWholesale(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	reviewed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	first := domain.CardProgress{ID: 7, UserID: 1, CardID: 42, ConfidenceScore: 0.5, ReviewCount: 1, LastReviewedAt: &reviewed}
	if err := db.PutProgress(ctx, first); err != nil {
		t.Fatalf("PutProgress() returned an unexpected error: %v", err)
	}

	second := domain.CardProgress{ID: 7, UserID: 1, CardID: 42, ConfidenceScore: 0.65, ReviewCount: 2}
	if err := db.PutProgress(ctx, second); err != nil {
		t.Fatalf("PutProgress() returned an unexpected error: %v", err)
	}

	got, err := db.FindProgress(ctx, 1, 42)
	if err != nil {
		t.Fatalf("FindProgress() returned an unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a cached progress record")
	}
	if got.ConfidenceScore != 0.65 || got.ReviewCount != 2 {
		t.Errorf("expected the second record, got %+v", got)
	}
	if got.LastReviewedAt != nil {
		t.Errorf("expected last_reviewed_at to be replaced with null, got %v", got.LastReviewedAt)
	}
}

func TestFindProgressMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.FindProgress(context.Background(), 1, 99)
	if err != nil {
		t.Fatalf("FindProgress() returned an unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for an uncached card, got %+v", got)
	}
}

func TestPutProgressBatchSkipsUnseenCards(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	cards := []domain.CardWithProgress{
		{Card: domain.Card{ID: 1}, Progress: &domain.CardProgress{ID: 10, UserID: 3, CardID: 1, ConfidenceScore: 0.2, ReviewCount: 1}},
		{Card: domain.Card{ID: 2}},
	}
	if err := db.PutProgressBatch(ctx, cards); err != nil {
		t.Fatalf("PutProgressBatch() returned an unexpected error: %v", err)
	}

	if p, _ := db.FindProgress(ctx, 3, 1); p == nil || p.ConfidenceScore != 0.2 {
		t.Errorf("expected card 1 to be cached, got %+v", p)
	}
	if p, _ := db.FindProgress(ctx, 3, 2); p != nil {
		t.Errorf("expected card 2 to stay uncached, got %+v", p)
	}
}

func TestReviewLog(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	now := time.Now()

	for i, conf := range []float64{0, 0.5, 1} {
		err := db.AppendReview(ctx, domain.ReviewLog{
			UserID:     1,
			CardID:     int64(i + 1),
			Confidence: conf,
			SessionID:  "s-1",
			Timestamp:  now,
		})
		if err != nil {
			t.Fatalf("AppendReview() returned an unexpected error: %v", err)
		}
	}
	if err := db.AppendReview(ctx, domain.ReviewLog{UserID: 2, CardID: 1, SessionID: "s-2", Timestamp: now}); err != nil {
		t.Fatalf("AppendReview() returned an unexpected error: %v", err)
	}

	logs, err := db.ReviewsSince(ctx, 1, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReviewsSince() returned an unexpected error: %v", err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 reviews for user 1, got %d", len(logs))
	}
	if logs[0].CardID != 1 || logs[2].Confidence != 1 {
		t.Errorf("unexpected review order: %+v", logs)
	}
}
