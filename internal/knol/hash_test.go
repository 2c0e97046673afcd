package knol

import (
	"testing"

	"github.com/conorfennell/knolstudy/internal/domain"
)

func TestNormalize(t *testing.T) {
	d := domain.CardDraft{
		Question: "  What is a   Goroutine? \r\n",
		Answer:   "A lightweight\r\nthread",
	}
	expected := "what is a goroutine?\na lightweight thread\n"
	if got := Normalize(d); got != expected {
		t.Errorf("Expected normalized string to be '%q', but got '%q'", expected, got)
	}
}

func TestHash(t *testing.T) {
	t.Run("generates correct hash", func(t *testing.T) {
		// Hash for "q\na\nc"
		expected := "eb2456c1ee4f36305069dd0f63a30e92d5443129f5e8fd9a5ec490fbc4d4d8a2"
		if got := Hash(domain.CardDraft{Question: "Q", Answer: "A", Context: "C"}); got != expected {
			t.Errorf("Expected hash '%s', but got '%s'", expected, got)
		}
	})

	t.Run("ignores case and spacing", func(t *testing.T) {
		a := Hash(domain.CardDraft{Question: "What is a goroutine?", Answer: "A lightweight thread"})
		b := Hash(domain.CardDraft{Question: "what is a  GOROUTINE?", Answer: "a lightweight\nthread "})
		if a != b {
			t.Errorf("Expected equal hashes, but got '%s' and '%s'", a, b)
		}
		if a != "1462860b09e8bd62a2b8cc56422210ae888a0ceb231382a0920ca0bb16d56fd5" {
			t.Errorf("Unexpected hash '%s'", a)
		}
	})

	t.Run("fields are not interchangeable", func(t *testing.T) {
		a := Hash(domain.CardDraft{Question: "x", Answer: "y"})
		b := Hash(domain.CardDraft{Question: "x y"})
		if a == b {
			t.Error("Expected different hashes for different field splits")
		}
	})
}

func TestDedupe(t *testing.T) {
	drafts := []domain.CardDraft{
		{Question: "One", Answer: "1"},
		{Question: "Two", Answer: "2"},
		{Question: "one", Answer: " 1 "},
		{Question: "One", Answer: "1", Context: "numbers"},
	}

	unique, dropped := Dedupe(drafts)
	if dropped != 1 {
		t.Errorf("Expected 1 duplicate, but got %d", dropped)
	}
	if len(unique) != 3 {
		t.Fatalf("Expected 3 unique drafts, but got %d", len(unique))
	}
	if unique[0].Question != "One" || unique[1].Question != "Two" || unique[2].Context != "numbers" {
		t.Errorf("Expected input order to be kept, got %+v", unique)
	}
	for i, d := range unique {
		if d.Hash != Hash(d) {
			t.Errorf("Draft %d was not stamped with its hash", i)
		}
	}
}
