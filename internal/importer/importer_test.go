package importer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolstudy/internal/api"
	"github.com/conorfennell/knolstudy/internal/api/apitest"
	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/parser"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func writeNotes(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestImportCreatesDeckAndCards(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	client, err := api.NewClient(srv.URL)
	require.NoError(t, err)
	owner := srv.AddUser("alice")

	dir := writeNotes(t, map[string]string{
		"go.md":         "Q: What is a slice?\nA: A view over an array\n---\nQ: Zero value of a map?\nA: nil\nC: Go types\n",
		"nested/sql.md": "Q: What does JOIN do?\nA: Combines rows\n---\nQ: what is a  SLICE?\nA: a view over an array\n",
		"broken.md":     "Q: No answer here\n",
		"README.txt":    "Q: ignored\nA: not markdown\n",
		".git/HEAD.md":  "Q: inside git dir\nA: skipped\n",
	})

	im := New(client, owner.ID, Options{Workers: 2, Rate: 100}, quiet)
	report, err := im.Import(context.Background(), Source{Path: dir, Title: "Notes", Description: "from markdown"})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Files)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 1, report.Duplicates)
	require.Len(t, report.ParseErrors, 1)
	var syntax *parser.SyntaxError
	assert.ErrorAs(t, report.ParseErrors[0], &syntax)

	assert.Equal(t, "Notes", report.Deck.Title)
	assert.Equal(t, owner.ID, report.Deck.OwnerID)
	require.NotNil(t, report.Deck.Description)
	assert.Equal(t, "from markdown", *report.Deck.Description)

	cards := srv.Cards(report.Deck.ID)
	require.Len(t, cards, 3)
	answers := map[string]string{}
	for _, c := range cards {
		answers[c.Question] = c.Answer
	}
	assert.Equal(t, "nil\n\n(Go types)", answers["Zero value of a map?"])
	assert.Contains(t, answers, "What does JOIN do?")
}

func TestImportRejectsEmptySources(t *testing.T) {
	backend := &fakeBackend{}
	im := New(backend, 1, Options{}, quiet)

	_, err := im.Import(context.Background(), Source{Path: writeNotes(t, map[string]string{"a.md": "no cards"}), Title: "Empty"})
	assert.Error(t, err)
	assert.Zero(t, backend.decks.Load(), "no deck should be created without cards")

	_, err = im.Import(context.Background(), Source{Path: filepath.Join(t.TempDir(), "missing"), Title: "Missing"})
	assert.Error(t, err)

	_, err = im.Import(context.Background(), Source{Path: t.TempDir(), Title: "  "})
	assert.Error(t, err)
}

func TestImportStopsOnCardFailure(t *testing.T) {
	boom := errors.New("backend down")
	backend := &fakeBackend{failAfter: 1, err: boom}
	dir := writeNotes(t, map[string]string{
		"a.md": "Q: 1\nA: 1\n---\nQ: 2\nA: 2\n---\nQ: 3\nA: 3\n",
	})

	im := New(backend, 1, Options{Workers: 1}, quiet)
	report, err := im.Import(context.Background(), Source{Path: dir, Title: "Numbers"})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, int64(1), backend.decks.Load())
}

type fakeBackend struct {
	decks     atomic.Int64
	cards     atomic.Int64
	failAfter int64
	err       error
}

func (f *fakeBackend) CreateDeck(ctx context.Context, in domain.NewDeck) (*domain.Deck, error) {
	id := f.decks.Add(1)
	return &domain.Deck{ID: id, Title: in.Title, OwnerID: in.OwnerID}, nil
}

func (f *fakeBackend) CreateCard(ctx context.Context, deckID int64, in domain.NewCard) (*domain.Card, error) {
	n := f.cards.Add(1)
	if f.err != nil && n > f.failAfter {
		return nil, f.err
	}
	return &domain.Card{ID: n, DeckID: deckID, Question: in.Question, Answer: in.Answer}, nil
}
