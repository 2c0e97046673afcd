// Package importer turns a directory of markdown notes, or a git repository
// of them, into a deck on the backend.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/gitsource"
	"github.com/conorfennell/knolstudy/internal/knol"
	"github.com/conorfennell/knolstudy/internal/parser"
)

// Backend is the part of the API client the importer writes through.
type Backend interface {
	CreateDeck(ctx context.Context, in domain.NewDeck) (*domain.Deck, error)
	CreateCard(ctx context.Context, deckID int64, in domain.NewCard) (*domain.Card, error)
}

// Source names the notes to import and the deck to create from them.
type Source struct {
	Path        string
	Title       string
	Description string
}

// Report summarises one import.
type Report struct {
	Deck        domain.Deck
	Files       int
	Created     int
	Duplicates  int
	ParseErrors []error
}

// Options tunes how hard the importer drives the backend.
type Options struct {
	Workers int
	Rate    float64
	RepoDir string
}

type Importer struct {
	backend Backend
	ownerID int64
	opts    Options
	logger  *slog.Logger
	limiter *rate.Limiter
}

// New creates an importer that creates decks owned by ownerID.
func New(backend Backend, ownerID int64, opts Options, logger *slog.Logger) *Importer {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.RepoDir == "" {
		opts.RepoDir = "repos"
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		backend: backend,
		ownerID: ownerID,
		opts:    opts,
		logger:  logger,
		limiter: rate.NewLimiter(limit, opts.Workers),
	}
}

// Import parses every *.md file under src.Path, drops duplicate cards and
// creates the deck with its cards. Files that fail to parse are reported, not
// fatal. The first card that fails to create aborts the import.
func (im *Importer) Import(ctx context.Context, src Source) (*Report, error) {
	if strings.TrimSpace(src.Title) == "" {
		return nil, errors.New("import needs a deck title")
	}
	dir, err := im.resolve(ctx, src.Path)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	drafts, err := im.collect(dir, report)
	if err != nil {
		return nil, err
	}
	unique, dups := knol.Dedupe(drafts)
	report.Duplicates = dups
	if len(unique) == 0 {
		return report, fmt.Errorf("no cards found in %s", src.Path)
	}

	deck, err := im.backend.CreateDeck(ctx, domain.NewDeck{Title: src.Title, Description: src.Description, OwnerID: im.ownerID})
	if err != nil {
		return report, fmt.Errorf("failed to create deck %q: %w", src.Title, err)
	}
	report.Deck = *deck
	im.logger.Info("deck created", "deck_id", deck.ID, "title", deck.Title, "cards", len(unique))

	created, err := im.createCards(ctx, deck.ID, unique)
	report.Created = created
	if err != nil {
		return report, err
	}

	im.logger.Info("import complete",
		"deck_id", deck.ID,
		"files", report.Files,
		"created", report.Created,
		"duplicates", report.Duplicates,
		"errors", len(report.ParseErrors),
	)
	return report, nil
}

// resolve returns a local directory for path, fetching it first when it is a
// git URL.
func (im *Importer) resolve(ctx context.Context, path string) (string, error) {
	if !gitsource.IsGitURL(path) {
		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("failed to read source %s: %w", path, err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("source %s is not a directory", path)
		}
		return path, nil
	}

	local, err := gitsource.LocalPath(im.opts.RepoDir, path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
		return "", fmt.Errorf("failed to create repos directory: %w", err)
	}
	if err := gitsource.Fetch(ctx, im.logger, path, local); err != nil {
		return "", err
	}
	return local, nil
}

func (im *Importer) collect(dir string, report *Report) ([]domain.CardDraft, error) {
	var drafts []domain.CardDraft
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.EqualFold(filepath.Ext(d.Name()), ".md") {
			return nil
		}
		report.Files++
		fileDrafts, parseErr := parser.ParseFile(path)
		if parseErr != nil {
			im.logger.Warn("problems parsing file", "path", path, "error", parseErr)
			report.ParseErrors = append(report.ParseErrors, parseErr)
		}
		drafts = append(drafts, fileDrafts...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", dir, err)
	}
	return drafts, nil
}

// createCards posts drafts with at most Workers requests in flight, paced by
// the rate limiter.
func (im *Importer) createCards(ctx context.Context, deckID int64, drafts []domain.CardDraft) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(im.opts.Workers)

	results := make([]bool, len(drafts))
	for i, d := range drafts {
		g.Go(func() error {
			if err := im.limiter.Wait(ctx); err != nil {
				return err
			}
			if _, err := im.backend.CreateCard(ctx, deckID, toNewCard(d)); err != nil {
				return fmt.Errorf("failed to create card %q: %w", d.Question, err)
			}
			results[i] = true
			return nil
		})
	}
	err := g.Wait()

	created := 0
	for _, ok := range results {
		if ok {
			created++
		}
	}
	return created, err
}

// toNewCard folds the optional context into the answer; the backend stores
// only question and answer.
func toNewCard(d domain.CardDraft) domain.NewCard {
	answer := d.Answer
	if d.Context != "" {
		answer += "\n\n(" + d.Context + ")"
	}
	return domain.NewCard{Question: d.Question, Answer: answer}
}
