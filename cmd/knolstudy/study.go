package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/conorfennell/knolstudy/internal/api"
	"github.com/conorfennell/knolstudy/internal/catalog"
	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/mode"
	"github.com/conorfennell/knolstudy/internal/session"
)

func studyFlags(fs *pflag.FlagSet) {
	fs.Int64("deck", 0, "id of the deck to study; prompts when omitted")
	fs.String("mode", string(domain.Learn), "study mode: learn or recap")
}

// studier drives one interactive study run over a line-based terminal.
type studier struct {
	a        *app
	input    *bufio.Scanner
	catalog  *catalog.Catalog
	selector *mode.Selector
	ctrl     *session.Controller
	sub      *session.Submitter
	deck     domain.Deck
	reviewed int
}

func runStudy(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	if err := a.cfg.RequireUser(); err != nil {
		return err
	}
	deckID, _ := fs.GetInt64("deck")
	modeFlag, _ := fs.GetString("mode")
	initial, err := domain.ParseMode(modeFlag)
	if err != nil {
		return err
	}

	db, err := a.openCache()
	if err != nil {
		return err
	}
	ctrlOpts := []session.ControllerOption{session.WithControllerLogger(a.logger)}
	subOpts := []session.SubmitterOption{session.WithSubmitterLogger(a.logger)}
	if db != nil {
		defer db.Close()
		ctrlOpts = append(ctrlOpts, session.WithCache(db))
		subOpts = append(subOpts, session.WithSink(db))
	}

	s := &studier{
		a:        a,
		input:    bufio.NewScanner(a.in),
		catalog:  catalog.New(a.client, a.logger),
		selector: mode.NewSelector(initial),
	}
	ctrlOpts = append(ctrlOpts, session.WithObserver(s.observe))
	s.ctrl = session.NewController(a.client, a.cfg.User.ID, ctrlOpts...)
	s.sub = session.NewSubmitter(s.ctrl, a.client, subOpts...)

	if err := s.chooseDeck(ctx, deckID); err != nil {
		return err
	}

	unsubscribe := s.selector.Subscribe(func(from, to domain.Mode) {
		fmt.Fprintf(a.out, "\nSwitched from %s to %s.\n", from, to)
		s.start(ctx)
	})
	defer unsubscribe()

	s.start(ctx)
	s.loop(ctx)
	fmt.Fprintf(a.out, "Reviewed %d cards. Bye.\n", s.reviewed)
	return nil
}

func (s *studier) observe(e session.Event) {
	if e.Kind == session.Completed {
		fmt.Fprintf(s.a.out, "\nSession complete: %s\n", e.Session.Progress().Label())
	}
}

// chooseDeck selects deckID, or lists the catalog and asks when it is zero.
func (s *studier) chooseDeck(ctx context.Context, deckID int64) error {
	if deckID == 0 {
		decks, err := s.catalog.Refresh(ctx)
		if err != nil {
			return err
		}
		if len(decks) == 0 {
			return errors.New("no decks to study")
		}
		printDecks(s.a, decks)
		for deckID == 0 {
			line, ok := s.prompt("Deck id: ")
			if !ok {
				return errors.New("no deck selected")
			}
			id, err := strconv.ParseInt(line, 10, 64)
			if err != nil || id <= 0 {
				fmt.Fprintln(s.a.out, "Enter one of the ids above.")
				continue
			}
			deckID = id
		}
	}

	deck, err := s.catalog.Select(ctx, deckID)
	if api.IsNotFound(err) {
		return fmt.Errorf("deck %d does not exist; run \"knolstudy decks\" to list decks", deckID)
	}
	if err != nil {
		return err
	}
	s.deck = deck
	fmt.Fprintf(s.a.out, "Studying %s\n", deck.Title)
	if summary := deck.Summary(); summary != "" {
		fmt.Fprintf(s.a.out, "  %s\n", summary)
	}
	return nil
}

// start loads a session for the selected mode. Failures are shown and leave
// the loop waiting for a retry or a mode switch.
func (s *studier) start(ctx context.Context) {
	m := s.selector.Current()
	_, err := s.ctrl.Start(ctx, m, s.deck.ID)
	var empty *session.EmptyDeckError
	var load *session.LoadError
	switch {
	case err == nil:
		fmt.Fprintf(s.a.out, "Mode: %s\n", m)
	case errors.As(err, &empty):
		fmt.Fprintf(s.a.out, "Nothing to %s in this deck.\n", m)
		s.ctrl.End()
	case errors.As(err, &load):
		fmt.Fprintf(s.a.out, "Could not load cards: %v\n", load.Err)
		s.ctrl.End()
	default:
		fmt.Fprintf(s.a.out, "Could not start: %v\n", err)
		s.ctrl.End()
	}
}

func (s *studier) loop(ctx context.Context) {
	for ctx.Err() == nil {
		card, err := s.ctrl.CurrentCard()
		if err != nil {
			if !s.idle(ctx, err) {
				return
			}
			continue
		}
		if !s.review(ctx, card) {
			return
		}
	}
}

// idle handles the states without a card to show. It reports whether to keep
// going.
func (s *studier) idle(ctx context.Context, err error) bool {
	other := s.selector.Current().Opposite()
	help := fmt.Sprintf("[r]etry, [m] switch to %s, [q]uit: ", other)
	if errors.Is(err, session.ErrSessionComplete) {
		help = fmt.Sprintf("[r]estart, [m] switch to %s, [q]uit: ", other)
	}
	line, ok := s.prompt(help)
	if !ok {
		return false
	}
	switch strings.ToLower(line) {
	case "q":
		return false
	case "m":
		s.selector.Toggle()
	case "r":
		s.start(ctx)
	}
	return true
}

// review shows one card, reveals it on Enter and submits a confidence. It
// reports whether to keep going.
func (s *studier) review(ctx context.Context, card domain.CardWithProgress) bool {
	snap, _ := s.ctrl.Progress()
	fmt.Fprintf(s.a.out, "\n%s\n", snap.Label())
	if p := card.Progress; p != nil {
		fmt.Fprintf(s.a.out, "Confidence so far %.2f over %d reviews\n", p.ConfidenceScore, p.ReviewCount)
	}
	fmt.Fprintf(s.a.out, "Q: %s\n", card.Card.Question)

	line, ok := s.prompt("[Enter] reveal, [m] switch mode, [q]uit: ")
	if !ok {
		return false
	}
	switch strings.ToLower(line) {
	case "q":
		return false
	case "m":
		s.selector.Toggle()
		return true
	}

	fmt.Fprintf(s.a.out, "A: %s\n", card.Card.Answer)
	for {
		line, ok := s.prompt("Confidence 0-1: ")
		if !ok {
			return false
		}
		if strings.EqualFold(line, "q") {
			return false
		}
		confidence, err := session.ParseConfidence(line)
		if err != nil {
			fmt.Fprintln(s.a.out, err)
			continue
		}
		res, err := s.sub.Submit(ctx, card.Card, confidence)
		if err != nil {
			fmt.Fprintf(s.a.out, "Not saved: %v\n", err)
			if errors.Is(err, session.ErrCardNotCurrent) || errors.Is(err, session.ErrNoSession) {
				return true
			}
			continue
		}
		s.reviewed++
		if res.Progress != nil {
			fmt.Fprintf(s.a.out, "Saved. Confidence now %.2f\n", res.Progress.ConfidenceScore)
		}
		return true
	}
}

func (s *studier) prompt(text string) (string, bool) {
	fmt.Fprint(s.a.out, text)
	if !s.input.Scan() {
		fmt.Fprintln(s.a.out)
		return "", false
	}
	return strings.TrimSpace(s.input.Text()), true
}
