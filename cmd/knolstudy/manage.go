package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/conorfennell/knolstudy/internal/catalog"
	"github.com/conorfennell/knolstudy/internal/config"
	"github.com/conorfennell/knolstudy/internal/domain"
	"github.com/conorfennell/knolstudy/internal/importer"
)

func runDecks(ctx context.Context, a *app, _ *pflag.FlagSet) error {
	decks, err := catalog.New(a.client, a.logger).Refresh(ctx)
	if err != nil {
		return err
	}
	if len(decks) == 0 {
		fmt.Fprintln(a.out, "No decks yet. Create one with create-deck or import.")
		return nil
	}
	printDecks(a, decks)
	return nil
}

func printDecks(a *app, decks []domain.Deck) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tOWNER\tDESCRIPTION")
	for _, d := range decks {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", d.ID, d.Title, d.OwnerID, d.Summary())
	}
	tw.Flush()
}

func historyFlags(fs *pflag.FlagSet) {
	fs.Duration("since", 24*time.Hour, "how far back to look")
}

func runHistory(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	if err := a.cfg.RequireUser(); err != nil {
		return err
	}
	since, _ := fs.GetDuration("since")
	db, err := a.openCache()
	if err != nil {
		return err
	}
	if db == nil {
		return errors.New("history needs the progress cache; set cache.path")
	}
	defer db.Close()

	logs, err := db.ReviewsSince(ctx, a.cfg.User.ID, time.Now().Add(-since))
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		fmt.Fprintf(a.out, "No reviews in the last %s.\n", since)
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tCARD\tCONFIDENCE\tCURRENT\tSESSION")
	for _, l := range logs {
		current := "-"
		p, err := db.FindProgress(ctx, l.UserID, l.CardID)
		if err != nil {
			return err
		}
		if p != nil {
			current = fmt.Sprintf("%.2f", p.ConfidenceScore)
		}
		fmt.Fprintf(tw, "%s\t%d\t%.2f\t%s\t%s\n", l.Timestamp.Local().Format(time.DateTime), l.CardID, l.Confidence, current, l.SessionID)
	}
	tw.Flush()
	return nil
}

func createUserFlags(fs *pflag.FlagSet) {
	fs.String("username", "", "username of the new user")
	fs.String("email", "", "email of the new user")
}

func runCreateUser(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	username, _ := fs.GetString("username")
	email, _ := fs.GetString("email")
	u, err := a.client.CreateUser(ctx, domain.NewUser{Username: username, Email: email})
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(a.out, "Created user %d (%s). Study as this user with --user %d or KNOLSTUDY_USER_ID=%d.\n", u.ID, u.Username, u.ID, u.ID)
	return nil
}

func createDeckFlags(fs *pflag.FlagSet) {
	fs.String("title", "", "deck title")
	fs.String("description", "", "deck description")
}

func runCreateDeck(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	if err := a.cfg.RequireUser(); err != nil {
		return err
	}
	title, _ := fs.GetString("title")
	description, _ := fs.GetString("description")
	d, err := a.client.CreateDeck(ctx, domain.NewDeck{Title: title, Description: description, OwnerID: a.cfg.User.ID})
	if err != nil {
		return fmt.Errorf("failed to create deck: %w", err)
	}
	fmt.Fprintf(a.out, "Created deck %d: %s\n", d.ID, d.Title)
	return nil
}

func createCardFlags(fs *pflag.FlagSet) {
	fs.Int64("deck", 0, "id of the deck to add the card to")
	fs.String("question", "", "card question")
	fs.String("answer", "", "card answer")
}

func runCreateCard(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	deckID, _ := fs.GetInt64("deck")
	question, _ := fs.GetString("question")
	answer, _ := fs.GetString("answer")
	if deckID <= 0 {
		return errors.New("--deck is required")
	}
	c, err := a.client.CreateCard(ctx, deckID, domain.NewCard{Question: question, Answer: answer})
	if err != nil {
		return fmt.Errorf("failed to create card: %w", err)
	}
	fmt.Fprintf(a.out, "Created card %d in deck %d\n", c.ID, c.DeckID)
	return nil
}

func importFlags(fs *pflag.FlagSet) {
	d := config.Default().Import
	fs.String("source", "", "directory or git URL holding markdown notes")
	fs.String("title", "", "title of the deck to create")
	fs.String("description", "", "description of the deck to create")
	fs.Int("workers", d.Workers, "cards created concurrently")
	fs.Float64("rate", d.Rate, "maximum card creations per second")
	fs.String("repo-dir", d.RepoDir, "directory for git checkouts")
}

func runImport(ctx context.Context, a *app, fs *pflag.FlagSet) error {
	if err := a.cfg.RequireUser(); err != nil {
		return err
	}
	src := importer.Source{}
	src.Path, _ = fs.GetString("source")
	src.Title, _ = fs.GetString("title")
	src.Description, _ = fs.GetString("description")
	if src.Path == "" {
		return errors.New("--source is required")
	}

	opts := importer.Options{
		Workers: a.cfg.Import.Workers,
		Rate:    a.cfg.Import.Rate,
		RepoDir: a.cfg.Import.RepoDir,
	}

	report, err := importer.New(a.client, a.cfg.User.ID, opts, a.logger).Import(ctx, src)
	if report != nil {
		for _, perr := range report.ParseErrors {
			fmt.Fprintf(a.out, "warning: %v\n", perr)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Imported %d cards from %d files into deck %d (%s), skipped %d duplicates.\n",
		report.Created, report.Files, report.Deck.ID, report.Deck.Title, report.Duplicates)
	return nil
}
