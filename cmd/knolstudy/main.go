package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/conorfennell/knolstudy/internal/api"
	"github.com/conorfennell/knolstudy/internal/config"
	"github.com/conorfennell/knolstudy/internal/storage"
)

const usage = `usage: knolstudy <command> [flags]

commands:
  study        study a deck interactively
  decks        list the available decks
  history      show recently accepted reviews from the local cache
  create-user  create a backend user
  create-deck  create an empty deck owned by the configured user
  create-card  add a card to a deck
  import       create a deck from markdown notes or a git repository

Run "knolstudy <command> --help" for the flags of a command.
`

// errUsage is returned after usage has already been printed.
var errUsage = errors.New("invalid usage")

// app carries what every command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *api.Client
	in     io.Reader
	out    io.Writer
}

type command struct {
	flags func(fs *pflag.FlagSet)
	run   func(ctx context.Context, a *app, fs *pflag.FlagSet) error
}

var commands = map[string]command{
	"study":       {flags: studyFlags, run: runStudy},
	"decks":       {run: runDecks},
	"history":     {flags: historyFlags, run: runHistory},
	"create-user": {flags: createUserFlags, run: runCreateUser},
	"create-deck": {flags: createDeckFlags, run: runCreateDeck},
	"create-card": {flags: createCardFlags, run: runCreateCard},
	"import":      {flags: importFlags, run: runImport},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "knolstudy: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(errOut, usage)
		if len(args) == 0 {
			return errUsage
		}
		return nil
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(errOut, "unknown command %q\n\n%s", name, usage)
		return errUsage
	}

	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(errOut)
	config.RegisterFlags(fs)
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	logger := config.NewLogger(cfg.Log, errOut)

	client, err := api.NewClient(cfg.API.BaseURL, api.WithTimeout(cfg.API.Timeout), api.WithLogger(logger))
	if err != nil {
		return err
	}

	a := &app{cfg: cfg, logger: logger, client: client, in: in, out: out}
	return cmd.run(ctx, a, fs)
}

// openCache opens the progress cache, or returns nil when it is disabled.
func (a *app) openCache() (*storage.DB, error) {
	if a.cfg.Cache.Path == "" {
		return nil, nil
	}
	db, err := storage.Open(a.cfg.Cache.Path)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("progress cache opened", "path", a.cfg.Cache.Path)
	return db, nil
}
