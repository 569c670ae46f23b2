// Command quizclient takes quizzes against the quiz API and keeps working
// while the API is unreachable: submissions and new quizzes are queued in a
// local database and replayed once connectivity returns.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/stemsi/quizsync/internal/apiclient"
	"github.com/stemsi/quizsync/internal/config"
	"github.com/stemsi/quizsync/internal/logger"
	"github.com/stemsi/quizsync/internal/offline"
)

// app holds what every subcommand needs.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	client *apiclient.Client
	store  *offline.Store
	queue  *offline.Queue
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{
	{"run", "watch connectivity and sync automatically until interrupted", runAgent},
	{"sync", "probe the API once and replay queued records if reachable", runSync},
	{"list", "show queued submissions and quizzes", runList},
	{"submit", "submit answers, queueing offline if the API is unreachable", runSubmit},
	{"create", "create a quiz from a JSON file, queueing offline if needed", runCreate},
	{"timer", "run an interactive countdown", runTimer},
	{"clear", "delete all queued records and user data", runClear},
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var cmd *command
	for i := range commands {
		if commands[i].name == os.Args[1] {
			cmd = &commands[i]
		}
	}
	if cmd == nil {
		usage()
		os.Exit(2)
	}

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.OfflineDBPath).Msg("Failed to open offline store")
	}

	err = cmd.run(ctx, a, os.Args[2:])
	if closeErr := a.store.Close(); closeErr != nil {
		log.Error().Err(closeErr).Msg("Failed to close offline store")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", cmd.name, err)
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error) {
	store, err := offline.Open(ctx, cfg.OfflineDBPath, log)
	if err != nil {
		return nil, err
	}
	client := apiclient.New(cfg.APIBaseURL, cfg.APIToken, cfg.RequestTimeout)
	return &app{
		cfg:    cfg,
		log:    log,
		client: client,
		store:  store,
		queue:  offline.NewQueue(ctx, store, client, log),
	}, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: quizclient <command> [flags]")
	fmt.Fprintln(os.Stderr, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-8s %s\n", c.name, c.summary)
	}
}
