package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/stemsi/quizsync/internal/connectivity"
	"github.com/stemsi/quizsync/internal/offline"
	"github.com/stemsi/quizsync/internal/timer"
)

// lastSyncKey is the user data key holding the outcome of the latest sync.
const lastSyncKey = "last_sync"

type syncReport struct {
	At     time.Time             `json:"at"`
	Online bool                  `json:"online"`
	Before offline.PendingCounts `json:"before"`
	After  offline.PendingCounts `json:"after"`
}

func runAgent(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	interval := fs.Duration("interval", a.cfg.ProbeInterval, "connectivity probe interval")
	_ = fs.Parse(args)

	if *interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", *interval)
	}

	monitor := connectivity.NewMonitor(a.client, a.queue, *interval, a.log,
		connectivity.WithProbeTimeout(a.cfg.RequestTimeout))

	go func() {
		for counts := range a.queue.WatchPending(ctx) {
			a.log.Info().
				Int("submissions", counts.Submissions).
				Int("quizzes", counts.Quizzes).
				Msg("Pending records")
		}
	}()

	monitor.Start(ctx)
	return nil
}

func runSync(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	_ = fs.Parse(args)

	before, err := pending(ctx, a)
	if err != nil {
		return err
	}

	monitor := connectivity.NewMonitor(a.client, a.queue, a.cfg.ProbeInterval, a.log,
		connectivity.WithProbeTimeout(a.cfg.RequestTimeout))
	online := monitor.Probe(ctx)

	after, err := pending(ctx, a)
	if err != nil {
		return err
	}

	report := syncReport{At: time.Now().UTC(), Online: online, Before: before, After: after}
	if err := a.queue.SaveUserData(ctx, lastSyncKey, report); err != nil {
		a.log.Warn().Err(err).Msg("Failed to record sync report")
	}

	if !online {
		fmt.Printf("API unreachable; %d submission(s) and %d quiz(zes) still queued\n",
			after.Submissions, after.Quizzes)
		return nil
	}
	fmt.Printf("Synced %d submission(s) and %d quiz(zes); %d record(s) left\n",
		before.Submissions-after.Submissions, before.Quizzes-after.Quizzes,
		after.Submissions+after.Quizzes)
	return nil
}

func runList(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	_ = fs.Parse(args)

	subs, err := a.queue.GetAllOfflineSubmissions(ctx)
	if err != nil {
		return err
	}
	quizzes, err := a.queue.GetAllOfflineQuizzes(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tID\tQUEUED AT\tDETAIL")
	for _, s := range subs {
		fmt.Fprintf(w, "submission\t%s\t%s\tquiz %s, %d answer(s), %s spent\n",
			s.ID, stamp(s.Timestamp), s.QuizID, len(s.Answers), timer.FormatTime(s.TimeSpent))
	}
	for _, q := range quizzes {
		fmt.Fprintf(w, "quiz\t%s\t%s\t%q, %d question(s)\n",
			q.ID, stamp(q.Timestamp), q.Name, len(q.Questions))
	}
	if err := w.Flush(); err != nil {
		return err
	}

	var last syncReport
	switch err := a.queue.GetUserData(ctx, lastSyncKey, &last); {
	case errors.Is(err, offline.ErrNotFound):
		fmt.Println("\nNo sync recorded yet")
	case err != nil:
		return err
	default:
		state := "offline"
		if last.Online {
			state = "online"
		}
		fmt.Printf("\nLast sync: %s (%s)\n", last.At.Local().Format(time.RFC1123), state)
	}
	return nil
}

func runClear(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	_ = fs.Parse(args)

	size, err := a.queue.StorageSize(ctx)
	if err != nil {
		return err
	}
	if size == 0 {
		fmt.Println("Nothing to clear")
		return nil
	}

	if !*yes {
		fmt.Printf("Delete %d record(s), including unsynced work? [y/N] ", size)
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := a.queue.ClearAllData(ctx); err != nil {
		return err
	}
	fmt.Printf("Cleared %d record(s)\n", size)
	return nil
}

func pending(ctx context.Context, a *app) (offline.PendingCounts, error) {
	c, err := a.store.Count(ctx)
	if err != nil {
		return offline.PendingCounts{}, err
	}
	return offline.PendingCounts{Submissions: c.Submissions, Quizzes: c.Quizzes}, nil
}

func stamp(ms int64) string {
	return time.UnixMilli(ms).Local().Format("2006-01-02 15:04:05")
}
