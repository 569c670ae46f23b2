package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/stemsi/quizsync/internal/timer"
	"golang.org/x/term"
)

func runTimer(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("timer", flag.ExitOnError)
	minutes := fs.Int("minutes", 10, "quiz time limit in minutes")
	warn := fs.Int("warn", timer.DefaultWarningThreshold, "seconds remaining that trigger the warning")
	_ = fs.Parse(args)

	if *minutes <= 0 {
		return fmt.Errorf("minutes must be positive, got %d", *minutes)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fd := int(os.Stdin.Fd())
	newline := "\n"
	if term.IsTerminal(fd) {
		prev, err := term.MakeRaw(fd)
		if err != nil {
			return err
		}
		defer func() { _ = term.Restore(fd, prev) }()
		newline = "\r\n"
	}

	width := 30
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 50 {
		width = w - 30
	}

	t := timer.New(timer.WithLogger(a.log))
	t.Start(*minutes * 60)
	defer t.Stop()

	fmt.Print("p pause, r resume, + add a minute, - remove a minute, q quit" + newline)

	go readKeys(os.Stdin, func(key byte) bool {
		switch key {
		case 'p':
			t.Pause()
		case 'r':
			t.Resume()
		case '+':
			t.AddTime(60)
		case '-':
			t.AddTime(-60)
		case 'q', 3: // 3 is Ctrl-C in raw mode
			cancel()
			return false
		}
		return true
	})

	for s := range t.Watch(ctx) {
		fmt.Print("\r" + render(t, s, *warn, width))
		if s.IsExpired {
			fmt.Print(newline + "Time is up" + newline)
			return nil
		}
	}
	fmt.Print(newline)
	return nil
}

func render(t *timer.Timer, s timer.State, warn, width int) string {
	filled := min(int(t.ProgressPercentage()/100*float64(width)), width)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)

	status := "running"
	switch {
	case s.IsPaused:
		status = "paused "
	case t.TimeWarning(warn):
		status = "HURRY  "
	}
	return fmt.Sprintf("%s [%s] %s", timer.FormatTime(s.TimeRemaining), bar, status)
}

// readKeys feeds single bytes to handle until it returns false or input ends.
func readKeys(r io.Reader, handle func(byte) bool) {
	br := bufio.NewReader(r)
	for {
		b, err := br.ReadByte()
		if err != nil {
			return
		}
		if b == '\n' || b == '\r' {
			continue
		}
		if !handle(b) {
			return
		}
	}
}
