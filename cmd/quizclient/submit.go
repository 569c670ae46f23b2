package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stemsi/quizsync/internal/apiclient"
	"github.com/stemsi/quizsync/internal/model"
)

func runSubmit(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	quizID := fs.String("quiz", "", "quiz ID (required)")
	answers := fs.String("answers", "", "comma-separated option indices, -1 for unanswered (required)")
	spent := fs.Int("time", 0, "seconds spent on the quiz")
	token := fs.String("token", a.cfg.APIToken, "bearer token of the quiz taker")
	_ = fs.Parse(args)

	if *quizID == "" || *answers == "" {
		fs.Usage()
		return errors.New("quiz and answers are required")
	}
	parsed, err := parseAnswers(*answers)
	if err != nil {
		return err
	}

	req := &model.SubmitQuizRequest{
		QuizID:      *quizID,
		Answers:     parsed,
		TimeSpent:   *spent,
		SubmittedAt: time.Now().UnixMilli(),
	}

	res, err := a.client.Submit(ctx, *token, req)
	if err == nil {
		fmt.Printf("Score: %d/%d (%.2f%%)\n", res.Score, res.Total, res.Percent)
		return nil
	}
	if !retryable(err) {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	id, err := a.queue.SaveOfflineSubmission(ctx, model.OfflineSubmission{
		QuizID:    req.QuizID,
		Answers:   req.Answers,
		TimeSpent: req.TimeSpent,
		AuthToken: *token,
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("API unreachable and could not queue submission: %w", err)
	}
	fmt.Printf("API unreachable; submission queued as %s\n", id)
	return nil
}

func runCreate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	file := fs.String("file", "", "path to a quiz JSON file (required)")
	_ = fs.Parse(args)

	if *file == "" {
		fs.Usage()
		return errors.New("file is required")
	}
	raw, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	var req model.CreateQuizRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return fmt.Errorf("parse %s: %w", *file, err)
	}

	err = a.client.CreateQuiz(ctx, &req)
	if err == nil {
		fmt.Printf("Quiz %q created\n", req.Name)
		return nil
	}
	if !retryable(err) {
		return err
	}

	id, err := a.queue.SaveOfflineQuiz(ctx, model.OfflineQuiz{
		Name:        req.Name,
		Description: req.Description,
		Questions:   req.Questions,
		Category:    req.Category,
		Difficulty:  req.Difficulty,
		TimeLimit:   req.TimeLimit,
	})
	if err != nil {
		return fmt.Errorf("API unreachable and could not queue quiz: %w", err)
	}
	fmt.Printf("API unreachable; quiz queued as %s\n", id)
	return nil
}

// retryable reports whether a failed call may succeed later unchanged:
// transport failures, rate limiting and server errors. Rejected input is not.
func retryable(err error) bool {
	if errors.Is(err, apiclient.ErrUnavailable) {
		return true
	}
	var se *apiclient.StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
}

func parseAnswers(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("answer %d: %w", i+1, err)
		}
		if n < model.Unanswered {
			return nil, fmt.Errorf("answer %d: %d is not an option index", i+1, n)
		}
		out[i] = n
	}
	return out, nil
}
