//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizsync/internal/apiclient"
	"github.com/stemsi/quizsync/internal/config"
	"github.com/stemsi/quizsync/internal/model"
	"github.com/stemsi/quizsync/internal/offline"
	"github.com/stemsi/quizsync/internal/service"
	"github.com/stretchr/testify/require"
)

const (
	defaultServerURL = "http://localhost:8080"
	e2eUser          = "e2e-user"
)

var (
	serverURL string
	dbURL     string
	token     string
)

func TestMain(m *testing.M) {
	_ = godotenv.Load("../../.env")

	cfg := config.Load()
	serverURL = os.Getenv("E2E_SERVER_URL")
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	dbURL = cfg.DatabaseURL

	if err := resetDatabase(); err != nil {
		fmt.Printf("Setup failed: %v\n", err)
		os.Exit(1)
	}

	var err error
	token, err = service.NewAuthService(cfg).GenerateToken(e2eUser)
	if err != nil {
		fmt.Printf("Token failed: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

func resetDatabase() error {
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer conn.Close(ctx)

	for _, table := range []string{"quiz_attempts", "quizzes"} {
		if _, err := conn.Exec(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("cleanup %s: %w", table, err)
		}
	}
	return nil
}

func TestQuizFlow(t *testing.T) {
	var quizID string

	t.Run("CreateQuiz", func(t *testing.T) {
		resp := call(t, http.MethodPost, "/api/v1/quizzes", token, map[string]any{
			"name":       "E2E Planets",
			"difficulty": "Easy",
			"time_limit": 5,
			"questions": []map[string]any{
				{"question": "Largest planet?", "options": []string{"Mars", "Jupiter"}, "correct_answer": 1},
				{"question": "Closest to the sun?", "options": []string{"Mercury", "Venus"}, "correct_answer": 0},
			},
		})
		require.Equal(t, http.StatusCreated, resp.status, resp.body)

		var data struct {
			Quiz model.QuizPayload `json:"quiz"`
		}
		resp.decode(t, &data)
		quizID = data.Quiz.ID.String()
		require.Equal(t, model.DefaultCategory, data.Quiz.Category)
	})

	t.Run("RejectAnswerOutsideOptions", func(t *testing.T) {
		resp := call(t, http.MethodPost, "/api/v1/quizzes", token, map[string]any{
			"name": "Broken",
			"questions": []map[string]any{
				{"question": "?", "options": []string{"a", "b"}, "correct_answer": 5},
			},
		})
		require.Equal(t, http.StatusBadRequest, resp.status, resp.body)
		require.Contains(t, resp.body, "VALIDATION_ERROR")
	})

	t.Run("GetQuizHidesAnswers", func(t *testing.T) {
		resp := call(t, http.MethodGet, "/api/v1/quizzes/"+quizID, "", nil)
		require.Equal(t, http.StatusOK, resp.status, resp.body)
		require.NotContains(t, resp.body, "correct_answer")
	})

	t.Run("SearchIgnoresCase", func(t *testing.T) {
		resp := call(t, http.MethodGet, "/api/v1/quizzes/search/e2e%20PLAN", "", nil)
		require.Equal(t, http.StatusOK, resp.status, resp.body)

		var data struct {
			Quizzes []model.QuizSummary `json:"quizzes"`
		}
		resp.decode(t, &data)
		require.Len(t, data.Quizzes, 1)
		require.Equal(t, quizID, data.Quizzes[0].ID.String())
	})

	t.Run("DeleteRequiresOwner", func(t *testing.T) {
		other, err := service.NewAuthService(config.Load()).GenerateToken("someone-else")
		require.NoError(t, err)

		resp := call(t, http.MethodDelete, "/api/v1/quizzes/"+quizID, other, nil)
		require.Equal(t, http.StatusForbidden, resp.status, resp.body)
	})

	t.Run("SubmitOnline", func(t *testing.T) {
		resp := call(t, http.MethodPost, "/api/v1/quiz-submissions", token, model.SubmitQuizRequest{
			QuizID:    quizID,
			Answers:   []int{1, model.Unanswered},
			TimeSpent: 42,
		})
		require.Equal(t, http.StatusAccepted, resp.status, resp.body)

		var result model.SubmissionResult
		resp.decode(t, &result)
		require.Equal(t, 1, result.Score)
		require.Equal(t, 2, result.Total)
	})

	t.Run("ReplayOfflineQueue", func(t *testing.T) {
		ctx := context.Background()
		store, err := offline.Open(ctx, filepath.Join(t.TempDir(), "offline.db"), zerolog.Nop())
		require.NoError(t, err)
		defer store.Close()

		client := apiclient.New(serverURL, token, 5*time.Second)
		q := offline.NewQueue(ctx, store, client, zerolog.Nop())

		payload, err := json.Marshal(model.SubmitQuizRequest{
			QuizID:      quizID,
			Answers:     []int{1, 0},
			TimeSpent:   90,
			SubmittedAt: time.Now().Add(-time.Hour).UnixMilli(),
		})
		require.NoError(t, err)

		_, err = q.SaveOfflineSubmission(ctx, model.OfflineSubmission{
			QuizID: quizID, Answers: []int{1, 0}, TimeSpent: 90, AuthToken: token, Payload: payload,
		})
		require.NoError(t, err)

		q.OnConnectivityChange(ctx, true)

		subs, err := q.GetAllOfflineSubmissions(ctx)
		require.NoError(t, err)
		require.Empty(t, subs)
	})

	t.Run("AttemptsPersisted", func(t *testing.T) {
		require.Eventually(t, func() bool {
			resp := call(t, http.MethodGet, "/api/v1/me/attempts", token, nil)
			if resp.status != http.StatusOK {
				return false
			}
			var data struct {
				Attempts []model.QuizAttempt `json:"attempts"`
			}
			resp.decode(t, &data)
			return len(data.Attempts) == 2
		}, 10*time.Second, 200*time.Millisecond)

		ctx := context.Background()
		conn, err := pgx.Connect(ctx, dbURL)
		require.NoError(t, err)
		defer conn.Close(ctx)

		var best int
		require.NoError(t, conn.QueryRow(ctx,
			`SELECT MAX(score) FROM quiz_attempts WHERE user_id = $1`, e2eUser).Scan(&best))
		require.Equal(t, 2, best)
	})
}

type result struct {
	status int
	body   string
}

func (r result) decode(t *testing.T, dst any) {
	t.Helper()
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.body), &env))
	require.NoError(t, json.Unmarshal(env.Data, dst))
}

func call(t *testing.T, method, path, bearer string, body any) result {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, serverURL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return result{status: resp.StatusCode, body: string(raw)}
}
