// Package apiclient talks to the quiz API on behalf of the client agent.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stemsi/quizsync/internal/model"
	"github.com/stemsi/quizsync/internal/response"
)

// ErrUnavailable wraps transport failures: the request never got an HTTP reply.
var ErrUnavailable = errors.New("quiz API unavailable")

// StatusError is returned for any non-2xx reply.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Code       response.ErrCode
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: status %d (%s)", e.Method, e.Path, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// Client is a thin JSON client for the quiz API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// New creates a Client. token is the default bearer for calls that do not
// carry their own; it may be empty.
func New(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// Ping checks that the API is reachable and healthy.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

// SubmitQuiz posts a submission body exactly as given, authenticated with authToken.
func (c *Client) SubmitQuiz(ctx context.Context, authToken string, payload json.RawMessage) error {
	return c.do(ctx, http.MethodPost, "/api/v1/quiz-submissions", authToken, payload, nil)
}

// Submit grades a submission online and returns the result.
func (c *Client) Submit(ctx context.Context, authToken string, req *model.SubmitQuizRequest) (*model.SubmissionResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var out model.SubmissionResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/quiz-submissions", authToken, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateQuiz creates a quiz with the client's default token.
func (c *Client) CreateQuiz(ctx context.Context, req *model.CreateQuizRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/api/v1/quizzes", c.token, body, nil)
}

// GetQuiz fetches the answer-free view of a quiz.
func (c *Client) GetQuiz(ctx context.Context, id string) (*model.QuizPayload, error) {
	var out model.QuizPayload
	if err := c.do(ctx, http.MethodGet, "/api/v1/quizzes/"+id, c.token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// envelope mirrors response.Response with a typed data field.
type envelope struct {
	Data  json.RawMessage     `json:"data"`
	Error *response.ErrorBody `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path, token string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
		if decodeErr == nil && env.Error != nil {
			se.Code = env.Error.Code
		}
		return se
	}

	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, decodeErr)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}
