// Package offline keeps quiz submissions and quiz definitions that could not
// reach the API in a durable local store, and replays them once connectivity
// returns. Delivery is at-least-once: a record is removed only after the API
// accepted it, so a reply lost after acceptance means a later duplicate.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizsync/internal/model"
	"github.com/stemsi/quizsync/internal/notify"
)

// Remote is the API the queue replays records against. Any returned error
// counts as a failed attempt; nil means the API accepted the record.
type Remote interface {
	SubmitQuiz(ctx context.Context, authToken string, payload json.RawMessage) error
	CreateQuiz(ctx context.Context, req *model.CreateQuizRequest) error
}

// PendingCounts is the number of records still waiting for sync.
type PendingCounts struct {
	Submissions int `json:"submissions"`
	Quizzes     int `json:"quizzes"`
}

// SyncResult summarises one SyncOfflineData pass.
type SyncResult struct {
	Skipped           bool `json:"skipped"`
	SubmissionsSynced int  `json:"submissions_synced"`
	QuizzesSynced     int  `json:"quizzes_synced"`
	Failed            int  `json:"failed"`
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueClock sets the clock used for record timestamps.
func WithQueueClock(c clockwork.Clock) QueueOption {
	return func(q *Queue) { q.clock = c }
}

// WithIDGenerator replaces the record id generator.
func WithIDGenerator(fn func() (string, error)) QueueOption {
	return func(q *Queue) { q.newID = fn }
}

// Queue is the offline queue. It starts in the offline state until the first
// connectivity report arrives.
type Queue struct {
	store  *Store
	remote Remote
	log    zerolog.Logger
	clock  clockwork.Clock
	newID  func() (string, error)

	connMu sync.Mutex
	syncMu sync.Mutex

	offline *notify.Broadcaster[bool]
	pending *notify.Broadcaster[PendingCounts]
}

// NewQueue wires a queue over an open store.
func NewQueue(ctx context.Context, store *Store, remote Remote, log zerolog.Logger, opts ...QueueOption) *Queue {
	q := &Queue{
		store:   store,
		remote:  remote,
		log:     log.With().Str("component", "offline_queue").Logger(),
		clock:   clockwork.NewRealClock(),
		newID:   newRecordID,
		offline: notify.New(true),
		pending: notify.New(PendingCounts{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.refreshPending(ctx)
	return q
}

// newRecordID returns a UUIDv7: a millisecond timestamp followed by random bits.
func newRecordID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ─── Submissions ─────────────────────────────────────────────────────

// SaveOfflineSubmission durably queues sub and returns its new id. Any id
// or timestamp on sub is replaced. Fails with ErrStorageUnavailable when the
// record could not be persisted.
func (q *Queue) SaveOfflineSubmission(ctx context.Context, sub model.OfflineSubmission) (string, error) {
	id, err := q.newID()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	sub.ID = id
	sub.Timestamp = q.clock.Now().UnixMilli()

	if err := q.store.PutSubmission(ctx, &sub); err != nil {
		return "", err
	}

	q.log.Info().Str("id", id).Str("quiz_id", sub.QuizID).Msg("Submission queued offline")
	q.refreshPending(ctx)
	return id, nil
}

// GetAllOfflineSubmissions returns queued submissions, oldest first.
func (q *Queue) GetAllOfflineSubmissions(ctx context.Context) ([]model.OfflineSubmission, error) {
	return q.store.ListSubmissions(ctx)
}

// RemoveOfflineSubmission deletes a queued submission. Idempotent.
func (q *Queue) RemoveOfflineSubmission(ctx context.Context, id string) error {
	if err := q.store.DeleteSubmission(ctx, id); err != nil {
		return err
	}
	q.refreshPending(ctx)
	return nil
}

// ─── Quizzes ─────────────────────────────────────────────────────────

// SaveOfflineQuiz durably queues a quiz definition and returns its new id.
func (q *Queue) SaveOfflineQuiz(ctx context.Context, quiz model.OfflineQuiz) (string, error) {
	id, err := q.newID()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	quiz.ID = id
	quiz.Timestamp = q.clock.Now().UnixMilli()

	if err := q.store.PutQuiz(ctx, &quiz); err != nil {
		return "", err
	}

	q.log.Info().Str("id", id).Str("name", quiz.Name).Msg("Quiz queued offline")
	q.refreshPending(ctx)
	return id, nil
}

// GetAllOfflineQuizzes returns queued quizzes, oldest first.
func (q *Queue) GetAllOfflineQuizzes(ctx context.Context) ([]model.OfflineQuiz, error) {
	return q.store.ListQuizzes(ctx)
}

// GetOfflineQuiz returns one queued quiz or ErrNotFound.
func (q *Queue) GetOfflineQuiz(ctx context.Context, id string) (*model.OfflineQuiz, error) {
	return q.store.GetQuiz(ctx, id)
}

// RemoveOfflineQuiz deletes a queued quiz. Idempotent.
func (q *Queue) RemoveOfflineQuiz(ctx context.Context, id string) error {
	if err := q.store.DeleteQuiz(ctx, id); err != nil {
		return err
	}
	q.refreshPending(ctx)
	return nil
}

// ─── User data ───────────────────────────────────────────────────────

// SaveUserData stores v as JSON under key, replacing any previous value.
func (q *Queue) SaveUserData(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode user data %q: %w", key, err)
	}
	return q.store.PutUserData(ctx, key, raw, q.clock.Now())
}

// GetUserData decodes the value under key into dst. Missing keys yield ErrNotFound.
func (q *Queue) GetUserData(ctx context.Context, key string, dst any) error {
	raw, err := q.store.GetUserData(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode user data %q: %w", key, err)
	}
	return nil
}

// ─── Maintenance ─────────────────────────────────────────────────────

// ClearAllData drops every queued record and all user data.
func (q *Queue) ClearAllData(ctx context.Context) error {
	if err := q.store.Clear(ctx); err != nil {
		return err
	}
	q.log.Warn().Msg("Offline data cleared")
	q.refreshPending(ctx)
	return nil
}

// StorageSize returns the number of records held across all collections.
func (q *Queue) StorageSize(ctx context.Context) (int, error) {
	c, err := q.store.Count(ctx)
	if err != nil {
		return 0, err
	}
	return c.Total(), nil
}

// WatchPending streams pending record counts after every change.
func (q *Queue) WatchPending(ctx context.Context) <-chan PendingCounts {
	return q.pending.Watch(ctx)
}

func (q *Queue) refreshPending(ctx context.Context) {
	c, err := q.store.Count(ctx)
	if err != nil {
		q.log.Error().Err(err).Msg("Failed to count pending records")
		return
	}
	q.pending.Publish(PendingCounts{Submissions: c.Submissions, Quizzes: c.Quizzes})
}
