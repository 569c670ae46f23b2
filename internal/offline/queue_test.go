package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizsync/internal/model"
	"github.com/stretchr/testify/require"
)

// fakeRemote accepts or rejects records based on the replayed body.
type fakeRemote struct {
	mu           sync.Mutex
	acceptSubmit func(payload json.RawMessage) bool
	acceptQuiz   func(req *model.CreateQuizRequest) bool
	submitted    []json.RawMessage
	tokens       []string
	created      []string
}

func (f *fakeRemote) SubmitQuiz(_ context.Context, token string, payload json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acceptSubmit != nil && !f.acceptSubmit(payload) {
		return errors.New("503 service unavailable")
	}
	f.submitted = append(f.submitted, payload)
	f.tokens = append(f.tokens, token)
	return nil
}

func (f *fakeRemote) CreateQuiz(_ context.Context, req *model.CreateQuizRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acceptQuiz != nil && !f.acceptQuiz(req) {
		return errors.New("connection refused")
	}
	f.created = append(f.created, req.Name)
	return nil
}

func (f *fakeRemote) submitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "offline.db")
	store, err := Open(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func newTestQueue(t *testing.T, remote Remote) *Queue {
	t.Helper()
	store, _ := openTestStore(t)
	return NewQueue(context.Background(), store, remote, zerolog.Nop())
}

func submission(i int) model.OfflineSubmission {
	return model.OfflineSubmission{
		QuizID:    fmt.Sprintf("quiz-%d", i),
		Answers:   []int{i % 4, model.Unanswered, 2},
		Score:     i,
		TimeSpent: 30 + i,
		AuthToken: fmt.Sprintf("token-%d", i),
		Payload:   json.RawMessage(fmt.Sprintf(`{"index":%d}`, i)),
	}
}

func payloadIndex(t *testing.T, payload json.RawMessage) int {
	var body struct {
		Index int `json:"index"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	return body.Index
}

func TestSaveOfflineSubmissionKeepsEveryRecordInOrder(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, &fakeRemote{})

	const n = 12
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := q.SaveOfflineSubmission(ctx, submission(i))
		require.NoError(t, err)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}

	got, err := q.GetAllOfflineSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, got, n)

	for i, rec := range got {
		want := submission(i)
		require.Equal(t, ids[i], rec.ID)
		require.Equal(t, want.QuizID, rec.QuizID)
		require.Equal(t, want.Answers, rec.Answers)
		require.Equal(t, want.Score, rec.Score)
		require.Equal(t, want.TimeSpent, rec.TimeSpent)
		require.Equal(t, want.AuthToken, rec.AuthToken)
		require.JSONEq(t, string(want.Payload), string(rec.Payload))
		require.NotZero(t, rec.Timestamp)
	}
}

func TestSaveStampsCreationTime(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	fc := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	q := NewQueue(ctx, store, &fakeRemote{}, zerolog.Nop(), WithQueueClock(fc))

	sub := submission(1)
	sub.Timestamp = 42
	sub.ID = "caller-supplied"
	id, err := q.SaveOfflineSubmission(ctx, sub)
	require.NoError(t, err)
	require.NotEqual(t, "caller-supplied", id)

	got, err := q.GetAllOfflineSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, fc.Now().UnixMilli(), got[0].Timestamp)
}

func TestSaveUserDataStampsClockTime(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	fc := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	q := NewQueue(ctx, store, &fakeRemote{}, zerolog.Nop(), WithQueueClock(fc))

	require.NoError(t, q.SaveUserData(ctx, "last_sync", map[string]bool{"online": true}))
	fc.Advance(time.Hour)
	require.NoError(t, q.SaveUserData(ctx, "last_sync", map[string]bool{"online": false}))

	var updatedAt int64
	require.NoError(t, store.db.QueryRowContext(ctx,
		`SELECT updated_at FROM user_data WHERE key = ?`, "last_sync").Scan(&updatedAt))
	require.Equal(t, fc.Now().UnixMilli(), updatedAt)
}

func TestRecordIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, &fakeRemote{})

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		id, err := q.SaveOfflineSubmission(ctx, submission(i))
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestIDCollisionOverwritesSingleRecord(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	q := NewQueue(ctx, store, &fakeRemote{}, zerolog.Nop(),
		WithIDGenerator(func() (string, error) { return "same-id", nil }))

	_, err := q.SaveOfflineSubmission(ctx, submission(1))
	require.NoError(t, err)
	_, err = q.SaveOfflineSubmission(ctx, submission(2))
	require.NoError(t, err)

	got, err := q.GetAllOfflineSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "quiz-2", got[0].QuizID)
}

func TestSyncRemovesOnlyAcceptedRecords(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	remote.acceptSubmit = func(p json.RawMessage) bool { return payloadIndex(t, p)%2 == 0 }
	q := newTestQueue(t, remote)

	const n = 9
	for i := 0; i < n; i++ {
		_, err := q.SaveOfflineSubmission(ctx, submission(i))
		require.NoError(t, err)
	}
	before, err := q.GetAllOfflineSubmissions(ctx)
	require.NoError(t, err)

	q.OnConnectivityChange(ctx, true)

	after, err := q.GetAllOfflineSubmissions(ctx)
	require.NoError(t, err)

	var wantLeft []model.OfflineSubmission
	for i, rec := range before {
		if i%2 == 1 {
			wantLeft = append(wantLeft, rec)
		}
	}
	require.Equal(t, wantLeft, after)

	// Accepted records were replayed in insertion order with their own token.
	require.Len(t, remote.submitted, 5)
	for k, p := range remote.submitted {
		require.Equal(t, 2*k, payloadIndex(t, p))
		require.Equal(t, fmt.Sprintf("token-%d", 2*k), remote.tokens[k])
	}
}

func TestSyncResultAndNoErrorOnTotalFailure(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{
		acceptSubmit: func(json.RawMessage) bool { return false },
		acceptQuiz:   func(*model.CreateQuizRequest) bool { return false },
	}
	q := newTestQueue(t, remote)
	q.OnConnectivityChange(ctx, true)

	_, err := q.SaveOfflineSubmission(ctx, submission(1))
	require.NoError(t, err)
	_, err = q.SaveOfflineQuiz(ctx, model.OfflineQuiz{Name: "Capitals"})
	require.NoError(t, err)

	res := q.SyncOfflineData(ctx)
	require.Equal(t, SyncResult{Failed: 2}, res)

	size, err := q.StorageSize(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, size)
}

func TestSyncSkippedWhileOffline(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	q := newTestQueue(t, remote)
	require.True(t, q.IsOffline())

	_, err := q.SaveOfflineSubmission(ctx, submission(1))
	require.NoError(t, err)

	res := q.SyncOfflineData(ctx)
	require.True(t, res.Skipped)
	require.Zero(t, remote.submitCount())
}

func TestRemoveIsIdempotent(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, &fakeRemote{})

	keep, err := q.SaveOfflineSubmission(ctx, submission(1))
	require.NoError(t, err)
	drop, err := q.SaveOfflineSubmission(ctx, submission(2))
	require.NoError(t, err)

	require.NoError(t, q.RemoveOfflineSubmission(ctx, drop))
	once, err := q.GetAllOfflineSubmissions(ctx)
	require.NoError(t, err)

	require.NoError(t, q.RemoveOfflineSubmission(ctx, drop))
	require.NoError(t, q.RemoveOfflineSubmission(ctx, "never-existed"))
	twice, err := q.GetAllOfflineSubmissions(ctx)
	require.NoError(t, err)

	require.Equal(t, once, twice)
	require.Len(t, twice, 1)
	require.Equal(t, keep, twice[0].ID)

	require.NoError(t, q.RemoveOfflineQuiz(ctx, "never-existed"))
}

func TestOfflineQuizLifecycle(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{acceptQuiz: func(r *model.CreateQuizRequest) bool { return r.Name != "Broken" }}
	q := newTestQueue(t, remote)

	quiz := model.OfflineQuiz{
		Name:        "Planets",
		Description: "Solar system basics",
		Category:    "Science",
		Difficulty:  "Easy",
		TimeLimit:   5,
		Questions: []model.Question{
			{Text: "Largest planet?", Options: []string{"Mars", "Jupiter"}, CorrectIndex: 1},
		},
	}
	id, err := q.SaveOfflineQuiz(ctx, quiz)
	require.NoError(t, err)
	_, err = q.SaveOfflineQuiz(ctx, model.OfflineQuiz{Name: "Broken"})
	require.NoError(t, err)

	got, err := q.GetOfflineQuiz(ctx, id)
	require.NoError(t, err)
	require.Equal(t, quiz.Name, got.Name)
	require.Equal(t, quiz.Questions, got.Questions)
	require.Equal(t, 5, got.TimeLimit)

	_, err = q.GetOfflineQuiz(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	q.OnConnectivityChange(ctx, true)

	left, err := q.GetAllOfflineQuizzes(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, "Broken", left[0].Name)
	require.Equal(t, []string{"Planets"}, remote.created)
}

func TestConnectivityTransitionsTriggerOneSync(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	q := newTestQueue(t, remote)

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	flags := q.WatchOffline(watchCtx)
	require.True(t, <-flags)

	_, err := q.SaveOfflineSubmission(ctx, submission(0))
	require.NoError(t, err)

	q.OnConnectivityChange(ctx, true)
	require.False(t, q.IsOffline())
	require.False(t, <-flags)
	require.Equal(t, 1, remote.submitCount())

	// Still online: no new sync even though a record is waiting.
	_, err = q.SaveOfflineSubmission(ctx, submission(1))
	require.NoError(t, err)
	q.OnConnectivityChange(ctx, true)
	require.Equal(t, 1, remote.submitCount())

	q.OnConnectivityChange(ctx, false)
	require.True(t, q.IsOffline())
	require.True(t, <-flags)
	q.OnConnectivityChange(ctx, false)
	require.Equal(t, 1, remote.submitCount())

	q.OnConnectivityChange(ctx, true)
	require.Equal(t, 2, remote.submitCount())
}

func TestWatchPendingFollowsMutations(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, &fakeRemote{})

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pending := q.WatchPending(watchCtx)
	require.Equal(t, PendingCounts{}, <-pending)

	_, err := q.SaveOfflineSubmission(ctx, submission(1))
	require.NoError(t, err)
	require.Equal(t, PendingCounts{Submissions: 1}, <-pending)

	_, err = q.SaveOfflineQuiz(ctx, model.OfflineQuiz{Name: "Rivers"})
	require.NoError(t, err)
	require.Equal(t, PendingCounts{Submissions: 1, Quizzes: 1}, <-pending)

	q.OnConnectivityChange(ctx, true)
	require.Equal(t, PendingCounts{}, <-pending)
}

func TestUserDataAndClear(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t, &fakeRemote{})

	type prefs struct {
		Language string `json:"language"`
		Sound    bool   `json:"sound"`
	}
	require.NoError(t, q.SaveUserData(ctx, "prefs", prefs{Language: "en", Sound: true}))
	require.NoError(t, q.SaveUserData(ctx, "prefs", prefs{Language: "id"}))

	var got prefs
	require.NoError(t, q.GetUserData(ctx, "prefs", &got))
	require.Equal(t, prefs{Language: "id"}, got)

	require.ErrorIs(t, q.GetUserData(ctx, "missing", &got), ErrNotFound)

	_, err := q.SaveOfflineSubmission(ctx, submission(1))
	require.NoError(t, err)
	size, err := q.StorageSize(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, size)

	require.NoError(t, q.ClearAllData(ctx))
	size, err = q.StorageSize(ctx)
	require.NoError(t, err)
	require.Zero(t, size)
}

func TestRecordsSurviveReopen(t *testing.T) {
	ctx := context.Background()
	store, path := openTestStore(t)
	q := NewQueue(ctx, store, &fakeRemote{}, zerolog.Nop())

	id, err := q.SaveOfflineSubmission(ctx, submission(3))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(ctx, path, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	subs, err := reopened.ListSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, id, subs[0].ID)
}

func TestWriteFailureIsStorageUnavailable(t *testing.T) {
	ctx := context.Background()
	store, _ := openTestStore(t)
	q := NewQueue(ctx, store, &fakeRemote{}, zerolog.Nop())
	require.NoError(t, store.Close())

	_, err := q.SaveOfflineSubmission(ctx, submission(1))
	require.ErrorIs(t, err, ErrStorageUnavailable)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "put submission", se.Op)

	_, err = q.SaveOfflineQuiz(ctx, model.OfflineQuiz{Name: "x"})
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestOpenFailsOnUnusablePath(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(context.Background(), filepath.Join(dir, "missing", "sub", "offline.db"), zerolog.Nop())
	require.ErrorIs(t, err, ErrStorageUnavailable)
}
