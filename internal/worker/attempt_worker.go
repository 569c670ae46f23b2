package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizsync/internal/config"
	"github.com/stemsi/quizsync/internal/model"
)

// AttemptStore persists graded attempts.
type AttemptStore interface {
	Insert(ctx context.Context, a *model.QuizAttempt) error
}

// AttemptWorker consumes persist_attempts_queue and inserts attempts into PostgreSQL.
type AttemptWorker struct {
	store      AttemptStore
	rdb        *redis.Client
	log        zerolog.Logger
	queue      string
	retryDelay time.Duration
}

// NewAttemptWorker creates a new AttemptWorker.
func NewAttemptWorker(store AttemptStore, rdb *redis.Client, log zerolog.Logger) *AttemptWorker {
	return &AttemptWorker{
		store:      store,
		rdb:        rdb,
		log:        log.With().Str("component", "attempt_worker").Logger(),
		queue:      config.WorkerKey.PersistAttemptsQueue,
		retryDelay: 5 * time.Second,
	}
}

// Start runs the worker loop until ctx is done, then drains what is left.
// Call in a goroutine.
func (w *AttemptWorker) Start(ctx context.Context) {
	w.log.Info().Str("queue", w.queue).Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			w.drain(context.Background())
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AttemptWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, time.Second, w.queue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			w.sleep(ctx)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	attempt, ok := w.decode(result[1])
	if !ok {
		return
	}

	if err := w.store.Insert(ctx, attempt); err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", attempt.ID.String()).
			Str("user_id", attempt.UserID).
			Dur("retry_in", w.retryDelay).
			Msg("Persist error, requeueing")
		w.requeue(context.WithoutCancel(ctx), result[1])
		w.sleep(ctx)
	}
}

// drain persists every queued attempt before shutdown. It stops at the first
// failure and leaves that job queued for the next run.
func (w *AttemptWorker) drain(ctx context.Context) {
	drained := 0
	for {
		raw, err := w.rdb.LPop(ctx, w.queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				w.log.Error().Err(err).Msg("Drain pop error")
			}
			break
		}

		attempt, ok := w.decode(raw)
		if !ok {
			continue
		}
		if err := w.store.Insert(ctx, attempt); err != nil {
			w.log.Error().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Drain persist error")
			w.requeue(ctx, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining attempts")
	}
}

// decode drops malformed jobs; they can never succeed.
func (w *AttemptWorker) decode(raw string) (*model.QuizAttempt, bool) {
	var attempt model.QuizAttempt
	if err := json.Unmarshal([]byte(raw), &attempt); err != nil {
		w.log.Error().Err(err).Str("job", raw).Msg("Dropping malformed job")
		return nil, false
	}
	return &attempt, true
}

func (w *AttemptWorker) requeue(ctx context.Context, raw string) {
	if err := w.rdb.LPush(ctx, w.queue, raw).Err(); err != nil {
		w.log.Error().Err(err).Msg("Requeue failed, attempt lost")
	}
}

func (w *AttemptWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.retryDelay):
	}
}
