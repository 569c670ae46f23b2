package offline

import (
	"context"
)

// IsOffline reports the last connectivity state the queue was told about.
func (q *Queue) IsOffline() bool {
	return q.offline.Current()
}

// WatchOffline streams the offline flag, starting with the current value.
func (q *Queue) WatchOffline(ctx context.Context) <-chan bool {
	return q.offline.Watch(ctx)
}

// OnConnectivityChange is the handler the reachability notifier calls.
// Going online runs exactly one sync; repeated reports of the same state do
// nothing. Failed records wait for the next online transition.
func (q *Queue) OnConnectivityChange(ctx context.Context, online bool) {
	q.connMu.Lock()
	wasOffline := q.offline.Current()
	if wasOffline != online {
		q.connMu.Unlock()
		return
	}
	q.offline.Publish(!online)
	q.connMu.Unlock()

	if !online {
		q.log.Warn().Msg("Connectivity lost, queueing locally")
		return
	}

	q.log.Info().Msg("Connectivity restored, syncing offline data")
	q.SyncOfflineData(ctx)
}

// SyncOfflineData replays queued submissions, then queued quizzes, oldest
// first. Each accepted record is removed at once; each failure is logged and
// the record kept. It never fails: problems are reported in the result and
// the log. Passes do not overlap.
func (q *Queue) SyncOfflineData(ctx context.Context) SyncResult {
	if q.IsOffline() {
		q.log.Debug().Msg("Sync skipped while offline")
		return SyncResult{Skipped: true}
	}

	q.syncMu.Lock()
	defer q.syncMu.Unlock()

	var res SyncResult
	q.syncSubmissions(ctx, &res)
	q.syncQuizzes(ctx, &res)
	q.refreshPending(context.WithoutCancel(ctx))

	q.log.Info().
		Int("submissions_synced", res.SubmissionsSynced).
		Int("quizzes_synced", res.QuizzesSynced).
		Int("failed", res.Failed).
		Msg("Offline sync finished")

	return res
}

func (q *Queue) syncSubmissions(ctx context.Context, res *SyncResult) {
	subs, err := q.store.ListSubmissions(ctx)
	if err != nil {
		q.log.Error().Err(err).Msg("Failed to load offline submissions")
		return
	}

	for i := range subs {
		sub := &subs[i]
		if err := q.remote.SubmitQuiz(ctx, sub.AuthToken, sub.Payload); err != nil {
			res.Failed++
			q.log.Warn().Err(err).Str("id", sub.ID).Msg("Submission sync failed, keeping record")
			continue
		}

		// The API already has it; finish the removal even if ctx is cancelled.
		if err := q.store.DeleteSubmission(context.WithoutCancel(ctx), sub.ID); err != nil {
			q.log.Error().Err(err).Str("id", sub.ID).Msg("Submission synced but not removed")
		}
		res.SubmissionsSynced++
		q.log.Info().Str("id", sub.ID).Msg("Offline submission synced")
	}
}

func (q *Queue) syncQuizzes(ctx context.Context, res *SyncResult) {
	quizzes, err := q.store.ListQuizzes(ctx)
	if err != nil {
		q.log.Error().Err(err).Msg("Failed to load offline quizzes")
		return
	}

	for i := range quizzes {
		quiz := &quizzes[i]
		if err := q.remote.CreateQuiz(ctx, quiz.CreateRequest()); err != nil {
			res.Failed++
			q.log.Warn().Err(err).Str("id", quiz.ID).Msg("Quiz sync failed, keeping record")
			continue
		}

		if err := q.store.DeleteQuiz(context.WithoutCancel(ctx), quiz.ID); err != nil {
			q.log.Error().Err(err).Str("id", quiz.ID).Msg("Quiz synced but not removed")
		}
		res.QuizzesSynced++
		q.log.Info().Str("id", quiz.ID).Msg("Offline quiz synced")
	}
}
