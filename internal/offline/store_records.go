package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/stemsi/quizsync/internal/model"
)

// ─── Submissions ─────────────────────────────────────────────────────

// PutSubmission writes a submission. An id collision overwrites the earlier
// record in place, keeping its queue position.
func (s *Store) PutSubmission(ctx context.Context, sub *model.OfflineSubmission) error {
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	payload := sub.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO offline_submissions (id, quiz_id, answers, score, time_spent, timestamp, auth_token, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			quiz_id = excluded.quiz_id,
			answers = excluded.answers,
			score = excluded.score,
			time_spent = excluded.time_spent,
			timestamp = excluded.timestamp,
			auth_token = excluded.auth_token,
			payload = excluded.payload`,
		sub.ID, sub.QuizID, string(answers), sub.Score, sub.TimeSpent, sub.Timestamp, sub.AuthToken, string(payload),
	)
	if err != nil {
		return storageErr("put submission", err)
	}
	return nil
}

// ListSubmissions returns every queued submission in insertion order.
func (s *Store) ListSubmissions(ctx context.Context) ([]model.OfflineSubmission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, quiz_id, answers, score, time_spent, timestamp, auth_token, payload
		 FROM offline_submissions
		 ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, storageErr("list submissions", err)
	}
	defer rows.Close()

	subs := []model.OfflineSubmission{}
	for rows.Next() {
		var (
			sub     model.OfflineSubmission
			answers string
			payload string
		)
		if err := rows.Scan(&sub.ID, &sub.QuizID, &answers, &sub.Score, &sub.TimeSpent, &sub.Timestamp, &sub.AuthToken, &payload); err != nil {
			return nil, storageErr("scan submission", err)
		}
		if err := json.Unmarshal([]byte(answers), &sub.Answers); err != nil {
			return nil, storageErr("decode submission answers", err)
		}
		sub.Payload = json.RawMessage(payload)
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list submissions", err)
	}
	return subs, nil
}

// DeleteSubmission removes a submission. Missing ids are not an error.
func (s *Store) DeleteSubmission(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_submissions WHERE id = ?`, id); err != nil {
		return storageErr("delete submission", err)
	}
	return nil
}

// ─── Quizzes ─────────────────────────────────────────────────────────

const quizColumns = `id, name, description, questions, category, difficulty, time_limit, timestamp`

// PutQuiz writes a quiz definition, overwriting on id collision.
func (s *Store) PutQuiz(ctx context.Context, q *model.OfflineQuiz) error {
	questions, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO offline_quizzes (`+quizColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			questions = excluded.questions,
			category = excluded.category,
			difficulty = excluded.difficulty,
			time_limit = excluded.time_limit,
			timestamp = excluded.timestamp`,
		q.ID, q.Name, q.Description, string(questions), q.Category, q.Difficulty, q.TimeLimit, q.Timestamp,
	)
	if err != nil {
		return storageErr("put quiz", err)
	}
	return nil
}

// ListQuizzes returns every queued quiz in insertion order.
func (s *Store) ListQuizzes(ctx context.Context) ([]model.OfflineQuiz, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+quizColumns+` FROM offline_quizzes ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, storageErr("list quizzes", err)
	}
	defer rows.Close()

	quizzes := []model.OfflineQuiz{}
	for rows.Next() {
		q, err := scanQuiz(rows)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list quizzes", err)
	}
	return quizzes, nil
}

// GetQuiz returns one queued quiz or ErrNotFound.
func (s *Store) GetQuiz(ctx context.Context, id string) (*model.OfflineQuiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+quizColumns+` FROM offline_quizzes WHERE id = ?`, id,
	)
	q, err := scanQuiz(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return q, err
}

// DeleteQuiz removes a quiz. Missing ids are not an error.
func (s *Store) DeleteQuiz(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM offline_quizzes WHERE id = ?`, id); err != nil {
		return storageErr("delete quiz", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuiz(row rowScanner) (*model.OfflineQuiz, error) {
	var (
		q         model.OfflineQuiz
		questions string
	)
	err := row.Scan(&q.ID, &q.Name, &q.Description, &questions, &q.Category, &q.Difficulty, &q.TimeLimit, &q.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, storageErr("scan quiz", err)
	}
	if err := json.Unmarshal([]byte(questions), &q.Questions); err != nil {
		return nil, storageErr("decode quiz questions", err)
	}
	return &q, nil
}

// ─── User data ───────────────────────────────────────────────────────

// PutUserData upserts a JSON value under key, stamped with updatedAt.
func (s *Store) PutUserData(ctx context.Context, key string, data json.RawMessage, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_data (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		key, string(data), updatedAt.UnixMilli(),
	)
	if err != nil {
		return storageErr("put user data", err)
	}
	return nil
}

// GetUserData returns the JSON value stored under key or ErrNotFound.
func (s *Store) GetUserData(ctx context.Context, key string) (json.RawMessage, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM user_data WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get user data", err)
	}
	return json.RawMessage(data), nil
}
