package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quizsync/internal/model"
)

// AttemptRepository handles graded quiz attempts.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Insert stores an attempt. Re-inserting the same attempt ID is a no-op so a
// requeued job cannot create duplicates.
func (r *AttemptRepository) Insert(ctx context.Context, a *model.QuizAttempt) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO quiz_attempts (id, quiz_id, user_id, answers, score, total, time_spent, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		a.ID, a.QuizID, a.UserID, a.Answers, a.Score, a.Total, a.TimeSpent, a.SubmittedAt,
	)
	return err
}

// ListByUser returns a user's attempts, most recent first, with the total count.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.QuizAttempt, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM quiz_attempts WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, quiz_id, user_id, answers, score, total, time_spent, submitted_at
		 FROM quiz_attempts
		 WHERE user_id = $1
		 ORDER BY submitted_at DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	attempts := make([]model.QuizAttempt, 0, limit)
	for rows.Next() {
		var a model.QuizAttempt
		if err := rows.Scan(&a.ID, &a.QuizID, &a.UserID, &a.Answers, &a.Score,
			&a.Total, &a.TimeSpent, &a.SubmittedAt); err != nil {
			return nil, 0, err
		}
		attempts = append(attempts, a)
	}
	return attempts, total, rows.Err()
}
