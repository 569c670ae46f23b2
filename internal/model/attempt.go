package model

import (
	"time"

	"github.com/google/uuid"
)

// Unanswered marks a question the taker skipped.
const Unanswered = -1

// QuizAttempt is one graded run-through of a quiz by a user.
type QuizAttempt struct {
	ID          uuid.UUID `json:"id"`
	QuizID      uuid.UUID `json:"quiz_id"`
	UserID      string    `json:"user_id"`
	Answers     []int     `json:"answers"`
	Score       int       `json:"score"`
	Total       int       `json:"total"`
	TimeSpent   int       `json:"time_spent"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// SubmitQuizRequest is the body of POST /api/v1/quiz-submissions.
// The offline queue stores exactly this body and replays it untouched.
type SubmitQuizRequest struct {
	QuizID    string `json:"quiz_id" binding:"required,uuid"`
	Answers   []int  `json:"answers" binding:"required,dive,min=-1"`
	TimeSpent int    `json:"time_spent" binding:"min=0"`
	// SubmittedAt is the client-side completion time (epoch ms). Replayed
	// submissions keep their original time.
	SubmittedAt int64 `json:"submitted_at" binding:"min=0"`
}

// SubmissionResult is returned once a submission has been graded and queued.
type SubmissionResult struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	Percent   float64   `json:"percent"`
}
