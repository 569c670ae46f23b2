package model

import "encoding/json"

// OfflineSubmission is a quiz submission waiting to be replayed against the API.
type OfflineSubmission struct {
	ID        string `json:"id"`
	QuizID    string `json:"quiz_id"`
	Answers   []int  `json:"answers"`
	Score     int    `json:"score"`
	TimeSpent int    `json:"time_spent"`
	Timestamp int64  `json:"timestamp"` // epoch ms
	// AuthToken is captured at creation; the session may be gone by replay time.
	AuthToken string `json:"auth_token"`
	// Payload is the exact request body sent on replay.
	Payload json.RawMessage `json:"payload"`
}

// OfflineQuiz is a quiz definition created while the API was unreachable.
type OfflineQuiz struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
	Category    string     `json:"category"`
	Difficulty  string     `json:"difficulty"`
	TimeLimit   int        `json:"time_limit"`
	Timestamp   int64      `json:"timestamp"`
}

// CreateRequest converts the offline record into the create-quiz body.
func (q *OfflineQuiz) CreateRequest() *CreateQuizRequest {
	return &CreateQuizRequest{
		Name:        q.Name,
		Description: q.Description,
		Category:    q.Category,
		Difficulty:  q.Difficulty,
		TimeLimit:   q.TimeLimit,
		Questions:   q.Questions,
	}
}
