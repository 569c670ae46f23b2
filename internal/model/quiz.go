package model

import (
	"time"

	"github.com/google/uuid"
)

// Difficulty enumerates quiz difficulty levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// DefaultCategory is used when a quiz is created without a category.
const DefaultCategory = "General"

// Question is a single multiple-choice item.
type Question struct {
	Text         string   `json:"question" binding:"required,min=1,max=2000"`
	Options      []string `json:"options" binding:"required,min=2,max=10,dive,required"`
	CorrectIndex int      `json:"correct_answer" binding:"min=0"`
}

// Quiz represents a stored quiz definition.
type Quiz struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Difficulty  Difficulty `json:"difficulty"`
	TimeLimit   int        `json:"time_limit"` // minutes, 0 = untimed
	Questions   []Question `json:"questions"`
	IsPublic    bool       `json:"is_public"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// PublicQuestion is a question as served to a quiz taker.
type PublicQuestion struct {
	Text    string   `json:"question"`
	Options []string `json:"options"`
}

// QuizPayload is the cached, answer-free view of a quiz.
type QuizPayload struct {
	ID          uuid.UUID        `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Category    string           `json:"category"`
	Difficulty  Difficulty       `json:"difficulty"`
	TimeLimit   int              `json:"time_limit"`
	IsPublic    bool             `json:"is_public"`
	Questions   []PublicQuestion `json:"questions"`
}

// Payload strips the answer key from the quiz.
func (q *Quiz) Payload() *QuizPayload {
	questions := make([]PublicQuestion, len(q.Questions))
	for i, item := range q.Questions {
		questions[i] = PublicQuestion{Text: item.Text, Options: item.Options}
	}
	return &QuizPayload{
		ID:          q.ID,
		Name:        q.Name,
		Description: q.Description,
		Category:    q.Category,
		Difficulty:  q.Difficulty,
		TimeLimit:   q.TimeLimit,
		IsPublic:    q.IsPublic,
		Questions:   questions,
	}
}

// AnswerKey returns the correct option index of every question, in order.
func (q *Quiz) AnswerKey() []int {
	key := make([]int, len(q.Questions))
	for i, item := range q.Questions {
		key[i] = item.CorrectIndex
	}
	return key
}

// CreateQuizRequest is the payload for creating a quiz.
// A nil IsPublic means public.
type CreateQuizRequest struct {
	Name        string     `json:"name" binding:"required,min=1,max=200"`
	Description string     `json:"description" binding:"max=2000"`
	Category    string     `json:"category" binding:"max=50"`
	Difficulty  string     `json:"difficulty" binding:"omitempty,oneof=Easy Medium Hard"`
	TimeLimit   int        `json:"time_limit" binding:"min=0,max=600"`
	IsPublic    *bool      `json:"is_public,omitempty"`
	Questions   []Question `json:"questions" binding:"required,min=1,max=200,dive"`
}

// UpdateQuizRequest replaces every editable field of a quiz.
type UpdateQuizRequest = CreateQuizRequest

// QuizFilter narrows a listing of public quizzes. Query matches name or
// description, case-insensitively.
type QuizFilter struct {
	Category string
	Query    string
}

// QuizSummary is a quiz as shown in listings.
type QuizSummary struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Category      string     `json:"category"`
	Difficulty    Difficulty `json:"difficulty"`
	TimeLimit     int        `json:"time_limit"`
	QuestionCount int        `json:"question_count"`
	CreatedAt     time.Time  `json:"created_at"`
}
