package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizPayloadKey returns the cache key for a quiz as served to takers (no answers).
func (r *CacheKeyStruct) QuizPayloadKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:payload", quizID)
}

// QuizAnswerKey returns the cache key for a quiz's correct option indices.
func (r *CacheKeyStruct) QuizAnswerKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:key", quizID)
}

// UserAttemptCountKey returns the cache key counting a user's accepted submissions.
func (r *CacheKeyStruct) UserAttemptCountKey(userID string) string {
	return fmt.Sprintf("user:%s:attempt_count", userID)
}

var CacheKey = NewCacheKeyStruct()
