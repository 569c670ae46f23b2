package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/quizsync/internal/config"
	"github.com/stemsi/quizsync/internal/model"
	"github.com/stemsi/quizsync/internal/repository"
	"github.com/stemsi/quizsync/internal/response"
)

// ErrAnswerCountMismatch is returned when a submission does not answer every question.
var ErrAnswerCountMismatch = errors.New("answer count does not match question count")

// SubmissionService grades submissions and hands them to the attempt worker.
type SubmissionService struct {
	quizService *QuizService
	attemptRepo *repository.AttemptRepository
	rdb         *redis.Client
	now         func() time.Time
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(quizService *QuizService, attemptRepo *repository.AttemptRepository, rdb *redis.Client) *SubmissionService {
	return &SubmissionService{
		quizService: quizService,
		attemptRepo: attemptRepo,
		rdb:         rdb,
		now:         time.Now,
	}
}

// Submit grades req for userID and queues the attempt for persistence.
// The attempt is visible in ListByUser once the worker has stored it.
func (s *SubmissionService) Submit(ctx context.Context, userID string, req *model.SubmitQuizRequest) (*model.SubmissionResult, error) {
	quizID, err := uuid.Parse(req.QuizID)
	if err != nil {
		return nil, fmt.Errorf("parse quiz id: %w", err)
	}

	key, err := s.quizService.GetAnswerKey(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if len(req.Answers) != len(key) {
		return nil, ErrAnswerCountMismatch
	}

	attemptID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate attempt id: %w", err)
	}

	submittedAt := s.now().UTC()
	if req.SubmittedAt > 0 {
		submittedAt = time.UnixMilli(req.SubmittedAt).UTC()
	}

	attempt := model.QuizAttempt{
		ID:          attemptID,
		QuizID:      quizID,
		UserID:      userID,
		Answers:     req.Answers,
		Score:       Grade(key, req.Answers),
		Total:       len(key),
		TimeSpent:   req.TimeSpent,
		SubmittedAt: submittedAt,
	}

	job, err := json.Marshal(attempt)
	if err != nil {
		return nil, fmt.Errorf("marshal attempt: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, config.WorkerKey.PersistAttemptsQueue, job)
	pipe.Incr(ctx, config.CacheKey.UserAttemptCountKey(userID))
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue attempt: %w", err)
	}

	return &model.SubmissionResult{
		AttemptID: attempt.ID,
		Score:     attempt.Score,
		Total:     attempt.Total,
		Percent:   Percent(attempt.Score, attempt.Total),
	}, nil
}

// ListByUser returns one page of a user's stored attempts.
func (s *SubmissionService) ListByUser(ctx context.Context, userID string, page, perPage int) ([]model.QuizAttempt, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	attempts, total, err := s.attemptRepo.ListByUser(ctx, userID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return attempts, response.NewPagination(page, perPage, total), nil
}

// Grade counts answers equal to the key at the same position.
// Unanswered and out-of-range answers score nothing.
func Grade(key, answers []int) int {
	score := 0
	for i, want := range key {
		if i < len(answers) && answers[i] != model.Unanswered && answers[i] == want {
			score++
		}
	}
	return score
}

// Percent is score/total as a percentage rounded to two decimals.
func Percent(score, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(score)*10000/float64(total)) / 100
}
