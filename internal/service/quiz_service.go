package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizsync/internal/config"
	"github.com/stemsi/quizsync/internal/model"
	"github.com/stemsi/quizsync/internal/repository"
	"github.com/stemsi/quizsync/internal/response"
)

var (
	// ErrQuizNotFound is returned when a quiz does not exist in cache or database.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrQuizForbidden is returned when a caller edits a quiz they did not create.
	ErrQuizForbidden = errors.New("quiz belongs to another user")
)

// QuizStore is the durable quiz storage behind the cache.
// *repository.QuizRepository implements it.
type QuizStore interface {
	Create(ctx context.Context, q *model.Quiz) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error)
	Update(ctx context.Context, q *model.Quiz) error
	Delete(ctx context.Context, id uuid.UUID, createdBy string) error
	ListPaginated(ctx context.Context, filter model.QuizFilter, limit, offset int) ([]model.QuizSummary, int, error)
}

// QuizService handles quiz authoring and the Redis read path.
type QuizService struct {
	cfg      *config.Config
	quizRepo QuizStore
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewQuizService creates a new QuizService.
func NewQuizService(cfg *config.Config, quizRepo QuizStore, rdb *redis.Client, log zerolog.Logger) *QuizService {
	return &QuizService{
		cfg:      cfg,
		quizRepo: quizRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "quiz_service").Logger(),
	}
}

// Create normalizes req into a quiz owned by userID, stores it and warms the cache.
func (s *QuizService) Create(ctx context.Context, userID string, req *model.CreateQuizRequest) (*model.Quiz, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate quiz id: %w", err)
	}

	quiz := &model.Quiz{ID: id, CreatedBy: userID}
	applyRequest(quiz, req)

	if err := s.quizRepo.Create(ctx, quiz); err != nil {
		return nil, fmt.Errorf("insert quiz: %w", err)
	}

	if err := s.cache(ctx, quiz); err != nil {
		// The database row is authoritative; the next read self-heals.
		s.log.Warn().Err(err).Str("quiz_id", quiz.ID.String()).Msg("Cache warm failed")
	}
	return quiz, nil
}

// Update replaces the editable fields of a quiz created by userID and drops
// its cached views. The next read repopulates them.
func (s *QuizService) Update(ctx context.Context, userID string, id uuid.UUID, req *model.UpdateQuizRequest) (*model.Quiz, error) {
	quiz, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	applyRequest(quiz, req)

	if err := s.quizRepo.Update(ctx, quiz); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrQuizNotFound
		}
		return nil, fmt.Errorf("update quiz: %w", err)
	}
	s.invalidate(ctx, id)
	return quiz, nil
}

// Delete removes a quiz created by userID, its attempts and its cached views.
func (s *QuizService) Delete(ctx context.Context, userID string, id uuid.UUID) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}

	if err := s.quizRepo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrQuizNotFound
		}
		return fmt.Errorf("delete quiz: %w", err)
	}
	s.invalidate(ctx, id)
	return nil
}

// List returns one page of public quiz summaries.
func (s *QuizService) List(ctx context.Context, category string, page, perPage int) ([]model.QuizSummary, *response.Pagination, error) {
	return s.list(ctx, model.QuizFilter{Category: category}, page, perPage)
}

// Search returns one page of public quizzes whose name or description
// contains query, ignoring case.
func (s *QuizService) Search(ctx context.Context, query string, page, perPage int) ([]model.QuizSummary, *response.Pagination, error) {
	return s.list(ctx, model.QuizFilter{Query: query}, page, perPage)
}

func (s *QuizService) list(ctx context.Context, filter model.QuizFilter, page, perPage int) ([]model.QuizSummary, *response.Pagination, error) {
	page, perPage = normalizePage(page, perPage)
	quizzes, total, err := s.quizRepo.ListPaginated(ctx, filter, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	return quizzes, response.NewPagination(page, perPage, total), nil
}

// GetPayload returns the answer-free view of a quiz, from Redis when cached.
func (s *QuizService) GetPayload(ctx context.Context, id uuid.UUID) (*model.QuizPayload, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.QuizPayloadKey(id.String())).Bytes()
	if err == nil {
		var payload model.QuizPayload
		if err := json.Unmarshal(raw, &payload); err == nil {
			return &payload, nil
		}
		s.log.Warn().Str("quiz_id", id.String()).Msg("Corrupt cached payload, reloading")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get payload: %w", err)
	}

	quiz, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return quiz.Payload(), nil
}

// GetAnswerKey returns the correct option index of every question.
func (s *QuizService) GetAnswerKey(ctx context.Context, id uuid.UUID) ([]int, error) {
	raw, err := s.rdb.Get(ctx, config.CacheKey.QuizAnswerKey(id.String())).Bytes()
	if err == nil {
		var key []int
		if err := json.Unmarshal(raw, &key); err == nil {
			return key, nil
		}
		s.log.Warn().Str("quiz_id", id.String()).Msg("Corrupt cached answer key, reloading")
	} else if !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get answer key: %w", err)
	}

	quiz, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return quiz.AnswerKey(), nil
}

// load reads a quiz from PostgreSQL and puts it back in the cache.
func (s *QuizService) load(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}

	if err := s.cache(ctx, quiz); err != nil {
		s.log.Warn().Err(err).Str("quiz_id", id.String()).Msg("Cache self-heal failed")
	}
	return quiz, nil
}

// owned loads a quiz from the database and checks that userID created it.
func (s *QuizService) owned(ctx context.Context, userID string, id uuid.UUID) (*model.Quiz, error) {
	quiz, err := s.quizRepo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrQuizNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if quiz.CreatedBy != userID {
		return nil, ErrQuizForbidden
	}
	return quiz, nil
}

// invalidate drops both cached views of a quiz. A failure leaves stale
// entries that expire with QuizCacheTTL.
func (s *QuizService) invalidate(ctx context.Context, id uuid.UUID) {
	key := id.String()
	err := s.rdb.Del(ctx, config.CacheKey.QuizPayloadKey(key), config.CacheKey.QuizAnswerKey(key)).Err()
	if err != nil {
		s.log.Warn().Err(err).Str("quiz_id", key).Msg("Cache invalidation failed")
	}
}

func (s *QuizService) cache(ctx context.Context, quiz *model.Quiz) error {
	payload, err := json.Marshal(quiz.Payload())
	if err != nil {
		return err
	}
	key, err := json.Marshal(quiz.AnswerKey())
	if err != nil {
		return err
	}

	id := quiz.ID.String()
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.QuizPayloadKey(id), payload, s.cfg.QuizCacheTTL)
	pipe.Set(ctx, config.CacheKey.QuizAnswerKey(id), key, s.cfg.QuizCacheTTL)
	_, err = pipe.Exec(ctx)
	return err
}

func applyRequest(quiz *model.Quiz, req *model.CreateQuizRequest) {
	quiz.Name = req.Name
	quiz.Description = req.Description
	quiz.Category = req.Category
	quiz.Difficulty = model.Difficulty(req.Difficulty)
	quiz.TimeLimit = req.TimeLimit
	quiz.Questions = req.Questions
	quiz.IsPublic = req.IsPublic == nil || *req.IsPublic

	if quiz.Category == "" {
		quiz.Category = model.DefaultCategory
	}
	if quiz.Difficulty == "" {
		quiz.Difficulty = model.DifficultyMedium
	}
}

func normalizePage(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}
	return page, perPage
}
