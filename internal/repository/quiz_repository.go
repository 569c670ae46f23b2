package repository

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/quizsync/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// QuizRepository handles quiz data access.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// Create inserts a quiz and fills in its timestamps.
func (r *QuizRepository) Create(ctx context.Context, q *model.Quiz) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO quizzes (id, name, description, category, difficulty, time_limit, questions, is_public, created_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING created_at, updated_at`,
		q.ID, q.Name, q.Description, q.Category, string(q.Difficulty), q.TimeLimit, q.Questions, q.IsPublic, q.CreatedBy,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
}

// GetByID retrieves a quiz, answer key included.
func (r *QuizRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Quiz, error) {
	q := &model.Quiz{}
	var difficulty string
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, description, category, difficulty, time_limit, questions, is_public,
		        created_by, created_at, updated_at
		 FROM quizzes WHERE id = $1`, id,
	).Scan(&q.ID, &q.Name, &q.Description, &q.Category, &difficulty, &q.TimeLimit,
		&q.Questions, &q.IsPublic, &q.CreatedBy, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	q.Difficulty = model.Difficulty(difficulty)
	return q, nil
}

// Update overwrites the editable fields of a quiz owned by q.CreatedBy and
// refreshes q.UpdatedAt. ErrNotFound covers both a missing row and a row
// owned by someone else.
func (r *QuizRepository) Update(ctx context.Context, q *model.Quiz) error {
	err := r.pool.QueryRow(ctx,
		`UPDATE quizzes
		 SET name = $3, description = $4, category = $5, difficulty = $6,
		     time_limit = $7, questions = $8, is_public = $9, updated_at = NOW()
		 WHERE id = $1 AND created_by = $2
		 RETURNING created_at, updated_at`,
		q.ID, q.CreatedBy, q.Name, q.Description, q.Category, string(q.Difficulty),
		q.TimeLimit, q.Questions, q.IsPublic,
	).Scan(&q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Delete removes a quiz owned by createdBy. Its attempts go with it.
func (r *QuizRepository) Delete(ctx context.Context, id uuid.UUID, createdBy string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM quizzes WHERE id = $1 AND created_by = $2`, id, createdBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPaginated returns public quiz summaries, newest first, narrowed by
// filter, together with the total match count.
func (r *QuizRepository) ListPaginated(ctx context.Context, filter model.QuizFilter, limit, offset int) ([]model.QuizSummary, int, error) {
	where, args := filterClause(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM quizzes`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	n := len(args)
	query := `SELECT id, name, description, category, difficulty, time_limit,
	                 jsonb_array_length(questions), created_at
	          FROM quizzes` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(n+1) + ` OFFSET $` + strconv.Itoa(n+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	quizzes := make([]model.QuizSummary, 0, limit)
	for rows.Next() {
		var s model.QuizSummary
		var difficulty string
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Category, &difficulty,
			&s.TimeLimit, &s.QuestionCount, &s.CreatedAt); err != nil {
			return nil, 0, err
		}
		s.Difficulty = model.Difficulty(difficulty)
		quizzes = append(quizzes, s)
	}
	return quizzes, total, rows.Err()
}

func filterClause(filter model.QuizFilter) (string, []any) {
	conds := []string{"is_public"}
	var args []any
	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, "category = $"+strconv.Itoa(len(args)))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		p := "$" + strconv.Itoa(len(args))
		conds = append(conds, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
