package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/quizsync/internal/middleware"
	"github.com/stemsi/quizsync/internal/model"
	"github.com/stemsi/quizsync/internal/response"
	"github.com/stemsi/quizsync/internal/service"
	"github.com/stemsi/quizsync/internal/validator"
)

// SubmissionHandler handles quiz submissions and the caller's attempt history.
type SubmissionHandler struct {
	submissionService *service.SubmissionService
	log               zerolog.Logger
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(submissionService *service.SubmissionService, log zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		log:               log.With().Str("component", "submission_handler").Logger(),
	}
}

// SubmitQuiz godoc
// POST /api/v1/quiz-submissions
// Grades the answers and queues the attempt; replies 202 with the score.
func (h *SubmissionHandler) SubmitQuiz(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmitQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.submissionService.Submit(c.Request.Context(), claims.UserID, &req)
	switch {
	case errors.Is(err, service.ErrQuizNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrQuizNotFound)
		return
	case errors.Is(err, service.ErrAnswerCountMismatch):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrAnswerCountMismatch)
		return
	case err != nil:
		h.log.Error().Err(err).Str("user_id", claims.UserID).Str("quiz_id", req.QuizID).Msg("Submit failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusAccepted, result)
}

// ListMyAttempts godoc
// GET /api/v1/me/attempts?page=&per_page=
func (h *SubmissionHandler) ListMyAttempts(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))

	attempts, pagination, err := h.submissionService.ListByUser(c.Request.Context(), claims.UserID, page, perPage)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, gin.H{"attempts": attempts}, pagination)
}
