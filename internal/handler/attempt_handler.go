package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/middleware"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/response"
	"github.com/stemsi/exstem-grading/internal/validator"
)

// AttemptStarter opens or resumes attempts. *service.AttemptService satisfies it.
type AttemptStarter interface {
	StartExam(ctx context.Context, userID, assignmentID uuid.UUID) (*model.StartedAttempt, error)
	StartHomework(ctx context.Context, userID, assignmentID uuid.UUID, resource model.ResourceRef) (*model.StartedAttempt, error)
}

// AttemptHandler handles attempt admission endpoints.
type AttemptHandler struct {
	attempts AttemptStarter
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attempts AttemptStarter) *AttemptHandler {
	return &AttemptHandler{attempts: attempts}
}

// StartExam godoc
// POST /api/v1/attempts/exams/:assignment_id/start
// Opens the exam attempt, or returns the in-progress one unchanged.
func (h *AttemptHandler) StartExam(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := validator.ParamUUID(c, "assignment_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	started, err := h.attempts.StartExam(c.Request.Context(), claims.UserID, assignmentID)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, statusFor(started), started)
}

// StartHomework godoc
// POST /api/v1/attempts/homework/:assignment_id/start
// Opens the attempt for one test or quiz of a homework assignment.
func (h *AttemptHandler) StartHomework(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assignmentID, ok := validator.ParamUUID(c, "assignment_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.StartAttemptRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resource := model.ResourceRef{Kind: req.ResourceKind, ID: uuid.MustParse(req.ResourceID)}
	started, err := h.attempts.StartHomework(c.Request.Context(), claims.UserID, assignmentID, resource)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, statusFor(started), started)
}

func statusFor(started *model.StartedAttempt) int {
	if started.Resumed {
		return http.StatusOK
	}
	return http.StatusCreated
}
