package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-grading/internal/middleware"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/response"
	"github.com/stemsi/exstem-grading/internal/service"
	"github.com/stemsi/exstem-grading/internal/validator"
)

// Grader finalizes and discloses attempts. *service.GradingService satisfies it.
type Grader interface {
	Submit(ctx context.Context, userID, submissionID uuid.UUID, answers model.Answers) (*model.SubmitOutcome, error)
	Preview(ctx context.Context, userID, submissionID uuid.UUID, answers model.Answers) (*model.Result, error)
	GetResult(ctx context.Context, viewer service.Viewer, submissionID uuid.UUID) (*model.ResultView, error)
}

// ProgressTracker autosaves and restores attempts. *service.ProgressService satisfies it.
type ProgressTracker interface {
	SaveProgress(ctx context.Context, userID, submissionID uuid.UUID, answers model.Answers) error
	GetState(ctx context.Context, userID, submissionID uuid.UUID) (*model.AttemptState, error)
}

// SubmissionHandler handles endpoints on an existing submission.
type SubmissionHandler struct {
	grader   Grader
	progress ProgressTracker
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(grader Grader, progress ProgressTracker) *SubmissionHandler {
	return &SubmissionHandler{grader: grader, progress: progress}
}

// SaveProgress godoc
// PUT /api/v1/submissions/:submission_id/progress
// Buffers autosaved answers; they are persisted in the background.
func (h *SubmissionHandler) SaveProgress(c *gin.Context) {
	claims, id, ok := h.ownerRequest(c)
	if !ok {
		return
	}

	var req model.AnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	if err := h.progress.SaveProgress(c.Request.Context(), claims.UserID, id, req.Answers); err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusAccepted, gin.H{"saved": len(req.Answers)})
}

// GetState godoc
// GET /api/v1/submissions/:submission_id/state
// Returns status, timing and autosaved answers so a reload can resume.
func (h *SubmissionHandler) GetState(c *gin.Context) {
	claims, id, ok := h.ownerRequest(c)
	if !ok {
		return
	}

	state, err := h.progress.GetState(c.Request.Context(), claims.UserID, id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// Submit godoc
// POST /api/v1/submissions/:submission_id/submit
// Grades and finalizes the attempt. The result is omitted when the
// assignment defers disclosure.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	claims, id, ok := h.ownerRequest(c)
	if !ok {
		return
	}

	var req model.AnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	outcome, err := h.grader.Submit(c.Request.Context(), claims.UserID, id, req.Answers)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, outcome)
}

// Preview godoc
// POST /api/v1/submissions/:submission_id/preview
// Grades without saving. Homework only.
func (h *SubmissionHandler) Preview(c *gin.Context) {
	claims, id, ok := h.ownerRequest(c)
	if !ok {
		return
	}

	var req model.AnswersRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	result, err := h.grader.Preview(c.Request.Context(), claims.UserID, id, req.Answers)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// GetResult godoc
// GET /api/v1/submissions/:submission_id/result
func (h *SubmissionHandler) GetResult(c *gin.Context) {
	claims, id, ok := h.ownerRequest(c)
	if !ok {
		return
	}

	view, err := h.grader.GetResult(c.Request.Context(), service.Viewer{UserID: claims.UserID}, id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

// AdminGetResult godoc
// GET /api/v1/admin/submissions/:submission_id/result
// Returns the stored result and snapshot regardless of publication flags.
func (h *SubmissionHandler) AdminGetResult(c *gin.Context) {
	claims, id, ok := h.ownerRequest(c)
	if !ok {
		return
	}

	view, err := h.grader.GetResult(c.Request.Context(), service.Viewer{UserID: claims.UserID, Admin: true}, id)
	if err != nil {
		failWith(c, err)
		return
	}

	response.Success(c, http.StatusOK, view)
}

func (h *SubmissionHandler) ownerRequest(c *gin.Context) (*service.Claims, uuid.UUID, bool) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return nil, uuid.Nil, false
	}

	id, ok := validator.ParamUUID(c, "submission_id")
	if !ok {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, uuid.Nil, false
	}
	return claims, id, true
}
