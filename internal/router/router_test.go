package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/handler"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopAttempts struct{}

func (nopAttempts) StartExam(context.Context, uuid.UUID, uuid.UUID) (*model.StartedAttempt, error) {
	return &model.StartedAttempt{SubmissionID: uuid.New()}, nil
}

func (nopAttempts) StartHomework(context.Context, uuid.UUID, uuid.UUID, model.ResourceRef) (*model.StartedAttempt, error) {
	return &model.StartedAttempt{SubmissionID: uuid.New()}, nil
}

type nopGrader struct{}

func (nopGrader) Submit(_ context.Context, _, id uuid.UUID, _ model.Answers) (*model.SubmitOutcome, error) {
	return &model.SubmitOutcome{SubmissionID: id, Status: model.SubmissionStatusGraded}, nil
}

func (nopGrader) Preview(context.Context, uuid.UUID, uuid.UUID, model.Answers) (*model.Result, error) {
	return &model.Result{}, nil
}

func (nopGrader) GetResult(_ context.Context, _ service.Viewer, id uuid.UUID) (*model.ResultView, error) {
	return &model.ResultView{SubmissionID: id}, nil
}

type nopProgress struct{}

func (nopProgress) SaveProgress(context.Context, uuid.UUID, uuid.UUID, model.Answers) error {
	return nil
}

func (nopProgress) GetState(_ context.Context, _, id uuid.UUID) (*model.AttemptState, error) {
	return &model.AttemptState{SubmissionID: id}, nil
}

func setup(t *testing.T, submitRate int) (*gin.Engine, *service.AuthService) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	auth := service.NewAuthService("router-secret", time.Hour)
	cfg := &config.Config{GinMode: gin.TestMode, SubmitRatePerMinute: submitRate}
	handlers := &Handlers{
		Attempt:    handler.NewAttemptHandler(nopAttempts{}),
		Submission: handler.NewSubmissionHandler(nopGrader{}, nopProgress{}),
		System:     handler.NewSystemHandler(nil, zerolog.Nop()),
	}
	return SetupRouter(ctx, auth, handlers, cfg, zerolog.Nop()), auth
}

func call(t *testing.T, r *gin.Engine, auth *service.AuthService, role service.Role, method, path string) int {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if role != "" {
		token, err := auth.IssueToken(uuid.New(), role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRoutesEnforceRoles(t *testing.T) {
	r, auth := setup(t, 30)
	sub := uuid.NewString()

	tests := []struct {
		name   string
		role   service.Role
		method string
		path   string
		want   int
	}{
		{"anonymous start", "", http.MethodPost, "/api/v1/attempts/exams/" + sub + "/start", http.StatusUnauthorized},
		{"student start", service.RoleStudent, http.MethodPost, "/api/v1/attempts/exams/" + sub + "/start", http.StatusCreated},
		{"admin cannot start", service.RoleAdmin, http.MethodPost, "/api/v1/attempts/exams/" + sub + "/start", http.StatusForbidden},
		{"student state", service.RoleStudent, http.MethodGet, "/api/v1/submissions/" + sub + "/state", http.StatusOK},
		{"student result", service.RoleStudent, http.MethodGet, "/api/v1/submissions/" + sub + "/result", http.StatusOK},
		{"student cannot use admin", service.RoleStudent, http.MethodGet, "/api/v1/admin/submissions/" + sub + "/result", http.StatusForbidden},
		{"admin result", service.RoleAdmin, http.MethodGet, "/api/v1/admin/submissions/" + sub + "/result", http.StatusOK},
		{"health", "", http.MethodGet, "/health", http.StatusOK},
		{"metrics", "", http.MethodGet, "/metrics", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, call(t, r, auth, tc.role, tc.method, tc.path))
		})
	}
}

func TestSubmitIsRateLimited(t *testing.T) {
	r, auth := setup(t, 2)
	token, err := auth.IssueToken(uuid.New(), service.RoleStudent)
	require.NoError(t, err)

	path := "/api/v1/submissions/" + uuid.NewString() + "/submit"
	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"answers":{}}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
