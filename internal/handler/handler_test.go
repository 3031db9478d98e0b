package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tax_analysis/internal/middleware"
	"tax_analysis/internal/model"
	"tax_analysis/internal/service"
	"tax_analysis/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errBoom = errors.New("boom")

type fakeAuthService struct {
	registerErr error
	loginErr    error
	profile     *model.User
	profileErr  error
	lastSignup  model.SignupRequest
	lastLogin   string
}

func (s *fakeAuthService) Register(_ context.Context, req model.SignupRequest) (*model.User, error) {
	s.lastSignup = req
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return &model.User{ID: 1, Username: req.Login(), Role: model.RoleUser}, nil
}

func (s *fakeAuthService) Login(_ context.Context, username, _ string) (*model.User, string, error) {
	s.lastLogin = username
	if s.loginErr != nil {
		return nil, "", s.loginErr
	}
	return &model.User{ID: 1, Username: username, Role: model.RoleUser}, "signed-token", nil
}

func (s *fakeAuthService) Profile(_ context.Context, userID int) (*model.User, error) {
	if s.profileErr != nil {
		return nil, s.profileErr
	}
	if s.profile == nil || s.profile.ID != userID {
		return nil, service.ErrUserNotFound
	}
	return s.profile, nil
}

type fakeAnalysisService struct {
	uploadErr    error
	uploadUser   int
	uploadName   string
	mine         map[int][]model.ScoredRow
	listErr      error
	files        map[string]string
	recordedSize int64
	openErr      error
	augmented    *model.AugmentedData
	augmentErr   error
	stats        *model.Stats
	statsErr     error
}

func (s *fakeAnalysisService) ProcessUpload(_ context.Context, userID int, fh *multipart.FileHeader) (*service.UploadResult, error) {
	s.uploadUser = userID
	s.uploadName = fh.Filename
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	return &service.UploadResult{
		Upload: &model.Upload{UserID: userID, Filename: fh.Filename},
		Summary: model.UploadSummary{
			Rows:        2,
			Columns:     3,
			ColumnsList: []string{"PAN_Number", "Income", "Tax_Paid"},
			Preview:     []map[string]string{{"PAN_Number": "A1"}},
		},
	}, nil
}

func (s *fakeAnalysisService) Stats(context.Context) (*model.Stats, error) {
	return s.stats, s.statsErr
}

func (s *fakeAnalysisService) ListMine(_ context.Context, userID int) ([]model.ScoredRow, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.mine[userID], nil
}

func (s *fakeAnalysisService) ListAll(context.Context) ([]model.ScoredRow, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.ScoredRow
	for _, rows := range s.mine {
		out = append(out, rows...)
	}
	return out, nil
}

func (s *fakeAnalysisService) OpenUpload(_ context.Context, userID int, filename string) (io.ReadCloser, *model.Upload, error) {
	if s.openErr != nil {
		return nil, nil, s.openErr
	}
	content, ok := s.files[filename]
	if !ok {
		return nil, nil, service.ErrUploadNotFound
	}
	upload := &model.Upload{UserID: userID, Filename: filename, SizeBytes: int64(len(content))}
	if s.recordedSize != 0 {
		upload.SizeBytes = s.recordedSize
	}
	return io.NopCloser(strings.NewReader(content)), upload, nil
}

func (s *fakeAnalysisService) Augmented(context.Context, int) (*model.AugmentedData, error) {
	return s.augmented, s.augmentErr
}

type fakeAdminService struct {
	users     []model.User
	deleteErr error
	deleted   []int
}

func (s *fakeAdminService) ListUsers(context.Context) ([]model.User, error) {
	return s.users, nil
}

func (s *fakeAdminService) DeleteUser(_ context.Context, actorID, userID int) error {
	if actorID == userID {
		return service.ErrCannotDeleteSelf
	}
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleted = append(s.deleted, userID)
	return nil
}

type testServer struct {
	router   *gin.Engine
	jwt      *utils.JWTUtil
	auth     *fakeAuthService
	analysis *fakeAnalysisService
	admin    *fakeAdminService
}

func newTestServer(maxUploadBytes int64) *testServer {
	ts := &testServer{
		jwt:      utils.NewJWTUtil("handler-secret", time.Hour),
		auth:     &fakeAuthService{},
		analysis: &fakeAnalysisService{mine: map[int][]model.ScoredRow{}, files: map[string]string{}},
		admin:    &fakeAdminService{},
	}

	authMW := middleware.JWTAuthMiddleware(ts.jwt)
	adminMW := middleware.AdminMiddleware()
	passThrough := func(c *gin.Context) { c.Next() }

	r := gin.New()
	api := r.Group("")
	NewAuthHandler(ts.auth).RegisterAuthRoutes(api, authMW)
	NewAnalysisHandler(ts.analysis, maxUploadBytes).RegisterAnalysisRoutes(api, authMW, passThrough, adminMW)
	NewAdminHandler(ts.admin).RegisterAdminRoutes(api, authMW, adminMW)
	ts.router = r
	return ts
}

func (ts *testServer) token(t *testing.T, userID int, role string) string {
	t.Helper()
	token, err := ts.jwt.GenerateToken(userID, "user", role)
	require.NoError(t, err)
	return token
}

func (ts *testServer) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, field, name string, content []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}
