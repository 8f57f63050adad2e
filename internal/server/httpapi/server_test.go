package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/logging"
	"github.com/dmitrijs2005/photomagic/internal/server/auth"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
	"github.com/dmitrijs2005/photomagic/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Debug(context.Context, string, ...any) {}
func (nopLogger) Info(context.Context, string, ...any)  {}
func (nopLogger) Warn(context.Context, string, ...any)  {}
func (nopLogger) Error(context.Context, string, ...any) {}
func (n nopLogger) With(...any) logging.Logger          { return n }

type fakeTasks struct {
	submitted []string
	submitErr error
	failed    string
	view      *services.TaskView
	statusErr error
	panics    bool
	traceIDs  []string
}

func (f *fakeTasks) Submit(ctx context.Context, ownerID, fileID string, kind models.TaskKind) (*models.Task, error) {
	if f.panics {
		panic("boom")
	}
	f.traceIDs = append(f.traceIDs, logging.TraceID(ctx))
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	f.submitted = append(f.submitted, ownerID+"/"+fileID+"/"+string(kind))
	task := models.NewTask("t1", ownerID, fileID, kind, time.Now())
	if f.failed != "" {
		_ = task.Advance(models.Failed(f.failed), time.Now())
	}
	return task, nil
}

func (f *fakeTasks) Status(_ context.Context, callerID, taskID string) (*services.TaskView, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.view, nil
}

var secret = []byte("test-secret")

func newTestServer(t *testing.T, tasks *fakeTasks) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewServer(":0", nopLogger{}, tasks, auth.NewVerifier(secret), time.Second).Handler()
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	tok, err := auth.GenerateToken(userID, secret, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

func do(h http.Handler, method, path, body, authz string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if authz != "" {
		req.Header.Set(common.AuthorizationHeaderName, authz)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e), w.Body.String())
	return e
}

func TestSubmit_Accepted(t *testing.T) {
	tasks := &fakeTasks{}
	h := newTestServer(t, tasks)

	w := do(h, http.MethodPost, "/api/v1/images/remove-background", `{"fileId":"f1"}`, bearer(t, "u1"))

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, map[string]string{
		"taskId":  "t1",
		"status":  "processing",
		"message": "Background removal task started",
	}, got)
	assert.Equal(t, []string{"u1/f1/remove-background"}, tasks.submitted)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST,OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))

	traceID := w.Header().Get(common.TraceIDHeaderName)
	assert.NotEmpty(t, traceID)
	assert.Equal(t, []string{traceID}, tasks.traceIDs, "trace id reaches the service context")
}

func TestSubmit_DispatchFailedTask(t *testing.T) {
	tasks := &fakeTasks{failed: "dispatch failed: pool closed"}
	h := newTestServer(t, tasks)

	w := do(h, http.MethodPost, "/api/v1/images/remove-background", `{"fileId":"f1"}`, bearer(t, "u1"))

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var got map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, map[string]string{
		"taskId":  "t1",
		"status":  "failed",
		"message": "Background removal task could not be started",
		"error":   "dispatch failed: pool closed",
	}, got)
}

func TestSubmit_BadRequests(t *testing.T) {
	tasks := &fakeTasks{}
	h := newTestServer(t, tasks)
	tok := bearer(t, "u1")

	cases := []struct {
		name, body, want string
	}{
		{"no body", "", "Request body required"},
		{"no fileId", `{}`, "fileId is required"},
		{"empty fileId", `{"fileId":""}`, "fileId is required"},
		{"bad json", `{"fileId":`, "Invalid request body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(h, http.MethodPost, "/api/v1/images/remove-background", tc.body, tok)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.want, decodeError(t, w).Error)
		})
	}
	assert.Empty(t, tasks.submitted, "no task is created")
}

func TestAuth_Rejected(t *testing.T) {
	h := newTestServer(t, &fakeTasks{})

	w := do(h, http.MethodPost, "/api/v1/images/remove-background", `{"fileId":"f1"}`, "")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Authorization header required", decodeError(t, w).Error)

	w = do(h, http.MethodGet, "/api/v1/images/remove-background/t1", "", "Bearer not-a-jwt")
	require.Equal(t, http.StatusUnauthorized, w.Code)
	e := decodeError(t, w)
	assert.Equal(t, "Invalid token", e.Error)
	assert.Equal(t, w.Header().Get(common.TraceIDHeaderName), e.TraceID)

	other, err := auth.GenerateToken("u1", []byte("other"), time.Minute)
	require.NoError(t, err)
	w = do(h, http.MethodGet, "/api/v1/images/remove-background/t1", "", "Bearer "+other)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestStatus_Responses(t *testing.T) {
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	tasks := &fakeTasks{view: &services.TaskView{
		TaskID:    "t1",
		Status:    models.StateFailed,
		TaskType:  models.KindRemoveBackground,
		FileID:    "f1",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Second),
		Error:     "background removal failed",
	}}
	h := newTestServer(t, tasks)
	tok := bearer(t, "u1")

	w := do(h, http.MethodGet, "/api/v1/images/remove-background/t1", "", tok)
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "failed", got["status"])
	assert.Equal(t, "background removal failed", got["error"])
	assert.NotContains(t, got, "result")
	assert.Equal(t, "GET,OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))

	tasks.statusErr = common.ErrorForbidden
	w = do(h, http.MethodGet, "/api/v1/images/remove-background/t1", "", tok)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied", decodeError(t, w).Error)

	tasks.statusErr = common.ErrorNotFound
	w = do(h, http.MethodGet, "/api/v1/images/remove-background/t1", "", tok)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Task not found", decodeError(t, w).Error)
}

func TestSubmit_InternalError(t *testing.T) {
	tasks := &fakeTasks{submitErr: common.ErrorInternal}
	h := newTestServer(t, tasks)

	w := do(h, http.MethodPost, "/api/v1/images/remove-background", `{"fileId":"f1"}`, bearer(t, "u1"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeError(t, w).Error)
}

func TestPreflight_SkipsAuthAndMethodChecks(t *testing.T) {
	h := newTestServer(t, &fakeTasks{})

	for path, methods := range map[string]string{
		"/api/v1/images/remove-background":    "POST,OPTIONS",
		"/api/v1/images/remove-background/t1": "GET,OPTIONS",
		"/api/v1/images/extend-image":         "GET,POST,OPTIONS",
	} {
		w := do(h, http.MethodOptions, path, "", "")
		assert.Equal(t, http.StatusOK, w.Code, path)
		assert.Empty(t, w.Body.String(), path)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"), path)
		assert.Equal(t, "Content-Type,Authorization", w.Header().Get("Access-Control-Allow-Headers"), path)
		assert.Equal(t, methods, w.Header().Get("Access-Control-Allow-Methods"), path)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t, &fakeTasks{})

	w := do(h, http.MethodDelete, "/api/v1/images/remove-background", "", bearer(t, "u1"))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method not allowed", decodeError(t, w).Error)

	w = do(h, http.MethodPut, "/api/v1/images/remove-background/t1", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestUnimplementedOperations(t *testing.T) {
	h := newTestServer(t, &fakeTasks{})

	for _, kind := range []string{"extend-image", "enhance-clarity", "object-removal"} {
		for _, method := range []string{http.MethodGet, http.MethodPost} {
			w := do(h, method, "/api/v1/images/"+kind, "", "")
			assert.Equal(t, http.StatusNotImplemented, w.Code, method+" "+kind)
		}
	}
}

func TestRecovery_ReturnsJSON500(t *testing.T) {
	h := newTestServer(t, &fakeTasks{panics: true})

	w := do(h, http.MethodPost, "/api/v1/images/remove-background", `{"fileId":"f1"}`, bearer(t, "u1"))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Internal server error", decodeError(t, w).Error)
}

func TestTraceID_CallerValueIsEchoed(t *testing.T) {
	h := newTestServer(t, &fakeTasks{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(common.TraceIDHeaderName, "abc123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", w.Header().Get(common.TraceIDHeaderName))
}

func TestRun_StopsOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := NewServer("127.0.0.1:0", nopLogger{}, &fakeTasks{}, auth.NewVerifier(secret), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
