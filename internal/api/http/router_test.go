package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/api/http/handlers"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/auth"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/config"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/conversation"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/domain"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/events"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/observability"
	"github.com/lhs544/University-administrative-AI-document-review-automation/internal/service"
)

type fakeDocServer struct{}

func (fakeDocServer) ListDepartments(context.Context) ([]domain.Department, error) {
	return []domain.Department{{ID: "1", Name: "Registrar"}}, nil
}

func (fakeDocServer) ListDocTypes(context.Context, string) ([]domain.DocType, error) {
	return []domain.DocType{{ID: "10", Name: "Leave of absence"}}, nil
}

func (fakeDocServer) RequiredFields(context.Context, string) ([]domain.RequiredField, error) {
	return nil, nil
}

func (fakeDocServer) Deadline(context.Context, string) (*domain.DeadlineInfo, error) {
	return nil, nil
}

func (fakeDocServer) CreateSubmission(context.Context, string, string, domain.Upload) (*domain.SubmissionSummary, error) {
	return &domain.SubmissionSummary{ID: "900"}, nil
}

func (fakeDocServer) UpdateSubmission(_ context.Context, id, _ string, _ *domain.Upload) (*domain.SubmissionSummary, error) {
	return &domain.SubmissionSummary{ID: id}, nil
}

func (fakeDocServer) SubmitSubmission(_ context.Context, id string, _ domain.SubmitMode) (*domain.SubmissionSummary, error) {
	return &domain.SubmissionSummary{ID: id}, nil
}

func (fakeDocServer) SubmissionSummary(_ context.Context, id string) (*domain.SubmissionSummary, error) {
	return &domain.SubmissionSummary{ID: id, Status: domain.SubmissionStatusApproved}, nil
}

func (fakeDocServer) ReviewResult(context.Context, string) (*domain.ReviewResult, error) {
	return &domain.ReviewResult{}, nil
}

func (fakeDocServer) ListMySubmissions(context.Context, domain.SubmissionFilter) ([]domain.SubmissionRow, error) {
	return nil, nil
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

type testServer struct {
	app     *fiber.App
	tokens  *auth.TokenManager
	student string
	chat    *service.ChatService
}

func newTestServer(t *testing.T, readiness map[string]handlers.Pinger) *testServer {
	t.Helper()

	hash, err := auth.HashPassword("letmein", 4)
	require.NoError(t, err)
	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "secret",
		AccessTokenTTLMinutes: 30,
		OperatorPasswordHash:  hash,
	}, nil)

	metrics := observability.NewMetrics()
	chat := service.NewChatService(service.ChatDependencies{
		DocServers: func(string) conversation.DocServer { return fakeDocServer{} },
		Catalog:    conversation.MustLoadCatalog("en"),
		Dispatcher: events.NewInMemoryDispatcher(zap.NewNop()),
		Metrics:    metrics,
		Logger:     zap.NewNop(),
	})
	t.Cleanup(func() { _ = chat.Shutdown(context.Background()) })

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 0, "")
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("docchat", "test", readiness),
		Auth:           handlers.NewAuthHandler(authService, nil),
		Chat:           handlers.NewChatHandler(chat),
		Ops:            handlers.NewOpsHandler(chat, nil),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		Registry:       metrics.Registry(),
	})

	student, _, err := authService.TokenManager().GenerateToken(auth.TokenSubject{
		ID: "20231234", Role: domain.RoleStudent, Name: "Kim", Upstream: "JSESSIONID=abc",
	})
	require.NoError(t, err)

	return &testServer{app: app, tokens: authService.TokenManager(), student: student, chat: chat}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func (s *testServer) createConversation(t *testing.T) string {
	t.Helper()
	status, body := s.do(t, "POST", "/chat/conversations", s.student, nil)
	require.Equal(t, fiber.StatusCreated, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, string(conversation.StateInit), data["state"])
	assert.NotEmpty(t, data["messages"])
	return data["id"].(string)
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, map[string]handlers.Pinger{
		"docserver": pingerFunc(func(context.Context) error { return nil }),
		"redis":     nil,
	})

	status, body := srv.do(t, "GET", "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = srv.do(t, "GET", "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["docserver"])
	assert.Equal(t, "disabled", deps["redis"])
}

func TestReadinessFailsWhenDependencyDown(t *testing.T) {
	srv := newTestServer(t, map[string]handlers.Pinger{
		"docserver": pingerFunc(func(context.Context) error { return errors.New("connection refused") }),
	})

	status, body := srv.do(t, "GET", "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body["error"].(map[string]any)["code"])
}

func TestChatRequiresAuthentication(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := srv.do(t, "POST", "/chat/conversations", "", nil)
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Contains(t, body, "error")
}

func TestOperatorCannotChatAndStudentCannotOperate(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body := srv.do(t, "POST", "/auth/operator/login", "", map[string]string{"password": "letmein"})
	require.Equal(t, fiber.StatusOK, status)
	operator := body["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)

	status, _ = srv.do(t, "POST", "/chat/conversations", operator, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, _ = srv.do(t, "GET", "/ops/conversations", srv.student, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestOperatorLoginRejectsWrongPassword(t *testing.T) {
	srv := newTestServer(t, nil)

	status, _ := srv.do(t, "POST", "/auth/operator/login", "", map[string]string{"password": "nope"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestConversationFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.createConversation(t)

	status, body := srv.do(t, "POST", "/chat/conversations/"+id+"/commands", srv.student,
		map[string]string{"kind": string(domain.CommandStartSubmission)})
	require.Equal(t, fiber.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, string(conversation.StateDeptSelect), data["state"])
	assert.NotEmpty(t, data["messages"])

	status, body = srv.do(t, "POST", "/chat/conversations/"+id+"/input", srv.student,
		map[string]string{"text": "Registrar"})
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, string(conversation.StateTypeSelect), body["data"].(map[string]any)["state"])

	status, body = srv.do(t, "GET", "/chat/conversations/"+id+"/messages?after=0", srv.student, nil)
	require.Equal(t, fiber.StatusOK, status)
	msgs := body["data"].(map[string]any)["messages"].([]any)
	assert.GreaterOrEqual(t, len(msgs), 4)
	assert.EqualValues(t, 0, msgs[0].(map[string]any)["seq"])

	status, _ = srv.do(t, "GET", "/chat/conversations/"+id+"/messages?after=-1", srv.student, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = srv.do(t, "DELETE", "/chat/conversations/"+id, srv.student, nil)
	assert.Equal(t, fiber.StatusNoContent, status)

	status, _ = srv.do(t, "GET", "/chat/conversations/"+id+"/messages", srv.student, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestCommandWithoutKindIsRejected(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.createConversation(t)

	status, body := srv.do(t, "POST", "/chat/conversations/"+id+"/commands", srv.student, map[string]string{})
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])
}

func TestConversationOfAnotherStudentIsForbidden(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.createConversation(t)

	other, _, err := srv.tokens.GenerateToken(auth.TokenSubject{ID: "20239999", Role: domain.RoleStudent, Upstream: "JSESSIONID=zzz"})
	require.NoError(t, err)

	status, _ := srv.do(t, "GET", "/chat/conversations/"+id+"/messages", other, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
}

func TestUploadEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.createConversation(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "form.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/chat/conversations/"+id+"/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+srv.student)
	resp, err := srv.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	// no doc type chosen yet, so the bot answers with guidance instead of uploading
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	status, _ := srv.do(t, "POST", "/chat/conversations/"+id+"/files", srv.student, nil)
	assert.Equal(t, fiber.StatusBadRequest, status)
}

func TestOpsEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)
	id := srv.createConversation(t)

	operator, _, err := srv.tokens.GenerateToken(auth.TokenSubject{ID: "operator", Role: domain.RoleOperator})
	require.NoError(t, err)

	status, body := srv.do(t, "GET", "/ops/conversations", operator, nil)
	require.Equal(t, fiber.StatusOK, status)
	rows := body["data"].([]any)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].(map[string]any)["id"])
	assert.Equal(t, "20231234", rows[0].(map[string]any)["owner"])

	status, body = srv.do(t, "GET", "/ops/conversations/"+id+"/uploads", operator, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, "LEDGER_DISABLED", body["error"].(map[string]any)["code"])

	status, _ = srv.do(t, "DELETE", "/ops/conversations/"+id, operator, nil)
	assert.Equal(t, fiber.StatusNoContent, status)
	assert.Empty(t, srv.chat.List())

	status, _ = srv.do(t, "DELETE", "/ops/conversations/"+id, operator, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.do(t, "GET", "/health/live", "", nil)

	resp, err := srv.app.Test(httptest.NewRequest("GET", "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "docchat_http_requests_total")
}
