package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"chatbot-api/internal/ai"
	"chatbot-api/internal/app"
	"chatbot-api/internal/model"
	dbplatform "chatbot-api/internal/platform/db"
	"chatbot-api/internal/repository"
)

type fixedCompletion struct {
	reply string
}

func (f *fixedCompletion) Generate(context.Context, string, []ai.Message) string {
	return f.reply
}

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbplatform.Migrate(gdb))

	chatService := app.NewChatService(
		gdb,
		repository.NewSessionRepository(gdb),
		repository.NewMessageRepository(gdb),
		&fixedCompletion{reply: "assistant says hi"},
		nil,
		nil,
		10,
	)

	sessionHandler := NewSessionHandler(chatService)
	chatHandler := NewChatHandler(chatService)

	router := gin.New()
	api := router.Group("/api")
	api.GET("/sessions", sessionHandler.List)
	api.POST("/sessions", sessionHandler.Create)
	api.GET("/sessions/:id", sessionHandler.Get)
	api.DELETE("/sessions/:id", sessionHandler.Delete)
	api.POST("/chat", chatHandler.Chat)

	return router, gdb
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateSession(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var summary app.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.NotZero(t, summary.ID)
	assert.Equal(t, "New Chat", summary.Title)
	assert.Zero(t, summary.MessageCount)
}

func TestChat_SessionNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/chat", `{"session_id":1,"message":"hi"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Session not found"}`, rec.Body.String())
}

func TestChat_WhitespaceMessageRejected(t *testing.T) {
	router, gdb := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/chat", `{"session_id":1,"message":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var count int64
	require.NoError(t, gdb.Model(&model.Message{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestChat_Turn(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/sessions", "")
	rec := doJSON(t, router, http.MethodPost, "/api/chat", `{"session_id":1,"message":" hello "}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result app.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "hello", result.UserMessage.Content)
	assert.Equal(t, "user", result.UserMessage.Role)
	assert.Equal(t, "assistant says hi", result.AIResponse.Content)
	assert.Equal(t, "assistant", result.AIResponse.Role)

	// Wire shape: both records under the documented keys.
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Contains(t, raw, "user_message")
	assert.Contains(t, raw, "ai_response")
}

func TestListSessions_GroupsUnderToday(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/sessions", "")
	doJSON(t, router, http.MethodPost, "/api/sessions", "")

	rec := doJSON(t, router, http.MethodGet, "/api/sessions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var grouped map[string][]app.SessionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grouped))
	assert.Len(t, grouped["Today"], 2)
}

func TestGetSession(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/sessions", "")
	doJSON(t, router, http.MethodPost, "/api/chat", `{"session_id":1,"message":"hi"}`)

	rec := doJSON(t, router, http.MethodGet, "/api/sessions/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail app.SessionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.EqualValues(t, 1, detail.Session.ID)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "user", detail.Messages[0].Role)
	assert.Equal(t, "assistant", detail.Messages[1].Role)
}

func TestGetSession_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/sessions/99", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Session not found"}`, rec.Body.String())
}

func TestGetLatestSession_CreatesWhenEmpty(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/sessions/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var detail app.SessionDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "New Chat", detail.Session.Title)
	assert.Empty(t, detail.Messages)
}

func TestDeleteSession(t *testing.T) {
	router, _ := newTestRouter(t)

	doJSON(t, router, http.MethodPost, "/api/sessions", "")
	doJSON(t, router, http.MethodPost, "/api/chat", `{"session_id":1,"message":"hi"}`)

	rec := doJSON(t, router, http.MethodDelete, "/api/sessions/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Session deleted"}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodGet, "/api/sessions/1", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteSession_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodDelete, "/api/sessions/7", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
