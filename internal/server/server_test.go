package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pingit/chat-relay/internal/models"
	"github.com/pingit/chat-relay/internal/realtime"
	storage "github.com/pingit/chat-relay/internal/storages"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret = "test-secret"
	testChatID = "694a909e-bec7-4dbe-bf38-935a99d848cc"
	testUserID = "74cccd17-9c56-490b-b721-88c027976863"
)

type stubMessages struct {
	listResult   []models.RichMessage
	listErr      error
	createResult *models.RichMessage
	createErr    error

	createdSender  string
	createdChatID  string
	createdContent string
}

func (s *stubMessages) ListMessages(_ context.Context, _ string) ([]models.RichMessage, error) {
	return s.listResult, s.listErr
}

func (s *stubMessages) CreateMessage(_ context.Context, senderID, chatID, content string) (*models.RichMessage, error) {
	s.createdSender = senderID
	s.createdChatID = chatID
	s.createdContent = content
	return s.createResult, s.createErr
}

func newTestRouter(t *testing.T, stub *stubMessages) http.Handler {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	ms := NewMessageServer(stub, validator.New(), log)
	hub := realtime.NewHub(log, nil, nil)
	return NewRouter(ms, hub, NewVerifier(testSecret), []string{"http://localhost:3000"})
}

func signToken(t *testing.T, secret string) string {
	t.Helper()
	claims := &UserClaims{
		UserID: testUserID,
		Name:   "alice",
		Email:  "alice@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func Test_SendMessage_RequiresToken(t *testing.T) {
	router := newTestRouter(t, &stubMessages{})

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_SendMessage_RejectsForeignToken(t *testing.T) {
	router := newTestRouter(t, &stubMessages{})

	req := httptest.NewRequest(http.MethodPost, "/api/message", strings.NewReader(`{}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_SendMessage_MissingContent(t *testing.T) {
	stub := &stubMessages{}
	router := newTestRouter(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"chatId":"`+testChatID+`"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, stub.createdChatID, "nothing reaches the usecase")
}

func Test_SendMessage_MissingChatID(t *testing.T) {
	router := newTestRouter(t, &stubMessages{})

	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"content":"hi"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_SendMessage_Success(t *testing.T) {
	rich := &models.RichMessage{
		Message: models.Message{MessageID: "256e3354-8263-4913-8bdd-345bd04d962e", Content: "hi"},
		Sender:  models.User{UserID: testUserID, Name: "alice"},
		Chat: models.ChatWithMembers{
			Chat:  models.Chat{ChatID: testChatID},
			Users: []models.User{{UserID: testUserID, Name: "alice"}},
		},
	}
	stub := &stubMessages{createResult: rich}
	router := newTestRouter(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"content":"hi","chatId":"`+testChatID+`"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID, stub.createdSender, "sender comes from the token, not the body")
	assert.Equal(t, testChatID, stub.createdChatID)
	assert.Equal(t, "hi", stub.createdContent)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, rich.MessageID, body["_id"])
	sender := body["sender"].(map[string]interface{})
	assert.Equal(t, "alice", sender["name"])
	chat := body["chat"].(map[string]interface{})
	assert.Len(t, chat["users"], 1, "the enriched chat ships its member list")
}

func Test_SendMessage_UnknownChat(t *testing.T) {
	stub := &stubMessages{createErr: storage.ErrChatNotFound}
	router := newTestRouter(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/message",
		strings.NewReader(`{"content":"hi","chatId":"`+testChatID+`"}`))
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_ListMessages_EmptyChat(t *testing.T) {
	stub := &stubMessages{listResult: []models.RichMessage{}}
	router := newTestRouter(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/api/message/"+testChatID, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String(), "an empty chat returns an empty array")
}

func Test_ListMessages_StoreFailure(t *testing.T) {
	stub := &stubMessages{listErr: errors.New("connection refused")}
	router := newTestRouter(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/api/message/"+testChatID, nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func Test_Health(t *testing.T) {
	router := newTestRouter(t, &stubMessages{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func Test_CORS_AllowedOrigin(t *testing.T) {
	router := newTestRouter(t, &stubMessages{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func Test_CORS_DisallowedOrigin(t *testing.T) {
	router := newTestRouter(t, &stubMessages{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func Test_CORS_Preflight(t *testing.T) {
	router := newTestRouter(t, &stubMessages{})

	req := httptest.NewRequest(http.MethodOptions, "/api/message", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}
