package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pingit/chat-relay/internal/models"
	storage "github.com/pingit/chat-relay/internal/storages"
	usecase "github.com/pingit/chat-relay/internal/usecases"
	"github.com/sirupsen/logrus"
)

// Messages is the slice of the usecase the HTTP layer needs.
type Messages interface {
	ListMessages(ctx context.Context, chatID string) ([]models.RichMessage, error)
	CreateMessage(ctx context.Context, senderID, chatID, content string) (*models.RichMessage, error)
}

type MessageServer struct {
	messages Messages
	validate *validator.Validate
	log      *logrus.Logger
}

func NewMessageServer(m Messages, v *validator.Validate, log *logrus.Logger) *MessageServer {
	return &MessageServer{
		messages: m,
		validate: v,
		log:      log,
	}
}

type SendMessageRequest struct {
	Content string `json:"content" validate:"required"`
	ChatID  string `json:"chatId" validate:"required,uuid"`
}

func (s *MessageServer) ListMessages(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("chatId")

	messages, err := s.messages.ListMessages(r.Context(), chatID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, messages)
}

func (s *MessageServer) SendMessage(w http.ResponseWriter, r *http.Request) {
	claims, ok := UserFromContext(r.Context())
	if !ok {
		s.writeJSON(w, http.StatusUnauthorized, errorBody{Message: "authentication required"})
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Message: "invalid request body"})
		return
	}

	if err := s.validate.Struct(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
		return
	}

	message, err := s.messages.CreateMessage(r.Context(), claims.UserID, req.ChatID, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, message)
}

func (s *MessageServer) Health(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Server is running",
	})
}

type errorBody struct {
	Message string `json:"message"`
}

// Client mistakes map to 400, everything else is a server fault. Nothing is
// retried; persistence and delivery are attempted once per request.
func (s *MessageServer) writeError(w http.ResponseWriter, err error) {
	clientErrors := []error{
		usecase.ErrValidation,
		usecase.ErrNotAChatMember,
		storage.ErrChatNotFound,
		storage.ErrMessageNotFound,
		storage.ErrUserNotFound,
	}

	for _, clientErr := range clientErrors {
		if errors.Is(err, clientErr) {
			s.writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
			return
		}
	}

	s.log.WithError(err).Error("request failed")
	s.writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal server error"})
}

func (s *MessageServer) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.log.WithError(err).Error("can't encode response body")
	}
}
