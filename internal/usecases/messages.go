package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pingit/chat-relay/internal/models"
	storage "github.com/pingit/chat-relay/internal/storages"
	"github.com/samber/lo"
)

var (
	ErrValidation     = errors.New("validation error")
	ErrMissingContent = fmt.Errorf("%w: content is required", ErrValidation)
	ErrMissingChatID  = fmt.Errorf("%w: chat id is required", ErrValidation)
	ErrInvalidID      = fmt.Errorf("%w: id must be a valid uuid", ErrValidation)
	ErrNotAChatMember = errors.New("sender is not a chat member")
)

// Delivery hands a freshly persisted message to the relay gateway for
// fan-out. Publishing happens server-side, after the transaction commits,
// so clients never broadcast their own payloads.
type Delivery interface {
	Deliver(message *models.RichMessage)
}

type MessagesUsecase struct {
	registry storage.Registry
	delivery Delivery
}

func NewMessagesUsecase(r storage.Registry) *MessagesUsecase {
	return &MessagesUsecase{
		registry: r,
	}
}

// AttachDelivery wires the gateway in after construction. The usecase and
// the hub reference each other, so one side has to be attached late.
func (u *MessagesUsecase) AttachDelivery(d Delivery) {
	u.delivery = d
}

// CreateMessage persists a message and returns it enriched with the sender
// profile and the full chat member list. On success the chat's
// latest-message pointer moves to the new message, a message_sent update is
// published, and the rich message is handed to the delivery publisher.
func (u *MessagesUsecase) CreateMessage(ctx context.Context, senderID, chatID, content string) (*models.RichMessage, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrMissingContent
	}
	if chatID == "" {
		return nil, ErrMissingChatID
	}
	if !ValidateUUID(chatID) || !ValidateUUID(senderID) {
		return nil, ErrInvalidID
	}

	var rich *models.RichMessage

	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		chats := r.GetChatsStore()

		isMember, err := chats.UserIsMember(ctx, chatID, senderID)
		if err != nil {
			return err
		} else if !isMember {
			return ErrNotAChatMember
		}

		now := time.Now().UTC()
		msg := models.Message{
			MessageID: uuid.NewString(),
			ChatID:    chatID,
			SenderID:  senderID,
			Content:   content,
			CreatedAt: now,
		}

		if err = r.GetMessagesStore().PutMessage(ctx, &msg); err != nil {
			return err
		}

		sender, err := r.GetUsersStore().GetUser(ctx, senderID)
		if err != nil {
			return err
		}

		chat, err := chats.GetChatWithMembers(ctx, chatID)
		if err != nil {
			return err
		}

		if err = chats.SetLatestMessage(ctx, chatID, msg.MessageID); err != nil {
			return err
		}
		chat.LatestMessageID = &msg.MessageID

		rich = &models.RichMessage{
			Message: msg,
			Sender:  *sender,
			Chat:    *chat,
		}

		audience := lo.Map(chat.Users, func(member models.User, _ int) string {
			return member.UserID
		})
		return r.GetUpdatesStore().MessageSent(&models.MessageSent{
			UpdateMeta: models.UpdateMeta{
				Timestamp: now,
				Audience:  audience,
			},
			MessageID: msg.MessageID,
			SenderID:  senderID,
			ChatID:    chatID,
			Content:   content,
		})
	})

	if err != nil {
		return nil, err
	}

	if u.delivery != nil {
		u.delivery.Deliver(rich)
	}

	return rich, nil
}

// ListMessages returns all messages of a chat in creation order, each
// enriched the same way CreateMessage enriches its result. A chat with no
// messages yields an empty sequence.
func (u *MessagesUsecase) ListMessages(ctx context.Context, chatID string) ([]models.RichMessage, error) {
	if chatID == "" {
		return nil, ErrMissingChatID
	}
	if !ValidateUUID(chatID) {
		return nil, ErrInvalidID
	}

	rich := make([]models.RichMessage, 0)

	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		chat, err := r.GetChatsStore().GetChatWithMembers(ctx, chatID)
		if err != nil {
			return err
		}

		messages, err := r.GetMessagesStore().GetChatMessages(ctx, chatID)
		if err != nil {
			return err
		}

		senders := lo.SliceToMap(chat.Users, func(member models.User) (string, models.User) {
			return member.UserID, member
		})

		for _, msg := range messages {
			sender, ok := senders[msg.SenderID]
			if !ok {
				// Sender left the member list after posting. Membership is
				// immutable in this service, but the row may predate it.
				fetched, err := r.GetUsersStore().GetUser(ctx, msg.SenderID)
				if err != nil {
					return err
				}
				sender = *fetched
				senders[msg.SenderID] = sender
			}
			rich = append(rich, models.RichMessage{
				Message: msg,
				Sender:  sender,
				Chat:    *chat,
			})
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return rich, nil
}

// GetMessage re-derives the enriched shape of an already persisted message.
// The gateway uses it to verify client-reported broadcasts instead of
// trusting the payload on the wire.
func (u *MessagesUsecase) GetMessage(ctx context.Context, messageID string) (*models.RichMessage, error) {
	if !ValidateUUID(messageID) {
		return nil, ErrInvalidID
	}

	var rich *models.RichMessage

	err := u.registry.Atomic(ctx, func(r storage.Registry) error {
		msg, err := r.GetMessagesStore().GetMessage(ctx, messageID)
		if err != nil {
			return err
		}

		sender, err := r.GetUsersStore().GetUser(ctx, msg.SenderID)
		if err != nil {
			return err
		}

		chat, err := r.GetChatsStore().GetChatWithMembers(ctx, msg.ChatID)
		if err != nil {
			return err
		}

		rich = &models.RichMessage{
			Message: *msg,
			Sender:  *sender,
			Chat:    *chat,
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return rich, nil
}
