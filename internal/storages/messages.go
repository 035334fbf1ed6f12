package storage

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/pingit/chat-relay/internal/models"
)

var ErrMessageAlreadyExists = errors.New("message with provided message_id already exists")

type MessagesStorage struct {
	db Scope
}

func NewMessagesStorage(db Scope) *MessagesStorage {
	return &MessagesStorage{
		db: db,
	}
}

func (s *MessagesStorage) PutMessage(ctx context.Context, message *models.Message) error {
	query, args, err := sq.Insert("messages").
		Columns("message_id", "chat_id", "sender_id", "content", "created_at").
		Values(message.MessageID, message.ChatID, message.SenderID, message.Content, message.CreatedAt).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, query, args...)

	if GetPgxConstraintName(err) == MessagesChatIdForeignKey {
		return ErrChatNotFound
	} else if GetPgxConstraintName(err) == MessagesSenderIdForeignKey {
		return ErrUserNotFound
	} else if GetPgxConstraintName(err) == MessagesPrimaryKey {
		return ErrMessageAlreadyExists
	} else if err != nil {
		return err
	}

	return nil
}

func (s *MessagesStorage) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	query, args, err := sq.Select("message_id", "chat_id", "sender_id", "content", "created_at").
		From("messages").
		Where(sq.Eq{"message_id": messageID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	msg := models.Message{}
	err = s.db.GetContext(ctx, &msg, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrMessageNotFound
	} else if err != nil {
		return nil, err
	} else {
		return &msg, nil
	}
}

// GetChatMessages returns all messages of a chat ordered by creation time.
// A chat with no messages yields an empty slice, not an error.
func (s *MessagesStorage) GetChatMessages(ctx context.Context, chatID string) ([]models.Message, error) {
	query, args, err := sq.Select("message_id", "chat_id", "sender_id", "content", "created_at").
		From("messages").
		Where(sq.Eq{"chat_id": chatID}).
		OrderBy("created_at ASC", "message_id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0)
	err = s.db.SelectContext(ctx, &messages, query, args...)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return messages, nil
}
