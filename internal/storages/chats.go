package storage

import (
	"context"
	"database/sql"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/pingit/chat-relay/internal/models"
)

var (
	ErrChatNotFound    = errors.New("chat with provided chat_id does not exist")
	ErrMessageNotFound = errors.New("message with provided message_id does not exist")
)

const (
	ChatsLatestMessageForeignKey = "chats_latest_message_id_fkey"
	MessagesPrimaryKey           = "messages_pkey"
	MessagesChatIdForeignKey     = "messages_chat_id_fkey"
	MessagesSenderIdForeignKey   = "messages_sender_id_fkey"
)

type ChatsStorage struct {
	db Scope
}

func NewChatsStorage(db Scope) *ChatsStorage {
	return &ChatsStorage{
		db: db,
	}
}

func (s *ChatsStorage) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	query, args, err := sq.Select("chat_id", "chat_name", "is_group_chat", "admin_id", "latest_message_id").
		From("chats").
		Where(sq.Eq{"chat_id": chatID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	chat := models.Chat{}
	err = s.db.GetContext(ctx, &chat, query, args...)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrChatNotFound
	} else if err != nil {
		return nil, err
	} else {
		return &chat, nil
	}
}

// GetChatWithMembers returns the chat joined with the full member list,
// each member enriched with name/pic/email.
func (s *ChatsStorage) GetChatWithMembers(ctx context.Context, chatID string) (*models.ChatWithMembers, error) {
	chat, err := s.GetChat(ctx, chatID)

	if err != nil {
		return nil, err
	}

	query, args, err := sq.Select("u.user_id", "u.name", "u.pic", "u.email").
		From("chat_members m").
		Join("users u USING(user_id)").
		Where(sq.Eq{"m.chat_id": chatID}).
		OrderBy("u.user_id").
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return nil, err
	}

	members := make([]models.User, 0)
	err = s.db.SelectContext(ctx, &members, query, args...)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return &models.ChatWithMembers{
		Chat:  *chat,
		Users: members,
	}, nil
}

func (s *ChatsStorage) UserIsMember(ctx context.Context, chatID string, userID string) (bool, error) {
	// Check if chat exists
	_, err := s.GetChat(ctx, chatID)
	if err != nil {
		return false, err
	}

	query, args, err := sq.Select("1").
		From("chat_members").
		Where(sq.Eq{
			"chat_id": chatID,
			"user_id": userID,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return false, err
	}

	ok := false
	row := s.db.QueryRowxContext(ctx, query, args...)
	err = row.Scan(&ok)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	return ok, nil
}

// SetLatestMessage moves the chat's latest-message pointer. Callers only
// invoke it with the message they just inserted, which keeps the pointer
// inside the chat and monotonic.
func (s *ChatsStorage) SetLatestMessage(ctx context.Context, chatID string, messageID string) error {
	query, args, err := sq.Update("chats").
		Set("latest_message_id", messageID).
		Where(sq.Eq{"chat_id": chatID}).
		PlaceholderFormat(sq.Dollar).
		ToSql()

	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, query, args...)

	if GetPgxConstraintName(err) == ChatsLatestMessageForeignKey {
		return ErrMessageNotFound
	} else if err != nil {
		return err
	}

	count, err := res.RowsAffected()

	if err != nil {
		return err
	}

	if count == 0 {
		return ErrChatNotFound
	}

	return nil
}
