package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Shopify/sarama"
	"github.com/pingit/chat-relay/internal/models"
	"github.com/jmoiron/sqlx"
)

type AtomicFunc func(Registry) error

// Registry hands out the individual stores and scopes them to a transaction
// inside Atomic. Stores are returned as interfaces so the usecase layer can
// run against an in-memory fake.
type Registry interface {
	Atomic(ctx context.Context, fn AtomicFunc) error
	GetUsersStore() UsersStore
	GetChatsStore() ChatsStore
	GetMessagesStore() MessagesStore
	GetUpdatesStore() UpdatesStore
}

type UsersStore interface {
	GetUser(ctx context.Context, userID string) (*models.User, error)
}

type ChatsStore interface {
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	GetChatWithMembers(ctx context.Context, chatID string) (*models.ChatWithMembers, error)
	UserIsMember(ctx context.Context, chatID string, userID string) (bool, error)
	SetLatestMessage(ctx context.Context, chatID string, messageID string) error
}

type MessagesStore interface {
	PutMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	GetChatMessages(ctx context.Context, chatID string) ([]models.Message, error)
}

type UpdatesStore interface {
	MessageSent(update *models.MessageSent) error
}

type DefaultRegistry struct {
	db       *sqlx.DB
	scope    Scope
	producer sarama.SyncProducer
	cfg      *UpdatesStoreConfig
}

type Scope interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
	sqlx.Execer
	sqlx.Queryer
	Get(dest interface{}, query string, args ...interface{}) error
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	NamedExec(query string, arg interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	NamedQuery(query string, arg interface{}) (*sqlx.Rows, error)
}

// NewRegistry builds the default Postgres-backed registry. The producer may
// be nil, in which case the updates stream is disabled.
func NewRegistry(db *sqlx.DB, p sarama.SyncProducer, cfg *UpdatesStoreConfig) *DefaultRegistry {
	return &DefaultRegistry{
		db:       db,
		scope:    db,
		producer: p,
		cfg:      cfg,
	}
}

func (r *DefaultRegistry) Atomic(ctx context.Context, fn AtomicFunc) (err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				err = fmt.Errorf("rollback caused by error: \"%v\" failed: %v", err, rbErr)
			}
		} else {
			err = tx.Commit()
		}
	}()

	scoped := DefaultRegistry{
		db:       r.db,
		scope:    tx,
		producer: r.producer,
		cfg:      r.cfg,
	}
	err = fn(&scoped)
	return err
}

func (r *DefaultRegistry) GetUsersStore() UsersStore {
	return NewUsersStorage(r.scope)
}

func (r *DefaultRegistry) GetChatsStore() ChatsStore {
	return NewChatsStorage(r.scope)
}

func (r *DefaultRegistry) GetMessagesStore() MessagesStore {
	return NewMessagesStorage(r.scope)
}

func (r *DefaultRegistry) GetUpdatesStore() UpdatesStore {
	return NewUpdatesStore(r.producer, r.cfg)
}
