package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pingit/chat-relay/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

const (
	chatID  = "694a909e-bec7-4dbe-bf38-935a99d848cc"
	userIDA = "74cccd17-9c56-490b-b721-88c027976863"
	userIDB = "67f85047-09d0-42a2-a5ee-9ce8db28cb07"
)

type ChatsStorageTestSuite struct {
	PostgresTestSuite
}

func (s *ChatsStorageTestSuite) TearDownTest() {
	_, err := s.db.Exec("TRUNCATE messages, chat_members, chats, users CASCADE")
	require.NoError(s.T(), err, "can't teardown test")
}

func TestChatsStorageTestSuite(t *testing.T) {
	if os.Getenv("DB_DSN") == "" {
		t.Skip("DB_DSN is not set")
	}
	suite.Run(t, &ChatsStorageTestSuite{})
}

func (s *ChatsStorageTestSuite) Test_GetChat() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userIDA, userIDB)
	s.seedChat(chatID, userIDA, userIDB)

	store := NewChatsStorage(s.db)
	chat, err := store.GetChat(ctx, chatID)
	assert.NoError(s.T(), err, "should correctly fetch chat")
	assert.Equal(s.T(), chatID, chat.ChatID)
	assert.Nil(s.T(), chat.LatestMessageID, "latest message starts out null")
}

func (s *ChatsStorageTestSuite) Test_GetChat_CorrectErrorIfChatDoesNotExist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewChatsStorage(s.db)
	_, err := store.GetChat(ctx, chatID)
	assert.ErrorIs(s.T(), err, ErrChatNotFound)
}

func (s *ChatsStorageTestSuite) Test_GetChatWithMembers() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userIDA, userIDB)
	s.seedChat(chatID, userIDA, userIDB)

	store := NewChatsStorage(s.db)
	chat, err := store.GetChatWithMembers(ctx, chatID)
	assert.NoError(s.T(), err, "should correctly return chat with members")
	assert.Equal(s.T(), chatID, chat.ChatID)

	require.Len(s.T(), chat.Users, 2, "should contain all chat members")
	ids := []string{chat.Users[0].UserID, chat.Users[1].UserID}
	assert.ElementsMatch(s.T(), []string{userIDA, userIDB}, ids)
	for _, member := range chat.Users {
		assert.NotEmpty(s.T(), member.Name, "members come enriched with profile fields")
		assert.NotEmpty(s.T(), member.Email)
	}
}

func (s *ChatsStorageTestSuite) Test_GetChatWithMembers_CorrectErrorIfChatDoesNotExist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewChatsStorage(s.db)
	_, err := store.GetChatWithMembers(ctx, chatID)
	assert.ErrorIs(s.T(), err, ErrChatNotFound)
}

func (s *ChatsStorageTestSuite) Test_UserIsMember() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	const userIDNotMember = "253becbb-76b1-4471-9ff3-529462925899"
	s.seedUsers(userIDA, userIDB, userIDNotMember)
	s.seedChat(chatID, userIDA, userIDB)

	store := NewChatsStorage(s.db)

	isMember, err := store.UserIsMember(ctx, chatID, userIDA)
	assert.NoError(s.T(), err, "should return no error")
	assert.True(s.T(), isMember, "user is member")

	isMember, err = store.UserIsMember(ctx, chatID, userIDNotMember)
	assert.NoError(s.T(), err, "should return no error")
	assert.False(s.T(), isMember, "user is not member")
}

// cancelAfterGetScope cancels the context once the first GetContext call
// returns, so the query after it runs against a dead context.
type cancelAfterGetScope struct {
	Scope
	cancel context.CancelFunc
}

func (c *cancelAfterGetScope) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	err := c.Scope.GetContext(ctx, dest, query, args...)
	c.cancel()
	return err
}

func (s *ChatsStorageTestSuite) Test_UserIsMember_PropagatesQueryFailure() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.seedUsers(userIDA, userIDB)
	s.seedChat(chatID, userIDA, userIDB)

	store := NewChatsStorage(&cancelAfterGetScope{Scope: s.db, cancel: cancel})
	_, err := store.UserIsMember(ctx, chatID, userIDA)
	assert.Error(s.T(), err, "a failed membership query is a fault, not a verdict")
	assert.NotErrorIs(s.T(), err, ErrChatNotFound)
}

func (s *ChatsStorageTestSuite) Test_UserIsMember_IfChatNotExist() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewChatsStorage(s.db)
	_, err := store.UserIsMember(ctx, chatID, userIDA)
	assert.ErrorIs(s.T(), err, ErrChatNotFound)
}

func (s *ChatsStorageTestSuite) Test_SetLatestMessage() {
	const messageID = "256e3354-8263-4913-8bdd-345bd04d962e"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.seedUsers(userIDA, userIDB)
	s.seedChat(chatID, userIDA, userIDB)

	messages := NewMessagesStorage(s.db)
	err := messages.PutMessage(ctx, &models.Message{
		MessageID: messageID,
		ChatID:    chatID,
		SenderID:  userIDA,
		Content:   "Hello, world!",
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(s.T(), err, "should correctly put message")

	store := NewChatsStorage(s.db)
	err = store.SetLatestMessage(ctx, chatID, messageID)
	assert.NoError(s.T(), err, "should correctly move the latest-message pointer")

	chat, err := store.GetChat(ctx, chatID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), chat.LatestMessageID)
	assert.Equal(s.T(), messageID, *chat.LatestMessageID)
}

func (s *ChatsStorageTestSuite) Test_SetLatestMessage_CorrectErrorIfChatDoesNotExist() {
	const messageID = "256e3354-8263-4913-8bdd-345bd04d962e"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := NewChatsStorage(s.db)
	err := store.SetLatestMessage(ctx, chatID, messageID)
	assert.ErrorIs(s.T(), err, ErrChatNotFound)
}
