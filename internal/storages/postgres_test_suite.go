package storage

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// PostgresTestSuite runs storage tests against a real database described by
// DB_DSN. Entry points skip the whole suite when DB_DSN is unset.
type PostgresTestSuite struct {
	suite.Suite
	db *sqlx.DB
	m  *migrate.Migrate
}

func (s *PostgresTestSuite) SetupSuite() {
	var err error
	viper.AutomaticEnv()
	dbDsn := viper.GetString("DB_DSN")
	migrationsDsn := viper.GetString("MIGRATIONS_DSN")
	migrationsDir := viper.GetString("MIGRATIONS_DIR")

	s.db, err = sqlx.Connect("pgx", dbDsn)
	require.NoError(s.T(), err, "failed to connect to database")

	s.m, err = migrate.New(migrationsDir, migrationsDsn)

	require.NoError(s.T(), err, "failed to open migrations")

	err = s.m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(s.T(), err, "failed to migrate database")
	}
}

func (s *PostgresTestSuite) TearDownSuite() {
	_ = s.m.Down()
	_ = s.db.Close()
}

func (s *PostgresTestSuite) seedUsers(users ...string) {
	for _, id := range users {
		_, err := s.db.Exec(
			"INSERT INTO users(user_id, name, pic, email) VALUES ($1, $2, $3, $4)",
			id, "user "+id[:8], "https://example.com/pic.png", id[:8]+"@example.com",
		)
		require.NoError(s.T(), err, "can't seed user")
	}
}

func (s *PostgresTestSuite) seedChat(chatID string, members ...string) {
	_, err := s.db.Exec(
		"INSERT INTO chats(chat_id, is_group_chat) VALUES ($1, $2)",
		chatID, len(members) > 2,
	)
	require.NoError(s.T(), err, "can't seed chat")
	for _, id := range members {
		_, err := s.db.Exec(
			"INSERT INTO chat_members(chat_id, user_id) VALUES ($1, $2)",
			chatID, id,
		)
		require.NoError(s.T(), err, "can't seed chat member")
	}
}
