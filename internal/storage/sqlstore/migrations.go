package sqlstore

import (
	"context"
	"fmt"
)

type dialect struct {
	driver    string
	serialKey string
	timestamp string
}

var (
	postgresDialect = dialect{
		driver:    "postgres",
		serialKey: "BIGSERIAL PRIMARY KEY",
		timestamp: "TIMESTAMPTZ",
	}
	sqliteDialect = dialect{
		driver:    "sqlite3",
		serialKey: "INTEGER PRIMARY KEY AUTOINCREMENT",
		timestamp: "DATETIME",
	}
)

func (d dialect) migrations() []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS direct_messages (
			seq %s,
			message_id VARCHAR(64) NOT NULL UNIQUE,
			conversation_key VARCHAR(512) NOT NULL,
			sender_id VARCHAR(255) NOT NULL,
			sender_username VARCHAR(255) NOT NULL DEFAULT '',
			recipient_id VARCHAR(255) NOT NULL,
			content TEXT NOT NULL,
			created_at %s NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE
		)`, d.serialKey, d.timestamp),

		`CREATE INDEX IF NOT EXISTS idx_direct_conversation
		ON direct_messages(conversation_key, created_at)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chat_groups (
			group_id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			created_by VARCHAR(255) NOT NULL,
			created_at %s NOT NULL
		)`, d.timestamp),

		`CREATE TABLE IF NOT EXISTS chat_group_members (
			group_id VARCHAR(64) NOT NULL,
			user_id VARCHAR(255) NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (group_id, user_id),
			FOREIGN KEY (group_id) REFERENCES chat_groups(group_id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_group_members_user
		ON chat_group_members(user_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS group_messages (
			seq %s,
			message_id VARCHAR(64) NOT NULL UNIQUE,
			group_id VARCHAR(64) NOT NULL,
			sender_id VARCHAR(255) NOT NULL,
			sender_username VARCHAR(255) NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			created_at %s NOT NULL,
			is_read BOOLEAN NOT NULL DEFAULT FALSE,
			FOREIGN KEY (group_id) REFERENCES chat_groups(group_id) ON DELETE CASCADE
		)`, d.serialKey, d.timestamp),

		`CREATE INDEX IF NOT EXISTS idx_group_messages
		ON group_messages(group_id, created_at)`,
	}
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.migrations() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
