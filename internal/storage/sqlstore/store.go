// Package sqlstore persists chat data in PostgreSQL or SQLite through
// database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Tyrowin/nexus-chat-server/internal/models"
	"github.com/Tyrowin/nexus-chat-server/internal/storage"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Store is a storage.Gateway over a SQL database.
type Store struct {
	db      *sql.DB
	dialect dialect
}

var _ storage.Gateway = (*Store)(nil)

// Open connects to the database, verifies it is reachable and runs the
// migrations. driver is "postgres" or "sqlite"/"sqlite3".
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var d dialect
	switch driver {
	case "postgres", "postgresql":
		d = postgresDialect
	case "sqlite", "sqlite3":
		d = sqliteDialect
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.driver, err)
	}
	if d.driver == sqliteDialect.driver {
		// SQLite allows a single writer; serialise through one connection.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.driver, err)
	}

	s := &Store{db: db, dialect: d}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) AppendDirect(ctx context.Context, msg models.DirectMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO direct_messages
		(message_id, conversation_key, sender_id, sender_username, recipient_id, content, created_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		msg.MessageID, storage.ConversationKey(msg.From, msg.To), string(msg.From), msg.FromUsername,
		string(msg.To), msg.Content, msg.Timestamp.UTC(), msg.Read)
	if err != nil {
		return fmt.Errorf("insert direct message: %w", err)
	}
	return nil
}

func (s *Store) AppendGroup(ctx context.Context, msg models.GroupMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_messages
		(message_id, group_id, sender_id, sender_username, content, created_at, is_read)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.MessageID, msg.GroupID, string(msg.From), msg.FromUsername, msg.Content, msg.Timestamp.UTC(), msg.Read)
	if err != nil {
		return fmt.Errorf("insert group message: %w", err)
	}
	return nil
}

func (s *Store) QueryDirect(ctx context.Context, user1, user2 models.UserID) ([]models.DirectMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, sender_id, sender_username, recipient_id, content, created_at, is_read
		FROM direct_messages
		WHERE conversation_key = $1
		AND ((sender_id = $2 AND recipient_id = $3) OR (sender_id = $3 AND recipient_id = $2))
		ORDER BY created_at ASC, seq ASC`,
		storage.ConversationKey(user1, user2), string(user1), string(user2))
	if err != nil {
		return nil, fmt.Errorf("query direct messages: %w", err)
	}
	defer rows.Close()

	messages := []models.DirectMessage{}
	for rows.Next() {
		var (
			msg      models.DirectMessage
			from, to string
		)
		if err := rows.Scan(&msg.MessageID, &from, &msg.FromUsername, &to, &msg.Content, &msg.Timestamp, &msg.Read); err != nil {
			return nil, fmt.Errorf("scan direct message: %w", err)
		}
		msg.From, msg.To = models.UserID(from), models.UserID(to)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(messages, func(i, j int) bool { return messages[i].Timestamp.Before(messages[j].Timestamp) })
	return messages, nil
}

func (s *Store) QueryGroup(ctx context.Context, groupID string) ([]models.GroupMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, group_id, sender_id, sender_username, content, created_at, is_read
		FROM group_messages
		WHERE group_id = $1
		ORDER BY created_at ASC, seq ASC`,
		groupID)
	if err != nil {
		return nil, fmt.Errorf("query group messages: %w", err)
	}
	defer rows.Close()

	messages := []models.GroupMessage{}
	for rows.Next() {
		var (
			msg  models.GroupMessage
			from string
		)
		if err := rows.Scan(&msg.MessageID, &msg.GroupID, &from, &msg.FromUsername, &msg.Content, &msg.Timestamp, &msg.Read); err != nil {
			return nil, fmt.Errorf("scan group message: %w", err)
		}
		msg.From = models.UserID(from)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(messages, func(i, j int) bool { return messages[i].Timestamp.Before(messages[j].Timestamp) })
	return messages, nil
}

func (s *Store) CreateGroup(ctx context.Context, group models.Group) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chat_groups (group_id, name, created_by, created_at)
		VALUES ($1, $2, $3, $4)`,
		group.GroupID, group.Name, string(group.CreatedBy), group.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	for i, member := range group.Members {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO chat_group_members (group_id, user_id, position)
			VALUES ($1, $2, $3)`,
			group.GroupID, string(member), i)
		if err != nil {
			return fmt.Errorf("insert group member: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	var (
		group     models.Group
		createdBy string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT group_id, name, created_by, created_at
		FROM chat_groups
		WHERE group_id = $1`, groupID).Scan(&group.GroupID, &group.Name, &createdBy, &group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	group.CreatedBy = models.UserID(createdBy)

	members, err := s.groupMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}
	group.Members = members
	return &group, nil
}

func (s *Store) GetGroupsForUser(ctx context.Context, userID models.UserID) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT g.group_id, g.name, g.created_by, g.created_at
		FROM chat_groups g
		JOIN chat_group_members m ON m.group_id = g.group_id
		WHERE m.user_id = $1
		ORDER BY g.created_at ASC, g.group_id ASC`, string(userID))
	if err != nil {
		return nil, fmt.Errorf("query user groups: %w", err)
	}

	groups := []models.Group{}
	for rows.Next() {
		var (
			group     models.Group
			createdBy string
			createdAt time.Time
		)
		if err := rows.Scan(&group.GroupID, &group.Name, &createdBy, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan group: %w", err)
		}
		group.CreatedBy = models.UserID(createdBy)
		group.CreatedAt = createdAt
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before the member lookups; SQLite runs with a
	// single open connection.
	rows.Close()

	for i := range groups {
		members, err := s.groupMembers(ctx, groups[i].GroupID)
		if err != nil {
			return nil, err
		}
		groups[i].Members = members
	}
	return groups, nil
}

func (s *Store) groupMembers(ctx context.Context, groupID string) ([]models.UserID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM chat_group_members
		WHERE group_id = $1
		ORDER BY position ASC`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group members: %w", err)
	}
	defer rows.Close()

	members := []models.UserID{}
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		members = append(members, models.UserID(userID))
	}
	return members, rows.Err()
}
