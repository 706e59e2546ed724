package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"messaging-service/internal/models"
)

var ErrChatNotFound = errors.New("chat not found")

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, creatorID string, participantIDs []string, name string) (models.Chat, error)
	FindDirectChat(ctx context.Context, userA, userB string) (models.Chat, error)
	GetChat(ctx context.Context, chatID string) (models.Chat, error)
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
	ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error)
	ListParticipants(ctx context.Context, chatID string) ([]models.User, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// directKey is the canonical unordered pair key for a direct chat.
func directKey(userA, userB string) string {
	pair := []string{userA, userB}
	sort.Strings(pair)
	return strings.Join(pair, ":")
}

// CreateChat creates a chat and its participant edges in one transaction.
// A chat is a group when the creator names it or invites more than one other
// participant. Every participant must exist or nothing is written. For direct
// chats the unique direct_key closes the check-then-act race: if another
// request created the same pair first, that chat is returned instead.
func (r *ChatRepo) CreateChat(ctx context.Context, creatorID string, participantIDs []string, name string) (models.Chat, error) {
	isGroup := len(participantIDs) > 1 || name != ""

	now := time.Now().UTC()
	chat := models.Chat{
		ID:        uuid.NewString(),
		IsGroup:   isGroup,
		CreatedAt: now,
	}
	if isGroup && name != "" {
		chat.Name = &name
	}
	if !isGroup {
		key := directKey(creatorID, participantIDs[0])
		chat.DirectKey = &key
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, r.db.Rebind(
		`INSERT INTO chats (id, name, is_group, created_at, direct_key) VALUES (?, ?, ?, ?, ?)`),
		chat.ID, chat.Name, chat.IsGroup, chat.CreatedAt, chat.DirectKey)
	if err != nil {
		if chat.DirectKey != nil && isUniqueViolation(err) {
			tx.Rollback()
			err = nil
			return r.FindDirectChat(ctx, creatorID, participantIDs[0])
		}
		return models.Chat{}, err
	}

	// creator plus deduped invitees
	memberSet := map[string]struct{}{creatorID: {}}
	for _, id := range participantIDs {
		memberSet[id] = struct{}{}
	}
	ids := make([]string, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var exists bool
		if err = tx.GetContext(ctx, &exists, r.db.Rebind(`SELECT EXISTS(SELECT 1 FROM users WHERE id=?)`), id); err != nil {
			return models.Chat{}, err
		}
		if !exists {
			err = fmt.Errorf("participant %s: %w", id, ErrUserNotFound)
			return models.Chat{}, err
		}
		if _, err = tx.ExecContext(ctx, r.db.Rebind(
			`INSERT INTO chat_participants (chat_id, user_id, joined_at) VALUES (?, ?, ?)`),
			chat.ID, id, now); err != nil {
			return models.Chat{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Chat{}, err
	}
	return chat, nil
}

// FindDirectChat returns the non-group chat whose participant set is exactly
// {userA, userB}. The lookup is symmetric and keyed on the canonical pair.
func (r *ChatRepo) FindDirectChat(ctx context.Context, userA, userB string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, r.db.Rebind(
		`SELECT id, name, is_group, created_at, direct_key FROM chats WHERE direct_key=?`), directKey(userA, userB))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID string) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, r.db.Rebind(
		`SELECT id, name, is_group, created_at, direct_key FROM chats WHERE id=?`), chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// IsParticipant checks whether a user holds a membership edge in the chat.
func (r *ChatRepo) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, r.db.Rebind(
		`SELECT EXISTS(SELECT 1 FROM chat_participants WHERE chat_id=? AND user_id=?)`), chatID, userID)
	return exists, err
}

// ListChatsForUser returns every chat the user participates in.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats, r.db.Rebind(
		`SELECT c.id, c.name, c.is_group, c.created_at, c.direct_key FROM chats c
         INNER JOIN chat_participants cp ON cp.chat_id = c.id
         WHERE cp.user_id=? ORDER BY c.created_at DESC`), userID)
	return chats, err
}

// ListParticipants returns the users in a chat.
func (r *ChatRepo) ListParticipants(ctx context.Context, chatID string) ([]models.User, error) {
	var users []models.User
	err := r.db.SelectContext(ctx, &users, r.db.Rebind(
		`SELECT u.id, u.username, u.wallet_address, u.public_key, u.created_at, u.last_seen FROM users u
         INNER JOIN chat_participants cp ON cp.user_id = u.id
         WHERE cp.chat_id=? ORDER BY cp.joined_at ASC, u.id ASC`), chatID)
	return users, err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
