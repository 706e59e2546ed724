package repositories

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository is the append-only ledger of per-recipient delivery
// records.
type MessageRepository interface {
	CreateFanout(ctx context.Context, senderID string, recipientIDs []string, encryptedContent string, blobHash *string) ([]models.Message, error)
	ListForUser(ctx context.Context, userID string) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	MarkRead(ctx context.Context, messageID, recipientID string) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateFanout writes one ledger row per recipient, all carrying the same
// content and timestamp, in a single transaction. Either every row commits or
// none does. Returned rows follow recipient order.
func (r *MessageRepo) CreateFanout(ctx context.Context, senderID string, recipientIDs []string, encryptedContent string, blobHash *string) ([]models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	msgs := make([]models.Message, 0, len(recipientIDs))
	for _, recipientID := range recipientIDs {
		msg := models.Message{
			ID:               uuid.NewString(),
			SenderID:         senderID,
			RecipientID:      recipientID,
			EncryptedContent: encryptedContent,
			BlobHash:         blobHash,
			CreatedAt:        now,
		}
		if _, err = tx.ExecContext(ctx, r.db.Rebind(
			`INSERT INTO messages (id, sender_id, recipient_id, encrypted_content, ipfs_hash, created_at, read) VALUES (?, ?, ?, ?, ?, ?, ?)`),
			msg.ID, msg.SenderID, msg.RecipientID, msg.EncryptedContent, msg.BlobHash, msg.CreatedAt, msg.Read); err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return msgs, nil
}

// ListForUser returns every row where the user is sender or recipient,
// oldest first. Rows carry no chat identifier, so this is the user's whole
// inbox rather than a per-chat slice.
func (r *MessageRepo) ListForUser(ctx context.Context, userID string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, r.db.Rebind(
		`SELECT id, sender_id, recipient_id, encrypted_content, ipfs_hash, created_at, read FROM messages
         WHERE sender_id=? OR recipient_id=? ORDER BY created_at ASC, id ASC`), userID, userID)
	return msgs, err
}

// GetMessage retrieves a single ledger row.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, r.db.Rebind(
		`SELECT id, sender_id, recipient_id, encrypted_content, ipfs_hash, created_at, read FROM messages WHERE id=?`), messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// MarkRead flips the read flag. Only the recipient's own row matches.
func (r *MessageRepo) MarkRead(ctx context.Context, messageID, recipientID string) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(
		`UPDATE messages SET read=TRUE WHERE id=? AND recipient_id=?`), messageID, recipientID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}
