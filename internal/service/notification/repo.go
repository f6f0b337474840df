package notification

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/XuanDongVo/Rental-Home-sub001/internal/repository"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/json"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Store is the persistence contract the notification service depends on.
type Store interface {
	Create(ctx context.Context, n *Notification) (*Notification, error)
	GetByID(ctx context.Context, id int64) (*Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*Notification, error)
	MarkRead(ctx context.Context, id int64, recipientID string) (bool, error)
	MarkAllRead(ctx context.Context, recipientID string) (int64, error)
	DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Repository handles operations on the notifications table.
type Repository struct {
	*repository.BaseRepository
}

func NewRepository(db *sql.DB, log *zap.Logger) *Repository {
	return &Repository{
		BaseRepository: repository.NewBaseRepository(db, log),
	}
}

// Create inserts a new notification record.
func (r *Repository) Create(ctx context.Context, n *Notification) (*Notification, error) {
	var payloadJSON []byte
	if n.Payload != nil {
		var err error
		payloadJSON, err = json.Marshal(n.Payload)
		if err != nil {
			return nil, err
		}
	}
	query := `INSERT INTO notifications (recipient_id, type, title, message, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err := r.GetDB().QueryRowContext(ctx, query,
		n.RecipientID, n.Type, n.Title, n.Message, payloadJSON,
	).Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// GetByID retrieves a notification by ID.
func (r *Repository) GetByID(ctx context.Context, id int64) (*Notification, error) {
	n := &Notification{}
	var payloadJSON []byte
	query := `SELECT id, recipient_id, type, title, message, payload, is_read, created_at
		FROM notifications WHERE id = $1`
	err := r.GetDB().QueryRowContext(ctx, query, id).Scan(
		&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &payloadJSON, &n.IsRead, &n.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	if len(payloadJSON) > 0 {
		if err := json.Unmarshal(payloadJSON, &n.Payload); err != nil {
			r.GetLogger().Warn("failed to unmarshal notification payload",
				zap.Int64("id", n.ID), zap.Error(err))
		}
	}
	return n, nil
}

// ListByRecipient retrieves the recipient's notifications, newest first.
func (r *Repository) ListByRecipient(ctx context.Context, recipientID string, limit int) ([]*Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, recipient_id, type, title, message, payload, is_read, created_at
		FROM notifications WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`
	rows, err := r.GetDB().QueryContext(ctx, query, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var notifications []*Notification
	for rows.Next() {
		n := &Notification{}
		var payloadJSON []byte
		err := rows.Scan(&n.ID, &n.RecipientID, &n.Type, &n.Title, &n.Message, &payloadJSON, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		if len(payloadJSON) > 0 {
			if err := json.Unmarshal(payloadJSON, &n.Payload); err != nil {
				r.GetLogger().Warn("failed to unmarshal notification payload",
					zap.Int64("id", n.ID), zap.Error(err))
			}
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkRead sets the read flag for a single notification owned by recipientID.
// Returns false when no row matched both id and recipient.
func (r *Repository) MarkRead(ctx context.Context, id int64, recipientID string) (bool, error) {
	result, err := r.GetDB().ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND recipient_id = $2`,
		id, recipientID)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// MarkAllRead sets the read flag on all of the recipient's unread
// notifications and returns the number updated. Idempotent.
func (r *Repository) MarkAllRead(ctx context.Context, recipientID string) (int64, error) {
	result, err := r.GetDB().ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE recipient_id = $1 AND NOT is_read`,
		recipientID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteReadOlderThan removes read notifications created before the cutoff.
func (r *Repository) DeleteReadOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.GetDB().ExecContext(ctx,
		`DELETE FROM notifications WHERE is_read AND created_at < $1`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
