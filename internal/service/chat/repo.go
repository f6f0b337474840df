package chat

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/XuanDongVo/Rental-Home-sub001/internal/repository"
)

var (
	ErrMessageNotFound      = errors.New("message not found")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrMessageRecalled      = errors.New("message is recalled")
)

// Store is the persistence contract the chat service depends on.
type Store interface {
	ResolveOrCreate(ctx context.Context, userA, userB string) (*Conversation, error)
	GetConversation(ctx context.Context, id int64) (*Conversation, error)
	GetConversationByPair(ctx context.Context, userA, userB string) (*Conversation, error)
	CreateMessage(ctx context.Context, conversationID int64, senderID, content string) (*Message, error)
	GetMessage(ctx context.Context, id int64) (*Message, error)
	EditMessage(ctx context.Context, id int64, newContent string) (*Message, error)
	RecallMessage(ctx context.Context, id int64) (*Message, error)
	DeleteForUser(ctx context.Context, id int64, userID string) (*Message, error)
	MarkConversationRead(ctx context.Context, conversationID int64, readerID string) (int64, error)
	ListMessages(ctx context.Context, conversationID int64, readerID string) ([]*Message, error)
	ListEdits(ctx context.Context, messageID int64) ([]MessageEdit, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	ListConversationSummaries(ctx context.Context, userID string) ([]*ConversationSummary, error)
}

// Repository handles operations on the chat tables.
type Repository struct {
	*repository.BaseRepository
}

func NewRepository(db *sql.DB, log *zap.Logger) *Repository {
	return &Repository{
		BaseRepository: repository.NewBaseRepository(db, log),
	}
}

const messageColumns = `id, conversation_id, sender_id, content, status, is_read, is_edited, is_recalled, deleted_for, created_at, updated_at`

func scanMessage(row interface {
	Scan(dest ...interface{}) error
}) (*Message, error) {
	msg := &Message{}
	err := row.Scan(
		&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Status,
		&msg.IsRead, &msg.IsEdited, &msg.IsRecalled, pq.Array(&msg.DeletedFor),
		&msg.CreatedAt, &msg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ResolveOrCreate atomically resolves the conversation for an unordered pair,
// creating it on first contact. The unique constraint on the sorted pair makes
// concurrent first contact collapse onto one row.
func (r *Repository) ResolveOrCreate(ctx context.Context, userA, userB string) (*Conversation, error) {
	low, high := CanonicalPair(userA, userB)
	conv := &Conversation{}
	query := `INSERT INTO chat_conversations (participant_low, participant_high)
		VALUES ($1, $2)
		ON CONFLICT (participant_low, participant_high)
		DO UPDATE SET last_message_at = NOW()
		RETURNING id, participant_low, participant_high, created_at, last_message_at`
	err := r.GetDB().QueryRowContext(ctx, query, low, high).Scan(
		&conv.ID, &conv.ParticipantLow, &conv.ParticipantHigh, &conv.CreatedAt, &conv.LastMessageAt,
	)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation retrieves a conversation by ID.
func (r *Repository) GetConversation(ctx context.Context, id int64) (*Conversation, error) {
	conv := &Conversation{}
	query := `SELECT id, participant_low, participant_high, created_at, last_message_at FROM chat_conversations WHERE id = $1`
	err := r.GetDB().QueryRowContext(ctx, query, id).Scan(
		&conv.ID, &conv.ParticipantLow, &conv.ParticipantHigh, &conv.CreatedAt, &conv.LastMessageAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// GetConversationByPair retrieves the conversation for an unordered pair
// without creating it.
func (r *Repository) GetConversationByPair(ctx context.Context, userA, userB string) (*Conversation, error) {
	low, high := CanonicalPair(userA, userB)
	conv := &Conversation{}
	query := `SELECT id, participant_low, participant_high, created_at, last_message_at FROM chat_conversations WHERE participant_low = $1 AND participant_high = $2`
	err := r.GetDB().QueryRowContext(ctx, query, low, high).Scan(
		&conv.ID, &conv.ParticipantLow, &conv.ParticipantHigh, &conv.CreatedAt, &conv.LastMessageAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, err
	}
	return conv, nil
}

// CreateMessage appends a message and advances the conversation's
// last_message_at to the message timestamp in the same transaction.
func (r *Repository) CreateMessage(ctx context.Context, conversationID int64, senderID, content string) (*Message, error) {
	msg := &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Status:         StatusSent,
		DeletedFor:     []string{},
	}
	err := r.WithinTx(ctx, func(tx *sql.Tx) error {
		query := `INSERT INTO chat_messages (conversation_id, sender_id, content, status)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at`
		if err := tx.QueryRowContext(ctx, query, conversationID, senderID, content, StatusSent).Scan(
			&msg.ID, &msg.CreatedAt, &msg.UpdatedAt,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE chat_conversations SET last_message_at = $1 WHERE id = $2`,
			msg.CreatedAt, conversationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// GetMessage retrieves a message by ID.
func (r *Repository) GetMessage(ctx context.Context, id int64) (*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE id = $1`
	msg, err := scanMessage(r.GetDB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

// EditMessage records the prior content in the edit history and updates the
// message in one transaction, so a concurrent reader never observes one
// without the other. The recalled state is re-checked under the row lock.
func (r *Repository) EditMessage(ctx context.Context, id int64, newContent string) (*Message, error) {
	var msg *Message
	err := r.WithinTx(ctx, func(tx *sql.Tx) error {
		var prior string
		var recalled bool
		err := tx.QueryRowContext(ctx,
			`SELECT content, is_recalled FROM chat_messages WHERE id = $1 FOR UPDATE`, id,
		).Scan(&prior, &recalled)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMessageNotFound
			}
			return err
		}
		if recalled {
			return ErrMessageRecalled
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chat_message_edits (message_id, prior_content) VALUES ($1, $2)`,
			id, prior,
		); err != nil {
			return err
		}
		query := `UPDATE chat_messages
			SET content = $1, is_edited = TRUE, status = $2, updated_at = NOW()
			WHERE id = $3
			RETURNING ` + messageColumns
		msg, err = scanMessage(tx.QueryRowContext(ctx, query, newContent, StatusEdited, id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// RecallMessage irreversibly marks a message recalled.
func (r *Repository) RecallMessage(ctx context.Context, id int64) (*Message, error) {
	query := `UPDATE chat_messages
		SET is_recalled = TRUE, status = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING ` + messageColumns
	msg, err := scanMessage(r.GetDB().QueryRowContext(ctx, query, StatusRecalled, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return msg, nil
}

// DeleteForUser appends userID to the message's deleted-for set. Idempotent;
// content and status are untouched.
func (r *Repository) DeleteForUser(ctx context.Context, id int64, userID string) (*Message, error) {
	query := `UPDATE chat_messages
		SET deleted_for = array_append(deleted_for, $1)
		WHERE id = $2 AND NOT ($1 = ANY(deleted_for))`
	if _, err := r.GetDB().ExecContext(ctx, query, userID, id); err != nil {
		return nil, err
	}
	return r.GetMessage(ctx, id)
}

// MarkConversationRead marks every unread message authored by the other
// participant as read. A single UPDATE keeps the bulk transition atomic with
// respect to concurrent unread-count reads.
func (r *Repository) MarkConversationRead(ctx context.Context, conversationID int64, readerID string) (int64, error) {
	query := `UPDATE chat_messages
		SET is_read = TRUE, status = $1, updated_at = NOW()
		WHERE conversation_id = $2 AND sender_id <> $3 AND NOT is_read AND NOT is_recalled`
	result, err := r.GetDB().ExecContext(ctx, query, StatusRead, conversationID, readerID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListMessages retrieves the conversation history visible to readerID,
// oldest first. Ties on created_at break by id, giving a total order.
func (r *Repository) ListMessages(ctx context.Context, conversationID int64, readerID string) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM chat_messages
		WHERE conversation_id = $1 AND NOT ($2 = ANY(deleted_for))
		ORDER BY created_at ASC, id ASC`
	rows, err := r.GetDB().QueryContext(ctx, query, conversationID, readerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ListEdits retrieves a message's edit history in chronological order.
func (r *Repository) ListEdits(ctx context.Context, messageID int64) ([]MessageEdit, error) {
	query := `SELECT id, message_id, prior_content, edited_at FROM chat_message_edits
		WHERE message_id = $1 ORDER BY edited_at ASC, id ASC`
	rows, err := r.GetDB().QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edits []MessageEdit
	for rows.Next() {
		var edit MessageEdit
		if err := rows.Scan(&edit.ID, &edit.MessageID, &edit.PriorContent, &edit.EditedAt); err != nil {
			return nil, err
		}
		edits = append(edits, edit)
	}
	return edits, rows.Err()
}

// CountUnread sums, across every conversation the user participates in, the
// messages authored by the other participant that are unread and not recalled.
func (r *Repository) CountUnread(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM chat_messages m
		JOIN chat_conversations c ON c.id = m.conversation_id
		WHERE (c.participant_low = $1 OR c.participant_high = $1)
			AND m.sender_id <> $1 AND NOT m.is_read AND NOT m.is_recalled`
	var count int64
	if err := r.GetDB().QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListConversationSummaries returns one row per conversation the user
// participates in, with the most recent visible message, newest conversation
// first. The lateral join makes each row a coherent snapshot and drops
// conversations with no visible message.
func (r *Repository) ListConversationSummaries(ctx context.Context, userID string) ([]*ConversationSummary, error) {
	query := `SELECT c.id, c.participant_low, c.participant_high, c.last_message_at,
			m.id, m.conversation_id, m.sender_id, m.content, m.status, m.is_read, m.is_edited, m.is_recalled, m.created_at, m.updated_at
		FROM chat_conversations c
		JOIN LATERAL (
			SELECT * FROM chat_messages lm
			WHERE lm.conversation_id = c.id
				AND NOT lm.is_recalled
				AND NOT ($1 = ANY(lm.deleted_for))
			ORDER BY lm.created_at DESC, lm.id DESC
			LIMIT 1
		) m ON TRUE
		WHERE c.participant_low = $1 OR c.participant_high = $1
		ORDER BY c.last_message_at DESC`
	rows, err := r.GetDB().QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var summaries []*ConversationSummary
	for rows.Next() {
		var low, high string
		summary := &ConversationSummary{LastMessage: &Message{}}
		msg := summary.LastMessage
		err := rows.Scan(
			&summary.ConversationID, &low, &high, &summary.LastMessageAt,
			&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Status,
			&msg.IsRead, &msg.IsEdited, &msg.IsRecalled, &msg.CreatedAt, &msg.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		conv := &Conversation{ParticipantLow: low, ParticipantHigh: high}
		summary.Peer = PeerIdentity{Identifier: conv.Peer(userID)}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
