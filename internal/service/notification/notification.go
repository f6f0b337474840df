// Package notification implements the durable notification store and the
// dispatcher that pushes events to connected clients.
package notification

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/XuanDongVo/Rental-Home-sub001/pkg/errors"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/metrics"
)

// Service owns notification lifecycle: durable creation, live publication,
// read transitions, and retention cleanup.
type Service struct {
	log        *zap.Logger
	store      Store
	dispatcher *Dispatcher
}

func NewService(log *zap.Logger, store Store, dispatcher *Dispatcher) *Service {
	return &Service{
		log:        log,
		store:      store,
		dispatcher: dispatcher,
	}
}

// Subscribe registers a live delivery channel for userID.
func (s *Service) Subscribe(userID string) *Subscriber {
	return s.dispatcher.Subscribe(userID)
}

// Unsubscribe removes a live delivery channel.
func (s *Service) Unsubscribe(sub *Subscriber) {
	s.dispatcher.Unsubscribe(sub)
}

// Create durably stores the notification, then best-effort publishes it to
// any live channel of the recipient. The durable write is the contract; an
// unsubscribed recipient observes the event on their next pull.
func (s *Service) Create(ctx context.Context, n *Notification) (*Notification, error) {
	if n.RecipientID == "" {
		return nil, errors.Validation("recipient identifier is required")
	}
	if n.Type == "" {
		return nil, errors.Validation("notification type is required")
	}
	created, err := s.store.Create(ctx, n)
	if err != nil {
		return nil, errors.Internal("failed to store notification", err)
	}
	delivery := "stored"
	if s.dispatcher.Publish(created) {
		delivery = "live"
	}
	metrics.NotificationsPublished.WithLabelValues(delivery).Inc()
	return created, nil
}

// List returns the recipient's notifications, newest first.
func (s *Service) List(ctx context.Context, recipientID string, limit int) ([]*Notification, error) {
	if recipientID == "" {
		return nil, errors.Validation("recipient identifier is required")
	}
	notifications, err := s.store.ListByRecipient(ctx, recipientID, limit)
	if err != nil {
		return nil, errors.Internal("failed to list notifications", err)
	}
	return notifications, nil
}

// MarkRead transitions one notification's read flag. Only the recipient may
// do this.
func (s *Service) MarkRead(ctx context.Context, id int64, userID string) error {
	updated, err := s.store.MarkRead(ctx, id, userID)
	if err != nil {
		return errors.Internal("failed to mark notification read", err)
	}
	if updated {
		return nil
	}
	// Distinguish a missing notification from someone else's.
	if _, err := s.store.GetByID(ctx, id); err != nil {
		if stderrors.Is(err, ErrNotificationNotFound) {
			return errors.NotFound("notification not found")
		}
		return errors.Internal("failed to load notification", err)
	}
	return errors.Permission("notification belongs to another user")
}

// MarkAllRead transitions all of the user's unread notifications. Idempotent:
// a second call updates nothing and returns no error.
func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, errors.Validation("user identifier is required")
	}
	count, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, errors.Internal("failed to mark notifications read", err)
	}
	return count, nil
}

// CleanupExpired deletes read notifications older than the retention window.
// Invoked by the cron sweeper.
func (s *Service) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	count, err := s.store.DeleteReadOlderThan(ctx, cutoff)
	if err != nil {
		return 0, errors.Internal("failed to clean up notifications", err)
	}
	if count > 0 {
		s.log.Info("expired notifications removed",
			zap.Int64("count", count),
			zap.Time("cutoff", cutoff))
	}
	return count, nil
}

// NotifyNewMessage implements the chat.Notifier contract for new messages.
// Failures are logged, not propagated: losing a push never fails a send.
func (s *Service) NotifyNewMessage(ctx context.Context, recipientID, senderID string, conversationID, messageID int64, preview string) {
	const previewLimit = 80
	if len(preview) > previewLimit {
		preview = preview[:previewLimit] + "…"
	}
	_, err := s.Create(ctx, &Notification{
		RecipientID: recipientID,
		Type:        TypeNewMessage,
		Title:       "New message",
		Message:     preview,
		Payload: map[string]interface{}{
			"conversationId": conversationID,
			"messageId":      messageID,
			"senderId":       senderID,
		},
	})
	if err != nil {
		s.log.Error("failed to notify new message",
			zap.String("recipient_id", recipientID),
			zap.Error(err))
	}
}

// NotifyMessagesRead implements the chat.Notifier contract for read receipts.
func (s *Service) NotifyMessagesRead(ctx context.Context, recipientID, readerID string, conversationID, count int64) {
	_, err := s.Create(ctx, &Notification{
		RecipientID: recipientID,
		Type:        TypeMessageRead,
		Title:       "Messages read",
		Message:     fmt.Sprintf("%d message(s) read", count),
		Payload: map[string]interface{}{
			"conversationId": conversationID,
			"readerId":       readerID,
			"count":          count,
		},
	})
	if err != nil {
		s.log.Error("failed to notify read receipt",
			zap.String("recipient_id", recipientID),
			zap.Error(err))
	}
}
