// Package chat implements the direct-messaging core: the conversation
// directory, the message store, and the unread aggregator.
package chat

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/XuanDongVo/Rental-Home-sub001/internal/service/user"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/errors"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/metrics"
)

// Notifier pushes chat events into the notification subsystem. Delivery is
// best-effort from the chat service's perspective; the notification side owns
// durability.
type Notifier interface {
	NotifyNewMessage(ctx context.Context, recipientID, senderID string, conversationID, messageID int64, preview string)
	NotifyMessagesRead(ctx context.Context, recipientID, readerID string, conversationID, count int64)
}

// Service implements the chat operations.
type Service struct {
	log      *zap.Logger
	store    Store
	users    user.Directory
	notifier Notifier
}

func NewService(log *zap.Logger, store Store, users user.Directory, notifier Notifier) *Service {
	return &Service{
		log:      log,
		store:    store,
		users:    users,
		notifier: notifier,
	}
}

func validatePair(userA, userB string) error {
	if userA == "" || userB == "" {
		return errors.Validation("both user identifiers are required")
	}
	if userA == userB {
		return errors.Validation("cannot start a conversation with yourself")
	}
	return nil
}

// Send resolves (or creates) the conversation between sender and receiver,
// appends the message, and pushes a notification to the receiver.
func (s *Service) Send(ctx context.Context, senderID, receiverID, content string) (*Message, error) {
	if err := validatePair(senderID, receiverID); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, errors.Validation("message content is required")
	}
	conv, err := s.store.ResolveOrCreate(ctx, senderID, receiverID)
	if err != nil {
		return nil, errors.Internal("failed to resolve conversation", err)
	}
	msg, err := s.store.CreateMessage(ctx, conv.ID, senderID, content)
	if err != nil {
		return nil, errors.Internal("failed to store message", err)
	}
	metrics.MessagesSent.Inc()
	if s.notifier != nil {
		s.notifier.NotifyNewMessage(ctx, receiverID, senderID, conv.ID, msg.ID, content)
	}
	return msg, nil
}

// History returns the messages between two users visible to userA, oldest
// first, each carrying its edit history. Recalled content is replaced by the
// fixed placeholder. A pair with no conversation yields an empty history.
func (s *Service) History(ctx context.Context, userA, userB string) ([]*Message, error) {
	if err := validatePair(userA, userB); err != nil {
		return nil, err
	}
	conv, err := s.store.GetConversationByPair(ctx, userA, userB)
	if err != nil {
		if stderrors.Is(err, ErrConversationNotFound) {
			return []*Message{}, nil
		}
		return nil, errors.Internal("failed to resolve conversation", err)
	}
	messages, err := s.store.ListMessages(ctx, conv.ID, userA)
	if err != nil {
		return nil, errors.Internal("failed to list messages", err)
	}
	for _, msg := range messages {
		if msg.IsRecalled {
			msg.Content = RecalledPlaceholder
			continue
		}
		if msg.IsEdited {
			edits, err := s.store.ListEdits(ctx, msg.ID)
			if err != nil {
				return nil, errors.Internal("failed to list edit history", err)
			}
			msg.Edits = edits
		}
	}
	return messages, nil
}

// Edit replaces a message's content, recording the prior content in the edit
// history. Only the sender may edit; recalled messages are frozen.
func (s *Service) Edit(ctx context.Context, messageID int64, requesterID, newContent string) (*Message, error) {
	if newContent == "" {
		return nil, errors.Validation("message content is required")
	}
	msg, err := s.getOwnedMessage(ctx, messageID, requesterID, "only the sender may edit a message")
	if err != nil {
		return nil, err
	}
	if msg.IsRecalled {
		return nil, errors.InvalidState("cannot edit a recalled message")
	}
	updated, err := s.store.EditMessage(ctx, messageID, newContent)
	if err != nil {
		if stderrors.Is(err, ErrMessageRecalled) {
			return nil, errors.InvalidState("cannot edit a recalled message")
		}
		return nil, errors.Internal("failed to edit message", err)
	}
	return updated, nil
}

// Recall irreversibly hides a message's content from all readers. Only the
// sender may recall. Recalling an already-recalled message is a no-op.
func (s *Service) Recall(ctx context.Context, messageID int64, requesterID string) (*Message, error) {
	msg, err := s.getOwnedMessage(ctx, messageID, requesterID, "only the sender may recall a message")
	if err != nil {
		return nil, err
	}
	if msg.IsRecalled {
		return msg, nil
	}
	updated, err := s.store.RecallMessage(ctx, messageID)
	if err != nil {
		return nil, errors.Internal("failed to recall message", err)
	}
	metrics.MessagesRecalled.Inc()
	return updated, nil
}

// DeleteForMe hides a message from the requester's own view. Any participant
// may do this; the other participant's view is unaffected.
func (s *Service) DeleteForMe(ctx context.Context, messageID int64, requesterID string) (*Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if stderrors.Is(err, ErrMessageNotFound) {
			return nil, errors.NotFound("message not found")
		}
		return nil, errors.Internal("failed to load message", err)
	}
	conv, err := s.store.GetConversation(ctx, msg.ConversationID)
	if err != nil {
		return nil, errors.Internal("failed to load conversation", err)
	}
	if !conv.HasParticipant(requesterID) {
		return nil, errors.Permission("not a participant of this conversation")
	}
	updated, err := s.store.DeleteForUser(ctx, messageID, requesterID)
	if err != nil {
		return nil, errors.Internal("failed to delete message for user", err)
	}
	return updated, nil
}

// MarkRead marks every unread message from the other participant as read and
// returns the number updated. A caller who is not a participant gets count 0
// with no error, so conversation existence is not leaked.
func (s *Service) MarkRead(ctx context.Context, conversationID int64, readerID string) (int64, error) {
	if readerID == "" {
		return 0, errors.Validation("reader identifier is required")
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		if stderrors.Is(err, ErrConversationNotFound) {
			return 0, nil
		}
		return 0, errors.Internal("failed to load conversation", err)
	}
	if !conv.HasParticipant(readerID) {
		return 0, nil
	}
	count, err := s.store.MarkConversationRead(ctx, conversationID, readerID)
	if err != nil {
		return 0, errors.Internal("failed to mark conversation read", err)
	}
	if count > 0 && s.notifier != nil {
		s.notifier.NotifyMessagesRead(ctx, conv.Peer(readerID), readerID, conversationID, count)
	}
	return count, nil
}

// CountUnread returns the user's unread-message count across all conversations.
func (s *Service) CountUnread(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, errors.Validation("user identifier is required")
	}
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, errors.Internal("failed to count unread messages", err)
	}
	return count, nil
}

// ListConversations returns the user's conversation-list view, newest
// activity first, with peer identities resolved through the directory.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]*ConversationSummary, error) {
	if userID == "" {
		return nil, errors.Validation("user identifier is required")
	}
	summaries, err := s.store.ListConversationSummaries(ctx, userID)
	if err != nil {
		return nil, errors.Internal("failed to list conversations", err)
	}
	for _, summary := range summaries {
		ident, err := s.users.Resolve(ctx, summary.Peer.Identifier)
		if err != nil {
			// Directory outage degrades to the bare identifier.
			s.log.Warn("failed to resolve peer identity",
				zap.String("identifier", summary.Peer.Identifier),
				zap.Error(err))
			continue
		}
		summary.Peer.Type = ident.Type
		summary.Peer.Name = ident.Name
		summary.Peer.Email = ident.Email
	}
	return summaries, nil
}

func (s *Service) getOwnedMessage(ctx context.Context, messageID int64, requesterID, denyMsg string) (*Message, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		if stderrors.Is(err, ErrMessageNotFound) {
			return nil, errors.NotFound("message not found")
		}
		return nil, errors.Internal("failed to load message", err)
	}
	if msg.SenderID != requesterID {
		return nil, errors.Permission(denyMsg)
	}
	return msg, nil
}
