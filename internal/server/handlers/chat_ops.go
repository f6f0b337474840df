package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/XuanDongVo/Rental-Home-sub001/internal/server/httputil"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/service/chat"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/service/user"
	apperrors "github.com/XuanDongVo/Rental-Home-sub001/pkg/errors"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/json"
)

// ChatService is the slice of the chat service the REST layer needs.
type ChatService interface {
	Send(ctx context.Context, senderID, receiverID, content string) (*chat.Message, error)
	History(ctx context.Context, userA, userB string) ([]*chat.Message, error)
	Edit(ctx context.Context, messageID int64, requesterID, newContent string) (*chat.Message, error)
	Recall(ctx context.Context, messageID int64, requesterID string) (*chat.Message, error)
	DeleteForMe(ctx context.Context, messageID int64, requesterID string) (*chat.Message, error)
	MarkRead(ctx context.Context, conversationID int64, readerID string) (int64, error)
	CountUnread(ctx context.Context, userID string) (int64, error)
	ListConversations(ctx context.Context, userID string) ([]*chat.ConversationSummary, error)
}

// SendMessageHandler handles POST /chat/send.
func SendMessageHandler(log *zap.Logger, svc ChatService) http.HandlerFunc {
	type request struct {
		ReceiverID string `json:"receiverId"`
		Content    string `json:"content"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(log, w, apperrors.Validation("invalid JSON body"))
			return
		}
		msg, err := svc.Send(r.Context(), httputil.CallerID(r.Context()), req.ReceiverID, req.Content)
		if err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		httputil.WriteJSON(log, w, http.StatusCreated, msg)
	}
}

// HistoryHandler handles GET /chat/history?user1&user2. The caller must be
// one of the two users.
func HistoryHandler(log *zap.Logger, svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user1 := r.URL.Query().Get("user1")
		user2 := r.URL.Query().Get("user2")
		caller := httputil.CallerID(r.Context())
		if caller != user1 && caller != user2 {
			httputil.WriteError(log, w, apperrors.Permission("caller is not a participant"))
			return
		}
		// Read from the caller's perspective so self-deleted messages stay hidden.
		peer := user2
		if caller == user2 {
			peer = user1
		}
		messages, err := svc.History(r.Context(), caller, peer)
		if err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		httputil.WriteJSON(log, w, http.StatusOK, messages)
	}
}

// EditMessageHandler handles POST /chat/edit.
func EditMessageHandler(log *zap.Logger, svc ChatService) http.HandlerFunc {
	type request struct {
		MessageID int64  `json:"messageId"`
		Content   string `json:"content"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(log, w, apperrors.Validation("invalid JSON body"))
			return
		}
		msg, err := svc.Edit(r.Context(), req.MessageID, httputil.CallerID(r.Context()), req.Content)
		if err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		httputil.WriteJSON(log, w, http.StatusOK, msg)
	}
}

// RecallMessageHandler handles POST /chat/recall.
func RecallMessageHandler(log *zap.Logger, svc ChatService) http.HandlerFunc {
	type request struct {
		MessageID int64 `json:"messageId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(log, w, apperrors.Validation("invalid JSON body"))
			return
		}
		msg, err := svc.Recall(r.Context(), req.MessageID, httputil.CallerID(r.Context()))
		if err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		httputil.WriteJSON(log, w, http.StatusOK, msg)
	}
}

// DeleteForMeHandler handles POST /chat/delete-for-me.
func DeleteForMeHandler(log *zap.Logger, svc ChatService) http.HandlerFunc {
	type request struct {
		MessageID int64 `json:"messageId"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(log, w, apperrors.Validation("invalid JSON body"))
			return
		}
		msg, err := svc.DeleteForMe(r.Context(), req.MessageID, httputil.CallerID(r.Context()))
		if err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		httputil.WriteJSON(log, w, http.StatusOK, msg)
	}
}

// MarkConversationReadHandler handles POST /chat/mark-read.
func MarkConversationReadHandler(log *zap.Logger, svc ChatService) http.HandlerFunc {
	type request struct {
		ConversationID int64 `json:"conversationId"`
	}
	type response struct {
		Updated int64 `json:"updated"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.WriteError(log, w, apperrors.Validation("invalid JSON body"))
			return
		}
		count, err := svc.MarkRead(r.Context(), req.ConversationID, httputil.CallerID(r.Context()))
		if err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		httputil.WriteJSON(log, w, http.StatusOK, response{Updated: count})
	}
}

// UnreadCountHandler handles GET /chat/unread. The server value is a hint;
// clients reconcile against their own notification cache.
func UnreadCountHandler(log *zap.Logger, svc ChatService) http.HandlerFunc {
	type response struct {
		Unread int64 `json:"unread"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := svc.CountUnread(r.Context(), httputil.CallerID(r.Context()))
		if err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		httputil.WriteJSON(log, w, http.StatusOK, response{Unread: count})
	}
}

// ListConversationsHandler handles GET /chat/conversations.
func ListConversationsHandler(log *zap.Logger, svc ChatService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summaries, err := svc.ListConversations(r.Context(), httputil.CallerID(r.Context()))
		if err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		httputil.WriteJSON(log, w, http.StatusOK, summaries)
	}
}

// SearchUsersHandler handles GET /chat/users?q&exclude.
func SearchUsersHandler(log *zap.Logger, directory user.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")
		exclude := r.URL.Query().Get("exclude")
		if exclude == "" {
			exclude = httputil.CallerID(r.Context())
		}
		identities, err := directory.Search(r.Context(), q, exclude)
		if err != nil {
			httputil.WriteError(log, w, apperrors.Internal("user search failed", err))
			return
		}
		if identities == nil {
			identities = []*user.Identity{}
		}
		httputil.WriteJSON(log, w, http.StatusOK, identities)
	}
}

// GetUserHandler handles GET /chat/user/{id}.
func GetUserHandler(log *zap.Logger, directory user.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			httputil.WriteError(log, w, apperrors.Validation("invalid user id"))
			return
		}
		ident, err := directory.GetByID(r.Context(), id)
		if err != nil {
			httputil.WriteError(log, w, apperrors.NotFound("user not found"))
			return
		}
		httputil.WriteJSON(log, w, http.StatusOK, ident)
	}
}
