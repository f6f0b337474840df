package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/XuanDongVo/Rental-Home-sub001/internal/server/httputil"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/service/chat"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/service/user"
	apperrors "github.com/XuanDongVo/Rental-Home-sub001/pkg/errors"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/json"
)

type stubChat struct {
	sendFn    func(ctx context.Context, senderID, receiverID, content string) (*chat.Message, error)
	historyFn func(ctx context.Context, userA, userB string) ([]*chat.Message, error)
	markFn    func(ctx context.Context, conversationID int64, readerID string) (int64, error)
	unreadFn  func(ctx context.Context, userID string) (int64, error)
}

func (s *stubChat) Send(ctx context.Context, senderID, receiverID, content string) (*chat.Message, error) {
	return s.sendFn(ctx, senderID, receiverID, content)
}

func (s *stubChat) History(ctx context.Context, userA, userB string) ([]*chat.Message, error) {
	return s.historyFn(ctx, userA, userB)
}

func (s *stubChat) Edit(_ context.Context, _ int64, _, _ string) (*chat.Message, error) {
	return nil, nil
}

func (s *stubChat) Recall(_ context.Context, _ int64, _ string) (*chat.Message, error) {
	return nil, nil
}

func (s *stubChat) DeleteForMe(_ context.Context, _ int64, _ string) (*chat.Message, error) {
	return nil, nil
}

func (s *stubChat) MarkRead(ctx context.Context, conversationID int64, readerID string) (int64, error) {
	return s.markFn(ctx, conversationID, readerID)
}

func (s *stubChat) CountUnread(ctx context.Context, userID string) (int64, error) {
	return s.unreadFn(ctx, userID)
}

func (s *stubChat) ListConversations(_ context.Context, _ string) ([]*chat.ConversationSummary, error) {
	return nil, nil
}

type stubDirectory struct {
	searchFn func(ctx context.Context, query, exclude string) ([]*user.Identity, error)
	getFn    func(ctx context.Context, id int64) (*user.Identity, error)
}

func (s *stubDirectory) Resolve(_ context.Context, _ string) (*user.Identity, error) {
	return nil, user.ErrUserNotFound
}

func (s *stubDirectory) Search(ctx context.Context, query, exclude string) ([]*user.Identity, error) {
	return s.searchFn(ctx, query, exclude)
}

func (s *stubDirectory) GetByID(ctx context.Context, id int64) (*user.Identity, error) {
	return s.getFn(ctx, id)
}

func asCaller(r *http.Request, callerID string) *http.Request {
	return r.WithContext(httputil.WithCaller(r.Context(), callerID))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(out))
}

func TestSendMessageHandler(t *testing.T) {
	log := zaptest.NewLogger(t)
	svc := &stubChat{
		sendFn: func(_ context.Context, senderID, receiverID, content string) (*chat.Message, error) {
			assert.Equal(t, "alice@x.com", senderID)
			assert.Equal(t, "bob@x.com", receiverID)
			return &chat.Message{ID: 1, SenderID: senderID, Content: content, Status: chat.StatusSent}, nil
		},
	}

	body := strings.NewReader(`{"receiverId":"bob@x.com","content":"hi"}`)
	req := asCaller(httptest.NewRequest(http.MethodPost, "/chat/send", body), "alice@x.com")
	rec := httptest.NewRecorder()
	SendMessageHandler(log, svc)(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var msg chat.Message
	decodeBody(t, rec, &msg)
	assert.Equal(t, "hi", msg.Content)
}

func TestSendMessageHandlerBadBody(t *testing.T) {
	svc := &stubChat{}
	req := asCaller(httptest.NewRequest(http.MethodPost, "/chat/send", strings.NewReader(`{"broken`)), "alice@x.com")
	rec := httptest.NewRecorder()
	SendMessageHandler(zaptest.NewLogger(t), svc)(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageHandlerErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", apperrors.Validation("bad pair"), http.StatusBadRequest},
		{"permission", apperrors.Permission("denied"), http.StatusForbidden},
		{"invalid state", apperrors.InvalidState("recalled"), http.StatusConflict},
		{"not found", apperrors.NotFound("missing"), http.StatusNotFound},
		{"internal", apperrors.Internal("boom", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubChat{
				sendFn: func(_ context.Context, _, _, _ string) (*chat.Message, error) {
					return nil, tt.err
				},
			}
			body := strings.NewReader(`{"receiverId":"bob@x.com","content":"hi"}`)
			req := asCaller(httptest.NewRequest(http.MethodPost, "/chat/send", body), "alice@x.com")
			rec := httptest.NewRecorder()
			SendMessageHandler(zaptest.NewLogger(t), svc)(rec, req)
			assert.Equal(t, tt.status, rec.Code)

			var payload struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			decodeBody(t, rec, &payload)
			assert.Equal(t, string(apperrors.CodeOf(tt.err)), payload.Error.Code)
		})
	}
}

func TestHistoryHandlerRequiresParticipant(t *testing.T) {
	svc := &stubChat{
		historyFn: func(_ context.Context, _, _ string) ([]*chat.Message, error) {
			t.Fatal("service must not be reached")
			return nil, nil
		},
	}
	req := asCaller(httptest.NewRequest(http.MethodGet,
		"/chat/history?user1=alice@x.com&user2=bob@x.com", nil), "mallory@x.com")
	rec := httptest.NewRecorder()
	HistoryHandler(zaptest.NewLogger(t), svc)(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHistoryHandlerReadsFromCallerPerspective(t *testing.T) {
	var gotA, gotB string
	svc := &stubChat{
		historyFn: func(_ context.Context, userA, userB string) ([]*chat.Message, error) {
			gotA, gotB = userA, userB
			return []*chat.Message{}, nil
		},
	}
	// The caller appears as user2; the handler must still query with the
	// caller first so self-deleted messages stay hidden.
	req := asCaller(httptest.NewRequest(http.MethodGet,
		"/chat/history?user1=alice@x.com&user2=bob@x.com", nil), "bob@x.com")
	rec := httptest.NewRecorder()
	HistoryHandler(zaptest.NewLogger(t), svc)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bob@x.com", gotA)
	assert.Equal(t, "alice@x.com", gotB)
}

func TestMarkConversationReadHandler(t *testing.T) {
	svc := &stubChat{
		markFn: func(_ context.Context, conversationID int64, readerID string) (int64, error) {
			assert.Equal(t, int64(42), conversationID)
			assert.Equal(t, "bob@x.com", readerID)
			return 3, nil
		},
	}
	body := strings.NewReader(`{"conversationId":42}`)
	req := asCaller(httptest.NewRequest(http.MethodPost, "/chat/mark-read", body), "bob@x.com")
	rec := httptest.NewRecorder()
	MarkConversationReadHandler(zaptest.NewLogger(t), svc)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Updated int64 `json:"updated"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, int64(3), resp.Updated)
}

func TestUnreadCountHandler(t *testing.T) {
	svc := &stubChat{
		unreadFn: func(_ context.Context, userID string) (int64, error) {
			assert.Equal(t, "bob@x.com", userID)
			return 5, nil
		},
	}
	req := asCaller(httptest.NewRequest(http.MethodGet, "/chat/unread", nil), "bob@x.com")
	rec := httptest.NewRecorder()
	UnreadCountHandler(zaptest.NewLogger(t), svc)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Unread int64 `json:"unread"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, int64(5), resp.Unread)
}

func TestSearchUsersHandlerDefaultsExcludeToCaller(t *testing.T) {
	directory := &stubDirectory{
		searchFn: func(_ context.Context, query, exclude string) ([]*user.Identity, error) {
			assert.Equal(t, "bo", query)
			assert.Equal(t, "alice@x.com", exclude)
			return []*user.Identity{{Name: "Bob", Identifier: "bob@x.com"}}, nil
		},
	}
	req := asCaller(httptest.NewRequest(http.MethodGet, "/chat/users?q=bo", nil), "alice@x.com")
	rec := httptest.NewRecorder()
	SearchUsersHandler(zaptest.NewLogger(t), directory)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var identities []*user.Identity
	decodeBody(t, rec, &identities)
	require.Len(t, identities, 1)
	assert.Equal(t, "Bob", identities[0].Name)
}

func TestGetUserHandler(t *testing.T) {
	directory := &stubDirectory{
		getFn: func(_ context.Context, id int64) (*user.Identity, error) {
			if id == 7 {
				return &user.Identity{ID: 7, Name: "Bob"}, nil
			}
			return nil, user.ErrUserNotFound
		},
	}
	log := zaptest.NewLogger(t)

	req := asCaller(httptest.NewRequest(http.MethodGet, "/chat/user/7", nil), "alice@x.com")
	req.SetPathValue("id", "7")
	rec := httptest.NewRecorder()
	GetUserHandler(log, directory)(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = asCaller(httptest.NewRequest(http.MethodGet, "/chat/user/8", nil), "alice@x.com")
	req.SetPathValue("id", "8")
	rec = httptest.NewRecorder()
	GetUserHandler(log, directory)(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = asCaller(httptest.NewRequest(http.MethodGet, "/chat/user/abc", nil), "alice@x.com")
	req.SetPathValue("id", "abc")
	rec = httptest.NewRecorder()
	GetUserHandler(log, directory)(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
