package notification

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "github.com/XuanDongVo/Rental-Home-sub001/pkg/errors"
)

type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*Notification
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[int64]*Notification)}
}

func (s *memStore) Create(_ context.Context, n *Notification) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	n.ID = s.nextID
	n.CreatedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.nextID) * time.Second)
	cp := *n
	s.rows[n.ID] = &cp
	return n, nil
}

func (s *memStore) GetByID(_ context.Context, id int64) (*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok {
		return nil, ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *memStore) ListByRecipient(_ context.Context, recipientID string, limit int) ([]*Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Notification
	for _, n := range s.rows {
		if n.RecipientID == recipientID {
			cp := *n
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) MarkRead(_ context.Context, id int64, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.rows[id]
	if !ok || n.RecipientID != recipientID {
		return false, nil
	}
	n.IsRead = true
	return true, nil
}

func (s *memStore) MarkAllRead(_ context.Context, recipientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, n := range s.rows {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (s *memStore) DeleteReadOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for id, n := range s.rows {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(s.rows, id)
			count++
		}
	}
	return count, nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()
	store := newMemStore()
	log := zaptest.NewLogger(t)
	return NewService(log, store, NewDispatcher(log)), store
}

func TestCreateStoresAndPublishes(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	sub := svc.Subscribe("bob@x.com")
	defer svc.Unsubscribe(sub)

	created, err := svc.Create(ctx, &Notification{
		RecipientID: "bob@x.com",
		Type:        TypeNewMessage,
		Title:       "New message",
		Message:     "hi",
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	select {
	case got := <-sub.Events():
		assert.Equal(t, created.ID, got.ID, "live channel carries the stored notification")
	case <-time.After(time.Second):
		t.Fatal("expected a live event")
	}

	list, err := svc.List(ctx, "bob@x.com", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsRead)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &Notification{Type: TypeNewMessage})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))

	_, err = svc.Create(ctx, &Notification{RecipientID: "bob@x.com"})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidation, apperrors.CodeOf(err))
}

func TestCreateWithoutSubscriberStillStored(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &Notification{
		RecipientID: "offline@x.com",
		Type:        TypeNewMessage,
	})
	require.NoError(t, err)

	list, err := svc.List(ctx, "offline@x.com", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID, "an offline recipient observes the event on the next pull")
}

func TestMarkRead(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &Notification{RecipientID: "bob@x.com", Type: TypeNewMessage})
	require.NoError(t, err)

	err = svc.MarkRead(ctx, created.ID, "mallory@x.com")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodePermission, apperrors.CodeOf(err))

	err = svc.MarkRead(ctx, 9999, "bob@x.com")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	require.NoError(t, svc.MarkRead(ctx, created.ID, "bob@x.com"))
	list, err := svc.List(ctx, "bob@x.com", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsRead)
}

func TestMarkAllReadIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Create(ctx, &Notification{RecipientID: "bob@x.com", Type: TypeNewMessage})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, &Notification{RecipientID: "carol@x.com", Type: TypeNewMessage})
	require.NoError(t, err)

	count, err := svc.MarkAllRead(ctx, "bob@x.com")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	count, err = svc.MarkAllRead(ctx, "bob@x.com")
	require.NoError(t, err)
	assert.Zero(t, count)

	list, err := svc.List(ctx, "carol@x.com", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsRead, "another user's notifications stay untouched")
}

func TestCleanupExpired(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	old, err := svc.Create(ctx, &Notification{RecipientID: "bob@x.com", Type: TypeNewMessage})
	require.NoError(t, err)
	require.NoError(t, svc.MarkRead(ctx, old.ID, "bob@x.com"))
	unreadOld, err := svc.Create(ctx, &Notification{RecipientID: "bob@x.com", Type: TypeNewMessage})
	require.NoError(t, err)

	// A negative retention puts the cutoff in the future, aging everything out.
	count, err := svc.CleanupExpired(ctx, -time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "only read notifications are swept")

	_, err = store.GetByID(ctx, unreadOld.ID)
	assert.NoError(t, err, "unread notifications survive retention")
}

func TestNotifyNewMessageTruncatesPreview(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	svc.NotifyNewMessage(ctx, "bob@x.com", "alice@x.com", 1, 2, string(long))

	list, err := svc.List(ctx, "bob@x.com", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, TypeNewMessage, list[0].Type)
	assert.Less(t, len(list[0].Message), 200)
	assert.Equal(t, "alice@x.com", list[0].Payload["senderId"])
}

func TestNotifyMessagesRead(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	svc.NotifyMessagesRead(ctx, "alice@x.com", "bob@x.com", 4, 2)

	list, err := svc.List(ctx, "alice@x.com", 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, TypeMessageRead, list[0].Type)
	assert.Equal(t, int64(4), list[0].Payload["conversationId"])
}
