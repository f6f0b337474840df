package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDispatcherDeliversToRecipientOnly(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))

	bob := d.Subscribe("bob@x.com")
	defer d.Unsubscribe(bob)
	carol := d.Subscribe("carol@x.com")
	defer d.Unsubscribe(carol)

	n := &Notification{ID: 1, RecipientID: "bob@x.com", Type: TypeNewMessage}
	assert.True(t, d.Publish(n))

	select {
	case got := <-bob.Events():
		assert.Equal(t, int64(1), got.ID)
	default:
		t.Fatal("expected a buffered event for bob")
	}
	select {
	case got := <-carol.Events():
		t.Fatalf("carol must not receive bob's notification, got %+v", got)
	default:
	}
}

func TestDispatcherFanOut(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))

	first := d.Subscribe("bob@x.com")
	second := d.Subscribe("bob@x.com")
	defer d.Unsubscribe(first)
	defer d.Unsubscribe(second)
	assert.Equal(t, 2, d.SubscriberCount("bob@x.com"))

	require.True(t, d.Publish(&Notification{ID: 7, RecipientID: "bob@x.com"}))
	for _, sub := range []*Subscriber{first, second} {
		select {
		case got := <-sub.Events():
			assert.Equal(t, int64(7), got.ID)
		default:
			t.Fatal("every live channel of the recipient receives the event")
		}
	}
}

func TestDispatcherNoSubscriber(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	// Publishing with nobody connected must not block.
	assert.False(t, d.Publish(&Notification{ID: 3, RecipientID: "ghost@x.com"}))
}

func TestDispatcherFullBufferDoesNotBlock(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))
	sub := d.Subscribe("bob@x.com")
	defer d.Unsubscribe(sub)

	for i := 0; i < subscriberBuffer; i++ {
		require.True(t, d.Publish(&Notification{ID: int64(i + 1), RecipientID: "bob@x.com"}))
	}
	// Buffer is full now; the overflow event is dropped, not queued.
	assert.False(t, d.Publish(&Notification{ID: 99, RecipientID: "bob@x.com"}))
	assert.Len(t, sub.Events(), subscriberBuffer)
}

func TestDispatcherUnsubscribe(t *testing.T) {
	d := NewDispatcher(zaptest.NewLogger(t))

	stay := d.Subscribe("bob@x.com")
	leave := d.Subscribe("bob@x.com")
	d.Unsubscribe(leave)
	// A second Unsubscribe of the same subscriber is a no-op.
	d.Unsubscribe(leave)
	assert.Equal(t, 1, d.SubscriberCount("bob@x.com"))

	_, open := <-leave.Events()
	assert.False(t, open, "unsubscribed channel must be closed")

	require.True(t, d.Publish(&Notification{ID: 5, RecipientID: "bob@x.com"}))
	select {
	case got := <-stay.Events():
		assert.Equal(t, int64(5), got.ID)
	default:
		t.Fatal("remaining subscriber still receives events")
	}

	d.Unsubscribe(stay)
	assert.Zero(t, d.SubscriberCount("bob@x.com"))
}
