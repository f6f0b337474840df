package notification

import (
	"sync"

	"go.uber.org/zap"

	"github.com/XuanDongVo/Rental-Home-sub001/pkg/metrics"
)

const subscriberBuffer = 16

// Subscriber is one live delivery channel for a single user. Events stream in
// emission order; a slow consumer may miss events (delivery is at-least-once
// across the live channel plus the durable store, and consumers de-duplicate
// by notification id).
type Subscriber struct {
	userID string
	ch     chan *Notification
}

// Events returns the channel the subscriber receives notifications on. The
// channel is closed on Unsubscribe.
func (s *Subscriber) Events() <-chan *Notification {
	return s.ch
}

// Dispatcher maintains the registry of live delivery channels keyed by
// recipient identifier. Adding or removing a subscriber never disrupts
// delivery to other subscribers.
type Dispatcher struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}
	log  *zap.Logger
}

func NewDispatcher(log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		subs: make(map[string]map[*Subscriber]struct{}),
		log:  log,
	}
}

// Subscribe registers a new live channel for userID.
func (d *Dispatcher) Subscribe(userID string) *Subscriber {
	sub := &Subscriber{
		userID: userID,
		ch:     make(chan *Notification, subscriberBuffer),
	}
	d.mu.Lock()
	if d.subs[userID] == nil {
		d.subs[userID] = make(map[*Subscriber]struct{})
	}
	d.subs[userID][sub] = struct{}{}
	d.mu.Unlock()
	metrics.LiveSubscribers.Inc()
	return sub
}

// Unsubscribe removes the subscriber and closes its channel. Safe to call
// once per subscriber.
func (d *Dispatcher) Unsubscribe(sub *Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	subs, ok := d.subs[sub.userID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(d.subs, sub.userID)
	}
	close(sub.ch)
	metrics.LiveSubscribers.Dec()
}

// Publish delivers the notification to every live channel of its recipient.
// Returns true when at least one subscriber received it. Sends never block:
// a full subscriber buffer drops the event, and the durable store covers the
// gap on the consumer's next pull.
func (d *Dispatcher) Publish(n *Notification) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	subs, ok := d.subs[n.RecipientID]
	if !ok || len(subs) == 0 {
		return false
	}
	delivered := false
	for sub := range subs {
		select {
		case sub.ch <- n:
			delivered = true
		default:
			d.log.Warn("dropping live notification, subscriber buffer full",
				zap.String("recipient_id", n.RecipientID),
				zap.Int64("notification_id", n.ID))
		}
	}
	return delivered
}

// SubscriberCount reports the number of live channels for a user.
func (d *Dispatcher) SubscriberCount(userID string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subs[userID])
}
