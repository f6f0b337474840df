// Package notifystream is the client side of the live notification channel.
// A Session seeds itself from the pull endpoint, holds a server-sent event
// stream open, and reconciles both into one local, de-duplicated view. When
// the stream cannot be re-established it degrades to fixed-interval polling
// of the same pull endpoint.
package notifystream

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XuanDongVo/Rental-Home-sub001/pkg/errors"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/json"
)

// State is the connection state of a Session.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StatePolling:
		return "polling"
	default:
		return "disconnected"
	}
}

// Notification is the wire form of a server notification.
type Notification struct {
	ID          int64                  `json:"id"`
	RecipientID string                 `json:"recipientId"`
	Type        string                 `json:"type"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	IsRead      bool                   `json:"isRead"`
	CreatedAt   time.Time              `json:"createdAt"`
}

// Notifier is an optional host capability (desktop alert, badge update)
// invoked for newly observed unread notifications. Session correctness never
// depends on it.
type Notifier interface {
	Notify(n *Notification)
}

// Options configure a Session. Zero values take the defaults below.
type Options struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *zap.Logger

	// ReconnectSchedule is the wait before each reconnect attempt. When the
	// schedule is exhausted the session falls back to polling.
	ReconnectSchedule []time.Duration
	PollInterval      time.Duration

	Notifier Notifier
}

var defaultReconnectSchedule = []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}

const defaultPollInterval = 30 * time.Second

// Snapshot is a point-in-time copy of the session's local state.
type Snapshot struct {
	State         State
	Unread        int
	Notifications []Notification
}

// Session maintains the local notification view for one authenticated user.
// All exported methods are safe for concurrent use.
type Session struct {
	opts   Options
	log    *zap.Logger
	client *http.Client
	id     string

	mu            sync.Mutex
	state         State
	notifications map[int64]*Notification
	unread        int
	seeded        bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession builds a Session. Call Start to begin streaming.
func NewSession(opts Options) *Session {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.ReconnectSchedule) == 0 {
		opts.ReconnectSchedule = defaultReconnectSchedule
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	id := uuid.NewString()
	return &Session{
		opts:          opts,
		log:           opts.Logger.With(zap.String("session_id", id)),
		client:        opts.HTTPClient,
		id:            id,
		notifications: make(map[int64]*Notification),
		done:          make(chan struct{}),
	}
}

// Start launches the session loop. It returns immediately; Close tears the
// session down and waits for the loop to exit.
func (s *Session) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

// Close cancels the stream and any pending timer, then waits for the run
// loop to finish.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

// Snapshot returns the current connection state, unread count, and the local
// notification list sorted newest first.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]Notification, 0, len(s.notifications))
	for _, n := range s.notifications {
		list = append(list, *n)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	return Snapshot{State: s.state, Unread: s.unread, Notifications: list}
}

// MarkRead flips one notification's read flag locally, then persists it. If
// the server call fails the local flag is restored and the error returned.
func (s *Session) MarkRead(ctx context.Context, id int64) error {
	s.mu.Lock()
	n, ok := s.notifications[id]
	var prev bool
	if ok {
		prev = n.IsRead
		n.IsRead = true
		s.recountLocked()
	}
	s.mu.Unlock()

	err := s.put(ctx, fmt.Sprintf("/notifications/%d/read", id))
	if err != nil && ok {
		s.mu.Lock()
		n.IsRead = prev
		s.recountLocked()
		s.mu.Unlock()
	}
	return err
}

// MarkAllRead flips every local unread flag, then persists. On failure the
// previously unread entries are restored.
func (s *Session) MarkAllRead(ctx context.Context) error {
	s.mu.Lock()
	var flipped []*Notification
	for _, n := range s.notifications {
		if !n.IsRead {
			n.IsRead = true
			flipped = append(flipped, n)
		}
	}
	s.recountLocked()
	s.mu.Unlock()

	err := s.put(ctx, "/notifications/mark-all-read")
	if err != nil {
		s.mu.Lock()
		for _, n := range flipped {
			n.IsRead = false
		}
		s.recountLocked()
		s.mu.Unlock()
	}
	return err
}

// Refresh pulls the snapshot endpoint once and merges it into local state.
func (s *Session) Refresh(ctx context.Context) error {
	return s.refresh(ctx)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.setState(StateDisconnected)

	s.setState(StateConnecting)
	if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("initial snapshot pull failed", zap.Error(err))
	}

	sched := &scheduleBackOff{schedule: s.opts.ReconnectSchedule}
	for {
		connected, err := s.stream(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			sched.Reset()
		}
		s.log.Warn("notification stream lost", zap.Error(err))
		s.setState(StateReconnecting)

		wait := sched.NextBackOff()
		if wait == backoff.Stop {
			s.poll(ctx)
			return
		}
		if !sleep(ctx, wait) {
			return
		}
		s.setState(StateConnecting)
	}
}

// stream opens the event stream and consumes it until it breaks. The bool
// reports whether the stream was ever established; a connected stream that
// later drops resets the reconnect schedule.
func (s *Session) stream(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.BaseURL+"/notifications/subscribe", nil)
	if err != nil {
		return false, errors.Transport("failed to build stream request", err)
	}
	s.authorize(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return false, errors.Transport("failed to open notification stream", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, errors.Transport(fmt.Sprintf("notification stream returned status %d", resp.StatusCode), nil)
	}

	s.setState(StateConnected)
	// Re-pull after (re)connecting: events raised while disconnected are only
	// in the durable store. Events arriving during the pull queue up in the
	// response body and are merged by id afterwards.
	if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("post-connect snapshot pull failed", zap.Error(err))
	}

	scanner := bufio.NewScanner(resp.Body)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if event == "notification" && data != "" {
				s.ingestEvent(data)
			}
			event, data = "", ""
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		// Comment lines (heartbeats) fall through untouched.
	}
	return true, errors.Transport("notification stream closed", scanner.Err())
}

// poll refreshes at a fixed interval until the session is torn down. There
// is no path back to streaming; a new Session starts fresh.
func (s *Session) poll(ctx context.Context) {
	s.setState(StatePolling)
	if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
		s.log.Warn("poll refresh failed", zap.Error(err))
	}
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.refresh(ctx); err != nil && ctx.Err() == nil {
				s.log.Warn("poll refresh failed", zap.Error(err))
			}
		}
	}
}

// refresh pulls the full pending list and merges it by id. The same routine
// backs the initial seed, the post-reconnect catch-up, and the polling
// fallback so the paths cannot drift.
func (s *Session) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.BaseURL+"/notifications", nil)
	if err != nil {
		return errors.Transport("failed to build pull request", err)
	}
	s.authorize(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Transport("notification pull failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Transport(fmt.Sprintf("notification pull returned status %d", resp.StatusCode), nil)
	}

	var pulled []*Notification
	if err := json.NewDecoder(resp.Body).Decode(&pulled); err != nil {
		return errors.Transport("failed to decode notification pull", err)
	}

	s.mu.Lock()
	notify := s.seeded
	var fresh []*Notification
	for _, n := range pulled {
		if _, seen := s.notifications[n.ID]; !seen && !n.IsRead {
			fresh = append(fresh, n)
		}
		s.notifications[n.ID] = n
	}
	s.seeded = true
	s.recountLocked()
	s.mu.Unlock()

	// The very first pull seeds existing state and stays silent; later pulls
	// surface what arrived while disconnected.
	if notify && s.opts.Notifier != nil {
		for _, n := range fresh {
			s.opts.Notifier.Notify(n)
		}
	}
	return nil
}

func (s *Session) ingestEvent(data string) {
	n := &Notification{}
	if err := json.Unmarshal([]byte(data), n); err != nil {
		s.log.Error("failed to decode notification event", zap.Error(err))
		return
	}
	s.mu.Lock()
	_, seen := s.notifications[n.ID]
	s.notifications[n.ID] = n
	s.recountLocked()
	s.mu.Unlock()

	if !seen && !n.IsRead && s.opts.Notifier != nil {
		s.opts.Notifier.Notify(n)
	}
}

// recountLocked re-derives the unread counter from the de-duplicated local
// list so incremental drift self-corrects. Callers hold mu.
func (s *Session) recountLocked() {
	unread := 0
	for _, n := range s.notifications {
		if !n.IsRead {
			unread++
		}
	}
	s.unread = unread
}

func (s *Session) put(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.opts.BaseURL+path, nil)
	if err != nil {
		return errors.Transport("failed to build request", err)
	}
	s.authorize(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Transport("request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Transport(fmt.Sprintf("request returned status %d", resp.StatusCode), nil)
	}
	return nil
}

func (s *Session) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.opts.Token)
	req.Header.Set("X-Client-Session", s.id)
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()
	if prev != state {
		s.log.Info("session state changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", state))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// scheduleBackOff walks a fixed wait schedule, then stops. Reset rewinds it
// after a successful connection.
type scheduleBackOff struct {
	schedule []time.Duration
	next     int
}

var _ backoff.BackOff = (*scheduleBackOff)(nil)

func (b *scheduleBackOff) NextBackOff() time.Duration {
	if b.next >= len(b.schedule) {
		return backoff.Stop
	}
	d := b.schedule[b.next]
	b.next++
	return d
}

func (b *scheduleBackOff) Reset() { b.next = 0 }
