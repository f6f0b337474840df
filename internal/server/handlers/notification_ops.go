package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/XuanDongVo/Rental-Home-sub001/internal/server/httputil"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/service/notification"
	apperrors "github.com/XuanDongVo/Rental-Home-sub001/pkg/errors"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/json"
)

// NotificationService is the slice of the notification service the REST layer needs.
type NotificationService interface {
	List(ctx context.Context, recipientID string, limit int) ([]*notification.Notification, error)
	MarkRead(ctx context.Context, id int64, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Subscribe(userID string) *notification.Subscriber
	Unsubscribe(sub *notification.Subscriber)
}

const heartbeatInterval = 25 * time.Second

// ListNotificationsHandler handles GET /notifications.
func ListNotificationsHandler(log *zap.Logger, svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				limit = n
			}
		}
		notifications, err := svc.List(r.Context(), httputil.CallerID(r.Context()), limit)
		if err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		if notifications == nil {
			notifications = []*notification.Notification{}
		}
		httputil.WriteJSON(log, w, http.StatusOK, notifications)
	}
}

// MarkNotificationReadHandler handles PUT /notifications/{id}/read.
func MarkNotificationReadHandler(log *zap.Logger, svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			httputil.WriteError(log, w, apperrors.Validation("invalid notification id"))
			return
		}
		if err := svc.MarkRead(r.Context(), id, httputil.CallerID(r.Context())); err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// MarkAllNotificationsReadHandler handles PUT /notifications/mark-all-read.
func MarkAllNotificationsReadHandler(log *zap.Logger, svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := svc.MarkAllRead(r.Context(), httputil.CallerID(r.Context())); err != nil {
			httputil.WriteError(log, w, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// SubscribeHandler handles GET /notifications/subscribe as a Server-Sent
// Events stream. Each event is a named "notification" event whose data is the
// JSON-encoded Notification. The subscription lives until the client closes
// the connection.
func SubscribeHandler(log *zap.Logger, svc NotificationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming unsupported", http.StatusInternalServerError)
			return
		}
		caller := httputil.CallerID(r.Context())
		if id := r.URL.Query().Get("id"); id != "" && id != caller {
			httputil.WriteError(log, w, apperrors.Permission("cannot subscribe to another user's channel"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		flusher.Flush()

		sub := svc.Subscribe(caller)
		defer svc.Unsubscribe(sub)
		log.Info("live notification stream opened", zap.String("user_id", caller))

		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				log.Info("live notification stream closed", zap.String("user_id", caller))
				return
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
				flusher.Flush()
			case n, open := <-sub.Events():
				if !open {
					return
				}
				data, err := json.Marshal(n)
				if err != nil {
					log.Error("failed to encode notification event", zap.Error(err))
					continue
				}
				fmt.Fprintf(w, "event: notification\ndata: %s\n\n", data)
				flusher.Flush()
			}
		}
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Auth happens via the bearer token; the origin is not trusted for
		// anything, so cross-origin upgrades are allowed.
		return true
	},
}

// SubscribeWSHandler handles GET /notifications/subscribe/ws, the WebSocket
// variant of the live channel for clients that cannot hold an SSE stream.
func SubscribeWSHandler(log *zap.Logger, svc NotificationService) http.HandlerFunc {
	type frame struct {
		Type    string                     `json:"type"`
		Payload *notification.Notification `json:"payload"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		caller := httputil.CallerID(r.Context())
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("websocket upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		sub := svc.Subscribe(caller)
		defer svc.Unsubscribe(sub)

		// Read pump: drain client frames so pings and close frames are
		// processed, and signal when the peer goes away.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-closed:
				return
			case n, open := <-sub.Events():
				if !open {
					return
				}
				if err := conn.WriteJSON(frame{Type: "notification", Payload: n}); err != nil {
					log.Warn("failed to write websocket frame",
						zap.String("user_id", caller), zap.Error(err))
					return
				}
			}
		}
	}
}
