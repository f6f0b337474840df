// Package server assembles the REST surface of the messaging core.
package server

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/XuanDongVo/Rental-Home-sub001/internal/server/handlers"
	"github.com/XuanDongVo/Rental-Home-sub001/internal/service/user"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/metrics"
)

// Deps are the services the REST layer exposes.
type Deps struct {
	Chat          handlers.ChatService
	Notifications handlers.NotificationService
	Users         user.Directory
}

// NewRouter builds the full route table with auth, request-id, and
// observability middleware applied.
func NewRouter(log *zap.Logger, jwtSecret string, deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /chat/send", handlers.SendMessageHandler(log, deps.Chat))
	mux.Handle("GET /chat/history", handlers.HistoryHandler(log, deps.Chat))
	mux.Handle("POST /chat/edit", handlers.EditMessageHandler(log, deps.Chat))
	mux.Handle("POST /chat/recall", handlers.RecallMessageHandler(log, deps.Chat))
	mux.Handle("POST /chat/delete-for-me", handlers.DeleteForMeHandler(log, deps.Chat))
	mux.Handle("POST /chat/mark-read", handlers.MarkConversationReadHandler(log, deps.Chat))
	mux.Handle("GET /chat/unread", handlers.UnreadCountHandler(log, deps.Chat))
	mux.Handle("GET /chat/conversations", handlers.ListConversationsHandler(log, deps.Chat))
	mux.Handle("GET /chat/users", handlers.SearchUsersHandler(log, deps.Users))
	mux.Handle("GET /chat/user/{id}", handlers.GetUserHandler(log, deps.Users))

	mux.Handle("GET /notifications", handlers.ListNotificationsHandler(log, deps.Notifications))
	mux.Handle("GET /notifications/subscribe", handlers.SubscribeHandler(log, deps.Notifications))
	mux.Handle("GET /notifications/subscribe/ws", handlers.SubscribeWSHandler(log, deps.Notifications))
	mux.Handle("PUT /notifications/{id}/read", handlers.MarkNotificationReadHandler(log, deps.Notifications))
	mux.Handle("PUT /notifications/mark-all-read", handlers.MarkAllNotificationsReadHandler(log, deps.Notifications))

	var handler http.Handler = mux
	handler = Auth(jwtSecret, log)(handler)
	handler = Observe(log)(handler)
	handler = RequestID(handler)
	return handler
}

// NewHTTPServer wraps the router in an http.Server with sane timeouts.
// Write timeout stays unset so live streams are not cut off.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// NewMetricsServer serves the metrics and health endpoints on a separate port.
func NewMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Shutdown gracefully stops a server with a timeout. The parent context is
// typically already canceled at this point, so the deadline is fresh.
func Shutdown(log *zap.Logger, srv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
}
