package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kurator/internal/api"
	"kurator/internal/ws"
)

type APIServer struct {
	server *http.Server
	log    *slog.Logger
	wg     sync.WaitGroup
}

func NewAPIServer(handlers *api.API, wsServer *ws.Server, addr string, log *slog.Logger) *APIServer {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/topics", handlers.RequireAuth(handlers.ListTopicsHandler))

	mux.HandleFunc("POST /api/chats", handlers.RequireAuth(handlers.CreateChatHandler))
	mux.HandleFunc("GET /api/chats/{id}", handlers.RequireAuth(handlers.GetChatHandler))
	mux.HandleFunc("PATCH /api/chats/{id}", handlers.RequireCurator(handlers.UpdateChatHandler))
	mux.HandleFunc("POST /api/chats/{id}/assign", handlers.RequireCurator(handlers.AssignHandler))
	mux.HandleFunc("POST /api/chats/{id}/close", handlers.RequireAuth(handlers.CloseChatHandler))

	mux.HandleFunc("GET /api/chats/{id}/messages", handlers.RequireAuth(handlers.ListMessagesHandler))
	mux.HandleFunc("POST /api/chats/{id}/messages", handlers.RequireAuth(handlers.PostMessageHandler))
	mux.HandleFunc("PUT /api/chats/{id}/messages/{msgID}", handlers.RequireAuth(handlers.EditMessageHandler))
	mux.HandleFunc("DELETE /api/chats/{id}/messages/{msgID}", handlers.RequireAuth(handlers.DeleteMessageHandler))
	mux.HandleFunc("POST /api/chats/{id}/read", handlers.RequireAuth(handlers.MarkReadHandler))

	mux.HandleFunc("GET /api/users/{id}/online", handlers.RequireAuth(handlers.UserOnlineHandler))

	// Event stream endpoint
	mux.HandleFunc("/ws", wsServer.HandleConnections)

	mux.Handle("GET /metrics", promhttp.Handler())

	if addr == "" {
		addr = ":8080"
	}

	return &APIServer{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		log: log,
	}
}

func (s *APIServer) Start() error {
	s.log.Info("server started", "addr", s.server.Addr)
	s.wg.Add(1)
	defer s.wg.Done()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *APIServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
