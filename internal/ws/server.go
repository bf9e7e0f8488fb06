package ws

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"kurator/internal/identity"
)

type identityResolver interface {
	Resolve(token string) (identity.Identity, error)
}

type Server struct {
	resolver identityResolver
	hub      *Hub
	upgrader *websocket.Upgrader
	log      *slog.Logger
}

func NewServer(resolver identityResolver, hub *Hub, log *slog.Logger) *Server {
	return &Server{
		resolver: resolver,
		hub:      hub,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // clients connect from app origins we don't control
			},
		},
		log: log,
	}
}

// HandleConnections authenticates the token query parameter and runs
// the connection until the socket dies. A failed resolution refuses
// the connection before any state is created.
func (s *Server) HandleConnections(w http.ResponseWriter, r *http.Request) {
	id, err := s.resolver.Resolve(r.URL.Query().Get("token"))
	if err != nil {
		if !errors.Is(err, identity.ErrBadToken) {
			s.log.Error("identity resolution failed", "error", err)
		}
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := NewConnection(s.hub, ws, id, s.log)
	if err := conn.Handle(r.Context()); err != nil {
		s.log.Debug("connection ended", "user_id", id.UserID, "error", err)
	}
}
