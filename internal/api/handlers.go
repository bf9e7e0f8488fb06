// Package api exposes the chat lifecycle over plain JSON endpoints so
// collaborating services and the dev tools can drive the system
// without a websocket.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"kurator/internal/chat"
	"kurator/internal/identity"
	"kurator/internal/models"
)

var validate = validator.New()

type Lister interface {
	ListTopics() ([]models.ChatTopic, error)
	ListMessages(chatID string, limit int) ([]models.ChatMessage, error)
	GetMessage(chatID string, id int64) (models.ChatMessage, error)
	UpsertTopic(topic models.ChatTopic) error
}

type identityResolver interface {
	Resolve(token string) (identity.Identity, error)
}

type onlineChecker interface {
	IsUserOnline(userID string) bool
}

type API struct {
	resolver identityResolver
	chats    *chat.Service
	store    Lister
	presence onlineChecker
	log      *slog.Logger
}

func New(resolver identityResolver, chats *chat.Service, store Lister, presence onlineChecker, log *slog.Logger) *API {
	return &API{
		resolver: resolver,
		chats:    chats,
		store:    store,
		presence: presence,
		log:      log,
	}
}

func (a *API) getToken(r *http.Request) string {
	token := r.Header.Get("token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	return token
}

type authedHandler func(w http.ResponseWriter, r *http.Request, id identity.Identity)

func (a *API) RequireAuth(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := a.resolver.Resolve(a.getToken(r))
		if err != nil {
			if !errors.Is(err, identity.ErrBadToken) {
				a.log.Error("identity resolution failed", "error", err)
			}
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r, id)
	}
}

func (a *API) RequireCurator(next authedHandler) http.HandlerFunc {
	return a.RequireAuth(func(w http.ResponseWriter, r *http.Request, id identity.Identity) {
		if id.Role != models.RoleCurator {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next(w, r, id)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Error("encode response", "error", err)
	}
}

// writeError maps domain sentinels onto HTTP statuses.
func (a *API) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, models.ErrChatClosed):
		http.Error(w, "Chat is closed", http.StatusConflict)
	case errors.Is(err, models.ErrNotSender):
		http.Error(w, "Forbidden", http.StatusForbidden)
	default:
		a.log.Error("request failed", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func decodeValid[T any](r *http.Request) (T, error) {
	var req T
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return req, err
	}
	if err := validate.Struct(&req); err != nil {
		return req, err
	}
	return req, nil
}

func (a *API) ListTopicsHandler(w http.ResponseWriter, r *http.Request, _ identity.Identity) {
	topics, err := a.store.ListTopics()
	if err != nil {
		a.writeError(w, err)
		return
	}
	if topics == nil {
		topics = []models.ChatTopic{}
	}
	a.writeJSON(w, http.StatusOK, topics)
}

type createChatRequest struct {
	TopicID  string `json:"topic_id" validate:"required_without=ClientID"`
	ClientID string `json:"client_id" validate:"required_without=TopicID"`
}

// CreateChatHandler opens a chat. Clients open topic chats against one
// of the published topics; curators open order chats toward a client.
func (a *API) CreateChatHandler(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	req, err := decodeValid[createChatRequest](r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var created models.Chat
	switch id.Role {
	case models.RoleCurator:
		if req.ClientID == "" {
			http.Error(w, "client_id is required", http.StatusBadRequest)
			return
		}
		created, err = a.chats.CreateCuratorChat(models.User{ID: id.UserID, Role: id.Role}, req.ClientID)
	default:
		if req.TopicID == "" {
			http.Error(w, "topic_id is required", http.StatusBadRequest)
			return
		}
		created, err = a.chats.CreateClientChat(models.User{ID: id.UserID, Role: id.Role}, req.TopicID)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, created)
}

func (a *API) GetChatHandler(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	c, err := a.chats.GetChat(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	unread, err := a.chats.UnreadCount(c.ID, id.UserID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, struct {
		models.Chat
		Unread int `json:"unread"`
	}{Chat: c, Unread: unread})
}

type updateChatRequest struct {
	TopicID *string `json:"topic_id"`
	Status  *string `json:"status"`
}

func (a *API) UpdateChatHandler(w http.ResponseWriter, r *http.Request, _ identity.Identity) {
	req, err := decodeValid[updateChatRequest](r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	update := chat.ChatUpdate{TopicID: req.TopicID}
	if req.Status != nil {
		status := models.ChatStatus(*req.Status)
		if !status.Valid() {
			http.Error(w, "Unknown status", http.StatusBadRequest)
			return
		}
		update.Status = &status
	}

	updated, err := a.chats.UpdateChat(r.PathValue("id"), update)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, updated)
}

func (a *API) AssignHandler(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	updated, err := a.chats.AssignCurator(r.PathValue("id"), models.User{ID: id.UserID, Role: id.Role})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, updated)
}

func (a *API) CloseChatHandler(w http.ResponseWriter, r *http.Request, _ identity.Identity) {
	closed, err := a.chats.Close(r.PathValue("id"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, closed)
}

func (a *API) ListMessagesHandler(w http.ResponseWriter, r *http.Request, _ identity.Identity) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	msgs, err := a.store.ListMessages(r.PathValue("id"), limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	a.writeJSON(w, http.StatusOK, msgs)
}

type postMessageRequest struct {
	Text        string               `json:"text" validate:"required_without=Files"`
	MessageType string               `json:"message_type"`
	Files       []models.MessageFile `json:"files"`
}

func (a *API) PostMessageHandler(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	req, err := decodeValid[postMessageRequest](r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	msgType := models.MessageType(req.MessageType)
	if req.MessageType != "" && !msgType.Valid() {
		http.Error(w, "Unknown message type", http.StatusBadRequest)
		return
	}

	msg, err := a.chats.PostMessage(r.PathValue("id"), models.User{ID: id.UserID, Role: id.Role}, chat.MessageInput{
		Text:  req.Text,
		Type:  msgType,
		Files: req.Files,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, msg)
}

func (a *API) messageID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("msgID"), 10, 64)
}

type editMessageRequest struct {
	Text        string `json:"text" validate:"required"`
	MessageType string `json:"message_type"`
}

func (a *API) EditMessageHandler(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	msgID, err := a.messageID(r)
	if err != nil {
		http.Error(w, "Invalid message id", http.StatusBadRequest)
		return
	}
	req, err := decodeValid[editMessageRequest](r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	msgType := models.MessageType(req.MessageType)
	if req.MessageType != "" && !msgType.Valid() {
		http.Error(w, "Unknown message type", http.StatusBadRequest)
		return
	}

	msg, err := a.chats.EditMessage(r.PathValue("id"), msgID, models.User{ID: id.UserID, Role: id.Role}, chat.MessageInput{
		Text: req.Text,
		Type: msgType,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, msg)
}

// DeleteMessageHandler removes a message. The sender may delete their
// own messages; curators may delete any.
func (a *API) DeleteMessageHandler(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	msgID, err := a.messageID(r)
	if err != nil {
		http.Error(w, "Invalid message id", http.StatusBadRequest)
		return
	}
	chatID := r.PathValue("id")

	if id.Role != models.RoleCurator {
		msg, err := a.store.GetMessage(chatID, msgID)
		if err != nil {
			a.writeError(w, err)
			return
		}
		if msg.SenderID != id.UserID {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	if err := a.chats.DeleteMessage(chatID, msgID); err != nil {
		a.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type markReadRequest struct {
	LastMessageID int64 `json:"last_message_id" validate:"required,gt=0"`
}

func (a *API) MarkReadHandler(w http.ResponseWriter, r *http.Request, id identity.Identity) {
	req, err := decodeValid[markReadRequest](r)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	touched, err := a.chats.MarkRead(r.PathValue("id"), models.User{ID: id.UserID, Role: id.Role}, req.LastMessageID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]int{"marked": touched})
}

func (a *API) UserOnlineHandler(w http.ResponseWriter, r *http.Request, _ identity.Identity) {
	userID := r.PathValue("id")
	a.writeJSON(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"online":  a.presence.IsUserOnline(userID),
	})
}
