// Package chat owns the chat and message lifecycle: creation, curator
// assignment, closing, posting, editing and read marking. Every
// successful mutation emits one domain event; illegal transitions are
// rejected before anything is written or emitted.
package chat

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"kurator/internal/content"
	"kurator/internal/models"
)

type Store interface {
	GetTopic(id string) (models.ChatTopic, error)
	UpsertChat(chat models.Chat) error
	GetChat(id string) (models.Chat, error)
	AppendMessage(msg *models.ChatMessage) error
	GetMessage(chatID string, id int64) (models.ChatMessage, error)
	UpdateMessage(msg models.ChatMessage) error
	DeleteMessage(chatID string, id int64) error
	MarkRead(chatID, readerID string, watermark int64) (int, error)
	UnreadCount(chatID, viewerID string) (int, error)
}

type Service struct {
	*Notifier

	store Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(store Store, events Events, log *slog.Logger) *Service {
	return &Service{
		Notifier: NewNotifier(events),
		store:    store,
		log:      log,
		now:      time.Now,
	}
}

// CreateClientChat opens a topic chat for a client.
func (s *Service) CreateClientChat(client models.User, topicID string) (models.Chat, error) {
	topic, err := s.store.GetTopic(topicID)
	if err != nil {
		return models.Chat{}, fmt.Errorf("topic lookup: %w", err)
	}

	chat := models.Chat{
		ID:        uuid.NewString(),
		ClientID:  client.ID,
		Topic:     &topic,
		Status:    models.ChatStatusOpen,
		Type:      models.ChatTypeTopic,
		CreatedAt: s.now(),
	}
	if err := s.store.UpsertChat(chat); err != nil {
		return models.Chat{}, err
	}

	s.log.Info("chat created", "chat_id", chat.ID, "topic", topic.Permission, "client_id", client.ID)
	s.NotifyNewChat(chat, client)
	return chat, nil
}

// CreateCuratorChat opens an order chat: no topic, curator preset.
func (s *Service) CreateCuratorChat(curator models.User, clientID string) (models.Chat, error) {
	chat := models.Chat{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		CuratorID: curator.ID,
		Status:    models.ChatStatusOpen,
		Type:      models.ChatTypeOrder,
		CreatedAt: s.now(),
	}
	if err := s.store.UpsertChat(chat); err != nil {
		return models.Chat{}, err
	}

	s.log.Info("order chat created", "chat_id", chat.ID, "curator_id", curator.ID, "client_id", clientID)
	s.NotifyNewChat(chat, curator)
	return chat, nil
}

func (s *Service) GetChat(chatID string) (models.Chat, error) {
	return s.store.GetChat(chatID)
}

// AssignCurator sets the curator and moves the chat to IN_PROGRESS in
// one write. CLOSED is terminal: assigning would reopen the chat, so
// it is rejected before anything is written or emitted.
func (s *Service) AssignCurator(chatID string, curator models.User) (models.Chat, error) {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if chat.Closed() {
		return models.Chat{}, models.ErrChatClosed
	}

	chat.CuratorID = curator.ID
	chat.Status = models.ChatStatusInProgress
	if err := s.store.UpsertChat(chat); err != nil {
		return models.Chat{}, err
	}

	s.NotifyCuratorAssigned(chat)
	return chat, nil
}

// Close moves the chat to CLOSED. Closing an already closed chat is a
// no-op and emits nothing.
func (s *Service) Close(chatID string) (models.Chat, error) {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return models.Chat{}, err
	}
	if chat.Closed() {
		return chat, nil
	}

	chat.Status = models.ChatStatusClosed
	chat.ClosedAt = s.now()
	if err := s.store.UpsertChat(chat); err != nil {
		return models.Chat{}, err
	}

	s.NotifyChatStatusChanged(chat)
	return chat, nil
}

// ChatUpdate carries the curator-editable chat fields. Nil means
// "leave as is".
type ChatUpdate struct {
	TopicID *string
	Status  *models.ChatStatus
}

// UpdateChat applies a partial curator edit. A status change emits
// update_chat_status; a pure topic change emits nothing.
func (s *Service) UpdateChat(chatID string, update ChatUpdate) (models.Chat, error) {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return models.Chat{}, err
	}

	if update.TopicID != nil {
		topic, err := s.store.GetTopic(*update.TopicID)
		if err != nil {
			return models.Chat{}, fmt.Errorf("topic lookup: %w", err)
		}
		chat.Topic = &topic
	}

	statusChanged := false
	if update.Status != nil && *update.Status != chat.Status {
		// No way back from CLOSED; topic edits on a closed chat are
		// still fine, they only relabel history.
		if chat.Closed() {
			return models.Chat{}, models.ErrChatClosed
		}
		chat.Status = *update.Status
		statusChanged = true
		if chat.Status == models.ChatStatusClosed {
			chat.ClosedAt = s.now()
		}
	}

	if err := s.store.UpsertChat(chat); err != nil {
		return models.Chat{}, err
	}
	if statusChanged {
		s.NotifyChatStatusChanged(chat)
	}
	return chat, nil
}

// MessageInput is the caller-supplied part of a message.
type MessageInput struct {
	Text  string
	Type  models.MessageType
	Files []models.MessageFile
}

// PostMessage appends a message to an open chat. A CLOSED chat rejects
// the message and no event leaves the system.
func (s *Service) PostMessage(chatID string, sender models.User, in MessageInput) (models.ChatMessage, error) {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	if chat.Closed() {
		return models.ChatMessage{}, models.ErrChatClosed
	}

	msgType := in.Type
	if msgType == "" {
		msgType = models.MessageTypeText
	}
	msg := models.ChatMessage{
		ChatID:    chatID,
		SenderID:  sender.ID,
		Text:      content.Sanitize(in.Text),
		Type:      msgType,
		CreatedAt: s.now(),
		Files:     in.Files,
	}
	if err := s.store.AppendMessage(&msg); err != nil {
		return models.ChatMessage{}, err
	}

	s.NotifyNewMessage(chat, msg)
	return msg, nil
}

// EditMessage replaces text and/or type of a message. Only the
// original sender may edit.
func (s *Service) EditMessage(chatID string, messageID int64, editor models.User, in MessageInput) (models.ChatMessage, error) {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	msg, err := s.store.GetMessage(chatID, messageID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	if msg.SenderID != editor.ID {
		return models.ChatMessage{}, models.ErrNotSender
	}

	msg.Text = content.Sanitize(in.Text)
	if in.Type != "" {
		msg.Type = in.Type
	}
	if err := s.store.UpdateMessage(msg); err != nil {
		return models.ChatMessage{}, err
	}

	s.NotifyMessageUpdated(chat, msg)
	return msg, nil
}

// DeleteMessage removes the message and announces the removal by IDs.
func (s *Service) DeleteMessage(chatID string, messageID int64) error {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteMessage(chatID, messageID); err != nil {
		return err
	}

	s.NotifyMessageDeleted(chat, messageID)
	return nil
}

// MarkRead marks everything up to the watermark that the reader did
// not send, and announces the watermark. Re-marking is harmless.
func (s *Service) MarkRead(chatID string, reader models.User, watermark int64) (int, error) {
	chat, err := s.store.GetChat(chatID)
	if err != nil {
		return 0, err
	}

	touched, err := s.store.MarkRead(chatID, reader.ID, watermark)
	if err != nil {
		return 0, err
	}

	s.NotifyMessagesRead(chat, reader, watermark)
	return touched, nil
}

// UnreadCount reports how many messages the viewer has not read.
func (s *Service) UnreadCount(chatID, viewerID string) (int, error) {
	return s.store.UnreadCount(chatID, viewerID)
}
