package chat

import (
	"kurator/internal/broker"
	"kurator/internal/dispatch"
	"kurator/internal/models"
)

// Events is the slice of the dispatcher this package needs.
type Events interface {
	Dispatch(eventType dispatch.EventType, data any, target dispatch.Target)
}

// GroupForChat resolves the broadcast group of a chat: the topic's
// permission label, or the curator pool for topicless (order) chats.
func GroupForChat(chat models.Chat) string {
	if chat.Topic == nil {
		return broker.CuratorGroup
	}
	return chat.Topic.Permission
}

// Notifier is the notify-only surface for callers that already
// persisted a mutation. Each method emits exactly one event with the
// fan-out targets of that event type.
type Notifier struct {
	events Events
}

func NewNotifier(events Events) *Notifier {
	return &Notifier{events: events}
}

func (n *Notifier) NotifyNewChat(chat models.Chat, actor models.User) {
	n.events.Dispatch(dispatch.EventNewChat, dispatch.NewChatPayload{
		ChatID:   chat.ID,
		ChatType: chat.Type,
		UserID:   actor.ID,
	}, dispatch.ToGroupAndUser(GroupForChat(chat), chat.ClientID))
}

func (n *Notifier) NotifyNewMessage(chat models.Chat, msg models.ChatMessage) {
	n.events.Dispatch(dispatch.EventNewMessage, dispatch.NewMessagePayload(msg),
		dispatch.ToGroupAndUser(GroupForChat(chat), chat.ClientID))
}

func (n *Notifier) NotifyMessageUpdated(chat models.Chat, msg models.ChatMessage) {
	n.events.Dispatch(dispatch.EventUpdateMessage, dispatch.NewMessagePayload(msg),
		dispatch.ToGroupAndUser(GroupForChat(chat), chat.ClientID))
}

// NotifyMessageDeleted carries IDs only; the payload is never replayed.
func (n *Notifier) NotifyMessageDeleted(chat models.Chat, messageID int64) {
	n.events.Dispatch(dispatch.EventDeleteMessage, dispatch.DeleteMessagePayload{
		ChatID:    chat.ID,
		MessageID: messageID,
	}, dispatch.ToGroupAndUser(GroupForChat(chat), chat.ClientID))
}

// NotifyCuratorAssigned broadcasts to the chat's group only; the
// client learns about the assignment through subsequent traffic.
func (n *Notifier) NotifyCuratorAssigned(chat models.Chat) {
	n.events.Dispatch(dispatch.EventAssignCurator, dispatch.AssignCuratorPayload{
		ChatID:    chat.ID,
		CuratorID: chat.CuratorID,
	}, dispatch.ToGroup(GroupForChat(chat)))
}

func (n *Notifier) NotifyChatStatusChanged(chat models.Chat) {
	n.events.Dispatch(dispatch.EventUpdateChatStatus, dispatch.ChatStatusPayload{
		ChatID: chat.ID,
		Status: chat.Status,
	}, dispatch.ToGroupAndUser(GroupForChat(chat), chat.ClientID))
}

// NotifyMessagesRead routes on the reader's role: a reading client is
// announced to the curators watching the group, a reading curator is
// announced to the client's own connections.
func (n *Notifier) NotifyMessagesRead(chat models.Chat, reader models.User, watermark int64) {
	payload := dispatch.ReadChatMessagePayload{
		ChatID:        chat.ID,
		LastMessageID: watermark,
		UserID:        reader.ID,
	}
	if reader.Role == models.RoleClient {
		n.events.Dispatch(dispatch.EventReadChatMessage, payload,
			dispatch.ToGroup(GroupForChat(chat)))
		return
	}
	n.events.Dispatch(dispatch.EventReadChatMessage, payload,
		dispatch.ToUser(chat.ClientID))
}
