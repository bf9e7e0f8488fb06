package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"kurator/internal/models"
)

func newTestStorage(t *testing.T) *BboltStorage {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "storage_test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(tmpDir) })

	store, err := NewBboltStorage(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStorage(t *testing.T) {
	store := newTestStorage(t)

	topic := models.ChatTopic{ID: "t1", Title: "Billing", Permission: "billing"}
	chat := models.Chat{
		ID:        "chat1",
		ClientID:  "client1",
		Topic:     &topic,
		Status:    models.ChatStatusOpen,
		Type:      models.ChatTypeTopic,
		CreatedAt: time.Unix(1700000000, 0),
	}

	t.Run("Topics", func(t *testing.T) {
		if err := store.UpsertTopic(topic); err != nil {
			t.Fatalf("UpsertTopic failed: %v", err)
		}
		got, err := store.GetTopic("t1")
		if err != nil {
			t.Fatalf("GetTopic failed: %v", err)
		}
		if got.Permission != "billing" {
			t.Errorf("expected permission billing, got %s", got.Permission)
		}
		topics, err := store.ListTopics()
		if err != nil {
			t.Fatalf("ListTopics failed: %v", err)
		}
		if len(topics) != 1 {
			t.Errorf("expected 1 topic, got %d", len(topics))
		}
	})

	t.Run("Chats", func(t *testing.T) {
		if err := store.UpsertChat(chat); err != nil {
			t.Fatalf("UpsertChat failed: %v", err)
		}
		got, err := store.GetChat("chat1")
		if err != nil {
			t.Fatalf("GetChat failed: %v", err)
		}
		if got.Status != models.ChatStatusOpen {
			t.Errorf("expected status open, got %s", got.Status)
		}
		if got.Topic == nil || got.Topic.Permission != "billing" {
			t.Errorf("topic not resolved on read: %+v", got.Topic)
		}

		if _, err := store.GetChat("missing"); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Messages", func(t *testing.T) {
		for i, sender := range []string{"client1", "curator1", "curator1"} {
			msg := &models.ChatMessage{
				ChatID:    "chat1",
				SenderID:  sender,
				Text:      "hello",
				Type:      models.MessageTypeText,
				CreatedAt: time.Unix(1700000100+int64(i), 0),
			}
			if err := store.AppendMessage(msg); err != nil {
				t.Fatalf("AppendMessage failed: %v", err)
			}
			if msg.ID != int64(i+1) {
				t.Errorf("expected sequential ID %d, got %d", i+1, msg.ID)
			}
		}

		messages, err := store.ListMessages("chat1", 0)
		if err != nil {
			t.Fatalf("ListMessages failed: %v", err)
		}
		if len(messages) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(messages))
		}
		// Most recent first.
		if messages[0].ID != 3 || messages[2].ID != 1 {
			t.Errorf("wrong ordering: %v, %v, %v", messages[0].ID, messages[1].ID, messages[2].ID)
		}

		limited, err := store.ListMessages("chat1", 2)
		if err != nil {
			t.Fatalf("ListMessages limited failed: %v", err)
		}
		if len(limited) != 2 {
			t.Errorf("expected 2 messages, got %d", len(limited))
		}
	})

	t.Run("UpdateDelete", func(t *testing.T) {
		msg, err := store.GetMessage("chat1", 1)
		if err != nil {
			t.Fatalf("GetMessage failed: %v", err)
		}
		msg.Text = "edited"
		if err := store.UpdateMessage(msg); err != nil {
			t.Fatalf("UpdateMessage failed: %v", err)
		}
		got, err := store.GetMessage("chat1", 1)
		if err != nil {
			t.Fatalf("GetMessage after update failed: %v", err)
		}
		if got.Text != "edited" {
			t.Errorf("expected edited text, got %q", got.Text)
		}

		if err := store.DeleteMessage("chat1", 1); err != nil {
			t.Fatalf("DeleteMessage failed: %v", err)
		}
		if _, err := store.GetMessage("chat1", 1); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if err := store.DeleteMessage("chat1", 1); !errors.Is(err, models.ErrNotFound) {
			t.Errorf("expected ErrNotFound on double delete, got %v", err)
		}
	})
}

func TestStorage_ReadMarking(t *testing.T) {
	store := newTestStorage(t)

	chat := models.Chat{
		ID:        "chat1",
		ClientID:  "client1",
		Status:    models.ChatStatusOpen,
		Type:      models.ChatTypeOrder,
		CreatedAt: time.Unix(1700000000, 0),
	}
	if err := store.UpsertChat(chat); err != nil {
		t.Fatal(err)
	}

	// client, curator, curator, curator
	for _, sender := range []string{"client1", "curator1", "curator1", "curator1"} {
		msg := &models.ChatMessage{
			ChatID:    "chat1",
			SenderID:  sender,
			Text:      "m",
			Type:      models.MessageTypeText,
			CreatedAt: time.Unix(1700000100, 0),
		}
		if err := store.AppendMessage(msg); err != nil {
			t.Fatal(err)
		}
	}

	count, err := store.UnreadCount("chat1", "client1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3 unread for client, got %d", count)
	}
	count, err = store.UnreadCount("chat1", "curator1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 unread for curator, got %d", count)
	}

	// Client reads up to message 3: curator messages 2 and 3 flip, the
	// client's own message 1 does not, message 4 stays unread.
	touched, err := store.MarkRead("chat1", "client1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if touched != 2 {
		t.Errorf("expected 2 rows touched, got %d", touched)
	}

	count, err = store.UnreadCount("chat1", "client1")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 unread left, got %d", count)
	}

	// Idempotent: same watermark touches zero rows.
	touched, err = store.MarkRead("chat1", "client1", 3)
	if err != nil {
		t.Fatal(err)
	}
	if touched != 0 {
		t.Errorf("expected 0 rows touched on re-mark, got %d", touched)
	}

	msg, err := store.GetMessage("chat1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if msg.IsRead {
		t.Error("reader's own message must not be marked read")
	}

	if _, err := store.MarkRead("missing", "client1", 1); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing chat, got %v", err)
	}
}
