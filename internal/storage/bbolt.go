package storage

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"kurator/internal/models"
)

var (
	bucketTopics   = []byte("topics")
	bucketChats    = []byte("chats")
	bucketMessages = []byte("messages")
)

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{bucketTopics, bucketChats, bucketMessages} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// UpsertTopic stores a new or updated chat topic.
func (s *BboltStorage) UpsertTopic(topic models.ChatTopic) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		dbTopic := &DBTopic{
			ID:         topic.ID,
			Title:      topic.Title,
			Permission: topic.Permission,
		}
		data, err := dbTopic.MarshalBinary()
		if err != nil {
			return err
		}
		return tx.Bucket(bucketTopics).Put(dbTopic.Key(), data)
	})
}

func (s *BboltStorage) GetTopic(id string) (models.ChatTopic, error) {
	var topic models.ChatTopic
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTopics).Get([]byte(id))
		if data == nil {
			return models.ErrNotFound
		}
		var dbTopic DBTopic
		if err := dbTopic.UnmarshalBinary(data); err != nil {
			return err
		}
		topic = models.ChatTopic{
			ID:         dbTopic.ID,
			Title:      dbTopic.Title,
			Permission: dbTopic.Permission,
		}
		return nil
	})
	return topic, err
}

func (s *BboltStorage) ListTopics() ([]models.ChatTopic, error) {
	var topics []models.ChatTopic
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTopics).ForEach(func(k, v []byte) error {
			var dbTopic DBTopic
			if err := dbTopic.UnmarshalBinary(v); err != nil {
				return err
			}
			topics = append(topics, models.ChatTopic{
				ID:         dbTopic.ID,
				Title:      dbTopic.Title,
				Permission: dbTopic.Permission,
			})
			return nil
		})
	})
	return topics, err
}

// UpsertChat saves the chat. The message sequence counter is owned by
// AppendMessage and preserved across upserts.
func (s *BboltStorage) UpsertChat(chat models.Chat) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketChats)

		dbChat := DBChat{
			ID:        chat.ID,
			ClientID:  chat.ClientID,
			CuratorID: chat.CuratorID,
			Status:    string(chat.Status),
			ChatType:  string(chat.Type),
			CreatedAt: chat.CreatedAt.Unix(),
		}
		if chat.Topic != nil {
			dbChat.TopicID = chat.Topic.ID
		}
		if !chat.ClosedAt.IsZero() {
			dbChat.ClosedAt = chat.ClosedAt.Unix()
		}

		if existing := b.Get(dbChat.Key()); existing != nil {
			var prev DBChat
			if err := prev.UnmarshalBinary(existing); err != nil {
				return err
			}
			dbChat.LastSeq = prev.LastSeq
		}

		data, err := dbChat.MarshalBinary()
		if err != nil {
			return err
		}
		return b.Put(dbChat.Key(), data)
	})
}

func (s *BboltStorage) GetChat(id string) (models.Chat, error) {
	var chat models.Chat
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		chat, err = getChat(tx, id)
		return err
	})
	return chat, err
}

func getChat(tx *bbolt.Tx, id string) (models.Chat, error) {
	data := tx.Bucket(bucketChats).Get([]byte(id))
	if data == nil {
		return models.Chat{}, models.ErrNotFound
	}
	var dbChat DBChat
	if err := dbChat.UnmarshalBinary(data); err != nil {
		return models.Chat{}, err
	}

	chat := models.Chat{
		ID:        dbChat.ID,
		ClientID:  dbChat.ClientID,
		CuratorID: dbChat.CuratorID,
		Status:    models.ChatStatus(dbChat.Status),
		Type:      models.ChatType(dbChat.ChatType),
		CreatedAt: time.Unix(dbChat.CreatedAt, 0),
	}
	if dbChat.ClosedAt != 0 {
		chat.ClosedAt = time.Unix(dbChat.ClosedAt, 0)
	}
	if dbChat.TopicID != "" {
		topicData := tx.Bucket(bucketTopics).Get([]byte(dbChat.TopicID))
		if topicData != nil {
			var dbTopic DBTopic
			if err := dbTopic.UnmarshalBinary(topicData); err != nil {
				return models.Chat{}, err
			}
			chat.Topic = &models.ChatTopic{
				ID:         dbTopic.ID,
				Title:      dbTopic.Title,
				Permission: dbTopic.Permission,
			}
		}
	}
	return chat, nil
}

// AppendMessage persists the message under the next sequence number of
// its chat and fills in msg.ID.
func (s *BboltStorage) AppendMessage(msg *models.ChatMessage) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		chatBucket := tx.Bucket(bucketChats)
		chatData := chatBucket.Get([]byte(msg.ChatID))
		if chatData == nil {
			return models.ErrNotFound
		}
		var dbChat DBChat
		if err := dbChat.UnmarshalBinary(chatData); err != nil {
			return err
		}

		dbChat.LastSeq++
		msg.ID = dbChat.LastSeq

		msgBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(msg.ChatID))
		if err != nil {
			return fmt.Errorf("failed to create chat message bucket: %w", err)
		}

		dbMsg := toDBMessage(*msg)
		data, err := dbMsg.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		if err := msgBucket.Put(dbMsg.Key(), data); err != nil {
			return err
		}

		chatData, err = dbChat.MarshalBinary()
		if err != nil {
			return err
		}
		return chatBucket.Put(dbChat.Key(), chatData)
	})
}

func (s *BboltStorage) GetMessage(chatID string, id int64) (models.ChatMessage, error) {
	var msg models.ChatMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages).Bucket([]byte(chatID))
		if msgBucket == nil {
			return models.ErrNotFound
		}
		dbMsg := DBMessage{ID: id}
		data := msgBucket.Get(dbMsg.Key())
		if data == nil {
			return models.ErrNotFound
		}
		if err := dbMsg.UnmarshalBinary(data); err != nil {
			return err
		}
		msg = fromDBMessage(dbMsg)
		return nil
	})
	return msg, err
}

func (s *BboltStorage) UpdateMessage(msg models.ChatMessage) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages).Bucket([]byte(msg.ChatID))
		if msgBucket == nil {
			return models.ErrNotFound
		}
		dbMsg := toDBMessage(msg)
		if msgBucket.Get(dbMsg.Key()) == nil {
			return models.ErrNotFound
		}
		data, err := dbMsg.MarshalBinary()
		if err != nil {
			return err
		}
		return msgBucket.Put(dbMsg.Key(), data)
	})
}

func (s *BboltStorage) DeleteMessage(chatID string, id int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages).Bucket([]byte(chatID))
		if msgBucket == nil {
			return models.ErrNotFound
		}
		dbMsg := DBMessage{ID: id}
		if msgBucket.Get(dbMsg.Key()) == nil {
			return models.ErrNotFound
		}
		return msgBucket.Delete(dbMsg.Key())
	})
}

// ListMessages returns up to limit messages, most recent first.
// limit <= 0 means no limit.
func (s *BboltStorage) ListMessages(chatID string, limit int) ([]models.ChatMessage, error) {
	var messages []models.ChatMessage
	err := s.db.View(func(tx *bbolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages).Bucket([]byte(chatID))
		if msgBucket == nil {
			return nil
		}
		c := msgBucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(messages) == limit {
				break
			}
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, fromDBMessage(dbMsg))
		}
		return nil
	})
	return messages, err
}

// MarkRead flips is_read on every message with ID <= watermark whose
// sender is not the reader, and returns how many rows changed.
// Re-running with the same watermark touches nothing.
func (s *BboltStorage) MarkRead(chatID, readerID string, watermark int64) (int, error) {
	touched := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketChats).Get([]byte(chatID)) == nil {
			return models.ErrNotFound
		}
		msgBucket := tx.Bucket(bucketMessages).Bucket([]byte(chatID))
		if msgBucket == nil {
			return nil
		}
		// Collect first: writing into the bucket mid-cursor is
		// undefined in bbolt.
		var updates []DBMessage
		c := msgBucket.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			if dbMsg.ID > watermark {
				break
			}
			if dbMsg.IsRead || dbMsg.SenderID == readerID {
				continue
			}
			dbMsg.IsRead = true
			updates = append(updates, dbMsg)
		}

		for _, dbMsg := range updates {
			data, err := dbMsg.MarshalBinary()
			if err != nil {
				return err
			}
			if err := msgBucket.Put(dbMsg.Key(), data); err != nil {
				return err
			}
			touched++
		}
		return nil
	})
	return touched, err
}

// UnreadCount counts messages the viewer has not read: is_read=false
// and sender other than the viewer.
func (s *BboltStorage) UnreadCount(chatID, viewerID string) (int, error) {
	count := 0
	err := s.db.View(func(tx *bbolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages).Bucket([]byte(chatID))
		if msgBucket == nil {
			return nil
		}
		return msgBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			if !dbMsg.IsRead && dbMsg.SenderID != viewerID {
				count++
			}
			return nil
		})
	})
	return count, err
}

func toDBMessage(msg models.ChatMessage) DBMessage {
	dbMsg := DBMessage{
		ID:          msg.ID,
		ChatID:      msg.ChatID,
		SenderID:    msg.SenderID,
		Text:        msg.Text,
		MessageType: string(msg.Type),
		IsRead:      msg.IsRead,
		CreatedAt:   msg.CreatedAt.Unix(),
	}
	if len(msg.Files) > 0 {
		dbMsg.Files = make([]DBMessageFile, len(msg.Files))
		for i, f := range msg.Files {
			dbMsg.Files[i] = DBMessageFile{ID: f.ID, URL: f.URL}
		}
	}
	return dbMsg
}

func fromDBMessage(dbMsg DBMessage) models.ChatMessage {
	msg := models.ChatMessage{
		ID:        dbMsg.ID,
		ChatID:    dbMsg.ChatID,
		SenderID:  dbMsg.SenderID,
		Text:      dbMsg.Text,
		Type:      models.MessageType(dbMsg.MessageType),
		IsRead:    dbMsg.IsRead,
		CreatedAt: time.Unix(dbMsg.CreatedAt, 0),
	}
	if len(dbMsg.Files) > 0 {
		msg.Files = make([]models.MessageFile, len(dbMsg.Files))
		for i, f := range dbMsg.Files {
			msg.Files[i] = models.MessageFile{ID: f.ID, URL: f.URL}
		}
	}
	return msg
}
