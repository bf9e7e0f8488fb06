package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBTopic struct {
	ID         string `msgpack:"id"`
	Title      string `msgpack:"title"`
	Permission string `msgpack:"permission"`
}

func (t *DBTopic) Key() []byte {
	return []byte(t.ID)
}

func (t *DBTopic) MarshalBinary() (data []byte, err error) {
	type alias DBTopic
	return msgpack.Marshal((*alias)(t))
}

func (t *DBTopic) UnmarshalBinary(data []byte) error {
	type alias DBTopic
	return msgpack.Unmarshal(data, (*alias)(t))
}

type DBChat struct {
	ID        string `msgpack:"id"`
	ClientID  string `msgpack:"clientId"`
	CuratorID string `msgpack:"curatorId"`
	TopicID   string `msgpack:"topicId"`
	Status    string `msgpack:"status"`
	ChatType  string `msgpack:"chatType"`
	CreatedAt int64  `msgpack:"createdAt"`
	ClosedAt  int64  `msgpack:"closedAt"`
	// LastSeq is the highest message ID handed out in this chat.
	LastSeq int64 `msgpack:"lastSeq"`
}

func (c *DBChat) Key() []byte {
	return []byte(c.ID)
}

func (c *DBChat) MarshalBinary() (data []byte, err error) {
	type alias DBChat
	return msgpack.Marshal((*alias)(c))
}

func (c *DBChat) UnmarshalBinary(data []byte) error {
	type alias DBChat
	return msgpack.Unmarshal(data, (*alias)(c))
}

type DBMessage struct {
	ID          int64           `msgpack:"id"`
	ChatID      string          `msgpack:"chatId"`
	SenderID    string          `msgpack:"senderId"`
	Text        string          `msgpack:"text"`
	MessageType string          `msgpack:"messageType"`
	IsRead      bool            `msgpack:"isRead"`
	CreatedAt   int64           `msgpack:"createdAt"`
	Files       []DBMessageFile `msgpack:"files"`
}

type DBMessageFile struct {
	ID  string `msgpack:"id"`
	URL string `msgpack:"url"`
}

func (m *DBMessage) Key() []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(m.ID))
	return key
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}
