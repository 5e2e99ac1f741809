package chat

import (
	"encoding/json"
	"sync"
)

// MessageLog is the append-only record of chat messages. Id assignment and
// insertion happen under one lock, so no two messages share an id and every
// reader observes ids in insertion order.
type MessageLog struct {
	mu     sync.RWMutex
	msgs   []Message
	nextID int64
}

func NewMessageLog() *MessageLog {
	return &MessageLog{nextID: 1}
}

// Append stores a new message and returns it with its assigned id.
func (l *MessageLog) Append(sender, text string, timestamp json.RawMessage) Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := Message{ID: l.nextID, Sender: sender, Text: text, Timestamp: timestamp}
	l.nextID++
	l.msgs = append(l.msgs, m)
	return m
}

// Recent returns the last min(n, length) messages in ascending id order.
func (l *MessageLog) Recent(n int) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n > len(l.msgs) {
		n = len(l.msgs)
	}
	if n <= 0 {
		return nil
	}
	out := make([]Message, n)
	copy(out, l.msgs[len(l.msgs)-n:])
	return out
}

// Since returns all messages with id strictly greater than id, ascending.
func (l *MessageLog) Since(id int64) []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if id < 0 {
		id = 0
	}
	// Ids are dense and 1-based, so id doubles as the slice offset.
	if id >= int64(len(l.msgs)) {
		return nil
	}
	out := make([]Message, int64(len(l.msgs))-id)
	copy(out, l.msgs[id:])
	return out
}
