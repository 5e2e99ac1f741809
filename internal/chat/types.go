package chat

import (
	"encoding/json"
	"net"
)

// Message is one chat entry in the log. Ids start at 1 and follow insertion
// order. Timestamp is whatever JSON value the sending client supplied; the
// server stores and forwards it untouched.
type Message struct {
	ID        int64           `json:"id"`
	Sender    string          `json:"sender"`
	Text      string          `json:"text"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// Client is one live connection. Out is drained by the writer goroutine.
// closed is flipped under the hub lock right before Out is closed, so sends
// guarded by that lock never hit a closed channel.
type Client struct {
	Conn     net.Conn
	Nickname string
	Out      chan []byte
	closed   bool
}

var ErrNicknameEmpty = errorString("nickname_empty")

type errorString string

func (e errorString) Error() string { return string(e) }
