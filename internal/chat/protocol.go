package chat

import "encoding/json"

// Frame type tags shared with the browser and terminal clients. Framing is
// one JSON document per read; clients must not pack two documents into a
// single write.
const (
	frameHistory      = "history"
	frameMessage      = "message"
	frameNotification = "notification"
)

type historyFrame struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
}

type messageFrame struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

type notificationFrame struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func encodeHistory(msgs []Message) []byte {
	if msgs == nil {
		msgs = []Message{}
	}
	b, _ := json.Marshal(historyFrame{Type: frameHistory, Messages: msgs})
	return b
}

func encodeMessage(m Message) []byte {
	b, _ := json.Marshal(messageFrame{Type: frameMessage, Message: m})
	return b
}

func encodeNotification(text string) []byte {
	b, _ := json.Marshal(notificationFrame{Type: frameNotification, Text: text})
	return b
}

type inboundKind int

const (
	inboundChat inboundKind = iota
	inboundUnknown
	inboundMalformed
)

type inbound struct {
	kind      inboundKind
	text      string
	timestamp json.RawMessage
}

type clientFrame struct {
	Type      string          `json:"type"`
	Text      *string         `json:"text"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// decodeInbound classifies one client payload. The session drops unknown and
// malformed units alike; the split keeps the failure mode visible in tests.
func decodeInbound(raw []byte) inbound {
	var f clientFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return inbound{kind: inboundMalformed}
	}
	if f.Type != frameMessage || f.Text == nil || len(f.Timestamp) == 0 {
		return inbound{kind: inboundUnknown}
	}
	return inbound{kind: inboundChat, text: *f.Text, timestamp: f.Timestamp}
}
