package chat

import (
	"log/slog"
	"net"
	"strings"
)

const (
	nicknameLimit = 1024
	readBuffer    = 4096
)

// HandleSession runs the whole lifetime of one connection: nickname
// handshake, registration, history, join notice, read loop, teardown.
// Every failure terminates only this session.
func HandleSession(conn net.Conn, hub *Hub, logger *slog.Logger) {
	nickname, err := readNickname(conn)
	if err != nil || nickname == "" {
		// No registry entry exists yet, so nothing to announce.
		_ = conn.Close()
		return
	}

	c := &Client{Conn: conn, Nickname: nickname, Out: make(chan []byte, 64)}
	if err := hub.Join(c); err != nil {
		_ = conn.Close()
		return
	}
	StartWriter(conn, c.Out)

	logger.Info("client connected", "nickname", nickname, "addr", conn.RemoteAddr().String())
	hub.BroadcastNotification(nickname+" joined", c)

	buf := make([]byte, readBuffer)
	for {
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			break
		}
		in := decodeInbound(buf[:n])
		if in.kind != inboundChat {
			// Unknown and malformed units are dropped; the session stays up.
			continue
		}
		hub.BroadcastChat(nickname, in.text, in.timestamp)
	}

	// Single exit path. Leave is idempotent, so a broadcast-side drop that
	// raced this teardown means no duplicate leave notice.
	if hub.Leave(c) {
		logger.Info("client disconnected", "nickname", nickname)
		hub.BroadcastNotification(nickname+" left", nil)
	}
}

// readNickname reads the handshake bytes: the nickname is whatever arrives
// in the first read, trimmed.
func readNickname(conn net.Conn) (string, error) {
	buf := make([]byte, nicknameLimit)
	n, err := conn.Read(buf)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(buf[:n])), nil
}
