package chat

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const historyWindow = 50

// Hub owns the registry of live clients and the message log, and fans frames
// out to every registered connection. It is shared by every session and by
// the web facade.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	log     *MessageLog
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[*Client]struct{}),
		log:     NewMessageLog(),
		logger:  logger,
	}
}

// Log exposes the message log for read-only collaborators.
func (h *Hub) Log() *MessageLog { return h.log }

// Join registers the client and queues its history snapshot. Registration
// happens before the snapshot is taken, so anything appended afterwards
// reaches the client through the live stream; snapshot plus stream cover the
// whole log with no gap.
func (h *Hub) Join(c *Client) error {
	if strings.TrimSpace(c.Nickname) == "" {
		return ErrNicknameEmpty
	}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	recent := h.log.Recent(historyWindow)
	// Gauge updates stay inside the critical section so interleaved
	// join/leave cannot publish counts out of order.
	ConnectedClients.Set(float64(len(h.clients)))
	h.mu.Unlock()

	if !h.send(c, encodeHistory(recent)) {
		h.logger.Warn("history delivery failed", "nickname", c.Nickname)
	}
	h.logger.Info("client joined", "nickname", c.Nickname)
	return nil
}

// Leave removes the client if it is still registered and reports whether the
// removal happened here. Whichever path observes the removal owns the leave
// notification, so racing detections never announce a client twice.
func (h *Hub) Leave(c *Client) bool {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, c)
	c.closed = true
	ConnectedClients.Set(float64(len(h.clients)))
	h.mu.Unlock()

	close(c.Out)
	return true
}

// BroadcastChat appends the message to the log and fans the wire frame out
// to every registered client, sender included.
func (h *Hub) BroadcastChat(sender, text string, timestamp json.RawMessage) Message {
	m := h.log.Append(sender, text, timestamp)
	h.broadcast(encodeMessage(m), nil, frameMessage)
	return m
}

// BroadcastNotification sends a notification frame to every registered
// client except exclude.
func (h *Hub) BroadcastNotification(text string, exclude *Client) {
	h.broadcast(encodeNotification(text), exclude, frameNotification)
}

// Shutdown drops every client. Closing their outbound channels stops the
// writers, which close the connections and unblock the session read loops.
func (h *Hub) Shutdown() {
	for _, c := range h.snapshot() {
		if h.Leave(c) {
			_ = c.Conn.Close()
		}
	}
}

type delivery struct {
	frame   []byte
	exclude *Client
}

func (h *Hub) broadcast(frame []byte, exclude *Client, kind string) {
	start := time.Now()
	FramesTotal.WithLabelValues(kind).Inc()

	pending := []delivery{{frame: frame, exclude: exclude}}
	for len(pending) > 0 {
		d := pending[0]
		pending = pending[1:]

		var dead []*Client
		for _, c := range h.snapshot() {
			if c == d.exclude {
				continue
			}
			if !h.send(c, d.frame) {
				dead = append(dead, c)
			}
		}
		// A peer that cannot accept a frame is a lazily detected disconnect:
		// drop it and tell the survivors. Each drop shrinks the registry, so
		// this terminates even when the leave notices themselves fail.
		for _, c := range dead {
			if h.Leave(c) {
				_ = c.Conn.Close()
				h.logger.Info("client dropped", "nickname", c.Nickname)
				pending = append(pending, delivery{frame: encodeNotification(c.Nickname + " left")})
			}
		}
	}

	BroadcastDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

func (h *Hub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// send queues one frame without blocking. A full buffer or an already
// removed client counts as a failed delivery; one stalled peer never stalls
// the fan-out to the rest.
func (h *Hub) send(c *Client, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.Out <- frame:
		return true
	default:
		return false
	}
}
