package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// wireFrame covers all three server frame shapes for assertions.
type wireFrame struct {
	Type     string    `json:"type"`
	Messages []Message `json:"messages"`
	Message  *Message  `json:"message"`
	Text     string    `json:"text"`
}

type testPeer struct {
	client *Client
	remote net.Conn
	dec    *json.Decoder
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// join registers a peer backed by an in-memory pipe and starts its writer,
// returning the far end for reading frames.
func join(t *testing.T, hub *Hub, nick string) *testPeer {
	t.Helper()
	server, remote := net.Pipe()
	c := &Client{Conn: server, Nickname: nick, Out: make(chan []byte, 64)}
	if err := hub.Join(c); err != nil {
		t.Fatalf("join(%s): %v", nick, err)
	}
	StartWriter(server, c.Out)
	t.Cleanup(func() { _ = remote.Close() })
	return &testPeer{client: c, remote: remote, dec: json.NewDecoder(remote)}
}

// expect reads frames until one of the wanted type arrives.
func (p *testPeer) expect(t *testing.T, frameType string) wireFrame {
	t.Helper()
	_ = p.remote.SetReadDeadline(time.Now().Add(time.Second))
	for {
		var f wireFrame
		if err := p.dec.Decode(&f); err != nil {
			t.Fatalf("waiting for %q frame: %v", frameType, err)
		}
		if f.Type == frameType {
			return f
		}
	}
}

// next reads exactly one frame.
func (p *testPeer) next(t *testing.T) wireFrame {
	t.Helper()
	_ = p.remote.SetReadDeadline(time.Now().Add(time.Second))
	var f wireFrame
	if err := p.dec.Decode(&f); err != nil {
		t.Fatalf("reading frame: %v", err)
	}
	return f
}

// expectNone asserts no frame arrives within the window.
func (p *testPeer) expectNone(t *testing.T, window time.Duration) {
	t.Helper()
	_ = p.remote.SetReadDeadline(time.Now().Add(window))
	var f wireFrame
	err := p.dec.Decode(&f)
	if err == nil {
		t.Fatalf("unexpected frame: %+v", f)
	}
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Fatalf("expected read timeout, got %v", err)
	}
}

func TestHub_JoinSendsHistoryFirst(t *testing.T) {
	hub := NewHub(discardLogger())
	hub.Log().Append("alice", "one", ts)
	hub.Log().Append("alice", "two", ts)

	p := join(t, hub, "bob")

	f := p.next(t)
	if f.Type != frameHistory {
		t.Fatalf("first frame type = %q, want history", f.Type)
	}
	if len(f.Messages) != 2 || f.Messages[0].ID != 1 || f.Messages[1].ID != 2 {
		t.Fatalf("unexpected history: %+v", f.Messages)
	}
}

func TestHub_JoinRejectsEmptyNickname(t *testing.T) {
	hub := NewHub(discardLogger())
	server, _ := net.Pipe()
	defer server.Close()

	c := &Client{Conn: server, Nickname: "   ", Out: make(chan []byte, 64)}
	if err := hub.Join(c); !errors.Is(err, ErrNicknameEmpty) {
		t.Fatalf("expected ErrNicknameEmpty, got %v", err)
	}
	if n := len(hub.snapshot()); n != 0 {
		t.Fatalf("registry should be empty, has %d entries", n)
	}
}

func TestHub_BroadcastChatReachesEveryoneIncludingSender(t *testing.T) {
	hub := NewHub(discardLogger())
	alice := join(t, hub, "alice")
	bob := join(t, hub, "bob")

	m := hub.BroadcastChat("alice", "hi", json.RawMessage(`123`))
	if m.ID != 1 {
		t.Fatalf("first message id = %d", m.ID)
	}

	for _, p := range []*testPeer{alice, bob} {
		f := p.expect(t, frameMessage)
		if f.Message == nil || f.Message.Sender != "alice" || f.Message.Text != "hi" {
			t.Fatalf("unexpected message frame: %+v", f)
		}
		if string(f.Message.Timestamp) != "123" {
			t.Fatalf("timestamp not carried through: %q", f.Message.Timestamp)
		}
	}
}

func TestHub_NotificationExclusion(t *testing.T) {
	hub := NewHub(discardLogger())
	alice := join(t, hub, "alice")
	bob := join(t, hub, "bob")
	alice.expect(t, frameHistory)
	bob.expect(t, frameHistory)

	hub.BroadcastNotification("bob joined", bob.client)

	f := alice.expect(t, frameNotification)
	if f.Text != "bob joined" {
		t.Fatalf("unexpected notification: %q", f.Text)
	}
	bob.expectNone(t, 150*time.Millisecond)
}

func TestHub_LeaveIsIdempotent(t *testing.T) {
	hub := NewHub(discardLogger())
	p := join(t, hub, "alice")

	if !hub.Leave(p.client) {
		t.Fatal("first Leave should remove the client")
	}
	if hub.Leave(p.client) {
		t.Fatal("second Leave should be a no-op")
	}
}

func TestHub_DeadClientDroppedWithSingleLeaveNotice(t *testing.T) {
	hub := NewHub(discardLogger())
	alice := join(t, hub, "alice")
	alice.expect(t, frameHistory)

	// bob has a one-slot buffer and no writer; Join fills the slot with the
	// history frame, so the next delivery to him fails.
	server, remote := net.Pipe()
	defer remote.Close()
	bob := &Client{Conn: server, Nickname: "bob", Out: make(chan []byte, 1)}
	if err := hub.Join(bob); err != nil {
		t.Fatalf("join bob: %v", err)
	}

	hub.BroadcastChat("alice", "hello", ts)

	if f := alice.expect(t, frameMessage); f.Message == nil || f.Message.Text != "hello" {
		t.Fatalf("alice missed the chat message: %+v", f)
	}
	if f := alice.expect(t, frameNotification); f.Text != "bob left" {
		t.Fatalf("expected 'bob left', got %q", f.Text)
	}
	alice.expectNone(t, 150*time.Millisecond)

	if hub.Leave(bob) {
		t.Fatal("bob should already be removed")
	}
}

func TestHub_ConnectedClientsGaugeTracksRegistry(t *testing.T) {
	hub := NewHub(discardLogger())
	join(t, hub, "alice")
	bob := join(t, hub, "bob")

	if got := testutil.ToFloat64(ConnectedClients); got != 2 {
		t.Fatalf("gauge after two joins = %v, want 2", got)
	}

	if !hub.Leave(bob.client) {
		t.Fatal("leave bob should remove the client")
	}
	if got := testutil.ToFloat64(ConnectedClients); got != 1 {
		t.Fatalf("gauge after leave = %v, want 1", got)
	}
}

func TestHub_JoinWarnsWhenHistoryUndeliverable(t *testing.T) {
	var buf bytes.Buffer
	hub := NewHub(slog.New(slog.NewTextHandler(&buf, nil)))

	// An unbuffered outbound channel with no writer cannot take the
	// history frame; Join must surface that instead of dropping it silently.
	server, remote := net.Pipe()
	defer server.Close()
	defer remote.Close()
	c := &Client{Conn: server, Nickname: "alice", Out: make(chan []byte)}

	if err := hub.Join(c); err != nil {
		t.Fatalf("join: %v", err)
	}
	if !strings.Contains(buf.String(), "history delivery failed") {
		t.Fatalf("expected history warning, log output: %q", buf.String())
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub(discardLogger())
	p := join(t, hub, "alice")
	p.expect(t, frameHistory)

	hub.Shutdown()

	_ = p.remote.SetReadDeadline(time.Now().Add(time.Second))
	var f wireFrame
	if err := p.dec.Decode(&f); err == nil {
		t.Fatalf("expected closed connection, got frame %+v", f)
	}
	if n := len(hub.snapshot()); n != 0 {
		t.Fatalf("registry should be empty, has %d entries", n)
	}
}
