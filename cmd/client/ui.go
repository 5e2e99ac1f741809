package main

import (
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jroimartin/gocui"
)

// Wire types mirrored from the server protocol.
type message struct {
	ID        int64           `json:"id"`
	Sender    string          `json:"sender"`
	Text      string          `json:"text"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type serverFrame struct {
	Type     string    `json:"type"`
	Messages []message `json:"messages"`
	Message  *message  `json:"message"`
	Text     string    `json:"text"`
}

type chatFrame struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// ChatUI is the two-pane terminal client: a scrolling message view over an
// input line, with a status bar between them.
type ChatUI struct {
	gui        *gocui.Gui
	conn       net.Conn
	nickname   string
	addr       string
	msgView    string
	inputView  string
	statusView string
}

func NewChatUI(conn net.Conn, nickname, addr string) (*ChatUI, error) {
	g, err := gocui.NewGui(gocui.OutputNormal)
	if err != nil {
		return nil, err
	}

	ui := &ChatUI{
		gui:        g,
		conn:       conn,
		nickname:   nickname,
		addr:       addr,
		msgView:    "messages",
		inputView:  "input",
		statusView: "status",
	}
	g.SetManagerFunc(ui.layout)
	return ui, nil
}

func (ui *ChatUI) layout(g *gocui.Gui) error {
	maxX, maxY := g.Size()
	msgHeight := maxY - 5

	if v, err := g.SetView(ui.msgView, 0, 0, maxX-1, msgHeight); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Messages"
		v.Wrap = true
		v.Autoscroll = true
	}

	if v, err := g.SetView(ui.statusView, 0, msgHeight+1, maxX-1, msgHeight+3); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Status"
		v.Wrap = true
		fmt.Fprintf(v, "Connected to %s as %s | Ctrl-C or /quit to exit", ui.addr, ui.nickname)
	}

	if v, err := g.SetView(ui.inputView, 0, msgHeight+3, maxX-1, maxY-1); err != nil {
		if err != gocui.ErrUnknownView {
			return err
		}
		v.Title = "Input"
		v.Editable = true
		v.Wrap = true
		if _, err := g.SetCurrentView(ui.inputView); err != nil {
			return err
		}
	}

	return nil
}

func (ui *ChatUI) keybindings() error {
	if err := ui.gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone,
		func(_ *gocui.Gui, _ *gocui.View) error {
			return gocui.ErrQuit
		}); err != nil {
		return err
	}

	return ui.gui.SetKeybinding(ui.inputView, gocui.KeyEnter, gocui.ModNone, ui.handleInput)
}

func (ui *ChatUI) handleInput(_ *gocui.Gui, v *gocui.View) error {
	text := strings.TrimSpace(v.Buffer())
	v.Clear()
	if err := v.SetCursor(0, 0); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if text == "/quit" {
		return gocui.ErrQuit
	}

	b, err := json.Marshal(chatFrame{Type: "message", Text: text, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	if _, err := ui.conn.Write(b); err != nil {
		ui.setStatus(fmt.Sprintf("send failed: %v", err))
	}
	return nil
}

// readLoop decodes server frames off the connection. A json.Decoder splits
// coalesced TCP reads back into documents.
func (ui *ChatUI) readLoop() {
	dec := json.NewDecoder(ui.conn)
	for {
		var f serverFrame
		if err := dec.Decode(&f); err != nil {
			ui.setStatus(fmt.Sprintf("disconnected: %v", err))
			return
		}
		switch f.Type {
		case "history":
			for _, m := range f.Messages {
				ui.appendLine(fmt.Sprintf("%s: %s", m.Sender, m.Text))
			}
		case "message":
			if f.Message != nil {
				ui.appendLine(fmt.Sprintf("%s: %s", f.Message.Sender, f.Message.Text))
			}
		case "notification":
			ui.appendLine("* " + f.Text)
		}
	}
}

func (ui *ChatUI) appendLine(line string) {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(ui.msgView)
		if err != nil {
			return err
		}
		fmt.Fprintln(v, line)
		return nil
	})
}

func (ui *ChatUI) setStatus(status string) {
	ui.gui.Update(func(g *gocui.Gui) error {
		v, err := g.View(ui.statusView)
		if err != nil {
			return err
		}
		v.Clear()
		fmt.Fprint(v, status)
		return nil
	})
}

func (ui *ChatUI) Run() error {
	if err := ui.keybindings(); err != nil {
		return err
	}

	go ui.readLoop()

	if err := ui.gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}
	return nil
}

func (ui *ChatUI) Close() {
	ui.gui.Close()
	_ = ui.conn.Close()
}
