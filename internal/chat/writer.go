package chat

import (
	"net"
	"time"
)

const writeWait = 10 * time.Second

// StartWriter drains the client's outbound channel onto the connection.
// Every write carries a deadline so a wedged peer fails instead of blocking
// the writer forever. The connection is closed when the writer exits, which
// also unblocks the session read loop.
func StartWriter(conn net.Conn, out <-chan []byte) {
	go func() {
		defer conn.Close()
		for frame := range out {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if _, err := conn.Write(frame); err != nil {
				return
			}
		}
	}()
}
