package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"
)

func main() {
	host := flag.String("host", "localhost", "server host")
	port := flag.Int("port", 65432, "server chat port")
	nick := flag.String("nick", "", "nickname to register")
	flag.Parse()

	if *nick == "" {
		fmt.Fprintln(os.Stderr, "a nickname is required (-nick)")
		os.Exit(1)
	}

	addr := net.JoinHostPort(*host, strconv.Itoa(*port))
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		log.Fatalf("connect %s: %v", addr, err)
	}

	// Handshake: the nickname goes out raw, before any JSON framing.
	if _, err := conn.Write([]byte(*nick)); err != nil {
		log.Fatalf("handshake: %v", err)
	}

	ui, err := NewChatUI(conn, *nick, addr)
	if err != nil {
		log.Fatalf("ui: %v", err)
	}
	defer ui.Close()

	if err := ui.Run(); err != nil {
		log.Fatal(err)
	}
}
