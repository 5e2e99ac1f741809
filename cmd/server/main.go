package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/horrygame/anonmsg/internal/chat"
	"github.com/horrygame/anonmsg/internal/web"
)

const shutdownTimeout = 5 * time.Second

func main() {
	host := flag.String("host", "", "chat listen host (default: all interfaces)")
	port := flag.Int("port", 65432, "chat listen port")
	webPort := flag.Int("web", 8080, "web interface port")
	root := flag.String("root", ".", "static web root")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	chatAddr := net.JoinHostPort(*host, strconv.Itoa(*port))
	webAddr := net.JoinHostPort("", strconv.Itoa(*webPort))

	// Preflight: fail fast with exit code 1 when either port is taken.
	for _, addr := range []string{chatAddr, webAddr} {
		if err := checkPort(addr); err != nil {
			logger.Error("port unavailable", "addr", addr, "error", err)
			os.Exit(1)
		}
	}

	hub := chat.NewHub(logger)
	srv := chat.NewServer(chatAddr, hub, logger)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start chat server", "error", err)
		os.Exit(1)
	}

	webHandler := web.NewHandler(hub.Log(), *root, logger)
	webSrv := web.NewServer(webAddr, webHandler.Routes())
	go func() {
		logger.Info("web interface started", "addr", webAddr)
		if err := webSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("web server failed", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webSrv.Shutdown(ctx); err != nil {
		logger.Error("web shutdown", "error", err)
	}
	_ = srv.Stop(shutdownTimeout)
	logger.Info("shutdown complete")
}

// checkPort verifies the address can be bound before the servers race for it.
func checkPort(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return ln.Close()
}
