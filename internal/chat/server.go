package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"
)

const (
	bindAttempts  = 5
	bindRetryWait = 2 * time.Second
)

// Server accepts chat connections and runs one session goroutine per client.
// There is no admission cap; capacity is bounded by the runtime scheduler.
type Server struct {
	addr     string
	logger   *slog.Logger
	hub      *Hub
	listener net.Listener
	sessions sync.WaitGroup
}

func NewServer(addr string, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, hub: hub, logger: logger}
}

// Start binds the listen address, retrying when the port is still held by a
// previous process, then serves accepts in the background.
func (s *Server) Start() error {
	ln, err := s.listen()
	if err != nil {
		return err
	}
	s.listener = ln
	go s.acceptLoop(ln)
	s.logger.Info("chat server started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listen address. Valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

func (s *Server) listen() (net.Listener, error) {
	var err error
	for attempt := 1; attempt <= bindAttempts; attempt++ {
		var ln net.Listener
		ln, err = net.Listen("tcp", s.addr)
		if err == nil {
			return ln, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, err
		}
		s.logger.Warn("address in use", "addr", s.addr, "attempt", attempt, "max", bindAttempts)
		if attempt < bindAttempts {
			time.Sleep(bindRetryWait)
		}
	}
	return nil, fmt.Errorf("bind %s: %w", s.addr, err)
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed, normal shutdown.
			return
		}
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			HandleSession(conn, s.hub, s.logger)
		}()
	}
}

// Stop closes the listener, drops all live clients and waits up to timeout
// for session goroutines to unwind. Stragglers are abandoned, not killed.
func (s *Server) Stop(timeout time.Duration) error {
	s.logger.Info("chat server stopping")
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.hub.Shutdown()

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("chat server stopped")
		return nil
	case <-time.After(timeout):
		s.logger.Warn("shutdown timeout reached, abandoning sessions")
		return context.DeadlineExceeded
	}
}
