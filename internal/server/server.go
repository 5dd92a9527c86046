// Package server owns the listening sockets: the TCP accept loop for
// framed sessions and the UDP socket for the media relay. Binds are
// retried for a short window so a restart does not lose the race against
// the previous process releasing its port.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Bind retry window. After bindDeadline of failed attempts the bind
// error is returned.
const (
	bindRetryInterval = time.Second
	bindDeadline      = 15 * time.Second
)

// SessionHandler runs one accepted connection to completion.
type SessionHandler interface {
	Handle(ctx context.Context, conn net.Conn)
}

// TCPServer accepts framed session connections.
type TCPServer struct {
	addr    string
	handler SessionHandler
	limiter *ConnectionLimiter
	logger  *slog.Logger
}

// NewTCPServer wires an accept loop for addr.
func NewTCPServer(addr string, handler SessionHandler, limiter *ConnectionLimiter, logger *slog.Logger) *TCPServer {
	return &TCPServer{addr: addr, handler: handler, limiter: limiter, logger: logger}
}

// Run listens and accepts until ctx is cancelled. Each accepted
// connection runs in its own goroutine; Run returns after every session
// goroutine has finished.
func (s *TCPServer) Run(ctx context.Context) error {
	ln, err := listenTCPRetry(ctx, s.addr, s.logger)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.logger.Info("session listener started", "addr", s.addr)

	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Warn("accept failed", "error", err)
			continue
		}

		if !s.limiter.TryAcquire() {
			s.logger.Warn("connection limit reached, rejecting", "remote", conn.RemoteAddr(), "active", s.limiter.Current())
			conn.Close()
			continue
		}

		wg.Add(1)
		go func(c net.Conn) {
			defer wg.Done()
			defer s.limiter.Release()
			s.handler.Handle(ctx, c)
		}(conn)
	}

	wg.Wait()
	s.logger.Info("session listener stopped")
	return ctx.Err()
}

// listenTCPRetry binds addr, retrying for the bind window.
func listenTCPRetry(ctx context.Context, addr string, logger *slog.Logger) (net.Listener, error) {
	deadline := time.Now().Add(bindDeadline)
	for {
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			return ln, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("bind %s: %w", addr, err)
		}
		logger.Warn("bind failed, retrying", "addr", addr, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bindRetryInterval):
		}
	}
}

// ListenUDP binds the media relay socket, with the same retry window as
// the TCP listener.
func ListenUDP(ctx context.Context, addr string, logger *slog.Logger) (*net.UDPConn, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", addr, err)
	}

	deadline := time.Now().Add(bindDeadline)
	for {
		conn, err := net.ListenUDP("udp", udpAddr)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("bind %s: %w", addr, err)
		}
		logger.Warn("udp bind failed, retrying", "addr", addr, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(bindRetryInterval):
		}
	}
}
