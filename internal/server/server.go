// Package server implements the raw TCP listener of spec.md §4.L/§6:
// accept connections, write the greeting line, then loop
// read-frame/tokenize/dispatch/write-reply per connection.
//
// Grounded on internal/radio/server.go's Server.Start(ctx): the
// errChan+select(ctx.Done)+graceful-shutdown shape is the same here,
// adapted from http.Server.Shutdown to net.Listener.Close (raw TCP has
// no equivalent drain-in-flight-requests primitive, so in-flight
// connections are left to finish on their own, same as the teacher's
// streaming connections which httpServer.Shutdown also can't force-close).
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/yumeno-dev/musingd/internal/player"
	"github.com/yumeno-dev/musingd/internal/protocol"
)

// Server accepts connections on Addr and dispatches each request line to
// actor's mailbox.
type Server struct {
	addr  string
	actor *player.Actor

	ln net.Listener
}

// New constructs a Server bound to addr (host:port), not yet listening.
func New(addr string, actor *player.Actor) *Server {
	return &Server{addr: addr, actor: actor}
}

// Start listens on s.addr and serves connections until ctx is cancelled,
// at which point the listener is closed and Start returns nil.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.ln = ln
	slog.Info("musingd listening", "addr", s.addr)

	errChan := make(chan error, 1)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				errChan <- err
				return
			}
			go s.handleConn(ctx, conn)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		return s.ln.Close()
	}
}

// handleConn writes the greeting then loops request/reply until the
// client disconnects or ctx is cancelled.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	slog.Info("client connected", "remote", conn.RemoteAddr())

	if _, err := io.WriteString(conn, protocol.Greeting); err != nil {
		slog.Warn("failed to write greeting", "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := protocol.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("connection closed", "remote", conn.RemoteAddr(), "error", err)
			}
			return
		}

		reply, closeAfter := s.dispatch(ctx, line)

		body, err := reply.MarshalJSON()
		if err != nil {
			slog.Error("failed to marshal reply", "error", err)
			return
		}
		if err := protocol.WriteFrame(conn, body); err != nil {
			slog.Debug("write failed, dropping connection", "remote", conn.RemoteAddr(), "error", err)
			return
		}
		if closeAfter {
			return
		}
	}
}

// dispatch tokenizes line and round-trips it through the actor's
// mailbox. Per spec.md §5 there are no per-request timeouts — a slow
// reply is tolerated, not abandoned — so this blocks on the actor's
// reply or ctx.Done() only. "quit" is handled here rather than routed
// to the actor since it closes this connection specifically, not
// daemon-wide state the actor owns.
func (s *Server) dispatch(ctx context.Context, line string) (reply protocol.Reply, closeConn bool) {
	args, err := protocol.Tokenize(line)
	if err != nil {
		return protocol.Err(err.Error()), false
	}
	if len(args) == 0 {
		return protocol.OK(nil), false
	}
	if args[0] == "quit" {
		return protocol.OK(nil), true
	}

	replyCh := make(chan protocol.Reply, 1)
	select {
	case s.actor.Mailbox() <- player.Request{Args: args, Reply: replyCh}:
	case <-ctx.Done():
		return protocol.Err("PlaybackError: server is shutting down"), true
	}

	select {
	case r := <-replyCh:
		return r, false
	case <-ctx.Done():
		return protocol.Err("PlaybackError: server is shutting down"), true
	}
}
