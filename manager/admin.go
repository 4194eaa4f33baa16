// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bureau-foundation/upty/lib/codec"
	"github.com/bureau-foundation/upty/lib/version"
)

// actionFunc processes an admin request. The raw parameter is the
// full CBOR request including the "action" field. A nil result
// produces {ok: true}; otherwise the result is placed in "data".
type actionFunc func(ctx context.Context, raw []byte) (any, error)

// Response is the wire envelope for every admin response.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// Admin actions.
const (
	ActionStatus        = "status"
	ActionListInstances = "list-instances"
)

// adminReadTimeout is how long the server waits for a request after
// accepting a connection.
const adminReadTimeout = 30 * time.Second

const adminWriteTimeout = 10 * time.Second

// maxAdminRequestSize bounds a single CBOR request.
const maxAdminRequestSize = 64 * 1024

// adminServer serves a CBOR request-response protocol on a unix
// socket, one request per connection.
type adminServer struct {
	socketPath string
	handlers   map[string]actionFunc
	logger     *slog.Logger

	activeConnections sync.WaitGroup
}

func newAdminServer(m *Manager, socketPath string, logger *slog.Logger) *adminServer {
	s := &adminServer{
		socketPath: socketPath,
		handlers:   make(map[string]actionFunc),
		logger:     logger.With("component", "admin"),
	}
	s.handle(ActionStatus, func(context.Context, []byte) (any, error) {
		return m.status(version.Info()), nil
	})
	s.handle(ActionListInstances, func(context.Context, []byte) (any, error) {
		return m.Instances(), nil
	})
	return s
}

// handle registers handler for action. Panics on duplicates.
func (s *adminServer) handle(action string, handler actionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("manager: duplicate admin handler for action %q", action))
	}
	s.handlers[action] = handler
}

// serve accepts connections until ctx is cancelled, then waits for
// in-flight requests. listening is closed once the socket accepts
// connections.
func (s *adminServer) serve(ctx context.Context, listening chan<- struct{}) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("admin socket listening", "path", s.socketPath)
	close(listening)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}
		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

func (s *adminServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(adminReadTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxAdminRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}

	handler, exists := s.handlers[header.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
		return
	}

	result, err := handler(ctx, []byte(raw))
	if err != nil {
		s.logger.Debug("action failed", "action", header.Action, "error", err)
		s.writeError(conn, err.Error())
		return
	}
	s.writeSuccess(conn, result)
}

func (s *adminServer) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(adminWriteTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{OK: false, Error: message}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func (s *adminServer) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(adminWriteTimeout))
	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}

// AdminSocketFor returns the admin socket used alongside the
// rendezvous socket at socketPath when none is configured.
func AdminSocketFor(socketPath string) string {
	return filepath.Join(filepath.Dir(socketPath), "admin.sock")
}
