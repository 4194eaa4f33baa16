// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wiretest provides a scriptable stand-in for the session
// manager, for testing clients of the upty protocol.
//
// [NewServer] listens on a unix socket under a short /tmp directory and
// answers every role: back connections receive instance numbers from a
// configurable sequence, front connections are recorded, and ioctl
// requests are passed to a configurable handler that writes (or
// deliberately fails to write) the response. The server counts every
// accepted connection so tests can assert that an operation opened no
// channel at all.
package wiretest

import (
	"encoding/binary"
	"io"
	"net"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bureau-foundation/upty/lib/testutil"
	"github.com/bureau-foundation/upty/lib/wire"
)

// IoctlHandler answers one ioctl request. It owns the connection for
// the duration of the call and may write a complete response, a
// truncated one, or nothing; the server closes the connection after
// the handler returns.
type IoctlHandler func(request wire.IoctlRequest, connection net.Conn)

// Options configures a [Server]. The zero value assigns instance
// numbers 0, 1, 2, ... and answers every ioctl with return code 0,
// echoing pointer images unchanged.
type Options struct {
	// InstanceNumbers are handed to back connections in order. Once
	// exhausted, numbering continues from the last value plus one.
	InstanceNumbers []uint32

	// Ioctl answers ioctl requests. Nil uses [Succeed].
	Ioctl IoctlHandler
}

// Server is a stub session manager.
type Server struct {
	// Path is the unix socket the server listens on.
	Path string

	listener net.Listener
	options  Options

	mutex          sync.Mutex
	connections    int
	roleCounts     map[wire.Role]int
	nextInstance   uint32
	instanceIndex  int
	requests       []wire.IoctlRequest
	openStreams    []net.Conn
	closed         bool
	fronts         chan uint32
	handlerWaiters sync.WaitGroup
}

// NewServer starts a stub manager and registers cleanup with t.
func NewServer(t *testing.T, options Options) *Server {
	t.Helper()

	path := filepath.Join(testutil.SocketDir(t), "upty.sock")
	listener, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listening on %s: %v", path, err)
	}
	if options.Ioctl == nil {
		options.Ioctl = Succeed
	}

	server := &Server{
		Path:       path,
		listener:   listener,
		options:    options,
		roleCounts: make(map[wire.Role]int),
		fronts:     make(chan uint32, 64),
	}

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		server.acceptLoop()
	}()

	t.Cleanup(func() {
		listener.Close()
		<-acceptDone
		server.mutex.Lock()
		server.closed = true
		for _, stream := range server.openStreams {
			stream.Close()
		}
		server.mutex.Unlock()
		server.handlerWaiters.Wait()
	})
	return server
}

func (s *Server) acceptLoop() {
	for {
		connection, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mutex.Lock()
		s.connections++
		s.mutex.Unlock()

		s.handlerWaiters.Add(1)
		go func() {
			defer s.handlerWaiters.Done()
			s.handle(connection)
		}()
	}
}

func (s *Server) handle(connection net.Conn) {
	role, err := wire.ReadHandshake(connection)
	if err != nil {
		connection.Close()
		return
	}
	s.mutex.Lock()
	s.roleCounts[role]++
	s.mutex.Unlock()

	switch role {
	case wire.RoleBack:
		if err := wire.WriteInstanceNumber(connection, s.allocateInstance()); err != nil {
			connection.Close()
			return
		}
		s.holdOpen(connection)

	case wire.RoleFront:
		instance, err := wire.ReadInstanceNumber(connection)
		if err != nil {
			connection.Close()
			return
		}
		s.fronts <- instance
		s.holdOpen(connection)

	case wire.RoleIoctlRequest:
		defer connection.Close()
		request, err := wire.ReadIoctlRequest(connection)
		if err != nil {
			return
		}
		s.mutex.Lock()
		s.requests = append(s.requests, request)
		s.mutex.Unlock()
		s.options.Ioctl(request, connection)
	}
}

// holdOpen keeps a stream connection open until the client closes it
// or the test ends, discarding anything the client writes.
func (s *Server) holdOpen(connection net.Conn) {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		connection.Close()
		return
	}
	s.openStreams = append(s.openStreams, connection)
	s.mutex.Unlock()
	_, _ = io.Copy(io.Discard, connection)
	connection.Close()
}

func (s *Server) allocateInstance() uint32 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.instanceIndex < len(s.options.InstanceNumbers) {
		instance := s.options.InstanceNumbers[s.instanceIndex]
		s.instanceIndex++
		s.nextInstance = instance + 1
		return instance
	}
	instance := s.nextInstance
	s.nextInstance++
	return instance
}

// Connections returns the number of connections accepted so far,
// whatever their role.
func (s *Server) Connections() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.connections
}

// RoleCount returns how many connections completed a handshake with
// role.
func (s *Server) RoleCount(role wire.Role) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.roleCounts[role]
}

// Requests returns the ioctl requests received so far.
func (s *Server) Requests() []wire.IoctlRequest {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]wire.IoctlRequest(nil), s.requests...)
}

// Fronts delivers the instance number of every front connection, in
// arrival order.
func (s *Server) Fronts() <-chan uint32 {
	return s.fronts
}

// Succeed answers with return code 0 and the request's image echoed
// back unchanged.
func Succeed(request wire.IoctlRequest, connection net.Conn) {
	Respond(0, 0, nil)(request, connection)
}

// Respond returns a handler answering with returnCode and errorCode.
// If image is non-nil it replaces the pointer image; otherwise the
// request payload is echoed for pointer shapes.
func Respond(returnCode, errorCode int32, image []byte) IoctlHandler {
	return func(request wire.IoctlRequest, connection net.Conn) {
		response := wire.IoctlResponse{ReturnCode: returnCode, ErrorCode: errorCode}
		if request.ArgType.IsPointer() {
			response.Image = request.Payload
			if image != nil {
				response.Image = image
			}
		}
		_ = wire.WriteIoctlResponse(connection, request.ArgType, response)
	}
}

// TruncateAfterReturnCode writes the pointer image and return code,
// then closes without the error code.
func TruncateAfterReturnCode(returnCode int32) IoctlHandler {
	return func(request wire.IoctlRequest, connection net.Conn) {
		var frame []byte
		if request.ArgType.IsPointer() {
			frame = append(frame, request.Payload...)
		}
		frame = appendInt32(frame, returnCode)
		_, _ = connection.Write(frame)
	}
}

// Hang never answers; the connection stays open until done is closed.
// Close done from a t.Cleanup registered after [NewServer] so that it
// runs before the server waits for its handlers.
func Hang(done <-chan struct{}) IoctlHandler {
	return func(request wire.IoctlRequest, connection net.Conn) {
		<-done
	}
}

func appendInt32(frame []byte, value int32) []byte {
	return binary.NativeEndian.AppendUint32(frame, uint32(value))
}
