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
	"sort"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/clock"
	"github.com/bureau-foundation/upty/lib/ioctl"
	"github.com/bureau-foundation/upty/lib/netutil"
	"github.com/bureau-foundation/upty/lib/wire"
)

// handshakeTimeout bounds how long a new connection may take to send
// its handshake and, for fronts and ioctl requests, the rest of its
// request.
const handshakeTimeout = 30 * time.Second

// responseTimeout bounds writing the instance number or ioctl
// response back to a client.
const responseTimeout = 10 * time.Second

// Config configures a [Manager].
type Config struct {
	// SocketPath is the rendezvous socket clients dial.
	SocketPath string

	// AdminSocketPath serves CBOR status queries. Empty disables the
	// admin socket.
	AdminSocketPath string

	// Shell, when non-empty, is started on the slave of every new
	// instance.
	Shell string

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// Metrics receives instrumentation. Nil creates an unexported
	// registry.
	Metrics *Metrics

	// Clock stamps instance creation and start times. Nil uses the
	// system clock.
	Clock clock.Clock
}

// Manager is the reference session manager. It owns one host PTY pair
// per virtual instance and relays back and front connections onto the
// host master and slave.
type Manager struct {
	socketPath      string
	adminSocketPath string
	shell           string
	logger          *slog.Logger
	metrics         *Metrics
	clock           clock.Clock

	started time.Time
	ready   chan struct{}

	mutex       sync.Mutex
	instances   map[uint32]*instance
	connections map[net.Conn]struct{}
	roleCounts  map[wire.Role]uint64

	active sync.WaitGroup
}

// New creates a manager. Call [Manager.Serve] to start it.
func New(config Config) *Manager {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	now := config.Clock
	if now == nil {
		now = clock.Real()
	}
	return &Manager{
		socketPath:      config.SocketPath,
		adminSocketPath: config.AdminSocketPath,
		shell:           config.Shell,
		logger:          logger,
		metrics:         metrics,
		clock:           now,
		ready:           make(chan struct{}),
		instances:       make(map[uint32]*instance),
		connections:     make(map[net.Conn]struct{}),
		roleCounts:      make(map[wire.Role]uint64),
	}
}

// Ready is closed once the rendezvous socket (and admin socket, if
// configured) is accepting connections.
func (m *Manager) Ready() <-chan struct{} {
	return m.ready
}

// SocketPath returns the rendezvous socket path.
func (m *Manager) SocketPath() string {
	return m.socketPath
}

// Metrics returns the manager's instrumentation.
func (m *Manager) Metrics() *Metrics {
	return m.metrics
}

// Serve listens on the rendezvous socket until ctx is cancelled. On
// return every connection and host PTY has been closed and the socket
// files removed.
func (m *Manager) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(m.socketPath), 0o700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(m.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", m.socketPath, err)
	}

	listener, err := net.Listen("unix", m.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", m.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(m.socketPath)
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	adminDone := make(chan error, 1)
	if m.adminSocketPath != "" {
		admin := newAdminServer(m, m.adminSocketPath, m.logger)
		adminListening := make(chan struct{})
		go func() {
			adminDone <- admin.serve(ctx, adminListening)
		}()
		select {
		case <-adminListening:
		case err := <-adminDone:
			return fmt.Errorf("starting admin socket: %w", err)
		}
	} else {
		adminDone <- nil
	}

	go func() {
		<-ctx.Done()
		listener.Close()
		m.closeAll()
	}()

	m.started = m.clock.Now()
	m.logger.Info("session manager listening",
		"socket", m.socketPath,
		"admin_socket", m.adminSocketPath,
	)
	close(m.ready)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			m.logger.Error("accept failed", "error", err)
			continue
		}
		if !m.track(conn) {
			conn.Close()
			continue
		}
		m.active.Add(1)
		go func() {
			defer m.active.Done()
			defer m.untrack(conn)
			m.handleConnection(conn)
		}()
	}

	m.active.Wait()
	return <-adminDone
}

// track registers conn for shutdown. Returns false once shutdown has
// begun.
func (m *Manager) track(conn net.Conn) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.connections == nil {
		return false
	}
	m.connections[conn] = struct{}{}
	return true
}

func (m *Manager) untrack(conn net.Conn) {
	conn.Close()
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.connections, conn)
}

// closeAll closes every tracked connection and host PTY. Bridges
// blocked on either side return once their streams close.
func (m *Manager) closeAll() {
	m.mutex.Lock()
	connections := m.connections
	instances := m.instances
	m.connections = nil
	m.instances = make(map[uint32]*instance)
	m.mutex.Unlock()

	for conn := range connections {
		conn.Close()
	}
	for _, inst := range instances {
		inst.close()
		m.metrics.InstancesActive.Dec()
	}
}

func (m *Manager) handleConnection(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	role, err := wire.ReadHandshake(conn)
	if err != nil {
		m.metrics.Connections.WithLabelValues("invalid").Inc()
		if !errors.Is(err, io.EOF) {
			m.logger.Warn("rejected connection", "error", err)
		}
		return
	}

	m.mutex.Lock()
	m.roleCounts[role]++
	m.mutex.Unlock()

	switch role {
	case wire.RoleBack:
		m.metrics.Connections.WithLabelValues("back").Inc()
		m.serveBack(conn)
	case wire.RoleFront:
		m.metrics.Connections.WithLabelValues("front").Inc()
		m.serveFront(conn)
	case wire.RoleIoctlRequest:
		m.metrics.Connections.WithLabelValues("ioctl").Inc()
		m.serveIoctl(conn)
	}
}

// serveBack allocates an instance, reports its number, and relays the
// connection onto the host master until either side closes.
func (m *Manager) serveBack(conn net.Conn) {
	inst, err := openInstance(m.clock.Now())
	if err != nil {
		m.logger.Error("allocating instance", "error", err)
		return
	}
	if m.shell != "" {
		if err := inst.startShell(m.shell); err != nil {
			m.logger.Warn("starting shell", "instance", inst.number, "error", err)
		}
	}
	if !m.register(inst) {
		inst.close()
		return
	}
	defer m.remove(inst)

	conn.SetWriteDeadline(time.Now().Add(responseTimeout))
	if err := wire.WriteInstanceNumber(conn, inst.number); err != nil {
		m.logger.Warn("sending instance number", "instance", inst.number, "error", err)
		return
	}
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	m.logger.Info("instance allocated", "instance", inst.number, "slave", inst.slave.Name())
	result, err := netutil.Bridge(conn, inst.master)
	m.countRelayed(result)
	if err != nil {
		m.logger.Warn("back relay ended", "instance", inst.number, "error", err)
	}
	m.logger.Info("instance released", "instance", inst.number)
}

// serveFront relays the connection onto a fresh descriptor for the
// addressed instance's slave. A front for an unknown instance is
// closed without a reply.
func (m *Manager) serveFront(conn net.Conn) {
	number, err := wire.ReadInstanceNumber(conn)
	if err != nil {
		m.logger.Warn("reading front instance", "error", err)
		return
	}
	inst := m.lookup(number)
	if inst == nil {
		m.logger.Warn("front for unknown instance", "instance", number)
		return
	}
	front, err := inst.openFront()
	if err != nil {
		m.logger.Error("opening front", "instance", number, "error", err)
		return
	}
	defer inst.closeFront()
	conn.SetReadDeadline(time.Time{})

	m.logger.Debug("front attached", "instance", number)
	result, err := netutil.Bridge(conn, front)
	m.countRelayed(result)
	if err != nil {
		m.logger.Warn("front relay ended", "instance", number, "error", err)
	}
}

// serveIoctl answers exactly one ioctl request.
func (m *Manager) serveIoctl(conn net.Conn) {
	request, err := wire.ReadIoctlRequest(conn)
	if err != nil {
		m.logger.Warn("reading ioctl request", "error", err)
		return
	}

	var response wire.IoctlResponse
	var result ioctlResult
	switch inst := m.lookup(request.InstanceNumber); {
	case inst == nil:
		response, result = unknownInstance(request), ioctlUnknownInstance
	case ioctl.Lookup(request.RequestCode) != request.ArgType:
		response, result = rejected(request, unix.EINVAL), ioctlRejected
	default:
		response, result = applyIoctl(inst.file(request.Half), request)
	}
	m.metrics.IoctlRequests.WithLabelValues(string(result)).Inc()
	m.logger.Debug("ioctl",
		"request", request.String(),
		"result", string(result),
		"return_code", response.ReturnCode,
	)

	conn.SetWriteDeadline(time.Now().Add(responseTimeout))
	if err := wire.WriteIoctlResponse(conn, request.ArgType, response); err != nil {
		m.logger.Warn("writing ioctl response", "request", request.String(), "error", err)
	}
}

func (m *Manager) register(inst *instance) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.connections == nil {
		return false
	}
	m.instances[inst.number] = inst
	m.metrics.InstancesActive.Inc()
	m.metrics.InstancesTotal.Inc()
	return true
}

// remove closes inst and forgets it, unless shutdown already did.
func (m *Manager) remove(inst *instance) {
	m.mutex.Lock()
	current, exists := m.instances[inst.number]
	if exists && current == inst {
		delete(m.instances, inst.number)
	}
	m.mutex.Unlock()
	if exists && current == inst {
		inst.close()
		m.metrics.InstancesActive.Dec()
	}
}

func (m *Manager) lookup(number uint32) *instance {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.instances[number]
}

func (m *Manager) countRelayed(result netutil.BridgeResult) {
	m.metrics.BytesRelayed.WithLabelValues("to_pty").Add(float64(result.BytesAToB))
	m.metrics.BytesRelayed.WithLabelValues("from_pty").Add(float64(result.BytesBToA))
}

// Instances lists live instances ordered by instance number.
func (m *Manager) Instances() []InstanceInfo {
	m.mutex.Lock()
	instances := make([]*instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	m.mutex.Unlock()

	infos := make([]InstanceInfo, 0, len(instances))
	for _, inst := range instances {
		infos = append(infos, inst.info())
	}
	sort.Slice(infos, func(a, b int) bool {
		return infos[a].InstanceNumber < infos[b].InstanceNumber
	})
	return infos
}

// Status summarizes the manager for the admin socket.
type Status struct {
	Version     string            `cbor:"version" json:"version"`
	Protocol    string            `cbor:"protocol" json:"protocol"`
	Socket      string            `cbor:"socket" json:"socket"`
	Started     time.Time         `cbor:"started" json:"started"`
	Instances   int               `cbor:"instances" json:"instances"`
	Connections int               `cbor:"connections" json:"connections"`
	Handshakes  map[string]uint64 `cbor:"handshakes" json:"handshakes"`
}

func (m *Manager) status(version string) Status {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	handshakes := make(map[string]uint64, len(m.roleCounts))
	for role, count := range m.roleCounts {
		handshakes[role.String()] = count
	}
	return Status{
		Version:     version,
		Protocol:    string(wire.Version[:]),
		Socket:      m.socketPath,
		Started:     m.started,
		Instances:   len(m.instances),
		Connections: len(m.connections),
		Handshakes:  handshakes,
	}
}
