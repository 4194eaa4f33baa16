// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dial

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/identity"
	"github.com/bureau-foundation/upty/lib/process"
	"github.com/bureau-foundation/upty/lib/wire"
)

// Config configures a [Dialer].
type Config struct {
	// Endpoint is the rendezvous socket path. Empty resolves with
	// [ResolveEndpoint].
	Endpoint string

	// Store receives the identity of every descriptor dialed. Nil
	// uses a fresh [identity.MemoryStore].
	Store identity.Store

	// Timeout bounds every handshake and control exchange. Zero blocks
	// indefinitely, like the kernel operations being replaced.
	Timeout time.Duration

	// Logger receives debug records for each dial. Nil discards.
	Logger *slog.Logger

	// Fatal is called when a master cannot be allocated. Nil uses
	// [process.Fatal], which exits the process. Tests substitute a
	// function that records the error and returns, in which case
	// OpenMaster returns the error as well.
	Fatal func(error)
}

// Dialer opens master, slave, and control channels.
type Dialer struct {
	endpoint string
	store    identity.Store
	timeout  time.Duration
	logger   *slog.Logger
	fatal    func(error)
}

// New returns a Dialer for config.
func New(config Config) *Dialer {
	dialer := &Dialer{
		endpoint: ResolveEndpoint(config.Endpoint),
		store:    config.Store,
		timeout:  config.Timeout,
		logger:   config.Logger,
		fatal:    config.Fatal,
	}
	if dialer.store == nil {
		dialer.store = identity.NewMemoryStore()
	}
	if dialer.logger == nil {
		dialer.logger = slog.New(slog.DiscardHandler)
	}
	if dialer.fatal == nil {
		dialer.fatal = process.Fatal
	}
	return dialer
}

// Endpoint returns the rendezvous socket path.
func (d *Dialer) Endpoint() string {
	return d.endpoint
}

// Store returns the identity store dialed descriptors are registered in.
func (d *Dialer) Store() identity.Store {
	return d.store
}

// Timeout returns the configured exchange timeout.
func (d *Dialer) Timeout() time.Duration {
	return d.timeout
}

// OpenMaster allocates a new virtual PTY instance and returns the
// master descriptor and its identity. flags may carry O_CLOEXEC; other
// open flags have no meaning for a socket and are ignored.
//
// Any failure is passed to the fatal handler before being returned.
func (d *Dialer) OpenMaster(flags int) (int, identity.Identity, error) {
	fd, id, err := d.openMaster(flags)
	if err != nil {
		d.logger.Error("virtual pty master allocation failed", "endpoint", d.endpoint, "error", err)
		d.fatal(err)
		return -1, identity.Identity{}, err
	}
	return fd, id, nil
}

func (d *Dialer) openMaster(flags int) (int, identity.Identity, error) {
	fd, err := d.connect(wire.RoleBack, flags&unix.O_CLOEXEC != 0)
	if err != nil {
		return -1, identity.Identity{}, err
	}

	connection := descriptorConn(fd)
	if err := wire.WriteHandshake(connection, wire.RoleBack); err != nil {
		unix.Close(fd)
		return -1, identity.Identity{}, fmt.Errorf("master handshake with %s: %w", d.endpoint, err)
	}
	instance, err := wire.ReadInstanceNumber(connection)
	if err != nil {
		unix.Close(fd)
		return -1, identity.Identity{}, fmt.Errorf("reading instance number from %s: %w", d.endpoint, err)
	}
	if err := d.finishHandshake(fd); err != nil {
		unix.Close(fd)
		return -1, identity.Identity{}, err
	}

	id := identity.Identity{InstanceNumber: instance, Half: identity.Master}
	d.store.Set(fd, id)
	d.logger.Debug("virtual pty master allocated", "fd", fd, "instance", instance)
	return fd, id, nil
}

// OpenSlave attaches a new slave descriptor to master's instance. Only
// master.InstanceNumber is used, so callers holding just an instance
// number (such as an open of /dev/pts/N) may pass any half. flags may
// carry O_CLOEXEC.
//
// The manager does not acknowledge front connections: a completed
// connect and handshake write is success, and an invalid instance
// number surfaces later as a closed channel.
func (d *Dialer) OpenSlave(master identity.Identity, flags int) (int, error) {
	fd, err := d.connect(wire.RoleFront, flags&unix.O_CLOEXEC != 0)
	if err != nil {
		return -1, err
	}
	if err := wire.WriteFrontHandshake(descriptorConn(fd), master.InstanceNumber); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("slave handshake with %s: %w", d.endpoint, err)
	}
	if err := d.finishHandshake(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}

	id := master.Companion()
	d.store.Set(fd, id)
	d.logger.Debug("virtual pty slave attached", "fd", fd, "instance", id.InstanceNumber)
	return fd, nil
}

// connect creates a stream socket and connects it to the rendezvous
// endpoint, applying the handshake timeout.
func (d *Dialer) connect(role wire.Role, closeOnExec bool) (int, error) {
	socketType := unix.SOCK_STREAM
	if closeOnExec {
		socketType |= unix.SOCK_CLOEXEC
	}
	fd, err := unix.Socket(unix.AF_UNIX, socketType, 0)
	if err != nil {
		return -1, &ConnectError{Endpoint: d.endpoint, Role: role, Err: fmt.Errorf("creating socket: %w", err)}
	}
	if err := unix.Connect(fd, &unix.SockaddrUnix{Name: d.endpoint}); err != nil {
		unix.Close(fd)
		return -1, &ConnectError{Endpoint: d.endpoint, Role: role, Err: err}
	}
	if d.timeout > 0 {
		if err := setHandshakeTimeout(fd, d.timeout); err != nil {
			unix.Close(fd)
			return -1, &ConnectError{Endpoint: d.endpoint, Role: role, Err: fmt.Errorf("setting handshake timeout: %w", err)}
		}
	}
	return fd, nil
}

// finishHandshake restores blocking I/O without a timeout: after the
// handshake the descriptor belongs to the caller, who expects the
// semantics of a terminal device.
func (d *Dialer) finishHandshake(fd int) error {
	if d.timeout <= 0 {
		return nil
	}
	if err := setHandshakeTimeout(fd, 0); err != nil {
		return fmt.Errorf("clearing handshake timeout: %w", err)
	}
	return nil
}

// Control opens an ephemeral control channel for one ioctl exchange.
// The returned connection carries a deadline covering the whole
// exchange when a timeout is configured or ctx has a deadline. The
// caller must close it.
func (d *Dialer) Control(ctx context.Context) (net.Conn, error) {
	dialer := net.Dialer{Timeout: d.timeout}
	connection, err := dialer.DialContext(ctx, "unix", d.endpoint)
	if err != nil {
		return nil, &ConnectError{Endpoint: d.endpoint, Role: wire.RoleIoctlRequest, Err: err}
	}

	var deadline time.Time
	if d.timeout > 0 {
		deadline = time.Now().Add(d.timeout)
	}
	if contextDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || contextDeadline.Before(deadline)) {
		deadline = contextDeadline
	}
	if !deadline.IsZero() {
		if err := connection.SetDeadline(deadline); err != nil {
			connection.Close()
			return nil, fmt.Errorf("setting control channel deadline: %w", err)
		}
	}
	return connection, nil
}
