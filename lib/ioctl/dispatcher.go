// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ioctl

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/facility"
	"github.com/bureau-foundation/upty/lib/identity"
	"github.com/bureau-foundation/upty/lib/wire"
)

// Dialer opens the channels a dispatch needs. *dial.Dialer implements
// it.
type Dialer interface {
	// OpenSlave attaches a new slave descriptor to master's instance.
	OpenSlave(master identity.Identity, flags int) (int, error)

	// Control opens an ephemeral control channel.
	Control(ctx context.Context) (net.Conn, error)
}

// Config configures a [Dispatcher].
type Config struct {
	Store    identity.Store
	Dialer   Dialer
	Facility facility.Facility

	// Logger receives a debug record per forwarded request. Nil
	// discards.
	Logger *slog.Logger
}

// Dispatcher intercepts ioctl calls.
type Dispatcher struct {
	store    identity.Store
	dialer   Dialer
	facility facility.Facility
	logger   *slog.Logger
}

// NewDispatcher returns a Dispatcher for config. Store, Dialer and
// Facility are required.
func NewDispatcher(config Config) *Dispatcher {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{
		store:    config.Store,
		dialer:   config.Dialer,
		facility: config.Facility,
		logger:   logger,
	}
}

// Ioctl is [Dispatcher.IoctlContext] without a deadline beyond the
// dialer's configured timeout.
func (d *Dispatcher) Ioctl(fd int, request uint, argument facility.Argument) (int, error) {
	return d.IoctlContext(context.Background(), fd, request, argument)
}

// IoctlContext performs request on fd. The result follows the ioctl
// convention: on failure the returned int is -1 and the error maps to
// the caller's errno through [Errno].
//
// For TIOCGPTPEER the result is the new slave descriptor and
// argument.Value carries its open flags.
func (d *Dispatcher) IoctlContext(ctx context.Context, fd int, request uint, argument facility.Argument) (int, error) {
	id, ok := d.store.Get(fd)
	if !ok {
		return d.facility.Ioctl(fd, request, argument)
	}

	argType := Lookup(request)
	switch {
	case argType == wire.ArgUnsupported:
		d.logger.Debug("ignoring unsupported ioctl", "fd", fd, "identity", id, "request", fmt.Sprintf("%#x", request))
		return 0, nil

	case request == unix.TIOCGPTPEER:
		return d.openCompanion(fd, id, int(argument.Value))

	case request == unix.TIOCGPTN:
		image := argument.Bytes(argType.PayloadSize())
		if image == nil {
			return -1, unix.EFAULT
		}
		binary.NativeEndian.PutUint32(image, id.InstanceNumber)
		return 0, nil
	}

	return d.forward(ctx, fd, id, request, argType, argument)
}

func (d *Dispatcher) openCompanion(fd int, id identity.Identity, flags int) (int, error) {
	if id.Half != identity.Master {
		return -1, fmt.Errorf("fd %d %v: %w", fd, id, ErrNotMaster)
	}
	slave, err := d.dialer.OpenSlave(id, flags)
	if err != nil {
		return -1, fmt.Errorf("opening companion of fd %d %v: %w", fd, id, err)
	}
	return slave, nil
}

// forward sends request over a fresh control channel and applies the
// answer. The caller's memory is written only after the complete
// response has arrived.
func (d *Dispatcher) forward(ctx context.Context, fd int, id identity.Identity, request uint, argType wire.ArgType, argument facility.Argument) (int, error) {
	frame := wire.IoctlRequest{
		InstanceNumber: id.InstanceNumber,
		Half:           id.Half,
		RequestCode:    request,
		ArgType:        argType,
	}

	var callerImage []byte
	switch {
	case argType.IsPointer():
		callerImage = argument.Bytes(argType.PayloadSize())
		if callerImage == nil {
			return -1, unix.EFAULT
		}
		frame.Payload = append([]byte(nil), callerImage...)
	case argType == wire.ArgInt:
		frame.Payload = wire.EncodeInt(argument.Int())
	}

	connection, err := d.dialer.Control(ctx)
	if err != nil {
		return -1, fmt.Errorf("forwarding %v: %w", frame, err)
	}
	defer connection.Close()

	if err := wire.WriteIoctlRequest(connection, frame); err != nil {
		return -1, fmt.Errorf("forwarding %v: %w", frame, err)
	}
	response, err := wire.ReadIoctlResponse(connection, argType)
	if err != nil {
		return -1, fmt.Errorf("awaiting answer to %v: %w", frame, err)
	}

	copy(callerImage, response.Image)
	d.logger.Debug("forwarded ioctl",
		"fd", fd,
		"request", frame.String(),
		"return_code", response.ReturnCode,
		"error_code", response.ErrorCode,
	)

	if response.ReturnCode < 0 {
		return -1, &RemoteError{
			Request:    request,
			Identity:   id,
			ReturnCode: response.ReturnCode,
			Code:       unix.Errno(response.ErrorCode),
		}
	}
	return int(response.ReturnCode), nil
}
