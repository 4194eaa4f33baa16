// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/facility"
	"github.com/bureau-foundation/upty/lib/identity"
)

// PlaceholderName is reported as the device path of every virtual
// descriptor. No such file exists.
const PlaceholderName = "/dev/upty"

const (
	masterDevicePath  = "/dev/ptmx"
	slaveDevicePrefix = "/dev/pts/"
)

// Dialer allocates virtual endpoints. *dial.Dialer implements it.
type Dialer interface {
	OpenMaster(flags int) (int, identity.Identity, error)
	OpenSlave(master identity.Identity, flags int) (int, error)
}

// Config configures a [Propagator].
type Config struct {
	Store    identity.Store
	Dialer   Dialer
	Facility facility.Facility

	// ProcessGroup is what Tcgetpgrp reports for every virtual
	// descriptor. Zero uses the process group of the caller of
	// [New].
	ProcessGroup int

	// Logger receives debug records for identity changes. Nil
	// discards.
	Logger *slog.Logger
}

// Propagator implements the descriptor lifecycle operations.
type Propagator struct {
	store        identity.Store
	dialer       Dialer
	facility     facility.Facility
	processGroup int
	logger       *slog.Logger
}

// New returns a Propagator for config.
func New(config Config) *Propagator {
	propagator := &Propagator{
		store:        config.Store,
		dialer:       config.Dialer,
		facility:     config.Facility,
		processGroup: config.ProcessGroup,
		logger:       config.Logger,
	}
	if propagator.processGroup == 0 {
		propagator.processGroup = unix.Getpgrp()
	}
	if propagator.logger == nil {
		propagator.logger = slog.New(slog.DiscardHandler)
	}
	return propagator
}

// Dup duplicates fd onto the lowest free descriptor.
func (p *Propagator) Dup(fd int) (int, error) {
	duplicate, err := p.facility.Dup(fd)
	if err != nil {
		return -1, err
	}
	p.propagate(fd, duplicate)
	return duplicate, nil
}

// Dup2 duplicates fd onto target, closing whatever target referred to.
func (p *Propagator) Dup2(fd, target int) (int, error) {
	duplicate, err := p.facility.Dup2(fd, target)
	if err != nil {
		return -1, err
	}
	if duplicate != fd {
		p.propagate(fd, duplicate)
	}
	return duplicate, nil
}

// Dup3 is Dup2 with flags (O_CLOEXEC).
func (p *Propagator) Dup3(fd, target, flags int) (int, error) {
	duplicate, err := p.facility.Dup3(fd, target, flags)
	if err != nil {
		return -1, err
	}
	p.propagate(fd, duplicate)
	return duplicate, nil
}

// propagate gives duplicate the identity of source. A duplicate of a
// plain descriptor loses any identity its number held before, since
// the duplication closed whatever was there.
func (p *Propagator) propagate(source, duplicate int) {
	id, ok := p.store.Get(source)
	if ok {
		p.store.Set(duplicate, id)
		p.logger.Debug("identity duplicated", "source", source, "duplicate", duplicate, "identity", id)
		return
	}
	if _, stale := p.store.Get(duplicate); stale {
		p.store.Clear(duplicate)
		p.logger.Debug("stale identity cleared", "fd", duplicate)
	}
}

// Close closes fd and forgets its identity. The identity is cleared
// whether or not the close succeeds.
func (p *Propagator) Close(fd int) error {
	err := p.facility.Close(fd)
	if _, ok := p.store.Get(fd); ok {
		p.store.Clear(fd)
		p.logger.Debug("identity cleared", "fd", fd)
	}
	return err
}

// IsTerminal reports true for every virtual descriptor.
func (p *Propagator) IsTerminal(fd int) bool {
	if _, ok := p.store.Get(fd); ok {
		return true
	}
	return p.facility.IsTerminal(fd)
}

// Ptsname returns [PlaceholderName] for virtual descriptors.
func (p *Propagator) Ptsname(fd int) (string, error) {
	if _, ok := p.store.Get(fd); ok {
		return PlaceholderName, nil
	}
	return p.facility.Ptsname(fd)
}

// PtsnameR writes the NUL-terminated [Ptsname] result into buffer,
// failing with ERANGE when it does not fit.
func (p *Propagator) PtsnameR(fd int, buffer []byte) error {
	name, err := p.Ptsname(fd)
	if err != nil {
		return err
	}
	return copyName(buffer, name)
}

// Ttyname returns [PlaceholderName] for virtual descriptors.
func (p *Propagator) Ttyname(fd int) (string, error) {
	if _, ok := p.store.Get(fd); ok {
		return PlaceholderName, nil
	}
	return p.facility.Ttyname(fd)
}

// TtynameR writes the NUL-terminated [Ttyname] result into buffer,
// failing with ERANGE when it does not fit.
func (p *Propagator) TtynameR(fd int, buffer []byte) error {
	name, err := p.Ttyname(fd)
	if err != nil {
		return err
	}
	return copyName(buffer, name)
}

func copyName(buffer []byte, name string) error {
	if len(buffer) < len(name)+1 {
		return unix.ERANGE
	}
	copy(buffer, name)
	buffer[len(name)] = 0
	return nil
}

// Grantpt succeeds for virtual descriptors.
func (p *Propagator) Grantpt(fd int) error {
	if _, ok := p.store.Get(fd); ok {
		return nil
	}
	return p.facility.Grantpt(fd)
}

// Unlockpt succeeds for virtual descriptors.
func (p *Propagator) Unlockpt(fd int) error {
	if _, ok := p.store.Get(fd); ok {
		return nil
	}
	return p.facility.Unlockpt(fd)
}

// Tcgetpgrp reports the configured process group for every virtual
// descriptor.
func (p *Propagator) Tcgetpgrp(fd int) (int, error) {
	if _, ok := p.store.Get(fd); ok {
		return p.processGroup, nil
	}
	return p.facility.Tcgetpgrp(fd)
}

// Open opens path. /dev/ptmx allocates a virtual master and
// /dev/pts/N attaches a virtual slave to instance N; every other path
// is opened normally.
func (p *Propagator) Open(path string, flags int, mode uint32) (int, error) {
	switch {
	case path == masterDevicePath:
		return p.Getpt(flags)

	case strings.HasPrefix(path, slaveDevicePrefix):
		instance, err := strconv.ParseUint(strings.TrimPrefix(path, slaveDevicePrefix), 10, 32)
		if err != nil {
			return -1, &os.PathError{Op: "open", Path: path, Err: unix.ENOENT}
		}
		fd, err := p.dialer.OpenSlave(identity.Identity{InstanceNumber: uint32(instance)}, flags)
		if err != nil {
			return -1, fmt.Errorf("open %s: %w", path, err)
		}
		return fd, nil
	}
	return p.facility.Open(path, flags, mode)
}

// Getpt allocates a virtual master. It stands in for getpt,
// posix_openpt and opens of /dev/ptmx.
func (p *Propagator) Getpt(flags int) (int, error) {
	fd, _, err := p.dialer.OpenMaster(flags)
	if err != nil {
		return -1, err
	}
	return fd, nil
}

// PosixOpenpt is [Propagator.Getpt].
func (p *Propagator) PosixOpenpt(flags int) (int, error) {
	return p.Getpt(flags)
}
