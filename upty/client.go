// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upty

import (
	"fmt"
	"log/slog"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/config"
	"github.com/bureau-foundation/upty/lib/dial"
	"github.com/bureau-foundation/upty/lib/facility"
	"github.com/bureau-foundation/upty/lib/identity"
	"github.com/bureau-foundation/upty/lib/ioctl"
	"github.com/bureau-foundation/upty/lib/lifecycle"
	"github.com/bureau-foundation/upty/lib/process"
)

// Options configures a [Client].
type Options struct {
	// Config supplies the endpoint, timeout and store kind. Nil uses
	// [config.Default].
	Config *config.Config

	// Facility performs the underlying operations for descriptors
	// without an identity. Nil uses [facility.System].
	Facility facility.Facility

	// Store overrides the store selected by Config.IdentityStore.
	Store identity.Store

	// Logger receives debug records. Nil discards.
	Logger *slog.Logger

	// Fatal handles a failed master allocation. Nil exits the process.
	Fatal func(error)
}

// Client performs every intercepted terminal operation. It is safe for
// concurrent use.
type Client struct {
	*ioctl.Dispatcher
	*lifecycle.Propagator

	store  identity.Store
	dialer *dial.Dialer
}

// New returns a Client for options.
func New(options Options) (*Client, error) {
	cfg := options.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fac := options.Facility
	if fac == nil {
		fac = facility.System{}
	}

	store := options.Store
	if store == nil {
		switch cfg.IdentityStore {
		case config.EnvironmentIdentityStore:
			store = identity.NewEnvironmentStore(logger)
		case config.MemoryIdentityStore:
			store = identity.NewMemoryStore()
		default:
			return nil, fmt.Errorf("unknown identity store %q", cfg.IdentityStore)
		}
	}

	dialer := dial.New(dial.Config{
		Endpoint: cfg.Socket,
		Store:    store,
		Timeout:  cfg.DialTimeout,
		Logger:   logger,
		Fatal:    options.Fatal,
	})

	return &Client{
		Dispatcher: ioctl.NewDispatcher(ioctl.Config{
			Store:    store,
			Dialer:   dialer,
			Facility: fac,
			Logger:   logger,
		}),
		Propagator: lifecycle.New(lifecycle.Config{
			Store:    store,
			Dialer:   dialer,
			Facility: fac,
			Logger:   logger,
		}),
		store:  store,
		dialer: dialer,
	}, nil
}

// NewFromEnvironment loads configuration with [config.Load] and returns
// a Client over fac that logs to stderr when UPTY_DEBUG is set.
func NewFromEnvironment(fac facility.Facility) (*Client, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	options := Options{Config: cfg, Facility: fac}
	if cfg.Debug {
		options.Logger = process.NewLogger(true)
	}
	return New(options)
}

// Endpoint returns the rendezvous socket path.
func (c *Client) Endpoint() string {
	return c.dialer.Endpoint()
}

// Identity returns the virtual PTY identity of fd, if any.
func (c *Client) Identity(fd int) (identity.Identity, bool) {
	return c.store.Get(fd)
}

// OpenSlave attaches a new slave to the instance of master, which must
// be a descriptor with an identity.
func (c *Client) OpenSlave(master int, flags int) (int, error) {
	id, ok := c.store.Get(master)
	if !ok {
		return -1, fmt.Errorf("fd %d is not a virtual terminal: %w", master, unix.ENOTTY)
	}
	return c.dialer.OpenSlave(id, flags)
}

// Errno maps an error returned by any Client method onto the errno a
// native caller observes.
func Errno(err error) unix.Errno {
	return ioctl.Errno(err)
}
