// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package upty

import (
	"errors"
	"testing"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/config"
	"github.com/bureau-foundation/upty/lib/facility"
	"github.com/bureau-foundation/upty/lib/facility/facilitytest"
	"github.com/bureau-foundation/upty/lib/identity"
	"github.com/bureau-foundation/upty/lib/testutil"
	"github.com/bureau-foundation/upty/lib/wire/wiretest"
)

// newTestClient returns a client of server whose plain descriptors are
// handled by fac.
func newTestClient(t *testing.T, server *wiretest.Server, kind config.IdentityStoreKind, fac facility.Facility) *Client {
	t.Helper()
	cfg := config.Default()
	cfg.Socket = server.Path
	cfg.DialTimeout = 5 * time.Second
	cfg.IdentityStore = kind
	client, err := New(Options{
		Config:   cfg,
		Facility: fac,
		Fatal:    func(err error) { t.Errorf("fatal handler called: %v", err) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestClientScenario(t *testing.T) {
	t.Parallel()

	server := wiretest.NewServer(t, wiretest.Options{InstanceNumbers: []uint32{7}})
	client := newTestClient(t, server, config.MemoryIdentityStore, facility.System{})

	master, err := client.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		t.Fatalf("Open(/dev/ptmx): %v", err)
	}
	defer client.Close(master)

	if got, ok := client.Identity(master); !ok || got != (identity.Identity{InstanceNumber: 7, Half: identity.Master}) {
		t.Fatalf("master identity = %v, %v; want (7, master)", got, ok)
	}
	if !client.IsTerminal(master) {
		t.Error("IsTerminal(master) = false")
	}

	var number uint32
	if _, err := client.Ioctl(master, unix.TIOCGPTN, facility.PointerArgument(unsafe.Pointer(&number))); err != nil {
		t.Fatalf("TIOCGPTN: %v", err)
	}
	if number != 7 {
		t.Errorf("TIOCGPTN = %d, want 7", number)
	}

	slave, err := client.Ioctl(master, unix.TIOCGPTPEER, facility.ValueArgument(unix.O_RDWR))
	if err != nil {
		t.Fatalf("TIOCGPTPEER: %v", err)
	}
	defer client.Close(slave)
	if got := testutil.RequireReceive(t, server.Fronts(), 5*time.Second, "waiting for front"); got != 7 {
		t.Errorf("front instance = %d, want 7", got)
	}

	duplicate, err := client.Dup(slave)
	if err != nil {
		t.Fatalf("Dup: %v", err)
	}
	if err := client.Close(duplicate); err != nil {
		t.Fatalf("Close(duplicate): %v", err)
	}
	if _, ok := client.Identity(duplicate); ok {
		t.Error("closed duplicate kept its identity")
	}
	if got, ok := client.Identity(slave); !ok || got.Half != identity.Slave {
		t.Errorf("slave identity = %v, %v; want a slave", got, ok)
	}
}

func TestClientOpenSlaveByDescriptor(t *testing.T) {
	t.Parallel()

	server := wiretest.NewServer(t, wiretest.Options{InstanceNumbers: []uint32{4}})
	client := newTestClient(t, server, config.MemoryIdentityStore, facility.System{})

	master, err := client.Getpt(0)
	if err != nil {
		t.Fatalf("Getpt: %v", err)
	}
	defer client.Close(master)

	slave, err := client.OpenSlave(master, unix.O_CLOEXEC)
	if err != nil {
		t.Fatalf("OpenSlave: %v", err)
	}
	defer client.Close(slave)
	if got := testutil.RequireReceive(t, server.Fronts(), 5*time.Second, "waiting for front"); got != 4 {
		t.Errorf("front instance = %d, want 4", got)
	}

	if _, err := client.OpenSlave(12345, 0); !errors.Is(err, unix.ENOTTY) {
		t.Errorf("OpenSlave(plain fd) = %v, want ENOTTY", err)
	}
}

func TestClientPassThrough(t *testing.T) {
	t.Parallel()

	server := wiretest.NewServer(t, wiretest.Options{})
	fake := facilitytest.New(1000)
	client := newTestClient(t, server, config.MemoryIdentityStore, fake)

	if _, err := client.Ioctl(1, unix.TCGETS, facility.Argument{}); err != nil {
		t.Fatalf("Ioctl: %v", err)
	}
	if _, err := client.Open("/etc/upty-test", unix.O_RDONLY, 0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := len(fake.Calls()); got != 2 {
		t.Errorf("facility calls = %d, want 2", got)
	}
	if got := server.Connections(); got != 0 {
		t.Errorf("manager connections = %d, want 0", got)
	}
}

// The environment store is process-global, so this test does not run
// in parallel with itself; descriptors are real and distinct.
func TestClientEnvironmentStore(t *testing.T) {
	server := wiretest.NewServer(t, wiretest.Options{InstanceNumbers: []uint32{9}})
	client := newTestClient(t, server, config.EnvironmentIdentityStore, facility.System{})

	master, err := client.Getpt(0)
	if err != nil {
		t.Fatalf("Getpt: %v", err)
	}
	defer client.Close(master)

	// A second store over the same environment sees the identity, as a
	// program started with exec would.
	inherited := identity.NewEnvironmentStore(nil)
	if got, ok := inherited.Get(master); !ok || got.InstanceNumber != 9 {
		t.Errorf("inherited identity = %v, %v; want instance 9", got, ok)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.IdentityStore = "disk"
	if _, err := New(Options{Config: cfg}); err == nil {
		t.Fatal("New accepted an unknown identity store")
	}
}

func TestErrno(t *testing.T) {
	t.Parallel()

	if got := Errno(unix.ENOENT); got != unix.ENOENT {
		t.Errorf("Errno(ENOENT) = %v", got)
	}
	if got := Errno(nil); got != 0 {
		t.Errorf("Errno(nil) = %v, want 0", got)
	}
}
