// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
	"unsafe"

	"github.com/creack/pty"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/clock"
	"github.com/bureau-foundation/upty/lib/config"
	"github.com/bureau-foundation/upty/lib/facility"
	"github.com/bureau-foundation/upty/lib/identity"
	"github.com/bureau-foundation/upty/lib/testutil"
	"github.com/bureau-foundation/upty/lib/wire"
	"github.com/bureau-foundation/upty/upty"
)

// requireHostPTY skips the test when the host cannot allocate PTYs,
// as in some minimal containers.
func requireHostPTY(t *testing.T) {
	t.Helper()
	master, slave, err := pty.Open()
	if err != nil {
		t.Skipf("host PTYs unavailable: %v", err)
	}
	master.Close()
	slave.Close()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// startManager runs a manager on the system clock until the test
// ends.
func startManager(t *testing.T) *Manager {
	t.Helper()
	return startManagerWithClock(t, nil)
}

func startManagerWithClock(t *testing.T, now clock.Clock) *Manager {
	t.Helper()
	requireHostPTY(t)

	dir := testutil.SocketDir(t)
	manager := New(Config{
		SocketPath:      filepath.Join(dir, "upty.sock"),
		AdminSocketPath: filepath.Join(dir, "admin.sock"),
		Logger:          testLogger(),
		Clock:           now,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- manager.Serve(ctx) }()
	select {
	case <-manager.Ready():
	case err := <-done:
		cancel()
		t.Fatalf("Serve: %v", err)
	case <-time.After(5 * time.Second): //nolint:realclock test hang prevention
		cancel()
		t.Fatal("manager did not become ready")
	}

	t.Cleanup(func() {
		cancel()
		if err := testutil.RequireReceive(t, done, 10*time.Second, "waiting for manager shutdown"); err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})
	return manager
}

func newClient(t *testing.T, manager *Manager) *upty.Client {
	t.Helper()
	cfg := config.Default()
	cfg.Socket = manager.SocketPath()
	cfg.DialTimeout = 5 * time.Second
	cfg.IdentityStore = config.MemoryIdentityStore
	client, err := upty.New(upty.Options{
		Config:   cfg,
		Facility: facility.System{},
		Logger:   testLogger(),
		Fatal:    func(err error) { t.Errorf("fatal handler called: %v", err) },
	})
	if err != nil {
		t.Fatalf("upty.New: %v", err)
	}
	return client
}

// waitFor polls condition until it holds or the deadline passes.
func waitFor(t *testing.T, description string, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !condition() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", description)
		}
		time.Sleep(10 * time.Millisecond) //nolint:realclock polling a real PTY
	}
}

// readUntil reads from fd until the accumulated output contains want.
func readUntil(t *testing.T, fd int, want []byte) []byte {
	t.Helper()
	result := make(chan []byte, 1)
	go func() {
		var accumulated []byte
		buffer := make([]byte, 256)
		for !bytes.Contains(accumulated, want) {
			n, err := unix.Read(fd, buffer)
			if n <= 0 || err != nil {
				break
			}
			accumulated = append(accumulated, buffer[:n]...)
		}
		result <- accumulated
	}()
	output := testutil.RequireReceive(t, result, 5*time.Second, "reading %q", want)
	if !bytes.Contains(output, want) {
		t.Fatalf("read %q, want it to contain %q", output, want)
	}
	return output
}

func TestEndToEnd(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	client := newClient(t, manager)

	master, err := client.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		t.Fatalf("Open(/dev/ptmx): %v", err)
	}
	masterIdentity, ok := client.Identity(master)
	if !ok || masterIdentity.Half != identity.Master {
		t.Fatalf("master identity = %v, %v", masterIdentity, ok)
	}

	instances := manager.Instances()
	if len(instances) != 1 || instances[0].InstanceNumber != masterIdentity.InstanceNumber {
		t.Fatalf("Instances() = %+v, want instance %d", instances, masterIdentity.InstanceNumber)
	}

	var number uint32
	if _, err := client.Ioctl(master, unix.TIOCGPTN, facility.PointerArgument(unsafe.Pointer(&number))); err != nil {
		t.Fatalf("TIOCGPTN: %v", err)
	}
	if number != masterIdentity.InstanceNumber {
		t.Errorf("TIOCGPTN = %d, want %d", number, masterIdentity.InstanceNumber)
	}

	want := unix.Winsize{Row: 33, Col: 101}
	if _, err := client.Ioctl(master, unix.TIOCSWINSZ, facility.PointerArgument(unsafe.Pointer(&want))); err != nil {
		t.Fatalf("TIOCSWINSZ: %v", err)
	}

	slave, err := client.Ioctl(master, unix.TIOCGPTPEER, facility.ValueArgument(unix.O_RDWR|unix.O_NOCTTY))
	if err != nil {
		t.Fatalf("TIOCGPTPEER: %v", err)
	}
	if got, _ := client.Identity(slave); got != masterIdentity.Companion() {
		t.Errorf("slave identity = %v, want %v", got, masterIdentity.Companion())
	}
	waitFor(t, "front to attach", func() bool {
		instances := manager.Instances()
		return len(instances) == 1 && instances[0].Fronts == 1
	})

	var got unix.Winsize
	if _, err := client.Ioctl(slave, unix.TIOCGWINSZ, facility.PointerArgument(unsafe.Pointer(&got))); err != nil {
		t.Fatalf("TIOCGWINSZ on slave: %v", err)
	}
	if got.Row != want.Row || got.Col != want.Col {
		t.Errorf("slave window size = %dx%d, want %dx%d", got.Col, got.Row, want.Col, want.Row)
	}

	if _, err := unix.Write(master, []byte("hello\n")); err != nil {
		t.Fatalf("writing master: %v", err)
	}
	readUntil(t, slave, []byte("hello"))

	if _, err := unix.Write(slave, []byte("goodbye\n")); err != nil {
		t.Fatalf("writing slave: %v", err)
	}
	readUntil(t, master, []byte("goodbye"))

	if err := client.Close(slave); err != nil {
		t.Errorf("Close(slave): %v", err)
	}
	if err := client.Close(master); err != nil {
		t.Errorf("Close(master): %v", err)
	}
	waitFor(t, "instance release", func() bool { return len(manager.Instances()) == 0 })

	if value := promtestutil.ToFloat64(manager.Metrics().InstancesActive); value != 0 {
		t.Errorf("instances_active = %v, want 0", value)
	}
	if value := promtestutil.ToFloat64(manager.Metrics().IoctlRequests.WithLabelValues(string(ioctlApplied))); value != 2 {
		t.Errorf("applied ioctl requests = %v, want 2", value)
	}
}

func TestInstanceReleasedWhenBackCloses(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	client := newClient(t, manager)

	master, err := client.Open("/dev/ptmx", unix.O_RDWR, 0)
	if err != nil {
		t.Fatalf("Open(/dev/ptmx): %v", err)
	}
	waitFor(t, "instance registration", func() bool { return len(manager.Instances()) == 1 })

	if err := client.Close(master); err != nil {
		t.Fatalf("Close(master): %v", err)
	}
	waitFor(t, "instance release", func() bool { return len(manager.Instances()) == 0 })
	if value := promtestutil.ToFloat64(manager.Metrics().InstancesActive); value != 0 {
		t.Errorf("instances_active = %v, want 0", value)
	}
}

func TestIndependentInstances(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	client := newClient(t, manager)

	first, err := client.Open("/dev/ptmx", unix.O_RDWR, 0)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	defer client.Close(first)
	second, err := client.Open("/dev/ptmx", unix.O_RDWR, 0)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer client.Close(second)

	firstIdentity, _ := client.Identity(first)
	secondIdentity, _ := client.Identity(second)
	if firstIdentity.InstanceNumber == secondIdentity.InstanceNumber {
		t.Errorf("both masters got instance %d", firstIdentity.InstanceNumber)
	}
	if count := len(manager.Instances()); count != 2 {
		t.Errorf("Instances() has %d entries, want 2", count)
	}
}

// rawIoctl sends one ioctl request directly over the wire.
func rawIoctl(t *testing.T, manager *Manager, request wire.IoctlRequest) wire.IoctlResponse {
	t.Helper()
	conn, err := net.DialTimeout("unix", manager.SocketPath(), 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))
	if err := wire.WriteIoctlRequest(conn, request); err != nil {
		t.Fatalf("WriteIoctlRequest: %v", err)
	}
	response, err := wire.ReadIoctlResponse(conn, request.ArgType)
	if err != nil {
		t.Fatalf("ReadIoctlResponse: %v", err)
	}
	return response
}

func TestIoctlUnknownInstance(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	winsize := make([]byte, wire.ArgWinsizePointer.PayloadSize())
	response := rawIoctl(t, manager, wire.IoctlRequest{
		InstanceNumber: 1 << 30,
		Half:           identity.Master,
		RequestCode:    unix.TIOCGWINSZ,
		ArgType:        wire.ArgWinsizePointer,
		Payload:        winsize,
	})
	if response.ReturnCode != -1 || unix.Errno(response.ErrorCode) != unix.ENXIO {
		t.Errorf("response = %d/%v, want -1/ENXIO", response.ReturnCode, unix.Errno(response.ErrorCode))
	}
	if value := promtestutil.ToFloat64(manager.Metrics().IoctlRequests.WithLabelValues(string(ioctlUnknownInstance))); value != 1 {
		t.Errorf("unknown_instance requests = %v, want 1", value)
	}
}

func TestIoctlMismatchedTagRejected(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	client := newClient(t, manager)
	master, err := client.Open("/dev/ptmx", unix.O_RDWR, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer client.Close(master)
	masterIdentity, _ := client.Identity(master)

	// TIOCGWINSZ writes a winsize; an int-sized image must never
	// reach the device.
	response := rawIoctl(t, manager, wire.IoctlRequest{
		InstanceNumber: masterIdentity.InstanceNumber,
		Half:           identity.Master,
		RequestCode:    unix.TIOCGWINSZ,
		ArgType:        wire.ArgIntPointer,
		Payload:        make([]byte, wire.ArgIntPointer.PayloadSize()),
	})
	if response.ReturnCode != -1 || unix.Errno(response.ErrorCode) != unix.EINVAL {
		t.Errorf("response = %d/%v, want -1/EINVAL", response.ReturnCode, unix.Errno(response.ErrorCode))
	}
}

func TestAcknowledgedRequest(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	client := newClient(t, manager)
	master, err := client.Open("/dev/ptmx", unix.O_RDWR, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer client.Close(master)

	if result, err := client.Ioctl(master, unix.TIOCSCTTY, facility.ValueArgument(0)); err != nil || result != 0 {
		t.Errorf("TIOCSCTTY = %d, %v; want 0, nil", result, err)
	}
	if value := promtestutil.ToFloat64(manager.Metrics().IoctlRequests.WithLabelValues(string(ioctlAcknowledged))); value != 1 {
		t.Errorf("acknowledged requests = %v, want 1", value)
	}
}

func TestFrontForUnknownInstanceClosed(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	conn, err := net.DialTimeout("unix", manager.SocketPath(), 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := wire.WriteFrontHandshake(conn, 1<<30); err != nil {
		t.Fatalf("WriteFrontHandshake: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("read succeeded on front for unknown instance, want EOF")
	}
}

func TestInvalidHandshakeRejected(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	conn, err := net.DialTimeout("unix", manager.SocketPath(), 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("nope\x01")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Error("read succeeded after invalid handshake, want EOF")
	}
	waitFor(t, "invalid connection metric", func() bool {
		return promtestutil.ToFloat64(manager.Metrics().Connections.WithLabelValues("invalid")) == 1
	})
}

func TestServeRejectsUnusableSocketPath(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	manager := New(Config{SocketPath: filepath.Join(blocker, "upty.sock")})
	err := manager.Serve(context.Background())
	if err == nil {
		t.Fatal("Serve succeeded under a regular file")
	}
	if errors.Is(err, context.Canceled) {
		t.Errorf("Serve error = %v, want a filesystem error", err)
	}
}
