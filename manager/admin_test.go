// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/clock"
	"github.com/bureau-foundation/upty/lib/codec"
	"github.com/bureau-foundation/upty/lib/version"
)

func adminClient(manager *Manager) *AdminClient {
	return NewAdminClient(manager.adminSocketPath)
}

func TestAdminStatus(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	client := newClient(t, manager)
	master, err := client.Open("/dev/ptmx", unix.O_RDWR, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer client.Close(master)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := adminClient(manager).Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.Version != version.Info() {
		t.Errorf("Version = %q, want %q", status.Version, version.Info())
	}
	if status.Protocol != "upty" {
		t.Errorf("Protocol = %q, want upty", status.Protocol)
	}
	if status.Socket != manager.SocketPath() {
		t.Errorf("Socket = %q, want %q", status.Socket, manager.SocketPath())
	}
	if status.Instances != 1 {
		t.Errorf("Instances = %d, want 1", status.Instances)
	}
	if status.Handshakes["back"] != 1 {
		t.Errorf("Handshakes = %v, want one back", status.Handshakes)
	}
	if status.Started.IsZero() {
		t.Error("Started is zero")
	}
}

func TestAdminListInstances(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	client := newClient(t, manager)
	master, err := client.Open("/dev/ptmx", unix.O_RDWR, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer client.Close(master)
	masterIdentity, _ := client.Identity(master)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	instances, err := adminClient(manager).ListInstances(ctx)
	if err != nil {
		t.Fatalf("ListInstances: %v", err)
	}
	if len(instances) != 1 {
		t.Fatalf("ListInstances returned %d entries, want 1", len(instances))
	}
	if instances[0].InstanceNumber != masterIdentity.InstanceNumber {
		t.Errorf("InstanceNumber = %d, want %d", instances[0].InstanceNumber, masterIdentity.InstanceNumber)
	}
	if !strings.HasPrefix(instances[0].SlavePath, "/dev/pts/") {
		t.Errorf("SlavePath = %q", instances[0].SlavePath)
	}
}

func TestAdminTimestampsFollowClock(t *testing.T) {
	t.Parallel()

	epoch := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	fake := clock.Fake(epoch)
	manager := startManagerWithClock(t, fake)
	fake.Advance(time.Minute)

	client := newClient(t, manager)
	master, err := client.Open("/dev/ptmx", unix.O_RDWR, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer client.Close(master)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := adminClient(manager).Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if !status.Started.Equal(epoch) {
		t.Errorf("Started = %v, want %v", status.Started, epoch)
	}
	instances, err := adminClient(manager).ListInstances(ctx)
	if err != nil {
		t.Fatalf("ListInstances: %v", err)
	}
	if len(instances) != 1 || !instances[0].Created.Equal(epoch.Add(time.Minute)) {
		t.Errorf("instances = %+v, want one created at %v", instances, epoch.Add(time.Minute))
	}
}

func TestAdminUnknownAction(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := adminClient(manager).Call(ctx, "reboot", nil, nil)
	var adminErr *AdminError
	if !errors.As(err, &adminErr) {
		t.Fatalf("Call error = %v, want *AdminError", err)
	}
	if adminErr.Action != "reboot" || !strings.Contains(adminErr.Message, "unknown action") {
		t.Errorf("AdminError = %+v", adminErr)
	}
}

func TestAdminMissingAction(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	conn, err := net.DialTimeout("unix", manager.adminSocketPath, 5*time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := codec.NewEncoder(conn).Encode(map[string]any{"verbose": true}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.OK || response.Error != "missing required field: action" {
		t.Errorf("response = %+v", response)
	}
}

func TestAdminClientDialFailure(t *testing.T) {
	t.Parallel()

	client := NewAdminClient(filepath.Join(t.TempDir(), "absent.sock"))
	err := client.Call(context.Background(), ActionStatus, nil, nil)
	if err == nil {
		t.Fatal("Call succeeded without a server")
	}
	var adminErr *AdminError
	if errors.As(err, &adminErr) {
		t.Errorf("dial failure reported as *AdminError: %v", err)
	}
}

func TestDuplicateHandlerPanics(t *testing.T) {
	t.Parallel()

	server := newAdminServer(New(Config{}), "unused.sock", testLogger())
	defer func() {
		if recover() == nil {
			t.Error("duplicate handle did not panic")
		}
	}()
	server.handle(ActionStatus, nil)
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	metrics.Connections.WithLabelValues("back").Inc()
	metrics.InstancesActive.Set(3)

	server := httptest.NewServer(metrics.Handler())
	defer server.Close()
	response, err := server.Client().Get(server.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	for _, want := range []string{
		`upty_manager_connections_total{role="back"} 1`,
		"upty_manager_instances_active 3",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q:\n%s", want, body)
		}
	}
}

func TestAdminClientLogsResponseDiagnostic(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	var logs bytes.Buffer
	client := adminClient(manager).WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := client.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}

	output := logs.String()
	for _, want := range []string{"admin response", "action=status", "socket", status.Socket} {
		if !strings.Contains(output, want) {
			t.Errorf("debug log missing %q:\n%s", want, output)
		}
	}
}

func TestAdminClientQuietWithoutDebug(t *testing.T) {
	t.Parallel()

	manager := startManager(t)
	var logs bytes.Buffer
	client := adminClient(manager).WithLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelInfo})))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := client.Status(ctx); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if logs.Len() != 0 {
		t.Errorf("info-level client logged:\n%s", logs.String())
	}
}
