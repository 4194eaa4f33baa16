// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/bureau-foundation/upty/lib/codec"
)

const adminDialTimeout = 5 * time.Second

// adminResponseTimeout covers the server's read and write timeouts.
const adminResponseTimeout = 45 * time.Second

const maxAdminResponseSize = 1024 * 1024

// AdminError is returned by [AdminClient.Call] when the manager
// answers ok=false.
type AdminError struct {
	Action  string
	Message string
}

func (e *AdminError) Error() string {
	return fmt.Sprintf("admin error on %q: %s", e.Action, e.Message)
}

// AdminClient queries a manager's admin socket. Each call uses its own
// connection.
type AdminClient struct {
	socketPath string
	logger     *slog.Logger
}

// NewAdminClient returns a client for the admin socket at socketPath.
func NewAdminClient(socketPath string) *AdminClient {
	return &AdminClient{socketPath: socketPath, logger: slog.New(slog.DiscardHandler)}
}

// WithLogger sets the logger that receives each response payload in
// CBOR diagnostic notation at debug level, and returns c.
func (c *AdminClient) WithLogger(logger *slog.Logger) *AdminClient {
	c.logger = logger
	return c
}

// Call sends action with optional extra fields and decodes the
// response data into result when both are non-nil. A manager-side
// failure is returned as *AdminError; transport failures are plain
// errors.
func (c *AdminClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	response, err := c.send(ctx, request)
	if err != nil {
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	if len(response.Data) > 0 && c.logger.Enabled(ctx, slog.LevelDebug) {
		if diagnostic, err := codec.Diagnose(response.Data); err == nil {
			c.logger.Debug("admin response", "action", action, "data", diagnostic)
		}
	}
	if !response.OK {
		return &AdminError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// Status fetches the manager status.
func (c *AdminClient) Status(ctx context.Context) (Status, error) {
	var status Status
	err := c.Call(ctx, ActionStatus, nil, &status)
	return status, err
}

// ListInstances fetches the live instances.
func (c *AdminClient) ListInstances(ctx context.Context) ([]InstanceInfo, error) {
	var instances []InstanceInfo
	err := c.Call(ctx, ActionListInstances, nil, &instances)
	return instances, err
}

func (c *AdminClient) send(ctx context.Context, request any) (*Response, error) {
	dialer := net.Dialer{Timeout: adminDialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	deadline := time.Now().Add(adminResponseTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	conn.SetReadDeadline(deadline)
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxAdminResponseSize)).Decode(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return &response, nil
}
