// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"fmt"
	"io"
	"time"
	"unsafe"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/facility"
	"github.com/bureau-foundation/upty/upty"
)

// runProbe allocates an instance, sets and reads back a window size
// through the slave, and passes a line from master to slave.
func runProbe(g globals, args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("upty probe", pflag.ContinueOnError)
	rows := flagSet.Uint16("rows", 24, "window rows to set")
	columns := flagSet.Uint16("columns", 80, "window columns to set")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(g)
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	master, err := client.PosixOpenpt(unix.O_RDWR | unix.O_NOCTTY)
	if err != nil {
		return fmt.Errorf("allocating virtual pty via %s: %w", client.Endpoint(), err)
	}
	defer client.Close(master)

	name, err := client.Ptsname(master)
	if err != nil {
		return fmt.Errorf("ptsname: %w", err)
	}
	var number uint32
	if _, err := client.Ioctl(master, unix.TIOCGPTN, facility.PointerArgument(unsafe.Pointer(&number))); err != nil {
		return fmt.Errorf("TIOCGPTN: %w", err)
	}
	fmt.Fprintf(stdout, "instance %d (%s) via %s\n", number, name, client.Endpoint())

	slave, err := client.Ioctl(master, unix.TIOCGPTPEER, facility.ValueArgument(unix.O_RDWR|unix.O_NOCTTY))
	if err != nil {
		return fmt.Errorf("opening slave: %w", err)
	}
	defer client.Close(slave)

	set := unix.Winsize{Row: *rows, Col: *columns}
	if _, err := client.Ioctl(master, unix.TIOCSWINSZ, facility.PointerArgument(unsafe.Pointer(&set))); err != nil {
		return fmt.Errorf("TIOCSWINSZ: %w (errno %v)", err, upty.Errno(err))
	}
	var got unix.Winsize
	if _, err := client.Ioctl(slave, unix.TIOCGWINSZ, facility.PointerArgument(unsafe.Pointer(&got))); err != nil {
		return fmt.Errorf("TIOCGWINSZ: %w (errno %v)", err, upty.Errno(err))
	}
	if got.Row != set.Row || got.Col != set.Col {
		return fmt.Errorf("window size read back as %dx%d, set %dx%d", got.Col, got.Row, set.Col, set.Row)
	}
	fmt.Fprintf(stdout, "window size %dx%d round trip ok\n", got.Col, got.Row)

	if _, err := unix.Write(master, []byte("upty probe\n")); err != nil {
		return fmt.Errorf("writing master: %w", err)
	}
	if err := expectLine(slave, []byte("upty probe"), 5*time.Second); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "master to slave data ok")
	return nil
}

// expectLine reads fd until want arrives or timeout passes.
func expectLine(fd int, want []byte, timeout time.Duration) error {
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &unix.Timeval{Sec: int64(timeout / time.Second)}); err != nil {
		return fmt.Errorf("setting read timeout: %w", err)
	}
	var accumulated []byte
	buffer := make([]byte, 256)
	for !bytes.Contains(accumulated, want) {
		n, err := unix.Read(fd, buffer)
		if err != nil {
			return fmt.Errorf("reading slave: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("slave closed before %q arrived", want)
		}
		accumulated = append(accumulated, buffer[:n]...)
	}
	return nil
}
