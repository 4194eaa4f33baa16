// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"unsafe"

	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/bureau-foundation/upty/lib/facility"
	"github.com/bureau-foundation/upty/upty"
)

// runAttach allocates an instance and connects the local terminal to
// its master until the instance's slave side goes away. The manager
// runs its configured shell on the slave.
func runAttach(g globals, args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("upty attach", pflag.ContinueOnError)
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

	stdinFD := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFD) {
		return errors.New("attach requires a terminal on stdin")
	}

	master, err := client.PosixOpenpt(unix.O_RDWR | unix.O_NOCTTY)
	if err != nil {
		return fmt.Errorf("allocating virtual pty via %s: %w", client.Endpoint(), err)
	}
	id, _ := client.Identity(master)
	fmt.Fprintf(stdout, "attached to instance %d\r\n", id.InstanceNumber)

	if err := syncWindowSize(client, master, stdinFD); err != nil {
		client.Close(master)
		return err
	}

	state, err := term.MakeRaw(stdinFD)
	if err != nil {
		client.Close(master)
		return fmt.Errorf("entering raw mode: %w", err)
	}
	defer term.Restore(stdinFD, state)

	stream, err := masterStream(master)
	if err != nil {
		client.Close(master)
		return err
	}

	resize := make(chan os.Signal, 1)
	signal.Notify(resize, syscall.SIGWINCH)
	go func() {
		for range resize {
			syncWindowSize(client, master, stdinFD)
		}
	}()

	go io.Copy(stream, os.Stdin)
	_, copyErr := io.Copy(stdout, stream)

	signal.Stop(resize)
	stream.Close()
	if err := client.Close(master); err != nil {
		return err
	}
	if copyErr != nil && !errors.Is(copyErr, os.ErrClosed) {
		return copyErr
	}
	return nil
}

// masterStream wraps a private duplicate of master for the relay
// copies. Closing the stream leaves master itself open, so the client
// closes it exactly once.
func masterStream(master int) (*os.File, error) {
	duplicate, err := unix.FcntlInt(uintptr(master), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("duplicating master %d: %w", master, err)
	}
	return os.NewFile(uintptr(duplicate), "upty-master"), nil
}

// syncWindowSize copies the local terminal's size to master.
func syncWindowSize(client *upty.Client, master, localFD int) error {
	columns, rows, err := term.GetSize(localFD)
	if err != nil {
		return fmt.Errorf("reading terminal size: %w", err)
	}
	size := unix.Winsize{Row: uint16(rows), Col: uint16(columns)}
	if _, err := client.Ioctl(master, unix.TIOCSWINSZ, facility.PointerArgument(unsafe.Pointer(&size))); err != nil {
		return fmt.Errorf("setting window size: %w", err)
	}
	return nil
}
