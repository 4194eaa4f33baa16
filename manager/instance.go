// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package manager

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
	"golang.org/x/sys/unix"

	"github.com/bureau-foundation/upty/lib/identity"
)

// instance is one virtual PTY backed by a host PTY pair. The manager
// holds the slave open for the instance's lifetime so the master never
// reads EIO merely because no front is attached.
type instance struct {
	number  uint32
	master  *os.File
	slave   *os.File
	created time.Time
	shell   *exec.Cmd

	mutex  sync.Mutex
	fronts int
}

// openInstance allocates a host PTY pair created at created.
func openInstance(created time.Time) (*instance, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("allocating host pty: %w", err)
	}
	number, err := devptsIndex(slave.Name())
	if err == nil {
		master, err = pollable(master)
	}
	if err != nil {
		master.Close()
		slave.Close()
		return nil, err
	}
	return &instance{
		number:  number,
		master:  master,
		slave:   slave,
		created: created,
	}, nil
}

// pollable replaces file with a non-blocking duplicate registered with
// the runtime poller and closes the original. pty.Open leaves the master
// in blocking mode, where Close cannot interrupt a pending Read; the
// held slave means that Read would never see EIO either.
func pollable(file *os.File) (*os.File, error) {
	rawConn, err := file.SyscallConn()
	if err != nil {
		return file, err
	}
	duplicate := -1
	controlErr := rawConn.Control(func(fd uintptr) {
		duplicate, err = unix.FcntlInt(fd, unix.F_DUPFD_CLOEXEC, 0)
	})
	if controlErr != nil {
		return file, controlErr
	}
	if err != nil {
		return file, fmt.Errorf("duplicating %s: %w", file.Name(), err)
	}
	if err := unix.SetNonblock(duplicate, true); err != nil {
		unix.Close(duplicate)
		return file, fmt.Errorf("setting %s non-blocking: %w", file.Name(), err)
	}
	name := file.Name()
	file.Close()
	return os.NewFile(uintptr(duplicate), name), nil
}

// devptsIndex extracts N from /dev/pts/N.
func devptsIndex(name string) (uint32, error) {
	index, err := strconv.ParseUint(strings.TrimPrefix(name, "/dev/pts/"), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unexpected pty slave name %q", name)
	}
	return uint32(index), nil
}

// file returns the host descriptor serving half.
func (i *instance) file(half identity.Half) *os.File {
	if half == identity.Slave {
		return i.slave
	}
	return i.master
}

// openFront opens a new descriptor on the slave device for a front
// connection.
func (i *instance) openFront() (*os.File, error) {
	front, err := os.OpenFile(i.slave.Name(), os.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", i.slave.Name(), err)
	}
	i.mutex.Lock()
	i.fronts++
	i.mutex.Unlock()
	return front, nil
}

func (i *instance) closeFront() {
	i.mutex.Lock()
	i.fronts--
	i.mutex.Unlock()
}

// startShell runs command on the slave as a session leader with the
// slave as its controlling terminal.
func (i *instance) startShell(command string) error {
	shell := exec.Command(command)
	shell.Stdin = i.slave
	shell.Stdout = i.slave
	shell.Stderr = i.slave
	shell.Env = append(os.Environ(), "TERM=xterm-256color")
	shell.SysProcAttr = &syscall.SysProcAttr{Setsid: true, Setctty: true}
	if err := shell.Start(); err != nil {
		return fmt.Errorf("starting %s on instance %d: %w", command, i.number, err)
	}
	i.shell = shell
	go shell.Wait()
	return nil
}

// close releases the host PTY and stops the shell, if any.
func (i *instance) close() {
	if i.shell != nil && i.shell.Process != nil {
		i.shell.Process.Signal(syscall.SIGHUP)
	}
	i.master.Close()
	i.slave.Close()
}

// InstanceInfo describes a live instance in admin responses.
type InstanceInfo struct {
	InstanceNumber uint32    `cbor:"instance_number" json:"instance_number"`
	SlavePath      string    `cbor:"slave_path" json:"slave_path"`
	Fronts         int       `cbor:"fronts" json:"fronts"`
	Created        time.Time `cbor:"created" json:"created"`
	ShellPID       int       `cbor:"shell_pid,omitempty" json:"shell_pid,omitempty"`
}

func (i *instance) info() InstanceInfo {
	i.mutex.Lock()
	defer i.mutex.Unlock()
	info := InstanceInfo{
		InstanceNumber: i.number,
		SlavePath:      i.slave.Name(),
		Fronts:         i.fronts,
		Created:        i.created,
	}
	if i.shell != nil && i.shell.Process != nil {
		info.ShellPID = i.shell.Process.Pid
	}
	return info
}
