// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import (
	"log/slog"
	"os"
	"strconv"
	"sync"
)

// EnvironmentPrefix is the environment variable prefix used by
// [EnvironmentStore]. The descriptor number is appended, so fd 5 is
// stored under "__UPTY_NUM_5".
const EnvironmentPrefix = "__UPTY_NUM_"

// EnvironmentStore is a [Store] that keeps each entry in a process
// environment variable holding the encoded identity. Because the
// environment is copied into exec'd programs, a child that inherits a
// virtual PTY descriptor also inherits its identity.
//
// os.Setenv and os.Getenv are individually synchronized; the store's
// own mutex serializes whole operations so that concurrent Set and
// Clear on the same descriptor cannot interleave.
type EnvironmentStore struct {
	mutex  sync.Mutex
	logger *slog.Logger
}

// NewEnvironmentStore returns a store over the current process
// environment. Malformed values found in the environment are logged
// to logger and treated as absent. A nil logger discards.
func NewEnvironmentStore(logger *slog.Logger) *EnvironmentStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &EnvironmentStore{logger: logger}
}

func environmentKey(fd int) string {
	return EnvironmentPrefix + strconv.Itoa(fd)
}

// Get implements [Store].
func (s *EnvironmentStore) Get(fd int) (Identity, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	value, present := os.LookupEnv(environmentKey(fd))
	if !present {
		return Identity{}, false
	}
	encoded, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		s.logger.Warn("ignoring malformed identity in environment",
			"fd", fd, "value", value, "error", err)
		return Identity{}, false
	}
	id, ok, err := Decode(encoded)
	if err != nil {
		s.logger.Warn("ignoring malformed identity in environment",
			"fd", fd, "value", value, "error", err)
		return Identity{}, false
	}
	return id, ok
}

// Set implements [Store].
func (s *EnvironmentStore) Set(fd int, id Identity) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := environmentKey(fd)
	if err := os.Setenv(key, strconv.FormatInt(id.Encode(), 10)); err != nil {
		s.logger.Error("recording identity in environment failed",
			"fd", fd, "identity", id.String(), "error", err)
	}
}

// Clear implements [Store].
func (s *EnvironmentStore) Clear(fd int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	key := environmentKey(fd)
	if err := os.Unsetenv(key); err != nil {
		s.logger.Error("clearing identity from environment failed",
			"fd", fd, "error", err)
	}
}
