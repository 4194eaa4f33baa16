// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package identity

import "sync"

// Store maps OS descriptors to identities. Implementations must be safe
// for concurrent use: a duplicate on one thread racing a close on
// another must never leave an entry half-written. Last writer wins.
type Store interface {
	// Get returns the identity registered for fd, if any.
	Get(fd int) (Identity, bool)

	// Set registers id for fd, replacing any previous entry.
	Set(fd int, id Identity)

	// Clear removes fd's entry. Clearing a descriptor that never held
	// an identity is a no-op.
	Clear(fd int)
}

// MemoryStore is a [Store] backed by an in-process map.
type MemoryStore struct {
	mutex   sync.RWMutex
	entries map[int]Identity
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int]Identity)}
}

// Get implements [Store].
func (s *MemoryStore) Get(fd int) (Identity, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	id, ok := s.entries[fd]
	return id, ok
}

// Set implements [Store].
func (s *MemoryStore) Set(fd int, id Identity) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.entries[fd] = id
}

// Clear implements [Store].
func (s *MemoryStore) Clear(fd int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.entries, fd)
}

// Len returns the number of descriptors holding an identity.
func (s *MemoryStore) Len() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.entries)
}
