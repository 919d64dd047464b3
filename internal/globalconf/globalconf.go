// Package globalconf holds a process-wide configuration override string that
// some backends inject into every external tool invocation (the LVM backend
// passes it as --config=<value>).
//
// The store is a single mutable string behind a mutex. The lock discipline
// matters more than the data: a config-dependent invocation holds the lock
// from reading the value until the external command has finished, so no
// invocation ever runs with a half-updated configuration and configuration
// changes never land mid-flight. The cost is that config-using invocations
// from one backend serialize against each other; that trade-off is the
// documented contract.
package globalconf

import "sync"

// Store is a mutex-guarded configuration string. The zero value is unset
// and ready to use, but callers normally share one instance created by New.
type Store struct {
	mu    sync.Mutex
	value string
}

// New creates an empty Store.
func New() *Store {
	return &Store{}
}

// Set replaces the stored value. An empty string resets to "unset".
func (s *Store) Set(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = value
}

// Get returns the current value; empty string means unset.
func (s *Store) Get() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Hold invokes fn with the current value while holding the store's lock for
// the full duration of the call. Backends use this to build an argument
// vector from the value and run the external command before the lock is
// released. fn must not call back into the Store.
func (s *Store) Hold(fn func(value string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.value)
}
