package settings

import (
	"sync"
	"sync/atomic"
)

// Store is the process-wide settings holder. Reads are lock-free snapshots
// via atomic.Value; writes are serialized, re-validated, and persisted
// atomically before the in-memory value is swapped.
type Store struct {
	path    string
	writeMu sync.Mutex
	current atomic.Value // UserSettings
}

// Open loads settings from path (defaults are written on first run) and
// returns a store bound to that file.
func Open(path string) (*Store, error) {
	s, err := load(path)
	if err != nil {
		return nil, err
	}
	st := &Store{path: path}
	st.current.Store(s)
	return st, nil
}

// Current returns a snapshot. Callers get a value copy, never a shared
// mutable reference.
func (st *Store) Current() UserSettings {
	return st.current.Load().(UserSettings)
}

// Update validates, persists, and swaps the whole settings value. On any
// error the previous value stays in effect both on disk and in memory.
func (st *Store) Update(s UserSettings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	st.writeMu.Lock()
	defer st.writeMu.Unlock()
	if err := persist(st.path, s); err != nil {
		return err
	}
	st.current.Store(s)
	return nil
}

// Path returns the backing file location.
func (st *Store) Path() string { return st.path }
