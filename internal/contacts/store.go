package contacts

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/teemow/outreach/internal/atomicfile"
)

// Store persists the pending and responded collections of one campaign.
// All writes go through the Store so that they are serialized.
type Store struct {
	pendingPath   string
	respondedPath string

	mu sync.Mutex
}

// NewStore returns a Store for the given collection files.
func NewStore(pendingPath, respondedPath string) *Store {
	return &Store{
		pendingPath:   pendingPath,
		respondedPath: respondedPath,
	}
}

// PendingPath returns the location of the pending collection.
func (s *Store) PendingPath() string { return s.pendingPath }

// RespondedPath returns the location of the responded collection.
func (s *Store) RespondedPath() string { return s.respondedPath }

// LoadPending reads the pending collection.
func (s *Store) LoadPending() (*Set, error) {
	return LoadFile(s.pendingPath)
}

// LoadResponded reads the responded collection. A missing file is created
// with the default header and yields an empty Set.
func (s *Store) LoadResponded() (*Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadRespondedLocked()
}

func (s *Store) loadRespondedLocked() (*Set, error) {
	info, err := os.Stat(s.respondedPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		empty := NewSet(nil)
		if err := s.writeLocked("create", s.respondedPath, empty); err != nil {
			return nil, err
		}
		return empty, nil
	case err != nil:
		return nil, err
	case info.Size() == 0:
		return NewSet(nil), nil
	}
	return LoadFile(s.respondedPath)
}

// AppendResponded adds delta to the responded collection. Contacts already
// responded are overwritten rather than duplicated, so appending the same
// delta twice leaves the file as after the first append.
func (s *Store) AppendResponded(delta []Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendRespondedLocked(delta)
}

func (s *Store) appendRespondedLocked(delta []Contact) error {
	if len(delta) == 0 {
		return nil
	}
	current, err := s.loadRespondedLocked()
	if err != nil {
		return &PersistenceError{Op: "append", Path: s.respondedPath, Err: err}
	}

	merged := NewSet(mergeHeader(current.header, delta))
	for _, c := range current.contacts {
		merged.add(c)
	}
	for _, c := range delta {
		merged.upsert(c)
	}
	return s.writeLocked("append", s.respondedPath, merged)
}

// PersistPending replaces the pending collection with pending.
func (s *Store) PersistPending(pending *Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked("persist", s.pendingPath, pending)
}

// ClearResponded resets the responded collection to a header-only file.
// The pending collection is left untouched.
func (s *Store) ClearResponded() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked("clear", s.respondedPath, NewSet(nil))
}

// Commit durably records a migration: delta is appended to the responded
// collection before pending is written. On error nothing after the failed step
// is written and the caller should retry with the same arguments.
func (s *Store) Commit(delta []Contact, pending *Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.appendRespondedLocked(delta); err != nil {
		return err
	}
	return s.writeLocked("persist", s.pendingPath, pending)
}

func (s *Store) writeLocked(op, path string, set *Set) error {
	err := atomicfile.WriteFile(path, 0o644, func(w io.Writer) error {
		return Write(w, set)
	})
	if err != nil {
		return &PersistenceError{Op: op, Path: path, Err: err}
	}
	return nil
}
