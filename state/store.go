package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ryft/storage"
)

var errNilStore = errors.New("state: store not configured")

// Store hands out units of work over a database. Every Update is all or
// nothing: the staged writes are committed in one atomic batch when the
// callback succeeds and dropped otherwise. Updates are serialised so at most
// one writer observes and mutates the ledger at a time.
type Store struct {
	db storage.Database
	mu sync.Mutex
}

// NewStore wraps db. The caller retains ownership of db and must close it.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

// Update runs fn inside a fresh unit of work and commits its writes when fn
// returns nil.
func (s *Store) Update(ctx context.Context, fn func(*Manager) error) error {
	if s == nil || s.db == nil {
		return errNilStore
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	unit := newManager(s.db, false)
	if err := fn(unit); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !unit.Dirty() {
		return nil
	}
	if err := s.db.Write(unit.batch()); err != nil {
		return fmt.Errorf("state: commit: %w", err)
	}
	return nil
}

// View runs fn against committed state. Writes attempted inside fn fail with
// ErrReadOnly.
func (s *Store) View(ctx context.Context, fn func(*Manager) error) error {
	if s == nil || s.db == nil {
		return errNilStore
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(newManager(s.db, true))
}
