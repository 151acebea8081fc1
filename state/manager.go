package state

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/rlp"

	"ryft/storage"
)

// ErrReadOnly is returned when a write is attempted through a read-only view.
var ErrReadOnly = errors.New("state: read-only view")

type stagedValue struct {
	data    []byte
	deleted bool
}

// Manager is a unit of work over the ledger database. Writes are staged in
// memory and only reach the database when the owning Store commits the unit.
// Reads observe the unit's own staged writes first.
type Manager struct {
	db       storage.Database
	staged   map[string]stagedValue
	readOnly bool
}

func newManager(db storage.Database, readOnly bool) *Manager {
	return &Manager{
		db:       db,
		staged:   make(map[string]stagedValue),
		readOnly: readOnly,
	}
}

// KVPut stores the RLP encoding of value under key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if m.readOnly {
		return ErrReadOnly
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	m.staged[string(key)] = stagedValue{data: encoded}
	return nil
}

// KVGet retrieves the value stored under the supplied key and decodes it into
// the provided destination. The boolean return value indicates whether the key
// existed in state.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, ok, err := m.raw(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key from state. Deleting a missing key is not an error.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	if m.readOnly {
		return ErrReadOnly
	}
	m.staged[string(key)] = stagedValue{deleted: true}
	return nil
}

// Dirty reports whether the unit has staged writes.
func (m *Manager) Dirty() bool {
	return len(m.staged) > 0
}

func (m *Manager) raw(key []byte) ([]byte, bool, error) {
	if staged, ok := m.staged[string(key)]; ok {
		if staged.deleted {
			return nil, false, nil
		}
		return staged.data, true, nil
	}
	data, err := m.db.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if len(data) == 0 {
		return nil, false, nil
	}
	return data, true, nil
}

// batch renders the staged writes in key order so commits are deterministic.
func (m *Manager) batch() *storage.Batch {
	keys := make([]string, 0, len(m.staged))
	for key := range m.staged {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := new(storage.Batch)
	for _, key := range keys {
		staged := m.staged[key]
		if staged.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), staged.data)
	}
	return batch
}
