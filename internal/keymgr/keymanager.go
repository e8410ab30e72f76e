// Package keymgr implements the process-wide QueueKeyManager: a permanent
// name<->key bijection used everywhere a queue needs an opaque handle
// instead of a string comparison on the hot path.
package keymgr

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/messixukejia/loongcollector/internal/model"
)

// Manager mints model.QueueKey values for names and never forgets the
// mapping once assigned: a key is permanent for the manager's lifetime.
// Keys are derived by hashing the name with xxhash so two
// processes configured identically mint the same key deterministically,
// with an in-memory collision check so a genuine hash collision still
// resolves to two distinct keys rather than silently aliasing two queues.
type Manager struct {
	mu       sync.RWMutex
	nameToID map[string]model.QueueKey
	idToName map[model.QueueKey]string
}

// New returns an empty key manager.
func New() *Manager {
	return &Manager{
		nameToID: make(map[string]model.QueueKey),
		idToName: make(map[model.QueueKey]string),
	}
}

// GetOrCreateKey returns the existing key for name, minting one if this is
// the first time name has been seen.
func (m *Manager) GetOrCreateKey(name string) model.QueueKey {
	m.mu.RLock()
	if k, ok := m.nameToID[name]; ok {
		m.mu.RUnlock()
		return k
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.nameToID[name]; ok {
		return k
	}

	k := hashName(name)
	for {
		existing, taken := m.idToName[k]
		if !taken || existing == name {
			break
		}
		// Genuine collision between two distinct names: perturb and retry.
		k = model.QueueKey(xxhash.Sum64String(fmt.Sprintf("%s\x00%d", name, uint64(k))))
	}
	m.nameToID[name] = k
	m.idToName[k] = name
	return k
}

// GetName resolves a previously minted key back to its name.
func (m *Manager) GetName(key model.QueueKey) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name, ok := m.idToName[key]
	return name, ok
}

// Has reports whether name has already been assigned a key, without
// minting one.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nameToID[name]
	return ok
}

func hashName(name string) model.QueueKey {
	k := model.QueueKey(xxhash.Sum64String(name))
	if k == model.InvalidQueueKey {
		k = model.QueueKey(1)
	}
	return k
}
