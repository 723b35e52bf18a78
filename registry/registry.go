// Package registry is the process-wide type manager: a name/token-keyed
// store of meta.TypeRecords, written once per type at registration and
// read lock-free afterwards. A single reader-writer lock guards
// registration and the mutex-path queries, and a copy-on-write atomic
// snapshot serves every read that lands on an already-published name
// without ever taking the lock.
package registry

import (
	"iter"
	"sync"
	"sync/atomic"

	"github.com/zond/goflect/errs"
	"github.com/zond/goflect/meta"
)

// Manager is a process-wide (or test-private) type store. The zero value
// is not usable; construct one with New.
type Manager struct {
	mu            sync.RWMutex
	byName        map[string]*meta.TypeRecord
	byToken       map[meta.ID]*meta.TypeRecord
	snapshot      atomic.Pointer[map[string]*meta.TypeRecord]
	tokenSnapshot atomic.Pointer[map[meta.ID]*meta.TypeRecord]
}

// New returns an empty Manager. Production code normally shares Default;
// tests construct their own Manager for isolation.
func New() *Manager {
	m := &Manager{
		byName:  map[string]*meta.TypeRecord{},
		byToken: map[meta.ID]*meta.TypeRecord{},
	}
	empty := map[string]*meta.TypeRecord{}
	m.snapshot.Store(&empty)
	emptyByToken := map[meta.ID]*meta.TypeRecord{}
	m.tokenSnapshot.Store(&emptyByToken)
	return m
}

// Default is the process-wide Manager most callers register against and
// query. Tests construct their own Manager instead for isolation.
var Default = New()

// Register installs the record built by seed under name if name is not
// already present; otherwise it returns the existing record unchanged.
// seed is only invoked when name is not yet registered, so construction
// work (computing size, destructor, default factory) only happens once
// per type and registration is idempotent.
func (m *Manager) Register(name string, seed func() *meta.TypeRecord) (rec *meta.TypeRecord, added bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.byName[name]; ok {
		return existing, false
	}
	rec = seed()
	m.byName[name] = rec
	m.byToken[rec.Token] = rec
	m.publishLocked()
	return rec, true
}

// publishLocked must be called with mu held for writing. It copies the
// current name and token indexes into fresh maps and atomically swaps them
// in, so concurrent readers either see the maps from before this
// registration or the maps including it, never a partially-built map.
func (m *Manager) publishLocked() {
	next := make(map[string]*meta.TypeRecord, len(m.byName))
	for k, v := range m.byName {
		next[k] = v
	}
	m.snapshot.Store(&next)

	nextByToken := make(map[meta.ID]*meta.TypeRecord, len(m.byToken))
	for k, v := range m.byToken {
		nextByToken[k] = v
	}
	m.tokenSnapshot.Store(&nextByToken)
}

// ByName looks up a TypeRecord by its registered name. The first stop is
// the lock-free atomic snapshot; only a miss there (meaning: never
// registered, or registered concurrently with this read and not yet
// published) falls through to the mutex-guarded map.
func (m *Manager) ByName(name string) (*meta.TypeRecord, bool) {
	if snap := m.snapshot.Load(); snap != nil {
		if rec, ok := (*snap)[name]; ok {
			return rec, true
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byName[name]
	return rec, ok
}

// ByNameOrErr is ByName with the not-found case wrapped as
// errs.TypeNotRegistered, for callers on the throwing path.
func (m *Manager) ByNameOrErr(name string) (*meta.TypeRecord, error) {
	rec, ok := m.ByName(name)
	if !ok {
		return nil, errs.NewTypeNotRegistered(name)
	}
	return rec, nil
}

// ByToken looks up a TypeRecord by its compile-time identity (reflect.Type).
// Like ByName, the first stop is the lock-free atomic snapshot; this is the
// path GetType[T] rides on, so resolving a type handle by its static Go type
// never takes a lock once the type has been published.
func (m *Manager) ByToken(token meta.ID) (*meta.TypeRecord, bool) {
	if snap := m.tokenSnapshot.Load(); snap != nil {
		if rec, ok := (*snap)[token]; ok {
			return rec, true
		}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byToken[token]
	return rec, ok
}

// ByTokenOrErr is ByToken with the not-found case wrapped as
// errs.TypeNotRegistered.
func (m *Manager) ByTokenOrErr(token meta.ID) (*meta.TypeRecord, error) {
	rec, ok := m.ByToken(token)
	if !ok {
		return nil, errs.NewTypeNotRegistered(meta.TypeName(token))
	}
	return rec, nil
}

// All iterates every registered TypeRecord in unspecified order.
func (m *Manager) All() iter.Seq[*meta.TypeRecord] {
	return func(yield func(*meta.TypeRecord) bool) {
		m.mu.RLock()
		recs := make([]*meta.TypeRecord, 0, len(m.byName))
		for _, rec := range m.byName {
			recs = append(recs, rec)
		}
		m.mu.RUnlock()
		for _, rec := range recs {
			if !yield(rec) {
				return
			}
		}
	}
}

// Len reports how many types are currently registered.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byName)
}
