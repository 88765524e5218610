// Package aliasmap implements the bidirectional alias/NodeID registry
// shared by every component of an interface: arbiter, message builder, and
// monitor all resolve through the same AliasMap instance.
package aliasmap

import (
	"sync"

	"github.com/edgeflow/lccstack/internal/canframe"
	"github.com/edgeflow/lccstack/internal/nodeid"
	"go.uber.org/zap"
)

// Watcher is notified once, in insertion order, for every successful
// insert. Watchers registered before an insertion observe it; watchers
// registered afterward do not observe past insertions.
type Watcher func(alias nodeid.Alias, nid nodeid.NodeID)

// AliasMap is a bijective alias<->NodeID registry. A single mutex guards
// both directions; watcher dispatch always happens after the mutex is
// released so a slow watcher cannot stall insert/remove/lookup.
type AliasMap struct {
	log *zap.Logger

	mu       sync.Mutex
	nidByA   map[nodeid.Alias]nodeid.NodeID
	aliasByN map[nodeid.NodeID]nodeid.Alias
	watchers []Watcher
}

// New constructs an empty AliasMap.
func New(log *zap.Logger) *AliasMap {
	if log == nil {
		log = zap.NewNop()
	}
	return &AliasMap{
		log:      log,
		nidByA:   make(map[nodeid.Alias]nodeid.NodeID),
		aliasByN: make(map[nodeid.NodeID]nodeid.Alias),
	}
}

// AddWatcher registers w to be called once per future insertion, in
// insertion order, alongside any previously registered watchers.
func (m *AliasMap) AddWatcher(w Watcher) {
	m.mu.Lock()
	m.watchers = append(m.watchers, w)
	m.mu.Unlock()
}

// Insert replaces any existing mapping for either alias or nid (both
// directions), then notifies all watchers outside the lock. Re-inserting
// an identical (alias, nid) pair is idempotent but still notifies
// watchers, matching a fresh AMD/VerifiedNodeID announcement on the wire.
func (m *AliasMap) Insert(alias nodeid.Alias, nid nodeid.NodeID) {
	m.mu.Lock()
	if oldNID, ok := m.nidByA[alias]; ok {
		delete(m.aliasByN, oldNID)
	}
	if oldAlias, ok := m.aliasByN[nid]; ok {
		delete(m.nidByA, oldAlias)
	}
	m.nidByA[alias] = nid
	m.aliasByN[nid] = alias
	watchers := append([]Watcher(nil), m.watchers...)
	m.mu.Unlock()

	for _, w := range watchers {
		w(alias, nid)
	}
}

// Remove drops the mapping for alias. A no-op if alias is unknown.
func (m *AliasMap) Remove(alias nodeid.Alias) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if nid, ok := m.nidByA[alias]; ok {
		delete(m.nidByA, alias)
		delete(m.aliasByN, nid)
	}
}

// GetNodeID returns the NodeID mapped to alias, or the all-zero sentinel
// if alias is unknown.
func (m *AliasMap) GetNodeID(alias nodeid.Alias) nodeid.NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nidByA[alias]
}

// GetAlias returns the alias mapped to nid, or nodeid.NoAlias if nid is
// unknown. This is the idiomatic Go rendering of the sentinel contract:
// a dedicated out-of-range value rather than a signed -1, since Alias is
// unsigned on the wire.
func (m *AliasMap) GetAlias(nid nodeid.NodeID) nodeid.Alias {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.aliasByN[nid]; ok {
		return a
	}
	return nodeid.NoAlias
}

// Entry is one alias/NodeID pairing, as exposed by Snapshot.
type Entry struct {
	Alias nodeid.Alias
	NodeID nodeid.NodeID
}

// Snapshot returns a point-in-time copy of every known alias/NodeID
// pairing. Intended for read-mostly introspection (the monitor's alias
// endpoint) — it never holds the mutex longer than the copy itself, so
// it cannot stall interface dispatch.
func (m *AliasMap) Snapshot() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Entry, 0, len(m.nidByA))
	for alias, nid := range m.nidByA {
		entries = append(entries, Entry{Alias: alias, NodeID: nid})
	}
	return entries
}

// ProcessFrame inspects f and updates the registry: InitializationComplete,
// VerifiedNodeID, and AliasMapDefinition frames insert a mapping from the
// frame's source alias to the NodeID carried in the payload; AliasMapReset
// removes the source alias's mapping. All other frames are ignored.
func (m *AliasMap) ProcessFrame(f canframe.Frame) {
	switch {
	case f.IsInitializationComplete(), f.IsVerifiedNID(), f.IsAliasMapDefinition():
		nid, err := nodeid.FromBytes(f.Payload())
		if err != nil {
			m.log.Warn("aliasmap: dropping frame with malformed NodeID payload",
				zap.Uint32("header", f.Header), zap.Error(err))
			return
		}
		m.Insert(f.SourceAlias(), nid)
	case f.IsAliasMapReset():
		m.Remove(f.SourceAlias())
	}
}
