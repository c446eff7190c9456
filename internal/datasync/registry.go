package datasync

import (
	"sync"

	"github.com/dmitrijs2005/peerlink/internal/store"
)

type subKind int

const (
	subDocument subKind = iota
	subQuery
)

// subEntry is one logical live subscription. It outlives the backend handle
// that currently serves it: on demotion the remote handle is discarded and
// a local one is established under the same entry, so the caller's
// unsubscribe handle keeps working without re-subscribing.
type subEntry struct {
	id         int64
	kind       subKind
	collection string
	docID      string
	filter     store.Filter
	docFn      store.DocumentHandler
	queryFn    store.QueryHandler

	mu     sync.Mutex
	cancel store.CancelFunc
	closed bool
}

// registry tracks every open subscription so the facade can re-issue all of
// them against the local store when the controller demotes mid-session.
type registry struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*subEntry
}

func newRegistry() *registry {
	return &registry{entries: make(map[int64]*subEntry)}
}

func (r *registry) add(e *subEntry) {
	r.mu.Lock()
	r.nextID++
	e.id = r.nextID
	r.entries[e.id] = e
	r.mu.Unlock()
}

func (r *registry) remove(id int64) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

func (r *registry) snapshot() []*subEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*subEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}
