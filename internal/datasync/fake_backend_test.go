package datasync

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/models"
	"github.com/dmitrijs2005/peerlink/internal/store"
)

// fakeRemote is an in-memory store.Backend standing in for the remote
// document store. It behaves normally until Fail is called, after which
// every operation reports a transport failure.
type fakeRemote struct {
	mu        sync.Mutex
	failed    bool
	data      map[string]map[string]models.Record
	docSubs   []*fakeDocSub
	querySubs []*fakeQuerySub
	cancelled int
}

type fakeDocSub struct {
	collection string
	id         string
	fn         store.DocumentHandler
	active     bool
}

type fakeQuerySub struct {
	collection string
	filter     store.Filter
	fn         store.QueryHandler
	active     bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{data: make(map[string]map[string]models.Record)}
}

// Fail makes every subsequent operation report a transport failure.
func (r *fakeRemote) Fail() {
	r.mu.Lock()
	r.failed = true
	r.mu.Unlock()
}

func (r *fakeRemote) Cancelled() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancelled
}

func (r *fakeRemote) errIfFailed() error {
	if r.failed {
		return fmt.Errorf("fake remote: connection lost: %w", common.ErrorRemoteUnavailable)
	}
	return nil
}

func (r *fakeRemote) Get(ctx context.Context, collection, id string) (models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errIfFailed(); err != nil {
		return nil, err
	}
	rec, ok := r.data[collection][id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return rec, nil
}

func (r *fakeRemote) Query(ctx context.Context, collection string, filter store.Filter) ([]models.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errIfFailed(); err != nil {
		return nil, err
	}
	return r.queryLocked(collection, filter), nil
}

func (r *fakeRemote) queryLocked(collection string, filter store.Filter) []models.Record {
	var out []models.Record
	for _, rec := range r.data[collection] {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

func (r *fakeRemote) Put(ctx context.Context, collection, id string, rec models.Record) error {
	r.mu.Lock()
	if err := r.errIfFailed(); err != nil {
		r.mu.Unlock()
		return err
	}
	if r.data[collection] == nil {
		r.data[collection] = make(map[string]models.Record)
	}
	r.data[collection][id] = rec
	r.notifyLocked(collection, id)
	r.mu.Unlock()
	return nil
}

func (r *fakeRemote) Merge(ctx context.Context, collection, id string, fields models.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errIfFailed(); err != nil {
		return err
	}
	rec, ok := r.data[collection][id]
	if !ok {
		return common.ErrorNotFound
	}
	for k, v := range fields {
		rec[k] = v
	}
	r.notifyLocked(collection, id)
	return nil
}

func (r *fakeRemote) notifyLocked(collection, id string) {
	for _, s := range r.docSubs {
		if s.active && s.collection == collection && s.id == id {
			s.fn(r.data[collection][id])
		}
	}
	for _, s := range r.querySubs {
		if s.active && s.collection == collection {
			s.fn(r.queryLocked(collection, s.filter))
		}
	}
}

func (r *fakeRemote) SubscribeDocument(ctx context.Context, collection, id string, fn store.DocumentHandler) (store.CancelFunc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errIfFailed(); err != nil {
		return nil, err
	}
	s := &fakeDocSub{collection: collection, id: id, fn: fn, active: true}
	r.docSubs = append(r.docSubs, s)
	initial := r.data[collection][id]
	go fn(initial)
	return func() {
		r.mu.Lock()
		if s.active {
			s.active = false
			r.cancelled++
		}
		r.mu.Unlock()
	}, nil
}

func (r *fakeRemote) SubscribeQuery(ctx context.Context, collection string, filter store.Filter, fn store.QueryHandler) (store.CancelFunc, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errIfFailed(); err != nil {
		return nil, err
	}
	s := &fakeQuerySub{collection: collection, filter: filter, fn: fn, active: true}
	r.querySubs = append(r.querySubs, s)
	initial := r.queryLocked(collection, filter)
	go fn(initial)
	return func() {
		r.mu.Lock()
		if s.active {
			s.active = false
			r.cancelled++
		}
		r.mu.Unlock()
	}, nil
}

func (r *fakeRemote) Close() error { return nil }
