package datasync

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/logging"
	"github.com/dmitrijs2005/peerlink/internal/store"
)

// Facade is the single public surface of the sync layer. Callers never
// learn which backend served a call: a remote failure demotes the
// controller once, the failed operation is retried against the local store,
// and every open subscription is re-established there under its existing
// unsubscribe handle.
type Facade struct {
	log    logging.Logger
	fo     *Failover
	remote store.Backend // nil when the remote store was never configured
	local  store.Backend
	reg    *registry
}

// NewFacade wires the facade to its backends and controller. remote may be
// nil (local-only session); local is mandatory. The facade registers itself
// for demotion so mid-session failover re-homes open subscriptions.
func NewFacade(remote, local store.Backend, fo *Failover, logger logging.Logger) *Facade {
	if logger == nil {
		logger = logging.Nop()
	}
	f := &Facade{
		log:    logger.With("component", "facade"),
		fo:     fo,
		remote: remote,
		local:  local,
		reg:    newRegistry(),
	}
	fo.OnDemote(f.handleDemotion)
	return f
}

// Mode exposes the controller's current mode, mainly for status display.
func (f *Facade) Mode() Mode {
	return f.fo.Mode()
}

func (f *Facade) backend() store.Backend {
	if f.fo.Mode() == ModeRemote && f.remote != nil {
		return f.remote
	}
	return f.local
}

// shouldFailover decides whether an operation error is a backend failure
// (demote and retry) or a domain outcome (surface to the caller). Absence
// is not a failure, and neither is the caller's own cancellation.
func (f *Facade) shouldFailover(b store.Backend, err error) bool {
	if b == f.local {
		return false
	}
	return errors.Is(err, common.ErrorRemoteUnavailable)
}

// run executes op against the active backend. On a remote failure it
// demotes the controller and retries against the local store, so the
// caller observes success, not the intermediate failure.
func (f *Facade) run(ctx context.Context, op func(b store.Backend) error) error {
	b := f.backend()
	err := op(b)
	if err == nil || !f.shouldFailover(b, err) {
		return err
	}
	f.fo.Demote(err)
	return op(f.local)
}

// handleDemotion re-issues every registered subscription against the local
// store and discards the remote handles. Runs inside the single winning
// Demote call.
func (f *Facade) handleDemotion(reason error) {
	entries := f.reg.snapshot()
	f.log.Info(context.Background(), "re-homing live subscriptions",
		"count", len(entries))
	for _, e := range entries {
		f.rehome(e)
	}
}

func (f *Facade) rehome(e *subEntry) {
	e.mu.Lock()
	old := e.cancel
	e.cancel = nil
	if !e.closed {
		cancel, err := f.establishOn(f.local, e)
		if err != nil {
			// local subscriptions only fail when the bus is closed, i.e.
			// during teardown
			f.log.Error(context.Background(), "failed to re-home subscription",
				"collection", e.collection, "error", err)
		} else {
			e.cancel = cancel
		}
	}
	e.mu.Unlock()

	if old != nil {
		// release the dead backend's listener resources off the demotion
		// path; the transport is usually gone already
		go old()
	}
}

func (f *Facade) establishOn(b store.Backend, e *subEntry) (store.CancelFunc, error) {
	if e.kind == subDocument {
		return b.SubscribeDocument(context.Background(), e.collection, e.docID, e.docFn)
	}
	return b.SubscribeQuery(context.Background(), e.collection, e.filter, e.queryFn)
}

// subscribe registers a logical subscription and establishes it on the
// active backend, failing over once if the remote store rejects it.
func (f *Facade) subscribe(ctx context.Context, e *subEntry) (store.CancelFunc, error) {
	f.reg.add(e)

	b := f.backend()
	cancel, err := f.establishOn(b, e)
	if err != nil && f.shouldFailover(b, err) {
		f.fo.Demote(err)
		// the demotion hook may have re-homed this entry already
		e.mu.Lock()
		established := e.cancel != nil
		e.mu.Unlock()
		if !established {
			cancel, err = f.establishOn(f.local, e)
		} else {
			cancel, err = nil, nil
		}
	}
	if err != nil {
		f.reg.remove(e.id)
		return nil, err
	}

	if cancel != nil {
		e.mu.Lock()
		keep := e.cancel == nil && !e.closed
		if keep {
			e.cancel = cancel
		}
		e.mu.Unlock()
		if !keep {
			// a concurrent demotion re-homed the entry first; discard the
			// handle we just opened
			go cancel()
		}
	}

	return func() { f.unsubscribe(e) }, nil
}

// unsubscribe closes a logical subscription. Safe to call multiple times
// and safe to call after the underlying backend has already failed over.
func (f *Facade) unsubscribe(e *subEntry) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	old := e.cancel
	e.cancel = nil
	e.mu.Unlock()

	f.reg.remove(e.id)
	if old != nil {
		old()
	}
}
