// Package datasync is the hybrid synchronization layer: one backend-agnostic
// facade over the remote document store and the local simulated store, with
// permanent one-way failover from the former to the latter.
package datasync

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/peerlink/internal/logging"
)

// Mode identifies which backend variant serves operations.
type Mode int32

const (
	// ModeRemote routes operations to the remote document store.
	ModeRemote Mode = iota
	// ModeLocal routes operations to the local simulated store. Terminal:
	// once entered it is never left for the life of the process.
	ModeLocal
)

func (m Mode) String() string {
	if m == ModeRemote {
		return "remote"
	}
	return "local"
}

// Failover is the controller deciding which store backs every operation.
// It starts in ModeRemote when remote initialization succeeded, ModeLocal
// otherwise. The first observed remote failure flips it to ModeLocal,
// exactly once, no matter how many concurrent calls fail simultaneously.
//
// One instance is constructed per running session and injected where
// needed; there is no hidden module-level singleton.
type Failover struct {
	mode atomic.Int32
	once sync.Once

	mu    sync.Mutex
	hooks []func(reason error)

	log logging.Logger
}

// NewFailover constructs a controller starting in the given mode. A
// controller born in ModeLocal never runs demotion hooks: there is nothing
// to fail over from.
func NewFailover(initial Mode, logger logging.Logger) *Failover {
	if logger == nil {
		logger = logging.Nop()
	}
	f := &Failover{log: logger.With("component", "failover")}
	f.mode.Store(int32(initial))
	if initial == ModeLocal {
		f.once.Do(func() {})
	}
	return f
}

// Mode returns the currently active mode.
func (f *Failover) Mode() Mode {
	return Mode(f.mode.Load())
}

// OnDemote registers a hook to run when (and if) demotion happens. Hooks
// run synchronously inside the single winning Demote call, before any
// retried operation proceeds against the local store.
func (f *Failover) OnDemote(hook func(reason error)) {
	f.mu.Lock()
	f.hooks = append(f.hooks, hook)
	f.mu.Unlock()
}

// Demote performs the one-way REMOTE→LOCAL transition. Idempotent: only the
// first caller flips the state and runs the hooks; everyone else returns
// immediately. There is no rollback of in-flight work — the operation that
// observed the failure is expected to retry against the local store.
func (f *Failover) Demote(reason error) {
	f.once.Do(func() {
		f.mode.Store(int32(ModeLocal))
		f.log.Warn(context.Background(), "remote store failed, demoting session to local store",
			"reason", reason)

		f.mu.Lock()
		hooks := append(([]func(error))(nil), f.hooks...)
		f.mu.Unlock()

		for _, hook := range hooks {
			hook(reason)
		}
	})
}
