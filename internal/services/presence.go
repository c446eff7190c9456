package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/peerlink/internal/datasync"
	"github.com/dmitrijs2005/peerlink/internal/logging"
	"github.com/dmitrijs2005/peerlink/internal/models"
)

// PresenceService pushes the logged-in user's presence: an online heartbeat
// with a lastSeen timestamp every interval, a typing indicator on demand,
// and an offline mark on shutdown. Peers render staleness from lastSeen, so
// a crashed client degrades to offline on their screens without any
// explicit signal.
type PresenceService struct {
	facade   *datasync.Facade
	interval time.Duration
	log      logging.Logger

	mu      sync.Mutex
	stop    chan struct{}
	stopped sync.WaitGroup
}

func NewPresenceService(f *datasync.Facade, interval time.Duration, logger logging.Logger) *PresenceService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &PresenceService{
		facade:   f,
		interval: interval,
		log:      logger.With("component", "presence"),
	}
}

// Start marks the user online and begins heartbeating. Calling Start while
// already running is a no-op.
func (p *PresenceService) Start(ctx context.Context, userID string) {
	p.mu.Lock()
	if p.stop != nil {
		p.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	p.stop = stop
	p.mu.Unlock()

	p.beat(ctx, userID)

	p.stopped.Add(1)
	go func() {
		defer p.stopped.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.beat(ctx, userID)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (p *PresenceService) beat(ctx context.Context, userID string) {
	if err := p.facade.SetPresence(ctx, userID, models.StatusOnline, time.Now()); err != nil {
		p.log.Warn(ctx, "presence heartbeat failed", "error", err)
	}
}

// SetTyping publishes which peer the user is composing to; empty clears it.
func (p *PresenceService) SetTyping(ctx context.Context, userID, peerID string) error {
	return p.facade.SetTyping(ctx, userID, peerID)
}

// Stop halts the heartbeat and marks the user offline. Safe to call when
// not running and safe to call twice.
func (p *PresenceService) Stop(userID string) {
	p.mu.Lock()
	stop := p.stop
	p.stop = nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	p.stopped.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := p.facade.SetPresence(ctx, userID, models.StatusOffline, time.Now()); err != nil {
		p.log.Warn(ctx, "failed to mark user offline", "error", err)
	}
	if err := p.facade.SetTyping(ctx, userID, ""); err != nil {
		p.log.Warn(ctx, "failed to clear typing indicator", "error", err)
	}
}
