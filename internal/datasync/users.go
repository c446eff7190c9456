package datasync

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/models"
	"github.com/dmitrijs2005/peerlink/internal/store"
)

// GetUser returns the user with the given id, or common.ErrorNotFound.
func (f *Facade) GetUser(ctx context.Context, id string) (*models.User, error) {
	var rec models.Record
	err := f.run(ctx, func(b store.Backend) error {
		var err error
		rec, err = b.Get(ctx, store.CollectionUsers, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return models.Decode[models.User](rec)
}

// GetUserByUsername looks a user up by their unique, case-insensitive
// username. Absence is common.ErrorNotFound.
func (f *Facade) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	var recs []models.Record
	err := f.run(ctx, func(b store.Backend) error {
		var err error
		recs, err = b.Query(ctx, store.CollectionUsers,
			store.Where(store.Eq("username", models.NormalizeUsername(username))))
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, common.ErrorNotFound
	}
	return models.Decode[models.User](recs[0])
}

// SaveUser upserts the full user record.
func (f *Facade) SaveUser(ctx context.Context, u *models.User) error {
	rec, err := models.ToRecord(u)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}
	return f.run(ctx, func(b store.Backend) error {
		return b.Put(ctx, store.CollectionUsers, u.ID, rec)
	})
}

// UpdateUser merge-patches only the named fields of a user record. Used for
// status/typing/lastSeen heartbeats so concurrent writers of other fields
// are not clobbered. Idempotent and safe to retry.
func (f *Facade) UpdateUser(ctx context.Context, id string, fields models.Record) error {
	return f.run(ctx, func(b store.Backend) error {
		return b.Merge(ctx, store.CollectionUsers, id, fields)
	})
}

// SetPresence records a status heartbeat for the user.
func (f *Facade) SetPresence(ctx context.Context, id string, status models.PresenceStatus, at time.Time) error {
	return f.UpdateUser(ctx, id, models.Record{
		"status":   status,
		"lastSeen": at.UTC(),
	})
}

// SetTyping publishes which peer the user is currently composing a message
// to; an empty peerID clears the indicator.
func (f *Facade) SetTyping(ctx context.Context, id, peerID string) error {
	return f.UpdateUser(ctx, id, models.Record{"typingTo": peerID})
}

// SubscribeUser delivers the user's current record immediately and then on
// every change. A nil user means the record does not exist (yet).
func (f *Facade) SubscribeUser(ctx context.Context, id string, fn func(*models.User)) (store.CancelFunc, error) {
	e := &subEntry{
		kind:       subDocument,
		collection: store.CollectionUsers,
		docID:      id,
		docFn: func(rec models.Record) {
			if rec == nil {
				fn(nil)
				return
			}
			u, err := models.Decode[models.User](rec)
			if err != nil {
				f.log.Warn(context.Background(), "dropping undecodable user record",
					"id", id, "error", err)
				return
			}
			fn(u)
		},
	}
	return f.subscribe(ctx, e)
}
