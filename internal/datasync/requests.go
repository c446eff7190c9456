package datasync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/models"
	"github.com/dmitrijs2005/peerlink/internal/store"
)

// SendFriendRequest creates a pending request from one user to another.
// Duplicate invitations for a pair with a request already pending, and
// invitations between users who are already friends, return the existing
// state untouched rather than piling up records.
func (f *Facade) SendFriendRequest(ctx context.Context, fromID, toID string) (*models.FriendRequest, error) {
	if fromID == toID {
		return nil, fmt.Errorf("cannot send a friend request to yourself: %w", common.ErrorRequestResolved)
	}

	friends, err := f.areFriends(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, common.ErrorRequestResolved
	}

	existing, err := f.pendingBetween(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	req := &models.FriendRequest{
		ID:        models.NewID(),
		FromID:    fromID,
		ToID:      toID,
		Status:    models.RequestPending,
		Timestamp: time.Now().UTC(),
	}
	rec, err := models.ToRecord(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode friend request: %w", err)
	}
	err = f.run(ctx, func(b store.Backend) error {
		return b.Put(ctx, store.CollectionFriendRequests, req.ID, rec)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ResolveFriendRequest accepts or rejects a pending request. Resolution is
// first-write-wins: once a request has left the pending state further calls
// return common.ErrorRequestResolved and change nothing. Accepting creates
// the friendship under its deterministic pair key, so two racing acceptors
// still converge to a single friendship record.
func (f *Facade) ResolveFriendRequest(ctx context.Context, requestID string, accept bool) error {
	var rec models.Record
	err := f.run(ctx, func(b store.Backend) error {
		var err error
		rec, err = b.Get(ctx, store.CollectionFriendRequests, requestID)
		return err
	})
	if err != nil {
		return err
	}
	req, err := models.Decode[models.FriendRequest](rec)
	if err != nil {
		return fmt.Errorf("failed to decode friend request: %w", err)
	}
	if req.Resolved() {
		return common.ErrorRequestResolved
	}

	status := models.RequestRejected
	if accept {
		status = models.RequestAccepted
	}
	err = f.run(ctx, func(b store.Backend) error {
		return b.Merge(ctx, store.CollectionFriendRequests, requestID,
			models.Record{"status": status})
	})
	if err != nil {
		return err
	}
	if !accept {
		return nil
	}

	fs := models.NewFriendship(req.FromID, req.ToID, time.Now().UTC())
	fsRec, err := models.ToRecord(fs)
	if err != nil {
		return fmt.Errorf("failed to encode friendship: %w", err)
	}
	return f.run(ctx, func(b store.Backend) error {
		return b.Put(ctx, store.CollectionFriendships, fs.ID, fsRec)
	})
}

// PendingRequests returns the unresolved requests addressed to the user,
// oldest first.
func (f *Facade) PendingRequests(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	var recs []models.Record
	err := f.run(ctx, func(b store.Backend) error {
		var err error
		recs, err = b.Query(ctx, store.CollectionFriendRequests,
			store.Where(
				store.Eq("toId", userID),
				store.Eq("status", models.RequestPending),
			))
		return err
	})
	if err != nil {
		return nil, err
	}
	reqs, err := models.DecodeAll[models.FriendRequest](recs)
	if err != nil {
		return nil, err
	}
	sortRequests(reqs)
	return reqs, nil
}

// SubscribeRequests delivers the user's current pending requests immediately
// and again on every change, always oldest first.
func (f *Facade) SubscribeRequests(ctx context.Context, userID string, fn func([]*models.FriendRequest)) (store.CancelFunc, error) {
	e := &subEntry{
		kind:       subQuery,
		collection: store.CollectionFriendRequests,
		filter: store.Where(
			store.Eq("toId", userID),
			store.Eq("status", models.RequestPending),
		),
		queryFn: func(recs []models.Record) {
			reqs, err := models.DecodeAll[models.FriendRequest](recs)
			if err != nil {
				f.log.Warn(context.Background(), "dropping undecodable friend request batch",
					"error", err)
				return
			}
			sortRequests(reqs)
			fn(reqs)
		},
	}
	return f.subscribe(ctx, e)
}

// pendingBetween finds a pending request between the pair in either
// direction.
func (f *Facade) pendingBetween(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	var recs []models.Record
	err := f.run(ctx, func(be store.Backend) error {
		var err error
		recs, err = be.Query(ctx, store.CollectionFriendRequests, store.Filter{
			All: []store.Cond{store.Eq("status", models.RequestPending)},
			Any: []store.Cond{
				store.Eq("fromId", a),
				store.Eq("fromId", b),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	reqs, err := models.DecodeAll[models.FriendRequest](recs)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		if (req.FromID == a && req.ToID == b) || (req.FromID == b && req.ToID == a) {
			return req, nil
		}
	}
	return nil, nil
}

func sortRequests(reqs []*models.FriendRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].Timestamp.Equal(reqs[j].Timestamp) {
			return reqs[i].Timestamp.Before(reqs[j].Timestamp)
		}
		return reqs[i].ID < reqs[j].ID
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, common.ErrorNotFound)
}

func (f *Facade) areFriends(ctx context.Context, a, b string) (bool, error) {
	err := f.run(ctx, func(be store.Backend) error {
		_, err := be.Get(ctx, store.CollectionFriendships, models.FriendshipID(a, b))
		return err
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}
