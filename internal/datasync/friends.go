package datasync

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/peerlink/internal/models"
	"github.com/dmitrijs2005/peerlink/internal/store"
)

// Friendships returns every friendship the user is a member of.
func (f *Facade) Friendships(ctx context.Context, userID string) ([]*models.Friendship, error) {
	var recs []models.Record
	err := f.run(ctx, func(b store.Backend) error {
		var err error
		recs, err = b.Query(ctx, store.CollectionFriendships, friendshipsOf(userID))
		return err
	})
	if err != nil {
		return nil, err
	}
	return models.DecodeAll[models.Friendship](recs)
}

// Friends returns the user records of everyone the user is friends with,
// sorted by username.
func (f *Facade) Friends(ctx context.Context, userID string) ([]*models.User, error) {
	friendships, err := f.Friendships(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := peerIDs(userID, friendships)
	if len(ids) == 0 {
		return nil, nil
	}

	var recs []models.Record
	err = f.run(ctx, func(b store.Backend) error {
		var err error
		recs, err = b.Query(ctx, store.CollectionUsers, store.Where(store.In("id", ids)))
		return err
	})
	if err != nil {
		return nil, err
	}
	users, err := models.DecodeAll[models.User](recs)
	if err != nil {
		return nil, err
	}
	sortUsers(users)
	return users, nil
}

// SubscribeFriends delivers the user's friend list, with live user records,
// immediately and on every change to either the friendship set or any user
// record (so presence and profile edits surface without re-subscribing).
// The list is sorted by username. The returned cancel releases both
// underlying subscriptions.
func (f *Facade) SubscribeFriends(ctx context.Context, userID string, fn func([]*models.User)) (store.CancelFunc, error) {
	fl := &friendList{userID: userID, fn: fn}

	cancelFriendships, err := f.subscribe(ctx, &subEntry{
		kind:       subQuery,
		collection: store.CollectionFriendships,
		filter:     friendshipsOf(userID),
		queryFn: func(recs []models.Record) {
			friendships, err := models.DecodeAll[models.Friendship](recs)
			if err != nil {
				f.log.Warn(context.Background(), "dropping undecodable friendship batch",
					"error", err)
				return
			}
			fl.setFriendships(friendships)
		},
	})
	if err != nil {
		return nil, err
	}

	// the peer set changes whenever a friendship is added, so we watch the
	// whole users collection and project the friend subset on each delivery
	cancelUsers, err := f.subscribe(ctx, &subEntry{
		kind:       subQuery,
		collection: store.CollectionUsers,
		queryFn: func(recs []models.Record) {
			users, err := models.DecodeAll[models.User](recs)
			if err != nil {
				f.log.Warn(context.Background(), "dropping undecodable user batch",
					"error", err)
				return
			}
			fl.setUsers(users)
		},
	})
	if err != nil {
		cancelFriendships()
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			cancelFriendships()
			cancelUsers()
		})
	}, nil
}

// friendList joins the friendship stream with the users stream. It emits
// only after both streams have delivered at least once, then again on every
// change from either side. Emissions are serialized under mu so the caller
// never observes reordered lists.
type friendList struct {
	userID string
	fn     func([]*models.User)

	mu             sync.Mutex
	friendships    []*models.Friendship
	users          []*models.User
	haveFriendship bool
	haveUsers      bool
}

func (fl *friendList) setFriendships(friendships []*models.Friendship) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.friendships = friendships
	fl.haveFriendship = true
	fl.emitLocked()
}

func (fl *friendList) setUsers(users []*models.User) {
	fl.mu.Lock()
	defer fl.mu.Unlock()
	fl.users = users
	fl.haveUsers = true
	fl.emitLocked()
}

func (fl *friendList) emitLocked() {
	if !fl.haveFriendship || !fl.haveUsers {
		return
	}
	peers := make(map[string]struct{}, len(fl.friendships))
	for _, fs := range fl.friendships {
		if id := fs.PeerOf(fl.userID); id != "" {
			peers[id] = struct{}{}
		}
	}
	out := make([]*models.User, 0, len(peers))
	for _, u := range fl.users {
		if _, ok := peers[u.ID]; ok {
			out = append(out, u)
		}
	}
	sortUsers(out)
	fl.fn(out)
}

func friendshipsOf(userID string) store.Filter {
	return store.AnyOf(
		store.Eq("user1Id", userID),
		store.Eq("user2Id", userID),
	)
}

func peerIDs(userID string, friendships []*models.Friendship) []string {
	ids := make([]string, 0, len(friendships))
	for _, fs := range friendships {
		if id := fs.PeerOf(userID); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func sortUsers(users []*models.User) {
	sort.SliceStable(users, func(i, j int) bool {
		if users[i].Username != users[j].Username {
			return users[i].Username < users[j].Username
		}
		return users[i].ID < users[j].ID
	})
}
