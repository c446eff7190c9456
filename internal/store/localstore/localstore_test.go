package localstore

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/peerlink/internal/bus"
	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/models"
	"github.com/dmitrijs2005/peerlink/internal/store"

	_ "modernc.org/sqlite"
)

var dsnSeq int

func setupStore(t *testing.T) (*Store, *bus.Bus) {
	t.Helper()
	dsnSeq++
	dsn := fmt.Sprintf("file:localstore%d?mode=memory&cache=shared", dsnSeq)

	b := bus.New()
	t.Cleanup(b.Close)

	s, err := Open(context.Background(), dsn, b, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s, b
}

func userRec(id, username string) models.Record {
	return models.Record{"id": id, "username": username, "status": "offline"}
}

func TestStore_ReadYourWrites(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.CollectionUsers, "u1", userRec("u1", "alice")))

	got, err := s.Get(ctx, store.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got["username"])

	// most recent write wins
	require.NoError(t, s.Put(ctx, store.CollectionUsers, "u1", userRec("u1", "alice2")))
	got, err = s.Get(ctx, store.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, "alice2", got["username"])
}

func TestStore_GetMissing(t *testing.T) {
	s, _ := setupStore(t)

	_, err := s.Get(context.Background(), store.CollectionUsers, "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestStore_PutDoesNotDuplicate(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.CollectionUsers, "u1", userRec("u1", "alice")))
	require.NoError(t, s.Put(ctx, store.CollectionUsers, "u1", userRec("u1", "alice")))

	recs, err := s.Query(ctx, store.CollectionUsers, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStore_QueryFilters(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.CollectionUsers, "u1", userRec("u1", "alice")))
	require.NoError(t, s.Put(ctx, store.CollectionUsers, "u2", userRec("u2", "bob")))

	recs, err := s.Query(ctx, store.CollectionUsers, store.Where(store.Eq("username", "bob")))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "u2", recs[0]["id"])
}

func TestStore_MergePatchesNamedFieldsOnly(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.CollectionUsers, "u1", userRec("u1", "alice")))
	require.NoError(t, s.Merge(ctx, store.CollectionUsers, "u1", models.Record{"status": "online"}))

	got, err := s.Get(ctx, store.CollectionUsers, "u1")
	require.NoError(t, err)
	assert.Equal(t, "online", got["status"])
	assert.Equal(t, "alice", got["username"], "untouched fields must survive a merge")
}

func TestStore_MergeMissing(t *testing.T) {
	s, _ := setupStore(t)

	err := s.Merge(context.Background(), store.CollectionUsers, "nope", models.Record{"status": "online"})
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

type docCollector struct {
	mu   sync.Mutex
	recs []models.Record
	cond chan struct{}
}

func newDocCollector() *docCollector {
	return &docCollector{cond: make(chan struct{}, 64)}
}

func (c *docCollector) handle(rec models.Record) {
	c.mu.Lock()
	c.recs = append(c.recs, rec)
	c.mu.Unlock()
	select {
	case c.cond <- struct{}{}:
	default:
	}
}

func (c *docCollector) waitFor(t *testing.T, n int) []models.Record {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		if len(c.recs) >= n {
			out := append([]models.Record(nil), c.recs...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		select {
		case <-c.cond:
		case <-deadline:
			t.Fatalf("timed out waiting for %d deliveries", n)
		}
	}
}

func TestSubscribeDocument_InitialThenChanges(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, store.CollectionUsers, "u1", userRec("u1", "alice")))

	c := newDocCollector()
	cancel, err := s.SubscribeDocument(ctx, store.CollectionUsers, "u1", c.handle)
	require.NoError(t, err)
	defer cancel()

	first := c.waitFor(t, 1)
	require.NotNil(t, first[0])
	assert.Equal(t, "alice", first[0]["username"])

	require.NoError(t, s.Merge(ctx, store.CollectionUsers, "u1", models.Record{"status": "online"}))

	got := c.waitFor(t, 2)
	last := got[len(got)-1]
	assert.Equal(t, "online", last["status"])
}

func TestSubscribeDocument_MissingDeliversNil(t *testing.T) {
	s, _ := setupStore(t)

	c := newDocCollector()
	cancel, err := s.SubscribeDocument(context.Background(), store.CollectionUsers, "ghost", c.handle)
	require.NoError(t, err)
	defer cancel()

	got := c.waitFor(t, 1)
	assert.Nil(t, got[0])
}

func TestSubscribeQuery_RefetchOnInvalidate(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	var mu sync.Mutex
	var sets [][]models.Record
	cond := make(chan struct{}, 64)

	cancel, err := s.SubscribeQuery(ctx, store.CollectionMessages,
		store.Where(store.Eq("receiverId", "bob")),
		func(recs []models.Record) {
			mu.Lock()
			sets = append(sets, recs)
			mu.Unlock()
			select {
			case cond <- struct{}{}:
			default:
			}
		})
	require.NoError(t, err)
	defer cancel()

	waitFor := func(n int) [][]models.Record {
		deadline := time.After(2 * time.Second)
		for {
			mu.Lock()
			if len(sets) >= n {
				out := append([][]models.Record(nil), sets...)
				mu.Unlock()
				return out
			}
			mu.Unlock()
			select {
			case <-cond:
			case <-deadline:
				t.Fatalf("timed out waiting for %d result sets", n)
			}
		}
	}

	first := waitFor(1)
	assert.Empty(t, first[0], "initial result set is empty")

	require.NoError(t, s.Put(ctx, store.CollectionMessages, "m1",
		models.Record{"id": "m1", "senderId": "alice", "receiverId": "bob", "content": "hi"}))

	got := waitFor(2)
	last := got[len(got)-1]
	require.Len(t, last, 1)
	assert.Equal(t, "m1", last[0]["id"])
}

func TestSubscribe_CancelIdempotentAndStops(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	c := newDocCollector()
	cancel, err := s.SubscribeDocument(ctx, store.CollectionUsers, "u1", c.handle)
	require.NoError(t, err)

	c.waitFor(t, 1)
	cancel()
	cancel()

	require.NoError(t, s.Put(ctx, store.CollectionUsers, "u1", userRec("u1", "alice")))
	time.Sleep(50 * time.Millisecond)

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.recs, 1, "no deliveries after cancel")
}

func TestStore_TwoContextsShareOneBus(t *testing.T) {
	// two stores over the same database and bus simulate two local
	// execution contexts on one device
	s1, b := setupStore(t)
	s2 := New(s1.DB(), b, nil)
	ctx := context.Background()

	c := newDocCollector()
	cancel, err := s2.SubscribeDocument(ctx, store.CollectionUsers, "u1", c.handle)
	require.NoError(t, err)
	defer cancel()

	c.waitFor(t, 1) // initial (nil)

	require.NoError(t, s1.Put(ctx, store.CollectionUsers, "u1", userRec("u1", "alice")))

	got := c.waitFor(t, 2)
	last := got[len(got)-1]
	require.NotNil(t, last)
	assert.Equal(t, "alice", last["username"])
}
