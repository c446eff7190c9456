// Package store defines the capability contract shared by the two storage
// engines backing the sync layer: the remote document store and the local
// simulated store. The facade only ever talks to a Backend; which variant
// serves a call is decided by the failover controller.
package store

import (
	"context"

	"github.com/dmitrijs2005/peerlink/internal/models"
)

// Collection names. Both backends use the same namespace.
const (
	CollectionUsers          = "users"
	CollectionFriendRequests = "friend_requests"
	CollectionFriendships    = "friendships"
	CollectionMessages       = "messages"
)

// CancelFunc releases a live subscription. Implementations must make it
// idempotent and safe to call after the backend has failed or closed.
type CancelFunc func()

// DocumentHandler receives the current value of a subscribed document, or
// nil if the document does not exist.
type DocumentHandler func(rec models.Record)

// QueryHandler receives the current result set of a subscribed query.
type QueryHandler func(recs []models.Record)

// Backend is the capability interface both storage engines implement.
//
// Contract:
//   - Get returns common.ErrorNotFound for a missing document.
//   - Put is a full-document upsert; Merge patches only the named fields.
//   - Both subscription methods deliver one notification with the current
//     state shortly after subscribing, then on every subsequent change,
//     until cancelled.
type Backend interface {
	Get(ctx context.Context, collection, id string) (models.Record, error)
	Query(ctx context.Context, collection string, filter Filter) ([]models.Record, error)
	Put(ctx context.Context, collection, id string, rec models.Record) error
	Merge(ctx context.Context, collection, id string, fields models.Record) error
	SubscribeDocument(ctx context.Context, collection, id string, fn DocumentHandler) (CancelFunc, error)
	SubscribeQuery(ctx context.Context, collection string, filter Filter, fn QueryHandler) (CancelFunc, error)
	Close() error
}
