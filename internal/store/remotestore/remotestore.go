// Package remotestore implements the remote Backend variant: an adapter for
// a hosted multi-writer document store reached over a websocket JSON-RPC
// protocol with per-document and per-query live subscriptions.
//
// Every failed call returns an error wrapping common.ErrorRemoteUnavailable;
// the sync facade reacts to the first such error by demoting the session to
// the local store. Transport death outside any call (the server hangs up
// mid-session) is reported through the OnFailure callback so open
// subscriptions can be failed over too.
package remotestore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/logging"
	"github.com/dmitrijs2005/peerlink/internal/models"
	"github.com/dmitrijs2005/peerlink/internal/store"
)

// Options configures a remote store connection.
type Options struct {
	// Endpoint is the websocket URL of the store, e.g. ws://host:8000/rpc.
	Endpoint string
	// Namespace and Database select the logical key space.
	Namespace string
	Database  string
	// OnFailure is invoked at most once when the transport dies outside of
	// any in-flight call. May be nil.
	OnFailure func(error)
	// Logger may be nil.
	Logger logging.Logger
}

// Store is the remote Backend variant.
type Store struct {
	c   *conn
	log logging.Logger

	tokenMu sync.Mutex
	token   string
}

// Connect dials the remote store and selects the configured namespace and
// database. A failed dial or handshake is exactly the "remote unavailable at
// startup" case that routes initialization to the local store.
func Connect(ctx context.Context, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	c, err := dialConn(ctx, opts.Endpoint, opts.OnFailure)
	if err != nil {
		return nil, err
	}

	if _, err := c.call(ctx, methodUse, opts.Namespace, opts.Database); err != nil {
		_ = c.close()
		return nil, err
	}

	return &Store{c: c, log: logger.With("component", "remotestore")}, nil
}

// Signin opens a fresh session on the store and returns its token. The
// token can be cached (in the vault) and presented to Authenticate on a
// later connection while it is still usable.
func (s *Store) Signin(ctx context.Context) (string, error) {
	res, err := s.c.call(ctx, methodSignin)
	if err != nil {
		return "", err
	}
	var token string
	if err := json.Unmarshal(res, &token); err != nil {
		return "", fmt.Errorf("%w: malformed signin response: %w", common.ErrorRemoteUnavailable, err)
	}
	s.tokenMu.Lock()
	s.token = token
	s.tokenMu.Unlock()
	return token, nil
}

// Authenticate resumes a previous session from a cached token.
func (s *Store) Authenticate(ctx context.Context, token string) error {
	if _, err := s.c.call(ctx, methodAuth, token); err != nil {
		return err
	}
	s.tokenMu.Lock()
	s.token = token
	s.tokenMu.Unlock()
	return nil
}

// TokenUsable reports whether a cached session token is still worth
// presenting: well-formed and not within a minute of expiry. The signature
// is not verified here; that is the server's job.
func TokenUsable(token string) bool {
	if token == "" {
		return false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) > time.Minute
}

func (s *Store) Get(ctx context.Context, collection, id string) (models.Record, error) {
	res, err := s.c.call(ctx, methodGet, collection, id)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 || string(res) == "null" {
		return nil, common.ErrorNotFound
	}
	var rec models.Record
	if err := json.Unmarshal(res, &rec); err != nil {
		return nil, fmt.Errorf("%w: malformed get response: %w", common.ErrorRemoteUnavailable, err)
	}
	return rec, nil
}

func (s *Store) Query(ctx context.Context, collection string, filter store.Filter) ([]models.Record, error) {
	res, err := s.c.call(ctx, methodQuery, collection, filter)
	if err != nil {
		return nil, err
	}
	return decodeRecords(res)
}

func (s *Store) Put(ctx context.Context, collection, id string, rec models.Record) error {
	_, err := s.c.call(ctx, methodPut, collection, id, rec)
	return err
}

func (s *Store) Merge(ctx context.Context, collection, id string, fields models.Record) error {
	_, err := s.c.call(ctx, methodMerge, collection, id, fields)
	return err
}

// SubscribeDocument opens a live query pinned to one document id. The
// server fires once immediately with the current value, then on every
// subsequent change, until killed.
func (s *Store) SubscribeDocument(ctx context.Context, collection, id string, fn store.DocumentHandler) (store.CancelFunc, error) {
	return s.subscribeLive(ctx, collection, store.Where(store.Eq("id", id)), func(recs []models.Record) {
		if len(recs) == 0 {
			fn(nil)
			return
		}
		fn(recs[0])
	})
}

// SubscribeQuery opens a live query over a filtered result set.
func (s *Store) SubscribeQuery(ctx context.Context, collection string, filter store.Filter, fn store.QueryHandler) (store.CancelFunc, error) {
	return s.subscribeLive(ctx, collection, filter, fn)
}

func (s *Store) subscribeLive(ctx context.Context, collection string, filter store.Filter, fn store.QueryHandler) (store.CancelFunc, error) {
	queryID, err := common.MakeRandHexString(8)
	if err != nil {
		return nil, err
	}

	// the handler must be in place before the live call goes out: the
	// server's immediate first push races the call response otherwise
	s.c.registerLive(queryID, func(value json.RawMessage) {
		recs, err := decodeRecords(value)
		if err != nil {
			s.log.Warn(context.Background(), "dropping malformed live push",
				"collection", collection, "queryId", queryID, "error", err)
			return
		}
		fn(recs)
	})

	if _, err := s.c.call(ctx, methodLive, queryID, collection, filter); err != nil {
		s.c.unregisterLive(queryID)
		return nil, err
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.c.unregisterLive(queryID)
			// best effort: the transport may already be gone, which is
			// fine, the server reaps dead sessions
			ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()
			if _, err := s.c.call(ctx, methodKill, queryID); err != nil {
				s.log.Debug(ctx, "kill failed", "queryId", queryID, "error", err)
			}
		})
	}
	return cancel, nil
}

// Close tears the connection down without reporting a failure.
func (s *Store) Close() error {
	return s.c.close()
}

func decodeRecords(data json.RawMessage) ([]models.Record, error) {
	if len(data) == 0 || string(data) == "null" {
		return []models.Record{}, nil
	}
	var recs []models.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("%w: malformed result set: %w", common.ErrorRemoteUnavailable, err)
	}
	return recs, nil
}
