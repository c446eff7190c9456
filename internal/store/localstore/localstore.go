// Package localstore implements the local simulated store: a single-device
// key-space persistence layer backed by SQLite, paired with the in-process
// bus that notifies every other local context of mutations.
//
// Each collection is persisted as one JSON snapshot row. A mutation rewrites
// the snapshot atomically and publishes the collection name on the bus;
// listeners re-read the whole collection. There are no transactions across
// collections: concurrent writers race at read-modify-write granularity and
// the last writer wins, which is an accepted property of the simulated
// backend.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/peerlink/internal/bus"
	"github.com/dmitrijs2005/peerlink/internal/common"
	"github.com/dmitrijs2005/peerlink/internal/logging"
	"github.com/dmitrijs2005/peerlink/internal/models"
	"github.com/dmitrijs2005/peerlink/internal/store"
	"github.com/dmitrijs2005/peerlink/internal/store/localstore/migrations"
)

// Store is the local Backend variant. It is safe for concurrent use within
// one process; cross-context coordination happens only through the bus.
type Store struct {
	db      *sql.DB
	bus     *bus.Bus
	log     logging.Logger
	ownsDB  bool
	writeMu sync.Mutex
}

// RunMigrations applies the embedded schema migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		log.Fatal("failed to set goose dialect:", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// Open opens (or creates) the local database at dsn, applies migrations and
// returns a Store owning the connection.
func Open(ctx context.Context, dsn string, b *bus.Bus, logger logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open local db: %w", err)
	}

	if err := RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s := New(db, b, logger)
	s.ownsDB = true
	return s, nil
}

// New wraps an already-open database. The caller keeps ownership of db;
// this is how the store shares one file with the vault.
func New(db *sql.DB, b *bus.Bus, logger logging.Logger) *Store {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Store{db: db, bus: b, log: logger.With("component", "localstore")}
}

// DB exposes the underlying handle so the vault can live in the same file.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) readCollection(ctx context.Context, name string) ([]models.Record, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM collections WHERE name = ?`, name).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read collection %s: %w", name, err)
	}

	var recs []models.Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("failed to decode collection %s: %w", name, err)
	}
	return recs, nil
}

// writeCollection replaces the persisted snapshot, then emits a change
// notification tagged with the collection name.
func (s *Store) writeCollection(ctx context.Context, name string, recs []models.Record) error {
	if recs == nil {
		recs = []models.Record{}
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("failed to encode collection %s: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collections (name, data) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data
	`, name, data)
	if err != nil {
		return fmt.Errorf("failed to write collection %s: %w", name, err)
	}

	if s.bus != nil {
		s.bus.Publish(name)
	}
	return nil
}

func recordID(rec models.Record) string {
	id, _ := rec["id"].(string)
	return id
}

func (s *Store) Get(ctx context.Context, collection, id string) (models.Record, error) {
	recs, err := s.readCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if recordID(rec) == id {
			return rec, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (s *Store) Query(ctx context.Context, collection string, filter store.Filter) ([]models.Record, error) {
	recs, err := s.readCollection(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(recs))
	for _, rec := range recs {
		if filter.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Put upserts a full document. The read-modify-write is serialized within
// this process; writers in other processes still race last-writer-wins.
func (s *Store) Put(ctx context.Context, collection, id string, rec models.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	recs, err := s.readCollection(ctx, collection)
	if err != nil {
		return err
	}

	replaced := false
	for i := range recs {
		if recordID(recs[i]) == id {
			recs[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		recs = append(recs, rec)
	}

	return s.writeCollection(ctx, collection, recs)
}

// Merge patches only the named fields of an existing document.
func (s *Store) Merge(ctx context.Context, collection, id string, fields models.Record) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	recs, err := s.readCollection(ctx, collection)
	if err != nil {
		return err
	}

	for i := range recs {
		if recordID(recs[i]) != id {
			continue
		}
		for k, v := range fields {
			recs[i][k] = v
		}
		return s.writeCollection(ctx, collection, recs)
	}
	return common.ErrorNotFound
}

func (s *Store) SubscribeDocument(ctx context.Context, collection, id string, fn store.DocumentHandler) (store.CancelFunc, error) {
	sub := &subscription{}

	deliver := func() {
		rec, err := s.Get(context.Background(), collection, id)
		if err != nil && err != common.ErrorNotFound {
			s.log.Warn(context.Background(), "document refetch failed",
				"collection", collection, "id", id, "error", err)
			return
		}
		sub.deliver(func() { fn(rec) })
	}

	cancelBus := s.bus.Subscribe(func(changed string) {
		if changed == collection {
			deliver()
		}
	})
	sub.onCancel = cancelBus

	// initial snapshot, async so subscribing never blocks on the callback
	go deliver()

	return sub.cancel, nil
}

func (s *Store) SubscribeQuery(ctx context.Context, collection string, filter store.Filter, fn store.QueryHandler) (store.CancelFunc, error) {
	sub := &subscription{}

	deliver := func() {
		recs, err := s.Query(context.Background(), collection, filter)
		if err != nil {
			s.log.Warn(context.Background(), "query refetch failed",
				"collection", collection, "error", err)
			return
		}
		sub.deliver(func() { fn(recs) })
	}

	cancelBus := s.bus.Subscribe(func(changed string) {
		if changed == collection {
			deliver()
		}
	})
	sub.onCancel = cancelBus

	go deliver()

	return sub.cancel, nil
}

// Close releases the database handle if this store opened it.
func (s *Store) Close() error {
	if s.ownsDB {
		return s.db.Close()
	}
	return nil
}

// subscription serializes deliveries and makes cancellation idempotent.
// The bus worker and the initial-snapshot goroutine may both call deliver;
// the mutex keeps callbacks sequential, the closed flag keeps them from
// firing after cancel.
type subscription struct {
	mu       sync.Mutex
	closed   bool
	onCancel func()
}

func (s *subscription) deliver(fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fire()
}

func (s *subscription) cancel() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	onCancel := s.onCancel
	s.mu.Unlock()

	if onCancel != nil {
		onCancel()
	}
}
