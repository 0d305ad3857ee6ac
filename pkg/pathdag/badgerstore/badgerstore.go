// Package badgerstore persists link records in BadgerDB, an embedded
// key-value store with serializable transactions.
//
// Each link is written under three keys so every access pattern is a single
// prefix scan:
//
//	l/<pathID>/<depth>          primary, depth-ordered within a path
//	e/<entity>/<pathID>/<depth> incoming-edge index
//	p/<parent>/<pathID>/<depth> outgoing-edge index
//
// Numeric key segments are big-endian so byte order matches numeric order.
// Values are msgpack-encoded. Path ids come from a badger sequence, which
// never reissues a leased id even across restarts.
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/pathdag/pathdag/pkg/observability"
	"github.com/pathdag/pathdag/pkg/pathdag"
)

// idBandwidth is how many path ids a sequence lease reserves at once.
// Unused ids from a lease are burned on Close, never reissued.
const idBandwidth = 128

// Config holds the knobs for opening a store.
type Config struct {
	// Path is the database directory. Created if missing.
	// Ignored when InMemory is set.
	Path string

	// InMemory keeps everything in RAM with no disk files.
	InMemory bool

	// SyncWrites makes every commit fsync before returning.
	SyncWrites bool

	// Logger receives badger's internal log output. Nil silences it.
	Logger *log.Logger
}

// DefaultConfig returns a durable on-disk configuration rooted at path.
func DefaultConfig(path string) Config {
	return Config{Path: path, SyncWrites: true}
}

// InMemoryConfig returns a configuration for tests: no disk, no fsync.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// Store is a BadgerDB-backed pathdag.Store. Use Open to create one.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence

	alloc pathdag.PathAllocator
}

// Option configures a Store.
type Option func(*Store)

// WithAllocator routes path-id allocation through an external allocator
// instead of the local badger sequence.
func WithAllocator(a pathdag.PathAllocator) Option {
	return func(s *Store) { s.alloc = a }
}

// Open opens the database described by cfg.
func Open(cfg Config, opts ...Option) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path required for a persistent database")
	}

	var bopts badger.Options
	if cfg.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		bopts = badger.DefaultOptions(cfg.Path)
	}
	bopts = bopts.WithSyncWrites(cfg.SyncWrites)
	if cfg.Logger != nil {
		bopts = bopts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		bopts = bopts.WithLogger(nil)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	seq, err := db.GetSequence(seqKey, idBandwidth)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open path-id sequence: %w", err)
	}

	s := &Store{db: db, seq: seq}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// View executes fn against a read-only snapshot.
func (s *Store) View(ctx context.Context, fn func(pathdag.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&readTx{txn: txn})
	})
}

// Update executes fn inside one read-write transaction. A write conflict
// with a concurrent transaction surfaces as pathdag.ErrStorageConflict;
// the caller decides whether to retry.
func (s *Store) Update(ctx context.Context, fn func(pathdag.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	tx := &writeTx{readTx: readTx{txn: txn}, ctx: ctx, store: s}
	if err := fn(tx); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		if errors.Is(err, badger.ErrConflict) {
			observability.Store().OnConflict(ctx, "badger")
			return fmt.Errorf("commit: %w", pathdag.ErrStorageConflict)
		}
		return fmt.Errorf("commit: %w", err)
	}
	observability.Store().OnCommit(ctx, "badger", time.Since(start))
	return nil
}

// Close releases the id sequence lease and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("release path-id sequence: %w", err)
	}
	return s.db.Close()
}

// =============================================================================
// Key encoding
// =============================================================================

var seqKey = []byte("sys/pathid")

func u64(v int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	return b[:]
}

func u32(v int) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

func primaryKey(pathID int64, depth int) []byte {
	return append(append([]byte{'l'}, u64(pathID)...), u32(depth)...)
}

func entityKey(l pathdag.Link) []byte {
	k := append([]byte{'e'}, u64(l.Entity)...)
	return append(append(k, u64(l.PathID)...), u32(l.Depth)...)
}

func parentKey(l pathdag.Link) []byte {
	k := append([]byte{'p'}, u64(l.Parent)...)
	return append(append(k, u64(l.PathID)...), u32(l.Depth)...)
}

func keysOf(l pathdag.Link) [][]byte {
	return [][]byte{primaryKey(l.PathID, l.Depth), entityKey(l), parentKey(l)}
}

// =============================================================================
// Transactions
// =============================================================================

type readTx struct {
	txn *badger.Txn
}

// scan decodes every link stored under prefix, in key order.
func (tx *readTx) scan(prefix []byte) ([]pathdag.Link, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := tx.txn.NewIterator(opts)
	defer it.Close()

	var out []pathdag.Link
	for it.Rewind(); it.Valid(); it.Next() {
		var l pathdag.Link
		err := it.Item().Value(func(val []byte) error {
			return msgpack.Unmarshal(val, &l)
		})
		if err != nil {
			return nil, fmt.Errorf("decode link at %x: %w", it.Item().Key(), err)
		}
		out = append(out, l)
	}
	return out, nil
}

func (tx *readTx) ByEntity(entity int64) ([]pathdag.Link, error) {
	return tx.scan(append([]byte{'e'}, u64(entity)...))
}

func (tx *readTx) ByParent(parent int64) ([]pathdag.Link, error) {
	return tx.scan(append([]byte{'p'}, u64(parent)...))
}

func (tx *readTx) ByPath(pathID int64) ([]pathdag.Link, error) {
	return tx.scan(append([]byte{'l'}, u64(pathID)...))
}

func (tx *readTx) All() ([]pathdag.Link, error) {
	return tx.scan([]byte{'l'})
}

type writeTx struct {
	readTx
	ctx   context.Context
	store *Store
}

func (tx *writeTx) set(l pathdag.Link) error {
	val, err := msgpack.Marshal(l)
	if err != nil {
		return fmt.Errorf("encode link: %w", err)
	}
	for _, key := range keysOf(l) {
		if err := tx.txn.Set(key, val); err != nil {
			return err
		}
	}
	return nil
}

func (tx *writeTx) Insert(links ...pathdag.Link) error {
	for _, l := range links {
		if err := tx.set(l); err != nil {
			return err
		}
	}
	return nil
}

func (tx *writeTx) DeletePath(pathID int64) error {
	links, err := tx.ByPath(pathID)
	if err != nil {
		return err
	}
	for _, l := range links {
		for _, key := range keysOf(l) {
			if err := tx.txn.Delete(key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (tx *writeTx) UpdateAttrs(entity, parent int64, attrs pathdag.Attributes) (int, error) {
	links, err := tx.ByEntity(entity)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, l := range links {
		if l.Parent != parent {
			continue
		}
		l.Attrs = attrs.Clone()
		if err := tx.set(l); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (tx *writeTx) NextPathID() (int64, error) {
	if tx.store.alloc != nil {
		return tx.store.alloc.NextPathID(tx.ctx)
	}
	id, err := tx.store.seq.Next()
	if err != nil {
		return 0, fmt.Errorf("next path id: %w", err)
	}
	// Sequences start at zero; keep ids positive.
	return int64(id) + 1, nil
}

// badgerLogger adapts a charm logger to badger's logging interface.
type badgerLogger struct {
	logger *log.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any)   { l.logger.Errorf(format, args...) }
func (l *badgerLogger) Warningf(format string, args ...any) { l.logger.Warnf(format, args...) }
func (l *badgerLogger) Infof(format string, args ...any)    { l.logger.Infof(format, args...) }
func (l *badgerLogger) Debugf(format string, args ...any)   { l.logger.Debugf(format, args...) }
