// Package memory provides an in-memory implementation of the pathdag store.
//
// Link records are held in three B-tree indexes: a primary (pathID, depth)
// index and two secondary indexes by entity and by parent. Transactions are
// copy-on-write: a read-write transaction works on O(1) lazy copies of the
// trees and swaps them in atomically on commit, so a failed transaction
// leaves no trace and readers always see a consistent snapshot.
//
// The store is safe for concurrent use. Writers are serialized; readers run
// concurrently with each other and with writers.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tidwall/btree"

	"github.com/pathdag/pathdag/pkg/observability"
	"github.com/pathdag/pathdag/pkg/pathdag"
)

// Store is an in-memory pathdag.Store. Use New to create one.
type Store struct {
	mu       sync.RWMutex
	byPath   *btree.BTreeG[pathdag.Link] // (PathID, Depth)
	byEntity *btree.BTreeG[pathdag.Link] // (Entity, PathID, Depth)
	byParent *btree.BTreeG[pathdag.Link] // (Parent, PathID, Depth)
	nextID   int64

	alloc pathdag.PathAllocator // optional external id source
}

// Option configures a Store.
type Option func(*Store)

// WithAllocator routes path-id allocation through an external allocator
// (for example a Redis counter), making ids disjoint across processes
// sharing that counter. Without it the store uses a local counter.
func WithAllocator(a pathdag.PathAllocator) Option {
	return func(s *Store) { s.alloc = a }
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		byPath:   btree.NewBTreeG(lessByPath),
		byEntity: btree.NewBTreeG(lessByEntity),
		byParent: btree.NewBTreeG(lessByParent),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func lessByPath(a, b pathdag.Link) bool {
	if a.PathID != b.PathID {
		return a.PathID < b.PathID
	}
	return a.Depth < b.Depth
}

func lessByEntity(a, b pathdag.Link) bool {
	if a.Entity != b.Entity {
		return a.Entity < b.Entity
	}
	return lessByPath(a, b)
}

func lessByParent(a, b pathdag.Link) bool {
	if a.Parent != b.Parent {
		return a.Parent < b.Parent
	}
	return lessByPath(a, b)
}

// View executes fn against a consistent read snapshot.
func (s *Store) View(ctx context.Context, fn func(pathdag.ReadTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	tx := &readTx{byPath: s.byPath, byEntity: s.byEntity, byParent: s.byParent}
	s.mu.RUnlock()
	// The trees are copy-on-write; holding the root pointers is a stable
	// snapshot even while a writer commits.
	return fn(tx)
}

// Update executes fn inside one atomic read-write transaction.
func (s *Store) Update(ctx context.Context, fn func(pathdag.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &writeTx{
		readTx: readTx{
			byPath:   s.byPath.Copy(),
			byEntity: s.byEntity.Copy(),
			byParent: s.byParent.Copy(),
		},
		ctx:   ctx,
		store: s,
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.byPath = tx.byPath
	s.byEntity = tx.byEntity
	s.byParent = tx.byParent
	observability.Store().OnCommit(ctx, "memory", time.Since(start))
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error { return nil }

// Len returns the total number of link records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byPath.Len()
}

// =============================================================================
// Transactions
// =============================================================================

type readTx struct {
	byPath   *btree.BTreeG[pathdag.Link]
	byEntity *btree.BTreeG[pathdag.Link]
	byParent *btree.BTreeG[pathdag.Link]
}

func (tx *readTx) ByEntity(entity int64) ([]pathdag.Link, error) {
	var out []pathdag.Link
	tx.byEntity.Ascend(pathdag.Link{Entity: entity}, func(l pathdag.Link) bool {
		if l.Entity != entity {
			return false
		}
		out = append(out, l)
		return true
	})
	return out, nil
}

func (tx *readTx) ByParent(parent int64) ([]pathdag.Link, error) {
	var out []pathdag.Link
	tx.byParent.Ascend(pathdag.Link{Parent: parent}, func(l pathdag.Link) bool {
		if l.Parent != parent {
			return false
		}
		out = append(out, l)
		return true
	})
	return out, nil
}

func (tx *readTx) All() ([]pathdag.Link, error) {
	out := make([]pathdag.Link, 0, tx.byPath.Len())
	tx.byPath.Scan(func(l pathdag.Link) bool {
		out = append(out, l)
		return true
	})
	return out, nil
}

func (tx *readTx) ByPath(pathID int64) ([]pathdag.Link, error) {
	var out []pathdag.Link
	tx.byPath.Ascend(pathdag.Link{PathID: pathID}, func(l pathdag.Link) bool {
		if l.PathID != pathID {
			return false
		}
		out = append(out, l)
		return true
	})
	return out, nil
}

type writeTx struct {
	readTx
	ctx   context.Context
	store *Store
}

func (tx *writeTx) Insert(links ...pathdag.Link) error {
	for _, l := range links {
		tx.byPath.Set(l)
		tx.byEntity.Set(l)
		tx.byParent.Set(l)
	}
	return nil
}

func (tx *writeTx) DeletePath(pathID int64) error {
	links, _ := tx.ByPath(pathID)
	for _, l := range links {
		tx.byPath.Delete(l)
		tx.byEntity.Delete(l)
		tx.byParent.Delete(l)
	}
	return nil
}

func (tx *writeTx) UpdateAttrs(entity, parent int64, attrs pathdag.Attributes) (int, error) {
	links, _ := tx.ByEntity(entity)
	n := 0
	for _, l := range links {
		if l.Parent != parent {
			continue
		}
		l.Attrs = attrs.Clone()
		tx.byPath.Set(l)
		tx.byEntity.Set(l)
		tx.byParent.Set(l)
		n++
	}
	return n, nil
}

func (tx *writeTx) NextPathID() (int64, error) {
	if tx.store.alloc != nil {
		return tx.store.alloc.NextPathID(tx.ctx)
	}
	// Advancing the counter outside the copy-on-write trees means a
	// rolled-back transaction burns its ids, which is the required
	// never-reuse behavior.
	tx.store.nextID++
	return tx.store.nextID, nil
}
