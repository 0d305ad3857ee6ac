package pathdag

import "context"

// ReadTx is a consistent read snapshot over the link records.
//
// Implementations must guarantee at least repeatable-read isolation for the
// duration of the callback that holds the snapshot: the mutator's
// prefix/suffix reads must not be invalidated by a concurrent writer
// mid-algorithm.
type ReadTx interface {
	// ByEntity returns all links whose child endpoint is entity
	// (the entity's incoming edge records). Order is unspecified.
	ByEntity(entity int64) ([]Link, error)

	// ByParent returns all links whose parent endpoint is parent
	// (the entity's outgoing edge records). Order is unspecified.
	ByParent(parent int64) ([]Link, error)

	// ByPath returns the links of one path ordered by depth.
	// A missing path yields an empty slice, not an error.
	ByPath(pathID int64) ([]Link, error)

	// All returns every link record, ordered by (path id, depth).
	// Exports and integrity checks need full enumeration; the engine's
	// own algorithms never call it.
	All() ([]Link, error)
}

// Tx extends ReadTx with mutations. All writes issued through one Tx commit
// atomically or not at all.
type Tx interface {
	ReadTx

	// Insert writes new link records.
	Insert(links ...Link) error

	// DeletePath removes every link of the path. The path id is retired;
	// it is never reused for a new path.
	DeletePath(pathID int64) error

	// UpdateAttrs replaces the attributes on every record of the direct
	// edge (entity, parent) across all paths, and returns the number of
	// records updated. Structural fields are untouched.
	UpdateAttrs(entity, parent int64, attrs Attributes) (int, error)

	// NextPathID allocates a path identifier: strictly increasing, durable,
	// and disjoint across concurrent callers. Allocation participates in
	// this transaction's discipline; ids burned by a rollback are never
	// reissued, ids on a committed path never reused.
	NextPathID() (int64, error)
}

// Store is the transactional record store the engine runs against.
//
// Update executes fn inside one atomic read-write transaction; if fn returns
// an error, or the commit fails, no partial state becomes visible. A commit
// aborted under contention surfaces as [ErrStorageConflict]; the caller may
// retry the whole operation.
type Store interface {
	// View executes fn against a consistent read snapshot.
	View(ctx context.Context, fn func(ReadTx) error) error

	// Update executes fn inside one atomic read-write transaction.
	Update(ctx context.Context, fn func(Tx) error) error

	// Close releases backend resources.
	Close() error
}

// PathAllocator issues path identifiers outside a storage transaction, for
// backends whose id source is an external atomic counter (e.g. Redis INCR).
// Ids obtained this way may be burned on rollback, which is acceptable;
// they must still be strictly increasing and disjoint across processes.
type PathAllocator interface {
	NextPathID(ctx context.Context) (int64, error)
}
