package pathdag

import "errors"

var (
	// ErrCycle is returned by [Mutator.AddEdge] when inserting the edge would
	// create a directed cycle, including the degenerate self-edge case.
	// The operation performs no writes.
	ErrCycle = errors.New("edge would create a cycle")

	// ErrEdgeNotFound is returned by [Mutator.RemoveEdge] when no direct edge
	// exists between the given child and parent. The operation performs no writes.
	ErrEdgeNotFound = errors.New("edge not found")

	// ErrInvalidEntity is returned when an entity identifier is not a
	// positive integer. Entity identity is owned by the caller; the engine
	// only requires ids to be usable as keys.
	ErrInvalidEntity = errors.New("entity id must be positive")

	// ErrStorageConflict is returned when the storage layer aborts a
	// transaction under contention. The whole operation can be retried
	// idempotently; none of its steps are visible outside the transaction.
	ErrStorageConflict = errors.New("storage transaction conflict")

	// ErrInvariant is returned when stored records violate the path
	// invariants (non-contiguous depths, broken parent/entity chaining).
	// This indicates data corruption and is never expected in normal
	// operation. It is not auto-repaired.
	ErrInvariant = errors.New("path invariant violation")
)
