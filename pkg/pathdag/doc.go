// Package pathdag maintains a directed acyclic graph in which every
// root-to-node path is materialized explicitly as a sequence of link records,
// rather than derived at query time.
//
// # Data Model
//
// The unit of storage is the [Link]: one directed edge occurrence inside one
// path. A path is the ordered set of links sharing a PathID, ordered by
// Depth. Depth is zero-based and contiguous; the link at depth 0 leaves the
// path's root. Chaining the Parent→Entity fields of consecutive links yields
// the path's node sequence [root, n1, ..., leaf].
//
// Because paths are fully enumerated, reads are cheap: parents and children
// are single index lookups, and ancestor paths are reconstructed without
// recursive traversal. The cost is paid on writes: a single edge insertion
// or removal can create or invalidate many paths at once. [Mutator]
// implements those rewrites; [Assembler] implements the read side.
//
// # Storage
//
// The engine is storage-agnostic. All access goes through the [Store]
// interface, which provides snapshot reads and atomic read-write
// transactions. Backends are provided for in-memory use (pathdag/memory),
// BadgerDB (pathdag/badgerstore), and MongoDB (pathdag/mongostore).
//
// # Usage
//
//	store := memory.New()
//	m := pathdag.NewMutator(store)
//
//	if _, err := m.AddEdge(ctx, child, parent, pathdag.Attributes{"kind": "contains"}); err != nil {
//	    return err
//	}
//
//	a := pathdag.NewAssembler(store)
//	paths, err := a.EntityPaths(ctx, child)
package pathdag
