package pathdag

import (
	"context"
	"fmt"
	"time"

	"github.com/pathdag/pathdag/pkg/observability"
)

// Mutator implements the write side: edge insertion with path
// extension/branching, and edge removal with path invalidation and rebuild.
// It is the only component that changes graph shape. Every operation
// executes inside one atomic storage transaction; on failure no partial
// state is visible.
type Mutator struct {
	store Store
}

// NewMutator creates a Mutator over the given store.
func NewMutator(store Store) *Mutator {
	return &Mutator{store: store}
}

// AddEdge inserts the directed edge parent→child, materializing every new
// root-to-descendant path the edge enables. attrs are attached to the new
// direct edge only; copied prefix and suffix links keep their attributes
// verbatim.
//
// If the direct edge already exists, its attributes are updated in place on
// every record of the pair and no structural change occurs. An edge that
// would make parent reachable from child (including a self-edge) fails with
// ErrCycle and performs no writes.
//
// The returned link is the new direct edge as written to the first created
// path (or the refreshed existing record on an attribute update).
func (m *Mutator) AddEdge(ctx context.Context, child, parent int64, attrs Attributes) (Link, error) {
	start := time.Now()
	var (
		direct  Link
		created int
	)
	err := m.addEdge(ctx, child, parent, attrs, &direct, &created)
	observability.Engine().OnAddEdge(ctx, child, parent, created, time.Since(start), err)
	if err != nil {
		return Link{}, err
	}
	return direct, nil
}

func (m *Mutator) addEdge(ctx context.Context, child, parent int64, attrs Attributes, direct *Link, created *int) error {
	if child <= 0 || parent <= 0 {
		return ErrInvalidEntity
	}
	if child == parent {
		return fmt.Errorf("self edge %d→%d: %w", parent, child, ErrCycle)
	}

	return m.store.Update(ctx, func(tx Tx) error {
		// Re-adding an existing direct pair is an attribute refresh:
		// structural identity is unchanged, so no new paths are built.
		existing, err := directLinks(tx, child, parent)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			if _, err := tx.UpdateAttrs(child, parent, attrs); err != nil {
				return err
			}
			*direct = existing[0]
			direct.Attrs = attrs.Clone()
			return nil
		}

		reach, err := reachable(tx, child, parent)
		if err != nil {
			return err
		}
		if reach {
			return fmt.Errorf("%d is an ancestor of %d: %w", child, parent, ErrCycle)
		}

		prefixes, err := pathsUpTo(tx, parent)
		if err != nil {
			return err
		}
		if len(prefixes) == 0 {
			// Parent is itself a root: the single prefix is empty and the
			// new edge starts at depth 0.
			prefixes = []fragment{{}}
		}
		frags, err := loadPathsTouching(tx, child)
		if err != nil {
			return err
		}
		suffixes := suffixesFrom(frags, child)

		links, err := buildPaths(tx, prefixes, edgeSpec{child: child, parent: parent, attrs: attrs}, suffixes, nil)
		if err != nil {
			return err
		}
		if err := tx.Insert(links...); err != nil {
			return err
		}

		// Paths that were rooted at child are subsumed by the extended
		// paths just written; leaving them would turn them into partial
		// fragments the moment child gains its first incoming edge.
		for _, f := range frags {
			if nodes := f.nodes(); len(nodes) > 0 && nodes[0] == child {
				if err := tx.DeletePath(f.pathID); err != nil {
					return err
				}
			}
		}
		*created = len(links)
		for _, l := range links {
			if l.Entity == child && l.Parent == parent {
				*direct = l
				break
			}
		}
		return nil
	})
}

// RemoveEdge removes the direct edge parent→child and every path that used
// it. It returns the full node sequences of the invalidated paths as they
// were before deletion, and any links created while rebuilding the
// downstream subtree through surviving alternate routes (empty when the
// child keeps an independent path to a root, or loses all parents).
//
// RemoveEdge fails with ErrEdgeNotFound, performing no writes, if no direct
// edge parent→child exists.
func (m *Mutator) RemoveEdge(ctx context.Context, child, parent int64) ([]PathInfo, []Link, error) {
	start := time.Now()
	var (
		original []PathInfo
		rebuilt  []Link
	)
	err := m.removeEdge(ctx, child, parent, &original, &rebuilt)
	observability.Engine().OnRemoveEdge(ctx, child, parent, len(original), len(rebuilt), time.Since(start), err)
	if err != nil {
		return nil, nil, err
	}
	return original, rebuilt, nil
}

func (m *Mutator) removeEdge(ctx context.Context, child, parent int64, original *[]PathInfo, rebuilt *[]Link) error {
	if child <= 0 || parent <= 0 {
		return ErrInvalidEntity
	}

	return m.store.Update(ctx, func(tx Tx) error {
		direct, err := directLinks(tx, child, parent)
		if err != nil {
			return err
		}
		if len(direct) == 0 {
			return fmt.Errorf("edge %d→%d: %w", parent, child, ErrEdgeNotFound)
		}

		affected := distinctIDs(direct, func(l Link) int64 { return l.PathID })

		// Capture, before deletion, the invalidated sequences for the
		// caller and the downstream continuations below child for a
		// potential rebuild.
		var frags []fragment
		for _, pid := range affected {
			links, err := tx.ByPath(pid)
			if err != nil {
				return err
			}
			if _, err := chainPath(pid, links); err != nil {
				return err
			}
			frags = append(frags, fragment{pathID: pid, links: links})
		}
		infos, err := fragmentsToInfos(tx, frags)
		if err != nil {
			return err
		}
		suffixes := suffixesFrom(frags, child)

		for _, pid := range affected {
			if err := tx.DeletePath(pid); err != nil {
				return err
			}
		}
		*original = infos

		links, err := m.rebuildOrphan(tx, child, suffixes)
		if err != nil {
			return err
		}
		*rebuilt = links
		return nil
	})
}

// rebuildOrphan restores root paths for child after its invalidated paths
// were deleted. Three cases:
//
//   - child keeps at least one complete surviving path: nothing to do,
//   - child keeps direct edges from surviving parents but none of their
//     paths reaches a root (a pre-existing fragment state): re-run the
//     branch/extend construction through each surviving parent, carrying
//     the captured pre-removal suffixes so downstream attributes survive,
//   - child has no surviving parent: it and its orphaned descendants lose
//     all paths until a new edge is added.
func (m *Mutator) rebuildOrphan(tx Tx, child int64, suffixes []fragment) ([]Link, error) {
	surviving, err := tx.ByEntity(child)
	if err != nil {
		return nil, err
	}
	if len(surviving) == 0 {
		return nil, nil
	}

	remaining, err := pathsUpTo(tx, child)
	if err != nil {
		return nil, err
	}
	existing := make([][]int64, 0, len(remaining))
	for _, f := range remaining {
		nodes := f.nodes()
		complete, err := isRoot(tx, nodes[0])
		if err != nil {
			return nil, err
		}
		if complete {
			return nil, nil // invariant 5 already holds for child
		}
		existing = append(existing, nodes)
	}

	var out []Link
	for _, pair := range distinctPairs(surviving) {
		prefixes, err := pathsUpTo(tx, pair.parent)
		if err != nil {
			return nil, err
		}
		if len(prefixes) == 0 {
			prefixes = []fragment{{}}
		}
		links, err := buildPaths(tx, prefixes, edgeSpec{child: child, parent: pair.parent, attrs: pair.attrs}, suffixes, existing)
		if err != nil {
			return nil, err
		}
		if err := tx.Insert(links...); err != nil {
			return nil, err
		}
		// Sequences just written must not be duplicated by later parents.
		existing = append(existing, sequencesOf(links)...)
		out = append(out, links...)
	}
	return out, nil
}

// =============================================================================
// Path construction
// =============================================================================

// edgeSpec describes the direct edge being woven into new paths.
type edgeSpec struct {
	child  int64
	parent int64
	attrs  Attributes
}

// buildPaths materializes one new path per prefix×suffix combination:
// prefix links re-tagged to a fresh path id at depths 0..k-1, the direct
// edge at depth k, suffix links renumbered to follow it. Copied links keep
// their attributes verbatim; only the direct edge carries spec.attrs.
//
// A combination whose node sequence matches an entry of existing is skipped
// without allocating an id, so the earlier (smaller) path id survives and
// no two path ids ever share a node sequence.
//
// Both AddEdge and the RemoveEdge repair step funnel through this function.
func buildPaths(tx Tx, prefixes []fragment, spec edgeSpec, suffixes []fragment, existing [][]int64) ([]Link, error) {
	var out []Link
	seen := make([][]int64, 0, len(existing))
	seen = append(seen, existing...)

	for _, pre := range prefixes {
		for _, suf := range suffixes {
			seq := composeSequence(pre, spec, suf)
			if containsSequence(seen, seq) {
				continue
			}
			seen = append(seen, seq)

			pid, err := tx.NextPathID()
			if err != nil {
				return nil, err
			}
			depth := 0
			for _, l := range pre.links {
				out = append(out, Link{Entity: l.Entity, Parent: l.Parent, PathID: pid, Depth: depth, Attrs: l.Attrs.Clone()})
				depth++
			}
			out = append(out, Link{Entity: spec.child, Parent: spec.parent, PathID: pid, Depth: depth, Attrs: spec.attrs.Clone()})
			depth++
			for _, l := range suf.links {
				out = append(out, Link{Entity: l.Entity, Parent: l.Parent, PathID: pid, Depth: depth, Attrs: l.Attrs.Clone()})
				depth++
			}
		}
	}
	return out, nil
}

func composeSequence(pre fragment, spec edgeSpec, suf fragment) []int64 {
	seq := make([]int64, 0, len(pre.links)+len(suf.links)+2)
	if len(pre.links) > 0 {
		seq = append(seq, pre.nodes()...)
	} else {
		seq = append(seq, spec.parent)
	}
	seq = append(seq, spec.child)
	for _, l := range suf.links {
		seq = append(seq, l.Entity)
	}
	return seq
}

func containsSequence(set [][]int64, seq []int64) bool {
	for _, s := range set {
		if sameNodes(s, seq) {
			return true
		}
	}
	return false
}

func sequencesOf(links []Link) [][]int64 {
	byPath := make(map[int64][]Link)
	for _, l := range links {
		byPath[l.PathID] = append(byPath[l.PathID], l)
	}
	var out [][]int64
	for _, pls := range byPath {
		out = append(out, nodesOf(pls))
	}
	return out
}

// loadPathsTouching loads and validates every path in which entity appears
// as either endpoint.
func loadPathsTouching(tx ReadTx, entity int64) ([]fragment, error) {
	pids, err := pathIDsTouching(tx, entity)
	if err != nil {
		return nil, err
	}
	var frags []fragment
	for _, pid := range pids {
		links, err := tx.ByPath(pid)
		if err != nil {
			return nil, err
		}
		if _, err := chainPath(pid, links); err != nil {
			return nil, err
		}
		frags = append(frags, fragment{pathID: pid, links: links})
	}
	return frags, nil
}

// suffixesFrom extracts the deduplicated continuations below entity from
// already-loaded paths, plus the trivial empty suffix.
func suffixesFrom(frags []fragment, entity int64) []fragment {
	var out []fragment
	for _, f := range frags {
		nodes := f.nodes()
		for i, n := range nodes {
			if n != entity {
				continue
			}
			if i < len(f.links) { // links[i:] all lie below entity
				out = append(out, fragment{pathID: f.pathID, links: f.links[i:]})
			}
			break
		}
	}
	out = dedupeFragments(out)
	return append([]fragment{{}}, out...)
}

// =============================================================================
// Traversal helpers
// =============================================================================

// directLinks returns every record of the direct edge parent→child.
func directLinks(tx ReadTx, child, parent int64) ([]Link, error) {
	in, err := tx.ByEntity(child)
	if err != nil {
		return nil, err
	}
	var out []Link
	for _, l := range in {
		if l.Parent == parent {
			out = append(out, l)
		}
	}
	return out, nil
}

// reachable reports whether target can be reached from start by following
// direct edges downward.
func reachable(tx ReadTx, start, target int64) (bool, error) {
	visited := map[int64]struct{}{start: {}}
	frontier := []int64{start}
	for len(frontier) > 0 {
		node := frontier[0]
		frontier = frontier[1:]
		links, err := tx.ByParent(node)
		if err != nil {
			return false, err
		}
		for _, l := range links {
			if l.Entity == target {
				return true, nil
			}
			if _, ok := visited[l.Entity]; !ok {
				visited[l.Entity] = struct{}{}
				frontier = append(frontier, l.Entity)
			}
		}
	}
	return false, nil
}

type parentPair struct {
	parent int64
	attrs  Attributes
}

// distinctPairs collapses incoming records to one entry per parent,
// keeping the first record's attributes.
func distinctPairs(links []Link) []parentPair {
	seen := make(map[int64]struct{}, len(links))
	var out []parentPair
	for _, l := range links {
		if _, ok := seen[l.Parent]; ok {
			continue
		}
		seen[l.Parent] = struct{}{}
		out = append(out, parentPair{parent: l.Parent, attrs: l.Attrs})
	}
	return out
}
