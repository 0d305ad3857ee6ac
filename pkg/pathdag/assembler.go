package pathdag

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/pathdag/pathdag/pkg/observability"
)

// Assembler implements the read-side queries: immediate parents and
// children, and full root-to-entity path reconstruction from raw link
// records. It never changes graph shape.
type Assembler struct {
	store Store
}

// NewAssembler creates an Assembler over the given store.
func NewAssembler(store Store) *Assembler {
	return &Assembler{store: store}
}

// Parents returns the distinct immediate parents of entity, sorted by id.
func (a *Assembler) Parents(ctx context.Context, entity int64) ([]int64, error) {
	start := time.Now()
	var out []int64
	err := a.store.View(ctx, func(tx ReadTx) error {
		links, err := tx.ByEntity(entity)
		if err != nil {
			return err
		}
		out = distinctIDs(links, func(l Link) int64 { return l.Parent })
		return nil
	})
	observability.Engine().OnQuery(ctx, "parents", entity, time.Since(start), err)
	return out, err
}

// Children returns the distinct immediate children of entity, sorted by id.
func (a *Assembler) Children(ctx context.Context, entity int64) ([]int64, error) {
	start := time.Now()
	var out []int64
	err := a.store.View(ctx, func(tx ReadTx) error {
		links, err := tx.ByParent(entity)
		if err != nil {
			return err
		}
		out = distinctIDs(links, func(l Link) int64 { return l.Entity })
		return nil
	})
	observability.Engine().OnQuery(ctx, "children", entity, time.Since(start), err)
	return out, err
}

// EntityPaths returns every distinct root-to-entity node sequence, one per
// surviving path, truncated at the entity's occurrence. Truncation can make
// two paths coincide (siblings below the entity share their ancestry); such
// duplicates are collapsed, keeping the smallest path id. Results are
// ordered by path id.
func (a *Assembler) EntityPaths(ctx context.Context, entity int64) ([]PathInfo, error) {
	start := time.Now()
	var out []PathInfo
	err := a.store.View(ctx, func(tx ReadTx) error {
		frags, err := pathsUpTo(tx, entity)
		if err != nil {
			return err
		}
		out, err = fragmentsToInfos(tx, frags)
		return err
	})
	observability.Engine().OnQuery(ctx, "paths", entity, time.Since(start), err)
	return out, err
}

// PathsThrough returns the full node sequence of every path containing
// entity at any position, deduplicated by sequence and ordered by path id.
func (a *Assembler) PathsThrough(ctx context.Context, entity int64) ([]PathInfo, error) {
	var out []PathInfo
	err := a.store.View(ctx, func(tx ReadTx) error {
		pids, err := pathIDsTouching(tx, entity)
		if err != nil {
			return err
		}
		var frags []fragment
		for _, pid := range pids {
			links, err := tx.ByPath(pid)
			if err != nil {
				return err
			}
			if _, err := chainPath(pid, links); err != nil {
				return err
			}
			frags = append(frags, fragment{pathID: pid, links: links})
		}
		frags = dedupeFragments(frags)
		out, err = fragmentsToInfos(tx, frags)
		return err
	})
	return out, err
}

// Tree is a node in the hierarchy produced by [Assembler.Hierarchy].
type Tree struct {
	Entity   int64   `json:"entity"`
	Children []*Tree `json:"children,omitempty"`
}

// Hierarchy builds the full subtree under root from a single read snapshot.
// Children are sorted by entity id for stable output. A root with no
// outgoing edges yields a leaf tree.
func (a *Assembler) Hierarchy(ctx context.Context, root int64) (*Tree, error) {
	start := time.Now()
	childSets := make(map[int64]map[int64]struct{})
	err := a.store.View(ctx, func(tx ReadTx) error {
		rootLinks, err := tx.ByParent(root)
		if err != nil {
			return err
		}
		seen := make(map[int64]struct{})
		for _, l := range rootLinks {
			if _, ok := seen[l.PathID]; ok {
				continue
			}
			seen[l.PathID] = struct{}{}
			links, err := tx.ByPath(l.PathID)
			if err != nil {
				return err
			}
			for _, pl := range links {
				set, ok := childSets[pl.Parent]
				if !ok {
					set = make(map[int64]struct{})
					childSets[pl.Parent] = set
				}
				set[pl.Entity] = struct{}{}
			}
		}
		return nil
	})
	observability.Engine().OnQuery(ctx, "hierarchy", root, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return buildTree(root, childSets, make(map[int64]bool)), nil
}

func buildTree(entity int64, childSets map[int64]map[int64]struct{}, onStack map[int64]bool) *Tree {
	node := &Tree{Entity: entity}
	onStack[entity] = true
	defer delete(onStack, entity)

	ids := make([]int64, 0, len(childSets[entity]))
	for id := range childSets[entity] {
		if !onStack[id] { // corrupted cyclic data must not recurse forever
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	for _, id := range ids {
		node.Children = append(node.Children, buildTree(id, childSets, onStack))
	}
	return node
}

// =============================================================================
// Transaction-level helpers (shared with Mutator)
// =============================================================================

// fragment is a depth-ordered run of links belonging to one path, possibly
// truncated. Its node sequence starts at the first link's parent.
type fragment struct {
	pathID int64
	links  []Link
}

func (f fragment) nodes() []int64 { return nodesOf(f.links) }

// chainPath validates the path invariants for a depth-ordered link slice:
// depths contiguous from 0, consecutive links chaining parent to entity.
// It returns the node sequence, or ErrInvariant.
func chainPath(pathID int64, links []Link) ([]int64, error) {
	for i, l := range links {
		if l.Depth != i {
			return nil, fmt.Errorf("path %d: depth %d at position %d: %w", pathID, l.Depth, i, ErrInvariant)
		}
		if i > 0 && l.Parent != links[i-1].Entity {
			return nil, fmt.Errorf("path %d: link at depth %d does not chain: %w", pathID, l.Depth, ErrInvariant)
		}
	}
	return nodesOf(links), nil
}

// pathIDsTouching returns the sorted distinct path ids of every path in
// which entity appears as either endpoint.
func pathIDsTouching(tx ReadTx, entity int64) ([]int64, error) {
	in, err := tx.ByEntity(entity)
	if err != nil {
		return nil, err
	}
	out, err := tx.ByParent(entity)
	if err != nil {
		return nil, err
	}
	set := make(map[int64]struct{}, len(in)+len(out))
	for _, l := range in {
		set[l.PathID] = struct{}{}
	}
	for _, l := range out {
		set[l.PathID] = struct{}{}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// pathsUpTo returns, per path in which entity appears as a child endpoint,
// the links up to and including the edge arriving at entity. Fragments with
// identical node sequences are collapsed to the smallest path id.
func pathsUpTo(tx ReadTx, entity int64) ([]fragment, error) {
	in, err := tx.ByEntity(entity)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]struct{}, len(in))
	var frags []fragment
	for _, l := range in {
		if _, ok := seen[l.PathID]; ok {
			continue
		}
		seen[l.PathID] = struct{}{}
		links, err := tx.ByPath(l.PathID)
		if err != nil {
			return nil, err
		}
		if _, err := chainPath(l.PathID, links); err != nil {
			return nil, err
		}
		// Acyclicity guarantees a single occurrence per path.
		for i, pl := range links {
			if pl.Entity == entity {
				frags = append(frags, fragment{pathID: l.PathID, links: links[:i+1]})
				break
			}
		}
	}
	return dedupeFragments(frags), nil
}

// dedupeFragments collapses fragments with identical node sequences,
// keeping the smallest path id, and orders the result by path id.
func dedupeFragments(frags []fragment) []fragment {
	slices.SortFunc(frags, func(a, b fragment) int {
		switch {
		case a.pathID < b.pathID:
			return -1
		case a.pathID > b.pathID:
			return 1
		}
		return 0
	})
	var out []fragment
	for _, f := range frags {
		dup := false
		for _, kept := range out {
			if sameNodes(kept.nodes(), f.nodes()) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, f)
		}
	}
	return out
}

// isRoot reports whether node has no incoming edge records.
func isRoot(tx ReadTx, node int64) (bool, error) {
	in, err := tx.ByEntity(node)
	if err != nil {
		return false, err
	}
	return len(in) == 0, nil
}

func fragmentsToInfos(tx ReadTx, frags []fragment) ([]PathInfo, error) {
	infos := make([]PathInfo, 0, len(frags))
	for _, f := range frags {
		nodes := f.nodes()
		if len(nodes) == 0 {
			continue
		}
		complete, err := isRoot(tx, nodes[0])
		if err != nil {
			return nil, err
		}
		infos = append(infos, PathInfo{Nodes: nodes, Complete: complete, PathID: f.pathID})
	}
	return infos, nil
}

func distinctIDs(links []Link, key func(Link) int64) []int64 {
	set := make(map[int64]struct{}, len(links))
	for _, l := range links {
		set[key(l)] = struct{}{}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
