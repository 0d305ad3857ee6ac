package pathdag_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/pathdag/pathdag/pkg/pathdag"
	"github.com/pathdag/pathdag/pkg/pathdag/memory"
)

type engine struct {
	store *memory.Store
	m     *pathdag.Mutator
	a     *pathdag.Assembler
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	s := memory.New()
	t.Cleanup(func() { s.Close() })
	return &engine{store: s, m: pathdag.NewMutator(s), a: pathdag.NewAssembler(s)}
}

func (e *engine) add(t *testing.T, child, parent int64, attrs pathdag.Attributes) pathdag.Link {
	t.Helper()
	l, err := e.m.AddEdge(context.Background(), child, parent, attrs)
	if err != nil {
		t.Fatalf("AddEdge(%d, %d): %v", child, parent, err)
	}
	return l
}

func (e *engine) paths(t *testing.T, entity int64) []pathdag.PathInfo {
	t.Helper()
	paths, err := e.a.EntityPaths(context.Background(), entity)
	if err != nil {
		t.Fatalf("EntityPaths(%d): %v", entity, err)
	}
	return paths
}

func sequences(paths []pathdag.PathInfo) [][]int64 {
	out := make([][]int64, len(paths))
	for i, p := range paths {
		out[i] = p.Nodes
	}
	return out
}

func assertSequences(t *testing.T, got []pathdag.PathInfo, want [][]int64) {
	t.Helper()
	seqs := sequences(got)
	if len(seqs) != len(want) {
		t.Fatalf("got %d paths %v, want %d %v", len(seqs), seqs, len(want), want)
	}
	for i := range want {
		if !slices.Equal(seqs[i], want[i]) {
			t.Errorf("path %d = %v, want %v", i, seqs[i], want[i])
		}
	}
	for _, p := range got {
		if !p.Complete {
			t.Errorf("path %v not complete", p.Nodes)
		}
	}
}

// =============================================================================
// Scenarios
// =============================================================================

func TestLinearChain(t *testing.T) {
	e := newEngine(t)
	e.add(t, 2, 1, nil) // R=1, A=2
	e.add(t, 3, 2, nil) // B=3

	assertSequences(t, e.paths(t, 3), [][]int64{{1, 2, 3}})
}

func TestDirectShortcut(t *testing.T) {
	e := newEngine(t)
	e.add(t, 2, 1, nil)
	e.add(t, 3, 2, nil)
	e.add(t, 3, 1, nil)

	got := e.paths(t, 3)
	assertSequences(t, got, [][]int64{{1, 2, 3}, {1, 3}})
	if got[0].PathID == got[1].PathID {
		t.Errorf("both paths share id %d", got[0].PathID)
	}
}

func TestRemoveEdgeKeepsShortcut(t *testing.T) {
	e := newEngine(t)
	e.add(t, 2, 1, nil)
	e.add(t, 3, 2, nil)
	e.add(t, 3, 1, nil)

	original, rebuilt, err := e.m.RemoveEdge(context.Background(), 3, 2)
	if err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}
	if len(rebuilt) != 0 {
		t.Errorf("rebuilt %d links, want 0 (shortcut survives)", len(rebuilt))
	}
	if !slices.ContainsFunc(original, func(p pathdag.PathInfo) bool {
		return slices.Equal(p.Nodes, []int64{1, 2, 3})
	}) {
		t.Errorf("original paths %v missing [1 2 3]", sequences(original))
	}

	assertSequences(t, e.paths(t, 3), [][]int64{{1, 3}})

	children, err := e.a.Children(context.Background(), 2)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if slices.Contains(children, 3) {
		t.Errorf("Children(2) = %v still contains 3", children)
	}

	// The upstream edge is untouched by the removal below it.
	parents, err := e.a.Parents(context.Background(), 2)
	if err != nil {
		t.Fatalf("Parents: %v", err)
	}
	if !slices.Contains(parents, 1) {
		t.Errorf("Parents(2) = %v lost the edge from 1", parents)
	}
}

func TestDuplicateDirectEdgeUpdatesAttributes(t *testing.T) {
	e := newEngine(t)
	e.add(t, 2, 1, pathdag.Attributes{"kind": "old"})
	link := e.add(t, 2, 1, pathdag.Attributes{"kind": "new"})

	if link.Attrs["kind"] != "new" {
		t.Errorf("returned link attrs = %v, want kind=new", link.Attrs)
	}
	// No second path materialized for the same structural identity.
	assertSequences(t, e.paths(t, 2), [][]int64{{1, 2}})
}

// =============================================================================
// Properties
// =============================================================================

func TestCycleRejected(t *testing.T) {
	tests := []struct {
		name          string
		build         [][2]int64 // child, parent
		child, parent int64
	}{
		{name: "SelfEdge", child: 1, parent: 1},
		{name: "DirectBackEdge", build: [][2]int64{{2, 1}}, child: 1, parent: 2},
		{name: "TransitiveBackEdge", build: [][2]int64{{2, 1}, {3, 2}}, child: 1, parent: 3},
		{name: "DiamondBackEdge", build: [][2]int64{{2, 1}, {3, 1}, {4, 2}, {4, 3}}, child: 1, parent: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEngine(t)
			for _, edge := range tt.build {
				e.add(t, edge[0], edge[1], nil)
			}
			before := e.store.Len()

			_, err := e.m.AddEdge(context.Background(), tt.child, tt.parent, nil)
			if !errors.Is(err, pathdag.ErrCycle) {
				t.Fatalf("AddEdge error = %v, want ErrCycle", err)
			}
			if e.store.Len() != before {
				t.Errorf("cycle rejection wrote records: %d -> %d", before, e.store.Len())
			}
		})
	}
}

func TestRemoveMissingEdge(t *testing.T) {
	e := newEngine(t)
	e.add(t, 2, 1, nil)
	before := e.store.Len()

	_, _, err := e.m.RemoveEdge(context.Background(), 3, 1)
	if !errors.Is(err, pathdag.ErrEdgeNotFound) {
		t.Fatalf("RemoveEdge error = %v, want ErrEdgeNotFound", err)
	}
	if e.store.Len() != before {
		t.Errorf("failed removal wrote records: %d -> %d", before, e.store.Len())
	}
}

func TestInvalidEntityIDs(t *testing.T) {
	e := newEngine(t)
	if _, err := e.m.AddEdge(context.Background(), 0, 1, nil); !errors.Is(err, pathdag.ErrInvalidEntity) {
		t.Errorf("AddEdge(0, 1) error = %v, want ErrInvalidEntity", err)
	}
	if _, err := e.m.AddEdge(context.Background(), 1, -3, nil); !errors.Is(err, pathdag.ErrInvalidEntity) {
		t.Errorf("AddEdge(1, -3) error = %v, want ErrInvalidEntity", err)
	}
	if _, _, err := e.m.RemoveEdge(context.Background(), 0, 1); !errors.Is(err, pathdag.ErrInvalidEntity) {
		t.Errorf("RemoveEdge(0, 1) error = %v, want ErrInvalidEntity", err)
	}
}

func TestDiamond(t *testing.T) {
	e := newEngine(t)
	e.add(t, 2, 1, nil)
	e.add(t, 3, 1, nil)
	e.add(t, 4, 2, nil)
	e.add(t, 4, 3, nil)

	assertSequences(t, e.paths(t, 4), [][]int64{{1, 2, 4}, {1, 3, 4}})

	// Removing one arm keeps the other and the subtree stays reachable.
	original, rebuilt, err := e.m.RemoveEdge(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}
	gotOriginal := sequences(original)
	wantOriginal := [][]int64{{1, 2}, {1, 2, 4}}
	if len(gotOriginal) != len(wantOriginal) {
		t.Fatalf("original = %v, want %v", gotOriginal, wantOriginal)
	}
	for i := range wantOriginal {
		if !slices.Equal(gotOriginal[i], wantOriginal[i]) {
			t.Errorf("original[%d] = %v, want %v", i, gotOriginal[i], wantOriginal[i])
		}
	}
	if len(rebuilt) != 0 {
		t.Errorf("rebuilt %d links, want 0", len(rebuilt))
	}

	if got := e.paths(t, 2); len(got) != 0 {
		t.Errorf("orphaned entity still has paths %v", sequences(got))
	}
	assertSequences(t, e.paths(t, 4), [][]int64{{1, 3, 4}})
}

func TestAttributePreservation(t *testing.T) {
	e := newEngine(t)
	e.add(t, 3, 1, pathdag.Attributes{"rel": "contains"})
	e.add(t, 4, 3, pathdag.Attributes{"rel": "holds"})

	// Linking 3 under a second root copies 3's subtree; the continuation
	// edge must keep its original attributes.
	e.add(t, 3, 5, pathdag.Attributes{"rel": "mirrors"})

	err := e.store.View(context.Background(), func(tx pathdag.ReadTx) error {
		in, err := tx.ByEntity(4)
		if err != nil {
			return err
		}
		if len(in) != 2 {
			t.Fatalf("entity 4 has %d incoming records, want 2 (one per path)", len(in))
		}
		for _, l := range in {
			if l.Attrs["rel"] != "holds" {
				t.Errorf("continuation edge attrs = %v, want rel=holds", l.Attrs)
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	assertSequences(t, e.paths(t, 4), [][]int64{{1, 3, 4}, {5, 3, 4}})
}

func TestChildSubtreeExtension(t *testing.T) {
	e := newEngine(t)
	// Build a subtree rooted at 3 first, then hang 3 under 1.
	e.add(t, 4, 3, nil)
	e.add(t, 5, 4, nil)
	e.add(t, 3, 1, nil)

	assertSequences(t, e.paths(t, 5), [][]int64{{1, 3, 4, 5}})
	assertSequences(t, e.paths(t, 3), [][]int64{{1, 3}})

	// The old paths rooted at 3 are subsumed, not left behind as
	// incomplete fragments.
	through, err := e.a.PathsThrough(context.Background(), 3)
	if err != nil {
		t.Fatalf("PathsThrough: %v", err)
	}
	for _, p := range through {
		if !p.Complete {
			t.Errorf("fragment path %v survived extension", p.Nodes)
		}
		if p.Nodes[0] != 1 {
			t.Errorf("path %v does not start at the root", p.Nodes)
		}
	}
}

func TestRemoveAddRoundTrip(t *testing.T) {
	e := newEngine(t)
	attrs := pathdag.Attributes{"rel": "contains"}
	e.add(t, 2, 1, nil)
	e.add(t, 3, 2, attrs)
	e.add(t, 3, 1, nil)
	e.add(t, 4, 3, pathdag.Attributes{"rel": "holds"})

	before := allSequences(t, e, []int64{2, 3, 4})

	if _, _, err := e.m.RemoveEdge(context.Background(), 3, 2); err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}
	e.add(t, 3, 2, attrs)

	after := allSequences(t, e, []int64{2, 3, 4})
	if len(before) != len(after) {
		t.Fatalf("path set changed: before %v, after %v", before, after)
	}
	for i := range before {
		if !slices.Equal(before[i], after[i]) {
			t.Errorf("sequence %d = %v, want %v", i, after[i], before[i])
		}
	}
}

// allSequences collects the sorted distinct node sequences terminating at
// the given entities. Path ids are ignored: the round-trip property is
// isomorphism, not id equality.
func allSequences(t *testing.T, e *engine, entities []int64) [][]int64 {
	t.Helper()
	var out [][]int64
	for _, id := range entities {
		for _, p := range e.paths(t, id) {
			if !slices.ContainsFunc(out, func(s []int64) bool { return slices.Equal(s, p.Nodes) }) {
				out = append(out, p.Nodes)
			}
		}
	}
	slices.SortFunc(out, slices.Compare)
	return out
}

func TestFragmentRebuildThroughSurvivingParent(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	// Regular route to 3 plus a hand-planted fragment [5 3] whose head 5
	// hangs below 6 without a bridging path. This is the corrupt shape
	// the repair step exists for; normal mutations cannot produce it.
	e.add(t, 2, 1, nil)
	e.add(t, 3, 2, nil)
	err := e.store.Update(ctx, func(tx pathdag.Tx) error {
		pidF, err := tx.NextPathID()
		if err != nil {
			return err
		}
		if _, err := pathdag.PopulatePath(tx, []int64{5, 3}, pidF, 0, map[int]pathdag.Attributes{0: {"rel": "frag"}}); err != nil {
			return err
		}
		pidG, err := tx.NextPathID()
		if err != nil {
			return err
		}
		_, err = pathdag.PopulatePath(tx, []int64{6, 5}, pidG, 0, nil)
		return err
	})
	if err != nil {
		t.Fatalf("seeding fragment: %v", err)
	}

	_, rebuilt, err := e.m.RemoveEdge(ctx, 3, 2)
	if err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}
	if len(rebuilt) == 0 {
		t.Fatal("expected rebuild through surviving parent 5")
	}

	paths := e.paths(t, 3)
	if !slices.ContainsFunc(paths, func(p pathdag.PathInfo) bool {
		return p.Complete && slices.Equal(p.Nodes, []int64{6, 5, 3})
	}) {
		t.Errorf("paths(3) = %v, want a complete [6 5 3]", sequences(paths))
	}
}

// =============================================================================
// Read queries
// =============================================================================

func TestParentsChildren(t *testing.T) {
	e := newEngine(t)
	e.add(t, 2, 1, nil)
	e.add(t, 3, 1, nil)
	e.add(t, 4, 2, nil)
	e.add(t, 4, 3, nil)

	ctx := context.Background()
	parents, err := e.a.Parents(ctx, 4)
	if err != nil {
		t.Fatalf("Parents: %v", err)
	}
	if !slices.Equal(parents, []int64{2, 3}) {
		t.Errorf("Parents(4) = %v, want [2 3]", parents)
	}

	children, err := e.a.Children(ctx, 1)
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	if !slices.Equal(children, []int64{2, 3}) {
		t.Errorf("Children(1) = %v, want [2 3]", children)
	}

	none, err := e.a.Parents(ctx, 1)
	if err != nil {
		t.Fatalf("Parents: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Parents(1) = %v, want empty", none)
	}
}

func TestEntityPathsDeduplicatesTruncations(t *testing.T) {
	e := newEngine(t)
	e.add(t, 2, 1, nil)
	e.add(t, 3, 2, nil)
	e.add(t, 4, 2, nil)

	// Both leaves share the ancestry [1 2]; truncating at 2 must yield it
	// exactly once.
	assertSequences(t, e.paths(t, 2), [][]int64{{1, 2}})
}

func TestHierarchy(t *testing.T) {
	e := newEngine(t)
	e.add(t, 2, 1, nil)
	e.add(t, 3, 1, nil)
	e.add(t, 4, 2, nil)
	e.add(t, 4, 3, nil)

	tree, err := e.a.Hierarchy(context.Background(), 1)
	if err != nil {
		t.Fatalf("Hierarchy: %v", err)
	}
	if tree.Entity != 1 || len(tree.Children) != 2 {
		t.Fatalf("tree root = %d with %d children, want 1 with 2", tree.Entity, len(tree.Children))
	}
	if tree.Children[0].Entity != 2 || tree.Children[1].Entity != 3 {
		t.Errorf("children = %d, %d, want 2, 3", tree.Children[0].Entity, tree.Children[1].Entity)
	}
	for _, c := range tree.Children {
		if len(c.Children) != 1 || c.Children[0].Entity != 4 {
			t.Errorf("child %d subtree = %+v, want single leaf 4", c.Entity, c.Children)
		}
	}

	leaf, err := e.a.Hierarchy(context.Background(), 4)
	if err != nil {
		t.Fatalf("Hierarchy(leaf): %v", err)
	}
	if len(leaf.Children) != 0 {
		t.Errorf("leaf tree has %d children, want 0", len(leaf.Children))
	}
}

func TestPathIntegrityAfterMutations(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	edges := [][2]int64{{2, 1}, {3, 1}, {4, 2}, {4, 3}, {5, 4}, {6, 4}, {3, 7}}
	for _, edge := range edges {
		e.add(t, edge[0], edge[1], nil)
	}
	if _, _, err := e.m.RemoveEdge(ctx, 4, 2); err != nil {
		t.Fatalf("RemoveEdge: %v", err)
	}
	e.add(t, 4, 2, nil)

	// Every stored path must chain correctly with contiguous depths and a
	// unique node sequence; PathsThrough surfaces ErrInvariant otherwise.
	seen := make(map[string]int64)
	for _, entity := range []int64{1, 2, 3, 4, 5, 6, 7} {
		paths, err := e.a.PathsThrough(ctx, entity)
		if err != nil {
			t.Fatalf("PathsThrough(%d): %v", entity, err)
		}
		for _, p := range paths {
			key := fmt.Sprint(p.Nodes)
			if pid, ok := seen[key]; ok && pid != p.PathID {
				t.Errorf("sequence %v stored under path ids %d and %d", p.Nodes, pid, p.PathID)
			}
			seen[key] = p.PathID
		}
	}
}
