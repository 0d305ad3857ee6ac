package pathdag

import (
	"errors"
	"slices"
	"testing"
)

// sliceTx is a minimal Tx over a plain slice, enough to exercise the path
// construction helpers without a real backend.
type sliceTx struct {
	links  []Link
	nextID int64
}

func (tx *sliceTx) filter(keep func(Link) bool) []Link {
	var out []Link
	for _, l := range tx.links {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func (tx *sliceTx) ByEntity(entity int64) ([]Link, error) {
	return tx.filter(func(l Link) bool { return l.Entity == entity }), nil
}

func (tx *sliceTx) ByParent(parent int64) ([]Link, error) {
	return tx.filter(func(l Link) bool { return l.Parent == parent }), nil
}

func (tx *sliceTx) ByPath(pathID int64) ([]Link, error) {
	out := tx.filter(func(l Link) bool { return l.PathID == pathID })
	slices.SortFunc(out, func(a, b Link) int { return a.Depth - b.Depth })
	return out, nil
}

func (tx *sliceTx) All() ([]Link, error) {
	out := slices.Clone(tx.links)
	slices.SortFunc(out, func(a, b Link) int {
		if a.PathID != b.PathID {
			return int(a.PathID - b.PathID)
		}
		return a.Depth - b.Depth
	})
	return out, nil
}

func (tx *sliceTx) Insert(links ...Link) error {
	tx.links = append(tx.links, links...)
	return nil
}

func (tx *sliceTx) DeletePath(pathID int64) error {
	tx.links = tx.filter(func(l Link) bool { return l.PathID != pathID })
	return nil
}

func (tx *sliceTx) UpdateAttrs(entity, parent int64, attrs Attributes) (int, error) {
	n := 0
	for i, l := range tx.links {
		if l.Entity == entity && l.Parent == parent {
			tx.links[i].Attrs = attrs.Clone()
			n++
		}
	}
	return n, nil
}

func (tx *sliceTx) NextPathID() (int64, error) {
	tx.nextID++
	return tx.nextID, nil
}

func frag(pid int64, links ...Link) fragment { return fragment{pathID: pid, links: links} }

func TestBuildPathsCombinations(t *testing.T) {
	tx := &sliceTx{}
	prefixes := []fragment{
		frag(1, Link{Entity: 2, Parent: 1, PathID: 1, Depth: 0}),
		frag(2, Link{Entity: 2, Parent: 7, PathID: 2, Depth: 0}),
	}
	suffixes := []fragment{
		{}, // trivial
		frag(3, Link{Entity: 4, Parent: 3, PathID: 3, Depth: 1, Attrs: Attributes{"rel": "holds"}}),
	}

	links, err := buildPaths(tx, prefixes, edgeSpec{child: 3, parent: 2, attrs: Attributes{"rel": "new"}}, suffixes, nil)
	if err != nil {
		t.Fatalf("buildPaths: %v", err)
	}

	got := sequencesOf(links)
	want := [][]int64{{1, 2, 3}, {1, 2, 3, 4}, {7, 2, 3}, {7, 2, 3, 4}}
	if len(got) != len(want) {
		t.Fatalf("built %d paths %v, want %d", len(got), got, len(want))
	}
	for _, w := range want {
		if !containsSequence(got, w) {
			t.Errorf("missing sequence %v in %v", w, got)
		}
	}

	for _, l := range links {
		switch {
		case l.Entity == 3 && l.Parent == 2:
			if l.Attrs["rel"] != "new" {
				t.Errorf("direct edge attrs = %v, want rel=new", l.Attrs)
			}
		case l.Entity == 4:
			if l.Attrs["rel"] != "holds" {
				t.Errorf("suffix edge attrs = %v, want rel=holds", l.Attrs)
			}
		}
	}

	// Depths must restart at 0 and stay contiguous per path id.
	for _, pid := range distinctIDs(links, func(l Link) int64 { return l.PathID }) {
		pls, _ := (&sliceTx{links: links}).ByPath(pid)
		if _, err := chainPath(pid, pls); err != nil {
			t.Errorf("path %d: %v", pid, err)
		}
	}
}

func TestBuildPathsSkipsExistingSequences(t *testing.T) {
	tx := &sliceTx{}
	prefixes := []fragment{frag(1, Link{Entity: 2, Parent: 1, PathID: 1, Depth: 0})}
	suffixes := []fragment{{}, frag(2, Link{Entity: 4, Parent: 3, PathID: 2, Depth: 1})}

	links, err := buildPaths(tx, prefixes, edgeSpec{child: 3, parent: 2}, suffixes, [][]int64{{1, 2, 3}})
	if err != nil {
		t.Fatalf("buildPaths: %v", err)
	}

	got := sequencesOf(links)
	if len(got) != 1 || !slices.Equal(got[0], []int64{1, 2, 3, 4}) {
		t.Fatalf("built %v, want only [1 2 3 4]", got)
	}
	// Skipped combinations must not burn ids.
	if tx.nextID != 1 {
		t.Errorf("allocated %d ids, want 1", tx.nextID)
	}
}

func TestBuildPathsEmptyPrefix(t *testing.T) {
	tx := &sliceTx{}
	links, err := buildPaths(tx, []fragment{{}}, edgeSpec{child: 2, parent: 1}, []fragment{{}}, nil)
	if err != nil {
		t.Fatalf("buildPaths: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("built %d links, want 1", len(links))
	}
	if links[0].Depth != 0 || links[0].Entity != 2 || links[0].Parent != 1 {
		t.Errorf("direct edge = %+v, want entity 2 parent 1 depth 0", links[0])
	}
}

func TestSuffixesFrom(t *testing.T) {
	frags := []fragment{
		// Entity 3 in the middle: continuation [4].
		frag(1,
			Link{Entity: 2, Parent: 1, PathID: 1, Depth: 0},
			Link{Entity: 3, Parent: 2, PathID: 1, Depth: 1},
			Link{Entity: 4, Parent: 3, PathID: 1, Depth: 2},
		),
		// Entity 3 terminal: no continuation.
		frag(2,
			Link{Entity: 3, Parent: 1, PathID: 2, Depth: 0},
		),
		// Entity 3 as path root: the whole path is the continuation.
		frag(3,
			Link{Entity: 4, Parent: 3, PathID: 3, Depth: 0},
			Link{Entity: 5, Parent: 4, PathID: 3, Depth: 1},
		),
	}

	suffixes := suffixesFrom(frags, 3)

	if len(suffixes) != 3 {
		t.Fatalf("got %d suffixes, want 3 (trivial, [4], [4 5])", len(suffixes))
	}
	if len(suffixes[0].links) != 0 {
		t.Errorf("first suffix not trivial: %+v", suffixes[0])
	}
	var seqs [][]int64
	for _, s := range suffixes[1:] {
		nodes := make([]int64, 0, len(s.links))
		for _, l := range s.links {
			nodes = append(nodes, l.Entity)
		}
		seqs = append(seqs, nodes)
	}
	if !containsSequence(seqs, []int64{4}) || !containsSequence(seqs, []int64{4, 5}) {
		t.Errorf("suffix continuations = %v, want [4] and [4 5]", seqs)
	}
}

func TestSuffixesFromDeduplicates(t *testing.T) {
	shared := []Link{
		{Entity: 4, Parent: 3, PathID: 1, Depth: 1},
	}
	frags := []fragment{
		frag(1, append([]Link{{Entity: 3, Parent: 1, PathID: 1, Depth: 0}}, shared...)...),
		frag(2, Link{Entity: 3, Parent: 2, PathID: 2, Depth: 0}, Link{Entity: 4, Parent: 3, PathID: 2, Depth: 1}),
	}

	suffixes := suffixesFrom(frags, 3)
	if len(suffixes) != 2 { // trivial plus one [4]
		t.Fatalf("got %d suffixes, want 2", len(suffixes))
	}
}

func TestChainPath(t *testing.T) {
	tests := []struct {
		name    string
		links   []Link
		want    []int64
		wantErr bool
	}{
		{
			name: "Valid",
			links: []Link{
				{Entity: 2, Parent: 1, Depth: 0},
				{Entity: 3, Parent: 2, Depth: 1},
			},
			want: []int64{1, 2, 3},
		},
		{
			name:  "Empty",
			links: nil,
			want:  nil,
		},
		{
			name: "DepthGap",
			links: []Link{
				{Entity: 2, Parent: 1, Depth: 0},
				{Entity: 3, Parent: 2, Depth: 2},
			},
			wantErr: true,
		},
		{
			name: "MissingDepthZero",
			links: []Link{
				{Entity: 3, Parent: 2, Depth: 1},
			},
			wantErr: true,
		},
		{
			name: "BrokenChain",
			links: []Link{
				{Entity: 2, Parent: 1, Depth: 0},
				{Entity: 4, Parent: 3, Depth: 1},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := chainPath(7, tt.links)
			if tt.wantErr {
				if !errors.Is(err, ErrInvariant) {
					t.Fatalf("error = %v, want ErrInvariant", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("chainPath: %v", err)
			}
			if !slices.Equal(nodes, tt.want) {
				t.Errorf("nodes = %v, want %v", nodes, tt.want)
			}
		})
	}
}

func TestComposeSequence(t *testing.T) {
	pre := frag(1, Link{Entity: 2, Parent: 1, Depth: 0})
	suf := frag(2, Link{Entity: 4, Parent: 3, Depth: 1})
	spec := edgeSpec{child: 3, parent: 2}

	if got := composeSequence(pre, spec, suf); !slices.Equal(got, []int64{1, 2, 3, 4}) {
		t.Errorf("full = %v, want [1 2 3 4]", got)
	}
	if got := composeSequence(fragment{}, spec, fragment{}); !slices.Equal(got, []int64{2, 3}) {
		t.Errorf("bare = %v, want [2 3]", got)
	}
}
