// Package graphio serializes path-enumeration graphs.
//
// The exchange format is the edge list, not the materialized paths: paths
// are derived state and rebuild deterministically on import. This keeps
// exports small, human-readable and independent of path-id assignment.
package graphio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/pathdag/pathdag/pkg/pathdag"
)

// Edge is one direct edge in the exchange format.
type Edge struct {
	Parent int64              `json:"parent" bson:"parent"`
	Child  int64              `json:"child" bson:"child"`
	Attrs  pathdag.Attributes `json:"attrs,omitempty" bson:"attrs,omitempty"`
}

// Graph is the canonical serialization format: the distinct direct edges
// of the DAG, sorted by (parent, child) for deterministic output.
type Graph struct {
	Edges []Edge `json:"edges" bson:"edges"`
}

// Entities returns the sorted distinct entity ids appearing in the graph.
func (g Graph) Entities() []int64 {
	set := make(map[int64]struct{}, len(g.Edges)*2)
	for _, e := range g.Edges {
		set[e.Parent] = struct{}{}
		set[e.Child] = struct{}{}
	}
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// =============================================================================
// Snapshot and import
// =============================================================================

// Snapshot extracts the direct-edge list from a store. Each edge appears
// once regardless of how many paths replicate it; attributes are taken from
// the first record of the pair (all records of a pair carry the same ones).
func Snapshot(ctx context.Context, store pathdag.Store) (Graph, error) {
	type pair struct{ parent, child int64 }
	edges := make(map[pair]pathdag.Attributes)

	err := store.View(ctx, func(tx pathdag.ReadTx) error {
		links, err := tx.All()
		if err != nil {
			return err
		}
		for _, l := range links {
			p := pair{parent: l.Parent, child: l.Entity}
			if _, ok := edges[p]; !ok {
				edges[p] = l.Attrs.Clone()
			}
		}
		return nil
	})
	if err != nil {
		return Graph{}, err
	}

	g := Graph{Edges: make([]Edge, 0, len(edges))}
	for p, attrs := range edges {
		g.Edges = append(g.Edges, Edge{Parent: p.parent, Child: p.child, Attrs: attrs})
	}
	slices.SortFunc(g.Edges, func(a, b Edge) int {
		if a.Parent != b.Parent {
			if a.Parent < b.Parent {
				return -1
			}
			return 1
		}
		switch {
		case a.Child < b.Child:
			return -1
		case a.Child > b.Child:
			return 1
		}
		return 0
	})
	return g, nil
}

// Import replays the edge list through a mutator, materializing all paths.
// Edge order does not matter: inserting a subtree before its root produces
// the same final state as the reverse order.
func Import(ctx context.Context, m *pathdag.Mutator, g Graph) error {
	for _, e := range g.Edges {
		if _, err := m.AddEdge(ctx, e.Child, e.Parent, e.Attrs); err != nil {
			return fmt.Errorf("import edge %d→%d: %w", e.Parent, e.Child, err)
		}
	}
	return nil
}

// =============================================================================
// Graph serialization API
// =============================================================================

// MarshalGraph converts a Graph to indented JSON bytes.
func MarshalGraph(g Graph) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeGraphTo(g, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteGraph writes a Graph as JSON to an io.Writer.
func WriteGraph(g Graph, w io.Writer) error {
	return writeGraphTo(g, w)
}

// WriteGraphFile writes a Graph to a JSON file.
func WriteGraphFile(g Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return writeGraphTo(g, f)
}

// ReadGraph decodes a JSON graph from an io.Reader.
func ReadGraph(r io.Reader) (Graph, error) {
	var g Graph
	if err := json.NewDecoder(r).Decode(&g); err != nil {
		return Graph{}, fmt.Errorf("decode: %w", err)
	}
	return g, nil
}

// ReadGraphFile reads a JSON file and returns the decoded Graph.
func ReadGraphFile(path string) (Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return Graph{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadGraph(f)
}

func writeGraphTo(g Graph, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(g); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}
