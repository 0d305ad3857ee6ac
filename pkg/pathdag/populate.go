package pathdag

import "fmt"

// PopulatePath writes the link sequence for a known node path inside an
// open transaction. nodes is the full node sequence starting at the path
// root; the first link is written at startDepth. attrs optionally maps a
// link's position (0 for the edge leaving the root) to its attributes.
//
// This is a low-level building block for imports; it does not allocate the
// path id, check for cycles, or merge duplicate sequences. Most callers
// want [Mutator.AddEdge].
func PopulatePath(tx Tx, nodes []int64, pathID int64, startDepth int, attrs map[int]Attributes) ([]Link, error) {
	if len(nodes) < 2 {
		return nil, fmt.Errorf("path needs at least two nodes, got %d", len(nodes))
	}
	if startDepth < 0 {
		return nil, fmt.Errorf("start depth %d: %w", startDepth, ErrInvariant)
	}
	links := make([]Link, 0, len(nodes)-1)
	for i := 1; i < len(nodes); i++ {
		if nodes[i] <= 0 || nodes[i-1] <= 0 {
			return nil, ErrInvalidEntity
		}
		links = append(links, Link{
			Entity: nodes[i],
			Parent: nodes[i-1],
			PathID: pathID,
			Depth:  startDepth + i - 1,
			Attrs:  attrs[i-1].Clone(),
		})
	}
	if err := tx.Insert(links...); err != nil {
		return nil, err
	}
	return links, nil
}
