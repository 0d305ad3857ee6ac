package pathdag

import "slices"

// Attributes stores arbitrary key-value pairs attached to a link. They are
// owned by the caller and opaque to the engine: when a link is duplicated
// into a new path, its attributes are copied verbatim.
type Attributes map[string]any

// Clone returns a shallow copy of the attributes, or nil for nil input.
func (a Attributes) Clone() Attributes {
	if a == nil {
		return nil
	}
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Link is one edge record: the occurrence of a direct edge Parent→Entity
// inside one materialized path.
//
// The structural fields (Entity, Parent, PathID, Depth) are immutable once
// written; a structural change is always expressed as delete+insert.
// Only Attrs may be updated in place, and only on explicit caller request.
type Link struct {
	Entity int64      `json:"entity" bson:"entity" msgpack:"entity"`
	Parent int64      `json:"parent" bson:"parent" msgpack:"parent"`
	PathID int64      `json:"path_id" bson:"path_id" msgpack:"path_id"`
	Depth  int        `json:"depth" bson:"depth" msgpack:"depth"`
	Attrs  Attributes `json:"attrs,omitempty" bson:"attrs,omitempty" msgpack:"attrs,omitempty"`
}

// PathInfo describes one materialized path terminating at a queried entity.
type PathInfo struct {
	// Nodes is the node-id sequence [root, ..., entity].
	Nodes []int64 `json:"nodes"`
	// Complete reports whether depth 0 of the path leaves a genuine root,
	// i.e. a node with no incoming edges. A stored partial fragment yields
	// false; consistent stores only ever produce true.
	Complete bool `json:"complete"`
	// PathID identifies the path the sequence was read from.
	PathID int64 `json:"path_id"`
}

// nodesOf derives the node sequence of a depth-ordered, validated link slice.
func nodesOf(links []Link) []int64 {
	if len(links) == 0 {
		return nil
	}
	nodes := make([]int64, 0, len(links)+1)
	nodes = append(nodes, links[0].Parent)
	for _, l := range links {
		nodes = append(nodes, l.Entity)
	}
	return nodes
}

// sameNodes reports whether two node sequences are identical.
func sameNodes(a, b []int64) bool { return slices.Equal(a, b) }
