// Package bhtree implements an incrementally maintained Barnes-Hut tree over
// D-dimensional points.
//
// Points are addressed by a dense external index returned from Push. Nodes are
// stored in two index-addressed arenas (leaves and internals); removing a node
// moves the last node of its arena into the freed slot and patches every link
// that referred to the moved node. Each internal node carries the running
// centroid and count of its subtree so that Query can substitute a whole
// subtree for its members when the caller's far-enough predicate allows it.
//
// A Tree is not safe for concurrent use. Callers that share a tree between
// goroutines must serialize mutations themselves (see internal/layout).
package bhtree
