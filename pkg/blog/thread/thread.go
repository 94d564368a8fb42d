// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package thread builds nested comment forests from the flat comment
// collections the blog API returns.
//
// # Description
//
// GET /posts/:id embeds a post's comments as one flat slice ordered by
// creation time. The thread view renders them as a recursively nested
// forest. Build performs that transformation in a single O(n) pass:
// children are grouped by parent id, roots are the comments without a
// parent, and sibling order everywhere equals the input order.
//
// # Orphan Policy
//
// A comment whose declared parent is missing from the input (parent
// deleted concurrently, or filtered out server-side) is promoted to a
// root rather than dropped. No comment is ever lost from view; the
// promotion also keeps the builder total regardless of which deletion
// policy (cascade, reparent, tombstone) the API applies to replies.
//
// # Thread Safety
//
// Build allocates a fresh forest on every call and never mutates its
// input. Nodes are plain data; treat a built forest as immutable and
// rebuild after any refetch.
package thread

import "github.com/quillworks/quill/pkg/blog"

// Node is one comment in a built forest, with its direct replies in
// creation-time order.
type Node struct {
	blog.Comment

	// Replies are the comment's direct children, ordered as they
	// appeared in the input. Empty for leaves, never nil.
	Replies []*Node
}

// Build converts a flat, creation-time-ordered comment collection
// belonging to one post into a forest of root nodes.
//
// The result is deterministic: two calls on the same input produce
// structurally identical forests. The total node count always equals
// len(comments).
func Build(comments []blog.Comment) []*Node {
	if len(comments) == 0 {
		return nil
	}

	nodes := make([]*Node, len(comments))
	index := make(map[string]*Node, len(comments))
	for i, c := range comments {
		n := &Node{Comment: c, Replies: []*Node{}}
		nodes[i] = n
		index[c.ID] = n
	}

	var roots []*Node
	for _, n := range nodes {
		if n.IsRoot() {
			roots = append(roots, n)
			continue
		}
		parent, ok := index[*n.ParentID]
		if !ok {
			// Orphan: parent absent from this collection. Promote.
			roots = append(roots, n)
			continue
		}
		parent.Replies = append(parent.Replies, n)
	}
	return roots
}

// Count returns the total number of nodes in the forest.
func Count(forest []*Node) int {
	total := 0
	Walk(forest, func(*Node, int) { total++ })
	return total
}

// Walk traverses the forest depth-first, calling fn with each node and
// its depth (roots are depth 0). Siblings are visited in order, each
// followed immediately by its subtree — the order the thread view
// renders in.
func Walk(forest []*Node, fn func(n *Node, depth int)) {
	var visit func(n *Node, depth int)
	visit = func(n *Node, depth int) {
		fn(n, depth)
		for _, r := range n.Replies {
			visit(r, depth+1)
		}
	}
	for _, n := range forest {
		visit(n, 0)
	}
}

// Flatten returns the forest in render order with per-node depth.
// Convenience over Walk for cursor-based navigation in the TUI.
func Flatten(forest []*Node) []Line {
	var lines []Line
	Walk(forest, func(n *Node, depth int) {
		lines = append(lines, Line{Node: n, Depth: depth})
	})
	return lines
}

// Line pairs a node with its nesting depth in render order.
type Line struct {
	Node  *Node
	Depth int
}
