// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package feed

import "github.com/quillworks/quill/pkg/blog"

// Tags returns the union of every tag across the given posts, each
// tag once, in first-seen order. The filter bar renders this list, so
// its order must be stable as pages accumulate: a tag keeps the
// position it first appeared at.
func Tags(posts []blog.Post) []string {
	var out []string
	seen := make(map[string]bool)
	for _, post := range posts {
		for _, tag := range post.Tags {
			if seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}
