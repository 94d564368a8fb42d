// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package query

// Mutation names one write operation and the query groups it makes
// stale. The table below is the whole invalidation policy: a reviewer
// can check every mutation against every group in one place, and a
// new mutation that forgets to declare its groups simply invalidates
// nothing rather than something surprising.
type Mutation struct {
	Name        string
	Invalidates []Tag
}

var (
	// Post writes change every listing that could include the post
	// and the post's own view.
	MutCreatePost = Mutation{
		Name:        "post.create",
		Invalidates: []Tag{TagPosts, TagMyPosts, TagPost},
	}
	MutUpdatePost = Mutation{
		Name:        "post.update",
		Invalidates: []Tag{TagPosts, TagMyPosts, TagPost},
	}
	MutDeletePost = Mutation{
		Name:        "post.delete",
		Invalidates: []Tag{TagPosts, TagMyPosts, TagPost},
	}

	// Comment writes on a post page touch that page's thread. They do
	// not touch the post listings: comment counts are not shown in
	// the feed, so invalidating TagPosts there would be wasted
	// re-fetching.
	MutCreateComment = Mutation{
		Name:        "comment.create",
		Invalidates: []Tag{TagPost},
	}
	MutUpdateComment = Mutation{
		Name:        "comment.update",
		Invalidates: []Tag{TagPost},
	}

	// Deleting a comment can happen from the post page or the admin
	// listing, so both views go stale.
	MutDeleteComment = Mutation{
		Name:        "comment.delete",
		Invalidates: []Tag{TagPost, TagComments},
	}

	// Moderation flips visibility; the listings and the admin view go
	// stale. The open post page re-fetches on next mount rather than
	// immediately, since the moderator is acting from the admin
	// listing.
	MutSetCommentStatus = Mutation{
		Name:        "comment.status",
		Invalidates: []Tag{TagPosts, TagComments},
	}
)
