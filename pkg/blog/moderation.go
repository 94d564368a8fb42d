// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package blog

// Transition applies a moderation transition to a comment status.
//
// The moderation machine has exactly two states, APPROVED and
// REJECTED, and two admin-gated transitions between them. Creation is
// handled by the API and is not modeled here.
//
// A same-state transition is a deliberate no-op: when two admins race
// on the same comment, the loser's call must not error. Callers use
// the changed flag to skip the network round trip and the cache
// invalidation entirely.
func Transition(current, target CommentStatus) (next CommentStatus, changed bool) {
	if current == target {
		return current, false
	}
	return target, true
}

// ValidCommentStatus reports whether s is one of the two moderation
// states. Used to reject malformed status values before they reach
// the API.
func ValidCommentStatus(s CommentStatus) bool {
	return s == CommentApproved || s == CommentRejected
}
