// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package blog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluate(t *testing.T) {
	approved := Comment{ID: "c1", AuthorID: "u1", Status: CommentApproved}
	rejected := Comment{ID: "c2", AuthorID: "u1", Status: CommentRejected}

	t.Run("nil actor gets the empty set", func(t *testing.T) {
		caps := Evaluate(nil, approved)
		assert.True(t, caps.Empty())
		assert.False(t, caps.Has(CapReply))
	})

	t.Run("any authenticated actor may reply", func(t *testing.T) {
		caps := Evaluate(&Actor{ID: "u9", Role: RoleUser}, approved)
		assert.True(t, caps.Has(CapReply))
		assert.False(t, caps.Has(CapEdit))
		assert.False(t, caps.Has(CapDelete))
		assert.False(t, caps.Has(CapApprove))
		assert.False(t, caps.Has(CapReject))
	})

	t.Run("author may edit and delete own comment", func(t *testing.T) {
		caps := Evaluate(&Actor{ID: "u1", Role: RoleUser}, approved)
		assert.True(t, caps.Has(CapEdit))
		assert.True(t, caps.Has(CapDelete))
		assert.False(t, caps.Has(CapApprove))
		assert.False(t, caps.Has(CapReject))
	})

	t.Run("moderator role grants no moderation rights", func(t *testing.T) {
		caps := Evaluate(&Actor{ID: "u9", Role: RoleModerator}, approved)
		assert.False(t, caps.Has(CapApprove))
		assert.False(t, caps.Has(CapReject))
	})

	t.Run("admin may reject an approved comment but not re-approve it", func(t *testing.T) {
		caps := Evaluate(&Actor{ID: "a1", Role: RoleAdmin}, approved)
		assert.True(t, caps.Has(CapReject))
		assert.False(t, caps.Has(CapApprove))
	})

	t.Run("admin may approve a rejected comment but not re-reject it", func(t *testing.T) {
		caps := Evaluate(&Actor{ID: "a1", Role: RoleAdmin}, rejected)
		assert.True(t, caps.Has(CapApprove))
		assert.False(t, caps.Has(CapReject))
	})

	t.Run("admin authoring own comment holds both author and admin rights", func(t *testing.T) {
		own := Comment{ID: "c3", AuthorID: "a1", Status: CommentApproved}
		caps := Evaluate(&Actor{ID: "a1", Role: RoleAdmin}, own)
		assert.True(t, caps.Has(CapEdit))
		assert.True(t, caps.Has(CapDelete))
		assert.True(t, caps.Has(CapReject))
	})
}

func TestCapabilitiesString(t *testing.T) {
	var caps Capabilities
	assert.Equal(t, "none", caps.String())

	caps.add(CapReply)
	caps.add(CapReject)
	assert.Equal(t, "reply,reject", caps.String())
}

func TestTransition(t *testing.T) {
	t.Run("approving a rejected comment changes state", func(t *testing.T) {
		next, changed := Transition(CommentRejected, CommentApproved)
		assert.True(t, changed)
		assert.Equal(t, CommentApproved, next)
	})

	t.Run("approving an approved comment is a no-op", func(t *testing.T) {
		next, changed := Transition(CommentApproved, CommentApproved)
		assert.False(t, changed)
		assert.Equal(t, CommentApproved, next)
	})

	t.Run("rejecting an approved comment changes state", func(t *testing.T) {
		next, changed := Transition(CommentApproved, CommentRejected)
		assert.True(t, changed)
		assert.Equal(t, CommentRejected, next)
	})
}

func TestValidCommentStatus(t *testing.T) {
	assert.True(t, ValidCommentStatus(CommentApproved))
	assert.True(t, ValidCommentStatus(CommentRejected))
	assert.False(t, ValidCommentStatus(CommentStatus("PENDING")))
	assert.False(t, ValidCommentStatus(CommentStatus("")))
}
