// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package blog

import "strings"

// =============================================================================
// Capabilities
// =============================================================================

// Capability is a single action an actor may take on a comment.
type Capability int

const (
	// CapReply allows creating a child comment.
	CapReply Capability = iota

	// CapEdit allows changing the comment's content.
	CapEdit

	// CapDelete allows removing the comment.
	CapDelete

	// CapApprove allows flipping the comment to APPROVED.
	CapApprove

	// CapReject allows flipping the comment to REJECTED.
	CapReject
)

// String returns the capability name for logging and key hints.
func (c Capability) String() string {
	switch c {
	case CapReply:
		return "reply"
	case CapEdit:
		return "edit"
	case CapDelete:
		return "delete"
	case CapApprove:
		return "approve"
	case CapReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Capabilities is a set of allowed actions, represented as a bitmask.
type Capabilities uint8

// Has reports whether the set contains the capability.
func (s Capabilities) Has(c Capability) bool {
	return s&(1<<uint(c)) != 0
}

// Empty reports whether no action is allowed.
func (s Capabilities) Empty() bool { return s == 0 }

// String lists the contained capabilities, comma separated.
func (s Capabilities) String() string {
	if s.Empty() {
		return "none"
	}
	var names []string
	for _, c := range []Capability{CapReply, CapEdit, CapDelete, CapApprove, CapReject} {
		if s.Has(c) {
			names = append(names, c.String())
		}
	}
	return strings.Join(names, ",")
}

func (s *Capabilities) add(c Capability) { *s |= 1 << uint(c) }

// =============================================================================
// Evaluator
// =============================================================================

// Actor is the authenticated identity evaluating an action. A nil
// *Actor means no session is present.
type Actor struct {
	ID   string
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// Evaluate maps (actor, comment) to the set of actions the actor may
// take on the comment. Every view that renders comment actions goes
// through this single function, so authorization logic cannot diverge
// between the thread view and the admin table.
//
// The rules are evaluated independently and are non-exclusive:
//
//   - reply: any authenticated actor
//   - edit, delete: the comment's author
//   - approve: an admin, and only while the comment is not APPROVED
//   - reject: an admin, and only while the comment is not REJECTED
//
// Pure and total: a nil actor yields the empty set, and no input
// panics. The server re-checks every mutation; this evaluator only
// decides what the UI exposes.
func Evaluate(actor *Actor, c Comment) Capabilities {
	var caps Capabilities
	if actor == nil {
		return caps
	}
	caps.add(CapReply)
	if actor.ID == c.AuthorID {
		caps.add(CapEdit)
		caps.add(CapDelete)
	}
	if actor.Role == RoleAdmin {
		if c.Status != CommentApproved {
			caps.add(CapApprove)
		}
		if c.Status != CommentRejected {
			caps.add(CapReject)
		}
	}
	return caps
}
