// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package blog defines the domain model shared by every Quill component:
// users, posts, comments, their status enumerations, and the pure
// authorization and moderation rules that govern them.
//
// The package owns no I/O. All records originate from the blog HTTP API
// (see pkg/api); this package only describes their shape and the
// invariants the client relies on:
//
//   - A comment's ParentID, when set, references a comment on the same
//     post. The API is the sole writer of ParentID.
//   - AuthorID and PostID never change for the lifetime of a comment;
//     only Content and Status mutate in place.
//   - Post.Views is incremented server-side on read and is never
//     written by this client.
package blog

import "time"

// =============================================================================
// Enumerations
// =============================================================================

// Role is a user's platform role.
type Role string

const (
	// RoleUser is a regular authenticated user.
	RoleUser Role = "USER"

	// RoleAdmin may moderate comments platform-wide.
	RoleAdmin Role = "ADMIN"

	// RoleModerator is reserved by the platform; the client treats it
	// like RoleUser until the API grants it additional rights.
	RoleModerator Role = "MODERATOR"
)

// UserStatus is a user's account standing.
type UserStatus string

const (
	UserActive   UserStatus = "ACTIVE"
	UserInactive UserStatus = "INACTIVE"
	UserBanned   UserStatus = "BANNED"
)

// PostStatus is a post's publication state.
type PostStatus string

const (
	PostPublished PostStatus = "PUBLISHED"
	PostDraft     PostStatus = "DRAFT"
	PostArchived  PostStatus = "ARCHIVED"
)

// CommentStatus is a comment's moderation state.
//
// There is no pending state: the API creates every comment already
// visible. This client assumes new comments default to approved (see
// DESIGN.md for the rationale).
type CommentStatus string

const (
	CommentApproved CommentStatus = "APPROVED"
	CommentRejected CommentStatus = "REJECTED"
)

// =============================================================================
// Records
// =============================================================================

// User is a platform account. Owned by the identity provider and
// read-only to this client.
type User struct {
	ID        string     `json:"id"`
	Name      *string    `json:"name"`
	Email     string     `json:"email"`
	Image     *string    `json:"image"`
	Role      Role       `json:"role"`
	Status    UserStatus `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// DisplayName returns the user's name, or a placeholder when the
// profile has none.
func (u *User) DisplayName() string {
	if u == nil || u.Name == nil || *u.Name == "" {
		return "Anonymous"
	}
	return *u.Name
}

// Post is a blog post with its comments embedded when fetched
// individually (GET /posts/:id).
type Post struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	Thumbnail  *string    `json:"thumbnail"`
	IsFeatured bool       `json:"isFeatured"`
	Status     PostStatus `json:"status"`
	Tags       []string   `json:"tags"`
	Views      int        `json:"views"`
	AuthorID   string     `json:"authorId"`
	Author     *User      `json:"author,omitempty"`
	Comments   []Comment  `json:"comments,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// PostRef is the abbreviated post embedded in the admin comment
// listing (GET /comments/all).
type PostRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Comment is a single comment. ParentID is nil for root comments.
type Comment struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Status    CommentStatus `json:"status"`
	AuthorID  string        `json:"authorId"`
	Author    *User         `json:"author,omitempty"`
	PostID    string        `json:"postId"`
	ParentID  *string       `json:"parentId"`
	Post      *PostRef      `json:"post,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// IsRoot reports whether the comment is top-level under its post.
func (c *Comment) IsRoot() bool {
	return c.ParentID == nil || *c.ParentID == ""
}

// Meta is the pagination metadata attached to every list response.
type Meta struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	Limit      int `json:"limit"`
}

// =============================================================================
// Aggregate Statistics
// =============================================================================

// TotalAgg aggregates post counts by status and author role.
type TotalAgg struct {
	Total             int `json:"total"`
	TotalPublished    int `json:"totalPublished"`
	TotalDraft        int `json:"totalDraft"`
	TotalArchived     int `json:"totalArchived"`
	TotalFeatured     int `json:"totalFeatured"`
	TotalAuthorsAdmin int `json:"totalAuthorsAdmin"`
	TotalAuthorsUser  int `json:"totalAuthorsUser"`
}

// ViewsAgg aggregates view counters across all posts.
type ViewsAgg struct {
	Total int     `json:"total"`
	Avg   float64 `json:"avg"`
	Min   int     `json:"min"`
	Max   int     `json:"max"`
}

// CommentAgg aggregates comment counts by moderation state.
type CommentAgg struct {
	Total         int `json:"total"`
	TotalApproved int `json:"totalApproved"`
	TotalRejected int `json:"totalRejected"`
}

// Stats is the response of GET /posts/stats.
type Stats struct {
	TotalAgg   TotalAgg   `json:"totalAgg"`
	ViewsAgg   ViewsAgg   `json:"viewsAgg"`
	CommentAgg CommentAgg `json:"commentAgg"`
}
