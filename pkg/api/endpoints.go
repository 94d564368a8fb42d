// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package api

import (
	"context"
	"strings"

	"github.com/quillworks/quill/pkg/blog"
)

// -----------------------------------------------------------------------------
// Inputs
// -----------------------------------------------------------------------------

// CreatePostInput is the payload of POST /posts.
type CreatePostInput struct {
	Title      string          `json:"title" validate:"required,min=3,max=255"`
	Content    string          `json:"content" validate:"required"`
	Thumbnail  *string         `json:"thumbnail,omitempty" validate:"omitempty,url"`
	IsFeatured bool            `json:"isFeatured"`
	Status     blog.PostStatus `json:"status" validate:"required,oneof=PUBLISHED DRAFT ARCHIVED"`
	Tags       []string        `json:"tags"`
}

// UpdatePostInput is the payload of PATCH /posts/:id. Nil fields are
// omitted and left unchanged server-side.
type UpdatePostInput struct {
	Title      *string          `json:"title,omitempty" validate:"omitempty,min=3,max=255"`
	Content    *string          `json:"content,omitempty" validate:"omitempty,min=1"`
	Thumbnail  *string          `json:"thumbnail,omitempty" validate:"omitempty,url"`
	IsFeatured *bool            `json:"isFeatured,omitempty"`
	Status     *blog.PostStatus `json:"status,omitempty" validate:"omitempty,oneof=PUBLISHED DRAFT ARCHIVED"`
	Tags       []string         `json:"tags,omitempty"`
}

// CreateCommentInput is the payload of POST /comments. ParentID nil
// creates a root comment; set, it creates a reply.
type CreateCommentInput struct {
	Content  string  `json:"content" validate:"required"`
	PostID   string  `json:"postId" validate:"required"`
	ParentID *string `json:"parentId,omitempty"`
}

// -----------------------------------------------------------------------------
// Posts
// -----------------------------------------------------------------------------

// ListPosts fetches the public feed page described by the filters.
func (c *Client) ListPosts(ctx context.Context, f PostFilters) ([]blog.Post, blog.Meta, error) {
	return c.listPosts(ctx, "/posts", f)
}

// ListMyPosts fetches the caller's own posts. Requires a session.
func (c *Client) ListMyPosts(ctx context.Context, f PostFilters) ([]blog.Post, blog.Meta, error) {
	return c.listPosts(ctx, "/posts/my-posts", f)
}

func (c *Client) listPosts(ctx context.Context, path string, f PostFilters) ([]blog.Post, blog.Meta, error) {
	var posts []blog.Post
	meta, err := c.Get(ctx, path, f.Values(), &posts)
	if err != nil {
		return nil, blog.Meta{}, err
	}
	if meta == nil {
		meta = &blog.Meta{Total: len(posts), Page: 1, TotalPages: 1, Limit: len(posts)}
	}
	return posts, *meta, nil
}

// GetPost fetches one post with its comments embedded.
func (c *Client) GetPost(ctx context.Context, id string) (*blog.Post, error) {
	var post blog.Post
	if _, err := c.Get(ctx, "/posts/"+id, nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// GetStats fetches the aggregate dashboard statistics.
func (c *Client) GetStats(ctx context.Context) (*blog.Stats, error) {
	var stats blog.Stats
	if _, err := c.Get(ctx, "/posts/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// CreatePost publishes a new post owned by the caller.
func (c *Client) CreatePost(ctx context.Context, in CreatePostInput) (*blog.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	if err := c.checkPayload(in); err != nil {
		return nil, err
	}
	var post blog.Post
	if err := c.Post(ctx, "/posts", in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost patches an existing post. Only the caller's own posts
// are patchable; the server enforces ownership.
func (c *Client) UpdatePost(ctx context.Context, id string, in UpdatePostInput) (*blog.Post, error) {
	if err := c.checkPayload(in); err != nil {
		return nil, err
	}
	var post blog.Post
	if err := c.Patch(ctx, "/posts/"+id, in, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost removes a post and, per API policy, its comments.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.Delete(ctx, "/posts/"+id)
}

// -----------------------------------------------------------------------------
// Comments
// -----------------------------------------------------------------------------

// CreateComment creates a root comment or a reply. Empty content is
// rejected locally; the transport is never invoked for it.
func (c *Client) CreateComment(ctx context.Context, in CreateCommentInput) (*blog.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := c.checkPayload(in); err != nil {
		return nil, err
	}
	var cm blog.Comment
	if err := c.Post(ctx, "/comments", in, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

// UpdateComment replaces a comment's content. Author-only,
// server-enforced.
func (c *Client) UpdateComment(ctx context.Context, id, content string) (*blog.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, validationError("comment content is empty", nil)
	}
	var cm blog.Comment
	body := map[string]string{"content": content}
	if err := c.Patch(ctx, "/comments/"+id, body, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

// DeleteComment removes a comment. What happens to its replies is the
// API's decision; the next fetch simply no longer contains the id.
func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.Delete(ctx, "/comments/"+id)
}

// SetCommentStatus flips a comment's moderation state. Admin-only,
// server-enforced.
func (c *Client) SetCommentStatus(ctx context.Context, id string, status blog.CommentStatus) (*blog.Comment, error) {
	if !blog.ValidCommentStatus(status) {
		return nil, validationError("invalid comment status", nil)
	}
	var cm blog.Comment
	body := map[string]blog.CommentStatus{"status": status}
	if err := c.Patch(ctx, "/comments/"+id+"/status", body, &cm); err != nil {
		return nil, err
	}
	return &cm, nil
}

// ListAllComments fetches the admin moderation listing with each
// comment's post embedded as {id, title}.
func (c *Client) ListAllComments(ctx context.Context, f CommentFilters) ([]blog.Comment, blog.Meta, error) {
	var comments []blog.Comment
	meta, err := c.Get(ctx, "/comments/all", f.Values(), &comments)
	if err != nil {
		return nil, blog.Meta{}, err
	}
	if meta == nil {
		meta = &blog.Meta{Total: len(comments), Page: 1, TotalPages: 1, Limit: len(comments)}
	}
	return comments, *meta, nil
}
