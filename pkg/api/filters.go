// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/quillworks/quill/pkg/blog"
)

// PostFilters are the query parameters accepted by GET /posts and
// GET /posts/my-posts. Zero values are omitted from the query string.
type PostFilters struct {
	Page       int
	Limit      int
	Search     string
	Tags       []string
	IsFeatured *bool
	Status     blog.PostStatus
	SortBy     string
	SortOrder  string
}

// Values encodes the filters as URL query parameters. Tags are joined
// comma-separated, matching the API's expectation.
func (f PostFilters) Values() url.Values {
	v := url.Values{}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if len(f.Tags) > 0 {
		v.Set("tags", strings.Join(f.Tags, ","))
	}
	if f.IsFeatured != nil {
		v.Set("isFeatured", strconv.FormatBool(*f.IsFeatured))
	}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	if f.SortBy != "" {
		v.Set("sortBy", f.SortBy)
	}
	if f.SortOrder != "" {
		v.Set("sortOrder", f.SortOrder)
	}
	return v
}

// Fingerprint returns a stable identity for this parameter tuple,
// used as the cache fingerprint for list queries. url.Values.Encode
// sorts by key, so two equal filter sets always fingerprint equally,
// regardless of how they were constructed.
func (f PostFilters) Fingerprint() string {
	return f.Values().Encode()
}

// WithoutPage returns a copy with the page number cleared. The
// infinite feed subscribes with the page-free fingerprint so all
// accumulated pages of one filter set share a single registration,
// while each page keeps its own cache entry.
func (f PostFilters) WithoutPage() PostFilters {
	f.Page = 0
	return f
}

// CommentFilters are the query parameters accepted by the admin
// listing GET /comments/all.
type CommentFilters struct {
	Page   int
	Limit  int
	Search string

	// Status filters by moderation state; empty means all.
	Status blog.CommentStatus
}

// Values encodes the filters as URL query parameters.
func (f CommentFilters) Values() url.Values {
	v := url.Values{}
	if f.Page > 0 {
		v.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		v.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Search != "" {
		v.Set("search", f.Search)
	}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	return v
}

// Fingerprint returns a stable identity for this parameter tuple.
func (f CommentFilters) Fingerprint() string {
	return f.Values().Encode()
}
