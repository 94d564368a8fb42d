// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/quillworks/quill/pkg/api"
)

// One-shot table output for non-terminal stdout (pipes, scripts). One
// page per invocation; --page selects which.

// printFeedPlain prints one page of the public feed.
func printFeedPlain(app *App, filters api.PostFilters) {
	if filters.Limit <= 0 {
		filters.Limit = app.Config.Feed.PageLimit
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	posts, meta, err := app.Client.ListPosts(ctx, filters)
	if err != nil {
		fatal(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tTAGS\tVIEWS\tCREATED")
	for _, p := range posts {
		author := ""
		if p.Author != nil {
			author = p.Author.DisplayName()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Title, author, strings.Join(p.Tags, ","), p.Views,
			p.CreatedAt.Format("2006-01-02"))
	}
	w.Flush()
	fmt.Printf("page %d/%d, %d posts\n", meta.Page, meta.TotalPages, meta.Total)
}

// printMyPostsPlain prints one page of the author's own posts.
func printMyPostsPlain(app *App, filters api.PostFilters) {
	if filters.Limit <= 0 {
		filters.Limit = app.Config.Feed.AdminPageLimit
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	posts, meta, err := app.Client.ListMyPosts(ctx, filters)
	if err != nil {
		fatal(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTITLE\tVIEWS\tUPDATED")
	for _, p := range posts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			p.ID, p.Status, p.Title, p.Views, p.UpdatedAt.Format("2006-01-02"))
	}
	w.Flush()
	fmt.Printf("page %d/%d, %d posts\n", meta.Page, meta.TotalPages, meta.Total)
}

// printCommentsPlain prints one page of the admin comment listing.
func printCommentsPlain(app *App, filters api.CommentFilters) {
	if filters.Limit <= 0 {
		filters.Limit = app.Config.Feed.AdminPageLimit
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	comments, meta, err := app.Client.ListAllComments(ctx, filters)
	if err != nil {
		fatal(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tAUTHOR\tPOST\tCONTENT")
	for _, c := range comments {
		author := "Anonymous"
		if c.Author != nil {
			author = c.Author.DisplayName()
		}
		post := ""
		if c.Post != nil {
			post = c.Post.Title
		}
		content := truncate(strings.ReplaceAll(c.Content, "\n", " "), 58)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Status, author, post, content)
	}
	w.Flush()
	fmt.Printf("page %d/%d, %d comments\n", meta.Page, meta.TotalPages, meta.Total)
}
