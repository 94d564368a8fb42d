// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/quillworks/quill/pkg/api"
	"github.com/quillworks/quill/pkg/blog"
	"github.com/quillworks/quill/pkg/query"
)

// postForm is the shared shape of the new-post and edit-post forms.
type postForm struct {
	Title     string
	Content   string
	Tags      string
	Thumbnail string
	Featured  bool
	Status    string
}

// runPostForm presents the editor form and returns the result, or an
// error when the user aborts.
func runPostForm(f *postForm) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Value(&f.Title).
				Validate(func(s string) error {
					if len(strings.TrimSpace(s)) < 3 {
						return fmt.Errorf("title needs at least 3 characters")
					}
					return nil
				}),
			huh.NewText().
				Title("Content").
				Description("Markdown is rendered by the web front end").
				Value(&f.Content).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("content is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Tags").
				Description("Comma-separated, e.g. go,terminal").
				Value(&f.Tags),
			huh.NewInput().
				Title("Thumbnail URL").
				Value(&f.Thumbnail),
			huh.NewConfirm().
				Title("Feature this post?").
				Value(&f.Featured),
			huh.NewSelect[string]().
				Title("Status").
				Options(
					huh.NewOption("Published", string(blog.PostPublished)),
					huh.NewOption("Draft", string(blog.PostDraft)),
					huh.NewOption("Archived", string(blog.PostArchived)),
				).
				Value(&f.Status),
		),
	).Run()
}

// splitTags turns the comma-separated form field into a tag slice.
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// runNewPost writes and submits a new post.
func runNewPost(cmd *cobra.Command, args []string) {
	app, err := newApp(false)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	if _, err := app.requireSession(); err != nil {
		fatal(err)
	}

	f := postForm{Status: string(blog.PostDraft)}
	if err := runPostForm(&f); err != nil {
		fatal(err)
	}

	in := api.CreatePostInput{
		Title:      f.Title,
		Content:    f.Content,
		IsFeatured: f.Featured,
		Status:     blog.PostStatus(f.Status),
		Tags:       splitTags(f.Tags),
	}
	if t := strings.TrimSpace(f.Thumbnail); t != "" {
		in.Thumbnail = &t
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	var created *blog.Post
	err = app.Queries.Run(ctx, query.MutCreatePost, func(ctx context.Context) error {
		var err error
		created, err = app.Client.CreatePost(ctx, in)
		return err
	})
	if err != nil {
		fatal(err)
	}
	app.Logger.Info("post created", "id", created.ID, "status", created.Status)
	fmt.Printf("Created %q (%s)\n", created.Title, created.Status)
}

// runEditPost loads a post, pre-fills the form, and patches only the
// fields that changed.
func runEditPost(cmd *cobra.Command, args []string) {
	app, err := newApp(false)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	if _, err := app.requireSession(); err != nil {
		fatal(err)
	}

	id := args[0]
	loadCtx, cancelLoad := context.WithTimeout(context.Background(), requestTimeout)
	post, err := app.Client.GetPost(loadCtx, id)
	cancelLoad()
	if err != nil {
		fatal(err)
	}

	f := postForm{
		Title:    post.Title,
		Content:  post.Content,
		Tags:     strings.Join(post.Tags, ","),
		Featured: post.IsFeatured,
		Status:   string(post.Status),
	}
	if post.Thumbnail != nil {
		f.Thumbnail = *post.Thumbnail
	}
	if err := runPostForm(&f); err != nil {
		fatal(err)
	}

	in := diffPost(post, f)
	if emptyPatch(in) {
		fmt.Println("No changes.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	err = app.Queries.Run(ctx, query.MutUpdatePost, func(ctx context.Context) error {
		_, err := app.Client.UpdatePost(ctx, id, in)
		return err
	})
	if err != nil {
		fatal(err)
	}
	app.Logger.Info("post updated", "id", id)
	fmt.Printf("Updated %q\n", f.Title)
}

// diffPost builds a patch holding only the fields the form changed.
func diffPost(post *blog.Post, f postForm) api.UpdatePostInput {
	var in api.UpdatePostInput
	if f.Title != post.Title {
		in.Title = &f.Title
	}
	if f.Content != post.Content {
		in.Content = &f.Content
	}
	thumb := strings.TrimSpace(f.Thumbnail)
	current := ""
	if post.Thumbnail != nil {
		current = *post.Thumbnail
	}
	if thumb != current && thumb != "" {
		in.Thumbnail = &thumb
	}
	if f.Featured != post.IsFeatured {
		in.IsFeatured = &f.Featured
	}
	if f.Status != string(post.Status) {
		status := blog.PostStatus(f.Status)
		in.Status = &status
	}
	if tags := splitTags(f.Tags); !equalTags(tags, post.Tags) {
		in.Tags = tags
	}
	return in
}

// emptyPatch reports whether the patch would change nothing.
func emptyPatch(in api.UpdatePostInput) bool {
	return in.Title == nil && in.Content == nil && in.Thumbnail == nil &&
		in.IsFeatured == nil && in.Status == nil && in.Tags == nil
}

// equalTags compares two tag slices in order.
func equalTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// runDeletePost deletes a post after confirmation.
func runDeletePost(cmd *cobra.Command, args []string) {
	app, err := newApp(false)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	if _, err := app.requireSession(); err != nil {
		fatal(err)
	}

	id := args[0]
	force, _ := cmd.Flags().GetBool("force")
	if !force {
		var confirmed bool
		err := huh.NewConfirm().
			Title(fmt.Sprintf("Delete post %s?", id)).
			Description("Its comments go with it. This cannot be undone.").
			Value(&confirmed).
			Run()
		if err != nil {
			fatal(err)
		}
		if !confirmed {
			fmt.Println("Aborted.")
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	err = app.Queries.Run(ctx, query.MutDeletePost, func(ctx context.Context) error {
		return app.Client.DeletePost(ctx, id)
	})
	if err != nil {
		fatal(err)
	}
	app.Logger.Info("post deleted", "id", id)
	fmt.Println("Deleted.")
}
