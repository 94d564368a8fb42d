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

	tea "github.com/charmbracelet/bubbletea"

	"github.com/quillworks/quill/pkg/api"
	"github.com/quillworks/quill/pkg/blog"
	"github.com/quillworks/quill/pkg/feed"
	"github.com/quillworks/quill/pkg/query"
)

// =============================================================================
// My Posts Model
// =============================================================================

// myPostsModel lists the author's own posts one page at a time,
// drafts and archived included.
type myPostsModel struct {
	app *App

	filters api.PostFilters
	pager   *feed.OffsetPager[blog.Post]

	cursor    int
	loading   bool
	errMsg    string
	confirmID string

	invalidated chan query.Key
	cancelSub   func()

	width  int
	height int
}

// newMyPostsModel creates the view and subscribes it to the my-posts
// query group.
func newMyPostsModel(app *App, filters api.PostFilters) myPostsModel {
	if filters.Limit <= 0 {
		filters.Limit = app.Config.Feed.AdminPageLimit
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}

	m := myPostsModel{
		app:         app,
		filters:     filters,
		loading:     true,
		invalidated: make(chan query.Key, 8),
	}
	m.pager = feed.NewOffsetPager(m.fetchPage(filters))
	m.cancelSub = app.Queries.Subscribe(query.MyPostsKey(""), func(k query.Key) {
		select {
		case m.invalidated <- k:
		default:
		}
	})
	return m
}

// fetchPage routes the listing through the query cache.
func (m myPostsModel) fetchPage(filters api.PostFilters) feed.FetchPage[blog.Post] {
	app := m.app
	return func(ctx context.Context, page int) (feed.Page[blog.Post], error) {
		f := filters
		f.Page = page
		key := query.MyPostsKey(f.Fingerprint())
		return query.FetchAs(ctx, app.Queries, key, func(ctx context.Context) (feed.Page[blog.Post], error) {
			posts, meta, err := app.Client.ListMyPosts(ctx, f)
			if err != nil {
				return feed.Page[blog.Post]{}, err
			}
			return feed.Page[blog.Post]{Items: posts, Meta: meta}, nil
		})
	}
}

// Init starts the first page load and the invalidation listener.
func (m myPostsModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitInvalidate())
}

// load fetches the pager's current page off the event loop.
func (m myPostsModel) load() tea.Cmd {
	pager := m.pager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return pageLoadedMsg{err: pager.Load(ctx)}
	}
}

// turnPage moves the pager one page in either direction.
func (m myPostsModel) turnPage(forward bool) tea.Cmd {
	pager := m.pager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if forward {
			return pageLoadedMsg{err: pager.Next(ctx)}
		}
		return pageLoadedMsg{err: pager.Prev(ctx)}
	}
}

// waitInvalidate re-arms the invalidation listener.
func (m myPostsModel) waitInvalidate() tea.Cmd {
	ch := m.invalidated
	return func() tea.Msg {
		k, ok := <-ch
		if !ok {
			return nil
		}
		return groupInvalidatedMsg{tag: k.Tag}
	}
}

// Update handles messages for the my-posts view.
func (m myPostsModel) Update(msg tea.Msg) (myPostsModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case pageLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = describeError(msg.err)
			return m, nil
		}
		m.errMsg = ""
		if n := len(m.pager.Items()); m.cursor >= n && n > 0 {
			m.cursor = n - 1
		}
		return m, nil

	case groupInvalidatedMsg:
		m.loading = true
		return m, tea.Batch(m.load(), m.waitInvalidate())

	case mutationDoneMsg:
		if msg.err != nil {
			m.errMsg = describeError(msg.err)
			return m, nil
		}
		m.errMsg = ""
		m.loading = true
		return m, m.load()

	case tea.KeyMsg:
		if m.confirmID != "" {
			return m.updateConfirm(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

// updateBrowsing handles keys in the normal navigation state.
func (m myPostsModel) updateBrowsing(msg tea.KeyMsg) (myPostsModel, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.pager.Items())-1 {
			m.cursor++
		}
	case "right", "l", "n":
		m.loading = true
		return m, m.turnPage(true)
	case "left", "h", "p":
		m.loading = true
		return m, m.turnPage(false)
	case "d":
		if p, ok := m.selected(); ok {
			m.confirmID = p.ID
		}
	case "r":
		m.loading = true
		return m, m.load()
	}
	return m, nil
}

// updateConfirm handles the delete confirmation prompt.
func (m myPostsModel) updateConfirm(msg tea.KeyMsg) (myPostsModel, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		id := m.confirmID
		app := m.app
		m.confirmID = ""
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			err := app.Queries.Run(ctx, query.MutDeletePost, func(ctx context.Context) error {
				return app.Client.DeletePost(ctx, id)
			})
			return mutationDoneMsg{name: query.MutDeletePost.Name, err: err}
		}
	case "n", "N", "esc":
		m.confirmID = ""
	}
	return m, nil
}

// close drops the view's query subscription.
func (m myPostsModel) close() {
	if m.cancelSub != nil {
		m.cancelSub()
	}
}

// selected returns the post under the cursor.
func (m myPostsModel) selected() (blog.Post, bool) {
	items := m.pager.Items()
	if m.cursor < 0 || m.cursor >= len(items) {
		return blog.Post{}, false
	}
	return items[m.cursor], true
}

// View renders the post table.
func (m myPostsModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Quill — My Posts"))
	if tp := m.pager.TotalPages(); tp > 0 {
		b.WriteString("  " + dimStyle.Render(fmt.Sprintf(
			"page %d/%d · %d posts", m.pager.Page(), tp, m.pager.Total())))
	}
	b.WriteString("\n\n")

	items := m.pager.Items()
	if len(items) == 0 && !m.loading {
		b.WriteString(dimStyle.Render("  No posts yet. Try `quill posts new`.\n"))
	}
	for i, p := range items {
		row := m.renderPost(p)
		if i == m.cursor {
			row = selectedStyle.Render("> " + row)
		} else {
			row = "  " + row
		}
		b.WriteString(row + "\n")
	}

	if m.loading {
		b.WriteString(dimStyle.Render("  loading…\n"))
	}
	b.WriteString("\n")
	if m.confirmID != "" {
		b.WriteString(errorStyle.Render("  Delete this post? (y/n)") + "\n")
	}
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("  "+m.errMsg) + "\n")
	}
	b.WriteString(helpStyle.Render("  d: delete  h/l: page  r: refresh  q: quit"))
	return b.String()
}

// renderPost formats one table row.
func (m myPostsModel) renderPost(p blog.Post) string {
	status := dimStyle.Render(string(p.Status))
	if p.Status == blog.PostPublished {
		status = approvedStyle.Render(string(p.Status))
	}
	row := fmt.Sprintf("%s  %s %s· %d views · %s",
		status, p.Title, m.renderFeatured(p), p.Views,
		p.UpdatedAt.Format("2006-01-02"))
	return row
}

// renderFeatured returns the featured marker or nothing.
func (m myPostsModel) renderFeatured(p blog.Post) string {
	if !p.IsFeatured {
		return ""
	}
	return featuredStyle.Render("★") + " "
}
