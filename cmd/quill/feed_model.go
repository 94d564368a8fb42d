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
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quillworks/quill/pkg/api"
	"github.com/quillworks/quill/pkg/blog"
	"github.com/quillworks/quill/pkg/feed"
	"github.com/quillworks/quill/pkg/query"
)

// requestTimeout bounds every fetch a TUI command issues.
const requestTimeout = 30 * time.Second

// =============================================================================
// Messages
// =============================================================================

// pageLoadedMsg reports a finished pager load.
type pageLoadedMsg struct {
	err error
}

// groupInvalidatedMsg tells a view its query group went stale.
type groupInvalidatedMsg struct {
	tag query.Tag
}

// sessionChangedMsg reports that the session file was rewritten by
// another process.
type sessionChangedMsg struct{}

// openThreadMsg asks the browse shell to open a post's thread.
type openThreadMsg struct {
	postID string
}

// closeThreadMsg asks the browse shell to return to the feed.
type closeThreadMsg struct{}

// =============================================================================
// Feed Model
// =============================================================================

// feedModel is the infinite-scroll home feed: newest posts first,
// filterable by search text, a tag, and the featured flag.
type feedModel struct {
	app *App

	filters api.PostFilters
	pager   *feed.InfinitePager[blog.Post]

	cursor  int
	tags    []string
	tagIdx  int // -1 means no tag filter
	loading bool
	errMsg  string

	searching   bool
	searchInput textinput.Model

	invalidated chan query.Key
	cancelSub   func()

	width  int
	height int
}

// newFeedModel creates the feed view and subscribes it to the posts
// query group.
func newFeedModel(app *App, filters api.PostFilters) feedModel {
	if filters.Limit <= 0 {
		filters.Limit = app.Config.Feed.PageLimit
	}

	input := textinput.New()
	input.Placeholder = "search posts"
	input.CharLimit = 120

	m := feedModel{
		app:         app,
		filters:     filters,
		tagIdx:      -1,
		loading:     true,
		searchInput: input,
		invalidated: make(chan query.Key, 8),
	}
	m.pager = feed.NewInfinitePager(m.fetchPage(filters), postID)
	m.cancelSub = app.Queries.Subscribe(query.PostsKey(filters.WithoutPage().Fingerprint()), func(k query.Key) {
		select {
		case m.invalidated <- k:
		default:
		}
	})
	return m
}

func postID(p blog.Post) string { return p.ID }

// fetchPage builds the pager's fetch for a filter set, routed through
// the query cache so identical fetches coalesce.
func (m feedModel) fetchPage(filters api.PostFilters) feed.FetchPage[blog.Post] {
	app := m.app
	return func(ctx context.Context, page int) (feed.Page[blog.Post], error) {
		f := filters
		f.Page = page
		key := query.PostsKey(f.Fingerprint())
		return query.FetchAs(ctx, app.Queries, key, func(ctx context.Context) (feed.Page[blog.Post], error) {
			posts, meta, err := app.Client.ListPosts(ctx, f)
			if err != nil {
				return feed.Page[blog.Post]{}, err
			}
			return feed.Page[blog.Post]{Items: posts, Meta: meta}, nil
		})
	}
}

// Init kicks off the first page load and the invalidation listener.
func (m feedModel) Init() tea.Cmd {
	return tea.Batch(m.loadMore(), m.waitInvalidate())
}

// loadMore fetches the pager's next page off the event loop.
func (m feedModel) loadMore() tea.Cmd {
	pager := m.pager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return pageLoadedMsg{err: pager.LoadMore(ctx)}
	}
}

// waitInvalidate re-arms the invalidation listener.
func (m feedModel) waitInvalidate() tea.Cmd {
	ch := m.invalidated
	return func() tea.Msg {
		k, ok := <-ch
		if !ok {
			return nil
		}
		return groupInvalidatedMsg{tag: k.Tag}
	}
}

// Update handles messages for the feed view.
func (m feedModel) Update(msg tea.Msg) (feedModel, tea.Cmd) {
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
		m.tags = feed.Tags(m.pager.Items())
		if n := len(m.pager.Items()); m.cursor >= n && n > 0 {
			m.cursor = n - 1
		}
		return m, nil

	case groupInvalidatedMsg:
		// The feed re-fetches from page one; accumulated pages would
		// otherwise mix stale and fresh ordering.
		next, cmd := m.reload()
		return next, tea.Batch(cmd, next.waitInvalidate())

	case sessionChangedMsg:
		return m.reload()

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.pager.Items())-1 {
				m.cursor++
			}
			// Nearing the bottom fetches the next page ahead of the
			// scroll.
			if !m.loading && m.pager.HasNext() && m.cursor >= len(m.pager.Items())-2 {
				m.loading = true
				return m, m.loadMore()
			}
		case "enter":
			if post, ok := m.selected(); ok {
				id := post.ID
				return m, func() tea.Msg { return openThreadMsg{postID: id} }
			}
		case "/":
			m.searching = true
			m.searchInput.SetValue(m.filters.Search)
			m.searchInput.Focus()
			return m, textinput.Blink
		case "t":
			return m.cycleTag()
		case "f":
			return m.toggleFeatured()
		case "r":
			return m.reload()
		}
	}
	return m, nil
}

// updateSearch handles keys while the search input is focused.
func (m feedModel) updateSearch(msg tea.KeyMsg) (feedModel, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.searchInput.Blur()
		m.filters.Search = strings.TrimSpace(m.searchInput.Value())
		return m.reload()
	case "esc":
		m.searching = false
		m.searchInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// cycleTag steps the tag filter through the tags seen so far:
// none -> first -> ... -> last -> none.
func (m feedModel) cycleTag() (feedModel, tea.Cmd) {
	if len(m.tags) == 0 {
		return m, nil
	}
	m.tagIdx++
	if m.tagIdx >= len(m.tags) {
		m.tagIdx = -1
		m.filters.Tags = nil
	} else {
		m.filters.Tags = []string{m.tags[m.tagIdx]}
	}
	return m.reload()
}

// toggleFeatured flips the featured-only filter.
func (m feedModel) toggleFeatured() (feedModel, tea.Cmd) {
	if m.filters.IsFeatured == nil {
		featured := true
		m.filters.IsFeatured = &featured
	} else {
		m.filters.IsFeatured = nil
	}
	return m.reload()
}

// reload restarts the pager from page one with the current filters.
func (m feedModel) reload() (feedModel, tea.Cmd) {
	m.pager.Reset(m.fetchPage(m.filters))
	m.cursor = 0
	m.loading = true
	return m, m.loadMore()
}

// close drops the view's query subscription.
func (m feedModel) close() {
	if m.cancelSub != nil {
		m.cancelSub()
	}
}

// View renders the feed.
func (m feedModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Quill — Feed"))
	b.WriteString("  " + dimStyle.Render(m.filterSummary()))
	b.WriteString("\n\n")

	if m.searching {
		b.WriteString("  / " + m.searchInput.View() + "\n\n")
	}

	items := m.pager.Items()
	if len(items) == 0 && !m.loading {
		b.WriteString(dimStyle.Render("  No posts match the current filters.\n"))
	}

	for i, post := range items {
		line := m.renderPost(post)
		if i == m.cursor {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}

	if m.loading {
		b.WriteString(dimStyle.Render("  loading…\n"))
	}

	b.WriteString("\n")
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("  "+m.errMsg) + "\n")
	}
	b.WriteString(helpStyle.Render("  enter: read  /: search  t: tag  f: featured  r: refresh  q: quit"))
	return b.String()
}

// renderPost formats one feed row.
func (m feedModel) renderPost(post blog.Post) string {
	author := "Anonymous"
	if post.Author != nil {
		author = post.Author.DisplayName()
	}
	row := fmt.Sprintf("%s — %s, %s", post.Title, author, post.CreatedAt.Format("Jan 2 2006"))
	if post.IsFeatured {
		row += " " + featuredStyle.Render("★")
	}
	if len(post.Tags) > 0 {
		row += " " + tagStyle.Render("["+strings.Join(post.Tags, ", ")+"]")
	}
	return row
}

// filterSummary describes the active filters for the header.
func (m feedModel) filterSummary() string {
	var parts []string
	if m.filters.Search != "" {
		parts = append(parts, fmt.Sprintf("search %q", m.filters.Search))
	}
	if len(m.filters.Tags) > 0 {
		parts = append(parts, "tag "+m.filters.Tags[0])
	}
	if m.filters.IsFeatured != nil && *m.filters.IsFeatured {
		parts = append(parts, "featured")
	}
	if total := m.pager.Total(); total > 0 {
		parts = append(parts, fmt.Sprintf("%d/%d posts", len(m.pager.Items()), total))
	}
	if len(parts) == 0 {
		return "all posts"
	}
	return strings.Join(parts, " · ")
}

// selected returns the post under the cursor.
func (m feedModel) selected() (blog.Post, bool) {
	items := m.pager.Items()
	if m.cursor < 0 || m.cursor >= len(items) {
		return blog.Post{}, false
	}
	return items[m.cursor], true
}

// describeError turns an API error into a one-line status notice.
func describeError(err error) string {
	switch api.KindOf(err) {
	case api.ErrKindUnauthorized:
		return "Not authorized — run 'quill login'"
	case api.ErrKindForbidden:
		return "Permission denied"
	case api.ErrKindNotFound:
		return "Not found"
	case api.ErrKindValidation:
		return "Invalid input: " + err.Error()
	case api.ErrKindTransport:
		return "Network error: " + err.Error()
	default:
		return err.Error()
	}
}
