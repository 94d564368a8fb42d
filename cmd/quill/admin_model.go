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

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quillworks/quill/pkg/api"
	"github.com/quillworks/quill/pkg/blog"
	"github.com/quillworks/quill/pkg/feed"
	"github.com/quillworks/quill/pkg/query"
)

// =============================================================================
// Moderation Model
// =============================================================================

// adminModel is the comment moderation table: every comment on the
// site, one page at a time, with approve/reject/delete actions.
type adminModel struct {
	app *App

	filters api.CommentFilters
	pager   *feed.OffsetPager[blog.Comment]

	cursor    int
	loading   bool
	errMsg    string
	confirmID string

	searching   bool
	searchInput textinput.Model

	invalidated chan query.Key
	cancelSub   func()

	width  int
	height int
}

// statusCycle is the order the status filter steps through.
var statusCycle = []blog.CommentStatus{"", blog.CommentApproved, blog.CommentRejected}

// newAdminModel creates the moderation view and subscribes it to the
// admin comments query group.
func newAdminModel(app *App, filters api.CommentFilters) adminModel {
	if filters.Limit <= 0 {
		filters.Limit = app.Config.Feed.AdminPageLimit
	}
	if filters.Page <= 0 {
		filters.Page = 1
	}

	input := textinput.New()
	input.Placeholder = "search comments"
	input.CharLimit = 120

	m := adminModel{
		app:         app,
		filters:     filters,
		loading:     true,
		searchInput: input,
		invalidated: make(chan query.Key, 8),
	}
	m.pager = feed.NewOffsetPager(m.fetchPage(filters))
	m.cancelSub = app.Queries.Subscribe(query.CommentsKey(""), func(k query.Key) {
		select {
		case m.invalidated <- k:
		default:
		}
	})
	return m
}

// fetchPage routes the listing through the query cache.
func (m adminModel) fetchPage(filters api.CommentFilters) feed.FetchPage[blog.Comment] {
	app := m.app
	return func(ctx context.Context, page int) (feed.Page[blog.Comment], error) {
		f := filters
		f.Page = page
		key := query.CommentsKey(f.Fingerprint())
		return query.FetchAs(ctx, app.Queries, key, func(ctx context.Context) (feed.Page[blog.Comment], error) {
			comments, meta, err := app.Client.ListAllComments(ctx, f)
			if err != nil {
				return feed.Page[blog.Comment]{}, err
			}
			return feed.Page[blog.Comment]{Items: comments, Meta: meta}, nil
		})
	}
}

// Init starts the first page load and the invalidation listener.
func (m adminModel) Init() tea.Cmd {
	return tea.Batch(m.load(), m.waitInvalidate())
}

// load fetches the pager's current page off the event loop.
func (m adminModel) load() tea.Cmd {
	pager := m.pager
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return pageLoadedMsg{err: pager.Load(ctx)}
	}
}

// turnPage moves the pager one page in either direction.
func (m adminModel) turnPage(forward bool) tea.Cmd {
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
func (m adminModel) waitInvalidate() tea.Cmd {
	ch := m.invalidated
	return func() tea.Msg {
		k, ok := <-ch
		if !ok {
			return nil
		}
		return groupInvalidatedMsg{tag: k.Tag}
	}
}

// runMutation executes a write through the coordinator.
func (m adminModel) runMutation(mut query.Mutation, fn func(ctx context.Context) error) tea.Cmd {
	app := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := app.Queries.Run(ctx, mut, fn)
		return mutationDoneMsg{name: mut.Name, err: err}
	}
}

// Update handles messages for the moderation view.
func (m adminModel) Update(msg tea.Msg) (adminModel, tea.Cmd) {
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
		if m.searching {
			return m.updateSearch(msg)
		}
		if m.confirmID != "" {
			return m.updateConfirm(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

// updateBrowsing handles keys in the normal navigation state.
func (m adminModel) updateBrowsing(msg tea.KeyMsg) (adminModel, tea.Cmd) {
	actor := m.app.Sessions.Current().Actor()

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
	case "/":
		m.searching = true
		m.searchInput.SetValue(m.filters.Search)
		m.searchInput.Focus()
		return m, textinput.Blink
	case "s":
		return m.cycleStatus()
	case "a":
		if c, ok := m.selected(); ok {
			if !blog.Evaluate(actor, c).Has(blog.CapApprove) {
				m.errMsg = "Already approved"
				return m, nil
			}
			return m.moderate(c.ID, blog.CommentApproved)
		}
	case "x":
		if c, ok := m.selected(); ok {
			if !blog.Evaluate(actor, c).Has(blog.CapReject) {
				m.errMsg = "Already rejected"
				return m, nil
			}
			return m.moderate(c.ID, blog.CommentRejected)
		}
	case "d":
		if c, ok := m.selected(); ok {
			m.confirmID = c.ID
		}
	}
	return m, nil
}

// updateSearch handles keys while the search input is focused.
func (m adminModel) updateSearch(msg tea.KeyMsg) (adminModel, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.searchInput.Blur()
		m.filters.Search = strings.TrimSpace(m.searchInput.Value())
		return m.applyFilters()
	case "esc":
		m.searching = false
		m.searchInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

// updateConfirm handles the delete confirmation prompt.
func (m adminModel) updateConfirm(msg tea.KeyMsg) (adminModel, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		id := m.confirmID
		app := m.app
		m.confirmID = ""
		return m, m.runMutation(query.MutDeleteComment, func(ctx context.Context) error {
			return app.Client.DeleteComment(ctx, id)
		})
	case "n", "N", "esc":
		m.confirmID = ""
	}
	return m, nil
}

// cycleStatus steps ALL -> APPROVED -> REJECTED -> ALL.
func (m adminModel) cycleStatus() (adminModel, tea.Cmd) {
	for i, s := range statusCycle {
		if m.filters.Status == s {
			m.filters.Status = statusCycle[(i+1)%len(statusCycle)]
			return m.applyFilters()
		}
	}
	m.filters.Status = statusCycle[0]
	return m.applyFilters()
}

// applyFilters restarts the pager on page one with the new filters.
func (m adminModel) applyFilters() (adminModel, tea.Cmd) {
	m.filters.Page = 1
	m.pager.Reset(m.fetchPage(m.filters))
	m.cursor = 0
	m.loading = true
	return m, m.load()
}

// moderate fires the status-change mutation.
func (m adminModel) moderate(id string, status blog.CommentStatus) (adminModel, tea.Cmd) {
	app := m.app
	return m, m.runMutation(query.MutSetCommentStatus, func(ctx context.Context) error {
		_, err := app.Client.SetCommentStatus(ctx, id, status)
		return err
	})
}

// close drops the view's query subscription.
func (m adminModel) close() {
	if m.cancelSub != nil {
		m.cancelSub()
	}
}

// selected returns the comment under the cursor.
func (m adminModel) selected() (blog.Comment, bool) {
	items := m.pager.Items()
	if m.cursor < 0 || m.cursor >= len(items) {
		return blog.Comment{}, false
	}
	return items[m.cursor], true
}

// View renders the moderation table.
func (m adminModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Quill — Moderation"))
	b.WriteString("  " + dimStyle.Render(m.filterSummary()))
	b.WriteString("\n\n")

	if m.searching {
		b.WriteString("  / " + m.searchInput.View() + "\n\n")
	}

	items := m.pager.Items()
	if len(items) == 0 && !m.loading {
		b.WriteString(dimStyle.Render("  No comments match.\n"))
	}
	for i, c := range items {
		row := m.renderComment(c)
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
		b.WriteString(errorStyle.Render("  Delete this comment? (y/n)") + "\n")
	}
	if m.errMsg != "" {
		b.WriteString(errorStyle.Render("  "+m.errMsg) + "\n")
	}
	b.WriteString(helpStyle.Render(
		"  a: approve  x: reject  d: delete  s: status  /: search  h/l: page  q: quit"))
	return b.String()
}

// renderComment formats one table row.
func (m adminModel) renderComment(c blog.Comment) string {
	author := "Anonymous"
	if c.Author != nil {
		author = c.Author.DisplayName()
	}
	post := ""
	if c.Post != nil {
		post = " on " + c.Post.Title
	}
	content := truncate(c.Content, 58)
	return fmt.Sprintf("%s %s%s: %s",
		statusBadge(c.Status == blog.CommentApproved), author, post, content)
}

// filterSummary describes the active filters and page position.
func (m adminModel) filterSummary() string {
	status := "all statuses"
	if m.filters.Status != "" {
		status = strings.ToLower(string(m.filters.Status))
	}
	summary := status
	if m.filters.Search != "" {
		summary += fmt.Sprintf(" · search %q", m.filters.Search)
	}
	if tp := m.pager.TotalPages(); tp > 0 {
		summary += fmt.Sprintf(" · page %d/%d · %d comments", m.pager.Page(), tp, m.pager.Total())
	}
	return summary
}
