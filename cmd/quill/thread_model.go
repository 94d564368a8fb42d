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

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/quillworks/quill/pkg/api"
	"github.com/quillworks/quill/pkg/blog"
	"github.com/quillworks/quill/pkg/blog/thread"
	"github.com/quillworks/quill/pkg/query"
)

// =============================================================================
// Messages
// =============================================================================

// postLoadedMsg carries a fetched post with its comment thread.
type postLoadedMsg struct {
	post *blog.Post
	err  error
}

// mutationDoneMsg reports a finished write operation.
type mutationDoneMsg struct {
	name string
	err  error
}

// =============================================================================
// Thread Model
// =============================================================================

// threadMode is the view's input state.
type threadMode int

const (
	threadBrowsing threadMode = iota
	threadComposing
	threadConfirming
)

// composeKind distinguishes what the textarea submits as.
type composeKind int

const (
	composeReply composeKind = iota
	composeEdit
)

// threadModel shows one post with its nested comment thread. Every
// action key is gated through the permission evaluator, so the view
// never offers an operation the server would refuse.
type threadModel struct {
	app    *App
	postID string

	post  *blog.Post
	lines []thread.Line

	cursor  int
	mode    threadMode
	loading bool
	errMsg  string
	notice  string

	compose     textarea.Model
	composeAs   composeKind
	composeRef  string // comment being edited, or reply parent ("" = root)
	confirmID   string // comment pending deletion
	pendingName string

	invalidated chan query.Key
	cancelSub   func()

	width  int
	height int
}

// newThreadModel creates the thread view for a post and subscribes it
// to the single-post query group.
func newThreadModel(app *App, postID string) threadModel {
	ta := textarea.New()
	ta.Placeholder = "write a comment"
	ta.SetHeight(4)
	ta.CharLimit = 4000

	m := threadModel{
		app:         app,
		postID:      postID,
		loading:     true,
		compose:     ta,
		invalidated: make(chan query.Key, 8),
	}
	m.cancelSub = app.Queries.Subscribe(query.PostKey(postID), func(k query.Key) {
		select {
		case m.invalidated <- k:
		default:
		}
	})
	return m
}

// Init starts the post load and the invalidation listener.
func (m threadModel) Init() tea.Cmd {
	return tea.Batch(m.loadPost(), m.waitInvalidate())
}

// loadPost fetches the post (comments included) through the query
// cache.
func (m threadModel) loadPost() tea.Cmd {
	app := m.app
	id := m.postID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		post, err := query.FetchAs(ctx, app.Queries, query.PostKey(id),
			func(ctx context.Context) (*blog.Post, error) {
				return app.Client.GetPost(ctx, id)
			})
		return postLoadedMsg{post: post, err: err}
	}
}

// waitInvalidate re-arms the invalidation listener.
func (m threadModel) waitInvalidate() tea.Cmd {
	ch := m.invalidated
	return func() tea.Msg {
		k, ok := <-ch
		if !ok {
			return nil
		}
		return groupInvalidatedMsg{tag: k.Tag}
	}
}

// runMutation executes a write through the coordinator off the event
// loop. The invalidation set fires only on success.
func (m threadModel) runMutation(mut query.Mutation, fn func(ctx context.Context) error) tea.Cmd {
	app := m.app
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := app.Queries.Run(ctx, mut, fn)
		return mutationDoneMsg{name: mut.Name, err: err}
	}
}

// Update handles messages for the thread view.
func (m threadModel) Update(msg tea.Msg) (threadModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.compose.SetWidth(max(20, m.width-8))
		return m, nil

	case postLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = describeError(msg.err)
			return m, nil
		}
		m.errMsg = ""
		m.post = msg.post
		m.lines = thread.Flatten(thread.Build(msg.post.Comments))
		if n := len(m.lines); m.cursor >= n && n > 0 {
			m.cursor = n - 1
		}
		return m, nil

	case groupInvalidatedMsg:
		m.loading = true
		return m, tea.Batch(m.loadPost(), m.waitInvalidate())

	case sessionChangedMsg:
		// Capabilities depend on who is logged in.
		m.loading = true
		return m, m.loadPost()

	case mutationDoneMsg:
		m.pendingName = ""
		if msg.err != nil {
			m.errMsg = describeError(msg.err)
			return m, nil
		}
		m.errMsg = ""
		m.notice = "done"
		// Moderation invalidates the feed and queue groups, not this
		// post's own entry, so expire it before the refresh or the
		// reload would repaint the pre-moderation tree from cache.
		if msg.name == query.MutSetCommentStatus.Name {
			m.app.Queries.Expire(query.PostKey(m.postID))
		}
		m.loading = true
		return m, m.loadPost()

	case tea.KeyMsg:
		switch m.mode {
		case threadComposing:
			return m.updateCompose(msg)
		case threadConfirming:
			return m.updateConfirm(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

// updateBrowsing handles keys in the normal navigation state.
func (m threadModel) updateBrowsing(msg tea.KeyMsg) (threadModel, tea.Cmd) {
	actor := m.app.Sessions.Current().Actor()

	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.lines)-1 {
			m.cursor++
		}
	case "esc", "q":
		return m, func() tea.Msg { return closeThreadMsg{} }
	case "c":
		// Top-level comment on the post.
		if actor == nil {
			m.errMsg = "Log in to comment"
			return m, nil
		}
		return m.startCompose(composeReply, "", ""), textarea.Blink
	case "r":
		if line, ok := m.selectedLine(); ok {
			if !blog.Evaluate(actor, line.Node.Comment).Has(blog.CapReply) {
				m.errMsg = "Log in to reply"
				return m, nil
			}
			return m.startCompose(composeReply, line.Node.ID, ""), textarea.Blink
		}
	case "e":
		if line, ok := m.selectedLine(); ok {
			if !blog.Evaluate(actor, line.Node.Comment).Has(blog.CapEdit) {
				m.errMsg = "You can only edit your own comments"
				return m, nil
			}
			return m.startCompose(composeEdit, line.Node.ID, line.Node.Content), textarea.Blink
		}
	case "d":
		if line, ok := m.selectedLine(); ok {
			if !blog.Evaluate(actor, line.Node.Comment).Has(blog.CapDelete) {
				m.errMsg = "You can only delete your own comments"
				return m, nil
			}
			m.mode = threadConfirming
			m.confirmID = line.Node.ID
		}
	case "a":
		if line, ok := m.selectedLine(); ok {
			if !blog.Evaluate(actor, line.Node.Comment).Has(blog.CapApprove) {
				m.errMsg = "Approve is admin-only, for rejected comments"
				return m, nil
			}
			return m.moderate(line.Node.ID, blog.CommentApproved)
		}
	case "x":
		if line, ok := m.selectedLine(); ok {
			if !blog.Evaluate(actor, line.Node.Comment).Has(blog.CapReject) {
				m.errMsg = "Reject is admin-only, for approved comments"
				return m, nil
			}
			return m.moderate(line.Node.ID, blog.CommentRejected)
		}
	}
	return m, nil
}

// startCompose opens the textarea for a reply or an edit.
func (m threadModel) startCompose(kind composeKind, ref, initial string) threadModel {
	m.mode = threadComposing
	m.composeAs = kind
	m.composeRef = ref
	m.compose.SetValue(initial)
	m.compose.Focus()
	m.errMsg = ""
	m.notice = ""
	return m
}

// updateCompose handles keys while the textarea is focused.
func (m threadModel) updateCompose(msg tea.KeyMsg) (threadModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = threadBrowsing
		m.compose.Blur()
		return m, nil
	case "ctrl+s":
		content := strings.TrimSpace(m.compose.Value())
		if content == "" {
			m.errMsg = "Comment content is required"
			return m, nil
		}
		m.mode = threadBrowsing
		m.compose.Blur()
		return m.submitCompose(content)
	}
	var cmd tea.Cmd
	m.compose, cmd = m.compose.Update(msg)
	return m, cmd
}

// submitCompose fires the create or update mutation.
func (m threadModel) submitCompose(content string) (threadModel, tea.Cmd) {
	app := m.app
	switch m.composeAs {
	case composeEdit:
		id := m.composeRef
		m.pendingName = query.MutUpdateComment.Name
		return m, m.runMutation(query.MutUpdateComment, func(ctx context.Context) error {
			_, err := app.Client.UpdateComment(ctx, id, content)
			return err
		})
	default:
		in := api.CreateCommentInput{Content: content, PostID: m.postID}
		if m.composeRef != "" {
			parent := m.composeRef
			in.ParentID = &parent
		}
		m.pendingName = query.MutCreateComment.Name
		return m, m.runMutation(query.MutCreateComment, func(ctx context.Context) error {
			_, err := app.Client.CreateComment(ctx, in)
			return err
		})
	}
}

// updateConfirm handles the delete confirmation prompt.
func (m threadModel) updateConfirm(msg tea.KeyMsg) (threadModel, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		id := m.confirmID
		app := m.app
		m.mode = threadBrowsing
		m.confirmID = ""
		m.pendingName = query.MutDeleteComment.Name
		return m, m.runMutation(query.MutDeleteComment, func(ctx context.Context) error {
			return app.Client.DeleteComment(ctx, id)
		})
	case "n", "N", "esc":
		m.mode = threadBrowsing
		m.confirmID = ""
	}
	return m, nil
}

// moderate fires the status-change mutation.
func (m threadModel) moderate(id string, status blog.CommentStatus) (threadModel, tea.Cmd) {
	app := m.app
	m.pendingName = query.MutSetCommentStatus.Name
	return m, m.runMutation(query.MutSetCommentStatus, func(ctx context.Context) error {
		_, err := app.Client.SetCommentStatus(ctx, id, status)
		return err
	})
}

// close drops the view's query subscription.
func (m threadModel) close() {
	if m.cancelSub != nil {
		m.cancelSub()
	}
}

// selectedLine returns the comment line under the cursor.
func (m threadModel) selectedLine() (thread.Line, bool) {
	if m.cursor < 0 || m.cursor >= len(m.lines) {
		return thread.Line{}, false
	}
	return m.lines[m.cursor], true
}

// View renders the post and its thread.
func (m threadModel) View() string {
	var b strings.Builder

	if m.post == nil {
		if m.loading {
			return dimStyle.Render("  loading…")
		}
		if m.errMsg != "" {
			return errorStyle.Render("  " + m.errMsg)
		}
		return dimStyle.Render("  Post not found.")
	}

	b.WriteString(titleStyle.Render(m.post.Title))
	author := "Anonymous"
	if m.post.Author != nil {
		author = m.post.Author.DisplayName()
	}
	b.WriteString("  " + dimStyle.Render(fmt.Sprintf("%s · %s · %d views",
		author, m.post.CreatedAt.Format("Jan 2 2006"), m.post.Views)))
	b.WriteString("\n\n")
	b.WriteString(m.post.Content)
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render(fmt.Sprintf("Comments (%d)", len(m.lines))))
	b.WriteString("\n")

	if len(m.lines) == 0 {
		b.WriteString(dimStyle.Render("  No comments yet.\n"))
	}
	for i, line := range m.lines {
		row := m.renderComment(line)
		if i == m.cursor {
			row = selectedStyle.Render(">") + row[1:]
		}
		b.WriteString(row + "\n")
	}

	switch m.mode {
	case threadComposing:
		label := "Reply"
		if m.composeAs == composeEdit {
			label = "Edit"
		}
		b.WriteString("\n" + titleStyle.Render(label) + "\n")
		b.WriteString(m.compose.View() + "\n")
		b.WriteString(helpStyle.Render("  ctrl+s: submit  esc: cancel"))
	case threadConfirming:
		b.WriteString("\n" + errorStyle.Render("  Delete this comment? (y/n)"))
	default:
		if m.loading {
			b.WriteString(dimStyle.Render("  refreshing…\n"))
		}
		if m.errMsg != "" {
			b.WriteString(errorStyle.Render("  "+m.errMsg) + "\n")
		} else if m.notice != "" {
			b.WriteString(statusBarStyle.Render(m.notice) + "\n")
		}
		b.WriteString(helpStyle.Render("  " + m.keyHints()))
	}
	return b.String()
}

// renderComment formats one thread line with indentation by depth.
func (m threadModel) renderComment(line thread.Line) string {
	indent := strings.Repeat("  ", line.Depth)
	author := "Anonymous"
	if line.Node.Author != nil {
		author = line.Node.Author.DisplayName()
	}
	row := fmt.Sprintf("  %s%s: %s", indent, author, line.Node.Content)
	if line.Node.Status != blog.CommentApproved {
		row += " " + statusBadge(false)
	} else if actor := m.app.Sessions.Current().Actor(); actor != nil && actor.Role == blog.RoleAdmin {
		// Only admins see the approved badge; readers just see the
		// comment.
		row += " " + statusBadge(true)
	}
	return row
}

// keyHints lists only the actions the actor could take on the
// selected comment.
func (m threadModel) keyHints() string {
	hints := []string{"c: comment"}
	actor := m.app.Sessions.Current().Actor()
	if line, ok := m.selectedLine(); ok {
		caps := blog.Evaluate(actor, line.Node.Comment)
		if caps.Has(blog.CapReply) {
			hints = append(hints, "r: reply")
		}
		if caps.Has(blog.CapEdit) {
			hints = append(hints, "e: edit")
		}
		if caps.Has(blog.CapDelete) {
			hints = append(hints, "d: delete")
		}
		if caps.Has(blog.CapApprove) {
			hints = append(hints, "a: approve")
		}
		if caps.Has(blog.CapReject) {
			hints = append(hints, "x: reject")
		}
	}
	hints = append(hints, "esc: back")
	return strings.Join(hints, "  ")
}
