// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/quillworks/quill/pkg/api"
	"github.com/quillworks/quill/pkg/query"
)

// browseShell hosts the feed and, when a post is opened, its thread.
// It owns the switch between the two so each child model stays
// focused on its own view.
type browseShell struct {
	app    *App
	feed   feedModel
	thread *threadModel
	width  int
	height int
}

func newBrowseShell(app *App, filters api.PostFilters) browseShell {
	return browseShell{
		app:  app,
		feed: newFeedModel(app, filters),
	}
}

// Init implements tea.Model.
func (m browseShell) Init() tea.Cmd {
	return m.feed.Init()
}

// Update implements tea.Model.
func (m browseShell) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Both children track the size.
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		cmds = append(cmds, cmd)
		if m.thread != nil {
			t, cmd := m.thread.Update(msg)
			m.thread = &t
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.thread == nil && msg.String() == "q" && !m.feed.searching {
			return m, tea.Quit
		}

	case groupInvalidatedMsg:
		// Route by group: the feed listens on posts, the thread on
		// its single post.
		if msg.tag == query.TagPosts {
			var cmd tea.Cmd
			m.feed, cmd = m.feed.Update(msg)
			return m, cmd
		}
		if m.thread != nil {
			t, cmd := m.thread.Update(msg)
			m.thread = &t
			return m, cmd
		}
		return m, nil

	case openThreadMsg:
		t := newThreadModel(m.app, msg.postID)
		m.thread = &t
		return m, t.Init()

	case closeThreadMsg:
		if m.thread != nil {
			m.thread.close()
			m.thread = nil
		}
		return m, nil

	case sessionChangedMsg:
		// Fan out so both views refresh their affordances.
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.feed, cmd = m.feed.Update(msg)
		cmds = append(cmds, cmd)
		if m.thread != nil {
			t, cmd := m.thread.Update(msg)
			m.thread = &t
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	if m.thread != nil {
		t, cmd := m.thread.Update(msg)
		m.thread = &t
		return m, cmd
	}
	var cmd tea.Cmd
	m.feed, cmd = m.feed.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m browseShell) View() string {
	if m.thread != nil {
		return m.thread.View()
	}
	return m.feed.View()
}

// runBrowse starts the interactive feed, or prints the first page
// when stdout is not a terminal.
func runBrowse(cmd *cobra.Command, args []string) {
	app, err := newApp(true)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	filters := api.PostFilters{Search: searchTerm}
	if tagFilter != "" {
		filters.Tags = []string{tagFilter}
	}
	if featuredOnly {
		featured := true
		filters.IsFeatured = &featured
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		printFeedPlain(app, filters)
		return
	}

	p := tea.NewProgram(newBrowseShell(app, filters), tea.WithAltScreen())
	app.WatchSession(func(*api.Session) {
		p.Send(sessionChangedMsg{})
	})

	if _, err := p.Run(); err != nil {
		fatal(err)
	}
}
