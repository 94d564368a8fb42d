// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/quillworks/quill/pkg/api"
	"github.com/quillworks/quill/pkg/blog"
)

// postsShell adapts the my-posts model to the tea.Model interface.
type postsShell struct {
	posts myPostsModel
}

// Init implements tea.Model.
func (s postsShell) Init() tea.Cmd { return s.posts.Init() }

// Update implements tea.Model.
func (s postsShell) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			s.posts.close()
			return s, tea.Quit
		case "q":
			if s.posts.confirmID == "" {
				s.posts.close()
				return s, tea.Quit
			}
		}
	}
	var cmd tea.Cmd
	s.posts, cmd = s.posts.Update(msg)
	return s, cmd
}

// View implements tea.Model.
func (s postsShell) View() string { return s.posts.View() }

// runMyPosts starts the interactive post manager, or prints a plain
// table when stdout is not a terminal.
func runMyPosts(cmd *cobra.Command, args []string) {
	app, err := newApp(true)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	if _, err := app.requireSession(); err != nil {
		fatal(err)
	}

	filters := api.PostFilters{Search: searchTerm}
	switch strings.ToUpper(statusFilter) {
	case "":
	case string(blog.PostPublished):
		filters.Status = blog.PostPublished
	case string(blog.PostDraft):
		filters.Status = blog.PostDraft
	case string(blog.PostArchived):
		filters.Status = blog.PostArchived
	default:
		fatal(fmt.Errorf("unknown status %q (want PUBLISHED, DRAFT, or ARCHIVED)", statusFilter))
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		printMyPostsPlain(app, filters)
		return
	}

	shell := postsShell{posts: newMyPostsModel(app, filters)}
	p := tea.NewProgram(shell, tea.WithAltScreen())
	app.WatchSession(func(*api.Session) {
		p.Send(sessionChangedMsg{})
	})

	if _, err := p.Run(); err != nil {
		fatal(err)
	}
}
