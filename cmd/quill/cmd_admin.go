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

// adminShell adapts the moderation model to the tea.Model interface.
type adminShell struct {
	admin adminModel
}

// Init implements tea.Model.
func (s adminShell) Init() tea.Cmd { return s.admin.Init() }

// Update implements tea.Model.
func (s adminShell) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c":
			s.admin.close()
			return s, tea.Quit
		case "q":
			if !s.admin.searching && s.admin.confirmID == "" {
				s.admin.close()
				return s, tea.Quit
			}
		}
	}
	var cmd tea.Cmd
	s.admin, cmd = s.admin.Update(msg)
	return s, cmd
}

// View implements tea.Model.
func (s adminShell) View() string { return s.admin.View() }

// runModerate starts the interactive moderation table, or prints a
// plain table when stdout is not a terminal.
func runModerate(cmd *cobra.Command, args []string) {
	app, err := newApp(true)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	if _, err := app.requireAdmin(); err != nil {
		fatal(err)
	}

	filters := api.CommentFilters{
		Search: searchTerm,
		Page:   pageNum,
		Limit:  pageLimit,
	}
	switch strings.ToUpper(statusFilter) {
	case "":
	case string(blog.CommentApproved):
		filters.Status = blog.CommentApproved
	case string(blog.CommentRejected):
		filters.Status = blog.CommentRejected
	default:
		fatal(fmt.Errorf("unknown status %q (want APPROVED or REJECTED)", statusFilter))
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		printCommentsPlain(app, filters)
		return
	}

	shell := adminShell{admin: newAdminModel(app, filters)}
	p := tea.NewProgram(shell, tea.WithAltScreen())
	app.WatchSession(func(*api.Session) {
		p.Send(sessionChangedMsg{})
	})

	if _, err := p.Run(); err != nil {
		fatal(err)
	}
}
