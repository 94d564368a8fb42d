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

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/quillworks/quill/pkg/blog"
	"github.com/quillworks/quill/pkg/query"
)

var statsBoxStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("39")).
	Padding(0, 2)

// runStats prints the site-wide aggregates.
func runStats(cmd *cobra.Command, args []string) {
	app, err := newApp(true)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	if _, err := app.requireAdmin(); err != nil {
		fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	stats, err := query.FetchAs(ctx, app.Queries, query.StatsKey(), func(ctx context.Context) (*blog.Stats, error) {
		return app.Client.GetStats(ctx)
	})
	if err != nil {
		fatal(err)
	}

	fmt.Println(renderStats(stats))
}

// renderStats lays the three aggregates out side by side.
func renderStats(s *blog.Stats) string {
	posts := statsBoxStyle.Render(strings.Join([]string{
		titleStyle.Render("Posts"),
		fmt.Sprintf("Total      %d", s.TotalAgg.Total),
		fmt.Sprintf("Published  %d", s.TotalAgg.TotalPublished),
		fmt.Sprintf("Drafts     %d", s.TotalAgg.TotalDraft),
		fmt.Sprintf("Archived   %d", s.TotalAgg.TotalArchived),
		fmt.Sprintf("Featured   %d", s.TotalAgg.TotalFeatured),
	}, "\n"))

	views := statsBoxStyle.Render(strings.Join([]string{
		titleStyle.Render("Views"),
		fmt.Sprintf("Total  %d", s.ViewsAgg.Total),
		fmt.Sprintf("Avg    %.1f", s.ViewsAgg.Avg),
		fmt.Sprintf("Min    %d", s.ViewsAgg.Min),
		fmt.Sprintf("Max    %d", s.ViewsAgg.Max),
	}, "\n"))

	comments := statsBoxStyle.Render(strings.Join([]string{
		titleStyle.Render("Comments"),
		fmt.Sprintf("Total     %d", s.CommentAgg.Total),
		fmt.Sprintf("Approved  %d", s.CommentAgg.TotalApproved),
		fmt.Sprintf("Rejected  %d", s.CommentAgg.TotalRejected),
	}, "\n"))

	authors := statsBoxStyle.Render(strings.Join([]string{
		titleStyle.Render("Authors"),
		fmt.Sprintf("Admins  %d", s.TotalAgg.TotalAuthorsAdmin),
		fmt.Sprintf("Users   %d", s.TotalAgg.TotalAuthorsUser),
	}, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, posts, views, comments, authors)
}
