// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	searchTerm   string
	tagFilter    string
	featuredOnly bool
	statusFilter string
	pageNum      int
	pageLimit    int

	rootCmd = &cobra.Command{
		Use:   "quill",
		Short: "A terminal client for reading, writing, and moderating a blog",
		Long: `Quill browses the blog feed, threads through comments, and manages
				your posts without leaving the terminal. Admin accounts also get
				the moderation queue and site statistics.`,
	}

	// --- Session ---
	loginCmd = &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session for later commands",
		Run:   runLogin, // Defined in cmd_session.go
	}
	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session",
		Run:   runLogout, // Defined in cmd_session.go
	}
	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the currently logged-in account",
		Run:   runWhoami, // Defined in cmd_session.go
	}

	// --- Reading ---
	browseCmd = &cobra.Command{
		Use:   "browse",
		Short: "Browse the feed and comment threads interactively",
		Run:   runBrowse, // Defined in cmd_browse.go
	}

	// --- Posts ---
	postsCmd = &cobra.Command{
		Use:   "posts",
		Short: "Manage your own posts",
	}
	postsListCmd = &cobra.Command{
		Use:   "list",
		Short: "Browse your posts, drafts included",
		Run:   runMyPosts, // Defined in cmd_posts.go
	}
	postsNewCmd = &cobra.Command{
		Use:   "new",
		Short: "Write and publish a new post",
		Run:   runNewPost, // Defined in cmd_compose.go
	}
	postsEditCmd = &cobra.Command{
		Use:   "edit [post_id]",
		Short: "Edit one of your posts",
		Args:  cobra.ExactArgs(1),
		Run:   runEditPost, // Defined in cmd_compose.go
	}
	postsDeleteCmd = &cobra.Command{
		Use:   "delete [post_id]",
		Short: "Delete one of your posts",
		Args:  cobra.ExactArgs(1),
		Run:   runDeletePost, // Defined in cmd_compose.go
	}

	// --- Admin ---
	adminCmd = &cobra.Command{
		Use:   "admin",
		Short: "Administrative tasks (admin accounts only)",
	}
	adminCommentsCmd = &cobra.Command{
		Use:   "comments",
		Short: "Review and moderate comments",
		Run:   runModerate, // Defined in cmd_admin.go
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Show site statistics (admin only)",
		Run:   runStats, // Defined in cmd_stats.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	rootCmd.AddCommand(browseCmd)
	browseCmd.Flags().StringVarP(&searchTerm, "search", "s", "", "Filter posts by title or content")
	browseCmd.Flags().StringVarP(&tagFilter, "tag", "t", "", "Filter posts by tag")
	browseCmd.Flags().BoolVarP(&featuredOnly, "featured", "f", false, "Show featured posts only")

	rootCmd.AddCommand(postsCmd)
	postsCmd.AddCommand(postsListCmd)
	postsListCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (PUBLISHED, DRAFT, ARCHIVED)")
	postsListCmd.Flags().StringVarP(&searchTerm, "search", "s", "", "Filter posts by title or content")
	postsCmd.AddCommand(postsNewCmd)
	postsCmd.AddCommand(postsEditCmd)
	postsCmd.AddCommand(postsDeleteCmd)
	postsDeleteCmd.Flags().Bool("force", false, "Skip the confirmation prompt")

	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCommentsCmd)
	adminCommentsCmd.Flags().StringVar(&statusFilter, "status", "", "Filter by status (APPROVED, REJECTED)")
	adminCommentsCmd.Flags().StringVarP(&searchTerm, "search", "s", "", "Filter comments by content or author")
	adminCommentsCmd.Flags().IntVar(&pageNum, "page", 1, "Page to start on")
	adminCommentsCmd.Flags().IntVar(&pageLimit, "limit", 0, "Comments per page (default from config)")

	rootCmd.AddCommand(statsCmd)
}
