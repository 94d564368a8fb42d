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

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/quillworks/quill/pkg/api"
	"github.com/quillworks/quill/pkg/blog"
)

// runLogin collects the credentials issued by the identity provider
// and stores them in the session file. The token is verified with a
// request before anything is written, so a typo fails here rather
// than on the first real command.
func runLogin(cmd *cobra.Command, args []string) {
	app, err := newApp(false)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	var (
		token  string
		userID string
		name   string
		email  string
		role   string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API token").
				Description("Paste the token from your account settings page").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("token is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("User ID").
				Description("Shown next to the token on the settings page").
				Value(&userID).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("user id is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Display name").
				Value(&name),
			huh.NewInput().
				Title("Email").
				Value(&email),
			huh.NewSelect[string]().
				Title("Account role").
				Options(
					huh.NewOption("User", string(blog.RoleUser)),
					huh.NewOption("Admin", string(blog.RoleAdmin)),
				).
				Value(&role),
		),
	)
	if err := form.Run(); err != nil {
		fatal(err)
	}

	sess := api.Session{
		Token:  strings.TrimSpace(token),
		UserID: strings.TrimSpace(userID),
		Name:   strings.TrimSpace(name),
		Email:  strings.TrimSpace(email),
		Role:   blog.Role(role),
	}

	// Verify the token against an authenticated endpoint. The server
	// remains the authority on the role; a wrong selection here only
	// changes which views the client offers.
	probe := api.New(app.Config.API.BaseURL,
		api.WithSessionSource(api.StaticSession{Session: &sess}),
		api.WithLogger(app.Logger.Slog()),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, _, err := probe.ListMyPosts(ctx, api.PostFilters{Limit: 1}); err != nil {
		if api.IsUnauthorized(err) {
			fatal(fmt.Errorf("the server rejected this token: %w", err))
		}
		fatal(fmt.Errorf("could not verify the token: %w", err))
	}

	if err := api.WriteSessionFile(sessionPath(), sess); err != nil {
		fatal(err)
	}
	app.Logger.Info("logged in", "email", sess.Email, "role", sess.Role)
	fmt.Printf("Logged in as %s (%s)\n", sess.Name, sess.Role)
}

// runLogout removes the session file.
func runLogout(cmd *cobra.Command, args []string) {
	app, err := newApp(false)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	if err := api.RemoveSessionFile(sessionPath()); err != nil {
		fatal(err)
	}
	app.Logger.Info("logged out")
	fmt.Println("Logged out.")
}

// runWhoami prints the stored identity without touching the network.
func runWhoami(cmd *cobra.Command, args []string) {
	app, err := newApp(false)
	if err != nil {
		fatal(err)
	}
	defer app.Close()

	sess := app.Sessions.Current()
	if sess == nil {
		fmt.Println("Not logged in.")
		return
	}
	fmt.Printf("%s <%s> — %s\n", sess.Name, sess.Email, sess.Role)
}
