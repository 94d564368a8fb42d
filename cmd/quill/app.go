// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/quillworks/quill/cmd/quill/config"
	"github.com/quillworks/quill/pkg/api"
	"github.com/quillworks/quill/pkg/blog"
	"github.com/quillworks/quill/pkg/logging"
	"github.com/quillworks/quill/pkg/query"
	"github.com/quillworks/quill/pkg/query/persist"
)

// App wires the configuration, logger, session, transport, and query
// cache together for the lifetime of one command.
type App struct {
	Config   config.QuillConfig
	Logger   *logging.Logger
	Sessions *api.FileSessionSource
	Client   *api.Client
	Queries  *query.Coordinator

	watcher *api.SessionWatcher
}

// newApp builds the command runtime. quiet suppresses stderr logging;
// the TUI commands pass true so log lines never tear the screen.
func newApp(quiet bool) (*App, error) {
	if err := config.Load(); err != nil {
		return nil, err
	}
	cfg := config.Global

	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(cfg.Log.Level),
		LogDir:  cfg.Log.Dir,
		Service: "quill",
		JSON:    cfg.Log.JSON,
		Quiet:   quiet,
	})

	sessions, err := api.NewFileSessionSource(sessionPath())
	if err != nil {
		logger.Close()
		return nil, err
	}

	timeout := time.Duration(cfg.API.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := api.New(cfg.API.BaseURL,
		api.WithHTTPClient(&http.Client{Timeout: timeout}),
		api.WithSessionSource(sessions),
		api.WithRateLimit(cfg.API.RateLimit),
		api.WithLogger(logger.Slog()),
	)

	queryOpts := []query.CoordinatorOption{query.WithLogger(logger.Slog())}
	if cfg.Cache.Enabled && cfg.Cache.Dir != "" {
		store, err := persist.Open(config.ExpandPath(cfg.Cache.Dir),
			persist.WithLogger(logger.Slog()))
		if err != nil {
			// A broken warm cache degrades to a cold start, nothing
			// worse.
			logger.Warn("warm cache unavailable, starting cold", "error", err)
		} else {
			queryOpts = append(queryOpts, query.WithStore(store))
		}
	}

	return &App{
		Config:   cfg,
		Logger:   logger,
		Sessions: sessions,
		Client:   client,
		Queries:  query.NewCoordinator(queryOpts...),
	}, nil
}

// WatchSession starts re-reading the session file when another quill
// process rewrites it, so a login in one terminal is visible in a
// long-running TUI in another.
func (a *App) WatchSession(onChange func(*api.Session)) {
	w, err := api.WatchSession(a.Sessions, onChange, a.Logger.Slog())
	if err != nil {
		a.Logger.Warn("session watcher unavailable", "error", err)
		return
	}
	a.watcher = w
}

// Close releases the app's resources in reverse dependency order.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if err := a.Queries.Close(); err != nil {
		a.Logger.Warn("closing query cache", "error", err)
	}
	a.Logger.Close()
}

// sessionPath is where login state lives.
func sessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quill-session.yaml"
	}
	return filepath.Join(home, ".quill", "session.yaml")
}

// requireSession returns the logged-in actor or an error telling the
// user to log in.
func (a *App) requireSession() (*blog.Actor, error) {
	actor := a.Sessions.Current().Actor()
	if actor == nil {
		return nil, fmt.Errorf("not logged in; run 'quill login' first")
	}
	return actor, nil
}

// requireAdmin returns the actor if it holds the admin role.
func (a *App) requireAdmin() (*blog.Actor, error) {
	actor, err := a.requireSession()
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() {
		return nil, fmt.Errorf("this command requires an admin account")
	}
	return actor, nil
}

// fatal prints a classified error to stderr and exits nonzero. API
// errors render by kind so the user knows whether to fix the input,
// log in, or retry.
func fatal(err error) {
	switch api.KindOf(err) {
	case api.ErrKindUnauthorized:
		fmt.Fprintf(os.Stderr, "Error: not authorized (try 'quill login'): %v\n", err)
	case api.ErrKindForbidden:
		fmt.Fprintf(os.Stderr, "Error: permission denied: %v\n", err)
	case api.ErrKindNotFound:
		fmt.Fprintf(os.Stderr, "Error: not found: %v\n", err)
	case api.ErrKindValidation:
		fmt.Fprintf(os.Stderr, "Error: invalid input: %v\n", err)
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
