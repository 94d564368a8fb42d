// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package api

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/quillworks/quill/pkg/blog"
)

// -----------------------------------------------------------------------------
// Session
// -----------------------------------------------------------------------------

// Session is the identity issued by the external identity provider:
// a bearer token plus the user it belongs to. The client never mints
// or refreshes sessions itself; `quill login` writes what the
// provider reported and every request carries the token as-is.
type Session struct {
	Token  string    `yaml:"token"`
	UserID string    `yaml:"user_id"`
	Name   string    `yaml:"name"`
	Email  string    `yaml:"email"`
	Role   blog.Role `yaml:"role"`
}

// Actor converts the session to the permission evaluator's actor
// shape. A nil session yields a nil actor (anonymous).
func (s *Session) Actor() *blog.Actor {
	if s == nil || s.UserID == "" {
		return nil
	}
	return &blog.Actor{ID: s.UserID, Role: s.Role}
}

// SessionSource supplies the current session to the transport. A nil
// return means no session: requests go out unauthenticated and
// mutating endpoints will come back 401.
type SessionSource interface {
	Current() *Session
}

// StaticSession is a SessionSource pinned to one session. Used in
// tests and for one-shot commands that load the session once.
type StaticSession struct {
	Session *Session
}

// Current returns the pinned session.
func (s StaticSession) Current() *Session { return s.Session }

// -----------------------------------------------------------------------------
// File-backed source
// -----------------------------------------------------------------------------

// FileSessionSource reads the session from a YAML file, typically
// ~/.quill/session.yaml as written by `quill login`. Reload is cheap
// and safe to call from the file watcher.
type FileSessionSource struct {
	path string

	mu      sync.RWMutex
	current *Session
}

// NewFileSessionSource creates a source for the given path and
// performs an initial load. A missing file is not an error: the
// source simply reports no session until the file appears.
func NewFileSessionSource(path string) (*FileSessionSource, error) {
	s := &FileSessionSource{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the most recently loaded session, or nil.
func (s *FileSessionSource) Current() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Path returns the watched session file path.
func (s *FileSessionSource) Path() string { return s.path }

// Reload re-reads the session file. A missing file clears the
// session; a malformed file is an error and leaves the previous
// session in place.
func (s *FileSessionSource) Reload() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.current = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("read session file %s: %w", s.path, err)
	}

	var sess Session
	if err := yaml.Unmarshal(data, &sess); err != nil {
		return fmt.Errorf("parse session file %s: %w", s.path, err)
	}
	if sess.Token == "" {
		return fmt.Errorf("session file %s has no token", s.path)
	}

	s.mu.Lock()
	s.current = &sess
	s.mu.Unlock()
	return nil
}

// WriteSessionFile persists a session for later Reload, creating the
// parent directory if needed. The file is user-readable only: it
// holds a bearer token.
func WriteSessionFile(path string, sess Session) error {
	if sess.Token == "" {
		return errors.New("refusing to write a session without a token")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}
	data, err := yaml.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// RemoveSessionFile deletes the stored session. Removing a session
// that does not exist is not an error.
func RemoveSessionFile(path string) error {
	err := os.Remove(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
