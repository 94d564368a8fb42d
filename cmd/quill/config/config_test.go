// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "http://localhost:3000/api", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.TimeoutSeconds)
	assert.Equal(t, 6, cfg.Feed.PageLimit)
	assert.Equal(t, 10, cfg.Feed.AdminPageLimit)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestCreateDefault(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "quill", "quill.yaml")

	require.NoError(t, createDefault(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var cfg QuillConfig
	require.NoError(t, yaml.Unmarshal(data, &cfg))
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestCreateDefault_DirectoryCreation(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "deep", "nested", "quill.yaml")

	require.NoError(t, createDefault(path))

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestConfig_PartialOverride(t *testing.T) {
	// Unspecified fields keep their defaults when unmarshaling onto a
	// default-initialized struct, as loadInternal does.
	cfg := DefaultConfig()
	err := yaml.Unmarshal([]byte("feed:\n  page_limit: 12\n"), &cfg)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Feed.PageLimit)
	assert.Equal(t, 10, cfg.Feed.AdminPageLimit)
	assert.Equal(t, "http://localhost:3000/api", cfg.API.BaseURL)
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	assert.Equal(t, filepath.Join(home, ".quill/cache"), ExpandPath("~/.quill/cache"))
	assert.Equal(t, "/var/cache", ExpandPath("/var/cache"))
	assert.Equal(t, "", ExpandPath(""))
}
