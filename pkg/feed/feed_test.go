// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package feed

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks/quill/pkg/blog"
)

type item struct {
	ID    string
	Title string
}

// pagedFetch serves fixed pages and counts requests per page.
func pagedFetch(pages [][]item, total int) (FetchPage[item], map[int]int) {
	requests := make(map[int]int)
	fetch := func(ctx context.Context, page int) (Page[item], error) {
		requests[page]++
		if page < 1 || page > len(pages) {
			return Page[item]{}, errors.New("page out of range")
		}
		return Page[item]{
			Items: pages[page-1],
			Meta: blog.Meta{
				Total:      total,
				Page:       page,
				TotalPages: len(pages),
				Limit:      2,
			},
		}, nil
	}
	return fetch, requests
}

func ids(items []item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestInfinitePager(t *testing.T) {
	ctx := context.Background()
	pages := [][]item{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "c"}, {ID: "d"}},
		{{ID: "e"}},
	}

	t.Run("accumulates pages in order", func(t *testing.T) {
		fetch, _ := pagedFetch(pages, 5)
		p := NewInfinitePager(fetch, func(i item) string { return i.ID })

		require.True(t, p.HasNext(), "unloaded pager must offer the first page")
		require.NoError(t, p.LoadMore(ctx))
		assert.Equal(t, []string{"a", "b"}, ids(p.Items()))
		assert.True(t, p.HasNext())

		require.NoError(t, p.LoadMore(ctx))
		require.NoError(t, p.LoadMore(ctx))
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(p.Items()))
		assert.Equal(t, 5, p.Total())
		assert.False(t, p.HasNext())
	})

	t.Run("no request past the last page", func(t *testing.T) {
		fetch, requests := pagedFetch(pages, 5)
		p := NewInfinitePager(fetch, func(i item) string { return i.ID })

		for i := 0; i < 6; i++ {
			require.NoError(t, p.LoadMore(ctx))
		}
		assert.Equal(t, map[int]int{1: 1, 2: 1, 3: 1}, requests)
	})

	t.Run("trusts metadata over short pages", func(t *testing.T) {
		// A two-page listing whose first page is shorter than the
		// limit; the pager must still request page two.
		short := [][]item{
			{{ID: "a"}},
			{{ID: "b"}},
		}
		fetch, requests := pagedFetch(short, 2)
		p := NewInfinitePager(fetch, func(i item) string { return i.ID })

		require.NoError(t, p.LoadMore(ctx))
		assert.True(t, p.HasNext())
		require.NoError(t, p.LoadMore(ctx))
		assert.Equal(t, []string{"a", "b"}, ids(p.Items()))
		assert.Equal(t, 2, len(requests))
	})

	t.Run("deduplicates across page boundaries", func(t *testing.T) {
		// Item b shifted from page one to page two between fetches.
		shifted := [][]item{
			{{ID: "a"}, {ID: "b"}},
			{{ID: "b"}, {ID: "c"}},
		}
		fetch, _ := pagedFetch(shifted, 3)
		p := NewInfinitePager(fetch, func(i item) string { return i.ID })

		require.NoError(t, p.LoadMore(ctx))
		require.NoError(t, p.LoadMore(ctx))
		assert.Equal(t, []string{"a", "b", "c"}, ids(p.Items()))
	})

	t.Run("failed load keeps accumulated items", func(t *testing.T) {
		calls := 0
		fetch := func(ctx context.Context, page int) (Page[item], error) {
			calls++
			if calls > 1 {
				return Page[item]{}, errors.New("boom")
			}
			return Page[item]{
				Items: []item{{ID: "a"}},
				Meta:  blog.Meta{Total: 2, Page: 1, TotalPages: 2, Limit: 1},
			}, nil
		}
		p := NewInfinitePager(fetch, func(i item) string { return i.ID })

		require.NoError(t, p.LoadMore(ctx))
		require.Error(t, p.LoadMore(ctx))
		assert.Equal(t, []string{"a"}, ids(p.Items()))
		assert.True(t, p.HasNext(), "failed page should remain loadable")
	})

	t.Run("reset starts over with the new fetch", func(t *testing.T) {
		fetch, _ := pagedFetch(pages, 5)
		p := NewInfinitePager(fetch, func(i item) string { return i.ID })
		require.NoError(t, p.LoadMore(ctx))
		require.NoError(t, p.LoadMore(ctx))

		filtered, requests := pagedFetch([][]item{{{ID: "x"}}}, 1)
		p.Reset(filtered)

		assert.Empty(t, p.Items())
		require.NoError(t, p.LoadMore(ctx))
		assert.Equal(t, []string{"x"}, ids(p.Items()))
		assert.Equal(t, map[int]int{1: 1}, requests, "reset must restart from page one")
	})

	t.Run("reset during an in-flight load discards the old page", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		slow := func(ctx context.Context, page int) (Page[item], error) {
			close(entered)
			<-release
			return Page[item]{
				Items: []item{{ID: "old-filter-post"}},
				Meta:  blog.Meta{Total: 1, Page: 1, TotalPages: 1, Limit: 1},
			}, nil
		}
		p := NewInfinitePager(slow, func(i item) string { return i.ID })

		done := make(chan error, 1)
		go func() { done <- p.LoadMore(ctx) }()
		<-entered

		// Filter change while the old filter's fetch is still out.
		filtered, _ := pagedFetch([][]item{{{ID: "new-filter-post"}}}, 1)
		p.Reset(filtered)

		close(release)
		require.NoError(t, <-done)
		assert.Empty(t, p.Items(), "orphaned load must not populate the new accumulation")

		require.NoError(t, p.LoadMore(ctx))
		assert.Equal(t, []string{"new-filter-post"}, ids(p.Items()))
		assert.False(t, p.HasNext())
	})

	t.Run("concurrent reads during a load are safe", func(t *testing.T) {
		fetch, _ := pagedFetch(pages, 5)
		p := NewInfinitePager(fetch, func(i item) string { return i.ID })

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					_ = p.Items()
					_ = p.HasNext()
					_ = p.Loading()
				}
			}()
		}
		for i := 0; i < 3; i++ {
			require.NoError(t, p.LoadMore(ctx))
		}
		wg.Wait()
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, ids(p.Items()))
	})
}

func TestOffsetPager(t *testing.T) {
	ctx := context.Background()
	pages := [][]item{
		{{ID: "a"}, {ID: "b"}},
		{{ID: "c"}, {ID: "d"}},
		{{ID: "e"}},
	}

	t.Run("shows one page at a time", func(t *testing.T) {
		fetch, _ := pagedFetch(pages, 5)
		p := NewOffsetPager(fetch)

		require.NoError(t, p.Load(ctx))
		assert.Equal(t, []string{"a", "b"}, ids(p.Items()))
		assert.Equal(t, 1, p.Page())
		assert.Equal(t, 3, p.TotalPages())

		require.NoError(t, p.Next(ctx))
		assert.Equal(t, []string{"c", "d"}, ids(p.Items()))
		assert.Equal(t, 2, p.Page())
	})

	t.Run("clamps at both ends", func(t *testing.T) {
		fetch, requests := pagedFetch(pages, 5)
		p := NewOffsetPager(fetch)
		require.NoError(t, p.Load(ctx))

		require.NoError(t, p.Prev(ctx))
		assert.Equal(t, 1, p.Page())

		require.NoError(t, p.Next(ctx))
		require.NoError(t, p.Next(ctx))
		require.NoError(t, p.Next(ctx))
		assert.Equal(t, 3, p.Page(), "next on the last page must not advance")
		assert.Equal(t, 1, requests[3], "clamped next must not re-fetch")
	})

	t.Run("reset returns to page one", func(t *testing.T) {
		fetch, _ := pagedFetch(pages, 5)
		p := NewOffsetPager(fetch)
		require.NoError(t, p.Load(ctx))
		require.NoError(t, p.Next(ctx))

		filtered, _ := pagedFetch([][]item{{{ID: "x"}}}, 1)
		p.Reset(filtered)
		assert.Equal(t, 1, p.Page())
		assert.Empty(t, p.Items())

		require.NoError(t, p.Load(ctx))
		assert.Equal(t, []string{"x"}, ids(p.Items()))
	})

	t.Run("reset during an in-flight load discards the old page", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		slow := func(ctx context.Context, page int) (Page[item], error) {
			close(entered)
			<-release
			return Page[item]{
				Items: []item{{ID: "stale"}},
				Meta:  blog.Meta{Total: 1, Page: 1, TotalPages: 1, Limit: 1},
			}, nil
		}
		p := NewOffsetPager(slow)

		done := make(chan error, 1)
		go func() { done <- p.Load(ctx) }()
		<-entered

		filtered, _ := pagedFetch([][]item{{{ID: "fresh"}}}, 1)
		p.Reset(filtered)

		close(release)
		require.NoError(t, <-done)
		assert.Empty(t, p.Items())

		require.NoError(t, p.Load(ctx))
		assert.Equal(t, []string{"fresh"}, ids(p.Items()))
	})
}

func TestTags(t *testing.T) {
	post := func(tags ...string) blog.Post { return blog.Post{Tags: tags} }

	t.Run("unions in first seen order", func(t *testing.T) {
		got := Tags([]blog.Post{post("a", "b"), post("b", "c")})
		assert.Equal(t, []string{"a", "b", "c"}, got)
	})

	t.Run("order is stable as posts accumulate", func(t *testing.T) {
		first := Tags([]blog.Post{post("go", "tui")})
		more := Tags([]blog.Post{post("go", "tui"), post("cli", "go")})
		assert.Equal(t, first, more[:len(first)])
	})

	t.Run("empty input yields no tags", func(t *testing.T) {
		assert.Empty(t, Tags(nil))
		assert.Empty(t, Tags([]blog.Post{post()}))
	})
}
