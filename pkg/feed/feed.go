// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package feed implements the two pagination models the views use:
// accumulating infinite scroll for the public feed and discrete
// offset pages for the dashboard tables.
//
// Both pagers trust server pagination metadata over local item
// counts. A short page is not treated as the end of the feed; only
// page >= totalPages is.
//
// Pagers are safe for the TUI's split between goroutines: loads run
// on command goroutines while the event loop reads accessors. A Reset
// during an in-flight load wins — the load's results are discarded,
// so items fetched under old filters never mix into the new
// accumulation.
package feed

import (
	"context"
	"sync"

	"github.com/quillworks/quill/pkg/blog"
)

// Page is one fetched slice of a listing plus its server metadata.
type Page[T any] struct {
	Items []T
	Meta  blog.Meta
}

// FetchPage produces the given 1-based page of a listing.
type FetchPage[T any] func(ctx context.Context, page int) (Page[T], error)

// =============================================================================
// Infinite Pager
// =============================================================================

// InfinitePager accumulates pages for scroll-style views. Pages
// append in order, items deduplicate by identity, and requesting more
// while a load is in flight is a no-op rather than a duplicate
// request.
type InfinitePager[T any] struct {
	mu    sync.Mutex
	fetch FetchPage[T]
	id    func(T) string

	// gen advances on every Reset. A LoadMore that started under an
	// older generation discards its page instead of applying it.
	gen uint64

	items      []T
	seen       map[string]bool
	nextPage   int
	totalPages int
	total      int
	loaded     bool
	busy       bool
}

// NewInfinitePager creates a pager over fetch. The id function
// extracts each item's identity for deduplication across page
// boundaries; items whose id was already seen are dropped.
func NewInfinitePager[T any](fetch FetchPage[T], id func(T) string) *InfinitePager[T] {
	return &InfinitePager[T]{
		fetch:    fetch,
		id:       id,
		seen:     make(map[string]bool),
		nextPage: 1,
	}
}

// Items returns the accumulated items in fetch order.
func (p *InfinitePager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.items
}

// Total reports the server's total item count, 0 before the first
// load.
func (p *InfinitePager[T]) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Loading reports whether a LoadMore is in flight.
func (p *InfinitePager[T]) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.busy
}

// HasNext reports whether another page exists. Before the first load
// it is true so the view issues the initial fetch.
func (p *InfinitePager[T]) HasNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasNextLocked()
}

func (p *InfinitePager[T]) hasNextLocked() bool {
	if !p.loaded {
		return true
	}
	return p.nextPage <= p.totalPages
}

// LoadMore fetches the next page and appends it. When no next page
// exists, or a load is already in flight, it returns immediately with
// no request issued. A Reset during the fetch discards the page.
func (p *InfinitePager[T]) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if p.busy || !p.hasNextLocked() {
		p.mu.Unlock()
		return nil
	}
	p.busy = true
	fetch := p.fetch
	pageNum := p.nextPage
	gen := p.gen
	p.mu.Unlock()

	page, err := fetch(ctx, pageNum)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		// Reset won the race: these items belong to the old filters.
		// Reset already cleared busy, and a newer load may own it now.
		return nil
	}
	p.busy = false
	if err != nil {
		return err
	}

	for _, item := range page.Items {
		key := p.id(item)
		if p.seen[key] {
			continue
		}
		p.seen[key] = true
		p.items = append(p.items, item)
	}
	p.loaded = true
	p.nextPage = page.Meta.Page + 1
	p.totalPages = page.Meta.TotalPages
	p.total = page.Meta.Total
	return nil
}

// Reset discards all accumulated state and installs a new fetch, as
// when the view's filters change. The next LoadMore starts from page
// one; a load in flight for the old fetch is orphaned and its result
// dropped.
func (p *InfinitePager[T]) Reset(fetch FetchPage[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.fetch = fetch
	p.items = nil
	p.seen = make(map[string]bool)
	p.nextPage = 1
	p.totalPages = 0
	p.total = 0
	p.loaded = false
	p.busy = false
}

// =============================================================================
// Offset Pager
// =============================================================================

// OffsetPager shows one discrete page at a time for table-style
// views. Navigation clamps to the valid range instead of erroring.
type OffsetPager[T any] struct {
	mu    sync.Mutex
	fetch FetchPage[T]

	// gen advances on every Reset, orphaning in-flight loads.
	gen uint64

	items      []T
	page       int
	totalPages int
	total      int
	loaded     bool
}

// NewOffsetPager creates a pager over fetch, positioned at page one.
func NewOffsetPager[T any](fetch FetchPage[T]) *OffsetPager[T] {
	return &OffsetPager[T]{fetch: fetch, page: 1}
}

// Items returns the current page's items.
func (p *OffsetPager[T]) Items() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.items
}

// Page reports the current 1-based page number.
func (p *OffsetPager[T]) Page() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// TotalPages reports the server's page count, 0 before the first
// load.
func (p *OffsetPager[T]) TotalPages() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalPages
}

// Total reports the server's total item count.
func (p *OffsetPager[T]) Total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total
}

// Load fetches the current page, replacing the displayed items. A
// Reset during the fetch discards the result.
func (p *OffsetPager[T]) Load(ctx context.Context) error {
	p.mu.Lock()
	fetch := p.fetch
	pageNum := p.page
	gen := p.gen
	p.mu.Unlock()

	page, err := fetch(ctx, pageNum)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return nil
	}
	if err != nil {
		return err
	}
	p.items = page.Items
	p.page = page.Meta.Page
	p.totalPages = page.Meta.TotalPages
	p.total = page.Meta.Total
	p.loaded = true
	return nil
}

// Next advances one page and loads it. On the last page it is a
// no-op.
func (p *OffsetPager[T]) Next(ctx context.Context) error {
	p.mu.Lock()
	if p.loaded && p.page >= p.totalPages {
		p.mu.Unlock()
		return nil
	}
	p.page++
	p.mu.Unlock()
	return p.Load(ctx)
}

// Prev steps back one page and loads it. On the first page it is a
// no-op.
func (p *OffsetPager[T]) Prev(ctx context.Context) error {
	p.mu.Lock()
	if p.page <= 1 {
		p.mu.Unlock()
		return nil
	}
	p.page--
	p.mu.Unlock()
	return p.Load(ctx)
}

// Reset installs a new fetch and returns to page one without
// loading, as when the view's filters change. A load in flight for
// the old fetch is orphaned and its result dropped.
func (p *OffsetPager[T]) Reset(fetch FetchPage[T]) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	p.fetch = fetch
	p.items = nil
	p.page = 1
	p.totalPages = 0
	p.total = 0
	p.loaded = false
}
