// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package query keeps every independently fetched view of the blog
// consistent without a push channel.
//
// # Description
//
// The package models fetched result sets as named query groups. A
// group is identified by a Tag (the invalidation unit) plus a
// Fingerprint (the parameter tuple distinguishing one fetch from
// another). Every mutation declares, up front, the fixed set of tags
// it invalidates; every reader declares the key it belongs to. The
// Coordinator mediates both sides:
//
//	UI event → Coordinator.Run(mutation) → transport call
//	        → on success only: invalidate declared tags
//	        → subscribed readers re-fetch their keys
//
// Invalidation is tag-level and parameter-insensitive: invalidating
// TagPost marks every post fingerprint stale. The mutation table in
// mutations.go is the single reviewable source of what invalidates
// what.
//
// # Fetch Coalescing
//
// At most one fetch is in flight per exact tag+fingerprint pair.
// Concurrent readers of the same key attach to the outstanding call
// via singleflight rather than issuing a duplicate request. Dropping
// a subscription never cancels an in-flight fetch that other readers
// share.
//
// # Failure Semantics
//
// A failed fetch stores nothing. A failed mutation invalidates
// nothing. Cached values are only ever replaced by a successful fetch
// or marked stale by a successful mutation, so an error leaves every
// view exactly as it was.
//
// # Thread Safety
//
// Coordinator is safe for concurrent use. The TUI drives it from
// bubbletea command goroutines.
package query

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

// =============================================================================
// Keys
// =============================================================================

// Tag names one invalidation unit. Invalidating a tag invalidates
// every fingerprint cached under it.
type Tag string

const (
	// TagPosts covers the public feed listings (GET /posts).
	TagPosts Tag = "posts"

	// TagMyPosts covers the caller's own post listings.
	TagMyPosts Tag = "my-posts"

	// TagPost covers single-post views, comments included.
	TagPost Tag = "post"

	// TagStats covers the aggregate dashboard statistics.
	TagStats Tag = "stats"

	// TagComments covers the admin moderation listing.
	TagComments Tag = "comments"
)

// Key identifies one cached result set: the group tag plus the
// parameter fingerprint of the fetch that produced it.
type Key struct {
	Tag         Tag
	Fingerprint string
}

// String renders the key for singleflight and the persistent store.
func (k Key) String() string {
	return string(k.Tag) + "|" + k.Fingerprint
}

// PostsKey is the feed listing key for a filter fingerprint.
func PostsKey(fingerprint string) Key { return Key{Tag: TagPosts, Fingerprint: fingerprint} }

// MyPostsKey is the own-posts listing key for a filter fingerprint.
func MyPostsKey(fingerprint string) Key { return Key{Tag: TagMyPosts, Fingerprint: fingerprint} }

// PostKey is the single-post key; the post id is the fingerprint.
func PostKey(id string) Key { return Key{Tag: TagPost, Fingerprint: id} }

// StatsKey is the singleton statistics key.
func StatsKey() Key { return Key{Tag: TagStats} }

// CommentsKey is the admin listing key for a filter fingerprint.
func CommentsKey(fingerprint string) Key { return Key{Tag: TagComments, Fingerprint: fingerprint} }

// =============================================================================
// Coordinator
// =============================================================================

// FetchFunc produces a fresh value for a key, normally by calling the
// transport.
type FetchFunc func(ctx context.Context) (any, error)

// Store is an optional byte-level persistence layer under the
// in-memory cache. See the persist subpackage for the badger-backed
// implementation. Implementations must be safe for concurrent use.
type Store interface {
	// Load returns the stored bytes for a key, with found=false when
	// the key has never been saved.
	Load(key string) (data []byte, found bool, err error)

	// Save persists the bytes for a key, replacing any prior value.
	Save(key string, data []byte) error

	// Close releases the store's resources.
	Close() error
}

type entry struct {
	value     any
	fetchedAt time.Time
	stale     bool
}

type subscription struct {
	key    Key
	notify func(Key)
}

// Coordinator is the process-wide query cache. Readers fetch through
// it, mutations run through it, and it alone decides when cached data
// is stale.
type Coordinator struct {
	mu      sync.RWMutex
	entries map[Key]*entry
	epochs  map[Tag]uint64

	flight singleflight.Group

	subsMu  sync.Mutex
	subs    map[int]subscription
	nextSub int

	store  Store
	logger *slog.Logger
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// WithStore attaches a persistent store. Successful fetches write
// through to it; Lookup falls back to it on a cold in-memory cache.
func WithStore(s Store) CoordinatorOption {
	return func(c *Coordinator) { c.store = s }
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		entries: make(map[Key]*entry),
		epochs:  make(map[Tag]uint64),
		subs:    make(map[int]subscription),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases the persistent store, if any.
func (c *Coordinator) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Reading
// -----------------------------------------------------------------------------

// Fetch returns the cached value for key when it is fresh, and
// otherwise produces one through fn. Concurrent callers for the same
// key coalesce into a single fn invocation; all of them receive its
// result. The value is cached (and written through to the persistent
// store) only when fn succeeds.
func (c *Coordinator) Fetch(ctx context.Context, key Key, fn FetchFunc) (any, error) {
	ctx, span := tracer.Start(ctx, "query.Fetch")
	span.SetAttributes(
		attribute.String("query.tag", string(key.Tag)),
		attribute.String("query.fingerprint", key.Fingerprint),
	)
	defer span.End()

	c.mu.RLock()
	e, ok := c.entries[key]
	if ok && !e.stale {
		value := e.value
		c.mu.RUnlock()
		cacheHits.WithLabelValues(string(key.Tag)).Inc()
		return value, nil
	}
	c.mu.RUnlock()
	cacheMisses.WithLabelValues(string(key.Tag)).Inc()

	value, err, shared := c.flight.Do(key.String(), func() (any, error) {
		c.mu.RLock()
		epoch := c.epochs[key.Tag]
		c.mu.RUnlock()
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		c.commit(key, v, epoch)
		return v, nil
	})
	if shared {
		coalescedFetches.Inc()
	}
	if err != nil {
		fetchErrors.WithLabelValues(string(key.Tag)).Inc()
		span.RecordError(err)
		return nil, err
	}
	return value, nil
}

// Lookup returns the cached value for key whether fresh or stale,
// falling back to the persistent store on a cold cache. Stale values
// support stale-while-revalidate painting: the view shows them while
// its re-fetch is in flight. The store fallback decodes into dst,
// which must be a non-nil pointer; on an in-memory hit dst is ignored
// and the cached value is returned directly.
func (c *Coordinator) Lookup(key Key, dst any) (any, bool) {
	c.mu.RLock()
	if e, ok := c.entries[key]; ok {
		value := e.value
		c.mu.RUnlock()
		return value, true
	}
	c.mu.RUnlock()

	if c.store == nil || dst == nil {
		return nil, false
	}
	data, found, err := c.store.Load(key.String())
	if err != nil {
		c.logger.Warn("persistent cache read failed", "key", key.String(), "error", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.logger.Warn("persistent cache entry corrupt", "key", key.String(), "error", err)
		return nil, false
	}
	// Warm the in-memory cache as stale: paint now, revalidate next
	// Fetch.
	c.mu.Lock()
	c.entries[key] = &entry{value: dst, fetchedAt: time.Time{}, stale: true}
	c.mu.Unlock()
	return dst, true
}

// commit stores a fetched value and writes through to the store.
// epoch is the tag's invalidation epoch observed before the fetch
// began; when Invalidate ran in between, the value is already out of
// date, so it is stored stale and kept out of the persistent store.
func (c *Coordinator) commit(key Key, value any, epoch uint64) {
	c.mu.Lock()
	raced := c.epochs[key.Tag] != epoch
	c.entries[key] = &entry{value: value, fetchedAt: time.Now(), stale: raced}
	c.mu.Unlock()

	if raced || c.store == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("persistent cache encode failed", "key", key.String(), "error", err)
		return
	}
	if err := c.store.Save(key.String(), data); err != nil {
		c.logger.Warn("persistent cache write failed", "key", key.String(), "error", err)
	}
}

// -----------------------------------------------------------------------------
// Invalidation
// -----------------------------------------------------------------------------

// Invalidate marks every cached fingerprint under each tag stale and
// notifies subscribers whose key carries one of the tags. Invalidating
// the same tag twice has the same effect as once, so overlapping
// mutations resolving out of order are harmless.
func (c *Coordinator) Invalidate(tags ...Tag) {
	if len(tags) == 0 {
		return
	}
	set := make(map[Tag]bool, len(tags))
	for _, t := range tags {
		set[t] = true
		invalidations.WithLabelValues(string(t)).Inc()
	}

	c.mu.Lock()
	for t := range set {
		c.epochs[t]++
	}
	for key, e := range c.entries {
		if set[key.Tag] {
			e.stale = true
		}
	}
	c.mu.Unlock()

	c.subsMu.Lock()
	var notify []subscription
	for _, sub := range c.subs {
		if set[sub.key.Tag] {
			notify = append(notify, sub)
		}
	}
	c.subsMu.Unlock()

	for _, sub := range notify {
		sub.notify(sub.key)
	}
	c.logger.Debug("query groups invalidated", "tags", tags, "subscribers", len(notify))
}

// Expire marks individual cached keys stale without notifying
// subscribers. Tag-level invalidation cannot express "this one post
// changed" when a mutation's table only names sibling tags; a view
// about to re-fetch a key it knows is outdated uses Expire so the
// next Fetch goes to the network instead of the cache.
func (c *Coordinator) Expire(keys ...Key) {
	if len(keys) == 0 {
		return
	}
	c.mu.Lock()
	for _, key := range keys {
		if e, ok := c.entries[key]; ok {
			e.stale = true
		}
	}
	c.mu.Unlock()
}

// Subscribe registers a mounted reader's interest in a key. The
// notify callback fires after any invalidation covering the key's
// tag; the reader is expected to re-fetch. The returned cancel drops
// the interest; it does not cancel an in-flight fetch, which other
// subscribers may be sharing.
func (c *Coordinator) Subscribe(key Key, notify func(Key)) (cancel func()) {
	c.subsMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = subscription{key: key, notify: notify}
	c.subsMu.Unlock()

	return func() {
		c.subsMu.Lock()
		delete(c.subs, id)
		c.subsMu.Unlock()
	}
}

// -----------------------------------------------------------------------------
// Mutations
// -----------------------------------------------------------------------------

// Run executes a declared mutation. The invalidation set fires only
// after fn returns nil; on error the cache keeps every entry it had,
// leaving the UI in its pre-mutation state.
func (c *Coordinator) Run(ctx context.Context, m Mutation, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "query.Run")
	span.SetAttributes(attribute.String("mutation", m.Name))
	defer span.End()

	if err := fn(ctx); err != nil {
		mutationFailures.WithLabelValues(m.Name).Inc()
		span.RecordError(err)
		return err
	}
	c.Invalidate(m.Invalidates...)
	return nil
}

// =============================================================================
// Typed Helpers
// =============================================================================

// FetchAs is Fetch with the value typed. The zero T is returned on
// error.
func FetchAs[T any](ctx context.Context, c *Coordinator, key Key, fn func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

// LookupAs is Lookup with the value typed, decoding store fallbacks
// into T.
func LookupAs[T any](c *Coordinator, key Key) (T, bool) {
	var dst T
	v, ok := c.Lookup(key, &dst)
	if !ok {
		var zero T
		return zero, false
	}
	switch t := v.(type) {
	case T:
		return t, true
	case *T:
		return *t, true
	default:
		var zero T
		return zero, false
	}
}
