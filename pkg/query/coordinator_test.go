// Copyright (C) 2025 Quillworks (maintainers@quillworks.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countingFetch(n *atomic.Int64, value any) FetchFunc {
	return func(ctx context.Context) (any, error) {
		n.Add(1)
		return value, nil
	}
}

func TestCoordinator_Fetch(t *testing.T) {
	ctx := context.Background()

	t.Run("caches after first fetch", func(t *testing.T) {
		c := NewCoordinator()
		key := PostsKey("page=1")
		var calls atomic.Int64

		v, err := c.Fetch(ctx, key, countingFetch(&calls, "page-one"))
		require.NoError(t, err)
		assert.Equal(t, "page-one", v)

		v, err = c.Fetch(ctx, key, countingFetch(&calls, "never-used"))
		require.NoError(t, err)
		assert.Equal(t, "page-one", v)
		assert.Equal(t, int64(1), calls.Load())
	})

	t.Run("distinct fingerprints fetch independently", func(t *testing.T) {
		c := NewCoordinator()
		var calls atomic.Int64

		_, err := c.Fetch(ctx, PostsKey("page=1"), countingFetch(&calls, "a"))
		require.NoError(t, err)
		_, err = c.Fetch(ctx, PostsKey("page=2"), countingFetch(&calls, "b"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("failed fetch stores nothing", func(t *testing.T) {
		c := NewCoordinator()
		key := PostKey("p1")

		_, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
			return nil, errors.New("boom")
		})
		require.Error(t, err)

		_, ok := c.Lookup(key, nil)
		assert.False(t, ok, "error result must not be cached")

		var calls atomic.Int64
		v, err := c.Fetch(ctx, key, countingFetch(&calls, "recovered"))
		require.NoError(t, err)
		assert.Equal(t, "recovered", v)
		assert.Equal(t, int64(1), calls.Load(), "next fetch should retry")
	})

	t.Run("stale entry forces re-fetch", func(t *testing.T) {
		c := NewCoordinator()
		key := PostKey("p1")
		var calls atomic.Int64

		_, err := c.Fetch(ctx, key, countingFetch(&calls, "v1"))
		require.NoError(t, err)

		c.Invalidate(TagPost)

		v, err := c.Fetch(ctx, key, countingFetch(&calls, "v2"))
		require.NoError(t, err)
		assert.Equal(t, "v2", v)
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("concurrent fetches of one key coalesce", func(t *testing.T) {
		c := NewCoordinator()
		key := StatsKey()
		var calls atomic.Int64
		release := make(chan struct{})

		slow := func(ctx context.Context) (any, error) {
			calls.Add(1)
			<-release
			return "stats", nil
		}

		const readers = 8
		var wg sync.WaitGroup
		results := make([]any, readers)
		errs := make([]error, readers)
		for i := 0; i < readers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = c.Fetch(ctx, key, slow)
			}(i)
		}

		// Give every reader time to reach the flight group before the
		// single fetch completes.
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		assert.Equal(t, int64(1), calls.Load(), "identical in-flight fetches must coalesce")
		for i := 0; i < readers; i++ {
			require.NoError(t, errs[i])
			assert.Equal(t, "stats", results[i])
		}
	})
}

func TestCoordinator_Invalidate(t *testing.T) {
	ctx := context.Background()

	t.Run("is parameter insensitive within a tag", func(t *testing.T) {
		c := NewCoordinator()
		var calls atomic.Int64
		keys := []Key{PostKey("p1"), PostKey("p2"), PostKey("p3")}
		for _, k := range keys {
			_, err := c.Fetch(ctx, k, countingFetch(&calls, k.Fingerprint))
			require.NoError(t, err)
		}

		c.Invalidate(TagPost)

		for _, k := range keys {
			_, err := c.Fetch(ctx, k, countingFetch(&calls, k.Fingerprint))
			require.NoError(t, err)
		}
		assert.Equal(t, int64(6), calls.Load(), "every fingerprint under the tag must go stale")
	})

	t.Run("leaves other tags fresh", func(t *testing.T) {
		c := NewCoordinator()
		var postCalls, statsCalls atomic.Int64
		_, err := c.Fetch(ctx, PostKey("p1"), countingFetch(&postCalls, "post"))
		require.NoError(t, err)
		_, err = c.Fetch(ctx, StatsKey(), countingFetch(&statsCalls, "stats"))
		require.NoError(t, err)

		c.Invalidate(TagPost)

		_, err = c.Fetch(ctx, StatsKey(), countingFetch(&statsCalls, "stats"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), statsCalls.Load(), "uninvalidated tag must stay cached")
	})

	t.Run("is idempotent", func(t *testing.T) {
		c := NewCoordinator()
		var calls atomic.Int64
		_, err := c.Fetch(ctx, PostsKey("page=1"), countingFetch(&calls, "a"))
		require.NoError(t, err)

		c.Invalidate(TagPosts)
		c.Invalidate(TagPosts)
		c.Invalidate(TagPosts, TagPosts)

		_, err = c.Fetch(ctx, PostsKey("page=1"), countingFetch(&calls, "b"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("notifies subscribers on matching tags only", func(t *testing.T) {
		c := NewCoordinator()
		var postNotified, statsNotified atomic.Int64

		cancelPost := c.Subscribe(PostKey("p1"), func(Key) { postNotified.Add(1) })
		defer cancelPost()
		cancelStats := c.Subscribe(StatsKey(), func(Key) { statsNotified.Add(1) })
		defer cancelStats()

		c.Invalidate(TagPost)
		assert.Equal(t, int64(1), postNotified.Load())
		assert.Equal(t, int64(0), statsNotified.Load())
	})

	t.Run("cancelled subscription stops notifications", func(t *testing.T) {
		c := NewCoordinator()
		var notified atomic.Int64
		cancel := c.Subscribe(PostKey("p1"), func(Key) { notified.Add(1) })

		c.Invalidate(TagPost)
		cancel()
		c.Invalidate(TagPost)

		assert.Equal(t, int64(1), notified.Load())
	})

	t.Run("during an in-flight fetch marks the committed value stale", func(t *testing.T) {
		c := NewCoordinator()
		key := PostKey("p1")
		var calls atomic.Int64
		entered := make(chan struct{})
		release := make(chan struct{})

		slow := func(ctx context.Context) (any, error) {
			calls.Add(1)
			close(entered)
			<-release
			return "pre-invalidation", nil
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = c.Fetch(ctx, key, slow)
		}()

		<-entered
		c.Invalidate(TagPost)
		close(release)
		<-done

		// The fetch began before the invalidation, so its result must
		// not be trusted as fresh.
		v, err := c.Fetch(ctx, key, countingFetch(&calls, "post-invalidation"))
		require.NoError(t, err)
		assert.Equal(t, "post-invalidation", v)
		assert.Equal(t, int64(2), calls.Load(), "a fetch overlapping an invalidation must revalidate")
	})

	t.Run("raced commit skips the persistent store", func(t *testing.T) {
		store := newFakeStore()
		c := NewCoordinator(WithStore(store))
		key := PostKey("p1")
		entered := make(chan struct{})
		release := make(chan struct{})

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
				close(entered)
				<-release
				return "outdated", nil
			})
		}()

		<-entered
		c.Invalidate(TagPost)
		close(release)
		<-done

		_, ok, err := store.Load(key.String())
		require.NoError(t, err)
		assert.False(t, ok, "an already-invalidated value must not be persisted")
	})
}

func TestCoordinator_Expire(t *testing.T) {
	ctx := context.Background()

	t.Run("marks the named key stale", func(t *testing.T) {
		c := NewCoordinator()
		key := PostKey("p1")
		var calls atomic.Int64

		_, err := c.Fetch(ctx, key, countingFetch(&calls, "before"))
		require.NoError(t, err)

		// A status change only invalidates the feed and queue groups;
		// the thread entry would otherwise stay fresh forever.
		err = c.Run(ctx, MutSetCommentStatus, func(ctx context.Context) error { return nil })
		require.NoError(t, err)
		_, err = c.Fetch(ctx, key, countingFetch(&calls, "unused"))
		require.NoError(t, err)
		require.Equal(t, int64(1), calls.Load(), "status mutations do not touch the post group")

		c.Expire(key)

		v, err := c.Fetch(ctx, key, countingFetch(&calls, "after"))
		require.NoError(t, err)
		assert.Equal(t, "after", v)
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("leaves sibling fingerprints fresh", func(t *testing.T) {
		c := NewCoordinator()
		var calls atomic.Int64
		_, err := c.Fetch(ctx, PostKey("p1"), countingFetch(&calls, "a"))
		require.NoError(t, err)
		_, err = c.Fetch(ctx, PostKey("p2"), countingFetch(&calls, "b"))
		require.NoError(t, err)

		c.Expire(PostKey("p1"))

		_, err = c.Fetch(ctx, PostKey("p2"), countingFetch(&calls, "b"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), calls.Load(), "expiring one key must not touch its siblings")
	})

	t.Run("does not notify subscribers", func(t *testing.T) {
		c := NewCoordinator()
		var notified atomic.Int64
		cancel := c.Subscribe(PostKey("p1"), func(Key) { notified.Add(1) })
		defer cancel()

		c.Expire(PostKey("p1"))
		assert.Equal(t, int64(0), notified.Load())
	})

	t.Run("unknown key is a no-op", func(t *testing.T) {
		c := NewCoordinator()
		c.Expire(PostKey("never-fetched"))
	})
}

func TestCoordinator_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("invalidates declared tags on success", func(t *testing.T) {
		c := NewCoordinator()
		var calls atomic.Int64
		_, err := c.Fetch(ctx, PostKey("p1"), countingFetch(&calls, "thread"))
		require.NoError(t, err)

		err = c.Run(ctx, MutCreateComment, func(ctx context.Context) error { return nil })
		require.NoError(t, err)

		_, err = c.Fetch(ctx, PostKey("p1"), countingFetch(&calls, "thread2"))
		require.NoError(t, err)
		assert.Equal(t, int64(2), calls.Load())
	})

	t.Run("failed mutation invalidates nothing", func(t *testing.T) {
		c := NewCoordinator()
		var calls atomic.Int64
		_, err := c.Fetch(ctx, PostKey("p1"), countingFetch(&calls, "thread"))
		require.NoError(t, err)

		boom := errors.New("boom")
		err = c.Run(ctx, MutCreateComment, func(ctx context.Context) error { return boom })
		require.ErrorIs(t, err, boom)

		_, err = c.Fetch(ctx, PostKey("p1"), countingFetch(&calls, "unused"))
		require.NoError(t, err)
		assert.Equal(t, int64(1), calls.Load(), "cache must be untouched after a failed mutation")
	})

	t.Run("comment create touches the post group only", func(t *testing.T) {
		c := NewCoordinator()
		var postCalls, feedCalls, statsCalls atomic.Int64
		_, err := c.Fetch(ctx, PostKey("p1"), countingFetch(&postCalls, "thread"))
		require.NoError(t, err)
		_, err = c.Fetch(ctx, PostsKey("page=1"), countingFetch(&feedCalls, "feed"))
		require.NoError(t, err)
		_, err = c.Fetch(ctx, StatsKey(), countingFetch(&statsCalls, "stats"))
		require.NoError(t, err)

		err = c.Run(ctx, MutCreateComment, func(ctx context.Context) error { return nil })
		require.NoError(t, err)

		_, err = c.Fetch(ctx, PostKey("p1"), countingFetch(&postCalls, "thread2"))
		require.NoError(t, err)
		_, err = c.Fetch(ctx, PostsKey("page=1"), countingFetch(&feedCalls, "feed2"))
		require.NoError(t, err)
		_, err = c.Fetch(ctx, StatsKey(), countingFetch(&statsCalls, "stats2"))
		require.NoError(t, err)

		assert.Equal(t, int64(2), postCalls.Load())
		assert.Equal(t, int64(1), feedCalls.Load())
		assert.Equal(t, int64(1), statsCalls.Load())
	})
}

func TestMutationTable(t *testing.T) {
	// The declared invalidation sets are load-bearing: views trust
	// them to decide what to re-fetch.
	cases := []struct {
		mutation Mutation
		want     []Tag
	}{
		{MutCreatePost, []Tag{TagPosts, TagMyPosts, TagPost}},
		{MutUpdatePost, []Tag{TagPosts, TagMyPosts, TagPost}},
		{MutDeletePost, []Tag{TagPosts, TagMyPosts, TagPost}},
		{MutCreateComment, []Tag{TagPost}},
		{MutUpdateComment, []Tag{TagPost}},
		{MutDeleteComment, []Tag{TagPost, TagComments}},
		{MutSetCommentStatus, []Tag{TagPosts, TagComments}},
	}
	for _, tc := range cases {
		t.Run(tc.mutation.Name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.mutation.Invalidates)
		})
	}
}

type fakeStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	closed bool
}

func newFakeStore() *fakeStore { return &fakeStore{data: make(map[string][]byte)} }

func (s *fakeStore) Load(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[key]
	return d, ok, nil
}

func (s *fakeStore) Save(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return nil
}

func (s *fakeStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func TestCoordinator_Store(t *testing.T) {
	ctx := context.Background()

	t.Run("writes through on successful fetch", func(t *testing.T) {
		store := newFakeStore()
		c := NewCoordinator(WithStore(store))
		key := PostsKey("page=1")

		_, err := c.Fetch(ctx, key, func(ctx context.Context) (any, error) {
			return []string{"a", "b"}, nil
		})
		require.NoError(t, err)

		data, ok, err := store.Load(key.String())
		require.NoError(t, err)
		require.True(t, ok)
		assert.JSONEq(t, `["a","b"]`, string(data))
	})

	t.Run("warm start paints from the store as stale", func(t *testing.T) {
		store := newFakeStore()
		require.NoError(t, store.Save(PostsKey("page=1").String(), []byte(`["a","b"]`)))

		// Fresh coordinator, as after a restart.
		c := NewCoordinator(WithStore(store))

		v, ok := LookupAs[[]string](c, PostsKey("page=1"))
		require.True(t, ok)
		assert.Equal(t, []string{"a", "b"}, v)

		// The warm entry is stale, so the next Fetch revalidates.
		var calls atomic.Int64
		fresh, err := c.Fetch(ctx, PostsKey("page=1"), countingFetch(&calls, []string{"a", "b", "c"}))
		require.NoError(t, err)
		assert.Equal(t, int64(1), calls.Load())
		assert.Equal(t, []string{"a", "b", "c"}, fresh)
	})

	t.Run("corrupt store entry is a miss", func(t *testing.T) {
		store := newFakeStore()
		require.NoError(t, store.Save(StatsKey().String(), []byte(`{not json`)))
		c := NewCoordinator(WithStore(store))

		_, ok := LookupAs[map[string]int](c, StatsKey())
		assert.False(t, ok)
	})

	t.Run("close releases the store", func(t *testing.T) {
		store := newFakeStore()
		c := NewCoordinator(WithStore(store))
		require.NoError(t, c.Close())
		assert.True(t, store.closed)
	})
}

func TestLookupAs(t *testing.T) {
	ctx := context.Background()

	t.Run("returns fresh in-memory values", func(t *testing.T) {
		c := NewCoordinator()
		_, err := FetchAs(ctx, c, StatsKey(), func(ctx context.Context) (int, error) {
			return 42, nil
		})
		require.NoError(t, err)

		v, ok := LookupAs[int](c, StatsKey())
		require.True(t, ok)
		assert.Equal(t, 42, v)
	})

	t.Run("misses on empty coordinator", func(t *testing.T) {
		c := NewCoordinator()
		_, ok := LookupAs[int](c, StatsKey())
		assert.False(t, ok)
	})

	t.Run("still serves stale values", func(t *testing.T) {
		c := NewCoordinator()
		_, err := FetchAs(ctx, c, PostKey("p1"), func(ctx context.Context) (string, error) {
			return "thread", nil
		})
		require.NoError(t, err)

		c.Invalidate(TagPost)

		v, ok := LookupAs[string](c, PostKey("p1"))
		require.True(t, ok, "stale data should still paint")
		assert.Equal(t, "thread", v)
	})
}
