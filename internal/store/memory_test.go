package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOrderAndBlockingPop(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.RPush(ctx, "q", "a", "b"))
	n, err := s.LLen(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	val, err := s.BLPop(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "a", val)
	val, err = s.BLPop(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "b", val)
}

func TestLPopDoesNotBlock(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.LPop(ctx, "q")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.RPush(ctx, "q", "a", "b"))
	val, err := s.LPop(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "a", val)
	val, err = s.LPop(ctx, "q")
	require.NoError(t, err)
	assert.Equal(t, "b", val)
	_, err = s.LPop(ctx, "q")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBLPopBlocksUntilPush(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got := make(chan string, 1)
	go func() {
		val, err := s.BLPop(ctx, "q")
		if err == nil {
			got <- val
		}
	}()

	select {
	case v := <-got:
		t.Fatalf("pop returned %q before any push", v)
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, s.RPush(ctx, "q", "x"))
	select {
	case v := <-got:
		assert.Equal(t, "x", v)
	case <-time.After(time.Second):
		t.Fatal("pop never woke up")
	}
}

func TestBLPopHonorsCancellation(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := s.BLPop(ctx, "q")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The dead waiter must not swallow the next value.
	require.NoError(t, s.RPush(context.Background(), "q", "y"))
	val, err := s.BLPop(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, "y", val)
}

// Each pushed value reaches exactly one of many concurrent poppers.
func TestBLPopExactlyOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	const n = 20

	var mu sync.Mutex
	seen := make(map[string]int)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := s.BLPop(ctx, "q")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[val]++
			mu.Unlock()
		}()
	}

	for i := 0; i < n; i++ {
		require.NoError(t, s.RPush(ctx, "q", fmt.Sprintf("v%d", i)))
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for val, count := range seen {
		assert.Equal(t, 1, count, "value %s delivered more than once", val)
	}
}

func TestHashOperations(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.HGet(ctx, "h", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.HSet(ctx, "h", "f", "v1"))
	val, err := s.HGet(ctx, "h", "f")
	require.NoError(t, err)
	assert.Equal(t, "v1", val)

	require.NoError(t, s.HSet(ctx, "h", "f", "v2"))
	val, err = s.HGet(ctx, "h", "f")
	require.NoError(t, err)
	assert.Equal(t, "v2", val)

	require.NoError(t, s.HDel(ctx, "h", "f"))
	_, err = s.HGet(ctx, "h", "f")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting an absent field is fine.
	require.NoError(t, s.HDel(ctx, "h", "never"))
}

func TestPubSubFanout(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sub1, err := s.Subscribe(ctx, "ch")
	require.NoError(t, err)
	sub2, err := s.Subscribe(ctx, "ch")
	require.NoError(t, err)
	other, err := s.Subscribe(ctx, "other")
	require.NoError(t, err)
	defer other.Close()

	require.NoError(t, s.Publish(ctx, "ch", "hello"))

	for _, sub := range []Subscription{sub1, sub2} {
		select {
		case msg := <-sub.Messages():
			assert.Equal(t, "hello", msg)
		case <-time.After(time.Second):
			t.Fatal("subscriber missed the message")
		}
	}
	select {
	case msg := <-other.Messages():
		t.Fatalf("unrelated channel received %q", msg)
	default:
	}

	// After Close the subscriber stops receiving and its channel drains.
	require.NoError(t, sub1.Close())
	require.NoError(t, s.Publish(ctx, "ch", "again"))
	select {
	case msg := <-sub2.Messages():
		assert.Equal(t, "again", msg)
	case <-time.After(time.Second):
		t.Fatal("live subscriber missed the message")
	}
	_, open := <-sub1.Messages()
	assert.False(t, open)
	require.NoError(t, sub2.Close())
}

// A subscriber that stops draining loses messages instead of wedging the
// store: Publish and every other operation keep working.
func TestPublishNeverBlocksOnSlowSubscriber(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "ch")
	require.NoError(t, err)
	defer sub.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = s.Publish(ctx, "ch", fmt.Sprintf("m%d", i))
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on an undrained subscriber")
	}

	// The store is still usable.
	require.NoError(t, s.HSet(ctx, "h", "f", "v"))
	val, err := s.HGet(ctx, "h", "f")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	// The buffered prefix arrives in order; the overflow was dropped.
	drained := 0
	for {
		select {
		case msg := <-sub.Messages():
			assert.Equal(t, fmt.Sprintf("m%d", drained), msg)
			drained++
		default:
			assert.Greater(t, drained, 0)
			assert.Less(t, drained, 200)
			return
		}
	}
}

func TestDel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.RPush(ctx, "q", "a"))
	require.NoError(t, s.HSet(ctx, "h", "f", "v"))
	require.NoError(t, s.Del(ctx, "q", "h"))

	n, err := s.LLen(ctx, "q")
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = s.HGet(ctx, "h", "f")
	assert.ErrorIs(t, err, ErrNotFound)
}
