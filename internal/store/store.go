// Package store abstracts the process-external key/value store every server
// process shares: queued-player lists, serialized player/match records, and
// the pub/sub channels the relay rides on. Any store offering blocking list
// pops, hash fields, and channel publishing qualifies; the shipped
// implementations are Redis and an in-process store for tests and
// single-process deployments.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by HGet when the hash field does not exist.
var ErrNotFound = errors.New("store: not found")

// Subscription delivers messages published on one channel. Messages is
// closed when the subscription ends.
type Subscription interface {
	Messages() <-chan string
	Close() error
}

// Store is the set of primitives the arena and relay consume.
//
// BLPop blocks until the list has an element, honoring ctx cancellation but
// no other timeout; each pushed value is delivered to exactly one popping
// caller across all processes. This is the sole cross-process
// mutual-exclusion primitive the design relies on.
// LPop pops without blocking and returns ErrNotFound on an empty list;
// formation uses it so two processes racing for the tail of a wait queue
// both come away with a short pop instead of one of them blocking.
type Store interface {
	BLPop(ctx context.Context, key string) (string, error)
	LPop(ctx context.Context, key string) (string, error)
	RPush(ctx context.Context, key string, values ...string) error
	LLen(ctx context.Context, key string) (int64, error)

	HGet(ctx context.Context, key, field string) (string, error)
	HSet(ctx context.Context, key, field, value string) error
	HDel(ctx context.Context, key string, fields ...string) error

	Publish(ctx context.Context, channel, payload string) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	// Del removes whole keys. Used only by Arena.Clear.
	Del(ctx context.Context, keys ...string) error

	Close() error
}
