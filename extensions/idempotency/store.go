package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Status is the result of checking the store.
type Status int

const (
	// StatusNotFound means no cached result and no in-flight call.
	StatusNotFound Status = iota
	// StatusCached means a cached result was found.
	StatusCached
	// StatusInFlight means another caller is running the same operation.
	StatusInFlight
)

// Store records in-flight and completed escrow operations.
// Implementations must be safe for concurrent use.
type Store interface {
	// CheckAndMark atomically checks the store and marks the key as in-flight if needed.
	//
	// Returns:
	//   - StatusCached + result + nil: a cached result exists, return it immediately
	//   - StatusInFlight + nil + done: another caller holds the key, wait on done
	//   - StatusNotFound + nil + done: this caller should proceed (now marked in-flight)
	//
	// The done channel must be passed to Complete or Fail when the operation finishes.
	CheckAndMark(key string) (Status, interface{}, chan struct{})

	// WaitForResult waits for an in-flight operation. It returns nil when that
	// operation failed, so the caller should retry.
	WaitForResult(ctx context.Context, key string, done chan struct{}) (interface{}, error)

	// Complete caches result and wakes waiters.
	Complete(key string, result interface{}, done chan struct{})

	// Fail removes the in-flight marker without caching and wakes waiters.
	Fail(key string, done chan struct{})
}

// Key derives a deduplication key from an operation name and its arguments.
func Key(operation string, args ...string) string {
	hash := sha256.Sum256([]byte(operation + "|" + strings.Join(args, "|")))
	return hex.EncodeToString(hash[:])
}
