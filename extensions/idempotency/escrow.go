// Package idempotency deduplicates escrow writes that carry a caller-supplied key.
//
// A client that retries an approve, release or reimburse after a timeout would otherwise
// submit a second transaction. The caller names each logical write with a key, attached
// to the context with WithKey. Calls sharing a key collapse into one while in flight and
// replay the successful result for a TTL. Calls without a key always reach the ledger,
// so two legitimate releases of the same amount are never merged. Failures are not
// cached, so a failed call can be retried under the same key.
//
//	api := idempotency.Wrap(client, idempotency.WithTTL(30*time.Minute))
//	ctx = idempotency.WithKey(ctx, requestID)
//	result, err := api.Release(ctx, "1", amount, "5")
package idempotency

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	talentlayer "github.com/talentlayer/talentlayer-go"
)

// MaxKeyLength bounds caller-supplied keys.
const MaxKeyLength = 255

type keyContextKey struct{}

// WithKey returns a context carrying the caller's idempotency key.
// Surrounding whitespace is trimmed; an empty key leaves ctx unchanged.
func WithKey(ctx context.Context, key string) context.Context {
	key = strings.TrimSpace(key)
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, keyContextKey{}, key)
}

// KeyFromContext returns the idempotency key attached with WithKey.
func KeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(keyContextKey{}).(string)
	return key, ok && key != ""
}

// ValidateKey checks a caller-supplied key before it is attached to a request.
func ValidateKey(key string) error {
	if len(key) > MaxKeyLength {
		return talentlayer.NewError(talentlayer.ErrCodeInvalidArgument,
			fmt.Sprintf("idempotency key is longer than %d bytes", MaxKeyLength), nil)
	}
	return nil
}

// Escrow wraps an EscrowAPI with keyed write deduplication. Reads pass through.
type Escrow struct {
	talentlayer.EscrowAPI
	store Store
}

// Wrap creates an Escrow over api. The default store is in-memory with DefaultTTL.
func Wrap(api talentlayer.EscrowAPI, opts ...Option) *Escrow {
	cfg := &config{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(cfg)
	}

	store := cfg.store
	if store == nil {
		store = NewInMemoryStore(cfg.ttl)
	}
	return &Escrow{EscrowAPI: api, store: store}
}

// Approve approves a proposal at most once per idempotency key.
func (e *Escrow) Approve(ctx context.Context, serviceID, proposalID, metaEvidenceCID string) (*talentlayer.ApproveResult, error) {
	return once(ctx, e.store, talentlayer.OperationApprove,
		Key(string(talentlayer.OperationApprove), serviceID, proposalID, metaEvidenceCID),
		func() (*talentlayer.ApproveResult, error) {
			return e.EscrowAPI.Approve(ctx, serviceID, proposalID, metaEvidenceCID)
		})
}

// Release releases at most once per idempotency key.
func (e *Escrow) Release(ctx context.Context, serviceID string, amount *big.Int, userID string) (*talentlayer.SettleResult, error) {
	return once(ctx, e.store, talentlayer.OperationRelease,
		Key(string(talentlayer.OperationRelease), serviceID, amountKey(amount), userID),
		func() (*talentlayer.SettleResult, error) {
			return e.EscrowAPI.Release(ctx, serviceID, amount, userID)
		})
}

// Reimburse reimburses at most once per idempotency key.
func (e *Escrow) Reimburse(ctx context.Context, serviceID string, amount *big.Int, userID string) (*talentlayer.SettleResult, error) {
	return once(ctx, e.store, talentlayer.OperationReimburse,
		Key(string(talentlayer.OperationReimburse), serviceID, amountKey(amount), userID),
		func() (*talentlayer.SettleResult, error) {
			return e.EscrowAPI.Reimburse(ctx, serviceID, amount, userID)
		})
}

func amountKey(amount *big.Int) string {
	if amount == nil {
		return "<nil>"
	}
	return amount.String()
}

// entry is what the store holds: the result plus the fingerprint of the call that made it.
type entry struct {
	fingerprint string
	result      interface{}
}

// once runs fn at most once per caller key. fingerprint identifies the call's arguments;
// reusing a key for different arguments is rejected instead of replaying.
func once[T any](ctx context.Context, store Store, op talentlayer.Operation, fingerprint string, fn func() (T, error)) (T, error) {
	var zero T
	callerKey, ok := KeyFromContext(ctx)
	if !ok {
		return fn()
	}
	key := Key(string(op), callerKey)

	unpack := func(v interface{}) (T, error) {
		e, ok := v.(entry)
		if !ok {
			return zero, fmt.Errorf("idempotency store returned %T for key %s", v, key)
		}
		if e.fingerprint != fingerprint {
			return zero, talentlayer.NewError(talentlayer.ErrCodeInvalidArgument,
				"idempotency key was already used for a different request", nil).
				WithDetail("operation", string(op))
		}
		result, ok := e.result.(T)
		if !ok {
			return zero, fmt.Errorf("idempotency store returned %T for key %s", e.result, key)
		}
		return result, nil
	}

	for {
		status, cached, done := store.CheckAndMark(key)

		switch status {
		case StatusCached:
			return unpack(cached)

		case StatusInFlight:
			waited, err := store.WaitForResult(ctx, key, done)
			if err != nil {
				return zero, talentlayer.NewError(talentlayer.ErrCodeAborted, "cancelled while waiting for an identical call", err)
			}
			if waited != nil {
				return unpack(waited)
			}
			// the in-flight call failed; take the slot and retry
			continue
		}

		result, err := fn()
		if err != nil {
			store.Fail(key, done)
			return zero, err
		}
		store.Complete(key, entry{fingerprint: fingerprint, result: result}, done)
		return result, nil
	}
}

var _ talentlayer.EscrowAPI = (*Escrow)(nil)
