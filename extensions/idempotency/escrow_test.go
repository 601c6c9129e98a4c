package idempotency

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	talentlayer "github.com/talentlayer/talentlayer-go"
)

type countingAPI struct {
	talentlayer.EscrowAPI

	approveCalls atomic.Int32
	releaseCalls atomic.Int32
	gate         chan struct{}
	failFirst    atomic.Bool
}

func (c *countingAPI) Approve(_ context.Context, serviceID, proposalID, _ string) (*talentlayer.ApproveResult, error) {
	n := c.approveCalls.Add(1)
	if c.gate != nil {
		<-c.gate
	}
	if c.failFirst.Load() && n == 1 {
		return nil, talentlayer.NewError(talentlayer.ErrCodeEscrowCreation, "boom", nil)
	}
	return &talentlayer.ApproveResult{TransactionHash: "0xabc", ContentID: serviceID + "-" + proposalID}, nil
}

func (c *countingAPI) Release(_ context.Context, _ string, amount *big.Int, _ string) (*talentlayer.SettleResult, error) {
	c.releaseCalls.Add(1)
	return &talentlayer.SettleResult{TransactionHash: "0xdef", Amount: amount}, nil
}

func (c *countingAPI) Reimburse(_ context.Context, _ string, amount *big.Int, _ string) (*talentlayer.SettleResult, error) {
	return &talentlayer.SettleResult{TransactionHash: "0x987", Amount: amount}, nil
}

func TestKey(t *testing.T) {
	key1 := Key("approve", "1", "2", "QmA")
	key2 := Key("approve", "1", "2", "QmB")
	key3 := Key("approve", "1", "2", "QmA")

	if key1 != key3 {
		t.Errorf("Expected same arguments to produce same key, got %s and %s", key1, key3)
	}
	if key1 == key2 {
		t.Error("Expected different arguments to produce different keys")
	}
	if Key("release", "1", "2") == Key("reimburse", "1", "2") {
		t.Error("Expected operation to be part of the key")
	}
	if len(key1) != 64 {
		t.Errorf("Expected key to be 64 hex chars, got %d", len(key1))
	}
}

func TestWithKey(t *testing.T) {
	ctx := context.Background()
	if _, ok := KeyFromContext(ctx); ok {
		t.Error("Expected no key on a bare context")
	}
	if _, ok := KeyFromContext(WithKey(ctx, "   ")); ok {
		t.Error("Expected a blank key to be ignored")
	}
	key, ok := KeyFromContext(WithKey(ctx, " req-1 "))
	if !ok || key != "req-1" {
		t.Errorf("Expected trimmed key req-1, got %q", key)
	}

	if err := ValidateKey(strings.Repeat("k", MaxKeyLength)); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
	if err := ValidateKey(strings.Repeat("k", MaxKeyLength+1)); !errors.Is(err, talentlayer.ErrInvalidArgument) {
		t.Errorf("Expected invalid argument, got %v", err)
	}
}

func TestApproveReplaysResult(t *testing.T) {
	api := &countingAPI{}
	escrow := Wrap(api)
	ctx := WithKey(context.Background(), "approve-1")

	first, err := escrow.Approve(ctx, "1", "2", "QmMeta")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := escrow.Approve(ctx, "1", "2", "QmMeta")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if first != second {
		t.Error("Expected the cached result to be returned")
	}
	if got := api.approveCalls.Load(); got != 1 {
		t.Errorf("Expected 1 approve call, got %d", got)
	}

	if _, err := escrow.Approve(WithKey(context.Background(), "approve-2"), "1", "3", "QmMeta"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := api.approveCalls.Load(); got != 2 {
		t.Errorf("Expected a new key to reach the client, got %d calls", got)
	}
}

func TestKeyReusedForDifferentRequest(t *testing.T) {
	api := &countingAPI{}
	escrow := Wrap(api)
	ctx := WithKey(context.Background(), "approve-1")

	if _, err := escrow.Approve(ctx, "1", "2", "QmMeta"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	_, err := escrow.Approve(ctx, "1", "3", "QmMeta")
	if !errors.Is(err, talentlayer.ErrInvalidArgument) {
		t.Fatalf("Expected invalid argument for a reused key, got %v", err)
	}
	if got := api.approveCalls.Load(); got != 1 {
		t.Errorf("Expected 1 approve call, got %d", got)
	}
}

func TestConcurrentApproveCollapses(t *testing.T) {
	api := &countingAPI{gate: make(chan struct{})}
	escrow := Wrap(api)
	ctx := WithKey(context.Background(), "approve-1")

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*talentlayer.ApproveResult, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = escrow.Approve(ctx, "1", "2", "QmMeta")
		}(i)
	}

	// let one caller take the slot before opening the gate
	deadline := time.Now().Add(time.Second)
	for api.approveCalls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(api.gate)
	wg.Wait()

	for i := range results {
		if errs[i] != nil {
			t.Fatalf("Caller %d failed: %v", i, errs[i])
		}
		if results[i].TransactionHash != "0xabc" {
			t.Errorf("Caller %d got %s", i, results[i].TransactionHash)
		}
	}
	if got := api.approveCalls.Load(); got != 1 {
		t.Errorf("Expected 1 approve call, got %d", got)
	}
}

func TestFailuresAreNotCached(t *testing.T) {
	api := &countingAPI{}
	api.failFirst.Store(true)
	escrow := Wrap(api)
	ctx := WithKey(context.Background(), "approve-1")

	_, err := escrow.Approve(ctx, "1", "2", "QmMeta")
	if !errors.Is(err, talentlayer.ErrEscrowCreation) {
		t.Fatalf("Expected escrow creation error, got %v", err)
	}

	result, err := escrow.Approve(ctx, "1", "2", "QmMeta")
	if err != nil {
		t.Fatalf("Expected retry to succeed, got %v", err)
	}
	if result.TransactionHash != "0xabc" {
		t.Errorf("Unexpected result %+v", result)
	}
	if got := api.approveCalls.Load(); got != 2 {
		t.Errorf("Expected 2 approve calls, got %d", got)
	}
}

func TestSequentialSettlesWithoutKeyAllReachClient(t *testing.T) {
	api := &countingAPI{}
	escrow := Wrap(api)
	ctx := context.Background()

	// two partial releases of the same amount on one escrow are distinct payments
	for i := 0; i < 2; i++ {
		if _, err := escrow.Release(ctx, "1", big.NewInt(500), "5"); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if got := api.releaseCalls.Load(); got != 2 {
		t.Errorf("Expected 2 release calls, got %d", got)
	}

	for i := 0; i < 2; i++ {
		if _, err := escrow.Approve(ctx, "1", "2", "QmMeta"); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if got := api.approveCalls.Load(); got != 2 {
		t.Errorf("Expected 2 approve calls, got %d", got)
	}
}

func TestSettleKeysAreScopedByOperation(t *testing.T) {
	api := &countingAPI{}
	escrow := Wrap(api)
	ctx := WithKey(context.Background(), "payout-1")

	for i := 0; i < 2; i++ {
		if _, err := escrow.Release(ctx, "1", big.NewInt(500), "5"); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if got := api.releaseCalls.Load(); got != 1 {
		t.Errorf("Expected a retried release to replay, got %d calls", got)
	}

	if _, err := escrow.Release(WithKey(context.Background(), "payout-2"), "1", big.NewInt(500), "5"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := api.releaseCalls.Load(); got != 2 {
		t.Errorf("Expected a new key to release again, got %d calls", got)
	}

	reimbursed, err := escrow.Reimburse(ctx, "1", big.NewInt(500), "5")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if reimbursed.TransactionHash != "0x987" {
		t.Error("Expected reimburse not to replay the release result")
	}
}

func TestInMemoryStoreExpiry(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	status, _, done := store.CheckAndMark("key")
	if status != StatusNotFound {
		t.Fatalf("Expected StatusNotFound, got %v", status)
	}
	store.Complete("key", "result", done)

	status, cached, _ := store.CheckAndMark("key")
	if status != StatusCached || cached != "result" {
		t.Fatalf("Expected cached result, got %v %v", status, cached)
	}

	now = now.Add(2 * time.Minute)
	status, _, done = store.CheckAndMark("key")
	if status != StatusNotFound {
		t.Fatalf("Expected expired entry to be gone, got %v", status)
	}
	store.Fail("key", done)
	if store.Len() != 0 {
		t.Errorf("Expected empty store, got %d", store.Len())
	}
}

func TestWaitForResultHonoursContext(t *testing.T) {
	store := NewInMemoryStore(time.Minute)
	_, _, _ = store.CheckAndMark("key")
	status, _, done := store.CheckAndMark("key")
	if status != StatusInFlight {
		t.Fatalf("Expected StatusInFlight, got %v", status)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.WaitForResult(ctx, "key", done); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
