package talentlayer

import (
	"context"
	"math/big"
	"time"
)

// ============================================================================
// Operation Hook Context Types
// ============================================================================

// BeforeOperationContext is passed to hooks before an escrow operation starts.
type BeforeOperationContext struct {
	Ctx context.Context
	OperationContext
}

// OperationResultContext contains a successful operation's result.
type OperationResultContext struct {
	Ctx context.Context
	OperationContext
	TransactionHash string
	ApprovalTxHash  string
	Amount          *big.Int
	Duration        time.Duration
}

// OperationFailureContext contains a failed operation's error and the state it stopped in.
type OperationFailureContext struct {
	Ctx context.Context
	OperationContext
	Error    error
	State    State
	Code     string
	Duration time.Duration
}

// ============================================================================
// Operation Hook Result Types
// ============================================================================

// BeforeHookResult represents the result of a "before" hook.
// If Abort is true, the operation fails with ErrAborted and the given Reason
// before any network call is made.
type BeforeHookResult struct {
	Abort  bool
	Reason string
}

// ============================================================================
// Operation Hook Function Types
// ============================================================================

// BeforeOperationHook is called before approve, release and reimburse.
type BeforeOperationHook func(BeforeOperationContext) (*BeforeHookResult, error)

// AfterOperationHook is called after a successful operation.
// Any error returned will be logged but will not affect the result.
type AfterOperationHook func(OperationResultContext) error

// OnOperationFailureHook is called when an operation fails.
// Failures are never recovered; any error returned is logged.
type OnOperationFailureHook func(OperationFailureContext) error

// OnBeforeOperation registers a hook run before every escrow operation.
func (c *Client) OnBeforeOperation(hook BeforeOperationHook) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.beforeHooks = append(c.beforeHooks, hook)
	return c
}

// OnAfterOperation registers a hook run after every successful escrow operation.
func (c *Client) OnAfterOperation(hook AfterOperationHook) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.afterHooks = append(c.afterHooks, hook)
	return c
}

// OnOperationFailure registers a hook run after every failed escrow operation.
func (c *Client) OnOperationFailure(hook OnOperationFailureHook) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failureHooks = append(c.failureHooks, hook)
	return c
}

func (c *Client) runBeforeHooks(ctx context.Context, op OperationContext) error {
	c.mu.RLock()
	hooks := append([]BeforeOperationHook(nil), c.beforeHooks...)
	c.mu.RUnlock()

	for _, hook := range hooks {
		result, err := hook(BeforeOperationContext{Ctx: ctx, OperationContext: op})
		if err != nil {
			return NewError(ErrCodeAborted, "before hook failed", err)
		}
		if result != nil && result.Abort {
			return NewError(ErrCodeAborted, result.Reason, nil)
		}
	}
	return nil
}

func (c *Client) runAfterHooks(rc OperationResultContext) {
	c.mu.RLock()
	hooks := append([]AfterOperationHook(nil), c.afterHooks...)
	c.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(rc); err != nil {
			c.logger.WithError(err).WithField("attempt_id", rc.AttemptID).Warn("after hook failed")
		}
	}
}

func (c *Client) runFailureHooks(fc OperationFailureContext) {
	c.mu.RLock()
	hooks := append([]OnOperationFailureHook(nil), c.failureHooks...)
	c.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(fc); err != nil {
			c.logger.WithError(err).WithField("attempt_id", fc.AttemptID).Warn("failure hook failed")
		}
	}
}
