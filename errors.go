package talentlayer

import (
	"errors"
	"fmt"
)

// Error is the error type returned by every SDK operation.
// State records where a multi-step operation stopped; it is empty for single-step calls.
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	State   State                  `json:"state,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
	Err     error                  `json:"-"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.State != "" {
		msg = fmt.Sprintf("%s (state %s)", msg, e.State)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code, so any *Error can be compared to the sentinels below.
// ErrNotFound matches every not-found code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code == e.Code {
		return true
	}
	return t.Code == ErrCodeNotFound && isNotFound(e.Code)
}

// Error codes.
const (
	ErrCodeNotFound            = "not_found"
	ErrCodeProposalNotFound    = "proposal_not_found"
	ErrCodeServiceNotFound     = "service_not_found"
	ErrCodeTransactionNotFound = "transaction_not_found"
	ErrCodeMissingContentID    = "missing_content_id"
	ErrCodeFeeResolution       = "fee_resolution_failed"
	ErrCodeInvalidFeeRate      = "invalid_fee_rate"
	ErrCodeApprovalSubmission  = "approval_submission_failed"
	ErrCodeApprovalFailed      = "approval_failed"
	ErrCodeEscrowCreation      = "escrow_creation_failed"
	ErrCodeEscrowCall          = "escrow_call_failed"
	ErrCodeInvalidArbitrator   = "invalid_arbitrator"
	ErrCodeUnsupportedNetwork  = "unsupported_network"
	ErrCodeMissingDeployment   = "missing_deployment"
	ErrCodeMissingPlatformID   = "missing_platform_id"
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeInsufficientFunds   = "insufficient_funds"
	ErrCodeInvalidArgument     = "invalid_argument"
	ErrCodeMissingLedger       = "missing_ledger"
	ErrCodeSubgraph            = "subgraph_error"
	ErrCodeAborted             = "aborted"
)

// Sentinels for errors.Is.
var (
	ErrNotFound            = &Error{Code: ErrCodeNotFound, Message: "record not found"}
	ErrProposalNotFound    = &Error{Code: ErrCodeProposalNotFound, Message: "proposal not found"}
	ErrServiceNotFound     = &Error{Code: ErrCodeServiceNotFound, Message: "service not found"}
	ErrTransactionNotFound = &Error{Code: ErrCodeTransactionNotFound, Message: "service has no escrow transaction"}
	ErrMissingContentID    = &Error{Code: ErrCodeMissingContentID, Message: "proposal has no content identifier"}
	ErrFeeResolution       = &Error{Code: ErrCodeFeeResolution, Message: "fee rates could not be resolved"}
	ErrInvalidFeeRate      = &Error{Code: ErrCodeInvalidFeeRate, Message: "invalid fee rate"}
	ErrApprovalSubmission  = &Error{Code: ErrCodeApprovalSubmission, Message: "allowance approval could not be submitted"}
	ErrApprovalFailed      = &Error{Code: ErrCodeApprovalFailed, Message: "allowance approval transaction failed"}
	ErrEscrowCreation      = &Error{Code: ErrCodeEscrowCreation, Message: "escrow transaction could not be created"}
	ErrEscrowCall          = &Error{Code: ErrCodeEscrowCall, Message: "escrow call failed"}
	ErrInvalidArbitrator   = &Error{Code: ErrCodeInvalidArbitrator, Message: "arbitrator is not allowed on this network"}
	ErrUnsupportedNetwork  = &Error{Code: ErrCodeUnsupportedNetwork, Message: "unsupported network"}
	ErrMissingDeployment   = &Error{Code: ErrCodeMissingDeployment, Message: "network has no contract deployment configured"}
	ErrMissingPlatformID   = &Error{Code: ErrCodeMissingPlatformID, Message: "platform id is required"}
	ErrInvalidAmount       = &Error{Code: ErrCodeInvalidAmount, Message: "amount must be positive"}
	ErrInsufficientFunds   = &Error{Code: ErrCodeInsufficientFunds, Message: "balance does not cover the approval amount"}
	ErrInvalidArgument     = &Error{Code: ErrCodeInvalidArgument, Message: "invalid argument"}
	ErrMissingLedger       = &Error{Code: ErrCodeMissingLedger, Message: "operation requires a ledger client"}
	ErrSubgraph            = &Error{Code: ErrCodeSubgraph, Message: "subgraph query failed"}
	ErrAborted             = &Error{Code: ErrCodeAborted, Message: "operation aborted by hook"}
)

func isNotFound(code string) bool {
	switch code {
	case ErrCodeProposalNotFound, ErrCodeServiceNotFound, ErrCodeTransactionNotFound:
		return true
	}
	return false
}

// NewError creates a new error with the given code.
func NewError(code, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetail attaches a detail entry and returns the error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// StateOf returns the state recorded on err, or the empty state.
func StateOf(err error) State {
	var tlErr *Error
	if errors.As(err, &tlErr) {
		return tlErr.State
	}
	return ""
}

// CodeOf returns the code of err, or the empty string for foreign errors.
func CodeOf(err error) string {
	var tlErr *Error
	if errors.As(err, &tlErr) {
		return tlErr.Code
	}
	return ""
}

// atState stamps state on err, wrapping foreign errors so the state is never lost.
func atState(err error, state State) error {
	if tlErr, ok := err.(*Error); ok {
		if tlErr.State != "" {
			return err
		}
		out := *tlErr
		out.State = state
		return &out
	}
	return &Error{Code: ErrCodeEscrowCall, Message: "unexpected failure", State: state, Err: err}
}
