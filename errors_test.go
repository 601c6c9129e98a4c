package talentlayer

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMatchesByCode(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewError(ErrCodeFeeResolution, "fee query failed", cause)

	if !errors.Is(err, ErrFeeResolution) {
		t.Fatalf("expected %v to match ErrFeeResolution", err)
	}
	if errors.Is(err, ErrEscrowCreation) {
		t.Fatalf("did not expect %v to match ErrEscrowCreation", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be unwrapped")
	}

	wrapped := fmt.Errorf("approve: %w", err)
	if CodeOf(wrapped) != ErrCodeFeeResolution {
		t.Fatalf("CodeOf = %q", CodeOf(wrapped))
	}
}

func TestNotFoundFamily(t *testing.T) {
	for _, code := range []string{ErrCodeProposalNotFound, ErrCodeServiceNotFound, ErrCodeTransactionNotFound} {
		if !errors.Is(NewError(code, "missing", nil), ErrNotFound) {
			t.Errorf("%s should match ErrNotFound", code)
		}
	}
	if errors.Is(NewError(ErrCodeMissingContentID, "missing", nil), ErrNotFound) {
		t.Errorf("missing content id is not a not-found error")
	}
}

func TestAtStateKeepsFirstState(t *testing.T) {
	err := atState(NewError(ErrCodeApprovalFailed, "reverted", nil), StateEnsureAllowance)
	err = atState(err, StateDirectCreate)
	if StateOf(err) != StateEnsureAllowance {
		t.Fatalf("state = %q, want %q", StateOf(err), StateEnsureAllowance)
	}

	foreign := atState(errors.New("panic-free failure"), StateResolveFees)
	if StateOf(foreign) != StateResolveFees || CodeOf(foreign) != ErrCodeEscrowCall {
		t.Fatalf("foreign error not wrapped: %v", foreign)
	}

	// sentinels are never mutated
	_ = atState(ErrApprovalFailed, StateDone)
	if ErrApprovalFailed.State != "" {
		t.Fatalf("sentinel mutated: %q", ErrApprovalFailed.State)
	}
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Code: ErrCodeEscrowCall, Message: "release failed", State: StateSubmitCall, Err: errors.New("reverted")}
	want := "escrow_call_failed: release failed (state submit_call): reverted"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}
