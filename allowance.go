package talentlayer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/talentlayer/talentlayer-go/networks"
)

// AllowanceCoordinator makes sure the escrow contract may pull a token amount from the
// ledger client's account. Approvals are always for the exact required amount.
type AllowanceCoordinator struct {
	ledger  LedgerClient
	spender string
	log     logrus.FieldLogger
}

// NewAllowanceCoordinator creates a coordinator approving spender. A nil logger discards logs.
func NewAllowanceCoordinator(ledger LedgerClient, spender string, log logrus.FieldLogger) *AllowanceCoordinator {
	if log == nil {
		log = discardLogger()
	}
	return &AllowanceCoordinator{ledger: ledger, spender: spender, log: log}
}

// EnsureAllowance reads the current allowance and, when it is below required, submits
// approve(spender, required) and waits for it to be mined. Nothing is retried.
//
// Returns:
//   - a result with an empty ApprovalTxHash when the allowance already covers required
//   - approval_submission_failed when the allowance read, the approve call or the
//     receipt wait fails
//   - approval_failed when the approval transaction reverted
func (a *AllowanceCoordinator) EnsureAllowance(ctx context.Context, token string, required *big.Int) (*AllowanceResult, error) {
	if required == nil || required.Sign() < 0 {
		return nil, NewError(ErrCodeInvalidAmount, "required allowance must not be negative", nil)
	}
	owner := a.ledger.Address()
	log := a.log.WithFields(logrus.Fields{
		"token":    networks.NormalizeAddress(token),
		"owner":    owner,
		"spender":  a.spender,
		"required": required.String(),
	})

	raw, err := a.ledger.ReadContract(ctx, token, networks.ERC20ABI, "allowance",
		common.HexToAddress(owner), common.HexToAddress(a.spender))
	if err != nil {
		return nil, NewError(ErrCodeApprovalSubmission, "failed to read allowance", err)
	}
	current, ok := raw.(*big.Int)
	if !ok {
		return nil, NewError(ErrCodeApprovalSubmission, fmt.Sprintf("unexpected allowance type %T", raw), nil)
	}

	result := &AllowanceResult{Current: current, Required: new(big.Int).Set(required)}
	if current.Cmp(required) >= 0 {
		log.WithField("allowance", current.String()).Debug("allowance already sufficient")
		return result, nil
	}

	txHash, err := a.ledger.WriteContract(ctx, token, networks.ERC20ABI, "approve", nil,
		common.HexToAddress(a.spender), new(big.Int).Set(required))
	if err != nil {
		return nil, NewError(ErrCodeApprovalSubmission, "failed to submit approval", err)
	}
	log = log.WithField("tx_hash", txHash)
	log.Info("approval submitted")

	receipt, err := a.ledger.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, NewError(ErrCodeApprovalSubmission, "failed waiting for approval receipt", err).
			WithDetail("txHash", txHash)
	}
	if receipt.Status != TxStatusSuccess {
		return nil, NewError(ErrCodeApprovalFailed, "approval transaction reverted", nil).
			WithDetail("txHash", txHash)
	}

	log.Info("approval confirmed")
	result.ApprovalTxHash = txHash
	return result, nil
}
