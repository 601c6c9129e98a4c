package talentlayer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/talentlayer/talentlayer-go/networks"
)

// Balance returns the signing account's balance in token, or in the native currency
// when token is the zero address.
//
// Returns:
//   - a missing_ledger error when no ledger is configured or it cannot report balances
//   - an escrow_call_failed error when the balance read fails
func (c *Client) Balance(ctx context.Context, token string) (*big.Int, error) {
	if err := c.requireLedger(); err != nil {
		return nil, err
	}
	reader, ok := c.ledger.(BalanceReader)
	if !ok {
		return nil, NewError(ErrCodeMissingLedger, fmt.Sprintf("ledger client %T cannot report balances", c.ledger), nil)
	}
	balance, err := reader.Balance(ctx, token, networks.ERC20ABI)
	if err != nil {
		return nil, NewError(ErrCodeEscrowCall, "balance read failed", err).WithDetail("token", token)
	}
	return balance, nil
}

// CheckFunds quotes the approval of a proposal and verifies the signing account holds the
// fee-inclusive total in the proposal's token. Nothing is written.
func (c *Client) CheckFunds(ctx context.Context, serviceID, proposalID string) (*Quote, error) {
	quote, err := c.QuoteApproval(ctx, serviceID, proposalID)
	if err != nil {
		return nil, err
	}
	balance, err := c.Balance(ctx, quote.Proposal.RateToken.Address)
	if err != nil {
		return nil, err
	}

	required := quote.Breakdown.Total
	c.logger.WithFields(logrus.Fields{
		"service_id":  serviceID,
		"proposal_id": proposalID,
		"token":       quote.Proposal.RateToken.Address,
		"balance":     balance.String(),
		"required":    required.String(),
	}).Debug("funds checked")

	if balance.Cmp(required) < 0 {
		return nil, NewError(ErrCodeInsufficientFunds,
			fmt.Sprintf("balance %s is below the required %s", balance, required), nil).
			WithDetail("balance", balance.String()).
			WithDetail("required", required.String())
	}
	return quote, nil
}
