package talentlayer

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/talentlayer/talentlayer-go/networks"
)

// approveMachine carries one Approve attempt through its states.
// Each step returns the next state; the machine never revisits a state.
type approveMachine struct {
	client  *Client
	network networks.NetworkConfig
	log     *logrus.Entry

	serviceID       string
	proposalID      string
	metaEvidenceCID string

	state   State
	visited []State

	escrow     networks.ContractInfo
	serviceArg *big.Int
	sellerArg  *big.Int
	proposal   *Proposal
	native     bool
	amount     *big.Int
	value      *big.Int
	approvalTx string
	txHash     string
}

// Approve funds the escrow for proposal proposalID of service serviceID.
//
// Native-currency proposals go straight to createTransaction with the rate amount as
// value. ERC-20 proposals first resolve the fee schedule, compute the fee-inclusive
// amount and make sure the escrow contract is approved for exactly that amount.
//
// Returns:
//   - the result with every state visited, on success
//   - an *Error carrying the state the attempt stopped in, otherwise. A network without
//     a deployment fails with missing_deployment before anything is read or written.
func (c *Client) Approve(ctx context.Context, serviceID, proposalID, metaEvidenceCID string) (*ApproveResult, error) {
	op := c.newOperation(OperationApprove, serviceID, proposalID)
	log := c.entry(op).WithField("proposal_id", proposalID)
	started := c.now()

	if err := c.runBeforeHooks(ctx, op); err != nil {
		return nil, c.fail(ctx, op, log, atState(err, StateStart), started)
	}

	network, err := c.network()
	if err != nil {
		return nil, c.fail(ctx, op, log, atState(err, StateStart), started)
	}

	m := &approveMachine{
		client:          c,
		network:         network,
		log:             log,
		serviceID:       serviceID,
		proposalID:      proposalID,
		metaEvidenceCID: metaEvidenceCID,
		state:           StateStart,
	}
	if err := m.run(ctx); err != nil {
		return nil, c.fail(ctx, op, log, err, started)
	}

	result := &ApproveResult{
		AttemptID:       op.AttemptID,
		TransactionHash: m.txHash,
		ContentID:       m.proposal.CID,
		Amount:          copyBig(m.amount),
		Native:          m.native,
		ApprovalTxHash:  m.approvalTx,
		States:          m.visited,
	}
	log.WithFields(logrus.Fields{
		"tx_hash": m.txHash,
		"amount":  m.amount.String(),
		"native":  m.native,
	}).Info("escrow transaction created")

	c.runAfterHooks(OperationResultContext{
		Ctx:              ctx,
		OperationContext: op,
		TransactionHash:  m.txHash,
		ApprovalTxHash:   m.approvalTx,
		Amount:           copyBig(m.amount),
		Duration:         c.now().Sub(started),
	})
	return result, nil
}

func (m *approveMachine) run(ctx context.Context) error {
	for m.state != StateDone {
		m.visited = append(m.visited, m.state)

		var next State
		var err error
		switch m.state {
		case StateStart:
			next, err = m.start(ctx)
		case StateBranchOnToken:
			next, err = m.branchOnToken()
		case StateResolveFees:
			next, err = m.resolveFees(ctx)
		case StateEnsureAllowance:
			next, err = m.ensureAllowance(ctx)
		case StateDirectCreate:
			next, err = m.directCreate(ctx)
		default:
			err = fmt.Errorf("unknown approve state %q", m.state)
		}
		if err != nil {
			return atState(err, m.state)
		}

		m.log.WithFields(logrus.Fields{"state": m.state, "next": next}).Debug("approve transition")
		m.state = next
	}
	m.visited = append(m.visited, StateDone)
	return nil
}

func (m *approveMachine) start(ctx context.Context) (State, error) {
	if err := m.client.requireLedger(); err != nil {
		return "", err
	}
	var err error
	if m.serviceArg, err = parseID("service id", m.serviceID); err != nil {
		return "", err
	}
	if _, err = parseID("proposal id", m.proposalID); err != nil {
		return "", err
	}
	if m.escrow, err = contract(m.network, networks.TalentLayerEscrow, ErrCodeEscrowCreation); err != nil {
		return "", err
	}

	proposal, err := m.client.GetProposal(ctx, m.serviceID, m.proposalID)
	if err != nil {
		return "", err
	}
	if proposal == nil {
		return "", NewError(ErrCodeProposalNotFound,
			fmt.Sprintf("proposal %s not found", ProposalKey(m.serviceID, m.proposalID)), nil)
	}
	if proposal.CID == "" {
		return "", NewError(ErrCodeMissingContentID,
			fmt.Sprintf("proposal %s has no cid", proposal.ID), nil)
	}
	if m.sellerArg, err = parseID("seller id", proposal.SellerID); err != nil {
		return "", err
	}

	m.proposal = proposal
	return StateBranchOnToken, nil
}

func (m *approveMachine) branchOnToken() (State, error) {
	if m.proposal.RateToken.IsNative() {
		m.native = true
		m.amount = new(big.Int).Set(m.proposal.RateAmount)
		m.value = new(big.Int).Set(m.proposal.RateAmount)
		return StateDirectCreate, nil
	}
	return StateResolveFees, nil
}

func (m *approveMachine) resolveFees(ctx context.Context) (State, error) {
	rates, err := NewFeeResolver(m.client.graph).ResolveFees(ctx,
		m.proposal.ServicePlatformID, m.proposal.ProposalPlatformID)
	if err != nil {
		return "", err
	}

	amount, err := ComputeApprovalAmount(
		m.proposal.RateAmount,
		rates.OriginServiceFeeRate,
		rates.OriginValidatedProposalFeeRate,
		rates.ProtocolEscrowFeeRate,
		big.NewInt(FeeRateDivider),
	)
	if err != nil {
		return "", err
	}

	m.log.WithFields(logrus.Fields{
		"protocol_escrow_fee_rate":           rates.ProtocolEscrowFeeRate.String(),
		"origin_service_fee_rate":            rates.OriginServiceFeeRate.String(),
		"origin_validated_proposal_fee_rate": rates.OriginValidatedProposalFeeRate.String(),
		"amount":                             amount.String(),
	}).Debug("fees resolved")

	m.amount = amount
	m.value = big.NewInt(0)
	return StateEnsureAllowance, nil
}

func (m *approveMachine) ensureAllowance(ctx context.Context) (State, error) {
	coordinator := NewAllowanceCoordinator(m.client.ledger, m.escrow.Address, m.log)
	result, err := coordinator.EnsureAllowance(ctx, m.proposal.RateToken.Address, m.amount)
	if err != nil {
		return "", err
	}
	m.approvalTx = result.ApprovalTxHash
	return StateDirectCreate, nil
}

func (m *approveMachine) directCreate(ctx context.Context) (State, error) {
	intent := EscrowIntent{
		ServiceID:       m.serviceID,
		SellerID:        m.proposal.SellerID,
		MetaEvidenceCID: m.metaEvidenceCID,
		ProposalCID:     m.proposal.CID,
		Value:           m.value,
	}

	txHash, err := m.client.ledger.WriteContract(ctx, m.escrow.Address, m.escrow.ABI, "createTransaction",
		intent.Value, m.serviceArg, m.sellerArg, intent.MetaEvidenceCID, intent.ProposalCID)
	if err != nil {
		return "", NewError(ErrCodeEscrowCreation, "createTransaction failed", err)
	}
	m.txHash = txHash
	return StateDone, nil
}

// Release pays amount of the service's escrow to the seller on behalf of userID.
// Every call submits a ledger transaction; repeated calls are distinct partial releases.
//
// Returns:
//   - invalid_amount when amount is not positive
//   - service_not_found or transaction_not_found when the service has no escrow
//   - escrow_call_failed, at state submit_call, when the ledger rejects the call
func (c *Client) Release(ctx context.Context, serviceID string, amount *big.Int, userID string) (*SettleResult, error) {
	return c.settle(ctx, OperationRelease, serviceID, amount, userID)
}

// Reimburse returns amount of the service's escrow to the buyer on behalf of userID.
// Failures are reported as for Release.
func (c *Client) Reimburse(ctx context.Context, serviceID string, amount *big.Int, userID string) (*SettleResult, error) {
	return c.settle(ctx, OperationReimburse, serviceID, amount, userID)
}

func (c *Client) settle(ctx context.Context, op Operation, serviceID string, amount *big.Int, userID string) (*SettleResult, error) {
	opCtx := c.newOperation(op, serviceID, "")
	log := c.entry(opCtx)
	started := c.now()

	if err := c.runBeforeHooks(ctx, opCtx); err != nil {
		return nil, c.fail(ctx, opCtx, log, atState(err, StateResolveTransaction), started)
	}

	transactionID, txHash, err := c.submitSettle(ctx, op, serviceID, amount, userID)
	if err != nil {
		return nil, c.fail(ctx, opCtx, log, err, started)
	}

	log.WithFields(logrus.Fields{
		"tx_hash":        txHash,
		"transaction_id": transactionID,
		"amount":         amount.String(),
	}).Info("escrow " + string(op) + " submitted")

	c.runAfterHooks(OperationResultContext{
		Ctx:              ctx,
		OperationContext: opCtx,
		TransactionHash:  txHash,
		Amount:           copyBig(amount),
		Duration:         c.now().Sub(started),
	})
	return &SettleResult{
		AttemptID:       opCtx.AttemptID,
		TransactionHash: txHash,
		TransactionID:   transactionID,
		Amount:          copyBig(amount),
	}, nil
}

func (c *Client) submitSettle(ctx context.Context, op Operation, serviceID string, amount *big.Int, userID string) (string, string, error) {
	fail := func(err error) (string, string, error) {
		return "", "", atState(err, StateResolveTransaction)
	}

	if amount == nil || amount.Sign() <= 0 {
		return fail(NewError(ErrCodeInvalidAmount, "amount must be positive", nil))
	}
	userArg, err := parseID("user id", userID)
	if err != nil {
		return fail(err)
	}
	if err := c.requireLedger(); err != nil {
		return fail(err)
	}
	network, err := c.network()
	if err != nil {
		return fail(err)
	}
	escrow, err := contract(network, networks.TalentLayerEscrow, ErrCodeEscrowCall)
	if err != nil {
		return fail(err)
	}

	transactionID, err := c.GetTransactionID(ctx, serviceID)
	if err != nil {
		return fail(err)
	}
	transactionArg, err := parseID("transaction id", transactionID)
	if err != nil {
		return fail(err)
	}

	txHash, err := c.ledger.WriteContract(ctx, escrow.Address, escrow.ABI, string(op), nil,
		userArg, transactionArg, new(big.Int).Set(amount))
	if err != nil {
		return "", "", atState(NewError(ErrCodeEscrowCall, string(op)+" failed", err), StateSubmitCall)
	}
	return transactionID, txHash, nil
}

// Quote is the amount an Approve of a proposal would commit.
type Quote struct {
	Proposal  *Proposal     `json:"proposal"`
	Native    bool          `json:"native"`
	Breakdown *FeeBreakdown `json:"breakdown"`
}

// QuoteApproval computes what Approve would send or approve for a proposal without writing anything.
func (c *Client) QuoteApproval(ctx context.Context, serviceID, proposalID string) (*Quote, error) {
	proposal, err := c.GetProposal(ctx, serviceID, proposalID)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, NewError(ErrCodeProposalNotFound,
			fmt.Sprintf("proposal %s not found", ProposalKey(serviceID, proposalID)), nil)
	}

	if proposal.RateToken.IsNative() {
		return &Quote{
			Proposal: proposal,
			Native:   true,
			Breakdown: &FeeBreakdown{
				RateAmount:                 copyBig(proposal.RateAmount),
				ProtocolEscrowFee:          new(big.Int),
				OriginServiceFee:           new(big.Int),
				OriginValidatedProposalFee: new(big.Int),
				Total:                      copyBig(proposal.RateAmount),
			},
		}, nil
	}

	rates, err := NewFeeResolver(c.graph).ResolveFees(ctx, proposal.ServicePlatformID, proposal.ProposalPlatformID)
	if err != nil {
		return nil, err
	}
	breakdown, err := ComputeFeeBreakdown(proposal.RateAmount, *rates, big.NewInt(FeeRateDivider))
	if err != nil {
		return nil, err
	}
	return &Quote{Proposal: proposal, Breakdown: breakdown}, nil
}

func (c *Client) newOperation(op Operation, serviceID, proposalID string) OperationContext {
	return OperationContext{
		Operation:  op,
		AttemptID:  c.newAttemptID(),
		Network:    c.networkID,
		ServiceID:  serviceID,
		ProposalID: proposalID,
		Timestamp:  c.now(),
	}
}

func (c *Client) fail(ctx context.Context, op OperationContext, log *logrus.Entry, err error, started time.Time) error {
	state := StateOf(err)
	code := CodeOf(err)
	log.WithError(err).WithFields(logrus.Fields{
		"state": state,
		"code":  code,
	}).Error("escrow " + string(op.Operation) + " failed")

	c.runFailureHooks(OperationFailureContext{
		Ctx:              ctx,
		OperationContext: op,
		Error:            err,
		State:            state,
		Code:             code,
		Duration:         c.now().Sub(started),
	})
	return err
}
