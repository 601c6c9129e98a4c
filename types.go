package talentlayer

import (
	"math/big"
	"time"

	"github.com/talentlayer/talentlayer-go/networks"
)

// FeeRateDivider is the basis-point denominator of every fee rate.
const FeeRateDivider = 10000

// State is a step of a multi-step escrow operation.
type State string

// Approve states, in order of traversal.
const (
	StateStart           State = "start"
	StateBranchOnToken   State = "branch_on_token"
	StateResolveFees     State = "resolve_fees"
	StateEnsureAllowance State = "ensure_allowance"
	StateDirectCreate    State = "direct_create"
	StateDone            State = "done"
)

// Release and reimburse states.
const (
	StateResolveTransaction State = "resolve_transaction"
	StateSubmitCall         State = "submit_call"
)

// Operation names an escrow operation in hooks, logs and events.
type Operation string

const (
	OperationApprove   Operation = "approve"
	OperationRelease   Operation = "release"
	OperationReimburse Operation = "reimburse"
)

// FeeRates are the three basis-point rates applied on top of a proposal's rate amount.
type FeeRates struct {
	ProtocolEscrowFeeRate          *big.Int
	OriginServiceFeeRate           *big.Int
	OriginValidatedProposalFeeRate *big.Int
}

// FeeBreakdown is the itemised approval amount.
type FeeBreakdown struct {
	RateAmount                 *big.Int `json:"rateAmount"`
	ProtocolEscrowFee          *big.Int `json:"protocolEscrowFee"`
	OriginServiceFee           *big.Int `json:"originServiceFee"`
	OriginValidatedProposalFee *big.Int `json:"originValidatedProposalFee"`
	Total                      *big.Int `json:"total"`
}

// Token is the payment token of a proposal.
type Token struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// IsNative reports whether the token is the chain's native currency.
func (t Token) IsNative() bool {
	return networks.IsNativeToken(t.Address)
}

// Proposal is a seller's offer on a service, as indexed by the subgraph.
type Proposal struct {
	ID                 string   `json:"id"`
	ServiceID          string   `json:"serviceId"`
	SellerID           string   `json:"sellerId"`
	RateAmount         *big.Int `json:"rateAmount"`
	RateToken          Token    `json:"rateToken"`
	ServicePlatformID  string   `json:"servicePlatformId"`
	ProposalPlatformID string   `json:"proposalPlatformId"`
	CID                string   `json:"cid"`
	Status             string   `json:"status"`
}

// Service is a buyer's job posting, as indexed by the subgraph.
type Service struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	BuyerID       string `json:"buyerId"`
	SellerID      string `json:"sellerId,omitempty"`
	PlatformID    string `json:"platformId"`
	TransactionID string `json:"transactionId,omitempty"`
	CID           string `json:"cid"`
}

// Platform is a marketplace operator registered on TalentLayer.
type Platform struct {
	ID                             string   `json:"id"`
	Name                           string   `json:"name"`
	OriginServiceFeeRate           *big.Int `json:"originServiceFeeRate"`
	OriginValidatedProposalFeeRate *big.Int `json:"originValidatedProposalFeeRate"`
	Arbitrator                     string   `json:"arbitrator,omitempty"`
}

// EscrowIntent is the argument set of a createTransaction call.
type EscrowIntent struct {
	ServiceID       string
	SellerID        string
	MetaEvidenceCID string
	ProposalCID     string
	Value           *big.Int
}

// Arbitrator is an allow-listed arbitrator of a network.
type Arbitrator struct {
	Address string `json:"address"`
	Name    string `json:"name"`
}

// ApproveResult is returned by a successful Approve.
type ApproveResult struct {
	AttemptID       string   `json:"attemptId"`
	TransactionHash string   `json:"transactionHash"`
	ContentID       string   `json:"cid"`
	Amount          *big.Int `json:"amount"`
	Native          bool     `json:"native"`
	ApprovalTxHash  string   `json:"approvalTxHash,omitempty"`
	States          []State  `json:"states"`
}

// SettleResult is returned by a successful Release or Reimburse.
type SettleResult struct {
	AttemptID       string   `json:"attemptId"`
	TransactionHash string   `json:"transactionHash"`
	TransactionID   string   `json:"transactionId"`
	Amount          *big.Int `json:"amount"`
}

// AllowanceResult describes the outcome of EnsureAllowance.
type AllowanceResult struct {
	Current        *big.Int
	Required       *big.Int
	ApprovalTxHash string // empty when the existing allowance sufficed
}

// TransactionReceipt is the minimal receipt the SDK needs.
type TransactionReceipt struct {
	Status      uint64
	BlockNumber uint64
	TxHash      string
}

// Receipt status values
const (
	TxStatusFailed  uint64 = 0
	TxStatusSuccess uint64 = 1
)

// OperationContext describes an escrow operation passed to hooks.
type OperationContext struct {
	Operation  Operation
	AttemptID  string
	Network    networks.NetworkID
	ServiceID  string
	ProposalID string
	Timestamp  time.Time
}
