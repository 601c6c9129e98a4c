package talentlayer

import (
	"context"
	"math/big"

	"github.com/talentlayer/talentlayer-go/pkg/graph"
)

// LedgerClient is the signing ledger adapter the SDK writes through.
// signers/evm provides an ethclient-backed implementation.
type LedgerClient interface {
	// Address returns the account the client signs for.
	Address() string

	// ReadContract calls a view method and returns its first output.
	ReadContract(ctx context.Context, address string, abi []byte, method string, args ...interface{}) (interface{}, error)

	// WriteContract submits a transaction and returns its hash. value is sent with the call and may be nil.
	WriteContract(ctx context.Context, address string, abi []byte, method string, value *big.Int, args ...interface{}) (string, error)

	// WaitForTransactionReceipt blocks until the transaction is mined or ctx is done.
	WaitForTransactionReceipt(ctx context.Context, txHash string) (*TransactionReceipt, error)
}

// BalanceReader is implemented by ledger clients that can report the signing account's
// balance. signers/evm.Ledger implements it.
type BalanceReader interface {
	Balance(ctx context.Context, token string, erc20ABI []byte) (*big.Int, error)
}

// GraphClient queries the indexed data service.
type GraphClient interface {
	Query(ctx context.Context, query string, variables map[string]interface{}) (*graph.Response, error)
}

// ContentStore persists documents and returns their content identifier.
type ContentStore interface {
	Put(ctx context.Context, payload []byte) (string, error)
}

// EscrowAPI is the operation surface served over HTTP and MCP. *Client implements it.
type EscrowAPI interface {
	GetProposal(ctx context.Context, serviceID, proposalID string) (*Proposal, error)
	GetService(ctx context.Context, serviceID string) (*Service, error)
	QuoteApproval(ctx context.Context, serviceID, proposalID string) (*Quote, error)
	Approve(ctx context.Context, serviceID, proposalID, metaEvidenceCID string) (*ApproveResult, error)
	Release(ctx context.Context, serviceID string, amount *big.Int, userID string) (*SettleResult, error)
	Reimburse(ctx context.Context, serviceID string, amount *big.Int, userID string) (*SettleResult, error)
	Arbitrators() ([]Arbitrator, error)
	UpdateArbitrator(ctx context.Context, platformID, arbitrator string) (string, error)
}

var _ EscrowAPI = (*Client)(nil)
