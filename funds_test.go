package talentlayer

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentlayer/talentlayer-go/networks"
	"github.com/talentlayer/talentlayer-go/pkg/graph"
)

// plainLedger hides the balance method of mockLedger
type plainLedger struct {
	LedgerClient
}

func TestCheckFunds(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		balance int64
		want    error
	}{
		{"erc20 covers fees", testUSDC, 1_100_000, nil},
		{"erc20 short of fees", testUSDC, 1_099_999, ErrInsufficientFunds},
		{"native covers rate", networks.NativeTokenAddress, 1_000_000, nil},
		{"native short", networks.NativeTokenAddress, 10, ErrInsufficientFunds},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newMockGraph()
			g.responses[graph.ProposalQuery] = proposalJSON(tt.token, "1000000", "QmProposal")
			g.responses[graph.ProtocolAndPlatformsFeesQuery] = feesJSON
			ledger := newMockLedger()
			ledger.balance = big.NewInt(tt.balance)
			c := newTestClient(t, g, ledger)

			quote, err := c.CheckFunds(context.Background(), "1", "2")
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
				assert.Nil(t, quote)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, quote.Breakdown)
			}
			require.Len(t, ledger.reads, 1)
			assert.Equal(t, "balanceOf", ledger.reads[0].method)
			assert.Equal(t, tt.token, ledger.reads[0].address)
			assert.Empty(t, ledger.writes)
		})
	}
}

func TestBalanceRequiresCapableLedger(t *testing.T) {
	_, err := newTestClient(t, newMockGraph(), nil).Balance(context.Background(), testUSDC)
	assert.ErrorIs(t, err, ErrMissingLedger)

	c := newTestClient(t, newMockGraph(), nil, WithLedger(plainLedger{newMockLedger()}))
	_, err = c.Balance(context.Background(), testUSDC)
	assert.ErrorIs(t, err, ErrMissingLedger)
	assert.ErrorContains(t, err, "cannot report balances")

	ledger := newMockLedger()
	ledger.readErr = errors.New("rpc down")
	_, err = newTestClient(t, newMockGraph(), ledger).Balance(context.Background(), testUSDC)
	assert.ErrorIs(t, err, ErrEscrowCall)
}
