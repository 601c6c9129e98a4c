package talentlayer

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentlayer/talentlayer-go/networks"
)

func TestArbitratorsFor(t *testing.T) {
	cfg, err := networks.Lookup(networks.Local)
	require.NoError(t, err)

	list := ArbitratorsFor(cfg)
	require.Len(t, list, 2)
	assert.Equal(t, Arbitrator{Address: networks.NativeTokenAddress, Name: ArbitratorNone}, list[0])
	assert.Equal(t, cfg.ArbitratorAddress(), list[1].Address)
	assert.Equal(t, ArbitratorTalentLayer, list[1].Name)

	cfg.Contracts = map[networks.ContractName]networks.ContractInfo{}
	assert.Len(t, ArbitratorsFor(cfg), 1)

	// a network without a deployment only allows opting out of arbitration
	polygon, err := networks.Lookup(networks.Polygon)
	require.NoError(t, err)
	assert.Equal(t, []Arbitrator{{Address: networks.NativeTokenAddress, Name: ArbitratorNone}}, ArbitratorsFor(polygon))
}

func TestValidateArbitrator(t *testing.T) {
	cfg, err := networks.Lookup(networks.Local)
	require.NoError(t, err)
	arbitrator := cfg.ArbitratorAddress()

	assert.NoError(t, ValidateArbitrator(cfg, networks.NativeTokenAddress))
	assert.NoError(t, ValidateArbitrator(cfg, arbitrator))
	assert.NoError(t, ValidateArbitrator(cfg, strings.ToUpper(arbitrator[2:])))

	err = ValidateArbitrator(cfg, "0x1234567890123456789012345678901234567890")
	assert.ErrorIs(t, err, ErrInvalidArbitrator)

	// an arbitrator of another deployment is rejected
	fork := networks.NetworkConfig{ID: 31337, Contracts: map[networks.ContractName]networks.ContractInfo{
		networks.TalentLayerArbitrator: {Address: "0x2222222222222222222222222222222222222222"},
	}}
	assert.ErrorIs(t, ValidateArbitrator(cfg, fork.ArbitratorAddress()), ErrInvalidArbitrator)
	assert.NoError(t, ValidateArbitrator(fork, fork.ArbitratorAddress()))
}

func TestValidateNetworkArbitrator(t *testing.T) {
	local, err := networks.Lookup(networks.Local)
	require.NoError(t, err)

	assert.NoError(t, ValidateNetworkArbitrator(networks.Local, local.ArbitratorAddress()))
	assert.NoError(t, ValidateNetworkArbitrator(networks.Polygon, networks.NativeTokenAddress))
	assert.ErrorIs(t, ValidateNetworkArbitrator(networks.Polygon, local.ArbitratorAddress()), ErrInvalidArbitrator)

	err = ValidateNetworkArbitrator(networks.NetworkID(5), networks.NativeTokenAddress)
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)
	assert.ErrorIs(t, err, networks.ErrUnsupportedNetwork)
	assert.Equal(t, ErrCodeUnsupportedNetwork, CodeOf(err))
}

func TestUpdateArbitrator(t *testing.T) {
	ledger := newMockLedger()
	c := newTestClient(t, newMockGraph(), ledger, WithPlatformID("7"))
	cfg, err := c.Network()
	require.NoError(t, err)

	_, err = c.UpdateArbitrator(context.Background(), "", "0x1234567890123456789012345678901234567890")
	assert.ErrorIs(t, err, ErrInvalidArbitrator)
	assert.Empty(t, ledger.writes)

	txHash, err := c.UpdateArbitrator(context.Background(), "", cfg.ArbitratorAddress())
	require.NoError(t, err)
	assert.NotEmpty(t, txHash)

	require.Len(t, ledger.writes, 1)
	w := ledger.writes[0]
	assert.Equal(t, "updateArbitrator", w.method)
	assert.Equal(t, cfg.Contracts[networks.TalentLayerPlatformID].Address, w.address)
	require.Len(t, w.args, 3)
	assert.Equal(t, "7", w.args[0].(interface{ String() string }).String())
	assert.Equal(t, common.HexToAddress(cfg.ArbitratorAddress()), w.args[1])
	assert.Equal(t, []byte{}, w.args[2])
}

func TestResolvePlatformID(t *testing.T) {
	c := newTestClient(t, newMockGraph(), newMockLedger())

	_, err := c.ResolvePlatformID("")
	assert.ErrorIs(t, err, ErrMissingPlatformID)

	id, err := c.ResolvePlatformID("3")
	require.NoError(t, err)
	assert.Equal(t, "3", id)

	withDefault := newTestClient(t, newMockGraph(), newMockLedger(), WithPlatformID("9"))
	id, err = withDefault.ResolvePlatformID("")
	require.NoError(t, err)
	assert.Equal(t, "9", id)

	id, err = withDefault.ResolvePlatformID("3")
	require.NoError(t, err)
	assert.Equal(t, "3", id)
}

func TestUpdateFeeRates(t *testing.T) {
	ledger := newMockLedger()
	c := newTestClient(t, newMockGraph(), ledger)

	_, err := c.UpdateOriginServiceFeeRate(context.Background(), "3", FeeRateDivider+1)
	assert.ErrorIs(t, err, ErrInvalidFeeRate)
	_, err = c.UpdateOriginValidatedProposalFeeRate(context.Background(), "3", -1)
	assert.ErrorIs(t, err, ErrInvalidFeeRate)
	_, err = c.UpdateOriginServiceFeeRate(context.Background(), "", 100)
	assert.ErrorIs(t, err, ErrMissingPlatformID)
	assert.Empty(t, ledger.writes)

	_, err = c.UpdateOriginServiceFeeRate(context.Background(), "3", 250)
	require.NoError(t, err)
	_, err = c.UpdateOriginValidatedProposalFeeRate(context.Background(), "3", FeeRateDivider)
	require.NoError(t, err)

	require.Len(t, ledger.writes, 2)
	assert.Equal(t, "updateOriginServiceFeeRate", ledger.writes[0].method)
	assert.Equal(t, uint16(250), ledger.writes[0].args[1])
	assert.Equal(t, "updateOriginValidatedProposalFeeRate", ledger.writes[1].method)
	assert.Equal(t, uint16(FeeRateDivider), ledger.writes[1].args[1])
}

func TestArbitrationCost(t *testing.T) {
	ledger := newMockLedger()
	c := newTestClient(t, newMockGraph(), ledger)

	cost, err := c.ArbitrationCost(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, int64(42), cost.Int64())
	require.Len(t, ledger.reads, 1)
	assert.Equal(t, "arbitrationCost", ledger.reads[0].method)
}

func TestClientRejectsUnsupportedNetwork(t *testing.T) {
	_, err := NewClient(networks.NetworkID(5), newMockGraph())
	assert.ErrorIs(t, err, ErrUnsupportedNetwork)
	assert.ErrorIs(t, err, networks.ErrUnsupportedNetwork)

	custom := &networks.NetworkConfig{ID: 5, Name: "custom"}
	c, err := NewClient(networks.NetworkID(5), newMockGraph(), WithCustomNetwork(custom), WithLogger(discardLogger()))
	require.NoError(t, err)
	list, err := c.Arbitrators()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestNewClientRequiresGraph(t *testing.T) {
	_, err := NewClient(networks.Polygon, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
