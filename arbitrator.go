package talentlayer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/talentlayer/talentlayer-go/networks"
)

// Names of the allow-listed arbitrators
const (
	ArbitratorNone        = "None"
	ArbitratorTalentLayer = "TalentLayer Arbitrator"
)

// ArbitratorsFor returns the arbitrators a platform on network may select: the zero
// address (no arbitration) and, when deployed, the network's TalentLayer arbitrator.
func ArbitratorsFor(network networks.NetworkConfig) []Arbitrator {
	list := []Arbitrator{{Address: networks.NativeTokenAddress, Name: ArbitratorNone}}
	if addr := network.ArbitratorAddress(); addr != "" {
		list = append(list, Arbitrator{Address: addr, Name: ArbitratorTalentLayer})
	}
	return list
}

// ValidateArbitrator checks candidate against the allow-list of network, ignoring case.
func ValidateArbitrator(network networks.NetworkConfig, candidate string) error {
	for _, a := range ArbitratorsFor(network) {
		if networks.SameAddress(a.Address, candidate) {
			return nil
		}
	}
	return NewError(ErrCodeInvalidArbitrator,
		fmt.Sprintf("%s is not an allowed arbitrator on network %d", candidate, network.ID), nil)
}

// ValidateNetworkArbitrator checks candidate against the allow-list of a registered network.
//
// Returns:
//   - an unsupported_network error when id is not in the registry
//   - an invalid_arbitrator error when candidate is not allowed on the network
func ValidateNetworkArbitrator(id networks.NetworkID, candidate string) error {
	network, err := resolveNetwork(networks.NewResolver(nil), id)
	if err != nil {
		return err
	}
	return ValidateArbitrator(network, candidate)
}

// Arbitrators returns the allow-list of the client's network.
func (c *Client) Arbitrators() ([]Arbitrator, error) {
	network, err := c.network()
	if err != nil {
		return nil, err
	}
	return ArbitratorsFor(network), nil
}

// ValidateArbitrator checks candidate against the allow-list of the client's network.
func (c *Client) ValidateArbitrator(candidate string) error {
	network, err := c.network()
	if err != nil {
		return err
	}
	return ValidateArbitrator(network, candidate)
}

// UpdateArbitrator sets the arbitrator of a platform. An empty platformID falls back to
// the client's default. The address is checked against the allow-list before any write.
func (c *Client) UpdateArbitrator(ctx context.Context, platformID, arbitrator string) (string, error) {
	network, err := c.network()
	if err != nil {
		return "", err
	}
	if err := ValidateArbitrator(network, arbitrator); err != nil {
		return "", err
	}
	return c.writePlatform(ctx, network, platformID, "updateArbitrator",
		common.HexToAddress(arbitrator), []byte{})
}

// UpdateOriginServiceFeeRate sets the fee a platform takes on services it originated.
func (c *Client) UpdateOriginServiceFeeRate(ctx context.Context, platformID string, rate int) (string, error) {
	return c.updateFeeRate(ctx, platformID, "updateOriginServiceFeeRate", rate)
}

// UpdateOriginValidatedProposalFeeRate sets the fee a platform takes on proposals it originated.
func (c *Client) UpdateOriginValidatedProposalFeeRate(ctx context.Context, platformID string, rate int) (string, error) {
	return c.updateFeeRate(ctx, platformID, "updateOriginValidatedProposalFeeRate", rate)
}

func (c *Client) updateFeeRate(ctx context.Context, platformID, method string, rate int) (string, error) {
	if rate < 0 || rate > FeeRateDivider {
		return "", NewError(ErrCodeInvalidFeeRate,
			fmt.Sprintf("fee rate must be between 0 and %d, got %d", FeeRateDivider, rate), nil)
	}
	network, err := c.network()
	if err != nil {
		return "", err
	}
	return c.writePlatform(ctx, network, platformID, method, uint16(rate))
}

func (c *Client) writePlatform(ctx context.Context, network networks.NetworkConfig, platformID, method string, args ...interface{}) (string, error) {
	if err := c.requireLedger(); err != nil {
		return "", err
	}
	resolved, err := c.ResolvePlatformID(platformID)
	if err != nil {
		return "", err
	}
	platformArg, err := parseID("platform id", resolved)
	if err != nil {
		return "", err
	}
	platformContract, err := contract(network, networks.TalentLayerPlatformID, ErrCodeEscrowCall)
	if err != nil {
		return "", err
	}

	txHash, err := c.ledger.WriteContract(ctx, platformContract.Address, platformContract.ABI, method, nil,
		append([]interface{}{platformArg}, args...)...)
	if err != nil {
		return "", NewError(ErrCodeEscrowCall, method+" failed", err)
	}

	c.logger.WithFields(logrus.Fields{
		"network":     int(network.ID),
		"platform_id": resolved,
		"method":      method,
		"tx_hash":     txHash,
	}).Info("platform updated")
	return txHash, nil
}

// ArbitrationCost reads the arbitration fee of the network's TalentLayer arbitrator.
func (c *Client) ArbitrationCost(ctx context.Context, extraData []byte) (*big.Int, error) {
	if err := c.requireLedger(); err != nil {
		return nil, err
	}
	network, err := c.network()
	if err != nil {
		return nil, err
	}
	arbitrator, err := contract(network, networks.TalentLayerArbitrator, ErrCodeInvalidArbitrator)
	if err != nil {
		return nil, err
	}
	if extraData == nil {
		extraData = []byte{}
	}
	raw, err := c.ledger.ReadContract(ctx, arbitrator.Address, arbitrator.ABI, "arbitrationCost", extraData)
	if err != nil {
		return nil, NewError(ErrCodeEscrowCall, "arbitrationCost failed", err)
	}
	cost, ok := raw.(*big.Int)
	if !ok {
		return nil, NewError(ErrCodeEscrowCall, fmt.Sprintf("unexpected arbitrationCost type %T", raw), nil)
	}
	return cost, nil
}
