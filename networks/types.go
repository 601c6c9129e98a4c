package networks

import (
	"math/big"
	"strings"
)

// NetworkID identifies a supported chain by its EVM chain id.
type NetworkID int

// ContractName is the logical name of a TalentLayer contract.
type ContractName string

// ContractInfo contains the deployment address and ABI of a contract.
type ContractInfo struct {
	Address string
	ABI     []byte
}

// EscrowConfig contains the escrow parameters of a network.
type EscrowConfig struct {
	AdminFee       *big.Int
	AdminWallet    string
	TimeoutPayment uint64 // seconds
}

// TokenInfo contains information about a token accepted for payments.
// The native currency is registered under NativeTokenAddress.
type TokenInfo struct {
	Address  string
	Symbol   string
	Name     string
	Decimals int
}

// NetworkConfig contains network-specific configuration.
type NetworkConfig struct {
	ID          NetworkID
	Name        string
	SubgraphURL string
	Contracts   map[ContractName]ContractInfo
	Escrow      EscrowConfig
	Tokens      map[string]TokenInfo // keyed by lower-cased token address
}

// Contract returns the contract registered under name.
//
// Returns:
//   - *MissingDeploymentError when the network carries no contract addresses at all
//   - *MissingContractError when the deployment lacks name
func (c NetworkConfig) Contract(name ContractName) (ContractInfo, error) {
	if !c.HasDeployment() {
		return ContractInfo{}, &MissingDeploymentError{Network: c.ID, Name: c.Name, Contract: name}
	}
	info, ok := c.Contracts[name]
	if !ok || info.Address == "" {
		return ContractInfo{}, &MissingContractError{Network: c.ID, Name: name}
	}
	return info, nil
}

// Token returns the token registered under address.
func (c NetworkConfig) Token(address string) (TokenInfo, bool) {
	info, ok := c.Tokens[strings.ToLower(address)]
	return info, ok
}

// HasDeployment reports whether any contract address is configured for the network.
func (c NetworkConfig) HasDeployment() bool {
	return len(c.Contracts) > 0
}

// ArbitratorAddress returns the address of the network's TalentLayer arbitrator, or the
// empty string when none is deployed.
func (c NetworkConfig) ArbitratorAddress() string {
	return c.Contracts[TalentLayerArbitrator].Address
}

// clone returns a deep copy so callers can never mutate the registry.
func (c NetworkConfig) clone() NetworkConfig {
	out := c
	out.Contracts = make(map[ContractName]ContractInfo, len(c.Contracts))
	for name, info := range c.Contracts {
		abi := make([]byte, len(info.ABI))
		copy(abi, info.ABI)
		out.Contracts[name] = ContractInfo{Address: info.Address, ABI: abi}
	}
	out.Tokens = make(map[string]TokenInfo, len(c.Tokens))
	for addr, info := range c.Tokens {
		out.Tokens[addr] = info
	}
	if c.Escrow.AdminFee != nil {
		out.Escrow.AdminFee = new(big.Int).Set(c.Escrow.AdminFee)
	}
	return out
}
