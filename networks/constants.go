package networks

import (
	"math/big"
)

// Supported networks.
const (
	IExec   NetworkID = 134
	Polygon NetworkID = 137
	Local   NetworkID = 1337
	Mumbai  NetworkID = 80001
	Amoy    NetworkID = 80002
)

// Contract names.
const (
	TalentLayerID         ContractName = "talentLayerId"
	TalentLayerService    ContractName = "talentLayerService"
	TalentLayerReview     ContractName = "talentLayerReview"
	TalentLayerEscrow     ContractName = "talentLayerEscrow"
	TalentLayerPlatformID ContractName = "talentLayerPlatformId"
	TalentLayerArbitrator ContractName = "talentLayerArbitrator"
)

const (
	// NativeTokenAddress is the sentinel used by the protocol for the chain's native currency.
	NativeTokenAddress = "0x0000000000000000000000000000000000000000"

	// DefaultTimeoutPayment is the default escrow payment timeout (7 days).
	DefaultTimeoutPayment = 7 * 24 * 60 * 60
)

var (
	// TalentLayerEscrowABI covers the escrow calls made by this SDK.
	TalentLayerEscrowABI = []byte(`[
		{
			"inputs": [
				{"name": "_serviceId", "type": "uint256"},
				{"name": "_proposalId", "type": "uint256"},
				{"name": "_metaEvidence", "type": "string"},
				{"name": "_originDataUri", "type": "string"}
			],
			"name": "createTransaction",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "payable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "_profileId", "type": "uint256"},
				{"name": "_transactionId", "type": "uint256"},
				{"name": "_amount", "type": "uint256"}
			],
			"name": "release",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "_profileId", "type": "uint256"},
				{"name": "_transactionId", "type": "uint256"},
				{"name": "_amount", "type": "uint256"}
			],
			"name": "reimburse",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)

	// TalentLayerPlatformIDABI covers platform administration calls.
	TalentLayerPlatformIDABI = []byte(`[
		{
			"inputs": [
				{"name": "_platformId", "type": "uint256"},
				{"name": "_arbitrator", "type": "address"},
				{"name": "_extraData", "type": "bytes"}
			],
			"name": "updateArbitrator",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "_platformId", "type": "uint256"},
				{"name": "_originServiceFeeRate", "type": "uint16"}
			],
			"name": "updateOriginServiceFeeRate",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "_platformId", "type": "uint256"},
				{"name": "_originValidatedProposalFeeRate", "type": "uint16"}
			],
			"name": "updateOriginValidatedProposalFeeRate",
			"outputs": [],
			"stateMutability": "nonpayable",
			"type": "function"
		}
	]`)

	// TalentLayerArbitratorABI for reading the arbitration cost of a platform.
	TalentLayerArbitratorABI = []byte(`[
		{
			"inputs": [{"name": "_extraData", "type": "bytes"}],
			"name": "arbitrationCost",
			"outputs": [{"name": "fee", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// ERC20ABI for allowance checks and approvals.
	ERC20ABI = []byte(`[
		{
			"inputs": [
				{"name": "owner", "type": "address"},
				{"name": "spender", "type": "address"}
			],
			"name": "allowance",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		},
		{
			"inputs": [
				{"name": "spender", "type": "address"},
				{"name": "amount", "type": "uint256"}
			],
			"name": "approve",
			"outputs": [{"name": "", "type": "bool"}],
			"stateMutability": "nonpayable",
			"type": "function"
		},
		{
			"inputs": [{"name": "account", "type": "address"}],
			"name": "balanceOf",
			"outputs": [{"name": "", "type": "uint256"}],
			"stateMutability": "view",
			"type": "function"
		}
	]`)

	// emptyABI is used for contracts the SDK only needs the address of
	emptyABI = []byte(`[]`)
)

// StandardABI returns the ABI the SDK uses for a contract name.
func StandardABI(name ContractName) []byte {
	switch name {
	case TalentLayerEscrow:
		return TalentLayerEscrowABI
	case TalentLayerPlatformID:
		return TalentLayerPlatformIDABI
	case TalentLayerArbitrator:
		return TalentLayerArbitratorABI
	default:
		return emptyABI
	}
}

func contracts(addresses map[ContractName]string) map[ContractName]ContractInfo {
	out := make(map[ContractName]ContractInfo, len(addresses))
	for name, addr := range addresses {
		out[name] = ContractInfo{Address: addr, ABI: StandardABI(name)}
	}
	return out
}

func tokens(list ...TokenInfo) map[string]TokenInfo {
	out := make(map[string]TokenInfo, len(list))
	for _, t := range list {
		out[NormalizeAddress(t.Address)] = t
	}
	return out
}

// Only the local development chain ships contract addresses. Public chains carry their
// subgraph and token metadata but no deployment: writes on them fail with
// ErrMissingDeployment until the addresses are supplied through NewResolver.
var networkConfigs = map[NetworkID]NetworkConfig{
	Polygon: {
		ID:          Polygon,
		Name:        "polygon",
		SubgraphURL: "https://api.thegraph.com/subgraphs/name/talentlayer/talentlayer-polygon",
		Escrow: EscrowConfig{
			AdminFee:       big.NewInt(0),
			TimeoutPayment: DefaultTimeoutPayment,
		},
		Tokens: tokens(
			TokenInfo{Address: NativeTokenAddress, Symbol: "MATIC", Name: "Matic", Decimals: 18},
			TokenInfo{Address: "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
			TokenInfo{Address: "0xc2132D05D31c914a87C6611C10748AEb04B58e8F", Symbol: "USDT", Name: "Tether USD", Decimals: 6},
			TokenInfo{Address: "0x8f3Cf7ad23Cd3CaDbD9735AFf958023239c6A063", Symbol: "DAI", Name: "Dai Stablecoin", Decimals: 18},
		),
	},
	Mumbai: {
		ID:          Mumbai,
		Name:        "mumbai",
		SubgraphURL: "https://api.thegraph.com/subgraphs/name/talentlayer/talent-layer-mumbai",
		Escrow: EscrowConfig{
			AdminFee:       big.NewInt(0),
			TimeoutPayment: DefaultTimeoutPayment,
		},
		Tokens: tokens(
			TokenInfo{Address: NativeTokenAddress, Symbol: "MATIC", Name: "Matic", Decimals: 18},
			TokenInfo{Address: "0x0FA8781a83E46826621b3BC094Ea2A0212e71B23", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		),
	},
	Amoy: {
		ID:          Amoy,
		Name:        "amoy",
		SubgraphURL: "https://api.studio.thegraph.com/query/talentlayer/talentlayer-amoy/version/latest",
		Escrow: EscrowConfig{
			AdminFee:       big.NewInt(0),
			TimeoutPayment: DefaultTimeoutPayment,
		},
		Tokens: tokens(
			TokenInfo{Address: NativeTokenAddress, Symbol: "POL", Name: "Polygon Ecosystem Token", Decimals: 18},
			TokenInfo{Address: "0x41E94Eb019C0762f9Bfcf9Fb1E58725BfB0e7582", Symbol: "USDC", Name: "USD Coin", Decimals: 6},
		),
	},
	IExec: {
		ID:          IExec,
		Name:        "iexec",
		SubgraphURL: "https://thegraph.bellecour.iex.ec/subgraphs/name/talentlayer/talentlayer-bellecour",
		Escrow: EscrowConfig{
			AdminFee:       big.NewInt(0),
			TimeoutPayment: DefaultTimeoutPayment,
		},
		Tokens: tokens(
			TokenInfo{Address: NativeTokenAddress, Symbol: "xRLC", Name: "xRLC", Decimals: 18},
		),
	},
	Local: {
		ID:          Local,
		Name:        "local",
		SubgraphURL: "http://localhost:8020/subgraphs/name/talentlayer/talent-layer-protocol",
		Contracts: contracts(map[ContractName]string{
			TalentLayerID:         "0x5fbdb2315678afecb367f032d93f642f64180aa3",
			TalentLayerService:    "0xe7f1725e7734ce288f8367e1bb143e90bb3f0512",
			TalentLayerReview:     "0x9fe46736679d2d9a65f0992f2272de9f3c7fa6e0",
			TalentLayerEscrow:     "0xcf7ed3acca5a467e9e704c703e8d87f634fb0fc9",
			TalentLayerPlatformID: "0xdc64a140aa3e981100a9beca4e685f962f0cf6c9",
			TalentLayerArbitrator: "0x5fc8d32690cc91d4c39d9d3abcbd16989f875707",
		}),
		Escrow: EscrowConfig{
			AdminFee:       big.NewInt(0),
			AdminWallet:    "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266",
			TimeoutPayment: DefaultTimeoutPayment,
		},
		Tokens: tokens(
			TokenInfo{Address: NativeTokenAddress, Symbol: "ETH", Name: "Ether", Decimals: 18},
			TokenInfo{Address: "0x0165878a594ca255338adfa4d48449f69242eb8f", Symbol: "SimpleERC20", Name: "Simple ERC20", Decimals: 18},
		),
	},
}
