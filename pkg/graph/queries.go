package graph

// Subgraph queries used by the SDK. Entity ids are passed as strings.
const (
	// ProtocolAndPlatformsFeesQuery reads the three fee rates of an escrow in one round trip.
	ProtocolAndPlatformsFeesQuery = `query ProtocolAndPlatformsFees($servicePlatformId: ID!, $proposalPlatformId: ID!) {
  protocols {
    protocolEscrowFeeRate
  }
  servicePlatform: platform(id: $servicePlatformId) {
    id
    originServiceFeeRate
  }
  proposalPlatform: platform(id: $proposalPlatformId) {
    id
    originValidatedProposalFeeRate
  }
}`

	// ProposalQuery reads a proposal with its rate token and platforms.
	ProposalQuery = `query Proposal($id: ID!) {
  proposal(id: $id) {
    id
    status
    cid
    rateAmount
    rateToken {
      address
      symbol
      decimals
    }
    seller {
      id
    }
    service {
      id
      platform {
        id
      }
    }
    platform {
      id
    }
  }
}`

	// ServiceQuery reads a service and its escrow transaction.
	ServiceQuery = `query Service($id: ID!) {
  service(id: $id) {
    id
    status
    cid
    buyer {
      id
    }
    seller {
      id
    }
    platform {
      id
    }
    transaction {
      id
    }
  }
}`

	// PlatformQuery reads a platform's fee rates and arbitrator.
	PlatformQuery = `query Platform($id: ID!) {
  platform(id: $id) {
    id
    name
    originServiceFeeRate
    originValidatedProposalFeeRate
    arbitrator
  }
}`
)
