package talentlayer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/talentlayer/talentlayer-go/pkg/graph"
)

type entityRef struct {
	ID string `json:"id"`
}

type proposalRecord struct {
	ID         string          `json:"id"`
	Status     string          `json:"status"`
	CID        *string         `json:"cid"`
	RateAmount json.RawMessage `json:"rateAmount"`
	RateToken  *struct {
		Address  string          `json:"address"`
		Symbol   string          `json:"symbol"`
		Decimals json.RawMessage `json:"decimals"`
	} `json:"rateToken"`
	Seller  *entityRef `json:"seller"`
	Service *struct {
		ID       string     `json:"id"`
		Platform *entityRef `json:"platform"`
	} `json:"service"`
	Platform *entityRef `json:"platform"`
}

type serviceRecord struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	CID         *string    `json:"cid"`
	Buyer       *entityRef `json:"buyer"`
	Seller      *entityRef `json:"seller"`
	Platform    *entityRef `json:"platform"`
	Transaction *entityRef `json:"transaction"`
}

type platformRecord struct {
	ID                             string          `json:"id"`
	Name                           string          `json:"name"`
	OriginServiceFeeRate           json.RawMessage `json:"originServiceFeeRate"`
	OriginValidatedProposalFeeRate json.RawMessage `json:"originValidatedProposalFeeRate"`
	Arbitrator                     *string         `json:"arbitrator"`
}

// GetProposal fetches proposal proposalID of service serviceID.
// It returns (nil, nil) when the subgraph has no such proposal.
func (c *Client) GetProposal(ctx context.Context, serviceID, proposalID string) (*Proposal, error) {
	key := ProposalKey(serviceID, proposalID)
	resp, err := c.graph.Query(ctx, graph.ProposalQuery, map[string]interface{}{"id": key})
	if err != nil {
		return nil, NewError(ErrCodeSubgraph, "proposal query failed", err)
	}

	var data struct {
		Proposal *proposalRecord `json:"proposal"`
	}
	if err := resp.Decode(&data); err != nil {
		return nil, NewError(ErrCodeSubgraph, "proposal query returned no data", err)
	}
	if data.Proposal == nil {
		return nil, nil
	}
	return data.Proposal.toProposal(serviceID)
}

func (r *proposalRecord) toProposal(serviceID string) (*Proposal, error) {
	malformed := func(field string, err error) error {
		return NewError(ErrCodeSubgraph, fmt.Sprintf("proposal %s has a malformed %s", r.ID, field), err)
	}

	amount, ok, err := parseBigInt(r.RateAmount)
	if err != nil || !ok || amount.Sign() < 0 {
		return nil, malformed("rateAmount", err)
	}
	if r.RateToken == nil {
		return nil, malformed("rateToken", nil)
	}
	if r.Seller == nil {
		return nil, malformed("seller", nil)
	}

	p := &Proposal{
		ID:         r.ID,
		ServiceID:  serviceID,
		SellerID:   r.Seller.ID,
		RateAmount: amount,
		RateToken: Token{
			Address: r.RateToken.Address,
			Symbol:  r.RateToken.Symbol,
		},
		Status: r.Status,
	}
	if decimals, ok, err := parseBigInt(r.RateToken.Decimals); err == nil && ok {
		p.RateToken.Decimals = int(decimals.Int64())
	}
	if r.CID != nil {
		p.CID = *r.CID
	}
	if r.Service != nil {
		p.ServiceID = r.Service.ID
		if r.Service.Platform != nil {
			p.ServicePlatformID = r.Service.Platform.ID
		}
	}
	if r.Platform != nil {
		p.ProposalPlatformID = r.Platform.ID
	}
	return p, nil
}

// GetService fetches service serviceID.
// It returns (nil, nil) when the subgraph has no such service.
func (c *Client) GetService(ctx context.Context, serviceID string) (*Service, error) {
	resp, err := c.graph.Query(ctx, graph.ServiceQuery, map[string]interface{}{"id": serviceID})
	if err != nil {
		return nil, NewError(ErrCodeSubgraph, "service query failed", err)
	}

	var data struct {
		Service *serviceRecord `json:"service"`
	}
	if err := resp.Decode(&data); err != nil {
		return nil, NewError(ErrCodeSubgraph, "service query returned no data", err)
	}
	if data.Service == nil {
		return nil, nil
	}

	r := data.Service
	s := &Service{ID: r.ID, Status: r.Status}
	if r.CID != nil {
		s.CID = *r.CID
	}
	if r.Buyer != nil {
		s.BuyerID = r.Buyer.ID
	}
	if r.Seller != nil {
		s.SellerID = r.Seller.ID
	}
	if r.Platform != nil {
		s.PlatformID = r.Platform.ID
	}
	if r.Transaction != nil {
		s.TransactionID = r.Transaction.ID
	}
	return s, nil
}

// GetTransactionID returns the escrow transaction id of a service.
// Unlike GetService it fails when either record is absent.
func (c *Client) GetTransactionID(ctx context.Context, serviceID string) (string, error) {
	service, err := c.GetService(ctx, serviceID)
	if err != nil {
		return "", err
	}
	if service == nil {
		return "", NewError(ErrCodeServiceNotFound, fmt.Sprintf("service %s not found", serviceID), nil)
	}
	if service.TransactionID == "" {
		return "", NewError(ErrCodeTransactionNotFound, fmt.Sprintf("service %s has no escrow transaction", serviceID), nil)
	}
	return service.TransactionID, nil
}

// GetPlatform fetches platform platformID, falling back to the client's default platform.
// It returns (nil, nil) when the subgraph has no such platform.
func (c *Client) GetPlatform(ctx context.Context, platformID string) (*Platform, error) {
	resolved, err := c.ResolvePlatformID(platformID)
	if err != nil {
		return nil, err
	}
	resp, err := c.graph.Query(ctx, graph.PlatformQuery, map[string]interface{}{"id": resolved})
	if err != nil {
		return nil, NewError(ErrCodeSubgraph, "platform query failed", err)
	}

	var data struct {
		Platform *platformRecord `json:"platform"`
	}
	if err := resp.Decode(&data); err != nil {
		return nil, NewError(ErrCodeSubgraph, "platform query returned no data", err)
	}
	if data.Platform == nil {
		return nil, nil
	}

	r := data.Platform
	p := &Platform{ID: r.ID, Name: r.Name}
	for _, f := range []struct {
		name string
		raw  json.RawMessage
		dst  **big.Int
	}{
		{"originServiceFeeRate", r.OriginServiceFeeRate, &p.OriginServiceFeeRate},
		{"originValidatedProposalFeeRate", r.OriginValidatedProposalFeeRate, &p.OriginValidatedProposalFeeRate},
	} {
		rate, ok, err := parseBigInt(f.raw)
		if err != nil {
			return nil, NewError(ErrCodeSubgraph, fmt.Sprintf("platform %s has a malformed %s", r.ID, f.name), err)
		}
		if ok {
			*f.dst = rate
		}
	}
	if r.Arbitrator != nil {
		p.Arbitrator = *r.Arbitrator
	}
	return p, nil
}
