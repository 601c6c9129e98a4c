package talentlayer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"github.com/talentlayer/talentlayer-go/pkg/graph"
)

// FeeResolver reads the fee schedule of an escrow from the subgraph.
// Rates are fetched fresh for every call.
type FeeResolver struct {
	graph GraphClient
}

// NewFeeResolver creates a fee resolver backed by g.
func NewFeeResolver(g GraphClient) *FeeResolver {
	return &FeeResolver{graph: g}
}

type feeRateRecord struct {
	ProtocolEscrowFeeRate          json.RawMessage `json:"protocolEscrowFeeRate"`
	OriginServiceFeeRate           json.RawMessage `json:"originServiceFeeRate"`
	OriginValidatedProposalFeeRate json.RawMessage `json:"originValidatedProposalFeeRate"`
}

type feesData struct {
	Protocols        []feeRateRecord `json:"protocols"`
	ServicePlatform  *feeRateRecord  `json:"servicePlatform"`
	ProposalPlatform *feeRateRecord  `json:"proposalPlatform"`
}

// ResolveFees returns the protocol escrow fee rate, the origin service fee rate of the
// service's platform and the origin validated proposal fee rate of the proposal's platform.
// Any missing record or rate fails; rates never default to zero.
func (r *FeeResolver) ResolveFees(ctx context.Context, servicePlatformID, proposalPlatformID string) (*FeeRates, error) {
	resp, err := r.graph.Query(ctx, graph.ProtocolAndPlatformsFeesQuery, map[string]interface{}{
		"servicePlatformId":  servicePlatformID,
		"proposalPlatformId": proposalPlatformID,
	})
	if err != nil {
		return nil, feeResolutionError("fee query failed", err)
	}

	var data feesData
	if err := resp.Decode(&data); err != nil {
		return nil, feeResolutionError("fee query returned no data", err)
	}
	if len(data.Protocols) == 0 {
		return nil, feeResolutionError("protocol record is missing", nil)
	}
	if data.ServicePlatform == nil {
		return nil, feeResolutionError(fmt.Sprintf("service platform %s not found", servicePlatformID), nil)
	}
	if data.ProposalPlatform == nil {
		return nil, feeResolutionError(fmt.Sprintf("proposal platform %s not found", proposalPlatformID), nil)
	}

	protocolRate, err := requireRate("protocolEscrowFeeRate", data.Protocols[0].ProtocolEscrowFeeRate)
	if err != nil {
		return nil, err
	}
	serviceRate, err := requireRate("originServiceFeeRate", data.ServicePlatform.OriginServiceFeeRate)
	if err != nil {
		return nil, err
	}
	proposalRate, err := requireRate("originValidatedProposalFeeRate", data.ProposalPlatform.OriginValidatedProposalFeeRate)
	if err != nil {
		return nil, err
	}

	return &FeeRates{
		ProtocolEscrowFeeRate:          protocolRate,
		OriginServiceFeeRate:           serviceRate,
		OriginValidatedProposalFeeRate: proposalRate,
	}, nil
}

func requireRate(field string, raw json.RawMessage) (*big.Int, error) {
	rate, ok, err := parseBigInt(raw)
	if err != nil {
		return nil, feeResolutionError(fmt.Sprintf("%s is not an integer", field), err)
	}
	if !ok {
		return nil, feeResolutionError(fmt.Sprintf("%s is missing", field), nil)
	}
	if rate.Sign() < 0 {
		return nil, feeResolutionError(fmt.Sprintf("%s is negative", field), nil)
	}
	return rate, nil
}

func feeResolutionError(msg string, err error) *Error {
	return NewError(ErrCodeFeeResolution, msg, err)
}

// ComputeApprovalAmount returns rateAmount plus the three fee components, each computed
// independently as floor(rateAmount * rate / divider).
func ComputeApprovalAmount(rateAmount, originServiceFeeRate, originValidatedProposalFeeRate, protocolEscrowFeeRate, divider *big.Int) (*big.Int, error) {
	breakdown, err := ComputeFeeBreakdown(rateAmount, FeeRates{
		ProtocolEscrowFeeRate:          protocolEscrowFeeRate,
		OriginServiceFeeRate:           originServiceFeeRate,
		OriginValidatedProposalFeeRate: originValidatedProposalFeeRate,
	}, divider)
	if err != nil {
		return nil, err
	}
	return breakdown.Total, nil
}

// ComputeFeeBreakdown itemises the approval amount. Arithmetic follows the escrow
// contract's uint256 semantics, so any overflow is rejected.
func ComputeFeeBreakdown(rateAmount *big.Int, rates FeeRates, divider *big.Int) (*FeeBreakdown, error) {
	base, err := toUint256("rate amount", rateAmount)
	if err != nil {
		return nil, err
	}
	div, err := toUint256("divider", divider)
	if err != nil {
		return nil, err
	}
	if div.IsZero() {
		return nil, NewError(ErrCodeInvalidFeeRate, "divider must be positive", nil)
	}

	protocolFee, err := feeComponent("protocol escrow fee rate", base, rates.ProtocolEscrowFeeRate, div)
	if err != nil {
		return nil, err
	}
	serviceFee, err := feeComponent("origin service fee rate", base, rates.OriginServiceFeeRate, div)
	if err != nil {
		return nil, err
	}
	proposalFee, err := feeComponent("origin validated proposal fee rate", base, rates.OriginValidatedProposalFeeRate, div)
	if err != nil {
		return nil, err
	}

	total := new(uint256.Int).Set(base)
	for _, fee := range []*uint256.Int{protocolFee, serviceFee, proposalFee} {
		if _, overflow := total.AddOverflow(total, fee); overflow {
			return nil, NewError(ErrCodeInvalidFeeRate, "approval amount overflows uint256", nil)
		}
	}

	return &FeeBreakdown{
		RateAmount:                 base.ToBig(),
		ProtocolEscrowFee:          protocolFee.ToBig(),
		OriginServiceFee:           serviceFee.ToBig(),
		OriginValidatedProposalFee: proposalFee.ToBig(),
		Total:                      total.ToBig(),
	}, nil
}

func feeComponent(name string, base *uint256.Int, rate *big.Int, divider *uint256.Int) (*uint256.Int, error) {
	r, err := toUint256(name, rate)
	if err != nil {
		return nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(base, r)
	if overflow {
		return nil, NewError(ErrCodeInvalidFeeRate, name+" overflows uint256", nil)
	}
	return product.Div(product, divider), nil
}

func toUint256(name string, v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return nil, NewError(ErrCodeInvalidFeeRate, name+" is missing", nil)
	}
	if v.Sign() < 0 {
		return nil, NewError(ErrCodeInvalidFeeRate, fmt.Sprintf("%s must not be negative, got %s", name, v), nil)
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, NewError(ErrCodeInvalidFeeRate, name+" exceeds uint256", nil)
	}
	return out, nil
}
