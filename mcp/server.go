// Package mcp exposes the escrow operations as Model Context Protocol tools.
//
//	api, _ := talentlayer.NewClient(networks.Polygon, graphClient, talentlayer.WithLedger(ledger))
//	server := mcp.NewServer(api, logger, "1.0.0")
//	handler := mcpsdk.NewSSEHandler(func(*http.Request) *mcpsdk.Server { return server }, nil)
//	http.ListenAndServe(":4022", handler)
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	talentlayer "github.com/talentlayer/talentlayer-go"
	"github.com/talentlayer/talentlayer-go/extensions/idempotency"
)

// Tool names.
const (
	ToolGetProposal      = "get_proposal"
	ToolQuoteApproval    = "quote_approval"
	ToolApproveProposal  = "approve_proposal"
	ToolReleasePayment   = "release_payment"
	ToolReimburse        = "reimburse_payment"
	ToolListArbitrators  = "list_arbitrators"
	ToolUpdateArbitrator = "update_arbitrator"
)

const (
	proposalSchema = `{"type":"object","properties":{"serviceId":{"type":"string"},"proposalId":{"type":"string"}},"required":["serviceId","proposalId"]}`
	approveSchema  = `{"type":"object","properties":{"serviceId":{"type":"string"},"proposalId":{"type":"string"},"metaEvidenceCid":{"type":"string"},"idempotencyKey":{"type":"string","description":"retries with the same key replay the first result"}},"required":["serviceId","proposalId","metaEvidenceCid"]}`
	settleSchema   = `{"type":"object","properties":{"serviceId":{"type":"string"},"userId":{"type":"string"},"amount":{"type":"string","description":"base units"},"idempotencyKey":{"type":"string","description":"retries with the same key replay the first result"}},"required":["serviceId","userId","amount"]}`
	arbiterSchema  = `{"type":"object","properties":{"platformId":{"type":"string"},"arbitrator":{"type":"string"}},"required":["arbitrator"]}`
	emptySchema    = `{"type":"object"}`
)

// Tools serves escrow operations to MCP clients.
type Tools struct {
	api talentlayer.EscrowAPI
	log logrus.FieldLogger
}

// NewTools creates the tool set over api.
func NewTools(api talentlayer.EscrowAPI, log logrus.FieldLogger) *Tools {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Tools{api: api, log: log}
}

// NewServer creates an MCP server with every tool registered.
func NewServer(api talentlayer.EscrowAPI, log logrus.FieldLogger, version string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: "talentlayer", Version: version}, nil)
	NewTools(api, log).Register(server)
	return server
}

// Register adds the tools to server.
func (t *Tools) Register(server *mcpsdk.Server) {
	server.AddTool(&mcpsdk.Tool{
		Name:        ToolGetProposal,
		Description: "Fetch a proposal with its rate, token and seller",
		InputSchema: json.RawMessage(proposalSchema),
	}, t.GetProposal)
	server.AddTool(&mcpsdk.Tool{
		Name:        ToolQuoteApproval,
		Description: "Compute the amount approving a proposal would commit, fees included",
		InputSchema: json.RawMessage(proposalSchema),
	}, t.QuoteApproval)
	server.AddTool(&mcpsdk.Tool{
		Name:        ToolApproveProposal,
		Description: "Approve a proposal and lock its payment in escrow",
		InputSchema: json.RawMessage(approveSchema),
	}, t.Approve)
	server.AddTool(&mcpsdk.Tool{
		Name:        ToolReleasePayment,
		Description: "Release escrowed funds of a service to the seller",
		InputSchema: json.RawMessage(settleSchema),
	}, t.Release)
	server.AddTool(&mcpsdk.Tool{
		Name:        ToolReimburse,
		Description: "Reimburse escrowed funds of a service to the buyer",
		InputSchema: json.RawMessage(settleSchema),
	}, t.Reimburse)
	server.AddTool(&mcpsdk.Tool{
		Name:        ToolListArbitrators,
		Description: "List the arbitrators allowed on the configured network",
		InputSchema: json.RawMessage(emptySchema),
	}, t.ListArbitrators)
	server.AddTool(&mcpsdk.Tool{
		Name:        ToolUpdateArbitrator,
		Description: "Set the arbitrator of a platform",
		InputSchema: json.RawMessage(arbiterSchema),
	}, t.UpdateArbitrator)
}

type proposalArgs struct {
	ServiceID  string `json:"serviceId"`
	ProposalID string `json:"proposalId"`
}

type approveArgs struct {
	ServiceID       string `json:"serviceId"`
	ProposalID      string `json:"proposalId"`
	MetaEvidenceCID string `json:"metaEvidenceCid"`
	IdempotencyKey  string `json:"idempotencyKey,omitempty"`
}

type settleArgs struct {
	ServiceID      string `json:"serviceId"`
	UserID         string `json:"userId"`
	Amount         string `json:"amount"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
}

type arbitratorArgs struct {
	PlatformID string `json:"platformId"`
	Arbitrator string `json:"arbitrator"`
}

// GetProposal handles get_proposal.
func (t *Tools) GetProposal(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args proposalArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	proposal, err := t.api.GetProposal(ctx, args.ServiceID, args.ProposalID)
	if err != nil {
		return t.failure(req, err), nil
	}
	if proposal == nil {
		return t.failure(req, talentlayer.NewError(talentlayer.ErrCodeProposalNotFound,
			fmt.Sprintf("proposal %s not found", talentlayer.ProposalKey(args.ServiceID, args.ProposalID)), nil)), nil
	}
	return jsonResult(proposal), nil
}

// QuoteApproval handles quote_approval.
func (t *Tools) QuoteApproval(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args proposalArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	quote, err := t.api.QuoteApproval(ctx, args.ServiceID, args.ProposalID)
	if err != nil {
		return t.failure(req, err), nil
	}
	return jsonResult(quote), nil
}

// Approve handles approve_proposal.
func (t *Tools) Approve(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args approveArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if err := idempotency.ValidateKey(args.IdempotencyKey); err != nil {
		return errorResult(err), nil
	}
	ctx = idempotency.WithKey(ctx, args.IdempotencyKey)
	result, err := t.api.Approve(ctx, args.ServiceID, args.ProposalID, args.MetaEvidenceCID)
	if err != nil {
		return t.failure(req, err), nil
	}
	return jsonResult(result), nil
}

// Release handles release_payment.
func (t *Tools) Release(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	return t.settle(ctx, req, t.api.Release)
}

// Reimburse handles reimburse_payment.
func (t *Tools) Reimburse(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	return t.settle(ctx, req, t.api.Reimburse)
}

type settleFunc func(ctx context.Context, serviceID string, amount *big.Int, userID string) (*talentlayer.SettleResult, error)

func (t *Tools) settle(ctx context.Context, req *mcpsdk.CallToolRequest, fn settleFunc) (*mcpsdk.CallToolResult, error) {
	var args settleArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	if err := idempotency.ValidateKey(args.IdempotencyKey); err != nil {
		return errorResult(err), nil
	}
	ctx = idempotency.WithKey(ctx, args.IdempotencyKey)
	amount, ok := new(big.Int).SetString(args.Amount, 10)
	if !ok {
		return errorResult(talentlayer.NewError(talentlayer.ErrCodeInvalidAmount,
			fmt.Sprintf("amount %q is not a decimal integer", args.Amount), nil)), nil
	}
	result, err := fn(ctx, args.ServiceID, amount, args.UserID)
	if err != nil {
		return t.failure(req, err), nil
	}
	return jsonResult(result), nil
}

// ListArbitrators handles list_arbitrators.
func (t *Tools) ListArbitrators(_ context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	arbitrators, err := t.api.Arbitrators()
	if err != nil {
		return t.failure(req, err), nil
	}
	return jsonResult(arbitrators), nil
}

// UpdateArbitrator handles update_arbitrator.
func (t *Tools) UpdateArbitrator(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
	var args arbitratorArgs
	if err := decodeArgs(req, &args); err != nil {
		return errorResult(err), nil
	}
	txHash, err := t.api.UpdateArbitrator(ctx, args.PlatformID, args.Arbitrator)
	if err != nil {
		return t.failure(req, err), nil
	}
	return jsonResult(map[string]string{"transactionHash": txHash}), nil
}

func (t *Tools) failure(req *mcpsdk.CallToolRequest, err error) *mcpsdk.CallToolResult {
	t.log.WithFields(logrus.Fields{
		"tool":  req.Params.Name,
		"code":  talentlayer.CodeOf(err),
		"state": talentlayer.StateOf(err),
	}).WithError(err).Warn("tool call failed")
	return errorResult(err)
}

func decodeArgs(req *mcpsdk.CallToolRequest, v interface{}) error {
	if len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return talentlayer.NewError(talentlayer.ErrCodeInvalidArgument, "failed to unmarshal arguments", err)
	}
	return nil
}

func jsonResult(v interface{}) *mcpsdk.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResult(fmt.Errorf("failed to marshal result: %w", err))
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}
}

// errorResult reports err in-band so the model can see the code and state.
func errorResult(err error) *mcpsdk.CallToolResult {
	payload := map[string]interface{}{"message": err.Error()}
	if code := talentlayer.CodeOf(err); code != "" {
		payload["code"] = code
	}
	if state := talentlayer.StateOf(err); state != "" {
		payload["state"] = state
	}
	data, _ := json.Marshal(payload)
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}
}
