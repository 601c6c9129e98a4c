package talentlayer

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/talentlayer/talentlayer-go/networks"
	"github.com/talentlayer/talentlayer-go/pkg/graph"
)

const (
	testUSDC   = "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"
	testSigner = "0x90F79bf6EB2c4f870365E785982E1f101E93b906"
)

// mockGraph answers subgraph queries from canned data documents keyed by query
type mockGraph struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	calls     []graphCall
}

type graphCall struct {
	query     string
	variables map[string]interface{}
}

func newMockGraph() *mockGraph {
	return &mockGraph{responses: map[string]string{}, errs: map[string]error{}}
}

func (m *mockGraph) Query(_ context.Context, query string, variables map[string]interface{}) (*graph.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, graphCall{query: query, variables: variables})
	if err := m.errs[query]; err != nil {
		return nil, err
	}
	data, ok := m.responses[query]
	if !ok {
		data = `{}`
	}
	return &graph.Response{Data: json.RawMessage(data)}, nil
}

func (m *mockGraph) count(query string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.query == query {
			n++
		}
	}
	return n
}

// mockLedger records contract calls and serves a configurable allowance
type mockLedger struct {
	mu            sync.Mutex
	address       string
	allowance     *big.Int
	balance       *big.Int
	readErr       error
	writeErrs     map[string]error
	waitErr       error
	receiptStatus uint64
	nextTx        int

	reads  []contractCall
	writes []contractCall
	waited []string
}

type contractCall struct {
	address string
	method  string
	value   *big.Int
	args    []interface{}
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		address:       testSigner,
		allowance:     big.NewInt(0),
		writeErrs:     map[string]error{},
		receiptStatus: TxStatusSuccess,
	}
}

func (m *mockLedger) Address() string { return m.address }

func (m *mockLedger) ReadContract(_ context.Context, address string, _ []byte, method string, args ...interface{}) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, contractCall{address: address, method: method, args: args})
	if m.readErr != nil {
		return nil, m.readErr
	}
	switch method {
	case "allowance":
		return new(big.Int).Set(m.allowance), nil
	case "arbitrationCost":
		return big.NewInt(42), nil
	}
	return nil, fmt.Errorf("unexpected read %s", method)
}

func (m *mockLedger) WriteContract(_ context.Context, address string, _ []byte, method string, value *big.Int, args ...interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = append(m.writes, contractCall{address: address, method: method, value: value, args: args})
	if err := m.writeErrs[method]; err != nil {
		return "", err
	}
	m.nextTx++
	return fmt.Sprintf("0x%064x", m.nextTx), nil
}

func (m *mockLedger) WaitForTransactionReceipt(_ context.Context, txHash string) (*TransactionReceipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.waited = append(m.waited, txHash)
	if m.waitErr != nil {
		return nil, m.waitErr
	}
	return &TransactionReceipt{Status: m.receiptStatus, BlockNumber: 1, TxHash: txHash}, nil
}

func (m *mockLedger) Balance(_ context.Context, token string, _ []byte) (*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, contractCall{address: token, method: "balanceOf"})
	if m.readErr != nil {
		return nil, m.readErr
	}
	if m.balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(m.balance), nil
}

func (m *mockLedger) writesOf(method string) []contractCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []contractCall
	for _, w := range m.writes {
		if w.method == method {
			out = append(out, w)
		}
	}
	return out
}

func newTestClient(t *testing.T, g *mockGraph, l *mockLedger, opts ...ClientOption) *Client {
	t.Helper()
	base := []ClientOption{
		WithLogger(discardLogger()),
		WithAttemptIDGenerator(func() string { return "attempt-1" }),
	}
	if l != nil {
		base = append(base, WithLedger(l))
	}
	c, err := NewClient(networks.Local, g, append(base, opts...)...)
	require.NoError(t, err)
	return c
}

func escrowAddress(t *testing.T) string {
	t.Helper()
	cfg, err := networks.Lookup(networks.Local)
	require.NoError(t, err)
	return cfg.Contracts[networks.TalentLayerEscrow].Address
}

func proposalJSON(token, rateAmount, cid string) string {
	cidField := "null"
	if cid != "" {
		cidField = fmt.Sprintf("%q", cid)
	}
	return fmt.Sprintf(`{"proposal":{
		"id":"1-2","status":"Pending","cid":%s,"rateAmount":"%s",
		"rateToken":{"address":"%s","symbol":"TKN","decimals":"6"},
		"seller":{"id":"2"},
		"service":{"id":"1","platform":{"id":"3"}},
		"platform":{"id":"4"}
	}}`, cidField, rateAmount, token)
}

const feesJSON = `{
	"protocols":[{"protocolEscrowFeeRate":300}],
	"servicePlatform":{"id":"3","originServiceFeeRate":"500"},
	"proposalPlatform":{"id":"4","originValidatedProposalFeeRate":200}
}`
