package talentlayer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// ProposalKey builds the subgraph id of a proposal.
func ProposalKey(serviceID, proposalID string) string {
	return serviceID + "-" + proposalID
}

// parseID converts a decimal entity id to the uint256 the contracts expect.
func parseID(name, value string) (*big.Int, error) {
	value = strings.TrimSpace(value)
	id, ok := new(big.Int).SetString(value, 10)
	if !ok || id.Sign() < 0 {
		return nil, NewError(ErrCodeInvalidArgument, fmt.Sprintf("%s must be a non-negative integer, got %q", name, value), nil)
	}
	return id, nil
}

// parseBigInt decodes a subgraph BigInt or Int, which arrive either as a JSON string or a
// number. ok is false for null or absent values.
func parseBigInt(raw json.RawMessage) (value *big.Int, ok bool, err error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, false, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, false, err
		}
	}
	value, parsed := new(big.Int).SetString(strings.TrimSpace(text), 10)
	if !parsed {
		return nil, false, fmt.Errorf("not an integer: %s", string(raw))
	}
	return value, true, nil
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
