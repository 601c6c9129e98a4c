package networks

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress lower-cases an address and ensures the 0x prefix.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X") {
		address = "0x" + address
	}
	return strings.ToLower(address)
}

// IsValidAddress checks that address is a 20-byte hex address.
func IsValidAddress(address string) bool {
	return common.IsHexAddress(strings.TrimSpace(address))
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}

// IsNativeToken reports whether token designates the chain's native currency.
func IsNativeToken(token string) bool {
	return SameAddress(token, NativeTokenAddress)
}

// ParseAmount converts a decimal string like "1.5" to the smallest unit of a token.
func ParseAmount(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" || strings.HasPrefix(amount, "-") {
		return nil, fmt.Errorf("invalid amount: %q", amount)
	}

	parts := strings.SplitN(amount, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}
	frac += strings.Repeat("0", decimals-len(frac))

	digits := strings.TrimLeft(whole+frac, "0")
	if digits == "" {
		return big.NewInt(0), nil
	}
	result, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount: %q", amount)
	}
	return result, nil
}

// FormatAmount converts a smallest-unit amount to a decimal string.
func FormatAmount(amount *big.Int, decimals int) string {
	if amount == nil {
		return "0"
	}
	if decimals <= 0 {
		return amount.String()
	}

	sign := ""
	if amount.Sign() < 0 {
		sign = "-"
	}
	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	quotient, remainder := new(big.Int).QuoRem(new(big.Int).Abs(amount), divisor, new(big.Int))

	frac := remainder.String()
	frac = strings.Repeat("0", decimals-len(frac)) + frac
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return sign + quotient.String()
	}
	return sign + quotient.String() + "." + frac
}
