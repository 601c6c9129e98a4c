package ipfs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcutil/base58"
)

var (
	// ErrEmptyCID is returned for a blank content identifier.
	ErrEmptyCID = errors.New("ipfs: cid is empty")
	// ErrInvalidCID is returned for a malformed content identifier.
	ErrInvalidCID = errors.New("ipfs: invalid cid")
)

const (
	sha256Code   = 0x12
	sha256Length = 0x20
	base32Alpha  = "abcdefghijklmnopqrstuvwxyz234567"
)

// ValidateCID checks the syntax of a CIDv0 (base58btc sha2-256 multihash) or
// a base32 CIDv1. It does not check that the content exists.
func ValidateCID(cid string) error {
	cid = strings.TrimSpace(cid)
	switch {
	case cid == "":
		return ErrEmptyCID
	case strings.HasPrefix(cid, "Qm"):
		decoded := base58.Decode(cid)
		if len(decoded) != 2+sha256Length || decoded[0] != sha256Code || decoded[1] != sha256Length {
			return fmt.Errorf("%w: %q is not a sha2-256 multihash", ErrInvalidCID, cid)
		}
		return nil
	case strings.HasPrefix(cid, "b"):
		rest := cid[1:]
		if len(rest) < 32 {
			return fmt.Errorf("%w: %q is too short", ErrInvalidCID, cid)
		}
		for _, r := range rest {
			if !strings.ContainsRune(base32Alpha, r) {
				return fmt.Errorf("%w: %q is not base32", ErrInvalidCID, cid)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported multibase in %q", ErrInvalidCID, cid)
	}
}
