package approval

import (
	"fmt"
	"math/big"
	"strings"

	"approvalScope/internal/model"
)

// FilterPolicy decides what happens to Approval-shaped logs whose amount is zero.
//
// ERC721 Approval shares topic0 with ERC20 Approval, so a zero or missing
// amount usually means an NFT approval. A genuine ERC20 revocation to zero
// looks the same, which is why the behaviour is selectable.
type FilterPolicy string

const (
	// PolicyDrop discards zero-amount events.
	PolicyDrop FilterPolicy = "drop"
	// PolicyRevoked reports zero-amount 32-byte payloads as revocations.
	PolicyRevoked FilterPolicy = "revoked"
)

// ParseFilterPolicy validates a policy name. Empty means PolicyDrop.
func ParseFilterPolicy(name string) (FilterPolicy, error) {
	switch FilterPolicy(strings.ToLower(strings.TrimSpace(name))) {
	case "", PolicyDrop:
		return PolicyDrop, nil
	case PolicyRevoked:
		return PolicyRevoked, nil
	default:
		return "", fmt.Errorf("unknown filter policy: %s", name)
	}
}

// Verdict classifies one raw event.
type Verdict int

const (
	// VerdictApproval is a standard ERC20 Approval with a positive amount.
	VerdictApproval Verdict = iota
	// VerdictRevoked is a zero-amount ERC20 Approval kept under PolicyRevoked.
	VerdictRevoked
	// VerdictAmbiguous covers events that are dropped: wrong topic count,
	// empty or oversized payload, or a zero amount under PolicyDrop.
	VerdictAmbiguous
)

// erc20ApprovalTopics is topic0 + owner + spender; ERC721 adds an indexed tokenId.
const erc20ApprovalTopics = 3

// Classify decodes the amount of event and applies the policy.
func (p FilterPolicy) Classify(event model.RawApprovalEvent) (*big.Int, Verdict) {
	if len(event.Topics) != erc20ApprovalTopics {
		return nil, VerdictAmbiguous
	}
	if len(event.Data) == 0 || len(event.Data) > 32 {
		return nil, VerdictAmbiguous
	}

	amount := new(big.Int).SetBytes(event.Data)
	if amount.Sign() > 0 {
		return amount, VerdictApproval
	}
	if p == PolicyRevoked {
		return amount, VerdictRevoked
	}
	return nil, VerdictAmbiguous
}
