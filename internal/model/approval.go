package model

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EnrichedApproval is a deduplicated ERC20 approval with its token metadata.
type EnrichedApproval struct {
	Owner       common.Address
	Spender     common.Address
	Contract    common.Address
	Amount      *big.Int
	TxHash      common.Hash
	BlockNumber uint64
	TxIndex     uint64
	Token       TokenMeta
}

type enrichedApprovalJSON struct {
	Owner       common.Address `json:"owner"`
	Spender     common.Address `json:"spender"`
	Contract    common.Address `json:"contract"`
	Amount      string         `json:"amount"`
	TxHash      common.Hash    `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
	TxIndex     uint64         `json:"tx_index"`
	Token       TokenMeta      `json:"token"`
}

// MarshalJSON encodes Amount as a base-10 string.
func (a EnrichedApproval) MarshalJSON() ([]byte, error) {
	return json.Marshal(enrichedApprovalJSON{
		Owner:       a.Owner,
		Spender:     a.Spender,
		Contract:    a.Contract,
		Amount:      bigString(a.Amount),
		TxHash:      a.TxHash,
		BlockNumber: a.BlockNumber,
		TxIndex:     a.TxIndex,
		Token:       a.Token,
	})
}

// UnmarshalJSON decodes an EnrichedApproval with a base-10 string Amount.
func (a *EnrichedApproval) UnmarshalJSON(data []byte) error {
	var raw enrichedApprovalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	amount, err := parseBig(raw.Amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	*a = EnrichedApproval{
		Owner:       raw.Owner,
		Spender:     raw.Spender,
		Contract:    raw.Contract,
		Amount:      amount,
		TxHash:      raw.TxHash,
		BlockNumber: raw.BlockNumber,
		TxIndex:     raw.TxIndex,
		Token:       raw.Token,
	}
	return nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBig(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}
