package model

import (
	"encoding/json"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ContractExposure is the live allowance, balance and exposure of one owner on one token.
type ContractExposure struct {
	Contract    common.Address
	Token       TokenMeta
	Spenders    []common.Address
	Allowance   *big.Int
	Balance     *big.Int
	Exposure    *big.Int
	ExposureUSD *decimal.Decimal
}

type contractExposureJSON struct {
	Contract    common.Address   `json:"contract"`
	Token       TokenMeta        `json:"token"`
	Spenders    []common.Address `json:"spenders"`
	Allowance   string           `json:"allowance"`
	Balance     string           `json:"balance"`
	Exposure    string           `json:"exposure"`
	ExposureUSD *decimal.Decimal `json:"exposure_usd,omitempty"`
}

// MarshalJSON encodes integer amounts as base-10 strings.
func (c ContractExposure) MarshalJSON() ([]byte, error) {
	return json.Marshal(contractExposureJSON{
		Contract:    c.Contract,
		Token:       c.Token,
		Spenders:    c.Spenders,
		Allowance:   bigString(c.Allowance),
		Balance:     bigString(c.Balance),
		Exposure:    bigString(c.Exposure),
		ExposureUSD: c.ExposureUSD,
	})
}

// ExposureReport holds one owner's exposure keyed by token contract.
type ExposureReport struct {
	Owner     common.Address                      `json:"owner"`
	Contracts map[common.Address]ContractExposure `json:"contracts"`
}

// NewExposureReport returns an empty report for owner.
func NewExposureReport(owner common.Address) ExposureReport {
	return ExposureReport{Owner: owner, Contracts: make(map[common.Address]ContractExposure)}
}

// Sorted returns the contract entries ordered by contract address.
func (r ExposureReport) Sorted() []ContractExposure {
	out := make([]ContractExposure, 0, len(r.Contracts))
	for _, entry := range r.Contracts {
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Contract.Cmp(out[j].Contract) < 0
	})
	return out
}
