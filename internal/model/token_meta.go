package model

import "github.com/ethereum/go-ethereum/common"

// TokenMeta captures ERC20 metadata. Name, Symbol and PriceUSD are nil when
// the contract or the price service could not provide them.
type TokenMeta struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   *string        `json:"symbol,omitempty"`
	Name     *string        `json:"name,omitempty"`
	PriceUSD *float64       `json:"price_usd,omitempty"`
}

// DisplayName returns the token name or a placeholder.
func (m TokenMeta) DisplayName() string {
	if m.Name == nil || *m.Name == "" {
		return "unknown"
	}
	return *m.Name
}

// DisplaySymbol returns the token symbol or a placeholder.
func (m TokenMeta) DisplaySymbol() string {
	if m.Symbol == nil || *m.Symbol == "" {
		return "?"
	}
	return *m.Symbol
}
