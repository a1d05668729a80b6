// Package erc20test provides an in-memory ERC20 chain for tests.
package erc20test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"approvalScope/internal/erc20"
)

// Token describes one fake ERC20 contract.
type Token struct {
	Decimals uint8
	Name     string
	Symbol   string
	// Bytes32Meta encodes name and symbol as bytes32, like MKR.
	Bytes32Meta bool
	// BrokenMeta makes name and symbol return undecodable data.
	BrokenMeta  bool
	DecimalsErr error
	Balances    map[common.Address]*big.Int
	// Allowances is keyed by owner then spender.
	Allowances map[common.Address]map[common.Address]*big.Int
	// AllowanceErr fails allowance calls for the listed spenders.
	AllowanceErr map[common.Address]error
	BalanceErr   error
}

// Chain answers eth_call for registered tokens.
type Chain struct {
	mu     sync.Mutex
	tokens map[common.Address]*Token
	calls  map[string]int
	// Delay is applied to every call; calls honour context cancellation.
	Delay time.Duration
	// Err fails every call when set.
	Err error
}

func NewChain() *Chain {
	return &Chain{tokens: make(map[common.Address]*Token), calls: make(map[string]int)}
}

// AddToken registers token at address.
func (c *Chain) AddToken(address common.Address, token *Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token.Balances == nil {
		token.Balances = make(map[common.Address]*big.Int)
	}
	if token.Allowances == nil {
		token.Allowances = make(map[common.Address]map[common.Address]*big.Int)
	}
	c.tokens[address] = token
}

// SetAllowance sets allowance(owner, spender) on token.
func (c *Chain) SetAllowance(token, owner, spender common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tokens[token]
	if t.Allowances[owner] == nil {
		t.Allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.Allowances[owner][spender] = amount
}

// SetBalance sets balanceOf(owner) on token.
func (c *Chain) SetBalance(token, owner common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[token].Balances[owner] = amount
}

// Calls returns how many times method was called on token.
func (c *Chain) Calls(token common.Address, method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[token.Hex()+":"+method]
}

// CallContract implements erc20.Caller.
func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if c.Delay > 0 {
		timer := time.NewTimer(c.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.Err != nil {
		return nil, c.Err
	}
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("invalid call")
	}

	parsed, err := erc20.StandardABI()
	if err != nil {
		return nil, err
	}
	method, err := parsed.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[msg.To.Hex()+":"+method.Name]++

	token, ok := c.tokens[*msg.To]
	if !ok {
		// Non-contract accounts return empty data.
		return []byte{}, nil
	}

	switch method.Name {
	case "decimals":
		if token.DecimalsErr != nil {
			return nil, token.DecimalsErr
		}
		return method.Outputs.Pack(token.Decimals)
	case "name":
		return packMeta(method.Outputs.Pack, token, token.Name)
	case "symbol":
		return packMeta(method.Outputs.Pack, token, token.Symbol)
	case "balanceOf":
		if token.BalanceErr != nil {
			return nil, token.BalanceErr
		}
		owner := args[0].(common.Address)
		return method.Outputs.Pack(valueOrZero(token.Balances[owner]))
	case "allowance":
		owner := args[0].(common.Address)
		spender := args[1].(common.Address)
		if err := token.AllowanceErr[spender]; err != nil {
			return nil, err
		}
		return method.Outputs.Pack(valueOrZero(token.Allowances[owner][spender]))
	default:
		return nil, fmt.Errorf("unsupported method %s", method.Name)
	}
}

func packMeta(pack func(...interface{}) ([]byte, error), token *Token, value string) ([]byte, error) {
	switch {
	case token.BrokenMeta:
		return []byte{0x01, 0x02, 0x03}, nil
	case token.Bytes32Meta:
		var out [32]byte
		copy(out[:], bytes.TrimSpace([]byte(value)))
		return out[:], nil
	default:
		return pack(value)
	}
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

// Prices is a fake erc20.PriceService keyed by symbol.
type Prices struct {
	mu     sync.Mutex
	Values map[string]float64
	Err    error
	calls  int
}

// UnitPriceUSD implements erc20.PriceService.
func (p *Prices) UnitPriceUSD(_ context.Context, symbol string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.Err != nil {
		return 0, p.Err
	}
	v, ok := p.Values[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return v, nil
}

// Calls returns the number of lookups.
func (p *Prices) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// RevertError mimics a JSON-RPC "execution reverted" error.
type RevertError struct{}

func (RevertError) Error() string  { return "execution reverted" }
func (RevertError) ErrorCode() int { return 3 }
