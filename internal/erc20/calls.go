package erc20

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"approvalScope/internal/model"
)

// Caller performs read-only contract calls. chain.Client satisfies it.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client issues typed ERC20 view calls, each bounded by a timeout.
type Client struct {
	caller  Caller
	timeout time.Duration
}

// NewClient wraps caller. A zero timeout leaves call deadlines to the caller's context.
func NewClient(caller Caller, timeout time.Duration) *Client {
	return &Client{caller: caller, timeout: timeout}
}

// Decimals calls decimals().
func (c *Client) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	parsed, err := StandardABI()
	if err != nil {
		return 0, err
	}
	values, err := c.call(ctx, token, parsed, "decimals")
	if err != nil {
		return 0, err
	}
	decimals, err := asUint8(values[0])
	if err != nil {
		return 0, fmt.Errorf("decimals: %w: %v", model.ErrDecode, err)
	}
	return decimals, nil
}

// Name calls name(), accepting string or bytes32 encodings.
func (c *Client) Name(ctx context.Context, token common.Address) (string, error) {
	return c.stringOrBytes32(ctx, token, "name")
}

// Symbol calls symbol(), accepting string or bytes32 encodings.
func (c *Client) Symbol(ctx context.Context, token common.Address) (string, error) {
	return c.stringOrBytes32(ctx, token, "symbol")
}

// BalanceOf calls balanceOf(owner) at the latest block.
func (c *Client) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	parsed, err := StandardABI()
	if err != nil {
		return nil, err
	}
	values, err := c.call(ctx, token, parsed, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return asBigInt("balanceOf", values)
}

// Allowance calls allowance(owner, spender) at the latest block.
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	parsed, err := StandardABI()
	if err != nil {
		return nil, err
	}
	values, err := c.call(ctx, token, parsed, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return asBigInt("allowance", values)
}

func (c *Client) stringOrBytes32(ctx context.Context, token common.Address, method string) (string, error) {
	stringABI, err := StandardABI()
	if err != nil {
		return "", err
	}
	fallbackABI, err := bytes32ABI()
	if err != nil {
		return "", err
	}

	data, err := stringABI.Pack(method)
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := c.raw(ctx, token, method, data)
	if err != nil {
		return "", err
	}

	if values, err := stringABI.Unpack(method, resp); err == nil && len(values) == 1 {
		if s, ok := values[0].(string); ok {
			return s, nil
		}
	}
	values, err := fallbackABI.Unpack(method, resp)
	if err != nil || len(values) != 1 {
		return "", fmt.Errorf("unpack %s: %w", method, model.ErrDecode)
	}
	s, ok := bytes32ToString(values[0])
	if !ok {
		return "", fmt.Errorf("unpack %s: %w: unexpected type %T", method, model.ErrDecode, values[0])
	}
	return s, nil
}

func (c *Client) call(ctx context.Context, token common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := c.raw(ctx, token, method, data)
	if err != nil {
		return nil, err
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w: %v", method, model.ErrDecode, err)
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unpack %s: %w: return size %d", method, model.ErrDecode, len(values))
	}
	return values, nil
}

func (c *Client) raw(ctx context.Context, token common.Address, method string, data []byte) ([]byte, error) {
	if c.caller == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	msg := ethereum.CallMsg{To: &token, Data: data}
	resp, err := c.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, classifyCallError(err))
	}
	return resp, nil
}

// classifyCallError separates node-side call failures (reverts, missing
// methods) from connectivity problems.
func classifyCallError(err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("%w: %v", model.ErrDecode, err)
	}
	if errors.Is(err, model.ErrDecode) || errors.Is(err, model.ErrTransport) {
		return err
	}
	return fmt.Errorf("%w: %v", model.ErrTransport, err)
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}

func asBigInt(method string, values []interface{}) (*big.Int, error) {
	v, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: %w: unexpected type %T", method, model.ErrDecode, values[0])
	}
	return new(big.Int).Set(v), nil
}

func asUint8(value interface{}) (uint8, error) {
	switch v := value.(type) {
	case uint8:
		return v, nil
	case *big.Int:
		if !v.IsUint64() || v.Uint64() > 255 {
			return 0, fmt.Errorf("decimals out of range: %s", v)
		}
		return uint8(v.Uint64()), nil
	default:
		return 0, fmt.Errorf("unsupported uint8 type %T", value)
	}
}
