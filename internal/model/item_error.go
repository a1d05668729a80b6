package model

import (
	"context"
	"errors"
)

var (
	// ErrInvalidAddress rejects malformed input before any network call.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrTransport marks log source or chain client connectivity failures.
	ErrTransport = errors.New("transport error")
	// ErrDecode marks non-conformant contract return data.
	ErrDecode = errors.New("decode error")
	// ErrPriceService marks price lookup failures.
	ErrPriceService = errors.New("price service error")
	// ErrPriceUnavailable is returned when a USD figure was requested without a unit price.
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrAmbiguousEvent marks Approval-shaped logs that are not ERC20 approvals.
	ErrAmbiguousEvent = errors.New("ambiguous approval event")
)

// Item failure kinds.
const (
	KindInvalidAddress   = "invalid_address"
	KindTransport        = "transport"
	KindDecode           = "decode"
	KindPriceService     = "price_service"
	KindPriceUnavailable = "price_unavailable"
	KindInternal         = "internal"
)

// ItemError records a failure scoped to one owner, contract or approval.
type ItemError struct {
	Owner    string `json:"owner,omitempty"`
	Contract string `json:"contract,omitempty"`
	TxHash   string `json:"tx_hash,omitempty"`
	Kind     string `json:"kind"`
	Error    string `json:"error"`
}

// Classify maps an error onto an ItemError kind.
func Classify(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidAddress):
		return KindInvalidAddress
	case errors.Is(err, ErrPriceUnavailable):
		return KindPriceUnavailable
	case errors.Is(err, ErrPriceService):
		return KindPriceService
	case errors.Is(err, ErrDecode):
		return KindDecode
	case errors.Is(err, ErrTransport),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindTransport
	default:
		return KindInternal
	}
}

// NewItemError builds an ItemError from err.
func NewItemError(owner, contract, txHash string, err error) ItemError {
	return ItemError{
		Owner:    owner,
		Contract: contract,
		TxHash:   txHash,
		Kind:     Classify(err),
		Error:    err.Error(),
	}
}
