package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Topic positions of an ERC20 Approval(owner, spender, value) log.
const (
	TopicSignature = 0
	TopicOwner     = 1
	TopicSpender   = 2
)

// RawApprovalEvent is a single Approval-shaped log as delivered by a log source.
type RawApprovalEvent struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	TxHash      common.Hash    `json:"tx_hash"`
	BlockNumber uint64         `json:"block_number"`
	TxIndex     uint64         `json:"tx_index"`
	LogIndex    uint64         `json:"log_index"`
}

// Topic returns the topic at index i, if present.
func (e RawApprovalEvent) Topic(i int) (common.Hash, bool) {
	if i < 0 || i >= len(e.Topics) {
		return common.Hash{}, false
	}
	return e.Topics[i], true
}

// Before reports whether e sorts before other in chain order.
func (e RawApprovalEvent) Before(other RawApprovalEvent) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	if e.TxIndex != other.TxIndex {
		return e.TxIndex < other.TxIndex
	}
	return e.LogIndex < other.LogIndex
}

// LogQuery selects Approval logs emitted for one owner.
type LogQuery struct {
	Topic0    common.Hash
	Owner     common.Hash
	FromBlock uint64
	// ToBlock of zero means the latest block.
	ToBlock   uint64
	Contracts []common.Address
}
