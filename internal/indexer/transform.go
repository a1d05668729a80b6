package indexer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"approvalScope/internal/model"
)

func toRawApproval(log types.Log) model.RawApprovalEvent {
	topics := make([]common.Hash, len(log.Topics))
	copy(topics, log.Topics)

	data := make([]byte, len(log.Data))
	copy(data, log.Data)

	return model.RawApprovalEvent{
		Address:     log.Address,
		Topics:      topics,
		Data:        data,
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		TxIndex:     uint64(log.TxIndex),
		LogIndex:    uint64(log.Index),
	}
}

// logSet drops logs already seen in this run.
type logSet map[string]struct{}

func (s logSet) add(event model.RawApprovalEvent) bool {
	id := fmt.Sprintf("%d:%s:%d", event.BlockNumber, event.TxHash.Hex(), event.LogIndex)
	if _, ok := s[id]; ok {
		return false
	}
	s[id] = struct{}{}
	return true
}
