// Package approval collapses raw Approval logs into the latest effective
// permission per (spender, token) and types them.
package approval

import (
	"github.com/ethereum/go-ethereum/common"

	"approvalScope/internal/model"
)

type spenderGroup struct {
	contracts []common.Address
	latest    map[common.Address]model.RawApprovalEvent
}

// Dedupe keeps the last event per (spender, contract) pair. Input must
// already belong to a single owner and be in chain order; it is not re-sorted.
//
// Output is grouped by first-seen spender, then by first-seen contract within
// that spender. This is not chronological; sort on (BlockNumber, TxIndex) for
// a timeline. Events with fewer than three topics have no spender and are
// dropped.
func Dedupe(events []model.RawApprovalEvent) []model.RawApprovalEvent {
	spenders := make([]common.Hash, 0)
	groups := make(map[common.Hash]*spenderGroup)

	for _, event := range events {
		spender, ok := event.Topic(model.TopicSpender)
		if !ok {
			continue
		}

		group := groups[spender]
		if group == nil {
			group = &spenderGroup{latest: make(map[common.Address]model.RawApprovalEvent)}
			groups[spender] = group
			spenders = append(spenders, spender)
		}
		if _, seen := group.latest[event.Address]; !seen {
			group.contracts = append(group.contracts, event.Address)
		}
		group.latest[event.Address] = event
	}

	out := make([]model.RawApprovalEvent, 0, len(events))
	for _, spender := range spenders {
		group := groups[spender]
		for _, contract := range group.contracts {
			out = append(out, group.latest[contract])
		}
	}
	return out
}
