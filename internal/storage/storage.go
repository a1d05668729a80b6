package storage

import "approvalScope/internal/model"

// Sink receives batches of raw approval logs.
type Sink interface {
	PutApprovalBatch(events []model.RawApprovalEvent) error
}
