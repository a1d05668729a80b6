package approval

import (
	"context"

	"approvalScope/internal/model"
)

// LogSource delivers the Approval logs matching a query, ordered ascending by
// block number, transaction index and log index.
type LogSource interface {
	QueryLogs(ctx context.Context, q model.LogQuery) ([]model.RawApprovalEvent, error)
}
