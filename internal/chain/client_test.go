package chain_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"approvalScope/internal/chain"
	"approvalScope/internal/erc20"
	"approvalScope/internal/indexer"
)

// Client is used only through these two interfaces.
var (
	_ indexer.LogFilterer = (*chain.Client)(nil)
	_ erc20.Caller        = (*chain.Client)(nil)
)

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := chain.NewClient(context.Background(), "unknown://node")
	assert.Error(t, err)
}
