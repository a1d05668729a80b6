package topic

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"approvalScope/internal/model"
)

func TestAddressToTopic(t *testing.T) {
	got, err := AddressToTopic("0xAbCdEf0123456789aBcDeF0123456789AbCdEf01")
	require.NoError(t, err)
	assert.Equal(t, "0x000000000000000000000000abcdef0123456789abcdef0123456789abcdef01", got.Hex())
	assert.Len(t, got.Hex(), 66)
}

func TestAddressToTopicInvalid(t *testing.T) {
	for _, input := range []string{"", "0x1234", "not-an-address", "0xZZcdef0123456789abcdef0123456789abcdef01"} {
		_, err := AddressToTopic(input)
		require.Error(t, err, input)
		assert.True(t, errors.Is(err, model.ErrInvalidAddress), input)
	}
}

func TestTopicToAddressRoundTrip(t *testing.T) {
	addr := common.HexToAddress("0x6B175474E89094C44Da98b954EedeAC495271d0F")
	assert.Equal(t, addr, TopicToAddress(FromAddress(addr)))
}

func TestTopicToAddressIgnoresHighBytes(t *testing.T) {
	topic := common.HexToHash("0xffffffffffffffffffffffff1111111111111111111111111111111111111111")
	assert.Equal(t, common.HexToAddress("0x1111111111111111111111111111111111111111"), TopicToAddress(topic))
}

func TestParseAddresses(t *testing.T) {
	got, err := ParseAddresses([]string{" 0x1111111111111111111111111111111111111111 ", "", "0x2222222222222222222222222222222222222222"})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = ParseAddresses([]string{"0x11"})
	assert.ErrorIs(t, err, model.ErrInvalidAddress)
}

func TestParseHash(t *testing.T) {
	_, err := ParseHash("0x8c5be1e5ebec7d5bd14f71427d1e84f3dd0314c0f7b2291e5b200ac8c7c3b925")
	require.NoError(t, err)

	_, err = ParseHash("0x8c5b")
	assert.Error(t, err)
}
