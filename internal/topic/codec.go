// Package topic converts between account addresses and 32-byte log topics.
package topic

import (
	"github.com/ethereum/go-ethereum/common"
)

// AddressToTopic left-pads a 20-byte address to a 32-byte topic.
func AddressToTopic(address string) (common.Hash, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return common.Hash{}, err
	}
	return FromAddress(addr), nil
}

// FromAddress pads an already parsed address.
func FromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

// TopicToAddress takes the low 20 bytes of topic. The upper 12 bytes are not checked.
func TopicToAddress(topic common.Hash) common.Address {
	return common.BytesToAddress(topic[common.HashLength-common.AddressLength:])
}
