package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"dappkit/internal/decoder"
)

// ParseAddresses converts string addresses into common.Address.
func ParseAddresses(inputs []string) ([]common.Address, error) {
	addresses := make([]common.Address, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !common.IsHexAddress(input) {
			return nil, fmt.Errorf("invalid address: %s", input)
		}
		addresses = append(addresses, common.HexToAddress(input))
	}
	return addresses, nil
}

// ResolveTopics converts event filters into topic0 hashes. Each input is either a 32-byte hex
// topic or an event name, optionally qualified by its ABI name ("etherToken.Deposit").
func ResolveTopics(inputs []string, registry *decoder.Registry) ([]common.Hash, error) {
	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.HasPrefix(input, "0x") {
			data, err := hexutil.Decode(input)
			if err != nil {
				return nil, fmt.Errorf("invalid topic0: %s", input)
			}
			if len(data) != 32 {
				return nil, fmt.Errorf("invalid topic0 length: %s", input)
			}
			topics = append(topics, common.BytesToHash(data))
			continue
		}

		topic, err := eventTopic(input, registry)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

func eventTopic(input string, registry *decoder.Registry) (common.Hash, error) {
	if registry == nil {
		return common.Hash{}, fmt.Errorf("cannot resolve event %s without a registry", input)
	}
	abiName, eventName := "", input
	if idx := strings.Index(input, "."); idx >= 0 {
		abiName, eventName = input[:idx], input[idx+1:]
	}
	for _, name := range registry.Names() {
		if abiName != "" && name != abiName {
			continue
		}
		parsed, _ := registry.ABI(name)
		if event, ok := parsed.Events[eventName]; ok {
			return event.ID, nil
		}
	}
	return common.Hash{}, fmt.Errorf("unknown event: %s", input)
}
