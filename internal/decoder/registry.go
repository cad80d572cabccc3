package decoder

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"dappkit/internal/model"
)

// ErrUnknownEvent is returned for logs whose topic0 matches no registered event.
var ErrUnknownEvent = errors.New("unknown event")

type eventEntry struct {
	contract string
	event    abi.Event
	indexed  abi.Arguments
}

// Registry holds contract ABIs and decodes logs emitted by them.
type Registry struct {
	mu     sync.RWMutex
	abis   map[string]abi.ABI
	events map[common.Hash][]eventEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		abis:   make(map[string]abi.ABI),
		events: make(map[common.Hash][]eventEntry),
	}
}

// Register adds an ABI under name. Registering a name twice is a no-op and returns false.
func (r *Registry) Register(name string, parsed abi.ABI) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.abis[name]; ok {
		return false
	}
	r.abis[name] = parsed

	eventNames := make([]string, 0, len(parsed.Events))
	for eventName := range parsed.Events {
		eventNames = append(eventNames, eventName)
	}
	sort.Strings(eventNames)

	for _, eventName := range eventNames {
		event := parsed.Events[eventName]
		if event.Anonymous {
			continue
		}
		entry := eventEntry{contract: name, event: event, indexed: indexedArguments(event.Inputs)}
		if r.hasLayout(event.ID, entry) {
			continue
		}
		r.events[event.ID] = append(r.events[event.ID], entry)
	}
	return true
}

// hasLayout reports whether an event with the same topic0 and indexed layout is already known.
func (r *Registry) hasLayout(topic common.Hash, entry eventEntry) bool {
	for _, existing := range r.events[topic] {
		if len(existing.indexed) != len(entry.indexed) {
			continue
		}
		same := true
		for i := range existing.indexed {
			if existing.indexed[i].Type.String() != entry.indexed[i].Type.String() {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

// Len returns the number of registered ABIs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.abis)
}

// Names returns the registered ABI names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.abis))
	for name := range r.abis {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ABI returns the ABI registered under name.
func (r *Registry) ABI(name string) (abi.ABI, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parsed, ok := r.abis[name]
	return parsed, ok
}

// Topics returns every known event topic0, sorted.
func (r *Registry) Topics() []common.Hash {
	r.mu.RLock()
	defer r.mu.RUnlock()
	topics := make([]common.Hash, 0, len(r.events))
	for topic := range r.events {
		topics = append(topics, topic)
	}
	sort.Slice(topics, func(i, j int) bool {
		return topics[i].Hex() < topics[j].Hex()
	})
	return topics
}

// DecodeLog decodes log against the registered events. NetworkID and Timestamp are left for the caller.
func (r *Registry) DecodeLog(log types.Log) (*model.DecodedEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("missing topics")
	}

	r.mu.RLock()
	candidates := r.events[log.Topics[0]]
	r.mu.RUnlock()
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: topic0 %s", ErrUnknownEvent, log.Topics[0].Hex())
	}

	var entry *eventEntry
	for i := range candidates {
		if len(candidates[i].indexed)+1 == len(log.Topics) {
			entry = &candidates[i]
			break
		}
	}
	if entry == nil {
		return nil, fmt.Errorf("%s: expected %d topics, got %d",
			candidates[0].event.Name, len(candidates[0].indexed)+1, len(log.Topics))
	}

	args, err := decodeArgs(*entry, log)
	if err != nil {
		return nil, err
	}

	return &model.DecodedEvent{
		BlockNumber: log.BlockNumber,
		BlockHash:   log.BlockHash.Hex(),
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Contract:    entry.contract,
		EventName:   entry.event.Name,
		Args:        args,
		Raw:         &model.RawLogRef{Topic0: strings.ToLower(log.Topics[0].Hex()), Data: hexutil.Encode(log.Data)},
	}, nil
}

// Failure builds the decode error record for log.
func Failure(networkID uint64, log types.Log, err error) model.DecodeError {
	record := model.DecodeError{
		NetworkID:   networkID,
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Error:       err.Error(),
	}
	if len(log.Topics) > 0 {
		record.Topic0 = strings.ToLower(log.Topics[0].Hex())
	}
	return record
}

func decodeArgs(entry eventEntry, log types.Log) ([]model.DecodedArg, error) {
	indexedValues := make(map[string]interface{}, len(entry.indexed))
	if err := abi.ParseTopicsIntoMap(indexedValues, entry.indexed, log.Topics[1:]); err != nil {
		return nil, fmt.Errorf("parse %s topics: %w", entry.event.Name, err)
	}

	nonIndexed, err := entry.event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", entry.event.Name, err)
	}

	args := make([]model.DecodedArg, 0, len(entry.event.Inputs))
	indexedPos, dataPos := 0, 0
	for i, input := range entry.event.Inputs {
		name := argName(input, i)
		arg := model.DecodedArg{Name: name, Type: input.Type.String(), Indexed: input.Indexed}
		if input.Indexed {
			arg.Value = FormatValue(indexedValues[entry.indexed[indexedPos].Name])
			indexedPos++
		} else {
			if dataPos >= len(nonIndexed) {
				return nil, fmt.Errorf("%s: missing value for %s", entry.event.Name, name)
			}
			arg.Value = FormatValue(nonIndexed[dataPos])
			dataPos++
		}
		args = append(args, arg)
	}
	return args, nil
}

// indexedArguments returns the indexed inputs, naming unnamed ones by position.
func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for i, arg := range args {
		if arg.Indexed {
			arg.Name = argName(arg, i)
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func argName(arg abi.Argument, position int) string {
	if arg.Name != "" {
		return arg.Name
	}
	return fmt.Sprintf("arg%d", position)
}
