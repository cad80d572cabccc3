package network

import (
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnsupportedNetwork is returned for network identifiers outside the table.
var ErrUnsupportedNetwork = errors.New("unsupported network")

// Default network identifiers.
const (
	Mainnet uint64 = 1
	Ropsten uint64 = 3
	Kovan   uint64 = 42
)

// ContractAddresses holds the deployed exchange contract addresses for a network.
type ContractAddresses struct {
	Exchange   common.Address
	ERC20Proxy common.Address
	EtherToken common.Address
	Forwarder  common.Address
	ZRXToken   common.Address
}

// Network describes one supported network.
type Network struct {
	ID        uint64
	Name      string
	RPCURL    string
	Contracts ContractAddresses
}

// Table maps network identifiers to their endpoint and contract addresses.
// The zero value supports no networks.
type Table struct {
	networks map[uint64]Network
}

// DefaultTable returns the built-in table for networks 1, 3 and 42.
func DefaultTable() Table {
	return NewTable(
		Network{
			ID:     Mainnet,
			Name:   "mainnet",
			RPCURL: "https://mainnet.infura.io",
			Contracts: ContractAddresses{
				Exchange:   common.HexToAddress("0x4f833a24e1f95d70f028921e27040ca56e09ab0b"),
				ERC20Proxy: common.HexToAddress("0x2240dab907db71e64d3e0dba4800c83b5c502d4e"),
				EtherToken: common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2"),
				Forwarder:  common.HexToAddress("0x76481caa104b5f6bccb540dae4cefaf1c398ebea"),
				ZRXToken:   common.HexToAddress("0xe41d2489571d322189246dafa5ebde1f4699f498"),
			},
		},
		Network{
			ID:     Ropsten,
			Name:   "ropsten",
			RPCURL: "https://ropsten.infura.io",
			Contracts: ContractAddresses{
				Exchange:   common.HexToAddress("0x4530c0483a1633c7a1c97d2c53721caff2caaaaf"),
				ERC20Proxy: common.HexToAddress("0xb1408f4c245a23c31b98d2c626777d4c0d766caa"),
				EtherToken: common.HexToAddress("0xc778417e063141139fce010982780140aa0cd5ab"),
				Forwarder:  common.HexToAddress("0x3983e204b12b3c02fb0638b6a0fab00df5d6b8ee"),
				ZRXToken:   common.HexToAddress("0xff67881f8d12f372d91baae9752eb3631ff0ed00"),
			},
		},
		Network{
			ID:     Kovan,
			Name:   "kovan",
			RPCURL: "https://kovan.infura.io",
			Contracts: ContractAddresses{
				Exchange:   common.HexToAddress("0x35dd2932454449b14cee11a94d3674a936d5d7b2"),
				ERC20Proxy: common.HexToAddress("0xf1ec01d6236d3cd881a0bf0130ea25fe4234003e"),
				EtherToken: common.HexToAddress("0xd0a1e359811322d97991e03f863a0c30c2cf029c"),
				Forwarder:  common.HexToAddress("0x2759a4c639fa4882d6d64973630ef81faf901d27"),
				ZRXToken:   common.HexToAddress("0x2002d3812f58e35f0ea1ffbf80a75a38c32175fa"),
			},
		},
	)
}

// NewTable builds a table from the given networks. Later entries win on duplicate ids.
func NewTable(networks ...Network) Table {
	t := Table{networks: make(map[uint64]Network, len(networks))}
	for _, n := range networks {
		t.networks[n.ID] = n
	}
	return t
}

// Lookup returns the network for id, or ErrUnsupportedNetwork.
func (t Table) Lookup(id uint64) (Network, error) {
	n, ok := t.networks[id]
	if !ok {
		return Network{}, fmt.Errorf("%w: %d", ErrUnsupportedNetwork, id)
	}
	return n, nil
}

// Endpoint returns the RPC endpoint for id, or ErrUnsupportedNetwork.
func (t Table) Endpoint(id uint64) (string, error) {
	n, err := t.Lookup(id)
	if err != nil {
		return "", err
	}
	if n.RPCURL == "" {
		return "", fmt.Errorf("%w: %d has no rpc url", ErrUnsupportedNetwork, id)
	}
	return n.RPCURL, nil
}

// Name returns a display name for id.
func (t Table) Name(id uint64) string {
	if n, ok := t.networks[id]; ok && n.Name != "" {
		return n.Name
	}
	return fmt.Sprintf("network-%d", id)
}

// IDs returns the supported identifiers in ascending order.
func (t Table) IDs() []uint64 {
	ids := make([]uint64, 0, len(t.networks))
	for id := range t.networks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// With returns a copy of the table with n added or replaced.
func (t Table) With(n Network) Table {
	out := Table{networks: make(map[uint64]Network, len(t.networks)+1)}
	for id, existing := range t.networks {
		out.networks[id] = existing
	}
	out.networks[n.ID] = n
	return out
}
