package contracts

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dappkit/internal/network"
)

// NamedABI is an ABI with its registration name.
type NamedABI struct {
	Name string
	ABI  abi.ABI
}

// Wrappers is the contract facade for one network.
type Wrappers struct {
	NetworkID  uint64
	Addresses  network.ContractAddresses
	Exchange   *Exchange
	ERC20Token *ERC20Token
	EtherToken *EtherToken
	Forwarder  *Forwarder
}

// New builds the facade over backend for net.
func New(backend Backend, net network.Network, logger *zap.Logger) (*Wrappers, error) {
	if backend == nil {
		return nil, fmt.Errorf("contract backend is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	exchange, err := newExchange(backend, net.Contracts.Exchange)
	if err != nil {
		return nil, err
	}
	tokens, err := newERC20Token(backend, net.Contracts.ERC20Proxy, logger)
	if err != nil {
		return nil, err
	}
	etherToken, err := newEtherToken(backend, net.Contracts.EtherToken, tokens)
	if err != nil {
		return nil, err
	}
	forwarder, err := newForwarder(backend, net.Contracts.Forwarder)
	if err != nil {
		return nil, err
	}

	return &Wrappers{
		NetworkID:  net.ID,
		Addresses:  net.Contracts,
		Exchange:   exchange,
		ERC20Token: tokens,
		EtherToken: etherToken,
		Forwarder:  forwarder,
	}, nil
}

// ABIs returns the sub-facade ABIs in registration order.
func (w *Wrappers) ABIs() []NamedABI {
	return []NamedABI{
		{Name: ExchangeABIName, ABI: w.Exchange.ABI()},
		{Name: ERC20ABIName, ABI: w.ERC20Token.ABI()},
		{Name: EtherTokenABIName, ABI: w.EtherToken.ABI()},
		{Name: ForwarderABIName, ABI: w.Forwarder.ABI()},
	}
}

// WatchAddresses returns the contracts whose events the facade decodes.
func (w *Wrappers) WatchAddresses() []common.Address {
	out := []common.Address{w.Addresses.Exchange, w.Addresses.EtherToken, w.Addresses.Forwarder}
	if w.Addresses.ZRXToken != (common.Address{}) {
		out = append(out, w.Addresses.ZRXToken)
	}
	return out
}
