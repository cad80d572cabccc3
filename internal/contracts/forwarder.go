package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"dappkit/internal/decoder"
)

// Forwarder wraps the ether-to-order forwarder.
type Forwarder struct {
	*boundContract
}

func newForwarder(backend Backend, address common.Address) (*Forwarder, error) {
	parsed, err := ForwarderABI()
	if err != nil {
		return nil, fmt.Errorf("parse forwarder abi: %w", err)
	}
	return &Forwarder{bindContract(address, parsed, backend)}, nil
}

// Address returns the forwarder contract address.
func (f *Forwarder) Address() common.Address { return f.address }

// ABI returns the forwarder ABI.
func (f *Forwarder) ABI() abi.ABI { return f.abi }

// Owner returns the forwarder owner.
func (f *Forwarder) Owner(ctx context.Context) (common.Address, error) {
	out, err := f.call(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return decoder.AsAddress(out[0])
}
