package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Exchange wraps the exchange contract's order state.
type Exchange struct {
	*boundContract
}

func newExchange(backend Backend, address common.Address) (*Exchange, error) {
	parsed, err := ExchangeABI()
	if err != nil {
		return nil, fmt.Errorf("parse exchange abi: %w", err)
	}
	return &Exchange{bindContract(address, parsed, backend)}, nil
}

// Address returns the exchange contract address.
func (e *Exchange) Address() common.Address { return e.address }

// ABI returns the exchange ABI.
func (e *Exchange) ABI() abi.ABI { return e.abi }

// Filled returns the taker amount already filled for orderHash.
func (e *Exchange) Filled(ctx context.Context, orderHash common.Hash) (*big.Int, error) {
	return e.callBigInt(ctx, "filled", orderHash)
}

// Cancelled reports whether orderHash was cancelled.
func (e *Exchange) Cancelled(ctx context.Context, orderHash common.Hash) (bool, error) {
	out, err := e.call(ctx, "cancelled", orderHash)
	if err != nil {
		return false, err
	}
	cancelled, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("cancelled: unexpected result type %T", out[0])
	}
	return cancelled, nil
}

// OrderEpoch returns the epoch below which maker's orders from sender are invalid.
func (e *Exchange) OrderEpoch(ctx context.Context, maker, sender common.Address) (*big.Int, error) {
	return e.callBigInt(ctx, "orderEpoch", maker, sender)
}

// CancelOrdersUpTo cancels every order of maker with a salt below targetEpoch.
func (e *Exchange) CancelOrdersUpTo(ctx context.Context, maker common.Address, targetEpoch *big.Int) (common.Hash, error) {
	if targetEpoch == nil || targetEpoch.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("target epoch must be non-negative")
	}
	return e.send(ctx, maker, nil, "cancelOrdersUpTo", targetEpoch)
}
