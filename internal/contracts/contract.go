package contracts

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"dappkit/internal/model"
)

// Backend is what the wrappers need from the connectivity handle: eth_call for reads
// and eth_sendTransaction for writes, which the wallet signs.
type Backend interface {
	bind.ContractCaller
	SendTransaction(ctx context.Context, tx model.TxArgs) (common.Hash, error)
}

// boundContract pairs a contract address with its ABI.
type boundContract struct {
	address common.Address
	abi     abi.ABI
	bound   *bind.BoundContract
	backend Backend
}

func bindContract(address common.Address, parsed abi.ABI, backend Backend) *boundContract {
	return &boundContract{
		address: address,
		abi:     parsed,
		bound:   bind.NewBoundContract(address, parsed, backend, nil, nil),
		backend: backend,
	}
}

func (c *boundContract) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return out, nil
}

func (c *boundContract) callBigInt(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected result type %T", method, out[0])
	}
	return value, nil
}

func (c *boundContract) send(ctx context.Context, from common.Address, value *big.Int, method string, args ...interface{}) (common.Hash, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack %s: %w", method, err)
	}
	to := c.address
	tx := model.TxArgs{From: from, To: &to, Data: data}
	if value != nil && value.Sign() > 0 {
		tx.Value = (*hexutil.Big)(new(big.Int).Set(value))
	}
	hash, err := c.backend.SendTransaction(ctx, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("send %s: %w", method, err)
	}
	return hash, nil
}

func bytes32ToString(value interface{}) (string, bool) {
	switch v := value.(type) {
	case [32]byte:
		return string(bytes.TrimRight(v[:], "\x00")), true
	case []byte:
		return string(bytes.TrimRight(v, "\x00")), true
	default:
		return "", false
	}
}
