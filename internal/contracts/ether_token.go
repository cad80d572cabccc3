package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// EtherToken wraps the network's WETH contract.
type EtherToken struct {
	*boundContract
	tokens *ERC20Token
}

func newEtherToken(backend Backend, address common.Address, tokens *ERC20Token) (*EtherToken, error) {
	parsed, err := EtherTokenABI()
	if err != nil {
		return nil, fmt.Errorf("parse ether token abi: %w", err)
	}
	return &EtherToken{boundContract: bindContract(address, parsed, backend), tokens: tokens}, nil
}

// Address returns the WETH contract address.
func (e *EtherToken) Address() common.Address { return e.address }

// ABI returns the WETH ABI.
func (e *EtherToken) ABI() abi.ABI { return e.abi }

// BalanceOf returns the wrapped ether balance of owner.
func (e *EtherToken) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return e.callBigInt(ctx, "balanceOf", owner)
}

// ProxyAllowance returns the asset proxy allowance of owner for WETH.
func (e *EtherToken) ProxyAllowance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return e.tokens.ProxyAllowance(ctx, e.address, owner)
}

// Deposit wraps amount wei for from.
func (e *EtherToken) Deposit(ctx context.Context, from common.Address, amount *big.Int) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("deposit amount must be positive")
	}
	return e.send(ctx, from, amount, "deposit")
}

// Withdraw unwraps amount wei for from.
func (e *EtherToken) Withdraw(ctx context.Context, from common.Address, amount *big.Int) (common.Hash, error) {
	if amount == nil || amount.Sign() <= 0 {
		return common.Hash{}, fmt.Errorf("withdraw amount must be positive")
	}
	return e.send(ctx, from, nil, "withdraw", amount)
}
