package actions

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"dappkit/internal/chain"
	"dappkit/internal/contracts"
	"dappkit/internal/model"
)

// ErrTransactionFailed is returned when a mined transaction reverted.
var ErrTransactionFailed = errors.New("transaction failed")

// Result describes a submitted exchange action.
type Result struct {
	Action   string
	TxHash   common.Hash
	Receipt  *types.Receipt
	Events   []model.DecodedEvent
	Failures []model.DecodeError
}

// Mined reports whether the receipt was awaited.
func (r Result) Mined() bool {
	return r.Receipt != nil
}

// Actions submits exchange-related transactions through the wallet.
type Actions struct {
	client    *chain.Client
	facade    *contracts.Wrappers
	networkID uint64
	await     chain.AwaitConfig
	logger    *zap.Logger
}

// New builds Actions over a bootstrapped handle and facade.
func New(client *chain.Client, facade *contracts.Wrappers, await chain.AwaitConfig, logger *zap.Logger) *Actions {
	if logger == nil {
		logger = zap.NewNop()
	}
	if await.Logger == nil {
		await.Logger = logger
	}
	return &Actions{client: client, facade: facade, networkID: facade.NetworkID, await: await, logger: logger}
}

// WrapETH deposits amount wei into the ether token.
func (a *Actions) WrapETH(ctx context.Context, from common.Address, amount *big.Int, wait bool) (Result, error) {
	hash, err := a.facade.EtherToken.Deposit(ctx, from, amount)
	return a.finish(ctx, "wrap", hash, err, wait)
}

// UnwrapETH withdraws amount wei from the ether token.
func (a *Actions) UnwrapETH(ctx context.Context, from common.Address, amount *big.Int, wait bool) (Result, error) {
	hash, err := a.facade.EtherToken.Withdraw(ctx, from, amount)
	return a.finish(ctx, "unwrap", hash, err, wait)
}

// ApproveProxy grants the asset proxy an unlimited allowance on token.
func (a *Actions) ApproveProxy(ctx context.Context, token, owner common.Address, wait bool) (Result, error) {
	hash, err := a.facade.ERC20Token.SetUnlimitedProxyAllowance(ctx, token, owner)
	return a.finish(ctx, "approve", hash, err, wait)
}

// CancelUpTo cancels every order of maker below targetEpoch.
func (a *Actions) CancelUpTo(ctx context.Context, maker common.Address, targetEpoch *big.Int, wait bool) (Result, error) {
	hash, err := a.facade.Exchange.CancelOrdersUpTo(ctx, maker, targetEpoch)
	return a.finish(ctx, "cancel-up-to", hash, err, wait)
}

func (a *Actions) finish(ctx context.Context, action string, hash common.Hash, err error, wait bool) (Result, error) {
	result := Result{Action: action, TxHash: hash}
	if err != nil {
		return result, fmt.Errorf("%s: %w", action, err)
	}
	a.logger.Info("transaction submitted", zap.String("action", action), zap.String("tx", hash.Hex()))
	if !wait {
		return result, nil
	}

	receipt, err := a.client.AwaitTransactionMined(ctx, hash, a.await)
	if err != nil {
		return result, fmt.Errorf("%s: await %s: %w", action, hash.Hex(), err)
	}
	result.Receipt = receipt
	result.Events, result.Failures = a.client.DecodeReceiptLogs(ctx, a.networkID, receipt)

	a.logger.Info("transaction mined",
		zap.String("action", action),
		zap.String("tx", hash.Hex()),
		zap.Uint64("status", receipt.Status),
		zap.Int("events", len(result.Events)),
	)
	if receipt.Status != types.ReceiptStatusSuccessful {
		return result, fmt.Errorf("%s: %w: %s", action, ErrTransactionFailed, hash.Hex())
	}
	return result, nil
}
