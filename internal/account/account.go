package account

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dappkit/internal/chain"
	"dappkit/internal/contracts"
	"dappkit/internal/model"
)

// ErrNoAccount is returned when the wallet exposes no accounts, usually because it is locked.
var ErrNoAccount = errors.New("wallet exposes no accounts")

const snapshotConcurrency = 8

// Tracker reads the balances of wallet accounts.
type Tracker struct {
	client *chain.Client
	facade *contracts.Wrappers
	cache  *TokenMetaCache
	logger *zap.Logger
}

// NewTracker builds a tracker over a bootstrapped handle and facade.
func NewTracker(client *chain.Client, facade *contracts.Wrappers, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{client: client, facade: facade, cache: NewTokenMetaCache(), logger: logger}
}

// DefaultAccount returns the first wallet account.
func (t *Tracker) DefaultAccount(ctx context.Context) (common.Address, error) {
	accounts, err := t.client.Accounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccount
	}
	return accounts[0], nil
}

// DefaultTokens returns the tokens tracked when none are requested.
func (t *Tracker) DefaultTokens() []common.Address {
	if t.facade.Addresses.ZRXToken == (common.Address{}) {
		return nil
	}
	return []common.Address{t.facade.Addresses.ZRXToken}
}

// Snapshot reads ether, wrapped ether and token balances of owner concurrently.
func (t *Tracker) Snapshot(ctx context.Context, owner common.Address, tokens []common.Address) (model.AccountSnapshot, error) {
	snapshot := model.AccountSnapshot{
		NetworkID: t.facade.NetworkID,
		Address:   owner.Hex(),
		Tokens:    make([]model.TokenBalance, len(tokens)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(snapshotConcurrency)

	g.Go(func() error {
		head, err := t.client.LatestBlockNumber(gctx)
		if err != nil {
			return fmt.Errorf("block number: %w", err)
		}
		snapshot.BlockNumber = head
		return nil
	})
	g.Go(func() error {
		balance, err := t.client.BalanceAt(gctx, owner, nil)
		if err != nil {
			return fmt.Errorf("ether balance: %w", err)
		}
		snapshot.EthBalance = balance.String()
		snapshot.EthFormat = FormatTokenAmount(balance, EtherDecimals)
		return nil
	})
	g.Go(func() error {
		balance, err := t.facade.EtherToken.BalanceOf(gctx, owner)
		if err != nil {
			return fmt.Errorf("wrapped ether balance: %w", err)
		}
		snapshot.WethBalance = balance.String()
		snapshot.WethFormat = FormatTokenAmount(balance, EtherDecimals)
		return nil
	})
	for i, token := range tokens {
		i, token := i, token
		g.Go(func() error {
			balance, err := t.tokenBalance(gctx, token, owner)
			if err != nil {
				return err
			}
			snapshot.Tokens[i] = balance
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return model.AccountSnapshot{}, err
	}
	snapshot.TakenAt = time.Now().UTC().Format(time.RFC3339)

	t.logger.Debug("account snapshot",
		zap.String("account", snapshot.Address),
		zap.Uint64("block", snapshot.BlockNumber),
		zap.Int("tokens", len(snapshot.Tokens)),
	)
	return snapshot, nil
}

func (t *Tracker) tokenBalance(ctx context.Context, token, owner common.Address) (model.TokenBalance, error) {
	meta, err := t.tokenMeta(ctx, token)
	if err != nil {
		return model.TokenBalance{}, err
	}
	balance, err := t.facade.ERC20Token.BalanceOf(ctx, token, owner)
	if err != nil {
		return model.TokenBalance{}, fmt.Errorf("%s balance: %w", token.Hex(), err)
	}
	allowance, err := t.facade.ERC20Token.ProxyAllowance(ctx, token, owner)
	if err != nil {
		return model.TokenBalance{}, fmt.Errorf("%s proxy allowance: %w", token.Hex(), err)
	}
	return model.TokenBalance{
		Token:          meta,
		Balance:        balance.String(),
		Formatted:      FormatTokenAmount(balance, meta.Decimals),
		ProxyAllowance: allowance.String(),
		Unlimited:      contracts.IsUnlimited(allowance),
	}, nil
}

// TokenMeta returns cached token metadata, loading it on first use.
func (t *Tracker) TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	return t.tokenMeta(ctx, token)
}

func (t *Tracker) tokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := t.cache.Get(token); ok {
		return meta, nil
	}
	meta, err := t.facade.ERC20Token.TokenMeta(ctx, token)
	if err != nil {
		return meta, fmt.Errorf("%s metadata: %w", token.Hex(), err)
	}
	t.cache.Set(token, meta)
	return meta, nil
}

// Wei converts a decimal ether amount to wei.
func Wei(ether string) (*big.Int, error) {
	amount, ok := ParseTokenAmount(ether, EtherDecimals)
	if !ok {
		return nil, fmt.Errorf("invalid ether amount %q", ether)
	}
	return amount, nil
}
