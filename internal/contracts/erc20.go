package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dappkit/internal/decoder"
	"dappkit/internal/model"
)

// UnlimitedAllowance is the max uint256 allowance granted to the asset proxy.
var UnlimitedAllowance = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// IsUnlimited reports whether amount is the unlimited allowance.
func IsUnlimited(amount *big.Int) bool {
	return amount != nil && amount.Cmp(UnlimitedAllowance) == 0
}

// ERC20Token reads and writes any ERC20 token by address.
type ERC20Token struct {
	backend Backend
	abi     abi.ABI
	bytes32 abi.ABI
	proxy   common.Address
	logger  *zap.Logger
}

func newERC20Token(backend Backend, proxy common.Address, logger *zap.Logger) (*ERC20Token, error) {
	parsed, err := ERC20ABI()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	legacy, err := erc20Bytes32ABI.get()
	if err != nil {
		return nil, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}
	return &ERC20Token{backend: backend, abi: parsed, bytes32: legacy, proxy: proxy, logger: logger}, nil
}

// ABI returns the token ABI.
func (t *ERC20Token) ABI() abi.ABI { return t.abi }

// ProxyAddress returns the asset proxy that spends approved tokens.
func (t *ERC20Token) ProxyAddress() common.Address { return t.proxy }

func (t *ERC20Token) at(token common.Address) *boundContract {
	return bindContract(token, t.abi, t.backend)
}

// BalanceOf returns the token balance of owner.
func (t *ERC20Token) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return t.at(token).callBigInt(ctx, "balanceOf", owner)
}

// Allowance returns how much spender may transfer from owner.
func (t *ERC20Token) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return t.at(token).callBigInt(ctx, "allowance", owner, spender)
}

// ProxyAllowance returns the asset proxy allowance of owner.
func (t *ERC20Token) ProxyAllowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	return t.Allowance(ctx, token, owner, t.proxy)
}

// TotalSupply returns the token supply.
func (t *ERC20Token) TotalSupply(ctx context.Context, token common.Address) (*big.Int, error) {
	return t.at(token).callBigInt(ctx, "totalSupply")
}

// Decimals returns the token decimals.
func (t *ERC20Token) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := t.at(token).call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return decoder.AsUint8(out[0])
}

// Symbol returns the token symbol, falling back to the bytes32 variant.
func (t *ERC20Token) Symbol(ctx context.Context, token common.Address) (string, error) {
	return t.text(ctx, token, "symbol")
}

// Name returns the token name, falling back to the bytes32 variant.
func (t *ERC20Token) Name(ctx context.Context, token common.Address) (string, error) {
	return t.text(ctx, token, "name")
}

func (t *ERC20Token) text(ctx context.Context, token common.Address, method string) (string, error) {
	out, err := t.at(token).call(ctx, method)
	if err == nil {
		if s, ok := out[0].(string); ok {
			return s, nil
		}
	}
	legacy, legacyErr := bindContract(token, t.bytes32, t.backend).call(ctx, method)
	if legacyErr != nil {
		if err == nil {
			err = legacyErr
		}
		return "", err
	}
	s, ok := bytes32ToString(legacy[0])
	if !ok {
		return "", fmt.Errorf("%s: unexpected result type %T", method, legacy[0])
	}
	return s, nil
}

// TokenMeta loads decimals, symbol and name. Only decimals is mandatory.
func (t *ERC20Token) TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token.Hex()}

	decimals, err := t.Decimals(ctx, token)
	if err != nil {
		return meta, err
	}
	meta.Decimals = decimals

	if symbol, err := t.Symbol(ctx, token); err == nil {
		meta.Symbol = symbol
	} else if t.logger != nil {
		t.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	if name, err := t.Name(ctx, token); err == nil {
		meta.Name = name
	} else if t.logger != nil {
		t.logger.Debug("name call failed", zap.String("token", token.Hex()), zap.Error(err))
	}
	return meta, nil
}

// Transfer sends amount of token from the wallet account to recipient.
func (t *ERC20Token) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) (common.Hash, error) {
	return t.at(token).send(ctx, from, nil, "transfer", to, amount)
}

// SetAllowance approves spender for amount.
func (t *ERC20Token) SetAllowance(ctx context.Context, token, owner, spender common.Address, amount *big.Int) (common.Hash, error) {
	return t.at(token).send(ctx, owner, nil, "approve", spender, amount)
}

// SetProxyAllowance approves the asset proxy for amount.
func (t *ERC20Token) SetProxyAllowance(ctx context.Context, token, owner common.Address, amount *big.Int) (common.Hash, error) {
	return t.SetAllowance(ctx, token, owner, t.proxy, amount)
}

// SetUnlimitedProxyAllowance approves the asset proxy for the max uint256.
func (t *ERC20Token) SetUnlimitedProxyAllowance(ctx context.Context, token, owner common.Address) (common.Hash, error) {
	return t.SetProxyAllowance(ctx, token, owner, UnlimitedAllowance)
}
