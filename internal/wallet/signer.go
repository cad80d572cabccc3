package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"dappkit/internal/engine"
	"dappkit/internal/model"
)

// Kind identifies the signer adapter variant.
type Kind string

const (
	KindMetaMask Kind = "metamask"
	KindGeneric  Kind = "generic"
)

// SignerAdapter wraps the injected provider for use as the first link of the provider engine.
// Variants differ only in how they talk to the wallet.
type SignerAdapter interface {
	engine.Subprovider
	Kind() Kind
	Accounts(ctx context.Context) ([]common.Address, error)
	SignAndSend(ctx context.Context, tx model.TxArgs) (common.Hash, error)
	SignMessage(ctx context.Context, account common.Address, message []byte) (hexutil.Bytes, error)
	SignTypedData(ctx context.Context, account common.Address, typedData json.RawMessage) (hexutil.Bytes, error)
}

// NewSignerAdapter selects the adapter variant from the provider's vendor marker.
func NewSignerAdapter(p *InjectedProvider) SignerAdapter {
	if p.IsMetaMask() {
		return NewMetamaskAdapter(p)
	}
	return NewGenericAdapter(p)
}

type signerBase struct {
	provider *InjectedProvider
}

func (b signerBase) accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := b.provider.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, fmt.Errorf("eth_accounts: %w", err)
	}
	return accounts, nil
}

func (b signerBase) signAndSend(ctx context.Context, tx model.TxArgs) (common.Hash, error) {
	var hash common.Hash
	if err := b.provider.CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendTransaction: %w", err)
	}
	return hash, nil
}

// handleSignerRequest answers the wallet-owned methods and passes the rest down the chain.
func handleSignerRequest(ctx context.Context, s SignerAdapter, req *engine.Request, next engine.NextFunc) (json.RawMessage, error) {
	switch req.Method {
	case "eth_accounts":
		accounts, err := s.Accounts(ctx)
		if err != nil {
			return nil, err
		}
		if accounts == nil {
			accounts = []common.Address{}
		}
		return json.Marshal(accounts)
	case "eth_coinbase":
		accounts, err := s.Accounts(ctx)
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			return json.RawMessage("null"), nil
		}
		return json.Marshal(accounts[0])
	case "eth_sendTransaction":
		var tx model.TxArgs
		if err := req.Param(0, &tx); err != nil {
			return nil, err
		}
		hash, err := s.SignAndSend(ctx, tx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(hash)
	case "eth_sign":
		var account common.Address
		var message hexutil.Bytes
		if err := req.Param(0, &account); err != nil {
			return nil, err
		}
		if err := req.Param(1, &message); err != nil {
			return nil, err
		}
		sig, err := s.SignMessage(ctx, account, message)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sig)
	case "eth_signTypedData", "eth_signTypedData_v3":
		var account common.Address
		var typedData json.RawMessage
		if err := req.Param(0, &account); err != nil {
			return nil, err
		}
		if err := req.Param(1, &typedData); err != nil {
			return nil, err
		}
		sig, err := s.SignTypedData(ctx, account, typedData)
		if err != nil {
			return nil, err
		}
		return json.Marshal(sig)
	default:
		return next(ctx, req)
	}
}
