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

// GenericAdapter forwards signing requests to a standards-following wallet.
type GenericAdapter struct {
	signerBase
}

// NewGenericAdapter wraps p.
func NewGenericAdapter(p *InjectedProvider) *GenericAdapter {
	return &GenericAdapter{signerBase{provider: p}}
}

// Kind reports the adapter variant.
func (a *GenericAdapter) Kind() Kind { return KindGeneric }

// Accounts returns the wallet accounts.
func (a *GenericAdapter) Accounts(ctx context.Context) ([]common.Address, error) {
	return a.accounts(ctx)
}

// SignAndSend has the wallet sign and broadcast tx.
func (a *GenericAdapter) SignAndSend(ctx context.Context, tx model.TxArgs) (common.Hash, error) {
	return a.signAndSend(ctx, tx)
}

// SignMessage uses eth_sign with [account, message].
func (a *GenericAdapter) SignMessage(ctx context.Context, account common.Address, message []byte) (hexutil.Bytes, error) {
	var sig hexutil.Bytes
	if err := a.provider.CallContext(ctx, &sig, "eth_sign", account, hexutil.Bytes(message)); err != nil {
		return nil, fmt.Errorf("eth_sign: %w", err)
	}
	return sig, nil
}

// SignTypedData uses eth_signTypedData with the typed data object.
func (a *GenericAdapter) SignTypedData(ctx context.Context, account common.Address, typedData json.RawMessage) (hexutil.Bytes, error) {
	var sig hexutil.Bytes
	if err := a.provider.CallContext(ctx, &sig, "eth_signTypedData", account, typedData); err != nil {
		return nil, fmt.Errorf("eth_signTypedData: %w", err)
	}
	return sig, nil
}

// HandleRequest serves wallet methods and passes everything else to next.
func (a *GenericAdapter) HandleRequest(ctx context.Context, req *engine.Request, next engine.NextFunc) (json.RawMessage, error) {
	return handleSignerRequest(ctx, a, req, next)
}
