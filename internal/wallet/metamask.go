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

// MetamaskAdapter talks to MetaMask, whose eth_sign is not the prefixed personal
// signature callers expect.
type MetamaskAdapter struct {
	signerBase
}

// NewMetamaskAdapter wraps p.
func NewMetamaskAdapter(p *InjectedProvider) *MetamaskAdapter {
	return &MetamaskAdapter{signerBase{provider: p}}
}

// Kind reports the adapter variant.
func (a *MetamaskAdapter) Kind() Kind { return KindMetaMask }

// Accounts returns the wallet accounts.
func (a *MetamaskAdapter) Accounts(ctx context.Context) ([]common.Address, error) {
	return a.accounts(ctx)
}

// SignAndSend has the wallet sign and broadcast tx.
func (a *MetamaskAdapter) SignAndSend(ctx context.Context, tx model.TxArgs) (common.Hash, error) {
	return a.signAndSend(ctx, tx)
}

// SignMessage uses personal_sign, which takes [message, account].
func (a *MetamaskAdapter) SignMessage(ctx context.Context, account common.Address, message []byte) (hexutil.Bytes, error) {
	var sig hexutil.Bytes
	if err := a.provider.CallContext(ctx, &sig, "personal_sign", hexutil.Bytes(message), account); err != nil {
		return nil, fmt.Errorf("personal_sign: %w", err)
	}
	return sig, nil
}

// SignTypedData uses eth_signTypedData_v3, which takes the typed data as a JSON string.
func (a *MetamaskAdapter) SignTypedData(ctx context.Context, account common.Address, typedData json.RawMessage) (hexutil.Bytes, error) {
	var sig hexutil.Bytes
	if err := a.provider.CallContext(ctx, &sig, "eth_signTypedData_v3", account, string(typedData)); err != nil {
		return nil, fmt.Errorf("eth_signTypedData_v3: %w", err)
	}
	return sig, nil
}

// HandleRequest serves wallet methods and passes everything else to next.
func (a *MetamaskAdapter) HandleRequest(ctx context.Context, req *engine.Request, next engine.NextFunc) (json.RawMessage, error) {
	return handleSignerRequest(ctx, a, req, next)
}
