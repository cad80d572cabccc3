package contracts

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"dappkit/internal/chain"
	"dappkit/internal/model"
	"dappkit/internal/network"
	"dappkit/internal/testutil/fakechain"
)

var (
	owner = common.HexToAddress("0x5409ed021d9299bf6814279a6a1411a7e866a631")
	zrx   = common.HexToAddress("0xe41d2489571d322189246dafa5ebde1f4699f498")
	mkr   = common.HexToAddress("0x9f8f72aa9304c8b593d555f12ef6589cc3a579a2")
)

type recordingBackend struct {
	*chain.Client
	mu   sync.Mutex
	sent []model.TxArgs
}

func (b *recordingBackend) SendTransaction(ctx context.Context, tx model.TxArgs) (common.Hash, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, tx)
	return common.BigToHash(big.NewInt(int64(len(b.sent)))), nil
}

func newFacade(t *testing.T) (*Wrappers, *fakechain.Node, *recordingBackend) {
	t.Helper()
	node := fakechain.NewNode("1")
	backend := &recordingBackend{Client: chain.NewClientFromRPC(node.Dial(t))}
	net, err := network.DefaultTable().Lookup(network.Mainnet)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	w, err := New(backend, net, nil)
	if err != nil {
		t.Fatalf("facade: %v", err)
	}
	return w, node, backend
}

func TestABIsInRegistrationOrder(t *testing.T) {
	w, _, _ := newFacade(t)
	abis := w.ABIs()
	want := []string{ExchangeABIName, ERC20ABIName, EtherTokenABIName, ForwarderABIName}
	if len(abis) != len(want) {
		t.Fatalf("expected %d abis, got %d", len(want), len(abis))
	}
	for i, named := range abis {
		if named.Name != want[i] {
			t.Fatalf("abi %d: got %s want %s", i, named.Name, want[i])
		}
	}
	if _, ok := abis[0].ABI.Events["Fill"]; !ok {
		t.Fatalf("exchange abi missing Fill")
	}
	if _, ok := abis[2].ABI.Events["Deposit"]; !ok {
		t.Fatalf("ether token abi missing Deposit")
	}
	if w.NetworkID != network.Mainnet {
		t.Fatalf("unexpected network %d", w.NetworkID)
	}
}

func TestERC20Reads(t *testing.T) {
	w, node, _ := newFacade(t)
	parsed, _ := ERC20ABI()
	node.HandleContract(zrx, fakechain.ABIHandler(parsed, func(method string, args []interface{}) []interface{} {
		switch method {
		case "balanceOf":
			return []interface{}{big.NewInt(2500)}
		case "allowance":
			if args[1].(common.Address) == w.ERC20Token.ProxyAddress() {
				return []interface{}{UnlimitedAllowance}
			}
			return []interface{}{big.NewInt(0)}
		case "decimals":
			return []interface{}{uint8(18)}
		case "symbol":
			return []interface{}{"ZRX"}
		case "name":
			return []interface{}{"0x Protocol Token"}
		default:
			return []interface{}{big.NewInt(0)}
		}
	}))

	ctx := context.Background()
	balance, err := w.ERC20Token.BalanceOf(ctx, zrx, owner)
	if err != nil || balance.Int64() != 2500 {
		t.Fatalf("balance: %v %v", balance, err)
	}
	allowance, err := w.ERC20Token.ProxyAllowance(ctx, zrx, owner)
	if err != nil || !IsUnlimited(allowance) {
		t.Fatalf("proxy allowance: %v %v", allowance, err)
	}
	meta, err := w.ERC20Token.TokenMeta(ctx, zrx)
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	if meta.Decimals != 18 || meta.Symbol != "ZRX" || meta.Name != "0x Protocol Token" {
		t.Fatalf("unexpected meta: %+v", meta)
	}
}

func TestERC20SymbolBytes32Fallback(t *testing.T) {
	w, node, _ := newFacade(t)
	legacy, err := erc20Bytes32ABI.get()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}
	parsed, _ := ERC20ABI()
	node.HandleContract(mkr, func(from common.Address, input []byte) ([]byte, error) {
		method, err := parsed.MethodById(input[:4])
		if err != nil {
			return nil, err
		}
		switch method.Name {
		case "symbol", "name":
			var out [32]byte
			copy(out[:], "MKR")
			return legacy.Methods[method.Name].Outputs.Pack(out)
		case "decimals":
			return method.Outputs.Pack(uint8(18))
		}
		return nil, fmt.Errorf("unexpected %s", method.Name)
	})

	symbol, err := w.ERC20Token.Symbol(context.Background(), mkr)
	if err != nil {
		t.Fatalf("symbol: %v", err)
	}
	if symbol != "MKR" {
		t.Fatalf("expected MKR, got %q", symbol)
	}
}

func TestERC20NoCode(t *testing.T) {
	w, _, _ := newFacade(t)
	if _, err := w.ERC20Token.BalanceOf(context.Background(), common.HexToAddress("0x01"), owner); err == nil {
		t.Fatalf("expected error for address without code")
	}
}

func TestUnlimitedProxyAllowanceSend(t *testing.T) {
	w, _, backend := newFacade(t)
	if _, err := w.ERC20Token.SetUnlimitedProxyAllowance(context.Background(), zrx, owner); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected one tx, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.From != owner || tx.To == nil || *tx.To != zrx {
		t.Fatalf("unexpected tx: %+v", tx)
	}

	parsed, _ := ERC20ABI()
	args, err := parsed.Methods["approve"].Inputs.Unpack(tx.Data[4:])
	if err != nil {
		t.Fatalf("unpack: %v", err)
	}
	if args[0].(common.Address) != w.Addresses.ERC20Proxy {
		t.Fatalf("spender should be the asset proxy")
	}
	if !IsUnlimited(args[1].(*big.Int)) {
		t.Fatalf("expected unlimited allowance, got %s", args[1])
	}
}

func TestEtherTokenDepositWithdraw(t *testing.T) {
	w, _, backend := newFacade(t)
	ctx := context.Background()
	amount := big.NewInt(1e17)

	if _, err := w.EtherToken.Deposit(ctx, owner, amount); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := w.EtherToken.Withdraw(ctx, owner, amount); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := w.EtherToken.Deposit(ctx, owner, big.NewInt(0)); err == nil {
		t.Fatalf("expected error for zero deposit")
	}

	if len(backend.sent) != 2 {
		t.Fatalf("expected two txs, got %d", len(backend.sent))
	}
	deposit, withdraw := backend.sent[0], backend.sent[1]
	if deposit.Value == nil || deposit.Value.ToInt().Cmp(amount) != 0 {
		t.Fatalf("deposit should carry value: %+v", deposit)
	}
	if withdraw.Value != nil {
		t.Fatalf("withdraw should not carry value")
	}
	parsed, _ := EtherTokenABI()
	if string(deposit.Data) != string(parsed.Methods["deposit"].ID) {
		t.Fatalf("unexpected deposit calldata %x", deposit.Data)
	}
	if *withdraw.To != w.Addresses.EtherToken {
		t.Fatalf("withdraw sent to %s", withdraw.To.Hex())
	}
}

func TestExchangeAndForwarder(t *testing.T) {
	w, node, backend := newFacade(t)
	exchangeABI, _ := ExchangeABI()
	forwarderABI, _ := ForwarderABI()
	forwarderOwner := common.HexToAddress("0x7777777777777777777777777777777777777777")

	node.HandleContract(w.Addresses.Exchange, fakechain.ABIHandler(exchangeABI, func(method string, args []interface{}) []interface{} {
		switch method {
		case "filled":
			return []interface{}{big.NewInt(10)}
		case "cancelled":
			return []interface{}{true}
		default:
			return []interface{}{big.NewInt(5)}
		}
	}))
	node.HandleContract(w.Addresses.Forwarder, fakechain.ABIHandler(forwarderABI, func(string, []interface{}) []interface{} {
		return []interface{}{forwarderOwner}
	}))

	ctx := context.Background()
	orderHash := common.HexToHash("0xfeed")
	if filled, err := w.Exchange.Filled(ctx, orderHash); err != nil || filled.Int64() != 10 {
		t.Fatalf("filled: %v %v", filled, err)
	}
	if cancelled, err := w.Exchange.Cancelled(ctx, orderHash); err != nil || !cancelled {
		t.Fatalf("cancelled: %v %v", cancelled, err)
	}
	if epoch, err := w.Exchange.OrderEpoch(ctx, owner, owner); err != nil || epoch.Int64() != 5 {
		t.Fatalf("epoch: %v %v", epoch, err)
	}
	if got, err := w.Forwarder.Owner(ctx); err != nil || got != forwarderOwner {
		t.Fatalf("owner: %s %v", got.Hex(), err)
	}

	if _, err := w.Exchange.CancelOrdersUpTo(ctx, owner, big.NewInt(6)); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(backend.sent) != 1 || *backend.sent[0].To != w.Addresses.Exchange {
		t.Fatalf("unexpected sends: %+v", backend.sent)
	}
}
