package actions

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"dappkit/internal/bootstrap"
	"dappkit/internal/chain"
	"dappkit/internal/contracts"
	"dappkit/internal/model"
	"dappkit/internal/network"
	"dappkit/internal/testutil/fakechain"
	"dappkit/internal/wallet"
)

var account = common.HexToAddress("0x5409ed021d9299bf6814279a6a1411a7e866a631")

type harness struct {
	state bootstrap.State
	node  *fakechain.Node
	fake  *fakechain.Wallet
}

func newHarness(t *testing.T, id uint64) *harness {
	t.Helper()
	node := fakechain.NewNode(strconv.FormatUint(id, 10))
	fake := fakechain.NewWallet(strconv.FormatUint(id, 10), "MetaMask/v10", account)

	net, err := network.DefaultTable().Lookup(id)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	net.RPCURL = node.URL(t)

	b := &bootstrap.Bootstrapper{
		Discover: func(ctx context.Context) (*wallet.InjectedProvider, error) {
			return wallet.Probe(ctx, fake.Dial(t), wallet.VendorAuto), nil
		},
		Networks:        network.DefaultTable().With(net),
		PollingInterval: time.Hour,
	}
	state, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	t.Cleanup(state.Close)
	return &harness{state: state, node: node, fake: fake}
}

func (h *harness) actions() *Actions {
	return New(h.state.Client, h.state.Contracts, chain.AwaitConfig{Interval: 5 * time.Millisecond, MaxInterval: 20 * time.Millisecond}, nil)
}

func TestWrapETHAwaitsAndDecodes(t *testing.T) {
	h := newHarness(t, network.Kovan)
	weth := h.state.Contracts.Addresses.EtherToken
	parsed, err := contracts.EtherTokenABI()
	if err != nil {
		t.Fatalf("abi: %v", err)
	}

	h.fake.OnSend(func(tx model.TxArgs, hash common.Hash) {
		data, _ := parsed.Events["Deposit"].Inputs.NonIndexed().Pack(tx.Value.ToInt())
		h.node.AddReceipt(fakechain.Receipt(hash, 77, types.Log{
			Address: weth,
			Topics:  []common.Hash{parsed.Events["Deposit"].ID, common.BytesToHash(tx.From.Bytes())},
			Data:    data,
		}))
	})

	amount := big.NewInt(5e17)
	result, err := h.actions().WrapETH(context.Background(), account, amount, true)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if !result.Mined() || result.Receipt.BlockNumber.Uint64() != 77 {
		t.Fatalf("expected mined receipt, got %+v", result.Receipt)
	}
	if len(result.Events) != 1 || result.Events[0].EventName != "Deposit" {
		t.Fatalf("expected decoded Deposit, got %+v", result.Events)
	}
	if wad, _ := result.Events[0].Arg("wad"); wad != amount.String() {
		t.Fatalf("unexpected wad %s", wad)
	}
	if result.Events[0].NetworkID != network.Kovan {
		t.Fatalf("unexpected network %d", result.Events[0].NetworkID)
	}

	sent := h.fake.Sent()
	if len(sent) != 1 || *sent[0].To != weth || sent[0].Value.ToInt().Cmp(amount) != 0 {
		t.Fatalf("unexpected sent tx: %+v", sent)
	}
	if h.node.Served("eth_sendTransaction") != 0 {
		t.Fatalf("transactions must be signed by the wallet")
	}
}

func TestActionsWithoutWaiting(t *testing.T) {
	h := newHarness(t, network.Ropsten)
	a := h.actions()
	ctx := context.Background()
	zrx := h.state.Contracts.Addresses.ZRXToken

	if _, err := a.UnwrapETH(ctx, account, big.NewInt(1), false); err != nil {
		t.Fatalf("unwrap: %v", err)
	}
	result, err := a.ApproveProxy(ctx, zrx, account, false)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if result.Mined() || result.TxHash == (common.Hash{}) {
		t.Fatalf("unexpected result: %+v", result)
	}
	if _, err := a.CancelUpTo(ctx, account, big.NewInt(3), false); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	sent := h.fake.Sent()
	if len(sent) != 3 {
		t.Fatalf("expected 3 txs, got %d", len(sent))
	}
	if *sent[1].To != zrx || *sent[2].To != h.state.Contracts.Addresses.Exchange {
		t.Fatalf("unexpected targets: %s %s", sent[1].To.Hex(), sent[2].To.Hex())
	}
}

func TestRevertedTransaction(t *testing.T) {
	h := newHarness(t, network.Mainnet)
	h.fake.OnSend(func(tx model.TxArgs, hash common.Hash) {
		receipt := fakechain.Receipt(hash, 5)
		receipt.Status = types.ReceiptStatusFailed
		h.node.AddReceipt(receipt)
	})

	_, err := h.actions().CancelUpTo(context.Background(), account, big.NewInt(1), true)
	if !errors.Is(err, ErrTransactionFailed) {
		t.Fatalf("expected ErrTransactionFailed, got %v", err)
	}
}

func TestInvalidAmount(t *testing.T) {
	h := newHarness(t, network.Kovan)
	if _, err := h.actions().WrapETH(context.Background(), account, big.NewInt(0), false); err == nil {
		t.Fatalf("expected error for zero amount")
	}
	if len(h.fake.Sent()) != 0 {
		t.Fatalf("nothing should be sent")
	}
}
