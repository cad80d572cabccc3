package wallet

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"dappkit/internal/engine"
	"dappkit/internal/model"
	"dappkit/internal/testutil/fakechain"
)

var testAccount = common.HexToAddress("0x5409ed021d9299bf6814279a6a1411a7e866a631")

func TestParseVendor(t *testing.T) {
	cases := map[string]Vendor{
		"":          VendorAuto,
		"auto":      VendorAuto,
		"MetaMask":  VendorMetaMask,
		" generic ": VendorGeneric,
	}
	for input, want := range cases {
		got, err := ParseVendor(input)
		if err != nil {
			t.Fatalf("parse %q: %v", input, err)
		}
		if got != want {
			t.Fatalf("parse %q: got %s want %s", input, got, want)
		}
	}
	if _, err := ParseVendor("ledger"); err == nil {
		t.Fatalf("expected error for unknown vendor")
	}
}

func TestDiscoverWithoutWallet(t *testing.T) {
	p, err := Discover(context.Background(), DiscoverConfig{URL: "  "})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if p != nil {
		t.Fatalf("expected no provider, got %+v", p)
	}
}

func TestDiscoverOverHTTP(t *testing.T) {
	fake := fakechain.NewWallet("1", "MetaMask/v10.25.0", testAccount)
	p, err := Discover(context.Background(), DiscoverConfig{URL: fake.URL(t), Vendor: VendorAuto})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	defer p.Close()
	if !p.IsMetaMask() {
		t.Fatalf("expected metamask marker from %q", p.ClientVersion())
	}
}

func TestProbeVendorDetection(t *testing.T) {
	ctx := context.Background()

	mm := fakechain.NewWallet("1", "MetaMask/v10.25.0", testAccount)
	if p := Probe(ctx, mm.Dial(t), VendorAuto); !p.IsMetaMask() {
		t.Fatalf("expected metamask")
	}

	geth := fakechain.NewWallet("1", "Geth/v1.13.14-stable", testAccount)
	if p := Probe(ctx, geth.Dial(t), VendorAuto); p.IsMetaMask() {
		t.Fatalf("expected generic")
	}
	if p := Probe(ctx, geth.Dial(t), VendorMetaMask); !p.IsMetaMask() {
		t.Fatalf("forced vendor should win")
	}
	if p := Probe(ctx, mm.Dial(t), VendorGeneric); p.IsMetaMask() {
		t.Fatalf("forced generic should win")
	}
}

func TestNewSignerAdapterSelectsVariant(t *testing.T) {
	fake := fakechain.NewWallet("1", "", testAccount)
	client := fake.Dial(t)

	if kind := NewSignerAdapter(NewInjectedProvider(client, true, "")).Kind(); kind != KindMetaMask {
		t.Fatalf("expected metamask adapter, got %s", kind)
	}
	if kind := NewSignerAdapter(NewInjectedProvider(client, false, "")).Kind(); kind != KindGeneric {
		t.Fatalf("expected generic adapter, got %s", kind)
	}
}

func TestSignAndSendIsVariantIndependent(t *testing.T) {
	ctx := context.Background()
	to := common.HexToAddress("0xc778417e063141139fce010982780140aa0cd5ab")
	value := (*hexutil.Big)(hexutil.MustDecodeBig("0xde0b6b3a7640000"))
	tx := model.TxArgs{From: testAccount, To: &to, Value: value, Data: hexutil.Bytes{0xd0, 0xe3, 0x0d, 0xb0}}

	var hashes []common.Hash
	for _, isMetaMask := range []bool{true, false} {
		fake := fakechain.NewWallet("1", "", testAccount)
		adapter := NewSignerAdapter(NewInjectedProvider(fake.Dial(t), isMetaMask, ""))
		hash, err := adapter.SignAndSend(ctx, tx)
		if err != nil {
			t.Fatalf("sign and send (%s): %v", adapter.Kind(), err)
		}
		hashes = append(hashes, hash)

		sent := fake.Sent()
		if len(sent) != 1 {
			t.Fatalf("expected one sent tx, got %d", len(sent))
		}
		if sent[0].From != testAccount || sent[0].To == nil || *sent[0].To != to {
			t.Fatalf("unexpected tx: %+v", sent[0])
		}
		if sent[0].Value.ToInt().Cmp(value.ToInt()) != 0 {
			t.Fatalf("value mismatch: %s", sent[0].Value)
		}
	}
	if hashes[0] != hashes[1] {
		t.Fatalf("variants disagree: %s vs %s", hashes[0].Hex(), hashes[1].Hex())
	}
}

func TestSignMessageQuirks(t *testing.T) {
	ctx := context.Background()
	message := []byte("order hash")

	cases := []struct {
		metamask bool
		method   string
	}{
		{metamask: true, method: "personal_sign"},
		{metamask: false, method: "eth_sign"},
	}
	for _, tc := range cases {
		fake := fakechain.NewWallet("1", "", testAccount)
		adapter := NewSignerAdapter(NewInjectedProvider(fake.Dial(t), tc.metamask, ""))
		sig, err := adapter.SignMessage(ctx, testAccount, message)
		if err != nil {
			t.Fatalf("sign (%s): %v", tc.method, err)
		}
		if len(sig) != 65 {
			t.Fatalf("unexpected signature length %d", len(sig))
		}
		calls := fake.Calls()
		if len(calls) != 1 || calls[0].Method != tc.method {
			t.Fatalf("expected %s, got %+v", tc.method, calls)
		}
		if calls[0].Account != testAccount {
			t.Fatalf("account mismatch: %s", calls[0].Account.Hex())
		}
		if calls[0].Payload != hexutil.Encode(message) {
			t.Fatalf("payload mismatch: %s", calls[0].Payload)
		}
	}
}

func TestSignTypedDataQuirks(t *testing.T) {
	ctx := context.Background()
	typed := json.RawMessage(`{"primaryType":"Order","domain":{"name":"0x Protocol"}}`)

	fake := fakechain.NewWallet("1", "", testAccount)
	mm := NewMetamaskAdapter(NewInjectedProvider(fake.Dial(t), true, ""))
	if _, err := mm.SignTypedData(ctx, testAccount, typed); err != nil {
		t.Fatalf("metamask typed: %v", err)
	}
	calls := fake.Calls()
	if len(calls) != 1 || calls[0].Method != "eth_signTypedData_v3" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if calls[0].Payload != string(typed) {
		t.Fatalf("expected typed data as string, got %s", calls[0].Payload)
	}

	fake = fakechain.NewWallet("1", "", testAccount)
	generic := NewGenericAdapter(NewInjectedProvider(fake.Dial(t), false, ""))
	if _, err := generic.SignTypedData(ctx, testAccount, typed); err != nil {
		t.Fatalf("generic typed: %v", err)
	}
	calls = fake.Calls()
	if len(calls) != 1 || calls[0].Method != "eth_signTypedData" {
		t.Fatalf("unexpected calls: %+v", calls)
	}
	if !strings.Contains(calls[0].Payload, `"primaryType":"Order"`) {
		t.Fatalf("typed data not forwarded as object: %s", calls[0].Payload)
	}
}

func TestSignerHandlesWalletMethods(t *testing.T) {
	ctx := context.Background()
	fake := fakechain.NewWallet("1", "", testAccount)
	adapter := NewSignerAdapter(NewInjectedProvider(fake.Dial(t), false, ""))

	passed := 0
	next := func(ctx context.Context, req *engine.Request) (json.RawMessage, error) {
		passed++
		return json.RawMessage(`"0x10"`), nil
	}

	req, err := engine.NewRequest("eth_accounts")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	raw, err := adapter.HandleRequest(ctx, req, next)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	var accounts []common.Address
	if err := json.Unmarshal(raw, &accounts); err != nil {
		t.Fatalf("decode accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != testAccount {
		t.Fatalf("unexpected accounts: %v", accounts)
	}

	req, _ = engine.NewRequest("eth_coinbase")
	raw, err = adapter.HandleRequest(ctx, req, next)
	if err != nil {
		t.Fatalf("coinbase: %v", err)
	}
	var coinbase common.Address
	if err := json.Unmarshal(raw, &coinbase); err != nil || coinbase != testAccount {
		t.Fatalf("unexpected coinbase %s (%v)", raw, err)
	}

	req, _ = engine.NewRequest("eth_sendTransaction", model.TxArgs{From: testAccount})
	if _, err := adapter.HandleRequest(ctx, req, next); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(fake.Sent()) != 1 {
		t.Fatalf("expected wallet to receive the transaction")
	}

	if passed != 0 {
		t.Fatalf("wallet methods must not reach next, passed=%d", passed)
	}

	req, _ = engine.NewRequest("eth_blockNumber")
	raw, err = adapter.HandleRequest(ctx, req, next)
	if err != nil {
		t.Fatalf("block number: %v", err)
	}
	if passed != 1 || string(raw) != `"0x10"` {
		t.Fatalf("expected pass-through, passed=%d raw=%s", passed, raw)
	}
}

func TestCoinbaseWithoutAccounts(t *testing.T) {
	fake := fakechain.NewWallet("1", "")
	adapter := NewSignerAdapter(NewInjectedProvider(fake.Dial(t), true, ""))
	req, _ := engine.NewRequest("eth_coinbase")
	raw, err := adapter.HandleRequest(context.Background(), req, nil)
	if err != nil {
		t.Fatalf("coinbase: %v", err)
	}
	if string(raw) != "null" {
		t.Fatalf("expected null coinbase, got %s", raw)
	}
}
