package faucet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"dappkit/internal/chain"
	"dappkit/internal/testutil/fakechain"
)

var owner = common.HexToAddress("0x5409ed021d9299bf6814279a6a1411a7e866a631")

type faucetServer struct {
	mu       sync.Mutex
	requests []string
	status   int
}

func (f *faucetServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.URL.RequestURI())
	status := f.status
	f.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if status != http.StatusOK {
		_, _ = w.Write([]byte("rate limited"))
	}
}

func (f *faucetServer) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func newFaucet(t *testing.T, status int) (*faucetServer, *httptest.Server) {
	t.Helper()
	fs := &faucetServer{status: status}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func TestFundFirstWalletAccount(t *testing.T) {
	second := common.HexToAddress("0x6ecbe1db9ef729cbe972c83fb886247691fb6beb")
	wallet := fakechain.NewWallet("42", "", owner, second)
	client := chain.NewClientFromRPC(wallet.Dial(t))

	fs, srv := newFaucet(t, 0)
	core, logs := observer.New(zap.InfoLevel)
	faucet := New(srv.URL+"/", srv.Client(), zap.New(core))

	for _, tc := range []struct {
		network uint64
		asset   Asset
	}{
		{network: 42, asset: AssetEther},
		{network: 3, asset: AssetZRX},
	} {
		recipient, err := faucet.Fund(context.Background(), client, tc.network, tc.asset)
		if err != nil {
			t.Fatalf("fund %s on %d: %v", tc.asset, tc.network, err)
		}
		if recipient != owner {
			t.Fatalf("expected first account %s, got %s", owner.Hex(), recipient.Hex())
		}
	}

	got := fs.Requests()
	want := []string{
		"/ether/" + owner.Hex() + "?networkId=42",
		"/zrx/" + owner.Hex() + "?networkId=3",
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d faucet requests, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("request %d: got %s want %s", i, got[i], want[i])
		}
	}
	if logs.FilterMessage("faucet request accepted").Len() != 2 {
		t.Fatalf("expected two accepted requests to be logged")
	}
}

type countingAccounts struct {
	calls int
}

func (c *countingAccounts) Accounts(context.Context) ([]common.Address, error) {
	c.calls++
	return []common.Address{owner}, nil
}

func TestFundSkipsNetworksWithoutFaucet(t *testing.T) {
	accounts := &countingAccounts{}
	fs, srv := newFaucet(t, 0)
	faucet := New(srv.URL, srv.Client(), nil)

	for _, id := range []uint64{1, 50, 999} {
		if _, err := faucet.Fund(context.Background(), accounts, id, AssetEther); !errors.Is(err, ErrNoFaucet) {
			t.Fatalf("network %d: expected ErrNoFaucet, got %v", id, err)
		}
	}
	if len(fs.Requests()) != 0 {
		t.Fatalf("faucet must not be contacted: %v", fs.Requests())
	}
	if accounts.calls != 0 {
		t.Fatalf("wallet must not be asked for accounts, got %d calls", accounts.calls)
	}
}

func TestFundWithoutAccounts(t *testing.T) {
	wallet := fakechain.NewWallet("42", "")
	client := chain.NewClientFromRPC(wallet.Dial(t))
	fs, srv := newFaucet(t, 0)

	if _, err := New(srv.URL, srv.Client(), nil).Fund(context.Background(), client, 42, AssetEther); !errors.Is(err, ErrNoAccount) {
		t.Fatalf("expected ErrNoAccount, got %v", err)
	}
	if len(fs.Requests()) != 0 {
		t.Fatalf("faucet must not be contacted: %v", fs.Requests())
	}
}

func TestRequestRejected(t *testing.T) {
	_, srv := newFaucet(t, http.StatusTooManyRequests)
	err := New(srv.URL, srv.Client(), nil).Request(context.Background(), 42, AssetEther, owner)
	if err == nil {
		t.Fatalf("expected error for rejected request")
	}
	if !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("error should carry status and body: %v", err)
	}
}

func TestParseAsset(t *testing.T) {
	cases := map[string]Asset{"": AssetEther, "ETH": AssetEther, " ether ": AssetEther, "ZRX": AssetZRX}
	for input, want := range cases {
		got, err := ParseAsset(input)
		if err != nil || got != want {
			t.Fatalf("parse %q: got %s, %v", input, got, err)
		}
	}
	if _, err := ParseAsset("dai"); err == nil {
		t.Fatalf("expected error for unsupported asset")
	}
}
