// Package fakechain provides in-process JSON-RPC fakes of a wallet and a node for tests.
package fakechain

import (
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"dappkit/internal/model"
)

// WalletCall records one signing call received by the fake wallet.
type WalletCall struct {
	Method  string
	Account common.Address
	Payload string
}

// Wallet is a fake injected wallet.
type Wallet struct {
	mu        sync.Mutex
	accounts  []common.Address
	networkID string
	version   string
	sent      []model.TxArgs
	calls     []WalletCall
	onSend    func(model.TxArgs, common.Hash)
	netErr    error
}

// NewWallet builds a fake wallet reporting networkID through net_version.
func NewWallet(networkID string, version string, accounts ...common.Address) *Wallet {
	return &Wallet{accounts: accounts, networkID: networkID, version: version}
}

// FailNetwork makes net_version return err.
func (w *Wallet) FailNetwork(err error) {
	w.mu.Lock()
	w.netErr = err
	w.mu.Unlock()
}

// OnSend registers a hook called for each eth_sendTransaction.
func (w *Wallet) OnSend(fn func(model.TxArgs, common.Hash)) {
	w.mu.Lock()
	w.onSend = fn
	w.mu.Unlock()
}

// Sent returns the transactions received so far.
func (w *Wallet) Sent() []model.TxArgs {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]model.TxArgs(nil), w.sent...)
}

// Calls returns the signing calls received so far.
func (w *Wallet) Calls() []WalletCall {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]WalletCall(nil), w.calls...)
}

// Server returns an rpc.Server exposing the wallet.
func (w *Wallet) Server(t testing.TB) *rpc.Server {
	t.Helper()
	server := rpc.NewServer()
	services := map[string]interface{}{
		"eth":      &walletEth{w: w},
		"personal": &walletPersonal{w: w},
		"web3":     &walletWeb3{w: w},
		"net":      &walletNet{w: w},
	}
	for name, svc := range services {
		if err := server.RegisterName(name, svc); err != nil {
			t.Fatalf("register wallet %s: %v", name, err)
		}
	}
	t.Cleanup(server.Stop)
	return server
}

// Dial returns an in-process client connected to the wallet.
func (w *Wallet) Dial(t testing.TB) *rpc.Client {
	t.Helper()
	client := rpc.DialInProc(w.Server(t))
	t.Cleanup(client.Close)
	return client
}

// URL serves the wallet over HTTP and returns its address.
func (w *Wallet) URL(t testing.TB) string {
	t.Helper()
	httpServer := httptest.NewServer(w.Server(t))
	t.Cleanup(httpServer.Close)
	return httpServer.URL
}

func (w *Wallet) record(call WalletCall) {
	w.mu.Lock()
	w.calls = append(w.calls, call)
	w.mu.Unlock()
}

type walletEth struct{ w *Wallet }

func (s *walletEth) Accounts() []common.Address {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	return append([]common.Address{}, s.w.accounts...)
}

func (s *walletEth) SendTransaction(args model.TxArgs) (common.Hash, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return common.Hash{}, err
	}

	s.w.mu.Lock()
	s.w.sent = append(s.w.sent, args)
	hash := crypto.Keccak256Hash(payload, []byte{byte(len(s.w.sent))})
	hook := s.w.onSend
	s.w.mu.Unlock()

	if hook != nil {
		hook(args, hash)
	}
	return hash, nil
}

func (s *walletEth) Sign(account common.Address, data hexutil.Bytes) hexutil.Bytes {
	s.w.record(WalletCall{Method: "eth_sign", Account: account, Payload: data.String()})
	return signature(data)
}

func (s *walletEth) SignTypedData(account common.Address, typed json.RawMessage) hexutil.Bytes {
	s.w.record(WalletCall{Method: "eth_signTypedData", Account: account, Payload: string(typed)})
	return signature(typed)
}

func (s *walletEth) SignTypedData_v3(account common.Address, typed string) hexutil.Bytes {
	s.w.record(WalletCall{Method: "eth_signTypedData_v3", Account: account, Payload: typed})
	return signature([]byte(typed))
}

type walletPersonal struct{ w *Wallet }

func (s *walletPersonal) Sign(data hexutil.Bytes, account common.Address) hexutil.Bytes {
	s.w.record(WalletCall{Method: "personal_sign", Account: account, Payload: data.String()})
	return signature(data)
}

type walletWeb3 struct{ w *Wallet }

func (s *walletWeb3) ClientVersion() string {
	return s.w.version
}

type walletNet struct{ w *Wallet }

func (s *walletNet) Version() (string, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.netErr != nil {
		return "", s.w.netErr
	}
	return s.w.networkID, nil
}

func signature(data []byte) hexutil.Bytes {
	sig := make([]byte, 65)
	copy(sig, crypto.Keccak256(data))
	sig[64] = 27
	return sig
}
