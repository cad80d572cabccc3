package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

type codedError struct{}

func (codedError) Error() string  { return "execution reverted" }
func (codedError) ErrorCode() int { return 3 }

type fakeEthService struct {
	block atomic.Uint64
}

func (s *fakeEthService) BlockNumber() hexutil.Uint64 {
	return hexutil.Uint64(s.block.Load())
}

func (s *fakeEthService) ChainId() *hexutil.Big {
	return (*hexutil.Big)(hexutil.MustDecodeBig("0x2a"))
}

func (s *fakeEthService) Reverting() error {
	return codedError{}
}

func newRemote(t *testing.T, svc *fakeEthService) string {
	t.Helper()
	server := rpc.NewServer()
	if err := server.RegisterName("eth", svc); err != nil {
		t.Fatalf("register: %v", err)
	}
	httpServer := httptest.NewServer(server)
	t.Cleanup(func() {
		httpServer.Close()
		server.Stop()
	})
	return httpServer.URL
}

func staticProvider(method string, result string) Subprovider {
	return SubproviderFunc(func(ctx context.Context, req *Request, next NextFunc) (json.RawMessage, error) {
		if req.Method == method {
			return json.RawMessage(result), nil
		}
		return next(ctx, req)
	})
}

func TestEngineDispatchOrder(t *testing.T) {
	eng := New(Config{PollingInterval: time.Hour})

	var seen []string
	var mu sync.Mutex
	record := func(name string) Subprovider {
		return SubproviderFunc(func(ctx context.Context, req *Request, next NextFunc) (json.RawMessage, error) {
			mu.Lock()
			seen = append(seen, name+":"+req.Method)
			mu.Unlock()
			return next(ctx, req)
		})
	}

	if err := eng.AddProvider(record("first")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := eng.AddProvider(staticProvider("eth_accounts", `["0x1111111111111111111111111111111111111111"]`)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := eng.AddProvider(staticProvider("eth_blockNumber", `"0x10"`)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(eng.Stop)

	var accounts []string
	if err := eng.Call(context.Background(), &accounts, "eth_accounts"); err != nil {
		t.Fatalf("call: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("accounts mismatch: %v", accounts)
	}

	err := eng.Call(context.Background(), nil, "eth_unknown")
	var rpcErr *Error
	if !errors.As(err, &rpcErr) || rpcErr.Code != codeMethodNotFound {
		t.Fatalf("expected method not found, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	found := false
	for _, entry := range seen {
		if entry == "first:eth_accounts" {
			found = true
		}
	}
	if !found {
		t.Fatalf("first subprovider did not see request: %v", seen)
	}
}

func TestEngineLifecycle(t *testing.T) {
	eng := New(Config{PollingInterval: time.Hour})

	if err := eng.Start(); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected no provider error, got %v", err)
	}
	if err := eng.Call(context.Background(), nil, "eth_blockNumber"); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected not started, got %v", err)
	}

	if err := eng.AddProvider(staticProvider("eth_blockNumber", `"0x1"`)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := eng.Start(); !errors.Is(err, ErrStarted) {
		t.Fatalf("expected already started, got %v", err)
	}
	if err := eng.AddProvider(staticProvider("eth_chainId", `"0x1"`)); !errors.Is(err, ErrStarted) {
		t.Fatalf("expected add after start to fail, got %v", err)
	}
	if eng.Providers() != 1 {
		t.Fatalf("providers mismatch: %d", eng.Providers())
	}

	eng.Stop()
	eng.Stop()
	if err := eng.Call(context.Background(), nil, "eth_blockNumber"); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected stopped, got %v", err)
	}
}

func TestEngineDefaultPollingInterval(t *testing.T) {
	if got := New(Config{}).PollingInterval(); got != 15*time.Second {
		t.Fatalf("default interval mismatch: %s", got)
	}
}

func TestEngineClientThroughRPCSubprovider(t *testing.T) {
	svc := &fakeEthService{}
	svc.block.Store(42)
	url := newRemote(t, svc)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	remote, err := NewRPCSubprovider(ctx, url)
	if err != nil {
		t.Fatalf("rpc subprovider: %v", err)
	}
	if remote.URL() != url {
		t.Fatalf("url mismatch: %s", remote.URL())
	}

	eng := New(Config{PollingInterval: time.Hour})
	if err := eng.AddProvider(remote); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(eng.Stop)

	client, err := eng.Client()
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	eth := ethclient.NewClient(client)

	number, err := eth.BlockNumber(ctx)
	if err != nil {
		t.Fatalf("block number: %v", err)
	}
	if number != 42 {
		t.Fatalf("block number mismatch: %d", number)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}
	if chainID.Uint64() != 42 {
		t.Fatalf("chain id mismatch: %s", chainID)
	}

	err = client.CallContext(ctx, nil, "eth_reverting")
	var coded rpc.Error
	if !errors.As(err, &coded) || coded.ErrorCode() != 3 {
		t.Fatalf("expected error code 3, got %v", err)
	}

	var first, second hexutil.Uint64
	batch := []rpc.BatchElem{
		{Method: "eth_blockNumber", Result: &first},
		{Method: "eth_blockNumber", Result: &second},
	}
	if err := client.BatchCallContext(ctx, batch); err != nil {
		t.Fatalf("batch: %v", err)
	}
	for i, elem := range batch {
		if elem.Error != nil {
			t.Fatalf("batch elem %d: %v", i, elem.Error)
		}
	}
	if first != 42 || second != 42 {
		t.Fatalf("batch results mismatch: %d %d", first, second)
	}
}

func TestEngineClientBeforeStart(t *testing.T) {
	eng := New(Config{PollingInterval: time.Hour})
	if err := eng.AddProvider(staticProvider("eth_blockNumber", `"0x1"`)); err != nil {
		t.Fatalf("add: %v", err)
	}

	client, err := eng.Client()
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	var number hexutil.Uint64
	err = client.CallContext(context.Background(), &number, "eth_blockNumber")
	if err == nil {
		t.Fatalf("expected request before start to fail")
	}
	var coded rpc.Error
	if !errors.As(err, &coded) || coded.ErrorCode() != codeServerError {
		t.Fatalf("expected server error code, got %v", err)
	}
}

func TestEnginePollingNotifiesNewBlocks(t *testing.T) {
	var counter atomic.Uint64
	counter.Store(99)
	eng := New(Config{PollingInterval: 5 * time.Millisecond})
	err := eng.AddProvider(SubproviderFunc(func(ctx context.Context, req *Request, next NextFunc) (json.RawMessage, error) {
		if req.Method != "eth_blockNumber" {
			return next(ctx, req)
		}
		return json.Marshal(hexutil.Uint64(counter.Add(1)))
	}))
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	blocks := make(chan uint64, 16)
	eng.OnBlock(func(n uint64) {
		select {
		case blocks <- n:
		default:
		}
	})

	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	var got []uint64
	timeout := time.After(5 * time.Second)
	for len(got) < 3 {
		select {
		case n := <-blocks:
			got = append(got, n)
		case <-timeout:
			t.Fatalf("timeout waiting for blocks, got %v", got)
		}
	}
	if got[0] != 100 || got[1] <= got[0] || got[2] <= got[1] {
		t.Fatalf("unexpected block sequence: %v", got)
	}

	latest, ok := eng.LatestBlock()
	if !ok || latest < got[2] {
		t.Fatalf("latest block mismatch: %d %v", latest, ok)
	}
}

func TestEngineClientConcurrentWithStop(t *testing.T) {
	eng := New(Config{PollingInterval: time.Hour})
	if err := eng.AddProvider(staticProvider("eth_blockNumber", `"0x1"`)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := eng.Client(); err != nil {
				t.Errorf("client: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		eng.Stop()
	}()
	wg.Wait()

	if err := eng.Call(context.Background(), nil, "eth_blockNumber"); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected stopped engine, got %v", err)
	}
}
