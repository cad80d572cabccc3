package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

// DefaultPollingInterval is how often the block tracker polls for a new head.
const DefaultPollingInterval = 15 * time.Second

// engineURL is the synthetic endpoint the in-process rpc.Client posts to.
const engineURL = "http://provider-engine.local"

var (
	ErrStarted    = errors.New("provider engine already started")
	ErrNotStarted = errors.New("provider engine not started")
	ErrStopped    = errors.New("provider engine stopped")
	ErrNoProvider = errors.New("provider engine has no subproviders")
)

// Config configures an Engine.
type Config struct {
	PollingInterval time.Duration
	Logger          *zap.Logger
}

// Engine routes JSON-RPC requests through an ordered list of subproviders.
// Subproviders are added before Start; the list is immutable afterwards.
type Engine struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.RWMutex
	providers []Subprovider
	started   bool
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}
	latest    uint64
	hasBlock  bool
	listeners []func(uint64)

	clientOnce sync.Once
	client     *rpc.Client
	clientErr  error

	nextID atomic.Uint64
}

// New builds an engine. A non-positive polling interval falls back to DefaultPollingInterval.
func New(cfg Config) *Engine {
	if cfg.PollingInterval <= 0 {
		cfg.PollingInterval = DefaultPollingInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:    cfg,
		logger: logger.With(zap.String("component", "provider-engine")),
	}
}

// PollingInterval returns the block tracker interval.
func (e *Engine) PollingInterval() time.Duration {
	return e.cfg.PollingInterval
}

// AddProvider appends p to the chain. It fails once the engine has started.
func (e *Engine) AddProvider(p Subprovider) error {
	if p == nil {
		return fmt.Errorf("nil subprovider")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrStarted
	}
	e.providers = append(e.providers, p)
	return nil
}

// Providers returns the number of subproviders in the chain.
func (e *Engine) Providers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.providers)
}

// Started reports whether Start has been called.
func (e *Engine) Started() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.started
}

// Start freezes the chain and launches the block tracker.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrStarted
	}
	if len(e.providers) == 0 {
		e.mu.Unlock()
		return ErrNoProvider
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.started = true
	e.cancel = cancel
	e.done = make(chan struct{})
	e.mu.Unlock()

	e.logger.Info("provider engine start",
		zap.Int("subproviders", e.Providers()),
		zap.Duration("polling_interval", e.cfg.PollingInterval),
	)

	go e.pollBlocks(ctx)
	return nil
}

// Stop halts the block tracker and closes owned connections. It is safe to call more than once.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.stopped = true
		e.mu.Unlock()
		return
	}
	e.stopped = true
	cancel := e.cancel
	done := e.done
	providers := e.providers
	client := e.client
	e.mu.Unlock()

	cancel()
	<-done

	if client != nil {
		client.Close()
	}
	for _, p := range providers {
		if closer, ok := p.(interface{ Close() }); ok {
			closer.Close()
		}
	}
	e.logger.Info("provider engine stopped")
}

// Send dispatches req through the chain.
func (e *Engine) Send(ctx context.Context, req *Request) (json.RawMessage, error) {
	e.mu.RLock()
	started, stopped, providers := e.started, e.stopped, e.providers
	e.mu.RUnlock()

	if !started {
		return nil, ErrNotStarted
	}
	if stopped {
		return nil, ErrStopped
	}
	if req.JSONRPC == "" {
		req.JSONRPC = "2.0"
	}
	if len(req.ID) == 0 {
		req.ID = json.RawMessage(strconv.FormatUint(e.nextID.Add(1), 10))
	}
	return dispatch(ctx, providers, 0, req)
}

func dispatch(ctx context.Context, providers []Subprovider, index int, req *Request) (json.RawMessage, error) {
	if index >= len(providers) {
		return nil, MethodNotFound(req.Method)
	}
	next := func(ctx context.Context, req *Request) (json.RawMessage, error) {
		return dispatch(ctx, providers, index+1, req)
	}
	return providers[index].HandleRequest(ctx, req, next)
}

// Call sends method with params and decodes the result into result (which may be nil).
func (e *Engine) Call(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	req, err := NewRequest(method, params...)
	if err != nil {
		return err
	}
	raw, err := e.Send(ctx, req)
	if err != nil {
		return err
	}
	if result == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, result)
}

// Client returns a go-ethereum rpc.Client whose requests travel through this engine.
func (e *Engine) Client() (*rpc.Client, error) {
	e.clientOnce.Do(func() {
		client, err := rpc.DialHTTPWithClient(engineURL, &http.Client{Transport: e})
		e.mu.Lock()
		e.client, e.clientErr = client, err
		e.mu.Unlock()
	})
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.client, e.clientErr
}

// LatestBlock returns the most recent block number seen by the tracker.
func (e *Engine) LatestBlock() (uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.latest, e.hasBlock
}

// OnBlock registers fn to be called with each new block number.
func (e *Engine) OnBlock(fn func(uint64)) {
	if fn == nil {
		return
	}
	e.mu.Lock()
	e.listeners = append(e.listeners, fn)
	e.mu.Unlock()
}

func (e *Engine) pollBlocks(ctx context.Context) {
	defer close(e.done)

	e.pollOnce(ctx)

	ticker := time.NewTicker(e.cfg.PollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollOnce(ctx)
		}
	}
}

func (e *Engine) pollOnce(ctx context.Context) {
	var number hexutil.Uint64
	if err := e.Call(ctx, &number, "eth_blockNumber"); err != nil {
		if ctx.Err() == nil {
			e.logger.Warn("block poll failed", zap.Error(err))
		}
		return
	}

	e.mu.Lock()
	changed := !e.hasBlock || uint64(number) != e.latest
	e.latest = uint64(number)
	e.hasBlock = true
	listeners := append([]func(uint64){}, e.listeners...)
	e.mu.Unlock()

	if !changed {
		return
	}
	e.logger.Debug("new block", zap.Uint64("block_number", uint64(number)))
	for _, fn := range listeners {
		fn(uint64(number))
	}
}
