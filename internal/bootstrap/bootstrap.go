package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dappkit/internal/chain"
	"dappkit/internal/contracts"
	"dappkit/internal/decoder"
	"dappkit/internal/engine"
	"dappkit/internal/network"
	"dappkit/internal/wallet"
)

// ErrNetworkResolution is returned when the wallet cannot report its network identifier.
var ErrNetworkResolution = errors.New("network resolution failed")

// DiscoverFunc locates the injected wallet. A nil provider with a nil error means no wallet.
type DiscoverFunc func(ctx context.Context) (*wallet.InjectedProvider, error)

// NetworkAdapterFunc builds the subprovider that serves requests for an RPC endpoint.
type NetworkAdapterFunc func(ctx context.Context, url string) (engine.Subprovider, error)

// Bootstrapper wires an injected wallet, a provider engine and the contract facade.
type Bootstrapper struct {
	Discover          DiscoverFunc
	Networks          network.Table
	PollingInterval   time.Duration
	NewNetworkAdapter NetworkAdapterFunc
	Logger            *zap.Logger
}

// State is the published result of a bootstrap. WalletFound is false when no wallet is installed,
// in which case every other field except SessionID is zero.
type State struct {
	SessionID   string
	WalletFound bool
	NetworkID   uint64
	Network     network.Network
	Provider    *wallet.InjectedProvider
	Signer      wallet.SignerAdapter
	Engine      *engine.Engine
	Client      *chain.Client
	Contracts   *contracts.Wrappers
}

// Close stops the engine and closes the wallet connection.
func (s State) Close() {
	if s.Engine != nil {
		s.Engine.Stop()
	}
	if s.Provider != nil {
		s.Provider.Close()
	}
}

// Run performs the bootstrap sequence. No wallet is not an error. On failure the discovered
// wallet connection is closed and the returned state holds no live resources.
func (b *Bootstrapper) Run(ctx context.Context) (state State, err error) {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	state = State{SessionID: uuid.NewString()}
	logger = logger.With(zap.String("session", state.SessionID))

	if b.Discover == nil {
		return state, fmt.Errorf("bootstrap: discover func is nil")
	}
	provider, err := b.Discover(ctx)
	if err != nil {
		return state, fmt.Errorf("discover wallet: %w", err)
	}
	if provider == nil {
		logger.Info("no injected wallet found")
		return state, nil
	}
	defer func() {
		if err != nil {
			provider.Close()
		}
	}()
	logger.Debug("wallet discovered", zap.Bool("metamask", provider.IsMetaMask()), zap.String("client", provider.ClientVersion()))

	signer := wallet.NewSignerAdapter(provider)
	logger.Debug("signer adapter selected", zap.String("kind", string(signer.Kind())))

	preliminary := chain.NewClientFromRPC(provider.RPC())
	networkID, err := preliminary.NetworkID(ctx)
	if err != nil {
		return state, fmt.Errorf("%w: %w", ErrNetworkResolution, err)
	}
	logger.Debug("network resolved", zap.Uint64("network_id", networkID))

	net, err := b.Networks.Lookup(networkID)
	if err != nil {
		return state, fmt.Errorf("bootstrap: %w", err)
	}

	eng, err := b.startEngine(ctx, signer, net, logger)
	if err != nil {
		return state, err
	}

	rpcClient, err := eng.Client()
	if err != nil {
		eng.Stop()
		return state, fmt.Errorf("engine client: %w", err)
	}

	facade, err := contracts.New(chain.NewClientFromRPC(rpcClient), net, logger)
	if err != nil {
		eng.Stop()
		return state, fmt.Errorf("contract facade: %w", err)
	}
	logger.Debug("contract facade built", zap.Stringer("exchange", facade.Addresses.Exchange))

	handle := chain.NewClientFromRPC(rpcClient)
	logger.Debug("connectivity handle built")

	registered := RegisterABIs(handle.Decoder(), facade)
	logger.Debug("abis registered", zap.Int("registered", registered), zap.Strings("names", handle.Decoder().Names()))

	state.WalletFound = true
	state.NetworkID = networkID
	state.Network = net
	state.Provider = provider
	state.Signer = signer
	state.Engine = eng
	state.Client = handle
	state.Contracts = facade

	logger.Info("bootstrap complete",
		zap.Uint64("network_id", networkID),
		zap.String("network", net.Name),
		zap.String("signer", string(signer.Kind())),
	)
	return state, nil
}

func (b *Bootstrapper) startEngine(ctx context.Context, signer wallet.SignerAdapter, net network.Network, logger *zap.Logger) (*engine.Engine, error) {
	newAdapter := b.NewNetworkAdapter
	if newAdapter == nil {
		newAdapter = DefaultNetworkAdapter
	}

	eng := engine.New(engine.Config{PollingInterval: b.PollingInterval, Logger: logger})
	if err := eng.AddProvider(signer); err != nil {
		return nil, fmt.Errorf("add signer: %w", err)
	}

	adapter, err := newAdapter(ctx, net.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("network adapter %s: %w", net.RPCURL, err)
	}
	if err := eng.AddProvider(adapter); err != nil {
		closeAdapter(adapter)
		return nil, fmt.Errorf("add network adapter: %w", err)
	}
	logger.Debug("network adapter added", zap.String("rpc_url", net.RPCURL))

	if err := eng.Start(); err != nil {
		closeAdapter(adapter)
		return nil, fmt.Errorf("start engine: %w", err)
	}
	logger.Debug("engine started")
	return eng, nil
}

// DefaultNetworkAdapter forwards requests to the endpoint over JSON-RPC.
func DefaultNetworkAdapter(ctx context.Context, url string) (engine.Subprovider, error) {
	return engine.NewRPCSubprovider(ctx, url)
}

// RegisterABIs registers every facade ABI and returns how many were new.
func RegisterABIs(registry *decoder.Registry, facade *contracts.Wrappers) int {
	registered := 0
	for _, named := range facade.ABIs() {
		if registry.Register(named.Name, named.ABI) {
			registered++
		}
	}
	return registered
}

func closeAdapter(adapter engine.Subprovider) {
	if closer, ok := adapter.(interface{ Close() }); ok {
		closer.Close()
	}
}
