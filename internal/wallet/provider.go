package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// Vendor selects how the injected provider is classified.
type Vendor string

const (
	VendorAuto     Vendor = "auto"
	VendorMetaMask Vendor = "metamask"
	VendorGeneric  Vendor = "generic"
)

// ParseVendor normalizes a vendor string. Empty means auto.
func ParseVendor(input string) (Vendor, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", string(VendorAuto):
		return VendorAuto, nil
	case string(VendorMetaMask):
		return VendorMetaMask, nil
	case string(VendorGeneric):
		return VendorGeneric, nil
	default:
		return "", fmt.Errorf("unsupported wallet vendor: %s", input)
	}
}

// InjectedProvider is the external wallet endpoint. It is owned by the caller that discovered it.
type InjectedProvider struct {
	client        *rpc.Client
	isMetaMask    bool
	clientVersion string
}

// NewInjectedProvider wraps an already connected wallet client.
func NewInjectedProvider(client *rpc.Client, isMetaMask bool, clientVersion string) *InjectedProvider {
	return &InjectedProvider{client: client, isMetaMask: isMetaMask, clientVersion: clientVersion}
}

// DiscoverConfig locates the injected provider.
type DiscoverConfig struct {
	URL    string
	Vendor Vendor
}

// Discover connects to the configured wallet endpoint. An empty URL means no wallet
// is installed and yields a nil provider with a nil error.
func Discover(ctx context.Context, cfg DiscoverConfig) (*InjectedProvider, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, nil
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial wallet: %w", err)
	}
	return Probe(ctx, client, cfg.Vendor), nil
}

// Probe classifies a connected wallet. With VendorAuto the vendor marker comes from
// web3_clientVersion; a failed probe classifies the wallet as generic.
func Probe(ctx context.Context, client *rpc.Client, vendor Vendor) *InjectedProvider {
	var version string
	if err := client.CallContext(ctx, &version, "web3_clientVersion"); err != nil {
		version = ""
	}

	isMetaMask := false
	switch vendor {
	case VendorMetaMask:
		isMetaMask = true
	case VendorGeneric:
		isMetaMask = false
	default:
		isMetaMask = strings.Contains(strings.ToLower(version), "metamask")
	}
	return NewInjectedProvider(client, isMetaMask, version)
}

// IsMetaMask reports the vendor marker.
func (p *InjectedProvider) IsMetaMask() bool {
	return p != nil && p.isMetaMask
}

// ClientVersion returns the wallet's web3_clientVersion, if it answered.
func (p *InjectedProvider) ClientVersion() string {
	if p == nil {
		return ""
	}
	return p.clientVersion
}

// RPC returns the raw wallet connection.
func (p *InjectedProvider) RPC() *rpc.Client {
	if p == nil {
		return nil
	}
	return p.client
}

// CallContext performs a raw call against the wallet.
func (p *InjectedProvider) CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("wallet provider is not connected")
	}
	return p.client.CallContext(ctx, result, method, args...)
}

// Close closes the wallet connection.
func (p *InjectedProvider) Close() {
	if p != nil && p.client != nil {
		p.client.Close()
	}
}
