// Package faucet requests test ether and tokens for wallet accounts on the test networks.
package faucet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dappkit/internal/network"
)

// DefaultURL is the public faucet for the 0x test deployments.
const DefaultURL = "https://faucet.0xproject.com"

var (
	// ErrNoFaucet is returned for networks without a faucet.
	ErrNoFaucet = errors.New("no faucet for network")
	// ErrNoAccount is returned when the wallet exposes no account to fund.
	ErrNoAccount = errors.New("wallet exposes no accounts")
)

// Asset is what the faucet dispenses.
type Asset string

const (
	AssetEther Asset = "ether"
	AssetZRX   Asset = "zrx"
)

// ParseAsset normalizes an asset name. Empty means ether.
func ParseAsset(input string) (Asset, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "eth", string(AssetEther):
		return AssetEther, nil
	case string(AssetZRX):
		return AssetZRX, nil
	default:
		return "", fmt.Errorf("unsupported faucet asset: %s", input)
	}
}

// Supported reports whether networkID has a faucet.
func Supported(networkID uint64) bool {
	return networkID == network.Ropsten || networkID == network.Kovan
}

// AccountSource lists the wallet accounts.
type AccountSource interface {
	Accounts(ctx context.Context) ([]common.Address, error)
}

// Client talks to the faucet HTTP API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// New builds a faucet client. An empty baseURL uses DefaultURL and a nil httpClient a client
// with a 30 second timeout.
func New(baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     logger.With(zap.String("component", "faucet")),
	}
}

// Request asks the faucet to send asset to recipient on networkID.
func (c *Client) Request(ctx context.Context, networkID uint64, asset Asset, recipient common.Address) error {
	if !Supported(networkID) {
		return fmt.Errorf("%w %d", ErrNoFaucet, networkID)
	}

	endpoint := fmt.Sprintf("%s/%s/%s?%s", c.baseURL, asset, recipient.Hex(),
		url.Values{"networkId": {strconv.FormatUint(networkID, 10)}}.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build faucet request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("faucet request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("faucet %s: status %d: %s", asset, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	c.logger.Info("faucet request accepted",
		zap.Uint64("network_id", networkID),
		zap.String("asset", string(asset)),
		zap.String("recipient", recipient.Hex()),
	)
	return nil
}

// Fund requests asset for the first wallet account and returns that account.
func (c *Client) Fund(ctx context.Context, accounts AccountSource, networkID uint64, asset Asset) (common.Address, error) {
	if !Supported(networkID) {
		return common.Address{}, fmt.Errorf("%w %d", ErrNoFaucet, networkID)
	}
	list, err := accounts.Accounts(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("accounts: %w", err)
	}
	if len(list) == 0 {
		return common.Address{}, ErrNoAccount
	}
	recipient := list[0]
	return recipient, c.Request(ctx, networkID, asset, recipient)
}
