package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"dappkit/internal/decoder"
	"dappkit/internal/model"
)

// Client is the connectivity handle over any JSON-RPC connection. It owns the decoder registry.
type Client struct {
	rpcClient *rpc.Client
	ethClient *ethclient.Client
	registry  *decoder.Registry
	ownsRPC   bool

	mu      sync.RWMutex
	tsCache map[uint64]uint64
}

// NewClient dials rpcURL and returns a handle that closes the connection on Close.
func NewClient(ctx context.Context, rpcURL string) (*Client, error) {
	rpcClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	c := NewClientFromRPC(rpcClient)
	c.ownsRPC = true
	return c, nil
}

// NewClientFromRPC wraps an existing connection. The caller keeps ownership of rpcClient.
func NewClientFromRPC(rpcClient *rpc.Client) *Client {
	return &Client{
		rpcClient: rpcClient,
		ethClient: ethclient.NewClient(rpcClient),
		registry:  decoder.NewRegistry(),
		tsCache:   make(map[uint64]uint64),
	}
}

// Close closes the underlying RPC client if this handle dialed it.
func (c *Client) Close() {
	if c.ownsRPC && c.rpcClient != nil {
		c.rpcClient.Close()
	}
}

// RPC returns the underlying connection.
func (c *Client) RPC() *rpc.Client {
	return c.rpcClient
}

// Eth returns the go-ethereum client, which also satisfies bind.ContractBackend.
func (c *Client) Eth() *ethclient.Client {
	return c.ethClient
}

// Decoder returns the handle's decoder registry.
func (c *Client) Decoder() *decoder.Registry {
	return c.registry
}

// NetworkID returns the network identifier reported by net_version.
func (c *Client) NetworkID(ctx context.Context) (uint64, error) {
	var version string
	if err := c.rpcClient.CallContext(ctx, &version, "net_version"); err != nil {
		return 0, err
	}
	id, err := strconv.ParseUint(strings.TrimSpace(version), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid net_version %q: %w", version, err)
	}
	return id, nil
}

// GetChainID returns the chain ID.
func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	return c.ethClient.ChainID(ctx)
}

// LatestBlockNumber returns the latest block number.
func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	return c.ethClient.BlockNumber(ctx)
}

// HeaderByNumber returns the block header by number.
func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.ethClient.HeaderByNumber(ctx, number)
}

// Accounts returns the accounts exposed by the wallet at the head of the chain.
func (c *Client) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := c.rpcClient.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

// BalanceAt returns the ether balance of account at blockNumber (nil for latest).
func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return c.ethClient.BalanceAt(ctx, account, blockNumber)
}

// CodeAt returns the contract code of account.
func (c *Client) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CodeAt(ctx, account, blockNumber)
}

// CallContract performs an eth_call for a contract method.
func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.ethClient.CallContract(ctx, msg, blockNumber)
}

// SendTransaction submits tx through eth_sendTransaction; the wallet signs it.
func (c *Client) SendTransaction(ctx context.Context, tx model.TxArgs) (common.Hash, error) {
	var hash common.Hash
	if err := c.rpcClient.CallContext(ctx, &hash, "eth_sendTransaction", tx); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// TransactionReceipt returns the receipt of a mined transaction, or ethereum.NotFound.
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return c.ethClient.TransactionReceipt(ctx, hash)
}

// BlockTimestamp returns the block timestamp, using an in-memory cache.
func (c *Client) BlockTimestamp(ctx context.Context, number uint64) (uint64, error) {
	c.mu.RLock()
	ts, ok := c.tsCache[number]
	c.mu.RUnlock()
	if ok {
		return ts, nil
	}

	header, err := c.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		return 0, err
	}

	ts = header.Time
	c.mu.Lock()
	c.tsCache[number] = ts
	c.mu.Unlock()

	return ts, nil
}

// FilterLogs returns logs in the given range for addresses and topic0 filters.
func (c *Client) FilterLogs(
	ctx context.Context,
	fromBlock uint64,
	toBlock uint64,
	addresses []common.Address,
	topic0 []common.Hash,
) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: addresses,
	}
	if len(topic0) > 0 {
		query.Topics = [][]common.Hash{topic0}
	}
	return c.ethClient.FilterLogs(ctx, query)
}

// AwaitConfig controls receipt polling.
type AwaitConfig struct {
	Interval    time.Duration
	MaxInterval time.Duration
	Logger      *zap.Logger
}

// AwaitTransactionMined polls for the receipt of hash until it is mined or ctx ends.
// The interval doubles after each miss, capped at MaxInterval.
func (c *Client) AwaitTransactionMined(ctx context.Context, hash common.Hash, cfg AwaitConfig) (*types.Receipt, error) {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Second
	}
	maxInterval := cfg.MaxInterval
	if maxInterval < interval {
		maxInterval = interval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for {
		receipt, err := c.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		}
		logger.Debug("transaction pending", zap.String("tx", hash.Hex()), zap.Duration("retry_in", interval))

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		interval *= 2
		if interval > maxInterval {
			interval = maxInterval
		}
	}
}

// DecodeLogs decodes logs with the handle's registry. Logs that fail are returned as decode errors.
func (c *Client) DecodeLogs(ctx context.Context, networkID uint64, logs []types.Log, withTimestamps bool) ([]model.DecodedEvent, []model.DecodeError) {
	events := make([]model.DecodedEvent, 0, len(logs))
	var failures []model.DecodeError
	for _, log := range logs {
		event, err := c.registry.DecodeLog(log)
		if err != nil {
			failures = append(failures, decoder.Failure(networkID, log, err))
			continue
		}
		event.NetworkID = networkID
		if withTimestamps {
			if ts, err := c.BlockTimestamp(ctx, log.BlockNumber); err == nil {
				event.Timestamp = ts
			}
		}
		events = append(events, *event)
	}
	return events, failures
}

// DecodeReceiptLogs decodes the logs of a receipt.
func (c *Client) DecodeReceiptLogs(ctx context.Context, networkID uint64, receipt *types.Receipt) ([]model.DecodedEvent, []model.DecodeError) {
	if receipt == nil {
		return nil, nil
	}
	logs := make([]types.Log, 0, len(receipt.Logs))
	for _, log := range receipt.Logs {
		if log != nil {
			logs = append(logs, *log)
		}
	}
	return c.DecodeLogs(ctx, networkID, logs, false)
}
