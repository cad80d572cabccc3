package fakechain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// CallHandler answers eth_call for one contract address.
type CallHandler func(from common.Address, input []byte) ([]byte, error)

// Node is a fake network RPC endpoint.
type Node struct {
	mu        sync.Mutex
	networkID string
	block     uint64
	balances  map[common.Address]*big.Int
	contracts map[common.Address]CallHandler
	receipts  map[common.Hash]*types.Receipt
	logs      []types.Log
	times     map[uint64]uint64
	requests  []string
}

// NewNode builds a fake node answering net_version with networkID.
func NewNode(networkID string) *Node {
	return &Node{
		networkID: networkID,
		block:     1,
		balances:  make(map[common.Address]*big.Int),
		contracts: make(map[common.Address]CallHandler),
		receipts:  make(map[common.Hash]*types.Receipt),
		times:     make(map[uint64]uint64),
	}
}

// SetBlock sets the head block number.
func (n *Node) SetBlock(number uint64) {
	n.mu.Lock()
	n.block = number
	n.mu.Unlock()
}

// SetBalance sets the ether balance of account.
func (n *Node) SetBalance(account common.Address, wei *big.Int) {
	n.mu.Lock()
	n.balances[account] = new(big.Int).Set(wei)
	n.mu.Unlock()
}

// HandleContract routes eth_call for address to handler.
func (n *Node) HandleContract(address common.Address, handler CallHandler) {
	n.mu.Lock()
	n.contracts[address] = handler
	n.mu.Unlock()
}

// AddReceipt makes a receipt available to eth_getTransactionReceipt.
func (n *Node) AddReceipt(receipt *types.Receipt) {
	n.mu.Lock()
	n.receipts[receipt.TxHash] = receipt
	n.mu.Unlock()
}

// AddLogs makes logs available to eth_getLogs.
func (n *Node) AddLogs(logs ...types.Log) {
	n.mu.Lock()
	n.logs = append(n.logs, logs...)
	n.mu.Unlock()
}

// SetBlockTime sets the timestamp reported for a block header.
func (n *Node) SetBlockTime(number uint64, ts uint64) {
	n.mu.Lock()
	n.times[number] = ts
	n.mu.Unlock()
}

// Requests returns the methods received, in order.
func (n *Node) Requests() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.requests...)
}

// Served reports how many times method was received.
func (n *Node) Served(method string) int {
	count := 0
	for _, m := range n.Requests() {
		if m == method {
			count++
		}
	}
	return count
}

// Server returns an rpc.Server exposing the node.
func (n *Node) Server(t testing.TB) *rpc.Server {
	t.Helper()
	server := rpc.NewServer()
	if err := server.RegisterName("eth", &nodeEth{n: n}); err != nil {
		t.Fatalf("register node eth: %v", err)
	}
	if err := server.RegisterName("net", &nodeNet{n: n}); err != nil {
		t.Fatalf("register node net: %v", err)
	}
	t.Cleanup(server.Stop)
	return server
}

// URL serves the node over HTTP and returns its address.
func (n *Node) URL(t testing.TB) string {
	t.Helper()
	httpServer := httptest.NewServer(n.Server(t))
	t.Cleanup(httpServer.Close)
	return httpServer.URL
}

// Dial returns an in-process client connected to the node.
func (n *Node) Dial(t testing.TB) *rpc.Client {
	t.Helper()
	client := rpc.DialInProc(n.Server(t))
	t.Cleanup(client.Close)
	return client
}

func (n *Node) record(method string) {
	n.mu.Lock()
	n.requests = append(n.requests, method)
	n.mu.Unlock()
}

// CallArgs is the eth_call argument object.
type CallArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
}

// FilterArgs is the eth_getLogs filter object.
type FilterArgs struct {
	FromBlock *hexutil.Big     `json:"fromBlock"`
	ToBlock   *hexutil.Big     `json:"toBlock"`
	Address   []common.Address `json:"address"`
	Topics    [][]common.Hash  `json:"topics"`
}

type nodeEth struct{ n *Node }

func (s *nodeEth) BlockNumber() hexutil.Uint64 {
	s.n.record("eth_blockNumber")
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	return hexutil.Uint64(s.n.block)
}

func (s *nodeEth) ChainId() (*hexutil.Big, error) {
	s.n.record("eth_chainId")
	id, ok := new(big.Int).SetString(s.n.networkID, 10)
	if !ok {
		return nil, fmt.Errorf("invalid network id %s", s.n.networkID)
	}
	return (*hexutil.Big)(id), nil
}

func (s *nodeEth) GetBalance(account common.Address, _ string) *hexutil.Big {
	s.n.record("eth_getBalance")
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if bal, ok := s.n.balances[account]; ok {
		return (*hexutil.Big)(new(big.Int).Set(bal))
	}
	return (*hexutil.Big)(new(big.Int))
}

func (s *nodeEth) GetCode(account common.Address, _ string) hexutil.Bytes {
	s.n.record("eth_getCode")
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	if _, ok := s.n.contracts[account]; ok {
		return hexutil.Bytes{0x60, 0x80}
	}
	return hexutil.Bytes{}
}

func (s *nodeEth) Call(args CallArgs, _ string) (hexutil.Bytes, error) {
	s.n.record("eth_call")
	if args.To == nil {
		return nil, errors.New("missing to")
	}
	s.n.mu.Lock()
	handler, ok := s.n.contracts[*args.To]
	s.n.mu.Unlock()
	if !ok {
		return hexutil.Bytes{}, nil
	}

	var input []byte
	if args.Input != nil {
		input = *args.Input
	} else if args.Data != nil {
		input = *args.Data
	}
	var from common.Address
	if args.From != nil {
		from = *args.From
	}
	return handler(from, input)
}

func (s *nodeEth) GetTransactionReceipt(hash common.Hash) (*types.Receipt, error) {
	s.n.record("eth_getTransactionReceipt")
	s.n.mu.Lock()
	defer s.n.mu.Unlock()
	receipt, ok := s.n.receipts[hash]
	if !ok {
		return nil, nil
	}
	return receipt, nil
}

func (s *nodeEth) GetLogs(ctx context.Context, filter FilterArgs) ([]types.Log, error) {
	s.n.record("eth_getLogs")
	s.n.mu.Lock()
	defer s.n.mu.Unlock()

	out := make([]types.Log, 0)
	for _, log := range s.n.logs {
		if filter.FromBlock != nil && log.BlockNumber < filter.FromBlock.ToInt().Uint64() {
			continue
		}
		if filter.ToBlock != nil && log.BlockNumber > filter.ToBlock.ToInt().Uint64() {
			continue
		}
		if len(filter.Address) > 0 && !containsAddress(filter.Address, log.Address) {
			continue
		}
		if len(filter.Topics) > 0 && len(filter.Topics[0]) > 0 {
			if len(log.Topics) == 0 || !containsHash(filter.Topics[0], log.Topics[0]) {
				continue
			}
		}
		out = append(out, log)
	}
	return out, nil
}

func (s *nodeEth) GetBlockByNumber(number string, _ bool) (*types.Header, error) {
	s.n.record("eth_getBlockByNumber")
	s.n.mu.Lock()
	defer s.n.mu.Unlock()

	var num uint64
	if strings.HasPrefix(number, "0x") {
		parsed, err := hexutil.DecodeUint64(number)
		if err != nil {
			return nil, err
		}
		num = parsed
	} else {
		num = s.n.block
	}
	return &types.Header{
		Number:     new(big.Int).SetUint64(num),
		Time:       s.n.times[num],
		Difficulty: new(big.Int),
		GasLimit:   30_000_000,
	}, nil
}

type nodeNet struct{ n *Node }

func (s *nodeNet) Version() string {
	s.n.record("net_version")
	return s.n.networkID
}

func containsAddress(list []common.Address, address common.Address) bool {
	for _, item := range list {
		if item == address {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, hash common.Hash) bool {
	for _, item := range list {
		if item == hash {
			return true
		}
	}
	return false
}

// Receipt builds a successful receipt for hash carrying logs.
func Receipt(hash common.Hash, blockNumber uint64, logs ...types.Log) *types.Receipt {
	receipt := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(blockNumber),
		Logs:        make([]*types.Log, 0, len(logs)),
	}
	for i := range logs {
		log := logs[i]
		log.TxHash = hash
		log.BlockNumber = blockNumber
		if log.Topics == nil {
			log.Topics = []common.Hash{}
		}
		receipt.Logs = append(receipt.Logs, &log)
	}
	return receipt
}

// ABIHandler answers eth_call by dispatching on the method selector of parsed.
func ABIHandler(parsed abi.ABI, answer func(method string, args []interface{}) []interface{}) CallHandler {
	return func(_ common.Address, input []byte) ([]byte, error) {
		if len(input) < 4 {
			return nil, fmt.Errorf("short call input")
		}
		method, err := parsed.MethodById(input[:4])
		if err != nil {
			return nil, err
		}
		args, err := method.Inputs.Unpack(input[4:])
		if err != nil {
			return nil, err
		}
		return method.Outputs.Pack(answer(method.Name, args)...)
	}
}
