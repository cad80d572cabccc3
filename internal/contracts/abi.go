package contracts

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI names used for decoder registration.
const (
	ExchangeABIName   = "exchange"
	ERC20ABIName      = "erc20Token"
	EtherTokenABIName = "etherToken"
	ForwarderABIName  = "forwarder"
)

const exchangeABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "makerAddress", "type": "address"},
      {"indexed": true, "name": "feeRecipientAddress", "type": "address"},
      {"indexed": false, "name": "takerAddress", "type": "address"},
      {"indexed": false, "name": "senderAddress", "type": "address"},
      {"indexed": false, "name": "makerAssetFilledAmount", "type": "uint256"},
      {"indexed": false, "name": "takerAssetFilledAmount", "type": "uint256"},
      {"indexed": false, "name": "makerFeePaid", "type": "uint256"},
      {"indexed": false, "name": "takerFeePaid", "type": "uint256"},
      {"indexed": true, "name": "orderHash", "type": "bytes32"},
      {"indexed": false, "name": "makerAssetData", "type": "bytes"},
      {"indexed": false, "name": "takerAssetData", "type": "bytes"}
    ],
    "name": "Fill",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "makerAddress", "type": "address"},
      {"indexed": true, "name": "feeRecipientAddress", "type": "address"},
      {"indexed": false, "name": "senderAddress", "type": "address"},
      {"indexed": true, "name": "orderHash", "type": "bytes32"},
      {"indexed": false, "name": "makerAssetData", "type": "bytes"},
      {"indexed": false, "name": "takerAssetData", "type": "bytes"}
    ],
    "name": "Cancel",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "makerAddress", "type": "address"},
      {"indexed": true, "name": "senderAddress", "type": "address"},
      {"indexed": false, "name": "orderEpoch", "type": "uint256"}
    ],
    "name": "CancelUpTo",
    "type": "event"
  },
  {
    "inputs": [{"name": "", "type": "bytes32"}],
    "name": "filled",
    "outputs": [{"name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"name": "", "type": "bytes32"}],
    "name": "cancelled",
    "outputs": [{"name": "", "type": "bool"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"name": "", "type": "address"}, {"name": "", "type": "address"}],
    "name": "orderEpoch",
    "outputs": [{"name": "", "type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"name": "targetOrderEpoch", "type": "uint256"}],
    "name": "cancelOrdersUpTo",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const erc20ABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "_from", "type": "address"},
      {"indexed": true, "name": "_to", "type": "address"},
      {"indexed": false, "name": "_value", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "_owner", "type": "address"},
      {"indexed": true, "name": "_spender", "type": "address"},
      {"indexed": false, "name": "_value", "type": "uint256"}
    ],
    "name": "Approval",
    "type": "event"
  },
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"type": "uint256"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [{"name": "_owner", "type": "address"}],
    "name": "balanceOf",
    "outputs": [{"type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"name": "_owner", "type": "address"}, {"name": "_spender", "type": "address"}],
    "name": "allowance",
    "outputs": [{"type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [{"name": "_to", "type": "address"}, {"name": "_value", "type": "uint256"}],
    "name": "transfer",
    "outputs": [{"type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"name": "_spender", "type": "address"}, {"name": "_value", "type": "uint256"}],
    "name": "approve",
    "outputs": [{"type": "bool"}],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

const erc20Bytes32ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

const etherTokenABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "src", "type": "address"},
      {"indexed": true, "name": "guy", "type": "address"},
      {"indexed": false, "name": "wad", "type": "uint256"}
    ],
    "name": "Approval",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "src", "type": "address"},
      {"indexed": true, "name": "dst", "type": "address"},
      {"indexed": false, "name": "wad", "type": "uint256"}
    ],
    "name": "Transfer",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "dst", "type": "address"},
      {"indexed": false, "name": "wad", "type": "uint256"}
    ],
    "name": "Deposit",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "src", "type": "address"},
      {"indexed": false, "name": "wad", "type": "uint256"}
    ],
    "name": "Withdrawal",
    "type": "event"
  },
  {"inputs": [], "name": "deposit", "outputs": [], "stateMutability": "payable", "type": "function"},
  {
    "inputs": [{"name": "wad", "type": "uint256"}],
    "name": "withdraw",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"name": "", "type": "address"}],
    "name": "balanceOf",
    "outputs": [{"type": "uint256"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const forwarderABIJSON = `[
  {"inputs": [], "name": "owner", "outputs": [{"type": "address"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [{"name": "assetData", "type": "bytes"}, {"name": "amount", "type": "uint256"}],
    "name": "withdrawAsset",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  },
  {
    "inputs": [{"name": "newOwner", "type": "address"}],
    "name": "transferOwnership",
    "outputs": [],
    "stateMutability": "nonpayable",
    "type": "function"
  }
]`

type lazyABI struct {
	raw    string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.raw))
	})
	return l.parsed, l.err
}

var (
	exchangeABI     = &lazyABI{raw: exchangeABIJSON}
	erc20ABI        = &lazyABI{raw: erc20ABIJSON}
	erc20Bytes32ABI = &lazyABI{raw: erc20Bytes32ABIJSON}
	etherTokenABI   = &lazyABI{raw: etherTokenABIJSON}
	forwarderABI    = &lazyABI{raw: forwarderABIJSON}
)

// ExchangeABI returns the parsed exchange ABI.
func ExchangeABI() (abi.ABI, error) { return exchangeABI.get() }

// ERC20ABI returns the parsed ERC20 token ABI.
func ERC20ABI() (abi.ABI, error) { return erc20ABI.get() }

// EtherTokenABI returns the parsed wrapped-ether ABI.
func EtherTokenABI() (abi.ABI, error) { return etherTokenABI.get() }

// ForwarderABI returns the parsed forwarder ABI.
func ForwarderABI() (abi.ABI, error) { return forwarderABI.get() }
