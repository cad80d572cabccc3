package model

// AccountSnapshot is the balance view of one wallet account on one network.
type AccountSnapshot struct {
	NetworkID   uint64         `json:"network_id"`
	Address     string         `json:"address"`
	BlockNumber uint64         `json:"block_number"`
	EthBalance  string         `json:"eth_balance"`
	EthFormat   string         `json:"eth_formatted"`
	WethBalance string         `json:"weth_balance"`
	WethFormat  string         `json:"weth_formatted"`
	Tokens      []TokenBalance `json:"tokens"`
	TakenAt     string         `json:"taken_at"`
}

// TokenBalance is the balance and proxy allowance of one ERC20 token.
type TokenBalance struct {
	Token          TokenMeta `json:"token"`
	Balance        string    `json:"balance"`
	Formatted      string    `json:"formatted"`
	ProxyAllowance string    `json:"proxy_allowance"`
	Unlimited      bool      `json:"unlimited"`
}
