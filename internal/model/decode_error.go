package model

// DecodeError records a decode failure for a contract log.
type DecodeError struct {
	NetworkID   uint64 `json:"network_id"`
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint64 `json:"log_index"`
	Address     string `json:"address"`
	Topic0      string `json:"topic0"`
	Error       string `json:"error"`
}
