package model

// DecodedEvent is a contract log decoded against a registered ABI.
type DecodedEvent struct {
	NetworkID   uint64       `json:"network_id"`
	BlockNumber uint64       `json:"block_number"`
	BlockHash   string       `json:"block_hash"`
	TxHash      string       `json:"tx_hash"`
	LogIndex    uint64       `json:"log_index"`
	Address     string       `json:"address"`
	Contract    string       `json:"contract"`
	EventName   string       `json:"event_name"`
	Timestamp   uint64       `json:"timestamp,omitempty"`
	Args        []DecodedArg `json:"args"`
	Raw         *RawLogRef   `json:"raw,omitempty"`
}

// DecodedArg is one event argument rendered as a string.
type DecodedArg struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Value   string `json:"value"`
	Indexed bool   `json:"indexed"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}

// Arg returns the value of the named argument.
func (e DecodedEvent) Arg(name string) (string, bool) {
	for _, arg := range e.Args {
		if arg.Name == name {
			return arg.Value, true
		}
	}
	return "", false
}
