package network

import (
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// fileDefinitions models the networks override file.
type fileDefinitions struct {
	Networks []fileNetwork `yaml:"networks"`
}

type fileNetwork struct {
	ID        uint64        `yaml:"id"`
	Name      string        `yaml:"name"`
	RPCURL    string        `yaml:"rpc_url"`
	Contracts fileContracts `yaml:"contracts"`
}

type fileContracts struct {
	Exchange   string `yaml:"exchange"`
	ERC20Proxy string `yaml:"erc20_proxy"`
	EtherToken string `yaml:"ether_token"`
	Forwarder  string `yaml:"forwarder"`
	ZRXToken   string `yaml:"zrx_token"`
}

// LoadTable returns the default table merged with the overrides in path.
// An empty path yields the default table.
func LoadTable(path string) (Table, error) {
	table := DefaultTable()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read networks file: %w", err)
	}
	return MergeYAML(table, content)
}

// MergeYAML applies YAML network overrides on top of base.
func MergeYAML(base Table, content []byte) (Table, error) {
	var defs fileDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return Table{}, fmt.Errorf("parse networks file: %w", err)
	}

	table := base
	for _, def := range defs.Networks {
		if def.ID == 0 {
			return Table{}, fmt.Errorf("network entry without id")
		}
		n, err := base.Lookup(def.ID)
		if err != nil {
			n = Network{ID: def.ID}
		}
		if def.Name != "" {
			n.Name = strings.TrimSpace(def.Name)
		}
		if def.RPCURL != "" {
			n.RPCURL = strings.TrimSpace(def.RPCURL)
		}
		if n.RPCURL == "" {
			return Table{}, fmt.Errorf("network %d: rpc_url is required", def.ID)
		}
		if err := applyAddress(&n.Contracts.Exchange, def.Contracts.Exchange); err != nil {
			return Table{}, fmt.Errorf("network %d exchange: %w", def.ID, err)
		}
		if err := applyAddress(&n.Contracts.ERC20Proxy, def.Contracts.ERC20Proxy); err != nil {
			return Table{}, fmt.Errorf("network %d erc20_proxy: %w", def.ID, err)
		}
		if err := applyAddress(&n.Contracts.EtherToken, def.Contracts.EtherToken); err != nil {
			return Table{}, fmt.Errorf("network %d ether_token: %w", def.ID, err)
		}
		if err := applyAddress(&n.Contracts.Forwarder, def.Contracts.Forwarder); err != nil {
			return Table{}, fmt.Errorf("network %d forwarder: %w", def.ID, err)
		}
		if err := applyAddress(&n.Contracts.ZRXToken, def.Contracts.ZRXToken); err != nil {
			return Table{}, fmt.Errorf("network %d zrx_token: %w", def.ID, err)
		}
		table = table.With(n)
	}
	return table, nil
}

func applyAddress(dst *common.Address, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	if !common.IsHexAddress(input) {
		return fmt.Errorf("invalid address: %s", input)
	}
	*dst = common.HexToAddress(input)
	return nil
}
