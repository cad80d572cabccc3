package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCSubprovider answers every request by forwarding it to a remote JSON-RPC endpoint.
// It terminates the chain, so it belongs at the end.
type RPCSubprovider struct {
	url    string
	client *rpc.Client
}

// NewRPCSubprovider dials url.
func NewRPCSubprovider(ctx context.Context, url string) (*RPCSubprovider, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("rpc subprovider url is required")
	}
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &RPCSubprovider{url: url, client: client}, nil
}

// URL returns the endpoint this subprovider targets.
func (p *RPCSubprovider) URL() string {
	return p.url
}

// HandleRequest forwards req and returns the remote result verbatim.
func (p *RPCSubprovider) HandleRequest(ctx context.Context, req *Request, _ NextFunc) (json.RawMessage, error) {
	params, err := req.ParamList()
	if err != nil {
		return nil, err
	}
	args := make([]interface{}, len(params))
	for i, param := range params {
		args[i] = param
	}

	var result json.RawMessage
	if err := p.client.CallContext(ctx, &result, req.Method, args...); err != nil {
		return nil, err
	}
	return result, nil
}

// Close closes the remote connection.
func (p *RPCSubprovider) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
