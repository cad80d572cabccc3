package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000
)

// Request is a JSON-RPC request travelling through the chain.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest builds a request with positional params.
func NewRequest(method string, params ...interface{}) (*Request, error) {
	if params == nil {
		params = []interface{}{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params for %s: %w", method, err)
	}
	return &Request{JSONRPC: "2.0", Method: method, Params: raw}, nil
}

// ParamList splits positional params. Missing or null params yield an empty list.
func (r *Request) ParamList() ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(r.Params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var params []json.RawMessage
	if err := json.Unmarshal(trimmed, &params); err != nil {
		return nil, &Error{Code: codeInvalidParams, Message: fmt.Sprintf("invalid params for %s: %v", r.Method, err)}
	}
	return params, nil
}

// Param decodes the positional param at index into out.
func (r *Request) Param(index int, out interface{}) error {
	params, err := r.ParamList()
	if err != nil {
		return err
	}
	if index >= len(params) {
		return &Error{Code: codeInvalidParams, Message: fmt.Sprintf("%s: missing param %d", r.Method, index)}
	}
	if err := json.Unmarshal(params[index], out); err != nil {
		return &Error{Code: codeInvalidParams, Message: fmt.Sprintf("%s: param %d: %v", r.Method, index, err)}
	}
	return nil
}

// NextFunc hands a request to the rest of the chain.
type NextFunc func(ctx context.Context, req *Request) (json.RawMessage, error)

// Subprovider is one link of the chain. It either answers a request or passes it to next.
type Subprovider interface {
	HandleRequest(ctx context.Context, req *Request, next NextFunc) (json.RawMessage, error)
}

// SubproviderFunc adapts a function to Subprovider.
type SubproviderFunc func(ctx context.Context, req *Request, next NextFunc) (json.RawMessage, error)

// HandleRequest calls f.
func (f SubproviderFunc) HandleRequest(ctx context.Context, req *Request, next NextFunc) (json.RawMessage, error) {
	return f(ctx, req, next)
}

// Error is a JSON-RPC error object. It satisfies rpc.Error and rpc.DataError.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("json-rpc error %d", e.Code)
	}
	return e.Message
}

// ErrorCode returns the JSON-RPC error code.
func (e *Error) ErrorCode() int { return e.Code }

// ErrorData returns the error data, if any.
func (e *Error) ErrorData() interface{} { return e.Data }

var (
	_ rpc.Error     = (*Error)(nil)
	_ rpc.DataError = (*Error)(nil)
)

// MethodNotFound reports that no subprovider answered method.
func MethodNotFound(method string) *Error {
	return &Error{Code: codeMethodNotFound, Message: fmt.Sprintf("the method %s does not exist/is not available", method)}
}

func toRPCError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	out := &Error{Code: codeServerError, Message: err.Error()}
	var coded rpc.Error
	if errors.As(err, &coded) {
		out.Code = coded.ErrorCode()
	}
	var withData rpc.DataError
	if errors.As(err, &withData) {
		out.Data = withData.ErrorData()
	}
	return out
}
