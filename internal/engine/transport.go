package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// RoundTrip serves a JSON-RPC HTTP request in-process, so an rpc.Client built on
// the engine sees an ordinary HTTP endpoint. Single and batch payloads are supported.
func (e *Engine) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	ctx := req.Context()
	payload := bytes.TrimSpace(body)

	var out []byte
	var err error
	if len(payload) > 0 && payload[0] == '[' {
		var batch []json.RawMessage
		if uerr := json.Unmarshal(payload, &batch); uerr != nil {
			out, err = json.Marshal(parseErrorResponse(uerr))
		} else {
			responses := make([]response, 0, len(batch))
			for _, msg := range batch {
				responses = append(responses, e.serve(ctx, msg))
			}
			out, err = json.Marshal(responses)
		}
	} else {
		out, err = json.Marshal(e.serve(ctx, payload))
	}
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}

	return &http.Response{
		Status:        "200 OK",
		StatusCode:    http.StatusOK,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        http.Header{"Content-Type": []string{"application/json"}},
		Body:          io.NopCloser(bytes.NewReader(out)),
		ContentLength: int64(len(out)),
		Request:       req,
	}, nil
}

func (e *Engine) serve(ctx context.Context, raw []byte) response {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return parseErrorResponse(err)
	}
	resp := response{JSONRPC: "2.0", ID: req.ID}
	if req.Method == "" {
		resp.Error = &Error{Code: codeInvalidRequest, Message: "missing method"}
		return resp
	}

	result, err := e.Send(ctx, &req)
	if err != nil {
		resp.Error = toRPCError(err)
		return resp
	}
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	resp.Result = result
	return resp
}

func parseErrorResponse(err error) response {
	return response{
		JSONRPC: "2.0",
		Error:   &Error{Code: codeParseError, Message: fmt.Sprintf("parse error: %v", err)},
	}
}
