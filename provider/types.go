// Package provider implements EDR's embedded JSON-RPC surface (§4.J): a
// single-threaded request dispatcher sitting directly on top of
// core/blockchain, core/mempool, core/miner, and chainspec, without a
// socket or HTTP framing layer of its own — HandleRequest takes and
// returns already-framed JSON, the same shape a Hardhat/Anvil "in-process
// provider" exposes to its embedding test runner.
//
// Grounded on the teacher's pkg/rpc package (Request/Response/RPCError
// envelope, eth_/net_/web3_ namespace dispatch in eth_api.go, subscription
// plumbing in subscription_manager.go), adapted onto EDR's chain/pool/miner
// stack and its single in-process caller instead of a listening HTTP/WS
// server.
package provider

import (
	"encoding/json"
	"fmt"
)

// Request is a JSON-RPC 2.0 request, identical on the wire to the
// teacher's pkg/rpc.Request.
type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

// Standard JSON-RPC 2.0 error codes (§6/§7).
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

func errorResponse(id json.RawMessage, code int, msg string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: msg}}
}

func successResponse(id json.RawMessage, result interface{}) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

// TraceHandle is one entry of handle_request's "traces" array (§4.J): an
// opaque reference to the struct-log trace captured for one transaction
// mined as a side effect of the request, without forcing the caller to pay
// for decoding it unless debug_traceTransaction is actually called.
type TraceHandle struct {
	TxHash string `json:"txHash"`
}

// RawResponse is what HandleRequest returns (§4.J: "handle_request(json) →
// {data: string, traces: [TraceHandle]}"): the already-marshaled JSON-RPC
// response, plus the trace handles for any transactions mined while
// producing it.
type RawResponse struct {
	Data   string        `json:"data"`
	Traces []TraceHandle `json:"traces"`
}
