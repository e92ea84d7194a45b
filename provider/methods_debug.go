package provider

import (
	"encoding/json"
	"fmt"
)

// debugTraceTransaction returns the struct-log trace captured when the
// transaction was mined (§4.I/§6); it never replays execution — the
// recorder was attached via MineWithTraces at mine time, so the trace is
// available as long as the provider process hasn't dropped it.
func debugTraceTransaction(p *Provider, params []json.RawMessage) (interface{}, error) {
	hashRaw, err := requireParam(params, 0, "hash")
	if err != nil {
		return nil, err
	}
	hash, err := decodeHashParam(hashRaw)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	rec, ok := p.traces[hash]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no trace recorded for transaction %s", hash.Hex())
	}
	return rec.CallTrace(), nil
}

// debugTraceCall runs an eth_call-shaped request with a fresh Recorder
// attached and returns its struct-log trace without touching committed
// state or the transaction pool (§4.I/§6: "debug_traceCall" simulates
// against current state).
func debugTraceCall(p *Provider, params []json.RawMessage) (interface{}, error) {
	return p.traceCall(params)
}
