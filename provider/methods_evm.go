package provider

import (
	"encoding/json"
	"fmt"
)

// evmMine mines one block from the current mempool regardless of mining
// mode (§4.H), attaching the provider's configured observability sinks the
// same way automine does.
func evmMine(p *Provider, params []json.RawMessage) (interface{}, error) {
	result, err := p.mineNow()
	if err != nil {
		return nil, err
	}
	if result == nil {
		return "0x0", nil
	}
	return encodeBytes(result.Block.Hash(headerHashFn).Bytes()), nil
}

// evmSnapshot records the chain/state snapshot id the matching evm_revert
// call rewinds to (§4.C/§4.H).
func evmSnapshot(p *Provider, params []json.RawMessage) (interface{}, error) {
	id := p.chain.Snapshot()
	return encodeUint64(uint64(id)), nil
}

// evmRevert rewinds to a previously taken evm_snapshot id, reporting
// success as a boolean per Hardhat's evm_revert contract.
func evmRevert(p *Provider, params []json.RawMessage) (interface{}, error) {
	raw, err := requireParam(params, 0, "id")
	if err != nil {
		return nil, err
	}
	id, err := decodeUint64Param(raw)
	if err != nil {
		return nil, err
	}
	return p.chain.RevertToSnapshot(int(id)), nil
}

// evmSetAutomine toggles between automine and manual mining (§4.H).
func evmSetAutomine(p *Provider, params []json.RawMessage) (interface{}, error) {
	raw, err := requireParam(params, 0, "enabled")
	if err != nil {
		return nil, err
	}
	var on bool
	if err := json.Unmarshal(raw, &on); err != nil {
		return nil, fmt.Errorf("invalid enabled flag: %w", err)
	}
	p.miner.SetAutoMine(on)
	return true, nil
}

// evmSetIntervalMining switches to interval-mode mining with the given
// millisecond period, or back to manual if 0 (§4.H).
func evmSetIntervalMining(p *Provider, params []json.RawMessage) (interface{}, error) {
	raw, err := requireParam(params, 0, "interval")
	if err != nil {
		return nil, err
	}
	millis, err := decodeUint64Param(raw)
	if err != nil {
		return nil, err
	}
	p.miner.SetIntervalMining(millis)
	return true, nil
}
