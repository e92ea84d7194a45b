package provider

import (
	"encoding/json"
	"fmt"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/executor"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/core/vm"
	"github.com/edr-dev/edr/trace"
)

// callRequest is the eth_call/eth_estimateGas/debug_traceCall
// transaction-object parameter (§6): every field optional except
// (implicitly) an eventual "to" for a plain call.
type callRequest struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Gas      string `json:"gas"`
	GasPrice string `json:"gasPrice"`
	Value    string `json:"value"`
	Data     string `json:"data"`
	Input    string `json:"input"`
}

// buildCallMessage decodes the shared eth_call/eth_estimateGas/
// debug_traceCall transaction object into a ready-to-run executor.Message
// and the block/chain context to run it against.
func (p *Provider) buildCallMessage(params []json.RawMessage) (*executor.Message, vm.BlockContext, vm.ChainConfig, error) {
	raw, err := requireParam(params, 0, "transaction")
	if err != nil {
		return nil, vm.BlockContext{}, vm.ChainConfig{}, err
	}
	var body callRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, vm.BlockContext{}, vm.ChainConfig{}, fmt.Errorf("invalid transaction object: %w", err)
	}

	var from common.Address
	if body.From != "" {
		from, err = parseAddressHex(body.From)
		if err != nil {
			return nil, vm.BlockContext{}, vm.ChainConfig{}, fmt.Errorf("invalid from address: %w", err)
		}
	}
	var to *common.Address
	if body.To != "" {
		t, err := parseAddressHex(body.To)
		if err != nil {
			return nil, vm.BlockContext{}, vm.ChainConfig{}, err
		}
		to = &t
	}

	gas := p.gasLimit
	if body.Gas != "" {
		if g, err := parseUint64(body.Gas); err == nil {
			gas = g
		}
	}
	gasPrice, err := parseWord(body.GasPrice)
	if err != nil {
		return nil, vm.BlockContext{}, vm.ChainConfig{}, err
	}
	value, err := parseWord(body.Value)
	if err != nil {
		return nil, vm.BlockContext{}, vm.ChainConfig{}, err
	}
	data := body.Data
	if data == "" {
		data = body.Input
	}
	input, err := hexOrEmpty(data)
	if err != nil {
		return nil, vm.BlockContext{}, vm.ChainConfig{}, err
	}

	head := p.chain.Head().Header
	blockCtx := vm.BlockContext{
		GetHash:     func(uint64) common.Hash { return common.Hash{} },
		Coinbase:    head.Miner,
		GasLimit:    p.gasLimit,
		BlockNumber: head.Number,
		Time:        head.Timestamp,
		BaseFee:     head.BaseFee,
	}
	chainCfg := p.spec.ChainConfig(head.Number, head.Timestamp)

	msg := &executor.Message{
		From:      from,
		To:        to,
		Value:     value,
		GasLimit:  gas,
		GasPrice:  gasPrice,
		GasFeeCap: gasPrice,
		GasTipCap: gasPrice,
		Data:      input,
		TxType:    types.LegacyTxType,
	}
	return msg, blockCtx, chainCfg, nil
}

// call runs a message against a disposable snapshot of the chain's current
// state (§4.J: "eth_call/eth_estimateGas never mutate committed state"),
// returning the call's return data and gas used. blockParamIndex is unused
// today — EDR has no historical state snapshots to replay eth_call against,
// so every block tag resolves to the current head (§9) — but is kept so
// call sites document which parameter they mean.
func (p *Provider) call(params []json.RawMessage, blockParamIndex int) ([]byte, uint64, error) {
	msg, blockCtx, chainCfg, err := p.buildCallMessage(params)
	if err != nil {
		return nil, 0, err
	}

	state := p.chain.State()
	snapshot := state.Snapshot()
	defer state.RevertToSnapshot(snapshot)

	gp := new(executor.GasPool).AddGas(msg.GasLimit)
	result, err := executor.ApplyMessageWithConfig(blockCtx, chainCfg, state, msg, gp, vm.Config{}, nil)
	if err != nil {
		return nil, 0, err
	}
	if result.Failed() {
		return result.ReturnData, result.UsedGas, fmt.Errorf("execution reverted: %w", result.Err)
	}
	return result.ReturnData, result.UsedGas, nil
}

// traceCall runs a debug_traceCall request with a fresh Recorder attached,
// against a disposable state snapshot, returning the struct-log trace
// regardless of whether the call reverted (§4.I/§6).
func (p *Provider) traceCall(params []json.RawMessage) (trace.CallTrace, error) {
	msg, blockCtx, chainCfg, err := p.buildCallMessage(params)
	if err != nil {
		return trace.CallTrace{}, err
	}

	state := p.chain.State()
	snapshot := state.Snapshot()
	defer state.RevertToSnapshot(snapshot)

	rec := trace.NewRecorder(true)
	gp := new(executor.GasPool).AddGas(msg.GasLimit)
	if _, err := executor.ApplyMessageWithConfig(blockCtx, chainCfg, state, msg, gp, vm.Config{}, rec); err != nil {
		return trace.CallTrace{}, err
	}
	return rec.CallTrace(), nil
}
