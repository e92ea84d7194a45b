package provider

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/chainspec"
	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/blockchain"
	"github.com/edr-dev/edr/core/mempool"
	"github.com/edr-dev/edr/core/miner"
	"github.com/edr-dev/edr/core/state"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/core/vm"
	"github.com/edr-dev/edr/crypto"
	"github.com/edr-dev/edr/edrlog"
	"github.com/edr-dev/edr/fork"
	"github.com/edr-dev/edr/trace"
)

// Provider is EDR's embedded JSON-RPC endpoint: the chain, mempool, and
// miner wired together behind a single HandleRequest entry point, plus
// whatever owned-account signing and observability sinks the caller
// configured (§4.J).
type Provider struct {
	log *edrlog.Logger

	chainID   uint64
	networkID uint64
	gasLimit  uint64

	chain  *blockchain.Chain
	pool   *mempool.Pool
	miner  *miner.Miner
	signer types.Signer
	spec   chainspec.Spec

	forkCache *fork.Cache

	obs ObservabilityConfig

	mu           sync.Mutex
	accounts     map[common.Address]*secp256k1.PrivateKey
	impersonated map[common.Address]bool
	pending      []TraceHandle
	traces       map[common.Hash]*trace.Recorder
	gasReports   map[common.Hash]*trace.GasReportRecorder
	subs         map[string]*subscription

	methods map[string]methodFunc
}

// methodFunc handles one JSON-RPC method's already-split params array,
// returning the value to place in Response.Result.
type methodFunc func(p *Provider, params []json.RawMessage) (interface{}, error)

// NewProvider constructs a Provider from cfg: seeds genesis state (from
// cfg.GenesisState, or from a fork.Cache if cfg.Fork is set), registers
// owned accounts, and starts the miner in the configured mode.
func NewProvider(cfg Config) (*Provider, error) {
	log := edrlog.NewText(0).Module("provider")

	var loader state.Loader = state.EmptyLoader
	var forkCache *fork.Cache
	if cfg.Fork != nil {
		c, err := fork.NewCache(cfg.Fork.BaseDir, cfg.ChainID, cfg.Fork.Block, cfg.Fork.Fetcher)
		if err != nil {
			return nil, fmt.Errorf("provider: opening fork cache: %w", err)
		}
		loader = c
		forkCache = c
	}

	overlay := state.NewOverlay(loader)
	for _, acct := range cfg.GenesisState {
		overlay.CreateAccount(acct.Address)
		if acct.Balance != nil {
			overlay.AddBalance(acct.Address, acct.Balance)
		}
		if acct.Nonce != 0 {
			overlay.SetNonce(acct.Address, acct.Nonce)
		}
		if len(acct.Code) != 0 {
			overlay.SetCode(acct.Address, acct.Code)
		}
		for k, v := range acct.Storage {
			overlay.SetState(acct.Address, k, v)
		}
	}

	genesis := &types.Header{
		GasLimit: cfg.BlockGasLimit,
		Miner:    cfg.Coinbase,
	}
	if cfg.Hardfork.AtLeast(types.London) {
		genesis.BaseFee = uint256.NewInt(1_000_000_000)
	}

	chainCfg := vm.ChainConfig{ChainID: cfg.ChainID, Hardfork: cfg.Hardfork}
	chain := blockchain.NewChain(chainCfg, genesis, overlay)

	signer := types.NewSigner(cfg.ChainID)
	poolCfg := mempool.DefaultConfig()
	poolCfg.BlockGasLimit = cfg.BlockGasLimit
	if cfg.MinGasPrice != nil {
		poolCfg.MinGasPrice = cfg.MinGasPrice
	}
	pool := mempool.New(poolCfg, overlay, signer, func(tx *types.Transaction) common.Hash {
		return tx.Hash(types.HashTransaction)
	})

	minerCfg := miner.Config{
		Coinbase:                     cfg.Coinbase,
		GasLimit:                     cfg.BlockGasLimit,
		AllowBlocksWithSameTimestamp: cfg.AllowBlocksWithSameTimestamp,
		BaseFeeParams:                cfg.BaseFeeParams,
	}
	m := miner.New(chain, pool, minerCfg)
	switch {
	case cfg.Mining.IntervalMillis != 0:
		m.SetIntervalMining(cfg.Mining.IntervalMillis)
	case cfg.Mining.Auto:
		m.SetAutoMine(true)
	}

	p := &Provider{
		log:       log,
		chainID:   cfg.ChainID,
		networkID: cfg.NetworkID,
		gasLimit:  cfg.BlockGasLimit,
		chain:     chain,
		pool:      pool,
		miner:     m,
		signer:    signer,
		spec:      chainspec.ForChainID(cfg.ChainID),
		forkCache: forkCache,
		obs:          cfg.Observability,
		accounts:     make(map[common.Address]*secp256k1.PrivateKey),
		impersonated: make(map[common.Address]bool),
		traces:       make(map[common.Hash]*trace.Recorder),
		gasReports:   make(map[common.Hash]*trace.GasReportRecorder),
		subs:         make(map[string]*subscription),
	}
	for _, oa := range cfg.OwnedAccounts {
		addr := crypto.PubkeyToAddress(oa.PrivateKey.PubKey())
		p.accounts[addr] = oa.PrivateKey
	}
	p.methods = methodTable()
	return p, nil
}

// Close releases the provider's fork cache, if any.
func (p *Provider) Close() error {
	if p.forkCache != nil {
		return p.forkCache.Close()
	}
	return nil
}

// HandleRequest decodes one JSON-RPC request, dispatches it to the matching
// eth_/net_/web3_/debug_/evm_/hardhat_ handler, and returns the marshaled
// response alongside the trace handles for any transactions mined while
// producing it (§4.J).
func (p *Provider) HandleRequest(raw []byte) RawResponse {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		resp := errorResponse(nil, ErrCodeParse, fmt.Sprintf("parse error: %v", err))
		return p.finish(resp)
	}

	handler, ok := p.methods[req.Method]
	if !ok {
		resp := errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
		return p.finish(resp)
	}

	result, err := handler(p, req.Params)
	if err != nil {
		p.log.Warn("rpc method failed", "method", req.Method, "error", err)
		resp := errorResponse(req.ID, ErrCodeInvalidParams, err.Error())
		return p.finish(resp)
	}
	return p.finish(successResponse(req.ID, result))
}

func (p *Provider) finish(resp *Response) RawResponse {
	data, err := json.Marshal(resp)
	if err != nil {
		// A Response built entirely from our own types failing to marshal
		// means a handler returned something JSON cannot represent; that is
		// a bug in the handler, not a request the caller could have avoided.
		panic(fmt.Sprintf("provider: marshaling response: %v", err))
	}

	p.mu.Lock()
	traces := p.pending
	p.pending = nil
	p.mu.Unlock()

	return RawResponse{Data: string(data), Traces: traces}
}

// recordTrace registers a mined transaction's hash so the caller can later
// retrieve its struct-log/gas-report via debug_traceTransaction without the
// provider replaying it.
func (p *Provider) recordTrace(txHash common.Hash) {
	p.mu.Lock()
	p.pending = append(p.pending, TraceHandle{TxHash: encodeBytes(txHash.Bytes())})
	p.mu.Unlock()
}

// paramAt returns the i-th positional parameter undecoded and whether it was
// present; a short params array means the parameter was omitted, which is
// not an error here (matching the teacher's pkg/rpc permissive
// optional-trailing-parameter handling).
func paramAt(params []json.RawMessage, i int) (json.RawMessage, bool) {
	if i >= len(params) {
		return nil, false
	}
	return params[i], true
}

func requireParam(params []json.RawMessage, i int, name string) (json.RawMessage, error) {
	raw, ok := paramAt(params, i)
	if !ok {
		return nil, fmt.Errorf("missing required parameter %q", name)
	}
	return raw, nil
}

// traceRecorderFor builds a per-transaction tracer from the provider's
// observability config, used as the tracerFor callback passed to
// miner.MineWithTraces.
func (p *Provider) traceRecorderFor() (vm.Config, func(tx *types.Transaction) vm.Tracer) {
	cfg := vm.Config{}
	if p.obs.CodeCoverageCallback != nil {
		cfg.CoverageSink = trace.CoverageSinkAddress
		cfg.CoverageCallback = p.obs.CodeCoverageCallback
	}

	gasReport := p.obs.GasReport
	return cfg, func(tx *types.Transaction) vm.Tracer {
		hash := tx.Hash(types.HashTransaction)
		rec := trace.NewRecorder(false)

		p.mu.Lock()
		p.traces[hash] = rec
		p.mu.Unlock()

		if gasReport == nil {
			return rec
		}
		gr := trace.NewGasReportRecorder(gasReport.Decoder, gasReport.Resolve)
		p.mu.Lock()
		p.gasReports[hash] = gr
		p.mu.Unlock()
		return multiTracer{rec, gr}
	}
}

// multiTracer fans every Tracer hook out to each wrapped tracer in order.
type multiTracer []vm.Tracer

func (m multiTracer) OnEnter(depth int, typ vm.OpCode, from, to common.Address, input []byte, gas uint64, value *uint256.Int) {
	for _, t := range m {
		t.OnEnter(depth, typ, from, to, input, gas, value)
	}
}

func (m multiTracer) OnExit(depth int, output []byte, gasUsed uint64, err error) {
	for _, t := range m {
		t.OnExit(depth, output, gasUsed, err)
	}
}

func (m multiTracer) OnOpcode(pc uint64, op vm.OpCode, gas, cost uint64, depth int, stack *vm.Stack, mem *vm.Memory, err error) {
	for _, t := range m {
		t.OnOpcode(pc, op, gas, cost, depth, stack, mem, err)
	}
}

// headerHashFn is the block-hashing function the provider uses everywhere
// it needs a block hash outside core/blockchain itself (that package keeps
// its own unexported copy of the same wrapper).
func headerHashFn(h *types.Header) common.Hash {
	return types.HashHeader(crypto.Keccak256, h)
}

// lookupOwnedAccount returns the private key registered for addr via
// Config.OwnedAccounts, the set eth_sendTransaction may sign on the
// caller's behalf without an externally-supplied signature (§4.J/§6).
func (p *Provider) lookupOwnedAccount(addr common.Address) (*secp256k1.PrivateKey, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	key, ok := p.accounts[addr]
	return key, ok
}

// submitTransaction admits tx to the mempool and publishes it to
// newPendingTransactions subscribers. In automine mode it mines a block
// at once through mineNow; in manual and interval mode the transaction
// stays pending until a block is mined. Returns the transaction hash
// either way, matching eth_sendTransaction/eth_sendRawTransaction's
// JSON-RPC contract.
func (p *Provider) submitTransaction(tx *types.Transaction) (interface{}, error) {
	if err := p.pool.Add(tx); err != nil {
		return nil, err
	}
	hash := tx.Hash(types.HashTransaction)
	p.publishPendingTransaction(encodeBytes(hash.Bytes()))

	if p.miner.CurrentMode() == miner.ModeAuto {
		if _, err := p.mineNow(); err != nil {
			return nil, err
		}
	}
	return encodeBytes(hash.Bytes()), nil
}

// mineNow runs MineWithTraces using the provider's configured
// observability sinks, recording a TraceHandle for every transaction it
// includes so a subsequent debug_traceTransaction can retrieve it without
// replay. submitTransaction's automine path and the evm_mine handler both
// go through it.
func (p *Provider) mineNow() (*blockchain.BlockResult, error) {
	cfg, tracerFor := p.traceRecorderFor()
	result, err := p.miner.MineWithTraces(cfg, tracerFor)
	if err != nil {
		return nil, err
	}
	if result != nil {
		for _, tx := range result.Block.Transactions {
			p.recordTrace(tx.Hash(types.HashTransaction))
		}
		p.publishNewHeads(p.blockJSON(result.Block, false))
		var logs []logJSON
		for _, r := range p.chain.Receipts(result.Block.Header.Number) {
			for _, l := range r.Logs {
				logs = append(logs, logToJSON(l))
			}
		}
		if len(logs) != 0 {
			p.publishLogs(logs)
		}
	}
	return result, nil
}
