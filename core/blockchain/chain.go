// Package blockchain implements block-level orchestration (§4.H): running a
// block's transactions through core/executor in order, assembling the
// resulting header and receipt index, and maintaining the canonical chain
// plus the evm_snapshot/evm_revert bookkeeping EDR's provider needs.
//
// Grounded on the teacher's pkg/core/state_transition.go (ApplyBlock) and
// pkg/core/blockchain.go (chain/receipt bookkeeping), collapsed to drop
// consensus-engine concerns (no real trie roots, no fork-choice, no P2P) that
// have no work to do in a single-node development runtime.
package blockchain

import (
	"errors"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/executor"
	"github.com/edr-dev/edr/core/state"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/core/vm"
	"github.com/edr-dev/edr/crypto"
)

var (
	ErrEmptyChain      = errors.New("blockchain: chain has no genesis block")
	ErrUnknownBlock    = errors.New("blockchain: unknown block")
	ErrUnknownSnapshot = errors.New("blockchain: unknown snapshot id")
)

// Chain holds the canonical, linearly-ordered block history produced by the
// miner, plus the receipt/log index needed to answer eth_getTransaction-
// Receipt and eth_getLogs without replaying execution.
//
// EDR never forks or reorgs an externally-gossiped chain (there is no P2P
// layer, per §9); "reorg" support here means only the evm_revert-style
// rewind to an earlier snapshot that soltest and the provider's
// evm_snapshot/evm_revert RPCs need.
type Chain struct {
	config vm.ChainConfig
	state  *state.Overlay

	blocks   []*types.Block
	receipts map[uint64][]*types.Receipt // by block number

	// snapshots maps an opaque id (handed out by Snapshot) to the chain
	// length and state layer depth to roll back to.
	snapshots map[int]snapshotMark
	nextSnap  int
}

type snapshotMark struct {
	blockCount int
	stateLayer int
}

// NewChain creates a chain seeded with a genesis block. genesis.Transactions
// must be empty; genesis state is whatever loader/prefunding the caller has
// already applied to the given overlay.
func NewChain(config vm.ChainConfig, genesis *types.Header, st *state.Overlay) *Chain {
	return &Chain{
		config:    config,
		state:     st,
		blocks:    []*types.Block{{Header: genesis}},
		receipts:  map[uint64][]*types.Receipt{},
		snapshots: map[int]snapshotMark{},
	}
}

// Head returns the current chain tip.
func (c *Chain) Head() *types.Block {
	return c.blocks[len(c.blocks)-1]
}

// State returns the chain's world-state overlay.
func (c *Chain) State() *state.Overlay {
	return c.state
}

// BlockByNumber returns the block at the given height, or nil if out of range.
func (c *Chain) BlockByNumber(number uint64) *types.Block {
	if number >= uint64(len(c.blocks)) {
		return nil
	}
	return c.blocks[number]
}

// Receipts returns the receipts for the block at the given height.
func (c *Chain) Receipts(number uint64) []*types.Receipt {
	return c.receipts[number]
}

// BlockResult is the outcome of mining one block: the assembled block plus
// its receipts, mirroring the teacher's TransitionResult.
type BlockResult struct {
	Block     *types.Block
	Receipts  []*types.Receipt
	GasUsed   uint64
	LogsBloom common.Bloom
}

// ApplyBlock runs txs against the chain's current state, on top of a new
// block whose header fields (timestamp, gas limit, coinbase, base fee) are
// supplied by the caller (the miner, which knows the mining mode's
// timestamp/interval policy); the number and parent hash are overwritten
// from the current head. It appends the resulting block to the chain and
// indexes its receipts.
func (c *Chain) ApplyBlock(header *types.Header, txs []*types.Transaction) (*BlockResult, error) {
	return c.ApplyBlockWithConfig(header, txs, vm.Config{}, nil)
}

// ApplyBlockWithConfig is ApplyBlock with an interpreter Config shared by
// every transaction in the block (e.g. a coverage-sink callback) and an
// optional per-transaction Tracer, so a caller wanting a struct-log or
// gas-report trace alongside a freshly mined block (the provider's
// eth_sendTransaction/evm_mine handlers) doesn't have to replay it.
func (c *Chain) ApplyBlockWithConfig(header *types.Header, txs []*types.Transaction, cfg vm.Config, tracerFor func(tx *types.Transaction) vm.Tracer) (*BlockResult, error) {
	parent := c.Head()
	header.ParentHash = parent.Hash(headerHashFn)
	header.Number = parent.Header.Number + 1

	signer := types.NewSigner(c.config.ChainID)
	blockCtx := vm.BlockContext{
		GetHash:     c.getHashFunc(),
		Coinbase:    header.Miner,
		GasLimit:    header.GasLimit,
		BlockNumber: header.Number,
		Time:        header.Timestamp,
		BaseFee:     header.BaseFee,
	}

	gp := new(executor.GasPool).AddGas(header.GasLimit)

	var (
		receipts          = make([]*types.Receipt, 0, len(txs))
		included          = make([]*types.Transaction, 0, len(txs))
		cumulativeGasUsed uint64
		bloom             common.Bloom
	)

	for _, tx := range txs {
		var tracer vm.Tracer
		if tracerFor != nil {
			tracer = tracerFor(tx)
		}
		snapshot := c.state.Snapshot()
		receipt, err := executor.ApplyTransactionWithConfig(blockCtx, c.config, c.state, tx, signer, gp, cfg, tracer)
		if err != nil {
			// A validation failure (bad nonce, insufficient balance, ...)
			// leaves the world unchanged (§4.E) and is simply skipped rather
			// than aborting the whole block, matching the miner's policy of
			// draining the mempool past invalid transactions (§4.G).
			c.state.RevertToSnapshot(snapshot)
			continue
		}

		txIndex := uint(len(included))
		included = append(included, tx)

		cumulativeGasUsed += receipt.GasUsed
		receipt.CumulativeGasUsed = cumulativeGasUsed
		receipt.TransactionIndex = txIndex
		receipt.BlockNumber = header.Number

		for _, l := range receipt.Logs {
			l.BlockNumber = header.Number
			l.TxIndex = txIndex
		}
		receipt.ComputeBloom(func(b []byte) []byte { return crypto.Keccak256(b) })
		for _, contribution := range bloomContributions(receipt) {
			bloom.Add(contribution)
		}

		receipts = append(receipts, receipt)
	}

	// Assign global log indices across the block, matching the teacher's
	// cross-receipt log-index assignment pass.
	var logIdx uint
	for _, r := range receipts {
		for _, l := range r.Logs {
			l.Index = logIdx
			logIdx++
		}
	}

	header.GasUsed = cumulativeGasUsed
	header.LogsBloom = bloom

	block := &types.Block{Header: header, Transactions: included}
	blockHash := block.Hash(headerHashFn)
	for _, r := range receipts {
		r.BlockHash = blockHash
		for _, l := range r.Logs {
			l.BlockHash = blockHash
		}
	}
	header.StateRoot = contentHash(header.Number, blockHash)

	c.blocks = append(c.blocks, block)
	c.receipts[header.Number] = receipts

	return &BlockResult{Block: block, Receipts: receipts, GasUsed: cumulativeGasUsed, LogsBloom: bloom}, nil
}

// Commit folds every uncommitted state layer into the base layer, matching
// the teacher's end-of-block state commit. EDR keeps state open across
// blocks by default (so evm_revert can rewind arbitrarily far back), and
// only commits when the caller is done needing per-block revert granularity
// (e.g. after a soltest run's setup phase).
func (c *Chain) Commit() {
	c.state.Commit()
}

// Snapshot records the current chain length and state depth, returning an
// opaque id usable with RevertToSnapshot (the provider's evm_snapshot RPC).
func (c *Chain) Snapshot() int {
	id := c.nextSnap
	c.nextSnap++
	c.snapshots[id] = snapshotMark{blockCount: len(c.blocks), stateLayer: c.state.Snapshot()}
	return id
}

// RevertToSnapshot rewinds both the chain's block history and its world
// state back to the point Snapshot(id) was taken (the provider's
// evm_revert RPC). It reports false if id is unknown, matching Hardhat's
// evm_revert semantics of returning a boolean rather than erroring.
func (c *Chain) RevertToSnapshot(id int) bool {
	mark, ok := c.snapshots[id]
	if !ok {
		return false
	}
	c.state.RevertToSnapshot(mark.stateLayer)
	if mark.blockCount <= len(c.blocks) {
		for n := mark.blockCount; n < len(c.blocks); n++ {
			delete(c.receipts, c.blocks[n].Header.Number)
		}
		c.blocks = c.blocks[:mark.blockCount]
	}
	delete(c.snapshots, id)
	return true
}

func (c *Chain) getHashFunc() func(uint64) common.Hash {
	return func(number uint64) common.Hash {
		b := c.BlockByNumber(number)
		if b == nil {
			return common.Hash{}
		}
		return b.Hash(headerHashFn)
	}
}

func headerHashFn(h *types.Header) common.Hash {
	return types.HashHeader(crypto.Keccak256, h)
}

// contentHash stands in for the teacher's real state trie root: a
// placeholder hash derived from the block's own content (number and hash),
// per §9's "no consensus engine" design note — EDR never proves state
// against a trie, so the root only needs to be stable and content-derived,
// not trie-verifiable.
func contentHash(number uint64, blockHash common.Hash) common.Hash {
	return crypto.Keccak256Hash(blockHash.Bytes(), uint64Bytes(number))
}

func bloomContributions(r *types.Receipt) [][]byte {
	var out [][]byte
	for _, l := range r.Logs {
		out = append(out, l.BloomContribution(func(b []byte) []byte { return crypto.Keccak256(b) })...)
	}
	return out
}

func uint64Bytes(n uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[7-i] = byte(n >> (8 * i))
	}
	return b
}
