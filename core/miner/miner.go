// Package miner implements EDR's block-production policy (§4.H): deciding
// when a new block is assembled (automine, interval, or only on explicit
// evm_mine) and draining the mempool into it in priority order.
//
// Grounded on the teacher's pkg/miner (mining-mode switch, block-assembly
// loop) and pkg/rpc/websocket_handler.go (connection registry shape, reused
// here for the real subscription hub in hub.go), adapted onto
// core/blockchain.Chain/core/mempool.Pool instead of the teacher's
// consensus-engine-coupled miner.
package miner

import (
	"sync"
	"time"

	"github.com/edr-dev/edr/chainspec"
	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/blockchain"
	"github.com/edr-dev/edr/core/mempool"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/core/vm"
)

// Mode is one of the three block-production policies §4.H names.
type Mode int

const (
	// ModeManual only produces a block on an explicit Mine() call (the
	// provider's evm_mine RPC).
	ModeManual Mode = iota
	// ModeAuto mines one block per transaction admitted to the pool.
	ModeAuto
	// ModeInterval mines one block every configured duration, regardless of
	// whether the pool has pending transactions.
	ModeInterval
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeInterval:
		return "interval"
	default:
		return "manual"
	}
}

// Config configures block assembly.
type Config struct {
	Coinbase                     common.Address
	GasLimit                     uint64
	AllowBlocksWithSameTimestamp bool
	BaseFeeParams                chainspec.BaseFeeParams
}

// Clock abstracts wall-clock time so tests can control block timestamps
// without real sleeps; production code uses realClock (time.Now).
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Miner assembles blocks from core/mempool.Pool onto core/blockchain.Chain
// according to the configured Mode, and announces each mined block over its
// Hub.
type Miner struct {
	chain *blockchain.Chain
	pool  *mempool.Pool
	cfg   Config
	clock Clock
	hub   *Hub

	mu       sync.Mutex
	mode     Mode
	interval time.Duration
	stopCh   chan struct{}
	running  bool
}

// New creates a Miner in manual mode; call SetAutoMine or SetIntervalMining
// to switch policies.
func New(chain *blockchain.Chain, pool *mempool.Pool, cfg Config) *Miner {
	return &Miner{
		chain: chain,
		pool:  pool,
		cfg:   cfg,
		clock: realClock{},
		hub:   NewHub(),
		mode:  ModeManual,
	}
}

// Hub returns the miner's WebSocket subscription broadcaster, so the
// provider can mount it at an HTTP path (e.g. /ws).
func (m *Miner) Hub() *Hub { return m.hub }

// SetAutoMine switches between automine (one block per admitted tx) and
// manual mode, matching the evm_setAutomine RPC.
func (m *Miner) SetAutoMine(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopIntervalLocked()
	if on {
		m.mode = ModeAuto
	} else {
		m.mode = ModeManual
	}
}

// SetIntervalMining switches to interval mode with the given period, or
// back to manual if millis is 0, matching evm_setIntervalMining.
func (m *Miner) SetIntervalMining(millis uint64) {
	m.mu.Lock()
	m.stopIntervalLocked()
	if millis == 0 {
		m.mode = ModeManual
		m.mu.Unlock()
		return
	}
	m.mode = ModeInterval
	m.interval = time.Duration(millis) * time.Millisecond
	stop := make(chan struct{})
	m.stopCh = stop
	m.running = true
	interval := m.interval
	m.mu.Unlock()

	go m.intervalLoop(interval, stop)
}

// stopIntervalLocked stops any running interval-mining goroutine. Caller
// must hold m.mu.
func (m *Miner) stopIntervalLocked() {
	if m.running {
		close(m.stopCh)
		m.running = false
	}
}

// Stop halts any background interval-mining loop, releasing its timer
// (§5: "interval mining cancellable by destroying provider, draining
// outstanding work, releasing timer").
func (m *Miner) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopIntervalLocked()
}

func (m *Miner) intervalLoop(interval time.Duration, stop chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Mine()
		case <-stop:
			return
		}
	}
}

// NotifyTransactionAdded is called by the provider after a transaction is
// admitted to the pool; in automine mode it triggers an immediate one-
// transaction-per-block mining pass.
func (m *Miner) NotifyTransactionAdded() {
	m.mu.Lock()
	mode := m.mode
	m.mu.Unlock()
	if mode == ModeAuto {
		m.Mine()
	}
}

// Mine assembles and applies one block from the current pending pool,
// regardless of mode (the provider's explicit evm_mine RPC always routes
// here). A block is mined even when the pending pool is empty, matching
// Hardhat's evm_mine contract.
func (m *Miner) Mine() (*blockchain.BlockResult, error) {
	return m.MineWithTraces(vm.Config{}, nil)
}

// MineWithTraces is Mine with an interpreter Config shared across the
// mined block's transactions and an optional per-transaction Tracer
// factory, letting the provider attach a trace.Recorder/GasReportRecorder
// to each transaction as it is mined (§4.I) instead of replaying it later.
func (m *Miner) MineWithTraces(cfg vm.Config, tracerFor func(tx *types.Transaction) vm.Tracer) (*blockchain.BlockResult, error) {
	txs := m.pool.PendingByPrice()
	if m.CurrentMode() == ModeAuto && len(txs) > 1 {
		// Automine mines one block per transaction (§4.H); a single
		// mining pass only ever includes the head-of-queue transaction.
		txs = txs[:1]
	}

	header := m.nextHeader()
	result, err := m.chain.ApplyBlockWithConfig(header, txs, cfg, tracerFor)
	if err != nil {
		return nil, err
	}

	m.pool.Reset(m.chain.State())
	m.announce(result)
	return result, nil
}

// CurrentMode reports the miner's active mode.
func (m *Miner) CurrentMode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Miner) nextHeader() *types.Header {
	parent := m.chain.Head().Header

	timestamp := uint64(m.clock.Now().Unix())
	if !m.cfg.AllowBlocksWithSameTimestamp && timestamp <= parent.Timestamp {
		timestamp = parent.Timestamp + 1
	}

	header := &types.Header{
		Timestamp: timestamp,
		GasLimit:  m.cfg.GasLimit,
		Miner:     m.cfg.Coinbase,
	}
	if parent.BaseFee != nil {
		header.BaseFee = computeBaseFee(parent, m.cfg.BaseFeeParams)
	}
	return header
}

func (m *Miner) announce(result *blockchain.BlockResult) {
	m.hub.Broadcast(Event{Subscription: "newHeads", Result: result.Block.Header})
	for _, r := range result.Receipts {
		for _, l := range r.Logs {
			m.hub.Broadcast(Event{Subscription: "logs", Result: l})
		}
	}
}
