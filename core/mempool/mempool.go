// Package mempool implements the pending transaction pool (§4.F): per-sender
// nonce-ordered queues, promotion of queued transactions to pending once
// their nonce becomes sequential with on-chain state, and the price-sorted
// view the miner drains when assembling a block.
//
// Grounded on the teacher's pkg/txpool/txpool.go (txLookup/txSortedList/
// pending-vs-queue split, promoteQueue, Reset-after-block), adapted to
// recover the real sender via core/types.Signer instead of the teacher's
// hash-prefix placeholder, and to uint256-based values throughout.
package mempool

import (
	"errors"
	"sort"
	"sync"

	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
)

var (
	ErrAlreadyKnown      = errors.New("mempool: transaction already known")
	ErrNonceTooLow       = errors.New("mempool: nonce too low")
	ErrGasLimit          = errors.New("mempool: exceeds block gas limit")
	ErrInsufficientFunds = errors.New("mempool: insufficient funds for gas * price + value")
	ErrIntrinsicGas      = errors.New("mempool: intrinsic gas too low")
	ErrPoolFull          = errors.New("mempool: transaction pool is full")
	ErrOversizedData     = errors.New("mempool: oversized data")
	ErrUnderpriced       = errors.New("mempool: transaction underpriced")
	ErrInvalidSender     = errors.New("mempool: could not recover sender")
)

// Config holds pool admission limits, mirroring the teacher's txpool.Config.
type Config struct {
	MaxSize       int
	MaxPerSender  int
	MinGasPrice   *uint256.Int
	BlockGasLimit uint64
}

// DefaultConfig returns sensible defaults for a local development pool.
func DefaultConfig() Config {
	return Config{
		MaxSize:       4096,
		MaxPerSender:  1024,
		MinGasPrice:   uint256.NewInt(1),
		BlockGasLimit: 30_000_000,
	}
}

// StateReader is the minimal account view the pool needs for admission and
// reset decisions (core/state.Overlay satisfies this).
type StateReader interface {
	GetNonce(addr common.Address) uint64
	GetBalance(addr common.Address) *uint256.Int
}

// sortedList maintains one sender's transactions ordered by nonce.
type sortedList struct {
	items []*types.Transaction
}

func (l *sortedList) add(tx *types.Transaction) {
	idx := sort.Search(len(l.items), func(i int) bool { return l.items[i].Nonce >= tx.Nonce })
	if idx < len(l.items) && l.items[idx].Nonce == tx.Nonce {
		l.items[idx] = tx // replace: last-seen wins for a given (sender, nonce)
		return
	}
	l.items = append(l.items, nil)
	copy(l.items[idx+1:], l.items[idx:])
	l.items[idx] = tx
}

func (l *sortedList) remove(nonce uint64) bool {
	for i, tx := range l.items {
		if tx.Nonce == nonce {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return true
		}
	}
	return false
}

func (l *sortedList) len() int { return len(l.items) }

// ready returns the prefix of items whose nonces run sequentially from base.
func (l *sortedList) ready(base uint64) []*types.Transaction {
	var out []*types.Transaction
	expect := base
	for _, tx := range l.items {
		if tx.Nonce != expect {
			break
		}
		out = append(out, tx)
		expect++
	}
	return out
}

// Pool is a per-sender, nonce-ordered pending transaction pool.
type Pool struct {
	config Config
	state  StateReader
	signer types.Signer

	mu      sync.RWMutex
	pending map[common.Address]*sortedList
	queue   map[common.Address]*sortedList
	lookup  map[common.Hash]*types.Transaction
	hashFn  func(*types.Transaction) common.Hash
}

// New creates a pool that recovers senders with signer and hashes
// transactions with hashFn (types.HashTransaction).
func New(config Config, state StateReader, signer types.Signer, hashFn func(*types.Transaction) common.Hash) *Pool {
	return &Pool{
		config:  config,
		state:   state,
		signer:  signer,
		pending: make(map[common.Address]*sortedList),
		queue:   make(map[common.Address]*sortedList),
		lookup:  make(map[common.Hash]*types.Transaction),
		hashFn:  hashFn,
	}
}

// Add admits tx into the pool, placing it in the pending or queued set
// depending on whether its nonce is immediately processable.
func (p *Pool) Add(tx *types.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := tx.Hash(p.hashFn)
	if _, ok := p.lookup[hash]; ok {
		return ErrAlreadyKnown
	}
	if len(p.lookup) >= p.config.MaxSize {
		return ErrPoolFull
	}
	if err := p.validate(tx); err != nil {
		return err
	}

	from, err := p.signer.Sender(tx)
	if err != nil {
		return ErrInvalidSender
	}

	p.lookup[hash] = tx

	stateNonce := p.state.GetNonce(from)
	if tx.Nonce < stateNonce {
		delete(p.lookup, hash)
		return ErrNonceTooLow
	}

	if tx.Nonce == stateNonce {
		p.addPending(from, tx)
	} else {
		p.addQueue(from, tx)
	}
	p.promote(from)
	return nil
}

func (p *Pool) validate(tx *types.Transaction) error {
	if tx.GasLimit > p.config.BlockGasLimit {
		return ErrGasLimit
	}
	if p.config.MinGasPrice != nil && tx.GasPrice != nil && tx.GasPrice.Lt(p.config.MinGasPrice) {
		return ErrUnderpriced
	}
	if len(tx.Data) > 128*1024 {
		return ErrOversizedData
	}
	return nil
}

func (p *Pool) addPending(from common.Address, tx *types.Transaction) {
	list, ok := p.pending[from]
	if !ok {
		list = &sortedList{}
		p.pending[from] = list
	}
	list.add(tx)
}

func (p *Pool) addQueue(from common.Address, tx *types.Transaction) {
	list, ok := p.queue[from]
	if !ok {
		list = &sortedList{}
		p.queue[from] = list
	}
	list.add(tx)
}

// promote moves queued transactions into pending once they become
// sequential with the sender's current pending (or on-chain) nonce.
func (p *Pool) promote(from common.Address) {
	queued, ok := p.queue[from]
	if !ok || queued.len() == 0 {
		return
	}

	var next uint64
	if pending, ok := p.pending[from]; ok && pending.len() > 0 {
		next = pending.items[pending.len()-1].Nonce + 1
	} else {
		next = p.state.GetNonce(from)
	}

	for _, tx := range queued.ready(next) {
		p.addPending(from, tx)
		queued.remove(tx.Nonce)
	}
	if queued.len() == 0 {
		delete(p.queue, from)
	}
}

// Pending returns all processable transactions grouped by sender, nonce-sorted.
func (p *Pool) Pending() map[common.Address][]*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make(map[common.Address][]*types.Transaction, len(p.pending))
	for addr, list := range p.pending {
		txs := make([]*types.Transaction, list.len())
		copy(txs, list.items)
		out[addr] = txs
	}
	return out
}

// PendingByPrice returns every pending transaction flattened and sorted by
// gas price descending, the order the miner drains the pool in.
func (p *Pool) PendingByPrice() []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var all []*types.Transaction
	for _, list := range p.pending {
		all = append(all, list.items...)
	}
	sort.Slice(all, func(i, j int) bool {
		pi, pj := effectivePrice(all[i]), effectivePrice(all[j])
		if pi == nil {
			return false
		}
		if pj == nil {
			return true
		}
		return pi.Cmp(pj) > 0
	})
	return all
}

func effectivePrice(tx *types.Transaction) *uint256.Int {
	if tx.GasPrice != nil {
		return tx.GasPrice
	}
	return tx.GasFeeCap
}

// Get retrieves a transaction by hash.
func (p *Pool) Get(hash common.Hash) *types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lookup[hash]
}

// Remove drops a transaction from the pool (e.g. after block inclusion).
func (p *Pool) Remove(hash common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash common.Hash) {
	tx, ok := p.lookup[hash]
	if !ok {
		return
	}
	delete(p.lookup, hash)

	from, err := p.signer.Sender(tx)
	if err != nil {
		return
	}
	if list, ok := p.pending[from]; ok {
		list.remove(tx.Nonce)
		if list.len() == 0 {
			delete(p.pending, from)
		}
	}
	if list, ok := p.queue[from]; ok {
		list.remove(tx.Nonce)
		if list.len() == 0 {
			delete(p.queue, from)
		}
	}
}

// Count returns the total number of transactions held by the pool.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.lookup)
}

// Reset drops every pending/queued transaction whose nonce has fallen below
// the sender's new on-chain nonce, then re-promotes queued transactions.
// Called by the miner after each block is mined.
func (p *Pool) Reset(state StateReader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state

	for addr, list := range p.pending {
		stateNonce := p.state.GetNonce(addr)
		var stale []uint64
		for _, tx := range list.items {
			if tx.Nonce < stateNonce {
				stale = append(stale, tx.Nonce)
				delete(p.lookup, tx.Hash(p.hashFn))
			}
		}
		for _, n := range stale {
			list.remove(n)
		}
		if list.len() == 0 {
			delete(p.pending, addr)
		}
	}
	for addr := range p.queue {
		p.promote(addr)
	}
}
