// Package state implements EDR's world-state model: a stack of
// copy-on-write layers overlaid on a Loader fallback (§3, §4.C). Unlike the
// teacher's MemoryStateDB, which records a flat journal of undo entries and
// replays them backwards on revert, Overlay pushes a fresh layer per
// Snapshot() and simply drops it on RevertToSnapshot — revert cost is
// proportional to that layer's size, not to the whole transaction's history.
package state

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/crypto"
)

// Loader fetches account/storage/code data not yet present in any overlay
// layer. The live in-memory chain supplies a Loader backed by genesis
// allocations; a forked chain supplies fork.Cache (§4.F), which in turn may
// block the calling goroutine on a remote RPC fetch.
type Loader interface {
	LoadAccount(addr common.Address) (types.Account, bool)
	LoadStorage(addr common.Address, key common.Hash) common.Hash
	LoadCode(codeHash common.Hash) []byte
}

// emptyLoader never has anything cached; used for a from-genesis chain with
// no fork parent.
type emptyLoader struct{}

func (emptyLoader) LoadAccount(common.Address) (types.Account, bool) { return types.Account{}, false }
func (emptyLoader) LoadStorage(common.Address, common.Hash) common.Hash { return common.Hash{} }
func (emptyLoader) LoadCode(common.Hash) []byte { return nil }

// EmptyLoader is the zero-value Loader for chains with no fork parent.
var EmptyLoader Loader = emptyLoader{}

type accountDelta struct {
	account        types.Account
	accountTouched bool // true once this layer has written the account header
	code           []byte
	codeTouched    bool
	storage        map[common.Hash]common.Hash
	selfDestructed bool
	created        bool
}

func newAccountDelta() *accountDelta {
	return &accountDelta{storage: make(map[common.Hash]common.Hash)}
}

// layer is one entry of the overlay stack: the set of account/storage/log
// changes made since the Snapshot() that created it.
type layer struct {
	accounts map[common.Address]*accountDelta
	logs     []*types.Log
	refund   int64 // signed delta relative to the refund counter at layer creation
	access   map[common.Address]map[common.Hash]bool // nil entry in map = address only
	transient map[common.Address]map[common.Hash]common.Hash
}

func newLayer() *layer {
	return &layer{accounts: make(map[common.Address]*accountDelta)}
}

func (l *layer) delta(addr common.Address) *accountDelta {
	d, ok := l.accounts[addr]
	if !ok {
		d = newAccountDelta()
		l.accounts[addr] = d
	}
	return d
}

// Overlay is the concrete vm.StateDB: a base Loader plus a stack of layers.
// Layer 0 is always present (the "committed" layer for the current block);
// Snapshot/RevertToSnapshot push/pop layers above it.
type Overlay struct {
	loader Loader
	layers []*layer

	refundTotal uint64
	txLogs      map[common.Hash][]*types.Log
	codeByHash  map[common.Hash][]byte
}

// NewOverlay constructs an overlay backed by loader (pass state.EmptyLoader
// for a from-genesis chain).
func NewOverlay(loader Loader) *Overlay {
	if loader == nil {
		loader = EmptyLoader
	}
	return &Overlay{
		loader:     loader,
		layers:     []*layer{newLayer()},
		txLogs:     make(map[common.Hash][]*types.Log),
		codeByHash: make(map[common.Hash][]byte),
	}
}

func (o *Overlay) top() *layer { return o.layers[len(o.layers)-1] }

// Snapshot pushes a new layer and returns its id (the layer's index).
func (o *Overlay) Snapshot() int {
	o.layers = append(o.layers, newLayer())
	return len(o.layers) - 1
}

// RevertToSnapshot drops every layer from id to the top, discarding their
// changes. Reverted refund deltas and access-list/transient additions are
// simply dropped along with the layer that recorded them.
func (o *Overlay) RevertToSnapshot(id int) {
	if id < 1 || id >= len(o.layers) {
		return
	}
	o.layers = o.layers[:id]
}

// Commit folds every layer above the base into layer 0, making the current
// overlay state permanent (called at end of block assembly, §4.H).
func (o *Overlay) Commit() {
	base := o.layers[0]
	for _, l := range o.layers[1:] {
		for addr, d := range l.accounts {
			bd := base.delta(addr)
			if d.accountTouched {
				bd.account = d.account
				bd.accountTouched = true
			}
			if d.codeTouched {
				bd.code = d.code
				bd.codeTouched = true
			}
			if d.selfDestructed {
				bd.selfDestructed = true
			}
			if d.created {
				bd.created = true
			}
			for k, v := range d.storage {
				bd.storage[k] = v
			}
		}
	}
	o.layers = o.layers[:1]
}

// lookup walks the layer stack top-down, then falls back to loader.
func (o *Overlay) account(addr common.Address) (types.Account, bool) {
	for i := len(o.layers) - 1; i >= 0; i-- {
		if d, ok := o.layers[i].accounts[addr]; ok {
			if d.selfDestructed {
				return types.EmptyAccount(), false
			}
			if d.accountTouched {
				return d.account, true
			}
		}
	}
	return o.loader.LoadAccount(addr)
}

func (o *Overlay) mutate(addr common.Address, fn func(*accountDelta, types.Account)) {
	acc, ok := o.account(addr)
	if !ok {
		acc = types.EmptyAccount()
	}
	d := o.top().delta(addr)
	fn(d, acc)
	d.accountTouched = true
}

func (o *Overlay) CreateAccount(addr common.Address) {
	o.mutate(addr, func(d *accountDelta, acc types.Account) {
		d.account = types.EmptyAccount()
		d.created = true
	})
}

func (o *Overlay) SubBalance(addr common.Address, amount *uint256.Int) {
	o.mutate(addr, func(d *accountDelta, acc types.Account) {
		acc.Balance = new(uint256.Int).Sub(acc.Balance, amount)
		d.account = acc
	})
}

func (o *Overlay) AddBalance(addr common.Address, amount *uint256.Int) {
	o.mutate(addr, func(d *accountDelta, acc types.Account) {
		acc.Balance = new(uint256.Int).Add(acc.Balance, amount)
		d.account = acc
	})
}

func (o *Overlay) GetBalance(addr common.Address) *uint256.Int {
	acc, _ := o.account(addr)
	if acc.Balance == nil {
		return new(uint256.Int)
	}
	return acc.Balance
}

func (o *Overlay) GetNonce(addr common.Address) uint64 {
	acc, _ := o.account(addr)
	return acc.Nonce
}

func (o *Overlay) SetNonce(addr common.Address, nonce uint64) {
	o.mutate(addr, func(d *accountDelta, acc types.Account) {
		acc.Nonce = nonce
		d.account = acc
	})
}

func (o *Overlay) GetCode(addr common.Address) []byte {
	for i := len(o.layers) - 1; i >= 0; i-- {
		if d, ok := o.layers[i].accounts[addr]; ok && d.codeTouched {
			return d.code
		}
	}
	acc, ok := o.account(addr)
	if !ok || acc.CodeHash == types.EmptyCodeHash {
		return nil
	}
	if c, ok := o.codeByHash[acc.CodeHash]; ok {
		return c
	}
	return o.loader.LoadCode(acc.CodeHash)
}

func (o *Overlay) SetCode(addr common.Address, code []byte) {
	hash := crypto.Keccak256Hash(code)
	o.codeByHash[hash] = code
	o.mutate(addr, func(d *accountDelta, acc types.Account) {
		acc.CodeHash = hash
		d.account = acc
		d.code = code
		d.codeTouched = true
	})
}

func (o *Overlay) GetCodeHash(addr common.Address) common.Hash {
	acc, ok := o.account(addr)
	if !ok {
		return common.Hash{}
	}
	return acc.CodeHash
}

func (o *Overlay) GetCodeSize(addr common.Address) int { return len(o.GetCode(addr)) }

func (o *Overlay) SelfDestruct(addr common.Address) {
	o.top().delta(addr).selfDestructed = true
}

func (o *Overlay) HasSelfDestructed(addr common.Address) bool {
	for i := len(o.layers) - 1; i >= 0; i-- {
		if d, ok := o.layers[i].accounts[addr]; ok && d.selfDestructed {
			return true
		}
	}
	return false
}

func (o *Overlay) GetState(addr common.Address, key common.Hash) common.Hash {
	for i := len(o.layers) - 1; i >= 0; i-- {
		if d, ok := o.layers[i].accounts[addr]; ok {
			if v, ok := d.storage[key]; ok {
				return v
			}
		}
	}
	return o.loader.LoadStorage(addr, key)
}

func (o *Overlay) SetState(addr common.Address, key, value common.Hash) {
	o.top().delta(addr).storage[key] = value
}

// GetCommittedState returns the value as of the start of the current
// top-of-stack layer, i.e. ignoring any writes made within it — used by the
// EIP-2200/3529 SSTORE gas-refund calculation.
func (o *Overlay) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	for i := len(o.layers) - 2; i >= 0; i-- {
		if d, ok := o.layers[i].accounts[addr]; ok {
			if v, ok := d.storage[key]; ok {
				return v
			}
		}
	}
	return o.loader.LoadStorage(addr, key)
}

func (o *Overlay) Exist(addr common.Address) bool {
	_, ok := o.account(addr)
	return ok
}

func (o *Overlay) Empty(addr common.Address) bool {
	acc, ok := o.account(addr)
	if !ok {
		return true
	}
	return acc.IsEmpty()
}

func (o *Overlay) AddLog(log *types.Log) {
	o.top().logs = append(o.top().logs, log)
	o.txLogs[log.TxHash] = append(o.txLogs[log.TxHash], log)
}

func (o *Overlay) GetLogs(txHash common.Hash) []*types.Log { return o.txLogs[txHash] }

func (o *Overlay) AddRefund(gas uint64) { o.top().refund += int64(gas) }

func (o *Overlay) SubRefund(gas uint64) { o.top().refund -= int64(gas) }

// GetRefund sums the per-layer refund deltas across the whole stack, so a
// reverted inner call's refund contribution disappears with its layer.
func (o *Overlay) GetRefund() uint64 {
	var total int64
	for _, l := range o.layers {
		total += l.refund
	}
	if total < 0 {
		return 0
	}
	return uint64(total)
}

func (o *Overlay) AddAddressToAccessList(addr common.Address) {
	l := o.top()
	if l.access == nil {
		l.access = make(map[common.Address]map[common.Hash]bool)
	}
	if _, ok := l.access[addr]; !ok {
		l.access[addr] = nil
	}
}

func (o *Overlay) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	l := o.top()
	if l.access == nil {
		l.access = make(map[common.Address]map[common.Hash]bool)
	}
	slots, ok := l.access[addr]
	if !ok || slots == nil {
		slots = make(map[common.Hash]bool)
		l.access[addr] = slots
	}
	slots[slot] = true
}

func (o *Overlay) AddressInAccessList(addr common.Address) bool {
	for i := len(o.layers) - 1; i >= 0; i-- {
		if _, ok := o.layers[i].access[addr]; ok {
			return true
		}
	}
	return false
}

func (o *Overlay) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	addrOK := false
	for i := len(o.layers) - 1; i >= 0; i-- {
		slots, ok := o.layers[i].access[addr]
		if !ok {
			continue
		}
		addrOK = true
		if slots != nil && slots[slot] {
			return true, true
		}
	}
	return addrOK, false
}

func (o *Overlay) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	for i := len(o.layers) - 1; i >= 0; i-- {
		if m, ok := o.layers[i].transient[addr]; ok {
			if v, ok := m[key]; ok {
				return v
			}
		}
	}
	return common.Hash{}
}

func (o *Overlay) SetTransientState(addr common.Address, key, value common.Hash) {
	l := o.top()
	if l.transient == nil {
		l.transient = make(map[common.Address]map[common.Hash]common.Hash)
	}
	m, ok := l.transient[addr]
	if !ok {
		m = make(map[common.Hash]common.Hash)
		l.transient[addr] = m
	}
	m[key] = value
}

// ClearTransient discards all transient storage; called between
// transactions, since EIP-1153 scopes transient storage to one transaction.
func (o *Overlay) ClearTransient() {
	for _, l := range o.layers {
		l.transient = nil
	}
}
