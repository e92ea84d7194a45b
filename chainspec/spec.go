// Package chainspec implements EDR's chain-specification abstraction
// (§4.L): the polymorphic seam that parameterizes hardfork activation,
// base-fee parameters, supported transaction kinds, and predeployed
// contracts by chain variant, without the engine itself branching on chain
// identity anywhere else.
//
// Grounded on the teacher's core/vm.ForkRules — a flat bag of `Is*` booleans
// threaded into SelectPrecompiles/SelectJumpTable — generalized here into an
// interface because EDR needs three concrete variants (L1, OP, Generic)
// each with its own activation table and predeploy set, not one struct that
// would otherwise grow a field per chain family.
package chainspec

import (
	"errors"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/core/vm"
)

// ErrPredeployUnsupported is returned alongside the ABI-encoded
// Error(string) payload when a call targets a known-but-unimplemented
// predeploy, so callers treat it as an ordinary EVM revert (data present,
// execution unsuccessful) rather than a successful empty return.
var ErrPredeployUnsupported = errors.New("chainspec: predeploy call unsupported")

// BaseFeeParams is one entry of a chain's base-fee parameter history
// (§6 `baseFeeConfig`): the EIP-1559 denominator and elasticity multiplier
// in effect from its activation point onward.
type BaseFeeParams struct {
	Denominator          uint64
	ElasticityMultiplier uint64
}

// DefaultBaseFeeParams is London's original EIP-1559 parameterization.
var DefaultBaseFeeParams = BaseFeeParams{Denominator: 8, ElasticityMultiplier: 2}

// Activation pins a hardfork to a block number or timestamp condition (a
// spec may use either axis, matching how real mainnet activations migrated
// from block-keyed to time-keyed around the Paris/Shanghai boundary).
type Activation struct {
	BlockNumber *uint64
	Timestamp   *uint64
	Hardfork    types.Hardfork
}

// Predeploy is a canonical, chain-installed contract. Handler is nil for a
// predeploy EDR knows the name and address of but does not implement; calls
// to it return an ABI-encoded Error(string) rather than empty data, per
// §4.L ("Unknown predeploys return ... rather than empty").
type Predeploy struct {
	Name    string
	Address common.Address
	Handler func(input []byte) ([]byte, error)
}

// Spec is the capability bundle §9's "Polymorphism over chains" design note
// calls for: hardfork enum, activation map, transaction-variant set,
// predeploy list, and base-fee parameter history, implemented by L1, OP,
// and Generic without a shared growing struct.
type Spec interface {
	Name() string
	ChainID() uint64

	// Hardfork resolves the active hardfork at a given block number and
	// timestamp. Open Question (b): when both a block-number and a
	// timestamp activation could apply, the latest activation wins.
	Hardfork(blockNumber, timestamp uint64) types.Hardfork

	// ChainConfig adapts Hardfork into the vm package's hardfork-keyed
	// jump-table/precompile-table selection (§4.A supplement).
	ChainConfig(blockNumber, timestamp uint64) vm.ChainConfig

	BaseFeeParams(blockNumber, timestamp uint64) BaseFeeParams

	// SupportsTxType reports whether this chain variant admits a tx
	// envelope of the given type at all (independent of hardfork gating
	// within the executor).
	SupportsTxType(t types.TxType) bool

	// Predeploys lists every canonical predeploy this spec installs,
	// implemented or not (callers needing only the address set can range
	// over the map; ResolvePredeployCall handles the unsupported case).
	Predeploys() map[common.Address]Predeploy

	// ResolvePredeployCall dispatches a call against a predeploy address.
	// ok is false when addr is not one of this spec's predeploy addresses
	// at all, signalling the caller should fall through to ordinary
	// account/code lookup instead.
	ResolvePredeployCall(addr common.Address, input []byte) (output []byte, ok bool, err error)
}

// base implements the activation-table/base-fee-history/tx-type machinery
// shared by every concrete Spec; L1, OP, and Generic embed it and supply
// their own name, predeploy set, and tx-type policy.
type base struct {
	name          string
	chainID       uint64
	activations   []Activation
	baseFeeHist   []baseFeeActivation
	predeploys    map[common.Address]Predeploy
	allowedTxType func(types.TxType) bool
}

type baseFeeActivation struct {
	blockNumber *uint64
	params      BaseFeeParams
}

func (b *base) Name() string    { return b.name }
func (b *base) ChainID() uint64 { return b.chainID }

func (b *base) Hardfork(blockNumber, timestamp uint64) types.Hardfork {
	var best types.Hardfork
	var found bool
	for _, a := range b.activations {
		reached := false
		switch {
		case a.BlockNumber != nil && blockNumber >= *a.BlockNumber:
			reached = true
		case a.Timestamp != nil && timestamp >= *a.Timestamp:
			reached = true
		}
		if reached && (!found || a.Hardfork >= best) {
			best = a.Hardfork
			found = true
		}
	}
	return best
}

func (b *base) ChainConfig(blockNumber, timestamp uint64) vm.ChainConfig {
	return vm.ChainConfig{ChainID: b.chainID, Hardfork: b.Hardfork(blockNumber, timestamp)}
}

func (b *base) BaseFeeParams(blockNumber, _ uint64) BaseFeeParams {
	params := DefaultBaseFeeParams
	for _, a := range b.baseFeeHist {
		if a.blockNumber == nil || blockNumber >= *a.blockNumber {
			params = a.params
		}
	}
	return params
}

func (b *base) SupportsTxType(t types.TxType) bool {
	if b.allowedTxType == nil {
		return t != types.DepositTxType
	}
	return b.allowedTxType(t)
}

func (b *base) Predeploys() map[common.Address]Predeploy { return b.predeploys }

func (b *base) ResolvePredeployCall(addr common.Address, input []byte) ([]byte, bool, error) {
	p, ok := b.predeploys[addr]
	if !ok {
		return nil, false, nil
	}
	if p.Handler == nil {
		return encodeRevertString("Predeploy " + p.Name + " is not supported."), true, ErrPredeployUnsupported
	}
	out, err := p.Handler(input)
	return out, true, err
}

// mainnetActivations is the shared Frontier-through-Prague block/timestamp
// schedule every L1-family spec (L1 and Generic) starts from.
func mainnetActivations() []Activation {
	u := func(n uint64) *uint64 { return &n }
	return []Activation{
		{BlockNumber: u(0), Hardfork: types.Frontier},
		{BlockNumber: u(1_150_000), Hardfork: types.Homestead},
		{BlockNumber: u(2_463_000), Hardfork: types.TangerineWhistle},
		{BlockNumber: u(2_675_000), Hardfork: types.SpuriousDragon},
		{BlockNumber: u(4_370_000), Hardfork: types.Byzantium},
		{BlockNumber: u(7_280_000), Hardfork: types.Constantinople},
		{BlockNumber: u(7_280_000), Hardfork: types.Petersburg},
		{BlockNumber: u(9_069_000), Hardfork: types.Istanbul},
		{BlockNumber: u(12_244_000), Hardfork: types.Berlin},
		{BlockNumber: u(12_965_000), Hardfork: types.London},
		{BlockNumber: u(13_773_000), Hardfork: types.ArrowGlacier},
		{BlockNumber: u(15_050_000), Hardfork: types.GrayGlacier},
		{BlockNumber: u(15_537_394), Hardfork: types.Paris},
		{Timestamp: u(1_681_338_455), Hardfork: types.Shanghai},
		{Timestamp: u(1_710_338_135), Hardfork: types.Cancun},
		{Timestamp: u(1_746_000_000), Hardfork: types.Prague},
	}
}
