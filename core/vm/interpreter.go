package vm

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/crypto"
)

// ChainConfig carries the chain identity and the hardfork rules currently in
// effect, replacing the teacher's params.ChainConfig with the EDR
// chainspec-driven equivalent (§4.D).
type ChainConfig struct {
	ChainID  uint64
	Hardfork types.Hardfork
}

// BlockContext supplies block-scoped values opcodes read (COINBASE, NUMBER,
// TIMESTAMP, ...). It is provided fresh per block by the executor.
type BlockContext struct {
	GetHash     func(blockNumber uint64) common.Hash
	Coinbase    common.Address
	GasLimit    uint64
	BlockNumber uint64
	Time        uint64
	Random      common.Hash
	BaseFee     *uint256.Int
	BlobBaseFee *uint256.Int
}

// TxContext supplies transaction-scoped values (ORIGIN, GASPRICE, BLOBHASH).
type TxContext struct {
	Origin     common.Address
	GasPrice   *uint256.Int
	BlobHashes []common.Hash
	TxHash     common.Hash // stamped onto emitted logs (§4.E); zero for eth_call-style simulation
}

// Config tunes interpreter behavior independent of hardfork (§4.A/§9).
type Config struct {
	NoBaseFee         bool // skip EIP-1559 base-fee validation (useful for eth_call)
	MaxCodeSize       int
	MaxInitCodeSize   int
	ExtraEips         []int
	PrecompileOverlay map[common.Address]PrecompiledContract

	// CoverageSink, when non-zero, is a reserved address that instrumented
	// contracts CALL with a 32-byte tag to report a coverage hit (§4.I).
	// The interpreter intercepts calls to this address before any normal
	// dispatch, forwards the tag to CoverageCallback, and returns success
	// without touching state.
	CoverageSink     common.Address
	CoverageCallback func(tag []byte) error
}

const (
	defaultMaxCodeSize     = 24576
	defaultMaxInitCodeSize = 2 * 24576
	maxCallDepth           = 1024
)

// EVM executes EVM bytecode against a StateDB (§4.A). One EVM is created per
// top-level transaction or eth_call/estimateGas invocation; it is not safe
// for concurrent use.
type EVM struct {
	StateDB      StateDB
	BlockContext BlockContext
	TxContext    TxContext
	ChainConfig  ChainConfig
	Config       Config

	table           *JumpTable
	depth           int
	precompileTable map[common.Address]PrecompiledContract

	// Tracer, when non-nil, observes every call/create frame and opcode
	// step (§4.I). nil means no tracing overhead: every call site guards
	// on it before doing any work.
	Tracer Tracer
}

func (evm *EVM) precompile(addr common.Address) (PrecompiledContract, bool) {
	if pc, ok := evm.Config.PrecompileOverlay[addr]; ok {
		return pc, true
	}
	pc, ok := evm.precompileTable[addr]
	return pc, ok
}

// NewEVM constructs an EVM for the given block/tx context and hardfork.
func NewEVM(blockCtx BlockContext, txCtx TxContext, statedb StateDB, chainCfg ChainConfig, cfg Config) *EVM {
	if cfg.MaxCodeSize == 0 {
		cfg.MaxCodeSize = defaultMaxCodeSize
	}
	if cfg.MaxInitCodeSize == 0 {
		cfg.MaxInitCodeSize = defaultMaxInitCodeSize
	}
	return &EVM{
		StateDB:         statedb,
		BlockContext:    blockCtx,
		TxContext:       txCtx,
		ChainConfig:     chainCfg,
		Config:          cfg,
		table:           JumpTableForHardfork(chainCfg.Hardfork),
		precompileTable: PrecompilesForHardfork(chainCfg.Hardfork),
	}
}

// Interpreter drives one call frame's bytecode execution against evm.
type Interpreter struct {
	evm      *EVM
	table    *JumpTable
	readOnly bool
}

func NewInterpreter(evm *EVM, readOnly bool) *Interpreter {
	return &Interpreter{evm: evm, table: evm.table, readOnly: readOnly}
}

// Run executes contract's code starting at pc 0 and returns its output and
// any execution error (ErrExecutionReverted included — callers distinguish
// it from other errors to decide whether to keep the returned data).
func (in *Interpreter) Run(contract *Contract, input []byte) ([]byte, error) {
	contract.Input = input
	stack := NewStack()
	mem := NewMemory()
	ctx := &callCtx{contract: contract, stack: stack, memory: mem}

	var pc uint64
	for {
		op := contract.GetOp(pc)
		operation := in.table[op]
		if operation == nil || operation.execute == nil {
			return nil, ErrInvalidOpcode
		}
		if !stack.Require(operation.minStackNeeded()) {
			return nil, ErrStackUnderflow
		}
		if stack.Len() > operation.maxStackAllowed() {
			return nil, ErrStackOverflow
		}

		if operation.memorySize != nil {
			size, ok := operation.memorySize(stack)
			if ok {
				cost, err := memoryGasCost(mem, size)
				if err != nil {
					return nil, err
				}
				if !contract.UseGas(cost) {
					return nil, ErrOutOfGas
				}
				mem.Resize(toWordSize(size) * 32)
			}
		}

		if operation.constantGas > 0 && !contract.UseGas(operation.constantGas) {
			return nil, ErrOutOfGas
		}
		if operation.dynamicGas != nil {
			dyn, err := operation.dynamicGas(in.evm, contract, stack, mem, 0)
			if err != nil {
				return nil, err
			}
			if !contract.UseGas(dyn) {
				return nil, ErrOutOfGas
			}
		}

		var gasBefore uint64
		stepPC := pc
		if in.evm.Tracer != nil {
			gasBefore = contract.Gas
		}

		ret, err := operation.execute(&pc, in, ctx)

		if in.evm.Tracer != nil {
			cost := gasBefore - contract.Gas
			in.evm.Tracer.OnOpcode(stepPC, op, contract.Gas, cost, in.evm.depth, stack, mem, err)
		}

		if err != nil {
			switch err.(type) {
			case haltSignal:
				return ret, nil
			case pcAdvancedSignal:
				continue
			}
			if err == ErrExecutionReverted {
				return ret, err
			}
			return nil, err
		}
		pc++
	}
}

func (o *operation) minStackNeeded() int { return o.minStack }
func (o *operation) maxStackAllowed() int { return o.maxStack }

// Call executes a message call against addr's code (CALL/STATICCALL/etc).
func (evm *EVM) Call(caller common.Address, addr common.Address, input []byte, gas uint64, value *uint256.Int, readOnly bool) ([]byte, uint64, error) {
	if evm.Tracer != nil {
		evm.Tracer.OnEnter(evm.depth, CALL, caller, addr, input, gas, value)
	}
	ret, leftover, err := evm.call(caller, addr, input, gas, value, readOnly)
	if evm.Tracer != nil {
		evm.Tracer.OnExit(evm.depth, ret, gas-leftover, err)
	}
	return ret, leftover, err
}

func (evm *EVM) call(caller common.Address, addr common.Address, input []byte, gas uint64, value *uint256.Int, readOnly bool) ([]byte, uint64, error) {
	if evm.depth > maxCallDepth {
		return nil, gas, ErrDepthLimit
	}
	if value != nil && !value.IsZero() {
		if evm.StateDB.GetBalance(caller).Lt(value) {
			return nil, gas, ErrInsufficientBalance
		}
	}

	if (evm.Config.CoverageSink != common.Address{}) && addr == evm.Config.CoverageSink {
		if evm.Config.CoverageCallback != nil {
			if err := evm.Config.CoverageCallback(input); err != nil {
				return nil, gas, err
			}
		}
		return nil, gas, nil
	}

	if pc, ok := evm.precompile(addr); ok {
		requiredGas := pc.RequiredGas(input)
		if gas < requiredGas {
			return nil, 0, ErrOutOfGas
		}
		ret, err := pc.Run(input)
		if err != nil {
			return nil, 0, err
		}
		return ret, gas - requiredGas, nil
	}

	snapshot := evm.StateDB.Snapshot()
	if !evm.StateDB.Exist(addr) {
		evm.StateDB.CreateAccount(addr)
	}
	if value != nil && !value.IsZero() {
		evm.StateDB.SubBalance(caller, value)
		evm.StateDB.AddBalance(addr, value)
	}

	code := evm.StateDB.GetCode(addr)
	if len(code) == 0 {
		return nil, gas, nil
	}

	contract := NewContract(caller, addr, value, gas)
	contract.SetCallCode(&addr, evm.StateDB.GetCodeHash(addr), code)

	evm.depth++
	in := NewInterpreter(evm, readOnly)
	ret, err := in.Run(contract, input)
	evm.depth--

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		if err != ErrExecutionReverted {
			return nil, 0, err
		}
		return ret, contract.Gas, err
	}
	return ret, contract.Gas, nil
}

// Create executes contract-creation (CREATE/CREATE2).
func (evm *EVM) Create(caller common.Address, code []byte, gas uint64, value *uint256.Int, addr common.Address) ([]byte, common.Address, uint64, error) {
	if evm.Tracer != nil {
		evm.Tracer.OnEnter(evm.depth, CREATE, caller, addr, code, gas, value)
	}
	ret, retAddr, leftover, err := evm.create(caller, code, gas, value, addr)
	if evm.Tracer != nil {
		evm.Tracer.OnExit(evm.depth, ret, gas-leftover, err)
	}
	return ret, retAddr, leftover, err
}

func (evm *EVM) create(caller common.Address, code []byte, gas uint64, value *uint256.Int, addr common.Address) ([]byte, common.Address, uint64, error) {
	if evm.depth > maxCallDepth {
		return nil, common.Address{}, gas, ErrDepthLimit
	}
	if len(code) > evm.Config.MaxInitCodeSize {
		return nil, common.Address{}, gas, ErrMaxInitCodeSizeExceeded
	}
	if value != nil && !value.IsZero() && evm.StateDB.GetBalance(caller).Lt(value) {
		return nil, common.Address{}, gas, ErrInsufficientBalance
	}
	if evm.StateDB.GetNonce(caller) == ^uint64(0) {
		return nil, common.Address{}, gas, ErrNonceUintOverflow
	}

	if evm.StateDB.GetCodeHash(addr) != (common.Hash{}) || evm.StateDB.GetNonce(addr) != 0 {
		return nil, common.Address{}, gas, ErrContractAddressCollision
	}

	snapshot := evm.StateDB.Snapshot()
	evm.StateDB.CreateAccount(addr)
	evm.StateDB.SetNonce(addr, 1)
	if value != nil && !value.IsZero() {
		evm.StateDB.SubBalance(caller, value)
		evm.StateDB.AddBalance(addr, value)
	}

	contract := NewContract(caller, addr, value, gas)
	contract.SetCallCode(&addr, crypto.Keccak256Hash(code), code)

	evm.depth++
	in := NewInterpreter(evm, false)
	ret, err := in.Run(contract, nil)
	evm.depth--

	if err != nil {
		evm.StateDB.RevertToSnapshot(snapshot)
		return ret, addr, contract.Gas, err
	}

	if len(ret) > 0 && ret[0] == 0xEF {
		evm.StateDB.RevertToSnapshot(snapshot)
		return nil, addr, contract.Gas, ErrInvalidCode
	}
	if len(ret) > evm.Config.MaxCodeSize {
		evm.StateDB.RevertToSnapshot(snapshot)
		return nil, addr, contract.Gas, ErrMaxCodeSizeExceeded
	}
	createDataGas := uint64(len(ret)) * 200
	if !contract.UseGas(createDataGas) {
		evm.StateDB.RevertToSnapshot(snapshot)
		return nil, addr, contract.Gas, ErrOutOfGas
	}
	evm.StateDB.SetCode(addr, ret)
	return ret, addr, contract.Gas, nil
}
