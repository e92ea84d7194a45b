package vm

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/core/types"
)

// gasFunc computes the dynamic (non-constant) portion of an opcode's gas
// cost, given the frame's state just before execution. Returning
// ErrGasUintOverflow aborts the call.
type gasFunc func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error)

// memorySizeFunc computes the memory size (in bytes) an opcode's operands
// imply, so the interpreter can charge memory-expansion gas before running
// the operation.
type memorySizeFunc func(stack *Stack) (uint64, bool)

type operation struct {
	execute     executionFunc
	constantGas uint64
	dynamicGas  gasFunc
	minStack    int
	maxStack    int
	memorySize  memorySizeFunc
}

// JumpTable maps every opcode byte to its operation; unpopulated entries are
// treated as invalid instructions.
type JumpTable [256]*operation

func memSize1(pos int) memorySizeFunc {
	return func(stack *Stack) (uint64, bool) {
		if stack.Len() <= pos {
			return 0, false
		}
		return stack.Back(pos).Uint64(), true
	}
}

// memExpand returns a memorySizeFunc for ops taking (offset, size) at stack
// positions off and sz, returning the byte-aligned highest address touched.
func memExpand(off, sz int) memorySizeFunc {
	return func(stack *Stack) (uint64, bool) {
		if stack.Len() <= off || stack.Len() <= sz {
			return 0, false
		}
		size := stack.Back(sz)
		if size.IsZero() {
			return 0, true
		}
		offset := stack.Back(off)
		sum := new(uint256.Int).Add(offset, size)
		if !sum.IsUint64() {
			return 0, false
		}
		return sum.Uint64(), true
	}
}

func newBaseJumpTable() *JumpTable {
	tbl := &JumpTable{}
	set := func(op OpCode, o *operation) { tbl[op] = o }

	set(STOP, &operation{execute: opStop, constantGas: GasStop, minStack: 0, maxStack: 1024})
	set(ADD, &operation{execute: opAdd, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(MUL, &operation{execute: opMul, constantGas: GasFastStep, minStack: 2, maxStack: 1025})
	set(SUB, &operation{execute: opSub, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(DIV, &operation{execute: opDiv, constantGas: GasFastStep, minStack: 2, maxStack: 1025})
	set(SDIV, &operation{execute: opSdiv, constantGas: GasFastStep, minStack: 2, maxStack: 1025})
	set(MOD, &operation{execute: opMod, constantGas: GasFastStep, minStack: 2, maxStack: 1025})
	set(SMOD, &operation{execute: opSmod, constantGas: GasFastStep, minStack: 2, maxStack: 1025})
	set(ADDMOD, &operation{execute: opAddmod, constantGas: GasMidStep, minStack: 3, maxStack: 1026})
	set(MULMOD, &operation{execute: opMulmod, constantGas: GasMidStep, minStack: 3, maxStack: 1026})
	set(EXP, &operation{execute: opExp, constantGas: GasSlowStep, dynamicGas: gasExp, minStack: 2, maxStack: 1025})
	set(SIGNEXTEND, &operation{execute: opSignExtend, constantGas: GasFastStep, minStack: 2, maxStack: 1025})

	set(LT, &operation{execute: opLt, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(GT, &operation{execute: opGt, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(SLT, &operation{execute: opSlt, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(SGT, &operation{execute: opSgt, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(EQ, &operation{execute: opEq, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(ISZERO, &operation{execute: opIsZero, constantGas: GasFastestStep, minStack: 1, maxStack: 1024})
	set(AND, &operation{execute: opAnd, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(OR, &operation{execute: opOr, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(XOR, &operation{execute: opXor, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(NOT, &operation{execute: opNot, constantGas: GasFastestStep, minStack: 1, maxStack: 1024})
	set(BYTE, &operation{execute: opByte, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(SHL, &operation{execute: opSHL, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(SHR, &operation{execute: opSHR, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})
	set(SAR, &operation{execute: opSAR, constantGas: GasFastestStep, minStack: 2, maxStack: 1025})

	set(KECCAK256, &operation{execute: opKeccak256, constantGas: GasKeccak256, dynamicGas: gasKeccak256, memorySize: memExpand(0, 1), minStack: 2, maxStack: 1025})

	set(ADDRESS, &operation{execute: opAddress, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(BALANCE, &operation{execute: opBalance, constantGas: GasColdAccountAccess, minStack: 1, maxStack: 1024})
	set(ORIGIN, &operation{execute: opOrigin, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(CALLER, &operation{execute: opCaller, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(CALLVALUE, &operation{execute: opCallValue, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(CALLDATALOAD, &operation{execute: opCalldataLoad, constantGas: GasFastestStep, minStack: 1, maxStack: 1024})
	set(CALLDATASIZE, &operation{execute: opCalldataSize, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(CALLDATACOPY, &operation{execute: opCalldataCopy, constantGas: GasFastestStep, dynamicGas: gasCopy, memorySize: memExpand(0, 2), minStack: 3, maxStack: 1027})
	set(CODESIZE, &operation{execute: opCodeSize, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(CODECOPY, &operation{execute: opCodeCopy, constantGas: GasFastestStep, dynamicGas: gasCopy, memorySize: memExpand(0, 2), minStack: 3, maxStack: 1027})
	set(GASPRICE, &operation{execute: opGasPrice, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(EXTCODESIZE, &operation{execute: opExtcodesize, constantGas: GasColdAccountAccess, minStack: 1, maxStack: 1024})
	set(EXTCODECOPY, &operation{execute: opExtcodecopy, constantGas: GasColdAccountAccess, dynamicGas: gasCopy, memorySize: memExpand(1, 3), minStack: 4, maxStack: 1028})
	set(RETURNDATASIZE, &operation{execute: opReturndataSize, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(RETURNDATACOPY, &operation{execute: opReturndataCopy, constantGas: GasFastestStep, dynamicGas: gasCopy, memorySize: memExpand(0, 2), minStack: 3, maxStack: 1027})
	set(EXTCODEHASH, &operation{execute: opExtcodehash, constantGas: GasColdAccountAccess, minStack: 1, maxStack: 1024})

	set(BLOCKHASH, &operation{execute: opBlockhash, constantGas: GasExtStep, minStack: 1, maxStack: 1024})
	set(COINBASE, &operation{execute: opCoinbase, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(TIMESTAMP, &operation{execute: opTimestamp, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(NUMBER, &operation{execute: opNumber, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(PREVRANDAO, &operation{execute: opPrevRandao, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(GASLIMIT, &operation{execute: opGasLimit, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(CHAINID, &operation{execute: opChainID, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(SELFBALANCE, &operation{execute: opSelfBalance, constantGas: GasFastStep, minStack: 0, maxStack: 1023})
	set(BASEFEE, &operation{execute: opBaseFee, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})
	set(BLOBHASH, &operation{execute: opBlobHash, constantGas: GasFastestStep, minStack: 1, maxStack: 1024})
	set(BLOBBASEFEE, &operation{execute: opBlobBaseFee, constantGas: GasQuickStep, minStack: 0, maxStack: 1023})

	set(POP, &operation{execute: opPop, constantGas: GasPop, minStack: 1, maxStack: 1025})
	set(MLOAD, &operation{execute: opMload, constantGas: GasMload, memorySize: memSizeWord(0), minStack: 1, maxStack: 1024})
	set(MSTORE, &operation{execute: opMstore, constantGas: GasMstore, memorySize: memSizeWord(0), minStack: 2, maxStack: 1026})
	set(MSTORE8, &operation{execute: opMstore8, constantGas: GasMstore8, memorySize: memSize1(0), minStack: 2, maxStack: 1026})
	set(SLOAD, &operation{execute: opSload, constantGas: GasColdSload, dynamicGas: gasSload, minStack: 1, maxStack: 1024})
	set(SSTORE, &operation{execute: opSstore, dynamicGas: gasSstore, minStack: 2, maxStack: 1026})
	set(JUMP, &operation{execute: opJump, constantGas: GasJump, minStack: 1, maxStack: 1025})
	set(JUMPI, &operation{execute: opJumpi, constantGas: GasJumpi, minStack: 2, maxStack: 1026})
	set(PC, &operation{execute: opPc, constantGas: GasPc, minStack: 0, maxStack: 1023})
	set(MSIZE, &operation{execute: opMsize, constantGas: GasMsize, minStack: 0, maxStack: 1023})
	set(GAS, &operation{execute: opGas, constantGas: GasGas, minStack: 0, maxStack: 1023})
	set(JUMPDEST, &operation{execute: opJumpdest, constantGas: GasJumpDest, minStack: 0, maxStack: 1024})
	set(TLOAD, &operation{execute: opTload, constantGas: GasWarmStorageRead, minStack: 1, maxStack: 1024})
	set(TSTORE, &operation{execute: opTstore, constantGas: GasWarmStorageRead, minStack: 2, maxStack: 1026})
	set(MCOPY, &operation{execute: opMcopy, constantGas: GasFastestStep, dynamicGas: gasMcopy, memorySize: memExpandMax3(), minStack: 3, maxStack: 1027})

	set(PUSH0, &operation{execute: opPush0, constantGas: GasPush0, minStack: 0, maxStack: 1023})
	for i := 1; i <= 32; i++ {
		set(PUSH1+OpCode(i-1), &operation{execute: makePush(uint64(i)), constantGas: GasPush, minStack: 0, maxStack: 1023})
	}
	for i := 1; i <= 16; i++ {
		set(DUP1+OpCode(i-1), &operation{execute: makeDup(i), constantGas: GasDup, minStack: i, maxStack: stackLimit - 1})
		set(SWAP1+OpCode(i-1), &operation{execute: makeSwap(i), constantGas: GasSwap, minStack: i + 1, maxStack: stackLimit})
	}
	for i := 0; i <= 4; i++ {
		set(LOG0+OpCode(i), &operation{execute: makeLog(i), constantGas: GasLog, dynamicGas: gasLog(i), memorySize: memExpand(0, 1), minStack: i + 2, maxStack: stackLimit + i + 2})
	}

	set(CREATE, &operation{execute: opCreate, constantGas: GasCreate, dynamicGas: gasCreate, memorySize: memExpand(1, 2), minStack: 3, maxStack: 1026})
	set(CALL, &operation{execute: opCall, constantGas: GasCallCold, dynamicGas: gasCall, memorySize: callMemSize(3, 4, 5, 6), minStack: 7, maxStack: 1030})
	set(CALLCODE, &operation{execute: opCallCode, constantGas: GasCallCold, dynamicGas: gasCall, memorySize: callMemSize(3, 4, 5, 6), minStack: 7, maxStack: 1030})
	set(RETURN, &operation{execute: opReturn, memorySize: memExpand(0, 1), minStack: 2, maxStack: 1026})
	set(DELEGATECALL, &operation{execute: opDelegateCall, constantGas: GasCallCold, dynamicGas: gasCall, memorySize: callMemSize(2, 3, 4, 5), minStack: 6, maxStack: 1029})
	set(CREATE2, &operation{execute: opCreate2, constantGas: GasCreate, dynamicGas: gasCreate2, memorySize: memExpand(1, 2), minStack: 4, maxStack: 1027})
	set(STATICCALL, &operation{execute: opStaticCall, constantGas: GasCallCold, dynamicGas: gasCall, memorySize: callMemSize(2, 3, 4, 5), minStack: 6, maxStack: 1029})
	set(REVERT, &operation{execute: opRevert, memorySize: memExpand(0, 1), minStack: 2, maxStack: 1026})
	set(INVALID, &operation{execute: opInvalid, minStack: 0, maxStack: 1024})
	set(SELFDESTRUCT, &operation{execute: opSelfdestruct, constantGas: GasSelfDestruct, dynamicGas: gasSelfdestruct, minStack: 1, maxStack: 1025})

	return tbl
}

func memSizeWord(off int) memorySizeFunc {
	return func(stack *Stack) (uint64, bool) {
		if stack.Len() <= off {
			return 0, false
		}
		return stack.Back(off).Uint64() + 32, true
	}
}

// callMemSize returns a memorySizeFunc covering both the input-data window
// and the output-data window a CALL-family opcode declares, since either may
// be the larger memory-expansion requirement.
func callMemSize(argsOff, argsSz, retOff, retSz int) memorySizeFunc {
	return func(stack *Stack) (uint64, bool) {
		if stack.Len() <= retSz {
			return 0, false
		}
		in := new(uint256.Int)
		if !stack.Back(argsSz).IsZero() {
			in.Add(stack.Back(argsOff), stack.Back(argsSz))
		}
		out := new(uint256.Int)
		if !stack.Back(retSz).IsZero() {
			out.Add(stack.Back(retOff), stack.Back(retSz))
		}
		if in.Lt(out) {
			in = out
		}
		if !in.IsUint64() {
			return 0, false
		}
		return in.Uint64(), true
	}
}

func memExpandMax3() memorySizeFunc {
	return func(stack *Stack) (uint64, bool) {
		if stack.Len() < 3 {
			return 0, false
		}
		dst, src, size := stack.Back(0), stack.Back(1), stack.Back(2)
		if size.IsZero() {
			return 0, true
		}
		a := new(uint256.Int).Add(dst, size)
		b := new(uint256.Int).Add(src, size)
		if a.Lt(b) {
			a = b
		}
		return a.Uint64(), true
	}
}

// hardfork-progressive construction mirrors the teacher's jump table, each
// tier copying the previous and overriding/adding opcodes introduced by that
// fork (§4.A).

func NewFrontierJumpTable() *JumpTable {
	tbl := newBaseJumpTable()
	for _, op := range []OpCode{
		DELEGATECALL, STATICCALL, RETURNDATASIZE, RETURNDATACOPY, REVERT,
		SHL, SHR, SAR, EXTCODEHASH, CREATE2, CHAINID, SELFBALANCE, BASEFEE,
		PUSH0, TLOAD, TSTORE, MCOPY, BLOBHASH, BLOBBASEFEE,
	} {
		tbl[op] = nil
	}
	return tbl
}

func NewHomesteadJumpTable() *JumpTable {
	tbl := *NewFrontierJumpTable()
	tbl[DELEGATECALL] = &operation{execute: opDelegateCall, constantGas: GasCallCold, dynamicGas: gasCall, memorySize: callMemSize(2, 3, 4, 5), minStack: 6, maxStack: 1029}
	return &tbl
}

func NewByzantiumJumpTable() *JumpTable {
	tbl := *NewHomesteadJumpTable()
	tbl[STATICCALL] = &operation{execute: opStaticCall, constantGas: GasCallCold, dynamicGas: gasCall, memorySize: callMemSize(2, 3, 4, 5), minStack: 6, maxStack: 1029}
	tbl[RETURNDATASIZE] = &operation{execute: opReturndataSize, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[RETURNDATACOPY] = &operation{execute: opReturndataCopy, constantGas: GasFastestStep, dynamicGas: gasCopy, memorySize: memExpand(0, 2), minStack: 3, maxStack: 1027}
	tbl[REVERT] = &operation{execute: opRevert, memorySize: memExpand(0, 1), minStack: 2, maxStack: 1026}
	return &tbl
}

func NewConstantinopleJumpTable() *JumpTable {
	tbl := *NewByzantiumJumpTable()
	tbl[SHL] = &operation{execute: opSHL, constantGas: GasFastestStep, minStack: 2, maxStack: 1025}
	tbl[SHR] = &operation{execute: opSHR, constantGas: GasFastestStep, minStack: 2, maxStack: 1025}
	tbl[SAR] = &operation{execute: opSAR, constantGas: GasFastestStep, minStack: 2, maxStack: 1025}
	tbl[EXTCODEHASH] = &operation{execute: opExtcodehash, constantGas: GasColdAccountAccess, minStack: 1, maxStack: 1024}
	tbl[CREATE2] = &operation{execute: opCreate2, constantGas: GasCreate, dynamicGas: gasCreate2, memorySize: memExpand(1, 2), minStack: 4, maxStack: 1027}
	return &tbl
}

func NewIstanbulJumpTable() *JumpTable {
	tbl := *NewConstantinopleJumpTable()
	tbl[CHAINID] = &operation{execute: opChainID, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	tbl[SELFBALANCE] = &operation{execute: opSelfBalance, constantGas: GasFastStep, minStack: 0, maxStack: 1023}
	tbl[SLOAD] = &operation{execute: opSload, constantGas: GasColdSload, dynamicGas: gasSload, minStack: 1, maxStack: 1024}
	tbl[SSTORE] = &operation{execute: opSstore, dynamicGas: gasSstore, minStack: 2, maxStack: 1026}
	return &tbl
}

func NewBerlinJumpTable() *JumpTable {
	tbl := *NewIstanbulJumpTable()
	// EIP-2929: access-list-aware cold/warm costs are applied dynamically in
	// gasSload/gasCall/etc, keyed off evm.ChainConfig hardfork checks.
	return &tbl
}

func NewLondonJumpTable() *JumpTable {
	tbl := *NewBerlinJumpTable()
	tbl[BASEFEE] = &operation{execute: opBaseFee, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	return &tbl
}

func NewParisJumpTable() *JumpTable {
	tbl := *NewLondonJumpTable()
	tbl[PREVRANDAO] = &operation{execute: opPrevRandao, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	return &tbl
}

func NewShanghaiJumpTable() *JumpTable {
	tbl := *NewParisJumpTable()
	tbl[PUSH0] = &operation{execute: opPush0, constantGas: GasPush0, minStack: 0, maxStack: 1023}
	return &tbl
}

func NewCancunJumpTable() *JumpTable {
	tbl := *NewShanghaiJumpTable()
	tbl[TLOAD] = &operation{execute: opTload, constantGas: GasWarmStorageRead, minStack: 1, maxStack: 1024}
	tbl[TSTORE] = &operation{execute: opTstore, constantGas: GasWarmStorageRead, minStack: 2, maxStack: 1026}
	tbl[MCOPY] = &operation{execute: opMcopy, constantGas: GasFastestStep, dynamicGas: gasMcopy, memorySize: memExpandMax3(), minStack: 3, maxStack: 1027}
	tbl[BLOBHASH] = &operation{execute: opBlobHash, constantGas: GasFastestStep, minStack: 1, maxStack: 1024}
	tbl[BLOBBASEFEE] = &operation{execute: opBlobBaseFee, constantGas: GasQuickStep, minStack: 0, maxStack: 1023}
	return &tbl
}

func NewPragueJumpTable() *JumpTable {
	tbl := *NewCancunJumpTable()
	return &tbl
}

// JumpTableForHardfork selects the jump table matching fork, mirroring the
// teacher's per-fork dispatch but over EDR's types.Hardfork enum.
func JumpTableForHardfork(fork types.Hardfork) *JumpTable {
	switch {
	case fork.AtLeast(types.Prague):
		return NewPragueJumpTable()
	case fork.AtLeast(types.Cancun):
		return NewCancunJumpTable()
	case fork.AtLeast(types.Shanghai):
		return NewShanghaiJumpTable()
	case fork.AtLeast(types.Paris):
		return NewParisJumpTable()
	case fork.AtLeast(types.London):
		return NewLondonJumpTable()
	case fork.AtLeast(types.Berlin):
		return NewBerlinJumpTable()
	case fork.AtLeast(types.Istanbul):
		return NewIstanbulJumpTable()
	case fork.AtLeast(types.Constantinople):
		return NewConstantinopleJumpTable()
	case fork.AtLeast(types.Byzantium):
		return NewByzantiumJumpTable()
	case fork.AtLeast(types.Homestead):
		return NewHomesteadJumpTable()
	default:
		return NewFrontierJumpTable()
	}
}
