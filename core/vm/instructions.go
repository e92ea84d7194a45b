package vm

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/crypto"
)

// executionFunc implements one opcode's behavior against the current call
// frame. pc is a pointer so JUMP/JUMPI can redirect control flow.
type executionFunc func(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error)

// callCtx bundles the per-frame mutable state an executionFunc needs.
type callCtx struct {
	contract *Contract
	stack    *Stack
	memory   *Memory
	rdata    []byte // return data from the most recent child call
}

// haltSignal is returned by STOP/RETURN/SELFDESTRUCT to unwind the Run loop
// without it being treated as a real execution error.
type haltSignal struct{}

func (haltSignal) Error() string { return "vm: halt" }

var errStopToken error = haltSignal{}

// pcAdvancedSignal signals the Run loop that pc was already advanced by this
// opcode (JUMPI's not-taken branch), so the generic pc++ should be skipped.
type pcAdvancedSignal struct{}

func (pcAdvancedSignal) Error() string { return "vm: pc already advanced" }

var errPCAlreadyAdvanced error = pcAdvancedSignal{}

func opStop(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) { return nil, errStopToken }

func opAdd(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	y.Add(x, y)
	return nil, nil
}

func opMul(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	y.Mul(x, y)
	return nil, nil
}

func opSub(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	y.Sub(x, y)
	return nil, nil
}

func opDiv(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	y.Div(x, y)
	return nil, nil
}

func opSdiv(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	y.SDiv(x, y)
	return nil, nil
}

func opMod(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	y.Mod(x, y)
	return nil, nil
}

func opSmod(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	y.SMod(x, y)
	return nil, nil
}

func opAddmod(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y, z := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Peek()
	z.AddMod(x, y, z)
	return nil, nil
}

func opMulmod(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y, z := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Peek()
	z.MulMod(x, y, z)
	return nil, nil
}

func opExp(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	base, exponent := ctx.stack.Pop(), ctx.stack.Peek()
	exponent.Exp(base, exponent)
	return nil, nil
}

func opSignExtend(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	back, num := ctx.stack.Pop(), ctx.stack.Peek()
	num.ExtendSign(num, back)
	return nil, nil
}

func opLt(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	if x.Lt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opGt(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	if x.Gt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSlt(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	if x.Slt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opSgt(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	if x.Sgt(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opEq(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	if x.Eq(y) {
		y.SetOne()
	} else {
		y.Clear()
	}
	return nil, nil
}

func opIsZero(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x := ctx.stack.Peek()
	if x.IsZero() {
		x.SetOne()
	} else {
		x.Clear()
	}
	return nil, nil
}

func opAnd(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	y.And(x, y)
	return nil, nil
}

func opOr(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	y.Or(x, y)
	return nil, nil
}

func opXor(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x, y := ctx.stack.Pop(), ctx.stack.Peek()
	y.Xor(x, y)
	return nil, nil
}

func opNot(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x := ctx.stack.Peek()
	x.Not(x)
	return nil, nil
}

func opByte(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	th, val := ctx.stack.Pop(), ctx.stack.Peek()
	val.Byte(th)
	return nil, nil
}

func opSHL(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	shift, value := ctx.stack.Pop(), ctx.stack.Peek()
	if shift.LtUint64(256) {
		value.Lsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil, nil
}

func opSHR(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	shift, value := ctx.stack.Pop(), ctx.stack.Peek()
	if shift.LtUint64(256) {
		value.Rsh(value, uint(shift.Uint64()))
	} else {
		value.Clear()
	}
	return nil, nil
}

func opSAR(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	shift, value := ctx.stack.Pop(), ctx.stack.Peek()
	value.SRsh(value, uint(minUint64(shift.Uint64(), 256)))
	return nil, nil
}

func minUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func opKeccak256(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	offset, size := ctx.stack.Pop(), ctx.stack.Peek()
	data := ctx.memory.GetPtr(int64(offset.Uint64()), int64(size.Uint64()))
	size.SetBytes(crypto.Keccak256(data))
	return nil, nil
}

func opAddress(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(new(uint256.Int).SetBytes(ctx.contract.Address.Bytes()))
	return nil, nil
}

func opBalance(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	slot := ctx.stack.Peek()
	addr := common.BytesToAddress(slot.Bytes())
	slot.Set(in.evm.StateDB.GetBalance(addr))
	return nil, nil
}

func opOrigin(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(new(uint256.Int).SetBytes(in.evm.TxContext.Origin.Bytes()))
	return nil, nil
}

func opCaller(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(new(uint256.Int).SetBytes(ctx.contract.CallerAddress.Bytes()))
	return nil, nil
}

func opCallValue(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(new(uint256.Int).Set(ctx.contract.Value))
	return nil, nil
}

func opCalldataLoad(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	x := ctx.stack.Peek()
	x.SetBytes(getData(ctx.contract.Input, x.Uint64(), 32))
	return nil, nil
}

func opCalldataSize(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(uint256.NewInt(uint64(len(ctx.contract.Input))))
	return nil, nil
}

func opCalldataCopy(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	memOffset, dataOffset, size := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()
	data := getData(ctx.contract.Input, dataOffset.Uint64(), size.Uint64())
	ctx.memory.Set(memOffset.Uint64(), size.Uint64(), data)
	return nil, nil
}

func opCodeSize(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(uint256.NewInt(uint64(len(ctx.contract.Code))))
	return nil, nil
}

func opCodeCopy(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	memOffset, codeOffset, size := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()
	data := getData(ctx.contract.Code, codeOffset.Uint64(), size.Uint64())
	ctx.memory.Set(memOffset.Uint64(), size.Uint64(), data)
	return nil, nil
}

func opGasPrice(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(new(uint256.Int).Set(in.evm.TxContext.GasPrice))
	return nil, nil
}

func opExtcodesize(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	slot := ctx.stack.Peek()
	addr := common.BytesToAddress(slot.Bytes())
	slot.SetUint64(uint64(in.evm.StateDB.GetCodeSize(addr)))
	return nil, nil
}

func opExtcodecopy(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	addrWord, memOffset, codeOffset, size := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()
	addr := common.BytesToAddress(addrWord.Bytes())
	code := in.evm.StateDB.GetCode(addr)
	data := getData(code, codeOffset.Uint64(), size.Uint64())
	ctx.memory.Set(memOffset.Uint64(), size.Uint64(), data)
	return nil, nil
}

func opExtcodehash(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	slot := ctx.stack.Peek()
	addr := common.BytesToAddress(slot.Bytes())
	if !in.evm.StateDB.Exist(addr) || in.evm.StateDB.Empty(addr) {
		slot.Clear()
		return nil, nil
	}
	slot.SetBytes(in.evm.StateDB.GetCodeHash(addr).Bytes())
	return nil, nil
}

func opReturndataSize(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(uint256.NewInt(uint64(len(ctx.rdata))))
	return nil, nil
}

func opReturndataCopy(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	memOffset, dataOffset, size := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()
	end := new(uint256.Int).Add(dataOffset, size)
	if !end.IsUint64() || end.Uint64() > uint64(len(ctx.rdata)) {
		return nil, ErrReturnDataOutOfBounds
	}
	ctx.memory.Set(memOffset.Uint64(), size.Uint64(), ctx.rdata[dataOffset.Uint64():end.Uint64()])
	return nil, nil
}

func opBlockhash(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	num := ctx.stack.Peek()
	num.SetBytes(in.evm.BlockContext.GetHash(num.Uint64()).Bytes())
	return nil, nil
}

func opCoinbase(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(new(uint256.Int).SetBytes(in.evm.BlockContext.Coinbase.Bytes()))
	return nil, nil
}

func opTimestamp(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(uint256.NewInt(in.evm.BlockContext.Time))
	return nil, nil
}

func opNumber(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(uint256.NewInt(in.evm.BlockContext.BlockNumber))
	return nil, nil
}

func opPrevRandao(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(new(uint256.Int).SetBytes(in.evm.BlockContext.Random.Bytes()))
	return nil, nil
}

func opGasLimit(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(uint256.NewInt(in.evm.BlockContext.GasLimit))
	return nil, nil
}

func opChainID(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(uint256.NewInt(in.evm.ChainConfig.ChainID))
	return nil, nil
}

func opSelfBalance(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(new(uint256.Int).Set(in.evm.StateDB.GetBalance(ctx.contract.Address)))
	return nil, nil
}

func opBaseFee(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	bf := in.evm.BlockContext.BaseFee
	if bf == nil {
		bf = new(uint256.Int)
	}
	ctx.stack.Push(new(uint256.Int).Set(bf))
	return nil, nil
}

func opBlobBaseFee(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	bf := in.evm.BlockContext.BlobBaseFee
	if bf == nil {
		bf = new(uint256.Int)
	}
	ctx.stack.Push(new(uint256.Int).Set(bf))
	return nil, nil
}

func opBlobHash(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	idx := ctx.stack.Peek()
	if !idx.IsUint64() || idx.Uint64() >= uint64(len(in.evm.TxContext.BlobHashes)) {
		idx.Clear()
		return nil, nil
	}
	idx.SetBytes(in.evm.TxContext.BlobHashes[idx.Uint64()].Bytes())
	return nil, nil
}

func opPop(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Pop()
	return nil, nil
}

func opMload(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	offset := ctx.stack.Peek()
	offset.SetBytes(ctx.memory.GetPtr(int64(offset.Uint64()), 32))
	return nil, nil
}

func opMstore(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	offset, val := ctx.stack.Pop(), ctx.stack.Pop()
	ctx.memory.Set32(offset.Uint64(), val)
	return nil, nil
}

func opMstore8(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	offset, val := ctx.stack.Pop(), ctx.stack.Pop()
	ctx.memory.store[offset.Uint64()] = byte(val.Uint64())
	return nil, nil
}

func opMcopy(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	dst, src, size := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()
	data := ctx.memory.GetPtr(int64(src.Uint64()), int64(size.Uint64()))
	ctx.memory.Set(dst.Uint64(), size.Uint64(), data)
	return nil, nil
}

func opSload(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	loc := ctx.stack.Peek()
	key := common.Hash(loc.Bytes32())
	loc.SetBytes(in.evm.StateDB.GetState(ctx.contract.Address, key).Bytes())
	return nil, nil
}

func opSstore(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	if in.readOnly {
		return nil, ErrWriteProtection
	}
	loc, val := ctx.stack.Pop(), ctx.stack.Pop()
	key := common.Hash(loc.Bytes32())
	in.evm.StateDB.SetState(ctx.contract.Address, key, common.Hash(val.Bytes32()))
	return nil, nil
}

func opTload(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	loc := ctx.stack.Peek()
	key := common.Hash(loc.Bytes32())
	loc.SetBytes(in.evm.StateDB.GetTransientState(ctx.contract.Address, key).Bytes())
	return nil, nil
}

func opTstore(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	if in.readOnly {
		return nil, ErrWriteProtection
	}
	loc, val := ctx.stack.Pop(), ctx.stack.Pop()
	key := common.Hash(loc.Bytes32())
	in.evm.StateDB.SetTransientState(ctx.contract.Address, key, common.Hash(val.Bytes32()))
	return nil, nil
}

func opJump(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	dest := ctx.stack.Pop()
	if !ctx.contract.validJumpdest(dest) {
		return nil, ErrInvalidJump
	}
	*pc = dest.Uint64()
	return nil, nil
}

func opJumpi(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	dest, cond := ctx.stack.Pop(), ctx.stack.Pop()
	if cond.IsZero() {
		*pc++
		return nil, errPCAlreadyAdvanced
	}
	if !ctx.contract.validJumpdest(dest) {
		return nil, ErrInvalidJump
	}
	*pc = dest.Uint64()
	return nil, nil
}

func opPc(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(uint256.NewInt(*pc))
	return nil, nil
}

func opMsize(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(uint256.NewInt(uint64(ctx.memory.Len())))
	return nil, nil
}

func opGas(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(uint256.NewInt(ctx.contract.Gas))
	return nil, nil
}

func opJumpdest(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) { return nil, nil }

func opPush0(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	ctx.stack.Push(new(uint256.Int))
	return nil, nil
}

func makePush(size uint64) executionFunc {
	return func(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
		start := *pc + 1
		data := getData(ctx.contract.Code, start, size)
		ctx.stack.Push(new(uint256.Int).SetBytes(data))
		*pc += size
		return nil, nil
	}
}

func makeDup(n int) executionFunc {
	return func(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
		ctx.stack.Dup(n)
		return nil, nil
	}
}

func makeSwap(n int) executionFunc {
	return func(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
		ctx.stack.Swap(n)
		return nil, nil
	}
}

func makeLog(n int) executionFunc {
	return func(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
		if in.readOnly {
			return nil, ErrWriteProtection
		}
		offset, size := ctx.stack.Pop(), ctx.stack.Pop()
		topics := make([]common.Hash, n)
		for i := 0; i < n; i++ {
			t := ctx.stack.Pop()
			topics[i] = common.Hash(t.Bytes32())
		}
		data := ctx.memory.GetPtr(int64(offset.Uint64()), int64(size.Uint64()))
		logEntry := &types.Log{
			Address: ctx.contract.Address,
			Topics:  topics,
			Data:    append([]byte{}, data...),
			TxHash:  in.evm.TxContext.TxHash,
		}
		in.evm.StateDB.AddLog(logEntry)
		return nil, nil
	}
}

func opReturn(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	offset, size := ctx.stack.Pop(), ctx.stack.Pop()
	ret := ctx.memory.GetPtr(int64(offset.Uint64()), int64(size.Uint64()))
	return ret, errStopToken
}

func opRevert(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	offset, size := ctx.stack.Pop(), ctx.stack.Pop()
	ret := ctx.memory.GetPtr(int64(offset.Uint64()), int64(size.Uint64()))
	return ret, ErrExecutionReverted
}

func opInvalid(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	return nil, ErrInvalidOpcode
}

func opSelfdestruct(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	if in.readOnly {
		return nil, ErrWriteProtection
	}
	beneficiary := ctx.stack.Pop()
	addr := common.BytesToAddress(beneficiary.Bytes())
	balance := in.evm.StateDB.GetBalance(ctx.contract.Address)
	in.evm.StateDB.AddBalance(addr, balance)
	in.evm.StateDB.SelfDestruct(ctx.contract.Address)
	return nil, errStopToken
}

// getData returns a size-byte window of data starting at offset, zero-padded
// past the end — the standard EVM "read past end of code/calldata" rule.
func getData(data []byte, offset, size uint64) []byte {
	out := make([]byte, size)
	if offset >= uint64(len(data)) {
		return out
	}
	end := offset + size
	if end > uint64(len(data)) {
		end = uint64(len(data))
	}
	copy(out, data[offset:end])
	return out
}
