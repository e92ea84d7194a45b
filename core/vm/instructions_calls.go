package vm

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
)

// opCall implements CALL: gas, addr, value, argsOffset, argsSize, retOffset, retSize.
func opCall(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	gasWord, addrWord, value := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()
	argsOffset, argsSize, retOffset, retSize := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()

	if in.readOnly && !value.IsZero() {
		ctx.stack.Push(new(uint256.Int))
		return nil, ErrWriteProtection
	}

	addr := common.BytesToAddress(addrWord.Bytes())
	args := ctx.memory.GetPtr(int64(argsOffset.Uint64()), int64(argsSize.Uint64()))

	gas := callGas(ctx.contract, gasWord.Uint64(), !value.IsZero())
	ret, returnedGas, err := in.evm.Call(ctx.contract.Address, addr, args, gas, value, in.readOnly)
	contract := ctx.contract
	contract.Gas += returnedGas

	ctx.rdata = ret
	if err != nil {
		ctx.stack.Push(new(uint256.Int))
	} else {
		ctx.stack.Push(uint256.NewInt(1))
	}
	if retSize.Uint64() > 0 {
		n := retSize.Uint64()
		if uint64(len(ret)) < n {
			n = uint64(len(ret))
		}
		ctx.memory.Set(retOffset.Uint64(), n, ret[:n])
	}
	return nil, nil
}

// opCallCode implements CALLCODE: same operands as CALL, but executes the
// callee's code in the caller's own storage context.
func opCallCode(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	gasWord, addrWord, value := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()
	argsOffset, argsSize, retOffset, retSize := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()

	addr := common.BytesToAddress(addrWord.Bytes())
	args := ctx.memory.GetPtr(int64(argsOffset.Uint64()), int64(argsSize.Uint64()))
	code := in.evm.StateDB.GetCode(addr)

	contract := NewContract(ctx.contract.Address, ctx.contract.Address, value, callGas(ctx.contract, gasWord.Uint64(), !value.IsZero()))
	contract.SetCallCode(nil, in.evm.StateDB.GetCodeHash(addr), code)

	snapshot := in.evm.StateDB.Snapshot()
	sub := NewInterpreter(in.evm, in.readOnly)
	ret, err := sub.Run(contract, args)
	if err != nil && err != ErrExecutionReverted {
		in.evm.StateDB.RevertToSnapshot(snapshot)
	}
	ctx.contract.Gas += contract.Gas
	ctx.rdata = ret
	if err != nil {
		ctx.stack.Push(new(uint256.Int))
	} else {
		ctx.stack.Push(uint256.NewInt(1))
	}
	if retSize.Uint64() > 0 {
		n := retSize.Uint64()
		if uint64(len(ret)) < n {
			n = uint64(len(ret))
		}
		ctx.memory.Set(retOffset.Uint64(), n, ret[:n])
	}
	return nil, nil
}

// opDelegateCall implements DELEGATECALL: executes callee code with the
// caller's own storage, balance, and msg.sender/msg.value preserved.
func opDelegateCall(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	gasWord, addrWord := ctx.stack.Pop(), ctx.stack.Pop()
	argsOffset, argsSize, retOffset, retSize := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()

	addr := common.BytesToAddress(addrWord.Bytes())
	args := ctx.memory.GetPtr(int64(argsOffset.Uint64()), int64(argsSize.Uint64()))
	code := in.evm.StateDB.GetCode(addr)

	contract := NewContract(ctx.contract.CallerAddress, ctx.contract.Address, ctx.contract.Value, callGas(ctx.contract, gasWord.Uint64(), false))
	contract.SetCallCode(nil, in.evm.StateDB.GetCodeHash(addr), code)

	snapshot := in.evm.StateDB.Snapshot()
	sub := NewInterpreter(in.evm, in.readOnly)
	ret, err := sub.Run(contract, args)
	if err != nil && err != ErrExecutionReverted {
		in.evm.StateDB.RevertToSnapshot(snapshot)
	}
	ctx.contract.Gas += contract.Gas
	ctx.rdata = ret
	if err != nil {
		ctx.stack.Push(new(uint256.Int))
	} else {
		ctx.stack.Push(uint256.NewInt(1))
	}
	if retSize.Uint64() > 0 {
		n := retSize.Uint64()
		if uint64(len(ret)) < n {
			n = uint64(len(ret))
		}
		ctx.memory.Set(retOffset.Uint64(), n, ret[:n])
	}
	return nil, nil
}

// opStaticCall implements STATICCALL: a CALL with value forced to zero and
// write-protection forced on for the sub-call.
func opStaticCall(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	gasWord, addrWord := ctx.stack.Pop(), ctx.stack.Pop()
	argsOffset, argsSize, retOffset, retSize := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()

	addr := common.BytesToAddress(addrWord.Bytes())
	args := ctx.memory.GetPtr(int64(argsOffset.Uint64()), int64(argsSize.Uint64()))

	gas := callGas(ctx.contract, gasWord.Uint64(), false)
	ret, returnedGas, err := in.evm.Call(ctx.contract.Address, addr, args, gas, nil, true)
	ctx.contract.Gas += returnedGas
	ctx.rdata = ret
	if err != nil {
		ctx.stack.Push(new(uint256.Int))
	} else {
		ctx.stack.Push(uint256.NewInt(1))
	}
	if retSize.Uint64() > 0 {
		n := retSize.Uint64()
		if uint64(len(ret)) < n {
			n = uint64(len(ret))
		}
		ctx.memory.Set(retOffset.Uint64(), n, ret[:n])
	}
	return nil, nil
}

func opCreate(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	if in.readOnly {
		return nil, ErrWriteProtection
	}
	value, offset, size := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()
	code := ctx.memory.GetPtr(int64(offset.Uint64()), int64(size.Uint64()))

	nonce := in.evm.StateDB.GetNonce(ctx.contract.Address)
	in.evm.StateDB.SetNonce(ctx.contract.Address, nonce+1)
	addr := contractAddress(ctx.contract.Address, nonce)

	_, _, returnedGas, err := in.evm.Create(ctx.contract.Address, code, ctx.contract.Gas, value, addr)
	ctx.contract.Gas = returnedGas
	if err != nil {
		ctx.stack.Push(new(uint256.Int))
	} else {
		ctx.stack.Push(new(uint256.Int).SetBytes(addr.Bytes()))
	}
	return nil, nil
}

func opCreate2(pc *uint64, in *Interpreter, ctx *callCtx) ([]byte, error) {
	if in.readOnly {
		return nil, ErrWriteProtection
	}
	value, offset, size, salt := ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop(), ctx.stack.Pop()
	code := ctx.memory.GetPtr(int64(offset.Uint64()), int64(size.Uint64()))

	nonce := in.evm.StateDB.GetNonce(ctx.contract.Address)
	in.evm.StateDB.SetNonce(ctx.contract.Address, nonce+1)
	addr := contractAddress2(ctx.contract.Address, salt, code)

	_, _, returnedGas, err := in.evm.Create(ctx.contract.Address, code, ctx.contract.Gas, value, addr)
	ctx.contract.Gas = returnedGas
	if err != nil {
		ctx.stack.Push(new(uint256.Int))
	} else {
		ctx.stack.Push(new(uint256.Int).SetBytes(addr.Bytes()))
	}
	return nil, nil
}

// callGas applies EIP-150's 63/64ths rule, capping the requested gas to what
// the caller can actually forward, plus the CALL stipend on value transfers.
func callGas(caller *Contract, requested uint64, hasValue bool) uint64 {
	available := caller.Gas - caller.Gas/64
	if requested > available {
		requested = available
	}
	if hasValue {
		requested += GasCallStipend
	}
	return requested
}
