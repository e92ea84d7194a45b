package vm

import "errors"

var (
	ErrOutOfGas                = errors.New("vm: out of gas")
	ErrStackOverflow           = errors.New("vm: stack overflow")
	ErrStackUnderflow          = errors.New("vm: stack underflow")
	ErrInvalidJump             = errors.New("vm: invalid jump destination")
	ErrInvalidOpcode           = errors.New("vm: invalid opcode")
	ErrWriteProtection         = errors.New("vm: write protection (static call)")
	ErrReturnDataOutOfBounds   = errors.New("vm: return data out of bounds")
	ErrExecutionReverted       = errors.New("vm: execution reverted")
	ErrDepthLimit              = errors.New("vm: max call depth exceeded")
	ErrInsufficientBalance     = errors.New("vm: insufficient balance for transfer")
	ErrContractAddressCollision = errors.New("vm: contract address collision")
	ErrMaxCodeSizeExceeded     = errors.New("vm: max code size exceeded")
	ErrMaxInitCodeSizeExceeded = errors.New("vm: max initcode size exceeded")
	ErrInvalidCode             = errors.New("vm: invalid contract code (EIP-3541)")
	ErrGasUintOverflow         = errors.New("vm: gas uint64 overflow")
	ErrNonceUintOverflow       = errors.New("vm: nonce uint64 overflow")
)
