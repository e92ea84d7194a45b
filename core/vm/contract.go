package vm

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
)

// Contract represents an EVM contract in the context of a single call
// frame's execution.
type Contract struct {
	CallerAddress common.Address
	Address       common.Address
	Code          []byte
	CodeHash      common.Hash
	Input         []byte
	Gas           uint64
	Value         *uint256.Int
	jumpdests     map[uint64]bool
}

func NewContract(caller, addr common.Address, value *uint256.Int, gas uint64) *Contract {
	return &Contract{
		CallerAddress: caller,
		Address:       addr,
		Value:         value,
		Gas:           gas,
	}
}

func (c *Contract) GetOp(n uint64) OpCode {
	if n < uint64(len(c.Code)) {
		return OpCode(c.Code[n])
	}
	return STOP
}

func (c *Contract) UseGas(gas uint64) bool {
	if c.Gas < gas {
		return false
	}
	c.Gas -= gas
	return true
}

func (c *Contract) SetCallCode(addr *common.Address, hash common.Hash, code []byte) {
	c.Code = code
	c.CodeHash = hash
	if addr != nil {
		c.Address = *addr
	}
}

// validJumpdest checks whether dest is a valid JUMPDEST position, rejecting
// both out-of-bounds targets and offsets that land inside PUSH data.
func (c *Contract) validJumpdest(dest *uint256.Int) bool {
	if !dest.IsUint64() {
		return false
	}
	udest := dest.Uint64()
	if udest >= uint64(len(c.Code)) {
		return false
	}
	if OpCode(c.Code[udest]) != JUMPDEST {
		return false
	}
	return c.isCode(udest)
}

func (c *Contract) isCode(pos uint64) bool {
	if c.jumpdests == nil {
		c.jumpdests = make(map[uint64]bool)
		c.analyzeJumpdests()
	}
	return c.jumpdests[pos]
}

func (c *Contract) analyzeJumpdests() {
	for i := uint64(0); i < uint64(len(c.Code)); i++ {
		op := OpCode(c.Code[i])
		if op == JUMPDEST {
			c.jumpdests[i] = true
		}
		if op.IsPush() {
			i += uint64(op - PUSH1 + 1)
		}
	}
}
