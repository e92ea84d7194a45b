package vm

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
)

// StateDB is the interpreter's view of world state (§3/§4.C). The concrete
// implementation (core/state.Overlay) is a layered copy-on-write overlay
// rather than the teacher's flat journal-of-changes MemoryStateDB, so that
// Snapshot/RevertToSnapshot costs are proportional to the reverted layer's
// size instead of the whole journal since transaction start.
type StateDB interface {
	CreateAccount(addr common.Address)
	SubBalance(addr common.Address, amount *uint256.Int)
	AddBalance(addr common.Address, amount *uint256.Int)
	GetBalance(addr common.Address) *uint256.Int
	GetNonce(addr common.Address) uint64
	SetNonce(addr common.Address, nonce uint64)
	GetCode(addr common.Address) []byte
	SetCode(addr common.Address, code []byte)
	GetCodeHash(addr common.Address) common.Hash
	GetCodeSize(addr common.Address) int

	SelfDestruct(addr common.Address)
	HasSelfDestructed(addr common.Address) bool

	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	GetCommittedState(addr common.Address, key common.Hash) common.Hash

	Exist(addr common.Address) bool
	Empty(addr common.Address) bool

	// Snapshot returns an opaque layer id; RevertToSnapshot pops every
	// layer pushed since id was taken, in O(that layer's size).
	Snapshot() int
	RevertToSnapshot(id int)

	AddLog(log *types.Log)
	GetLogs(txHash common.Hash) []*types.Log

	AddRefund(gas uint64)
	SubRefund(gas uint64)
	GetRefund() uint64

	AddAddressToAccessList(addr common.Address)
	AddSlotToAccessList(addr common.Address, slot common.Hash)
	AddressInAccessList(addr common.Address) bool
	SlotInAccessList(addr common.Address, slot common.Hash) (addressOk bool, slotOk bool)

	GetTransientState(addr common.Address, key common.Hash) common.Hash
	SetTransientState(addr common.Address, key common.Hash, value common.Hash)
}
