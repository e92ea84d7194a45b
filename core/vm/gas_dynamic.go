package vm

import (
	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
)

// memoryGasCost charges the quadratic EVM memory-expansion cost for growing
// memory from its current size to newSize bytes, returning only the marginal
// cost beyond what was already charged (mirrors the teacher's gas_table.go).
func memoryGasCost(mem *Memory, newSize uint64) (uint64, error) {
	if newSize == 0 {
		return 0, nil
	}
	if newSize > 0x1FFFFFFFE0 {
		return 0, ErrGasUintOverflow
	}
	newSize = toWordSize(newSize) * 32
	if newSize <= uint64(mem.Len()) {
		return 0, nil
	}
	square := newSize / 32
	linCoef := square * GasMemory
	quadCoef := square * square / 512
	newCost := linCoef + quadCoef

	oldWords := toWordSize(uint64(mem.Len()))
	oldCost := oldWords*GasMemory + oldWords*oldWords/512
	return newCost - oldCost, nil
}

func toWordSize(size uint64) uint64 { return (size + 31) / 32 }

func gasExp(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	exponent := stack.Back(1)
	byteLen := (exponent.BitLen() + 7) / 8
	return uint64(byteLen) * 50, nil
}

func gasKeccak256(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size := stack.Back(1)
	words := toWordSize(size.Uint64())
	return words * GasKeccak256Word, nil
}

func gasCopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size := stack.Back(stack.Len() - 1)
	words := toWordSize(size.Uint64())
	return words * GasKeccak256Word, nil
}

func gasMcopy(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size := stack.Back(2)
	words := toWordSize(size.Uint64())
	return words * GasKeccak256Word, nil
}

func gasLog(n int) gasFunc {
	return func(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
		size := stack.Back(1)
		return size.Uint64()*GasLogData + uint64(n)*GasLogTopic, nil
	}
}

// gasSload applies EIP-2929 cold/warm SLOAD metering from Berlin onward. The
// opcode's constantGas is GasColdSload; a warm slot is credited back the
// difference so that it costs GasWarmStorageRead in total. Before Berlin the
// constantGas is the whole charge.
func gasSload(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	if !evm.ChainConfig.Hardfork.AtLeast(types.Berlin) {
		return 0, nil
	}
	loc := stack.Back(0)
	key := common.Hash(loc.Bytes32())
	if addrOk, slotOk := evm.StateDB.SlotInAccessList(contract.Address, key); addrOk && slotOk {
		contract.Gas += GasColdSload - GasWarmStorageRead
		return 0, nil
	}
	evm.StateDB.AddSlotToAccessList(contract.Address, key)
	return 0, nil
}

// gasSstore implements the EIP-2200/3529 SSTORE tiered-refund schedule.
func gasSstore(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	if contract.Gas <= SstoreSentryGas {
		return 0, ErrOutOfGas
	}
	loc, newVal := stack.Back(0), stack.Back(1)
	key := common.Hash(loc.Bytes32())

	var coldCost uint64
	if evm.ChainConfig.Hardfork.AtLeast(types.Berlin) {
		if _, slotOk := evm.StateDB.SlotInAccessList(contract.Address, key); !slotOk {
			evm.StateDB.AddSlotToAccessList(contract.Address, key)
			coldCost = GasColdSload
		}
	}

	current := evm.StateDB.GetState(contract.Address, key)
	newHash := common.Hash(newVal.Bytes32())
	if current == newHash {
		return coldCost + GasWarmStorageRead, nil
	}
	original := evm.StateDB.GetCommittedState(contract.Address, key)
	var zero common.Hash
	if original == current {
		if original == zero {
			return coldCost + GasSstoreSet, nil
		}
		if newHash == zero {
			evm.StateDB.AddRefund(SstoreRefundClear)
		}
		return coldCost + GasSstoreReset, nil
	}
	if original != zero {
		if current == zero {
			evm.StateDB.SubRefund(SstoreRefundClear)
		} else if newHash == zero {
			evm.StateDB.AddRefund(SstoreRefundClear)
		}
	}
	if original == newHash {
		if original == zero {
			evm.StateDB.AddRefund(GasSstoreSet - GasWarmStorageRead)
		} else {
			evm.StateDB.AddRefund(GasSstoreReset - GasWarmStorageRead)
		}
	}
	return coldCost + GasWarmStorageRead, nil
}

func gasCreate(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size := stack.Back(2)
	return toWordSize(size.Uint64()) * GasCreateDataWord, nil
}

func gasCreate2(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	size := stack.Back(2)
	words := toWordSize(size.Uint64())
	return words*GasCreateDataWord + words*GasKeccak256Word, nil
}

// gasCall charges the EIP-2929 address-access cost from Berlin onward, on top
// of the opcode's constantGas: GasColdAccountAccess the first time the
// target is touched, GasWarmStorageRead after that. Value-transfer and
// new-account costs are not charged. The target address sits at the same
// stack position for CALL, CALLCODE, DELEGATECALL and STATICCALL.
func gasCall(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	addrWord := stack.Back(1)
	addr := common.BytesToAddress(addrWord.Bytes())

	var cost uint64
	if evm.ChainConfig.Hardfork.AtLeast(types.Berlin) {
		if !evm.StateDB.AddressInAccessList(addr) {
			evm.StateDB.AddAddressToAccessList(addr)
			cost = GasColdAccountAccess
		} else {
			cost = GasWarmStorageRead
		}
	}

	return cost, nil
}

func gasSelfdestruct(evm *EVM, contract *Contract, stack *Stack, mem *Memory, memorySize uint64) (uint64, error) {
	beneficiary := stack.Back(0)
	addr := common.BytesToAddress(beneficiary.Bytes())
	if evm.ChainConfig.Hardfork.AtLeast(types.Berlin) && !evm.StateDB.AddressInAccessList(addr) {
		evm.StateDB.AddAddressToAccessList(addr)
		return GasColdAccountAccess, nil
	}
	return 0, nil
}

