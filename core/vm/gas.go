package vm

// Fixed per-opcode gas costs (Yellow Paper / EIP-150 tiers).
const (
	GasQuickStep   uint64 = 2
	GasFastestStep uint64 = 3
	GasFastStep    uint64 = 5
	GasMidStep     uint64 = 8
	GasSlowStep    uint64 = 10
	GasExtStep     uint64 = 20

	GasStop     uint64 = 0
	GasPop      uint64 = 2
	GasMload    uint64 = 3
	GasMstore   uint64 = 3
	GasMstore8  uint64 = 3
	GasJump     uint64 = 8
	GasJumpi    uint64 = 10
	GasPc       uint64 = 2
	GasMsize    uint64 = 2
	GasGas      uint64 = 2
	GasJumpDest uint64 = 1
	GasPush     uint64 = 3
	GasPush0    uint64 = 2
	GasDup      uint64 = 3
	GasSwap     uint64 = 3
	GasKeccak256 uint64 = 30
	GasKeccak256Word uint64 = 6
	GasLog      uint64 = 375
	GasLogData  uint64 = 8
	GasLogTopic uint64 = 375
	GasReturn   uint64 = 0
	GasRevert   uint64 = 0
	GasMemory   uint64 = 3
	GasCreate   uint64 = 32000
	GasCreateDataWord uint64 = 2 // EIP-3860 initcode word cost
	GasSelfDestruct uint64 = 5000
	GasSelfDestructNewAccount uint64 = 25000
	GasCallValueTransfer uint64 = 9000
	GasCallNewAccount    uint64 = 25000
	GasCallStipend       uint64 = 2300

	// EIP-2929 cold/warm access costs.
	GasColdAccountAccess uint64 = 2600
	GasColdSload         uint64 = 2100
	GasWarmStorageRead   uint64 = 100

	// Legacy pre-Berlin costs, kept for hardforks that pre-date EIP-2929.
	GasBalanceCold uint64 = 700
	GasSloadCold   uint64 = 800
	GasExtcodesizeCold uint64 = 700
	GasExtcodecopyCold uint64 = 700
	GasExtcodehashCold uint64 = 700

	GasCallCold uint64 = 700

	// EIP-2200 SSTORE cost tiers.
	GasSstoreSet    uint64 = 20000
	GasSstoreReset  uint64 = 2900
	GasSstoreClear  uint64 = 2900
	SstoreRefundClear uint64 = 4800
	SstoreSentryGas   uint64 = 2300
)
