package executor

import "errors"

// ErrGasPoolExhausted is returned when a block's gas pool cannot cover a
// transaction's gas limit (§4.E step 1).
var ErrGasPoolExhausted = errors.New("executor: gas pool exhausted")

// GasPool tracks the gas remaining in a block during sequential transaction
// execution, mirroring the teacher's core.GasPool uint64-wrapper pattern.
type GasPool uint64

func (gp *GasPool) AddGas(amount uint64) *GasPool {
	*gp += GasPool(amount)
	return gp
}

func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return ErrGasPoolExhausted
	}
	*gp -= GasPool(amount)
	return nil
}

func (gp *GasPool) Gas() uint64 { return uint64(*gp) }
