package vm

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
)

// Tracer receives execution events from an EVM as they happen (§4.I: "Trace
// items are pushed to a per-transaction buffer by the interpreter"). All
// methods are called synchronously on the interpreter's own goroutine —
// per §5, external callbacks are invoked at the point of emission and the
// provider waits if one suspends — so a Tracer must not block on anything
// slower than the consumer it feeds.
//
// vm deliberately knows nothing about trace/'s TraceItem/GasReport shapes;
// trace.Recorder implements this interface from the consuming side, the
// same inversion go-ethereum's own EVMLogger uses to keep tracers out of
// core/vm's dependency graph.
type Tracer interface {
	// OnEnter fires before a call/create frame begins executing. typ is
	// the opcode that initiated the frame (CALL, CREATE, ...).
	OnEnter(depth int, typ OpCode, from, to common.Address, input []byte, gas uint64, value *uint256.Int)
	// OnExit fires after a call/create frame returns, successfully or not.
	OnExit(depth int, output []byte, gasUsed uint64, err error)
	// OnOpcode fires once per executed instruction.
	OnOpcode(pc uint64, op OpCode, gas, cost uint64, depth int, stack *Stack, mem *Memory, err error)
}
