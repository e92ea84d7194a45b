package trace

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/vm"
)

// Recorder implements vm.Tracer, accumulating one TraceItem buffer per
// transaction or eth_call (§4.I: "created during execution, streamed to
// consumers, dropped with the transaction unless explicitly retained").
// It is not safe for concurrent use — §5 guarantees a Recorder only ever
// observes one interpreter's events at a time.
type Recorder struct {
	// Verbose toggles full stack/memory capture on every Step item.
	// Default mode records only the stack top and omits memory (§4.I).
	Verbose bool

	items []TraceItem
}

func NewRecorder(verbose bool) *Recorder {
	return &Recorder{Verbose: verbose}
}

// Items returns the recorded buffer in emission order.
func (r *Recorder) Items() []TraceItem { return r.items }

// Reset discards the buffer so the Recorder can be reused for the next
// request, matching §5's "Gas reports grow per call; the test runner
// clears them per suite" sibling guidance for trace buffers.
func (r *Recorder) Reset() { r.items = r.items[:0] }

func (r *Recorder) OnEnter(depth int, typ vm.OpCode, from, to common.Address, input []byte, gas uint64, value *uint256.Int) {
	r.items = append(r.items, TraceItem{
		Kind:         MessageBegin,
		From:         from,
		To:           to,
		Value:        value,
		Data:         input,
		IsStaticCall: typ == vm.STATICCALL,
		Depth:        depth,
		GasRemaining: gas,
	})
}

func (r *Recorder) OnExit(depth int, output []byte, gasUsed uint64, err error) {
	r.items = append(r.items, TraceItem{
		Kind:       MessageEnd,
		Depth:      depth,
		Success:    err == nil,
		ReturnData: output,
		GasUsed:    gasUsed,
	})
}

func (r *Recorder) OnOpcode(pc uint64, op vm.OpCode, gas, cost uint64, depth int, stack *vm.Stack, mem *vm.Memory, err error) {
	item := TraceItem{
		Kind:         Step,
		PC:           pc,
		Op:           op,
		GasRemaining: gas,
		GasCost:      cost,
		Depth:        depth,
		StepError:    err,
	}
	if n := stack.Len(); n > 0 {
		if r.Verbose {
			item.Stack = append([]*uint256.Int(nil), stack.Data()...)
		} else {
			item.Stack = []*uint256.Int{stack.Peek()}
		}
	}
	if r.Verbose {
		item.Memory = append([]byte(nil), mem.Data()...)
	}
	r.items = append(r.items, item)
}

func hexWord(v *uint256.Int) string {
	b := v.Bytes32()
	return common.Hash(b).Hex()
}

// CallTrace renders the recorded buffer into §6's normalised
// debug_traceTransaction/debug_traceCall struct-log shape. failed/returnValue
// describe the outermost call frame; gas is the outermost frame's GasUsed.
func (r *Recorder) CallTrace() CallTrace {
	var out CallTrace
	var memSize int
	for _, it := range r.items {
		switch it.Kind {
		case MessageEnd:
			if it.Depth == 0 {
				out.Failed = !it.Success
				out.Gas = it.GasUsed
				out.ReturnValue = fmt.Sprintf("0x%x", it.ReturnData)
			}
		case Step:
			log := StructLog{
				PC:      it.PC,
				Op:      it.Op.String(),
				Gas:     it.GasRemaining,
				GasCost: it.GasCost,
				Depth:   it.Depth,
				MemSize: memSize,
			}
			for _, w := range it.Stack {
				log.Stack = append(log.Stack, hexWord(w))
			}
			if it.Memory != nil {
				memSize = len(it.Memory)
				log.MemSize = memSize
				for off := 0; off < len(it.Memory); off += 32 {
					end := off + 32
					if end > len(it.Memory) {
						end = len(it.Memory)
					}
					log.Memory = append(log.Memory, fmt.Sprintf("0x%x", it.Memory[off:end]))
				}
			}
			if it.StepError != nil {
				log.Error = it.StepError.Error()
			}
			out.StructLogs = append(out.StructLogs, log)
		}
	}
	return out
}
