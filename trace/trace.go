// Package trace implements EDR's observability pipeline (§4.I): the
// per-transaction step/message trace stream, statement-coverage hit
// de-duplication, and the gas-report aggregator with proxy-chain
// detection. It consumes core/vm's Tracer hook from the outside, the
// same inversion go-ethereum's tracers package uses against EVMLogger.
package trace

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/vm"
)

// ItemKind discriminates the TraceItem variant (§4.I: "variant {MessageBegin,
// Step, MessageEnd}").
type ItemKind uint8

const (
	MessageBegin ItemKind = iota
	Step
	MessageEnd
)

// TraceItem is one entry of a per-transaction trace buffer. Only the fields
// relevant to Kind are populated; the rest are left at their zero value.
type TraceItem struct {
	Kind ItemKind

	// MessageBegin fields.
	From         common.Address
	To           common.Address
	Value        *uint256.Int
	Data         []byte
	IsStaticCall bool

	// Step fields.
	PC           uint64
	Op           vm.OpCode
	GasRemaining uint64
	GasCost      uint64
	Depth        int
	// Stack holds the top of the operand stack, or the whole stack when
	// Verbose is set on the recording Recorder; populated in both modes.
	Stack []*uint256.Int
	// Memory holds a full memory snapshot; nil unless Verbose is set on the
	// recording Recorder (§4.I: "default mode records only stack top and
	// omits memory").
	Memory    []byte
	StepError error

	// MessageEnd fields.
	Success    bool
	ReturnData []byte
	GasUsed    uint64
}

// StructLog is the normalised shape debug_traceTransaction/debug_traceCall
// return (§6), distinct from TraceItem because the RPC wire format only
// ever reports stack/memory as hex strings and omits MessageBegin/End
// entirely.
type StructLog struct {
	PC      uint64            `json:"pc"`
	Op      string            `json:"op"`
	Gas     uint64            `json:"gas"`
	GasCost uint64            `json:"gasCost"`
	Depth   int               `json:"depth"`
	MemSize int               `json:"memSize"`
	Stack   []string          `json:"stack,omitempty"`
	Memory  []string          `json:"memory,omitempty"`
	Storage map[string]string `json:"storage,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// CallTrace is the debug_traceCall/debug_traceTransaction response body.
type CallTrace struct {
	Failed      bool        `json:"failed"`
	Gas         uint64      `json:"gas"`
	ReturnValue string      `json:"returnValue"`
	StructLogs  []StructLog `json:"structLogs"`
}
