package soltest

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/core/vm"
)

// CheatcodeAddress is the fixed address §4.K's cheatcode precompile is
// exposed at, the same address Foundry's `vm` instance resolves to
// (0x7109709ECfa91a80626fF3989D68f67F5b1DD12D) — tests written against real
// Forge cheatcodes resolve to the identical address here.
var CheatcodeAddress = common.HexToAddress("0x7109709ECfa91a80626fF3989D68f67F5b1DD12D")

// ErrAssumeRejected is returned by Run for a failing vm.assume(false) call;
// the runner treats it as a rejected draw, not a test failure, bounded by
// RunConfig.MaxAssumeRejects (§4.K step 5).
var ErrAssumeRejected = errors.New("soltest: vm.assume rejected input")

// CheatState is the mutable state a cheatcode call affects, shared across
// every call within one test invocation (unit, one fuzz draw, or one
// invariant round). The runner reads it back before building each
// subsequent vm.BlockContext/executor.Message, since vm.PrecompiledContract
// itself is a pure input/output function with no access to the EVM it runs
// inside (§4.A) — cheatcodes close over this instead.
type CheatState struct {
	Timestamp   uint64
	BlockNumber uint64

	PrankFrom   *common.Address
	PrankOnce   bool // true: consumed after the next call only (prank vs startPrank)

	ExpectRevert       bool
	ExpectRevertReason string

	RecordingLogs bool
	RecordedLogs  []*types.Log

	// UnsafeToReplay is set by any impure cheatcode (filesystem, network,
	// wall-clock) a test uses, propagated to Result.UnsafeToReplay so the
	// runner never persists a failure counter-example for it (§9
	// "Replayability flag").
	UnsafeToReplay bool
}

// NewCheatState seeds a fresh per-test cheat state from the block the test
// is running against.
func NewCheatState(timestamp, blockNumber uint64) *CheatState {
	return &CheatState{Timestamp: timestamp, BlockNumber: blockNumber}
}

var (
	warpFunc            = Func{Name: "warp", Params: []ParamKind{KindUint256}}
	rollFunc            = Func{Name: "roll", Params: []ParamKind{KindUint256}}
	dealFunc            = Func{Name: "deal", Params: []ParamKind{KindAddress, KindUint256}}
	startPrankFunc       = Func{Name: "startPrank", Params: []ParamKind{KindAddress}}
	stopPrankFunc        = Func{Name: "stopPrank", Params: nil}
	prankFunc            = Func{Name: "prank", Params: []ParamKind{KindAddress}}
	expectRevertFunc     = Func{Name: "expectRevert", Params: []ParamKind{KindBytes}}
	recordLogsFunc       = Func{Name: "recordLogs", Params: nil}
	getRecordedLogsFunc  = Func{Name: "getRecordedLogs", Params: nil}
	readFileFunc         = Func{Name: "readFile", Params: []ParamKind{KindString}}
	writeFileFunc        = Func{Name: "writeFile", Params: []ParamKind{KindString, KindString}}
	snapshotFunc         = Func{Name: "snapshot", Params: nil}
	revertToFunc         = Func{Name: "revertTo", Params: []ParamKind{KindUint256}}
	createSelectForkFunc = Func{Name: "createSelectFork", Params: []ParamKind{KindString}}
	unixTimeFunc         = Func{Name: "unixTime", Params: nil}
	assumeFunc           = Func{Name: "assume", Params: []ParamKind{KindBool}}
)

// Cheatcodes implements vm.PrecompiledContract at CheatcodeAddress,
// dispatching on the standard 4-byte selector the same way every other
// precompile in core/vm/precompiles.go does, but installed per test run via
// vm.Config.PrecompileOverlay instead of the hardfork-gated table (§4.A) —
// cheatcodes are a test-runner concern, never part of the protocol
// precompile set a real chain would execute.
type Cheatcodes struct {
	state   *CheatState
	statedb vm.StateDB
	// snapshots maps a cheat-level `vm.snapshot()` id to the overlay
	// snapshot id it corresponds to. Distinct from the provider's
	// evm_snapshot (§4.J): this one is scoped to one test invocation.
	snapshots map[uint64]int
	nextSnap  uint64
	snapshot  func() int
	revert    func(id int)
}

// NewCheatcodes builds the cheatcode precompile for one test invocation.
// snapshotFn/revertFn are the overlay's own Snapshot/RevertToSnapshot,
// threaded through so vm.snapshot()/vm.revertTo() operate on real state.
func NewCheatcodes(statedb vm.StateDB, state *CheatState, snapshotFn func() int, revertFn func(int)) *Cheatcodes {
	return &Cheatcodes{
		state:     state,
		statedb:   statedb,
		snapshots: make(map[uint64]int),
		snapshot:  snapshotFn,
		revert:    revertFn,
	}
}

func (c *Cheatcodes) RequiredGas([]byte) uint64 { return 0 }

func (c *Cheatcodes) Run(input []byte) ([]byte, error) {
	if len(input) < 4 {
		return nil, fmt.Errorf("soltest: cheatcode call too short")
	}
	var sel [4]byte
	copy(sel[:], input[:4])
	body := input[4:]

	switch sel {
	case warpFunc.Selector():
		c.state.Timestamp = wordToUint64(body)
		return nil, nil
	case rollFunc.Selector():
		c.state.BlockNumber = wordToUint64(body)
		return nil, nil
	case dealFunc.Selector():
		if len(body) < 64 {
			return nil, fmt.Errorf("soltest: deal: short input")
		}
		addr := common.BytesToAddress(body[12:32])
		amount := wordToUint256(body[32:64])
		current := c.statedb.GetBalance(addr)
		c.statedb.SubBalance(addr, current)
		c.statedb.AddBalance(addr, amount)
		return nil, nil
	case startPrankFunc.Selector():
		addr := common.BytesToAddress(body[12:32])
		c.state.PrankFrom = &addr
		c.state.PrankOnce = false
		return nil, nil
	case prankFunc.Selector():
		addr := common.BytesToAddress(body[12:32])
		c.state.PrankFrom = &addr
		c.state.PrankOnce = true
		return nil, nil
	case stopPrankFunc.Selector():
		c.state.PrankFrom = nil
		c.state.PrankOnce = false
		return nil, nil
	case expectRevertFunc.Selector():
		raw, err := decodeABIBytes(body)
		if err != nil {
			return nil, err
		}
		reason, _ := DecodeRevertReason(raw)
		c.state.ExpectRevert = true
		c.state.ExpectRevertReason = reason
		return nil, nil
	case recordLogsFunc.Selector():
		c.state.RecordingLogs = true
		return nil, nil
	case getRecordedLogsFunc.Selector():
		return encodeUint64AsWord(uint64(len(c.state.RecordedLogs))), nil
	case readFileFunc.Selector():
		c.state.UnsafeToReplay = true
		path, err := decodeABIString(body)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("soltest: readFile: %w", err)
		}
		// A single `bytes` return value is itself ABI-encoded as offset (a
		// fixed 0x20, since there is only one return slot) then length+data,
		// the same head/tail shape decodeABIBytes expects.
		out := leftPad32(big.NewInt(32).Bytes())
		out = append(out, encodeDynamicBytes(data)...)
		return out, nil
	case writeFileFunc.Selector():
		c.state.UnsafeToReplay = true
		path, contents, err := decodeTwoABIStrings(body)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			return nil, fmt.Errorf("soltest: writeFile: %w", err)
		}
		return nil, nil
	case snapshotFunc.Selector():
		id := c.nextSnap
		c.nextSnap++
		c.snapshots[id] = c.snapshot()
		return encodeUint64AsWord(id), nil
	case revertToFunc.Selector():
		id := wordToUint64(body)
		overlayID, ok := c.snapshots[id]
		if !ok {
			return nil, fmt.Errorf("soltest: unknown cheat snapshot %d", id)
		}
		c.revert(overlayID)
		return encodeUint64AsWord(1), nil
	case createSelectForkFunc.Selector():
		c.state.UnsafeToReplay = true
		// Selecting a different remote fork mid-test is out of scope for
		// this runner (it operates on one pre-configured fork.Cache for the
		// whole suite run); mark unsafe-to-replay and acknowledge the call.
		return encodeUint64AsWord(0), nil
	case unixTimeFunc.Selector():
		c.state.UnsafeToReplay = true
		return encodeUint64AsWord(uint64(time.Now().Unix())), nil
	case assumeFunc.Selector():
		if len(body) < 32 {
			return nil, fmt.Errorf("soltest: assume: short input")
		}
		if body[31] == 0 {
			return nil, ErrAssumeRejected
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("soltest: unknown cheatcode selector %x", sel)
	}
}

func wordToUint64(body []byte) uint64 {
	if len(body) < 32 {
		return 0
	}
	return new(big.Int).SetBytes(body[:32]).Uint64()
}

func wordToUint256(word []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(word)
}

// decodeABIBytes decodes a single dynamic bytes/string argument occupying
// the whole of body: a 32-byte offset, then at that offset a 32-byte length
// followed by the raw data, the standard ABI tail layout (§6).
func decodeABIBytes(body []byte) ([]byte, error) {
	if len(body) < 32 {
		return nil, fmt.Errorf("soltest: malformed bytes argument")
	}
	offset := new(big.Int).SetBytes(body[:32]).Uint64()
	if uint64(len(body)) < offset+32 {
		return nil, fmt.Errorf("soltest: truncated bytes argument")
	}
	length := new(big.Int).SetBytes(body[offset : offset+32]).Uint64()
	start := offset + 32
	if uint64(len(body)) < start+length {
		return nil, fmt.Errorf("soltest: truncated bytes data")
	}
	return body[start : start+length], nil
}

func decodeABIString(body []byte) (string, error) {
	raw, err := decodeABIBytes(body)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeTwoABIStrings(body []byte) (string, string, error) {
	if len(body) < 64 {
		return "", "", fmt.Errorf("soltest: malformed string arguments")
	}
	off1 := new(big.Int).SetBytes(body[:32]).Uint64()
	off2 := new(big.Int).SetBytes(body[32:64]).Uint64()
	read := func(off uint64) (string, error) {
		if uint64(len(body)) < off+32 {
			return "", fmt.Errorf("soltest: truncated string argument")
		}
		length := new(big.Int).SetBytes(body[off : off+32]).Uint64()
		if uint64(len(body)) < off+32+length {
			return "", fmt.Errorf("soltest: truncated string data")
		}
		return string(body[off+32 : off+32+length]), nil
	}
	first, err := read(off1)
	if err != nil {
		return "", "", err
	}
	second, err := read(off2)
	if err != nil {
		return "", "", err
	}
	return first, second, nil
}
