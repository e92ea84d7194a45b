package soltest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/state"
)

func newTestCheatcodes(t *testing.T) (*Cheatcodes, *state.Overlay, *CheatState) {
	t.Helper()
	statedb := state.NewOverlay(state.EmptyLoader)
	cheat := NewCheatState(1000, 1)
	c := NewCheatcodes(statedb, cheat, statedb.Snapshot, statedb.RevertToSnapshot)
	return c, statedb, cheat
}

func TestCheatcodeWarpSetsTimestamp(t *testing.T) {
	c, _, cheat := newTestCheatcodes(t)
	input, err := EncodeCall(warpFunc, []interface{}{uint256.NewInt(12345)})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if _, err := c.Run(input); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cheat.Timestamp != 12345 {
		t.Fatalf("Timestamp = %d, want 12345", cheat.Timestamp)
	}
}

func TestCheatcodeRollSetsBlockNumber(t *testing.T) {
	c, _, cheat := newTestCheatcodes(t)
	input, err := EncodeCall(rollFunc, []interface{}{uint256.NewInt(99)})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if _, err := c.Run(input); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cheat.BlockNumber != 99 {
		t.Fatalf("BlockNumber = %d, want 99", cheat.BlockNumber)
	}
}

func TestCheatcodeDealOverwritesBalance(t *testing.T) {
	c, statedb, _ := newTestCheatcodes(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000beef")
	statedb.CreateAccount(addr)
	statedb.AddBalance(addr, uint256.NewInt(1))

	input, err := EncodeCall(dealFunc, []interface{}{addr, uint256.NewInt(500)})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if _, err := c.Run(input); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := statedb.GetBalance(addr); !got.Eq(uint256.NewInt(500)) {
		t.Fatalf("balance = %s, want 500", got)
	}
}

func TestCheatcodePrankFamilyTracksCallerOverride(t *testing.T) {
	c, _, cheat := newTestCheatcodes(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000cafe")

	input, err := EncodeCall(startPrankFunc, []interface{}{addr})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if _, err := c.Run(input); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cheat.PrankFrom == nil || *cheat.PrankFrom != addr {
		t.Fatalf("PrankFrom = %v, want %s", cheat.PrankFrom, addr.Hex())
	}
	if cheat.PrankOnce {
		t.Fatalf("startPrank should not set PrankOnce")
	}

	stop, err := EncodeCall(stopPrankFunc, nil)
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if _, err := c.Run(stop); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if cheat.PrankFrom != nil {
		t.Fatalf("stopPrank should clear PrankFrom")
	}
}

func TestCheatcodeExpectRevertDecodesReason(t *testing.T) {
	c, _, cheat := newTestCheatcodes(t)
	errPayload, err := EncodeCall(Func{Name: "Error", Params: []ParamKind{KindString}}, []interface{}{"nope"})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}

	call, err := EncodeCall(expectRevertFunc, []interface{}{errPayload})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if _, err := c.Run(call); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !cheat.ExpectRevert {
		t.Fatalf("expected ExpectRevert to be set")
	}
	if cheat.ExpectRevertReason != "nope" {
		t.Fatalf("ExpectRevertReason = %q, want %q", cheat.ExpectRevertReason, "nope")
	}
}

func TestCheatcodeSnapshotAndRevertToRestoreState(t *testing.T) {
	c, statedb, _ := newTestCheatcodes(t)
	addr := common.HexToAddress("0x0000000000000000000000000000000000f00d")
	statedb.CreateAccount(addr)
	statedb.AddBalance(addr, uint256.NewInt(10))

	snapCall, err := EncodeCall(snapshotFunc, nil)
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	out, err := c.Run(snapCall)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	statedb.AddBalance(addr, uint256.NewInt(90))
	if got := statedb.GetBalance(addr); !got.Eq(uint256.NewInt(100)) {
		t.Fatalf("balance before revert = %s, want 100", got)
	}

	revertCall, err := EncodeCall(revertToFunc, []interface{}{new(uint256.Int).SetBytes(out)})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if _, err := c.Run(revertCall); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := statedb.GetBalance(addr); !got.Eq(uint256.NewInt(10)) {
		t.Fatalf("balance after revert = %s, want 10", got)
	}
}

func TestCheatcodeAssumeRejectsFalseCondition(t *testing.T) {
	c, _, _ := newTestCheatcodes(t)
	input, err := EncodeCall(assumeFunc, []interface{}{false})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if _, err := c.Run(input); err != ErrAssumeRejected {
		t.Fatalf("err = %v, want ErrAssumeRejected", err)
	}
}

func TestCheatcodeReadWriteFileRoundTripsAndMarksUnsafeToReplay(t *testing.T) {
	c, _, cheat := newTestCheatcodes(t)
	path := filepath.Join(t.TempDir(), "out.txt")

	writeCall, err := EncodeCall(writeFileFunc, []interface{}{path, "hello"})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if _, err := c.Run(writeCall); err != nil {
		t.Fatalf("Run(writeFile): %v", err)
	}
	if !cheat.UnsafeToReplay {
		t.Fatalf("expected writeFile to mark UnsafeToReplay")
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(contents) != "hello" {
		t.Fatalf("contents = %q, want %q", contents, "hello")
	}

	cheat.UnsafeToReplay = false
	readCall, err := EncodeCall(readFileFunc, []interface{}{path})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	out, err := c.Run(readCall)
	if err != nil {
		t.Fatalf("Run(readFile): %v", err)
	}
	decoded, err := decodeABIBytes(out)
	if err != nil {
		t.Fatalf("decodeABIBytes: %v", err)
	}
	if string(decoded) != "hello" {
		t.Fatalf("decoded = %q, want %q", decoded, "hello")
	}
	if !cheat.UnsafeToReplay {
		t.Fatalf("expected readFile to mark UnsafeToReplay")
	}
}
