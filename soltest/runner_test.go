package soltest

import (
	"testing"

	"github.com/edr-dev/edr/core/types"
)

// buildDeployBytecode wraps runtime (assumed under 256 bytes) in the
// standard minimal constructor pattern: CODECOPY the runtime bytes out of
// the init code itself and RETURN them, the same "return your own tail"
// trick real Solidity constructors compile down to.
func buildDeployBytecode(runtime []byte) []byte {
	const preambleLen = 12
	offset := byte(preambleLen)
	length := byte(len(runtime))
	init := []byte{
		0x60, length, // PUSH1 <len>
		0x60, offset, // PUSH1 <offset>
		0x60, 0x00, // PUSH1 0 (destOffset)
		0x39,       // CODECOPY
		0x60, length, // PUSH1 <len>
		0x60, 0x00, // PUSH1 0 (memory offset)
		0xf3, // RETURN
	}
	return append(init, runtime...)
}

var alwaysSucceedsRuntime = []byte{0x00} // STOP

var alwaysRevertsRuntime = []byte{0x60, 0x00, 0x60, 0x00, 0xfd} // PUSH1 0, PUSH1 0, REVERT

func newPassingArtefact(functions []Func) Artefact {
	code := buildDeployBytecode(alwaysSucceedsRuntime)
	return Artefact{Name: "PassingSuite", SourceID: "PassingSuite.sol", SourceHash: "v1", Bytecode: code, Functions: functions}
}

func newRevertingArtefact(functions []Func) Artefact {
	code := buildDeployBytecode(alwaysRevertsRuntime)
	return Artefact{Name: "RevertingSuite", SourceID: "RevertingSuite.sol", SourceHash: "v1", Bytecode: code, Functions: functions}
}

func TestSuiteUnitTestSucceedsWhenCallDoesNotRevert(t *testing.T) {
	artefact := newPassingArtefact([]Func{{Name: "testAlwaysPasses"}})
	suite, err := NewSuite(artefact, 1337, types.Prague)
	if err != nil {
		t.Fatalf("NewSuite: %v", err)
	}
	result := suite.Run(DefaultRunConfig())
	if len(result.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(result.Results))
	}
	if result.Results[0].Status != StatusSuccess {
		t.Fatalf("status = %v, reason = %q", result.Results[0].Status, result.Results[0].Reason)
	}
	if !result.Passed() {
		t.Fatalf("expected the suite to pass")
	}
}

func TestSuiteUnitTestFailsWhenCallRevertsUnexpectedly(t *testing.T) {
	artefact := newRevertingArtefact([]Func{{Name: "testAlwaysReverts"}})
	suite, err := NewSuite(artefact, 1337, types.Prague)
	if err != nil {
		t.Fatalf("NewSuite: %v", err)
	}
	result := suite.Run(DefaultRunConfig())
	if result.Results[0].Status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure", result.Results[0].Status)
	}
	if result.Passed() {
		t.Fatalf("expected the suite to fail")
	}
}

func TestSuiteTestFailConventionTreatsRevertAsSuccess(t *testing.T) {
	artefact := newRevertingArtefact([]Func{{Name: "testFailOnPurpose"}})
	suite, err := NewSuite(artefact, 1337, types.Prague)
	if err != nil {
		t.Fatalf("NewSuite: %v", err)
	}
	result := suite.Run(DefaultRunConfig())
	if result.Results[0].Status != StatusSuccess {
		t.Fatalf("status = %v, want StatusSuccess for a testFail* convention test", result.Results[0].Status)
	}
}

func TestSuiteTestFailConventionFailsWhenCallSucceeds(t *testing.T) {
	artefact := newPassingArtefact([]Func{{Name: "testFailButSucceeds"}})
	suite, err := NewSuite(artefact, 1337, types.Prague)
	if err != nil {
		t.Fatalf("NewSuite: %v", err)
	}
	result := suite.Run(DefaultRunConfig())
	if result.Results[0].Status != StatusFailure {
		t.Fatalf("status = %v, want StatusFailure since testFail* requires a revert", result.Results[0].Status)
	}
}

func TestSuiteFuzzTestDrawsConfiguredRunsWhenAlwaysPassing(t *testing.T) {
	artefact := newPassingArtefact([]Func{{Name: "testFuzzAlwaysPasses", Params: []ParamKind{KindUint256}}})
	suite, err := NewSuite(artefact, 1337, types.Prague)
	if err != nil {
		t.Fatalf("NewSuite: %v", err)
	}
	cfg := DefaultRunConfig()
	cfg.Runs = 8
	result := suite.Run(cfg)
	if result.Results[0].Status != StatusSuccess {
		t.Fatalf("status = %v, reason = %q", result.Results[0].Status, result.Results[0].Reason)
	}
	if result.Results[0].Runs != cfg.Runs {
		t.Fatalf("Runs = %d, want %d", result.Results[0].Runs, cfg.Runs)
	}
}

func TestSuiteTestPatternFiltersByNameSubstring(t *testing.T) {
	artefact := newPassingArtefact([]Func{
		{Name: "testAlpha"},
		{Name: "testBeta"},
	})
	suite, err := NewSuite(artefact, 1337, types.Prague)
	if err != nil {
		t.Fatalf("NewSuite: %v", err)
	}
	cfg := DefaultRunConfig()
	cfg.TestPattern = "Alpha"
	result := suite.Run(cfg)
	if len(result.Results) != 1 || result.Results[0].Name != "testAlpha" {
		t.Fatalf("Results = %+v, want only testAlpha", result.Results)
	}
}

func TestSuiteInvariantHoldsAcrossRandomCalls(t *testing.T) {
	invariantFunc := Func{Name: "invariant_alwaysHolds"}
	mutateFunc := Func{Name: "mutate", Params: []ParamKind{KindUint256}}
	artefact := newPassingArtefact([]Func{invariantFunc, mutateFunc})
	suite, err := NewSuite(artefact, 1337, types.Prague)
	if err != nil {
		t.Fatalf("NewSuite: %v", err)
	}
	cfg := DefaultRunConfig()
	cfg.Runs = 2
	cfg.Depth = 3
	cfg.TargetSelector = []Func{mutateFunc}
	result := suite.Run(cfg)
	if result.Results[0].Status != StatusSuccess {
		t.Fatalf("status = %v, reason = %q", result.Results[0].Status, result.Results[0].Reason)
	}
	if want := cfg.Runs * cfg.Depth; result.Results[0].Runs != want {
		t.Fatalf("Runs = %d, want %d", result.Results[0].Runs, want)
	}
}
