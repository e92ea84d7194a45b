package soltest

import (
	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
)

// Artefact is one compiled Solidity test contract: its deploy bytecode, the
// function signatures soltest needs to enumerate test/fuzz/invariant
// targets, and a content hash used to invalidate stale corpus files (§6).
type Artefact struct {
	Name       string
	SourceID   string // compiler unit id, forwarded to trace.ContractDecoder
	SourceHash string // hash of the compiled bytecode, corpus staleness key
	Bytecode   []byte
	Functions  []Func // every exported function, including non-test helpers
}

// TestKind classifies one enumerated Func by its §4.K naming convention.
type TestKind int

const (
	KindUnit TestKind = iota
	KindFuzz
	KindInvariant
)

// testKind classifies name per Foundry/Forge convention: testFail* is a
// unit test expected to revert, testFuzz*/fuzz args beyond the trivial case
// are still enumerated as KindFuzz by arity, invariant_* drives the
// invariant runner.
func testKind(f Func) TestKind {
	switch {
	case hasPrefix(f.Name, "invariant_"):
		return KindInvariant
	case len(f.Params) > 0:
		return KindFuzz
	default:
		return KindUnit
	}
}

func isTestFunction(name string) bool {
	return hasPrefix(name, "test") || hasPrefix(name, "invariant_")
}

func isFailureExpected(name string) bool {
	return hasPrefix(name, "testFail")
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// RunConfig is one suite run's parameters (§4.K step 5: fuzz/invariant
// knobs, §6: test selection and gas-report toggle).
type RunConfig struct {
	// TestPattern, when non-empty, restricts execution to functions whose
	// name contains it (simple substring match, matching Forge's --match-test).
	TestPattern string

	// GenerateGasReport wires a trace.GasReportRecorder around every call
	// frame the suite executes.
	GenerateGasReport bool

	// Runs is the number of draws a fuzz test performs, and the number of
	// random call sequences an invariant test performs.
	Runs int
	// Depth is the number of calls per invariant run.
	Depth int
	// MaxAssumeRejects bounds retries after vm.assume(false) before a fuzz
	// draw is abandoned as unsatisfiable (§4.K step 5, §9).
	MaxAssumeRejects int

	// TargetContract/TargetSelector/ExcludeSelector scope which deployed
	// contract and which of its selectors an invariant run calls into; a nil
	// TargetContract defaults to the suite contract itself.
	TargetContract  *common.Address
	TargetSelector  []Func
	ExcludeSelector []Func

	// FailOnRevert treats any reverted call during an invariant run's random
	// call sequence as a failure rather than silently skipping it.
	FailOnRevert bool

	// CorpusDir, when non-empty, enables failure-corpus persistence and
	// replay (§6).
	CorpusDir string

	// Seed seeds the fuzz/invariant PRNG so a run is reproducible absent
	// corpus replay.
	Seed int64
}

// DefaultRunConfig mirrors Forge's defaults closely enough for a suite that
// supplies no overrides to still behave sensibly.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Runs:             256,
		Depth:            15,
		MaxAssumeRejects: 65536,
		Seed:             1,
	}
}

// Status is a single test's outcome.
type Status int

const (
	StatusSuccess Status = iota
	StatusFailure
	StatusSkipped
)

// TestResult is one enumerated function's outcome.
type TestResult struct {
	Name           string
	Kind           TestKind
	Status         Status
	Reason         string // decoded revert reason, when available
	GasUsed        uint64
	Runs           int  // fuzz/invariant: number of draws actually performed
	UnsafeToReplay bool // §9: an impure cheatcode was used; no corpus entry was written
	Logs           []*types.Log
}

// SuiteResult is one artefact's full run.
type SuiteResult struct {
	Name    string
	Results []TestResult
}

// Passed reports whether every test in the suite succeeded or was skipped.
func (s SuiteResult) Passed() bool {
	for _, r := range s.Results {
		if r.Status == StatusFailure {
			return false
		}
	}
	return true
}
