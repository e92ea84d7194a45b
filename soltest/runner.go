// Package soltest implements the Solidity test runner (§4.K): it deploys a
// compiled test artefact into a standalone state overlay, enumerates its
// unit/fuzz/invariant test functions by ABI convention, and executes each
// against core/executor the same way the teacher's eftest package drives a
// standalone state test, but generalized to Forge-style test suites and a
// cheatcode precompile rather than EF state-test fixtures.
package soltest

import (
	"fmt"
	"math/big"

	gofuzz "github.com/google/gofuzz"
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/executor"
	"github.com/edr-dev/edr/core/state"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/core/vm"
	"github.com/edr-dev/edr/crypto"
	"github.com/edr-dev/edr/trace"
)

// deployerAddress is the fixed sender every suite deploys and calls from,
// pre-funded by NewSuite; tests that need a distinct caller use
// vm.prank/startPrank rather than a second real account.
var deployerAddress = common.HexToAddress("0x00a329c0648769A73afAc7F9381E08FB43dBEA72")

var setUpFunc = Func{Name: "setUp", Params: nil}

// Suite runs one Artefact's test functions against its own private state
// overlay.
type Suite struct {
	artefact Artefact
	statedb  *state.Overlay
	chainCfg vm.ChainConfig
	cheat    *CheatState
	contract common.Address

	decoded map[[4]byte]Func
}

// NewSuite deploys artefact's bytecode against a fresh overlay and, if
// present, calls its setUp() once (§4.K step 1: "deploy the artefact... and
// invoke setUp if present").
func NewSuite(artefact Artefact, chainID uint64, fork types.Hardfork) (*Suite, error) {
	s := &Suite{
		artefact: artefact,
		statedb:  state.NewOverlay(state.EmptyLoader),
		chainCfg: vm.ChainConfig{ChainID: chainID, Hardfork: fork},
		cheat:    NewCheatState(1, 1),
		decoded:  make(map[[4]byte]Func),
	}
	for _, f := range artefact.Functions {
		s.decoded[f.Selector()] = f
	}

	s.statedb.CreateAccount(deployerAddress)
	s.statedb.AddBalance(deployerAddress, uint256.NewInt(0).SetAllOne())

	addr, _, result, err := s.execute(deployerAddress, nil, artefact.Bytecode, nil, true)
	if err != nil {
		return nil, fmt.Errorf("soltest: deploy %s: %w", artefact.Name, err)
	}
	if result.Failed() {
		return nil, fmt.Errorf("soltest: deploy %s reverted: %w", artefact.Name, result.Err)
	}
	s.contract = addr

	if _, ok := s.findFunc(setUpFunc.Name); ok {
		_, _, result, err := s.execute(deployerAddress, &s.contract, nil, mustEncode(setUpFunc, nil), false)
		if err != nil {
			return nil, fmt.Errorf("soltest: setUp: %w", err)
		}
		if result.Failed() {
			return nil, fmt.Errorf("soltest: setUp reverted: %w", result.Err)
		}
	}
	return s, nil
}

func mustEncode(f Func, args []interface{}) []byte {
	data, err := EncodeCall(f, args)
	if err != nil {
		panic(err)
	}
	return data
}

func (s *Suite) findFunc(name string) (Func, bool) {
	for _, f := range s.artefact.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return Func{}, false
}

// execute is the single entry point every deploy/setUp/test/invariant call
// goes through: it builds an executor.Message directly (no signed
// transaction, no mempool — test calls are never on-chain, §4.K), installs
// the cheatcode precompile via vm.Config.PrecompileOverlay, and optionally
// wires tracer for gas reporting.
func (s *Suite) execute(from common.Address, to *common.Address, createCode, callData []byte, isCreate bool) (common.Address, []byte, *executor.Result, error) {
	return s.executeWithTracer(from, to, createCode, callData, isCreate, nil)
}

func (s *Suite) executeWithTracer(from common.Address, to *common.Address, createCode, callData []byte, isCreate bool, tracer vm.Tracer) (common.Address, []byte, *executor.Result, error) {
	data := callData
	if isCreate {
		data = createCode
	}
	msg := &executor.Message{
		From:     from,
		To:       to,
		Nonce:    s.statedb.GetNonce(from),
		Value:    new(uint256.Int),
		GasLimit: 0xffffffff,
		GasPrice: new(uint256.Int),
		Data:     data,
		TxType:   types.LegacyTxType,
	}

	blockCtx := vm.BlockContext{
		GetHash:     func(uint64) common.Hash { return common.Hash{} },
		Coinbase:    common.Address{},
		GasLimit:    0xffffffff,
		BlockNumber: s.cheat.BlockNumber,
		Time:        s.cheat.Timestamp,
	}

	cheatcodes := NewCheatcodes(s.statedb, s.cheat, s.statedb.Snapshot, s.statedb.RevertToSnapshot)
	cfg := vm.Config{
		NoBaseFee: true,
		PrecompileOverlay: map[common.Address]vm.PrecompiledContract{
			CheatcodeAddress: cheatcodes,
		},
	}

	effectiveFrom := from
	if s.cheat.PrankFrom != nil {
		effectiveFrom = *s.cheat.PrankFrom
		msg.From = effectiveFrom
		msg.Nonce = s.statedb.GetNonce(effectiveFrom)
		if s.cheat.PrankOnce {
			s.cheat.PrankFrom = nil
			s.cheat.PrankOnce = false
		}
	}

	gp := executor.GasPool(msg.GasLimit)
	result, err := executor.ApplyMessageWithConfig(blockCtx, s.chainCfg, s.statedb, msg, &gp, cfg, tracer)
	if err != nil {
		return common.Address{}, nil, nil, err
	}
	return result.ContractAddress, result.ReturnData, result, nil
}

// Identify implements trace.ContractDecoder for this suite's own artefact,
// §6's "identify(codeHash) -> Option<ContractIdentity>".
func (s *Suite) Identify(codeHash common.Hash) (trace.ContractIdentity, bool) {
	if codeHash != crypto.Keccak256Hash(s.artefact.Bytecode) {
		return trace.ContractIdentity{}, false
	}
	return trace.ContractIdentity{
		Name:       s.artefact.Name,
		SourceID:   s.artefact.SourceID,
		Deployment: len(s.artefact.Bytecode),
	}, true
}

// DecodeRevert implements trace.ContractDecoder.
func (s *Suite) DecodeRevert(data []byte) (string, bool) {
	return DecodeRevertReason(data)
}

// FunctionSignature implements trace.ContractDecoder by matching the
// selector against this suite's own enumerated functions; code is unused
// since soltest already knows every function by its artefact, not by
// disassembling the deployed bytecode.
func (s *Suite) FunctionSignature(code []byte, selector [4]byte) (string, bool) {
	f, ok := s.decoded[selector]
	if !ok {
		return "", false
	}
	return f.Name + "(" + joinKinds(f.Params) + ")", true
}

// Run executes every enumerated test/fuzz/invariant function in the
// artefact matching cfg.TestPattern (§4.K steps 2-5) and returns the
// aggregate suite result.
func (s *Suite) Run(cfg RunConfig) SuiteResult {
	if cfg.Runs == 0 {
		cfg = DefaultRunConfig()
	}
	var recorder *trace.GasReportRecorder
	if cfg.GenerateGasReport {
		recorder = trace.NewGasReportRecorder(s, func(addr common.Address) (common.Hash, []byte) {
			code := s.statedb.GetCode(addr)
			return crypto.Keccak256Hash(code), code
		})
	}

	out := SuiteResult{Name: s.artefact.Name}
	for _, f := range s.artefact.Functions {
		if !isTestFunction(f.Name) {
			continue
		}
		if cfg.TestPattern != "" && !containsSubstring(f.Name, cfg.TestPattern) {
			continue
		}
		if recorder != nil {
			recorder.Reset()
		}

		// A nil *trace.GasReportRecorder boxed directly into the vm.Tracer
		// parameter would produce a non-nil interface wrapping a nil
		// pointer, and the interpreter's `if evm.Tracer != nil` check would
		// then dispatch into it and panic; pass a genuinely nil interface
		// when gas reporting is off.
		var tracer vm.Tracer
		if recorder != nil {
			tracer = recorder
		}

		kind := testKind(f)
		var res TestResult
		switch kind {
		case KindFuzz:
			res = s.runFuzz(f, cfg, tracer)
		case KindInvariant:
			res = s.runInvariant(f, cfg, tracer)
		default:
			res = s.runUnit(f, tracer)
		}
		res.Kind = kind
		if recorder != nil {
			for _, r := range recorder.Reports {
				res.GasUsed += r.GasUsed
			}
		}
		out.Results = append(out.Results, res)
	}
	return out
}

func containsSubstring(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// runUnit executes f once under a snapshot, reverted afterwards so the next
// test starts from the clean post-setUp state (§4.K step 3), honoring
// testFail* (success is a failure, revert is success) and
// vm.expectRevert(...) expectations.
func (s *Suite) runUnit(f Func, tracer vm.Tracer) TestResult {
	snap := s.statedb.Snapshot()
	defer s.statedb.RevertToSnapshot(snap)
	s.cheat.ExpectRevert = false
	s.cheat.ExpectRevertReason = ""

	_, ret, result, err := s.executeWithTracer(deployerAddress, &s.contract, nil, mustEncode(f, nil), false, tracer)
	if err != nil {
		return TestResult{Name: f.Name, Status: StatusFailure, Reason: err.Error()}
	}
	return s.judgeUnit(f.Name, result, ret)
}

func (s *Suite) judgeUnit(name string, result *executor.Result, ret []byte) TestResult {
	expectFail := isFailureExpected(name)
	reverted := result.Failed()

	if s.cheat.ExpectRevert {
		if !reverted {
			return TestResult{Name: name, Status: StatusFailure, Reason: "expected a revert that did not occur", UnsafeToReplay: s.cheat.UnsafeToReplay}
		}
		reason, _ := DecodeRevertReason(ret)
		if s.cheat.ExpectRevertReason != "" && reason != s.cheat.ExpectRevertReason {
			return TestResult{Name: name, Status: StatusFailure, Reason: fmt.Sprintf("revert reason mismatch: want %q, got %q", s.cheat.ExpectRevertReason, reason), UnsafeToReplay: s.cheat.UnsafeToReplay}
		}
		return TestResult{Name: name, Status: StatusSuccess, UnsafeToReplay: s.cheat.UnsafeToReplay}
	}

	if expectFail {
		if !reverted {
			return TestResult{Name: name, Status: StatusFailure, Reason: "expected revert (testFail) but call succeeded", UnsafeToReplay: s.cheat.UnsafeToReplay}
		}
		return TestResult{Name: name, Status: StatusSuccess, UnsafeToReplay: s.cheat.UnsafeToReplay}
	}

	if reverted {
		reason, _ := DecodeRevertReason(ret)
		if reason == "" {
			reason = result.Err.Error()
		}
		return TestResult{Name: name, Status: StatusFailure, Reason: reason, UnsafeToReplay: s.cheat.UnsafeToReplay}
	}
	return TestResult{Name: name, Status: StatusSuccess, UnsafeToReplay: s.cheat.UnsafeToReplay}
}

// runFuzz draws cfg.Runs random argument tuples via google/gofuzz (§4.K
// step 4), first replaying any persisted corpus failure for this test if
// its source hash still matches (§6), and on the first new failure
// persists the triggering calldata and stops (one counter-example per
// test, runs-counter reset to 1 on the next invocation).
func (s *Suite) runFuzz(f Func, cfg RunConfig, tracer vm.Tracer) TestResult {
	fz := gofuzz.NewWithSeed(cfg.Seed)

	if cfg.CorpusDir != "" {
		if entry, ok := loadCorpusEntry(cfg.CorpusDir, s.artefact.Name, f.Name, s.artefact.SourceHash); ok {
			if calldata, err := decodeCalldata(entry); err == nil {
				if res, failed := s.tryFuzzCall(f, calldata, tracer); failed {
					res.Runs = 1
					return res
				}
			}
		}
	}

	rejects := 0
	for run := 0; run < cfg.Runs; run++ {
		_, calldata := drawArgs(fz, f)
		res, failed := s.tryFuzzCall(f, calldata, tracer)
		if !failed {
			continue
		}
		if res.Status == StatusSkipped {
			rejects++
			if rejects > cfg.MaxAssumeRejects {
				break
			}
			run--
			continue
		}
		res.Runs = run + 1
		if cfg.CorpusDir != "" && !res.UnsafeToReplay {
			_ = saveCorpusEntry(cfg.CorpusDir, s.artefact.Name, f.Name, s.artefact.SourceHash, calldata)
		}
		return res
	}
	return TestResult{Name: f.Name, Status: StatusSuccess, Runs: cfg.Runs}
}

// tryFuzzCall runs one fuzz draw's calldata under a snapshot, always
// reverted afterwards. It returns (result, true) for a failing draw and for
// a draw rejected with ErrAssumeRejected (result.Status is StatusSkipped),
// and (result, false) otherwise.
func (s *Suite) tryFuzzCall(f Func, calldata []byte, tracer vm.Tracer) (TestResult, bool) {
	snap := s.statedb.Snapshot()
	defer s.statedb.RevertToSnapshot(snap)
	s.cheat.ExpectRevert = false
	s.cheat.UnsafeToReplay = false

	_, ret, result, err := s.executeWithTracer(deployerAddress, &s.contract, nil, calldata, false, tracer)
	if err != nil {
		if err == ErrAssumeRejected {
			return TestResult{Name: f.Name, Status: StatusSkipped}, true
		}
		return TestResult{Name: f.Name, Status: StatusFailure, Reason: err.Error()}, true
	}
	res := s.judgeUnit(f.Name, result, ret)
	if res.Status == StatusFailure {
		return res, true
	}
	return res, false
}

// drawArgs fuzzes one argument tuple for f.Params and returns both the raw
// values (for diagnostics) and the already-ABI-encoded calldata gofuzz's
// reflection can't produce directly (uint256.Int/big.Int carry unexported
// state gofuzz cannot populate meaningfully).
func drawArgs(fz *gofuzz.Fuzzer, f Func) ([]interface{}, []byte) {
	args := make([]interface{}, len(f.Params))
	for i, kind := range f.Params {
		switch kind {
		case KindUint256:
			var b [32]byte
			fz.Fuzz(&b)
			args[i] = new(uint256.Int).SetBytes(b[:])
		case KindInt256:
			var n int64
			fz.Fuzz(&n)
			args[i] = big.NewInt(n)
		case KindAddress:
			var b [20]byte
			fz.Fuzz(&b)
			args[i] = common.BytesToAddress(b[:])
		case KindBool:
			var v bool
			fz.Fuzz(&v)
			args[i] = v
		case KindBytes32:
			var b [32]byte
			fz.Fuzz(&b)
			args[i] = b
		case KindBytes:
			var b []byte
			fz.Fuzz(&b)
			args[i] = b
		case KindString:
			var str string
			fz.Fuzz(&str)
			args[i] = str
		}
	}
	calldata, err := EncodeCall(f, args)
	if err != nil {
		panic(err)
	}
	return args, calldata
}

// runInvariant performs cfg.Runs sequences of cfg.Depth random calls
// against the target contract's selectors, asserting f (the invariant_*
// predicate) after every call (§4.K step 5).
func (s *Suite) runInvariant(f Func, cfg RunConfig, tracer vm.Tracer) TestResult {
	target := s.contract
	if cfg.TargetContract != nil {
		target = *cfg.TargetContract
	}
	selectors := cfg.TargetSelector
	if len(selectors) == 0 {
		selectors = s.artefact.Functions
	}
	selectors = excludeSelectors(selectors, cfg.ExcludeSelector)
	if len(selectors) == 0 {
		return TestResult{Name: f.Name, Status: StatusSkipped}
	}

	fz := gofuzz.NewWithSeed(cfg.Seed)
	snap := s.statedb.Snapshot()
	defer s.statedb.RevertToSnapshot(snap)

	totalRuns := 0
	for run := 0; run < cfg.Runs; run++ {
		for depth := 0; depth < cfg.Depth; depth++ {
			var idx int
			fz.Fuzz(&idx)
			if idx < 0 {
				idx = -idx
			}
			call := selectors[idx%len(selectors)]
			_, calldata := drawArgs(fz, call)

			callSnap := s.statedb.Snapshot()
			_, _, result, err := s.executeWithTracer(deployerAddress, &target, nil, calldata, false, tracer)
			if err != nil || (result != nil && result.Failed()) {
				if cfg.FailOnRevert {
					s.statedb.RevertToSnapshot(callSnap)
					return TestResult{Name: f.Name, Status: StatusFailure, Reason: "invariant target call reverted", Runs: totalRuns}
				}
				s.statedb.RevertToSnapshot(callSnap)
				continue
			}

			_, ret, invResult, err := s.executeWithTracer(deployerAddress, &s.contract, nil, mustEncode(f, nil), false, tracer)
			totalRuns++
			if err != nil || invResult.Failed() {
				reason, _ := DecodeRevertReason(ret)
				if reason == "" && err != nil {
					reason = err.Error()
				}
				return TestResult{Name: f.Name, Status: StatusFailure, Reason: reason, Runs: totalRuns}
			}
		}
	}
	return TestResult{Name: f.Name, Status: StatusSuccess, Runs: totalRuns}
}

func excludeSelectors(funcs, exclude []Func) []Func {
	if len(exclude) == 0 {
		return funcs
	}
	excluded := make(map[[4]byte]bool, len(exclude))
	for _, f := range exclude {
		excluded[f.Selector()] = true
	}
	out := make([]Func, 0, len(funcs))
	for _, f := range funcs {
		if !excluded[f.Selector()] {
			out = append(out, f)
		}
	}
	return out
}
