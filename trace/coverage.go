package trace

import (
	"encoding/binary"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/holiman/bloomfilter/v2"

	"github.com/edr-dev/edr/common"
)

// CoverageSinkAddress is the reserved address instrumented bytecode CALLs
// with a 32-byte tag to report a coverage hit (§4.I). It is wired into
// vm.Config.CoverageSink by the component constructing the EVM.
var CoverageSinkAddress = common.HexToAddress("0x000000000000000000000000636f766572616765")

// bloomK/bloomM size the probabilistic pre-filter for a single suite run:
// a few hundred thousand distinct statement tags is the realistic upper
// bound for one instrumented contract's test session, and a false-positive
// rate in the 1e-4 range only costs an extra exact-set lookup, never a
// correctness bug (the exact set is always consulted before a tag is
// reported new).
const (
	bloomM = 1 << 22
	bloomK = 7
)

// CoverageSink de-duplicates statement-coverage hits for one suite run
// (§4.I: "de-duplication is the consumer's concern"). It layers a
// probabilistic holiman/bloomfilter/v2 pre-filter in front of an exact
// deckarep/golang-set/v2 set, the same two-stage membership pattern
// cockroachdb/pebble itself uses internally to avoid exact lookups on
// certain misses — here avoiding a mutex-held map probe on the hot path
// for tags that have certainly never been seen.
type CoverageSink struct {
	mu     sync.Mutex
	bloom  *bloomfilter.Filter
	seen   mapset.Set[common.Hash]
	onNew  func(tag common.Hash)
	hits   uint64
}

// NewCoverageSink constructs an empty sink. onNew, if non-nil, is invoked
// once per previously-unseen tag, in the order hits arrive.
func NewCoverageSink(onNew func(tag common.Hash)) *CoverageSink {
	bf, err := bloomfilter.New(bloomM, bloomK)
	if err != nil {
		// bloomM/bloomK are compile-time constants known to be valid; a
		// failure here means the library's own invariants changed under us.
		panic(fmt.Sprintf("trace: bloomfilter.New: %v", err))
	}
	return &CoverageSink{
		bloom: bf,
		seen:  mapset.NewSet[common.Hash](),
		onNew: onNew,
	}
}

// Callback is assignable to vm.Config.CoverageCallback. tag must be exactly
// 32 bytes; a shorter or longer tag is a programming error in the
// instrumented bytecode and is reported rather than silently truncated.
func (s *CoverageSink) Callback(tag []byte) error {
	if len(tag) != common.HashLength {
		return fmt.Errorf("trace: coverage tag must be %d bytes, got %d", common.HashLength, len(tag))
	}
	h := common.BytesToHash(tag)
	s.Record(h)
	return nil
}

// Record is the non-EVM entry point (used directly by tests and by the
// Solidity test runner's own instrumentation path).
func (s *CoverageSink) Record(h common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++

	key := bloomKey(h)
	if s.bloom.Contains(key) && s.seen.Contains(h) {
		return
	}
	s.bloom.Add(key)
	if s.seen.Add(h) && s.onNew != nil {
		s.onNew(h)
	}
}

// Tags returns every distinct tag recorded so far, in no particular order.
func (s *CoverageSink) Tags() []common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seen.ToSlice()
}

// Hits returns the total number of Record/Callback invocations, including
// repeats of an already-seen tag.
func (s *CoverageSink) Hits() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

// Reset clears the sink for reuse across suite runs (§5: "the test runner
// clears [gas reports] per suite" — coverage buffers are cleared the same
// way between suites).
func (s *CoverageSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	bf, err := bloomfilter.New(bloomM, bloomK)
	if err != nil {
		panic(fmt.Sprintf("trace: bloomfilter.New: %v", err))
	}
	s.bloom = bf
	s.seen = mapset.NewSet[common.Hash]()
	s.hits = 0
}

func bloomKey(h common.Hash) bloomfilter.Key {
	return bloomfilter.NewHash(binary.BigEndian.Uint64(h[:8]))
}
