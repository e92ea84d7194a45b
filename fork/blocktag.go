package fork

import "strconv"

// BlockTag is the "pinned block number or latest" half of the fork
// descriptor (§3): ⟨upstream URL, pinnedBlock, cacheDir⟩.
type BlockTag struct {
	// Pinned is the block number the fork is anchored to, or nil for
	// "latest".
	Pinned *uint64
}

// Pin anchors a fork to an immutable block number.
func Pin(number uint64) BlockTag { return BlockTag{Pinned: &number} }

// Latest anchors a fork to the chain head, re-resolved on first use and
// memoised only for the lifetime of one Cache.
var Latest = BlockTag{}

// UnsafeToReplay reports whether reads through this tag are safe to persist
// and reuse across runs (§4.F: "Execution flagged unsafe to replay" when
// pinned to latest).
func (t BlockTag) UnsafeToReplay() bool { return t.Pinned == nil }

// String renders the tag the way RpcFetcher's block parameter expects:
// a decimal block number, or the literal "latest".
func (t BlockTag) String() string {
	if t.Pinned == nil {
		return "latest"
	}
	return strconv.FormatUint(*t.Pinned, 10)
}

// number returns the numeric key-space coordinate for on-disk persistence.
// "latest" never reaches disk, so this is only ever called for pinned tags.
func (t BlockTag) number() uint64 {
	if t.Pinned == nil {
		return 0
	}
	return *t.Pinned
}
