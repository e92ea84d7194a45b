package fork

import (
	"fmt"

	"github.com/edr-dev/edr/common"
)

// Key layout mirrors the directory tree named in §6 —
// edr-cache/<chainId>/<blockNumber>/accounts/<addr>.bin,
// .../storage/<addr>/<key>.bin, .../blocks/<hash>.bin — as a flat key
// space inside one pebble store per chain ID, rather than one file per
// entry: a single LSM tree already gives the content-addressed,
// atomic-write, concurrent-reader semantics §6 asks for without EDR having
// to hand-roll temp+rename file juggling for every cached value.
func accountKey(blockNumber uint64, addr common.Address) []byte {
	return []byte(fmt.Sprintf("accounts/%d/%s", blockNumber, addr.Hex()))
}

func storageKey(blockNumber uint64, addr common.Address, slot common.Hash) []byte {
	return []byte(fmt.Sprintf("storage/%d/%s/%s", blockNumber, addr.Hex(), slot.Hex()))
}

func codeKey(blockNumber uint64, addr common.Address) []byte {
	return []byte(fmt.Sprintf("code/%d/%s", blockNumber, addr.Hex()))
}

func blockKey(hashOrNumber string) []byte {
	return []byte(fmt.Sprintf("blocks/%s", hashOrNumber))
}
