package chainspec

import "encoding/binary"

// errorSelector is the first four bytes of keccak256("Error(string)"), the
// standard Solidity revert-reason encoding every client and tooling chain
// decodes. No ABI-encoding library appears anywhere in the retrieved
// dependency pack, and this is the one fixed-shape encoding chainspec ever
// needs to produce, so it is hand-rolled rather than pulled in wholesale.
var errorSelector = [4]byte{0x08, 0xc3, 0x79, 0xa0}

// encodeRevertString ABI-encodes msg as a standard Error(string) revert
// payload: selector, then the dynamic-string head (offset, length) and its
// right-padded, 32-byte-aligned data.
func encodeRevertString(msg string) []byte {
	data := []byte(msg)
	padded := (len(data) + 31) / 32 * 32

	out := make([]byte, 4+32+32+padded)
	copy(out[0:4], errorSelector[:])

	binary.BigEndian.PutUint64(out[4+24:4+32], 32)
	binary.BigEndian.PutUint64(out[36+24:36+32], uint64(len(data)))
	copy(out[68:68+len(data)], data)

	return out
}
