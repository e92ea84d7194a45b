// Package common defines the primitive value types shared across EDR:
// addresses, hashes, the 256-bit EVM word, and bloom filters.
package common

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

const (
	HashLength    = 32
	AddressLength = 20
	BloomLength   = 256
)

// Hash is the 32-byte Keccak256 output type used for block, transaction,
// and storage-key identities.
type Hash [HashLength]byte

// Address is the 20-byte identity of an account or contract.
type Address [AddressLength]byte

// Bloom is a 2048-bit bloom filter over log addresses and topics.
type Bloom [BloomLength]byte

// Word is the native 256-bit EVM value. All arithmetic on it wraps modulo
// 2**256, matching the holiman/uint256 semantics used throughout the
// go-ethereum ecosystem this corpus is drawn from.
type Word = uint256.Int

// NewWord returns a zero-valued Word.
func NewWord() *Word { return new(uint256.Int) }

// WordFromUint64 constructs a Word holding v.
func WordFromUint64(v uint64) *Word { return uint256.NewInt(v) }

func BytesToHash(b []byte) Hash {
	var h Hash
	h.SetBytes(b)
	return h
}

func HexToHash(s string) Hash { return BytesToHash(fromHex(s)) }

func (h Hash) Bytes() []byte { return h[:] }
func (h Hash) Hex() string   { return "0x" + hex.EncodeToString(h[:]) }
func (h Hash) String() string { return h.Hex() }
func (h Hash) IsZero() bool  { return h == Hash{} }

func (h *Hash) SetBytes(b []byte) {
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
}

func BytesToAddress(b []byte) Address {
	var a Address
	a.SetBytes(b)
	return a
}

func HexToAddress(s string) Address { return BytesToAddress(fromHex(s)) }

func (a Address) Bytes() []byte   { return a[:] }
func (a Address) Hex() string     { return "0x" + hex.EncodeToString(a[:]) }
func (a Address) String() string  { return a.Hex() }
func (a Address) IsZero() bool    { return a == Address{} }

func (a *Address) SetBytes(b []byte) {
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
}

// Less orders addresses lexicographically; used for deterministic iteration
// over account maps (e.g. gas-report contract identities).
func (a Address) Less(b Address) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

func (b Bloom) Bytes() []byte { return b[:] }

// Add ORs the 3-bit-per-hash bloom contribution of data into b, following
// the canonical Ethereum bloom construction (3 indices derived from the
// low 11 bits of three 16-bit windows of keccak256(data)).
func (b *Bloom) Add(hashed []byte) {
	for i := 0; i < 3; i++ {
		bitIdx := (uint(hashed[i*2])<<8 | uint(hashed[i*2+1])) & 0x7ff
		byteIdx := BloomLength - 1 - bitIdx/8
		bit := byte(1) << (bitIdx % 8)
		b[byteIdx] |= bit
	}
}

// OrBloom merges other into b in place, used to fold receipt blooms into a
// block's header bloom (§3 invariant: logsBloom = union of receipt blooms).
func (b *Bloom) OrBloom(other Bloom) {
	for i := range b {
		b[i] |= other[i]
	}
}

func fromHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		panic(fmt.Sprintf("common: invalid hex string %q: %v", s, err))
	}
	return b
}
