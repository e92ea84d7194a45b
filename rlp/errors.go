// Package rlp implements Recursive Length Prefix encoding, the wire format
// EDR uses for block/header hashing and transaction-envelope hashing (§3,
// §4.A). Typed transaction envelopes (EIP-2718) are handled in typed.go on
// top of the core codec here.
package rlp

import "errors"

var (
	ErrExpectedString  = errors.New("rlp: expected string")
	ErrExpectedList    = errors.New("rlp: expected list")
	ErrCanonSize       = errors.New("rlp: non-canonical size information")
	ErrEOL             = errors.New("rlp: end of list")
	ErrCanonInt        = errors.New("rlp: non-canonical integer encoding")
	ErrNonCanonicalSize = errors.New("rlp: non-canonical size")
	ErrUint64Range     = errors.New("rlp: uint64 overflow")
	ErrValueTooLarge   = errors.New("rlp: value too large")
	ErrUnknownTxType   = errors.New("rlp: unknown typed-transaction envelope byte")
)
