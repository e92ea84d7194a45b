// Package crypto implements the hash and signature primitives EDR needs:
// Keccak-256 hashing, secp256k1 ECDSA recovery, and the BLS12-381/KZG
// precompile primitives used by the EVM interpreter (§4.A).
package crypto

import (
	"golang.org/x/crypto/sha3"

	"github.com/edr-dev/edr/common"
)

// Keccak256 hashes the concatenation of data.
func Keccak256(data ...[]byte) []byte {
	d := sha3.NewLegacyKeccak256()
	for _, b := range data {
		d.Write(b)
	}
	return d.Sum(nil)
}

// Keccak256Hash hashes the concatenation of data and returns a common.Hash.
func Keccak256Hash(data ...[]byte) common.Hash {
	return common.BytesToHash(Keccak256(data...))
}
