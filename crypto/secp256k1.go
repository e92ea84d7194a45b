package crypto

import (
	"errors"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"

	"github.com/edr-dev/edr/common"
)

// secp256k1N is the order of the secp256k1 curve.
var secp256k1N, _ = new(big.Int).SetString("fffffffffffffffffffffffffffffffebaaedce6af48a03bbfd25e8cd0364141", 16)
var secp256k1halfN = new(big.Int).Rsh(secp256k1N, 1)

var ErrInvalidSignatureLen = errors.New("crypto: invalid signature length")
var ErrInvalidRecoveryID = errors.New("crypto: invalid recovery id")

// Ecrecover recovers the 65-byte uncompressed public key from a 32-byte
// digest and a 65-byte [R || S || V] signature, where V is the 0/1 recovery
// id (§3 invariant: "signature recovery yields a non-zero sender").
func Ecrecover(digest, sig []byte) ([]byte, error) {
	pub, err := SigToPub(digest, sig)
	if err != nil {
		return nil, err
	}
	return pub.SerializeUncompressed(), nil
}

// SigToPub recovers the public key from digest and sig using real
// secp256k1 curve arithmetic.
func SigToPub(digest, sig []byte) (*secp256k1.PublicKey, error) {
	if len(sig) != 65 {
		return nil, ErrInvalidSignatureLen
	}
	if len(digest) != 32 {
		return nil, errors.New("crypto: digest must be 32 bytes")
	}
	v := sig[64]
	if v > 3 {
		return nil, ErrInvalidRecoveryID
	}
	// decred's RecoverCompact expects a 65-byte [recoveryID+27 || R || S]
	// compact signature.
	compact := make([]byte, 65)
	compact[0] = v + 27
	copy(compact[1:], sig[:64])
	pub, _, err := ecdsa.RecoverCompact(compact, digest)
	if err != nil {
		return nil, err
	}
	return pub, nil
}

// PubkeyToAddress derives the Ethereum address from an uncompressed
// secp256k1 public key: keccak256(pub.X || pub.Y)[12:].
func PubkeyToAddress(pub *secp256k1.PublicKey) common.Address {
	uncompressed := pub.SerializeUncompressed()
	hash := Keccak256(uncompressed[1:])
	return common.BytesToAddress(hash[12:])
}

// Sign computes a [R || S || V] recoverable signature over digest.
func Sign(digest []byte, priv *secp256k1.PrivateKey) ([]byte, error) {
	if len(digest) != 32 {
		return nil, errors.New("crypto: digest must be 32 bytes")
	}
	compact := ecdsa.SignCompact(priv, digest, false)
	// compact is [recoveryID+27 || R || S]; convert to [R || S || V].
	sig := make([]byte, 65)
	copy(sig, compact[1:])
	sig[64] = compact[0] - 27
	return sig, nil
}

// ValidateSignatureValues checks r, s, v for validity per Homestead's
// low-S rule (EIP-2).
func ValidateSignatureValues(v byte, r, s *big.Int, homestead bool) bool {
	if r == nil || s == nil {
		return false
	}
	if v > 1 {
		return false
	}
	if r.Sign() <= 0 || s.Sign() <= 0 {
		return false
	}
	if r.Cmp(secp256k1N) >= 0 || s.Cmp(secp256k1N) >= 0 {
		return false
	}
	if homestead && s.Cmp(secp256k1halfN) > 0 {
		return false
	}
	return true
}
