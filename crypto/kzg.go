package crypto

import (
	"errors"
	"sync"

	ckzg "github.com/crate-crypto/go-kzg-4844"
)

// KZG point-evaluation precompile support (EIP-4844, §4.A). ctx wraps the
// trusted-setup-derived verification context; callers construct one at
// startup (it is expensive) and reuse it across calls, matching the
// teacher's kzg_goeth_adapter.go singleton pattern.
type KZGContext struct {
	ctx *ckzg.Context
}

var ErrKZGInvalidProof = errors.New("kzg: point evaluation proof invalid")

// NewKZGContext loads the canonical trusted setup used by mainnet Ethereum.
func NewKZGContext() (*KZGContext, error) {
	ctx, err := ckzg.NewContext4096Secure()
	if err != nil {
		return nil, err
	}
	return &KZGContext{ctx: ctx}, nil
}

// VerifyPointEvaluation checks the KZG proof behind the POINT_EVALUATION
// precompile: given a 48-byte KZG commitment, an evaluation point z, a
// claimed value y and a 48-byte KZG proof, it returns nil if commitment
// opens to y at z and an error otherwise. It does not check a versioned
// hash; the precompile writes the field/blob parameters into its own output.
func (k *KZGContext) VerifyPointEvaluation(commitment, z, y, proof [48]byte) error {
	var c ckzg.Commitment
	copy(c[:], commitment[:])
	var zb, yb ckzg.Scalar
	copy(zb[:], z[:])
	copy(yb[:], y[:])
	var p ckzg.Proof
	copy(p[:], proof[:])

	ok, err := k.ctx.VerifyKZGProof(c, zb, yb, p)
	if err != nil {
		return err
	}
	if !ok {
		return ErrKZGInvalidProof
	}
	return nil
}

var (
	defaultKZGContext     *KZGContext
	defaultKZGContextOnce sync.Once
	defaultKZGContextErr  error
)

// DefaultKZGContext lazily constructs the process-wide KZG verification
// context on first use, since loading the trusted setup is expensive and the
// POINT_EVALUATION precompile needs it on every Cancun+ blob transaction.
func DefaultKZGContext() *KZGContext {
	defaultKZGContextOnce.Do(func() {
		defaultKZGContext, defaultKZGContextErr = NewKZGContext()
	})
	if defaultKZGContextErr != nil {
		panic(defaultKZGContextErr)
	}
	return defaultKZGContext
}

// BlobToCommitment derives the KZG commitment for a full blob.
func (k *KZGContext) BlobToCommitment(blob *ckzg.Blob) (ckzg.Commitment, error) {
	return k.ctx.BlobToKZGCommitment(*blob, 0)
}
