package crypto

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
)

// BN254 (alt_bn128) precompile primitives for EIP-196/EIP-197 (§4.A): ECADD,
// ECMUL and the pairing check, backed by consensys/gnark-crypto instead of
// the placeholder zero/success stubs the interpreter used to fall back to.
//
// Byte layout follows the EIP-196/197 encoding: G1 points are two 32-byte
// big-endian field elements (x, y); G2 points are four, ordered imaginary
// component first within each coordinate (x.a1, x.a0, y.a1, y.a0), matching
// the wire format every other Ethereum client uses for this precompile set.

var ErrBN254InvalidPoint = errors.New("bn254: invalid curve point encoding")

const (
	bn254FieldElementSize = 32
	bn254G1Size           = 2 * bn254FieldElementSize
	bn254G2Size           = 4 * bn254FieldElementSize
	bn254PairSize         = bn254G1Size + bn254G2Size
)

func bn254DecodeFieldElement(b []byte) (*big.Int, error) {
	v := new(big.Int).SetBytes(b)
	if v.Cmp(fp.Modulus()) >= 0 {
		return nil, ErrBN254InvalidPoint
	}
	return v, nil
}

// decodeG1Point parses a 64-byte uncompressed G1 point. (0, 0) is the point at
// infinity and is accepted without an on-curve check, per EIP-196.
func decodeG1Point(b []byte) (bn254.G1Affine, error) {
	var p bn254.G1Affine
	x, err := bn254DecodeFieldElement(b[0:32])
	if err != nil {
		return p, err
	}
	y, err := bn254DecodeFieldElement(b[32:64])
	if err != nil {
		return p, err
	}
	if x.Sign() == 0 && y.Sign() == 0 {
		return p, nil
	}
	p.X.SetBigInt(x)
	p.Y.SetBigInt(y)
	if !p.IsOnCurve() {
		return p, ErrBN254InvalidPoint
	}
	return p, nil
}

func encodeG1Point(p *bn254.G1Affine) []byte {
	out := make([]byte, bn254G1Size)
	xb := p.X.Bytes()
	yb := p.Y.Bytes()
	copy(out[0:32], xb[:])
	copy(out[32:64], yb[:])
	return out
}

// decodeG2Point parses a 128-byte uncompressed G2 point in (x.a1, x.a0, y.a1,
// y.a0) order.
func decodeG2Point(b []byte) (bn254.G2Affine, error) {
	var p bn254.G2Affine
	xa1, err := bn254DecodeFieldElement(b[0:32])
	if err != nil {
		return p, err
	}
	xa0, err := bn254DecodeFieldElement(b[32:64])
	if err != nil {
		return p, err
	}
	ya1, err := bn254DecodeFieldElement(b[64:96])
	if err != nil {
		return p, err
	}
	ya0, err := bn254DecodeFieldElement(b[96:128])
	if err != nil {
		return p, err
	}
	if xa0.Sign() == 0 && xa1.Sign() == 0 && ya0.Sign() == 0 && ya1.Sign() == 0 {
		return p, nil
	}
	p.X.A0.SetBigInt(xa0)
	p.X.A1.SetBigInt(xa1)
	p.Y.A0.SetBigInt(ya0)
	p.Y.A1.SetBigInt(ya1)
	if !p.IsOnCurve() {
		return p, ErrBN254InvalidPoint
	}
	return p, nil
}

// BN254Add returns p1+p2, both 64-byte uncompressed G1 points (ECADD, 0x06).
func BN254Add(p1, p2 []byte) ([]byte, error) {
	a, err := decodeG1Point(p1)
	if err != nil {
		return nil, err
	}
	b, err := decodeG1Point(p2)
	if err != nil {
		return nil, err
	}
	var sum bn254.G1Affine
	sum.Add(&a, &b)
	return encodeG1Point(&sum), nil
}

// BN254ScalarMul returns scalar*point for a 64-byte G1 point and a 32-byte
// big-endian scalar (ECMUL, 0x07).
func BN254ScalarMul(point, scalar []byte) ([]byte, error) {
	p, err := decodeG1Point(point)
	if err != nil {
		return nil, err
	}
	k := new(big.Int).SetBytes(scalar)
	var out bn254.G1Affine
	out.ScalarMultiplication(&p, k)
	return encodeG1Point(&out), nil
}

// BN254Pairing checks whether the product of pairings over the given
// (G1, G2) pairs equals the identity in GT (ECPAIRING, 0x08). input must be
// a multiple of 192 bytes (64-byte G1 || 128-byte G2 per pair); an empty
// input is vacuously true, matching EIP-197.
func BN254Pairing(input []byte) (bool, error) {
	if len(input)%bn254PairSize != 0 {
		return false, ErrBN254InvalidPoint
	}
	n := len(input) / bn254PairSize
	if n == 0 {
		return true, nil
	}
	g1s := make([]bn254.G1Affine, n)
	g2s := make([]bn254.G2Affine, n)
	for i := 0; i < n; i++ {
		off := i * bn254PairSize
		g1, err := decodeG1Point(input[off : off+bn254G1Size])
		if err != nil {
			return false, err
		}
		g2, err := decodeG2Point(input[off+bn254G1Size : off+bn254PairSize])
		if err != nil {
			return false, err
		}
		g1s[i] = g1
		g2s[i] = g2
	}
	return bn254.PairingCheck(g1s, g2s)
}
