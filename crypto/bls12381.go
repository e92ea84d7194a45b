package crypto

import (
	"errors"

	blst "github.com/supranational/blst/bindings/go"
)

// BLS12-381 precompile primitives for EIP-2537 (§4.A), used by the
// interpreter's precompile dispatch. Field element and point encodings
// follow the EIP-2537 byte layout: each Fp element is 64 bytes (16 bytes of
// zero padding + 48-byte big-endian value); G1 points are two Fp elements,
// G2 points are two Fp2 elements (each Fp2 is two Fp elements).

var (
	ErrBLSInvalidFieldElement = errors.New("bls12381: invalid field element encoding")
	ErrBLSInvalidPoint        = errors.New("bls12381: invalid point encoding")
	ErrBLSPointNotOnCurve     = errors.New("bls12381: point not on curve")
)

const (
	blsFieldElementSize = 64
	blsG1Size           = 2 * blsFieldElementSize
	blsG2Size           = 4 * blsFieldElementSize
	blsScalarSize       = 32
)

func decodeFp(b []byte) ([]byte, error) {
	if len(b) != blsFieldElementSize {
		return nil, ErrBLSInvalidFieldElement
	}
	for _, z := range b[:16] {
		if z != 0 {
			return nil, ErrBLSInvalidFieldElement
		}
	}
	return b[16:], nil
}

func encodeFp(b []byte) []byte {
	out := make([]byte, blsFieldElementSize)
	copy(out[16:], b)
	return out
}

// G1Add returns a+b, both 128-byte uncompressed EIP-2537 G1 points.
func G1Add(a, b []byte) ([]byte, error) {
	pa, err := decodeG1(a)
	if err != nil {
		return nil, err
	}
	pb, err := decodeG1(b)
	if err != nil {
		return nil, err
	}
	sum := new(blst.P1).Add(pa, pb)
	return encodeG1(sum.ToAffine()), nil
}

// G1Mul returns scalar*point for a single 128-byte G1 point and 32-byte
// big-endian scalar.
func G1Mul(point, scalar []byte) ([]byte, error) {
	p, err := decodeG1(point)
	if err != nil {
		return nil, err
	}
	if len(scalar) != blsScalarSize {
		return nil, errors.New("bls12381: invalid scalar length")
	}
	res := p.Mult(scalar)
	return encodeG1(res.ToAffine()), nil
}

// G1MultiExp computes the multi-scalar-multiplication sum_i scalar_i*point_i.
func G1MultiExp(points [][]byte, scalars [][]byte) ([]byte, error) {
	if len(points) != len(scalars) || len(points) == 0 {
		return nil, errors.New("bls12381: mismatched multiexp input lengths")
	}
	affs := make([]*blst.P1Affine, len(points))
	for i, pb := range points {
		p, err := decodeG1Affine(pb)
		if err != nil {
			return nil, err
		}
		affs[i] = p
	}
	acc := new(blst.P1)
	for i, aff := range affs {
		term := new(blst.P1).FromAffine(aff).Mult(scalars[i])
		acc = acc.Add(term)
	}
	return encodeG1(acc.ToAffine()), nil
}

func decodeG1(b []byte) (*blst.P1, error) {
	aff, err := decodeG1Affine(b)
	if err != nil {
		return nil, err
	}
	return new(blst.P1).FromAffine(aff), nil
}

func decodeG1Affine(b []byte) (*blst.P1Affine, error) {
	if len(b) != blsG1Size {
		return nil, ErrBLSInvalidPoint
	}
	x, err := decodeFp(b[:blsFieldElementSize])
	if err != nil {
		return nil, err
	}
	y, err := decodeFp(b[blsFieldElementSize:])
	if err != nil {
		return nil, err
	}
	raw := append(append([]byte{}, x...), y...)
	aff := new(blst.P1Affine).Deserialize(raw)
	if aff == nil || !aff.InG1() {
		return nil, ErrBLSPointNotOnCurve
	}
	return aff, nil
}

func encodeG1(aff *blst.P1Affine) []byte {
	raw := aff.Serialize()
	out := make([]byte, blsG1Size)
	copy(out[:blsFieldElementSize], encodeFp(raw[:48]))
	copy(out[blsFieldElementSize:], encodeFp(raw[48:]))
	return out
}

// G2Add returns a+b, both 256-byte uncompressed EIP-2537 G2 points.
func G2Add(a, b []byte) ([]byte, error) {
	pa, err := decodeG2(a)
	if err != nil {
		return nil, err
	}
	pb, err := decodeG2(b)
	if err != nil {
		return nil, err
	}
	sum := new(blst.P2).Add(pa, pb)
	return encodeG2(sum.ToAffine()), nil
}

// G2Mul returns scalar*point.
func G2Mul(point, scalar []byte) ([]byte, error) {
	p, err := decodeG2(point)
	if err != nil {
		return nil, err
	}
	if len(scalar) != blsScalarSize {
		return nil, errors.New("bls12381: invalid scalar length")
	}
	res := p.Mult(scalar)
	return encodeG2(res.ToAffine()), nil
}

func decodeG2(b []byte) (*blst.P2, error) {
	if len(b) != blsG2Size {
		return nil, ErrBLSInvalidPoint
	}
	x0, err := decodeFp(b[0:64])
	if err != nil {
		return nil, err
	}
	x1, err := decodeFp(b[64:128])
	if err != nil {
		return nil, err
	}
	y0, err := decodeFp(b[128:192])
	if err != nil {
		return nil, err
	}
	y1, err := decodeFp(b[192:256])
	if err != nil {
		return nil, err
	}
	raw := append(append(append(append([]byte{}, x1...), x0...), y1...), y0...)
	aff := new(blst.P2Affine).Deserialize(raw)
	if aff == nil || !aff.InG2() {
		return nil, ErrBLSPointNotOnCurve
	}
	return new(blst.P2).FromAffine(aff), nil
}

func encodeG2(aff *blst.P2Affine) []byte {
	raw := aff.Serialize()
	out := make([]byte, blsG2Size)
	copy(out[0:64], encodeFp(raw[48:96]))
	copy(out[64:128], encodeFp(raw[0:48]))
	copy(out[128:192], encodeFp(raw[144:192]))
	copy(out[192:256], encodeFp(raw[96:144]))
	return out
}

// Pairing checks whether the product of pairings e(g1_i, g2_i) equals 1 in
// GT, as required by the BLS_PAIRING_CHECK precompile.
func Pairing(g1Points, g2Points [][]byte) (bool, error) {
	if len(g1Points) != len(g2Points) || len(g1Points) == 0 {
		return false, errors.New("bls12381: mismatched pairing input lengths")
	}
	g1affs := make([]*blst.P1Affine, len(g1Points))
	g2affs := make([]*blst.P2Affine, len(g2Points))
	for i := range g1Points {
		a, err := decodeG1Affine(g1Points[i])
		if err != nil {
			return false, err
		}
		g1affs[i] = a
		b, err := decodeG2AffineOnly(g2Points[i])
		if err != nil {
			return false, err
		}
		g2affs[i] = b
	}
	return blst.PairingCheck(g1affs, g2affs), nil
}

func decodeG2AffineOnly(b []byte) (*blst.P2Affine, error) {
	p, err := decodeG2(b)
	if err != nil {
		return nil, err
	}
	return p.ToAffine(), nil
}
