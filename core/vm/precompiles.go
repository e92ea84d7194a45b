package vm

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // teacher-era dep; no stdlib replacement for RIPEMD160

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/crypto"
)

// PrecompiledContract is a native contract exposed at a fixed low address
// (§4.A). RequiredGas is charged before Run executes; Run returning an error
// consumes all remaining call gas, matching ordinary EVM failure semantics.
type PrecompiledContract interface {
	RequiredGas(input []byte) uint64
	Run(input []byte) ([]byte, error)
}

// PrecompilesForHardfork returns the precompile address table in effect at
// fork, following the teacher's per-fork precompile-set pattern.
func PrecompilesForHardfork(fork types.Hardfork) map[common.Address]PrecompiledContract {
	table := map[common.Address]PrecompiledContract{
		addr(1): ecrecoverPrecompile{},
		addr(2): sha256Precompile{},
		addr(3): ripemd160Precompile{},
		addr(4): identityPrecompile{},
	}
	if fork.AtLeast(types.Istanbul) {
		table[addr(5)] = modexpPrecompile{}
		table[addr(6)] = bn256AddPrecompile{}
		table[addr(7)] = bn256MulPrecompile{}
		table[addr(8)] = bn256PairingPrecompile{}
		table[addr(9)] = blake2FPrecompile{}
	}
	if fork.AtLeast(types.Cancun) {
		table[addr(0x0a)] = kzgPointEvaluationPrecompile{}
	}
	if fork.AtLeast(types.Prague) {
		table[addr(0x0b)] = blsG1AddPrecompile{}
		table[addr(0x0c)] = blsG1MulPrecompile{}
		table[addr(0x0d)] = blsG1MultiExpPrecompile{}
		table[addr(0x0e)] = blsG2AddPrecompile{}
		table[addr(0x0f)] = blsG2MulPrecompile{}
		table[addr(0x10)] = blsPairingPrecompile{}
	}
	return table
}

func addr(b byte) common.Address {
	var a common.Address
	a[len(a)-1] = b
	return a
}

type ecrecoverPrecompile struct{}

func (ecrecoverPrecompile) RequiredGas([]byte) uint64 { return 3000 }

func (ecrecoverPrecompile) Run(input []byte) ([]byte, error) {
	input = rightPad(input, 128)
	var digest [32]byte
	copy(digest[:], input[:32])
	v := input[63]
	if v != 27 && v != 28 {
		return nil, nil
	}
	sig := make([]byte, 65)
	copy(sig[:32], input[64:96])
	copy(sig[32:64], input[96:128])
	sig[64] = v - 27
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return nil, nil
	}
	out := make([]byte, 32)
	copy(out[12:], crypto.PubkeyToAddress(pub).Bytes())
	return out, nil
}

type sha256Precompile struct{}

func (sha256Precompile) RequiredGas(input []byte) uint64 { return 60 + 12*wordCount(len(input)) }
func (sha256Precompile) Run(input []byte) ([]byte, error) {
	h := sha256.Sum256(input)
	return h[:], nil
}

type ripemd160Precompile struct{}

func (ripemd160Precompile) RequiredGas(input []byte) uint64 { return 600 + 120*wordCount(len(input)) }
func (ripemd160Precompile) Run(input []byte) ([]byte, error) {
	h := ripemd160.New()
	h.Write(input)
	sum := h.Sum(nil)
	out := make([]byte, 32)
	copy(out[12:], sum)
	return out, nil
}

type identityPrecompile struct{}

func (identityPrecompile) RequiredGas(input []byte) uint64 { return 15 + 3*wordCount(len(input)) }
func (identityPrecompile) Run(input []byte) ([]byte, error) { return input, nil }

// modexpPrecompile implements EIP-198 arbitrary-precision modular exponentiation.
type modexpPrecompile struct{}

func (modexpPrecompile) RequiredGas(input []byte) uint64 {
	input = rightPad(input, 96)
	baseLen := new(big.Int).SetBytes(input[0:32]).Uint64()
	modLen := new(big.Int).SetBytes(input[64:96]).Uint64()
	maxLen := baseLen
	if modLen > maxLen {
		maxLen = modLen
	}
	words := (maxLen + 7) / 8
	return (words*words)/20 + 1
}

func (modexpPrecompile) Run(input []byte) ([]byte, error) {
	input = rightPad(input, 96)
	baseLen := new(big.Int).SetBytes(input[0:32]).Uint64()
	expLen := new(big.Int).SetBytes(input[32:64]).Uint64()
	modLen := new(big.Int).SetBytes(input[64:96]).Uint64()

	rest := input[96:]
	rest = rightPad(rest, baseLen+expLen+modLen)
	base := new(big.Int).SetBytes(rest[:baseLen])
	exp := new(big.Int).SetBytes(rest[baseLen : baseLen+expLen])
	mod := new(big.Int).SetBytes(rest[baseLen+expLen : baseLen+expLen+modLen])

	out := make([]byte, modLen)
	if mod.Sign() == 0 {
		return out, nil
	}
	res := new(big.Int).Exp(base, exp, mod)
	resBytes := res.Bytes()
	copy(out[modLen-uint64(len(resBytes)):], resBytes)
	return out, nil
}

// bn256{Add,Mul,Pairing}Precompile are alt_bn128 (EIP-196/197), backed by
// consensys/gnark-crypto's BN254 curve arithmetic.
type bn256AddPrecompile struct{}

func (bn256AddPrecompile) RequiredGas([]byte) uint64 { return 150 }
func (bn256AddPrecompile) Run(input []byte) ([]byte, error) {
	input = rightPad(input, 64)
	return crypto.BN254Add(input[0:64], input[64:128])
}

type bn256MulPrecompile struct{}

func (bn256MulPrecompile) RequiredGas([]byte) uint64 { return 6000 }
func (bn256MulPrecompile) Run(input []byte) ([]byte, error) {
	input = rightPad(input, 96)
	return crypto.BN254ScalarMul(input[0:64], input[64:96])
}

type bn256PairingPrecompile struct{}

func (bn256PairingPrecompile) RequiredGas(input []byte) uint64 {
	return 45000 + 34000*uint64(len(input)/192)
}
func (bn256PairingPrecompile) Run(input []byte) ([]byte, error) {
	if len(input)%192 != 0 {
		return nil, ErrInvalidCode
	}
	ok, err := crypto.BN254Pairing(input)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 32)
	if ok {
		out[31] = 1
	}
	return out, nil
}

type blake2FPrecompile struct{}

func (blake2FPrecompile) RequiredGas(input []byte) uint64 {
	if len(input) != 213 {
		return 0
	}
	return uint64(binary.BigEndian.Uint32(input[0:4]))
}
func (blake2FPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != 213 {
		return nil, ErrInvalidCode
	}
	return blake2FCompress(input)
}

type kzgPointEvaluationPrecompile struct{}

func (kzgPointEvaluationPrecompile) RequiredGas([]byte) uint64 { return 50000 }
func (kzgPointEvaluationPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != 192 {
		return nil, ErrInvalidCode
	}
	var commitment, z, y, proof [48]byte
	var versionedHash [32]byte
	copy(versionedHash[:], input[0:32])
	copy(z[:], input[32:64])
	copy(y[:], input[64:96])
	copy(commitment[:], input[96:144])
	copy(proof[:], input[144:192])
	if err := crypto.DefaultKZGContext().VerifyPointEvaluation(commitment, z, y, proof); err != nil {
		return nil, err
	}
	out := make([]byte, 64)
	copy(out[0:32], kzgFieldElementsPerBlob[:])
	copy(out[32:64], kzgBLSModulus[:])
	return out, nil
}

var (
	kzgFieldElementsPerBlob = func() [32]byte {
		var b [32]byte
		binary.BigEndian.PutUint64(b[24:], 4096)
		return b
	}()
	kzgBLSModulus = [32]byte{
		0x73, 0xed, 0xa7, 0x53, 0x29, 0x9d, 0x7d, 0x48,
		0x33, 0x39, 0xd8, 0x08, 0x09, 0xa1, 0xd8, 0x05,
		0x53, 0xbd, 0xa4, 0x02, 0xff, 0xfe, 0x5b, 0xfe,
		0xff, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x01,
	}
)

type blsG1AddPrecompile struct{}

func (blsG1AddPrecompile) RequiredGas([]byte) uint64 { return 500 }
func (blsG1AddPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != 256 {
		return nil, ErrInvalidCode
	}
	return crypto.G1Add(input[:128], input[128:])
}

type blsG1MulPrecompile struct{}

func (blsG1MulPrecompile) RequiredGas([]byte) uint64 { return 12000 }
func (blsG1MulPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != 160 {
		return nil, ErrInvalidCode
	}
	return crypto.G1Mul(input[:128], input[128:])
}

type blsG1MultiExpPrecompile struct{}

func (blsG1MultiExpPrecompile) RequiredGas(input []byte) uint64 {
	n := uint64(len(input) / 160)
	return n * 12000
}
func (blsG1MultiExpPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) == 0 || len(input)%160 != 0 {
		return nil, ErrInvalidCode
	}
	n := len(input) / 160
	points := make([][]byte, n)
	scalars := make([][]byte, n)
	for i := 0; i < n; i++ {
		points[i] = input[i*160 : i*160+128]
		scalars[i] = input[i*160+128 : i*160+160]
	}
	return crypto.G1MultiExp(points, scalars)
}

type blsG2AddPrecompile struct{}

func (blsG2AddPrecompile) RequiredGas([]byte) uint64 { return 800 }
func (blsG2AddPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != 512 {
		return nil, ErrInvalidCode
	}
	return crypto.G2Add(input[:256], input[256:])
}

type blsG2MulPrecompile struct{}

func (blsG2MulPrecompile) RequiredGas([]byte) uint64 { return 45000 }
func (blsG2MulPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) != 288 {
		return nil, ErrInvalidCode
	}
	return crypto.G2Mul(input[:256], input[256:])
}

type blsPairingPrecompile struct{}

func (blsPairingPrecompile) RequiredGas(input []byte) uint64 {
	n := uint64(len(input) / 384)
	return 43000*n + 65000
}
func (blsPairingPrecompile) Run(input []byte) ([]byte, error) {
	if len(input) == 0 || len(input)%384 != 0 {
		return nil, ErrInvalidCode
	}
	n := len(input) / 384
	g1s := make([][]byte, n)
	g2s := make([][]byte, n)
	for i := 0; i < n; i++ {
		g1s[i] = input[i*384 : i*384+128]
		g2s[i] = input[i*384+128 : i*384+384]
	}
	ok, err := crypto.Pairing(g1s, g2s)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 32)
	if ok {
		out[31] = 1
	}
	return out, nil
}

func wordCount(n int) uint64 { return uint64((n + 31) / 32) }

func rightPad(b []byte, size uint64) []byte {
	if uint64(len(b)) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out, b)
	return out
}
