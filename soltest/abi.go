package soltest

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/crypto"
)

// ParamKind is the subset of Solidity ABI value types soltest knows how to
// generate and encode for fuzz test arguments (§4.K: "Fuzz test... draw N
// inputs"). A full ABI codec (tuples, dynamic arrays of dynamic types) is
// out of scope — see DESIGN.md's soltest/ entry for why no ready-made
// lightweight ABI library from the retrieved pack covers this without
// pulling in all of go-ethereum.
type ParamKind int

const (
	KindUint256 ParamKind = iota
	KindInt256
	KindAddress
	KindBool
	KindBytes32
	KindBytes
	KindString
)

// Func is one test function's ABI shape: its name and the parameter kinds
// fuzzing must draw for it.
type Func struct {
	Name   string
	Params []ParamKind
}

// Selector is the 4-byte function selector §4.K's enumeration step keys
// tests by: keccak256(signature)[:4].
func (f Func) Selector() [4]byte {
	sig := f.Name + "(" + joinKinds(f.Params) + ")"
	hash := crypto.Keccak256([]byte(sig))
	var sel [4]byte
	copy(sel[:], hash[:4])
	return sel
}

func (k ParamKind) String() string {
	switch k {
	case KindUint256:
		return "uint256"
	case KindInt256:
		return "int256"
	case KindAddress:
		return "address"
	case KindBool:
		return "bool"
	case KindBytes32:
		return "bytes32"
	case KindBytes:
		return "bytes"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

func joinKinds(kinds []ParamKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}

// EncodeCall builds calldata for f given already-drawn argument values, one
// per f.Params in order. Dynamic types (bytes/string) are appended after
// the fixed 32-byte head slots, per the standard ABI head/tail layout;
// soltest never nests a dynamic type inside a tuple or array, so a flat
// head/tail split is sufficient.
func EncodeCall(f Func, args []interface{}) ([]byte, error) {
	if len(args) != len(f.Params) {
		return nil, fmt.Errorf("soltest: %s expects %d arguments, got %d", f.Name, len(f.Params), len(args))
	}
	sel := f.Selector()
	var head, tail []byte
	headLen := 32 * len(f.Params)

	for i, kind := range f.Params {
		switch kind {
		case KindUint256:
			v, ok := args[i].(*uint256.Int)
			if !ok {
				return nil, fmt.Errorf("soltest: argument %d expects *uint256.Int", i)
			}
			head = append(head, leftPad32(v.Bytes())...)
		case KindInt256:
			v, ok := args[i].(*big.Int)
			if !ok {
				return nil, fmt.Errorf("soltest: argument %d expects *big.Int", i)
			}
			head = append(head, encodeSigned256(v)...)
		case KindAddress:
			v, ok := args[i].(common.Address)
			if !ok {
				return nil, fmt.Errorf("soltest: argument %d expects common.Address", i)
			}
			head = append(head, leftPad32(v.Bytes())...)
		case KindBool:
			v, ok := args[i].(bool)
			if !ok {
				return nil, fmt.Errorf("soltest: argument %d expects bool", i)
			}
			b := make([]byte, 32)
			if v {
				b[31] = 1
			}
			head = append(head, b...)
		case KindBytes32:
			v, ok := args[i].([32]byte)
			if !ok {
				return nil, fmt.Errorf("soltest: argument %d expects [32]byte", i)
			}
			head = append(head, v[:]...)
		case KindBytes, KindString:
			var data []byte
			switch v := args[i].(type) {
			case []byte:
				data = v
			case string:
				data = []byte(v)
			default:
				return nil, fmt.Errorf("soltest: argument %d expects []byte/string", i)
			}
			offset := headLen + len(tail)
			head = append(head, leftPad32(big.NewInt(int64(offset)).Bytes())...)
			tail = append(tail, encodeDynamicBytes(data)...)
		}
	}

	out := make([]byte, 0, 4+len(head)+len(tail))
	out = append(out, sel[:]...)
	out = append(out, head...)
	out = append(out, tail...)
	return out, nil
}

func encodeDynamicBytes(data []byte) []byte {
	out := leftPad32(big.NewInt(int64(len(data))).Bytes())
	out = append(out, data...)
	if pad := (32 - len(data)%32) % 32; pad != 0 {
		out = append(out, make([]byte, pad)...)
	}
	return out
}

func leftPad32(b []byte) []byte {
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}

func encodeSigned256(v *big.Int) []byte {
	if v.Sign() >= 0 {
		return leftPad32(v.Bytes())
	}
	// Two's complement: (1<<256) + v.
	mod := new(big.Int).Lsh(big.NewInt(1), 256)
	twos := new(big.Int).Add(mod, v)
	return leftPad32(twos.Bytes())
}

// errorSelector is Error(string)'s 4-byte selector, the standard Solidity
// require()/revert("...") encoding.
var errorSelector = [4]byte{0x08, 0xc3, 0x79, 0xa0}

// DecodeRevertReason extracts the human-readable string from a standard
// Error(string) revert payload, the shape every `require(cond, "msg")` and
// bare `revert("msg")` produces.
func DecodeRevertReason(data []byte) (string, bool) {
	if len(data) < 4 || [4]byte(data[:4]) != errorSelector {
		return "", false
	}
	body := data[4:]
	if len(body) < 64 {
		return "", false
	}
	length := new(big.Int).SetBytes(body[32:64]).Uint64()
	if uint64(len(body)) < 64+length {
		return "", false
	}
	return string(body[64 : 64+length]), true
}

// encodeUint64AsWord renders n as a left-padded 32-byte word, the layout a
// fixed-size ABI return value (uint64, bool-as-uint8, ...) uses.
func encodeUint64AsWord(n uint64) []byte {
	b := make([]byte, 32)
	binary.BigEndian.PutUint64(b[24:], n)
	return b
}
