package soltest

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
)

func TestFuncSelectorMatchesKnownSignature(t *testing.T) {
	// transfer(address,uint256) is 0xa9059cbb, the standard ERC20 selector.
	f := Func{Name: "transfer", Params: []ParamKind{KindAddress, KindUint256}}
	sel := f.Selector()
	want := [4]byte{0xa9, 0x05, 0x9c, 0xbb}
	if sel != want {
		t.Fatalf("selector = %x, want %x", sel, want)
	}
}

func TestEncodeCallRoundTripsFixedArgs(t *testing.T) {
	f := Func{Name: "deal", Params: []ParamKind{KindAddress, KindUint256}}
	addr := common.HexToAddress("0x00000000000000000000000000000000001234")
	amount := uint256.NewInt(1_000_000)

	data, err := EncodeCall(f, []interface{}{addr, amount})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	if len(data) != 4+64 {
		t.Fatalf("len(data) = %d, want %d", len(data), 4+64)
	}
	gotAddr := common.BytesToAddress(data[4+12 : 4+32])
	if gotAddr != addr {
		t.Fatalf("decoded address = %s, want %s", gotAddr.Hex(), addr.Hex())
	}
	gotAmount := new(uint256.Int).SetBytes(data[4+32 : 4+64])
	if !gotAmount.Eq(amount) {
		t.Fatalf("decoded amount = %s, want %s", gotAmount, amount)
	}
}

func TestEncodeCallEncodesDynamicBytesInTail(t *testing.T) {
	f := Func{Name: "writeFile", Params: []ParamKind{KindString, KindString}}
	data, err := EncodeCall(f, []interface{}{"a.txt", "contents"})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}
	body := data[4:]
	first, second, err := decodeTwoABIStrings(body)
	if err != nil {
		t.Fatalf("decodeTwoABIStrings: %v", err)
	}
	if first != "a.txt" || second != "contents" {
		t.Fatalf("decoded = (%q, %q)", first, second)
	}
}

func TestEncodeCallRejectsArgumentCountMismatch(t *testing.T) {
	f := Func{Name: "warp", Params: []ParamKind{KindUint256}}
	if _, err := EncodeCall(f, nil); err == nil {
		t.Fatalf("expected an error for a missing argument")
	}
}

func TestEncodeSigned256RoundTripsNegativeValues(t *testing.T) {
	v := big.NewInt(-42)
	word := encodeSigned256(v)
	// Two's complement: the top byte must be 0xff for a small negative value.
	if word[0] != 0xff {
		t.Fatalf("word[0] = %x, want 0xff", word[0])
	}
}

func TestDecodeRevertReasonParsesStandardErrorString(t *testing.T) {
	// Func{"Error", [string]}.Selector() is keccak256("Error(string)")[:4],
	// the same bytes errorSelector hardcodes, so EncodeCall already produces
	// a standard revert payload without any extra substitution.
	f := Func{Name: "Error", Params: []ParamKind{KindString}}
	data, err := EncodeCall(f, []interface{}{"insufficient balance"})
	if err != nil {
		t.Fatalf("EncodeCall: %v", err)
	}

	reason, ok := DecodeRevertReason(data)
	if !ok {
		t.Fatalf("DecodeRevertReason did not recognize a well-formed payload")
	}
	if reason != "insufficient balance" {
		t.Fatalf("reason = %q, want %q", reason, "insufficient balance")
	}
}

func TestDecodeRevertReasonRejectsOtherSelectors(t *testing.T) {
	if _, ok := DecodeRevertReason([]byte{0x01, 0x02, 0x03, 0x04}); ok {
		t.Fatalf("expected a payload without the Error(string) selector to be rejected")
	}
}
