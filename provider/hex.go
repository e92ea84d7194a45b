package provider

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
)

func encodeUint64(v uint64) string { return "0x" + strconv.FormatUint(v, 16) }

// encodeWord renders a 256-bit word as a minimal (no leading zero) hex
// quantity, the eth_ JSON-RPC convention for numeric results.
func encodeWord(v *uint256.Int) string {
	if v == nil {
		return "0x0"
	}
	return "0x" + v.ToBig().Text(16)
}

func encodeBytes(b []byte) string { return "0x" + hex.EncodeToString(b) }

func decodeHexString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected hex string: %w", err)
	}
	return s, nil
}

func trimHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

func decodeUint64Param(raw json.RawMessage) (uint64, error) {
	s, err := decodeHexString(raw)
	if err != nil {
		return 0, err
	}
	return parseUint64(s)
}

func parseUint64(s string) (uint64, error) {
	s = trimHexPrefix(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 16, 64)
}

func parseWord(s string) (*uint256.Int, error) {
	s = trimHexPrefix(s)
	if s == "" {
		return new(uint256.Int), nil
	}
	b, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex quantity %q", s)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, fmt.Errorf("hex quantity %q overflows 256 bits", s)
	}
	return v, nil
}

func decodeWordParam(raw json.RawMessage) (*uint256.Int, error) {
	s, err := decodeHexString(raw)
	if err != nil {
		return nil, err
	}
	return parseWord(s)
}

func decodeBytesParam(raw json.RawMessage) ([]byte, error) {
	s, err := decodeHexString(raw)
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(trimHexPrefix(s))
}

func decodeAddressParam(raw json.RawMessage) (common.Address, error) {
	s, err := decodeHexString(raw)
	if err != nil {
		return common.Address{}, err
	}
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return common.Address{}, err
	}
	if len(b) != common.AddressLength {
		return common.Address{}, fmt.Errorf("invalid address length %d", len(b))
	}
	return common.BytesToAddress(b), nil
}

func decodeHashParam(raw json.RawMessage) (common.Hash, error) {
	s, err := decodeHexString(raw)
	if err != nil {
		return common.Hash{}, err
	}
	b, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash length %d", len(b))
	}
	return common.BytesToHash(b), nil
}

// parseBlockTag parses a requested block in an eth_ call: "latest", "pending"
// (treated the same as latest — EDR has no separate pending block, §9), or
// an explicit hex block number.
func parseBlockTag(raw json.RawMessage) (uint64, bool, error) {
	if len(raw) == 0 {
		return 0, true, nil
	}
	s, err := decodeHexString(raw)
	if err != nil {
		return 0, false, err
	}
	switch s {
	case "latest", "pending", "safe", "finalized", "":
		return 0, true, nil
	case "earliest":
		return 0, false, nil
	}
	n, err := parseUint64(s)
	if err != nil {
		return 0, false, err
	}
	return n, false, nil
}
