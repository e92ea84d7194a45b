package rlp

// EncodeTyped wraps a plain-RLP payload (the list-encoding of a typed
// transaction's fields) in its EIP-2718 envelope: a single type byte
// followed by the RLP payload, for any type other than legacy (0).
func EncodeTyped(txType byte, payload []byte) []byte {
	if txType == 0 {
		return payload
	}
	out := make([]byte, 1+len(payload))
	out[0] = txType
	copy(out[1:], payload)
	return out
}

// SplitTyped inspects a transaction encoding and reports its envelope type
// and the remaining RLP payload. A leading byte in [0, 0x7f] that is not a
// valid RLP list/string prefix on its own indicates a typed envelope; a
// leading byte >= 0xc0 indicates an untyped (legacy) RLP list.
func SplitTyped(data []byte) (txType byte, payload []byte, err error) {
	if len(data) == 0 {
		return 0, nil, ErrExpectedList
	}
	if data[0] >= 0xc0 {
		return 0, data, nil
	}
	if data[0] > 0x7f {
		return 0, nil, ErrUnknownTxType
	}
	return data[0], data[1:], nil
}
