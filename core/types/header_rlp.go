package types

import (
	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/rlp"
)

// EncodeRLP returns the RLP encoding of the header, in field order. Optional
// post-London fields are appended only if set, matching Yellow-Paper-style
// variable-arity header encoding: a block produced before a given hardfork
// never carries the later fields at all.
func (h *Header) EncodeRLP() ([]byte, error) {
	var items []interface{}
	items = append(items,
		h.ParentHash,
		h.Miner,
		h.StateRoot,
		h.TxRoot,
		h.ReceiptRoot,
		h.LogsBloom,
		h.Number,
		h.GasLimit,
		h.GasUsed,
		h.Timestamp,
		h.ExtraData,
		h.MixHash,
	)
	if h.BaseFee != nil {
		items = append(items, h.BaseFee)
	}
	if h.WithdrawalsRoot != nil {
		items = append(items, *h.WithdrawalsRoot)
	}
	if h.BlobGasUsed != nil {
		items = append(items, *h.BlobGasUsed)
	}
	if h.ExcessBlobGas != nil {
		items = append(items, *h.ExcessBlobGas)
	}

	var payload []byte
	for _, item := range items {
		enc, err := rlp.EncodeToBytes(item)
		if err != nil {
			return nil, err
		}
		payload = append(payload, enc...)
	}
	return rlp.WrapList(payload), nil
}

// HashHeader returns the block hash: keccak256 of the header's RLP
// encoding (§3: a block's identity is derived from its header contents).
func HashHeader(keccak func(...[]byte) []byte, h *Header) common.Hash {
	enc, err := h.EncodeRLP()
	if err != nil {
		return common.Hash{}
	}
	return common.BytesToHash(keccak(enc))
}
