package types

import (
	"bytes"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/crypto"
	"github.com/edr-dev/edr/rlp"
)

// EncodeRLP returns the full signed-transaction encoding: the typed
// envelope (type byte + RLP list) for anything but legacy, where the list
// includes the trailing v/r/s signature fields.
func (tx *Transaction) EncodeRLP() ([]byte, error) {
	var items []interface{}
	switch tx.Type {
	case LegacyTxType:
		items = []interface{}{tx.Nonce, tx.GasPrice, tx.GasLimit, toOrEmpty(tx.To), tx.Value, tx.Data, legacyV(tx), tx.Sig.R, tx.Sig.S}
	case AccessListTxType:
		items = []interface{}{tx.ChainID, tx.Nonce, tx.GasPrice, tx.GasLimit, toOrEmpty(tx.To), tx.Value, tx.Data, accessListRLP(tx.AccessList), tx.Sig.V, tx.Sig.R, tx.Sig.S}
	case DynamicFeeTxType:
		items = []interface{}{tx.ChainID, tx.Nonce, tx.GasTipCap, tx.GasFeeCap, tx.GasLimit, toOrEmpty(tx.To), tx.Value, tx.Data, accessListRLP(tx.AccessList), tx.Sig.V, tx.Sig.R, tx.Sig.S}
	case BlobTxType:
		items = []interface{}{tx.ChainID, tx.Nonce, tx.GasTipCap, tx.GasFeeCap, tx.GasLimit, toOrEmpty(tx.To), tx.Value, tx.Data, accessListRLP(tx.AccessList), tx.BlobFeeCap, hashListRLP(tx.BlobHashes), tx.Sig.V, tx.Sig.R, tx.Sig.S}
	case SetCodeTxType:
		items = []interface{}{tx.ChainID, tx.Nonce, tx.GasTipCap, tx.GasFeeCap, tx.GasLimit, toOrEmpty(tx.To), tx.Value, tx.Data, accessListRLP(tx.AccessList), authListRLP(tx.AuthList), tx.Sig.V, tx.Sig.R, tx.Sig.S}
	case DepositTxType:
		items = []interface{}{tx.SourceHash, tx.From, toOrEmpty(tx.To), tx.Mint, tx.Value, tx.GasLimit, tx.IsSystemTx, tx.Data}
	default:
		return nil, ErrUnsupportedTxType
	}

	var payload []byte
	for _, item := range items {
		enc, err := rlp.EncodeToBytes(item)
		if err != nil {
			return nil, err
		}
		payload = append(payload, enc...)
	}
	return rlp.EncodeTyped(byte(tx.Type), rlp.WrapList(payload)), nil
}

// legacyV reconstructs the historical 27/28 (or EIP-155 chainId*2+35+v)
// encoding of V for legacy transactions from the normalized 0/1 recovery id.
func legacyV(tx *Transaction) uint64 {
	if tx.ChainID == 0 {
		return uint64(tx.Sig.V) + 27
	}
	return uint64(tx.Sig.V) + 35 + 2*tx.ChainID
}

// HashTransaction returns keccak256 of the transaction's full RLP/typed
// encoding, the canonical transaction hash used to index receipts and
// mempool entries.
func HashTransaction(tx *Transaction) common.Hash {
	enc, err := tx.EncodeRLP()
	if err != nil {
		return common.Hash{}
	}
	return crypto.Keccak256Hash(enc)
}

// DecodeTransaction parses the wire encoding eth_sendRawTransaction and the
// mempool's re-broadcast path receive: a typed envelope (type byte + RLP
// list) for anything but legacy, or a bare RLP list for legacy. The mirror
// of EncodeRLP above.
func DecodeTransaction(data []byte) (*Transaction, error) {
	txType, payload, err := rlp.SplitTyped(data)
	if err != nil {
		return nil, err
	}
	s := rlp.NewStream(bytes.NewReader(payload))
	switch TxType(txType) {
	case LegacyTxType:
		return decodeLegacyTx(s)
	case AccessListTxType:
		return decodeAccessListTx(s)
	case DynamicFeeTxType:
		return decodeDynamicFeeTx(s)
	case BlobTxType:
		return decodeBlobTx(s)
	case SetCodeTxType:
		return decodeSetCodeTx(s)
	default:
		return nil, ErrUnsupportedTxType
	}
}

func decodeTo(s *rlp.Stream) (*common.Address, error) {
	b, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return nil, nil
	}
	addr := common.BytesToAddress(b)
	return &addr, nil
}

func decodeAccessListRLP(s *rlp.Stream) ([]AccessTuple, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var out []AccessTuple
	for s.More() {
		if _, err := s.List(); err != nil {
			return nil, err
		}
		addrBytes, err := s.Bytes()
		if err != nil {
			return nil, err
		}
		if _, err := s.List(); err != nil {
			return nil, err
		}
		var keys []common.Hash
		for s.More() {
			kb, err := s.Bytes()
			if err != nil {
				return nil, err
			}
			keys = append(keys, common.BytesToHash(kb))
		}
		if err := s.ListEnd(); err != nil {
			return nil, err
		}
		out = append(out, AccessTuple{Address: common.BytesToAddress(addrBytes), StorageKeys: keys})
		if err := s.ListEnd(); err != nil {
			return nil, err
		}
	}
	return out, s.ListEnd()
}

func normalizeLegacyV(raw uint64) (v uint8, chainID uint64) {
	switch {
	case raw == 27 || raw == 28:
		return uint8(raw - 27), 0
	case raw >= 35:
		chainID = (raw - 35) / 2
		v = uint8((raw - 35) % 2)
		return v, chainID
	default:
		return uint8(raw), 0
	}
}

func decodeLegacyTx(s *rlp.Stream) (*Transaction, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	nonce, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	gasPrice, err := s.Word()
	if err != nil {
		return nil, err
	}
	gasLimit, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	to, err := decodeTo(s)
	if err != nil {
		return nil, err
	}
	value, err := s.Word()
	if err != nil {
		return nil, err
	}
	data, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	vRaw, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	r, err := s.Word()
	if err != nil {
		return nil, err
	}
	sv, err := s.Word()
	if err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	v, chainID := normalizeLegacyV(vRaw)
	return &Transaction{
		Type:     LegacyTxType,
		ChainID:  chainID,
		Nonce:    nonce,
		To:       to,
		Value:    value,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Data:     data,
		Sig:      Signature{V: v, R: r, S: sv},
	}, nil
}

func decodeAccessListTx(s *rlp.Stream) (*Transaction, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	chainID, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	nonce, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	gasPrice, err := s.Word()
	if err != nil {
		return nil, err
	}
	gasLimit, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	to, err := decodeTo(s)
	if err != nil {
		return nil, err
	}
	value, err := s.Word()
	if err != nil {
		return nil, err
	}
	data, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	al, err := decodeAccessListRLP(s)
	if err != nil {
		return nil, err
	}
	vRaw, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	r, err := s.Word()
	if err != nil {
		return nil, err
	}
	sv, err := s.Word()
	if err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return &Transaction{
		Type:       AccessListTxType,
		ChainID:    chainID,
		Nonce:      nonce,
		To:         to,
		Value:      value,
		GasLimit:   gasLimit,
		GasPrice:   gasPrice,
		Data:       data,
		AccessList: al,
		Sig:        Signature{V: uint8(vRaw), R: r, S: sv},
	}, nil
}

func decodeDynamicFeeTx(s *rlp.Stream) (*Transaction, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	chainID, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	nonce, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	tipCap, err := s.Word()
	if err != nil {
		return nil, err
	}
	feeCap, err := s.Word()
	if err != nil {
		return nil, err
	}
	gasLimit, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	to, err := decodeTo(s)
	if err != nil {
		return nil, err
	}
	value, err := s.Word()
	if err != nil {
		return nil, err
	}
	data, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	al, err := decodeAccessListRLP(s)
	if err != nil {
		return nil, err
	}
	vRaw, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	r, err := s.Word()
	if err != nil {
		return nil, err
	}
	sv, err := s.Word()
	if err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return &Transaction{
		Type:       DynamicFeeTxType,
		ChainID:    chainID,
		Nonce:      nonce,
		To:         to,
		Value:      value,
		GasLimit:   gasLimit,
		GasFeeCap:  feeCap,
		GasTipCap:  tipCap,
		Data:       data,
		AccessList: al,
		Sig:        Signature{V: uint8(vRaw), R: r, S: sv},
	}, nil
}

func decodeHashListRLP(s *rlp.Stream) ([]common.Hash, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var out []common.Hash
	for s.More() {
		b, err := s.Bytes()
		if err != nil {
			return nil, err
		}
		out = append(out, common.BytesToHash(b))
	}
	return out, s.ListEnd()
}

func decodeBlobTx(s *rlp.Stream) (*Transaction, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	chainID, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	nonce, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	tipCap, err := s.Word()
	if err != nil {
		return nil, err
	}
	feeCap, err := s.Word()
	if err != nil {
		return nil, err
	}
	gasLimit, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	to, err := decodeTo(s)
	if err != nil {
		return nil, err
	}
	value, err := s.Word()
	if err != nil {
		return nil, err
	}
	data, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	al, err := decodeAccessListRLP(s)
	if err != nil {
		return nil, err
	}
	blobFeeCap, err := s.Word()
	if err != nil {
		return nil, err
	}
	blobHashes, err := decodeHashListRLP(s)
	if err != nil {
		return nil, err
	}
	vRaw, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	r, err := s.Word()
	if err != nil {
		return nil, err
	}
	sv, err := s.Word()
	if err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return &Transaction{
		Type:       BlobTxType,
		ChainID:    chainID,
		Nonce:      nonce,
		To:         to,
		Value:      value,
		GasLimit:   gasLimit,
		GasFeeCap:  feeCap,
		GasTipCap:  tipCap,
		Data:       data,
		AccessList: al,
		BlobFeeCap: blobFeeCap,
		BlobHashes: blobHashes,
		Sig:        Signature{V: uint8(vRaw), R: r, S: sv},
	}, nil
}

func decodeAuthListRLP(s *rlp.Stream) ([]AuthorizationTuple, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	var out []AuthorizationTuple
	for s.More() {
		if _, err := s.List(); err != nil {
			return nil, err
		}
		chainID, err := s.Uint64()
		if err != nil {
			return nil, err
		}
		addrBytes, err := s.Bytes()
		if err != nil {
			return nil, err
		}
		nonce, err := s.Uint64()
		if err != nil {
			return nil, err
		}
		v, err := s.Uint64()
		if err != nil {
			return nil, err
		}
		r, err := s.Word()
		if err != nil {
			return nil, err
		}
		sv, err := s.Word()
		if err != nil {
			return nil, err
		}
		if err := s.ListEnd(); err != nil {
			return nil, err
		}
		out = append(out, AuthorizationTuple{
			ChainID: chainID,
			Address: common.BytesToAddress(addrBytes),
			Nonce:   nonce,
			V:       uint8(v),
			R:       r,
			S:       sv,
		})
	}
	return out, s.ListEnd()
}

func decodeSetCodeTx(s *rlp.Stream) (*Transaction, error) {
	if _, err := s.List(); err != nil {
		return nil, err
	}
	chainID, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	nonce, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	tipCap, err := s.Word()
	if err != nil {
		return nil, err
	}
	feeCap, err := s.Word()
	if err != nil {
		return nil, err
	}
	gasLimit, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	to, err := decodeTo(s)
	if err != nil {
		return nil, err
	}
	value, err := s.Word()
	if err != nil {
		return nil, err
	}
	data, err := s.Bytes()
	if err != nil {
		return nil, err
	}
	al, err := decodeAccessListRLP(s)
	if err != nil {
		return nil, err
	}
	authList, err := decodeAuthListRLP(s)
	if err != nil {
		return nil, err
	}
	vRaw, err := s.Uint64()
	if err != nil {
		return nil, err
	}
	r, err := s.Word()
	if err != nil {
		return nil, err
	}
	sv, err := s.Word()
	if err != nil {
		return nil, err
	}
	if err := s.ListEnd(); err != nil {
		return nil, err
	}
	return &Transaction{
		Type:       SetCodeTxType,
		ChainID:    chainID,
		Nonce:      nonce,
		To:         to,
		Value:      value,
		GasLimit:   gasLimit,
		GasFeeCap:  feeCap,
		GasTipCap:  tipCap,
		Data:       data,
		AccessList: al,
		AuthList:   authList,
		Sig:        Signature{V: uint8(vRaw), R: r, S: sv},
	}, nil
}
