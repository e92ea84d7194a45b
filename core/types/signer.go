package types

import (
	"errors"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/crypto"
	"github.com/edr-dev/edr/rlp"
)

var (
	ErrInvalidSignature     = errors.New("types: invalid transaction signature")
	ErrChainIDMismatchSig   = errors.New("types: signature chain id does not match signer")
	ErrTxTypeNotSupported   = errors.New("types: transaction type not supported by signer")
)

// Signer hashes transactions for signing and recovers their sender. Unlike
// the teacher's core/types.Signer (which hand-rolls secp256k1 point
// arithmetic over math/big to dodge an import cycle with its crypto
// package), EDR's crypto package depends only on common, so core/types can
// import it directly and delegate recovery to the real curve library.
type Signer struct {
	chainID uint64
}

// NewSigner returns a signer for all EDR-supported envelope types on the
// given chain, mirroring the teacher's LatestSigner/LondonSigner collapse
// into one signer once legacy EIP-155 replay protection is the only
// per-type branch left.
func NewSigner(chainID uint64) Signer { return Signer{chainID: chainID} }

// SigningHash returns the digest that must be signed for tx, per its
// envelope type: the RLP list of its unsigned fields, typed-wrapped for
// anything but legacy (§3).
func (s Signer) SigningHash(tx *Transaction) common.Hash {
	var items []interface{}
	switch tx.Type {
	case LegacyTxType:
		items = []interface{}{tx.Nonce, tx.GasPrice, tx.GasLimit, toOrEmpty(tx.To), tx.Value, tx.Data}
		if s.chainID != 0 {
			items = append(items, s.chainID, uint(0), uint(0))
		}
	case AccessListTxType:
		items = []interface{}{s.chainID, tx.Nonce, tx.GasPrice, tx.GasLimit, toOrEmpty(tx.To), tx.Value, tx.Data, accessListRLP(tx.AccessList)}
	case DynamicFeeTxType:
		items = []interface{}{s.chainID, tx.Nonce, tx.GasTipCap, tx.GasFeeCap, tx.GasLimit, toOrEmpty(tx.To), tx.Value, tx.Data, accessListRLP(tx.AccessList)}
	case BlobTxType:
		items = []interface{}{s.chainID, tx.Nonce, tx.GasTipCap, tx.GasFeeCap, tx.GasLimit, toOrEmpty(tx.To), tx.Value, tx.Data, accessListRLP(tx.AccessList), tx.BlobFeeCap, hashListRLP(tx.BlobHashes)}
	case SetCodeTxType:
		items = []interface{}{s.chainID, tx.Nonce, tx.GasTipCap, tx.GasFeeCap, tx.GasLimit, toOrEmpty(tx.To), tx.Value, tx.Data, accessListRLP(tx.AccessList), authListRLP(tx.AuthList)}
	default:
		return common.Hash{}
	}

	var payload []byte
	for _, item := range items {
		enc, _ := rlp.EncodeToBytes(item)
		payload = append(payload, enc...)
	}
	listEnc := rlp.WrapList(payload)
	envelope := rlp.EncodeTyped(byte(tx.Type), listEnc)
	return crypto.Keccak256Hash(envelope)
}

// Sender recovers and validates the transaction's sender (§3 invariant:
// "signature recovery yields a non-zero sender").
func (s Signer) Sender(tx *Transaction) (common.Address, error) {
	if tx.Type == DepositTxType {
		return tx.From, nil
	}
	r, sVal := tx.Sig.R, tx.Sig.S
	if r == nil || sVal == nil || (r.IsZero() && sVal.IsZero()) {
		return common.Address{}, ErrInvalidSignature
	}

	sigHash := s.SigningHash(tx)
	sig := make([]byte, 65)
	rBytes := r.Bytes()
	sBytes := sVal.Bytes()
	copy(sig[32-len(rBytes):32], rBytes)
	copy(sig[64-len(sBytes):64], sBytes)
	sig[64] = tx.Sig.V

	pub, err := crypto.Ecrecover(sigHash.Bytes(), sig)
	if err != nil {
		return common.Address{}, err
	}
	addr := common.BytesToAddress(crypto.Keccak256(pub[1:])[12:])
	if addr.IsZero() {
		return common.Address{}, ErrInvalidSignature
	}
	return addr, nil
}

func toOrEmpty(to *common.Address) []byte {
	if to == nil {
		return []byte{}
	}
	return to.Bytes()
}

func accessListRLP(al []AccessTuple) [][]interface{} {
	out := make([][]interface{}, len(al))
	for i, a := range al {
		keys := make([]interface{}, len(a.StorageKeys))
		for j, k := range a.StorageKeys {
			keys[j] = k
		}
		out[i] = []interface{}{a.Address, keys}
	}
	return out
}

func hashListRLP(hs []common.Hash) []interface{} {
	out := make([]interface{}, len(hs))
	for i, h := range hs {
		out[i] = h
	}
	return out
}

func authListRLP(al []AuthorizationTuple) []interface{} {
	out := make([]interface{}, len(al))
	for i, a := range al {
		out[i] = []interface{}{a.ChainID, a.Address, a.Nonce, a.V, a.R, a.S}
	}
	return out
}
