package types

import (
	"errors"

	"github.com/edr-dev/edr/common"
	"github.com/holiman/uint256"
)

// TxType identifies a typed transaction envelope (§3).
type TxType uint8

const (
	LegacyTxType TxType = iota
	AccessListTxType
	DynamicFeeTxType
	BlobTxType
	SetCodeTxType
	DepositTxType // OP chain-spec variant only
)

var (
	ErrInvalidSig        = errors.New("transaction: invalid signature")
	ErrNonceTooLow        = errors.New("transaction: nonce too low")
	ErrNonceTooHigh       = errors.New("transaction: nonce too high")
	ErrInsufficientFunds  = errors.New("transaction: insufficient funds for gas * price + value")
	ErrUnsupportedTxType  = errors.New("transaction: type not supported by active hardfork")
	ErrChainIDMismatch    = errors.New("transaction: chain id mismatch")
	ErrGasLimitTooLow     = errors.New("transaction: gas limit below intrinsic gas")
)

// AccessTuple is a single entry of an EIP-2930 access list: an address plus
// the storage keys pre-warmed for it.
type AccessTuple struct {
	Address     common.Address
	StorageKeys []common.Hash
}

// AuthorizationTuple is an EIP-7702 set-code authorization: a signed
// delegation from an EOA to a piece of contract code.
type AuthorizationTuple struct {
	ChainID uint64
	Address common.Address
	Nonce   uint64
	V       uint8
	R, S    *uint256.Int
}

// Signature is the secp256k1 recoverable signature carried by every
// transaction envelope except system-synthesised deposits (§3).
type Signature struct {
	V uint8 // 0/1 recovery id (already normalized out of legacy's 27/28 or EIP-155 encoding)
	R *uint256.Int
	S *uint256.Int
}

// Transaction is a variant over the typed envelopes. Every constructor
// function below fills in only the fields meaningful to that type; readers
// should branch on Type() before touching type-specific fields.
type Transaction struct {
	Type TxType

	ChainID   uint64
	Nonce     uint64
	GasLimit  uint64
	To        *common.Address // nil for contract creation
	Value     *uint256.Int
	Data      []byte

	// Fee fields. Legacy/AccessList use GasPrice; DynamicFee/Blob/SetCode use
	// GasFeeCap/GasTipCap.
	GasPrice     *uint256.Int
	GasFeeCap    *uint256.Int
	GasTipCap    *uint256.Int

	AccessList []AccessTuple

	// EIP-4844 blob fields.
	BlobFeeCap   *uint256.Int
	BlobHashes   []common.Hash

	// EIP-7702 set-code fields.
	AuthList []AuthorizationTuple

	// OP deposit-only fields (chainspec.OP); zero-valued otherwise.
	SourceHash common.Hash
	From       common.Address // deposits carry an explicit sender, no signature
	Mint       *uint256.Int
	IsSystemTx bool

	Sig Signature

	// cached on first access
	hash *common.Hash
}

// NewLegacyTx builds an unsigned legacy transaction.
func NewLegacyTx(nonce uint64, to *common.Address, value *uint256.Int, gasLimit uint64, gasPrice *uint256.Int, data []byte) *Transaction {
	return &Transaction{
		Type:     LegacyTxType,
		Nonce:    nonce,
		To:       to,
		Value:    value,
		GasLimit: gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	}
}

// NewDynamicFeeTx builds an unsigned EIP-1559 transaction.
func NewDynamicFeeTx(chainID, nonce uint64, to *common.Address, value *uint256.Int, gasLimit uint64, feeCap, tipCap *uint256.Int, data []byte, al []AccessTuple) *Transaction {
	return &Transaction{
		Type:      DynamicFeeTxType,
		ChainID:   chainID,
		Nonce:     nonce,
		To:        to,
		Value:     value,
		GasLimit:  gasLimit,
		GasFeeCap: feeCap,
		GasTipCap: tipCap,
		Data:      data,
		AccessList: al,
	}
}

// IsContractCreation reports whether this transaction deploys new code.
func (tx *Transaction) IsContractCreation() bool { return tx.To == nil }

// EffectiveGasPrice returns the gas price actually paid given a block base
// fee, per EIP-1559: min(tipCap, feeCap-baseFee) + baseFee.
func (tx *Transaction) EffectiveGasPrice(baseFee *uint256.Int) *uint256.Int {
	if tx.Type == LegacyTxType || tx.Type == AccessListTxType {
		return new(uint256.Int).Set(tx.GasPrice)
	}
	if baseFee == nil {
		return new(uint256.Int).Set(tx.GasFeeCap)
	}
	tip := new(uint256.Int).Sub(tx.GasFeeCap, baseFee)
	if tx.GasTipCap.Cmp(tip) < 0 {
		tip = tx.GasTipCap
	}
	return new(uint256.Int).Add(tip, baseFee)
}

// Hash returns the (cached) transaction hash, computed over the RLP/typed
// encoding by the rlp package on first call.
func (tx *Transaction) Hash(hashFn func(*Transaction) common.Hash) common.Hash {
	if tx.hash != nil {
		return *tx.hash
	}
	h := hashFn(tx)
	tx.hash = &h
	return h
}

// IntrinsicGas computes the pre-execution gas charge of §4.E step 2:
// 21000 + 4*zeroBytes + 16*nonZeroBytes + access-list terms +
// (create ? 32000 : 0) + initcode word cost (post-Shanghai).
func (tx *Transaction) IntrinsicGas(isHomestead, isIstanbul, isShanghai bool) (uint64, error) {
	var gas uint64 = 21000
	if tx.IsContractCreation() && isHomestead {
		gas = 53000
	}
	var zeroBytes, nonZeroBytes uint64
	for _, b := range tx.Data {
		if b == 0 {
			zeroBytes++
		} else {
			nonZeroBytes++
		}
	}
	zeroCost := uint64(4)
	nonZeroCost := uint64(16)
	if !isIstanbul {
		nonZeroCost = 68
	}
	if (^uint64(0)-gas)/zeroCost < zeroBytes {
		return 0, errGasUintOverflow
	}
	gas += zeroBytes * zeroCost
	if (^uint64(0)-gas)/nonZeroCost < nonZeroBytes {
		return 0, errGasUintOverflow
	}
	gas += nonZeroBytes * nonZeroCost

	for _, al := range tx.AccessList {
		gas += 2400
		gas += uint64(len(al.StorageKeys)) * 1900
	}
	gas += uint64(len(tx.AuthList)) * 25000

	if tx.IsContractCreation() && isShanghai {
		words := (uint64(len(tx.Data)) + 31) / 32
		gas += words * 2
	}
	return gas, nil
}

var errGasUintOverflow = errors.New("transaction: gas uint64 overflow")
