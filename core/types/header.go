package types

import "github.com/edr-dev/edr/common"

// Header is a block header. EDR never computes a real state/transaction
// Merkle root (no trie is materialised, per §9's "no consensus engine"
// design note); the chain sets StateRoot to a content-derived placeholder
// hash, without claiming trie-proof compatibility, and leaves TxRoot and
// ReceiptRoot zero.
type Header struct {
	ParentHash  common.Hash
	Number      uint64
	Timestamp   uint64
	GasLimit    uint64
	GasUsed     uint64
	BaseFee     *common.Word // nil pre-London
	Miner       common.Address
	StateRoot   common.Hash
	TxRoot      common.Hash
	ReceiptRoot common.Hash
	LogsBloom   common.Bloom
	MixHash     common.Hash
	ExtraData   []byte

	// EIP-4844 fields, zero pre-Cancun.
	BlobGasUsed   *uint64
	ExcessBlobGas *uint64

	// EIP-4895 withdrawals root, zero pre-Shanghai.
	WithdrawalsRoot *common.Hash
}

// Block pairs a header with its transactions and (post-Shanghai)
// withdrawals. Receipts are stored out-of-line in the blockchain's receipt
// index (§4.H), not embedded here, matching the teacher's
// core/types/block.go separation of block body from receipts.
type Block struct {
	Header       *Header
	Transactions []*Transaction
}

// Hash returns the block hash, the keccak256 of the RLP-encoded header,
// computed by the caller-supplied hashFn (typically a closure over
// HashHeader with a keccak256 function).
func (b *Block) Hash(hashFn func(*Header) common.Hash) common.Hash {
	return hashFn(b.Header)
}
