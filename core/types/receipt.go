package types

import "github.com/edr-dev/edr/common"

// ReceiptStatus is the post-Byzantium success/failure flag (§3).
type ReceiptStatus uint64

const (
	ReceiptStatusFailed ReceiptStatus = iota
	ReceiptStatusSuccessful
)

// Receipt records the outcome of executing a single transaction: status,
// cumulative gas, bloom, and logs, plus the indices needed to locate it
// within a block once mined.
type Receipt struct {
	Type              TxType
	Status            ReceiptStatus
	CumulativeGasUsed uint64
	Bloom             common.Bloom
	Logs              []*Log

	TxHash          common.Hash
	ContractAddress common.Address // set only for successful contract creation
	GasUsed         uint64

	BlockHash        common.Hash
	BlockNumber      uint64
	TransactionIndex uint
}

// ComputeBloom folds every log's contribution into the receipt's bloom
// filter, mirroring the teacher's receipt-construction step in
// core/types/receipt.go.
func (r *Receipt) ComputeBloom(keccak func([]byte) []byte) {
	var b common.Bloom
	for _, l := range r.Logs {
		for _, contribution := range l.BloomContribution(keccak) {
			b.Add(contribution)
		}
	}
	r.Bloom = b
}
