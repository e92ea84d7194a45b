package executor

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
)

// Message is the execution-ready form of a Transaction: sender already
// recovered, effective gas price already resolved against the block's base
// fee, matching the teacher's core.Message split between the wire envelope
// and what the state transition actually consumes.
type Message struct {
	From       common.Address
	To         *common.Address
	Nonce      uint64
	Value      *uint256.Int
	GasLimit   uint64
	GasPrice   *uint256.Int // effective price already resolved (§4.E step 0)
	GasFeeCap  *uint256.Int
	GasTipCap  *uint256.Int
	Data       []byte
	AccessList []types.AccessTuple
	AuthList   []types.AuthorizationTuple
	BlobHashes []common.Hash
	TxType     types.TxType
}

// NewMessage resolves tx's effective gas price against baseFee (nil
// pre-London) and recovers its sender via signer, producing the
// self-contained value the executor runs.
func NewMessage(tx *types.Transaction, signer types.Signer, baseFee *uint256.Int) (*Message, error) {
	from, err := signer.Sender(tx)
	if err != nil {
		return nil, err
	}
	return &Message{
		From:       from,
		To:         tx.To,
		Nonce:      tx.Nonce,
		Value:      tx.Value,
		GasLimit:   tx.GasLimit,
		GasPrice:   tx.EffectiveGasPrice(baseFee),
		GasFeeCap:  tx.GasFeeCap,
		GasTipCap:  tx.GasTipCap,
		Data:       tx.Data,
		AccessList: tx.AccessList,
		AuthList:   tx.AuthList,
		BlobHashes: tx.BlobHashes,
		TxType:     tx.Type,
	}, nil
}
