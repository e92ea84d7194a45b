package types

import "github.com/edr-dev/edr/common"

// Log is a single LOGn event emitted by a contract during execution.
type Log struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber uint64
	TxHash      common.Hash
	TxIndex     uint
	BlockHash   common.Hash
	Index       uint
	Removed     bool
}

// BloomContribution returns the bytes folded into a receipt/header bloom
// filter for this log: the log's address plus each topic, each hashed.
func (l *Log) BloomContribution(keccak func([]byte) []byte) [][]byte {
	out := make([][]byte, 0, 1+len(l.Topics))
	out = append(out, keccak(l.Address.Bytes()))
	for _, t := range l.Topics {
		out = append(out, keccak(t.Bytes()))
	}
	return out
}
