package vm

import (
	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/crypto"
	"github.com/edr-dev/edr/rlp"
)

// contractAddress computes the CREATE address: keccak256(rlp([sender, nonce]))[12:].
func contractAddress(sender common.Address, nonce uint64) common.Address {
	enc, _ := rlp.EncodeToBytes([]interface{}{sender.Bytes(), nonce})
	return common.BytesToAddress(crypto.Keccak256(enc)[12:])
}

// ContractAddressForNonce exports contractAddress for the executor package,
// which must derive a top-level CREATE transaction's contract address the
// same way opCreate does for an internal CREATE.
func ContractAddressForNonce(sender common.Address, nonce uint64) common.Address {
	return contractAddress(sender, nonce)
}

// contractAddress2 computes the CREATE2 address:
// keccak256(0xff ++ sender ++ salt ++ keccak256(initcode))[12:] (EIP-1014).
func contractAddress2(sender common.Address, salt *uint256.Int, initcode []byte) common.Address {
	codeHash := crypto.Keccak256(initcode)
	saltBytes := salt.Bytes32()
	buf := make([]byte, 0, 1+20+32+32)
	buf = append(buf, 0xff)
	buf = append(buf, sender.Bytes()...)
	buf = append(buf, saltBytes[:]...)
	buf = append(buf, codeHash...)
	return common.BytesToAddress(crypto.Keccak256(buf)[12:])
}
