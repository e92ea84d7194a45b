package types

import (
	"github.com/edr-dev/edr/common"
	"github.com/holiman/uint256"
)

// EmptyCodeHash is keccak256 of the empty byte string, the codeHash carried
// by every externally-owned account.
var EmptyCodeHash = common.HexToHash("c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470")

// EmptyRoot is the canonical storage-root marker for an account with no
// storage cells set.
var EmptyRoot = common.HexToHash("56e81f171bcc55a6ff8345e692c0f86e5b48e01b996cadc001622fb5e363b421")

// Account is the data model of §3: a tuple of nonce, balance, codeHash and
// storageRoot. EDR never materialises a real Merkle trie for storageRoot;
// the field is retained for RPC compatibility (eth_getProof-shaped
// responses) and is recomputed lazily from the overlay when requested.
type Account struct {
	Nonce       uint64
	Balance     *uint256.Int
	CodeHash    common.Hash
	StorageRoot common.Hash
}

// EmptyAccount returns the canonical representation of an account that has
// never been touched.
func EmptyAccount() Account {
	return Account{
		Balance:     new(uint256.Int),
		CodeHash:    EmptyCodeHash,
		StorageRoot: EmptyRoot,
	}
}

// IsEmpty implements the §3 invariant: an account is empty iff nonce=0,
// balance=0, and code="" (i.e. codeHash is the empty-code marker).
func (a Account) IsEmpty() bool {
	return a.Nonce == 0 && (a.Balance == nil || a.Balance.IsZero()) && a.CodeHash == EmptyCodeHash
}

func (a Account) Copy() Account {
	cp := a
	if a.Balance != nil {
		cp.Balance = new(uint256.Int).Set(a.Balance)
	} else {
		cp.Balance = new(uint256.Int)
	}
	return cp
}
