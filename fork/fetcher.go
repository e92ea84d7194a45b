// Package fork implements EDR's fork cache (§4.F): a transparent
// account/storage/code/block lookup backed by an upstream JSON-RPC
// endpoint and an on-disk cache, so a forked chain can answer state queries
// without re-fetching from the network on every run.
//
// fork.Cache implements core/state.Loader directly, so it plugs into
// state.NewOverlay(cache) exactly where state.EmptyLoader plugs in for a
// from-genesis chain.
package fork

import (
	"context"

	"github.com/holiman/uint256"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
)

// RpcFetcher is the external collaborator EDR does not implement itself
// (§6): the HTTP/JSON-RPC client that actually talks to an upstream node.
// Callers supply a concrete implementation; fork.Cache only ever calls
// through this interface, falling back to it on a cache miss.
type RpcFetcher interface {
	// GetBlock resolves a block by hash or decimal number (or "latest").
	GetBlock(ctx context.Context, hashOrNumber string) (*types.Header, error)
	// GetAccountProof returns the account's balance/nonce/code hash/storage
	// root as of block, along with any requested storage slot values.
	GetAccountProof(ctx context.Context, addr common.Address, keys []common.Hash, block string) (Proof, error)
	// GetCode returns the contract code deployed at addr as of block.
	GetCode(ctx context.Context, addr common.Address, block string) ([]byte, error)
	// GetStorage returns one storage slot's value as of block.
	GetStorage(ctx context.Context, addr common.Address, key common.Hash, block string) (common.Hash, error)
}

// Proof is the eth_getProof-shaped response get_account_proof answers with
// (§6). EDR does not verify the Merkle proof itself — it is a development
// runtime trusting its configured upstream — so only the resolved values
// are kept.
type Proof struct {
	Address     common.Address
	Nonce       uint64
	Balance     *uint256.Int
	CodeHash    common.Hash
	StorageHash common.Hash
	// StorageValues holds the resolved value for each key requested
	// alongside this account fetch, so a single round trip can warm both
	// the account and any storage slots already known to be needed.
	StorageValues map[common.Hash]common.Hash
}

func (p Proof) toAccount() types.Account {
	bal := p.Balance
	if bal == nil {
		bal = new(uint256.Int)
	}
	return types.Account{
		Nonce:       p.Nonce,
		Balance:     bal,
		CodeHash:    p.CodeHash,
		StorageRoot: p.StorageHash,
	}
}
