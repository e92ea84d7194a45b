package fork_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/crypto"
	"github.com/edr-dev/edr/fork"
)

// fakeFetcher answers fork.RpcFetcher from a fixed in-memory fixture and
// counts upstream calls, so tests can assert a cache hit never reaches it
// twice.
type fakeFetcher struct {
	balance  *uint256.Int
	code     []byte
	storage  map[common.Hash]common.Hash
	accounts atomic.Int32
	codes    atomic.Int32
	storages atomic.Int32
}

func (f *fakeFetcher) GetBlock(context.Context, string) (*types.Header, error) {
	return &types.Header{Number: 100}, nil
}

func (f *fakeFetcher) GetAccountProof(_ context.Context, addr common.Address, _ []common.Hash, _ string) (fork.Proof, error) {
	f.accounts.Add(1)
	return fork.Proof{
		Address:  addr,
		Nonce:    1,
		Balance:  f.balance,
		CodeHash: crypto.Keccak256Hash(f.code),
	}, nil
}

func (f *fakeFetcher) GetCode(_ context.Context, addr common.Address, _ string) ([]byte, error) {
	f.codes.Add(1)
	return f.code, nil
}

func (f *fakeFetcher) GetStorage(_ context.Context, addr common.Address, key common.Hash, _ string) (common.Hash, error) {
	f.storages.Add(1)
	return f.storage[key], nil
}

var testAddr = common.HexToAddress("0x00000000000000000000000000000000001234")
var testSlot = common.HexToHash("0x01")

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		balance: uint256.NewInt(500),
		code:    []byte{0x60, 0x00, 0x60, 0x00},
		storage: map[common.Hash]common.Hash{testSlot: common.HexToHash("0x2a")},
	}
}

func TestPinnedCacheHitsDiskAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	fetcher := newFakeFetcher()

	c1, err := fork.NewCache(dir, 1, fork.Pin(42), fetcher)
	require.NoError(t, err)

	acc, ok := c1.LoadAccount(testAddr)
	require.True(t, ok)
	require.Equal(t, uint64(1), acc.Nonce)
	require.Equal(t, int32(1), fetcher.accounts.Load())

	code := c1.LoadCode(acc.CodeHash)
	require.Equal(t, fetcher.code, code)
	require.Equal(t, int32(1), fetcher.codes.Load())

	val := c1.LoadStorage(testAddr, testSlot)
	require.Equal(t, common.HexToHash("0x2a"), val)
	require.Equal(t, int32(1), fetcher.storages.Load())
	require.NoError(t, c1.Close())

	// A second Cache instance pointed at the same directory must read the
	// persisted entries without touching the fetcher again (§4.F:
	// "two runs with the same pinned block produce identical reads").
	c2, err := fork.NewCache(dir, 1, fork.Pin(42), fetcher)
	require.NoError(t, err)
	defer c2.Close()

	acc2, ok := c2.LoadAccount(testAddr)
	require.True(t, ok)
	require.Equal(t, acc.Nonce, acc2.Nonce)
	require.Equal(t, int32(1), fetcher.accounts.Load())

	code2 := c2.LoadCode(acc2.CodeHash)
	require.Equal(t, fetcher.code, code2)
	require.Equal(t, int32(1), fetcher.codes.Load())
}

func TestLatestModeNeverTouchesDisk(t *testing.T) {
	fetcher := newFakeFetcher()
	c, err := fork.NewCache(t.TempDir(), 1, fork.Latest, fetcher)
	require.NoError(t, err)
	require.True(t, fork.Latest.UnsafeToReplay())

	acc, ok := c.LoadAccount(testAddr)
	require.True(t, ok)
	require.Equal(t, int32(1), fetcher.accounts.Load())

	// Second read within the same instance is memoised in-process...
	_, ok = c.LoadAccount(testAddr)
	require.True(t, ok)
	require.Equal(t, int32(1), fetcher.accounts.Load())

	code := c.LoadCode(acc.CodeHash)
	require.Equal(t, fetcher.code, code)
}

func TestLoadCodeWithoutPriorAccountLookupReturnsNil(t *testing.T) {
	fetcher := newFakeFetcher()
	c, err := fork.NewCache(t.TempDir(), 1, fork.Pin(1), fetcher)
	require.NoError(t, err)
	defer c.Close()

	// No LoadAccount call has registered this codeHash->address mapping.
	require.Nil(t, c.LoadCode(crypto.Keccak256Hash(fetcher.code)))
	require.Equal(t, int32(0), fetcher.codes.Load())
}

func TestEmptyCodeHashNeverFetches(t *testing.T) {
	fetcher := newFakeFetcher()
	c, err := fork.NewCache(t.TempDir(), 1, fork.Pin(1), fetcher)
	require.NoError(t, err)
	defer c.Close()

	require.Nil(t, c.LoadCode(types.EmptyCodeHash))
	require.Equal(t, int32(0), fetcher.codes.Load())
}
