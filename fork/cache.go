package fork

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/VictoriaMetrics/fastcache"
	"github.com/cockroachdb/pebble"
	"github.com/gofrs/flock"

	"github.com/edr-dev/edr/common"
	"github.com/edr-dev/edr/core/types"
	"github.com/edr-dev/edr/crypto"
	"github.com/edr-dev/edr/rlp"
)

// defaultHotCacheBytes sizes the in-process fastcache layer sitting in
// front of the on-disk pebble store; a forked test run re-reads the same
// handful of hot accounts (the forked protocol's core contracts) far more
// often than it discovers new ones.
const defaultHotCacheBytes = 32 * 1024 * 1024 // 32 MiB

// lockAcquireTimeout bounds how long NewCache waits on the directory lock
// before giving up; a wedged peer process must not hang every other EDR
// instance pointed at the same cache directory indefinitely.
const lockAcquireTimeout = 10 * time.Second

// Cache answers account/storage/code/block queries against a forked chain,
// transparently consulting an in-process hot cache, an on-disk pebble
// store, and finally the upstream RpcFetcher, in that order (§4.F).
//
// Cache implements core/state.Loader, so it is handed directly to
// state.NewOverlay in place of state.EmptyLoader when constructing a
// forked chain.
type Cache struct {
	chainID uint64
	block   BlockTag
	fetcher RpcFetcher

	hot *fastcache.Cache

	// db is nil in "latest" mode: per §4.F, latest-mode reads memoise only
	// for the process lifetime and are never written to disk. The
	// directory lock (below, in NewCache) is only held across the open
	// handshake, not for db's lifetime — pebble's own internal lock file
	// already serialises concurrent writers to an opened store.
	db *pebble.DB

	mu           sync.Mutex
	ctx          context.Context
	lastErr      error
	codeHashAddr map[common.Hash]common.Address
	headerMemo   map[string]*types.Header

	// latestMem holds the in-process-only memoisation for "latest" mode.
	latestMem   map[string][]byte
	latestMemMu sync.Mutex
}

// NewCache opens (creating if necessary) the on-disk cache rooted at
// baseDir for chainID, or constructs a disk-free cache when block is
// fork.Latest. fetcher supplies upstream reads on a cache miss.
func NewCache(baseDir string, chainID uint64, block BlockTag, fetcher RpcFetcher) (*Cache, error) {
	c := &Cache{
		chainID:      chainID,
		block:        block,
		fetcher:      fetcher,
		hot:          fastcache.New(defaultHotCacheBytes),
		ctx:          context.Background(),
		codeHashAddr: make(map[common.Hash]common.Address),
		headerMemo:   make(map[string]*types.Header),
	}

	if block.UnsafeToReplay() {
		c.latestMem = make(map[string][]byte)
		return c, nil
	}

	dir := filepath.Join(baseDir, "edr-cache", fmt.Sprintf("%d", chainID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("fork: create cache dir: %w", err)
	}

	lock := flock.New(filepath.Join(dir, ".lock"))
	lockCtx, cancel := context.WithTimeout(context.Background(), lockAcquireTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, 50*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("fork: acquire cache directory lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("fork: cache directory %s held by another process", dir)
	}
	defer lock.Unlock()

	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("fork: open cache store: %w", err)
	}
	c.db = db
	return c, nil
}

// SetContext installs the context used for upstream fetches, letting the
// provider bound a request's RPC-fetch suspension points with its own
// timeout or cancellation (§5: "Timeouts apply only at RPC fetch
// boundaries").
func (c *Cache) SetContext(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ctx = ctx
}

func (c *Cache) fetchCtx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// LastError reports the most recent upstream fetch failure. state.Loader's
// methods can't return an error (they predate any fetch ever failing at
// the trie layer), so a persistent fork-cache failure instead degrades to
// "not found" and is surfaced here for the provider to inspect and turn
// into a request-level error.
func (c *Cache) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Cache) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *Cache) rememberCodeHash(codeHash common.Hash, addr common.Address) {
	c.mu.Lock()
	c.codeHashAddr[codeHash] = addr
	c.mu.Unlock()
}

func (c *Cache) addrForCodeHash(codeHash common.Hash) (common.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	addr, ok := c.codeHashAddr[codeHash]
	return addr, ok
}

// Close releases the on-disk store. A no-op in "latest" mode.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// LoadAccount implements core/state.Loader.
func (c *Cache) LoadAccount(addr common.Address) (types.Account, bool) {
	if c.block.UnsafeToReplay() {
		return c.loadAccountLatest(addr)
	}

	key := accountKey(c.block.number(), addr)
	if raw, ok := c.get(key); ok {
		var acc types.Account
		if err := rlp.DecodeBytes(raw, &acc); err == nil {
			c.rememberCodeHash(acc.CodeHash, addr)
			return acc, true
		}
	}

	proof, err := c.fetcher.GetAccountProof(c.fetchCtx(), addr, nil, c.block.String())
	if err != nil {
		c.setErr(err)
		return types.Account{}, false
	}
	acc := proof.toAccount()
	if enc, err := rlp.EncodeToBytes(acc); err == nil {
		c.put(key, enc)
	}
	c.rememberCodeHash(acc.CodeHash, addr)
	return acc, true
}

func (c *Cache) loadAccountLatest(addr common.Address) (types.Account, bool) {
	memKey := "account:" + addr.Hex()
	c.latestMemMu.Lock()
	if raw, ok := c.latestMem[memKey]; ok {
		c.latestMemMu.Unlock()
		var acc types.Account
		if err := rlp.DecodeBytes(raw, &acc); err == nil {
			c.rememberCodeHash(acc.CodeHash, addr)
			return acc, true
		}
	} else {
		c.latestMemMu.Unlock()
	}

	proof, err := c.fetcher.GetAccountProof(c.fetchCtx(), addr, nil, "latest")
	if err != nil {
		c.setErr(err)
		return types.Account{}, false
	}
	acc := proof.toAccount()
	if enc, err := rlp.EncodeToBytes(acc); err == nil {
		c.latestMemMu.Lock()
		c.latestMem[memKey] = enc
		c.latestMemMu.Unlock()
	}
	c.rememberCodeHash(acc.CodeHash, addr)
	return acc, true
}

// LoadStorage implements core/state.Loader.
func (c *Cache) LoadStorage(addr common.Address, slot common.Hash) common.Hash {
	if c.block.UnsafeToReplay() {
		return c.loadStorageLatest(addr, slot)
	}

	key := storageKey(c.block.number(), addr, slot)
	if raw, ok := c.get(key); ok {
		var val common.Hash
		if err := rlp.DecodeBytes(raw, &val); err == nil {
			return val
		}
	}

	val, err := c.fetcher.GetStorage(c.fetchCtx(), addr, slot, c.block.String())
	if err != nil {
		c.setErr(err)
		return common.Hash{}
	}
	if enc, err := rlp.EncodeToBytes(val); err == nil {
		c.put(key, enc)
	}
	return val
}

func (c *Cache) loadStorageLatest(addr common.Address, slot common.Hash) common.Hash {
	memKey := "storage:" + addr.Hex() + ":" + slot.Hex()
	c.latestMemMu.Lock()
	raw, ok := c.latestMem[memKey]
	c.latestMemMu.Unlock()
	if ok {
		var val common.Hash
		if err := rlp.DecodeBytes(raw, &val); err == nil {
			return val
		}
	}

	val, err := c.fetcher.GetStorage(c.fetchCtx(), addr, slot, "latest")
	if err != nil {
		c.setErr(err)
		return common.Hash{}
	}
	if enc, err := rlp.EncodeToBytes(val); err == nil {
		c.latestMemMu.Lock()
		c.latestMem[memKey] = enc
		c.latestMemMu.Unlock()
	}
	return val
}

// LoadCode implements core/state.Loader. The interface is keyed by
// codeHash alone, but RpcFetcher.GetCode takes an address; LoadAccount
// records the codeHash→address mapping as accounts are discovered, so a
// LoadCode call for a hash never reached through LoadAccount correctly
// returns nil (there is no address to fetch code for, matching an empty
// account's EmptyCodeHash never resolving to a body).
func (c *Cache) LoadCode(codeHash common.Hash) []byte {
	if codeHash == types.EmptyCodeHash {
		return nil
	}
	addr, ok := c.addrForCodeHash(codeHash)
	if !ok {
		return nil
	}

	if c.block.UnsafeToReplay() {
		return c.loadCodeLatest(addr, codeHash)
	}

	key := codeKey(c.block.number(), addr)
	if raw, ok := c.get(key); ok {
		return raw
	}

	code, err := c.fetcher.GetCode(c.fetchCtx(), addr, c.block.String())
	if err != nil {
		c.setErr(err)
		return nil
	}
	if crypto.Keccak256Hash(code) != codeHash {
		c.setErr(fmt.Errorf("fork: code hash mismatch for %s", addr.Hex()))
		return nil
	}
	c.put(key, code)
	return code
}

func (c *Cache) loadCodeLatest(addr common.Address, codeHash common.Hash) []byte {
	memKey := "code:" + addr.Hex()
	c.latestMemMu.Lock()
	raw, ok := c.latestMem[memKey]
	c.latestMemMu.Unlock()
	if ok {
		return raw
	}

	code, err := c.fetcher.GetCode(c.fetchCtx(), addr, "latest")
	if err != nil {
		c.setErr(err)
		return nil
	}
	if crypto.Keccak256Hash(code) != codeHash {
		c.setErr(fmt.Errorf("fork: code hash mismatch for %s", addr.Hex()))
		return nil
	}
	c.latestMemMu.Lock()
	c.latestMem[memKey] = code
	c.latestMemMu.Unlock()
	return code
}

// Block resolves the header for hashOrNumber (used to seed a forked
// chain's genesis parent), memoising it for this Cache's lifetime. Headers
// have no RLP decode counterpart in this module (EncodeRLP exists only to
// compute a block hash, §3), so unlike accounts/storage/code this is a
// process-lifetime memo only, not a disk-persisted entry; it is fetched
// once per provider instance regardless of BlockTag.
func (c *Cache) Block(hashOrNumber string) (*types.Header, error) {
	key := string(blockKey(hashOrNumber))

	c.mu.Lock()
	h, ok := c.headerMemo[key]
	c.mu.Unlock()
	if ok {
		return h, nil
	}

	h, err := c.fetcher.GetBlock(c.fetchCtx(), hashOrNumber)
	if err != nil {
		c.setErr(err)
		return nil, err
	}

	c.mu.Lock()
	c.headerMemo[key] = h
	c.mu.Unlock()
	return h, nil
}

// get reads through the hot cache, falling back to the disk store; it
// always misses in "latest" mode (that path is handled by the per-kind
// *Latest methods using latestMem instead).
func (c *Cache) get(key []byte) ([]byte, bool) {
	if v, ok := c.hot.HasGet(nil, key); ok {
		return v, true
	}
	if c.db == nil {
		return nil, false
	}
	compressed, closer, err := c.db.Get(key)
	if err != nil {
		if !errors.Is(err, pebble.ErrNotFound) {
			c.setErr(err)
		}
		return nil, false
	}
	raw, err := snappyDecode(compressed)
	closer.Close()
	if err != nil {
		c.setErr(err)
		return nil, false
	}
	c.hot.Set(key, raw)
	return raw, true
}

func (c *Cache) put(key, value []byte) {
	c.hot.Set(key, value)
	if c.db == nil {
		return
	}
	if err := c.db.Set(key, snappyEncode(value), pebble.Sync); err != nil {
		c.setErr(err)
	}
}
